package storage

import (
	"errors"
	"fmt"

	"github.com/keeper-security/ksm-profile/internal/validation"
	"github.com/keeper-security/ksm-profile/pkg/profile"
)

// Ensure KeeperBackend implements profile.Backend
var _ profile.Backend = (*KeeperBackend)(nil)

var errRecordNotFound = errors.New("record not found")

// NotesStore reads and writes the notes of a vault record. ReadNotes
// reports false when no record with uid exists.
type NotesStore interface {
	ReadNotes(uid string) (string, bool, error)
	WriteNotes(uid, notes string) error
}

// KeeperBackend keeps a profile in the notes of a Keeper vault record,
// encoded as INI. The profile's name is the record UID. The record must
// exist before anything is written to it.
type KeeperBackend struct {
	store      NotesStore
	defaultUID string
	codec      IniCodec
	validator  *validation.Validator
}

// NewKeeperBackend creates a backend over store. defaultUID names the
// record used by profiles created without an explicit name.
func NewKeeperBackend(store NotesStore, defaultUID string) *KeeperBackend {
	return &KeeperBackend{
		store:      store,
		defaultUID: defaultUID,
		validator:  validation.NewValidator(),
	}
}

// DefaultName returns the default record UID
func (b *KeeperBackend) DefaultName() string {
	return b.defaultUID
}

// SectionNames returns nil if the record does not exist
func (b *KeeperBackend) SectionNames(uid string) ([]string, error) {
	doc, err := b.load(uid)
	if err != nil || doc == nil {
		return nil, err
	}
	return doc.SectionNames(), nil
}

// EntryNames returns nil if the record or section does not exist
func (b *KeeperBackend) EntryNames(uid, section string) ([]string, error) {
	doc, err := b.load(uid)
	if err != nil || doc == nil {
		return nil, err
	}
	return doc.EntryNames(section), nil
}

// Value returns the entry's value as a string, or nil if absent
func (b *KeeperBackend) Value(uid, section, entry string) (any, error) {
	doc, err := b.load(uid)
	if err != nil || doc == nil {
		return nil, err
	}
	return doc.Value(section, entry), nil
}

// SetValue rewrites the record notes with the new value
func (b *KeeperBackend) SetValue(uid, section, entry string, value any) error {
	if value != nil {
		if err := b.validator.ValidateSectionName(section); err != nil {
			return fmt.Errorf("%w: %v", ErrNameNotRepresentable, err)
		}
		if err := b.validator.ValidateEntryName(entry); err != nil {
			return fmt.Errorf("%w: %v", ErrNameNotRepresentable, err)
		}
	}
	return b.update(uid, func(doc *Document) {
		doc.Set(section, entry, value)
	})
}

// RemoveEntry rewrites the record notes without entry. Removing from a
// record that does not exist is a no-op.
func (b *KeeperBackend) RemoveEntry(uid, section, entry string) error {
	err := b.update(uid, func(doc *Document) {
		doc.RemoveEntry(section, entry)
	})
	if errors.Is(err, errRecordNotFound) {
		return nil
	}
	return err
}

// RemoveSection rewrites the record notes without section. Removing from a
// record that does not exist is a no-op.
func (b *KeeperBackend) RemoveSection(uid, section string) error {
	err := b.update(uid, func(doc *Document) {
		doc.RemoveSection(section)
	})
	if errors.Is(err, errRecordNotFound) {
		return nil
	}
	return err
}

// Clone returns a backend sharing the same store
func (b *KeeperBackend) Clone() (profile.Backend, error) {
	clone := *b
	return &clone, nil
}

func (b *KeeperBackend) load(uid string) (*Document, error) {
	if err := b.validator.ValidateUID(uid); err != nil {
		return nil, fmt.Errorf("invalid record UID: %w", err)
	}
	notes, ok, err := b.store.ReadNotes(uid)
	if err != nil {
		return nil, fmt.Errorf("failed to read record %s: %w", uid, err)
	}
	if !ok {
		return nil, nil
	}
	doc, err := b.codec.Decode([]byte(notes))
	if err != nil {
		return nil, fmt.Errorf("failed to parse notes of record %s: %w", uid, err)
	}
	return doc, nil
}

func (b *KeeperBackend) update(uid string, mutate func(*Document)) error {
	doc, err := b.load(uid)
	if err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("record %s: %w", uid, errRecordNotFound)
	}

	mutate(doc)

	data, err := b.codec.Encode(doc)
	if err != nil {
		return fmt.Errorf("failed to encode notes: %w", err)
	}
	if err := b.store.WriteNotes(uid, string(data)); err != nil {
		return fmt.Errorf("failed to write record %s: %w", uid, err)
	}
	return nil
}
