package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/keeper-security/ksm-profile/internal/validation"
	"github.com/keeper-security/ksm-profile/pkg/profile"
)

// Ensure FileBackend implements profile.Backend
var _ profile.Backend = (*FileBackend)(nil)

// DefaultBaseName is the file name, without extension, used when a
// profile is created without an explicit name.
const DefaultBaseName = "profile"

// ErrNameNotRepresentable is returned when a section or entry name cannot
// be written to a file format.
var ErrNameNotRepresentable = errors.New("name cannot be stored")

// ErrValueNotRepresentable is returned when a file format cannot store a
// value so that it reads back unchanged.
var ErrValueNotRepresentable = errors.New("value cannot be stored")

// Codec converts between a Document and a file format.
type Codec interface {
	// Extension returns the file extension including the dot, e.g. ".ini".
	Extension() string
	Decode(data []byte) (*Document, error)
	Encode(doc *Document) ([]byte, error)
}

// FileBackend stores a profile in a single file whose path is the
// profile's name. The file is read on every operation and rewritten
// atomically on every change, so several profiles may share it.
type FileBackend struct {
	codec     Codec
	baseName  string
	validator *validation.Validator
}

// FileOption configures a FileBackend
type FileOption func(*FileBackend)

// WithBaseName sets the default file name without extension, which may
// include a directory.
func WithBaseName(baseName string) FileOption {
	return func(b *FileBackend) {
		b.baseName = baseName
	}
}

// NewFileBackend creates a file backend for codec
func NewFileBackend(codec Codec, opts ...FileOption) *FileBackend {
	b := &FileBackend{
		codec:     codec,
		baseName:  DefaultBaseName,
		validator: validation.NewValidator(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Codec returns the backend's file format
func (b *FileBackend) Codec() Codec {
	return b.codec
}

// DefaultName returns the base name plus the codec's extension
func (b *FileBackend) DefaultName() string {
	return b.baseName + b.codec.Extension()
}

// SectionNames returns nil if the file does not exist
func (b *FileBackend) SectionNames(name string) ([]string, error) {
	doc, err := b.load(name)
	if err != nil || doc == nil {
		return nil, err
	}
	return doc.SectionNames(), nil
}

// EntryNames returns nil if the file or section does not exist
func (b *FileBackend) EntryNames(name, section string) ([]string, error) {
	doc, err := b.load(name)
	if err != nil || doc == nil {
		return nil, err
	}
	return doc.EntryNames(section), nil
}

// Value returns nil if the file, section or entry does not exist
func (b *FileBackend) Value(name, section, entry string) (any, error) {
	doc, err := b.load(name)
	if err != nil || doc == nil {
		return nil, err
	}
	return doc.Value(section, entry), nil
}

// SetValue writes value, creating the file if needed. A nil value removes
// the entry.
func (b *FileBackend) SetValue(name, section, entry string, value any) error {
	if err := b.validator.ValidateSectionName(section); err != nil {
		return fmt.Errorf("%w: %v", ErrNameNotRepresentable, err)
	}
	if err := b.validator.ValidateEntryName(entry); err != nil {
		return fmt.Errorf("%w: %v", ErrNameNotRepresentable, err)
	}

	doc, err := b.load(name)
	if err != nil {
		return err
	}
	if doc == nil {
		if value == nil {
			return nil
		}
		doc = NewDocument()
	}

	doc.Set(section, entry, value)
	return b.save(name, doc)
}

// RemoveEntry removes an entry; a missing file is not an error
func (b *FileBackend) RemoveEntry(name, section, entry string) error {
	doc, err := b.load(name)
	if err != nil || doc == nil {
		return err
	}
	doc.RemoveEntry(section, entry)
	return b.save(name, doc)
}

// RemoveSection removes a section; a missing file is not an error
func (b *FileBackend) RemoveSection(name, section string) error {
	doc, err := b.load(name)
	if err != nil || doc == nil {
		return err
	}
	doc.RemoveSection(section)
	return b.save(name, doc)
}

// Clone returns a backend with the same configuration. The file itself is
// the state, so clones see each other's writes.
func (b *FileBackend) Clone() (profile.Backend, error) {
	clone := *b
	return &clone, nil
}

// load reads and decodes the file; it returns nil, nil if it does not exist
func (b *FileBackend) load(name string) (*Document, error) {
	data, err := os.ReadFile(name) // #nosec G304 - path is the profile name chosen by the caller
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read profile file: %w", err)
	}

	doc, err := b.codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return doc, nil
}

// save encodes doc and replaces the file atomically
func (b *FileBackend) save(name string, doc *Document) error {
	data, err := b.codec.Encode(doc)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}

	if dir := filepath.Dir(name); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create profile directory: %w", err)
		}
	}

	tempPath := name + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write profile to temp file: %w", err)
	}

	if err := os.Rename(tempPath, name); err != nil {
		_ = os.Remove(tempPath) // Clean up temp file, ignore error
		return fmt.Errorf("failed to atomically update profile file: %w", err)
	}

	return nil
}
