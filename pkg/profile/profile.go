// Package profile implements a named, hierarchical settings container
// (sections -> entries -> values) on top of a pluggable Backend.
//
// A Profile owns the parts every backend shares: the one-way read-only
// lock, the two-phase change notification protocol, the typed accessor and
// conversion to and from a dataset.DataSet. A Profile is not safe for
// concurrent use; its owner must serialize access.
package profile

import (
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
)

// Profile is a settings container whose storage is supplied by a Backend.
type Profile struct {
	name     string
	readOnly bool
	backend  Backend
	logger   *slog.Logger

	changing []ChangingHandler
	changed  []ChangedHandler
}

// Option configures a Profile at construction.
type Option func(*Profile)

// WithName overrides the backend's default name.
func WithName(name string) Option {
	return func(p *Profile) {
		p.name = strings.TrimSpace(name)
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Profile) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a mutable profile named after backend.DefaultName unless
// WithName is given.
func New(backend Backend, opts ...Option) *Profile {
	p := &Profile{
		name:    strings.TrimSpace(backend.DefaultName()),
		backend: backend,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Backend returns the storage backend behind the profile.
func (p *Profile) Backend() Backend {
	return p.backend
}

// Name returns the name associated with the profile.
func (p *Profile) Name() string {
	return p.name
}

// DefaultName returns the backend's default name.
func (p *Profile) DefaultName() string {
	return p.backend.DefaultName()
}

// SetName renames the profile. The name is trimmed; setting the current
// name again is a no-op.
func (p *Profile) SetName(name string) error {
	if err := p.verifyNotReadOnly(); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == p.name {
		return nil
	}

	return p.Mutate(ChangeName, "", "", name, func() error {
		p.name = name
		return nil
	})
}

// ReadOnly reports whether the profile has been locked.
func (p *Profile) ReadOnly() bool {
	return p.readOnly
}

// SetReadOnly locks the profile. Once locked, a profile cannot be
// unlocked, and any further call fails with ErrInvalidState.
func (p *Profile) SetReadOnly(readOnly bool) error {
	if err := p.verifyNotReadOnly(); err != nil {
		return err
	}
	if readOnly == p.readOnly {
		return nil
	}

	return p.Mutate(ChangeReadOnly, "", "", readOnly, func() error {
		p.readOnly = readOnly
		return nil
	})
}

// OnChanging registers a handler invoked before every change.
func (p *Profile) OnChanging(h ChangingHandler) {
	p.changing = append(p.changing, h)
}

// OnChanged registers a handler invoked after every change.
func (p *Profile) OnChanged(h ChangedHandler) {
	p.changed = append(p.changed, h)
}

// Mutate brackets apply with the Changing and Changed notifications. If a
// Changing handler cancels, apply is not called and Mutate returns nil.
// Backends use it to report ChangeOther mutations.
func (p *Profile) Mutate(changeType ChangeType, section, entry string, value any, apply func() error) error {
	if err := p.verifyNotReadOnly(); err != nil {
		return err
	}

	proceed, err := p.raiseChangeEvent(true, changeType, section, entry, value)
	if err != nil {
		return err
	}
	if !proceed {
		p.logger.Debug("profile change cancelled",
			"profile", p.name, "type", changeType.String(), "section", section, "entry", entry)
		return nil
	}

	if err := apply(); err != nil {
		return err
	}

	_, err = p.raiseChangeEvent(false, changeType, section, entry, value)
	return err
}

// raiseChangeEvent runs one phase of the notification protocol. For the
// Changing phase it reports whether the caller should proceed.
func (p *Profile) raiseChangeEvent(changing bool, changeType ChangeType, section, entry string, value any) (bool, error) {
	if changing {
		if len(p.changing) == 0 {
			return true, nil
		}

		e := &ChangingArgs{ChangedArgs: NewChangedArgs(changeType, section, entry, value)}
		for _, h := range p.changing {
			if err := h(p, e); err != nil {
				return false, fmt.Errorf("changing handler for %s: %w", changeType, err)
			}
			if e.Cancel {
				break
			}
		}
		return !e.Cancel, nil
	}

	if len(p.changed) == 0 {
		return true, nil
	}

	e := NewChangedArgs(changeType, section, entry, value)
	for _, h := range p.changed {
		if err := h(p, e); err != nil {
			return true, fmt.Errorf("changed handler for %s: %w", changeType, err)
		}
	}
	return true, nil
}

// SetValue writes value to entry inside section. A nil value removes the
// entry. Every call is notified, even when the value does not change.
func (p *Profile) SetValue(section, entry string, value any) error {
	if err := p.verifyNotReadOnly(); err != nil {
		return err
	}
	if err := p.verifyName(); err != nil {
		return err
	}
	section, entry, err := adjustSectionEntry(section, entry)
	if err != nil {
		return err
	}

	return p.Mutate(ChangeSetValue, section, entry, value, func() error {
		return p.backend.SetValue(p.name, section, entry, value)
	})
}

// Value returns the value of entry inside section, or nil if the entry
// does not exist.
func (p *Profile) Value(section, entry string) (any, error) {
	if err := p.verifyName(); err != nil {
		return nil, err
	}
	section, entry, err := adjustSectionEntry(section, entry)
	if err != nil {
		return nil, err
	}
	return p.backend.Value(p.name, section, entry)
}

// RemoveEntry removes entry from section.
func (p *Profile) RemoveEntry(section, entry string) error {
	if err := p.verifyNotReadOnly(); err != nil {
		return err
	}
	if err := p.verifyName(); err != nil {
		return err
	}
	section, entry, err := adjustSectionEntry(section, entry)
	if err != nil {
		return err
	}

	return p.Mutate(ChangeRemoveEntry, section, entry, nil, func() error {
		return p.backend.RemoveEntry(p.name, section, entry)
	})
}

// RemoveSection removes section and all of its entries.
func (p *Profile) RemoveSection(section string) error {
	if err := p.verifyNotReadOnly(); err != nil {
		return err
	}
	if err := p.verifyName(); err != nil {
		return err
	}
	section, err := adjustSection(section)
	if err != nil {
		return err
	}

	return p.Mutate(ChangeRemoveSection, section, "", nil, func() error {
		return p.backend.RemoveSection(p.name, section)
	})
}

// SectionNames returns the names of all sections, or nil if the backend's
// data source does not exist.
func (p *Profile) SectionNames() ([]string, error) {
	if err := p.verifyName(); err != nil {
		return nil, err
	}
	return p.backend.SectionNames(p.name)
}

// EntryNames returns the names of the entries inside section, or nil if
// the section does not exist.
func (p *Profile) EntryNames(section string) ([]string, error) {
	if err := p.verifyName(); err != nil {
		return nil, err
	}
	section, err := adjustSection(section)
	if err != nil {
		return nil, err
	}
	return p.backend.EntryNames(p.name, section)
}

// HasSection reports whether section exists.
func (p *Profile) HasSection(section string) (bool, error) {
	section, err := adjustSection(section)
	if err != nil {
		return false, err
	}
	sections, err := p.SectionNames()
	if err != nil {
		return false, err
	}
	return slices.Contains(sections, section), nil
}

// HasEntry reports whether entry exists inside section.
func (p *Profile) HasEntry(section, entry string) (bool, error) {
	entries, err := p.EntryNames(section)
	if err != nil || entries == nil {
		return false, err
	}
	entry, err = adjustEntry(entry)
	if err != nil {
		return false, err
	}
	return slices.Contains(entries, entry), nil
}

// Clone returns an independent copy of the profile. The copy keeps the
// name, the read-only flag and its own copy of both handler lists.
func (p *Profile) Clone() (*Profile, error) {
	backend, err := p.backend.Clone()
	if err != nil {
		return nil, fmt.Errorf("failed to clone backend: %w", err)
	}

	return &Profile{
		name:     p.name,
		readOnly: p.readOnly,
		backend:  backend,
		logger:   p.logger,
		changing: slices.Clone(p.changing),
		changed:  slices.Clone(p.changed),
	}, nil
}

// CloneReadOnly returns a locked copy of the profile, suitable for handing
// to code that must not modify it. No notifications are raised.
func (p *Profile) CloneReadOnly() (ReadOnlyProfile, error) {
	clone, err := p.Clone()
	if err != nil {
		return nil, err
	}
	clone.readOnly = true
	return clone, nil
}

func (p *Profile) verifyNotReadOnly() error {
	if p.readOnly {
		return fmt.Errorf("%w: operation not allowed because the profile is read-only", ErrInvalidState)
	}
	return nil
}

func (p *Profile) verifyName() error {
	if p.name == "" {
		return fmt.Errorf("%w: operation not allowed because the profile name is empty", ErrInvalidState)
	}
	return nil
}

func adjustSection(section string) (string, error) {
	section = strings.TrimSpace(section)
	if section == "" {
		return "", fmt.Errorf("%w: section name is required", ErrInvalidArgument)
	}
	return section, nil
}

func adjustEntry(entry string) (string, error) {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return "", fmt.Errorf("%w: entry name is required", ErrInvalidArgument)
	}
	return entry, nil
}

func adjustSectionEntry(section, entry string) (string, string, error) {
	section, err := adjustSection(section)
	if err != nil {
		return "", "", err
	}
	entry, err = adjustEntry(entry)
	if err != nil {
		return "", "", err
	}
	return section, entry, nil
}
