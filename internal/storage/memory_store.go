package storage

import (
	"sort"
	"sync"

	"github.com/keeper-security/ksm-profile/pkg/profile"
)

// Ensure MemoryBackend implements profile.Backend
var _ profile.Backend = (*MemoryBackend)(nil)

// MemoryDefaultName is the default profile name of a MemoryBackend.
const MemoryDefaultName = "memory"

// MemoryBackend keeps named profile documents in memory. It is mostly
// useful for tests and as a scratch target for conversions.
type MemoryBackend struct {
	mu   sync.RWMutex
	docs map[string]*Document
}

// NewMemoryBackend creates an empty in-memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		docs: make(map[string]*Document),
	}
}

// DefaultName returns MemoryDefaultName
func (m *MemoryBackend) DefaultName() string {
	return MemoryDefaultName
}

// Profiles returns the names of all stored profile documents
func (m *MemoryBackend) Profiles() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.docs))
	for name := range m.docs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// SectionNames returns nil until something has been written under name
func (m *MemoryBackend) SectionNames(name string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, exists := m.docs[name]
	if !exists {
		return nil, nil
	}
	return doc.SectionNames(), nil
}

// EntryNames returns the entries of section
func (m *MemoryBackend) EntryNames(name, section string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, exists := m.docs[name]
	if !exists {
		return nil, nil
	}
	return doc.EntryNames(section), nil
}

// Value returns the stored value or nil
func (m *MemoryBackend) Value(name, section, entry string) (any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, exists := m.docs[name]
	if !exists {
		return nil, nil
	}
	return doc.Value(section, entry), nil
}

// SetValue writes or, for nil, removes an entry
func (m *MemoryBackend) SetValue(name, section, entry string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, exists := m.docs[name]
	if !exists {
		if value == nil {
			return nil
		}
		doc = NewDocument()
		m.docs[name] = doc
	}
	doc.Set(section, entry, value)
	return nil
}

// RemoveEntry removes an entry if present
func (m *MemoryBackend) RemoveEntry(name, section, entry string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if doc, exists := m.docs[name]; exists {
		doc.RemoveEntry(section, entry)
	}
	return nil
}

// RemoveSection removes a section if present
func (m *MemoryBackend) RemoveSection(name, section string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if doc, exists := m.docs[name]; exists {
		doc.RemoveSection(section)
	}
	return nil
}

// Clone deep-copies every stored document
func (m *MemoryBackend) Clone() (profile.Backend, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	clone := NewMemoryBackend()
	for name, doc := range m.docs {
		clone.docs[name] = doc.Clone()
	}
	return clone, nil
}
