package profile

import "github.com/keeper-security/ksm-profile/pkg/dataset"

// Backend supplies the storage primitives a Profile is built on.
//
// Each primitive receives the profile's current name, which backends
// interpret as they see fit (a file path, a database key, a record UID).
// Section and entry names are already trimmed and non-empty. A nil slice
// from SectionNames or EntryNames and a nil value from Value mean "absent";
// an empty slice means "exists but is empty".
type Backend interface {
	DefaultName() string
	SectionNames(name string) ([]string, error)
	EntryNames(name, section string) ([]string, error)
	Value(name, section, entry string) (any, error)
	// SetValue writes value, or removes the entry when value is nil.
	SetValue(name, section, entry string, value any) error
	RemoveEntry(name, section, entry string) error
	RemoveSection(name, section string) error
	// Clone returns an independent copy of the backend's state.
	Clone() (Backend, error)
}

// ReadOnlyProfile is the query surface of a profile. It has no mutating
// operations and no way to subscribe to changes.
type ReadOnlyProfile interface {
	Name() string
	DefaultName() string
	ReadOnly() bool
	Value(section, entry string) (any, error)
	HasEntry(section, entry string) (bool, error)
	HasSection(section string) (bool, error)
	SectionNames() ([]string, error)
	EntryNames(section string) ([]string, error)
	DataSet() (*dataset.DataSet, error)
	Clone() (*Profile, error)
}
