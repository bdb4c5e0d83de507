package storage

import (
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"reflect"

	"github.com/keeper-security/ksm-profile/pkg/dataset"
	"github.com/keeper-security/ksm-profile/pkg/profile"
	"github.com/spf13/cast"
	_ "modernc.org/sqlite"
)

// Ensure SQLiteBackend implements profile.Backend
var _ profile.Backend = (*SQLiteBackend)(nil)

// SQLiteDefaultName is the default profile key inside the database.
const SQLiteDefaultName = "default"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS profile_entries (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	profile TEXT NOT NULL,
	section TEXT NOT NULL,
	entry   TEXT NOT NULL,
	kind    TEXT NOT NULL,
	value   TEXT NOT NULL,
	UNIQUE (profile, section, entry)
);
CREATE INDEX IF NOT EXISTS idx_profile_entries_section ON profile_entries (profile, section);
`

// SQLiteBackend stores any number of profiles in one SQLite database,
// keyed by profile name. A section exists while it has at least one entry.
// Clones share the database.
type SQLiteBackend struct {
	db     *sql.DB
	logger *slog.Logger
}

// SQLiteOption configures a SQLiteBackend
type SQLiteOption func(*SQLiteBackend)

// WithSQLiteLogger sets the logger
func WithSQLiteLogger(logger *slog.Logger) SQLiteOption {
	return func(b *SQLiteBackend) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewSQLiteBackend opens (and if needed creates) the database at path.
// Use ":memory:" for a throwaway database.
func NewSQLiteBackend(path string, opts ...SQLiteOption) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and serializes writes
	db.SetMaxOpenConns(1)

	b := &SQLiteBackend{
		db:     db,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(b)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	b.logger.Debug("sqlite profile store opened", "path", path)
	return b, nil
}

// Close closes the database
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

// DefaultName returns SQLiteDefaultName
func (b *SQLiteBackend) DefaultName() string {
	return SQLiteDefaultName
}

// Profiles returns the names of all profiles stored in the database
func (b *SQLiteBackend) Profiles() ([]string, error) {
	return b.queryNames(`SELECT profile FROM profile_entries GROUP BY profile ORDER BY profile`)
}

// SectionNames returns nil if the profile has no entries
func (b *SQLiteBackend) SectionNames(name string) ([]string, error) {
	return b.queryNames(`SELECT section FROM profile_entries WHERE profile = ?
		GROUP BY section ORDER BY MIN(id)`, name)
}

// EntryNames returns nil if the section has no entries
func (b *SQLiteBackend) EntryNames(name, section string) ([]string, error) {
	return b.queryNames(`SELECT entry FROM profile_entries WHERE profile = ? AND section = ?
		ORDER BY id`, name, section)
}

// Value returns the stored value converted back to its original type
func (b *SQLiteBackend) Value(name, section, entry string) (any, error) {
	var kind, raw string
	err := b.db.QueryRow(`SELECT kind, value FROM profile_entries
		WHERE profile = ? AND section = ? AND entry = ?`, name, section, entry).Scan(&kind, &raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s/%s: %w", section, entry, err)
	}

	typ := dataset.TypeByName(kind)
	if typ == nil {
		return nil, fmt.Errorf("entry %s/%s has unknown type %q", section, entry, kind)
	}
	return dataset.Convert(raw, typ)
}

// SetValue upserts the entry, keeping its position; nil deletes it
func (b *SQLiteBackend) SetValue(name, section, entry string, value any) error {
	if value == nil {
		return b.RemoveEntry(name, section, entry)
	}

	kind := reflect.TypeOf(value).String()
	if dataset.TypeByName(kind) == nil {
		return fmt.Errorf("entry %s/%s: unsupported value type %s", section, entry, kind)
	}
	raw, err := cast.ToStringE(value)
	if err != nil {
		return fmt.Errorf("entry %s/%s: %w", section, entry, err)
	}

	_, err = b.db.Exec(`INSERT INTO profile_entries (profile, section, entry, kind, value)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (profile, section, entry) DO UPDATE SET kind = excluded.kind, value = excluded.value`,
		name, section, entry, kind, raw)
	if err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", section, entry, err)
	}
	return nil
}

// RemoveEntry deletes one entry
func (b *SQLiteBackend) RemoveEntry(name, section, entry string) error {
	_, err := b.db.Exec(`DELETE FROM profile_entries WHERE profile = ? AND section = ? AND entry = ?`,
		name, section, entry)
	if err != nil {
		return fmt.Errorf("failed to remove %s/%s: %w", section, entry, err)
	}
	return nil
}

// RemoveSection deletes every entry of a section
func (b *SQLiteBackend) RemoveSection(name, section string) error {
	_, err := b.db.Exec(`DELETE FROM profile_entries WHERE profile = ? AND section = ?`, name, section)
	if err != nil {
		return fmt.Errorf("failed to remove section %s: %w", section, err)
	}
	return nil
}

// Clone returns a backend sharing the same database
func (b *SQLiteBackend) Clone() (profile.Backend, error) {
	clone := *b
	return &clone, nil
}

func (b *SQLiteBackend) queryNames(query string, args ...any) ([]string, error) {
	rows, err := b.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
