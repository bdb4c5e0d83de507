package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/keeper-security/ksm-profile/internal/crypto"
	"github.com/keeper-security/ksm-profile/pkg/profile"
)

// ErrUnsupportedBackend is returned for an unknown backend kind
var ErrUnsupportedBackend = errors.New("unsupported backend")

// Lister is implemented by backends that hold several named profiles
type Lister interface {
	Profiles() ([]string, error)
}

var (
	_ Lister = (*MemoryBackend)(nil)
	_ Lister = (*SQLiteBackend)(nil)
)

// Kind names a storage backend
type Kind string

const (
	KindMemory Kind = "memory"
	KindIni    Kind = "ini"
	KindYAML   Kind = "yaml"
	KindTOML   Kind = "toml"
	KindJSON   Kind = "json"
	KindSQLite Kind = "sqlite"
	KindKeeper Kind = "keeper"
)

// Kinds lists every supported backend kind
func Kinds() []Kind {
	return []Kind{KindMemory, KindIni, KindYAML, KindTOML, KindJSON, KindSQLite, KindKeeper}
}

// Options selects and configures a backend
type Options struct {
	Kind Kind

	// DataDir holds file profiles and the SQLite database
	DataDir string

	// MasterPassword seals JSON profiles when set
	MasterPassword string

	// Notes and DefaultUID configure the Keeper backend
	Notes      NotesStore
	DefaultUID string

	Logger *slog.Logger
}

// Open creates the backend described by opts
func Open(opts Options) (profile.Backend, error) {
	switch opts.Kind {
	case KindMemory, "":
		return NewMemoryBackend(), nil
	case KindIni, KindYAML, KindTOML, KindJSON:
		codec, err := CodecFor(opts.Kind, opts.MasterPassword)
		if err != nil {
			return nil, err
		}
		return NewFileBackend(codec, WithBaseName(filepath.Join(opts.DataDir, DefaultBaseName))), nil
	case KindSQLite:
		if opts.DataDir != "" {
			if err := os.MkdirAll(opts.DataDir, 0700); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
		return NewSQLiteBackend(filepath.Join(opts.DataDir, "profiles.db"), WithSQLiteLogger(opts.Logger))
	case KindKeeper:
		if opts.Notes == nil {
			return nil, fmt.Errorf("%w: keeper backend requires a vault connection", ErrUnsupportedBackend)
		}
		return NewKeeperBackend(opts.Notes, opts.DefaultUID), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedBackend, opts.Kind)
	}
}

// CodecFor returns the file codec for kind
func CodecFor(kind Kind, masterPassword string) (Codec, error) {
	switch kind {
	case KindIni:
		return IniCodec{}, nil
	case KindYAML:
		return YAMLCodec{}, nil
	case KindTOML:
		return TOMLCodec{}, nil
	case KindJSON:
		if masterPassword == "" {
			return NewJSONCodec(nil), nil
		}
		sealer, err := crypto.NewSealer(masterPassword)
		if err != nil {
			return nil, fmt.Errorf("invalid master password: %w", err)
		}
		return NewJSONCodec(sealer), nil
	default:
		return nil, fmt.Errorf("%w: %q is not a file format", ErrUnsupportedBackend, kind)
	}
}

// KindFromPath infers a file backend kind from a file extension
func KindFromPath(path string) (Kind, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ini":
		return KindIni, nil
	case ".yaml", ".yml":
		return KindYAML, nil
	case ".toml":
		return KindTOML, nil
	case ".json":
		return KindJSON, nil
	case ".db", ".sqlite":
		return KindSQLite, nil
	default:
		return "", fmt.Errorf("%w: cannot infer format of %s", ErrUnsupportedBackend, path)
	}
}
