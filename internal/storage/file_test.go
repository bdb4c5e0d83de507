package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/keeper-security/ksm-profile/internal/crypto"
	"github.com/keeper-security/ksm-profile/pkg/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPassword = "correct-horse-battery"

func newFileProfile(t *testing.T, codec Codec) (*profile.Profile, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings"+codec.Extension())
	b := NewFileBackend(codec)
	return profile.New(b, profile.WithName(path)), path
}

func TestFileBackendDefaultName(t *testing.T) {
	assert.Equal(t, "profile.ini", NewFileBackend(IniCodec{}).DefaultName())
	assert.Equal(t, "profile.yaml", NewFileBackend(YAMLCodec{}).DefaultName())

	b := NewFileBackend(TOMLCodec{}, WithBaseName(filepath.Join("conf", "app")))
	assert.Equal(t, filepath.Join("conf", "app.toml"), b.DefaultName())
}

func TestFileBackendMissingFile(t *testing.T) {
	for _, codec := range []Codec{IniCodec{}, YAMLCodec{}, TOMLCodec{}, NewJSONCodec(nil)} {
		t.Run(codec.Extension(), func(t *testing.T) {
			p, path := newFileProfile(t, codec)

			sections, err := p.SectionNames()
			require.NoError(t, err)
			assert.Nil(t, sections)

			value, err := p.Value("A", "x")
			require.NoError(t, err)
			assert.Nil(t, value)

			require.NoError(t, p.RemoveSection("A"))
			_, err = os.Stat(path)
			assert.True(t, os.IsNotExist(err), "removing from a missing file must not create it")
		})
	}
}

func TestFileBackendRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		codec Codec
		width any
		ratio any
		wrap  any
	}{
		{"ini stores strings", IniCodec{}, "800", "1.5", "true"},
		{"yaml keeps scalar types", YAMLCodec{}, 800, 1.5, true},
		{"toml widens integers", TOMLCodec{}, int64(800), 1.5, true},
		{"json keeps exact types", NewJSONCodec(nil), 800, 1.5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, path := newFileProfile(t, tt.codec)
			require.NoError(t, p.SetValue("Window", "Width", 800))
			require.NoError(t, p.SetValue("Window", "Ratio", 1.5))
			require.NoError(t, p.SetValue("Editor", "Wrap", true))
			require.NoError(t, p.SetValue("Editor", "Font", "mono"))

			// A second profile over the same file sees the persisted data
			reopened := profile.New(NewFileBackend(tt.codec), profile.WithName(path))

			width, err := reopened.Value("Window", "Width")
			require.NoError(t, err)
			assert.Equal(t, tt.width, width)

			ratio, err := reopened.Value("Window", "Ratio")
			require.NoError(t, err)
			assert.Equal(t, tt.ratio, ratio)

			wrap, err := reopened.Value("Editor", "Wrap")
			require.NoError(t, err)
			assert.Equal(t, tt.wrap, wrap)

			font, err := reopened.Value("Editor", "Font")
			require.NoError(t, err)
			assert.Equal(t, "mono", font)

			// Typed access works regardless of the stored representation
			w, err := profile.GetValue[int](reopened, "Window", "Width")
			require.NoError(t, err)
			assert.Equal(t, 800, w)
		})
	}
}

func TestFileBackendPreservesOrder(t *testing.T) {
	for _, codec := range []Codec{IniCodec{}, YAMLCodec{}, NewJSONCodec(nil)} {
		t.Run(codec.Extension(), func(t *testing.T) {
			p, _ := newFileProfile(t, codec)
			require.NoError(t, p.SetValue("Zeta", "b", "1"))
			require.NoError(t, p.SetValue("Zeta", "a", "2"))
			require.NoError(t, p.SetValue("Alpha", "c", "3"))

			sections, err := p.SectionNames()
			require.NoError(t, err)
			assert.Equal(t, []string{"Zeta", "Alpha"}, sections)

			entries, err := p.EntryNames("Zeta")
			require.NoError(t, err)
			assert.Equal(t, []string{"b", "a"}, entries)
		})
	}
}

func TestFileBackendTOMLSortsNames(t *testing.T) {
	p, _ := newFileProfile(t, TOMLCodec{})
	require.NoError(t, p.SetValue("Zeta", "b", "1"))
	require.NoError(t, p.SetValue("Zeta", "a", "2"))
	require.NoError(t, p.SetValue("Alpha", "c", "3"))

	sections, err := p.SectionNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha", "Zeta"}, sections)

	entries, err := p.EntryNames("Zeta")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, entries)
}

func TestFileBackendEmptySectionSurvives(t *testing.T) {
	for _, codec := range []Codec{IniCodec{}, YAMLCodec{}, NewJSONCodec(nil)} {
		t.Run(codec.Extension(), func(t *testing.T) {
			p, _ := newFileProfile(t, codec)
			require.NoError(t, p.SetValue("A", "x", "1"))
			require.NoError(t, p.RemoveEntry("A", "x"))

			has, err := p.HasSection("A")
			require.NoError(t, err)
			assert.True(t, has)

			entries, err := p.EntryNames("A")
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestFileBackendRejectsUnrepresentableNames(t *testing.T) {
	p, path := newFileProfile(t, IniCodec{})

	err := p.SetValue("bad]section", "x", "1")
	assert.True(t, errors.Is(err, ErrNameNotRepresentable))

	err = p.SetValue("A", "key=value", "1")
	assert.True(t, errors.Is(err, ErrNameNotRepresentable))

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestFileBackendFilePermissions(t *testing.T) {
	p, path := newFileProfile(t, YAMLCodec{})
	require.NoError(t, p.SetValue("A", "x", "1"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file must be renamed away")
}

func TestFileBackendCloneSharesFile(t *testing.T) {
	p, _ := newFileProfile(t, IniCodec{})
	require.NoError(t, p.SetValue("A", "x", "1"))

	clone, err := p.Clone()
	require.NoError(t, err)
	require.NoError(t, clone.SetValue("A", "x", "2"))

	value, err := p.Value("A", "x")
	require.NoError(t, err)
	assert.Equal(t, "2", value)
}

func TestIniCodecSkipsDefaultSection(t *testing.T) {
	doc, err := IniCodec{}.Decode([]byte("orphan = 1\n\n[A]\nx = 1 ; not a comment\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"A"}, doc.SectionNames())
	assert.Equal(t, "1 ; not a comment", doc.Value("A", "x"))
}

func TestYAMLCodecRejectsScalarSection(t *testing.T) {
	_, err := YAMLCodec{}.Decode([]byte("A: 1\n"))
	assert.Error(t, err)

	doc, err := YAMLCodec{}.Decode([]byte("A:\nB:\n  x: 1\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, doc.SectionNames())
	assert.Empty(t, doc.EntryNames("A"))
}

func TestTOMLCodecRejectsTopLevelKey(t *testing.T) {
	_, err := TOMLCodec{}.Decode([]byte("x = 1\n"))
	assert.Error(t, err)
}

func TestJSONCodecSealed(t *testing.T) {
	sealer, err := crypto.NewSealer(testPassword)
	require.NoError(t, err)
	defer sealer.Close()

	codec := NewJSONCodec(sealer)
	p, path := newFileProfile(t, codec)
	require.NoError(t, p.SetValue("Database", "Password", "hunter2-hunter2"))
	require.NoError(t, p.SetValue("Database", "Port", uint16(5432)))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(raw), "hunter2"), "sealed file must not contain plaintext")
	assert.Contains(t, string(raw), `"encrypted": true`)

	port, err := p.Value("Database", "Port")
	require.NoError(t, err)
	assert.Equal(t, uint16(5432), port)

	// Without the password the file cannot be read
	locked := profile.New(NewFileBackend(NewJSONCodec(nil)), profile.WithName(path))
	_, err = locked.Value("Database", "Port")
	assert.True(t, errors.Is(err, ErrLocked))

	// With the wrong password neither
	other, err := crypto.NewSealer("another-long-password")
	require.NoError(t, err)
	wrong := profile.New(NewFileBackend(NewJSONCodec(other)), profile.WithName(path))
	_, err = wrong.Value("Database", "Port")
	assert.True(t, errors.Is(err, crypto.ErrWrongPassword))
}

func TestJSONCodecDetectsTampering(t *testing.T) {
	p, path := newFileProfile(t, NewJSONCodec(nil))
	require.NoError(t, p.SetValue("A", "x", "original"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	tampered := strings.Replace(string(raw), "original", "modified", 1)
	require.NoError(t, os.WriteFile(path, []byte(tampered), 0600))

	_, err = p.Value("A", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum")
}

func TestJSONCodecRejectsUnsupportedValue(t *testing.T) {
	p, _ := newFileProfile(t, NewJSONCodec(nil))
	err := p.SetValue("A", "x", []string{"a"})
	assert.Error(t, err)
}
