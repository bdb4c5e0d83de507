package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBackendUnknownProfile(t *testing.T) {
	b := NewMemoryBackend()

	sections, err := b.SectionNames("missing")
	require.NoError(t, err)
	assert.Nil(t, sections)

	entries, err := b.EntryNames("missing", "A")
	require.NoError(t, err)
	assert.Nil(t, entries)

	value, err := b.Value("missing", "A", "x")
	require.NoError(t, err)
	assert.Nil(t, value)

	// Removing from a profile that does not exist is not an error
	assert.NoError(t, b.RemoveEntry("missing", "A", "x"))
	assert.NoError(t, b.RemoveSection("missing", "A"))

	// Writing nil must not create the profile
	require.NoError(t, b.SetValue("missing", "A", "x", nil))
	names, err := b.Profiles()
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestMemoryBackendKeepsOrderAndTypes(t *testing.T) {
	b := NewMemoryBackend()
	require.NoError(t, b.SetValue("p", "Window", "Width", 800))
	require.NoError(t, b.SetValue("p", "Window", "Title", "main"))
	require.NoError(t, b.SetValue("p", "Editor", "Wrap", true))
	require.NoError(t, b.SetValue("p", "Window", "Width", 1024))

	sections, err := b.SectionNames("p")
	require.NoError(t, err)
	assert.Equal(t, []string{"Window", "Editor"}, sections)

	entries, err := b.EntryNames("p", "Window")
	require.NoError(t, err)
	assert.Equal(t, []string{"Width", "Title"}, entries)

	value, err := b.Value("p", "Window", "Width")
	require.NoError(t, err)
	assert.Equal(t, 1024, value)

	value, err = b.Value("p", "Editor", "Wrap")
	require.NoError(t, err)
	assert.Equal(t, true, value)
}

func TestMemoryBackendRemove(t *testing.T) {
	b := NewMemoryBackend()
	require.NoError(t, b.SetValue("p", "A", "x", 1))
	require.NoError(t, b.SetValue("p", "A", "y", 2))
	require.NoError(t, b.SetValue("p", "B", "z", 3))

	require.NoError(t, b.RemoveEntry("p", "A", "x"))
	entries, _ := b.EntryNames("p", "A")
	assert.Equal(t, []string{"y"}, entries)

	// A nil value removes the entry but keeps the section
	require.NoError(t, b.SetValue("p", "A", "y", nil))
	entries, _ = b.EntryNames("p", "A")
	assert.Empty(t, entries)
	assert.NotNil(t, entries)

	require.NoError(t, b.RemoveSection("p", "A"))
	sections, _ := b.SectionNames("p")
	assert.Equal(t, []string{"B"}, sections)
}

func TestMemoryBackendProfilesAreIsolated(t *testing.T) {
	b := NewMemoryBackend()
	require.NoError(t, b.SetValue("b", "A", "x", 1))
	require.NoError(t, b.SetValue("a", "A", "x", 2))

	names, err := b.Profiles()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)

	value, _ := b.Value("a", "A", "x")
	assert.Equal(t, 2, value)
}

func TestMemoryBackendClone(t *testing.T) {
	b := NewMemoryBackend()
	require.NoError(t, b.SetValue("p", "A", "x", 1))

	cloned, err := b.Clone()
	require.NoError(t, err)

	require.NoError(t, cloned.SetValue("p", "A", "x", 2))
	require.NoError(t, cloned.SetValue("p", "B", "y", 3))

	value, _ := b.Value("p", "A", "x")
	assert.Equal(t, 1, value, "clone writes must not reach the original")

	sections, _ := b.SectionNames("p")
	assert.Equal(t, []string{"A"}, sections)
}
