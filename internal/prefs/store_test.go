// ABOUTME: Tests for preference persistence
// ABOUTME: Covers file round trips, corrupt files, and the memory store
package prefs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")

	s, err := NewFileStore(path)
	require.NoError(t, err)

	s.SetFloat(KeyMatchedFreqLeft, 6300.5)
	s.SetString(KeyWaveform, "triangle")
	require.NoError(t, s.Flush())

	// A fresh store reads the persisted values back.
	s2, err := NewFileStore(path)
	require.NoError(t, err)

	f, ok := s2.GetFloat(KeyMatchedFreqLeft)
	assert.True(t, ok)
	assert.Equal(t, 6300.5, f)

	w, ok := s2.GetString(KeyWaveform)
	assert.True(t, ok)
	assert.Equal(t, "triangle", w)
}

func TestFileStoreMissingKey(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "prefs.json"))
	require.NoError(t, err)

	_, ok := s.GetFloat("nope")
	assert.False(t, ok)
	_, ok = s.GetString("nope")
	assert.False(t, ok)
}

func TestFileStoreTypeMismatch(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "prefs.json"))
	require.NoError(t, err)

	s.SetString(KeyNoiseColor, "pink")
	_, ok := s.GetFloat(KeyNoiseColor)
	assert.False(t, ok, "string value must not decode as float")
}

func TestFileStoreCorruptFileStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s, err := NewFileStore(path)
	require.NoError(t, err, "corrupt file must not fail construction")

	_, ok := s.GetFloat(KeyMasterVolume)
	assert.False(t, ok)

	// The store remains writable and flushes over the corrupt file.
	s.SetFloat(KeyMasterVolume, 0.6)
	require.NoError(t, s.Flush())

	s2, err := NewFileStore(path)
	require.NoError(t, err)
	v, ok := s2.GetFloat(KeyMasterVolume)
	assert.True(t, ok)
	assert.Equal(t, 0.6, v)
}

func TestFileStoreOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	s, err := NewFileStore(path)
	require.NoError(t, err)

	s.SetFloat(KeyNotchCenter, 4000)
	s.SetFloat(KeyNotchCenter, 8000)
	require.NoError(t, s.Flush())

	v, ok := s.GetFloat(KeyNotchCenter)
	assert.True(t, ok)
	assert.Equal(t, 8000.0, v)
}

func TestMemoryStore(t *testing.T) {
	m := NewMemoryStore()

	m.SetFloat(KeyNotchDepth, 0.75)
	v, ok := m.GetFloat(KeyNotchDepth)
	assert.True(t, ok)
	assert.Equal(t, 0.75, v)

	m.SetString(KeyEarSelection, "2")
	s, ok := m.GetString(KeyEarSelection)
	assert.True(t, ok)
	assert.Equal(t, "2", s)

	assert.NoError(t, m.Flush())
}
