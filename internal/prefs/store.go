// ABOUTME: Key-value preference persistence
// ABOUTME: JSON file store for matched frequencies and waveform/notch settings
package prefs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

// Well-known preference keys.
const (
	KeyMatchedFreqLeft  = "matchedFrequencyLeft"
	KeyMatchedFreqRight = "matchedFrequencyRight"
	KeyWaveform         = "waveform"
	KeyEarSelection     = "earSelection"
	KeyNotchCenter      = "notchCenter"
	KeyNotchWidth       = "notchWidth"
	KeyNotchDepth       = "notchDepth"
	KeyNoiseColor       = "noiseColor"
	KeyMasterVolume     = "masterVolume"
)

// Store is the simple key-value contract the engine persists through.
// Values are loaded once at init and saved on change.
type Store interface {
	GetFloat(key string) (float64, bool)
	SetFloat(key string, value float64)
	GetString(key string) (string, bool)
	SetString(key string, value string)
	// Flush writes pending changes to the backing medium.
	Flush() error
}

// FileStore persists preferences to a JSON file.
type FileStore struct {
	path string

	mu     sync.Mutex
	values map[string]json.RawMessage
}

// NewFileStore opens (or creates) the preference file at path.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		path:   path,
		values: make(map[string]json.RawMessage),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read preferences: %w", err)
	}
	if err := json.Unmarshal(data, &s.values); err != nil {
		// A corrupt preference file is recoverable: start fresh rather
		// than refusing to boot the engine.
		logrus.WithFields(logrus.Fields{
			"path":  path,
			"error": err.Error(),
		}).Warn("preference file unreadable; starting with defaults")
		s.values = make(map[string]json.RawMessage)
	}
	return s, nil
}

func (s *FileStore) GetFloat(key string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok := s.values[key]
	if !ok {
		return 0, false
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	return v, true
}

func (s *FileStore) SetFloat(key string, value float64) {
	raw, _ := json.Marshal(value)
	s.mu.Lock()
	s.values[key] = raw
	s.mu.Unlock()
}

func (s *FileStore) GetString(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok := s.values[key]
	if !ok {
		return "", false
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}
	return v, true
}

func (s *FileStore) SetString(key, value string) {
	raw, _ := json.Marshal(value)
	s.mu.Lock()
	s.values[key] = raw
	s.mu.Unlock()
}

// Flush writes the store atomically (write temp file, then rename).
func (s *FileStore) Flush() error {
	s.mu.Lock()
	data, err := json.MarshalIndent(s.values, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".prefs-*")
	if err != nil {
		return fmt.Errorf("failed to create preference temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace preference file: %w", err)
	}
	return nil
}

// MemoryStore is an in-memory Store for tests and ephemeral sessions.
type MemoryStore struct {
	mu      sync.Mutex
	floats  map[string]float64
	strings map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		floats:  make(map[string]float64),
		strings: make(map[string]string),
	}
}

func (m *MemoryStore) GetFloat(key string) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.floats[key]
	return v, ok
}

func (m *MemoryStore) SetFloat(key string, value float64) {
	m.mu.Lock()
	m.floats[key] = value
	m.mu.Unlock()
}

func (m *MemoryStore) GetString(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.strings[key]
	return v, ok
}

func (m *MemoryStore) SetString(key, value string) {
	m.mu.Lock()
	m.strings[key] = value
	m.mu.Unlock()
}

func (m *MemoryStore) Flush() error { return nil }
