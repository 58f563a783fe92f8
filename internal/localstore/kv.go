// Package localstore is the device-side persistence adapter. It models the
// browser local-storage contract: a handful of well-known keys, each holding
// one JSON blob, with every write replacing the whole value. The adapter is
// the sole writer within a single app context; concurrent writers are
// last-write-wins at whole-collection granularity.
package localstore

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Storage keys. One blob per key, mirroring the web app's local storage.
const (
	KeyLoops    = "doloop.loops"
	KeyFolders  = "doloop.folders"
	KeyNavState = "doloop.navstate"
)

// KV is the minimal key-value contract the adapter persists through.
type KV interface {
	// Get returns the stored blob for key, with ok=false when absent.
	Get(key string) (value []byte, ok bool, err error)
	// Set replaces the stored blob for key.
	Set(key string, value []byte) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error
}

// FileKV stores each key as a file under a base directory.
type FileKV struct {
	dir string
	mu  sync.Mutex
}

// NewFileKV creates the base directory if needed and returns a file-backed KV.
func NewFileKV(dir string) (*FileKV, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileKV{dir: dir}, nil
}

func (f *FileKV) path(key string) string {
	// Keys are dotted identifiers; keep them filesystem-safe.
	name := strings.ReplaceAll(key, string(os.PathSeparator), "_")
	return filepath.Join(f.dir, name+".json")
}

func (f *FileKV) Get(key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, err := os.ReadFile(f.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (f *FileKV) Set(key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	tmp := f.path(key) + ".tmp"
	if err := os.WriteFile(tmp, value, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, f.path(key))
}

func (f *FileKV) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := os.Remove(f.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// MemKV is an in-memory KV for tests and ephemeral sessions.
type MemKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewMemKV returns an empty in-memory KV.
func NewMemKV() *MemKV {
	return &MemKV{data: make(map[string][]byte)}
}

func (m *MemKV) Get(key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, true, nil
}

func (m *MemKV) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := make([]byte, len(value))
	copy(b, value)
	m.data[key] = b
	return nil
}

func (m *MemKV) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
