package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Store is the durable boolean key/value store shared by every execution
// context (background, tabs, popup). Absent keys read as false. Writes are
// last-write-wins; there is no cross-context locking.
type Store interface {
	// Get returns the values for keys. Missing keys are reported as false.
	Get(ctx context.Context, keys ...string) (map[string]bool, error)

	// Set persists a single value.
	Set(ctx context.Context, key string, value bool) error

	// Watch registers fn for changes made through this store. The returned
	// function removes the watcher.
	Watch(fn ChangeFunc) (cancel func())
}

// Change describes a single persisted write.
type Change struct {
	Key      string
	Value    bool
	Previous bool
}

// ChangeFunc receives store changes. It is called after the write is durable
// and must not block.
type ChangeFunc func(Change)

// watchers fans changes out to registered ChangeFuncs. Embedded by every
// Store implementation.
type watchers struct {
	mu     sync.Mutex
	nextID int
	fns    map[int]ChangeFunc
}

func (w *watchers) Watch(fn ChangeFunc) func() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.fns == nil {
		w.fns = make(map[int]ChangeFunc)
	}
	id := w.nextID
	w.nextID++
	w.fns[id] = fn

	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.fns, id)
	}
}

func (w *watchers) emit(c Change) {
	w.mu.Lock()
	fns := make([]ChangeFunc, 0, len(w.fns))
	for _, fn := range w.fns {
		fns = append(fns, fn)
	}
	w.mu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}

// FileStore implements Store using a JSON file. Every Set is flushed to disk
// with an atomic rename, and reads pick up writes made by other processes by
// reloading when the file's modification time moves.
type FileStore struct {
	watchers

	path    string
	data    map[string]bool
	mu      sync.RWMutex
	version string
	modTime time.Time
}

type fileContents struct {
	Version  string          `json:"version"`
	Settings map[string]bool `json:"settings"`
}

// NewFileStore creates a new file-based store.
// If path is empty, defaults to ~/.widescreen/settings.json
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(homeDir, ".widescreen", "settings.json")
	}

	store := &FileStore{
		path:    path,
		data:    make(map[string]bool),
		version: "1.0",
	}

	if err := store.Load(); err != nil {
		return nil, fmt.Errorf("failed to load settings from %s: %w", path, err)
	}

	return store, nil
}

// Load reads the file from disk, replacing the in-memory copy. A missing
// file yields an empty store.
func (s *FileStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *FileStore) loadLocked() error {
	info, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.data = make(map[string]bool)
			s.modTime = time.Time{}
			return nil
		}
		return fmt.Errorf("failed to stat settings file: %w", err)
	}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to open settings file: %w", err)
	}

	var contents fileContents
	if err := json.Unmarshal(raw, &contents); err != nil {
		return fmt.Errorf("failed to decode settings file: %w", err)
	}

	if contents.Version != "" {
		s.version = contents.Version
	}
	s.data = contents.Settings
	if s.data == nil {
		s.data = make(map[string]bool)
	}
	s.modTime = info.ModTime()
	return nil
}

// refreshLocked reloads when another process has rewritten the file.
func (s *FileStore) refreshLocked() error {
	info, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat settings file: %w", err)
	}
	if info.ModTime().Equal(s.modTime) {
		return nil
	}
	return s.loadLocked()
}

func (s *FileStore) saveLocked() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	tempPath := s.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temp settings file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(fileContents{Version: s.version, Settings: s.data}); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	if info, err := os.Stat(s.path); err == nil {
		s.modTime = info.ModTime()
	}
	return nil
}

// Get returns the values for keys.
func (s *FileStore) Get(ctx context.Context, keys ...string) (map[string]bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.refreshLocked(); err != nil {
		return nil, err
	}

	out := make(map[string]bool, len(keys))
	for _, key := range keys {
		out[key] = s.data[key]
	}
	return out, nil
}

// Set persists a value and notifies watchers.
func (s *FileStore) Set(ctx context.Context, key string, value bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if err := s.refreshLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	previous := s.data[key]
	s.data[key] = value
	if err := s.saveLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.emit(Change{Key: key, Value: value, Previous: previous})
	return nil
}

// Path returns the file path of the store.
func (s *FileStore) Path() string {
	return s.path
}

// MemoryStore is a process-local Store. Used for ephemeral sessions and tests.
type MemoryStore struct {
	watchers

	mu   sync.RWMutex
	data map[string]bool
}

// NewMemoryStore returns a store seeded with initial values.
func NewMemoryStore(initial map[string]bool) *MemoryStore {
	data := make(map[string]bool, len(initial))
	for k, v := range initial {
		data[k] = v
	}
	return &MemoryStore{data: data}
}

// Get returns the values for keys.
func (s *MemoryStore) Get(ctx context.Context, keys ...string) (map[string]bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]bool, len(keys))
	for _, key := range keys {
		out[key] = s.data[key]
	}
	return out, nil
}

// Set stores a value and notifies watchers.
func (s *MemoryStore) Set(ctx context.Context, key string, value bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	previous := s.data[key]
	s.data[key] = value
	s.mu.Unlock()

	s.emit(Change{Key: key, Value: value, Previous: previous})
	return nil
}

// Snapshot returns a copy of every stored key.
func (s *MemoryStore) Snapshot() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]bool, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}
