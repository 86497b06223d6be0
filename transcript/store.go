package transcript

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

var (
	// ErrNotFound is returned when a transcript for the given room / name pair
	// does not exist in the underlying store.
	ErrNotFound = fmt.Errorf("transcript not found")
)

// Store persists serialized transcripts. The Writer depends on this interface
// so exports can be captured in memory (tests) or written to disk
// (production shutdown hooks).
type Store interface {
	Save(room, name string, data []byte) error
}

// LocalStore writes transcripts into a directory on the local filesystem,
// creating the directory on first save if it is missing.
type LocalStore struct {
	dir string
}

// NewLocalStore returns a store rooted at dir.
func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{dir: dir}
}

// Dir returns the directory transcripts are written to.
func (s *LocalStore) Dir() string { return s.dir }

// Save writes the transcript bytes to <dir>/<name>. The directory is created
// if it does not exist, so a fresh deployment never fails its first write for
// that reason.
func (s *LocalStore) Save(room, name string, data []byte) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create transcript dir %q: %w", s.dir, err)
	}

	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write transcript %q: %w", path, err)
	}

	return nil
}

// InMemoryStore is a trivial in-process Store implementation useful for tests
// and examples. It keeps all transcripts in a nested map guarded by an
// RWMutex. Data is copied on save / retrieval to avoid accidental external
// mutation of internal buffers.
//
// Layout: room -> filename -> raw bytes
type InMemoryStore struct {
	mu          sync.RWMutex
	transcripts map[string]map[string][]byte
}

// NewInMemoryStore returns an empty in-memory transcript store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{transcripts: make(map[string]map[string][]byte)}
}

// Save stores (or overwrites) the transcript bytes for the given room and
// filename. The input slice is copied before storage.
func (s *InMemoryStore) Save(room, name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.transcripts[room]; !exists {
		s.transcripts[room] = make(map[string][]byte)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.transcripts[room][name] = cp
	return nil
}

// Get returns a copy of the stored transcript bytes or ErrNotFound.
func (s *InMemoryStore) Get(room, name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.transcripts[room]
	if !ok {
		return nil, ErrNotFound
	}
	data, ok := m[name]
	if !ok {
		return nil, ErrNotFound
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

// List returns the transcript filenames stored for the room. The slice is a
// snapshot and safe for caller mutation.
func (s *InMemoryStore) List(room string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.transcripts[room]
	if !ok {
		return []string{}, nil
	}
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	return names, nil
}

// Delete removes the transcript if present or returns ErrNotFound.
func (s *InMemoryStore) Delete(room, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.transcripts[room]
	if !ok {
		return ErrNotFound
	}
	if _, ok := m[name]; !ok {
		return ErrNotFound
	}
	delete(m, name)
	return nil
}
