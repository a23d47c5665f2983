package fetchkit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
)

// FileStore is a Cache persisted to a single JSON file, the closest Go
// analogue of a browser's localStorage bucket. Writes are flushed
// synchronously; entries survive process restarts until their TTL passes.
type FileStore struct {
	mu      sync.Mutex
	fs      afero.Fs
	path    string
	clock   clockwork.Clock
	entries map[string]*Entry
}

// NewFileStore opens (or creates) a file-backed store on the OS filesystem.
func NewFileStore(path string) (*FileStore, error) {
	return NewFileStoreWithFs(afero.NewOsFs(), path, clockwork.NewRealClock())
}

// NewFileStoreWithFs opens a store on the supplied filesystem and clock.
func NewFileStoreWithFs(fs afero.Fs, path string, clock clockwork.Clock) (*FileStore, error) {
	s := &FileStore{
		fs:      fs,
		path:    path,
		clock:   clock,
		entries: make(map[string]*Entry),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) load() error {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, &s.entries)
}

// flush writes the full entry map. Callers hold s.mu.
func (s *FileStore) flush() {
	data, err := json.Marshal(s.entries)
	if err != nil {
		return
	}
	if dir := filepath.Dir(s.path); dir != "." {
		_ = s.fs.MkdirAll(dir, 0o755)
	}
	_ = afero.WriteFile(s.fs, s.path, data, 0o644)
}

// Get retrieves a fresh entry. Expired entries are pruned from disk and
// reported as misses.
func (s *FileStore) Get(key string) (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.entries[key]
	if !exists {
		return nil, false
	}
	if entry.Expired(s.clock.Now()) {
		delete(s.entries, key)
		s.flush()
		return nil, false
	}
	return entry, true
}

// Set stores an entry, stamping its Timestamp to now and its TTL to ttl,
// and flushes to disk.
func (s *FileStore) Set(key string, entry *Entry, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.Timestamp = s.clock.Now()
	entry.TTL = ttl
	s.entries[key] = entry
	s.flush()
}

// Delete removes an entry and flushes to disk.
func (s *FileStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	s.flush()
}

// Clear removes all entries and flushes to disk.
func (s *FileStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*Entry)
	s.flush()
}

// Len reports the number of stored entries, expired ones included.
func (s *FileStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
