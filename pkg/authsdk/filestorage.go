package authsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// FileStorage implements Storage over a JSON file watched with fsnotify,
// so separate processes on one machine observe each other's writes. Writes
// go through a rename so watchers never read a half-written file.
type FileStorage struct {
	path string

	mu       sync.Mutex
	cache    map[string]string
	watchers map[int]func(key, value string)
	nextID   int

	fw   *fsnotify.Watcher
	done chan struct{}
}

func NewFileStorage(path string) (*FileStorage, error) {
	s := &FileStorage{
		path:     path,
		cache:    make(map[string]string),
		watchers: make(map[int]func(key, value string)),
		done:     make(chan struct{}),
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	if _, err := s.load(); err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	// Watch the directory: renames replace the file inode, and watching the
	// file itself would silently detach on the first write.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch storage dir: %w", err)
	}
	s.fw = fw

	go s.watchLoop()
	return s, nil
}

func (s *FileStorage) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.cache[key]
	return v, ok
}

func (s *FileStorage) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[key] = value
	return s.flushLocked()
}

func (s *FileStorage) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cache[key]; !ok {
		return nil
	}
	delete(s.cache, key)
	return s.flushLocked()
}

func (s *FileStorage) Watch(fn func(key, value string)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
	}
}

// Close stops the file watcher. Pending callbacks may still run briefly.
func (s *FileStorage) Close() error {
	close(s.done)
	return s.fw.Close()
}

// flushLocked must be called with mu held.
func (s *FileStorage) flushLocked() error {
	raw, err := json.Marshal(s.cache)
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write storage file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace storage file: %w", err)
	}
	return nil
}

// load reads the file into the cache, returning the previous cache state
// for diffing. A missing file is an empty store.
func (s *FileStorage) load() (map[string]string, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read storage file: %w", err)
	}

	next := make(map[string]string)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &next); err != nil {
			// A torn or foreign file is ignored rather than fatal; the next
			// write restores a well-formed one.
			return nil, nil
		}
	}

	s.mu.Lock()
	prev := s.cache
	s.cache = next
	s.mu.Unlock()
	return prev, nil
}

func (s *FileStorage) watchLoop() {
	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-s.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(s.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			s.reloadAndNotify()
		case _, ok := <-s.fw.Errors:
			if !ok {
				return
			}
		}
	}
}

func (s *FileStorage) reloadAndNotify() {
	prev, err := s.load()
	if err != nil {
		return
	}

	s.mu.Lock()
	next := make(map[string]string, len(s.cache))
	for k, v := range s.cache {
		next[k] = v
	}
	watchers := make([]func(key, value string), 0, len(s.watchers))
	for _, fn := range s.watchers {
		watchers = append(watchers, fn)
	}
	s.mu.Unlock()

	// Emit one callback per changed or removed key.
	for k, v := range next {
		if prev[k] != v {
			for _, fn := range watchers {
				fn(k, v)
			}
		}
	}
	for k := range prev {
		if _, ok := next[k]; !ok {
			for _, fn := range watchers {
				fn(k, "")
			}
		}
	}
}
