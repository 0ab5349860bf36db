package authsdk

import "sync"

// Storage keys shared between clients of the same user on one machine.
// Writes to these keys are how one client instance signals the others:
// an activity write resets their idle timers, a logout write ends their
// sessions.
const (
	KeyLastActivity = "quizauth:last_activity"
	KeyLogout       = "quizauth:logout"
	KeyCSRFToken    = "quizauth:csrf"
)

// Storage is a small shared key-value surface visible to every client
// instance on the machine. FileStorage implements it over a watched file
// for cross-process signalling; MemStorage is for single-process use and
// tests.
//
// Watch callbacks fire for every observed change, including the caller's
// own writes. Implementations may coalesce rapid writes; consumers must
// treat callbacks as level triggers, not counted events.
type Storage interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Remove(key string) error

	// Watch registers fn for change notifications until the returned cancel
	// is called.
	Watch(fn func(key, value string)) (cancel func())
}

// MemStorage is an in-process Storage. Safe for concurrent use.
type MemStorage struct {
	mu       sync.Mutex
	values   map[string]string
	watchers map[int]func(key, value string)
	nextID   int
}

func NewMemStorage() *MemStorage {
	return &MemStorage{
		values:   make(map[string]string),
		watchers: make(map[int]func(key, value string)),
	}
}

func (s *MemStorage) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *MemStorage) Set(key, value string) error {
	s.mu.Lock()
	s.values[key] = value
	watchers := s.snapshotWatchers()
	s.mu.Unlock()

	for _, fn := range watchers {
		fn(key, value)
	}
	return nil
}

func (s *MemStorage) Remove(key string) error {
	s.mu.Lock()
	_, existed := s.values[key]
	delete(s.values, key)
	watchers := s.snapshotWatchers()
	s.mu.Unlock()

	if existed {
		for _, fn := range watchers {
			fn(key, "")
		}
	}
	return nil
}

func (s *MemStorage) Watch(fn func(key, value string)) (cancel func()) {
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

// snapshotWatchers must be called with mu held.
func (s *MemStorage) snapshotWatchers() []func(key, value string) {
	out := make([]func(key, value string), 0, len(s.watchers))
	for _, fn := range s.watchers {
		out = append(out, fn)
	}
	return out
}
