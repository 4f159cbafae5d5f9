package session

import (
	"fmt"
	"sync"
)

// Store keeps the live trackers, one per session.
type Store struct {
	mu       sync.RWMutex
	trackers map[string]*Tracker
}

func NewStore() *Store {
	return &Store{trackers: make(map[string]*Tracker)}
}

// Add registers a tracker under its session id.
func (s *Store) Add(t *Tracker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.trackers[t.SessionID()]; exists {
		return fmt.Errorf("session %q already tracked", t.SessionID())
	}
	s.trackers[t.SessionID()] = t
	return nil
}

// Get returns the tracker for a session id.
func (s *Store) Get(id string) (*Tracker, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.trackers[id]
	return t, ok
}

// Delete drops a tracker. The caller is responsible for flushing first.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.trackers, id)
}

// List returns every live tracker.
func (s *Store) List() []*Tracker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Tracker, 0, len(s.trackers))
	for _, t := range s.trackers {
		out = append(out, t)
	}
	return out
}
