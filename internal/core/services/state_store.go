package services

import (
	"sync"
	"time"

	"github.com/lorrc/team-kpi-backend/internal/core/domain"
	apperrors "github.com/lorrc/team-kpi-backend/internal/core/errors"
)

// StateStore holds the live window and the last published snapshot. Readers
// only ever see a complete snapshot: publication swaps it in one step.
type StateStore struct {
	mu        sync.RWMutex
	window    domain.AggregationWindow
	snapshot  *domain.Snapshot
	version   uint64
	lastErr   error
	lastErrAt time.Time
	now       func() time.Time

	// publishMu orders publication together with listener notification, so
	// listeners observe versions in increasing order.
	publishMu sync.Mutex
	listenMu  sync.RWMutex
	listeners map[uint64]func(domain.Snapshot)
	nextID    uint64
}

// NewStateStore creates a store for the given window with nothing published.
func NewStateStore(window domain.AggregationWindow) *StateStore {
	return &StateStore{
		window:    window,
		now:       time.Now,
		listeners: make(map[uint64]func(domain.Snapshot)),
	}
}

// Window returns the current live window.
func (s *StateStore) Window() domain.AggregationWindow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.window
}

// SetWindow replaces the live window and reports whether it changed.
// The published snapshot is kept until a pass for the new window replaces it.
func (s *StateStore) SetWindow(window domain.AggregationWindow) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.window.Equal(window) {
		return false
	}
	s.window = window
	return true
}

// Publish installs a snapshot computed for the current window and notifies
// listeners. Snapshots computed for a window that is no longer current are
// rejected with ErrStaleWindow.
func (s *StateStore) Publish(snapshot domain.Snapshot) (domain.Snapshot, error) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.Lock()
	if !s.window.Equal(snapshot.Window) {
		s.mu.Unlock()
		return domain.Snapshot{}, apperrors.ErrStaleWindow
	}
	s.version++
	published := snapshot.Clone()
	published.Version = s.version
	published.PublishedAt = s.now().UTC()
	s.snapshot = &published
	s.lastErr = nil
	s.mu.Unlock()

	s.listenMu.RLock()
	listeners := make([]func(domain.Snapshot), 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.listenMu.RUnlock()

	for _, l := range listeners {
		l(published.Clone())
	}
	return published.Clone(), nil
}

// RecordFailure remembers the error of a failed pass. The published snapshot
// is left as it was.
func (s *StateStore) RecordFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
	s.lastErrAt = s.now().UTC()
}

// LastFailure returns when the most recent pass failed and why. It is cleared
// by the next successful publication.
func (s *StateStore) LastFailure() (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErrAt, s.lastErr
}

// Snapshot returns a copy of the last published snapshot.
func (s *StateStore) Snapshot() (domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil {
		return domain.Snapshot{}, apperrors.ErrNoSnapshot
	}
	return s.snapshot.Clone(), nil
}

// Version returns the version of the last published snapshot, 0 if none.
func (s *StateStore) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Subscribe registers a listener called after every publication.
func (s *StateStore) Subscribe(listener func(domain.Snapshot)) (unsubscribe func()) {
	s.listenMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = listener
	s.listenMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.listenMu.Lock()
			delete(s.listeners, id)
			s.listenMu.Unlock()
		})
	}
}
