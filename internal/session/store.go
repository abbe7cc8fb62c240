package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mlorentedev/reworder/internal/adapter"
)

// ErrFull is returned by Create when the store is at capacity.
var ErrFull = errors.New("session limit reached")

// Store keeps sessions in memory and evicts idle ones.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	max      int
	now      func() time.Time
	logger   *slog.Logger
}

// NewStore returns a store evicting sessions idle for longer than ttl.
// A non-positive max disables the capacity check.
func NewStore(ttl time.Duration, max int) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		max:      max,
		now:      time.Now,
		logger:   slog.Default(),
	}
}

// SetLogger replaces the logger used to report engine release failures.
func (st *Store) SetLogger(l *slog.Logger) {
	if l != nil {
		st.logger = l
	}
}

// Create registers a new idle session under a random ID.
func (st *Store) Create() (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.max > 0 && len(st.sessions) >= st.max {
		return nil, ErrFull
	}
	s := New(uuid.NewString())
	s.Touch(st.now())
	st.sessions[s.ID()] = s
	return s, nil
}

// Get returns the session and records the access.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.Lock()
	s, ok := st.sessions[id]
	st.mu.Unlock()

	if ok {
		s.Touch(st.now())
	}
	return s, ok
}

// Delete removes the session and releases its engine. A load in flight
// releases its engine when it finishes.
func (st *Store) Delete(id string) bool {
	st.mu.Lock()
	s, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()

	if ok {
		st.release(s)
	}
	return ok
}

func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Sweep evicts sessions idle since before now-ttl. Sessions with a load or
// generation in flight are kept.
func (st *Store) Sweep(now time.Time) int {
	if st.ttl <= 0 {
		return 0
	}
	cutoff := now.Add(-st.ttl)

	var evicted []*Session
	st.mu.Lock()
	for id, s := range st.sessions {
		switch s.Phase() {
		case PhaseLoading, PhaseGenerating:
			continue
		}
		if s.LastSeen().Before(cutoff) {
			evicted = append(evicted, s)
			delete(st.sessions, id)
		}
	}
	st.mu.Unlock()

	for _, s := range evicted {
		st.release(s)
	}
	return len(evicted)
}

// release closes s so a load still in flight drops its engine, and frees
// the engine s currently holds.
func (st *Store) release(s *Session) {
	if err := adapter.Release(s.Close()); err != nil {
		st.logger.Warn("release engine", "session", s.ID(), "error", err)
	}
}

// Run sweeps every interval until ctx is done. onSweep, if set, receives the
// number of evicted sessions after each pass.
func (st *Store) Run(ctx context.Context, interval time.Duration, onSweep func(evicted int)) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := st.Sweep(st.now())
			if onSweep != nil {
				onSweep(n)
			}
		}
	}
}
