package bridge

import (
	"sync"
	"time"

	"github.com/soyeahso/supportline/internal/connector"
	"github.com/soyeahso/supportline/internal/logging"
	"github.com/soyeahso/supportline/internal/metrics"
)

// SessionRegistry tracks open visitor sessions.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]Session
	log      *logging.Logger
	metrics  *metrics.Metrics
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry(log *logging.Logger, m *metrics.Metrics) *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]Session),
		log:      log,
		metrics:  m,
	}
}

// Add registers a session.
func (r *SessionRegistry) Add(s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID()] = s
	r.metrics.SessionOpened(s.Transport())
	r.log.Info().Str("sid", s.ID()).Str("transport", s.Transport()).Msg("visitor connected")
}

// Remove closes and unregisters a session. Unknown ids are ignored.
func (r *SessionRegistry) Remove(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return
	}
	s.Close()
	r.metrics.SessionClosed(s.Transport())
	r.log.Info().Str("sid", id).Msg("visitor disconnected")
}

// Get returns a session by id.
func (r *SessionRegistry) Get(id string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Count returns the number of open sessions.
func (r *SessionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Broadcast sends a frame to every session and returns how many accepted it.
func (r *SessionRegistry) Broadcast(f connector.Frame) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, s := range r.sessions {
		if err := s.Send(f); err != nil {
			r.log.Warn().Err(err).Str("sid", s.ID()).Msg("broadcast send failed")
			continue
		}
		n++
	}
	return n
}

// Reap removes sessions not seen since cutoff and returns how many were removed.
func (r *SessionRegistry) Reap(cutoff time.Time) int {
	r.mu.RLock()
	var stale []string
	for id, s := range r.sessions {
		if s.LastSeen().Before(cutoff) {
			stale = append(stale, id)
		}
	}
	r.mu.RUnlock()

	for _, id := range stale {
		r.Remove(id)
	}
	return len(stale)
}

// CloseAll closes every session.
func (r *SessionRegistry) CloseAll() {
	r.mu.RLock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	for _, id := range ids {
		r.Remove(id)
	}
}
