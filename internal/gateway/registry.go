package gateway

import (
	"errors"
	"sync"

	"github.com/ainotetaker/transcription-gateway/internal/session"
)

// ErrSessionLimit is returned when the concurrent session cap is reached
var ErrSessionLimit = errors.New("session limit reached")

// Registry tracks live sessions and enforces the concurrent session cap.
// Admission happens before any upstream link is opened, so a rejected start
// never consumes recognition capacity.
type Registry struct {
	maxSessions int

	mu       sync.RWMutex
	sessions map[string]*session.Session
}

// NewRegistry creates a registry with the given session cap
func NewRegistry(maxSessions int) *Registry {
	return &Registry{
		maxSessions: maxSessions,
		sessions:    make(map[string]*session.Session),
	}
}

// Acquire admits a session, or returns ErrSessionLimit when the cap is hit
func (r *Registry) Acquire(sess *session.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.sessions) >= r.maxSessions {
		return ErrSessionLimit
	}
	r.sessions[sess.ID()] = sess
	return nil
}

// Release removes a finished session. Safe to call for unknown ids.
func (r *Registry) Release(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Active returns the number of live sessions
func (r *Registry) Active() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// StopAll requests shutdown of every live session, used on server drain
func (r *Registry) StopAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, sess := range r.sessions {
		sess.Stop()
	}
}
