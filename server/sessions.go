package server

import (
	"context"
	"sync"
	"time"

	"eaiser/capture"
	"eaiser/location"
	"eaiser/metrics"
	"eaiser/workflow"

	"github.com/apex/log"
)

// Session is one browser's wizard pass together with the resources it owns.
type Session struct {
	ID         string
	Controller *workflow.Controller
	Resolver   *location.Resolver
	// Camera is nil when no network camera is configured.
	Camera *capture.Session

	lastSeen time.Time
}

// Close releases the camera and stops background work.
func (s *Session) Close() {
	if s.Camera != nil {
		s.Camera.Close()
	}
	s.Controller.Close()
}

// SessionStore holds live sessions and expires idle ones.
type SessionStore struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

func (st *SessionStore) Add(s *Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s.lastSeen = st.now()
	st.sessions[s.ID] = s
	metrics.ActiveSessions.Set(float64(len(st.sessions)))
}

// Get returns the session and marks it as used.
func (st *SessionStore) Get(id string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	if ok {
		s.lastSeen = st.now()
	}
	return s, ok
}

// Remove closes and forgets the session.
func (st *SessionStore) Remove(id string) bool {
	st.mu.Lock()
	s, ok := st.sessions[id]
	delete(st.sessions, id)
	metrics.ActiveSessions.Set(float64(len(st.sessions)))
	st.mu.Unlock()

	if ok {
		s.Close()
	}
	return ok
}

func (st *SessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// ExpireIdle closes sessions unused for longer than the ttl.
func (st *SessionStore) ExpireIdle() int {
	st.mu.Lock()
	var expired []*Session
	now := st.now()
	for id, s := range st.sessions {
		if now.Sub(s.lastSeen) > st.ttl {
			expired = append(expired, s)
			delete(st.sessions, id)
		}
	}
	metrics.ActiveSessions.Set(float64(len(st.sessions)))
	st.mu.Unlock()

	for _, s := range expired {
		log.Infof("Session %s expired", s.ID)
		s.Close()
	}
	return len(expired)
}

// RunExpiry expires idle sessions every interval until ctx is done, then
// closes everything.
func (st *SessionStore) RunExpiry(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			st.closeAll()
			return
		case <-ticker.C:
			st.ExpireIdle()
		}
	}
}

func (st *SessionStore) closeAll() {
	st.mu.Lock()
	all := st.sessions
	st.sessions = make(map[string]*Session)
	metrics.ActiveSessions.Set(0)
	st.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
}
