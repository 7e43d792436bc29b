package memory

import (
	"sync"
	"time"

	"video-session-service/internal/app"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
// Sessions are indexed both by id and by owner key (tenant/user/video) so
// that a retried start lands on the existing attempt.
type SessionStore struct {
	mu      sync.RWMutex
	byID    map[string]*app.Session
	byOwner map[string]*app.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		byID:    make(map[string]*app.Session),
		byOwner: make(map[string]*app.Session),
	}
}

// Lookup returns the owner's current non-terminal session, if any. A
// completed or abandoned session never resumes; the next start opens a
// fresh attempt.
func (s *SessionStore) Lookup(ownerKey string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.byOwner[ownerKey]
	if !ok || session.Status().Terminal() {
		return nil, false
	}
	return session, true
}

// GetOrCreate returns the owner's non-terminal session or registers the one
// produced by create. The bool reports whether a session was created.
func (s *SessionStore) GetOrCreate(ownerKey string, create func() *app.Session) (*app.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.byOwner[ownerKey]; ok && !session.Status().Terminal() {
		return session, false
	}
	session := create()
	s.byID[session.ID()] = session
	s.byOwner[ownerKey] = session
	return session, true
}

func (s *SessionStore) Get(sessionID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.byID[sessionID]
	return session, ok
}

// Sweep abandons active sessions idle past idleTTL and drops terminal
// sessions older than completedTTL from both indexes.
func (s *SessionStore) Sweep(completedTTL, idleTTL time.Duration) ([]*app.Session, int) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var abandoned []*app.Session
	removed := 0
	for id, session := range s.byID {
		idle := now.Sub(session.UpdatedAt())
		if !session.Status().Terminal() && idleTTL > 0 && idle > idleTTL {
			if session.Abandon() {
				abandoned = append(abandoned, session)
			}
			continue
		}
		if session.Status().Terminal() && completedTTL > 0 && idle > completedTTL {
			delete(s.byID, id)
			removed++
		}
	}
	for key, session := range s.byOwner {
		if _, ok := s.byID[session.ID()]; !ok {
			delete(s.byOwner, key)
		}
	}
	return abandoned, removed
}
