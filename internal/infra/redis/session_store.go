package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"video-session-service/internal/app"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Notes:
//   - It keeps a local in-memory map of sessions to reuse the in-process
//     state machine and progress broadcast logic.
//   - Redis marks session liveness with a TTL'd key per session, which also
//     lets other instances see which sessions exist.
//   - For true distribution you'd pair this with a pub/sub projector that
//     fans progress out across instances.
type SessionStore struct {
	client  *redis.Client
	ttl     time.Duration
	mu      sync.RWMutex
	byID    map[string]*app.Session
	byOwner map[string]*app.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:  client,
		ttl:     ttl,
		byID:    make(map[string]*app.Session),
		byOwner: make(map[string]*app.Session),
	}
}

func (s *SessionStore) Lookup(ownerKey string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.byOwner[ownerKey]
	if !ok || session.Status().Terminal() {
		return nil, false
	}
	return session, true
}

func (s *SessionStore) GetOrCreate(ownerKey string, create func() *app.Session) (*app.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.byOwner[ownerKey]; ok && !session.Status().Terminal() {
		return session, false
	}
	session := create()
	s.byID[session.ID()] = session
	s.byOwner[ownerKey] = session
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(session.ID()), ownerKey, s.ttl).Err()
	return session, true
}

func (s *SessionStore) Get(sessionID string) (*app.Session, bool) {
	s.mu.RLock()
	session, ok := s.byID[sessionID]
	s.mu.RUnlock()
	if ok && !session.Status().Terminal() {
		// sliding liveness while the session is in use
		_ = s.client.Expire(context.Background(), s.key(sessionID), s.ttl).Err()
	}
	return session, ok
}

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
			_ = s.client.Del(context.Background(), s.key(id)).Err()
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

func (s *SessionStore) key(sessionID string) string {
	return "video:session:" + sessionID
}
