package memory

import (
	"context"
	"sync"
	"time"
)

type session struct {
	exchanges []Exchange
	createdAt time.Time
	updatedAt time.Time
}

// InMemoryStore keeps sessions in process memory.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*session
	now      func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*session), now: time.Now}
}

func (s *InMemoryStore) Context(_ context.Context, sessionID string) ([]Exchange, error) {
	if err := validateSession(sessionID); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	out := make([]Exchange, len(sess.exchanges))
	for i, ex := range sess.exchanges {
		out[i] = ex.clone()
	}
	return out, nil
}

func (s *InMemoryStore) Append(_ context.Context, sessionID string, exchange Exchange) error {
	if err := validateSession(sessionID); err != nil {
		return err
	}
	now := s.now()
	if exchange.Timestamp.IsZero() {
		exchange.Timestamp = now
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = &session{createdAt: now}
		s.sessions[sessionID] = sess
	}
	sess.exchanges = append(sess.exchanges, exchange.clone())
	if over := len(sess.exchanges) - MaxExchanges; over > 0 {
		sess.exchanges = append([]Exchange(nil), sess.exchanges[over:]...)
	}
	sess.updatedAt = now
	return nil
}

func (s *InMemoryStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	return nil
}

func (s *InMemoryStore) Stats(_ context.Context, sessionID string) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := Stats{MaxExchanges: MaxExchanges}
	if sess, ok := s.sessions[sessionID]; ok {
		stats.ExchangesStored = len(sess.exchanges)
		stats.CreatedAt = sess.createdAt
		stats.UpdatedAt = sess.updatedAt
	}
	return stats, nil
}
