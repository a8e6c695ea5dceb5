// Package cache holds OAuth state store implementations.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/Gauravpathak1789/Bookly/internal/repository"
)

// MemoryStateStore keeps federation state tokens in a process-local map.
// It is the default store; state does not survive restarts and cannot be
// shared across instances, so multi-instance deployments need the Redis
// store instead.
type MemoryStateStore struct {
	mu     sync.Mutex
	states map[string]time.Time
}

var _ repository.OAuthStateStore = (*MemoryStateStore)(nil)

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: make(map[string]time.Time)}
}

func (s *MemoryStateStore) Save(_ context.Context, state string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	s.states[state] = time.Now().Add(ttl)
	return nil
}

func (s *MemoryStateStore) Consume(_ context.Context, state string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	expiry, ok := s.states[state]
	if !ok {
		return false, nil
	}
	delete(s.states, state)
	return time.Now().Before(expiry), nil
}

// sweepLocked drops expired entries so abandoned flows do not accumulate.
func (s *MemoryStateStore) sweepLocked() {
	now := time.Now()
	for state, expiry := range s.states {
		if now.After(expiry) {
			delete(s.states, state)
		}
	}
}
