package identity

import (
	"context"
	"sync"
	"time"
)

// Identity is the resolved self of the polling actor. Message direction
// attribution is impossible without it, so nothing polls before it exists.
type Identity struct {
	UserID     string    `json:"user_id"`
	Role       string    `json:"role"`
	Token      string    `json:"token"`
	ResolvedAt time.Time `json:"resolved_at"`
}

// Store is the durable mirror of the resolved identity, the daemon analog of
// the browser keeping user id and role across reloads. Implementations:
// in-memory, sqlite file, redis.
type Store interface {
	Load(ctx context.Context) (*Identity, error)
	Save(ctx context.Context, id Identity) error
	Clear(ctx context.Context) error
}

type memoryStore struct {
	mu sync.Mutex
	id *Identity
}

// NewMemoryStore returns a non-durable store, used in tests and as the
// fallback when no backend is configured.
func NewMemoryStore() Store {
	return &memoryStore{}
}

func (s *memoryStore) Load(ctx context.Context) (*Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.id == nil {
		return nil, nil
	}
	copied := *s.id
	return &copied, nil
}

func (s *memoryStore) Save(ctx context.Context, id Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := id
	s.id = &copied
	return nil
}

func (s *memoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = nil
	return nil
}
