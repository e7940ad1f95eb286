package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	pkgredis "github.com/angelmondragon/rentsync/pkg/redis"
)

type redisStore struct {
	client *pkgredis.Client
	key    string
}

// NewRedisStore mirrors the identity into redis, for deployments where
// several daemon instances share a backend.
func NewRedisStore(client *pkgredis.Client, shape string) (Store, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	return &redisStore{client: client, key: client.IdentityKey(shape)}, nil
}

func (s *redisStore) Load(ctx context.Context) (*Identity, error) {
	raw, err := s.client.Get(ctx, s.key)
	if pkgredis.IsNil(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load identity: %w", err)
	}
	var id Identity
	if err := json.Unmarshal([]byte(raw), &id); err != nil {
		return nil, fmt.Errorf("decode identity: %w", err)
	}
	return &id, nil
}

func (s *redisStore) Save(ctx context.Context, id Identity) error {
	raw, err := json.Marshal(id)
	if err != nil {
		return fmt.Errorf("encode identity: %w", err)
	}
	if err := s.client.Set(ctx, s.key, string(raw), 0); err != nil {
		return fmt.Errorf("save identity: %w", err)
	}
	return nil
}

func (s *redisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key); err != nil {
		return fmt.Errorf("clear identity: %w", err)
	}
	return nil
}
