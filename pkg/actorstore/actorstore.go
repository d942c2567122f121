package actorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fazamuttaqien/remitquota/internal/domain"
	"github.com/fazamuttaqien/remitquota/pkg/common"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "admin-session:"

// Store keeps admin actor sessions in Redis. Each session token maps to a
// JSON-encoded domain.Actor with a TTL; expiry logs the admin out.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func New(client *redis.Client, ttl time.Duration) *Store {
	return &Store{
		client: client,
		ttl:    ttl,
	}
}

// Get resolves a session token to its actor. Unknown or expired tokens fail
// with common.ErrSessionNotFound. Lookups refresh the TTL so active admins
// stay logged in.
func (s *Store) Get(ctx context.Context, token string) (*domain.Actor, error) {
	payload, err := s.client.GetEx(ctx, keyPrefix+token, s.ttl).Result()
	if errors.Is(err, redis.Nil) {
		return nil, common.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read admin session: %w", err)
	}

	var actor domain.Actor
	if err := json.Unmarshal([]byte(payload), &actor); err != nil {
		return nil, fmt.Errorf("failed to decode admin session: %w", err)
	}
	return &actor, nil
}

func (s *Store) Set(ctx context.Context, token string, actor domain.Actor) error {
	payload, err := json.Marshal(actor)
	if err != nil {
		return fmt.Errorf("failed to encode admin session: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+token, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store admin session: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, keyPrefix+token).Err(); err != nil {
		return fmt.Errorf("failed to delete admin session: %w", err)
	}
	return nil
}
