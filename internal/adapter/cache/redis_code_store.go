package cache

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/craftlab/canvas-gateway/internal/domain"
	"github.com/craftlab/canvas-gateway/internal/repository"
)

// RedisCodeStore implements CodeStore backed by Redis with per-key TTL.
type RedisCodeStore struct {
	client redis.UniversalClient
}

var _ repository.CodeStore = (*RedisCodeStore)(nil)

// NewRedisCodeStore constructs a Redis-backed verification-code store.
func NewRedisCodeStore(client redis.UniversalClient) *RedisCodeStore {
	return &RedisCodeStore{client: client}
}

// Save stores the code under purpose+email, replacing any earlier code.
func (s *RedisCodeStore) Save(ctx context.Context, purpose, email, code string, ttl time.Duration) error {
	if err := s.client.Set(ctx, codeKey(purpose, email), code, ttl).Err(); err != nil {
		return fmt.Errorf("persist verification code: %w", err)
	}
	return nil
}

// Consume compares the submitted code and deletes it on match. A missing
// or expired key and a wrong code are indistinguishable to the caller.
func (s *RedisCodeStore) Consume(ctx context.Context, purpose, email, code string) error {
	key := codeKey(purpose, email)
	stored, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return domain.ErrCodeMismatch
		}
		return fmt.Errorf("load verification code: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		return domain.ErrCodeMismatch
	}
	if err := s.client.Del(ctx, key).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("delete verification code: %w", err)
	}
	return nil
}

func codeKey(purpose, email string) string {
	return "gateway:code:" + purpose + ":" + email
}
