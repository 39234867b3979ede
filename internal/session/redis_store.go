package session

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwalitptl/meditrack/internal/model"
	"github.com/jwalitptl/meditrack/pkg/security"
)

const redisKeyPrefix = "meditrack:session:"

// RedisStore shares sessions between replicas. Identities hold upstream
// bearer tokens, so they are encrypted before they leave the process.
type RedisStore struct {
	client    redis.Cmdable
	encryptor security.Encryptor
}

func NewRedisStore(client redis.Cmdable, encryptor security.Encryptor) *RedisStore {
	return &RedisStore{client: client, encryptor: encryptor}
}

func (s *RedisStore) Save(ctx context.Context, id uuid.UUID, identity *model.Identity, ttl time.Duration) error {
	raw, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	sealed, err := s.encryptor.Encrypt(raw)
	if err != nil {
		return fmt.Errorf("failed to encrypt session: %w", err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+id.String(), sealed, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, id uuid.UUID) (*model.Identity, error) {
	sealed, err := s.client.Get(ctx, redisKeyPrefix+id.String()).Bytes()
	if err != nil {
		if stderrors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	raw, err := s.encryptor.Decrypt(sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt session: %w", err)
	}
	var identity model.Identity
	if err := json.Unmarshal(raw, &identity); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &identity, nil
}

func (s *RedisStore) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.client.Del(ctx, redisKeyPrefix+id.String()).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
