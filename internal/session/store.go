package session

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/meditrack/internal/model"
)

var ErrSessionNotFound = stderrors.New("session not found")

// Store persists session identities keyed by session ID.
type Store interface {
	Save(ctx context.Context, id uuid.UUID, identity *model.Identity, ttl time.Duration) error
	Load(ctx context.Context, id uuid.UUID) (*model.Identity, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// MemoryStore keeps sessions in process memory. Sessions do not survive a
// restart and are not shared between replicas.
type MemoryStore struct {
	cache *cache.Cache
}

func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	return &MemoryStore{cache: cache.New(cache.NoExpiration, cleanupInterval)}
}

func (s *MemoryStore) Save(ctx context.Context, id uuid.UUID, identity *model.Identity, ttl time.Duration) error {
	cp := *identity
	s.cache.Set(id.String(), &cp, ttl)
	return nil
}

func (s *MemoryStore) Load(ctx context.Context, id uuid.UUID) (*model.Identity, error) {
	v, ok := s.cache.Get(id.String())
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := *v.(*model.Identity)
	return &cp, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.cache.Delete(id.String())
	return nil
}
