package session

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/meditrack/pkg/security"
)

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, store.Save(ctx, id, doctorIdentity(), time.Hour))
	got, err := store.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "dr.smith", got.User.Username)

	require.NoError(t, store.Delete(ctx, id))
	_, err = store.Load(ctx, id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemoryStore_Expiry(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, store.Save(ctx, id, doctorIdentity(), 20*time.Millisecond))
	time.Sleep(40 * time.Millisecond)

	_, err := store.Load(ctx, id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("MEDITRACK_TEST_REDIS_URL")
	if url == "" {
		t.Skip("MEDITRACK_TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	defer client.Close()

	enc, err := security.NewAESEncryptorFromSecret("test-key")
	require.NoError(t, err)
	store := NewRedisStore(client, enc)
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, store.Save(ctx, id, doctorIdentity(), time.Minute))

	raw, err := client.Get(ctx, redisKeyPrefix+id.String()).Bytes()
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "upstream-token")

	got, err := store.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "upstream-token", got.Token)

	require.NoError(t, store.Delete(ctx, id))
	_, err = store.Load(ctx, id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
