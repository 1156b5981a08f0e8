package kvstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/withaibuild/site/internal/config"
)

func skipIfNoRedis(t *testing.T) {
	t.Helper()
	if os.Getenv("TEST_REDIS") != "true" {
		t.Skip("Skipping: TEST_REDIS not set. Run with docker-compose up -d")
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func setupTestRedis(t *testing.T, opts ...RedisOption) *RedisStore {
	t.Helper()
	skipIfNoRedis(t)

	ctx := context.Background()
	client, err := NewRedisClient(ctx, &config.RedisConfig{
		Host:     getEnvOrDefault("REDIS_HOST", "localhost"),
		Port:     6379,
		Password: getEnvOrDefault("REDIS_PASSWORD", ""),
		PoolSize: 5,
	})
	require.NoError(t, err)

	opts = append([]RedisOption{WithKeyPrefix("test:")}, opts...)
	store := NewRedisStore(client, opts...)

	t.Cleanup(func() {
		iter := client.Scan(ctx, 0, "test:*", 0).Iterator()
		for iter.Next(ctx) {
			_ = client.Del(ctx, iter.Val())
		}
		_ = store.Close()
	})

	return store
}

func TestRedisStore_GetSet(t *testing.T) {
	store := setupTestRedis(t)
	ctx := context.Background()

	_, err := store.Get(ctx, "rl_missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Set(ctx, "rl_contact_form", []byte(`{"attempts":[1,2]}`)))

	got, err := store.Get(ctx, "rl_contact_form")
	require.NoError(t, err)
	assert.Equal(t, `{"attempts":[1,2]}`, string(got))

	exists, err := store.Client().Exists(ctx, "test:rl_contact_form").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)
}

func TestRedisStore_TTL(t *testing.T) {
	store := setupTestRedis(t, WithTTL(time.Minute))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "rl_newsletter", []byte("x")))

	ttl, err := store.Client().TTL(ctx, "test:rl_newsletter").Result()
	require.NoError(t, err)
	assert.True(t, ttl > 0 && ttl <= time.Minute)
}

func TestRedisStore_Unavailable(t *testing.T) {
	skipIfNoRedis(t)

	ctx := context.Background()
	store := setupTestRedis(t)
	require.NoError(t, store.Close())

	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, store.Set(ctx, "k", []byte("v")), ErrUnavailable)
}
