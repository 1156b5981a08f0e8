package kvstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_GetSet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	t.Run("missing key returns ErrNotFound", func(t *testing.T) {
		_, err := store.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("stored value round trips", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "rl_contact_form", []byte(`{"attempts":[1]}`)))

		got, err := store.Get(ctx, "rl_contact_form")
		require.NoError(t, err)
		assert.Equal(t, `{"attempts":[1]}`, string(got))
	})

	t.Run("returned slice is a copy", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "k", []byte("abc")))

		got, err := store.Get(ctx, "k")
		require.NoError(t, err)
		got[0] = 'z'

		again, err := store.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "abc", string(again))
	})
}

func TestMemoryStore_TTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	store := NewMemoryStore(time.Minute)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Set(ctx, "k", []byte("v")))

	now = now.Add(59 * time.Second)
	_, err := store.Get(ctx, "k")
	require.NoError(t, err)

	now = now.Add(time.Second)
	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStore_SetSweepsExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	store := NewMemoryStore(time.Minute)
	store.now = func() time.Time { return now }

	for i := 0; i < 10000; i++ {
		key := fmt.Sprintf("rl_contact_form:198.51.%d.%d", i/256, i%256)
		require.NoError(t, store.Set(ctx, key, []byte(`{"attempts":[1]}`)))
	}
	assert.Equal(t, 10000, store.Len())

	now = now.Add(48 * time.Hour)
	require.NoError(t, store.Set(ctx, "rl_contact_form:203.0.113.1", []byte(`{"attempts":[2]}`)))

	assert.Equal(t, 1, store.Len())
	got, err := store.Get(ctx, "rl_contact_form:203.0.113.1")
	require.NoError(t, err)
	assert.Equal(t, `{"attempts":[2]}`, string(got))
}

func TestMemoryStore_Sweep(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	store := NewMemoryStore(time.Minute)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Set(ctx, "old", []byte("v")))
	now = now.Add(30 * time.Second)
	require.NoError(t, store.Set(ctx, "fresh", []byte("v")))

	now = now.Add(30 * time.Second)
	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 1, store.Len())

	forever := NewMemoryStore(0)
	require.NoError(t, forever.Set(ctx, "k", []byte("v")))
	assert.Equal(t, 0, forever.Sweep())
	assert.Equal(t, 1, forever.Len())
}

func TestMemoryStore_ContextCancellation(t *testing.T) {
	store := NewMemoryStore(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, store.Set(ctx, "k", nil), context.Canceled)
}

func TestPrefixed(t *testing.T) {
	ctx := context.Background()
	base := NewMemoryStore(0)

	a := WithPrefix(base, "client:1.1.1.1:")
	b := WithPrefix(base, "client:2.2.2.2:")

	require.NoError(t, a.Set(ctx, "rl_newsletter", []byte("a")))

	_, err := b.Get(ctx, "rl_newsletter")
	assert.ErrorIs(t, err, ErrNotFound, "prefixes must isolate clients")

	raw, err := base.Get(ctx, "client:1.1.1.1:rl_newsletter")
	require.NoError(t, err)
	assert.Equal(t, "a", string(raw))
}
