package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/duzhibot/internal/testutils"
	"github.com/aretw0/duzhibot/pkg/adapters/redis"
	"github.com/aretw0/duzhibot/pkg/domain"
	"github.com/aretw0/duzhibot/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.StateStore = (*redis.Store)(nil)

func TestRedisStore_Contract(t *testing.T) {
	_, client := testutils.SetupRedis(t)
	ports.RunStateStoreContract(t, redis.NewFromClient(client))
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	mr, client := testutils.SetupRedis(t)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := redis.NewFromClient(client,
		redis.WithTTL(time.Second),
		redis.WithClock(func() time.Time { return now }),
	)
	ctx := context.Background()

	state := domain.NewState("session-ttl", "init.init")
	state.Data["nick"] = "alice"
	require.NoError(t, store.Save(ctx, "session-ttl", state))

	sessions, err := store.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, sessions, "session-ttl")

	mr.FastForward(2 * time.Second)
	now = now.Add(2 * time.Second)

	_, err = store.Load(ctx, "session-ttl")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	sessions, err = store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions, "expired ids are pruned from the index")
}

func TestRedisStore_Prefix(t *testing.T) {
	mr, client := testutils.SetupRedis(t)

	store := redis.NewFromClient(client, redis.WithPrefix("custom:app:"))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "my-session", domain.NewState("my-session", "init.init")))

	assert.True(t, mr.Exists("custom:app:my-session"), "session key carries the prefix")
	assert.True(t, mr.Exists("custom:app:index"), "index key carries the prefix")

	list, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"my-session"}, list)

	require.NoError(t, store.Delete(ctx, "my-session"))
	assert.False(t, mr.Exists("custom:app:my-session"))
}

func TestRedisStore_HashLayout(t *testing.T) {
	mr, client := testutils.SetupRedis(t)
	store := redis.NewFromClient(client)
	ctx := context.Background()

	state := domain.NewState("U1", "init.init")
	state.Visit("init.registered")
	state.Data["nick"] = "alice"
	require.NoError(t, store.Save(ctx, "U1", state))

	key := redis.DefaultPrefix + "U1"
	assert.Equal(t, "init.registered", mr.HGet(key, "path"))
	assert.JSONEq(t, `{"nick":"alice"}`, mr.HGet(key, "data"))
	assert.JSONEq(t, `["init.init","init.registered"]`, mr.HGet(key, "history"))
	assert.Zero(t, mr.TTL(key), "no TTL configured")

	loaded, err := store.Load(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, "U1", loaded.SessionID)
	assert.True(t, state.UpdatedAt.Equal(loaded.UpdatedAt))

	mr.HSet(key, "data", "{broken")
	_, err = store.Load(ctx, "U1")
	assert.ErrorContains(t, err, "bad session field data")
}
