//go:build integration

package game

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisClient(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, rdb.Ping(ctx).Err(), "redis is not reachable")
	return rdb
}

func TestRedisPersistence_RestoreFinishedSession(t *testing.T) {
	ctx := context.Background()
	rdb := newRedisClient(t)
	require.NoError(t, rdb.FlushDB(ctx).Err())

	persist := NewRedisSessionStore(rdb, time.Hour)

	svc1 := NewSessionService(DefaultConfig(), newSequence("RGBY", "OOOO"), persist, nil)
	sess, err := svc1.Create(ctx, "u1")
	require.NoError(t, err)

	_, err = sess.SubmitGuess(code("RGYB"))
	require.NoError(t, err)
	_, err = sess.SubmitGuess(code("RGBY"))
	require.NoError(t, err)
	require.Equal(t, PhaseWon, sess.Phase())

	// restart: new service with an empty cache
	svc2 := NewSessionService(DefaultConfig(), newSequence("WWWW"), persist, nil)
	restored, ok, err := svc2.GetOrLoad(ctx, sess.ID())
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, sess.State(), restored.State())
	_, err = restored.SubmitGuess(code("RGBY"))
	require.ErrorIs(t, err, ErrSessionTerminated)

	restored.Reset()
	snap, found, err := persist.Load(ctx, sess.ID())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, PhaseInProgress, snap.Phase)
	assert.Equal(t, code("WWWW"), snap.Secret)
	assert.Empty(t, snap.History)
}

func TestRedisPersistence_RestoreDraftMidGame(t *testing.T) {
	ctx := context.Background()
	rdb := newRedisClient(t)
	require.NoError(t, rdb.FlushDB(ctx).Err())

	persist := NewRedisSessionStore(rdb, time.Hour)
	svc := NewSessionService(DefaultConfig(), newSequence("RGBY"), persist, nil)

	sess, err := svc.Create(ctx, "u1")
	require.NoError(t, err)
	require.NoError(t, sess.PickColor("R"))
	require.NoError(t, sess.PickColor("G"))

	svc2 := NewSessionService(DefaultConfig(), nil, persist, nil)
	restored, ok, err := svc2.GetOrLoad(ctx, sess.ID())
	require.NoError(t, err)
	require.True(t, ok)

	st := restored.State()
	assert.Equal(t, PhaseInProgress, st.Phase)
	assert.Equal(t, code("RG"), st.Draft)
	assert.Equal(t, 10, st.TriesRemaining)
}

func TestRedisPersistence_TTLAndDelete(t *testing.T) {
	ctx := context.Background()
	rdb := newRedisClient(t)
	require.NoError(t, rdb.FlushDB(ctx).Err())

	persist := NewRedisSessionStore(rdb, time.Minute)
	snap := SessionSnapshot{SessionID: "abc", OwnerID: "u1", Phase: PhaseInProgress, Secret: code("RGBY")}
	require.NoError(t, persist.Save(ctx, "abc", snap))

	ttl, err := rdb.TTL(ctx, "session:abc:snapshot").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)

	require.NoError(t, persist.Delete(ctx, "abc"))
	_, found, err := persist.Load(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, found)
}
