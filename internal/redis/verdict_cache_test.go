package redis_test

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/rueidis"
	"github.com/robalyx/guardian/internal/moderation"
	"github.com/robalyx/guardian/internal/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupCache(t *testing.T, ttl time.Duration) (*redis.VerdictCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return redis.NewVerdictCache(client, ttl, zap.NewNop()), mr
}

func TestVerdictCacheMiss(t *testing.T) {
	t.Parallel()
	cache, _ := setupCache(t, time.Hour)

	verdict, ok, err := cache.Get(t.Context(), "never seen")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, verdict)
}

func TestVerdictCacheRoundTrip(t *testing.T) {
	t.Parallel()
	cache, mr := setupCache(t, time.Hour)

	ctx := t.Context()
	require.NoError(t, cache.Set(ctx, "some text", &moderation.Verdict{Flagged: true, Reason: "Harassment"}))

	verdict, ok, err := cache.Get(ctx, "some text")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, verdict.Flagged)
	assert.Equal(t, "Harassment", verdict.Reason)

	assert.Equal(t, time.Hour, mr.TTL(redis.Key("some text")))
}

func TestVerdictCacheExpires(t *testing.T) {
	t.Parallel()
	cache, mr := setupCache(t, time.Minute)

	ctx := t.Context()
	require.NoError(t, cache.Set(ctx, "short lived", &moderation.Verdict{}))

	mr.FastForward(2 * time.Minute)

	_, ok, err := cache.Get(ctx, "short lived")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerdictCacheIgnoresCorruptEntries(t *testing.T) {
	t.Parallel()
	cache, mr := setupCache(t, time.Hour)

	require.NoError(t, mr.Set(redis.Key("broken"), "not json"))

	_, ok, err := cache.Get(t.Context(), "broken")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKeyNormalizesText(t *testing.T) {
	t.Parallel()

	// Precomposed and decomposed forms of "é" share a key.
	assert.Equal(t, redis.Key("caf\u00e9"), redis.Key("cafe\u0301"))
	assert.NotEqual(t, redis.Key("cafe"), redis.Key("caf\u00e9"))
	assert.Contains(t, redis.Key("x"), redis.VerdictKeyPrefix)
}
