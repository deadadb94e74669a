package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"astro-starter/internal/domain"
)

func TestMemoryUserCache_PutGetInvalidate(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryUserCache(time.Minute)

	_, ok := c.Get(ctx, UsersByLoginCache, "alice")
	assert.False(t, ok)

	c.Put(ctx, UsersByLoginCache, "alice", domain.User{ID: 1, Login: "alice"})
	u, ok := c.Get(ctx, UsersByLoginCache, "alice")
	require.True(t, ok)
	assert.Equal(t, int64(1), u.ID)

	// las cachés con distinto nombre no comparten claves
	_, ok = c.Get(ctx, UsersByEmailCache, "alice")
	assert.False(t, ok)

	c.Invalidate(ctx, UsersByLoginCache, "alice")
	_, ok = c.Get(ctx, UsersByLoginCache, "alice")
	assert.False(t, ok)
}

func TestMemoryUserCache_Expires(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryUserCache(30 * time.Millisecond)
	c.Put(ctx, UsersByEmailCache, "a@x.com", domain.User{Login: "a"})

	time.Sleep(50 * time.Millisecond)
	_, ok := c.Get(ctx, UsersByEmailCache, "a@x.com")
	assert.False(t, ok)
}

func newMiniredisCache(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, UserCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisUserCache(client, ttl, nil)
}

func TestRedisUserCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	mr, c := newMiniredisCache(t, time.Hour)

	reset := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	user := domain.User{
		ID:          7,
		Login:       "alice",
		Email:       "alice@x.com",
		Activated:   true,
		ResetDate:   &reset,
		Authorities: []string{domain.RoleUser},
	}
	c.Put(ctx, UsersByLoginCache, "alice", user)

	assert.True(t, mr.Exists("cache:usersByLogin:alice"))
	assert.Equal(t, time.Hour, mr.TTL("cache:usersByLogin:alice"))

	got, ok := c.Get(ctx, UsersByLoginCache, "alice")
	require.True(t, ok)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, user.Authorities, got.Authorities)
	require.NotNil(t, got.ResetDate)
	assert.True(t, reset.Equal(*got.ResetDate))

	c.Invalidate(ctx, UsersByLoginCache, "alice")
	assert.False(t, mr.Exists("cache:usersByLogin:alice"))
	_, ok = c.Get(ctx, UsersByLoginCache, "alice")
	assert.False(t, ok)
}

func TestRedisUserCache_ExpiresWithTTL(t *testing.T) {
	ctx := context.Background()
	mr, c := newMiniredisCache(t, time.Minute)
	c.Put(ctx, UsersByEmailCache, "a@x.com", domain.User{Login: "a"})

	mr.FastForward(2 * time.Minute)
	_, ok := c.Get(ctx, UsersByEmailCache, "a@x.com")
	assert.False(t, ok)
}

func TestRedisUserCache_FailuresAreMisses(t *testing.T) {
	ctx := context.Background()
	mr, c := newMiniredisCache(t, time.Minute)

	require.NoError(t, mr.Set("cache:usersByLogin:broken", "not-json"))
	_, ok := c.Get(ctx, UsersByLoginCache, "broken")
	assert.False(t, ok)

	mr.Close()
	c.Put(ctx, UsersByLoginCache, "alice", domain.User{Login: "alice"})
	_, ok = c.Get(ctx, UsersByLoginCache, "alice")
	assert.False(t, ok)
	c.Invalidate(ctx, UsersByLoginCache, "alice")
}

func TestNewRedisUserCacheNilClient(t *testing.T) {
	assert.Nil(t, NewRedisUserCache(nil, time.Minute, nil))
}
