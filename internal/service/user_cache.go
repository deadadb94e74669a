package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"astro-starter/internal/domain"
)

const (
	UsersByLoginCache = "usersByLogin"
	UsersByEmailCache = "usersByEmail"
)

// UserCache es la caché explícita de búsquedas de usuario. Los errores del backend
// se registran y se tratan como fallos de caché.
type UserCache interface {
	Get(ctx context.Context, cacheName, key string) (domain.User, bool)
	Put(ctx context.Context, cacheName, key string, user domain.User)
	Invalidate(ctx context.Context, cacheName, key string)
}

type cacheEntry struct {
	user      domain.User
	expiresAt time.Time
}

type memoryUserCache struct {
	mu    sync.Mutex
	ttl   time.Duration
	items map[string]cacheEntry
}

func NewMemoryUserCache(ttl time.Duration) UserCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &memoryUserCache{
		ttl:   ttl,
		items: make(map[string]cacheEntry),
	}
}

func (c *memoryUserCache) Get(_ context.Context, cacheName, key string) (domain.User, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := cacheName + ":" + key
	entry, ok := c.items[k]
	if !ok {
		return domain.User{}, false
	}
	if time.Now().UTC().After(entry.expiresAt) {
		delete(c.items, k)
		return domain.User{}, false
	}
	return entry.user, true
}

func (c *memoryUserCache) Put(_ context.Context, cacheName, key string, user domain.User) {
	if key == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[cacheName+":"+key] = cacheEntry{user: user, expiresAt: time.Now().UTC().Add(c.ttl)}
}

func (c *memoryUserCache) Invalidate(_ context.Context, cacheName, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, cacheName+":"+key)
}

type redisCacheClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type redisUserCache struct {
	client redisCacheClient
	ttl    time.Duration
	prefix string
	logger *zap.Logger
}

func NewRedisUserCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) UserCache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &redisUserCache{
		client: client,
		ttl:    ttl,
		prefix: "cache:",
		logger: logger,
	}
}

func (c *redisUserCache) key(cacheName, key string) string {
	return c.prefix + cacheName + ":" + key
}

func (c *redisUserCache) Get(ctx context.Context, cacheName, key string) (domain.User, bool) {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	raw, err := c.client.Get(ctx, c.key(cacheName, key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("user cache get failed", zap.String("cache", cacheName), zap.Error(err))
		}
		return domain.User{}, false
	}
	var user domain.User
	if err := json.Unmarshal(raw, &user); err != nil {
		c.logger.Warn("user cache decode failed", zap.String("cache", cacheName), zap.Error(err))
		return domain.User{}, false
	}
	return user, true
}

func (c *redisUserCache) Put(ctx context.Context, cacheName, key string, user domain.User) {
	if key == "" {
		return
	}
	raw, err := json.Marshal(user)
	if err != nil {
		c.logger.Warn("user cache encode failed", zap.String("cache", cacheName), zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	if err := c.client.Set(ctx, c.key(cacheName, key), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("user cache put failed", zap.String("cache", cacheName), zap.Error(err))
	}
}

func (c *redisUserCache) Invalidate(ctx context.Context, cacheName, key string) {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	if err := c.client.Del(ctx, c.key(cacheName, key)).Err(); err != nil {
		c.logger.Warn("user cache invalidate failed", zap.String("cache", cacheName), zap.Error(err))
	}
}

// invalidateUser limpia ambas cachés de búsqueda para el login y el email dados.
func invalidateUser(ctx context.Context, cache UserCache, login, email string) {
	if cache == nil {
		return
	}
	if login != "" {
		cache.Invalidate(ctx, UsersByLoginCache, login)
	}
	if email != "" {
		cache.Invalidate(ctx, UsersByEmailCache, email)
	}
}
