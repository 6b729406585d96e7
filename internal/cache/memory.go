package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryCache is an in-process Cache used when no Redis is configured.
// A background janitor evicts entries as they expire; Close stops it.
type MemoryCache struct {
	items     *ttlcache.Cache[string, []byte]
	incrMu    sync.Mutex
	closeOnce sync.Once
}

// NewMemoryCache creates an empty MemoryCache and starts its janitor.
func NewMemoryCache() *MemoryCache {
	items := ttlcache.New[string, []byte](
		ttlcache.WithDisableTouchOnHit[string, []byte](),
	)
	go items.Start()
	return &MemoryCache{items: items}
}

func (c *MemoryCache) Ping(_ context.Context) error { return nil }

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.items.Set(key, append([]byte(nil), value...), itemTTL(ttl))
	return nil
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	item := c.items.Get(key)
	if item == nil || item.IsExpired() {
		return nil, false, nil
	}
	return append([]byte(nil), item.Value()...), true, nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.items.Delete(key)
	return nil
}

// IncrWithExpiry keeps the window of an existing counter and only sets
// the expiry when the counter is created, matching the Redis EXPIRE NX
// behaviour.
func (c *MemoryCache) IncrWithExpiry(_ context.Context, key string, expiry time.Duration) (int64, error) {
	c.incrMu.Lock()
	defer c.incrMu.Unlock()

	ttl := itemTTL(expiry)
	var n int64
	if item := c.items.Get(key); item != nil && !item.IsExpired() {
		n, _ = strconv.ParseInt(string(item.Value()), 10, 64)
		if exp := item.ExpiresAt(); !exp.IsZero() {
			ttl = time.Until(exp)
			if ttl <= 0 {
				n, ttl = 0, itemTTL(expiry)
			}
		} else {
			ttl = ttlcache.NoTTL
		}
	}
	n++
	c.items.Set(key, []byte(strconv.FormatInt(n, 10)), ttl)
	return n, nil
}

// Len reports how many entries the cache still holds, expired or not.
func (c *MemoryCache) Len() int { return c.items.Len() }

func (c *MemoryCache) Close() error {
	c.closeOnce.Do(c.items.Stop)
	return nil
}

func itemTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return ttlcache.NoTTL
	}
	return ttl
}

var (
	_ Cache = (*MemoryCache)(nil)
	_ Cache = (*RedisCache)(nil)
)
