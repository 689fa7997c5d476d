package photohistory

import (
	"context"
	"reflect"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache implements Cache with an in-memory TTL store.
type MemoryCache struct {
	cache *gocache.Cache
}

// NewMemoryCache creates a new memory cache. A zero ttl keeps entries until
// the process exits.
func NewMemoryCache(ttl, cleanupInterval time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	return &MemoryCache{
		cache: gocache.New(ttl, cleanupInterval),
	}
}

// Key joins a prefix and a value into a cache key.
func (c *MemoryCache) Key(prefix, value string) string {
	return "photohistory:" + prefix + ":" + value
}

// Get copies the cached value into dest, which must be a non-nil pointer to
// the stored type. Reports false on a miss or a type mismatch.
func (c *MemoryCache) Get(_ context.Context, key string, dest any) bool {
	val, found := c.cache.Get(key)
	if !found {
		return false
	}
	dv := reflect.ValueOf(dest)
	if dv.Kind() != reflect.Pointer || dv.IsNil() {
		return false
	}
	sv := reflect.ValueOf(val)
	if !sv.IsValid() || !sv.Type().AssignableTo(dv.Elem().Type()) {
		return false
	}
	dv.Elem().Set(sv)
	return true
}

// Set stores a value with the cache's default TTL.
func (c *MemoryCache) Set(_ context.Context, key string, value any) {
	c.cache.Set(key, value, gocache.DefaultExpiration)
}

// Len returns the number of cached entries, including expired ones not yet
// cleaned up.
func (c *MemoryCache) Len() int {
	return c.cache.ItemCount()
}
