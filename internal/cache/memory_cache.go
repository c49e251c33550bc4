package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache is an in-process cache built on go-cache.
type MemoryCache struct {
	cache *gocache.Cache
}

// NewMemoryCache creates a new in-memory cache.
func NewMemoryCache(config Config) (Cache, error) {
	defaultExpiration := config.DefaultTTL
	if defaultExpiration == 0 {
		defaultExpiration = 24 * time.Hour
	}

	cleanupInterval := config.CleanupInterval
	if cleanupInterval == 0 {
		cleanupInterval = 10 * time.Minute
	}

	return &MemoryCache{
		cache: gocache.New(defaultExpiration, cleanupInterval),
	}, nil
}

// Get returns the cached value for key, if present.
func (m *MemoryCache) Get(key string) (string, bool, error) {
	if value, found := m.cache.Get(key); found {
		str, ok := value.(string)
		if !ok {
			return "", false, nil
		}
		return str, true, nil
	}
	return "", false, nil
}

// Set stores a value. A zero ttl means the configured default.
func (m *MemoryCache) Set(key string, value string, ttl time.Duration) error {
	if ttl == 0 {
		ttl = gocache.DefaultExpiration
	}
	m.cache.Set(key, value, ttl)
	return nil
}

// Delete removes a cache entry.
func (m *MemoryCache) Delete(key string) error {
	m.cache.Delete(key)
	return nil
}

// Clear removes all cache entries.
func (m *MemoryCache) Clear() error {
	m.cache.Flush()
	return nil
}

func init() {
	RegisterCache("memory", NewMemoryCache)
}
