package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Cache stores serialized answers keyed by backend and question.
type Cache interface {
	Get(key string) (value string, found bool, err error)
	Set(key string, value string, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Factory builds a Cache from a config.
type Factory func(config Config) (Cache, error)

var registry = make(map[string]Factory)

// RegisterCache registers a cache implementation under a type name.
func RegisterCache(name string, factory Factory) {
	registry[name] = factory
}

// NewCache creates the cache named by config.Type, defaulting to the
// in-memory implementation for unknown types.
func NewCache(config Config) (Cache, error) {
	if factory, ok := registry[config.Type]; ok {
		return factory(config)
	}
	return NewMemoryCache(config)
}

// Config holds cache settings.
type Config struct {
	Type            string // "memory" or "redis"
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	DefaultTTL      time.Duration
	CleanupInterval time.Duration // memory cache only
}

// DefaultConfig returns the cache defaults.
func DefaultConfig() Config {
	return Config{
		Type:            "memory",
		DefaultTTL:      time.Hour * 24,
		CleanupInterval: time.Minute * 10,
	}
}

// GenerateCacheKey joins a prefix and parts into a stable cache key.
func GenerateCacheKey(prefix string, parts ...string) string {
	if len(parts) == 0 {
		return prefix
	}

	key := prefix
	for _, part := range parts {
		key += ":" + part
	}
	return key
}

// AnswerKey builds the cache key for one backend's answer to a question.
// The question is hashed so long or punctuation-heavy questions always
// produce a valid key, and normalized so trivial variants share an entry.
func AnswerKey(backendID, question string) string {
	normalized := strings.ToLower(strings.TrimSpace(question))
	sum := sha256.Sum256([]byte(normalized))
	return GenerateCacheKey("answer", strings.ToLower(backendID), hex.EncodeToString(sum[:16]))
}
