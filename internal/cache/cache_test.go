package cache

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache(t *testing.T) {
	config := Config{
		Type:            "memory",
		DefaultTTL:      time.Second * 2,
		CleanupInterval: time.Second,
	}
	cache, err := NewMemoryCache(config)
	require.NoError(t, err)

	t.Run("SetAndGet", func(t *testing.T) {
		require.NoError(t, cache.Set("key1", "value1", 0))

		val, found, err := cache.Get("key1")
		assert.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "value1", val)
	})

	t.Run("MissingKey", func(t *testing.T) {
		val, found, err := cache.Get("non-existent")
		assert.NoError(t, err)
		assert.False(t, found)
		assert.Empty(t, val)
	})

	t.Run("Expiry", func(t *testing.T) {
		require.NoError(t, cache.Set("expire-soon", "temp-value", time.Millisecond*100))
		time.Sleep(time.Millisecond * 200)

		_, found, err := cache.Get("expire-soon")
		assert.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, cache.Set("to-delete", "delete-me", 0))
		require.NoError(t, cache.Delete("to-delete"))

		_, found, err := cache.Get("to-delete")
		assert.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("Clear", func(t *testing.T) {
		require.NoError(t, cache.Set("key2", "value2", 0))
		require.NoError(t, cache.Clear())

		_, found, err := cache.Get("key2")
		assert.NoError(t, err)
		assert.False(t, found)
	})
}

func TestRedisCache(t *testing.T) {
	server := miniredis.RunT(t)

	cache, err := NewRedisCache(Config{
		Type:      "redis",
		RedisAddr: server.Addr(),
	})
	require.NoError(t, err)

	t.Run("SetAndGet", func(t *testing.T) {
		require.NoError(t, cache.Set("redis-key1", "redis-value1", 0))

		val, found, err := cache.Get("redis-key1")
		assert.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "redis-value1", val)
	})

	t.Run("MissingKey", func(t *testing.T) {
		val, found, err := cache.Get("redis-non-existent")
		assert.NoError(t, err)
		assert.False(t, found)
		assert.Empty(t, val)
	})

	t.Run("Expiry", func(t *testing.T) {
		require.NoError(t, cache.Set("redis-expire-soon", "redis-temp-value", time.Second))

		server.FastForward(time.Second * 2)

		_, found, err := cache.Get("redis-expire-soon")
		assert.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, cache.Set("redis-to-delete", "redis-delete-me", 0))
		require.NoError(t, cache.Delete("redis-to-delete"))

		_, found, err := cache.Get("redis-to-delete")
		assert.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("ClearOnlyRemovesOwnNamespace", func(t *testing.T) {
		require.NoError(t, server.Set("otra-app:dato", "ajeno"))
		require.NoError(t, cache.Set("redis-key2", "redis-value2", 0))

		require.NoError(t, cache.Clear())

		_, found, err := cache.Get("redis-key2")
		assert.NoError(t, err)
		assert.False(t, found)

		foreign, err := server.Get("otra-app:dato")
		assert.NoError(t, err)
		assert.Equal(t, "ajeno", foreign)
	})

	t.Run("ConnectionFailure", func(t *testing.T) {
		broken := server.Addr()
		server.Close()
		_, err := NewRedisCache(Config{Type: "redis", RedisAddr: broken})
		assert.Error(t, err)
	})
}

func TestCacheFactory(t *testing.T) {
	t.Run("MemoryByDefault", func(t *testing.T) {
		memCache, err := NewCache(DefaultConfig())
		assert.NoError(t, err)
		assert.NotNil(t, memCache)
	})

	t.Run("UnknownTypeFallsBackToMemory", func(t *testing.T) {
		unknownCache, err := NewCache(Config{Type: "unknown-type"})
		assert.NoError(t, err)
		assert.NotNil(t, unknownCache)
	})
}

func TestGenerateCacheKey(t *testing.T) {
	assert.Equal(t, "prefix", GenerateCacheKey("prefix"))
	assert.Equal(t, "prefix:part1", GenerateCacheKey("prefix", "part1"))
	assert.Equal(t, "prefix:part1:part2:part3", GenerateCacheKey("prefix", "part1", "part2", "part3"))
}

func TestAnswerKey(t *testing.T) {
	t.Run("NormalizesQuestion", func(t *testing.T) {
		a := AnswerKey("gpt", "¿Cuándo es la matrícula?")
		b := AnswerKey("gpt", "  ¿cuándo es la matrícula?  ")
		assert.Equal(t, a, b)
	})

	t.Run("DistinguishesBackends", func(t *testing.T) {
		a := AnswerKey("gpt", "¿Cuándo es la matrícula?")
		b := AnswerKey("deepseek", "¿Cuándo es la matrícula?")
		assert.NotEqual(t, a, b)
	})

	t.Run("DistinguishesQuestions", func(t *testing.T) {
		a := AnswerKey("gpt", "pregunta uno")
		b := AnswerKey("gpt", "pregunta dos")
		assert.NotEqual(t, a, b)
	})
}
