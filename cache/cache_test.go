package cache

import (
	"errors"
	"fmt"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestCache creates a small cache for testing
func setupTestCache(t *testing.T, maxEntries int, maxAge time.Duration) *Cache {
	t.Helper()

	c, err := New(Options{MaxEntries: maxEntries, MaxAge: maxAge})
	require.NoError(t, err)
	return c
}

func TestNewRejectsInvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"zero entries", Options{MaxEntries: 0, MaxAge: time.Second}},
		{"negative entries", Options{MaxEntries: -1, MaxAge: time.Second}},
		{"zero age", Options{MaxEntries: 10, MaxAge: 0}},
		{"negative age", Options{MaxEntries: 10, MaxAge: -time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.opts)
			assert.Nil(t, c)
			assert.True(t, errors.Is(err, ErrInvalidOptions))
		})
	}
}

func TestNewDefault(t *testing.T) {
	c := NewDefault()
	require.NotNil(t, c)
	assert.Equal(t, DefaultMaxEntries, c.MaxEntries())
	assert.Equal(t, DefaultMaxAge, c.MaxAge())
}

func TestSetAndGet(t *testing.T) {
	c := setupTestCache(t, 10, time.Minute)

	c.Set("/api/ping", "pong")

	assert.True(t, c.Has("/api/ping"))
	value, ok := c.Get("/api/ping")
	require.True(t, ok)
	assert.Equal(t, "pong", value)
}

func TestGetNonExistentKey(t *testing.T) {
	c := setupTestCache(t, 10, time.Minute)

	assert.False(t, c.Has("/api/missing"))
	value, ok := c.Get("/api/missing")
	assert.False(t, ok)
	assert.Nil(t, value)
}

func TestSetOverwrites(t *testing.T) {
	c := setupTestCache(t, 10, time.Minute)

	c.Set("/api/ping", "first")
	c.Set("/api/ping", "second")

	value, ok := c.Get("/api/ping")
	require.True(t, ok)
	assert.Equal(t, "second", value)
	assert.Equal(t, 1, c.Len())
}

func TestStructuredValues(t *testing.T) {
	c := setupTestCache(t, 10, time.Minute)

	payload := map[string]any{"id": float64(1), "tags": []any{"a", "b"}}
	c.Set("/api/item", payload)

	value, ok := c.Get("/api/item")
	require.True(t, ok)
	assert.Equal(t, payload, value)
}

func TestExpiredEntryIsAbsent(t *testing.T) {
	c := setupTestCache(t, 10, 30*time.Millisecond)

	c.Set("/api/ping", "pong")
	require.True(t, c.Has("/api/ping"))

	time.Sleep(60 * time.Millisecond)

	assert.False(t, c.Has("/api/ping"), "expired entry should be absent")
	_, ok := c.Get("/api/ping")
	assert.False(t, ok, "expired entry should not be returned")
	assert.Equal(t, 0, c.Len(), "expired entry should be removed")
}

func TestReadDoesNotExtendExpiry(t *testing.T) {
	c := setupTestCache(t, 10, 100*time.Millisecond)

	c.Set("/api/ping", "pong")
	time.Sleep(40 * time.Millisecond)
	_, ok := c.Get("/api/ping")
	require.True(t, ok)

	time.Sleep(80 * time.Millisecond)
	assert.False(t, c.Has("/api/ping"), "expiry is fixed at insertion time")
}

func TestCapacityEvictsLeastRecentlyUsed(t *testing.T) {
	c := setupTestCache(t, 2, time.Minute)

	c.Set("/api/a", "a")
	c.Set("/api/b", "b")

	// Touch a so that b becomes the least recently used entry
	_, ok := c.Get("/api/a")
	require.True(t, ok)

	c.Set("/api/c", "c")

	assert.Equal(t, 2, c.Len())
	assert.True(t, c.Has("/api/a"))
	assert.False(t, c.Has("/api/b"), "least recently used entry should be evicted")
	assert.True(t, c.Has("/api/c"))
}

func TestCapacityNeverExceeded(t *testing.T) {
	const maxEntries = 8
	c := setupTestCache(t, maxEntries, time.Minute)

	for i := 0; i < maxEntries*4; i++ {
		c.Set(fmt.Sprintf("/api/item/%d", i), i)
		assert.LessOrEqual(t, c.Len(), maxEntries)
	}

	// Only the most recent keys survive
	for i := maxEntries * 3; i < maxEntries*4; i++ {
		assert.True(t, c.Has(fmt.Sprintf("/api/item/%d", i)))
	}
	assert.False(t, c.Has("/api/item/0"))
}

func TestHasDoesNotTouchRecency(t *testing.T) {
	c := setupTestCache(t, 2, time.Minute)

	c.Set("/api/a", "a")
	c.Set("/api/b", "b")

	// Has must not promote a
	assert.True(t, c.Has("/api/a"))

	c.Set("/api/c", "c")

	assert.False(t, c.Has("/api/a"))
	assert.True(t, c.Has("/api/b"))
}

func TestKeysAndPurge(t *testing.T) {
	c := setupTestCache(t, 10, time.Minute)

	c.Set("/api/a", "a")
	c.Set("/api/b", "b")

	assert.Equal(t, []string{"/api/a", "/api/b"}, c.Keys())

	c.Purge()
	assert.Equal(t, 0, c.Len())
	assert.Empty(t, c.Keys())
}

func TestExpiryUsesInsertionClock(t *testing.T) {
	c := setupTestCache(t, 10, time.Minute)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	c.Set("/api/ping", "pong")
	c.Set("/api/user", "ada")

	now = now.Add(59 * time.Second)
	assert.Equal(t, []string{"/api/ping", "/api/user"}, c.Keys())

	now = now.Add(time.Second)
	assert.Empty(t, c.Keys(), "entries expire exactly MaxAge after insertion")
	assert.Equal(t, 2, c.Len(), "expired entries stay until looked up")

	_, ok := c.Get("/api/ping")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())
}

func TestNewStartsNoGoroutines(t *testing.T) {
	before := runtime.NumGoroutine()
	for i := 0; i < 100; i++ {
		setupTestCache(t, 10, time.Millisecond)
	}
	assert.LessOrEqual(t, runtime.NumGoroutine(), before+5)
}
