package cache

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bnolan/preact-kit/logcolors"

	lru "github.com/hashicorp/golang-lru/v2"
	log "github.com/sirupsen/logrus"
)

const (
	// DefaultMaxEntries caps the number of cached route responses
	DefaultMaxEntries = 32768
	// DefaultMaxAge is how long a cached response stays fresh
	DefaultMaxAge = time.Second
)

// ErrInvalidOptions is returned by New for non-positive bounds
var ErrInvalidOptions = errors.New("invalid cache options")

// Options bounds the cache by entry count and by entry age
type Options struct {
	MaxEntries int
	MaxAge     time.Duration
}

// Cache is a capacity- and age-bounded store of canonical response values
// keyed by route path. Expiry is fixed at insertion time; reads do not
// extend it. When full, the least recently used entry is evicted. Expired
// entries are dropped when they are next looked up, so a Cache owns no
// background goroutine and needs no Close.
type Cache struct {
	// mu makes the expired-entry cleanup atomic with the lookup that found it
	mu         sync.Mutex
	lru        *lru.Cache[string, entry]
	maxEntries int
	maxAge     time.Duration
	now        func() time.Time
}

type entry struct {
	value     any
	expiresAt time.Time
}

// New creates a bounded cache
func New(opts Options) (*Cache, error) {
	if opts.MaxEntries <= 0 {
		return nil, fmt.Errorf("%w: max entries must be positive, got %d", ErrInvalidOptions, opts.MaxEntries)
	}
	if opts.MaxAge <= 0 {
		return nil, fmt.Errorf("%w: max age must be positive, got %v", ErrInvalidOptions, opts.MaxAge)
	}

	onEvict := func(key string, _ entry) {
		log.Debugf("%s Dropped key: %s", logcolors.LogCacheEvict, key)
	}
	l, err := lru.NewWithEvict[string, entry](opts.MaxEntries, onEvict)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}

	return &Cache{
		lru:        l,
		maxEntries: opts.MaxEntries,
		maxAge:     opts.MaxAge,
		now:        time.Now,
	}, nil
}

// NewDefault creates a cache with the default bounds
func NewDefault() *Cache {
	c, _ := New(Options{MaxEntries: DefaultMaxEntries, MaxAge: DefaultMaxAge})
	return c
}

func (c *Cache) fresh(e entry) bool {
	return c.now().Before(e.expiresAt)
}

// Has reports whether a fresh entry exists for key. An expired entry is
// removed as a side effect. Has does not affect recency.
func (c *Cache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Peek(key)
	if !ok {
		return false
	}
	if c.fresh(e) {
		return true
	}
	c.lru.Remove(key)
	return false
}

// Get returns the fresh value for key and marks it most recently used
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Peek(key)
	if !ok {
		return nil, false
	}
	if !c.fresh(e) {
		c.lru.Remove(key)
		return nil, false
	}
	c.lru.Get(key)
	return e.value, true
}

// Set stores value under key with a fresh expiry, evicting the least
// recently used entry if the cache is full.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if evicted := c.lru.Add(key, entry{value: value, expiresAt: c.now().Add(c.maxAge)}); evicted {
		log.Debugf("%s Capacity %d reached while storing %s", logcolors.LogCacheEvict, c.maxEntries, key)
	}
}

// Len returns the number of stored entries, including expired ones that
// have not been looked up since they expired.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// Keys returns the keys of fresh entries, oldest first
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var keys []string
	for _, key := range c.lru.Keys() {
		if e, ok := c.lru.Peek(key); ok && c.fresh(e) {
			keys = append(keys, key)
		}
	}
	return keys
}

// Purge removes every entry
func (c *Cache) Purge() {
	c.lru.Purge()
}

// MaxEntries returns the configured capacity
func (c *Cache) MaxEntries() int {
	return c.maxEntries
}

// MaxAge returns the configured time-to-live
func (c *Cache) MaxAge() time.Duration {
	return c.maxAge
}
