package cache

import (
	"time"

	"github.com/mongodb/grip"
)

const (
	// DefaultMaxCacheSize is the default maximum number of secrets held in
	// the cache.
	DefaultMaxCacheSize = 1024
	// DefaultCacheItemTTL is the default duration that a cached secret is
	// considered fresh.
	DefaultCacheItemTTL = time.Hour
)

// CacheConfig represents options to configure a BasicSecretCache. It cannot be
// changed once the cache is created.
type CacheConfig struct {
	// MaxCacheSize is the maximum number of secrets to keep in the cache. Once
	// the cache holds this many secrets, the least recently used secret is
	// evicted to make room for a new one.
	MaxCacheSize *int
	// CacheItemTTL is how long a cached secret is considered fresh. Once a
	// secret has been cached this long, the next request for it refetches it.
	// A TTL of zero refetches the secret on every request.
	CacheItemTTL *time.Duration
	// Clock returns the current time. It should only be set in tests.
	Clock func() time.Time
}

// NewCacheConfig returns new uninitialized options to create a cache.
func NewCacheConfig() *CacheConfig {
	return &CacheConfig{}
}

// SetMaxCacheSize sets the maximum number of secrets held in the cache.
func (c *CacheConfig) SetMaxCacheSize(size int) *CacheConfig {
	c.MaxCacheSize = &size
	return c
}

// SetCacheItemTTL sets the duration that a cached secret is considered fresh.
func (c *CacheConfig) SetCacheItemTTL(ttl time.Duration) *CacheConfig {
	c.CacheItemTTL = &ttl
	return c
}

// SetClock sets the source of the current time.
func (c *CacheConfig) SetClock(clock func() time.Time) *CacheConfig {
	c.Clock = clock
	return c
}

// Validate checks that the options are valid and sets defaults for unspecified
// options.
func (c *CacheConfig) Validate() error {
	catcher := grip.NewBasicCatcher()
	catcher.ErrorfWhen(c.MaxCacheSize != nil && *c.MaxCacheSize < 1, "max cache size must be positive, but got %d", c.getMaxCacheSize())
	catcher.ErrorfWhen(c.CacheItemTTL != nil && *c.CacheItemTTL < 0, "cache item TTL cannot be negative, but got %s", c.getCacheItemTTL())
	if catcher.HasErrors() {
		return catcher.Resolve()
	}

	if c.MaxCacheSize == nil {
		c.SetMaxCacheSize(DefaultMaxCacheSize)
	}
	if c.CacheItemTTL == nil {
		c.SetCacheItemTTL(DefaultCacheItemTTL)
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}

	return nil
}

func (c *CacheConfig) getMaxCacheSize() int {
	if c.MaxCacheSize == nil {
		return DefaultMaxCacheSize
	}
	return *c.MaxCacheSize
}

func (c *CacheConfig) getCacheItemTTL() time.Duration {
	if c.CacheItemTTL == nil {
		return DefaultCacheItemTTL
	}
	return *c.CacheItemTTL
}
