package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/evergreen-ci/secretcache"
	"github.com/evergreen-ci/secretcache/internal/lru"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
)

// BasicSecretCache provides a secretcache.SecretCache implementation that
// keeps secrets in memory. It is safe for concurrent use.
//
// Secrets are fetched outside of the cache's lock, so a slow fetch does not
// block requests for other secrets. Concurrent requests that all need to fetch
// the same secret may each fetch it; the last one to finish is kept.
type BasicSecretCache struct {
	fetcher secretcache.Fetcher
	maxSize int
	ttl     time.Duration
	clock   func() time.Time

	// mu guards entries and index, which must always contain exactly the
	// same secret IDs.
	mu      sync.Mutex
	entries map[string]*entry
	index   *lru.Index

	stats statsCounters
}

// NewBasicSecretCache returns a new cache that uses the given fetcher to
// retrieve secrets and the default cache configuration.
func NewBasicSecretCache(f secretcache.Fetcher) (*BasicSecretCache, error) {
	return NewBasicSecretCacheWithConfig(f, *NewCacheConfig())
}

// NewBasicSecretCacheWithConfig returns a new cache that uses the given
// fetcher to retrieve secrets and the given cache configuration. It returns a
// secretcache.InvalidConfigError if the configuration is invalid.
func NewBasicSecretCacheWithConfig(f secretcache.Fetcher, conf CacheConfig) (*BasicSecretCache, error) {
	if f == nil {
		return nil, secretcache.NewInvalidConfigError(errors.New("must specify a fetcher"))
	}
	if err := conf.Validate(); err != nil {
		return nil, secretcache.NewInvalidConfigError(err)
	}

	idx, err := lru.New(*conf.MaxCacheSize)
	if err != nil {
		return nil, secretcache.NewInvalidConfigError(err)
	}

	return &BasicSecretCache{
		fetcher: f,
		maxSize: *conf.MaxCacheSize,
		ttl:     *conf.CacheItemTTL,
		clock:   conf.Clock,
		entries: map[string]*entry{},
		index:   idx,
	}, nil
}

// GetSecretValue returns the secret identified by ID. The secret is fetched if
// it is not cached, if its cached value is older than the cache's TTL, or if
// forceRefresh is set. If the fetch fails, the cache is left unchanged and a
// secretcache.FetchFailedError is returned; a stale value is never returned
// in place of the error.
func (c *BasicSecretCache) GetSecretValue(ctx context.Context, id string, forceRefresh bool) (*secretcache.SecretValue, error) {
	if val, ok := c.lookup(id, forceRefresh); ok {
		return val, nil
	}

	c.stats.misses.Inc()

	val, err := c.fetch(ctx, id)
	if err != nil {
		c.stats.fetchFailures.Inc()
		grip.Debug(message.WrapError(err, message.Fields{
			"message":       "could not fetch secret",
			"secret_id":     id,
			"force_refresh": forceRefresh,
		}))
		return nil, secretcache.NewFetchFailedError(id, err)
	}

	replaced, evicted := c.install(id, val)
	if replaced != nil {
		grip.Debug(message.Fields{
			"message":          "refreshed cached secret",
			"secret_id":        id,
			"previous_version": replaced.version,
			"version":          val.VersionID,
			"force_refresh":    forceRefresh,
		})
	}
	if evicted != nil {
		c.stats.evictions.Inc()
		grip.Debug(message.Fields{
			"message":        "evicted least recently used secret",
			"secret_id":      evicted.id,
			"version":        evicted.version,
			"max_cache_size": c.maxSize,
		})
	}

	return val.Copy(), nil
}

// GetSecretString returns the string value of the secret identified by ID.
func (c *BasicSecretCache) GetSecretString(ctx context.Context, id string) (string, error) {
	val, err := c.GetSecretValue(ctx, id, false)
	if err != nil {
		return "", err
	}
	return val.SecretString, nil
}

// GetSecretBinary returns the binary value of the secret identified by ID. The
// caller may modify the returned bytes.
func (c *BasicSecretCache) GetSecretBinary(ctx context.Context, id string) ([]byte, error) {
	val, err := c.GetSecretValue(ctx, id, false)
	if err != nil {
		return nil, err
	}
	return val.SecretBinary, nil
}

// Invalidate removes the secret identified by ID from the cache. This is a
// no-op if the secret is not cached.
func (c *BasicSecretCache) Invalidate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, hasEntry := c.entries[id]
	if c.index.Remove(id) != hasEntry {
		panic(fmt.Sprintf("programmatic error: cache and eviction index disagree on whether secret '%s' is cached", id))
	}
	delete(c.entries, id)
}

// Clear removes all secrets from the cache.
func (c *BasicSecretCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = map[string]*entry{}
	c.index.Reset()
}

// Len returns the number of secrets currently in the cache.
func (c *BasicSecretCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// Stats returns the cache's usage counters.
func (c *BasicSecretCache) Stats() Stats {
	return c.stats.export()
}

// lookup returns the cached value for the secret if it can be returned without
// fetching, marking it as the most recently used.
func (c *BasicSecretCache) lookup(id string, forceRefresh bool) (*secretcache.SecretValue, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entries[id]
	if classify(e, c.ttl, c.clock(), forceRefresh).needsFetch() {
		return nil, false
	}

	if !c.index.Touch(id) {
		panic(fmt.Sprintf("programmatic error: cached secret '%s' is missing from the eviction index", id))
	}
	c.stats.hits.Inc()

	return e.value.Copy(), true
}

// fetch retrieves the secret from the fetcher. It must not be called while
// holding the lock.
func (c *BasicSecretCache) fetch(ctx context.Context, id string) (*secretcache.SecretValue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.stats.fetches.Inc()

	val, err := c.fetcher.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if val == nil {
		return nil, errors.New("fetcher returned no secret value")
	}

	return val.Copy(), nil
}

// install caches the newly-fetched secret as the most recently used. The value
// must not be shared with the fetcher or any caller. It returns the entry that
// was replaced, if the secret was already cached, and the least recently used
// entry, if one had to be evicted to stay within capacity.
func (c *BasicSecretCache) install(id string, val *secretcache.SecretValue) (replaced, evicted *entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	replaced = c.entries[id]
	c.entries[id] = newEntry(id, val, c.clock())

	evictedID, ok := c.index.Insert(id)
	if !ok {
		return replaced, nil
	}

	evicted, exists := c.entries[evictedID]
	if !exists {
		panic(fmt.Sprintf("programmatic error: evicted secret '%s' is missing from the cache", evictedID))
	}
	delete(c.entries, evictedID)

	return replaced, evicted
}

// checkConsistency verifies that the cached entries and the eviction index
// track exactly the same secrets.
func (c *BasicSecretCache) checkConsistency() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	catcher := grip.NewBasicCatcher()
	catcher.ErrorfWhen(len(c.entries) != c.index.Len(), "cache has %d entries but eviction index has %d", len(c.entries), c.index.Len())
	catcher.ErrorfWhen(c.index.Len() > c.maxSize, "eviction index has %d entries, which exceeds the max cache size %d", c.index.Len(), c.maxSize)
	for id, e := range c.entries {
		catcher.ErrorfWhen(!c.index.Contains(id), "cached secret '%s' is missing from the eviction index", id)
		catcher.ErrorfWhen(e.id != id, "cached secret '%s' is stored under ID '%s'", e.id, id)
	}
	for _, id := range c.index.Keys() {
		_, ok := c.entries[id]
		catcher.ErrorfWhen(!ok, "secret '%s' in the eviction index is missing from the cache", id)
	}

	return catcher.Resolve()
}
