package mock

import (
	"context"
	"sync"

	"github.com/evergreen-ci/secretcache"
)

// SecretCache provides a mock implementation of a secretcache.SecretCache
// backed by another secret cache implementation. It is safe for concurrent use
// as long as the backing cache is.
type SecretCache struct {
	secretcache.SecretCache

	mu sync.Mutex

	GetSecretValueInput *GetSecretValueInput
	GetSecretValueError error

	InvalidateInput *string
	ClearCount      int
}

// GetSecretValueInput records the arguments to a GetSecretValue call.
type GetSecretValueInput struct {
	ID           string
	ForceRefresh bool
}

// NewSecretCache creates a mock secret cache backed by the given secret cache.
func NewSecretCache(sc secretcache.SecretCache) *SecretCache {
	return &SecretCache{
		SecretCache: sc,
	}
}

// GetSecretValue saves the input and gets the secret from the mock cache. The
// mock output can be customized. By default, it will return the result of
// getting the secret from the backing secret cache.
func (c *SecretCache) GetSecretValue(ctx context.Context, id string, forceRefresh bool) (*secretcache.SecretValue, error) {
	c.mu.Lock()
	c.GetSecretValueInput = &GetSecretValueInput{ID: id, ForceRefresh: forceRefresh}
	err := c.GetSecretValueError
	c.mu.Unlock()

	if err != nil {
		return nil, err
	}

	return c.SecretCache.GetSecretValue(ctx, id, forceRefresh)
}

// GetSecretString gets the secret's string value through GetSecretValue.
func (c *SecretCache) GetSecretString(ctx context.Context, id string) (string, error) {
	val, err := c.GetSecretValue(ctx, id, false)
	if err != nil {
		return "", err
	}
	return val.SecretString, nil
}

// GetSecretBinary gets the secret's binary value through GetSecretValue.
func (c *SecretCache) GetSecretBinary(ctx context.Context, id string) ([]byte, error) {
	val, err := c.GetSecretValue(ctx, id, false)
	if err != nil {
		return nil, err
	}
	return val.SecretBinary, nil
}

// Invalidate saves the input and invalidates the secret in the backing secret
// cache.
func (c *SecretCache) Invalidate(id string) {
	c.mu.Lock()
	c.InvalidateInput = &id
	c.mu.Unlock()

	c.SecretCache.Invalidate(id)
}

// Clear records the call and clears the backing secret cache.
func (c *SecretCache) Clear() {
	c.mu.Lock()
	c.ClearCount++
	c.mu.Unlock()

	c.SecretCache.Clear()
}
