package testutil

import (
	"context"

	"github.com/evergreen-ci/secretcache"
	"github.com/pkg/errors"
)

// NoopSecretCache is an implementation of secretcache.SecretCache that holds no
// secrets. Every get fails with a not found error, and every modification is a
// no-op.
type NoopSecretCache struct{}

// GetSecretValue always returns a not found error.
func (c *NoopSecretCache) GetSecretValue(_ context.Context, id string, _ bool) (*secretcache.SecretValue, error) {
	return nil, secretcache.NewFetchFailedError(id, secretcache.NewFetchError(secretcache.FetchErrorNotFound, id, errors.New("no-op cache")))
}

// GetSecretString always returns a not found error.
func (c *NoopSecretCache) GetSecretString(ctx context.Context, id string) (string, error) {
	_, err := c.GetSecretValue(ctx, id, false)
	return "", err
}

// GetSecretBinary always returns a not found error.
func (c *NoopSecretCache) GetSecretBinary(ctx context.Context, id string) ([]byte, error) {
	_, err := c.GetSecretValue(ctx, id, false)
	return nil, err
}

// Invalidate is a no-op.
func (c *NoopSecretCache) Invalidate(string) {}

// Clear is a no-op.
func (c *NoopSecretCache) Clear() {}

// Len always returns zero.
func (c *NoopSecretCache) Len() int {
	return 0
}
