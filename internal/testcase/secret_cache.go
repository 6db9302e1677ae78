package testcase

import (
	"context"
	"testing"

	"github.com/evergreen-ci/secretcache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SecretStore is the backing store of secrets that a secret cache under test
// fetches from.
type SecretStore interface {
	// PutSecret sets the string value of a secret, creating a new version.
	PutSecret(id, value string) secretcache.SecretValue
	// PutBinarySecret sets the binary value of a secret, creating a new
	// version.
	PutBinarySecret(id string, value []byte) secretcache.SecretValue
	// DeleteSecret removes a secret from the store.
	DeleteSecret(id string)
	// Calls returns the number of times a secret has been fetched.
	Calls(id string) int
}

// SecretCacheTestCase represents a test case for a secretcache.SecretCache.
// The cache is empty at the start of the test and fetches from the given
// store.
type SecretCacheTestCase func(ctx context.Context, t *testing.T, c secretcache.SecretCache, s SecretStore)

// SecretCacheTests returns common test cases that a secretcache.SecretCache
// should support. The cache must be configured with a TTL long enough that
// secrets do not expire during the test.
func SecretCacheTests() map[string]SecretCacheTestCase {
	return map[string]SecretCacheTestCase{
		"GetSecretValueFetchesUncachedSecret": func(ctx context.Context, t *testing.T, c secretcache.SecretCache, s SecretStore) {
			stored := s.PutSecret("secret", "value")

			val, err := c.GetSecretValue(ctx, "secret", false)
			require.NoError(t, err)
			require.NotZero(t, val)
			assert.Equal(t, "value", val.SecretString)
			assert.Equal(t, stored.VersionID, val.VersionID)
			assert.Equal(t, 1, s.Calls("secret"))
			assert.Equal(t, 1, c.Len())
		},
		"GetSecretValueReturnsCachedSecretWithoutFetching": func(ctx context.Context, t *testing.T, c secretcache.SecretCache, s SecretStore) {
			s.PutSecret("secret", "value")

			first, err := c.GetSecretValue(ctx, "secret", false)
			require.NoError(t, err)

			s.PutSecret("secret", "rotated")

			for i := 0; i < 3; i++ {
				val, err := c.GetSecretValue(ctx, "secret", false)
				require.NoError(t, err)
				assert.Equal(t, first, val)
			}
			assert.Equal(t, 1, s.Calls("secret"))
		},
		"GetSecretValueWithForceRefreshFetchesCachedSecret": func(ctx context.Context, t *testing.T, c secretcache.SecretCache, s SecretStore) {
			s.PutSecret("secret", "value")

			_, err := c.GetSecretValue(ctx, "secret", false)
			require.NoError(t, err)

			rotated := s.PutSecret("secret", "rotated")

			val, err := c.GetSecretValue(ctx, "secret", true)
			require.NoError(t, err)
			assert.Equal(t, "rotated", val.SecretString)
			assert.Equal(t, rotated.VersionID, val.VersionID)
			assert.Equal(t, 2, s.Calls("secret"))

			val, err = c.GetSecretValue(ctx, "secret", false)
			require.NoError(t, err)
			assert.Equal(t, "rotated", val.SecretString)
			assert.Equal(t, 2, s.Calls("secret"))
		},
		"GetSecretValueFailsWithNonexistentSecret": func(ctx context.Context, t *testing.T, c secretcache.SecretCache, s SecretStore) {
			val, err := c.GetSecretValue(ctx, "nonexistent", false)
			assert.Error(t, err)
			assert.Zero(t, val)
			assert.True(t, secretcache.IsFetchFailedError(err))
			assert.True(t, secretcache.IsSecretNotFoundError(err))
			assert.Zero(t, c.Len())
		},
		"GetSecretValueFailsWithDeletedSecretAfterForceRefresh": func(ctx context.Context, t *testing.T, c secretcache.SecretCache, s SecretStore) {
			s.PutSecret("secret", "value")
			_, err := c.GetSecretValue(ctx, "secret", false)
			require.NoError(t, err)

			s.DeleteSecret("secret")

			_, err = c.GetSecretValue(ctx, "secret", true)
			assert.True(t, secretcache.IsSecretNotFoundError(err))
		},
		"GetSecretStringSucceeds": func(ctx context.Context, t *testing.T, c secretcache.SecretCache, s SecretStore) {
			s.PutSecret("secret", "value")

			val, err := c.GetSecretString(ctx, "secret")
			require.NoError(t, err)
			assert.Equal(t, "value", val)
		},
		"GetSecretBinarySucceeds": func(ctx context.Context, t *testing.T, c secretcache.SecretCache, s SecretStore) {
			s.PutBinarySecret("secret", []byte("value"))

			val, err := c.GetSecretBinary(ctx, "secret")
			require.NoError(t, err)
			assert.Equal(t, []byte("value"), val)
		},
		"GetSecretStringFailsWithNonexistentSecret": func(ctx context.Context, t *testing.T, c secretcache.SecretCache, s SecretStore) {
			val, err := c.GetSecretString(ctx, "nonexistent")
			assert.Error(t, err)
			assert.Zero(t, val)
		},
		"InvalidateCausesNextGetToFetch": func(ctx context.Context, t *testing.T, c secretcache.SecretCache, s SecretStore) {
			s.PutSecret("secret", "value")
			_, err := c.GetSecretValue(ctx, "secret", false)
			require.NoError(t, err)

			c.Invalidate("secret")
			assert.Zero(t, c.Len())

			s.PutSecret("secret", "rotated")
			val, err := c.GetSecretString(ctx, "secret")
			require.NoError(t, err)
			assert.Equal(t, "rotated", val)
			assert.Equal(t, 2, s.Calls("secret"))
		},
		"InvalidateIsNoopForUncachedSecret": func(ctx context.Context, t *testing.T, c secretcache.SecretCache, s SecretStore) {
			s.PutSecret("secret", "value")
			_, err := c.GetSecretValue(ctx, "secret", false)
			require.NoError(t, err)

			c.Invalidate("nonexistent")
			c.Invalidate("nonexistent")
			assert.Equal(t, 1, c.Len())
		},
		"ClearRemovesAllSecrets": func(ctx context.Context, t *testing.T, c secretcache.SecretCache, s SecretStore) {
			for _, id := range []string{"a", "b", "c"} {
				s.PutSecret(id, id)
				_, err := c.GetSecretValue(ctx, id, false)
				require.NoError(t, err)
			}
			require.Equal(t, 3, c.Len())

			c.Clear()
			assert.Zero(t, c.Len())
			c.Clear()
			assert.Zero(t, c.Len())

			_, err := c.GetSecretValue(ctx, "a", false)
			require.NoError(t, err)
			assert.Equal(t, 2, s.Calls("a"))
		},
	}
}
