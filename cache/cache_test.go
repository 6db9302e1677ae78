package cache

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/evergreen-ci/secretcache"
	"github.com/evergreen-ci/secretcache/internal/testcase"
	"github.com/evergreen-ci/secretcache/internal/testutil"
	"github.com/evergreen-ci/secretcache/mock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const defaultTestTimeout = 30 * time.Second

func TestBasicSecretCache(t *testing.T) {
	assert.Implements(t, (*secretcache.SecretCache)(nil), &BasicSecretCache{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for tName, tCase := range testcase.SecretCacheTests() {
		t.Run(tName, func(t *testing.T) {
			tctx, tcancel := context.WithTimeout(ctx, defaultTestTimeout)
			defer tcancel()

			f := mock.NewFetcher()
			c, err := NewBasicSecretCache(f)
			require.NoError(t, err)

			tCase(tctx, t, c, f)

			assert.NoError(t, c.checkConsistency())
		})
	}
}

func TestNewBasicSecretCache(t *testing.T) {
	t.Run("SucceedsWithDefaults", func(t *testing.T) {
		c, err := NewBasicSecretCache(mock.NewFetcher())
		require.NoError(t, err)
		require.NotZero(t, c)
		assert.Equal(t, DefaultMaxCacheSize, c.maxSize)
		assert.Equal(t, DefaultCacheItemTTL, c.ttl)
		assert.Zero(t, c.Len())
	})
	t.Run("SucceedsWithConfig", func(t *testing.T) {
		c, err := NewBasicSecretCacheWithConfig(mock.NewFetcher(), *NewCacheConfig().
			SetMaxCacheSize(5).
			SetCacheItemTTL(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 5, c.maxSize)
		assert.Equal(t, time.Minute, c.ttl)
	})
	t.Run("FailsWithoutFetcher", func(t *testing.T) {
		c, err := NewBasicSecretCache(nil)
		assert.Error(t, err)
		assert.Zero(t, c)
		assert.True(t, secretcache.IsInvalidConfigError(err))
	})
	t.Run("FailsWithZeroMaxCacheSize", func(t *testing.T) {
		c, err := NewBasicSecretCacheWithConfig(mock.NewFetcher(), *NewCacheConfig().SetMaxCacheSize(0))
		assert.Error(t, err)
		assert.Zero(t, c)
		assert.True(t, secretcache.IsInvalidConfigError(err))
	})
	t.Run("FailsWithNegativeTTL", func(t *testing.T) {
		c, err := NewBasicSecretCacheWithConfig(mock.NewFetcher(), *NewCacheConfig().SetCacheItemTTL(-time.Minute))
		assert.Error(t, err)
		assert.Zero(t, c)
		assert.True(t, secretcache.IsInvalidConfigError(err))
	})
}

func TestBasicSecretCacheBehavior(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const ttl = 10 * time.Second

	type testEnv struct {
		cache   *BasicSecretCache
		fetcher *mock.Fetcher
		clock   *testutil.Clock
	}

	newEnv := func(t *testing.T, maxSize int) testEnv {
		clock := testutil.NewClock(time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC))
		f := mock.NewFetcher()
		c, err := NewBasicSecretCacheWithConfig(f, *NewCacheConfig().
			SetMaxCacheSize(maxSize).
			SetCacheItemTTL(ttl).
			SetClock(clock.Now))
		require.NoError(t, err)
		return testEnv{cache: c, fetcher: f, clock: clock}
	}

	get := func(ctx context.Context, t *testing.T, c *BasicSecretCache, id string) string {
		val, err := c.GetSecretString(ctx, id)
		require.NoError(t, err)
		return val
	}

	for tName, tCase := range map[string]func(ctx context.Context, t *testing.T, env testEnv){
		"SecretIsFreshJustBeforeTTL": func(ctx context.Context, t *testing.T, env testEnv) {
			env.fetcher.PutSecret("secret", "value")
			get(ctx, t, env.cache, "secret")

			env.clock.Advance(ttl - time.Second)
			get(ctx, t, env.cache, "secret")
			assert.Equal(t, 1, env.fetcher.Calls("secret"))
		},
		"SecretIsStaleAtTTL": func(ctx context.Context, t *testing.T, env testEnv) {
			env.fetcher.PutSecret("secret", "value")
			get(ctx, t, env.cache, "secret")

			env.fetcher.PutSecret("secret", "rotated")
			env.clock.Advance(ttl)
			assert.Equal(t, "rotated", get(ctx, t, env.cache, "secret"))
			assert.Equal(t, 2, env.fetcher.Calls("secret"))
		},
		"RefetchRestartsTTL": func(ctx context.Context, t *testing.T, env testEnv) {
			env.fetcher.PutSecret("secret", "value")
			get(ctx, t, env.cache, "secret")

			env.clock.Advance(ttl)
			get(ctx, t, env.cache, "secret")
			env.clock.Advance(ttl - time.Second)
			get(ctx, t, env.cache, "secret")
			assert.Equal(t, 2, env.fetcher.Calls("secret"))
		},
		"ForceRefreshFetchesExactlyOnce": func(ctx context.Context, t *testing.T, env testEnv) {
			env.fetcher.PutSecret("secret", "value")
			get(ctx, t, env.cache, "secret")

			rotated := env.fetcher.PutSecret("secret", "rotated")
			val, err := env.cache.GetSecretValue(ctx, "secret", true)
			require.NoError(t, err)
			assert.Equal(t, rotated.VersionID, val.VersionID)
			assert.Equal(t, 2, env.fetcher.Calls("secret"))

			assert.Equal(t, "rotated", get(ctx, t, env.cache, "secret"))
			assert.Equal(t, 2, env.fetcher.Calls("secret"))
		},
		"ForceRefreshRestartsTTL": func(ctx context.Context, t *testing.T, env testEnv) {
			env.fetcher.PutSecret("secret", "value")
			get(ctx, t, env.cache, "secret")

			env.clock.Advance(ttl - time.Second)
			_, err := env.cache.GetSecretValue(ctx, "secret", true)
			require.NoError(t, err)

			env.clock.Advance(ttl - time.Second)
			get(ctx, t, env.cache, "secret")
			assert.Equal(t, 2, env.fetcher.Calls("secret"))
		},
		"ZeroTTLFetchesEveryTime": func(ctx context.Context, t *testing.T, env testEnv) {
			f := mock.NewFetcher()
			f.PutSecret("secret", "value")
			c, err := NewBasicSecretCacheWithConfig(f, *NewCacheConfig().SetCacheItemTTL(0).SetClock(env.clock.Now))
			require.NoError(t, err)

			for i := 0; i < 3; i++ {
				get(ctx, t, c, "secret")
			}
			assert.Equal(t, 3, f.Calls("secret"))
			assert.Equal(t, 1, c.Len())
		},
		"ClockMovingBackwardsKeepsSecretFresh": func(ctx context.Context, t *testing.T, env testEnv) {
			env.fetcher.PutSecret("secret", "value")
			get(ctx, t, env.cache, "secret")

			env.clock.Advance(-time.Hour)
			get(ctx, t, env.cache, "secret")
			assert.Equal(t, 1, env.fetcher.Calls("secret"))
		},
		"FailedForceRefreshPreservesCachedSecret": func(ctx context.Context, t *testing.T, env testEnv) {
			orig := env.fetcher.PutSecret("secret", "value")
			get(ctx, t, env.cache, "secret")

			env.fetcher.SetError("secret", secretcache.NewFetchError(secretcache.FetchErrorTransient, "secret", errors.New("connection reset")))
			val, err := env.cache.GetSecretValue(ctx, "secret", true)
			assert.Error(t, err)
			assert.Zero(t, val)
			assert.True(t, secretcache.IsFetchFailedError(err))
			assert.True(t, secretcache.IsTransientFetchError(err))

			val, err = env.cache.GetSecretValue(ctx, "secret", false)
			require.NoError(t, err)
			assert.Equal(t, orig.VersionID, val.VersionID)
			assert.Equal(t, 2, env.fetcher.Calls("secret"))
		},
		"FailedRefreshOfStaleSecretReturnsError": func(ctx context.Context, t *testing.T, env testEnv) {
			env.fetcher.PutSecret("secret", "value")
			get(ctx, t, env.cache, "secret")

			env.fetcher.SetError("secret", secretcache.NewFetchError(secretcache.FetchErrorServiceInternal, "secret", errors.New("internal error")))
			env.clock.Advance(ttl)

			_, err := env.cache.GetSecretValue(ctx, "secret", false)
			assert.True(t, secretcache.IsServiceInternalError(err))
			assert.Equal(t, 1, env.cache.Len())

			_, err = env.cache.GetSecretValue(ctx, "secret", false)
			assert.Error(t, err)
			assert.Equal(t, 3, env.fetcher.Calls("secret"))

			env.fetcher.SetError("secret", nil)
			assert.Equal(t, "value", get(ctx, t, env.cache, "secret"))
			assert.Equal(t, 4, env.fetcher.Calls("secret"))
		},
		"FailedFetchOfUncachedSecretCachesNothing": func(ctx context.Context, t *testing.T, env testEnv) {
			env.fetcher.SetError("secret", secretcache.NewFetchError(secretcache.FetchErrorAccessDenied, "secret", errors.New("denied")))

			_, err := env.cache.GetSecretValue(ctx, "secret", false)
			assert.True(t, secretcache.IsAccessDeniedError(err))
			assert.Zero(t, env.cache.Len())
		},
		"NilSecretValueFromFetcherIsFetchFailure": func(ctx context.Context, t *testing.T, env testEnv) {
			c, err := NewBasicSecretCache(secretcache.FetcherFunc(func(context.Context, string) (*secretcache.SecretValue, error) {
				return nil, nil
			}))
			require.NoError(t, err)

			val, err := c.GetSecretValue(ctx, "secret", false)
			assert.True(t, secretcache.IsFetchFailedError(err))
			assert.Zero(t, val)
			assert.Zero(t, c.Len())
		},
		"CanceledContextFailsWithoutFetching": func(ctx context.Context, t *testing.T, env testEnv) {
			env.fetcher.PutSecret("secret", "value")

			cctx, ccancel := context.WithCancel(ctx)
			ccancel()

			_, err := env.cache.GetSecretValue(cctx, "secret", false)
			assert.True(t, secretcache.IsFetchFailedError(err))
			assert.True(t, errors.Is(err, context.Canceled))
			assert.Zero(t, env.fetcher.Calls("secret"))
			assert.Zero(t, env.cache.Len())

			stats := env.cache.Stats()
			assert.Equal(t, int64(1), stats.Misses)
			assert.Zero(t, stats.Fetches)
			assert.Equal(t, int64(1), stats.FetchFailures)
		},
		"CanceledContextStillReturnsFreshSecret": func(ctx context.Context, t *testing.T, env testEnv) {
			env.fetcher.PutSecret("secret", "value")
			get(ctx, t, env.cache, "secret")

			cctx, ccancel := context.WithCancel(ctx)
			ccancel()

			assert.Equal(t, "value", get(cctx, t, env.cache, "secret"))
		},
		"EvictsLeastRecentlyInsertedSecretAtCapacity": func(ctx context.Context, t *testing.T, env testEnv) {
			for i := 0; i < 4; i++ {
				id := fmt.Sprintf("secret%d", i)
				env.fetcher.PutSecret(id, id)
				get(ctx, t, env.cache, id)
			}
			assert.Equal(t, 3, env.cache.Len())
			assert.Equal(t, []string{"secret3", "secret2", "secret1"}, env.cache.index.Keys())

			get(ctx, t, env.cache, "secret0")
			assert.Equal(t, 2, env.fetcher.Calls("secret0"))
			assert.Equal(t, int64(2), env.cache.Stats().Evictions)
		},
		"EvictsLeastRecentlyUsedSecretAtCapacity": func(ctx context.Context, t *testing.T, env testEnv) {
			for _, id := range []string{"a", "b", "c"} {
				env.fetcher.PutSecret(id, id)
				get(ctx, t, env.cache, id)
			}
			env.fetcher.PutSecret("d", "d")

			get(ctx, t, env.cache, "a")
			get(ctx, t, env.cache, "d")

			assert.Equal(t, []string{"d", "a", "c"}, env.cache.index.Keys())
			get(ctx, t, env.cache, "a")
			get(ctx, t, env.cache, "c")
			assert.Equal(t, 1, env.fetcher.Calls("a"))
			assert.Equal(t, 1, env.fetcher.Calls("c"))

			get(ctx, t, env.cache, "b")
			assert.Equal(t, 2, env.fetcher.Calls("b"))
		},
		"RefreshingCachedSecretDoesNotEvict": func(ctx context.Context, t *testing.T, env testEnv) {
			for _, id := range []string{"a", "b", "c"} {
				env.fetcher.PutSecret(id, id)
				get(ctx, t, env.cache, id)
			}

			_, err := env.cache.GetSecretValue(ctx, "a", true)
			require.NoError(t, err)
			assert.Equal(t, 3, env.cache.Len())
			assert.Equal(t, []string{"a", "c", "b"}, env.cache.index.Keys())
			assert.Zero(t, env.cache.Stats().Evictions)
		},
		"StaleSecretIsRefreshedInPlace": func(ctx context.Context, t *testing.T, env testEnv) {
			for _, id := range []string{"a", "b", "c"} {
				env.fetcher.PutSecret(id, id)
				get(ctx, t, env.cache, id)
			}

			env.clock.Advance(ttl)
			get(ctx, t, env.cache, "a")
			assert.Equal(t, 3, env.cache.Len())
			assert.Equal(t, "a", env.cache.index.Keys()[0])
		},
		"InvalidateRemovesOnlyThatSecret": func(ctx context.Context, t *testing.T, env testEnv) {
			for _, id := range []string{"a", "b", "c"} {
				env.fetcher.PutSecret(id, id)
				get(ctx, t, env.cache, id)
			}

			env.cache.Invalidate("b")
			env.cache.Invalidate("b")
			assert.Equal(t, 2, env.cache.Len())
			assert.Equal(t, []string{"c", "a"}, env.cache.index.Keys())

			get(ctx, t, env.cache, "a")
			get(ctx, t, env.cache, "c")
			assert.Equal(t, 1, env.fetcher.Calls("a"))
			assert.Equal(t, 1, env.fetcher.Calls("c"))
		},
		"ClearThenRefillToCapacity": func(ctx context.Context, t *testing.T, env testEnv) {
			for _, id := range []string{"a", "b", "c"} {
				env.fetcher.PutSecret(id, id)
				get(ctx, t, env.cache, id)
			}
			env.cache.Clear()
			assert.Zero(t, env.cache.Len())

			for _, id := range []string{"c", "b", "a"} {
				get(ctx, t, env.cache, id)
			}
			assert.Equal(t, 3, env.cache.Len())
			assert.Zero(t, env.cache.Stats().Evictions)
		},
		"StatsCountHitsMissesAndFailures": func(ctx context.Context, t *testing.T, env testEnv) {
			env.fetcher.PutSecret("secret", "value")

			get(ctx, t, env.cache, "secret")
			get(ctx, t, env.cache, "secret")
			get(ctx, t, env.cache, "secret")
			_, err := env.cache.GetSecretValue(ctx, "secret", true)
			require.NoError(t, err)
			_, err = env.cache.GetSecretValue(ctx, "nonexistent", false)
			require.Error(t, err)

			assert.Equal(t, Stats{
				Hits:          2,
				Misses:        3,
				Fetches:       3,
				FetchFailures: 1,
			}, env.cache.Stats())
		},
		"ModifyingReturnedBinaryDoesNotChangeCachedSecret": func(ctx context.Context, t *testing.T, env testEnv) {
			env.fetcher.PutBinarySecret("secret", []byte("value"))

			b, err := env.cache.GetSecretBinary(ctx, "secret")
			require.NoError(t, err)
			for i := range b {
				b[i] = 0
			}

			b, err = env.cache.GetSecretBinary(ctx, "secret")
			require.NoError(t, err)
			assert.Equal(t, []byte("value"), b)
			for i := range b {
				b[i] = 0
			}

			b, err = env.cache.GetSecretBinary(ctx, "secret")
			require.NoError(t, err)
			assert.Equal(t, []byte("value"), b)
			assert.Equal(t, 1, env.fetcher.Calls("secret"))
		},
		"ModifyingReturnedValueDoesNotChangeCachedSecret": func(ctx context.Context, t *testing.T, env testEnv) {
			env.fetcher.PutBinarySecret("secret", []byte("value"))

			val, err := env.cache.GetSecretValue(ctx, "secret", false)
			require.NoError(t, err)
			val.SecretString = "modified"
			val.SecretBinary[0] = 0
			val.VersionStages[0] = "modified"

			val, err = env.cache.GetSecretValue(ctx, "secret", false)
			require.NoError(t, err)
			assert.Empty(t, val.SecretString)
			assert.Equal(t, []byte("value"), val.SecretBinary)
			assert.Equal(t, []string{mock.VersionStageCurrent}, val.VersionStages)

			refetched, err := env.fetcher.Fetch(ctx, "secret")
			require.NoError(t, err)
			assert.Equal(t, []byte("value"), refetched.SecretBinary)
		},
		"InstallReportsReplacedAndEvictedEntries": func(ctx context.Context, t *testing.T, env testEnv) {
			first := &secretcache.SecretValue{VersionID: "v1"}
			replaced, evicted := env.cache.install("a", first)
			assert.Zero(t, replaced)
			assert.Zero(t, evicted)

			replaced, evicted = env.cache.install("a", &secretcache.SecretValue{VersionID: "v2"})
			require.NotZero(t, replaced)
			assert.Equal(t, "v1", replaced.version)
			assert.Zero(t, evicted)

			for _, id := range []string{"b", "c"} {
				replaced, evicted = env.cache.install(id, &secretcache.SecretValue{VersionID: id})
				assert.Zero(t, replaced)
				assert.Zero(t, evicted)
			}

			replaced, evicted = env.cache.install("d", &secretcache.SecretValue{VersionID: "d"})
			assert.Zero(t, replaced)
			require.NotZero(t, evicted)
			assert.Equal(t, "a", evicted.id)
			assert.Equal(t, "v2", evicted.version)
		},
		"FetchInProgressDoesNotBlockOtherSecrets": func(ctx context.Context, t *testing.T, env testEnv) {
			env.fetcher.PutSecret("slow", "slow")
			env.fetcher.PutSecret("fast", "fast")
			get(ctx, t, env.cache, "fast")

			started := make(chan struct{})
			release := make(chan struct{})
			env.fetcher.BeforeFetch = func(ctx context.Context, id string) {
				if id != "slow" {
					return
				}
				close(started)
				select {
				case <-release:
				case <-ctx.Done():
				}
			}

			slowErrs := make(chan error, 1)
			go func() {
				_, err := env.cache.GetSecretValue(ctx, "slow", false)
				slowErrs <- err
			}()

			select {
			case <-started:
			case <-ctx.Done():
				require.FailNow(t, "timed out waiting for fetch to start")
			}

			for i := 0; i < 10; i++ {
				assert.Equal(t, "fast", get(ctx, t, env.cache, "fast"))
			}
			env.cache.Invalidate("other")
			assert.Equal(t, 1, env.cache.Len())

			close(release)
			select {
			case err := <-slowErrs:
				require.NoError(t, err)
			case <-ctx.Done():
				require.FailNow(t, "timed out waiting for fetch to finish")
			}
			assert.Equal(t, 2, env.cache.Len())
		},
	} {
		t.Run(tName, func(t *testing.T) {
			tctx, tcancel := context.WithTimeout(ctx, defaultTestTimeout)
			defer tcancel()

			env := newEnv(t, 3)

			tCase(tctx, t, env)

			assert.NoError(t, env.cache.checkConsistency())
		})
	}
}

func TestBasicSecretCacheConcurrentUse(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	const (
		maxSize    = 8
		numSecrets = 32
		numWorkers = 16
		numOps     = 500
	)

	clock := testutil.NewClock(time.Now())
	f := mock.NewFetcher()
	ids := make([]string, 0, numSecrets)
	for i := 0; i < numSecrets; i++ {
		id := fmt.Sprintf("secret%d", i)
		f.PutSecret(id, id)
		ids = append(ids, id)
	}
	f.SetError(ids[0], secretcache.NewFetchError(secretcache.FetchErrorTransient, ids[0], errors.New("flaky")))

	c, err := NewBasicSecretCacheWithConfig(f, *NewCacheConfig().
		SetMaxCacheSize(maxSize).
		SetCacheItemTTL(time.Second).
		SetClock(clock.Now))
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 2*numWorkers*numOps)
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed))
			for i := 0; i < numOps; i++ {
				id := ids[r.Intn(len(ids))]
				switch op := r.Intn(20); {
				case op == 0:
					c.Clear()
				case op < 3:
					c.Invalidate(id)
				case op < 4:
					clock.Advance(100 * time.Millisecond)
				default:
					val, err := c.GetSecretValue(ctx, id, op == 4)
					if id == ids[0] {
						if !secretcache.IsFetchFailedError(err) {
							errs <- errors.Errorf("expected fetch of '%s' to fail", id)
						}
						continue
					}
					if err != nil {
						errs <- err
						continue
					}
					if val.SecretString != id {
						errs <- errors.Errorf("expected value '%s' for secret '%s', got '%s'", id, id, val.SecretString)
					}
				}
				if c.Len() > maxSize {
					errs <- errors.Errorf("cache size %d exceeds max %d", c.Len(), maxSize)
				}
			}
		}(int64(w))
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.NoError(t, c.checkConsistency())
	assert.LessOrEqual(t, c.Len(), maxSize)

	stats := c.Stats()
	assert.NotZero(t, stats.Misses)
	assert.NotZero(t, stats.FetchFailures)
}

func TestBasicSecretCacheHitMovesSecretAwayFromEviction(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	f := mock.NewFetcher()
	for _, id := range []string{"A", "B", "C"} {
		f.PutSecret(id, id)
	}
	c, err := NewBasicSecretCacheWithConfig(f, *NewCacheConfig().SetMaxCacheSize(2))
	require.NoError(t, err)

	for _, id := range []string{"A", "B", "A", "C"} {
		_, err := c.GetSecretValue(ctx, id, false)
		require.NoError(t, err)
	}

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, []string{"C", "A"}, c.index.Keys())
	assert.Equal(t, 1, f.Calls("A"))
	assert.NoError(t, c.checkConsistency())
}

func TestBasicSecretCacheForceRefreshWithinTTL(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	clock := testutil.NewClock(time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC))
	f := mock.NewFetcher()
	f.PutSecret("secret", "value")
	c, err := NewBasicSecretCacheWithConfig(f, *NewCacheConfig().
		SetCacheItemTTL(1000*time.Second).
		SetClock(clock.Now))
	require.NoError(t, err)

	_, err = c.GetSecretValue(ctx, "secret", false)
	require.NoError(t, err)

	clock.Advance(time.Second)
	_, err = c.GetSecretValue(ctx, "secret", true)
	require.NoError(t, err)
	assert.Equal(t, 2, f.Calls("secret"))
}
