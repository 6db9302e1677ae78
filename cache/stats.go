package cache

import "go.uber.org/atomic"

// Stats are counters describing how a cache has been used since it was
// created.
type Stats struct {
	// Hits is the number of requests served from the cache.
	Hits int64
	// Misses is the number of requests that required a fetch, whether the
	// secret was missing, stale, or forced to refresh.
	Misses int64
	// Fetches is the number of calls made to the fetcher. A miss whose context
	// is already done does not fetch.
	Fetches int64
	// FetchFailures is the number of requests that needed a fetch and failed,
	// including those whose context was done before fetching.
	FetchFailures int64
	// Evictions is the number of secrets evicted to stay within capacity.
	Evictions int64
}

type statsCounters struct {
	hits          atomic.Int64
	misses        atomic.Int64
	fetches       atomic.Int64
	fetchFailures atomic.Int64
	evictions     atomic.Int64
}

func (s *statsCounters) export() Stats {
	return Stats{
		Hits:          s.hits.Load(),
		Misses:        s.misses.Load(),
		Fetches:       s.fetches.Load(),
		FetchFailures: s.fetchFailures.Load(),
		Evictions:     s.evictions.Load(),
	}
}
