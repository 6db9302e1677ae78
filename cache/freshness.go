package cache

import "time"

// freshness is the result of deciding whether a cached entry can be returned
// as-is.
type freshness int

const (
	// freshnessMissing means there is no cached entry.
	freshnessMissing freshness = iota
	// freshnessForced means the caller asked to refresh the entry
	// regardless of its age.
	freshnessForced
	// freshnessStale means the entry has outlived the TTL.
	freshnessStale
	// freshnessFresh means the entry can be returned without fetching.
	freshnessFresh
)

func (f freshness) String() string {
	switch f {
	case freshnessMissing:
		return "missing"
	case freshnessForced:
		return "forced"
	case freshnessStale:
		return "stale"
	case freshnessFresh:
		return "fresh"
	default:
		return "unknown"
	}
}

// needsFetch returns whether an entry with this freshness must be fetched
// before it can be returned.
func (f freshness) needsFetch() bool {
	return f != freshnessFresh
}

// classify decides whether the entry can be returned from the cache at the
// given time. It must not perform any I/O.
//
// A zero TTL makes every entry stale. If the clock has moved backwards since
// the entry was fetched, the entry is fresh.
func classify(e *entry, ttl time.Duration, now time.Time, force bool) freshness {
	if e == nil {
		return freshnessMissing
	}
	if force {
		return freshnessForced
	}
	if ttl <= 0 {
		return freshnessStale
	}

	age := now.Sub(e.fetchedAt)
	if age < 0 {
		return freshnessFresh
	}
	if age >= ttl {
		return freshnessStale
	}
	return freshnessFresh
}
