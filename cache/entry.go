package cache

import (
	"time"

	"github.com/evergreen-ci/secretcache"
)

// entry is the cached state for a single secret. Entries are never modified
// after creation; a refresh replaces the entry.
type entry struct {
	id        string
	value     *secretcache.SecretValue
	fetchedAt time.Time
	version   string
}

func newEntry(id string, val *secretcache.SecretValue, fetchedAt time.Time) *entry {
	return &entry{
		id:        id,
		value:     val,
		fetchedAt: fetchedAt,
		version:   val.VersionID,
	}
}
