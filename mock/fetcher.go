package mock

import (
	"context"
	"sync"

	"github.com/evergreen-ci/secretcache"
	"github.com/evergreen-ci/utility"
	"github.com/pkg/errors"
)

// Fetcher provides a mock implementation of a secretcache.Fetcher backed by
// an in-memory set of secrets. It records every fetch so that tests can check
// whether a cache made a network call. It is safe for concurrent use.
type Fetcher struct {
	// BeforeFetch, if set, is called at the start of every fetch before the
	// fetch result is determined. It can be used to block a fetch in progress.
	BeforeFetch func(ctx context.Context, id string)

	mu      sync.Mutex
	secrets map[string]secretcache.SecretValue
	errs    map[string]error
	calls   map[string]int
	total   int
}

// NewFetcher returns a mock fetcher with no secrets.
func NewFetcher() *Fetcher {
	return &Fetcher{
		secrets: map[string]secretcache.SecretValue{},
		errs:    map[string]error{},
		calls:   map[string]int{},
	}
}

// PutSecret sets the string value of the secret identified by ID. Each call
// creates a new version of the secret.
func (f *Fetcher) PutSecret(id, value string) secretcache.SecretValue {
	f.mu.Lock()
	defer f.mu.Unlock()

	val := secretcache.SecretValue{
		ARN:           id,
		Name:          id,
		SecretString:  value,
		VersionID:     utility.RandomString(),
		VersionStages: []string{VersionStageCurrent},
	}
	f.secrets[id] = val

	return val
}

// PutBinarySecret sets the binary value of the secret identified by ID. Each
// call creates a new version of the secret.
func (f *Fetcher) PutBinarySecret(id string, value []byte) secretcache.SecretValue {
	f.mu.Lock()
	defer f.mu.Unlock()

	val := secretcache.SecretValue{
		ARN:           id,
		Name:          id,
		SecretBinary:  value,
		VersionID:     utility.RandomString(),
		VersionStages: []string{VersionStageCurrent},
	}
	f.secrets[id] = val

	return val
}

// DeleteSecret removes the secret identified by ID so that fetching it fails
// with a not found error.
func (f *Fetcher) DeleteSecret(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.secrets, id)
}

// SetError makes every fetch of the secret identified by ID fail with the given
// error. Passing a nil error restores normal behavior.
func (f *Fetcher) SetError(id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err == nil {
		delete(f.errs, id)
		return
	}
	f.errs[id] = err
}

// Calls returns the number of times the secret identified by ID has been
// fetched.
func (f *Fetcher) Calls(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls[id]
}

// TotalCalls returns the number of fetches for any secret.
func (f *Fetcher) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.total
}

// Fetch records the fetch and returns a copy of the stored secret. By default,
// it returns a not found error if the secret does not exist.
func (f *Fetcher) Fetch(ctx context.Context, id string) (*secretcache.SecretValue, error) {
	f.mu.Lock()
	f.calls[id]++
	f.total++
	f.mu.Unlock()

	if f.BeforeFetch != nil {
		f.BeforeFetch(ctx, id)
	}

	if err := ctx.Err(); err != nil {
		return nil, secretcache.NewFetchError(secretcache.FetchErrorTransient, id, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.errs[id]; ok {
		return nil, err
	}

	val, ok := f.secrets[id]
	if !ok {
		return nil, secretcache.NewFetchError(secretcache.FetchErrorNotFound, id, errors.New("secret not found"))
	}

	return val.Copy(), nil
}
