package secretcache

import "context"

// Fetcher retrieves secret values from the external secrets storage service.
// Implementations must be safe for concurrent use and are responsible for their
// own retrying and backoff.
type Fetcher interface {
	// Fetch returns the current value of the secret identified by ID. Errors
	// should be a *FetchError so that callers can distinguish why the fetch
	// failed.
	Fetch(ctx context.Context, id string) (*SecretValue, error)
}

// FetcherFunc adapts an ordinary function into a Fetcher.
type FetcherFunc func(ctx context.Context, id string) (*SecretValue, error)

// Fetch calls the wrapped function.
func (f FetcherFunc) Fetch(ctx context.Context, id string) (*SecretValue, error) {
	return f(ctx, id)
}
