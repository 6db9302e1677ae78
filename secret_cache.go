package secretcache

import (
	"context"
	"time"
)

// SecretCache provides an in-process cache of secret values. Implementations
// must be safe for concurrent use.
type SecretCache interface {
	// GetSecretValue returns the value of the secret identified by ID. If the
	// secret is cached and has not expired, the cached value is returned
	// without making any external requests. Otherwise, or if forceRefresh is
	// set, the secret is fetched synchronously and the cache is updated. The
	// returned value is a copy owned by the caller.
	GetSecretValue(ctx context.Context, id string, forceRefresh bool) (*SecretValue, error)
	// GetSecretString is a convenience function to get the string value of
	// the secret identified by ID without forcing a refresh.
	GetSecretString(ctx context.Context, id string) (string, error)
	// GetSecretBinary is a convenience function to get the binary value of
	// the secret identified by ID without forcing a refresh. The returned
	// bytes are a copy owned by the caller.
	GetSecretBinary(ctx context.Context, id string) ([]byte, error)
	// Invalidate removes the secret identified by ID from the cache, if it is
	// present.
	Invalidate(id string)
	// Clear removes all secrets from the cache.
	Clear()
	// Len returns the number of secrets currently in the cache.
	Len() int
}

// SecretValue is a snapshot of a secret's value at the time it was fetched.
// A SecretCache returns each caller its own copy, so callers may modify or zero
// the returned value without affecting the cache.
type SecretValue struct {
	// ARN is the unique resource identifier of the secret.
	ARN string
	// Name is the friendly name of the secret.
	Name string
	// SecretString is the decrypted string value of the secret, if it has
	// one.
	SecretString string
	// SecretBinary is the decrypted binary value of the secret, if it has
	// one.
	SecretBinary []byte
	// VersionID identifies the version of the secret that was fetched. It is
	// informational only.
	VersionID string
	// VersionStages are the staging labels attached to the fetched version.
	VersionStages []string
	// CreatedDate is when the fetched version was created.
	CreatedDate time.Time
}

// Copy returns a deep copy of the secret value.
func (v *SecretValue) Copy() *SecretValue {
	if v == nil {
		return nil
	}
	cpy := *v
	if v.SecretBinary != nil {
		cpy.SecretBinary = append([]byte{}, v.SecretBinary...)
	}
	if v.VersionStages != nil {
		cpy.VersionStages = append([]string{}, v.VersionStages...)
	}
	return &cpy
}
