package secretcache

import (
	"fmt"

	"github.com/pkg/errors"
)

// FetchErrorKind describes the reason that a secret could not be fetched.
type FetchErrorKind string

const (
	// FetchErrorNotFound indicates that the secret does not exist.
	FetchErrorNotFound FetchErrorKind = "not-found"
	// FetchErrorAccessDenied indicates that the caller is not permitted to
	// read the secret or decrypt its value.
	FetchErrorAccessDenied FetchErrorKind = "access-denied"
	// FetchErrorTransient indicates a network or otherwise temporary failure
	// that may succeed if attempted again later.
	FetchErrorTransient FetchErrorKind = "transient"
	// FetchErrorServiceInternal indicates that the secrets storage service
	// itself failed.
	FetchErrorServiceInternal FetchErrorKind = "service-internal"
	// FetchErrorInvalidRequest indicates that the request can never succeed
	// as given, such as requesting a deleted secret or an empty identifier.
	FetchErrorInvalidRequest FetchErrorKind = "invalid-request"
)

// FetchError is returned by a Fetcher when it cannot retrieve a secret.
type FetchError struct {
	Kind  FetchErrorKind
	ID    string
	Cause error
}

// NewFetchError returns a new FetchError of the given kind for the secret
// identified by ID.
func NewFetchError(kind FetchErrorKind, id string, cause error) *FetchError {
	return &FetchError{
		Kind:  kind,
		ID:    id,
		Cause: cause,
	}
}

// Error returns the formatted error message including the kind of failure.
func (e *FetchError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("fetching secret '%s': %s", e.ID, e.Kind)
	}
	return fmt.Sprintf("fetching secret '%s': %s: %s", e.ID, e.Kind, e.Cause.Error())
}

// Unwrap returns the underlying cause of the fetch failure.
func (e *FetchError) Unwrap() error {
	return e.Cause
}

// FetchErrorKindOf returns the kind of the FetchError in the error chain. If
// there is none, it returns the empty kind.
func FetchErrorKindOf(err error) FetchErrorKind {
	var fe *FetchError
	if !errors.As(err, &fe) {
		return ""
	}
	return fe.Kind
}

// IsSecretNotFoundError returns whether or not the error is due to the secret
// not existing.
func IsSecretNotFoundError(err error) bool {
	return FetchErrorKindOf(err) == FetchErrorNotFound
}

// IsAccessDeniedError returns whether or not the error is due to the caller
// lacking permission to read the secret.
func IsAccessDeniedError(err error) bool {
	return FetchErrorKindOf(err) == FetchErrorAccessDenied
}

// IsTransientFetchError returns whether or not the error is due to a temporary
// failure.
func IsTransientFetchError(err error) bool {
	return FetchErrorKindOf(err) == FetchErrorTransient
}

// IsServiceInternalError returns whether or not the error is due to a failure
// in the secrets storage service.
func IsServiceInternalError(err error) bool {
	return FetchErrorKindOf(err) == FetchErrorServiceInternal
}

// FetchFailedError is returned by a SecretCache when it had to fetch a secret
// and the fetch failed.
type FetchFailedError struct {
	ID    string
	Cause error
}

// NewFetchFailedError returns a new FetchFailedError for the secret identified
// by ID.
func NewFetchFailedError(id string, cause error) *FetchFailedError {
	return &FetchFailedError{
		ID:    id,
		Cause: cause,
	}
}

// Error returns the formatted error message including the underlying cause.
func (e *FetchFailedError) Error() string {
	return fmt.Sprintf("refreshing cached secret '%s': %v", e.ID, e.Cause)
}

// Unwrap returns the error returned by the Fetcher.
func (e *FetchFailedError) Unwrap() error {
	return e.Cause
}

// IsFetchFailedError returns whether or not the error is due to a failed fetch
// while getting a cached secret.
func IsFetchFailedError(err error) bool {
	var ffe *FetchFailedError
	return errors.As(err, &ffe)
}

// InvalidConfigError indicates that a SecretCache could not be created because
// its configuration is invalid.
type InvalidConfigError struct {
	Reason error
}

// NewInvalidConfigError returns a new InvalidConfigError with the given reason.
func NewInvalidConfigError(reason error) *InvalidConfigError {
	return &InvalidConfigError{Reason: reason}
}

// Error returns the formatted error message including the validation failure.
func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid cache configuration: %v", e.Reason)
}

// Unwrap returns the validation failure.
func (e *InvalidConfigError) Unwrap() error {
	return e.Reason
}

// IsInvalidConfigError returns whether or not the error is due to an invalid
// cache configuration.
func IsInvalidConfigError(err error) bool {
	var ice *InvalidConfigError
	return errors.As(err, &ice)
}
