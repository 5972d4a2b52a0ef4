package entity

import (
	"errors"
	"fmt"
)

// Authorization replay / CSRF class
var (
	ErrDuplicateState       = errors.New("oauth state already exists")
	ErrStateNotFound        = errors.New("oauth state not found")
	ErrStateExpired         = errors.New("oauth state expired")
	ErrStateAlreadyConsumed = errors.New("oauth state already consumed")
	ErrProviderMismatch     = errors.New("oauth state provider mismatch")
)

// Provider request failures
var (
	ErrTokenExchangeFailed = errors.New("token exchange failed")
	ErrRefreshFailed       = errors.New("token refresh failed")
	ErrIdentityFetchFailed = errors.New("identity fetch failed")
	ErrNetworkTimeout      = errors.New("provider request timed out")
)

var (
	// ErrRotationPartialFailure is logged when the new connection exists but a
	// superseded one could not be deleted. It never fails a connect flow.
	ErrRotationPartialFailure = errors.New("rotation left a stale connection behind")

	ErrUnknownProvider     = errors.New("unknown provider")
	ErrProviderDisabled    = errors.New("provider is not enabled")
	ErrConnectionNotFound  = errors.New("social connection not found")
	ErrMissingCodeVerifier = errors.New("oauth state carries no code verifier")
)

// ProviderError is returned when a provider rejects a request or answers with
// a body that cannot be parsed
type ProviderError struct {
	Kind       error // ErrTokenExchangeFailed, ErrRefreshFailed or ErrIdentityFetchFailed
	Provider   Provider
	StatusCode int
	Body       string // truncated
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: provider=%s status=%d body=%s", e.Kind, e.Provider, e.StatusCode, e.Body)
}

func (e *ProviderError) Is(target error) bool {
	return target == e.Kind
}

// IsStateError reports whether err belongs to the authorization replay/CSRF class
func IsStateError(err error) bool {
	return errors.Is(err, ErrStateNotFound) ||
		errors.Is(err, ErrStateExpired) ||
		errors.Is(err, ErrStateAlreadyConsumed) ||
		errors.Is(err, ErrProviderMismatch)
}
