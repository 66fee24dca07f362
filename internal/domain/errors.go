package domain

import "errors"

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	ErrAccountAlreadyExists = errors.New("account_already_exists")
	ErrAccountNotFound      = errors.New("account_not_found")
	ErrInsufficientFunds    = errors.New("insufficient_funds")
	ErrInsufficientHoldings = errors.New("insufficient_holdings")
	ErrSymbolNotFound       = errors.New("symbol_not_found")
	ErrStoreTimeout         = errors.New("store_timeout")
	ErrUpstreamUnavailable  = errors.New("upstream_unavailable")
	ErrUpstreamError        = errors.New("upstream_error")
)

// ValidationError represents a request validation failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// UpstreamFailure carries a user-presentable message alongside one of
// ErrUpstreamUnavailable or ErrUpstreamError. The wrapped cause is kept
// for logging only.
type UpstreamFailure struct {
	Kind    error
	Message string
	Cause   error
}

func (e *UpstreamFailure) Error() string {
	if e.Cause != nil {
		return e.Kind.Error() + ": " + e.Cause.Error()
	}
	return e.Kind.Error()
}

func (e *UpstreamFailure) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}
