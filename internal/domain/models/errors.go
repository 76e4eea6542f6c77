package models

import (
	"errors"
	"fmt"
)

var (
	// ErrProviderUnavailable marks a provider that cannot be called at all (missing credentials, open breaker).
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrProviderTransient covers timeouts, 5xx and rate limiting.
	ErrProviderTransient = errors.New("provider transient failure")
	// ErrProviderMalformed covers unparseable payloads and empty result fields.
	ErrProviderMalformed = errors.New("provider malformed response")

	ErrRateLimited   = errors.New("rate limited")
	ErrNotConfigured = errors.New("provider not configured")
	ErrNotFound      = errors.New("not found")

	ErrRefreshInProgress = errors.New("refresh already in progress")
	ErrUnknownCache      = errors.New("unknown cache")
)

// ProviderError carries the failing provider and its classified kind.
type ProviderError struct {
	Provider string
	Kind     error
	Status   int
	Err      error
}

func NewProviderError(provider string, kind error, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: kind, Err: err}
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Provider, e.Kind)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ProviderError) Unwrap() []error {
	out := []error{e.Kind}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// ClassifyProviderError maps any provider failure onto one of the three provider error kinds.
func ClassifyProviderError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrProviderUnavailable), errors.Is(err, ErrNotConfigured):
		return ErrProviderUnavailable
	case errors.Is(err, ErrProviderMalformed):
		return ErrProviderMalformed
	default:
		return ErrProviderTransient
	}
}
