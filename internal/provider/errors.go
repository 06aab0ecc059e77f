package provider

import (
	"errors"
	"fmt"
)

// Kind is the closed set of failure categories an adapter may report.
// Adding a kind requires updating the HTTP boundary's status mapping.
type Kind string

const (
	// KindRateLimited indicates the provider rejected or throttled the
	// request because of a quota or rate limit.
	KindRateLimited Kind = "rate_limited"
	// KindNotFound indicates no data exists for an otherwise valid request.
	KindNotFound Kind = "not_found"
	// KindUnauthorized indicates a missing, invalid, or expired credential.
	KindUnauthorized Kind = "unauthorized"
	// KindUnknown indicates any other failure (timeout, connection error,
	// unexpected status). The underlying cause is retained for diagnostics.
	KindUnknown Kind = "unknown"
)

// Error is the classified error that crosses the adapter/orchestrator
// boundary. Cause is diagnostic only and is never serialized to callers.
type Error struct {
	Kind     Kind
	Provider string
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s [%s]: %s: %v", e.Provider, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Provider, e.Kind, e.Message)
}

// Unwrap supports errors.Is and errors.As against the cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewRateLimited creates a rate-limit error for the given provider.
func NewRateLimited(providerName, message string) *Error {
	return &Error{Kind: KindRateLimited, Provider: providerName, Message: message}
}

// NewNotFound creates a not-found error for the given provider.
func NewNotFound(providerName, message string) *Error {
	return &Error{Kind: KindNotFound, Provider: providerName, Message: message}
}

// NewUnauthorized creates a credential error for the given provider.
func NewUnauthorized(providerName, message string) *Error {
	return &Error{Kind: KindUnauthorized, Provider: providerName, Message: message}
}

// NewUnknown creates an unclassified error, retaining cause for diagnostics.
func NewUnknown(providerName, message string, cause error) *Error {
	return &Error{Kind: KindUnknown, Provider: providerName, Message: message, Cause: cause}
}

// KindOf extracts the classification from err. Errors that are not a *Error
// fold into KindUnknown so that every orchestrator-visible failure has a kind.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}

// AsError returns the classified error inside err, wrapping untyped errors
// into a KindUnknown classification attributed to providerName.
func AsError(err error, providerName string) *Error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	return NewUnknown(providerName, "unexpected failure", err)
}
