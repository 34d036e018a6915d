package ai

import (
	"errors"
	"fmt"
)

// Kind classifies a provider failure by cause.
type Kind string

const (
	KindInvalidAPIKey      Kind = "invalid_api_key"
	KindNetwork            Kind = "network_error"
	KindInvalidResponse    Kind = "invalid_response"
	KindRateLimitExceeded  Kind = "rate_limit_exceeded"
	KindEncodingFailed     Kind = "encoding_failed"
	KindDecodingFailed     Kind = "decoding_failed"
	KindServiceUnavailable Kind = "service_unavailable"
)

// Sentinels for errors.Is. They match any *Error of the same Kind.
var (
	ErrInvalidAPIKey      = &Error{Kind: KindInvalidAPIKey}
	ErrNetwork            = &Error{Kind: KindNetwork}
	ErrInvalidResponse    = &Error{Kind: KindInvalidResponse}
	ErrRateLimitExceeded  = &Error{Kind: KindRateLimitExceeded}
	ErrEncodingFailed     = &Error{Kind: KindEncodingFailed}
	ErrDecodingFailed     = &Error{Kind: KindDecodingFailed}
	ErrServiceUnavailable = &Error{Kind: KindServiceUnavailable}
)

var descriptions = map[Kind]string{
	KindInvalidAPIKey:      "API key is invalid or not configured",
	KindNetwork:            "network error",
	KindInvalidResponse:    "the AI service returned an invalid response",
	KindRateLimitExceeded:  "rate limit exceeded, please try again later",
	KindEncodingFailed:     "failed to encode the request",
	KindDecodingFailed:     "failed to decode the AI response",
	KindServiceUnavailable: "the AI service is temporarily unavailable",
}

// Error is returned by every provider operation.
type Error struct {
	Kind     Kind
	Provider string
	// StatusCode is the upstream HTTP status when one was received.
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := "ai: " + string(e.Kind)
	if e.Provider != "" {
		msg = fmt.Sprintf("ai: %s: %s", e.Provider, e.Kind)
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches on Kind so callers can compare against the package sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Kind == t.Kind
}

// Retryable reports whether a manual retry of the same call may succeed.
// Rate-limit failures should be retried after a longer back-off than the
// local limiter interval.
func (e *Error) Retryable() bool {
	if e == nil {
		return false
	}
	switch e.Kind {
	case KindInvalidAPIKey, KindEncodingFailed:
		return false
	}
	return true
}

// Description is a message suitable for showing to the end user.
func (e *Error) Description() string {
	if e == nil {
		return ""
	}
	d, ok := descriptions[e.Kind]
	if !ok {
		return "unexpected AI error"
	}
	if e.Kind == KindNetwork && e.Err != nil {
		return d + ": " + e.Err.Error()
	}
	return d
}

// NewError builds an *Error for provider.
func NewError(kind Kind, provider string, err error) *Error {
	return &Error{Kind: kind, Provider: provider, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
