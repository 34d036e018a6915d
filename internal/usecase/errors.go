package usecase

import (
	"context"
	"errors"
	"fmt"

	"mindlog-agent/internal/ai"
)

type ErrorCode string

const (
	ErrorInvalidInput ErrorCode = "INVALID_INPUT"
	ErrorRateLimited  ErrorCode = "RATE_LIMITED"
	ErrorUpstream     ErrorCode = "UPSTREAM_ERROR"
	ErrorInternal     ErrorCode = "INTERNAL_ERROR"
)

type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Message is the text shown to API callers. Provider failures use the
// provider error's own description.
func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	var aiErr *ai.Error
	if errors.As(e.Err, &aiErr) {
		return aiErr.Description()
	}
	return e.Reason
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}

// fromProvider maps a failed provider call to an API error.
func fromProvider(op ai.Operation, err error) *Error {
	kind := ai.KindOf(err)
	if kind == "" && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		// Cancelled while queued behind the provider's rate limiter.
		return newError(ErrorUpstream, string(op)+"_timeout", err)
	}
	switch kind {
	case "":
		return newError(ErrorInternal, string(op)+"_error", err)
	case ai.KindRateLimitExceeded:
		return newError(ErrorRateLimited, string(op)+"_rate_limited", err)
	case ai.KindInvalidAPIKey, ai.KindEncodingFailed:
		return newError(ErrorInternal, string(op)+"_"+string(kind), err)
	default:
		return newError(ErrorUpstream, string(op)+"_"+string(kind), err)
	}
}
