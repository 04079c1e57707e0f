package siri

import (
	"errors"
	"fmt"
)

// Kind classifies a fetch failure. The polling layer uses the kind to pick
// a backoff policy and to annotate stale data served to subscribers.
type Kind string

const (
	// KindNetwork covers transport-level failures: connection errors,
	// timeouts, and unexpected HTTP status codes.
	KindNetwork Kind = "network"

	// KindAuth indicates the API rejected the credential (HTTP 401/403).
	// Retrying with the same credential will not help.
	KindAuth Kind = "auth"

	// KindRateLimit indicates server-reported throttling, either as
	// HTTP 429 or as the plain-text quota message 511.org returns in a
	// 200 body.
	KindRateLimit Kind = "rate_limit"

	// KindDecode indicates the response body could not be parsed as a
	// SIRI service delivery.
	KindDecode Kind = "decode"

	// KindEmpty indicates the API returned a syntactically empty response
	// where a service delivery envelope was expected.
	KindEmpty Kind = "empty"
)

// Error is a typed fetch failure.
//
// Error implements the unwrap chain, so callers can use [errors.As] to
// recover it from wrapped errors, or [KindOf] as a shortcut.
type Error struct {
	// Kind is the failure classification.
	Kind Kind

	// Op names the API endpoint that failed (e.g. "StopMonitoring").
	Op string

	// Err is the underlying cause, if any.
	Err error

	// Message is a human-readable description when there is no
	// underlying error to wrap.
	Message string
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("siri: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("siri: %s: %s: %s", e.Op, e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the failure kind carried by err, or the empty string if
// err is not (and does not wrap) a [*Error].
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}
