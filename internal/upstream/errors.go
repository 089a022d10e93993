package upstream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"unicode/utf8"
)

// Kind classifies why an upstream attempt failed.
type Kind string

// Failure kinds.
const (
	// KindAuthFailed means the credentials were rejected or the session expired.
	KindAuthFailed Kind = "auth_failed"
	// KindUnreachable covers network errors, timeouts and 5xx answers.
	KindUnreachable Kind = "unreachable"
	// KindParseFailed means the response did not have the expected shape.
	KindParseFailed Kind = "parse_failed"
	// KindConfigMissing means a required credential or setting is absent.
	// It is raised before any network call and never retried.
	KindConfigMissing Kind = "config_missing"
	// KindBusy means a cold fetch is running and there is no value to serve yet.
	KindBusy Kind = "busy"
)

// Size limits for messages surfaced to users and snapshots kept for logs.
const (
	MaxUserMessageLen = 200
	MaxSnapshotLen    = 500
)

// Error is returned by every Client implementation.
// Message is meant for operators; use UserMessage for anything shown to end users.
type Error struct {
	Err      error
	Kind     Kind
	Message  string
	Snapshot string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates an Error of the given kind.
func NewError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// WithSnapshot attaches the head of a response body for diagnostics.
func (e *Error) WithSnapshot(body []byte) *Error {
	e.Snapshot = truncate(string(body), MaxSnapshotLen)
	return e
}

// ErrBusy is returned when callers are told to come back later instead of
// waiting for a cold fetch.
var ErrBusy = &Error{Kind: KindBusy, Message: "stats are being fetched, retry shortly"}

// KindOf extracts the failure kind from err.
// The second result is false when err is not an upstream error.
func KindOf(err error) (Kind, bool) {
	var upErr *Error
	if errors.As(err, &upErr) {
		return upErr.Kind, true
	}
	return "", false
}

// SnapshotOf returns the body snapshot carried by err, if any.
func SnapshotOf(err error) string {
	var upErr *Error
	if errors.As(err, &upErr) {
		return upErr.Snapshot
	}
	return ""
}

// Retryable reports whether another attempt could succeed.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	kind, ok := KindOf(err)
	if !ok {
		return true
	}
	return kind != KindConfigMissing && kind != KindBusy
}

// UserMessage renders err for end users, bounded to MaxUserMessageLen characters.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var upErr *Error
	if errors.As(err, &upErr) {
		return truncate(upErr.Message, MaxUserMessageLen)
	}
	return truncate(err.Error(), MaxUserMessageLen)
}

// classifyTransport maps errors from the HTTP client onto failure kinds.
func classifyTransport(op string, err error) *Error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewError(KindUnreachable, op+": timed out", err)
	case errors.As(err, &netErr):
		return NewError(KindUnreachable, op+": network error", err)
	default:
		return NewError(KindUnreachable, op+": request failed", err)
	}
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
