package api

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// Kind categorizes client errors for handling.
type Kind int

const (
	KindUnknown Kind = iota
	// KindAuthExpired is a 401 from the backend. The credential has already
	// been cleared and the session's auth-expired hook fired by the time the
	// caller sees this error.
	KindAuthExpired
	// KindRequestFailed is any other non-2xx HTTP status.
	KindRequestFailed
	// KindTransport is a connection-level failure with no HTTP status.
	KindTransport
	// KindPrecondition is a local precondition violated before any network
	// call was made.
	KindPrecondition
)

// Error is the error type returned by every client operation.
type Error struct {
	Kind    Kind
	Status  int // HTTP status, when one was observed
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, k Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == k
}

// errorMessage extracts a human-readable message from an error response
// body: a JSON `detail` field when present, else the raw text, else a
// generic fallback with the status code.
func errorMessage(status int, body []byte) string {
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Detail != "" {
		return payload.Detail
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return "request failed (" + strconv.Itoa(status) + ")"
}
