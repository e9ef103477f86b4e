package api

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrSessionExpired is matched by errors.Is when a 401 could not be recovered by a refresh.
var ErrSessionExpired = errors.New("session expired, please login again")

// TransportError is a network-level failure; no HTTP status was received.
type TransportError struct {
	Method   string
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s %s: %v", e.Method, e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// SessionExpiredError is returned after a failed refresh; credentials have been cleared.
type SessionExpiredError struct {
	Cause error
}

func (e *SessionExpiredError) Error() string { return ErrSessionExpired.Error() }

func (e *SessionExpiredError) Is(target error) bool { return target == ErrSessionExpired }

func (e *SessionExpiredError) Unwrap() error { return e.Cause }

// GenericFailureMessage is used when a failed response names no error or detail.
const GenericFailureMessage = "Request failed"

// RequestFailedError is any non-2xx response not handled by the refresh path.
// Error returns the server message verbatim.
type RequestFailedError struct {
	Status  int
	Message string
	Body    json.RawMessage
}

func (e *RequestFailedError) Error() string { return e.Message }

// ParseError means the response body was not valid JSON (or not the expected shape).
type ParseError struct {
	Status int
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse response (status %d): %v", e.Status, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// failureMessage picks error, then detail, then the generic fallback.
func failureMessage(body json.RawMessage) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return GenericFailureMessage
	}
	for _, k := range []string{"error", "detail"} {
		if msg := messageText(fields[k]); msg != "" {
			return msg
		}
	}
	return GenericFailureMessage
}

func messageText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	switch string(raw) {
	case "null", "false", "0", `""`, "[]", "{}":
		return ""
	}
	return string(raw)
}

// IsStatus reports whether err is a RequestFailedError with the given status.
func IsStatus(err error, status int) bool {
	var rf *RequestFailedError
	return errors.As(err, &rf) && rf.Status == status
}
