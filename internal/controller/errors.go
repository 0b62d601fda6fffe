package controller

import (
	"errors"
	"fmt"
)

var ErrUnexpectedStatus = errors.New("unexpected status")

// TransportError covers everything between issuing the request and having a
// complete body: dial failures, timeouts, non-2xx statuses.
type TransportError struct {
	URL        string
	StatusCode int // 0 when no response arrived
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError means the body arrived but was not a JSON object.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return "parse controller state: " + e.Err.Error() }

func (e *ParseError) Unwrap() error { return e.Err }

// Kind names the error class for logs and audit rows.
func Kind(err error) string {
	var te *TransportError
	var pe *ParseError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &pe):
		return "parse"
	case errors.As(err, &te):
		return "transport"
	default:
		return "other"
	}
}
