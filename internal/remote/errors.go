package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotConfigured is returned when the token, base or table is missing.
var ErrNotConfigured = errors.New("remote store is not configured")

// UnauthorizedError is a 401 response. It is never retried.
type UnauthorizedError struct {
	Message string
}

func (err *UnauthorizedError) Error() string {
	if err.Message == "" {
		return "unauthorized"
	}
	return "unauthorized: " + err.Message
}

// RemoteError is any other non-2xx response, including a rate limit that
// outlasted every retry.
type RemoteError struct {
	StatusCode int

	// Message comes from the response body when it carries one, else "Error <status>".
	Message string
}

func (err *RemoteError) Error() string {
	return err.Message
}

// ConnectionError means the store could not be reached at all.
type ConnectionError struct {
	Err error
}

func (err *ConnectionError) Error() string {
	return fmt.Sprintf("connection error: %v", err.Err)
}

func (err *ConnectionError) Unwrap() error { return err.Err }

// IsUnauthorized reports whether err is a 401 from the store.
func IsUnauthorized(err error) bool {
	var unauthorized *UnauthorizedError
	return errors.As(err, &unauthorized)
}

// IsRateLimited reports whether err is a rate limit that exhausted its retries.
func IsRateLimited(err error) bool {
	var remoteErr *RemoteError
	return errors.As(err, &remoteErr) && remoteErr.StatusCode == http.StatusTooManyRequests
}

// IsConnection reports whether err is a network-level failure.
func IsConnection(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr)
}

// userMessage is the text shown to the user for a failed call.
func userMessage(err error) string {
	var (
		unauthorized *UnauthorizedError
		remoteErr    *RemoteError
		connErr      *ConnectionError
	)
	switch {
	case errors.As(err, &unauthorized):
		return "Invalid API token. Check your settings."
	case errors.As(err, &remoteErr):
		return remoteErr.Message
	case errors.As(err, &connErr):
		return "Connection error. Check your internet connection."
	default:
		return err.Error()
	}
}
