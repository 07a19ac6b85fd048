package api

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrAuth is returned when the gateway rejects login or registration.
	ErrAuth = errors.New("authentication rejected")
	// ErrAuthorizationExpired is returned when an authenticated call gets 401.
	ErrAuthorizationExpired = errors.New("authorization expired")
	// ErrNetworkOrServer covers transport failures and every other non-2xx reply.
	ErrNetworkOrServer = errors.New("gateway request failed")
)

// APIError is a non-2xx reply from the gateway. It unwraps to one of the
// sentinel kinds above.
type APIError struct {
	Status  int
	Message string
	kind    error
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %d %s", e.kind, e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("%s: %s", e.kind, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.kind
}

// IsAuthRejection reports whether a reply to login or register means the
// credentials or profile were refused, as opposed to a transient failure.
func IsAuthRejection(status int) bool {
	if status < 400 || status >= 500 {
		return false
	}
	return status != http.StatusRequestTimeout && status != http.StatusTooManyRequests
}
