package openmotics

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joshp123/omhome/internal/rate"
)

// ErrUnsupportedCommand is returned for operations a gateway cannot express.
var ErrUnsupportedCommand = errors.New("command not supported by gateway")

type HTTPStatusError struct {
	Status int
	Body   string
}

func (e HTTPStatusError) Error() string {
	return fmt.Sprintf("openmotics api error %d: %s", e.Status, strings.TrimSpace(e.Body))
}

// ConnectionError covers network failures, timeouts and unexpected statuses.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("openmotics %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// AuthenticationError is a rejected credential or token.
type AuthenticationError struct {
	Op  string
	Err error
}

func (e *AuthenticationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("openmotics %s: authentication failed", e.Op)
	}
	return fmt.Sprintf("openmotics %s: authentication failed: %v", e.Op, e.Err)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// MaintenanceModeError is returned while the gateway answers 503.
type MaintenanceModeError struct {
	Op string
}

func (e *MaintenanceModeError) Error() string {
	return fmt.Sprintf("openmotics %s: gateway is in maintenance mode", e.Op)
}

// APIError is a failure reported by the vendor in the response body.
type APIError struct {
	Op      string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("openmotics %s: api error %d: %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("openmotics %s: api error: %s", e.Op, e.Message)
}

// IsRetryable reports whether a later attempt may succeed without any change
// on the caller's side.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var (
		connErr    *ConnectionError
		maintErr   *MaintenanceModeError
		limitedErr *rate.BlockedError
	)
	return errors.As(err, &connErr) || errors.As(err, &maintErr) || errors.As(err, &limitedErr)
}

// IsAuthError reports whether err came from rejected credentials.
func IsAuthError(err error) bool {
	var authErr *AuthenticationError
	return errors.As(err, &authErr)
}
