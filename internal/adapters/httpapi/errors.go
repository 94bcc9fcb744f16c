package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/bnema/sweetdata-cli/internal/domain"
)

type ErrorKind string

const (
	KindTimeout        ErrorKind = "timeout"
	KindTransport      ErrorKind = "transport"
	KindStatus         ErrorKind = "status"
	KindAuthRejected   ErrorKind = "auth_rejected"
	KindCanceled       ErrorKind = "canceled"
	KindInvalidRequest ErrorKind = "invalid_request"
)

// NetworkError is the only error the Fetcher returns. errors.Is maps it onto
// the domain taxonomy.
type NetworkError struct {
	Kind       ErrorKind
	Endpoint   string
	URL        string
	StatusCode int
	Attempts   int
	Exhausted  bool
	Err        error
}

func (e *NetworkError) Error() string {
	msg := fmt.Sprintf("%s %s", e.Endpoint, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Attempts > 1 {
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

func (e *NetworkError) Is(target error) bool {
	switch target {
	case domain.ErrAuthRejected:
		return e.Kind == KindAuthRejected
	case domain.ErrTransientNetwork:
		return e.Retryable()
	case domain.ErrTerminalSyncFailure:
		return e.Exhausted
	default:
		return false
	}
}

func (e *NetworkError) Retryable() bool {
	switch e.Kind {
	case KindTimeout, KindTransport:
		return true
	case KindStatus:
		return retryableStatus(e.StatusCode)
	default:
		return false
	}
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return true
	default:
		return code >= http.StatusInternalServerError
	}
}

func AsNetworkError(err error) (*NetworkError, bool) {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return netErr, true
	}
	return nil, false
}
