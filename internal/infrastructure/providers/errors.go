package providers

import (
	"errors"
	"fmt"
)

// ErrBackend is matched by every failure to obtain a usable backend response.
var ErrBackend = errors.New("backend request failed")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Endpoint string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: HTTP %d", e.Endpoint, e.Code)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Endpoint, e.Code, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrBackend }

func asStatusError(err error, target **StatusError) bool {
	return errors.As(err, target)
}

// maxErrorBody bounds how much of an error response ends up in messages.
const maxErrorBody = 256

func truncate(body []byte) string {
	if len(body) <= maxErrorBody {
		return string(body)
	}
	return string(body[:maxErrorBody]) + "..."
}
