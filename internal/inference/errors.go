package inference

import (
	"errors"
	"fmt"
)

var (
	ErrUnavailable = errors.New("inference service unavailable")
	ErrTimeout     = errors.New("inference service timed out")
)

// HTTPError is a non-2xx upstream response, relayed to the caller with the
// upstream's status and payload.
type HTTPError struct {
	StatusCode int
	Body       []byte
	IsJSON     bool
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("inference service returned %d", e.StatusCode)
}
