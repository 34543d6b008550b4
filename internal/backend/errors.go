package backend

import (
	"errors"
	"fmt"
)

// ErrMissingID marks a success response that did not carry the record id.
var ErrMissingID = errors.New("response carried no id")

// BackendError is a non-2xx response.
type BackendError struct {
	Message    string
	StatusCode int
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend: %s (status %d)", e.Message, e.StatusCode)
}

// NetworkError is a request that never produced a usable response.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("backend: %s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
