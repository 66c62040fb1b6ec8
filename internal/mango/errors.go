package mango

import (
	"context"
	"errors"
	"fmt"
)

// ErrInvalidRange is returned by FetchList when a date bound is missing.
var ErrInvalidRange = errors.New("mango: date range is not resolved")

// TransportError covers network failures and non-2xx answers.
type TransportError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("mango %s: %v", e.Op, e.Err)
	case e.Body != "":
		return fmt.Sprintf("mango %s: http status %d: %s", e.Op, e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("mango %s: http status %d", e.Op, e.StatusCode)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsCancelled reports whether err is a cooperative abort rather than a
// failure.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled)
}
