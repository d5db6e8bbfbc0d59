package core

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by data sources, services and handlers.
// Concrete errors wrap one of these and are matched with errors.Is.
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrRemote     = errors.New("data source unavailable")
)

// NotFound reports a missing record of the given kind.
func NotFound(kind string, id int64) error {
	return fmt.Errorf("%s %d: %w", kind, id, ErrNotFound)
}

// Remote wraps a transport or driver failure so callers can tell it apart
// from validation and lookup errors.
func Remote(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrRemote, err)
}
