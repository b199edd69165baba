package camera

import (
	"errors"
	"fmt"
)

// ErrUnavailable is returned when the camera cannot be opened or yields no frame.
var ErrUnavailable = errors.New("camera unavailable")

// Error describes a failed camera operation.
type Error struct {
	Op     string // "open" or "read"
	Device int
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("camera %d: %s: %v", e.Device, e.Op, ErrUnavailable)
	}
	return fmt.Sprintf("camera %d: %s: %v: %v", e.Device, e.Op, ErrUnavailable, e.Err)
}

// Unwrap lets errors.Is match both ErrUnavailable and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUnavailable}
	}
	return []error{ErrUnavailable, e.Err}
}
