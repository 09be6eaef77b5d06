package rtnl

import (
	"errors"
	"fmt"
	"syscall"
)

var (
	// ErrNotFound is returned when a name or index lookup matches no interface.
	ErrNotFound = errors.New("not found")

	// ErrMalformedInput is returned for invalid user supplied values. It is always
	// detected before anything is sent to the kernel.
	ErrMalformedInput = errors.New("malformed input")

	// ErrMalformedMessage is returned when a reply is too short to hold its
	// fixed size record.
	ErrMalformedMessage = errors.New("malformed netlink message")
)

// KernelError is a negative acknowledgment from the kernel.
type KernelError struct {
	Errno syscall.Errno
}

func (e *KernelError) Error() string {
	return fmt.Sprintf("kernel rejected request: %v", e.Errno)
}

// Unwrap exposes the errno so callers can use errors.Is(err, unix.EEXIST).
func (e *KernelError) Unwrap() error {
	return e.Errno
}

func malformedInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedInput, fmt.Sprintf(format, args...))
}
