package transport

import (
	"errors"
	"fmt"
)

// Common errors for the UDP driver
var (
	// ErrSocketInit indicates socket creation, configuration, or bind failed
	ErrSocketInit = errors.New("socket initialization failed")

	// ErrAddressResolution indicates a malformed host string
	ErrAddressResolution = errors.New("address resolution failed")

	// ErrSend indicates a single send attempt failed; the driver never retries
	ErrSend = errors.New("send failed")

	// ErrFatal indicates an event sink callback failed, aborting the poll cycle
	ErrFatal = errors.New("fatal driver error")

	// ErrNotStarted indicates an operation on a driver that was never started
	ErrNotStarted = errors.New("driver not started")
)

// DriverError represents a driver error with additional context
type DriverError struct {
	Op   string // operation that caused the error
	Addr string // peer address if relevant
	Err  error  // underlying error
}

func (e *DriverError) Error() string {
	if e.Addr != "" {
		return fmt.Sprintf("udpdriver %s %s: %v", e.Op, e.Addr, e.Err)
	}
	return fmt.Sprintf("udpdriver %s: %v", e.Op, e.Err)
}

func (e *DriverError) Unwrap() error {
	return e.Err
}

// newDriverError creates a new DriverError
func newDriverError(op, addr string, err error) *DriverError {
	return &DriverError{
		Op:   op,
		Addr: addr,
		Err:  err,
	}
}
