// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrNotSynchronized  = errors.New("terminal not synchronized")
	ErrConnectionFailed = errors.New("connection failed")
	ErrTimeout          = errors.New("operation timed out")
	ErrConfigInvalid    = errors.New("invalid configuration")
	ErrNoClosingDeal    = errors.New("no closing deal found")
	ErrMessageNotFound  = errors.New("message not found")
	ErrRateLimited      = errors.New("rate limited")
	ErrDatabaseError    = errors.New("database error")
)

// BrokerError represents an error from the broker terminal API.
type BrokerError struct {
	Code    string
	Message string
	Err     error
}

func (e *BrokerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("broker error [%s]: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("broker error [%s]: %s", e.Code, e.Message)
}

func (e *BrokerError) Unwrap() error {
	return e.Err
}

// NewBrokerError creates a new BrokerError.
func NewBrokerError(code, message string, err error) *BrokerError {
	return &BrokerError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// TransportError represents an error from the messaging transport. Protocol
// errors are not retriable in place; the caller is expected to tear down and
// reconnect the transport.
type TransportError struct {
	Op        string
	Retriable bool
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error [%s]: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError creates a new TransportError.
func NewTransportError(op string, retriable bool, err error) *TransportError {
	return &TransportError{
		Op:        op,
		Retriable: retriable,
		Err:       err,
	}
}

// IsRetriable reports whether err is a transient failure that may be retried
// without tearing down the connection.
func IsRetriable(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Retriable
	}
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTimeout)
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
