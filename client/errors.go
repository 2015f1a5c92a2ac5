package client

import (
	"errors"
	"fmt"
	"time"

	"github.com/cerekinorg/toolhost/protocol"
)

// Standard error types that can be used with errors.Is()
var (
	ErrClientClosed     = errors.New("client is closed")
	ErrRequestTimeout   = errors.New("request timed out")
	ErrServerError      = errors.New("server reported error")
	ErrTransportFailure = errors.New("transport failure")
	ErrTransportClosed  = errors.New("transport is closed")
)

// TimeoutError indicates a request that received no response in time.
type TimeoutError struct {
	Method  string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request %q timed out after %v", e.Method, e.Timeout)
}

func (e *TimeoutError) Unwrap() error { return ErrRequestTimeout }

// ServerError carries a JSON-RPC error payload reported by the server,
// preserved verbatim for the caller.
type ServerError struct {
	Method  string
	Code    protocol.ErrorCode
	Message string
	Data    interface{}
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error during %s: %s (code %d)", e.Method, e.Message, e.Code)
}

func (e *ServerError) Unwrap() error { return ErrServerError }

// TransportError indicates a problem in the transport layer, such as a
// broken pipe on write.
type TransportError struct {
	Op    string
	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error during %s: %v", e.Op, e.Cause)
}

func (e *TransportError) Unwrap() error { return e.Cause }

func (e *TransportError) Is(target error) bool { return target == ErrTransportFailure }

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(method string, timeout time.Duration) error {
	return &TimeoutError{Method: method, Timeout: timeout}
}

// NewServerError creates a new ServerError from an error payload.
func NewServerError(method string, payload *protocol.ErrorPayload) error {
	return &ServerError{
		Method:  method,
		Code:    payload.Code,
		Message: payload.Message,
		Data:    payload.Data,
	}
}

// NewTransportError creates a new TransportError.
func NewTransportError(op string, cause error) error {
	return &TransportError{Op: op, Cause: cause}
}

// IsTimeoutError checks if an error is a timeout error
func IsTimeoutError(err error) bool {
	var timeoutErr *TimeoutError
	return errors.As(err, &timeoutErr) || errors.Is(err, ErrRequestTimeout)
}

// IsServerError checks if an error is a server-reported error
func IsServerError(err error) bool {
	var serverErr *ServerError
	return errors.As(err, &serverErr) || errors.Is(err, ErrServerError)
}

// IsTransportError checks if an error is a transport error
func IsTransportError(err error) bool {
	var transportErr *TransportError
	return errors.As(err, &transportErr) || errors.Is(err, ErrTransportFailure)
}
