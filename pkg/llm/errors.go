package llm

import (
	"errors"
	"fmt"
)

// ErrNotConfigured is returned when a provider has no usable credentials
var ErrNotConfigured = errors.New("llm client not configured")

// ErrEmptyResponse is returned when a provider answers without any text
var ErrEmptyResponse = errors.New("empty response from llm")

// ClientError is a transport failure raised by a provider client
type ClientError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ClientError) Unwrap() error {
	return e.Err
}

// NewClientError wraps err as a ClientError. A nil err stays nil.
func NewClientError(provider, op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *ClientError
	if errors.As(err, &ce) {
		return err
	}
	return &ClientError{Provider: provider, Op: op, Err: err}
}

// IsTransportError reports whether err came from the transport boundary
func IsTransportError(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce) || errors.Is(err, ErrNotConfigured)
}
