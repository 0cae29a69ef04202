// Package apperrors defines the two error kinds used across dueue:
// ConfigError (fatal at startup, never raised after Initialize) and
// UnderlyingError (durable-store, id-parsing, or connection-pool failures,
// surfaced to the HTTP boundary as a 500).
package apperrors

import "fmt"

// ConfigError signals that configuration is missing or malformed.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}

// UnderlyingError wraps a durable-store, id-parsing, or connection-pool
// failure. The engine never retries it and never swallows it.
type UnderlyingError struct {
	Op  string
	Err error
}

func (e *UnderlyingError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UnderlyingError) Unwrap() error {
	return e.Err
}

// Underlying wraps err as an UnderlyingError tagged with op. Returns nil if
// err is nil.
func Underlying(op string, err error) error {
	if err == nil {
		return nil
	}
	return &UnderlyingError{Op: op, Err: err}
}
