package types

import "fmt"

// RetryableError represents an error that indicates the operation can be retried.
// This is typically used for transient errors like rate limits or temporary server unavailability.
// Nothing in this tool retries; the tag only tells the caller what kind of failure it saw.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error: %v", e.Err)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError wraps an existing error as a RetryableError.
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}

// ConfigError reports a misconfiguration that blocks startup: a missing or
// placeholder credential, a missing template, an unreadable metadata file.
// Hint tells the user what the expected resource looks like.
type ConfigError struct {
	Msg  string
	Hint string
	Err  error
}

func (e *ConfigError) Error() string {
	msg := e.Msg
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Hint != "" {
		msg += ". " + e.Hint
	}
	return msg
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError builds a ConfigError with an optional cause.
func NewConfigError(msg, hint string, err error) error {
	return &ConfigError{Msg: msg, Hint: hint, Err: err}
}
