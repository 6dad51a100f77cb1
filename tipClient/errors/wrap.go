package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted message
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// WrapTipError wraps an error as a TipError if it isn't already one
func WrapTipError(err error, code ErrorCode, chain, message string) *TipError {
	if err == nil {
		return nil
	}

	var tipErr *TipError
	if errors.As(err, &tipErr) {
		tipErr.WithContext("wrapped_message", message)
		if chain != "" && tipErr.Chain == "" {
			tipErr.Chain = chain
		}
		return tipErr
	}

	return NewTipError(code, chain, message, err)
}

// Is checks if an error is of a specific type
func Is(err error, target error) bool {
	return errors.Is(err, target)
}

// As checks if an error can be assigned to a target type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New returns a plain error, mirroring the standard library.
func New(text string) error {
	return errors.New(text)
}

// CodeOf returns the TipError code carried by err, or ErrCodeInternal.
func CodeOf(err error) ErrorCode {
	var tipErr *TipError
	if errors.As(err, &tipErr) {
		return tipErr.Code
	}
	return ErrCodeInternal
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var tipErr *TipError
	if errors.As(err, &tipErr) {
		return tipErr.IsRetryable()
	}

	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"connection refused",
		"connection reset",
		"timeout",
		"temporary failure",
		"too many requests",
		"rate limit",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}
