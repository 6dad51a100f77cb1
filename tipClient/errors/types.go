package errors

import (
	"fmt"
)

// ErrorCode represents different categories of tip errors
type ErrorCode string

const (
	// ErrCodeInvalidAmount indicates a non-positive or unparsable tip amount
	ErrCodeInvalidAmount ErrorCode = "INVALID_AMOUNT"

	// ErrCodeValidation indicates any other tip request validation error
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodeWalletNotConnected indicates the sender address is unavailable
	ErrCodeWalletNotConnected ErrorCode = "WALLET_NOT_CONNECTED"

	// ErrCodeNoRouteFound indicates the bridge returned zero usable routes
	ErrCodeNoRouteFound ErrorCode = "NO_ROUTE_FOUND"

	// ErrCodeExecutionFailed indicates the native or bridged transfer threw
	ErrCodeExecutionFailed ErrorCode = "EXECUTION_FAILED"

	// ErrCodeConfirmationTimeout indicates bridge settlement was not observed in time
	ErrCodeConfirmationTimeout ErrorCode = "CONFIRMATION_TIMEOUT"

	// ErrCodeNetwork indicates network-related errors
	ErrCodeNetwork ErrorCode = "NETWORK"

	// ErrCodeRPC indicates RPC-related errors
	ErrCodeRPC ErrorCode = "RPC"

	// ErrCodeConfig indicates configuration errors
	ErrCodeConfig ErrorCode = "CONFIG"

	// ErrCodeInternal indicates internal system errors
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// Severity represents the severity level of an error
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityInfo     Severity = "INFO"
)

// Sentinels for errors.Is. They match any TipError carrying the same code.
var (
	ErrInvalidAmount       = &TipError{Code: ErrCodeInvalidAmount, Message: "tip amount must be greater than zero"}
	ErrValidation          = &TipError{Code: ErrCodeValidation, Message: "invalid tip request"}
	ErrWalletNotConnected  = &TipError{Code: ErrCodeWalletNotConnected, Message: "wallet not connected"}
	ErrNoRouteFound        = &TipError{Code: ErrCodeNoRouteFound, Message: "no route found"}
	ErrExecutionFailed     = &TipError{Code: ErrCodeExecutionFailed, Message: "transfer execution failed"}
	ErrConfirmationTimeout = &TipError{Code: ErrCodeConfirmationTimeout, Message: "bridge settlement not confirmed"}
)

// TipError represents an error raised while validating or executing a tip
type TipError struct {
	Code     ErrorCode              `json:"code"`
	Message  string                 `json:"message"`
	Chain    string                 `json:"chain,omitempty"`
	Severity Severity               `json:"severity"`
	Cause    error                  `json:"-"`
	Context  map[string]interface{} `json:"context,omitempty"`
}

// NewTipError creates a new TipError
func NewTipError(code ErrorCode, chain, message string, cause error) *TipError {
	return &TipError{
		Code:     code,
		Message:  message,
		Chain:    chain,
		Severity: determineSeverity(code),
		Cause:    cause,
		Context:  make(map[string]interface{}),
	}
}

// Error implements the error interface. The cause message is appended so
// callers can render the error directly to users.
func (e *TipError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.Chain != "" {
		return fmt.Sprintf("[%s:%s] %s", e.Chain, e.Code, msg)
	}
	return fmt.Sprintf("[%s] %s", e.Code, msg)
}

// Unwrap returns the underlying cause
func (e *TipError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a TipError with the same code.
func (e *TipError) Is(target error) bool {
	t, ok := target.(*TipError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithContext adds context to the error
func (e *TipError) WithContext(key string, value interface{}) *TipError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithSeverity overrides the default severity
func (e *TipError) WithSeverity(severity Severity) *TipError {
	e.Severity = severity
	return e
}

// IsRetryable returns true if the error is retryable
func (e *TipError) IsRetryable() bool {
	switch e.Code {
	case ErrCodeNetwork, ErrCodeRPC:
		return true
	default:
		return false
	}
}

func determineSeverity(code ErrorCode) Severity {
	switch code {
	case ErrCodeInternal:
		return SeverityCritical
	case ErrCodeExecutionFailed, ErrCodeConfirmationTimeout:
		return SeverityHigh
	case ErrCodeNoRouteFound, ErrCodeNetwork, ErrCodeRPC:
		return SeverityMedium
	case ErrCodeInvalidAmount, ErrCodeValidation, ErrCodeWalletNotConnected, ErrCodeConfig:
		return SeverityLow
	default:
		return SeverityInfo
	}
}

// Common error constructors

// NewInvalidAmountError creates an invalid amount error
func NewInvalidAmountError(message string) *TipError {
	return NewTipError(ErrCodeInvalidAmount, "", message, nil)
}

// NewValidationError creates a validation error
func NewValidationError(chain, message string) *TipError {
	return NewTipError(ErrCodeValidation, chain, message, nil)
}

// NewWalletNotConnectedError creates a wallet error
func NewWalletNotConnectedError(cause error) *TipError {
	return NewTipError(ErrCodeWalletNotConnected, "", "wallet not connected", cause)
}

// NewNoRouteFoundError creates a no-route error
func NewNoRouteFoundError(chain string) *TipError {
	return NewTipError(ErrCodeNoRouteFound, chain, "no route found", nil)
}

// NewExecutionError creates an execution failure error
func NewExecutionError(chain, message string, cause error) *TipError {
	return NewTipError(ErrCodeExecutionFailed, chain, message, cause)
}

// NewConfirmationTimeoutError creates a settlement timeout error
func NewConfirmationTimeoutError(chain, message string) *TipError {
	return NewTipError(ErrCodeConfirmationTimeout, chain, message, nil)
}

// NewNetworkError creates a network error
func NewNetworkError(chain, message string, cause error) *TipError {
	return NewTipError(ErrCodeNetwork, chain, message, cause)
}

// NewRPCError creates an RPC error
func NewRPCError(chain, message string, cause error) *TipError {
	return NewTipError(ErrCodeRPC, chain, message, cause)
}

// NewConfigError creates a configuration error
func NewConfigError(chain, message string) *TipError {
	return NewTipError(ErrCodeConfig, chain, message, nil)
}

// NewInternalError creates an internal error
func NewInternalError(chain, message string, cause error) *TipError {
	return NewTipError(ErrCodeInternal, chain, message, cause)
}
