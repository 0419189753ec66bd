// Package errors defines the error taxonomy for the launchpad wallet core.
//
// All errors are represented as LaunchpadError, which provides:
//   - Code: Machine-readable error identifier
//   - Message: Human-readable error description
//   - Layer: Which component layer produced the error (wallet, provider, trustline, ledger, contract, core)
//   - Cause: Underlying error, if any
//   - Context: Additional error details (asset code, account address, etc.)
//
// Use the constructor functions (NewWalletError, NewProviderError, etc.) to create
// properly typed errors with automatic layer assignment, and the Err* sentinels
// to test for a code with the standard library's errors.Is.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Code is a machine-readable error identifier.
type Code string

// Error codes - Wallet and provider layers
const (
	PROVIDER_UNAVAILABLE Code = "PROVIDER_UNAVAILABLE"
	PERMISSION_DENIED    Code = "PERMISSION_DENIED"
	PROVIDER_ERROR       Code = "PROVIDER_ERROR"
	NOT_CONNECTED        Code = "NOT_CONNECTED"
	SIGNING_FAILED       Code = "SIGNING_FAILED"
	ALREADY_CONNECTING   Code = "ALREADY_CONNECTING"
	TRANSITION_INVALID   Code = "TRANSITION_INVALID"
	STORE_ERROR          Code = "STORE_ERROR"
)

// Error codes - Trustline layer
const (
	NON_ZERO_BALANCE    Code = "NON_ZERO_BALANCE"
	INVALID_ASSET       Code = "INVALID_ASSET"
	TRUSTLINE_NOT_FOUND Code = "TRUSTLINE_NOT_FOUND"
)

// Error codes - Ledger, contract and core layers
const (
	REMOTE_UNAVAILABLE Code = "REMOTE_UNAVAILABLE"
	SIMULATION_FAILED  Code = "SIMULATION_FAILED"
	INVALID_PARAMS     Code = "INVALID_PARAMS"
	CONFIG_INVALID     Code = "CONFIG_INVALID"
	NETWORK_ERROR      Code = "NETWORK_ERROR"
)

// Sentinels for errors.Is checks. Matching is by code only.
var (
	ErrProviderUnavailable = &LaunchpadError{Code: PROVIDER_UNAVAILABLE}
	ErrPermissionDenied    = &LaunchpadError{Code: PERMISSION_DENIED}
	ErrProviderError       = &LaunchpadError{Code: PROVIDER_ERROR}
	ErrNotConnected        = &LaunchpadError{Code: NOT_CONNECTED}
	ErrSigningFailed       = &LaunchpadError{Code: SIGNING_FAILED}
	ErrAlreadyConnecting   = &LaunchpadError{Code: ALREADY_CONNECTING}
	ErrNonZeroBalance      = &LaunchpadError{Code: NON_ZERO_BALANCE}
	ErrInvalidAsset        = &LaunchpadError{Code: INVALID_ASSET}
	ErrTrustlineNotFound   = &LaunchpadError{Code: TRUSTLINE_NOT_FOUND}
	ErrRemoteUnavailable   = &LaunchpadError{Code: REMOTE_UNAVAILABLE}
	ErrSimulationFailed    = &LaunchpadError{Code: SIMULATION_FAILED}
	ErrInvalidParams       = &LaunchpadError{Code: INVALID_PARAMS}
	ErrConfigInvalid       = &LaunchpadError{Code: CONFIG_INVALID}
	ErrNetworkError        = &LaunchpadError{Code: NETWORK_ERROR}
)

// LaunchpadError is the base error type for all errors produced by this module.
type LaunchpadError struct {
	Code    Code
	Message string
	Layer   string // "wallet", "provider", "trustline", "ledger", "contract", "core"
	Cause   error
	Context map[string]any
}

// Error returns a formatted error string.
func (e *LaunchpadError) Error() string {
	msg := fmt.Sprintf("[%s] %s: %s", e.Layer, e.Code, e.Message)
	if e.Cause != nil {
		msg += fmt.Sprintf(" (caused by: %v)", e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause error, enabling error chain inspection.
func (e *LaunchpadError) Unwrap() error {
	return e.Cause
}

// Is checks if the target error is a LaunchpadError with the same code.
func (e *LaunchpadError) Is(target error) bool {
	if target == nil {
		return false
	}
	other, ok := target.(*LaunchpadError)
	if !ok {
		return false
	}
	return e.Code == other.Code
}

// With attaches a context value and returns the same error for chaining.
func (e *LaunchpadError) With(key string, value any) *LaunchpadError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

func newError(layer string, code Code, message string, cause error) *LaunchpadError {
	return &LaunchpadError{
		Code:    code,
		Message: message,
		Layer:   layer,
		Cause:   cause,
		Context: make(map[string]any),
	}
}

// NewWalletError creates a wallet layer error.
func NewWalletError(code Code, message string, cause error) *LaunchpadError {
	return newError("wallet", code, message, cause)
}

// NewProviderError creates a signing provider layer error.
func NewProviderError(code Code, message string, cause error) *LaunchpadError {
	return newError("provider", code, message, cause)
}

// NewTrustlineError creates a trustline layer error.
func NewTrustlineError(code Code, message string, cause error) *LaunchpadError {
	return newError("trustline", code, message, cause)
}

// NewLedgerError creates a ledger layer error.
func NewLedgerError(code Code, message string, cause error) *LaunchpadError {
	return newError("ledger", code, message, cause)
}

// NewContractError creates a contract layer error.
func NewContractError(code Code, message string, cause error) *LaunchpadError {
	return newError("contract", code, message, cause)
}

// NewCoreError creates a core layer error.
func NewCoreError(code Code, message string, cause error) *LaunchpadError {
	return newError("core", code, message, cause)
}

// As finds the first LaunchpadError in err's chain and assigns it.
func As(err error, target **LaunchpadError) bool {
	if err == nil {
		return false
	}
	return stderrors.As(err, target)
}

// CodeOf returns the code of err if it is a LaunchpadError, or "" otherwise.
func CodeOf(err error) Code {
	var lerr *LaunchpadError
	if As(err, &lerr) {
		return lerr.Code
	}
	return ""
}
