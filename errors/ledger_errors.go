package errors

import (
	stderrors "errors"
	"fmt"

	"cashledger/jsonx"
)

// LedgerErrorCode represents standardized error codes for ledger operations
type LedgerErrorCode string

const (
	// General errors
	ErrCodeInternal LedgerErrorCode = "internal_error"

	// Validation errors
	ErrCodeInvalidRequest         = "invalid_request"
	ErrCodeInvalidAddress         = "invalid_address"
	ErrCodeInvalidAmount          = "invalid_amount"
	ErrCodeUnauthorized           = "unauthorized"
	ErrCodeSelfTransferNotAllowed = "self_transfer_not_allowed"
	ErrCodeSelfFriendNotAllowed   = "self_friend_not_allowed"
	ErrCodeDuplicateFriend        = "duplicate_friend"
	ErrCodeFriendLimitReached     = "friend_limit_reached"

	// Business logic errors
	ErrCodeNotFound                  = "not_found"
	ErrCodeAlreadyExists             = "already_exists"
	ErrCodeInsufficientBalance       = "insufficient_balance"
	ErrCodeInsufficientExternalFunds = "insufficient_external_funds"
	ErrCodeNotPending                = "not_pending"

	// System errors
	ErrCodeDerivationExhausted = "derivation_exhausted"
	ErrCodeConflict            = "conflict"
)

// LedgerError represents a standardized ledger error
type LedgerError struct {
	Code    LedgerErrorCode `json:"code"`
	Message string          `json:"message"`
}

// Error implements the error interface
func (e *LedgerError) Error() string {
	out, _ := jsonx.Marshal(LedgerError{
		Code:    e.Code,
		Message: e.Message,
	})
	return string(out)
}

func New(code LedgerErrorCode, message string) *LedgerError {
	return &LedgerError{Code: code, Message: message}
}

func Newf(code LedgerErrorCode, format string, args ...interface{}) *LedgerError {
	return &LedgerError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the ledger error code from err, unwrapping as needed.
// Errors that did not originate from this package classify as internal.
func CodeOf(err error) LedgerErrorCode {
	var lerr *LedgerError
	if stderrors.As(err, &lerr) {
		return lerr.Code
	}
	return ErrCodeInternal
}

// IsCode reports whether err carries the given ledger error code.
func IsCode(err error, code LedgerErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// Retryable reports whether the failure is a contention-class failure the
// caller may resubmit, as opposed to a validation failure that will fail
// again unchanged.
func Retryable(err error) bool {
	code := CodeOf(err)
	return code == ErrCodeConflict || code == ErrCodeAlreadyExists
}
