package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrTransactionNotFound         = errors.New("transaction not found")
	ErrTransactionAlreadyFinalized = errors.New("transaction already finalized")
	ErrAlreadyPurchased            = errors.New("session already purchased")
	ErrNotPurchased                = errors.New("session has no purchased transaction")
	ErrInvalidData                 = errors.New("invalid data")
	ErrInvalidAmount               = errors.New("invalid amount")
	ErrInvalidConfiguration        = errors.New("invalid gateway configuration")
	ErrUnexpectedResponse          = errors.New("unexpected gateway response")
	ErrCommunication               = errors.New("gateway communication failure")
	ErrAmountMismatch              = errors.New("settled amount does not match authorized amount")
	ErrOperationFailed             = errors.New("storage operation failed")
	ErrInvalidArgument             = errors.New("invalid argument")
	ErrInvalidExecContext          = errors.New("invalid execution context")
	ErrLockNotAcquired             = errors.New("could not acquire confirm lock")
)

// ErrorKind is the normalized failure taxonomy every gateway maps its native
// result codes into.
type ErrorKind string

const (
	KindSuccess              ErrorKind = "success"
	KindInvalidRequest       ErrorKind = "invalid_request"
	KindAuthenticationFailed ErrorKind = "authentication_failed"
	KindDuplicateOrder       ErrorKind = "duplicate_order"
	KindInsufficientFunds    ErrorKind = "insufficient_funds"
	KindTokenExpired         ErrorKind = "token_expired"
	KindAmountMismatch       ErrorKind = "amount_mismatch"
	KindUnknown              ErrorKind = "unknown_gateway_error"
)

// GatewayError is a bank-reported failure carrying the normalized kind plus
// the raw native code and description for diagnostics. The raw fields are
// never dropped, whatever the kind.
type GatewayError struct {
	Gateway     string
	Code        int64
	Kind        ErrorKind
	Description string
}

func (e *GatewayError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("%s gateway error %d (%s): %s", e.Gateway, e.Code, e.Kind, e.Description)
	}
	return fmt.Sprintf("%s gateway error %d (%s)", e.Gateway, e.Code, e.Kind)
}

// Is lets errors.Is(err, ErrAmountMismatch) match a bank-reported mismatch.
func (e *GatewayError) Is(target error) bool {
	return target == ErrAmountMismatch && e.Kind == KindAmountMismatch
}

// NormalizeCode resolves a native result code against a per-gateway table.
// Codes absent from the table fall through to KindUnknown; code and
// description are preserved on the returned error either way. A code mapped
// to KindSuccess yields nil.
func NormalizeCode(gateway string, table map[int64]ErrorKind, code int64, description string) error {
	kind, ok := table[code]
	if !ok {
		kind = KindUnknown
	}
	if kind == KindSuccess {
		return nil
	}
	return &GatewayError{Gateway: gateway, Code: code, Kind: kind, Description: description}
}
