package bridge

import "errors"

// Operation errors. Every operation either fully applies or fails with one of
// these; no partial state is committed on an error path.
var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrWrongSide           = errors.New("operation not supported on this side")
	ErrAlreadyProcessed    = errors.New("transfer already processed")
	ErrInsufficientCustody = errors.New("amount exceeds locked balance")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrPaused              = errors.New("bridge is paused")
	ErrLedgerTransfer      = errors.New("ledger transfer failed")
	ErrReentrantCall       = errors.New("reentrant call rejected")
)

// ErrorCode maps an operation error to the stable code used in API responses
// and metrics labels.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		return "INVALID_AMOUNT"
	case errors.Is(err, ErrWrongSide):
		return "WRONG_SIDE"
	case errors.Is(err, ErrAlreadyProcessed):
		return "ALREADY_PROCESSED"
	case errors.Is(err, ErrInsufficientCustody):
		return "INSUFFICIENT_CUSTODY"
	case errors.Is(err, ErrUnauthorized):
		return "UNAUTHORIZED"
	case errors.Is(err, ErrPaused):
		return "PAUSED"
	case errors.Is(err, ErrLedgerTransfer):
		return "LEDGER_TRANSFER_FAILED"
	case errors.Is(err, ErrReentrantCall):
		return "REENTRANT_CALL"
	default:
		return "INTERNAL"
	}
}
