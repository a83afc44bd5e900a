package domain

import "errors"

var (
	// Validation errors
	ErrValidation          = errors.New("invalid movement")
	ErrInvalidMovementType = errors.New("unknown movement type")
	ErrInvalidChannel      = errors.New("unknown settlement channel")
	ErrInvalidAmount       = errors.New("amount must be a valid decimal")

	// Recorder errors
	ErrInsufficientBalance = errors.New("expense exceeds available balance")
	ErrDuplicateMovement   = errors.New("movement with this reference already posted")
	ErrConcurrencyConflict = errors.New("balance changed concurrently, retry the operation")

	// Lookup errors
	ErrBalanceNotFound  = errors.New("balance not found")
	ErrMovementNotFound = errors.New("movement not found")
	ErrAnchorNotFound   = errors.New("no active initial balance anchor")

	// Integrity errors
	ErrChainBroken = errors.New("ledger chain integrity violated")

	// Transfer errors
	ErrTransferNotFound       = errors.New("transfer not found")
	ErrTransferNotCancellable = errors.New("transfer cannot be cancelled in its current status")
)
