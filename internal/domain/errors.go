package domain

import "errors"

// Sentinel errors for the money-movement core. Validation errors are returned
// before any row lock is taken; mutation-phase errors abort the whole
// transaction. Anything not in this taxonomy is a storage failure and is
// wrapped rather than swallowed.
var (
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrSameAccount       = errors.New("sender and recipient are the same account")
	ErrAccountNotFound   = errors.New("account not found")
	ErrAccountInactive   = errors.New("account is not active")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrEmailTaken        = errors.New("email already registered")
	ErrTransferNotFound  = errors.New("transfer not found")
)
