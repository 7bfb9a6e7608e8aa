package models

import "errors"

// Ledger error taxonomy. These are recoverable business conditions: the
// transaction service converts them into a FAILED record and returns them
// to the caller.
var (
	// ErrInvalidAmount is returned when a mutating operation receives a
	// non-positive amount.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInsufficientFunds is returned when a non-credit account would be
	// debited beyond its balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidAccount is returned for a nil, self-referential or otherwise
	// unusable account reference.
	ErrInvalidAccount = errors.New("invalid account")
)
