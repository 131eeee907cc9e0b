package domain

import "errors"

var (
	ErrRateLimited         = errors.New("rate limited")
	ErrAccountNotFound     = errors.New("account not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidInput        = errors.New("invalid input")
	ErrLedgerUpdateFailed  = errors.New("ledger update failed")
	ErrLookupFailure       = errors.New("lookup failure")
)
