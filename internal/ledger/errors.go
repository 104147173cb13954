package ledger

import "errors"

var (
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInsufficientFunds = errors.New("insufficient funds in wallet")
	ErrWalletNotFound    = errors.New("wallet not found")
)
