package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInsufficientFunds  = errors.New("insufficient balance")
	ErrInsufficientPaired = errors.New("insufficient paired balance")
	ErrUserRejected       = errors.New("rejected by wallet")
	ErrConfigMissing      = errors.New("required configuration missing")
	ErrNoRoute            = errors.New("no swap route available")
	ErrTxReverted         = errors.New("transaction reverted")
)
