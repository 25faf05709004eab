package domain

import "github.com/pkg/errors"

// Request failures. All of them abort the current request before any state change becomes observable.
var (
	ErrNotOwner                  = errors.New("caller is not the account owner")
	ErrAccountLocked             = errors.New("account is locked")
	ErrPoolNotFound              = errors.New("no pool for token")
	ErrPoolEmpty                 = errors.New("pool is empty")
	ErrInsufficientLiquidity     = errors.New("pool cannot supply the requested amount")
	ErrInvalidFraction           = errors.New("fraction must be within [0, 10000]")
	ErrInsufficientNativeBalance = errors.New("insufficient native balance")
	ErrArithmeticOverflow        = errors.New("arithmetic overflow")
	ErrZeroAmount                = errors.New("amount must be greater than zero")
)
