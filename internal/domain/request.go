package domain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// MaxFraction is the withdrawal fraction that redeems every share, in basis points.
const MaxFraction = 10000

// InvestmentRequest asks to deposit Amount of Token held by Account into the token's pool.
type InvestmentRequest struct {
	Account common.Address
	Token   common.Address
	Amount  *uint256.Int
	// Period is echoed in the emitted event. No time lock is applied.
	Period uint64
}

// WithdrawalRequest asks to redeem Fraction/10000 of the shares Account holds in the token's pool.
type WithdrawalRequest struct {
	Account  common.Address
	Token    common.Address
	Fraction uint16
}

// Investment is the read model of an account position in a pool.
type Investment struct {
	Account       common.Address `json:"account"`
	Token         common.Address `json:"token"`
	Pool          common.Address `json:"pool"`
	Shares        *uint256.Int   `json:"shares"`
	TotalSupply   *uint256.Int   `json:"total_supply"`
	TokenReserve  *uint256.Int   `json:"token_reserve"`
	NativeReserve *uint256.Int   `json:"native_reserve"`
	// TokenValue approximates the position value in token units, assuming a 50/50 balanced pool.
	TokenValue *uint256.Int `json:"token_value"`
	// PeriodEnd is always zero, positions are never time locked.
	PeriodEnd uint64 `json:"period_end"`
}
