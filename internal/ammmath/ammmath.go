// Package ammmath holds the pool arithmetic used to plan deposits, withdrawals and valuations.
// Every operation works on 256-bit unsigned integers and fails instead of wrapping around.
package ammmath

import (
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/vadiminshakov/lpinvest/internal/domain"
)

const (
	// fraction denominator, basis points.
	bpsDenominator = domain.MaxFraction
	// pool value is modelled as the token leg plus an equal native leg.
	valueMultiplier = 2
)

var (
	bps  = uint256.NewInt(bpsDenominator)
	two  = uint256.NewInt(valueMultiplier)
	one  = uint256.NewInt(1)
	zero = new(uint256.Int)
	fee  = uint256.NewInt(997)
	feeD = uint256.NewInt(1000)
)

// Add returns x + y.
func Add(x, y *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).AddOverflow(x, y)
	if overflow {
		return nil, errors.Wrapf(domain.ErrArithmeticOverflow, "%s + %s", x.Dec(), y.Dec())
	}
	return z, nil
}

// Mul returns x * y.
func Mul(x, y *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).MulOverflow(x, y)
	if overflow {
		return nil, errors.Wrapf(domain.ErrArithmeticOverflow, "%s * %s", x.Dec(), y.Dec())
	}
	return z, nil
}

// MulDiv returns floor(x * y / d). The product must fit in 256 bits; d must be nonzero.
func MulDiv(x, y, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, errors.New("division by zero")
	}
	p, err := Mul(x, y)
	if err != nil {
		return nil, err
	}
	return p.Div(p, d), nil
}

// Shortfall returns how much is missing from balance to cover amount, zero when covered.
func Shortfall(balance, amount *uint256.Int) *uint256.Int {
	if !balance.Lt(amount) {
		return new(uint256.Int)
	}
	return new(uint256.Int).Sub(amount, balance)
}

// DepositNative returns the native amount to add alongside amount tokens at the pool's current ratio:
// floor((amount - 1) * nativeReserve / tokenReserve).
// The one unit bias under-quotes so that rounding never trips the pool's ratio check.
func DepositNative(amount, nativeReserve, tokenReserve *uint256.Int) (*uint256.Int, error) {
	if amount.IsZero() {
		return nil, domain.ErrZeroAmount
	}
	if tokenReserve.IsZero() {
		return nil, errors.Wrap(domain.ErrPoolEmpty, "token reserve is zero")
	}
	biased := new(uint256.Int).Sub(amount, one)
	return MulDiv(biased, nativeReserve, tokenReserve)
}

// SharesToRemove returns floor(shares * fraction / 10000).
func SharesToRemove(shares *uint256.Int, fraction uint16) (*uint256.Int, error) {
	if fraction > bpsDenominator {
		return nil, errors.Wrapf(domain.ErrInvalidFraction, "got %d", fraction)
	}
	return MulDiv(shares, uint256.NewInt(uint64(fraction)), bps)
}

// TokenValue returns shares * tokenReserve * 2 / totalSupply, the token-equivalent value of a
// position when the pool is balanced 50/50 in value between its legs.
func TokenValue(shares, tokenReserve, totalSupply *uint256.Int) (*uint256.Int, error) {
	if totalSupply.IsZero() {
		return nil, errors.Wrap(domain.ErrPoolEmpty, "total supply is zero")
	}
	if tokenReserve.IsZero() {
		return nil, errors.Wrap(domain.ErrPoolEmpty, "token reserve is zero")
	}
	v, err := Mul(shares, tokenReserve)
	if err != nil {
		return nil, err
	}
	if v, err = Mul(v, two); err != nil {
		return nil, err
	}
	return v.Div(v, totalSupply), nil
}

// InvestedValue returns amount * 2, the pool value growth credited for a deposit of amount tokens.
func InvestedValue(amount *uint256.Int) (*uint256.Int, error) {
	return Mul(amount, two)
}

// OutputPrice returns the input needed to buy exactly out from the reserves with a 0.3% fee:
// inReserve*out*1000 / ((outReserve-out)*997) + 1.
func OutputPrice(out, inReserve, outReserve *uint256.Int) (*uint256.Int, error) {
	if inReserve.IsZero() || outReserve.IsZero() {
		return nil, errors.Wrap(domain.ErrPoolEmpty, "reserves must be positive")
	}
	if !out.Lt(outReserve) {
		return nil, errors.Wrapf(domain.ErrInsufficientLiquidity, "output %s exceeds reserve %s", out.Dec(), outReserve.Dec())
	}
	num, err := Mul(inReserve, out)
	if err != nil {
		return nil, err
	}
	if num, err = Mul(num, feeD); err != nil {
		return nil, err
	}
	den, err := Mul(new(uint256.Int).Sub(outReserve, out), fee)
	if err != nil {
		return nil, err
	}
	num.Div(num, den)
	return Add(num, one)
}

// IsZero reports whether x is nil or zero.
func IsZero(x *uint256.Int) bool {
	return x == nil || x.Eq(zero)
}
