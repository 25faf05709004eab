package domain

import (
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// ParseAmount converts a human-readable amount such as "1.5" into base units of a token with the
// given decimals. Amounts with more fractional digits than decimals are rejected.
func ParseAmount(s string, decimals int32) (*uint256.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid amount %q", s)
	}
	if d.IsNegative() {
		return nil, errors.Errorf("amount %q is negative", s)
	}

	units := d.Shift(decimals)
	if !units.Equal(units.Truncate(0)) {
		return nil, errors.Errorf("amount %q has more than %d decimals", s, decimals)
	}

	v, overflow := uint256.FromBig(units.BigInt())
	if overflow {
		return nil, errors.Wrapf(ErrArithmeticOverflow, "amount %q", s)
	}
	return v, nil
}

// FormatAmount renders base units of a token with the given decimals.
func FormatAmount(v *uint256.Int, decimals int32) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v.ToBig(), -decimals).String()
}
