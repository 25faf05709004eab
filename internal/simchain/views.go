package simchain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/vadiminshakov/lpinvest/internal/ammmath"
	"github.com/vadiminshakov/lpinvest/internal/domain"
)

// Locate returns the pool paired with token, the zero address when there is none.
func (c *Chain) Locate(ctx context.Context, token common.Address) (common.Address, error) {
	var pool common.Address
	err := c.read(ctx, func(s *State) error {
		pool = s.Pools[token]
		return nil
	})
	return pool, err
}

// BalanceOf returns the balance holder has of asset. Unknown tokens report zero.
func (c *Chain) BalanceOf(ctx context.Context, asset domain.Asset, holder common.Address) (*uint256.Int, error) {
	if !asset.IsValid() {
		return nil, errors.New("invalid asset")
	}

	var out *uint256.Int
	err := c.read(ctx, func(s *State) error {
		if asset.IsNative() {
			out = balance(s.Native, holder)
			return nil
		}
		addr, _ := asset.Address()
		if l, ok := s.Tokens[addr]; ok {
			out = balance(l.Balances, holder)
			return nil
		}
		out = new(uint256.Int)
		return nil
	})
	return out, err
}

// TotalSupply returns the supply of token.
func (c *Chain) TotalSupply(ctx context.Context, token common.Address) (*uint256.Int, error) {
	var out *uint256.Int
	err := c.read(ctx, func(s *State) error {
		if l, ok := s.Tokens[token]; ok {
			out = l.Supply.Clone()
			return nil
		}
		out = new(uint256.Int)
		return nil
	})
	return out, err
}

// QuoteNativeForExactTokenOutput prices buying exactly tokens from pool.
func (c *Chain) QuoteNativeForExactTokenOutput(ctx context.Context, pool common.Address, tokens *uint256.Int) (*uint256.Int, error) {
	var out *uint256.Int
	err := c.read(ctx, func(s *State) error {
		token, ok := s.Paired[pool]
		if !ok {
			return errors.Wrapf(ErrReverted, "%s is not a pool", pool.Hex())
		}
		cost, err := ammmath.OutputPrice(tokens, balance(s.Native, pool), balance(s.Tokens[token].Balances, pool))
		if err != nil {
			return err
		}
		out = cost
		return nil
	})
	return out, err
}

// Timestamp returns the simulated chain time.
func (c *Chain) Timestamp(ctx context.Context) (uint64, error) {
	var ts uint64
	err := c.read(ctx, func(s *State) error {
		ts = s.Time
		return nil
	})
	return ts, err
}

// IsOwner reports whether caller owns account. Accounts without a registered owner are owned by nobody.
func (c *Chain) IsOwner(ctx context.Context, account, caller common.Address) (bool, error) {
	var owner bool
	err := c.read(ctx, func(s *State) error {
		o, ok := s.Owners[account]
		owner = ok && o == caller
		return nil
	})
	return owner, err
}

// IsLocked reports whether account is locked.
func (c *Chain) IsLocked(ctx context.Context, account common.Address) (bool, error) {
	var locked bool
	err := c.read(ctx, func(s *State) error {
		locked = s.Locked[account]
		return nil
	})
	return locked, err
}
