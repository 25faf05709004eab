package simchain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/lpinvest/internal/ammmath"
)

// Chain setup operations. They are not reachable through commands.

// CreateAccount registers a custodial account owned by owner.
func (c *Chain) CreateAccount(ctx context.Context, account, owner common.Address) error {
	return c.write(ctx, func(s *State) error {
		s.Owners[account] = owner
		return nil
	})
}

// SetLocked locks or unlocks account.
func (c *Chain) SetLocked(ctx context.Context, account common.Address, locked bool) error {
	return c.write(ctx, func(s *State) error {
		if locked {
			s.Locked[account] = true
			return nil
		}
		delete(s.Locked, account)
		return nil
	})
}

// Fund credits holder with amount of native asset.
func (c *Chain) Fund(ctx context.Context, holder common.Address, amount *uint256.Int) error {
	return c.write(ctx, func(s *State) error {
		return credit(s.Native, holder, amount)
	})
}

// Mint credits holder with amount of token, deploying the token when needed.
func (c *Chain) Mint(ctx context.Context, token, holder common.Address, amount *uint256.Int) error {
	return c.write(ctx, func(s *State) error {
		return mint(s, token, holder, amount)
	})
}

// CreatePool pairs token with the native asset in a new pool at address pool.
func (c *Chain) CreatePool(ctx context.Context, token, pool common.Address) error {
	err := c.write(ctx, func(s *State) error {
		if existing, ok := s.Pools[token]; ok {
			return errors.Errorf("token %s already has pool %s", token.Hex(), existing.Hex())
		}
		if _, ok := s.Paired[pool]; ok {
			return errors.Errorf("address %s already hosts a pool", pool.Hex())
		}
		if _, ok := s.Tokens[token]; !ok {
			s.Tokens[token] = newLedger()
		}
		if _, ok := s.Tokens[pool]; !ok {
			s.Tokens[pool] = newLedger()
		}
		s.Pools[token] = pool
		s.Paired[pool] = token
		return nil
	})
	if err == nil {
		c.l.Info("pool created", zap.String("token", token.Hex()), zap.String("pool", pool.Hex()))
	}
	return err
}

// Seed deposits reserves into pool on behalf of provider, minting shares 1:1 with the native amount
// when the pool is empty and proportionally otherwise. The reserves are minted, not debited.
func (c *Chain) Seed(ctx context.Context, pool, provider common.Address, native, tokens *uint256.Int) error {
	return c.write(ctx, func(s *State) error {
		token, ok := s.Paired[pool]
		if !ok {
			return errors.Wrapf(ErrReverted, "%s is not a pool", pool.Hex())
		}
		shares := native.Clone()
		if supply := s.Tokens[pool].Supply; !supply.IsZero() {
			minted, err := ammmath.MulDiv(native, supply, balance(s.Native, pool))
			if err != nil {
				return err
			}
			shares = minted
		}
		if err := credit(s.Native, pool, native); err != nil {
			return err
		}
		if err := mint(s, token, pool, tokens); err != nil {
			return err
		}
		return mint(s, pool, provider, shares)
	})
}

// AdvanceTime moves the chain clock forward by seconds.
func (c *Chain) AdvanceTime(ctx context.Context, seconds uint64) error {
	return c.write(ctx, func(s *State) error {
		if s.Time+seconds < s.Time {
			return errors.New("chain time overflow")
		}
		s.Time += seconds
		return nil
	})
}

func mint(s *State, token, holder common.Address, amount *uint256.Int) error {
	l, ok := s.Tokens[token]
	if !ok {
		l = newLedger()
		s.Tokens[token] = l
	}
	supply, err := ammmath.Add(l.Supply, amount)
	if err != nil {
		return err
	}
	if err := credit(l.Balances, holder, amount); err != nil {
		return err
	}
	l.Supply = supply
	return nil
}

func burn(s *State, token, holder common.Address, amount *uint256.Int) error {
	l, ok := s.Tokens[token]
	if !ok {
		return errors.Wrapf(ErrReverted, "unknown token %s", token.Hex())
	}
	if err := debit(l.Balances, holder, amount); err != nil {
		return err
	}
	l.Supply = new(uint256.Int).Sub(l.Supply, amount)
	return nil
}
