package investment

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/vadiminshakov/lpinvest/internal/ammmath"
	"github.com/vadiminshakov/lpinvest/internal/domain"
)

const opGetInvestment = "get_investment"

// GetInvestment returns the token-equivalent value of the shares account holds in the pool of token.
// periodEnd is always zero. No authorization is required.
func (m *Manager) GetInvestment(ctx context.Context, account, token common.Address) (tokenValue *uint256.Int, periodEnd uint64, err error) {
	inv, err := m.Describe(ctx, account, token)
	if err != nil {
		return nil, 0, err
	}
	return inv.TokenValue, inv.PeriodEnd, nil
}

// Describe returns the full position of account in the pool of token, including the reserves the
// valuation was computed from.
func (m *Manager) Describe(ctx context.Context, account, token common.Address) (inv *domain.Investment, err error) {
	started := time.Now()
	defer func() { m.observe(opGetInvestment, started, err) }()

	pool, err := m.locatePool(ctx, token)
	if err != nil {
		return nil, err
	}

	tokenReserve, err := m.chain.BalanceOf(ctx, domain.TokenAsset(token), pool)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read pool token reserve")
	}
	nativeReserve, err := m.chain.BalanceOf(ctx, domain.NativeAsset(), pool)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read pool native reserve")
	}
	shares, err := m.chain.BalanceOf(ctx, domain.TokenAsset(pool), account)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read pool shares")
	}
	totalSupply, err := m.chain.TotalSupply(ctx, pool)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read pool total supply")
	}

	value, err := ammmath.TokenValue(shares, tokenReserve, totalSupply)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to value shares in %s", pool.Hex())
	}

	return &domain.Investment{
		Account:       account,
		Token:         token,
		Pool:          pool,
		Shares:        shares,
		TotalSupply:   totalSupply,
		TokenReserve:  tokenReserve,
		NativeReserve: nativeReserve,
		TokenValue:    value,
		PeriodEnd:     0,
	}, nil
}
