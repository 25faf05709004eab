package investment

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/lpinvest/internal/ammmath"
	"github.com/vadiminshakov/lpinvest/internal/calldata"
	"github.com/vadiminshakov/lpinvest/internal/domain"
)

const opRemoveInvestment = "remove_investment"

// minimum native and token amounts accepted back from remove-liquidity.
var (
	minNativeOut = uint256.NewInt(1)
	minTokenOut  = uint256.NewInt(1)
)

// RemoveInvestment redeems req.Fraction basis points of the shares req.Account holds in the pool of
// req.Token. A zero fraction is accepted and redeems nothing.
func (m *Manager) RemoveInvestment(ctx context.Context, caller common.Address, req domain.WithdrawalRequest) (err error) {
	started := time.Now()
	defer func() { m.observe(opRemoveInvestment, started, err) }()

	err = m.host.Atomically(ctx, req.Account, func(ctx context.Context) error {
		return m.withdraw(ctx, caller, req)
	})
	if err != nil {
		m.l.Warn("remove investment failed",
			zap.String("account", req.Account.Hex()),
			zap.String("token", req.Token.Hex()),
			zap.Uint16("fraction", req.Fraction),
			zap.Error(err))
		return err
	}

	m.l.Info("investment removed",
		zap.String("account", req.Account.Hex()),
		zap.String("token", req.Token.Hex()),
		zap.Uint16("fraction", req.Fraction))

	return nil
}

func (m *Manager) withdraw(ctx context.Context, caller common.Address, req domain.WithdrawalRequest) error {
	if err := m.authorize(ctx, req.Account, caller); err != nil {
		return err
	}
	if req.Fraction > domain.MaxFraction {
		return errors.Wrapf(domain.ErrInvalidFraction, "got %d", req.Fraction)
	}

	pool, err := m.locatePool(ctx, req.Token)
	if err != nil {
		return err
	}

	shares, err := m.chain.BalanceOf(ctx, domain.TokenAsset(pool), req.Account)
	if err != nil {
		return errors.Wrap(err, "failed to read pool shares")
	}

	toRemove, err := ammmath.SharesToRemove(shares, req.Fraction)
	if err != nil {
		return err
	}

	deadline, err := m.deadline(ctx)
	if err != nil {
		return err
	}

	if err := m.issue(ctx, req.Account, domain.Command{
		Kind:   domain.CommandRemoveLiquidity,
		Target: pool,
		Value:  new(uint256.Int),
		Data:   calldata.RemoveLiquidity(toRemove, minNativeOut, minTokenOut, deadline),
	}); err != nil {
		return err
	}

	event := domain.NewInvestmentRemovedEvent(m.now(), domain.InvestmentRemoved{
		Account:  req.Account,
		Token:    req.Token,
		Fraction: req.Fraction,
	})
	if err := m.events.Emit(ctx, event); err != nil {
		return errors.Wrap(err, "failed to emit investment removed event")
	}

	return nil
}
