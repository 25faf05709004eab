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

const opAddInvestment = "add_investment"

// minShares is the minimum pool share amount accepted from add-liquidity.
var minShares = uint256.NewInt(1)

// AddInvestment deposits req.Amount of req.Token from req.Account into the token's pool, buying the
// missing tokens with native asset first when the account holds fewer than req.Amount.
// It returns the pool value growth credited to the account, modelled as twice the token amount.
func (m *Manager) AddInvestment(ctx context.Context, caller common.Address, req domain.InvestmentRequest) (invested *uint256.Int, err error) {
	started := time.Now()
	defer func() { m.observe(opAddInvestment, started, err) }()

	err = m.host.Atomically(ctx, req.Account, func(ctx context.Context) error {
		var planErr error
		invested, planErr = m.deposit(ctx, caller, req)
		return planErr
	})
	if err != nil {
		amount := "0"
		if req.Amount != nil {
			amount = req.Amount.Dec()
		}
		m.l.Warn("add investment failed",
			zap.String("account", req.Account.Hex()),
			zap.String("token", req.Token.Hex()),
			zap.String("amount", amount),
			zap.Error(err))
		return nil, err
	}

	m.l.Info("investment added",
		zap.String("account", req.Account.Hex()),
		zap.String("token", req.Token.Hex()),
		zap.String("amount", req.Amount.Dec()),
		zap.Uint64("period", req.Period),
		zap.String("invested", invested.Dec()))

	return invested, nil
}

// deposit runs inside the request's atomic section, so the owner and lock answers hold until it commits.
func (m *Manager) deposit(ctx context.Context, caller common.Address, req domain.InvestmentRequest) (*uint256.Int, error) {
	if err := m.authorize(ctx, req.Account, caller); err != nil {
		return nil, err
	}
	if ammmath.IsZero(req.Amount) {
		return nil, domain.ErrZeroAmount
	}

	pool, err := m.locatePool(ctx, req.Token)
	if err != nil {
		return nil, err
	}

	deadline, err := m.deadline(ctx)
	if err != nil {
		return nil, err
	}

	if err := m.coverShortfall(ctx, req, pool, deadline); err != nil {
		return nil, err
	}

	// reserves may have moved with the swap above, read them right before pricing the deposit
	tokenReserve, err := m.chain.BalanceOf(ctx, domain.TokenAsset(req.Token), pool)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read pool token reserve")
	}
	nativeReserve, err := m.chain.BalanceOf(ctx, domain.NativeAsset(), pool)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read pool native reserve")
	}

	nativeToPool, err := ammmath.DepositNative(req.Amount, nativeReserve, tokenReserve)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to price deposit of %s into %s", req.Amount.Dec(), pool.Hex())
	}

	nativeBalance, err := m.chain.BalanceOf(ctx, domain.NativeAsset(), req.Account)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read account native balance")
	}
	if nativeToPool.Gt(nativeBalance) {
		return nil, errors.Wrapf(domain.ErrInsufficientNativeBalance,
			"deposit needs %s, account holds %s", nativeToPool.Dec(), nativeBalance.Dec())
	}

	if err := m.issue(ctx, req.Account, domain.Command{
		Kind:   domain.CommandApprove,
		Target: req.Token,
		Value:  new(uint256.Int),
		Data:   calldata.Approve(pool, req.Amount),
	}); err != nil {
		return nil, err
	}

	if err := m.issue(ctx, req.Account, domain.Command{
		Kind:   domain.CommandAddLiquidity,
		Target: pool,
		Value:  nativeToPool,
		Data:   calldata.AddLiquidity(minShares, req.Amount, deadline),
	}); err != nil {
		return nil, err
	}

	invested, err := ammmath.InvestedValue(req.Amount)
	if err != nil {
		return nil, err
	}

	event := domain.NewInvestmentAddedEvent(m.now(), domain.InvestmentAdded{
		Account: req.Account,
		Token:   req.Token,
		Amount:  req.Amount.Clone(),
		Period:  req.Period,
	})
	if err := m.events.Emit(ctx, event); err != nil {
		return nil, errors.Wrap(err, "failed to emit investment added event")
	}

	return invested, nil
}

// coverShortfall buys the tokens the account lacks for the deposit at the pool's current price.
func (m *Manager) coverShortfall(ctx context.Context, req domain.InvestmentRequest, pool common.Address, deadline uint64) error {
	tokenBalance, err := m.chain.BalanceOf(ctx, domain.TokenAsset(req.Token), req.Account)
	if err != nil {
		return errors.Wrap(err, "failed to read account token balance")
	}

	shortfall := ammmath.Shortfall(tokenBalance, req.Amount)
	if shortfall.IsZero() {
		return nil
	}

	// an empty pool has no price to quote
	tokenReserve, err := m.chain.BalanceOf(ctx, domain.TokenAsset(req.Token), pool)
	if err != nil {
		return errors.Wrap(err, "failed to read pool token reserve")
	}
	if tokenReserve.IsZero() {
		return errors.Wrapf(domain.ErrPoolEmpty, "pool %s holds no tokens", pool.Hex())
	}

	cost, err := m.chain.QuoteNativeForExactTokenOutput(ctx, pool, shortfall)
	if err != nil {
		return errors.Wrapf(err, "failed to quote %s tokens from %s", shortfall.Dec(), pool.Hex())
	}

	nativeBalance, err := m.chain.BalanceOf(ctx, domain.NativeAsset(), req.Account)
	if err != nil {
		return errors.Wrap(err, "failed to read account native balance")
	}
	if nativeBalance.Lt(cost) {
		return errors.Wrapf(domain.ErrInsufficientNativeBalance,
			"swap for %s tokens costs %s, account holds %s", shortfall.Dec(), cost.Dec(), nativeBalance.Dec())
	}

	m.l.Debug("buying token shortfall",
		zap.String("account", req.Account.Hex()),
		zap.String("shortfall", shortfall.Dec()),
		zap.String("cost", cost.Dec()))

	return m.issue(ctx, req.Account, domain.Command{
		Kind:   domain.CommandSwap,
		Target: pool,
		Value:  cost,
		Data:   calldata.EthToTokenSwapOutput(shortfall, deadline),
	})
}
