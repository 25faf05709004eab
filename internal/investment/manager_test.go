package investment

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/lpinvest/internal/calldata"
	"github.com/vadiminshakov/lpinvest/internal/domain"
	chainMock "github.com/vadiminshakov/lpinvest/mocks/chain"
	eventsMock "github.com/vadiminshakov/lpinvest/mocks/eventsink"
	guardMock "github.com/vadiminshakov/lpinvest/mocks/guard"
	invokerMock "github.com/vadiminshakov/lpinvest/mocks/invoker"
	registryMock "github.com/vadiminshakov/lpinvest/mocks/registry"
)

var (
	owner   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	account = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	token   = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	pool    = common.HexToAddress("0x00000000000000000000000000000000000000c1")
)

const chainTime = uint64(1_000)

// directHost runs requests in place.
type directHost struct{}

func (directHost) Atomically(ctx context.Context, _ common.Address, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fixture struct {
	registry *registryMock.Registry
	chain    *chainMock.Chain
	invoker  *invokerMock.Invoker
	guard    *guardMock.Guard
	events   *eventsMock.EventSink
	manager  *Manager
	issued   []domain.Command
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		registry: registryMock.NewRegistry(t),
		chain:    chainMock.NewChain(t),
		invoker:  invokerMock.NewInvoker(t),
		guard:    guardMock.NewGuard(t),
		events:   eventsMock.NewEventSink(t),
	}

	m, err := NewManager(zap.NewNop(), Deps{
		Registry: f.registry,
		Chain:    f.chain,
		Invoker:  f.invoker,
		Guard:    f.guard,
		Host:     directHost{},
		Events:   f.events,
	})
	require.NoError(t, err)
	f.manager = m

	return f
}

func (f *fixture) authorized() {
	f.guard.On("IsOwner", mock.Anything, account, owner).Return(true, nil)
	f.guard.On("IsLocked", mock.Anything, account).Return(false, nil)
}

func (f *fixture) poolExists() {
	f.registry.On("Locate", mock.Anything, token).Return(pool, nil)
}

func (f *fixture) balance(asset domain.Asset, holder common.Address, v uint64) {
	f.chain.On("BalanceOf", mock.Anything, asset, holder).Return(uint256.NewInt(v), nil)
}

func (f *fixture) recordInvocations() {
	f.invoker.On("Invoke", mock.Anything, account, mock.Anything).
		Run(func(args mock.Arguments) {
			f.issued = append(f.issued, args.Get(2).(domain.Command))
		}).
		Return(nil)
}

func (f *fixture) expectEvent(kind domain.EventKind) {
	f.events.On("Emit", mock.Anything, mock.MatchedBy(func(e domain.Event) bool {
		return e.Kind == kind
	})).Return(nil).Once()
}

func decodeCall(t *testing.T, cmd domain.Command) calldata.Call {
	t.Helper()
	call, err := calldata.Decode(cmd.Data)
	require.NoError(t, err)
	return call
}

func uintArg(t *testing.T, call calldata.Call, i int) uint64 {
	t.Helper()
	v, err := call.Uint(i)
	require.NoError(t, err)
	return v.Uint64()
}

func TestNewManager_RequiresDeps(t *testing.T) {
	_, err := NewManager(nil, Deps{})
	require.Error(t, err)

	_, err = NewManager(nil, Deps{
		Registry: registryMock.NewRegistry(t),
		Chain:    chainMock.NewChain(t),
		Invoker:  invokerMock.NewInvoker(t),
		Guard:    guardMock.NewGuard(t),
		Host:     directHost{},
	})
	require.Error(t, err)
}

func TestAddInvestment_Authorization(t *testing.T) {
	tests := []struct {
		name    string
		owner   bool
		locked  bool
		wantErr error
	}{
		{name: "caller is not the owner", owner: false, wantErr: domain.ErrNotOwner},
		{name: "account is locked", owner: true, locked: true, wantErr: domain.ErrAccountLocked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.guard.On("IsOwner", mock.Anything, account, owner).Return(tt.owner, nil)
			if tt.owner {
				f.guard.On("IsLocked", mock.Anything, account).Return(tt.locked, nil)
			}

			_, err := f.manager.AddInvestment(context.Background(), owner, domain.InvestmentRequest{
				Account: account,
				Token:   token,
				Amount:  uint256.NewInt(100),
			})
			require.ErrorIs(t, err, tt.wantErr)

			// no pool lookup, balance read or command happened
			f.registry.AssertNotCalled(t, "Locate", mock.Anything, mock.Anything)
			f.chain.AssertNotCalled(t, "BalanceOf", mock.Anything, mock.Anything, mock.Anything)
			f.invoker.AssertNotCalled(t, "Invoke", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestRemoveInvestment_Authorization(t *testing.T) {
	f := newFixture(t)
	f.guard.On("IsOwner", mock.Anything, account, owner).Return(true, nil)
	f.guard.On("IsLocked", mock.Anything, account).Return(true, nil)

	err := f.manager.RemoveInvestment(context.Background(), owner, domain.WithdrawalRequest{
		Account:  account,
		Token:    token,
		Fraction: 20000,
	})
	// the lock is reported even though the fraction is invalid too
	require.ErrorIs(t, err, domain.ErrAccountLocked)
	f.registry.AssertNotCalled(t, "Locate", mock.Anything, mock.Anything)
}

func TestAddInvestment_ZeroAmount(t *testing.T) {
	f := newFixture(t)
	f.authorized()

	_, err := f.manager.AddInvestment(context.Background(), owner, domain.InvestmentRequest{
		Account: account,
		Token:   token,
		Amount:  new(uint256.Int),
	})
	require.ErrorIs(t, err, domain.ErrZeroAmount)

	// a missing amount is the same as zero
	_, err = f.manager.AddInvestment(context.Background(), owner, domain.InvestmentRequest{
		Account: account,
		Token:   token,
	})
	require.ErrorIs(t, err, domain.ErrZeroAmount)
}

func TestAddInvestment_PoolNotFound(t *testing.T) {
	f := newFixture(t)
	f.authorized()
	f.registry.On("Locate", mock.Anything, token).Return(common.Address{}, nil)

	_, err := f.manager.AddInvestment(context.Background(), owner, domain.InvestmentRequest{
		Account: account,
		Token:   token,
		Amount:  uint256.NewInt(100),
	})
	require.ErrorIs(t, err, domain.ErrPoolNotFound)
	f.invoker.AssertNotCalled(t, "Invoke", mock.Anything, mock.Anything, mock.Anything)
}

func TestAddInvestment_NativeSentinelHasNoPool(t *testing.T) {
	f := newFixture(t)
	f.authorized()

	_, err := f.manager.AddInvestment(context.Background(), owner, domain.InvestmentRequest{
		Account: account,
		Token:   domain.NativeSentinel,
		Amount:  uint256.NewInt(100),
	})
	require.ErrorIs(t, err, domain.ErrPoolNotFound)
}

func TestAddInvestment_NoSwapWhenBalanceCovers(t *testing.T) {
	f := newFixture(t)
	f.authorized()
	f.poolExists()
	f.chain.On("Timestamp", mock.Anything).Return(chainTime, nil)
	f.balance(domain.TokenAsset(token), account, 101)
	f.balance(domain.TokenAsset(token), pool, 1000)
	f.balance(domain.NativeAsset(), pool, 500)
	f.balance(domain.NativeAsset(), account, 1000)
	f.recordInvocations()
	f.expectEvent(domain.EventInvestmentAdded)

	invested, err := f.manager.AddInvestment(context.Background(), owner, domain.InvestmentRequest{
		Account: account,
		Token:   token,
		Amount:  uint256.NewInt(101),
		Period:  3600,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(202), invested.Uint64())

	require.Len(t, f.issued, 2)
	f.chain.AssertNotCalled(t, "QuoteNativeForExactTokenOutput", mock.Anything, mock.Anything, mock.Anything)

	approve := f.issued[0]
	assert.Equal(t, domain.CommandApprove, approve.Kind)
	assert.Equal(t, token, approve.Target)
	assert.True(t, approve.NativeValue().IsZero())
	call := decodeCall(t, approve)
	assert.Equal(t, calldata.MethodApprove, call.Method)
	spender, err := call.Address(0)
	require.NoError(t, err)
	assert.Equal(t, pool, spender)
	assert.Equal(t, uint64(101), uintArg(t, call, 1))

	add := f.issued[1]
	assert.Equal(t, domain.CommandAddLiquidity, add.Kind)
	assert.Equal(t, pool, add.Target)
	// floor((101-1) * 500 / 1000)
	assert.Equal(t, uint64(50), add.NativeValue().Uint64())
	call = decodeCall(t, add)
	assert.Equal(t, calldata.MethodAddLiquidity, call.Method)
	assert.Equal(t, uint64(1), uintArg(t, call, 0))
	assert.Equal(t, uint64(101), uintArg(t, call, 1))
	assert.Equal(t, chainTime+1, uintArg(t, call, 2))
}

func TestAddInvestment_SwapsExactShortfall(t *testing.T) {
	f := newFixture(t)
	f.authorized()
	f.poolExists()
	f.chain.On("Timestamp", mock.Anything).Return(chainTime, nil)
	f.balance(domain.TokenAsset(token), account, 40)
	f.balance(domain.TokenAsset(token), pool, 1000)
	f.balance(domain.NativeAsset(), pool, 500)
	f.balance(domain.NativeAsset(), account, 1000)
	f.chain.On("QuoteNativeForExactTokenOutput", mock.Anything, pool, uint256.NewInt(61)).Return(uint256.NewInt(33), nil)
	f.recordInvocations()
	f.expectEvent(domain.EventInvestmentAdded)

	_, err := f.manager.AddInvestment(context.Background(), owner, domain.InvestmentRequest{
		Account: account,
		Token:   token,
		Amount:  uint256.NewInt(101),
	})
	require.NoError(t, err)

	require.Len(t, f.issued, 3)
	assert.Equal(t, []domain.CommandKind{domain.CommandSwap, domain.CommandApprove, domain.CommandAddLiquidity},
		[]domain.CommandKind{f.issued[0].Kind, f.issued[1].Kind, f.issued[2].Kind})

	swap := f.issued[0]
	assert.Equal(t, pool, swap.Target)
	assert.Equal(t, uint64(33), swap.NativeValue().Uint64())
	call := decodeCall(t, swap)
	assert.Equal(t, calldata.MethodEthToTokenSwapOutput, call.Method)
	assert.Equal(t, uint64(61), uintArg(t, call, 0))
	assert.Equal(t, chainTime+1, uintArg(t, call, 1))
}

func TestAddInvestment_InsufficientNativeForSwap(t *testing.T) {
	f := newFixture(t)
	f.authorized()
	f.poolExists()
	f.chain.On("Timestamp", mock.Anything).Return(chainTime, nil)
	f.balance(domain.TokenAsset(token), account, 0)
	f.balance(domain.TokenAsset(token), pool, 1000)
	f.balance(domain.NativeAsset(), account, 10)
	f.chain.On("QuoteNativeForExactTokenOutput", mock.Anything, pool, uint256.NewInt(101)).Return(uint256.NewInt(60), nil)

	_, err := f.manager.AddInvestment(context.Background(), owner, domain.InvestmentRequest{
		Account: account,
		Token:   token,
		Amount:  uint256.NewInt(101),
	})
	require.ErrorIs(t, err, domain.ErrInsufficientNativeBalance)
	f.invoker.AssertNotCalled(t, "Invoke", mock.Anything, mock.Anything, mock.Anything)
	f.events.AssertNotCalled(t, "Emit", mock.Anything, mock.Anything)
}

func TestAddInvestment_InsufficientNativeForDeposit(t *testing.T) {
	f := newFixture(t)
	f.authorized()
	f.poolExists()
	f.chain.On("Timestamp", mock.Anything).Return(chainTime, nil)
	f.balance(domain.TokenAsset(token), account, 101)
	f.balance(domain.TokenAsset(token), pool, 1000)
	f.balance(domain.NativeAsset(), pool, 500)
	f.balance(domain.NativeAsset(), account, 49)

	_, err := f.manager.AddInvestment(context.Background(), owner, domain.InvestmentRequest{
		Account: account,
		Token:   token,
		Amount:  uint256.NewInt(101),
	})
	require.ErrorIs(t, err, domain.ErrInsufficientNativeBalance)
	f.invoker.AssertNotCalled(t, "Invoke", mock.Anything, mock.Anything, mock.Anything)
}

func TestAddInvestment_EmptyPool(t *testing.T) {
	f := newFixture(t)
	f.authorized()
	f.poolExists()
	f.chain.On("Timestamp", mock.Anything).Return(chainTime, nil)
	f.balance(domain.TokenAsset(token), account, 101)
	f.balance(domain.TokenAsset(token), pool, 0)
	f.balance(domain.NativeAsset(), pool, 0)

	_, err := f.manager.AddInvestment(context.Background(), owner, domain.InvestmentRequest{
		Account: account,
		Token:   token,
		Amount:  uint256.NewInt(101),
	})
	require.ErrorIs(t, err, domain.ErrPoolEmpty)
	f.invoker.AssertNotCalled(t, "Invoke", mock.Anything, mock.Anything, mock.Anything)
}

func TestAddInvestment_EmptyPoolWithShortfall(t *testing.T) {
	f := newFixture(t)
	f.authorized()
	f.poolExists()
	f.chain.On("Timestamp", mock.Anything).Return(chainTime, nil)
	f.balance(domain.TokenAsset(token), account, 40)
	f.balance(domain.TokenAsset(token), pool, 0)

	_, err := f.manager.AddInvestment(context.Background(), owner, domain.InvestmentRequest{
		Account: account,
		Token:   token,
		Amount:  uint256.NewInt(101),
	})
	require.ErrorIs(t, err, domain.ErrPoolEmpty)
	f.chain.AssertNotCalled(t, "QuoteNativeForExactTokenOutput", mock.Anything, mock.Anything, mock.Anything)
	f.invoker.AssertNotCalled(t, "Invoke", mock.Anything, mock.Anything, mock.Anything)
}

func TestAddInvestment_InvokeFailureStopsPlan(t *testing.T) {
	f := newFixture(t)
	f.authorized()
	f.poolExists()
	f.chain.On("Timestamp", mock.Anything).Return(chainTime, nil)
	f.balance(domain.TokenAsset(token), account, 101)
	f.balance(domain.TokenAsset(token), pool, 1000)
	f.balance(domain.NativeAsset(), pool, 500)
	f.balance(domain.NativeAsset(), account, 1000)
	reverted := errors.New("reverted")
	f.invoker.On("Invoke", mock.Anything, account, mock.MatchedBy(func(c domain.Command) bool {
		return c.Kind == domain.CommandApprove
	})).Return(reverted).Once()

	_, err := f.manager.AddInvestment(context.Background(), owner, domain.InvestmentRequest{
		Account: account,
		Token:   token,
		Amount:  uint256.NewInt(101),
	})
	require.ErrorIs(t, err, reverted)
	f.events.AssertNotCalled(t, "Emit", mock.Anything, mock.Anything)
}

func TestRemoveInvestment_InvalidFraction(t *testing.T) {
	f := newFixture(t)
	f.authorized()

	err := f.manager.RemoveInvestment(context.Background(), owner, domain.WithdrawalRequest{
		Account:  account,
		Token:    token,
		Fraction: domain.MaxFraction + 1,
	})
	require.ErrorIs(t, err, domain.ErrInvalidFraction)
	f.registry.AssertNotCalled(t, "Locate", mock.Anything, mock.Anything)
	f.invoker.AssertNotCalled(t, "Invoke", mock.Anything, mock.Anything, mock.Anything)
}

func TestRemoveInvestment_PoolNotFound(t *testing.T) {
	f := newFixture(t)
	f.authorized()
	f.registry.On("Locate", mock.Anything, token).Return(common.Address{}, nil)

	err := f.manager.RemoveInvestment(context.Background(), owner, domain.WithdrawalRequest{
		Account:  account,
		Token:    token,
		Fraction: 5000,
	})
	require.ErrorIs(t, err, domain.ErrPoolNotFound)
	f.invoker.AssertNotCalled(t, "Invoke", mock.Anything, mock.Anything, mock.Anything)
}

func TestRemoveInvestment_RedeemsFractionOfShares(t *testing.T) {
	tests := []struct {
		name     string
		shares   uint64
		fraction uint16
		want     uint64
	}{
		{name: "quarter", shares: 250, fraction: 2500, want: 62},
		{name: "everything", shares: 250, fraction: domain.MaxFraction, want: 250},
		{name: "nothing", shares: 250, fraction: 0, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.authorized()
			f.poolExists()
			f.chain.On("Timestamp", mock.Anything).Return(chainTime, nil)
			f.balance(domain.TokenAsset(pool), account, tt.shares)
			f.recordInvocations()
			f.expectEvent(domain.EventInvestmentRemoved)

			err := f.manager.RemoveInvestment(context.Background(), owner, domain.WithdrawalRequest{
				Account:  account,
				Token:    token,
				Fraction: tt.fraction,
			})
			require.NoError(t, err)

			require.Len(t, f.issued, 1)
			cmd := f.issued[0]
			assert.Equal(t, domain.CommandRemoveLiquidity, cmd.Kind)
			assert.Equal(t, pool, cmd.Target)
			assert.True(t, cmd.NativeValue().IsZero())

			call := decodeCall(t, cmd)
			assert.Equal(t, calldata.MethodRemoveLiquidity, call.Method)
			assert.Equal(t, tt.want, uintArg(t, call, 0))
			assert.Equal(t, uint64(1), uintArg(t, call, 1))
			assert.Equal(t, uint64(1), uintArg(t, call, 2))
			assert.Equal(t, chainTime+1, uintArg(t, call, 3))
		})
	}
}

func TestGetInvestment(t *testing.T) {
	f := newFixture(t)
	f.poolExists()
	f.balance(domain.TokenAsset(token), pool, 1000)
	f.balance(domain.NativeAsset(), pool, 500)
	f.balance(domain.TokenAsset(pool), account, 10)
	f.chain.On("TotalSupply", mock.Anything, pool).Return(uint256.NewInt(100), nil)

	for i := 0; i < 2; i++ {
		value, periodEnd, err := f.manager.GetInvestment(context.Background(), account, token)
		require.NoError(t, err)
		assert.Equal(t, uint64(200), value.Uint64())
		assert.Zero(t, periodEnd)
	}

	// valuation needs no authorization and issues nothing
	f.guard.AssertNotCalled(t, "IsOwner", mock.Anything, mock.Anything, mock.Anything)
	f.invoker.AssertNotCalled(t, "Invoke", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetInvestment_Errors(t *testing.T) {
	t.Run("pool not found", func(t *testing.T) {
		f := newFixture(t)
		f.registry.On("Locate", mock.Anything, token).Return(common.Address{}, nil)

		_, _, err := f.manager.GetInvestment(context.Background(), account, token)
		require.ErrorIs(t, err, domain.ErrPoolNotFound)
	})

	t.Run("empty pool", func(t *testing.T) {
		f := newFixture(t)
		f.poolExists()
		f.balance(domain.TokenAsset(token), pool, 0)
		f.balance(domain.NativeAsset(), pool, 0)
		f.balance(domain.TokenAsset(pool), account, 0)
		f.chain.On("TotalSupply", mock.Anything, pool).Return(new(uint256.Int), nil)

		_, _, err := f.manager.GetInvestment(context.Background(), account, token)
		require.ErrorIs(t, err, domain.ErrPoolEmpty)
	})
}

func TestPortfolio_SkipsTokensWithoutPosition(t *testing.T) {
	other := common.HexToAddress("0x00000000000000000000000000000000000000b2")
	orphan := common.HexToAddress("0x00000000000000000000000000000000000000b3")

	f := newFixture(t)
	f.poolExists()
	f.registry.On("Locate", mock.Anything, other).Return(common.Address{}, nil)
	f.registry.On("Locate", mock.Anything, orphan).Return(common.Address{}, nil)
	f.balance(domain.TokenAsset(token), pool, 1000)
	f.balance(domain.NativeAsset(), pool, 500)
	f.balance(domain.TokenAsset(pool), account, 10)
	f.chain.On("TotalSupply", mock.Anything, pool).Return(uint256.NewInt(100), nil)

	portfolio, err := f.manager.Portfolio(context.Background(), account, []common.Address{other, token, orphan})
	require.NoError(t, err)
	require.Len(t, portfolio, 1)
	assert.Equal(t, token, portfolio[0].Token)
	assert.Equal(t, pool, portfolio[0].Pool)
	assert.Equal(t, uint64(200), portfolio[0].TokenValue.Uint64())
}

func TestPortfolio_PropagatesReadErrors(t *testing.T) {
	f := newFixture(t)
	f.registry.On("Locate", mock.Anything, token).Return(common.Address{}, errors.New("rpc down"))

	_, err := f.manager.Portfolio(context.Background(), account, []common.Address{token})
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrPoolNotFound)
}
