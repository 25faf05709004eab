// Package investment plans and executes deposits into and withdrawals from token/native AMM pools on
// behalf of a custodial account, and values the resulting positions.
package investment

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/lpinvest/internal/domain"
)

// Registry resolves the pool pairing a token with the native asset.
type Registry interface {
	// Locate returns the zero address when the token has no pool.
	Locate(ctx context.Context, token common.Address) (common.Address, error)
}

// Chain reads balances and pool pricing.
type Chain interface {
	// BalanceOf returns the native balance of holder or its balance of a token. A pool is its own share
	// token, so BalanceOf(TokenAsset(pool), account) returns the shares account holds.
	BalanceOf(ctx context.Context, asset domain.Asset, holder common.Address) (*uint256.Int, error)
	TotalSupply(ctx context.Context, token common.Address) (*uint256.Int, error)
	// QuoteNativeForExactTokenOutput returns the native cost of buying exactly tokens from pool.
	QuoteNativeForExactTokenOutput(ctx context.Context, pool common.Address, tokens *uint256.Int) (*uint256.Int, error)
	// Timestamp returns the current chain time in seconds.
	Timestamp(ctx context.Context) (uint64, error)
}

// Invoker executes a command from the account, the only way funds leave it.
type Invoker interface {
	Invoke(ctx context.Context, account common.Address, cmd domain.Command) error
}

// Guard answers the authorization questions of the account framework.
type Guard interface {
	IsOwner(ctx context.Context, account, caller common.Address) (bool, error)
	IsLocked(ctx context.Context, account common.Address) (bool, error)
}

// Host runs fn as one request: requests for the same account are serialized, and either every
// instruction issued inside fn takes effect or none does.
type Host interface {
	Atomically(ctx context.Context, account common.Address, fn func(ctx context.Context) error) error
}

// EventSink receives events of completed requests.
type EventSink interface {
	Emit(ctx context.Context, event domain.Event) error
}

// Recorder collects request metrics.
type Recorder interface {
	ObserveRequest(op string, err error, took time.Duration)
	CommandIssued(kind domain.CommandKind)
}

type nopRecorder struct{}

func (nopRecorder) ObserveRequest(string, error, time.Duration) {}
func (nopRecorder) CommandIssued(domain.CommandKind)            {}

// Deps bundles the collaborators of a Manager. Metrics is optional.
type Deps struct {
	Registry Registry
	Chain    Chain
	Invoker  Invoker
	Guard    Guard
	Host     Host
	Events   EventSink
	Metrics  Recorder
}

// Manager is the investment manager entry point.
type Manager struct {
	registry Registry
	chain    Chain
	invoker  Invoker
	guard    Guard
	host     Host
	events   EventSink
	metrics  Recorder
	l        *zap.Logger
	now      func() time.Time
}

// NewManager returns a manager wired to deps.
func NewManager(l *zap.Logger, deps Deps) (*Manager, error) {
	if l == nil {
		l = zap.NewNop()
	}
	switch {
	case deps.Registry == nil:
		return nil, errors.New("registry is required")
	case deps.Chain == nil:
		return nil, errors.New("chain reader is required")
	case deps.Invoker == nil:
		return nil, errors.New("invoker is required")
	case deps.Guard == nil:
		return nil, errors.New("guard is required")
	case deps.Host == nil:
		return nil, errors.New("host is required")
	case deps.Events == nil:
		return nil, errors.New("event sink is required")
	}

	metrics := deps.Metrics
	if metrics == nil {
		metrics = nopRecorder{}
	}

	return &Manager{
		registry: deps.Registry,
		chain:    deps.Chain,
		invoker:  deps.Invoker,
		guard:    deps.Guard,
		host:     deps.Host,
		events:   deps.Events,
		metrics:  metrics,
		l:        l,
		now:      time.Now,
	}, nil
}

// deadline returns the validity bound attached to pool instructions: one second past chain time.
func (m *Manager) deadline(ctx context.Context) (uint64, error) {
	ts, err := m.chain.Timestamp(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to read chain time")
	}
	if ts == ^uint64(0) {
		return 0, errors.Wrap(domain.ErrArithmeticOverflow, "deadline")
	}
	return ts + 1, nil
}

// issue hands cmd to the account's invoke primitive.
func (m *Manager) issue(ctx context.Context, account common.Address, cmd domain.Command) error {
	if err := m.invoker.Invoke(ctx, account, cmd); err != nil {
		return errors.Wrapf(err, "%s via %s failed", cmd.Kind, cmd.Target.Hex())
	}
	m.metrics.CommandIssued(cmd.Kind)
	m.l.Debug("command issued",
		zap.String("account", account.Hex()),
		zap.Stringer("command", cmd))
	return nil
}

func (m *Manager) observe(op string, started time.Time, err error) {
	m.metrics.ObserveRequest(op, err, time.Since(started))
}
