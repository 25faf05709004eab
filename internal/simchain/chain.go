// Package simchain is an in-memory chain hosting token/native pools, token balances and custodial
// accounts. It implements every collaborator the investment manager consumes and executes the
// commands it issues, which makes it usable for dry runs and tests.
package simchain

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/lpinvest/internal/ammmath"
)

// ErrReverted is returned when an instruction fails on the simulated chain.
var ErrReverted = errors.New("execution reverted")

// defaultGenesisTime is the chain time of a fresh simulator, seconds.
const defaultGenesisTime = 1_700_000_000

// Ledger is a token: balances, allowances and supply.
type Ledger struct {
	Balances   map[common.Address]*uint256.Int                    `json:"balances"`
	Allowances map[common.Address]map[common.Address]*uint256.Int `json:"allowances"`
	Supply     *uint256.Int                                       `json:"supply"`
}

func newLedger() *Ledger {
	return &Ledger{
		Balances:   make(map[common.Address]*uint256.Int),
		Allowances: make(map[common.Address]map[common.Address]*uint256.Int),
		Supply:     new(uint256.Int),
	}
}

// State is the whole simulated world.
type State struct {
	Time   uint64                            `json:"time"`
	Native map[common.Address]*uint256.Int   `json:"native"`
	Tokens map[common.Address]*Ledger        `json:"tokens"`
	Pools  map[common.Address]common.Address `json:"pools"`  // token -> pool
	Paired map[common.Address]common.Address `json:"paired"` // pool -> token
	Owners map[common.Address]common.Address `json:"owners"`
	Locked map[common.Address]bool           `json:"locked"`
}

func newState() *State {
	return &State{
		Time:   defaultGenesisTime,
		Native: make(map[common.Address]*uint256.Int),
		Tokens: make(map[common.Address]*Ledger),
		Pools:  make(map[common.Address]common.Address),
		Paired: make(map[common.Address]common.Address),
		Owners: make(map[common.Address]common.Address),
		Locked: make(map[common.Address]bool),
	}
}

func cloneMap(m map[common.Address]*uint256.Int) map[common.Address]*uint256.Int {
	out := make(map[common.Address]*uint256.Int, len(m))
	for k, v := range m {
		out[k] = v.Clone()
	}
	return out
}

func (s *State) clone() *State {
	c := newState()
	c.Time = s.Time
	c.Native = cloneMap(s.Native)
	for addr, l := range s.Tokens {
		cl := &Ledger{
			Balances:   cloneMap(l.Balances),
			Allowances: make(map[common.Address]map[common.Address]*uint256.Int, len(l.Allowances)),
			Supply:     l.Supply.Clone(),
		}
		for owner, spenders := range l.Allowances {
			cl.Allowances[owner] = cloneMap(spenders)
		}
		c.Tokens[addr] = cl
	}
	for k, v := range s.Pools {
		c.Pools[k] = v
	}
	for k, v := range s.Paired {
		c.Paired[k] = v
	}
	for k, v := range s.Owners {
		c.Owners[k] = v
	}
	for k, v := range s.Locked {
		c.Locked[k] = v
	}
	return c
}

type txKey struct{}

// Chain is the simulated chain. It is safe for concurrent use; Atomically requests run one at a time.
type Chain struct {
	mu    sync.RWMutex
	state *State
	store *Store
	l     *zap.Logger
}

// Option configures a Chain.
type Option func(*Chain)

// WithStore persists the state after every committed change and restores it on construction.
func WithStore(store *Store) Option {
	return func(c *Chain) {
		c.store = store
	}
}

// New creates a simulated chain.
func New(l *zap.Logger, opts ...Option) (*Chain, error) {
	if l == nil {
		l = zap.NewNop()
	}
	c := &Chain{state: newState(), l: l}
	for _, opt := range opts {
		opt(c)
	}

	if c.store != nil {
		restored, err := c.store.Load()
		if err != nil {
			return nil, errors.Wrap(err, "restore simulated chain")
		}
		if restored != nil {
			restored.fillMaps()
			c.state = restored
			c.l.Info("simulated chain restored",
				zap.Int("tokens", len(restored.Tokens)),
				zap.Int("pools", len(restored.Pools)),
				zap.Uint64("time", restored.Time))
		}
	}
	return c, nil
}

func (s *State) fillMaps() {
	fresh := newState()
	if s.Native == nil {
		s.Native = fresh.Native
	}
	if s.Tokens == nil {
		s.Tokens = fresh.Tokens
	}
	if s.Pools == nil {
		s.Pools = fresh.Pools
	}
	if s.Paired == nil {
		s.Paired = fresh.Paired
	}
	if s.Owners == nil {
		s.Owners = fresh.Owners
	}
	if s.Locked == nil {
		s.Locked = fresh.Locked
	}
	for _, l := range s.Tokens {
		if l.Balances == nil {
			l.Balances = make(map[common.Address]*uint256.Int)
		}
		if l.Allowances == nil {
			l.Allowances = make(map[common.Address]map[common.Address]*uint256.Int)
		}
		if l.Supply == nil {
			l.Supply = new(uint256.Int)
		}
	}
}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(bool)
	return v
}

// read runs fn under the read lock unless ctx belongs to a running request, which already holds the
// write lock.
func (c *Chain) read(ctx context.Context, fn func(s *State) error) error {
	if !inTx(ctx) {
		c.mu.RLock()
		defer c.mu.RUnlock()
	}
	return fn(c.state)
}

// write runs fn against a copy of the state and commits it when fn succeeds.
func (c *Chain) write(ctx context.Context, fn func(s *State) error) error {
	if inTx(ctx) {
		// the enclosing request rolls back on failure
		return fn(c.state)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commit(fn)
}

func (c *Chain) commit(fn func(s *State) error) error {
	snapshot := c.state.clone()
	if err := fn(c.state); err != nil {
		c.state = snapshot
		return err
	}
	c.persist()
	return nil
}

func (c *Chain) persist() {
	if c.store == nil {
		return
	}
	if err := c.store.Save(c.state); err != nil {
		c.l.Warn("failed to persist simulated chain", zap.Error(err))
	}
}

// Atomically runs fn as one request. Every change made through the chain while fn runs is discarded
// when fn returns an error. Requests never interleave.
func (c *Chain) Atomically(ctx context.Context, account common.Address, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.commit(func(*State) error {
		return fn(context.WithValue(ctx, txKey{}, true))
	})
	if err != nil {
		c.l.Debug("request rolled back", zap.String("account", account.Hex()), zap.Error(err))
	}
	return err
}

// Snapshot returns a deep copy of the current state.
func (c *Chain) Snapshot() *State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.clone()
}

func balance(m map[common.Address]*uint256.Int, addr common.Address) *uint256.Int {
	if v, ok := m[addr]; ok {
		return v.Clone()
	}
	return new(uint256.Int)
}

func credit(m map[common.Address]*uint256.Int, addr common.Address, amount *uint256.Int) error {
	next, err := ammmath.Add(balance(m, addr), amount)
	if err != nil {
		return err
	}
	m[addr] = next
	return nil
}

func debit(m map[common.Address]*uint256.Int, addr common.Address, amount *uint256.Int) error {
	have := balance(m, addr)
	if have.Lt(amount) {
		return errors.Wrapf(ErrReverted, "balance of %s is %s, need %s", addr.Hex(), have.Dec(), amount.Dec())
	}
	m[addr] = have.Sub(have, amount)
	return nil
}

func transfer(m map[common.Address]*uint256.Int, from, to common.Address, amount *uint256.Int) error {
	if err := debit(m, from, amount); err != nil {
		return err
	}
	return credit(m, to, amount)
}
