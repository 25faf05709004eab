// Package app assembles the investment manager and its collaborators from a config.
package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/lpinvest/config"
	"github.com/vadiminshakov/lpinvest/internal/clients"
	"github.com/vadiminshakov/lpinvest/internal/events"
	"github.com/vadiminshakov/lpinvest/internal/investment"
	"github.com/vadiminshakov/lpinvest/internal/metrics"
	"github.com/vadiminshakov/lpinvest/internal/simchain"
	"github.com/vadiminshakov/lpinvest/internal/storage/journal"
)

const broadcastBuffer = 64

// genesisProvider owns the shares minted when a simulated pool is seeded.
var genesisProvider = common.HexToAddress("0x000000000000000000000000000000000000dEaD")

// backend is everything the manager needs from a chain.
type backend interface {
	investment.Registry
	investment.Chain
	investment.Invoker
	investment.Guard
	investment.Host
}

// App holds the wired components of one process.
type App struct {
	Config    config.Config
	Caller    common.Address
	Manager   *investment.Manager
	Journal   *journal.WALStore
	Publisher *events.Publisher
	Metrics   *metrics.Collector

	l *zap.Logger
}

// New wires a manager for cfg: the chain backend selected by cfg.Network, the event journal, the
// broadcaster and the metrics collector.
func New(ctx context.Context, l *zap.Logger, cfg config.Config) (*App, error) {
	if l == nil {
		l = zap.NewNop()
	}

	chain, caller, err := newBackend(ctx, l, cfg)
	if err != nil {
		return nil, err
	}

	wal, err := journal.NewWALStore(filepath.Join(cfg.WALDir, "events"))
	if err != nil {
		return nil, err
	}

	publisher := events.NewPublisher(l, wal, events.NewBroadcaster(broadcastBuffer))
	collector := metrics.NewCollector()

	manager, err := investment.NewManager(l, investment.Deps{
		Registry: chain,
		Chain:    chain,
		Invoker:  chain,
		Guard:    chain,
		Host:     chain,
		Events:   publisher,
		Metrics:  collector,
	})
	if err != nil {
		_ = wal.Close()
		return nil, err
	}

	return &App{
		Config:    cfg,
		Caller:    caller,
		Manager:   manager,
		Journal:   wal,
		Publisher: publisher,
		Metrics:   collector,
		l:         l,
	}, nil
}

// Close releases the journal.
func (a *App) Close() error {
	return a.Journal.Close()
}

// newBackend is the single point dispatching to network-specific implementations. It also returns
// the address requests are made as.
func newBackend(ctx context.Context, l *zap.Logger, cfg config.Config) (backend, common.Address, error) {
	switch cfg.Network {
	case config.NetworkSimulate:
		return newSimulatedBackend(ctx, l, cfg)
	case config.NetworkEVM:
		return newEVMBackend(ctx, l, cfg)
	default:
		return nil, common.Address{}, errors.Errorf("unsupported network %q", cfg.Network)
	}
}

func newEVMBackend(ctx context.Context, l *zap.Logger, cfg config.Config) (backend, common.Address, error) {
	key := strings.TrimSpace(os.Getenv(cfg.PrivateKeyEnv))
	if key == "" {
		return nil, common.Address{}, errors.Errorf("%s environment variable must be set", cfg.PrivateKeyEnv)
	}

	client, err := clients.NewEVMClient(ctx, l, clients.EVMConfig{
		RPCURL:         cfg.RPCURL,
		ChainID:        cfg.ChainID,
		Registry:       cfg.Registry,
		LockManager:    cfg.LockManager,
		PrivateKeyHex:  key,
		ReceiptTimeout: cfg.ReceiptTimeout,
	})
	if err != nil {
		return nil, common.Address{}, err
	}

	caller := cfg.Caller
	if caller == (common.Address{}) {
		caller = client.Sender()
	}
	return client, caller, nil
}

func newSimulatedBackend(ctx context.Context, l *zap.Logger, cfg config.Config) (backend, common.Address, error) {
	statePath := cfg.Simulate.StateFile
	if statePath == "" {
		statePath = filepath.Join(cfg.WALDir, "simulate", "chain.json")
	}
	store, err := simchain.NewStore(statePath)
	if err != nil {
		return nil, common.Address{}, err
	}

	chain, err := simchain.New(l, simchain.WithStore(store))
	if err != nil {
		return nil, common.Address{}, err
	}

	caller := cfg.Caller
	if caller == (common.Address{}) {
		caller = cfg.Account
	}

	if _, known := chain.Snapshot().Owners[cfg.Account]; known {
		return chain, caller, nil
	}
	if err := seed(ctx, chain, cfg, caller); err != nil {
		return nil, common.Address{}, errors.Wrap(err, "seed simulated chain")
	}
	l.Info("simulated chain seeded",
		zap.String("account", cfg.Account.Hex()),
		zap.Int("pools", len(cfg.Simulate.Pools)),
		zap.String("state", store.Path()))

	return chain, caller, nil
}

// seed creates the account and the configured pools in one step.
func seed(ctx context.Context, chain *simchain.Chain, cfg config.Config, owner common.Address) error {
	return chain.Atomically(ctx, cfg.Account, func(ctx context.Context) error {
		if err := chain.CreateAccount(ctx, cfg.Account, owner); err != nil {
			return err
		}
		if err := chain.Fund(ctx, cfg.Account, cfg.Simulate.AccountNative); err != nil {
			return err
		}
		for _, p := range cfg.Simulate.Pools {
			if err := chain.CreatePool(ctx, p.Token.Address, p.Pool); err != nil {
				return err
			}
			if !p.NativeReserve.IsZero() || !p.TokenReserve.IsZero() {
				if err := chain.Seed(ctx, p.Pool, genesisProvider, p.NativeReserve, p.TokenReserve); err != nil {
					return err
				}
			}
			if err := chain.Mint(ctx, p.Token.Address, cfg.Account, p.AccountTokens); err != nil {
				return err
			}
		}
		return nil
	})
}
