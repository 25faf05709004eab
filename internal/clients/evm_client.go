// Package clients connects the investment manager to live EVM chains.
package clients

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/lpinvest/internal/calldata"
	"github.com/vadiminshakov/lpinvest/internal/domain"
	"github.com/vadiminshakov/lpinvest/pkg/retrier"
)

// ErrReverted is returned when a call or an invoke transaction is rejected by the chain.
var ErrReverted = errors.New("execution reverted")

const (
	defaultReceiptTimeout = 2 * time.Minute
	defaultPollInterval   = 2 * time.Second
	gasHeadroomPercent    = 20
)

// Backend is the part of the JSON-RPC client the adapter needs. *ethclient.Client implements it.
type Backend interface {
	ethereum.ContractCaller
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// EVMConfig configures the live chain adapter. PrivateKeyHex signs invoke transactions; the derived
// address must be allowed to invoke the accounts it manages.
type EVMConfig struct {
	RPCURL         string
	ChainID        int64
	Registry       common.Address
	LockManager    common.Address
	PrivateKeyHex  string
	ReceiptTimeout time.Duration
	PollInterval   time.Duration
}

// EVMClient reads pools and balances over JSON-RPC and executes commands as wallet invoke transactions.
type EVMClient struct {
	backend     Backend
	chainID     *big.Int
	registry    common.Address
	lockManager common.Address
	key         *ecdsa.PrivateKey
	sender      common.Address

	reads          *retrier.Retrier
	receiptTimeout time.Duration
	pollInterval   time.Duration

	mu       sync.Mutex
	accounts map[common.Address]*sync.Mutex

	l *zap.Logger
}

// NewEVMClient dials cfg.RPCURL and returns an adapter over it.
func NewEVMClient(ctx context.Context, l *zap.Logger, cfg EVMConfig) (*EVMClient, error) {
	if cfg.RPCURL == "" {
		return nil, errors.New("rpc url is required")
	}
	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", cfg.RPCURL)
	}
	return NewEVMClientWithBackend(l, client, cfg)
}

// NewEVMClientWithBackend returns an adapter over an existing backend.
func NewEVMClientWithBackend(l *zap.Logger, backend Backend, cfg EVMConfig) (*EVMClient, error) {
	if l == nil {
		l = zap.NewNop()
	}
	if backend == nil {
		return nil, errors.New("backend is required")
	}
	if cfg.ChainID <= 0 {
		return nil, fmt.Errorf("chain id must be positive, got %d", cfg.ChainID)
	}
	if cfg.Registry == (common.Address{}) {
		return nil, errors.New("registry address is required")
	}

	c := &EVMClient{
		backend:        backend,
		chainID:        big.NewInt(cfg.ChainID),
		registry:       cfg.Registry,
		lockManager:    cfg.LockManager,
		receiptTimeout: cfg.ReceiptTimeout,
		pollInterval:   cfg.PollInterval,
		accounts:       make(map[common.Address]*sync.Mutex),
		l:              l,
	}
	if c.receiptTimeout <= 0 {
		c.receiptTimeout = defaultReceiptTimeout
	}
	if c.pollInterval <= 0 {
		c.pollInterval = defaultPollInterval
	}
	c.reads = retrier.New(
		retrier.WithMaxRetries(3),
		retrier.WithInitialInterval(200*time.Millisecond),
		retrier.WithMaxInterval(2*time.Second),
		retrier.WithRetryIf(isTransient),
	)

	if cfg.PrivateKeyHex != "" {
		key, sender, err := parseKey(cfg.PrivateKeyHex)
		if err != nil {
			return nil, err
		}
		c.key = key
		c.sender = sender
	}

	return c, nil
}

func parseKey(hexKey string) (*ecdsa.PrivateKey, common.Address, error) {
	key := hexKey
	if len(key) >= 2 && (key[:2] == "0x" || key[:2] == "0X") {
		key = key[2:]
	}

	privateKey, err := crypto.HexToECDSA(key)
	if err != nil {
		return nil, common.Address{}, errors.Wrap(err, "parse private key")
	}

	pub, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, common.Address{}, errors.New("error casting public key to ECDSA")
	}

	return privateKey, crypto.PubkeyToAddress(*pub), nil
}

// Sender returns the address invoke transactions are sent from.
func (c *EVMClient) Sender() common.Address {
	return c.sender
}

// isTransient reports whether err is worth another attempt: reverts and cancellations are final.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrReverted) {
		return false
	}
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		return false
	}
	return !strings.Contains(err.Error(), "execution reverted")
}

func (c *EVMClient) call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	return retrier.DoWithData(c.reads, ctx, func(ctx context.Context) ([]byte, error) {
		return c.backend.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	})
}

func (c *EVMClient) callUint(ctx context.Context, to common.Address, method string, data []byte) (*uint256.Int, error) {
	out, err := c.call(ctx, to, data)
	if err != nil {
		return nil, errors.Wrapf(err, "%s on %s", method, to.Hex())
	}
	return calldata.UnpackUint(method, out)
}

// Locate asks the registry for the pool of token.
func (c *EVMClient) Locate(ctx context.Context, token common.Address) (common.Address, error) {
	out, err := c.call(ctx, c.registry, calldata.GetExchange(token))
	if err != nil {
		return common.Address{}, errors.Wrapf(err, "getExchange(%s)", token.Hex())
	}
	return calldata.UnpackAddress(calldata.MethodGetExchange, out)
}

// BalanceOf reads the native balance of holder or its balance of a token contract.
func (c *EVMClient) BalanceOf(ctx context.Context, asset domain.Asset, holder common.Address) (*uint256.Int, error) {
	if asset.IsNative() {
		bal, err := retrier.DoWithData(c.reads, ctx, func(ctx context.Context) (*big.Int, error) {
			return c.backend.BalanceAt(ctx, holder, nil)
		})
		if err != nil {
			return nil, errors.Wrapf(err, "native balance of %s", holder.Hex())
		}
		v, overflow := uint256.FromBig(bal)
		if overflow {
			return nil, errors.Wrap(domain.ErrArithmeticOverflow, "native balance")
		}
		return v, nil
	}

	token, ok := asset.Address()
	if !ok {
		return nil, errors.New("invalid asset")
	}
	return c.callUint(ctx, token, calldata.MethodBalanceOf, calldata.BalanceOf(holder))
}

// TotalSupply reads the supply of token.
func (c *EVMClient) TotalSupply(ctx context.Context, token common.Address) (*uint256.Int, error) {
	return c.callUint(ctx, token, calldata.MethodTotalSupply, calldata.TotalSupply())
}

// QuoteNativeForExactTokenOutput asks pool for the native cost of tokens.
func (c *EVMClient) QuoteNativeForExactTokenOutput(ctx context.Context, pool common.Address, tokens *uint256.Int) (*uint256.Int, error) {
	return c.callUint(ctx, pool, calldata.MethodGetEthToTokenOutputPrice, calldata.GetEthToTokenOutputPrice(tokens))
}

// Timestamp returns the time of the latest block.
func (c *EVMClient) Timestamp(ctx context.Context) (uint64, error) {
	header, err := retrier.DoWithData(c.reads, ctx, func(ctx context.Context) (*types.Header, error) {
		return c.backend.HeaderByNumber(ctx, nil)
	})
	if err != nil {
		return 0, errors.Wrap(err, "latest header")
	}
	return header.Time, nil
}

// IsOwner compares caller with the owner recorded in the account wallet.
func (c *EVMClient) IsOwner(ctx context.Context, account, caller common.Address) (bool, error) {
	out, err := c.call(ctx, account, calldata.Owner())
	if err != nil {
		return false, errors.Wrapf(err, "owner of %s", account.Hex())
	}
	owner, err := calldata.UnpackAddress(calldata.MethodOwner, out)
	if err != nil {
		return false, err
	}
	return owner == caller, nil
}

// IsLocked asks the lock manager about account. Without a lock manager no account is locked.
func (c *EVMClient) IsLocked(ctx context.Context, account common.Address) (bool, error) {
	if c.lockManager == (common.Address{}) {
		return false, nil
	}
	out, err := c.call(ctx, c.lockManager, calldata.IsLocked(account))
	if err != nil {
		return false, errors.Wrapf(err, "isLocked(%s)", account.Hex())
	}
	return calldata.UnpackBool(calldata.MethodIsLocked, out)
}

// Atomically serializes requests per account. Transactions already mined when fn fails stay on chain:
// fn stops at the first failed command, so nothing after it is sent.
func (c *EVMClient) Atomically(ctx context.Context, account common.Address, fn func(ctx context.Context) error) error {
	c.mu.Lock()
	lock, ok := c.accounts[account]
	if !ok {
		lock = &sync.Mutex{}
		c.accounts[account] = lock
	}
	c.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()
	return fn(ctx)
}

// Invoke sends account.invoke(cmd.Target, cmd.Value, cmd.Data) signed by the configured key and waits
// for it to be mined.
func (c *EVMClient) Invoke(ctx context.Context, account common.Address, cmd domain.Command) error {
	if c.key == nil {
		return errors.New("no signing key configured")
	}

	data := calldata.Invoke(cmd.Target, cmd.NativeValue(), cmd.Data)
	msg := ethereum.CallMsg{From: c.sender, To: &account, Data: data}

	gas, err := c.backend.EstimateGas(ctx, msg)
	if err != nil {
		// estimation executes the call, a failure here is a revert
		return errors.Wrapf(ErrReverted, "estimate %s: %v", cmd.Kind, err)
	}
	gas += gas * gasHeadroomPercent / 100

	nonce, err := c.backend.PendingNonceAt(ctx, c.sender)
	if err != nil {
		return errors.Wrap(err, "pending nonce")
	}
	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return errors.Wrap(err, "suggest gas price")
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &account,
		Value:    new(big.Int),
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return errors.Wrap(err, "sign invoke transaction")
	}

	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return errors.Wrapf(err, "send %s", cmd.Kind)
	}

	c.l.Info("invoke transaction sent",
		zap.String("account", account.Hex()),
		zap.String("kind", string(cmd.Kind)),
		zap.String("tx", signed.Hash().Hex()),
		zap.Uint64("nonce", nonce))

	receipt, err := c.waitMined(ctx, signed.Hash())
	if err != nil {
		return err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return errors.Wrapf(ErrReverted, "%s tx %s", cmd.Kind, signed.Hash().Hex())
	}
	return nil
}

var errNotMined = errors.New("transaction not mined yet")

func (c *EVMClient) waitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.receiptTimeout)
	defer cancel()

	poll := retrier.New(
		retrier.WithInitialInterval(c.pollInterval),
		retrier.WithMaxInterval(c.pollInterval),
		retrier.WithMultiplier(1),
		retrier.WithJitter(0),
		retrier.WithMaxRetries(int(c.receiptTimeout/c.pollInterval)+1),
	)

	receipt, err := retrier.DoWithData(poll, ctx, func(ctx context.Context) (*types.Receipt, error) {
		r, err := c.backend.TransactionReceipt(ctx, hash)
		if errors.Is(err, ethereum.NotFound) {
			return nil, errNotMined
		}
		return r, err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "wait for %s", hash.Hex())
	}
	return receipt, nil
}
