package setup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/lpinvest/config"
)

const (
	account = "0x00000000000000000000000000000000000000a1"
	token   = "0x00000000000000000000000000000000000000d1"
	pool    = "0x00000000000000000000000000000000000000b1"
)

func TestValidators(t *testing.T) {
	assert.NoError(t, validateAddress(account))
	assert.Error(t, validateAddress("0x123"))
	assert.NoError(t, validateOptionalAddress(""))
	assert.Error(t, validateOptionalAddress("nope"))

	assert.NoError(t, validateChainID("1"))
	assert.Error(t, validateChainID("0"))
	assert.Error(t, validateChainID("x"))

	assert.NoError(t, validateDecimals("18"))
	assert.Error(t, validateDecimals("78"))

	assert.NoError(t, validateAmount("0.5"))
	assert.Error(t, validateAmount("-1"))
	assert.Error(t, validateAmount("ten"))

	assert.Error(t, validateNotEmpty("symbol")("  "))
}

func TestWriteSimulateConfig(t *testing.T) {
	a := defaultAnswers()
	a.account = account
	a.tokenSymbol = "TKN"
	a.tokenAddress = token
	a.pool = pool

	tmp, err := a.configTmp()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), DefaultConfigFile)
	require.NoError(t, WriteConfig(path, tmp))

	cfg, _, err := config.Get([]string{"--config", path})
	require.NoError(t, err)
	assert.Equal(t, config.NetworkSimulate, cfg.Network)
	assert.Equal(t, common.HexToAddress(account), cfg.Account)
	require.Len(t, cfg.Simulate.Pools, 1)
	assert.Equal(t, common.HexToAddress(pool), cfg.Simulate.Pools[0].Pool)
	assert.Equal(t, "40000000000000000000", cfg.Simulate.Pools[0].AccountTokens.Dec())
}

func TestWriteEVMConfig(t *testing.T) {
	a := defaultAnswers()
	a.network = config.NetworkEVM
	a.rpcURL = "http://localhost:8545"
	a.chainID = "31337"
	a.registry = pool
	a.account = account
	a.tokenSymbol = "TKN"
	a.tokenAddress = token

	tmp, err := a.configTmp()
	require.NoError(t, err)
	assert.Empty(t, tmp.Simulate.Pools)

	path := filepath.Join(t.TempDir(), DefaultConfigFile)
	require.NoError(t, WriteConfig(path, tmp))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "localhost:8545")
	assert.Contains(t, string(raw), "chain_id: 31337")
	assert.NotContains(t, string(raw), "simulate:")
}

func TestWriteConfigRejectsInvalid(t *testing.T) {
	a := defaultAnswers()
	a.network = config.NetworkEVM
	a.chainID = "1"
	a.account = account
	a.tokenSymbol = "TKN"
	a.tokenAddress = token

	tmp, err := a.configTmp()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), DefaultConfigFile)
	assert.ErrorContains(t, WriteConfig(path, tmp), "rpc_url")
	assert.NoFileExists(t, path)
}
