package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/lpinvest/config"
	"github.com/vadiminshakov/lpinvest/internal/app"
	"github.com/vadiminshakov/lpinvest/internal/domain"
)

func TestParseFraction(t *testing.T) {
	v, err := parseFraction("10000")
	require.NoError(t, err)
	assert.Equal(t, uint16(10000), v)

	_, err = parseFraction("10001")
	assert.ErrorIs(t, err, domain.ErrInvalidFraction)
	_, err = parseFraction("-1")
	assert.ErrorIs(t, err, domain.ErrInvalidFraction)
}

func TestParsePeriod(t *testing.T) {
	v, err := parsePeriod("2592000")
	require.NoError(t, err)
	assert.Equal(t, uint64(2592000), v)

	_, err = parsePeriod("soon")
	assert.Error(t, err)
}

func TestRunCommands(t *testing.T) {
	ctx := context.Background()
	account := common.HexToAddress("0xa1")
	token := config.Token{Symbol: "TKN", Address: common.HexToAddress("0xd1")}

	a, err := app.New(ctx, zap.NewNop(), config.Config{
		Network: config.NetworkSimulate,
		Account: account,
		WALDir:  t.TempDir(),
		Tokens:  []config.Token{token},
		Simulate: config.Simulation{
			AccountNative: uint256.NewInt(1000),
			Pools: []config.SimPool{{
				Token:         token,
				Pool:          common.HexToAddress("0xb1"),
				NativeReserve: uint256.NewInt(500),
				TokenReserve:  uint256.NewInt(1000),
				AccountTokens: uint256.NewInt(40),
			}},
		},
	})
	require.NoError(t, err)
	defer a.Close()

	exec := func(args ...string) string {
		t.Helper()
		var out bytes.Buffer
		require.NoError(t, run(ctx, zap.NewNop(), a, args, &out))
		return out.String()
	}

	assert.Equal(t, "deposited 101 TKN, invested value 202 TKN\n", exec("add", "tkn", "101", "30"))
	assert.Equal(t, "195 TKN (period end 0)\n", exec("get", "TKN"))
	assert.Contains(t, exec("portfolio"), "TKN")
	assert.Equal(t, "withdrew 50% of TKN pool shares\n", exec("remove", "TKN", "5000"))

	var out bytes.Buffer
	assert.Error(t, run(ctx, zap.NewNop(), a, []string{"add", "TKN"}, &out))
	assert.Error(t, run(ctx, zap.NewNop(), a, []string{"get", "WETH"}, &out))
	assert.ErrorIs(t, run(ctx, zap.NewNop(), a, []string{"remove", "TKN", "20000"}, &out), domain.ErrInvalidFraction)
	assert.Error(t, run(ctx, zap.NewNop(), a, []string{"fly"}, &out))
}
