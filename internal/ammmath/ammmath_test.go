package ammmath

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/lpinvest/internal/domain"
)

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

func maxUint() *uint256.Int { return new(uint256.Int).SetAllOne() }

func TestDepositNative(t *testing.T) {
	tests := []struct {
		name          string
		amount        *uint256.Int
		nativeReserve *uint256.Int
		tokenReserve  *uint256.Int
		expected      *uint256.Int
		expectedErr   error
	}{
		{
			name:          "ratio with one unit bias",
			amount:        u(101),
			nativeReserve: u(500),
			tokenReserve:  u(1000),
			// floor(100 * 500 / 1000)
			expected: u(50),
		},
		{
			name:          "rounds down",
			amount:        u(4),
			nativeReserve: u(10),
			tokenReserve:  u(7),
			// floor(3 * 10 / 7) = 4
			expected: u(4),
		},
		{
			name:          "single unit deposit contributes nothing",
			amount:        u(1),
			nativeReserve: u(1000),
			tokenReserve:  u(1000),
			expected:      u(0),
		},
		{
			name:          "empty token reserve",
			amount:        u(10),
			nativeReserve: u(1000),
			tokenReserve:  u(0),
			expectedErr:   domain.ErrPoolEmpty,
		},
		{
			name:          "zero amount",
			amount:        u(0),
			nativeReserve: u(1000),
			tokenReserve:  u(1000),
			expectedErr:   domain.ErrZeroAmount,
		},
		{
			name:          "overflow",
			amount:        maxUint(),
			nativeReserve: u(3),
			tokenReserve:  u(1),
			expectedErr:   domain.ErrArithmeticOverflow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DepositNative(tt.amount, tt.nativeReserve, tt.tokenReserve)
			if tt.expectedErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.expectedErr), "unexpected error: %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected.Dec(), got.Dec())
		})
	}
}

func TestSharesToRemove(t *testing.T) {
	tests := []struct {
		name        string
		shares      *uint256.Int
		fraction    uint16
		expected    *uint256.Int
		expectedErr error
	}{
		{name: "quarter", shares: u(250), fraction: 2500, expected: u(62)},
		{name: "everything", shares: u(250), fraction: 10000, expected: u(250)},
		{name: "nothing", shares: u(250), fraction: 0, expected: u(0)},
		{name: "no shares", shares: u(0), fraction: 5000, expected: u(0)},
		{name: "above max", shares: u(250), fraction: 10001, expectedErr: domain.ErrInvalidFraction},
		{name: "overflow", shares: maxUint(), fraction: 2, expectedErr: domain.ErrArithmeticOverflow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SharesToRemove(tt.shares, tt.fraction)
			if tt.expectedErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.expectedErr), "unexpected error: %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected.Dec(), got.Dec())
		})
	}
}

func TestTokenValue(t *testing.T) {
	got, err := TokenValue(u(10), u(1000), u(100))
	require.NoError(t, err)
	assert.Equal(t, "200", got.Dec())

	_, err = TokenValue(u(10), u(1000), u(0))
	assert.True(t, errors.Is(err, domain.ErrPoolEmpty))

	_, err = TokenValue(u(10), u(0), u(100))
	assert.True(t, errors.Is(err, domain.ErrPoolEmpty))

	_, err = TokenValue(maxUint(), u(2), u(1))
	assert.True(t, errors.Is(err, domain.ErrArithmeticOverflow))

	// shares * reserve fits, doubling does not
	half := new(uint256.Int).Rsh(maxUint(), 1)
	_, err = TokenValue(half, u(2), u(1))
	assert.True(t, errors.Is(err, domain.ErrArithmeticOverflow))
}

func TestInvestedValue(t *testing.T) {
	got, err := InvestedValue(u(101))
	require.NoError(t, err)
	assert.Equal(t, "202", got.Dec())

	_, err = InvestedValue(maxUint())
	assert.True(t, errors.Is(err, domain.ErrArithmeticOverflow))
}

func TestShortfall(t *testing.T) {
	assert.Equal(t, "0", Shortfall(u(10), u(10)).Dec())
	assert.Equal(t, "0", Shortfall(u(11), u(10)).Dec())
	assert.Equal(t, "7", Shortfall(u(3), u(10)).Dec())
}

func TestAddOverflow(t *testing.T) {
	_, err := Add(maxUint(), u(1))
	assert.True(t, errors.Is(err, domain.ErrArithmeticOverflow))

	got, err := Add(u(5), u(2))
	require.NoError(t, err)
	assert.Equal(t, "7", got.Dec())
}

func TestMulDiv_DivisionByZero(t *testing.T) {
	_, err := MulDiv(u(1), u(1), u(0))
	assert.Error(t, err)
}

func TestOutputPrice(t *testing.T) {
	// 1000 * 10 * 1000 / ((1000 - 10) * 997) + 1 = 10000000 / 987030 + 1 = 10 + 1
	got, err := OutputPrice(u(10), u(1000), u(1000))
	require.NoError(t, err)
	assert.Equal(t, "11", got.Dec())

	_, err = OutputPrice(u(10), u(0), u(1000))
	assert.True(t, errors.Is(err, domain.ErrPoolEmpty))
}

func TestOutputPrice_OutputNotBelowReserve(t *testing.T) {
	for _, out := range []uint64{1000, 1001} {
		_, err := OutputPrice(u(out), u(1000), u(1000))
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrInsufficientLiquidity), "unexpected error: %v", err)
		assert.False(t, errors.Is(err, domain.ErrPoolEmpty), "a funded pool must not read as empty")
	}
}

func TestIsZero(t *testing.T) {
	assert.True(t, IsZero(nil))
	assert.True(t, IsZero(u(0)))
	assert.False(t, IsZero(u(1)))
}
