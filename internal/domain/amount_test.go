package domain

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in       string
		decimals int32
		want     string
		wantErr  bool
	}{
		{"1", 18, "1000000000000000000", false},
		{"2.5", 6, "2500000", false},
		{"0", 6, "0", false},
		{"42", 0, "42", false},
		{"0.0000001", 6, "", true},
		{"-1", 6, "", true},
		{"abc", 6, "", true},
		{"1e80", 0, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in, tt.decimals)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Dec())
		})
	}
}

func TestParseAmountOverflow(t *testing.T) {
	_, err := ParseAmount("1e80", 0)
	assert.ErrorIs(t, err, ErrArithmeticOverflow)
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "2.5", FormatAmount(uint256.NewInt(2_500_000), 6))
	assert.Equal(t, "195", FormatAmount(uint256.NewInt(195), 0))
	assert.Equal(t, "0", FormatAmount(nil, 18))
}
