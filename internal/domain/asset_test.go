package domain

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func TestAsset(t *testing.T) {
	token := common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")

	t.Run("native", func(t *testing.T) {
		a := NativeAsset()
		assert.True(t, a.IsNative())
		assert.True(t, a.IsValid())
		assert.Equal(t, AssetKindNative, a.Kind())
		_, ok := a.Address()
		assert.False(t, ok)
		assert.Equal(t, "native", a.String())
	})

	t.Run("token", func(t *testing.T) {
		a := TokenAsset(token)
		assert.False(t, a.IsNative())
		addr, ok := a.Address()
		assert.True(t, ok)
		assert.Equal(t, token, addr)
		assert.Equal(t, token.Hex(), a.String())
	})

	t.Run("zero value is invalid", func(t *testing.T) {
		var a Asset
		assert.False(t, a.IsValid())
		assert.False(t, a.IsNative())
		assert.Contains(t, a.String(), "invalid")
		assert.Equal(t, "unknown", a.Kind().String())
	})

	t.Run("sentinel maps to native", func(t *testing.T) {
		assert.Equal(t, NativeAsset(), AssetFromAddress(NativeSentinel))
		assert.Equal(t, TokenAsset(token), AssetFromAddress(token))
	})
}
