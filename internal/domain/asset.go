// Package domain defines core data structures used throughout the investment manager.
package domain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// NativeSentinel is the pseudo-address external contracts use for the chain's native asset.
// It only appears at encoding boundaries, see AssetFromAddress.
var NativeSentinel = common.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")

// AssetKind discriminates Asset values.
type AssetKind uint8

const (
	// AssetKindNative the chain's base currency.
	AssetKindNative AssetKind = iota + 1
	// AssetKindToken an ERC20-style token contract.
	AssetKindToken
)

// String returns the string representation.
func (k AssetKind) String() string {
	switch k {
	case AssetKindNative:
		return "native"
	case AssetKindToken:
		return "token"
	default:
		return "unknown"
	}
}

// Asset is either the native asset or a token identified by its contract address.
// The zero value is invalid.
type Asset struct {
	kind    AssetKind
	address common.Address
}

// NativeAsset returns the native asset.
func NativeAsset() Asset {
	return Asset{kind: AssetKindNative}
}

// TokenAsset returns the token deployed at addr.
func TokenAsset(addr common.Address) Asset {
	return Asset{kind: AssetKindToken, address: addr}
}

// AssetFromAddress maps an external address to an Asset, treating NativeSentinel as the native asset.
func AssetFromAddress(addr common.Address) Asset {
	if addr == NativeSentinel {
		return NativeAsset()
	}
	return TokenAsset(addr)
}

// Kind returns the asset discriminator.
func (a Asset) Kind() AssetKind {
	return a.kind
}

// IsNative reports whether the asset is the native asset.
func (a Asset) IsNative() bool {
	return a.kind == AssetKindNative
}

// IsValid reports whether the asset was built with one of the constructors.
func (a Asset) IsValid() bool {
	return a.kind == AssetKindNative || a.kind == AssetKindToken
}

// Address returns the token contract address; ok is false for the native asset.
func (a Asset) Address() (addr common.Address, ok bool) {
	if a.kind != AssetKindToken {
		return common.Address{}, false
	}
	return a.address, true
}

// String returns a human-readable string representation.
func (a Asset) String() string {
	switch a.kind {
	case AssetKindNative:
		return "native"
	case AssetKindToken:
		return a.address.Hex()
	default:
		return fmt.Sprintf("invalid asset (kind %d)", a.kind)
	}
}
