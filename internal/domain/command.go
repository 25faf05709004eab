package domain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// CommandKind labels a fund-movement instruction.
type CommandKind string

const (
	CommandSwap            CommandKind = "swap"
	CommandApprove         CommandKind = "approve"
	CommandAddLiquidity    CommandKind = "add_liquidity"
	CommandRemoveLiquidity CommandKind = "remove_liquidity"
)

// Command is an instruction executed by an account through its invoke primitive:
// call Target with Value of native asset attached and Data as call payload.
type Command struct {
	Kind   CommandKind
	Target common.Address
	Value  *uint256.Int
	Data   []byte
}

// NativeValue returns the attached native value, zero when unset.
func (c Command) NativeValue() *uint256.Int {
	if c.Value == nil {
		return new(uint256.Int)
	}
	return c.Value
}

// String returns a human-readable string representation.
func (c Command) String() string {
	return fmt.Sprintf("%s target: %s value: %s", c.Kind, c.Target.Hex(), c.NativeValue().Dec())
}
