package calldata

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

const selectorLen = 4

// Call is a decoded contract call.
type Call struct {
	Method string
	Args   []interface{}
}

// Uint returns the i-th argument as a uint256.
func (c Call) Uint(i int) (*uint256.Int, error) {
	if i >= len(c.Args) {
		return nil, errors.Errorf("%s: argument %d out of range", c.Method, i)
	}
	b, ok := c.Args[i].(*big.Int)
	if !ok {
		return nil, errors.Errorf("%s: argument %d is %T, not uint256", c.Method, i, c.Args[i])
	}
	v, overflow := uint256.FromBig(b)
	if overflow {
		return nil, errors.Errorf("%s: argument %d overflows uint256", c.Method, i)
	}
	return v, nil
}

// Address returns the i-th argument as an address.
func (c Call) Address(i int) (common.Address, error) {
	if i >= len(c.Args) {
		return common.Address{}, errors.Errorf("%s: argument %d out of range", c.Method, i)
	}
	a, ok := c.Args[i].(common.Address)
	if !ok {
		return common.Address{}, errors.Errorf("%s: argument %d is %T, not address", c.Method, i, c.Args[i])
	}
	return a, nil
}

// Bytes returns the i-th argument as a byte slice.
func (c Call) Bytes(i int) ([]byte, error) {
	if i >= len(c.Args) {
		return nil, errors.Errorf("%s: argument %d out of range", c.Method, i)
	}
	b, ok := c.Args[i].([]byte)
	if !ok {
		return nil, errors.Errorf("%s: argument %d is %T, not bytes", c.Method, i, c.Args[i])
	}
	return b, nil
}

// Decode resolves the method selector of data and unpacks its arguments.
func Decode(data []byte) (Call, error) {
	if len(data) < selectorLen {
		return Call{}, errors.Errorf("calldata too short: %d bytes", len(data))
	}
	method, err := contracts.MethodById(data[:selectorLen])
	if err != nil {
		return Call{}, errors.Wrap(err, "unknown selector")
	}
	args, err := method.Inputs.Unpack(data[selectorLen:])
	if err != nil {
		return Call{}, errors.Wrapf(err, "unpack %s arguments", method.Name)
	}
	return Call{Method: method.Name, Args: args}, nil
}

func pack(method string, args ...interface{}) []byte {
	data, err := contracts.Pack(method, args...)
	if err != nil {
		// argument types are fixed by the typed helpers below
		panic(errors.Wrapf(err, "pack %s", method))
	}
	return data
}

// GetExchange encodes a registry lookup of the pool for token.
func GetExchange(token common.Address) []byte {
	return pack(MethodGetExchange, token)
}

// GetEthToTokenOutputPrice encodes the native cost quote for buying exactly tokens.
func GetEthToTokenOutputPrice(tokens *uint256.Int) []byte {
	return pack(MethodGetEthToTokenOutputPrice, tokens.ToBig())
}

// EthToTokenSwapOutput encodes a swap of native asset for exactly tokens.
func EthToTokenSwapOutput(tokens *uint256.Int, deadline uint64) []byte {
	return pack(MethodEthToTokenSwapOutput, tokens.ToBig(), new(big.Int).SetUint64(deadline))
}

// AddLiquidity encodes a deposit of up to maxTokens tokens along with the attached native value.
func AddLiquidity(minShares, maxTokens *uint256.Int, deadline uint64) []byte {
	return pack(MethodAddLiquidity, minShares.ToBig(), maxTokens.ToBig(), new(big.Int).SetUint64(deadline))
}

// RemoveLiquidity encodes a redemption of shares.
func RemoveLiquidity(shares, minNative, minTokens *uint256.Int, deadline uint64) []byte {
	return pack(MethodRemoveLiquidity, shares.ToBig(), minNative.ToBig(), minTokens.ToBig(), new(big.Int).SetUint64(deadline))
}

// Approve encodes an ERC20 allowance grant.
func Approve(spender common.Address, amount *uint256.Int) []byte {
	return pack(MethodApprove, spender, amount.ToBig())
}

// BalanceOf encodes an ERC20 balance query.
func BalanceOf(holder common.Address) []byte {
	return pack(MethodBalanceOf, holder)
}

// TotalSupply encodes an ERC20 supply query.
func TotalSupply() []byte {
	return pack(MethodTotalSupply)
}

// Invoke encodes a wallet call forwarding value and data to target.
func Invoke(target common.Address, value *uint256.Int, data []byte) []byte {
	return pack(MethodInvoke, target, value.ToBig(), data)
}

// Owner encodes a wallet owner query.
func Owner() []byte {
	return pack(MethodOwner)
}

// IsLocked encodes a lock manager query for wallet.
func IsLocked(wallet common.Address) []byte {
	return pack(MethodIsLocked, wallet)
}

// UnpackUint decodes the single uint256 returned by method.
func UnpackUint(method string, out []byte) (*uint256.Int, error) {
	vals, err := contracts.Unpack(method, out)
	if err != nil {
		return nil, errors.Wrapf(err, "unpack %s result", method)
	}
	if len(vals) == 0 {
		return nil, errors.Errorf("%s returned nothing", method)
	}
	b, ok := vals[0].(*big.Int)
	if !ok {
		return nil, errors.Errorf("%s returned %T", method, vals[0])
	}
	v, overflow := uint256.FromBig(b)
	if overflow {
		return nil, errors.Errorf("%s result overflows uint256", method)
	}
	return v, nil
}

// UnpackAddress decodes the single address returned by method.
func UnpackAddress(method string, out []byte) (common.Address, error) {
	vals, err := contracts.Unpack(method, out)
	if err != nil {
		return common.Address{}, errors.Wrapf(err, "unpack %s result", method)
	}
	if len(vals) == 0 {
		return common.Address{}, errors.Errorf("%s returned nothing", method)
	}
	a, ok := vals[0].(common.Address)
	if !ok {
		return common.Address{}, errors.Errorf("%s returned %T", method, vals[0])
	}
	return a, nil
}

// UnpackBool decodes the single bool returned by method.
func UnpackBool(method string, out []byte) (bool, error) {
	vals, err := contracts.Unpack(method, out)
	if err != nil {
		return false, errors.Wrapf(err, "unpack %s result", method)
	}
	if len(vals) == 0 {
		return false, errors.Errorf("%s returned nothing", method)
	}
	b, ok := vals[0].(bool)
	if !ok {
		return false, errors.Errorf("%s returned %T", method, vals[0])
	}
	return b, nil
}

// PackUint encodes v as the return value of method; used by simulated backends.
func PackUint(method string, v *uint256.Int) ([]byte, error) {
	return packOutputs(method, v.ToBig())
}

// PackAddress encodes a as the return value of method.
func PackAddress(method string, a common.Address) ([]byte, error) {
	return packOutputs(method, a)
}

// PackBool encodes b as the return value of method.
func PackBool(method string, b bool) ([]byte, error) {
	return packOutputs(method, b)
}

func packOutputs(method string, vals ...interface{}) ([]byte, error) {
	m, ok := contracts.Methods[method]
	if !ok {
		return nil, errors.Errorf("unknown method %s", method)
	}
	out, err := m.Outputs.Pack(vals...)
	if err != nil {
		return nil, errors.Wrapf(err, "pack %s result", method)
	}
	return out, nil
}
