// Package calldata encodes and decodes the contract calls issued and read by the investment manager.
package calldata

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Method names.
const (
	MethodGetExchange              = "getExchange"
	MethodGetEthToTokenOutputPrice = "getEthToTokenOutputPrice"
	MethodEthToTokenSwapOutput     = "ethToTokenSwapOutput"
	MethodAddLiquidity             = "addLiquidity"
	MethodRemoveLiquidity          = "removeLiquidity"
	MethodApprove                  = "approve"
	MethodBalanceOf                = "balanceOf"
	MethodTotalSupply              = "totalSupply"
	MethodInvoke                   = "invoke"
	MethodOwner                    = "owner"
	MethodIsLocked                 = "isLocked"
)

// registry (factory), pool (exchange), token, wallet and lock manager surfaces in one table;
// selectors are distinct across them.
const contractsJSON = `[
	{"type":"function","name":"getExchange","stateMutability":"view",
	 "inputs":[{"name":"token","type":"address"}],"outputs":[{"name":"","type":"address"}]},

	{"type":"function","name":"getEthToTokenOutputPrice","stateMutability":"view",
	 "inputs":[{"name":"tokens_bought","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"ethToTokenSwapOutput","stateMutability":"payable",
	 "inputs":[{"name":"tokens_bought","type":"uint256"},{"name":"deadline","type":"uint256"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"addLiquidity","stateMutability":"payable",
	 "inputs":[{"name":"min_liquidity","type":"uint256"},{"name":"max_tokens","type":"uint256"},{"name":"deadline","type":"uint256"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"removeLiquidity","stateMutability":"nonpayable",
	 "inputs":[{"name":"amount","type":"uint256"},{"name":"min_eth","type":"uint256"},{"name":"min_tokens","type":"uint256"},{"name":"deadline","type":"uint256"}],
	 "outputs":[{"name":"","type":"uint256"},{"name":"","type":"uint256"}]},

	{"type":"function","name":"approve","stateMutability":"nonpayable",
	 "inputs":[{"name":"spender","type":"address"},{"name":"value","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"balanceOf","stateMutability":"view",
	 "inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"totalSupply","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"uint256"}]},

	{"type":"function","name":"invoke","stateMutability":"nonpayable",
	 "inputs":[{"name":"target","type":"address"},{"name":"value","type":"uint256"},{"name":"data","type":"bytes"}],
	 "outputs":[{"name":"","type":"bytes"}]},
	{"type":"function","name":"owner","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"isLocked","stateMutability":"view",
	 "inputs":[{"name":"wallet","type":"address"}],"outputs":[{"name":"","type":"bool"}]}
]`

var contracts = mustParse(contractsJSON)

func mustParse(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}
