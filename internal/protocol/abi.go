package protocol

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const addressesProviderABIJSON = `[
  {"inputs": [], "name": "getLendingPool", "outputs": [{"type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "getPriceOracle", "outputs": [{"type": "address"}], "stateMutability": "view", "type": "function"}
]`

const lendingPoolABIJSON = `[
  {
    "inputs": [{"internalType": "address", "name": "user", "type": "address"}],
    "name": "getUserAccountData",
    "outputs": [
      {"internalType": "uint256", "name": "totalCollateralETH", "type": "uint256"},
      {"internalType": "uint256", "name": "totalDebtETH", "type": "uint256"},
      {"internalType": "uint256", "name": "availableBorrowsETH", "type": "uint256"},
      {"internalType": "uint256", "name": "currentLiquidationThreshold", "type": "uint256"},
      {"internalType": "uint256", "name": "ltv", "type": "uint256"},
      {"internalType": "uint256", "name": "healthFactor", "type": "uint256"}
    ],
    "stateMutability": "view",
    "type": "function"
  }
]`

const dataProviderABIJSON = `[
  {
    "inputs": [
      {"internalType": "address", "name": "asset", "type": "address"},
      {"internalType": "address", "name": "user", "type": "address"}
    ],
    "name": "getUserReserveData",
    "outputs": [
      {"internalType": "uint256", "name": "currentATokenBalance", "type": "uint256"},
      {"internalType": "uint256", "name": "currentStableDebt", "type": "uint256"},
      {"internalType": "uint256", "name": "currentVariableDebt", "type": "uint256"},
      {"internalType": "uint256", "name": "principalStableDebt", "type": "uint256"},
      {"internalType": "uint256", "name": "scaledVariableDebt", "type": "uint256"},
      {"internalType": "uint256", "name": "stableBorrowRate", "type": "uint256"},
      {"internalType": "uint256", "name": "liquidityRate", "type": "uint256"},
      {"internalType": "uint40", "name": "stableRateLastUpdated", "type": "uint40"},
      {"internalType": "bool", "name": "usageAsCollateralEnabled", "type": "bool"}
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "address", "name": "asset", "type": "address"}],
    "name": "getReserveTokensAddresses",
    "outputs": [
      {"internalType": "address", "name": "aTokenAddress", "type": "address"},
      {"internalType": "address", "name": "stableDebtTokenAddress", "type": "address"},
      {"internalType": "address", "name": "variableDebtTokenAddress", "type": "address"}
    ],
    "stateMutability": "view",
    "type": "function"
  }
]`

const priceOracleABIJSON = `[
  {
    "inputs": [{"internalType": "address[]", "name": "assets", "type": "address[]"}],
    "name": "getAssetsPrices",
    "outputs": [{"internalType": "uint256[]", "name": "", "type": "uint256[]"}],
    "stateMutability": "view",
    "type": "function"
  }
]`

const tokenABIJSON = `[
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "symbol", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"},
  {
    "inputs": [
      {"internalType": "address", "name": "owner", "type": "address"},
      {"internalType": "address", "name": "spender", "type": "address"}
    ],
    "name": "allowance",
    "outputs": [{"type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "address", "name": "fromUser", "type": "address"},
      {"internalType": "address", "name": "toUser", "type": "address"}
    ],
    "name": "borrowAllowance",
    "outputs": [{"type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  }
]`

const tokenBytes32ABIJSON = `[
  {"inputs": [], "name": "symbol", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"}
]`

const adapterABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "user", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "min", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "target", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "max", "type": "uint256"},
      {"indexed": false, "internalType": "address", "name": "borrowAddress", "type": "address"},
      {"indexed": false, "internalType": "address", "name": "collateralAddress", "type": "address"}
    ],
    "name": "HealthFactorSet",
    "type": "event"
  },
  {
    "inputs": [{"internalType": "address", "name": "", "type": "address"}],
    "name": "userInfos",
    "outputs": [
      {"internalType": "uint256", "name": "minHealthFactor", "type": "uint256"},
      {"internalType": "uint256", "name": "targetHealthFactor", "type": "uint256"},
      {"internalType": "uint256", "name": "maxHealthFactor", "type": "uint256"},
      {"internalType": "uint256", "name": "rateMode", "type": "uint256"},
      {"internalType": "address", "name": "collateralAddress", "type": "address"},
      {"internalType": "address", "name": "borrowAddress", "type": "address"}
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [
      {
        "components": [
          {"internalType": "address", "name": "user", "type": "address"},
          {"internalType": "address", "name": "collateralAsset", "type": "address"},
          {"internalType": "address", "name": "debtAsset", "type": "address"},
          {"internalType": "uint256", "name": "collateralAmount", "type": "uint256"},
          {"internalType": "uint256", "name": "debtRepayAmount", "type": "uint256"},
          {"internalType": "uint256", "name": "rateMode", "type": "uint256"},
          {"internalType": "address[]", "name": "path", "type": "address[]"},
          {"internalType": "bool", "name": "useATokenAsFrom", "type": "bool"},
          {"internalType": "bool", "name": "useATokenAsTo", "type": "bool"},
          {"internalType": "bool", "name": "useFlashloan", "type": "bool"}
        ],
        "internalType": "struct RepayParams",
        "name": "repayParams",
        "type": "tuple"
      },
      {
        "components": [
          {"internalType": "uint256", "name": "amount", "type": "uint256"},
          {"internalType": "uint256", "name": "deadline", "type": "uint256"},
          {"internalType": "uint8", "name": "v", "type": "uint8"},
          {"internalType": "bytes32", "name": "r", "type": "bytes32"},
          {"internalType": "bytes32", "name": "s", "type": "bytes32"}
        ],
        "internalType": "struct PermitSignature",
        "name": "permitSignature",
        "type": "tuple"
      }
    ],
    "name": "increaseHealthFactor",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [
      {
        "components": [
          {"internalType": "address", "name": "user", "type": "address"},
          {"internalType": "uint256", "name": "minCollateralAmountOut", "type": "uint256"},
          {"internalType": "uint256", "name": "borrowAmount", "type": "uint256"},
          {"internalType": "address[]", "name": "path", "type": "address[]"},
          {"internalType": "bool", "name": "useATokenAsFrom", "type": "bool"},
          {"internalType": "bool", "name": "useATokenAsTo", "type": "bool"},
          {"internalType": "bool", "name": "useFlashloan", "type": "bool"}
        ],
        "internalType": "struct BorrowParams",
        "name": "borrowParams",
        "type": "tuple"
      },
      {
        "components": [
          {"internalType": "uint256", "name": "amount", "type": "uint256"},
          {"internalType": "uint256", "name": "deadline", "type": "uint256"},
          {"internalType": "uint8", "name": "v", "type": "uint8"},
          {"internalType": "bytes32", "name": "r", "type": "bytes32"},
          {"internalType": "bytes32", "name": "s", "type": "bytes32"}
        ],
        "internalType": "struct PermitSignature",
        "name": "permitSignature",
        "type": "tuple"
      }
    ],
    "name": "decreaseHealthFactor",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  }
]`

type lazyABI struct {
	json   string
	once   sync.Once
	parsed abi.ABI
	err    error
}

func (l *lazyABI) get() (abi.ABI, error) {
	l.once.Do(func() {
		l.parsed, l.err = abi.JSON(strings.NewReader(l.json))
	})
	return l.parsed, l.err
}

var (
	addressesProviderABI = &lazyABI{json: addressesProviderABIJSON}
	lendingPoolABI       = &lazyABI{json: lendingPoolABIJSON}
	dataProviderABI      = &lazyABI{json: dataProviderABIJSON}
	priceOracleABI       = &lazyABI{json: priceOracleABIJSON}
	tokenABI             = &lazyABI{json: tokenABIJSON}
	tokenBytes32ABI      = &lazyABI{json: tokenBytes32ABIJSON}
	adapterABI           = &lazyABI{json: adapterABIJSON}
)

// AdapterABI returns the parsed rebalancing adapter ABI.
func AdapterABI() (abi.ABI, error) {
	return adapterABI.get()
}
