package config

import (
	"github.com/ethereum/go-ethereum/common"

	"autoRepay/internal/model"
)

// Network names.
const (
	NetworkCelo      = "celo"
	NetworkAlfajores = "alfajores"
)

// Preset bundles the deployment addresses and routing tables of a network.
type Preset struct {
	RPCURL            string
	StartBlock        uint64
	AddressesProvider common.Address
	DataProvider      common.Address
	Adapter           common.Address
	Router            common.Address
	Multicall         common.Address
	Assets            model.AssetSet
	Hubs              []common.Address
	Overrides         []model.PathOverride
	// Labels names routing tokens that are not reserves, such as the
	// wrapped reserve tokens listed on the exchange.
	Labels map[string]common.Address
}

// multicall3 is deployed at the same address on every network it supports.
var multicall3 = common.HexToAddress("0xcA11bde05977b3631167028862bE2a173976CA11")

var (
	celoCELO  = common.HexToAddress("0x471EcE3750Da237f93B8E339c536989b8978a438")
	celoCUSD  = common.HexToAddress("0x765DE816845861e75A25fCA122bb6898B8B1282a")
	celoCEUR  = common.HexToAddress("0xD8763CBa276a3738E6DE85b4b3bF5FDed6D6cA73")
	celoCREAL = common.HexToAddress("0xe8537a3d056DA446677B9E9d6c5dB704EaAb4787")
	celoMOO   = common.HexToAddress("0x17700282592D6917F6A73D0bF8AcCf4D578c131e")

	celoMCELO = common.HexToAddress("0x7D00cd74FF385c955EA3d79e47BF06bD7386387D")
	celoMCUSD = common.HexToAddress("0x918146359264C492BD6934071c6Bd31C854EDBc3")
	celoMCEUR = common.HexToAddress("0xE273Ad7ee11dCfAA87383aD5977EE1504aC07568")
)

var (
	alfajoresCELO = common.HexToAddress("0xF194afDf50B03e69Bd7D057c1Aa9e10c9954E4C9")
	alfajoresCUSD = common.HexToAddress("0x874069Fa1Eb16D44d622F2e0Ca25eeA172369bC1")
	alfajoresCEUR = common.HexToAddress("0x10c892a6ec43a53e45d0b916b4b7d383b1b78c0f")
)

// Presets holds the built-in networks.
var Presets = map[string]Preset{
	NetworkCelo: {
		RPCURL:            "https://forno.celo.org",
		StartBlock:        12472487,
		AddressesProvider: common.HexToAddress("0xD1088091A174d33412a968Fa34Cb67131188B332"),
		DataProvider:      common.HexToAddress("0x43d067ed784D9DD2ffEda73775e2CC4c560103A1"),
		Adapter:           common.HexToAddress("0xa948FD5F2653e8BFe35876730dB6a36FA4d46252"),
		Router:            common.HexToAddress("0xE3D8bd6Aed4F159bc8000a9cD47CffDb95F96121"),
		Multicall:         multicall3,
		Assets: model.AssetSet{
			{Symbol: "CELO", Address: celoCELO, Decimals: 18},
			{Symbol: "cUSD", Address: celoCUSD, Decimals: 18},
			{Symbol: "cEUR", Address: celoCEUR, Decimals: 18},
			{Symbol: "cREAL", Address: celoCREAL, Decimals: 18},
			{Symbol: "MOO", Address: celoMOO, Decimals: 18},
		},
		Hubs: []common.Address{celoCELO, celoMCELO, celoCUSD, celoMCUSD, celoCEUR, celoMCEUR},
		Overrides: []model.PathOverride{
			{
				From: celoCEUR,
				To:   celoCREAL,
				Path: model.SwapPath{Assets: []common.Address{celoCEUR, celoCELO, celoCUSD, celoCREAL}},
			},
			{
				From: celoCREAL,
				To:   celoMOO,
				Path: model.SwapPath{
					Assets:        []common.Address{celoCREAL, celoCUSD, celoCELO, celoMOO},
					UseATokenAsTo: true,
				},
			},
		},
		Labels: map[string]common.Address{
			"mCELO": celoMCELO,
			"mcUSD": celoMCUSD,
			"mcEUR": celoMCEUR,
		},
	},
	NetworkAlfajores: {
		RPCURL:            "https://alfajores-forno.celo-testnet.org",
		AddressesProvider: common.HexToAddress("0xb3072f5F0d5e8B9036aEC29F37baB70E86EA0018"),
		DataProvider:      common.HexToAddress("0x31ccB9dC068058672D96E92BAf96B1607855822E"),
		Router:            common.HexToAddress("0xE3D8bd6Aed4F159bc8000a9cD47CffDb95F96121"),
		Multicall:         multicall3,
		Assets: model.AssetSet{
			{Symbol: "CELO", Address: alfajoresCELO, Decimals: 18},
			{Symbol: "cUSD", Address: alfajoresCUSD, Decimals: 18},
			{Symbol: "cEUR", Address: alfajoresCEUR, Decimals: 18},
		},
		Hubs:   []common.Address{alfajoresCELO, alfajoresCUSD, alfajoresCEUR},
		Labels: map[string]common.Address{},
	},
}
