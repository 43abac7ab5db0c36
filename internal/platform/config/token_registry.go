package config

import "strings"

// TokenInfo contains token metadata used when on-chain lookups are
// unavailable or cached
type TokenInfo struct {
	Symbol       string // Token symbol (WETH, WBTC, USDC, etc.)
	Address      string // Ethereum mainnet address
	Decimals     int    // Token decimals (18 for WETH, 8 for WBTC, 6 for USDC)
	IsStablecoin bool   // Whether this is a stablecoin
}

// TokenRegistry maps token symbols to their on-chain information
// This is a hardcoded registry of well-known tokens on Ethereum mainnet
var TokenRegistry = map[string]TokenInfo{
	"WETH": {
		Symbol:       "WETH",
		Address:      "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
		Decimals:     18,
		IsStablecoin: false,
	},
	"WBTC": {
		Symbol:       "WBTC",
		Address:      "0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599",
		Decimals:     8,
		IsStablecoin: false,
	},
	"LINK": {
		Symbol:       "LINK",
		Address:      "0x514910771AF9Ca656af840dff83E8264EcF986CA",
		Decimals:     18,
		IsStablecoin: false,
	},
	"UNI": {
		Symbol:       "UNI",
		Address:      "0x1f9840a85d5aF5bf1D1762F925BDADdC4201F984",
		Decimals:     18,
		IsStablecoin: false,
	},
	"AAVE": {
		Symbol:       "AAVE",
		Address:      "0x7Fc66500c84A76Ad7e9c93437bFc5Ac33E2DDaE9",
		Decimals:     18,
		IsStablecoin: false,
	},
	"USDC": {
		Symbol:       "USDC",
		Address:      "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
		Decimals:     6,
		IsStablecoin: true,
	},
	"USDT": {
		Symbol:       "USDT",
		Address:      "0xdAC17F958D2ee523a2206206994597C13D831ec7",
		Decimals:     6,
		IsStablecoin: true,
	},
	"DAI": {
		Symbol:       "DAI",
		Address:      "0x6B175474E89094C44Da98b954EedeAC495271d0F",
		Decimals:     18,
		IsStablecoin: true,
	},
}

// LookupByAddress finds a registered token by its mainnet address,
// case-insensitively. The second return is false for unknown tokens.
func LookupByAddress(address string) (TokenInfo, bool) {
	for _, info := range TokenRegistry {
		if strings.EqualFold(info.Address, address) {
			return info, true
		}
	}
	return TokenInfo{}, false
}

// LookupBySymbol finds a registered token by symbol, case-insensitively.
func LookupBySymbol(symbol string) (TokenInfo, bool) {
	info, ok := TokenRegistry[strings.ToUpper(symbol)]
	return info, ok
}
