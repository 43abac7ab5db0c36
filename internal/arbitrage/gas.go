package arbitrage

import (
	"math/big"
	"strings"
)

// GasConfig carries the caller-supplied assumptions used to price the
// transaction cost of a two-leg trade. The engine never queries the chain
// itself; gas price and units come from the caller.
type GasConfig struct {
	// GasUnits is the assumed total gas of both legs.
	GasUnits uint64
	// GasPriceWei is the assumed gas price. Nil disables gas accounting.
	GasPriceWei *big.Int
	// NumeraireSymbols are the token symbols treated as the gas currency
	// (typically the wrapped native asset). Matching is case-insensitive.
	NumeraireSymbols []string
	// TradeSizeToken0 is the assumed trade size, in human token0 units,
	// used to express gas as basis points in screen mode.
	TradeSizeToken0 float64
}

// CostWei returns GasUnits * GasPriceWei, or nil when no gas price is set.
func (g GasConfig) CostWei() *big.Int {
	if g.GasPriceWei == nil || g.GasPriceWei.Sign() <= 0 || g.GasUnits == 0 {
		return nil
	}
	return new(big.Int).Mul(new(big.Int).SetUint64(g.GasUnits), g.GasPriceWei)
}

// IsNumeraire reports whether a symbol is configured as the gas currency.
func (g GasConfig) IsNumeraire(symbol string) bool {
	for _, s := range g.NumeraireSymbols {
		if strings.EqualFold(s, symbol) {
			return true
		}
	}
	return false
}

// CostToken0 converts the gas cost into human token0 units. The conversion
// only exists when one side of the pair is the numeraire: if token0 is, the
// cost maps 1:1; if token1 is, it divides by the token1-per-token0 price.
// Otherwise it returns nil and a note explaining why.
func (g GasConfig) CostToken0(symbol0, symbol1 string, priceToken1PerToken0 float64) (*float64, string) {
	costWei := g.CostWei()
	if costWei == nil {
		return nil, "no gas price configured"
	}
	gasNative, _ := new(big.Float).Quo(
		new(big.Float).SetInt(costWei),
		big.NewFloat(1e18),
	).Float64()

	if g.IsNumeraire(symbol0) {
		v := gasNative
		return &v, "ok (token0 is numeraire)"
	}
	if g.IsNumeraire(symbol1) {
		if priceToken1PerToken0 <= 0 {
			return nil, "token1 is numeraire but spot price unavailable"
		}
		// price is token1 per token0, so token0 per numeraire = 1/price.
		v := gasNative / priceToken1PerToken0
		return &v, "ok (token1 is numeraire)"
	}
	return nil, "neither token is a numeraire; cannot convert gas to token0 without an oracle"
}
