// Package arbitrage searches pool pairs for price discrepancies and
// quantifies the expected profit of closing them. Three strategies are
// exposed, selected explicitly by the caller: a cheap spot-price screen, an
// exact tick-level two-leg simulation, and a constant-product cycle scan for
// reserve-based pools.
package arbitrage

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/DorianYoung7702/ChainMonitorV2/internal/amm/pool"
)

// Strategy selects how a pool pair is evaluated.
type Strategy int

const (
	// StrategyScreen ranks pairs by spot-price spread alone. No simulation,
	// no slippage; a pre-filter.
	StrategyScreen Strategy = iota
	// StrategyExact runs the tick-walking simulator over both legs.
	StrategyExact
	// StrategyConstantProduct scans trade sizes over a reserve-based cycle.
	StrategyConstantProduct
)

func (s Strategy) String() string {
	switch s {
	case StrategyScreen:
		return "screen"
	case StrategyExact:
		return "exact"
	case StrategyConstantProduct:
		return "constant_product"
	default:
		return "unknown"
	}
}

// MarshalJSON implements JSON marshaling for Strategy
func (s Strategy) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Opportunity is one quantified arbitrage candidate between two pools of the
// same pair. Screen-mode results carry spot and bps fields only; exact-mode
// results add trade amounts, effective prices and leg diagnostics. Every
// field survives JSON encoding so persisted records stay lossless.
type Opportunity struct {
	Strategy Strategy `json:"strategy"`

	// Pair identity. Token order follows the pools' internal ordering.
	PairToken0 common.Address `json:"pair_token0"`
	PairToken1 common.Address `json:"pair_token1"`
	Symbol0    string         `json:"symbol0"`
	Symbol1    string         `json:"symbol1"`

	// Chosen route: buy on the lower-priced pool, sell on the higher.
	BuyPool    common.Address `json:"buy_pool"`
	SellPool   common.Address `json:"sell_pool"`
	BuyFeePPM  uint32         `json:"buy_fee"`
	SellFeePPM uint32         `json:"sell_fee"`

	// Liquidity at evaluation time, reported for ranking context.
	BuyLiquidity  *big.Int `json:"buy_liquidity,omitempty"`
	SellLiquidity *big.Int `json:"sell_liquidity,omitempty"`

	// Spot prices (token1 per token0, decimal-adjusted) and the spreads
	// derived from them.
	SpotBuyPrice   float64 `json:"spot_buy_price_token1_per_token0"`
	SpotSellPrice  float64 `json:"spot_sell_price_token1_per_token0"`
	GrossSpreadBps float64 `json:"gross_spread_bps"`
	FeeTotalBps    float64 `json:"fee_total_bps"`

	// Net spread after fees, with and without the gas estimate. GasBps is
	// nil when gas could not be converted into token0 terms.
	NetSpreadBps      float64  `json:"net_spread_bps"`
	NetSpreadBpsNoGas float64  `json:"net_spread_bps_without_gas"`
	GasBps            *float64 `json:"gas_bps,omitempty"`

	// Exact-mode trade results, in token0 accounting. Raw amounts carry
	// full integer precision; human amounts are decimal-adjusted.
	TradeSizeToken0 float64  `json:"trade_size_token0,omitempty"`
	Amount0InRaw    *big.Int `json:"amount0_in_raw,omitempty"`
	Amount1OutRaw   *big.Int `json:"amount1_out_raw,omitempty"`
	Amount0OutRaw   *big.Int `json:"amount0_out_raw,omitempty"`
	Amount0In       float64  `json:"amount0_in_token0,omitempty"`
	Amount1Out      float64  `json:"amount1_out_token1,omitempty"`
	Amount0Out      float64  `json:"amount0_out_token0,omitempty"`

	// Effective (post-slippage) prices, token1 per token0. Nil when the
	// corresponding leg produced no output.
	EffectiveBuyPrice  *float64 `json:"effective_buy_price_token1_per_token0,omitempty"`
	EffectiveSellPrice *float64 `json:"effective_sell_price_token1_per_token0,omitempty"`

	// Profitability in token0 terms.
	ProfitToken0         float64  `json:"profit_token0,omitempty"`
	GrossReturnBps       float64  `json:"gross_return_bps,omitempty"`
	ProfitAfterGasToken0 *float64 `json:"profit_after_gas_token0,omitempty"`
	ProfitableAfterGas   *bool    `json:"is_profitable_after_gas,omitempty"`

	// Gas assumptions used for the estimate.
	GasUnits      uint64   `json:"gas_units,omitempty"`
	GasPriceWei   *big.Int `json:"gas_price_wei,omitempty"`
	GasCostWei    *big.Int `json:"gas_cost_wei,omitempty"`
	GasCostToken0 *float64 `json:"gas_cost_token0,omitempty"`
	GasNote       string   `json:"gas_conversion_note,omitempty"`

	// Executability. Screen-mode candidates are never marked executable;
	// exact-mode candidates are executable only when both legs resolved
	// completely.
	Executable bool   `json:"executable"`
	Reason     string `json:"reason,omitempty"`

	// Per-leg simulator diagnostics, present in exact mode even when a leg
	// failed to resolve.
	BuyLeg  *pool.SwapDiagnostics `json:"buy_leg,omitempty"`
	SellLeg *pool.SwapDiagnostics `json:"sell_leg,omitempty"`
}

// ScreenResult is the output of one screen pass: ranked candidates, the top
// pick, and warnings for pools skipped as malformed.
type ScreenResult struct {
	PoolCount     int            `json:"pool_count"`
	Opportunities []*Opportunity `json:"opportunities"`
	Best          *Opportunity   `json:"best,omitempty"`
	Warnings      []string       `json:"warnings,omitempty"`
}

// BatchResult is the output of one evaluator run over a pool set.
type BatchResult struct {
	PoolCount     int            `json:"pool_count"`
	PairsTried    int            `json:"pairs_tried"`
	Opportunities []*Opportunity `json:"opportunities"`
	Best          *Opportunity   `json:"best,omitempty"`
	Warnings      []string       `json:"warnings,omitempty"`
}
