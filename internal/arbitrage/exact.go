package arbitrage

import (
	"errors"
	"math"
	"math/big"

	"github.com/DorianYoung7702/ChainMonitorV2/internal/amm/pool"
)

// ErrTokenMismatch marks a pool pair whose token identities differ; such
// pairs are rejected explicitly rather than skipped.
var ErrTokenMismatch = errors.New("arbitrage: pool pair trades different tokens")

// Non-executable reasons reported by EvaluateExact.
const (
	ReasonBuyLegFailed  = "buy leg incomplete or zero output"
	ReasonSellLegFailed = "sell leg incomplete or zero output"
)

// ExactConfig tunes the deep evaluation of one pool pair.
type ExactConfig struct {
	// TradeSizeToken0 is the simulated trade size in human token0 units.
	TradeSizeToken0 float64
	// MaxTickCrossings bounds each leg's tick walk.
	MaxTickCrossings int
	Gas              GasConfig
}

// DefaultMaxTickCrossings bounds a single simulated leg.
const DefaultMaxTickCrossings = 80

// EvaluateExact runs the full tick-level two-leg simulation over one pool
// pair: buy token1 with token0 on the lower-priced pool, sell it back on the
// higher-priced one, feeding leg one's output into leg two. Token0 is the
// accounting unit throughout.
//
// A leg that ends incomplete or with zero output yields Executable=false
// with a reason and whatever diagnostics were produced; that is a result,
// not an error. Errors are reserved for mismatched pairs and invalid pool
// state.
func EvaluateExact(a, b *pool.Snapshot, cfg ExactConfig) (*Opportunity, error) {
	if a == nil || b == nil {
		return nil, pool.ErrInvalidPoolState
	}
	if !a.SamePair(b) {
		return nil, ErrTokenMismatch
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}

	spotA, _ := a.SpotPrice().Float64()
	spotB, _ := b.SpotPrice().Float64()

	buy, sell := a, b
	lowSpot, highSpot := spotA, spotB
	if spotA > spotB {
		buy, sell = b, a
		lowSpot, highSpot = spotB, spotA
	}

	maxCross := cfg.MaxTickCrossings
	if maxCross <= 0 {
		maxCross = DefaultMaxTickCrossings
	}

	amount0In := toRaw(cfg.TradeSizeToken0, buy.Decimals0)
	if amount0In.Sign() <= 0 {
		return nil, errors.New("arbitrage: trade size must be positive")
	}

	opp := &Opportunity{
		Strategy:        StrategyExact,
		PairToken0:      buy.Token0,
		PairToken1:      buy.Token1,
		Symbol0:         buy.Symbol0,
		Symbol1:         buy.Symbol1,
		BuyPool:         buy.Address,
		SellPool:        sell.Address,
		BuyFeePPM:       buy.FeePPM,
		SellFeePPM:      sell.FeePPM,
		SpotBuyPrice:    lowSpot,
		SpotSellPrice:   highSpot,
		TradeSizeToken0: cfg.TradeSizeToken0,
		Amount0InRaw:    amount0In,
		GasUnits:        cfg.Gas.GasUnits,
		GasPriceWei:     cfg.Gas.GasPriceWei,
		GasCostWei:      cfg.Gas.CostWei(),
	}
	if lowSpot > 0 {
		opp.GrossSpreadBps = (highSpot - lowSpot) / lowSpot * 10000.0
	}
	opp.FeeTotalBps = FeeToBps(buy.FeePPM) + FeeToBps(sell.FeePPM)

	// Leg 1: token0 -> token1 on the buy pool.
	amount1Out, buyDiag, err := pool.SimulateSwapExactIn(buy, amount0In, true, maxCross)
	if err != nil {
		return nil, err
	}
	opp.BuyLeg = buyDiag
	if amount1Out.Sign() <= 0 || buyDiag.Incomplete {
		opp.Executable = false
		opp.Reason = ReasonBuyLegFailed
		return opp, nil
	}
	opp.Amount1OutRaw = amount1Out

	// Leg 2: token1 -> token0 on the sell pool, consuming leg 1's output.
	amount0Out, sellDiag, err := pool.SimulateSwapExactIn(sell, amount1Out, false, maxCross)
	if err != nil {
		return nil, err
	}
	opp.SellLeg = sellDiag
	if amount0Out.Sign() <= 0 || sellDiag.Incomplete {
		opp.Executable = false
		opp.Reason = ReasonSellLegFailed
		opp.Amount0OutRaw = amount0Out
		return opp, nil
	}
	opp.Amount0OutRaw = amount0Out

	// Humanized accounting in token0.
	in0 := fromRaw(amount0In, buy.Decimals0)
	out1 := fromRaw(amount1Out, buy.Decimals1)
	out0 := fromRaw(amount0Out, buy.Decimals0)
	opp.Amount0In = in0
	opp.Amount1Out = out1
	opp.Amount0Out = out0

	opp.ProfitToken0 = out0 - in0
	if in0 > 0 {
		opp.GrossReturnBps = opp.ProfitToken0 / in0 * 10000.0
	}
	opp.NetSpreadBpsNoGas = opp.GrossReturnBps
	opp.NetSpreadBps = opp.GrossReturnBps

	// Effective post-slippage prices, token1 per token0.
	if in0 > 0 {
		effBuy := out1 / in0
		opp.EffectiveBuyPrice = &effBuy
	}
	if out1 > 0 {
		effSell := out0 / out1
		if effSell > 0 {
			inv := 1.0 / effSell
			opp.EffectiveSellPrice = &inv
		}
	}

	// Gas, when convertible into token0 terms.
	gasToken0, gasNote := cfg.Gas.CostToken0(buy.Symbol0, buy.Symbol1, lowSpot)
	opp.GasNote = gasNote
	opp.GasCostToken0 = gasToken0
	if gasToken0 != nil && in0 > 0 {
		gasBps := *gasToken0 / in0 * 10000.0
		opp.GasBps = &gasBps
		opp.NetSpreadBps = opp.GrossReturnBps - gasBps
		afterGas := opp.ProfitToken0 - *gasToken0
		profitable := afterGas > 0
		opp.ProfitAfterGasToken0 = &afterGas
		opp.ProfitableAfterGas = &profitable
	}

	opp.Executable = true
	return opp, nil
}

// toRaw converts a human token amount into raw integer units.
func toRaw(amount float64, decimals int) *big.Int {
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return big.NewInt(0)
	}
	f := new(big.Float).SetPrec(128).SetFloat64(amount)
	scale := new(big.Float).SetPrec(128).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	f.Mul(f, scale)
	raw, _ := f.Int(nil)
	return raw
}

// fromRaw converts raw integer units back into a human amount.
func fromRaw(raw *big.Int, decimals int) float64 {
	if raw == nil {
		return 0
	}
	f := new(big.Float).SetPrec(128).SetInt(raw)
	scale := new(big.Float).SetPrec(128).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	out, _ := f.Quo(f, scale).Float64()
	return out
}
