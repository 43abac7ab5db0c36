package arbitrage

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/DorianYoung7702/ChainMonitorV2/internal/amm/pool"
)

// DefaultMaxReported caps the ranked list a screen pass returns.
const DefaultMaxReported = 25

// ScreenConfig tunes the fast screen.
type ScreenConfig struct {
	Gas GasConfig
	// MaxReported truncates the ranked opportunity list. Zero means
	// DefaultMaxReported.
	MaxReported int
}

type pairKey struct {
	token0 common.Address
	token1 common.Address
}

// Screen groups pools by traded pair and ranks every in-group pool pair by
// net spot spread. It reads spot prices only and never runs the simulator,
// so the numbers ignore slippage entirely; use exact mode to validate a
// candidate before acting on it. Malformed pools are skipped with a warning,
// never aborting the pass.
func Screen(pools []*pool.Snapshot, cfg ScreenConfig) *ScreenResult {
	result := &ScreenResult{PoolCount: len(pools)}

	groups := make(map[pairKey][]*pool.Snapshot)
	spots := make(map[common.Address]float64)
	for _, p := range pools {
		if p == nil {
			result.Warnings = append(result.Warnings, "nil pool snapshot skipped")
			continue
		}
		if err := p.Validate(); err != nil {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("pool %s skipped: %v", p.Address.Hex(), err))
			continue
		}
		spot, _ := p.SpotPrice().Float64()
		if spot <= 0 {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("pool %s skipped: non-positive spot price", p.Address.Hex()))
			continue
		}
		spots[p.Address] = spot
		key := pairKey{p.Token0, p.Token1}
		groups[key] = append(groups[key], p)
	}

	for _, group := range groups {
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				opp := screenPair(group[i], group[j], spots, cfg.Gas)
				if opp != nil {
					result.Opportunities = append(result.Opportunities, opp)
				}
			}
		}
	}

	sort.SliceStable(result.Opportunities, func(i, j int) bool {
		return result.Opportunities[i].NetSpreadBps > result.Opportunities[j].NetSpreadBps
	})

	maxReported := cfg.MaxReported
	if maxReported <= 0 {
		maxReported = DefaultMaxReported
	}
	if len(result.Opportunities) > maxReported {
		result.Opportunities = result.Opportunities[:maxReported]
	}
	if len(result.Opportunities) > 0 {
		result.Best = result.Opportunities[0]
	}
	return result
}

// screenPair builds one screen candidate from two same-pair pools.
func screenPair(a, b *pool.Snapshot, spots map[common.Address]float64, gas GasConfig) *Opportunity {
	pa, pb := spots[a.Address], spots[b.Address]

	low, high := a, b
	pLow, pHigh := pa, pb
	if pa > pb {
		low, high = b, a
		pLow, pHigh = pb, pa
	}

	grossBps := (pHigh - pLow) / pLow * 10000.0
	feeTotalBps := FeeToBps(low.FeePPM) + FeeToBps(high.FeePPM)

	gasToken0, gasNote := gas.CostToken0(low.Symbol0, low.Symbol1, pLow)
	var gasBps *float64
	if gasToken0 != nil && gas.TradeSizeToken0 > 0 {
		v := *gasToken0 / gas.TradeSizeToken0 * 10000.0
		gasBps = &v
	}

	netNoGas := grossBps - feeTotalBps
	net := netNoGas
	if gasBps != nil {
		net -= *gasBps
	}

	return &Opportunity{
		Strategy:          StrategyScreen,
		PairToken0:        low.Token0,
		PairToken1:        low.Token1,
		Symbol0:           low.Symbol0,
		Symbol1:           low.Symbol1,
		BuyPool:           low.Address,
		SellPool:          high.Address,
		BuyFeePPM:         low.FeePPM,
		SellFeePPM:        high.FeePPM,
		BuyLiquidity:      low.Liquidity,
		SellLiquidity:     high.Liquidity,
		SpotBuyPrice:      pLow,
		SpotSellPrice:     pHigh,
		GrossSpreadBps:    grossBps,
		FeeTotalBps:       feeTotalBps,
		NetSpreadBps:      net,
		NetSpreadBpsNoGas: netNoGas,
		GasBps:            gasBps,
		GasUnits:          gas.GasUnits,
		GasPriceWei:       gas.GasPriceWei,
		GasCostWei:        gas.CostWei(),
		GasCostToken0:     gasToken0,
		GasNote:           gasNote,
		TradeSizeToken0:   gas.TradeSizeToken0,
	}
}

// FeeToBps converts a parts-per-million pool fee to basis points
// (3000 ppm = 0.3% = 30 bps).
func FeeToBps(feePPM uint32) float64 {
	return float64(feePPM) / 100.0
}
