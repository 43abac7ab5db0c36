package arbitrage

import (
	"errors"
	"math"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/DorianYoung7702/ChainMonitorV2/internal/amm/pool"
)

// deepSnapshot builds a snapshot with a wide initialized range around the
// given price so both legs of a modest trade resolve without running out of
// ticks.
func deepSnapshot(addr string, price float64, feePPM uint32) *pool.Snapshot {
	snap := snapshotAtPrice(addr, price, feePPM)
	snap.Liquidity = new(big.Int).Exp(big.NewInt(10), big.NewInt(24), nil)
	snap.Ticks = []pool.TickData{
		{Tick: -600000, LiquidityNet: new(big.Int).Set(snap.Liquidity)},
		{Tick: 600000, LiquidityNet: new(big.Int).Neg(snap.Liquidity)},
	}
	return snap
}

func TestEvaluateExactTokenMismatch(t *testing.T) {
	a := deepSnapshot("0x0000000000000000000000000000000000000E01", 100.0, 3000)
	b := deepSnapshot("0x0000000000000000000000000000000000000E02", 100.0, 3000)
	b.Token1 = common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")

	_, err := EvaluateExact(a, b, ExactConfig{TradeSizeToken0: 1})
	if !errors.Is(err, ErrTokenMismatch) {
		t.Errorf("err = %v, want ErrTokenMismatch", err)
	}
}

// TestEvaluateExactIdenticalPools: the round trip through two identical
// pools pays two fees and rounding; profit is never positive.
func TestEvaluateExactIdenticalPools(t *testing.T) {
	a := deepSnapshot("0x0000000000000000000000000000000000000E03", 100.0, 3000)
	b := deepSnapshot("0x0000000000000000000000000000000000000E04", 100.0, 3000)

	opp, err := EvaluateExact(a, b, ExactConfig{TradeSizeToken0: 1.0})
	if err != nil {
		t.Fatalf("EvaluateExact failed: %v", err)
	}
	if !opp.Executable {
		t.Fatalf("expected executable result, reason=%q", opp.Reason)
	}
	if opp.ProfitToken0 >= 0 {
		t.Errorf("identical pools produced profit %g, want negative", opp.ProfitToken0)
	}
	// Two 0.3% fees dominate; the loss should be near 60 bps of the input.
	if opp.GrossReturnBps > -55 || opp.GrossReturnBps < -70 {
		t.Errorf("gross return = %.2f bps, want roughly -60", opp.GrossReturnBps)
	}
}

// TestEvaluateExactFullTrade checks the complete accounting of one deep
// evaluation: route selection, amounts, effective prices, and diagnostics.
func TestEvaluateExactFullTrade(t *testing.T) {
	low := deepSnapshot("0x0000000000000000000000000000000000000E05", 100.0, 3000)
	high := deepSnapshot("0x0000000000000000000000000000000000000E06", 101.0, 3000)

	opp, err := EvaluateExact(high, low, ExactConfig{TradeSizeToken0: 1.0})
	if err != nil {
		t.Fatalf("EvaluateExact failed: %v", err)
	}

	if opp.BuyPool != low.Address || opp.SellPool != high.Address {
		t.Error("buy pool should be the lower-spot pool")
	}
	if !opp.Executable {
		t.Fatalf("expected executable result, reason=%q", opp.Reason)
	}
	if opp.BuyLeg == nil || opp.SellLeg == nil {
		t.Fatal("missing leg diagnostics")
	}

	// token0 -> token1 at ~100, then token1 -> token0 at ~101, two 0.3%
	// fees: out0/in0 ~= (100/101) * 0.997^2.
	wantRatio := 100.0 / 101.0 * 0.997 * 0.997
	gotRatio := opp.Amount0Out / opp.Amount0In
	if math.Abs(gotRatio-wantRatio) > 0.002 {
		t.Errorf("round-trip ratio = %.5f, want ~%.5f", gotRatio, wantRatio)
	}
	if math.Abs(opp.ProfitToken0-(opp.Amount0Out-opp.Amount0In)) > 1e-12 {
		t.Error("profit does not equal out minus in")
	}

	if opp.EffectiveBuyPrice == nil || opp.EffectiveSellPrice == nil {
		t.Fatal("missing effective prices")
	}
	// Effective buy price trails spot by the fee.
	if *opp.EffectiveBuyPrice >= opp.SpotBuyPrice {
		t.Errorf("effective buy price %.4f should be below spot %.4f",
			*opp.EffectiveBuyPrice, opp.SpotBuyPrice)
	}
}

// TestEvaluateExactIncompleteLeg: an empty tick window yields a
// non-executable result with diagnostics, not an error.
func TestEvaluateExactIncompleteLeg(t *testing.T) {
	low := deepSnapshot("0x0000000000000000000000000000000000000E07", 100.0, 3000)
	low.Ticks = nil
	high := deepSnapshot("0x0000000000000000000000000000000000000E08", 101.0, 3000)

	opp, err := EvaluateExact(low, high, ExactConfig{TradeSizeToken0: 1.0})
	if err != nil {
		t.Fatalf("EvaluateExact failed: %v", err)
	}
	if opp.Executable {
		t.Error("expected non-executable result")
	}
	if opp.Reason != ReasonBuyLegFailed {
		t.Errorf("reason = %q, want %q", opp.Reason, ReasonBuyLegFailed)
	}
	if opp.BuyLeg == nil || !opp.BuyLeg.Incomplete {
		t.Error("expected buy leg diagnostics marked incomplete")
	}
	if opp.SellLeg != nil {
		t.Error("sell leg should not have run after the buy leg failed")
	}
}

// TestEvaluateExactGasAccounting: the numeraire conversion flows into net
// spread and after-gas profit.
func TestEvaluateExactGasAccounting(t *testing.T) {
	low := deepSnapshot("0x0000000000000000000000000000000000000E09", 100.0, 3000)
	high := deepSnapshot("0x0000000000000000000000000000000000000E0A", 101.0, 3000)

	cfg := ExactConfig{
		TradeSizeToken0: 1.0,
		Gas: GasConfig{
			GasUnits:         320_000,
			GasPriceWei:      big.NewInt(20_000_000_000),
			NumeraireSymbols: []string{"WETH"},
		},
	}
	opp, err := EvaluateExact(low, high, cfg)
	if err != nil {
		t.Fatalf("EvaluateExact failed: %v", err)
	}
	if !opp.Executable {
		t.Fatalf("expected executable result, reason=%q", opp.Reason)
	}
	if opp.GasCostToken0 == nil || opp.GasBps == nil {
		t.Fatalf("gas not converted: note=%q", opp.GasNote)
	}
	if opp.ProfitAfterGasToken0 == nil || opp.ProfitableAfterGas == nil {
		t.Fatal("missing after-gas profitability")
	}
	wantAfterGas := opp.ProfitToken0 - *opp.GasCostToken0
	if math.Abs(*opp.ProfitAfterGasToken0-wantAfterGas) > 1e-12 {
		t.Error("after-gas profit does not equal profit minus gas")
	}
	if math.Abs(opp.NetSpreadBps-(opp.GrossReturnBps-*opp.GasBps)) > 1e-9 {
		t.Error("net spread does not equal gross return minus gas bps")
	}
}
