package arbitrage

import (
	"context"
	"math/big"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/DorianYoung7702/ChainMonitorV2/internal/amm/pool"
)

// fakeSource hands out progressively deeper snapshots, mimicking a refetch
// with a wider tick window.
type fakeSource struct {
	calls      atomic.Int32
	lastWindow atomic.Int32
}

func (f *fakeSource) FetchPair(ctx context.Context, a, b common.Address, tickWindow int) (*pool.Snapshot, *pool.Snapshot, error) {
	f.calls.Add(1)
	f.lastWindow.Store(int32(tickWindow))
	sa := deepSnapshot(a.Hex(), 100.0, 3000)
	sb := deepSnapshot(b.Hex(), 101.0, 3000)
	return sa, sb, nil
}

func TestEvaluatorScreenStrategy(t *testing.T) {
	e := NewEvaluator(EvaluatorConfig{Strategy: StrategyScreen})
	pools := []*pool.Snapshot{
		snapshotAtPrice("0x0000000000000000000000000000000000001101", 100.0, 3000),
		snapshotAtPrice("0x0000000000000000000000000000000000001102", 101.0, 3000),
	}

	result := e.Run(context.Background(), pools)
	if len(result.Opportunities) != 1 {
		t.Fatalf("got %d opportunities, want 1", len(result.Opportunities))
	}
	if result.Opportunities[0].Strategy != StrategyScreen {
		t.Error("screen strategy should produce screen opportunities")
	}
	if result.Best == nil {
		t.Error("missing best pick")
	}
}

func TestEvaluatorExactStrategy(t *testing.T) {
	e := NewEvaluator(EvaluatorConfig{
		Strategy: StrategyExact,
		Exact:    ExactConfig{TradeSizeToken0: 1.0},
	})
	pools := []*pool.Snapshot{
		deepSnapshot("0x0000000000000000000000000000000000001201", 100.0, 3000),
		deepSnapshot("0x0000000000000000000000000000000000001202", 101.0, 3000),
	}

	result := e.Run(context.Background(), pools)
	if result.PairsTried != 1 {
		t.Fatalf("pairs tried = %d, want 1", result.PairsTried)
	}
	if len(result.Opportunities) != 1 {
		t.Fatalf("got %d opportunities, want 1", len(result.Opportunities))
	}
	opp := result.Opportunities[0]
	if !opp.Executable {
		t.Errorf("expected executable result, reason=%q", opp.Reason)
	}
	if opp.Strategy != StrategyExact {
		t.Error("exact strategy should produce exact opportunities")
	}
}

// TestEvaluatorWidenAndRetry: a pair whose legs cannot resolve in the fetched
// window is refetched with a doubled window until it resolves.
func TestEvaluatorWidenAndRetry(t *testing.T) {
	src := &fakeSource{}
	e := NewEvaluator(EvaluatorConfig{
		Strategy:          StrategyExact,
		Exact:             ExactConfig{TradeSizeToken0: 1.0},
		Source:            src,
		InitialTickWindow: 100,
		MaxWindowRetries:  2,
	})

	// Empty tick windows: both legs incomplete on first evaluation.
	shallow1 := deepSnapshot("0x0000000000000000000000000000000000001301", 100.0, 3000)
	shallow1.Ticks = nil
	shallow2 := deepSnapshot("0x0000000000000000000000000000000000001302", 101.0, 3000)
	shallow2.Ticks = nil

	result := e.Run(context.Background(), []*pool.Snapshot{shallow1, shallow2})
	if len(result.Opportunities) != 1 {
		t.Fatalf("got %d opportunities, want 1", len(result.Opportunities))
	}
	opp := result.Opportunities[0]
	if !opp.Executable {
		t.Errorf("expected retry to resolve the pair, reason=%q", opp.Reason)
	}
	if src.calls.Load() != 1 {
		t.Errorf("source called %d times, want 1 (first refetch resolves)", src.calls.Load())
	}
	if src.lastWindow.Load() != 200 {
		t.Errorf("refetch window = %d, want doubled initial window 200", src.lastWindow.Load())
	}
}

func TestEvaluatorPairCap(t *testing.T) {
	e := NewEvaluator(EvaluatorConfig{
		Strategy: StrategyExact,
		Exact:    ExactConfig{TradeSizeToken0: 1.0},
		MaxPairs: 2,
	})
	pools := []*pool.Snapshot{
		deepSnapshot("0x0000000000000000000000000000000000001401", 100.0, 3000),
		deepSnapshot("0x0000000000000000000000000000000000001402", 100.5, 3000),
		deepSnapshot("0x0000000000000000000000000000000000001403", 101.0, 3000),
	}

	result := e.Run(context.Background(), pools)
	if result.PairsTried != 2 {
		t.Errorf("pairs tried = %d, want cap of 2", result.PairsTried)
	}
	capped := false
	for _, w := range result.Warnings {
		if w != "" {
			capped = true
		}
	}
	if !capped {
		t.Error("expected a warning about the pair cap")
	}
}

func TestEvaluatorRunReserves(t *testing.T) {
	e := NewEvaluator(EvaluatorConfig{Strategy: StrategyConstantProduct})
	pools := []*ReservePool{
		reservePool("0x0000000000000000000000000000000000001501", 1_000_000, 1_000_000, 30),
		reservePool("0x0000000000000000000000000000000000001502", 1_010_000, 990_000, 30),
	}

	results := e.RunReserves(context.Background(), pools, ScanConfig{Steps: 18, MaxFracOfReserve: 0.01})
	if len(results) != 1 {
		t.Fatalf("got %d cycle results, want 1", len(results))
	}
	if results[0].Profit.Sign() <= 0 {
		t.Errorf("best cycle profit = %s, want positive", results[0].Profit)
	}
	if results[0].AmountIn.Cmp(big.NewInt(0)) <= 0 {
		t.Error("best cycle has no trade size")
	}
}
