package pool

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func testSnapshot(ticks []TickData) *Snapshot {
	return &Snapshot{
		Address:      common.HexToAddress("0x8ad599c3A0ff1De082011EFDDc58f1908eb6e6D8"),
		Token0:       common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"),
		Token1:       common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"),
		Symbol0:      "USDC",
		Symbol1:      "WETH",
		Decimals0:    6,
		Decimals1:    18,
		FeePPM:       3000,
		TickSpacing:  60,
		SqrtPriceX96: new(big.Int).Lsh(big.NewInt(1), 96),
		Tick:         0,
		Liquidity:    new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil),
		Ticks:        ticks,
	}
}

func bigE(mant int64, exp int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(mant), new(big.Int).Exp(big.NewInt(10), big.NewInt(exp), nil))
}

// TestSimulateEmptyTickList: a snapshot with no initialized ticks cannot
// resolve any trade; the result is zero output, incomplete, not an error.
func TestSimulateEmptyTickList(t *testing.T) {
	snap := testSnapshot(nil)

	out, diag, err := SimulateSwapExactIn(snap, big.NewInt(1_000_000), true, 50)
	if err != nil {
		t.Fatalf("SimulateSwapExactIn failed: %v", err)
	}
	if out.Sign() != 0 {
		t.Errorf("amountOut = %s, want 0", out)
	}
	if !diag.Incomplete {
		t.Error("expected incomplete simulation")
	}
	if diag.Reason != ReasonNoInitializedTick {
		t.Errorf("reason = %q, want %q", diag.Reason, ReasonNoInitializedTick)
	}
	if diag.AmountConsumed.Sign() != 0 {
		t.Errorf("AmountConsumed = %s, want 0", diag.AmountConsumed)
	}
}

// TestSimulateWithinRange: a small trade resolves inside the current range
// without crossing a tick and consumes the full input.
func TestSimulateWithinRange(t *testing.T) {
	ticks := []TickData{
		{Tick: -600, LiquidityNet: bigE(4, 17)},
		{Tick: 600, LiquidityNet: bigE(-4, 17)},
	}
	snap := testSnapshot(ticks)

	amountIn := big.NewInt(1_000_000)
	out, diag, err := SimulateSwapExactIn(snap, amountIn, true, 50)
	if err != nil {
		t.Fatalf("SimulateSwapExactIn failed: %v", err)
	}
	if diag.Incomplete {
		t.Fatalf("unexpected incomplete: %s", diag.Reason)
	}
	if diag.TicksCrossed != 0 {
		t.Errorf("TicksCrossed = %d, want 0", diag.TicksCrossed)
	}
	if diag.AmountConsumed.Cmp(amountIn) != 0 {
		t.Errorf("AmountConsumed = %s, want %s", diag.AmountConsumed, amountIn)
	}
	if diag.AmountRemaining.Sign() != 0 {
		t.Errorf("AmountRemaining = %s, want 0", diag.AmountRemaining)
	}
	if out.Sign() <= 0 {
		t.Errorf("amountOut = %s, want positive", out)
	}
	// Around price 1 with a 0.3% fee the output is slightly under the input.
	if out.Cmp(amountIn) >= 0 {
		t.Errorf("amountOut %s should be below amountIn %s", out, amountIn)
	}
	// The input snapshot must be untouched.
	if snap.Tick != 0 || snap.Liquidity.Cmp(bigE(1, 18)) != 0 {
		t.Error("snapshot mutated by simulation")
	}
}

// TestSimulateCrossesTick: a trade large enough to push through the -600
// boundary applies exactly -LiquidityNet and lands on tick-1.
func TestSimulateCrossesTick(t *testing.T) {
	ticks := []TickData{
		{Tick: -600, LiquidityNet: bigE(4, 17)},
		{Tick: -1200, LiquidityNet: bigE(1, 17)},
		{Tick: 600, LiquidityNet: bigE(-4, 17)},
	}
	snap := testSnapshot(ticks)
	snap.SortTicks()

	// The range down to -600 absorbs about 3.05e16 of token0; 4e16 pushes
	// through the boundary and finishes inside the next range.
	amountIn := bigE(4, 16)
	out, diag, err := SimulateSwapExactIn(snap, amountIn, true, 50)
	if err != nil {
		t.Fatalf("SimulateSwapExactIn failed: %v", err)
	}
	if diag.Incomplete {
		t.Fatalf("unexpected incomplete: %s", diag.Reason)
	}
	if diag.TicksCrossed != 1 {
		t.Fatalf("TicksCrossed = %d, want 1", diag.TicksCrossed)
	}
	wantLiquidity := new(big.Int).Sub(bigE(1, 18), bigE(4, 17))
	if diag.FinalLiquidity.Cmp(wantLiquidity) != 0 {
		t.Errorf("FinalLiquidity = %s, want %s", diag.FinalLiquidity, wantLiquidity)
	}
	if diag.FinalTick >= -600 {
		t.Errorf("FinalTick = %d, want below the crossed boundary", diag.FinalTick)
	}
	if out.Sign() <= 0 {
		t.Errorf("amountOut = %s, want positive", out)
	}
}

// TestSimulateRunsOutOfTicks: an oversized trade exhausts the fetched window
// and reports incomplete with partial output.
func TestSimulateRunsOutOfTicks(t *testing.T) {
	ticks := []TickData{
		{Tick: -600, LiquidityNet: bigE(4, 17)},
		{Tick: 600, LiquidityNet: bigE(-4, 17)},
	}
	snap := testSnapshot(ticks)

	out, diag, err := SimulateSwapExactIn(snap, bigE(1, 18), true, 50)
	if err != nil {
		t.Fatalf("SimulateSwapExactIn failed: %v", err)
	}
	if !diag.Incomplete {
		t.Fatal("expected incomplete simulation")
	}
	if diag.Reason != ReasonNoInitializedTick {
		t.Errorf("reason = %q, want %q", diag.Reason, ReasonNoInitializedTick)
	}
	if diag.AmountRemaining.Sign() <= 0 {
		t.Errorf("AmountRemaining = %s, want positive leftover", diag.AmountRemaining)
	}
	if out.Sign() <= 0 {
		t.Errorf("amountOut = %s, want positive partial output", out)
	}
}

// TestSimulateCrossingBudget: maxTickCrossings of zero stops the walk at the
// first boundary.
func TestSimulateCrossingBudget(t *testing.T) {
	ticks := []TickData{
		{Tick: -1200, LiquidityNet: bigE(3, 17)},
		{Tick: -600, LiquidityNet: bigE(4, 17)},
		{Tick: 600, LiquidityNet: bigE(-4, 17)},
	}
	snap := testSnapshot(ticks)

	_, diag, err := SimulateSwapExactIn(snap, bigE(1, 18), true, 0)
	if err != nil {
		t.Fatalf("SimulateSwapExactIn failed: %v", err)
	}
	if !diag.Incomplete || diag.Reason != ReasonMaxCrossings {
		t.Errorf("incomplete=%v reason=%q, want budget exhaustion", diag.Incomplete, diag.Reason)
	}
	if diag.TicksCrossed != 1 {
		t.Errorf("TicksCrossed = %d, want 1", diag.TicksCrossed)
	}
}

// TestSimulateMonotonicOutput: more input never yields less output.
func TestSimulateMonotonicOutput(t *testing.T) {
	ticks := []TickData{
		{Tick: -1200, LiquidityNet: bigE(3, 17)},
		{Tick: -600, LiquidityNet: bigE(4, 17)},
		{Tick: 600, LiquidityNet: bigE(-4, 17)},
		{Tick: 1200, LiquidityNet: bigE(-3, 17)},
	}
	snap := testSnapshot(ticks)

	prev := big.NewInt(-1)
	for _, amount := range []*big.Int{
		big.NewInt(1_000),
		big.NewInt(1_000_000),
		bigE(1, 12),
		bigE(1, 15),
		bigE(5, 15),
	} {
		out, _, err := SimulateSwapExactIn(snap, amount, true, 50)
		if err != nil {
			t.Fatalf("SimulateSwapExactIn(%s) failed: %v", amount, err)
		}
		if out.Cmp(prev) < 0 {
			t.Errorf("output decreased: in=%s out=%s prev=%s", amount, out, prev)
		}
		prev = out
	}
}

// TestSimulateBothDirections: the same trade upward moves the final tick the
// other way.
func TestSimulateBothDirections(t *testing.T) {
	ticks := []TickData{
		{Tick: -600, LiquidityNet: bigE(4, 17)},
		{Tick: 600, LiquidityNet: bigE(-4, 17)},
	}
	snap := testSnapshot(ticks)

	_, downDiag, err := SimulateSwapExactIn(snap, big.NewInt(1_000_000), true, 50)
	if err != nil {
		t.Fatalf("down simulation failed: %v", err)
	}
	_, upDiag, err := SimulateSwapExactIn(snap, big.NewInt(1_000_000), false, 50)
	if err != nil {
		t.Fatalf("up simulation failed: %v", err)
	}
	start := new(big.Int).Lsh(big.NewInt(1), 96)
	if downDiag.FinalSqrtPriceX96.Cmp(start) >= 0 {
		t.Error("zeroForOne trade did not lower the price")
	}
	if upDiag.FinalSqrtPriceX96.Cmp(start) <= 0 {
		t.Error("oneForZero trade did not raise the price")
	}
}

func TestSimulateInvalidState(t *testing.T) {
	snap := testSnapshot(nil)
	snap.Liquidity = big.NewInt(0)
	if _, _, err := SimulateSwapExactIn(snap, big.NewInt(1), true, 50); !errors.Is(err, ErrInvalidPoolState) {
		t.Errorf("zero liquidity: err = %v, want ErrInvalidPoolState", err)
	}

	snap = testSnapshot(nil)
	snap.SqrtPriceX96 = nil
	if _, _, err := SimulateSwapExactIn(snap, big.NewInt(1), true, 50); !errors.Is(err, ErrInvalidPoolState) {
		t.Errorf("nil sqrt price: err = %v, want ErrInvalidPoolState", err)
	}
}
