package arbitrage

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func reservePool(addr string, r0, r1 int64, feeBps uint32) *ReservePool {
	return &ReservePool{
		Address:  common.HexToAddress(addr),
		Token0:   token0,
		Token1:   token1,
		Reserve0: big.NewInt(r0),
		Reserve1: big.NewInt(r1),
		FeeBps:   feeBps,
	}
}

func TestAmountOutFeeDeduction(t *testing.T) {
	// 30 bps on 10000 leaves 9970 convertible; against deep reserves the
	// quote is just under that.
	out := AmountOut(big.NewInt(10_000), big.NewInt(100_000_000), big.NewInt(100_000_000), 30)
	if out.Cmp(big.NewInt(9970)) > 0 {
		t.Errorf("amountOut = %s, want at most 9970 after fee", out)
	}
	if out.Cmp(big.NewInt(9960)) < 0 {
		t.Errorf("amountOut = %s, too much slippage for deep reserves", out)
	}
}

func TestAmountOutDegenerateInputs(t *testing.T) {
	cases := []struct {
		name                            string
		amountIn, reserveIn, reserveOut *big.Int
	}{
		{"zero amount", big.NewInt(0), big.NewInt(100), big.NewInt(100)},
		{"zero reserve in", big.NewInt(10), big.NewInt(0), big.NewInt(100)},
		{"zero reserve out", big.NewInt(10), big.NewInt(100), big.NewInt(0)},
		{"nil amount", nil, big.NewInt(100), big.NewInt(100)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if out := AmountOut(tc.amountIn, tc.reserveIn, tc.reserveOut, 30); out.Sign() != 0 {
				t.Errorf("amountOut = %s, want 0", out)
			}
		})
	}
}

// TestSimulateCycleIdenticalPools: a round trip through two identical pools
// always loses to fees.
func TestSimulateCycleIdenticalPools(t *testing.T) {
	a := reservePool("0x0000000000000000000000000000000000000F01", 1_000_000, 1_000_000, 30)
	b := reservePool("0x0000000000000000000000000000000000000F02", 1_000_000, 1_000_000, 30)

	for _, start := range []CycleToken{CycleFromToken0, CycleFromToken1} {
		res := SimulateCycle(big.NewInt(1000), a, b, start)
		if res.Profit.Sign() > 0 {
			t.Errorf("start=%s: identical pools produced profit %s", start, res.Profit)
		}
	}
}

// TestScanBestCycleFindsInteriorOptimum reproduces the imbalanced-reserve
// scenario: the scan must find a profitable size strictly inside the scan
// bounds, not pinned at the floor or ceiling.
func TestScanBestCycleFindsInteriorOptimum(t *testing.T) {
	buy := reservePool("0x0000000000000000000000000000000000000F03", 1_000_000, 1_000_000, 30)
	sell := reservePool("0x0000000000000000000000000000000000000F04", 1_010_000, 990_000, 30)

	// The profit peak sits near 0.35% of the buy reserve, so a 1% ceiling
	// keeps it interior.
	cfg := ScanConfig{Steps: 18, MaxFracOfReserve: 0.01}
	best := ScanBestCycle(buy, sell, CycleFromToken0, cfg)

	if best.Profit.Sign() <= 0 {
		t.Fatalf("no profitable size found; best=%+v", best)
	}
	maxIn := big.NewInt(10_000) // 1% of 1_000_000
	minIn := big.NewInt(1)
	if best.AmountIn.Cmp(minIn) <= 0 {
		t.Errorf("best size %s pinned at scan floor", best.AmountIn)
	}
	if best.AmountIn.Cmp(maxIn) >= 0 {
		t.Errorf("best size %s pinned at scan ceiling", best.AmountIn)
	}

	// The reported cycle must be internally consistent.
	replay := SimulateCycle(best.AmountIn, buy, sell, CycleFromToken0)
	if replay.Profit.Cmp(best.Profit) != 0 {
		t.Errorf("replayed profit %s != reported %s", replay.Profit, best.Profit)
	}
}

// TestScanBestCycleNoOpportunity: balanced pools yield the zero result.
func TestScanBestCycleNoOpportunity(t *testing.T) {
	a := reservePool("0x0000000000000000000000000000000000000F05", 1_000_000, 1_000_000, 30)
	b := reservePool("0x0000000000000000000000000000000000000F06", 1_000_000, 1_000_000, 30)

	best := ScanBestCycle(a, b, CycleFromToken0, ScanConfig{})
	if best.Profit.Sign() != 0 || best.AmountIn.Sign() != 0 {
		t.Errorf("expected zero result, got profit=%s amountIn=%s", best.Profit, best.AmountIn)
	}
}

// TestScanStepsFloor: step counts below 6 are raised, never rejected.
func TestScanStepsFloor(t *testing.T) {
	buy := reservePool("0x0000000000000000000000000000000000000F07", 1_000_000, 1_000_000, 30)
	sell := reservePool("0x0000000000000000000000000000000000000F08", 1_010_000, 990_000, 30)

	best := ScanBestCycle(buy, sell, CycleFromToken0, ScanConfig{Steps: 2, MaxFracOfReserve: 0.01})
	if best.Profit.Sign() <= 0 {
		t.Error("even the minimum scan resolution should find the opportunity")
	}
}
