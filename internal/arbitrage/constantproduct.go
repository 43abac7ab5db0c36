package arbitrage

import (
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ReservePool is a constant-product (x*y=k) pool snapshot: just the two
// reserves, no tick structure.
type ReservePool struct {
	Address  common.Address `json:"pool"`
	Token0   common.Address `json:"token0"`
	Token1   common.Address `json:"token1"`
	Reserve0 *big.Int       `json:"reserve0"`
	Reserve1 *big.Int       `json:"reserve1"`
	FeeBps   uint32         `json:"fee_bps"`
}

// AmountOut is the constant-product quote with fee taken off the input:
// out = floor(amountInAfterFee * reserveOut / (reserveIn + amountInAfterFee))
// with amountInAfterFee = floor(amountIn * (10000-feeBps) / 10000).
// Degenerate inputs return zero rather than an error.
func AmountOut(amountIn, reserveIn, reserveOut *big.Int, feeBps uint32) *big.Int {
	if amountIn == nil || reserveIn == nil || reserveOut == nil {
		return big.NewInt(0)
	}
	if amountIn.Sign() <= 0 || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return big.NewInt(0)
	}
	afterFee := new(big.Int).Mul(amountIn, big.NewInt(int64(10000-feeBps)))
	afterFee.Div(afterFee, big.NewInt(10000))
	if afterFee.Sign() <= 0 {
		return big.NewInt(0)
	}
	num := new(big.Int).Mul(afterFee, reserveOut)
	den := new(big.Int).Add(reserveIn, afterFee)
	return num.Div(num, den)
}

// CycleToken identifies which asset a constant-product cycle starts from.
type CycleToken int

const (
	CycleFromToken0 CycleToken = iota
	CycleFromToken1
)

func (c CycleToken) String() string {
	if c == CycleFromToken0 {
		return "token0"
	}
	return "token1"
}

// CycleResult is the outcome of one simulated two-leg constant-product
// cycle, denominated in the start token.
type CycleResult struct {
	StartToken CycleToken `json:"start_token"`
	AmountIn   *big.Int   `json:"amount_in"`
	AmountMid  *big.Int   `json:"amount_mid"`
	AmountOut  *big.Int   `json:"amount_out"`
	Profit     *big.Int   `json:"profit"`
}

// SimulateCycle runs one round trip for a fixed trade size: start-token in on
// the buy pool, intermediate asset across to the sell pool, start-token back
// out. Profit is out minus in and may be negative.
func SimulateCycle(amountIn *big.Int, buy, sell *ReservePool, start CycleToken) *CycleResult {
	res := &CycleResult{
		StartToken: start,
		AmountIn:   amountIn,
		AmountMid:  big.NewInt(0),
		AmountOut:  big.NewInt(0),
		Profit:     big.NewInt(0),
	}
	if buy == nil || sell == nil || amountIn == nil || amountIn.Sign() <= 0 {
		return res
	}

	var mid, out *big.Int
	if start == CycleFromToken0 {
		mid = AmountOut(amountIn, buy.Reserve0, buy.Reserve1, buy.FeeBps)
		if mid.Sign() <= 0 {
			return res
		}
		out = AmountOut(mid, sell.Reserve1, sell.Reserve0, sell.FeeBps)
	} else {
		mid = AmountOut(amountIn, buy.Reserve1, buy.Reserve0, buy.FeeBps)
		if mid.Sign() <= 0 {
			return res
		}
		out = AmountOut(mid, sell.Reserve0, sell.Reserve1, sell.FeeBps)
	}

	res.AmountMid = mid
	res.AmountOut = out
	if out.Sign() > 0 {
		res.Profit = new(big.Int).Sub(out, amountIn)
	}
	return res
}

// ScanConfig tunes the geometric trade-size scan.
type ScanConfig struct {
	// Steps is the number of scan points; values under 6 are raised to 6.
	Steps int
	// MaxFracOfReserve caps the trade at this fraction of the buy pool's
	// input-side reserve, keeping the scan inside economically meaningful
	// sizes. Zero means DefaultMaxFracOfReserve.
	MaxFracOfReserve float64
}

const (
	// DefaultScanSteps matches the usual scan resolution.
	DefaultScanSteps = 18
	// DefaultMaxFracOfReserve caps trades at 0.3% of the input reserve.
	DefaultMaxFracOfReserve = 0.003
)

// ScanBestCycle searches for the profit-maximizing trade size by evaluating
// the cycle at points spaced geometrically between max(1, ceiling/10000) and
// the ceiling. A coarse geometric sweep covers the magnitude range without
// calculus; it is a deliberate bounded heuristic, not a closed-form optimum.
// The zero CycleResult (profit 0, amount 0) means no profitable size was
// found.
func ScanBestCycle(buy, sell *ReservePool, start CycleToken, cfg ScanConfig) *CycleResult {
	best := &CycleResult{
		StartToken: start,
		AmountIn:   big.NewInt(0),
		AmountMid:  big.NewInt(0),
		AmountOut:  big.NewInt(0),
		Profit:     big.NewInt(0),
	}
	if buy == nil || sell == nil {
		return best
	}

	steps := cfg.Steps
	if steps < 6 {
		steps = 6
	}
	maxFrac := cfg.MaxFracOfReserve
	if maxFrac <= 0 {
		maxFrac = DefaultMaxFracOfReserve
	}

	reserveIn := buy.Reserve0
	if start == CycleFromToken1 {
		reserveIn = buy.Reserve1
	}
	if reserveIn == nil || reserveIn.Sign() <= 0 {
		return best
	}

	maxInF := new(big.Float).Mul(new(big.Float).SetInt(reserveIn), big.NewFloat(maxFrac))
	maxIn, _ := maxInF.Int(nil)
	if maxIn.Sign() <= 0 {
		return best
	}
	minIn := new(big.Int).Div(maxIn, big.NewInt(10000))
	if minIn.Sign() <= 0 {
		minIn = big.NewInt(1)
	}

	minF, _ := new(big.Float).SetInt(minIn).Float64()
	maxF, _ := new(big.Float).SetInt(maxIn).Float64()
	logSpan := math.Log(maxF / minF)

	for i := 0; i < steps; i++ {
		t := float64(i) / float64(steps-1)
		amtIn := new(big.Int)
		new(big.Float).Mul(
			new(big.Float).SetInt(minIn),
			big.NewFloat(math.Exp(logSpan*t)),
		).Int(amtIn)
		if amtIn.Sign() <= 0 {
			continue
		}
		res := SimulateCycle(amtIn, buy, sell, start)
		if res.Profit.Cmp(best.Profit) > 0 {
			best = res
		}
	}
	return best
}
