package pool

import (
	"math/big"

	"github.com/DorianYoung7702/ChainMonitorV2/internal/amm/swapmath"
	"github.com/DorianYoung7702/ChainMonitorV2/internal/amm/tickmath"
)

// Incomplete reasons reported in SwapDiagnostics.
const (
	ReasonNoInitializedTick = "no initialized tick in direction of travel"
	ReasonTargetPassed      = "next tick price already passed"
	ReasonMaxCrossings      = "tick crossing budget exceeded"
	ReasonLiquidityDepleted = "liquidity depleted after crossing"
)

// SwapDiagnostics describes how a simulated swap ended. Incomplete means
// the swap could not be fully resolved within the fetched tick window or
// crossing budget; callers must not treat the output as exact, but it is
// not an error.
type SwapDiagnostics struct {
	FinalSqrtPriceX96 *big.Int `json:"final_sqrt_price_x96"`
	FinalTick         int32    `json:"final_tick"`
	FinalLiquidity    *big.Int `json:"final_liquidity"`
	TicksCrossed      int      `json:"ticks_crossed"`
	AmountConsumed    *big.Int `json:"amount_in_consumed"`
	AmountRemaining   *big.Int `json:"amount_in_left"`
	Incomplete        bool     `json:"incomplete"`
	Reason            string   `json:"reason,omitempty"`
}

// SimulateSwapExactIn executes a trade of amountIn against the snapshot,
// walking initialized ticks in the direction of travel and applying each
// crossed tick's liquidity delta. The snapshot itself is never mutated.
//
// The loop stops cleanly when the input is exhausted. It stops with
// Incomplete=true when the tick window runs out, the crossing budget
// (maxTickCrossings) is exceeded, or liquidity drops to zero — defensive
// conditions that mean "output is a lower bound, not exact".
func SimulateSwapExactIn(snap *Snapshot, amountIn *big.Int, zeroForOne bool, maxTickCrossings int) (*big.Int, *SwapDiagnostics, error) {
	if err := snap.Validate(); err != nil {
		return nil, nil, err
	}

	sqrtP := new(big.Int).Set(snap.SqrtPriceX96)
	tick := snap.Tick
	liquidity := new(big.Int).Set(snap.Liquidity)

	amountRemaining := new(big.Int).Set(amountIn)
	amountOut := big.NewInt(0)
	crossed := 0
	incomplete := false
	reason := ""

	for amountRemaining.Sign() > 0 {
		if crossed > maxTickCrossings {
			incomplete, reason = true, ReasonMaxCrossings
			break
		}

		nextTick, ok := snap.nextInitializedTick(tick, zeroForOne)
		if !ok {
			incomplete, reason = true, ReasonNoInitializedTick
			break
		}

		sqrtTarget, err := tickmath.GetSqrtRatioAtTick(nextTick)
		if err != nil {
			return nil, nil, err
		}

		// Defensive: the boundary must lie ahead of the current price.
		if zeroForOne && sqrtTarget.Cmp(sqrtP) >= 0 {
			incomplete, reason = true, ReasonTargetPassed
			break
		}
		if !zeroForOne && sqrtTarget.Cmp(sqrtP) <= 0 {
			incomplete, reason = true, ReasonTargetPassed
			break
		}

		step, err := swapmath.ComputeSwapStep(sqrtP, sqrtTarget, liquidity, amountRemaining, snap.FeePPM, zeroForOne)
		if err != nil {
			return nil, nil, err
		}

		amountRemaining.Sub(amountRemaining, new(big.Int).Add(step.AmountIn, step.FeeAmount))
		amountOut.Add(amountOut, step.AmountOut)
		sqrtP = step.SqrtPriceNextX96

		if sqrtP.Cmp(sqrtTarget) != 0 {
			// Partial step inside the current range; input is exhausted.
			break
		}

		// Exactly reached the boundary: apply its delta and step over it.
		net := snap.liquidityNetAt(nextTick)
		if zeroForOne {
			liquidity.Sub(liquidity, net)
			tick = nextTick - 1
		} else {
			liquidity.Add(liquidity, net)
			tick = nextTick
		}
		crossed++

		if liquidity.Sign() <= 0 {
			incomplete, reason = true, ReasonLiquidityDepleted
			break
		}
	}

	diag := &SwapDiagnostics{
		FinalSqrtPriceX96: sqrtP,
		FinalTick:         tick,
		FinalLiquidity:    liquidity,
		TicksCrossed:      crossed,
		AmountConsumed:    new(big.Int).Sub(amountIn, amountRemaining),
		AmountRemaining:   amountRemaining,
		Incomplete:        incomplete,
		Reason:            reason,
	}
	return amountOut, diag, nil
}
