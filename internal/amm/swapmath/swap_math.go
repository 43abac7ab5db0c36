// Package swapmath implements the single-step concentrated-liquidity swap
// formula: moving a pool's sqrt price from its current point toward a
// bounded target given available input and a fee rate.
//
// Rounding discipline: quantities that increase the pool's claim (input
// needed, fee owed) round up; quantities paid out round down. The simulated
// pool therefore never gives away more than the real pool would.
package swapmath

import (
	"errors"
	"math/big"

	"github.com/DorianYoung7702/ChainMonitorV2/internal/amm/fixedpoint"
)

// FeeDenominator is the parts-per-million fee scale (fee 3000 = 0.3%).
const FeeDenominator = 1_000_000

var (
	ErrInvalidSqrtPrice = errors.New("swapmath: sqrt price must be positive")
	ErrInvalidLiquidity = errors.New("swapmath: liquidity must be positive")
)

// Q96 is the fixed-point scale of sqrt prices.
var Q96 = new(big.Int).Lsh(big.NewInt(1), 96)

// StepResult is the outcome of a single swap step.
type StepResult struct {
	SqrtPriceNextX96 *big.Int // price after the step
	AmountIn         *big.Int // input consumed, excluding fee
	AmountOut        *big.Int // output produced
	FeeAmount        *big.Int // fee charged, in the input asset
}

// GetAmount0Delta returns the token0 amount between two sqrt prices for a
// given liquidity: L * (sqrtB - sqrtA) / (sqrtB * sqrtA), in Q96 terms.
func GetAmount0Delta(sqrtRatioAX96, sqrtRatioBX96, liquidity *big.Int, roundUp bool) (*big.Int, error) {
	if sqrtRatioAX96.Cmp(sqrtRatioBX96) > 0 {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}
	if sqrtRatioAX96.Sign() <= 0 {
		return nil, ErrInvalidSqrtPrice
	}

	numerator1 := new(big.Int).Lsh(liquidity, 96)
	numerator2 := new(big.Int).Sub(sqrtRatioBX96, sqrtRatioAX96)
	denominator := new(big.Int).Mul(sqrtRatioBX96, sqrtRatioAX96)

	product := new(big.Int).Mul(numerator1, numerator2)
	if roundUp {
		return fixedpoint.MulDivRoundingUp(product, big.NewInt(1), denominator)
	}
	return fixedpoint.MulDiv(product, big.NewInt(1), denominator)
}

// GetAmount1Delta returns the token1 amount between two sqrt prices for a
// given liquidity: L * (sqrtB - sqrtA) / 2^96.
func GetAmount1Delta(sqrtRatioAX96, sqrtRatioBX96, liquidity *big.Int, roundUp bool) (*big.Int, error) {
	if sqrtRatioAX96.Cmp(sqrtRatioBX96) > 0 {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}
	delta := new(big.Int).Sub(sqrtRatioBX96, sqrtRatioAX96)
	if roundUp {
		return fixedpoint.MulDivRoundingUp(liquidity, delta, Q96)
	}
	return fixedpoint.MulDiv(liquidity, delta, Q96)
}

// GetNextSqrtPriceFromAmount0In solves the post-step sqrt price when token0
// is added (price moves down). Rounds up so the pool's price never
// undershoots the true value.
func GetNextSqrtPriceFromAmount0In(sqrtPX96, liquidity, amountIn *big.Int) (*big.Int, error) {
	if sqrtPX96.Sign() <= 0 {
		return nil, ErrInvalidSqrtPrice
	}
	if liquidity.Sign() <= 0 {
		return nil, ErrInvalidLiquidity
	}
	if amountIn.Sign() == 0 {
		return new(big.Int).Set(sqrtPX96), nil
	}
	liquidityShifted := new(big.Int).Lsh(liquidity, 96)
	numerator := new(big.Int).Mul(liquidityShifted, sqrtPX96)
	denominator := new(big.Int).Add(liquidityShifted, new(big.Int).Mul(amountIn, sqrtPX96))
	return fixedpoint.MulDivRoundingUp(numerator, big.NewInt(1), denominator)
}

// GetNextSqrtPriceFromAmount1In solves the post-step sqrt price when token1
// is added (price moves up). Rounds down.
func GetNextSqrtPriceFromAmount1In(sqrtPX96, liquidity, amountIn *big.Int) (*big.Int, error) {
	if sqrtPX96.Sign() <= 0 {
		return nil, ErrInvalidSqrtPrice
	}
	if liquidity.Sign() <= 0 {
		return nil, ErrInvalidLiquidity
	}
	if amountIn.Sign() == 0 {
		return new(big.Int).Set(sqrtPX96), nil
	}
	quotient, err := fixedpoint.MulDiv(amountIn, Q96, liquidity)
	if err != nil {
		return nil, err
	}
	return quotient.Add(quotient, sqrtPX96), nil
}

// ComputeSwapStep advances the price from sqrtPX96 toward sqrtTargetX96,
// consuming at most amountRemaining of the input asset (exact-in only).
// Direction is explicit: zeroForOne means token0 in, price moving down.
//
// If the fee-reduced input covers the full move to the target, the fee is
// ceil(amountIn * fee / (1e6 - fee)). Otherwise the step is partial: the new
// price is solved from the fee-reduced input and the fee is exactly the
// unconverted remainder, so AmountIn + FeeAmount == amountRemaining and all
// rounding slack lands in the fee bucket, never in the output.
func ComputeSwapStep(sqrtPX96, sqrtTargetX96, liquidity, amountRemaining *big.Int, feePPM uint32, zeroForOne bool) (*StepResult, error) {
	result := &StepResult{
		SqrtPriceNextX96: new(big.Int).Set(sqrtPX96),
		AmountIn:         big.NewInt(0),
		AmountOut:        big.NewInt(0),
		FeeAmount:        big.NewInt(0),
	}
	if amountRemaining.Sign() <= 0 {
		return result, nil
	}

	feeFactor := big.NewInt(int64(FeeDenominator - feePPM))
	amountRemainingLessFee, err := fixedpoint.MulDiv(amountRemaining, feeFactor, big.NewInt(FeeDenominator))
	if err != nil {
		return nil, err
	}

	var amountInMax *big.Int
	if zeroForOne {
		amountInMax, err = GetAmount0Delta(sqrtTargetX96, sqrtPX96, liquidity, true)
	} else {
		amountInMax, err = GetAmount1Delta(sqrtPX96, sqrtTargetX96, liquidity, true)
	}
	if err != nil {
		return nil, err
	}

	reachedTarget := amountRemainingLessFee.Cmp(amountInMax) >= 0
	if reachedTarget {
		result.SqrtPriceNextX96 = new(big.Int).Set(sqrtTargetX96)
		result.AmountIn = amountInMax
		result.FeeAmount, err = fixedpoint.MulDivRoundingUp(amountInMax, big.NewInt(int64(feePPM)), feeFactor)
		if err != nil {
			return nil, err
		}
	} else {
		if zeroForOne {
			result.SqrtPriceNextX96, err = GetNextSqrtPriceFromAmount0In(sqrtPX96, liquidity, amountRemainingLessFee)
		} else {
			result.SqrtPriceNextX96, err = GetNextSqrtPriceFromAmount1In(sqrtPX96, liquidity, amountRemainingLessFee)
		}
		if err != nil {
			return nil, err
		}
		result.AmountIn = amountRemainingLessFee
		result.FeeAmount = new(big.Int).Sub(amountRemaining, amountRemainingLessFee)
	}

	if zeroForOne {
		result.AmountOut, err = GetAmount1Delta(result.SqrtPriceNextX96, sqrtPX96, liquidity, false)
	} else {
		result.AmountOut, err = GetAmount0Delta(sqrtPX96, result.SqrtPriceNextX96, liquidity, false)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}
