// Package tickmath converts between discrete price ticks and Q96 square-root
// prices, reproducing the on-chain TickMath library bit for bit.
//
// price(tick) = 1.0001^tick; the pool's native state variable is
// sqrt(price) * 2^96.
package tickmath

import (
	"errors"
	"math"
	"math/big"
)

// Protocol-defined tick bounds.
const (
	MinTick int32 = -887272
	MaxTick int32 = 887272
)

var (
	// MinSqrtRatio is GetSqrtRatioAtTick(MinTick).
	MinSqrtRatio = big.NewInt(4295128739)

	// MaxSqrtRatio is GetSqrtRatioAtTick(MaxTick).
	MaxSqrtRatio = mustBig("1461446703485210103287273052203988822378723970342")

	ErrTickOutOfRange      = errors.New("tickmath: tick out of range")
	ErrSqrtRatioOutOfRange = errors.New("tickmath: sqrt ratio out of range")
)

var (
	q96          = new(big.Int).Lsh(big.NewInt(1), 96)
	q192Float    = new(big.Float).SetPrec(256).SetInt(new(big.Int).Lsh(big.NewInt(1), 192))
	maxUint256P1 = new(big.Int).Lsh(big.NewInt(1), 256)
	lowMask32    = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 32), big.NewInt(1))
)

// sqrt(1.0001^(2^i)) in Q128, for i = 0..19. The i=0 entry is the value for
// an odd tick; ratios for the remaining bits of |tick| multiply in via
// mulShift.
var tickRatios = [20]*big.Int{
	mustBig("0xfffcb933bd6fad37aa2d162d1a594001"),
	mustBig("0xfff97272373d413259a46990580e213a"),
	mustBig("0xfff2e50f5f656932ef12357cf3c7fdcc"),
	mustBig("0xffe5caca7e10e4e61c3624eaa0941cd0"),
	mustBig("0xffcb9843d60f6159c9db58835c926644"),
	mustBig("0xff973b41fa98c081472e6896dfb254c0"),
	mustBig("0xff2ea16466c96a3843ec78b326b52861"),
	mustBig("0xfe5dee046a99a2a811c461f1969c3053"),
	mustBig("0xfcbe86c7900a88aedcffc83b479aa3a4"),
	mustBig("0xf987a7253ac413176f2b074cf7815e54"),
	mustBig("0xf3392b0822b70005940c7a398e4b70f3"),
	mustBig("0xe7159475a2c29b7443b29c7fa6e889d9"),
	mustBig("0xd097f3bdfd2022b8845ad8f792aa5825"),
	mustBig("0xa9f746462d870fdf8a65dc1f90e061e5"),
	mustBig("0x70d869a156d2a1b890bb3df62baf32f7"),
	mustBig("0x31be135f97d08fd981231505542fcfa6"),
	mustBig("0x9aa508b5b7a84e1c677de54f3e99bc9"),
	mustBig("0x5d6af8dedb81196699c329225ee604"),
	mustBig("0x2216e584f5fa1ea926041bedfe98"),
	mustBig("0x48a170391f7dc42444e8fa2"),
}

var ratioOne = mustBig("0x100000000000000000000000000000000")

func mustBig(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 0)
	if !ok {
		panic("tickmath: bad integer literal " + s)
	}
	return n
}

// mulShift multiplies two Q128 values and shifts the product back down.
func mulShift(a, b *big.Int) *big.Int {
	product := new(big.Int).Mul(a, b)
	return product.Rsh(product, 128)
}

// GetSqrtRatioAtTick computes sqrt(1.0001^tick) * 2^96 exactly as the
// protocol does: conditional Q128 multiplications keyed to the bits of
// |tick|, a 2^256/ratio reciprocal for positive ticks, and a final
// shift-right-by-32 rounding up on any remainder.
func GetSqrtRatioAtTick(tick int32) (*big.Int, error) {
	if tick < MinTick || tick > MaxTick {
		return nil, ErrTickOutOfRange
	}

	absTick := tick
	if tick < 0 {
		absTick = -tick
	}

	var ratio *big.Int
	if absTick&0x1 != 0 {
		ratio = new(big.Int).Set(tickRatios[0])
	} else {
		ratio = new(big.Int).Set(ratioOne)
	}
	for i := 1; i < len(tickRatios); i++ {
		if absTick&(1<<uint(i)) != 0 {
			ratio = mulShift(ratio, tickRatios[i])
		}
	}

	// The table encodes 1.0001^(-|tick|/2); positive ticks take the
	// reciprocal.
	if tick > 0 {
		ratio = new(big.Int).Quo(maxUint256P1, ratio)
	}

	// Q128 -> Q96, rounding up so the round trip through
	// GetTickAtSqrtRatio stays on the correct side of the boundary.
	remainder := new(big.Int).And(ratio, lowMask32)
	sqrtPriceX96 := ratio.Rsh(ratio, 32)
	if remainder.Sign() != 0 {
		sqrtPriceX96.Add(sqrtPriceX96, big.NewInt(1))
	}
	return sqrtPriceX96, nil
}

// GetTickAtSqrtRatio returns the greatest tick whose ratio does not exceed
// sqrtPriceX96, found by binary search over GetSqrtRatioAtTick.
func GetTickAtSqrtRatio(sqrtPriceX96 *big.Int) (int32, error) {
	if sqrtPriceX96 == nil || sqrtPriceX96.Cmp(MinSqrtRatio) < 0 || sqrtPriceX96.Cmp(MaxSqrtRatio) > 0 {
		return 0, ErrSqrtRatioOutOfRange
	}

	left, right := MinTick, MaxTick
	for left < right {
		mid := left + (right-left+1)/2
		ratio, err := GetSqrtRatioAtTick(mid)
		if err != nil {
			return 0, err
		}
		switch ratio.Cmp(sqrtPriceX96) {
		case 0:
			return mid, nil
		case -1:
			left = mid
		default:
			right = mid - 1
		}
	}
	return left, nil
}

// PriceFromSqrtPriceX96 converts a Q96 sqrt price into a human-readable
// token1-per-token0 price: (sqrtP^2 / 2^192) * 10^(decimals0-decimals1).
// Computed in 256-bit big.Float so large decimal deltas do not destroy
// precision; callers that only need display output may round the result.
func PriceFromSqrtPriceX96(sqrtPriceX96 *big.Int, decimals0, decimals1 int) *big.Float {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return big.NewFloat(0)
	}
	sp := new(big.Float).SetPrec(256).SetInt(sqrtPriceX96)
	raw := new(big.Float).SetPrec(256).Mul(sp, sp)
	raw.Quo(raw, q192Float)

	delta := decimals0 - decimals1
	if delta == 0 {
		return raw
	}
	mag := delta
	if mag < 0 {
		mag = -mag
	}
	scale := new(big.Float).SetPrec(256).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(mag)), nil))
	if delta > 0 {
		return raw.Mul(raw, scale)
	}
	return raw.Quo(raw, scale)
}

// TickToPrice returns 1.0001^tick * 10^(decimals0-decimals1). Float64
// precision only; used for segment boundaries and display, never for
// swap arithmetic.
func TickToPrice(tick int32, decimals0, decimals1 int) float64 {
	return math.Pow(1.0001, float64(tick)) * math.Pow(10, float64(decimals0-decimals1))
}
