// Package liquidity derives contiguous constant-liquidity segments around a
// pool's current price from its sparse initialized-tick list, and flags
// low-liquidity gaps. Purely diagnostic; it never alters swap results.
package liquidity

import (
	"math/big"
	"sort"

	"github.com/DorianYoung7702/ChainMonitorV2/internal/amm/pool"
	"github.com/DorianYoung7702/ChainMonitorV2/internal/amm/tickmath"
)

// Segment is one price range [TickLower, TickUpper) with constant active
// liquidity.
type Segment struct {
	TickLower  int32    `json:"tick_lower"`
	TickUpper  int32    `json:"tick_upper"`
	Liquidity  *big.Int `json:"liquidity"`
	PriceLower float64  `json:"price_lower"`
	PriceUpper float64  `json:"price_upper"`
}

// BuildProfile walks outward from the current tick, applying +LiquidityNet
// at each boundary crossed upward and -LiquidityNet downward, emitting one
// segment per boundary pair up to maxSegments in each direction. The result
// is sorted by TickLower.
func BuildProfile(currentTick, tickSpacing int32, currentLiquidity *big.Int, ticks []pool.TickData, decimals0, decimals1 int, maxSegments int) []Segment {
	if tickSpacing <= 0 || len(ticks) == 0 || currentLiquidity == nil {
		return nil
	}
	sorted := make([]pool.TickData, len(ticks))
	copy(sorted, ticks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Tick < sorted[j].Tick })

	// First boundary strictly above the current tick.
	idx := sort.Search(len(sorted), func(i int) bool { return sorted[i].Tick > currentTick })

	segs := make([]Segment, 0, 2*maxSegments)

	// Upward: [lastTick, boundary) at the running liquidity, then apply
	// the boundary's delta.
	upL := new(big.Int).Set(currentLiquidity)
	lastTick := currentTick
	for i := idx; i < len(sorted) && i-idx < maxSegments; i++ {
		t := sorted[i].Tick
		segs = append(segs, newSegment(lastTick, t, upL, decimals0, decimals1))
		upL = new(big.Int).Add(upL, sorted[i].LiquidityNet)
		lastTick = t
	}

	// Downward: boundaries at or below the current tick, deltas negated.
	downL := new(big.Int).Set(currentLiquidity)
	lastTick = currentTick
	emitted := 0
	for i := idx - 1; i >= 0 && emitted < maxSegments; i-- {
		t := sorted[i].Tick
		if t >= lastTick {
			continue
		}
		segs = append(segs, newSegment(t, lastTick, downL, decimals0, decimals1))
		downL = new(big.Int).Sub(downL, sorted[i].LiquidityNet)
		lastTick = t
		emitted++
	}

	sort.Slice(segs, func(i, j int) bool { return segs[i].TickLower < segs[j].TickLower })
	return segs
}

func newSegment(lower, upper int32, liq *big.Int, decimals0, decimals1 int) Segment {
	return Segment{
		TickLower:  lower,
		TickUpper:  upper,
		Liquidity:  new(big.Int).Set(liq),
		PriceLower: tickmath.TickToPrice(lower, decimals0, decimals1),
		PriceUpper: tickmath.TickToPrice(upper, decimals0, decimals1),
	}
}

// DetectGaps returns the segments whose liquidity is at or below a
// threshold: minLiquidity when supplied, otherwise the value at the given
// percentile of the segment-liquidity distribution.
func DetectGaps(profile []Segment, minLiquidity *big.Int, percentile float64) []Segment {
	if len(profile) == 0 {
		return nil
	}
	threshold := minLiquidity
	if threshold == nil {
		liqs := make([]*big.Int, len(profile))
		for i, seg := range profile {
			liqs[i] = seg.Liquidity
		}
		sort.Slice(liqs, func(i, j int) bool { return liqs[i].Cmp(liqs[j]) < 0 })
		k := int(float64(len(liqs)) * percentile)
		if k < 0 {
			k = 0
		}
		if k > len(liqs)-1 {
			k = len(liqs) - 1
		}
		threshold = liqs[k]
	}

	var gaps []Segment
	for _, seg := range profile {
		if seg.Liquidity.Cmp(threshold) <= 0 {
			gaps = append(gaps, seg)
		}
	}
	return gaps
}
