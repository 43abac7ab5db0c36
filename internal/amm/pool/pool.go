// Package pool holds a reproducible snapshot of a concentrated-liquidity
// pool and simulates trades against it by walking the sparse initialized
// tick list.
package pool

import (
	"errors"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/DorianYoung7702/ChainMonitorV2/internal/amm/tickmath"
)

// ErrInvalidPoolState marks a snapshot whose sqrt price or liquidity is
// non-positive. Fatal for that pool's simulation, non-fatal for a batch.
var ErrInvalidPoolState = errors.New("pool: invalid pool state")

// TickData is one initialized tick: the signed liquidity change applied
// when the price crosses it moving upward. Crossing downward applies the
// negated value.
type TickData struct {
	Tick         int32    `json:"tick"`
	LiquidityNet *big.Int `json:"liquidity_net"`
}

// Snapshot is one pool's state at a single evaluation. It is treated as
// read-only: simulation mutates local copies of (sqrt price, tick,
// liquidity) and never the tick list.
type Snapshot struct {
	Address     common.Address `json:"pool"`
	Token0      common.Address `json:"token0"`
	Token1      common.Address `json:"token1"`
	Symbol0     string         `json:"symbol0"`
	Symbol1     string         `json:"symbol1"`
	Decimals0   int            `json:"decimals0"`
	Decimals1   int            `json:"decimals1"`
	FeePPM      uint32         `json:"fee"`
	TickSpacing int32          `json:"tick_spacing"`

	SqrtPriceX96 *big.Int `json:"sqrt_price_x96"`
	Tick         int32    `json:"tick"`
	Liquidity    *big.Int `json:"liquidity"`

	// Ticks must be sorted ascending by tick index.
	Ticks []TickData `json:"ticks"`
}

// Validate checks the invariants simulation depends on.
func (s *Snapshot) Validate() error {
	if s == nil || s.SqrtPriceX96 == nil || s.SqrtPriceX96.Sign() <= 0 {
		return ErrInvalidPoolState
	}
	if s.Liquidity == nil || s.Liquidity.Sign() <= 0 {
		return ErrInvalidPoolState
	}
	return nil
}

// SortTicks orders the tick list ascending. Fetchers call this once after
// assembling a snapshot; the simulator assumes it.
func (s *Snapshot) SortTicks() {
	sort.Slice(s.Ticks, func(i, j int) bool { return s.Ticks[i].Tick < s.Ticks[j].Tick })
}

// SpotPrice returns the pool's current mid price (token1 per token0,
// decimal-adjusted) from the Q96 sqrt price.
func (s *Snapshot) SpotPrice() *big.Float {
	return tickmath.PriceFromSqrtPriceX96(s.SqrtPriceX96, s.Decimals0, s.Decimals1)
}

// SamePair reports whether two snapshots trade the same (token0, token1).
func (s *Snapshot) SamePair(other *Snapshot) bool {
	return s.Token0 == other.Token0 && s.Token1 == other.Token1
}

// nextInitializedTick finds the nearest initialized tick in the direction
// of travel: the greatest tick <= current when moving down (zeroForOne),
// the smallest tick > current when moving up.
func (s *Snapshot) nextInitializedTick(current int32, zeroForOne bool) (int32, bool) {
	if len(s.Ticks) == 0 {
		return 0, false
	}
	if zeroForOne {
		// Greatest tick <= current.
		i := sort.Search(len(s.Ticks), func(i int) bool { return s.Ticks[i].Tick > current })
		if i == 0 {
			return 0, false
		}
		return s.Ticks[i-1].Tick, true
	}
	// Smallest tick > current.
	i := sort.Search(len(s.Ticks), func(i int) bool { return s.Ticks[i].Tick > current })
	if i == len(s.Ticks) {
		return 0, false
	}
	return s.Ticks[i].Tick, true
}

// liquidityNetAt returns the recorded delta at an initialized tick, or
// zero when the tick is not in the list.
func (s *Snapshot) liquidityNetAt(tick int32) *big.Int {
	i := sort.Search(len(s.Ticks), func(i int) bool { return s.Ticks[i].Tick >= tick })
	if i < len(s.Ticks) && s.Ticks[i].Tick == tick {
		return s.Ticks[i].LiquidityNet
	}
	return big.NewInt(0)
}
