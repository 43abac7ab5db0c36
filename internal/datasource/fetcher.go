package datasource

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/DorianYoung7702/ChainMonitorV2/internal/amm/pool"
	"github.com/DorianYoung7702/ChainMonitorV2/internal/arbitrage"
	"github.com/DorianYoung7702/ChainMonitorV2/internal/platform/cache"
	"github.com/DorianYoung7702/ChainMonitorV2/internal/platform/config"
	"github.com/DorianYoung7702/ChainMonitorV2/internal/platform/observability"
	"github.com/DorianYoung7702/ChainMonitorV2/internal/platform/resilience"
)

// Uniswap V3 Pool ABI (methods needed for snapshots and tick scans)
const uniswapV3PoolABI = `[
	{"inputs": [], "name": "token0", "outputs": [{"internalType": "address", "name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "token1", "outputs": [{"internalType": "address", "name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "fee", "outputs": [{"internalType": "uint24", "name": "", "type": "uint24"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "tickSpacing", "outputs": [{"internalType": "int24", "name": "", "type": "int24"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "liquidity", "outputs": [{"internalType": "uint128", "name": "", "type": "uint128"}], "stateMutability": "view", "type": "function"},
	{
		"inputs": [],
		"name": "slot0",
		"outputs": [
			{"internalType": "uint160", "name": "sqrtPriceX96", "type": "uint160"},
			{"internalType": "int24", "name": "tick", "type": "int24"},
			{"internalType": "uint16", "name": "observationIndex", "type": "uint16"},
			{"internalType": "uint16", "name": "observationCardinality", "type": "uint16"},
			{"internalType": "uint16", "name": "observationCardinalityNext", "type": "uint16"},
			{"internalType": "uint8", "name": "feeProtocol", "type": "uint8"},
			{"internalType": "bool", "name": "unlocked", "type": "bool"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{"inputs": [{"internalType": "int16", "name": "wordPosition", "type": "int16"}], "name": "tickBitmap", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
	{
		"inputs": [{"internalType": "int24", "name": "tick", "type": "int24"}],
		"name": "ticks",
		"outputs": [
			{"internalType": "uint128", "name": "liquidityGross", "type": "uint128"},
			{"internalType": "int128", "name": "liquidityNet", "type": "int128"},
			{"internalType": "uint256", "name": "feeGrowthOutside0X128", "type": "uint256"},
			{"internalType": "uint256", "name": "feeGrowthOutside1X128", "type": "uint256"},
			{"internalType": "int56", "name": "tickCumulativeOutside", "type": "int56"},
			{"internalType": "uint160", "name": "secondsPerLiquidityOutsideX128", "type": "uint160"},
			{"internalType": "uint32", "name": "secondsOutside", "type": "uint32"},
			{"internalType": "bool", "name": "initialized", "type": "bool"}
		],
		"stateMutability": "view",
		"type": "function"
	}
]`

// Uniswap V2 pair ABI (constant-product pools)
const uniswapV2PairABI = `[
	{"inputs": [], "name": "token0", "outputs": [{"internalType": "address", "name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "token1", "outputs": [{"internalType": "address", "name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
	{
		"inputs": [],
		"name": "getReserves",
		"outputs": [
			{"internalType": "uint112", "name": "reserve0", "type": "uint112"},
			{"internalType": "uint112", "name": "reserve1", "type": "uint112"},
			{"internalType": "uint32", "name": "blockTimestampLast", "type": "uint32"}
		],
		"stateMutability": "view",
		"type": "function"
	}
]`

// Minimal ERC20 ABI for token metadata
const erc20ABI = `[
	{"inputs": [], "name": "symbol", "outputs": [{"internalType": "string", "name": "", "type": "string"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "decimals", "outputs": [{"internalType": "uint8", "name": "", "type": "uint8"}], "stateMutability": "view", "type": "function"}
]`

// DefaultMaxTicks caps the initialized ticks fetched per pool per scan.
const DefaultMaxTicks = 800

// DefaultRequestsPerMinute bounds the fetcher's RPC call rate across all
// pools so a tight scan interval cannot hammer the node.
const DefaultRequestsPerMinute = 600

// V2 pairs charge a fixed 30 bps.
const v2FeeBps = 30

// PoolFetcher assembles pool snapshots from on-chain state. It implements
// the evaluator's snapshot source, so incomplete simulations can refetch
// with a wider tick window.
type PoolFetcher struct {
	clients  *ClientPool
	poolABI  abi.ABI
	pairABI  abi.ABI
	tokenABI abi.ABI
	cache    cache.Cache
	logger   *observability.Logger
	metrics  *observability.Metrics
	retry    resilience.RetryConfig
	limiter  *resilience.RateLimiter
	breaker  *resilience.CircuitBreaker
	maxTicks int
}

// PoolFetcherConfig holds fetcher configuration
type PoolFetcherConfig struct {
	Clients           *ClientPool
	Cache             cache.Cache
	Logger            *observability.Logger
	Metrics           *observability.Metrics
	Retry             resilience.RetryConfig
	RequestsPerMinute int
	MaxTicks          int
}

// NewPoolFetcher creates a pool state fetcher
func NewPoolFetcher(cfg PoolFetcherConfig) (*PoolFetcher, error) {
	if cfg.Clients == nil {
		return nil, fmt.Errorf("client pool is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NewLogger("info", "json")
	}
	if cfg.MaxTicks <= 0 {
		cfg.MaxTicks = DefaultMaxTicks
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = resilience.DefaultRetryConfig()
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = DefaultRequestsPerMinute
	}

	poolParsed, err := abi.JSON(strings.NewReader(uniswapV3PoolABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse pool ABI: %w", err)
	}
	pairParsed, err := abi.JSON(strings.NewReader(uniswapV2PairABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse pair ABI: %w", err)
	}
	tokenParsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC20 ABI: %w", err)
	}

	f := &PoolFetcher{
		clients:  cfg.Clients,
		poolABI:  poolParsed,
		pairABI:  pairParsed,
		tokenABI: tokenParsed,
		cache:    cfg.Cache,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		retry:    cfg.Retry,
		limiter:  resilience.NewRateLimiterFromRPM(cfg.RequestsPerMinute, cfg.RequestsPerMinute/10+1),
		maxTicks: cfg.MaxTicks,
	}
	f.breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:             "pool-fetcher",
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
		OnStateChange: func(from, to resilience.State) {
			f.logger.Warn("pool fetcher circuit state changed",
				"from", from.String(),
				"to", to.String())
		},
	})
	return f, nil
}

// FetchSnapshot reads one pool's full state: slot0, liquidity, static
// metadata, and every initialized tick within tickWindow ticks of the
// current price.
func (f *PoolFetcher) FetchSnapshot(ctx context.Context, addr common.Address, tickWindow int) (*pool.Snapshot, error) {
	return resilience.RetryWithResult(ctx, f.retry, func(ctx context.Context) (*pool.Snapshot, error) {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return resilience.ExecuteWithResult(f.breaker, ctx, func(ctx context.Context) (*pool.Snapshot, error) {
			return f.fetchSnapshotOnce(ctx, addr, tickWindow)
		})
	})
}

// FetchPair fetches both pools of a pair concurrently.
func (f *PoolFetcher) FetchPair(ctx context.Context, a, b common.Address, tickWindow int) (*pool.Snapshot, *pool.Snapshot, error) {
	var snapA, snapB *pool.Snapshot

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snapA, err = f.FetchSnapshot(gctx, a, tickWindow)
		return err
	})
	g.Go(func() error {
		var err error
		snapB, err = f.FetchSnapshot(gctx, b, tickWindow)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return snapA, snapB, nil
}

// FetchSnapshots fetches many pools concurrently, dropping failed ones
// with a warning so one bad pool cannot starve the scan.
func (f *PoolFetcher) FetchSnapshots(ctx context.Context, addrs []common.Address, tickWindow int) []*pool.Snapshot {
	snaps := make([]*pool.Snapshot, len(addrs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, addr := range addrs {
		g.Go(func() error {
			snap, err := f.FetchSnapshot(gctx, addr, tickWindow)
			if err != nil {
				f.logger.LogWarn(gctx, "pool snapshot failed, skipping",
					"pool", addr.Hex(),
					"error", err.Error())
				return nil
			}
			snaps[i] = snap
			return nil
		})
	}
	_ = g.Wait()

	out := snaps[:0]
	for _, s := range snaps {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// FetchReserves reads a constant-product pair's reserves.
func (f *PoolFetcher) FetchReserves(ctx context.Context, addr common.Address) (*arbitrage.ReservePool, error) {
	return resilience.RetryWithResult(ctx, f.retry, func(ctx context.Context) (*arbitrage.ReservePool, error) {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		start := time.Now()
		client, url, err := f.clients.GetClient()
		if err != nil {
			return nil, err
		}
		contract := bind.NewBoundContract(addr, f.pairABI, client, nil, nil)
		opts := &bind.CallOpts{Context: ctx}

		var out []interface{}
		if err := contract.Call(opts, &out, "token0"); err != nil {
			f.clients.MarkUnhealthy(url)
			return nil, fmt.Errorf("token0 call failed: %w", err)
		}
		token0 := out[0].(common.Address)

		out = nil
		if err := contract.Call(opts, &out, "token1"); err != nil {
			return nil, fmt.Errorf("token1 call failed: %w", err)
		}
		token1 := out[0].(common.Address)

		out = nil
		if err := contract.Call(opts, &out, "getReserves"); err != nil {
			return nil, fmt.Errorf("getReserves call failed: %w", err)
		}
		reserve0 := out[0].(*big.Int)
		reserve1 := out[1].(*big.Int)

		f.metrics.RecordRPCCall(ctx, "getReserves", "ok", time.Since(start))

		return &arbitrage.ReservePool{
			Address:  addr,
			Token0:   token0,
			Token1:   token1,
			Reserve0: reserve0,
			Reserve1: reserve1,
			FeeBps:   v2FeeBps,
		}, nil
	})
}

func (f *PoolFetcher) fetchSnapshotOnce(ctx context.Context, addr common.Address, tickWindow int) (*pool.Snapshot, error) {
	start := time.Now()
	client, url, err := f.clients.GetClient()
	if err != nil {
		return nil, err
	}
	contract := bind.NewBoundContract(addr, f.poolABI, client, nil, nil)
	opts := &bind.CallOpts{Context: ctx}

	fail := func(what string, err error) (*pool.Snapshot, error) {
		f.clients.MarkUnhealthy(url)
		f.metrics.RecordRPCCall(ctx, what, "error", time.Since(start))
		return nil, fmt.Errorf("%s call failed for pool %s: %w", what, addr.Hex(), err)
	}

	var out []interface{}
	if err := contract.Call(opts, &out, "token0"); err != nil {
		return fail("token0", err)
	}
	token0 := out[0].(common.Address)

	out = nil
	if err := contract.Call(opts, &out, "token1"); err != nil {
		return fail("token1", err)
	}
	token1 := out[0].(common.Address)

	out = nil
	if err := contract.Call(opts, &out, "fee"); err != nil {
		return fail("fee", err)
	}
	feePPM := uint32(out[0].(*big.Int).Uint64())

	out = nil
	if err := contract.Call(opts, &out, "tickSpacing"); err != nil {
		return fail("tickSpacing", err)
	}
	tickSpacing := int32(out[0].(*big.Int).Int64())

	out = nil
	if err := contract.Call(opts, &out, "liquidity"); err != nil {
		return fail("liquidity", err)
	}
	liquidity := out[0].(*big.Int)

	out = nil
	if err := contract.Call(opts, &out, "slot0"); err != nil {
		return fail("slot0", err)
	}
	sqrtPriceX96 := out[0].(*big.Int)
	tick := int32(out[1].(*big.Int).Int64())

	symbol0, decimals0 := f.tokenMeta(ctx, client, token0)
	symbol1, decimals1 := f.tokenMeta(ctx, client, token1)

	ticks, err := f.fetchTicks(ctx, contract, tick, tickSpacing, tickWindow)
	if err != nil {
		return fail("tickBitmap", err)
	}

	f.metrics.RecordRPCCall(ctx, "snapshot", "ok", time.Since(start))

	snap := &pool.Snapshot{
		Address:      addr,
		Token0:       token0,
		Token1:       token1,
		Symbol0:      symbol0,
		Symbol1:      symbol1,
		Decimals0:    decimals0,
		Decimals1:    decimals1,
		FeePPM:       feePPM,
		TickSpacing:  tickSpacing,
		SqrtPriceX96: sqrtPriceX96,
		Tick:         tick,
		Liquidity:    liquidity,
		Ticks:        ticks,
	}
	snap.SortTicks()

	f.logger.LogDebug(ctx, "pool snapshot fetched",
		"pool", addr.Hex(),
		"pair", symbol0+"-"+symbol1,
		"tick", tick,
		"ticks_fetched", len(ticks),
		"elapsed", time.Since(start).String())

	return snap, nil
}

// fetchTicks pages the tick bitmap around the current tick and pulls the
// liquidity net of every initialized tick it finds, newest snapshot style:
// one word covers 256 * tickSpacing ticks.
func (f *PoolFetcher) fetchTicks(ctx context.Context, contract *bind.BoundContract, currentTick, tickSpacing int32, tickWindow int) ([]pool.TickData, error) {
	if tickSpacing <= 0 {
		return nil, fmt.Errorf("invalid tick spacing %d", tickSpacing)
	}

	wordsEachSide := wordsForWindow(tickWindow, tickSpacing)
	centerWord := wordPosForTick(currentTick, tickSpacing)
	opts := &bind.CallOpts{Context: ctx}

	var ticks []pool.TickData
	for wp := centerWord - wordsEachSide; wp <= centerWord+wordsEachSide; wp++ {
		if len(ticks) >= f.maxTicks {
			break
		}
		if wp < -32768 || wp > 32767 {
			continue
		}

		var out []interface{}
		if err := contract.Call(opts, &out, "tickBitmap", int16(wp)); err != nil {
			return nil, err
		}
		bitmap := out[0].(*big.Int)
		if bitmap.Sign() == 0 {
			continue
		}

		for _, bit := range setBits(bitmap) {
			if len(ticks) >= f.maxTicks {
				break
			}
			t := tickForWordBit(wp, bit, tickSpacing)

			out = nil
			if err := contract.Call(opts, &out, "ticks", big.NewInt(int64(t))); err != nil {
				return nil, err
			}
			initialized := out[7].(bool)
			if !initialized {
				continue
			}
			ticks = append(ticks, pool.TickData{
				Tick:         t,
				LiquidityNet: out[1].(*big.Int),
			})
		}
	}
	return ticks, nil
}

// tokenMeta resolves a token's symbol and decimals, preferring the cache,
// then the static registry, then the chain. Unknown symbols degrade to a
// truncated address, unknown decimals to 18.
func (f *PoolFetcher) tokenMeta(ctx context.Context, caller bind.ContractCaller, addr common.Address) (string, int) {
	key := "token:meta:" + strings.ToLower(addr.Hex())

	if f.cache != nil {
		if v, err := f.cache.Get(ctx, key); err == nil {
			if sym, dec, ok := decodeTokenMeta(v); ok {
				f.metrics.RecordCacheHit(ctx, "token_meta")
				return sym, dec
			}
		}
		f.metrics.RecordCacheMiss(ctx, "token_meta")
	}

	if info, ok := config.LookupByAddress(addr.Hex()); ok {
		f.storeTokenMeta(ctx, key, info.Symbol, info.Decimals)
		return info.Symbol, info.Decimals
	}

	contract := bind.NewBoundContract(addr, f.tokenABI, caller, nil, nil)
	opts := &bind.CallOpts{Context: ctx}

	symbol := addr.Hex()[:6]
	decimals := 18

	var out []interface{}
	if err := contract.Call(opts, &out, "symbol"); err == nil {
		symbol = out[0].(string)
	}
	out = nil
	if err := contract.Call(opts, &out, "decimals"); err == nil {
		decimals = int(out[0].(uint8))
	}

	f.storeTokenMeta(ctx, key, symbol, decimals)
	return symbol, decimals
}

func (f *PoolFetcher) storeTokenMeta(ctx context.Context, key, symbol string, decimals int) {
	if f.cache == nil {
		return
	}
	// Token metadata is immutable; the long TTL only bounds memory
	_ = f.cache.Set(ctx, key, encodeTokenMeta(symbol, decimals), 24*time.Hour)
}

// encodeTokenMeta packs symbol and decimals into a cache-friendly string
// that survives a JSON round trip through Redis.
func encodeTokenMeta(symbol string, decimals int) string {
	return symbol + "|" + strconv.Itoa(decimals)
}

func decodeTokenMeta(v interface{}) (string, int, bool) {
	s, ok := v.(string)
	if !ok {
		return "", 0, false
	}
	idx := strings.LastIndex(s, "|")
	if idx <= 0 {
		return "", 0, false
	}
	dec, err := strconv.Atoi(s[idx+1:])
	if err != nil {
		return "", 0, false
	}
	return s[:idx], dec, true
}

// wordPosForTick returns the tick bitmap word holding the given tick.
func wordPosForTick(tick, tickSpacing int32) int32 {
	compressed := floorDiv(tick, tickSpacing)
	return compressed >> 8
}

// tickForWordBit inverts the bitmap addressing: word and bit back to tick.
func tickForWordBit(wordPos int32, bit int, tickSpacing int32) int32 {
	compressed := wordPos*256 + int32(bit)
	return compressed * tickSpacing
}

// wordsForWindow converts a tick radius into bitmap words each side,
// always scanning at least one word.
func wordsForWindow(tickWindow int, tickSpacing int32) int32 {
	ticksPerWord := int(tickSpacing) * 256
	words := (tickWindow + ticksPerWord - 1) / ticksPerWord
	if words < 1 {
		words = 1
	}
	return int32(words)
}

// setBits lists the set bit positions of a uint256 word, ascending.
func setBits(word *big.Int) []int {
	var bits []int
	for i := 0; i < word.BitLen(); i++ {
		if word.Bit(i) == 1 {
			bits = append(bits, i)
		}
	}
	return bits
}

// floorDiv divides rounding toward negative infinity, matching the
// bitmap's compressed-tick addressing for negative ticks.
func floorDiv(a, b int32) int32 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
