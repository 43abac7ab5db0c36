package arbitrage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel/attribute"

	"github.com/DorianYoung7702/ChainMonitorV2/internal/amm/pool"
	"github.com/DorianYoung7702/ChainMonitorV2/internal/platform/observability"
	"github.com/DorianYoung7702/ChainMonitorV2/internal/platform/worker"
)

// SnapshotSource refetches a pool pair with a wider tick window.
type SnapshotSource interface {
	FetchPair(ctx context.Context, a, b common.Address, tickWindow int) (*pool.Snapshot, *pool.Snapshot, error)
}

// EvaluatorConfig holds batch evaluator configuration.
type EvaluatorConfig struct {
	Strategy Strategy
	Exact    ExactConfig
	Screen   ScreenConfig

	// Concurrency is the number of pair evaluations in flight at once.
	Concurrency int
	// MaxPairs caps the number of pool pairs evaluated per run.
	MaxPairs int

	// Source, when set, enables widen-and-retry: a pair whose exact legs
	// end incomplete is refetched with a doubled tick window before being
	// reported non-executable.
	Source            SnapshotSource
	InitialTickWindow int
	MaxWindowRetries  int

	Logger  *observability.Logger
	Metrics *observability.Metrics
	Tracer  observability.Tracer
}

// Evaluator fans pool pairs out over a worker pool and aggregates the
// per-pair results. Pair-level failures become warnings in the batch result;
// the run itself only fails on a cancelled context.
type Evaluator struct {
	cfg EvaluatorConfig
}

// Defaults applied by NewEvaluator.
const (
	DefaultConcurrency       = 4
	DefaultMaxPairs          = 64
	DefaultInitialTickWindow = 1200
	DefaultMaxWindowRetries  = 2
)

// NewEvaluator creates a batch evaluator.
func NewEvaluator(cfg EvaluatorConfig) *Evaluator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.MaxPairs <= 0 {
		cfg.MaxPairs = DefaultMaxPairs
	}
	if cfg.InitialTickWindow <= 0 {
		cfg.InitialTickWindow = DefaultInitialTickWindow
	}
	if cfg.MaxWindowRetries <= 0 {
		cfg.MaxWindowRetries = DefaultMaxWindowRetries
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NewLogger("info", "json")
	}
	if cfg.Tracer == nil {
		cfg.Tracer = observability.NewNoopTracer()
	}
	return &Evaluator{cfg: cfg}
}

// Run evaluates every same-pair pool combination in the input set under the
// configured strategy. It always returns whatever was computable; per-pair
// errors are reported as warnings, never aborting the batch.
func (e *Evaluator) Run(ctx context.Context, pools []*pool.Snapshot) *BatchResult {
	ctx, span := e.cfg.Tracer.StartSpan(ctx, "arbitrage.batch",
		observability.WithAttributes(
			attribute.String("strategy", e.cfg.Strategy.String()),
			attribute.Int("pool_count", len(pools)),
		))
	defer span.End()
	start := time.Now()
	defer func() {
		e.cfg.Metrics.RecordScan(ctx, e.cfg.Strategy.String(), time.Since(start))
	}()

	if e.cfg.Strategy == StrategyScreen {
		screened := Screen(pools, e.cfg.Screen)
		result := &BatchResult{
			PoolCount:     screened.PoolCount,
			PairsTried:    len(screened.Opportunities),
			Opportunities: screened.Opportunities,
			Best:          screened.Best,
			Warnings:      screened.Warnings,
		}
		e.cfg.Logger.LogInfo(ctx, "screen pass finished",
			"pools", len(pools),
			"candidates", len(result.Opportunities),
			"warnings", len(result.Warnings))
		return result
	}

	result := &BatchResult{PoolCount: len(pools)}
	pairs := e.pairUp(pools, result)
	result.PairsTried = len(pairs)
	if len(pairs) == 0 {
		return result
	}

	wp := worker.NewPool[*Opportunity](ctx, e.cfg.Concurrency, len(pairs))
	defer wp.Close()

	jobs := make([]worker.Job[*Opportunity], len(pairs))
	for i, pr := range pairs {
		a, b := pr[0], pr[1]
		jobs[i] = worker.Job[*Opportunity]{
			ID: fmt.Sprintf("%s/%s", a.Address.Hex(), b.Address.Hex()),
			Execute: func(jobCtx context.Context) (*Opportunity, error) {
				return e.evaluatePair(jobCtx, a, b)
			},
		}
	}

	for _, res := range wp.SubmitAndWait(jobs) {
		if res.Err != nil {
			e.cfg.Metrics.RecordError(ctx, "pair_evaluation")
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("pair %s failed: %v", res.JobID, res.Err))
			continue
		}
		result.Opportunities = append(result.Opportunities, res.Value)
	}

	// Executable candidates first, then by net spread.
	sort.SliceStable(result.Opportunities, func(i, j int) bool {
		oi, oj := result.Opportunities[i], result.Opportunities[j]
		if oi.Executable != oj.Executable {
			return oi.Executable
		}
		return oi.NetSpreadBps > oj.NetSpreadBps
	})
	if len(result.Opportunities) > 0 {
		result.Best = result.Opportunities[0]
	}

	e.cfg.Logger.LogInfo(ctx, "exact pass finished",
		"pools", len(pools),
		"pairs", result.PairsTried,
		"opportunities", len(result.Opportunities),
		"warnings", len(result.Warnings))
	return result
}

// RunReserves evaluates constant-product pools pairwise with the geometric
// trade-size scan, trying the cycle from both start tokens and keeping the
// better one per pair.
func (e *Evaluator) RunReserves(ctx context.Context, pools []*ReservePool, scan ScanConfig) []*CycleResult {
	ctx, span := e.cfg.Tracer.StartSpan(ctx, "arbitrage.batch.reserves",
		observability.WithAttributes(attribute.Int("pool_count", len(pools))))
	defer span.End()
	start := time.Now()
	defer func() {
		e.cfg.Metrics.RecordScan(ctx, StrategyConstantProduct.String(), time.Since(start))
	}()

	var results []*CycleResult
	tried := 0
	for i := 0; i < len(pools); i++ {
		for j := i + 1; j < len(pools); j++ {
			a, b := pools[i], pools[j]
			if a == nil || b == nil || a.Token0 != b.Token0 || a.Token1 != b.Token1 {
				continue
			}
			if tried >= e.cfg.MaxPairs {
				return results
			}
			tried++

			best := e.bestCycleEitherWay(a, b, scan)
			e.cfg.Metrics.RecordPairEvaluation(ctx, StrategyConstantProduct.String(), true, 0)
			if best != nil && best.Profit.Sign() > 0 {
				results = append(results, best)
			}
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Profit.Cmp(results[j].Profit) > 0
	})
	return results
}

// bestCycleEitherWay scans both pool orderings and both start tokens.
func (e *Evaluator) bestCycleEitherWay(a, b *ReservePool, scan ScanConfig) *CycleResult {
	var best *CycleResult
	for _, dir := range [][2]*ReservePool{{a, b}, {b, a}} {
		for _, startToken := range []CycleToken{CycleFromToken0, CycleFromToken1} {
			res := ScanBestCycle(dir[0], dir[1], startToken, scan)
			if best == nil || res.Profit.Cmp(best.Profit) > 0 {
				best = res
			}
		}
	}
	return best
}

// pairUp lists every unordered same-pair pool combination, up to MaxPairs.
// Invalid snapshots become warnings.
func (e *Evaluator) pairUp(pools []*pool.Snapshot, result *BatchResult) [][2]*pool.Snapshot {
	groups := make(map[pairKey][]*pool.Snapshot)
	for _, p := range pools {
		if p == nil {
			result.Warnings = append(result.Warnings, "nil pool snapshot skipped")
			continue
		}
		if err := p.Validate(); err != nil {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("pool %s skipped: %v", p.Address.Hex(), err))
			continue
		}
		key := pairKey{p.Token0, p.Token1}
		groups[key] = append(groups[key], p)
	}

	var pairs [][2]*pool.Snapshot
	for _, group := range groups {
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				if len(pairs) >= e.cfg.MaxPairs {
					result.Warnings = append(result.Warnings,
						fmt.Sprintf("pair cap %d reached; remaining pairs skipped", e.cfg.MaxPairs))
					return pairs
				}
				pairs = append(pairs, [2]*pool.Snapshot{group[i], group[j]})
			}
		}
	}
	return pairs
}

// evaluatePair runs one exact evaluation, widening the tick window and
// refetching when a leg ends incomplete and a snapshot source is available.
func (e *Evaluator) evaluatePair(ctx context.Context, a, b *pool.Snapshot) (*Opportunity, error) {
	start := time.Now()
	opp, err := EvaluateExact(a, b, e.cfg.Exact)
	e.cfg.Metrics.RecordPairEvaluation(ctx, StrategyExact.String(), err == nil, time.Since(start))
	if err != nil {
		return nil, err
	}
	e.recordLegs(ctx, opp)

	window := e.cfg.InitialTickWindow
	for retry := 0; retry < e.cfg.MaxWindowRetries && e.needsWiderWindow(opp) && e.cfg.Source != nil; retry++ {
		window *= 2
		e.cfg.Logger.LogDebug(ctx, "leg incomplete, refetching with wider tick window",
			"buy_pool", opp.BuyPool.Hex(),
			"sell_pool", opp.SellPool.Hex(),
			"tick_window", window)

		wa, wb, ferr := e.cfg.Source.FetchPair(ctx, a.Address, b.Address, window)
		if ferr != nil {
			e.cfg.Metrics.RecordError(ctx, "snapshot_refetch")
			break
		}
		wide, werr := EvaluateExact(wa, wb, e.cfg.Exact)
		if werr != nil {
			break
		}
		opp = wide
		e.recordLegs(ctx, opp)
	}

	pair := opp.Symbol0 + "-" + opp.Symbol1
	e.cfg.Metrics.RecordOpportunity(ctx, StrategyExact.String(), pair, opp.Executable, opp.NetSpreadBps)
	return opp, nil
}

// needsWiderWindow reports whether the evaluation failed specifically
// because a leg ran out of fetched ticks.
func (e *Evaluator) needsWiderWindow(opp *Opportunity) bool {
	if opp.Executable {
		return false
	}
	if opp.BuyLeg != nil && opp.BuyLeg.Incomplete {
		return true
	}
	return opp.SellLeg != nil && opp.SellLeg.Incomplete
}

func (e *Evaluator) recordLegs(ctx context.Context, opp *Opportunity) {
	if opp.BuyLeg != nil {
		e.cfg.Metrics.RecordSimulation(ctx, opp.BuyLeg.TicksCrossed, opp.BuyLeg.Incomplete, opp.BuyLeg.Reason)
	}
	if opp.SellLeg != nil {
		e.cfg.Metrics.RecordSimulation(ctx, opp.SellLeg.TicksCrossed, opp.SellLeg.Incomplete, opp.SellLeg.Reason)
	}
}
