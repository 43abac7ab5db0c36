package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

// Metrics holds all application metrics
type Metrics struct {
	meter metric.Meter

	// Scan metrics
	ScanDuration metric.Float64Histogram
	ScansTotal   metric.Int64Counter

	// Pair evaluation metrics
	PairsEvaluated         metric.Int64Counter
	PairEvaluationDuration metric.Float64Histogram

	// Opportunity metrics
	OpportunitiesDetected metric.Int64Counter
	OpportunityNetBps     metric.Float64Histogram

	// Simulation metrics
	SimulationsIncomplete metric.Int64Counter
	TicksCrossed          metric.Int64Histogram

	// RPC metrics
	RPCCalls          metric.Int64Counter
	RPCDuration       metric.Float64Histogram
	RPCEndpointHealth metric.Int64Gauge

	// Cache metrics
	CacheHits   metric.Int64Counter
	CacheMisses metric.Int64Counter

	// Error metrics
	Errors metric.Int64Counter

	// Prometheus exporter for HTTP handler
	exporter *prometheus.Exporter
}

// NewMetrics creates a new Metrics instance
func NewMetrics(serviceName string, enabled bool) (*Metrics, error) {
	if !enabled {
		return &Metrics{}, nil
	}

	// Create resource
	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String("1.0.0"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	// Create Prometheus exporter
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}

	// Create meter provider
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)

	meter := provider.Meter(serviceName)

	m := &Metrics{
		meter:    meter,
		exporter: exporter,
	}

	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return m, nil
}

// initMetrics initializes all metric instruments
func (m *Metrics) initMetrics() error {
	var err error

	m.ScanDuration, err = m.meter.Float64Histogram(
		"amm.scan.duration",
		metric.WithDescription("Full scan duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	m.ScansTotal, err = m.meter.Int64Counter(
		"amm.scans.total",
		metric.WithDescription("Total scan passes executed"),
	)
	if err != nil {
		return err
	}

	m.PairsEvaluated, err = m.meter.Int64Counter(
		"amm.pairs.evaluated",
		metric.WithDescription("Pool pairs evaluated, by strategy and outcome"),
	)
	if err != nil {
		return err
	}

	m.PairEvaluationDuration, err = m.meter.Float64Histogram(
		"amm.pair.evaluation.duration",
		metric.WithDescription("Single pair evaluation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	m.OpportunitiesDetected, err = m.meter.Int64Counter(
		"amm.opportunities.detected",
		metric.WithDescription("Arbitrage opportunities found, by strategy"),
	)
	if err != nil {
		return err
	}

	m.OpportunityNetBps, err = m.meter.Float64Histogram(
		"amm.opportunity.net.bps",
		metric.WithDescription("Net spread of detected opportunities in basis points"),
	)
	if err != nil {
		return err
	}

	m.SimulationsIncomplete, err = m.meter.Int64Counter(
		"amm.simulations.incomplete",
		metric.WithDescription("Swap simulations that ran out of tick window or budget"),
	)
	if err != nil {
		return err
	}

	m.TicksCrossed, err = m.meter.Int64Histogram(
		"amm.simulation.ticks.crossed",
		metric.WithDescription("Initialized ticks crossed per simulated leg"),
	)
	if err != nil {
		return err
	}

	m.RPCCalls, err = m.meter.Int64Counter(
		"amm.rpc.calls",
		metric.WithDescription("RPC calls, by method and status"),
	)
	if err != nil {
		return err
	}

	m.RPCDuration, err = m.meter.Float64Histogram(
		"amm.rpc.duration",
		metric.WithDescription("RPC call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	m.RPCEndpointHealth, err = m.meter.Int64Gauge(
		"amm.rpc.endpoint.health",
		metric.WithDescription("RPC endpoint health (1 healthy, 0 unhealthy)"),
	)
	if err != nil {
		return err
	}

	m.CacheHits, err = m.meter.Int64Counter(
		"amm.cache.hits",
		metric.WithDescription("Cache hits, by cache layer"),
	)
	if err != nil {
		return err
	}

	m.CacheMisses, err = m.meter.Int64Counter(
		"amm.cache.misses",
		metric.WithDescription("Cache misses, by cache layer"),
	)
	if err != nil {
		return err
	}

	m.Errors, err = m.meter.Int64Counter(
		"amm.errors",
		metric.WithDescription("Errors, by component"),
	)
	if err != nil {
		return err
	}

	return nil
}

// enabled reports whether instruments were initialized.
func (m *Metrics) enabled() bool {
	return m != nil && m.meter != nil
}

// RecordScan records one full scan pass
func (m *Metrics) RecordScan(ctx context.Context, strategy string, duration time.Duration) {
	if !m.enabled() {
		return
	}
	attrs := metric.WithAttributes(attribute.String("strategy", strategy))
	m.ScansTotal.Add(ctx, 1, attrs)
	m.ScanDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordPairEvaluation records one evaluated pool pair
func (m *Metrics) RecordPairEvaluation(ctx context.Context, strategy string, success bool, duration time.Duration) {
	if !m.enabled() {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("strategy", strategy),
		attribute.Bool("success", success),
	)
	m.PairsEvaluated.Add(ctx, 1, attrs)
	m.PairEvaluationDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordOpportunity records a detected opportunity and its net spread
func (m *Metrics) RecordOpportunity(ctx context.Context, strategy, pair string, executable bool, netBps float64) {
	if !m.enabled() {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("strategy", strategy),
		attribute.String("pair", pair),
		attribute.Bool("executable", executable),
	)
	m.OpportunitiesDetected.Add(ctx, 1, attrs)
	m.OpportunityNetBps.Record(ctx, netBps, attrs)
}

// RecordSimulation records one simulated leg
func (m *Metrics) RecordSimulation(ctx context.Context, ticksCrossed int, incomplete bool, reason string) {
	if !m.enabled() {
		return
	}
	m.TicksCrossed.Record(ctx, int64(ticksCrossed))
	if incomplete {
		m.SimulationsIncomplete.Add(ctx, 1, metric.WithAttributes(
			attribute.String("reason", reason),
		))
	}
}

// RecordRPCCall records an RPC call
func (m *Metrics) RecordRPCCall(ctx context.Context, method, status string, duration time.Duration) {
	if !m.enabled() {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("status", status),
	)
	m.RPCCalls.Add(ctx, 1, attrs)
	m.RPCDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordRPCEndpointHealth records RPC endpoint health status
func (m *Metrics) RecordRPCEndpointHealth(ctx context.Context, url string, healthy bool) {
	if !m.enabled() {
		return
	}
	val := int64(0)
	if healthy {
		val = 1
	}
	m.RPCEndpointHealth.Record(ctx, val, metric.WithAttributes(
		attribute.String("url", url),
	))
}

// RecordCacheHit records a cache hit
func (m *Metrics) RecordCacheHit(ctx context.Context, layer string) {
	if !m.enabled() {
		return
	}
	m.CacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("layer", layer)))
}

// RecordCacheMiss records a cache miss
func (m *Metrics) RecordCacheMiss(ctx context.Context, layer string) {
	if !m.enabled() {
		return
	}
	m.CacheMisses.Add(ctx, 1, metric.WithAttributes(attribute.String("layer", layer)))
}

// RecordError records an error by component
func (m *Metrics) RecordError(ctx context.Context, component string) {
	if !m.enabled() {
		return
	}
	m.Errors.Add(ctx, 1, metric.WithAttributes(attribute.String("component", component)))
}

// Handler returns the Prometheus metrics HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
