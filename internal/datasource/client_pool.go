// Package datasource fetches pool state from Ethereum nodes and assembles
// the snapshots the arbitrage evaluator consumes.
package datasource

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/DorianYoung7702/ChainMonitorV2/internal/platform/observability"
)

// RPCEndpoint represents a single Ethereum RPC endpoint
type RPCEndpoint struct {
	URL     string
	Weight  int
	Client  *ethclient.Client
	healthy atomic.Bool
}

// ClientPool manages multiple RPC endpoints with health tracking and failover
type ClientPool struct {
	endpoints      []*RPCEndpoint
	current        int
	mu             sync.RWMutex
	logger         *observability.Logger
	metrics        *observability.Metrics
	healthCheckTTL time.Duration
	stopCh         chan struct{}
}

// ClientPoolConfig holds client pool configuration
type ClientPoolConfig struct {
	Endpoints      []EndpointConfig
	Logger         *observability.Logger
	Metrics        *observability.Metrics
	HealthCheckTTL time.Duration
}

// EndpointConfig represents endpoint configuration
type EndpointConfig struct {
	URL    string
	Weight int
}

// NewClientPool creates a new RPC client pool with multiple endpoints
func NewClientPool(cfg ClientPoolConfig) (*ClientPool, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("at least one RPC endpoint is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NewLogger("info", "json")
	}
	if cfg.HealthCheckTTL == 0 {
		cfg.HealthCheckTTL = 30 * time.Second
	}

	endpoints := make([]*RPCEndpoint, 0, len(cfg.Endpoints))
	for _, epCfg := range cfg.Endpoints {
		endpoint := &RPCEndpoint{
			URL:    epCfg.URL,
			Weight: epCfg.Weight,
		}

		client, err := ethclient.Dial(epCfg.URL)
		if err != nil {
			cfg.Logger.LogError(context.Background(), "failed to connect to RPC endpoint", err,
				"url", epCfg.URL,
			)
			endpoint.healthy.Store(false)
			endpoints = append(endpoints, endpoint)
			continue
		}

		endpoint.Client = client
		endpoint.healthy.Store(true)
		endpoints = append(endpoints, endpoint)

		cfg.Logger.Info("connected to RPC endpoint",
			"url", epCfg.URL,
			"weight", epCfg.Weight,
		)
	}

	hasHealthy := false
	for _, ep := range endpoints {
		if ep.healthy.Load() {
			hasHealthy = true
			break
		}
	}
	if !hasHealthy {
		return nil, fmt.Errorf("no healthy RPC endpoints available")
	}

	pool := &ClientPool{
		endpoints:      endpoints,
		logger:         cfg.Logger,
		metrics:        cfg.Metrics,
		healthCheckTTL: cfg.HealthCheckTTL,
		stopCh:         make(chan struct{}),
	}

	go pool.runHealthChecks()

	return pool, nil
}

// GetClient returns the next healthy client using round-robin selection
func (cp *ClientPool) GetClient() (*ethclient.Client, string, error) {
	cp.mu.Lock()
	defer cp.mu.Unlock()

	for attempts := 0; attempts < len(cp.endpoints); attempts++ {
		endpoint := cp.endpoints[cp.current]
		cp.current = (cp.current + 1) % len(cp.endpoints)

		if endpoint.healthy.Load() && endpoint.Client != nil {
			return endpoint.Client, endpoint.URL, nil
		}
	}

	return nil, "", fmt.Errorf("no healthy RPC endpoints available")
}

// MarkUnhealthy marks an endpoint as unhealthy, taking it out of rotation
// until the next successful health check
func (cp *ClientPool) MarkUnhealthy(url string) {
	cp.mu.RLock()
	defer cp.mu.RUnlock()

	for _, endpoint := range cp.endpoints {
		if endpoint.URL == url {
			if endpoint.healthy.Swap(false) {
				cp.logger.Warn("marking RPC endpoint as unhealthy", "url", url)
				cp.metrics.RecordRPCEndpointHealth(context.Background(), url, false)
			}
			return
		}
	}
}

// HealthyEndpointCount returns the number of healthy endpoints
func (cp *ClientPool) HealthyEndpointCount() int {
	cp.mu.RLock()
	defer cp.mu.RUnlock()

	count := 0
	for _, endpoint := range cp.endpoints {
		if endpoint.healthy.Load() {
			count++
		}
	}
	return count
}

// EndpointStatus returns the health of every endpoint by URL
func (cp *ClientPool) EndpointStatus() map[string]bool {
	cp.mu.RLock()
	defer cp.mu.RUnlock()

	status := make(map[string]bool, len(cp.endpoints))
	for _, endpoint := range cp.endpoints {
		status[endpoint.URL] = endpoint.healthy.Load()
	}
	return status
}

// BlockNumber returns the latest block number from a healthy endpoint
func (cp *ClientPool) BlockNumber(ctx context.Context) (uint64, error) {
	client, url, err := cp.GetClient()
	if err != nil {
		return 0, err
	}

	n, err := client.BlockNumber(ctx)
	if err != nil {
		cp.MarkUnhealthy(url)
		return 0, err
	}
	return n, nil
}

// Close stops health checking and closes all client connections
func (cp *ClientPool) Close() {
	close(cp.stopCh)

	cp.mu.Lock()
	defer cp.mu.Unlock()

	for _, endpoint := range cp.endpoints {
		if endpoint.Client != nil {
			endpoint.Client.Close()
		}
	}
	cp.logger.Info("closed all RPC client connections")
}

// runHealthChecks probes every endpoint on a fixed interval
func (cp *ClientPool) runHealthChecks() {
	ticker := time.NewTicker(cp.healthCheckTTL)
	defer ticker.Stop()

	for {
		select {
		case <-cp.stopCh:
			return
		case <-ticker.C:
			cp.checkAllEndpoints()
		}
	}
}

func (cp *ClientPool) checkAllEndpoints() {
	ctx, cancel := context.WithTimeout(context.Background(), cp.healthCheckTTL)
	defer cancel()

	cp.mu.RLock()
	endpoints := cp.endpoints
	cp.mu.RUnlock()

	var wg sync.WaitGroup
	for _, endpoint := range endpoints {
		wg.Add(1)
		go func(ep *RPCEndpoint) {
			defer wg.Done()
			cp.checkEndpoint(ctx, ep)
		}(endpoint)
	}
	wg.Wait()
}

// checkEndpoint probes one endpoint by fetching the latest block number,
// reconnecting first when the client was torn down
func (cp *ClientPool) checkEndpoint(ctx context.Context, endpoint *RPCEndpoint) {
	if endpoint.Client == nil {
		client, err := ethclient.Dial(endpoint.URL)
		if err != nil {
			endpoint.healthy.Store(false)
			cp.metrics.RecordRPCEndpointHealth(ctx, endpoint.URL, false)
			return
		}
		endpoint.Client = client
		cp.logger.Info("reconnected to RPC endpoint", "url", endpoint.URL)
	}

	if _, err := endpoint.Client.BlockNumber(ctx); err != nil {
		// A cancelled probe says nothing about the endpoint itself
		if ctx.Err() != nil {
			cp.logger.Debug("RPC health check timed out, keeping client alive",
				"url", endpoint.URL,
				"error", err.Error())
			return
		}

		if endpoint.healthy.Swap(false) {
			cp.logger.LogError(ctx, "RPC endpoint health check failed", err,
				"url", endpoint.URL,
			)
		}
		cp.metrics.RecordRPCEndpointHealth(ctx, endpoint.URL, false)

		endpoint.Client.Close()
		endpoint.Client = nil
		return
	}

	if !endpoint.healthy.Swap(true) {
		cp.logger.Info("RPC endpoint is now healthy", "url", endpoint.URL)
	}
	cp.metrics.RecordRPCEndpointHealth(ctx, endpoint.URL, true)
}
