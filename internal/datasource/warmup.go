package datasource

import (
	"context"
	"strings"
	"time"

	"github.com/DorianYoung7702/ChainMonitorV2/internal/platform/cache"
	"github.com/DorianYoung7702/ChainMonitorV2/internal/platform/config"
)

// TokenMetaWarmer pre-populates the cache with metadata for the well-known
// tokens, so the first scan pass skips the ERC20 symbol/decimals calls.
type TokenMetaWarmer struct {
	cache cache.Cache
	ttl   time.Duration
}

// NewTokenMetaWarmer creates a warmup provider over the token registry.
func NewTokenMetaWarmer(c cache.Cache, ttl time.Duration) *TokenMetaWarmer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenMetaWarmer{cache: c, ttl: ttl}
}

// Name identifies this provider in warmup logs.
func (w *TokenMetaWarmer) Name() string {
	return "token-metadata"
}

// Warmup seeds every registry token's symbol and decimals.
func (w *TokenMetaWarmer) Warmup(ctx context.Context) error {
	for _, info := range config.TokenRegistry {
		key := "token:meta:" + strings.ToLower(info.Address)
		if err := w.cache.Set(ctx, key, encodeTokenMeta(info.Symbol, info.Decimals), w.ttl); err != nil {
			return err
		}
	}
	return nil
}
