package storage

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/DorianYoung7702/ChainMonitorV2/internal/arbitrage"
)

func testStore(t *testing.T) *OpportunityStore {
	t.Helper()
	store, err := NewOpportunityStore(filepath.Join(t.TempDir(), "opps.db"))
	if err != nil {
		t.Fatalf("NewOpportunityStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleOpportunity(profit float64) *arbitrage.Opportunity {
	gas := 0.0001
	afterGas := profit - gas
	return &arbitrage.Opportunity{
		Strategy:             arbitrage.StrategyExact,
		Symbol0:              "USDC",
		Symbol1:              "WETH",
		BuyPool:              common.HexToAddress("0x0000000000000000000000000000000000002001"),
		SellPool:             common.HexToAddress("0x0000000000000000000000000000000000002002"),
		BuyFeePPM:            3000,
		SellFeePPM:           500,
		SpotBuyPrice:         100.0,
		SpotSellPrice:        101.0,
		GrossSpreadBps:       100.0,
		NetSpreadBps:         40.0,
		TradeSizeToken0:      1.0,
		Amount0InRaw:         new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil),
		Amount1OutRaw:        big.NewInt(9_940_000_000_000_000),
		Amount0OutRaw:        big.NewInt(997_003_988_000_000_000),
		ProfitToken0:         profit,
		GasCostToken0:        &gas,
		ProfitAfterGasToken0: &afterGas,
		Executable:           true,
	}
}

func TestSaveAndListRoundTrip(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	id, err := store.Save(ctx, sampleOpportunity(-0.003))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if id <= 0 {
		t.Errorf("row id = %d, want positive", id)
	}

	records, err := store.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}

	r := records[0]
	if r.Pair != "USDC-WETH" {
		t.Errorf("pair = %q, want USDC-WETH", r.Pair)
	}
	if r.Strategy != "exact" {
		t.Errorf("strategy = %q, want exact", r.Strategy)
	}
	if r.Amount0InRaw == nil || r.Amount0InRaw.String() != "1000000000000000000" {
		t.Errorf("amount0 in = %v, want 1e18 preserved exactly", r.Amount0InRaw)
	}
	if !r.Executable {
		t.Error("executable flag lost")
	}
	if r.GasCostToken0 == nil || *r.GasCostToken0 != 0.0001 {
		t.Errorf("gas cost = %v, want 0.0001", r.GasCostToken0)
	}
}

func TestSaveNilAmountsBecomeNull(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	opp := sampleOpportunity(0)
	opp.Amount0InRaw = nil
	opp.Amount1OutRaw = nil
	opp.Amount0OutRaw = nil
	opp.GasCostToken0 = nil
	opp.ProfitAfterGasToken0 = nil
	opp.Executable = false
	opp.Reason = "buy leg failed"

	if _, err := store.Save(ctx, opp); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	records, err := store.ListRecent(ctx, 1)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	r := records[0]
	if r.Amount0InRaw != nil || r.GasCostToken0 != nil || r.ProfitAfterGas != nil {
		t.Error("null columns should come back as nil")
	}
	if r.Reason != "buy leg failed" {
		t.Errorf("reason = %q, want preserved", r.Reason)
	}
}

func TestSaveBatchAndCounts(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	opps := []*arbitrage.Opportunity{
		sampleOpportunity(0.001),
		sampleOpportunity(-0.002),
		nil,
	}
	n, err := store.SaveBatch(ctx, opps)
	if err != nil {
		t.Fatalf("SaveBatch failed: %v", err)
	}
	if n != 2 {
		t.Errorf("wrote %d rows, want 2 (nil skipped)", n)
	}

	counts, err := store.CountByPair(ctx)
	if err != nil {
		t.Fatalf("CountByPair failed: %v", err)
	}
	if counts["USDC-WETH"] != 2 {
		t.Errorf("pair count = %d, want 2", counts["USDC-WETH"])
	}
}

func TestListRecentOrdering(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	first := sampleOpportunity(0.001)
	second := sampleOpportunity(0.002)
	second.Symbol1 = "WBTC"

	if _, err := store.Save(ctx, first); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := store.Save(ctx, second); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	records, err := store.ListRecent(ctx, 1)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want limit of 1", len(records))
	}
	if records[0].Pair != "USDC-WBTC" {
		t.Errorf("newest record = %q, want USDC-WBTC", records[0].Pair)
	}
}
