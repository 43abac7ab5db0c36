// Package storage persists detected opportunities to a local SQLite
// database for later inspection and backtesting.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/DorianYoung7702/ChainMonitorV2/internal/arbitrage"
)

// Wide integers are stored as decimal strings: SQLite integers cap at
// 64 bits and raw token amounts do not fit.
const schema = `
CREATE TABLE IF NOT EXISTS opportunities (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	detected_at         TIMESTAMP NOT NULL,
	strategy            TEXT NOT NULL,
	pair                TEXT NOT NULL,
	buy_pool            TEXT NOT NULL,
	sell_pool           TEXT NOT NULL,
	buy_fee_ppm         INTEGER NOT NULL,
	sell_fee_ppm        INTEGER NOT NULL,
	spot_buy_price      REAL NOT NULL,
	spot_sell_price     REAL NOT NULL,
	gross_spread_bps    REAL NOT NULL,
	net_spread_bps      REAL NOT NULL,
	trade_size_token0   REAL NOT NULL,
	amount0_in_raw      TEXT,
	amount1_out_raw     TEXT,
	amount0_out_raw     TEXT,
	profit_token0       REAL NOT NULL,
	gas_cost_token0     REAL,
	profit_after_gas    REAL,
	executable          INTEGER NOT NULL,
	reason              TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_opportunities_detected_at ON opportunities(detected_at);
CREATE INDEX IF NOT EXISTS idx_opportunities_pair ON opportunities(pair);
`

// Record is one persisted opportunity row.
type Record struct {
	ID             int64
	DetectedAt     time.Time
	Strategy       string
	Pair           string
	BuyPool        string
	SellPool       string
	BuyFeePPM      uint32
	SellFeePPM     uint32
	SpotBuyPrice   float64
	SpotSellPrice  float64
	GrossSpreadBps float64
	NetSpreadBps   float64

	TradeSizeToken0 float64
	Amount0InRaw    *big.Int
	Amount1OutRaw   *big.Int
	Amount0OutRaw   *big.Int
	ProfitToken0    float64

	GasCostToken0  *float64
	ProfitAfterGas *float64

	Executable bool
	Reason     string
}

// OpportunityStore writes opportunities to SQLite.
type OpportunityStore struct {
	db *sql.DB
}

// NewOpportunityStore opens (or creates) the database at dbPath and
// applies the schema.
func NewOpportunityStore(dbPath string) (*OpportunityStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open opportunity db: %w", err)
	}

	// WAL mode for better concurrency between the scanner and readers
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialise schema: %w", err)
	}

	return &OpportunityStore{db: db}, nil
}

// Close closes the database.
func (s *OpportunityStore) Close() error {
	return s.db.Close()
}

// Save persists one opportunity.
func (s *OpportunityStore) Save(ctx context.Context, opp *arbitrage.Opportunity) (int64, error) {
	if opp == nil {
		return 0, fmt.Errorf("nil opportunity")
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO opportunities (
			detected_at, strategy, pair, buy_pool, sell_pool,
			buy_fee_ppm, sell_fee_ppm, spot_buy_price, spot_sell_price,
			gross_spread_bps, net_spread_bps, trade_size_token0,
			amount0_in_raw, amount1_out_raw, amount0_out_raw,
			profit_token0, gas_cost_token0, profit_after_gas,
			executable, reason
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		time.Now().UTC(),
		opp.Strategy.String(),
		opp.Symbol0+"-"+opp.Symbol1,
		opp.BuyPool.Hex(),
		opp.SellPool.Hex(),
		opp.BuyFeePPM,
		opp.SellFeePPM,
		opp.SpotBuyPrice,
		opp.SpotSellPrice,
		opp.GrossSpreadBps,
		opp.NetSpreadBps,
		opp.TradeSizeToken0,
		bigString(opp.Amount0InRaw),
		bigString(opp.Amount1OutRaw),
		bigString(opp.Amount0OutRaw),
		opp.ProfitToken0,
		floatOrNil(opp.GasCostToken0),
		floatOrNil(opp.ProfitAfterGasToken0),
		opp.Executable,
		opp.Reason,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert opportunity: %w", err)
	}
	return res.LastInsertId()
}

// SaveBatch persists every opportunity of a batch result in one
// transaction. Returns the number of rows written.
func (s *OpportunityStore) SaveBatch(ctx context.Context, opps []*arbitrage.Opportunity) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO opportunities (
			detected_at, strategy, pair, buy_pool, sell_pool,
			buy_fee_ppm, sell_fee_ppm, spot_buy_price, spot_sell_price,
			gross_spread_bps, net_spread_bps, trade_size_token0,
			amount0_in_raw, amount1_out_raw, amount0_out_raw,
			profit_token0, gas_cost_token0, profit_after_gas,
			executable, reason
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	written := 0
	now := time.Now().UTC()
	for _, opp := range opps {
		if opp == nil {
			continue
		}
		if _, err := stmt.ExecContext(ctx,
			now,
			opp.Strategy.String(),
			opp.Symbol0+"-"+opp.Symbol1,
			opp.BuyPool.Hex(),
			opp.SellPool.Hex(),
			opp.BuyFeePPM,
			opp.SellFeePPM,
			opp.SpotBuyPrice,
			opp.SpotSellPrice,
			opp.GrossSpreadBps,
			opp.NetSpreadBps,
			opp.TradeSizeToken0,
			bigString(opp.Amount0InRaw),
			bigString(opp.Amount1OutRaw),
			bigString(opp.Amount0OutRaw),
			opp.ProfitToken0,
			floatOrNil(opp.GasCostToken0),
			floatOrNil(opp.ProfitAfterGasToken0),
			opp.Executable,
			opp.Reason,
		); err != nil {
			return written, fmt.Errorf("failed to insert opportunity: %w", err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit batch: %w", err)
	}
	return written, nil
}

// ListRecent returns up to limit most recent records, newest first.
func (s *OpportunityStore) ListRecent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, detected_at, strategy, pair, buy_pool, sell_pool,
			buy_fee_ppm, sell_fee_ppm, spot_buy_price, spot_sell_price,
			gross_spread_bps, net_spread_bps, trade_size_token0,
			amount0_in_raw, amount1_out_raw, amount0_out_raw,
			profit_token0, gas_cost_token0, profit_after_gas,
			executable, reason
		FROM opportunities
		ORDER BY detected_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query opportunities: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var in0, out1, out0 sql.NullString
		var gasCost, profAfterGas sql.NullFloat64
		if err := rows.Scan(
			&r.ID, &r.DetectedAt, &r.Strategy, &r.Pair, &r.BuyPool, &r.SellPool,
			&r.BuyFeePPM, &r.SellFeePPM, &r.SpotBuyPrice, &r.SpotSellPrice,
			&r.GrossSpreadBps, &r.NetSpreadBps, &r.TradeSizeToken0,
			&in0, &out1, &out0,
			&r.ProfitToken0, &gasCost, &profAfterGas,
			&r.Executable, &r.Reason,
		); err != nil {
			return nil, fmt.Errorf("failed to scan opportunity row: %w", err)
		}

		r.Amount0InRaw = parseBig(in0)
		r.Amount1OutRaw = parseBig(out1)
		r.Amount0OutRaw = parseBig(out0)
		if gasCost.Valid {
			v := gasCost.Float64
			r.GasCostToken0 = &v
		}
		if profAfterGas.Valid {
			v := profAfterGas.Float64
			r.ProfitAfterGas = &v
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// CountByPair returns how many opportunities each pair produced.
func (s *OpportunityStore) CountByPair(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT pair, COUNT(*) FROM opportunities GROUP BY pair`)
	if err != nil {
		return nil, fmt.Errorf("failed to count by pair: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var pair string
		var n int
		if err := rows.Scan(&pair, &n); err != nil {
			return nil, err
		}
		counts[pair] = n
	}
	return counts, rows.Err()
}

func bigString(v *big.Int) interface{} {
	if v == nil {
		return nil
	}
	return v.String()
}

func floatOrNil(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func parseBig(s sql.NullString) *big.Int {
	if !s.Valid {
		return nil
	}
	v, ok := new(big.Int).SetString(s.String, 10)
	if !ok {
		return nil
	}
	return v
}
