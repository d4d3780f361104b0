// Package store provides off-by-default archival of completed backtest
// reports and their trade ledgers to Postgres. Archival is advisory: a
// run always completes and returns its report whether or not the store
// is configured or reachable.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"ohlcv-backtester/pkg/types"
)

// Store archives backtest reports to Postgres.
type Store struct {
	logger *zap.Logger
	db     *sqlx.DB
}

// Open connects to Postgres at dsn and ensures the archival schema exists.
func Open(logger *zap.Logger, dsn string) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := &Store{logger: logger, db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	return s, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS backtest_runs (
			run_id             TEXT PRIMARY KEY,
			final_equity       DOUBLE PRECISION NOT NULL,
			total_return_pct   DOUBLE PRECISION NOT NULL,
			total_trades       INTEGER NOT NULL,
			winning_trades     INTEGER NOT NULL,
			win_rate           DOUBLE PRECISION NOT NULL,
			gross_profit       DOUBLE PRECISION NOT NULL,
			gross_loss         DOUBLE PRECISION NOT NULL,
			profit_factor      DOUBLE PRECISION NOT NULL,
			duration_ms        BIGINT NOT NULL,
			bars_per_sec       DOUBLE PRECISION NOT NULL,
			started_at         TIMESTAMPTZ NOT NULL,
			completed_at       TIMESTAMPTZ NOT NULL,
			trades             JSONB NOT NULL
		)
	`)
	return err
}

// archivedRun is the row shape persisted for one completed run.
type archivedRun struct {
	RunID          string  `db:"run_id"`
	FinalEquity    float64 `db:"final_equity"`
	TotalReturnPct float64 `db:"total_return_pct"`
	TotalTrades    int     `db:"total_trades"`
	WinningTrades  int     `db:"winning_trades"`
	WinRate        float64 `db:"win_rate"`
	GrossProfit    float64 `db:"gross_profit"`
	GrossLoss      float64 `db:"gross_loss"`
	ProfitFactor   float64 `db:"profit_factor"`
	DurationMs     int64     `db:"duration_ms"`
	BarsPerSec     float64   `db:"bars_per_sec"`
	StartedAt      time.Time `db:"started_at"`
	CompletedAt    time.Time `db:"completed_at"`
	Trades         []byte    `db:"trades"`
}

// Archive persists a completed report. Archival failures are returned to
// the caller to log, never to abort the run that produced the report.
func (s *Store) Archive(ctx context.Context, report types.BacktestReport) error {
	tradesJSON, err := json.Marshal(report.Trades)
	if err != nil {
		return fmt.Errorf("marshal trades: %w", err)
	}

	row := archivedRun{
		RunID:          report.RunID,
		FinalEquity:    report.FinalEquity,
		TotalReturnPct: report.TotalReturnPct,
		TotalTrades:    report.TotalTrades,
		WinningTrades:  report.WinningTrades,
		WinRate:        report.WinRate,
		GrossProfit:    report.GrossProfit,
		GrossLoss:      report.GrossLoss,
		ProfitFactor:   report.ProfitFactor,
		DurationMs:     report.DurationMs,
		BarsPerSec:     report.BarsPerSec,
		StartedAt:      report.StartedAt,
		CompletedAt:    report.CompletedAt,
		Trades:         tradesJSON,
	}

	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO backtest_runs (
			run_id, final_equity, total_return_pct, total_trades, winning_trades,
			win_rate, gross_profit, gross_loss, profit_factor, duration_ms,
			bars_per_sec, started_at, completed_at, trades
		) VALUES (
			:run_id, :final_equity, :total_return_pct, :total_trades, :winning_trades,
			:win_rate, :gross_profit, :gross_loss, :profit_factor, :duration_ms,
			:bars_per_sec, :started_at, :completed_at, :trades
		)
		ON CONFLICT (run_id) DO UPDATE SET
			final_equity = EXCLUDED.final_equity,
			total_return_pct = EXCLUDED.total_return_pct,
			trades = EXCLUDED.trades
	`, row)
	if err != nil {
		return fmt.Errorf("archive run %s: %w", report.RunID, err)
	}
	s.logger.Info("archived backtest run", zap.String("run_id", report.RunID))
	return nil
}

// Fetch loads a previously archived report's trade ledger by run id.
func (s *Store) Fetch(ctx context.Context, runID string) ([]types.Trade, error) {
	var tradesJSON []byte
	err := s.db.GetContext(ctx, &tradesJSON, `SELECT trades FROM backtest_runs WHERE run_id = $1`, runID)
	if err != nil {
		return nil, fmt.Errorf("fetch run %s: %w", runID, err)
	}
	var trades []types.Trade
	if err := json.Unmarshal(tradesJSON, &trades); err != nil {
		return nil, fmt.Errorf("unmarshal trades: %w", err)
	}
	return trades, nil
}
