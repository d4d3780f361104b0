package store

import (
	"context"
	"os"
	"testing"
	"time"

	"ohlcv-backtester/pkg/types"
)

// These tests exercise Store against a real Postgres instance and are
// skipped unless TEST_POSTGRES_DSN is set, matching the archival store's
// advisory, off-by-default nature.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set, skipping postgres-backed store tests")
	}
	s, err := Open(nil, dsn)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestArchiveAndFetchRoundTrip(t *testing.T) {
	s := openTestStore(t)

	report := types.BacktestReport{
		RunID:          "test-run-1",
		FinalEquity:    110000,
		TotalReturnPct: 0.10,
		TotalTrades:    2,
		WinningTrades:  1,
		WinRate:        0.5,
		GrossProfit:    1500,
		GrossLoss:      500,
		ProfitFactor:   3,
		DurationMs:     1200,
		BarsPerSec:     5000,
		StartedAt:      time.Now().Add(-time.Minute),
		CompletedAt:    time.Now(),
		Trades: []types.Trade{
			{ID: "t1", PnL: 1000},
			{ID: "t2", PnL: -500},
		},
	}

	if err := s.Archive(context.Background(), report); err != nil {
		t.Fatalf("archive: %v", err)
	}

	trades, err := s.Fetch(context.Background(), report.RunID)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(trades))
	}
}

func TestFetchUnknownRunReturnsError(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Fetch(context.Background(), "does-not-exist"); err == nil {
		t.Fatal("expected error fetching unknown run id")
	}
}
