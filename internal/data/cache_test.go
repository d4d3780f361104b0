package data

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ohlcv-backtester/pkg/types"
)

func TestBarCacheReturnsCachedBarsOnSecondCall(t *testing.T) {
	dir := t.TempDir()
	cache, err := OpenBarCache(nil, filepath.Join(dir, "bars.db"))
	if err != nil {
		t.Fatalf("open bar cache: %v", err)
	}
	defer cache.Close()

	dataFile := filepath.Join(dir, "bars.csv")
	if err := os.WriteFile(dataFile, []byte("irrelevant"), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	calls := 0
	load := func() ([]types.Bar, error) {
		calls++
		return []types.Bar{{Timestamp: 1000, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10}}, nil
	}

	bars1, err := cache.GetOrLoad(context.Background(), dataFile, load)
	if err != nil {
		t.Fatalf("first load: %v", err)
	}
	bars2, err := cache.GetOrLoad(context.Background(), dataFile, load)
	if err != nil {
		t.Fatalf("second load: %v", err)
	}

	if calls != 1 {
		t.Fatalf("expected loader to run once, ran %d times", calls)
	}
	if len(bars1) != 1 || len(bars2) != 1 {
		t.Fatalf("expected 1 bar from both calls, got %d and %d", len(bars1), len(bars2))
	}
}

func TestBarCacheReloadsAfterMtimeChange(t *testing.T) {
	dir := t.TempDir()
	cache, err := OpenBarCache(nil, filepath.Join(dir, "bars.db"))
	if err != nil {
		t.Fatalf("open bar cache: %v", err)
	}
	defer cache.Close()

	dataFile := filepath.Join(dir, "bars.csv")
	if err := os.WriteFile(dataFile, []byte("v1"), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	calls := 0
	load := func() ([]types.Bar, error) {
		calls++
		return []types.Bar{{Timestamp: int64(calls), Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10}}, nil
	}

	if _, err := cache.GetOrLoad(context.Background(), dataFile, load); err != nil {
		t.Fatalf("first load: %v", err)
	}

	info, err := os.Stat(dataFile)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	newTime := info.ModTime().Add(2 * time.Second)
	if err := os.Chtimes(dataFile, newTime, newTime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	if _, err := cache.GetOrLoad(context.Background(), dataFile, load); err != nil {
		t.Fatalf("second load: %v", err)
	}

	if calls != 2 {
		t.Fatalf("expected loader to re-run after mtime change, ran %d times", calls)
	}
}
