package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	_ "modernc.org/sqlite"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"ohlcv-backtester/pkg/types"
)

// BarCache memoizes parsed bar slices per (path, mtime) in a SQLite
// database, so repeated runs against the same fixture don't re-parse.
// Concurrent loads of the same key are deduplicated with a singleflight
// group, mirroring the request-coalescing pattern used for rate-limited
// external fetches elsewhere in this codebase's lineage.
type BarCache struct {
	logger *zap.Logger
	db     *sql.DB
	group  singleflight.Group
}

// OpenBarCache opens (or creates) the SQLite-backed bar cache at path.
func OpenBarCache(logger *zap.Logger, path string) (*BarCache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open bar cache: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping bar cache: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS bar_cache (
			path    TEXT NOT NULL,
			mtime   INTEGER NOT NULL,
			payload BLOB NOT NULL,
			PRIMARY KEY (path, mtime)
		);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate bar cache: %w", err)
	}
	return &BarCache{logger: logger, db: db}, nil
}

// Close closes the underlying database handle.
func (c *BarCache) Close() error { return c.db.Close() }

// GetOrLoad returns the cached bar slice for path if its mtime matches a
// cached entry, otherwise calls load, caches the result, and returns it.
// Concurrent calls for the same path share one in-flight load.
func (c *BarCache) GetOrLoad(ctx context.Context, path string, load func() ([]types.Bar, error)) ([]types.Bar, error) {
	result, err, _ := c.group.Do(path, func() (interface{}, error) {
		info, statErr := os.Stat(path)
		if statErr != nil {
			return nil, fmt.Errorf("stat %s: %w", path, statErr)
		}
		mtime := info.ModTime().Unix()

		if bars, hit := c.lookup(path, mtime); hit {
			c.logger.Debug("bar cache hit", zap.String("path", path))
			return bars, nil
		}

		bars, loadErr := load()
		if loadErr != nil {
			return nil, loadErr
		}
		if err := c.store(path, mtime, bars); err != nil {
			c.logger.Warn("failed to persist bar cache entry", zap.String("path", path), zap.Error(err))
		}
		return bars, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]types.Bar), nil
}

func (c *BarCache) lookup(path string, mtime int64) ([]types.Bar, bool) {
	var payload []byte
	err := c.db.QueryRow(
		`SELECT payload FROM bar_cache WHERE path = ? AND mtime = ?`, path, mtime,
	).Scan(&payload)
	if err != nil {
		return nil, false
	}
	var bars []types.Bar
	if err := json.Unmarshal(payload, &bars); err != nil {
		return nil, false
	}
	return bars, true
}

func (c *BarCache) store(path string, mtime int64, bars []types.Bar) error {
	payload, err := json.Marshal(bars)
	if err != nil {
		return err
	}
	_, err = c.db.Exec(
		`INSERT OR REPLACE INTO bar_cache (path, mtime, payload) VALUES (?, ?, ?)`,
		path, mtime, payload,
	)
	return err
}
