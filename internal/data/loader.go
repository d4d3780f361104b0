package data

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"ohlcv-backtester/pkg/types"
)

// Loader fetches a bar series by path, wrapping the file open in a circuit
// breaker so a flaky external source (a remote CSV endpoint mounted as a
// file, an intermittent network volume) fails fast after repeated errors
// instead of hanging the pipeline. This is resilience around the loading
// collaborator only, never around the core simulation loop.
type Loader struct {
	logger  *zap.Logger
	csv     *CSVLoader
	breaker *gobreaker.CircuitBreaker
	cache   *BarCache // optional; nil disables caching
}

// NewLoader constructs a Loader. cache may be nil to disable memoization.
func NewLoader(logger *zap.Logger, cache *BarCache) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "bar-source",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("bar source circuit breaker state change",
				zap.String("breaker", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
	return &Loader{
		logger:  logger,
		csv:     NewCSVLoader(logger),
		breaker: breaker,
		cache:   cache,
	}
}

// LoadFile loads a bar series from a CSV file at path, through the cache
// (if configured) and circuit breaker. Concurrent loads of the same path
// are deduplicated by the cache's singleflight group.
func (l *Loader) LoadFile(ctx context.Context, path string) ([]types.Bar, error) {
	if l.cache != nil {
		return l.cache.GetOrLoad(ctx, path, func() ([]types.Bar, error) {
			return l.loadFileThroughBreaker(path)
		})
	}
	return l.loadFileThroughBreaker(path)
}

func (l *Loader) loadFileThroughBreaker(path string) ([]types.Bar, error) {
	result, err := l.breaker.Execute(func() (interface{}, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()

		res, err := l.csv.Parse(f)
		if err != nil {
			return nil, err
		}
		if res.MalformedRows > 0 || res.ImpossibleOHLC > 0 {
			l.logger.Warn("bar source had data-quality issues",
				zap.String("path", path),
				zap.Int("malformed_rows", res.MalformedRows),
				zap.Int("impossible_ohlc", res.ImpossibleOHLC),
				zap.Int("total_rows", res.TotalRows))
		}
		return res.Bars, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]types.Bar), nil
}
