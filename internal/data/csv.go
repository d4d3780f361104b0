// Package data loads OHLCV bar series from CSV sources, with a circuit
// breaker around the underlying fetch and a SQLite-backed cache keyed by
// file path and modification time.
package data

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"ohlcv-backtester/pkg/types"
)

// expectedHeader is the reference CSV schema.
var expectedHeader = []string{"timestamp", "open", "high", "low", "close", "volume"}

// CSVLoader parses the reference bar format: header
// timestamp,open,high,low,close,volume, timestamp either epoch seconds or
// "YYYY-MM-DD HH:MM:SS" local civil time. Malformed rows are skipped and
// counted rather than aborting the whole load; impossible OHLC rows are
// skipped and logged.
type CSVLoader struct {
	logger *zap.Logger
}

// NewCSVLoader constructs a CSVLoader. A nil logger defaults to zap.NewNop().
func NewCSVLoader(logger *zap.Logger) *CSVLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CSVLoader{logger: logger}
}

// LoadResult carries a parsed bar series plus counts of rows skipped for
// each reason, so a caller can decide whether a run's input was too dirty
// to trust.
type LoadResult struct {
	Bars           []types.Bar
	MalformedRows  int
	ImpossibleOHLC int
	TotalRows      int
}

// Parse reads a full CSV bar series from r. An empty or header-only input
// yields a zero-bar result, not an error.
func (l *CSVLoader) Parse(r io.Reader) (LoadResult, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var result LoadResult
	lineNum := 0
	sawHeader := false

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		lineNum++
		if line == "" {
			continue
		}

		fields := strings.Split(line, ",")
		if !sawHeader {
			sawHeader = true
			if looksLikeHeader(fields) {
				continue
			}
		}

		result.TotalRows++
		bar, err := parseRow(fields)
		if err != nil {
			result.MalformedRows++
			l.logger.Warn("skipping malformed bar row", zap.Int("line", lineNum), zap.Error(err))
			continue
		}
		if err := bar.Validate(); err != nil {
			result.ImpossibleOHLC++
			l.logger.Warn("skipping impossible OHLC row", zap.Int("line", lineNum), zap.Error(err))
			continue
		}
		if n := len(result.Bars); n > 0 && bar.Timestamp <= result.Bars[n-1].Timestamp {
			l.logger.Warn("non-monotone bar timestamp", zap.Int("line", lineNum), zap.Int64("timestamp", bar.Timestamp))
		}
		result.Bars = append(result.Bars, bar)
	}
	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("scan csv: %w", err)
	}
	return result, nil
}

func looksLikeHeader(fields []string) bool {
	if len(fields) != len(expectedHeader) {
		return false
	}
	for i, f := range fields {
		if !strings.EqualFold(strings.TrimSpace(f), expectedHeader[i]) {
			return false
		}
	}
	return true
}

func parseRow(fields []string) (types.Bar, error) {
	if len(fields) != 6 {
		return types.Bar{}, fmt.Errorf("expected 6 fields, got %d", len(fields))
	}

	ts, err := parseTimestamp(strings.TrimSpace(fields[0]))
	if err != nil {
		return types.Bar{}, fmt.Errorf("timestamp: %w", err)
	}
	open, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil {
		return types.Bar{}, fmt.Errorf("open: %w", err)
	}
	high, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
	if err != nil {
		return types.Bar{}, fmt.Errorf("high: %w", err)
	}
	low, err := strconv.ParseFloat(strings.TrimSpace(fields[3]), 64)
	if err != nil {
		return types.Bar{}, fmt.Errorf("low: %w", err)
	}
	closeP, err := strconv.ParseFloat(strings.TrimSpace(fields[4]), 64)
	if err != nil {
		return types.Bar{}, fmt.Errorf("close: %w", err)
	}
	volume, err := strconv.ParseFloat(strings.TrimSpace(fields[5]), 64)
	if err != nil {
		return types.Bar{}, fmt.Errorf("volume: %w", err)
	}

	return types.Bar{
		Timestamp: ts,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closeP,
		Volume:    volume,
	}, nil
}

// parseTimestamp accepts either epoch seconds or "YYYY-MM-DD HH:MM:SS"
// local civil time.
func parseTimestamp(s string) (int64, error) {
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		return sec, nil
	}
	t, err := time.ParseInLocation("2006-01-02 15:04:05", s, time.Local)
	if err != nil {
		return 0, err
	}
	return t.Unix(), nil
}
