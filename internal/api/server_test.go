package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ohlcv-backtester/internal/data"
	"ohlcv-backtester/internal/report"
	"ohlcv-backtester/pkg/types"
)

func writeFixtureCSV(t *testing.T, path string) {
	t.Helper()
	var b strings.Builder
	b.WriteString("timestamp,open,high,low,close,volume\n")
	base := int64(1700000000)
	price := 100.0
	for i := 0; i < 300; i++ {
		ts := base + int64(i)*60
		price += 0.1
		fmt.Fprintf(&b, "%d,%.2f,%.2f,%.2f,%.2f,%d\n", ts, price, price+0.2, price-0.2, price+0.05, 1000)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
}

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "bars.csv")
	writeFixtureCSV(t, csvPath)

	loader := data.NewLoader(nil, nil)
	metrics := report.NewMetricsRegistry()
	cfg := types.DefaultServerConfig()
	cfg.RateLimitRPS = 1000
	cfg.RateLimitBurst = 1000

	s := NewServer(nil, cfg, loader, metrics)
	return s, csvPath
}

func TestHandleRunBacktestLaunchesRunAndCompletes(t *testing.T) {
	s, csvPath := newTestServer(t)

	body, _ := json.Marshal(RunRequest{Config: types.DefaultEngineConfig(), DataPath: csvPath})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/backtests", bytes.NewReader(body))
	req.RemoteAddr = "127.0.0.1:1111"
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	id, ok := resp["id"].(string)
	if !ok || id == "" {
		t.Fatalf("expected run id in response, got %v", resp)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		s.mu.RLock()
		state := s.runs[id]
		s.mu.RUnlock()
		if state.Status == "running" {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		if state.Status != "completed" {
			t.Fatalf("expected run to complete, got status %q error %q", state.Status, state.Error)
		}
		return
	}
	t.Fatalf("run did not complete within deadline")
}

func TestHandleRunBacktestRejectsMissingDataPath(t *testing.T) {
	s, _ := newTestServer(t)
	body, _ := json.Marshal(RunRequest{Config: types.DefaultEngineConfig()})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/backtests", bytes.NewReader(body))
	req.RemoteAddr = "127.0.0.1:1112"
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleGetBacktestNotFound(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/backtests/missing", nil)
	req.RemoteAddr = "127.0.0.1:1113"
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestRecoveredMiddlewareConvertsPanicToInternalError(t *testing.T) {
	s, _ := newTestServer(t)
	handler := s.recovered(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestRateLimitedRejectsBurstAboveLimit(t *testing.T) {
	s, _ := newTestServer(t)
	s.config.RateLimitRPS = 1
	s.config.RateLimitBurst = 1

	handler := s.rateLimited(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.RemoteAddr = "10.0.0.1:5555"

	rec1 := httptest.NewRecorder()
	handler(rec1, req)
	if rec1.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", rec1.Code)
	}

	rec2 := httptest.NewRecorder()
	handler(rec2, req)
	if rec2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be rate limited, got %d", rec2.Code)
	}
}
