// Command backtest runs the OHLCV backtesting engine over a CSV bar file,
// either as a one-shot run that prints a report to stdout or as a long-
// running API server that accepts runs over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"ohlcv-backtester/internal/api"
	"ohlcv-backtester/internal/backtester"
	"ohlcv-backtester/internal/config"
	"ohlcv-backtester/internal/data"
	"ohlcv-backtester/internal/engine"
	"ohlcv-backtester/internal/report"
	"ohlcv-backtester/internal/store"
	"ohlcv-backtester/pkg/types"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML engine config file")
	dataPath := flag.String("data", "", "path to the OHLCV CSV bar file")
	cachePath := flag.String("cache", "", "path to a sqlite bar cache (optional)")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	serve := flag.Bool("serve", false, "run the HTTP/WebSocket API server instead of a one-shot run")
	host := flag.String("host", "0.0.0.0", "API server host (with -serve)")
	port := flag.Int("port", 8080, "API server port (with -serve)")
	walkForward := flag.Bool("walkforward", false, "run walk-forward analysis after the main backtest")
	monteCarlo := flag.Bool("montecarlo", false, "run Monte Carlo resampling after the main backtest")
	flag.Parse()

	_ = godotenv.Load()

	logger := setupLogger(*logLevel)
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	var cache *data.BarCache
	if *cachePath != "" {
		cache, err = data.OpenBarCache(logger, *cachePath)
		if err != nil {
			logger.Fatal("failed to open bar cache", zap.Error(err))
		}
		defer cache.Close()
	}
	loader := data.NewLoader(logger, cache)
	metrics := report.NewMetricsRegistry()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *serve {
		runServer(logger, loader, metrics, *host, *port)
		return
	}

	if *dataPath == "" {
		logger.Fatal("-data is required for a one-shot run (or pass -serve to run the API server)")
	}

	if err := runOneShot(ctx, logger, loader, *dataPath, cfg, *walkForward, *monteCarlo); err != nil {
		logger.Fatal("backtest run failed", zap.Error(err))
	}
}

func runOneShot(ctx context.Context, logger *zap.Logger, loader *data.Loader, dataPath string, cfg types.EngineConfig, walkForward, monteCarlo bool) error {
	bars, err := loader.LoadFile(ctx, dataPath)
	if err != nil {
		return fmt.Errorf("load bars: %w", err)
	}
	if len(bars) == 0 {
		return fmt.Errorf("no usable bars loaded from %s", dataPath)
	}

	startedAt := time.Now()
	eng := engine.New(logger, cfg)
	eng.Run(bars)
	completedAt := time.Now()

	rep, err := report.Builder{
		RunID:          fmt.Sprintf("run-%d", startedAt.Unix()),
		InitialCapital: cfg.InitialCapital,
		Trades:         eng.Trades(),
		EquityCurve:    eng.EquityCurve(),
		StartedAt:      startedAt,
		CompletedAt:    completedAt,
		BarsProcessed:  eng.BarsProcessed(),
	}.BuildChecked()
	if err != nil {
		logger.Warn("report cross-check mismatch", zap.Error(err))
	}

	fmt.Println(report.String(rep))

	if cfg.Archive.Enabled {
		archiveStore, err := store.Open(logger, cfg.Archive.DSN)
		if err != nil {
			logger.Warn("archival store unavailable, skipping", zap.Error(err))
		} else {
			defer archiveStore.Close()
			if err := archiveStore.Archive(ctx, rep); err != nil {
				logger.Warn("failed to archive run", zap.Error(err))
			}
		}
	}

	if walkForward {
		wf := backtester.NewWalkForwardAnalyzer(logger, cfg, backtester.DefaultWalkForwardConfig())
		result, err := wf.Run(ctx, bars)
		if err != nil {
			logger.Warn("walk-forward analysis failed", zap.Error(err))
		} else if result != nil {
			logger.Info("walk-forward analysis complete",
				zap.Int("windows", len(result.Windows)),
				zap.Float64("robustness", result.Robustness),
			)
		}
	}

	if monteCarlo {
		mc := backtester.NewMonteCarloSimulator(logger, backtester.DefaultMonteCarloConfig())
		mcResult := mc.Run(eng.Trades())
		logger.Info("monte carlo simulation complete",
			zap.Int("iterations", mcResult.Iterations),
			zap.Float64("median_return", mcResult.MedianReturn),
			zap.Float64("probability_ruin", mcResult.ProbabilityRuin),
		)
	}

	return nil
}

func runServer(logger *zap.Logger, loader *data.Loader, metrics *report.MetricsRegistry, host string, port int) {
	cfg := types.DefaultServerConfig()
	cfg.Host = host
	cfg.Port = port
	srv := api.NewServer(logger, cfg, loader, metrics)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("api server error", zap.Error(err))
		}
	}()

	logger.Info("backtest api server started", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	<-sigChan
	logger.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", zap.Error(err))
	}
}

func setupLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	zapCfg := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Encoding:    "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapCfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
