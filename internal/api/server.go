// Package api provides the ambient HTTP and WebSocket surface around the
// backtesting core: launch runs, poll their status, stream progress, and
// expose Prometheus metrics. The core engine itself has no network
// awareness; this package is a thin orchestration layer on top of it.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"ohlcv-backtester/internal/data"
	"ohlcv-backtester/internal/engine"
	"ohlcv-backtester/internal/report"
	"ohlcv-backtester/pkg/types"
)

// Server is the HTTP/WebSocket API server fronting the backtesting core.
type Server struct {
	mu         sync.RWMutex
	logger     *zap.Logger
	config     types.ServerConfig
	router     *mux.Router
	httpServer *http.Server
	upgrader   websocket.Upgrader

	loader  *data.Loader
	metrics *report.MetricsRegistry
	redis   *redis.Client

	clients map[string]*Client
	runs    map[string]*RunState

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter
}

// Client represents a connected WebSocket client.
type Client struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte
}

// RunRequest is the POST /api/v1/backtests request body.
type RunRequest struct {
	Config   types.EngineConfig `json:"config"`
	DataPath string             `json:"dataPath"`
}

// RunState tracks one launched backtest run.
type RunState struct {
	ID        string
	Status    string // "running", "completed", "failed"
	Error     string
	Started   time.Time
	Completed time.Time

	mu            sync.RWMutex
	barsProcessed int64
	totalBars     int64
	currentEquity float64
	report        *types.BacktestReport
}

func (s *RunState) snapshotProgress() types.BacktestProgress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return types.BacktestProgress{
		RunID:         s.ID,
		Status:        s.Status,
		BarsProcessed: s.barsProcessed,
		TotalBars:     s.totalBars,
		CurrentEquity: s.currentEquity,
		Error:         s.Error,
	}
}

// NewServer constructs an API server. A nil logger defaults to zap.NewNop().
func NewServer(logger *zap.Logger, cfg types.ServerConfig, loader *data.Loader, metrics *report.MetricsRegistry) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		logger:  logger,
		config:  cfg,
		router:  mux.NewRouter(),
		loader:  loader,
		metrics: metrics,
		clients: make(map[string]*Client),
		runs:    make(map[string]*RunState),
		limiters: make(map[string]*rate.Limiter),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Warn("invalid redis url, progress publication disabled", zap.Error(err))
		} else {
			s.redis = redis.NewClient(opt)
		}
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/v1/backtests", s.rateLimited(s.recovered(s.handleRunBacktest))).Methods("POST")
	s.router.HandleFunc("/api/v1/backtests/{id}", s.rateLimited(s.recovered(s.handleGetBacktest))).Methods("GET")
	s.router.HandleFunc("/api/v1/backtests/{id}/trades", s.rateLimited(s.recovered(s.handleGetTrades))).Methods("GET")
	s.router.HandleFunc("/ws", s.handleWebSocket)
	if s.metrics != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))
	}
}

// recovered wraps a handler so a panic inside it is reported as a 500
// response instead of crashing the server process. Engine runs launched
// by handleRunBacktest execute in their own goroutine and are guarded
// separately in runBacktest.
func (s *Server) recovered(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("recovered panic in handler", zap.Any("panic", rec), zap.String("path", r.URL.Path))
				http.Error(w, fmt.Sprintf("internal error: %v", rec), http.StatusInternalServerError)
			}
		}()
		next(w, r)
	}
}

// rateLimited enforces a per-remote-address token bucket, mirroring the
// pattern used for rate-limited external fetches elsewhere in this
// codebase's lineage.
func (s *Server) rateLimited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if !s.limiterFor(host).Allow() {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}

func (s *Server) limiterFor(host string) *rate.Limiter {
	s.limiterMu.Lock()
	defer s.limiterMu.Unlock()
	l, ok := s.limiters[host]
	if !ok {
		rps := s.config.RateLimitRPS
		if rps <= 0 {
			rps = 10
		}
		burst := s.config.RateLimitBurst
		if burst <= 0 {
			burst = 20
		}
		l = rate.NewLimiter(rate.Limit(rps), burst)
		s.limiters[host] = l
	}
	return l
}

// Start runs the HTTP server until it errors or is shut down.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	handler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(s.router)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	s.logger.Info("starting api server", zap.String("addr", addr))
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts down the server and closes all WebSocket clients.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	for _, c := range s.clients {
		c.Conn.Close()
	}
	s.mu.Unlock()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// handleRunBacktest launches a new backtest run in the background.
func (s *Server) handleRunBacktest(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.DataPath == "" {
		http.Error(w, "dataPath is required", http.StatusBadRequest)
		return
	}

	id := uuid.NewString()
	state := &RunState{ID: id, Status: "running", Started: time.Now()}

	s.mu.Lock()
	s.runs[id] = state
	s.mu.Unlock()

	go s.runBacktest(state, req)

	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":      id,
		"status":  "running",
		"started": state.Started.Unix(),
	})
}

func (s *Server) runBacktest(state *RunState, req RunRequest) {
	defer func() {
		if rec := recover(); rec != nil {
			s.failRun(state, fmt.Errorf("run panicked: %v", rec))
		}
	}()

	bars, err := s.loader.LoadFile(context.Background(), req.DataPath)
	if err != nil {
		s.failRun(state, err)
		return
	}

	state.mu.Lock()
	state.totalBars = int64(len(bars))
	state.mu.Unlock()

	eng := engine.New(s.logger, req.Config)
	startedAt := time.Now()

	progressEvery := int64(len(bars) / 100)
	if progressEvery < 1 {
		progressEvery = 1
	}
	for i, bar := range bars {
		eng.Step(bar)
		if int64(i)%progressEvery == 0 {
			state.mu.Lock()
			state.barsProcessed = int64(i + 1)
			state.currentEquity = eng.FinalEquity()
			state.mu.Unlock()
			s.publishProgress(state)
		}
	}

	b := report.Builder{
		RunID:          state.ID,
		InitialCapital: req.Config.InitialCapital,
		Trades:         eng.Trades(),
		EquityCurve:    eng.EquityCurve(),
		StartedAt:      startedAt,
		CompletedAt:    time.Now(),
		BarsProcessed:  eng.BarsProcessed(),
	}
	rep, err := b.BuildChecked()
	if err != nil {
		s.logger.Warn("report cross-check mismatch", zap.String("run_id", state.ID), zap.Error(err))
	}

	state.mu.Lock()
	state.barsProcessed = eng.BarsProcessed()
	state.currentEquity = rep.FinalEquity
	state.report = &rep
	state.mu.Unlock()
	state.Status = "completed"
	state.Completed = time.Now()

	if s.metrics != nil {
		s.metrics.RecordRun(rep)
	}
	s.publishProgress(state)
}

func (s *Server) failRun(state *RunState, err error) {
	state.Status = "failed"
	state.Error = err.Error()
	state.Completed = time.Now()
	s.logger.Error("backtest run failed", zap.String("id", state.ID), zap.Error(err))
	s.publishProgress(state)
}

// publishProgress broadcasts a run's progress over the in-process
// WebSocket hub, and additionally over Redis pub/sub when configured so a
// second process can observe the run without a websocket connection.
func (s *Server) publishProgress(state *RunState) {
	progress := state.snapshotProgress()
	payload, err := json.Marshal(progress)
	if err != nil {
		return
	}
	s.broadcast(payload)
	if s.redis != nil {
		channel := fmt.Sprintf("backtest:progress:%s", state.ID)
		if err := s.redis.Publish(context.Background(), channel, payload).Err(); err != nil {
			s.logger.Warn("redis publish failed", zap.Error(err))
		}
	}
}

func (s *Server) handleGetBacktest(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.mu.RLock()
	state, ok := s.runs[id]
	s.mu.RUnlock()
	if !ok {
		http.Error(w, "backtest not found", http.StatusNotFound)
		return
	}

	response := map[string]interface{}{
		"id":       state.ID,
		"status":   state.Status,
		"started":  state.Started.Unix(),
		"progress": state.snapshotProgress(),
	}
	state.mu.RLock()
	if state.report != nil {
		response["report"] = state.report
	}
	state.mu.RUnlock()
	json.NewEncoder(w).Encode(response)
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.mu.RLock()
	state, ok := s.runs[id]
	s.mu.RUnlock()
	if !ok {
		http.Error(w, "backtest not found", http.StatusNotFound)
		return
	}

	state.mu.RLock()
	defer state.mu.RUnlock()
	if state.report == nil {
		http.Error(w, "backtest not complete", http.StatusBadRequest)
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":     id,
		"trades": state.report.Trades,
		"count":  len(state.report.Trades),
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}
	client := &Client{ID: uuid.NewString(), Conn: conn, Send: make(chan []byte, 256)}

	s.mu.Lock()
	s.clients[client.ID] = client
	s.mu.Unlock()

	go s.writePump(client)
	go s.readPump(client)
}

func (s *Server) readPump(client *Client) {
	defer func() {
		s.mu.Lock()
		delete(s.clients, client.ID)
		s.mu.Unlock()
		client.Conn.Close()
	}()
	client.Conn.SetReadLimit(512 * 1024)
	for {
		if _, _, err := client.Conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (s *Server) writePump(client *Client) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()
	for {
		select {
		case msg, ok := <-client.Send:
			client.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) broadcast(payload []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.clients {
		select {
		case c.Send <- payload:
		default:
		}
	}
}
