package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"threadpool/internal/chaos"
	"threadpool/internal/events"
	"threadpool/internal/logger"
	"threadpool/internal/metrics"
	"threadpool/internal/recovery"
	"threadpool/internal/scenario"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/websocket"
)

var log = logger.For("api")

// Server はAPIサーバー
type Server struct {
	addr     string
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	eventBus *events.Bus

	mu         sync.RWMutex
	running    bool
	engine     *scenario.Engine
	config     scenario.Config
	cancel     context.CancelFunc
	lastResult *scenario.Result
	wsClients  map[*websocket.Conn]bool
	wg         sync.WaitGroup

	server *http.Server
}

// NewServer は新しいAPIサーバーを作成する
// プール側のメトリクスは全シナリオで共有され、/metrics で公開される
func NewServer(addr string) (*Server, error) {
	s := &Server{
		addr:      addr,
		registry:  prometheus.NewRegistry(),
		metrics:   metrics.New(),
		eventBus:  events.NewBus(),
		wsClients: make(map[*websocket.Conn]bool),
	}

	if err := s.registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("failed to register go collector: %w", err)
	}
	if err := s.metrics.Register(s.registry, metrics.DefaultNamespace, s); err != nil {
		return nil, fmt.Errorf("failed to register pool metrics: %w", err)
	}

	return s, nil
}

// Handler はルーティング済みのハンドラを返す
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// API routes
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/metrics", s.handleMetrics)
	mux.HandleFunc("/api/scenario/start", s.handleScenarioStart)
	mux.HandleFunc("/api/scenario/stop", s.handleScenarioStop)
	mux.HandleFunc("/api/presets", s.handlePresets)

	// Prometheus
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	// WebSocket
	mux.Handle("/ws", websocket.Handler(s.handleWebSocket))

	return mux
}

// Start はサーバーを開始する
// ctx がキャンセルされるとシャットダウンし、実行中のシナリオも停止する
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// バックグラウンドでステータスとイベントを配信
	go s.broadcastLoop(ctx)
	go s.eventLoop(ctx)

	log.Info("API Server starting on http://%s", s.addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	err := s.server.ListenAndServe()
	s.Close()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close は実行中のシナリオを停止して終了を待つ
func (s *Server) Close() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// QueueSize は実行中シナリオのプールのキュー長を返す
func (s *Server) QueueSize() int {
	s.mu.RLock()
	engine := s.engine
	s.mu.RUnlock()

	if engine == nil || engine.Pool() == nil {
		return 0
	}
	return engine.Pool().QueueSize()
}

// NumWorkers は実行中シナリオのプールのワーカー数を返す
func (s *Server) NumWorkers() int {
	s.mu.RLock()
	engine := s.engine
	s.mu.RUnlock()

	if engine == nil || engine.Pool() == nil {
		return 0
	}
	return engine.Pool().NumWorkers()
}

// StatusResponse はステータスレスポンス
type StatusResponse struct {
	Running      bool   `json:"running"`
	ScenarioName string `json:"scenario_name,omitempty"`
	PoolID       string `json:"pool_id,omitempty"`
	PoolState    string `json:"pool_state,omitempty"`
	Workers      int    `json:"workers"`
	QueueSize    int    `json:"queue_size"`
	Executed     uint64 `json:"executed"`
}

// status は現在のステータスを返す
func (s *Server) status() StatusResponse {
	s.mu.RLock()
	resp := StatusResponse{
		Running:      s.running,
		ScenarioName: s.config.Name,
	}
	engine := s.engine
	s.mu.RUnlock()

	if engine != nil {
		if p := engine.Pool(); p != nil {
			resp.PoolID = p.ID()
			resp.PoolState = p.State().String()
			resp.Workers = p.NumWorkers()
			resp.QueueSize = p.QueueSize()
			resp.Executed = p.Executed()
		}
	}
	return resp
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, s.status())
}

// MetricsResponse はメトリクスレスポンス
type MetricsResponse struct {
	Client     *metrics.Snapshot `json:"client,omitempty"`
	Pool       metrics.Snapshot  `json:"pool"`
	Chaos      *chaos.Stats      `json:"chaos,omitempty"`
	Recovery   *recovery.Stats   `json:"recovery,omitempty"`
	LastResult *scenario.Result  `json:"last_result,omitempty"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.RLock()
	engine := s.engine
	resp := MetricsResponse{
		Pool:       s.metrics.Snapshot(),
		LastResult: s.lastResult,
	}
	s.mu.RUnlock()

	if engine != nil {
		resp.Client = engine.Metrics()
		resp.Chaos = engine.ChaosStats()
		resp.Recovery = engine.RecoveryStats()
	}

	s.writeJSON(w, resp)
}

// ScenarioRequest はシナリオ開始リクエスト
type ScenarioRequest struct {
	Preset   string `json:"preset"`
	Duration string `json:"duration,omitempty"`
	Workers  int    `json:"workers,omitempty"`
}

func (s *Server) handleScenarioStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	// プリセット取得
	config, ok := scenario.GetPreset(req.Preset)
	if !ok {
		config = scenario.QuickScenario()
	}

	// オーバーライド
	if req.Duration != "" {
		d, err := time.ParseDuration(req.Duration)
		if err != nil {
			http.Error(w, fmt.Sprintf("Invalid duration: %v", err), http.StatusBadRequest)
			return
		}
		config.Duration = d
	}
	if req.Workers > 0 {
		config.Workers = req.Workers
	}
	if err := config.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		http.Error(w, "Scenario already running", http.StatusConflict)
		return
	}

	engine := scenario.New(config)
	engine.SetEventBus(s.eventBus)
	engine.SetMetrics(s.metrics)

	ctx, cancel := context.WithCancel(context.Background())
	s.config = config
	s.engine = engine
	s.cancel = cancel
	s.running = true
	s.wg.Add(1)
	s.mu.Unlock()

	// バックグラウンドで実行
	go func() {
		defer s.wg.Done()
		defer cancel()

		result, err := engine.Run(ctx)

		s.mu.Lock()
		s.running = false
		s.cancel = nil
		if err == nil {
			s.lastResult = result
		}
		s.mu.Unlock()

		if err != nil {
			log.Error("Scenario failed: %v", err)
			return
		}
		log.Info("Scenario completed: %d tasks", result.TotalTasks)

		s.broadcast(map[string]any{
			"type":   "scenario_complete",
			"result": result,
		})
	}()

	s.writeJSON(w, map[string]string{"status": "started", "scenario": config.Name})
}

func (s *Server) handleScenarioStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.Lock()
	if !s.running || s.cancel == nil {
		s.mu.Unlock()
		http.Error(w, "No scenario running", http.StatusBadRequest)
		return
	}
	s.cancel()
	s.mu.Unlock()

	s.writeJSON(w, map[string]string{"status": "stop requested"})
}

// PresetInfo はプリセット情報
type PresetInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Duration    string `json:"duration"`
	Workers     int    `json:"workers"`
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var presets []PresetInfo
	for _, name := range scenario.ListPresets() {
		config, _ := scenario.GetPreset(name)
		presets = append(presets, PresetInfo{
			Name:        name,
			Description: config.Description,
			Duration:    config.Duration.String(),
			Workers:     config.Workers,
		})
	}

	s.writeJSON(w, presets)
}

// WebSocket handling
func (s *Server) handleWebSocket(ws *websocket.Conn) {
	s.mu.Lock()
	s.wsClients[ws] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.wsClients, ws)
		s.mu.Unlock()
		_ = ws.Close()
	}()

	// Keep connection alive
	for {
		var msg string
		if err := websocket.Message.Receive(ws, &msg); err != nil {
			break
		}
	}
}

func (s *Server) broadcast(data any) {
	s.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(s.wsClients))
	for ws := range s.wsClients {
		clients = append(clients, ws)
	}
	s.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}

	for _, ws := range clients {
		_ = websocket.Message.Send(ws, string(jsonData))
	}
}

func (s *Server) broadcastLoop(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status := s.status()
			if !status.Running {
				continue
			}

			s.broadcast(map[string]any{
				"type":   "status",
				"status": status,
			})
		}
	}
}

// eventLoop はプール・カオス・復旧のイベントを WebSocket に転送する
func (s *Server) eventLoop(ctx context.Context) {
	ch := s.eventBus.Subscribe()
	defer s.eventBus.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			s.broadcast(map[string]any{
				"type":  "event",
				"event": e,
			})
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error("Failed to encode JSON: %v", err)
	}
}
