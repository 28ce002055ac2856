package scenario

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"threadpool/internal/chaos"
	"threadpool/internal/client"
	"threadpool/internal/events"
	"threadpool/internal/logger"
	"threadpool/internal/metrics"
	"threadpool/internal/recovery"
	"threadpool/internal/worker"
)

var log = logger.For("scenario")

// ErrAlreadyRunning はシナリオが実行中であることを表す
var ErrAlreadyRunning = errors.New("scenario is already running")

// Config はシナリオの設定
type Config struct {
	Name        string        // シナリオ名
	Description string        // 説明
	Duration    time.Duration // 実行時間
	Workers     int           // プールのワーカー数

	// クライアント設定
	Producers    int           // プロデューサー数
	BatchSize    int           // バッチサイズ
	TaskDuration time.Duration // 1タスクの擬似作業時間

	// カオス設定
	EnableChaos   bool               // カオス注入を有効化
	ChaosInterval time.Duration      // 攻撃間隔
	ChaosTargets  int                // saturate で占有するワーカー数
	AttackTypes   []chaos.AttackType // 有効な攻撃タイプ
	FailureRate   float64            // タスク失敗の注入確率
	SuspendTime   time.Duration      // saturate/delay の継続時間
	DelayAmount   time.Duration      // delay 攻撃の遅延量

	// 復旧設定
	EnableRecovery bool          // 復旧を有効化
	RecoveryDelay  time.Duration // 復旧までの待機時間
	MaxRetries     int           // 最大リトライ回数
	MaxHelpers     int           // ヘルパーの上限
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Name:           "default",
		Description:    "Default scenario",
		Duration:       10 * time.Second,
		Workers:        4,
		Producers:      4,
		BatchSize:      10,
		TaskDuration:   time.Millisecond,
		EnableChaos:    true,
		ChaosInterval:  2 * time.Second,
		ChaosTargets:   1,
		AttackTypes:    []chaos.AttackType{chaos.AttackSaturate, chaos.AttackRestart, chaos.AttackDelay},
		FailureRate:    0.01,
		SuspendTime:    time.Second,
		DelayAmount:    5 * time.Millisecond,
		EnableRecovery: true,
		RecoveryDelay:  500 * time.Millisecond,
		MaxRetries:     3,
		MaxHelpers:     2,
	}
}

// Validate は設定を検証する
func (c Config) Validate() error {
	if c.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %v", c.Duration)
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: got %d", worker.ErrInvalidWorkerCount, c.Workers)
	}
	if c.EnableChaos && c.ChaosInterval <= 0 {
		return fmt.Errorf("chaos interval must be positive, got %v", c.ChaosInterval)
	}
	if c.FailureRate < 0 || c.FailureRate > 1 {
		return fmt.Errorf("failure rate must be between 0 and 1, got %v", c.FailureRate)
	}
	return nil
}

// Result はシナリオ実行結果
type Result struct {
	ScenarioName string        `json:"scenario_name"`
	StartTime    time.Time     `json:"start_time"`
	EndTime      time.Time     `json:"end_time"`
	Duration     time.Duration `json:"duration_ns"`

	// クライアント側メトリクス（投入から完了まで）
	TotalTasks   uint64        `json:"total_tasks"`
	SuccessTasks uint64        `json:"success_tasks"`
	FailedTasks  uint64        `json:"failed_tasks"`
	ErrorRate    float64       `json:"error_rate"`
	TPS          float64       `json:"tps"`
	AvgLatency   time.Duration `json:"avg_latency_ns"`
	P99Latency   time.Duration `json:"p99_latency_ns"`

	// プール側メトリクス（実行時間）
	Workers         int           `json:"workers"`
	Executed        uint64        `json:"executed"`
	PoolFailures    uint64        `json:"pool_failures"`
	PoolP99Latency  time.Duration `json:"pool_p99_latency_ns"`
	RemainingQueued int           `json:"remaining_queued"`

	// カオス統計
	TotalAttacks     uint64            `json:"total_attacks"`
	AttacksByType    map[string]uint64 `json:"attacks_by_type,omitempty"`
	InjectedFailures uint64            `json:"injected_failures"`
	InjectedPanics   uint64            `json:"injected_panics"`

	// 復旧統計
	TotalRecoveries   uint64 `json:"total_recoveries"`
	SuccessRecoveries uint64 `json:"success_recoveries"`
	FailedRecoveries  uint64 `json:"failed_recoveries"`
	HelpedTasks       uint64 `json:"helped_tasks"`
}

// Engine はシナリオ実行エンジン
type Engine struct {
	config   Config
	eventBus *events.Bus
	metrics  *metrics.Metrics

	mu       sync.RWMutex
	running  bool
	pool     *worker.Pool
	client   *client.Client
	monkey   *chaos.Monkey
	recovery *recovery.Manager
}

// New は新しいEngineを作成する
func New(config Config) *Engine {
	return &Engine{
		config: config,
	}
}

// SetEventBus はイベントバスを設定する
func (e *Engine) SetEventBus(bus *events.Bus) {
	e.eventBus = bus
}

// SetMetrics はプール側のメトリクス記録先を設定する
// 未設定の場合は Run ごとに新しく作成する
func (e *Engine) SetMetrics(m *metrics.Metrics) {
	e.metrics = m
}

// Config はシナリオ設定を返す
func (e *Engine) Config() Config {
	return e.config
}

// Run はシナリオを実行する
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	if err := e.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario %q: %w", e.config.Name, err)
	}

	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	e.running = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	log.Info("=== Scenario '%s' started ===", e.config.Name)
	log.Info("Description: %s", e.config.Description)

	result := &Result{
		ScenarioName: e.config.Name,
		StartTime:    time.Now(),
	}

	// セットアップ
	if err := e.setup(); err != nil {
		return nil, fmt.Errorf("setup failed: %w", err)
	}

	// シナリオ実行
	scenarioCtx, cancel := context.WithTimeout(ctx, e.config.Duration)
	defer cancel()

	e.runScenario(scenarioCtx)
	e.teardown()

	// 結果収集
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	e.collectResults(result)

	log.Info("=== Scenario '%s' completed ===", e.config.Name)

	return result, nil
}

// setup はシナリオ実行前のセットアップ
func (e *Engine) setup() error {
	poolMetrics := e.metrics
	if poolMetrics == nil {
		poolMetrics = metrics.New()
	}

	// プール
	p := worker.NewPoolWithConfig(worker.PoolConfig{Name: e.config.Name})
	p.SetMetrics(poolMetrics)
	if e.eventBus != nil {
		p.SetEventBus(e.eventBus)
	}
	if err := p.Start(e.config.Workers); err != nil {
		return fmt.Errorf("failed to start pool: %w", err)
	}

	// クライアント
	clientConfig := client.DefaultConfig()
	clientConfig.Producers = e.config.Producers
	clientConfig.BatchSize = e.config.BatchSize
	clientConfig.TaskDuration = e.config.TaskDuration
	cl := client.New(p, clientConfig)

	// カオスモンキー
	var monkey *chaos.Monkey
	if e.config.EnableChaos {
		chaosConfig := chaos.DefaultConfig()
		chaosConfig.Interval = e.config.ChaosInterval
		chaosConfig.TargetCount = e.config.ChaosTargets
		chaosConfig.AttackTypes = e.config.AttackTypes
		chaosConfig.FailureRate = e.config.FailureRate
		if e.config.SuspendTime > 0 {
			chaosConfig.SuspendTime = e.config.SuspendTime
		}
		if e.config.DelayAmount > 0 {
			chaosConfig.DelayDuration = e.config.DelayAmount
		}
		monkey = chaos.New(p, chaosConfig)
		if e.eventBus != nil {
			monkey.SetEventBus(e.eventBus)
		}
		cl.SetWrapper(monkey.Wrap)
	}

	// 復旧マネージャー
	var manager *recovery.Manager
	if e.config.EnableRecovery {
		recoveryConfig := recovery.DefaultConfig()
		recoveryConfig.HealthCheckInterval = healthCheckInterval(e.config.RecoveryDelay)
		recoveryConfig.RecoveryDelay = e.config.RecoveryDelay
		recoveryConfig.MaxRetries = e.config.MaxRetries
		recoveryConfig.Workers = e.config.Workers
		if e.config.MaxHelpers > 0 {
			recoveryConfig.MaxHelpers = e.config.MaxHelpers
		}
		manager = recovery.New(p, recoveryConfig)
		if e.eventBus != nil {
			manager.SetEventBus(e.eventBus)
		}
	}

	e.mu.Lock()
	e.pool = p
	e.client = cl
	e.monkey = monkey
	e.recovery = manager
	e.metrics = poolMetrics
	e.mu.Unlock()

	return nil
}

// healthCheckInterval は復旧待機時間に対して十分細かいチェック間隔を返す
func healthCheckInterval(delay time.Duration) time.Duration {
	interval := delay / 4
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	if interval > time.Second {
		interval = time.Second
	}
	return interval
}

// teardown はシナリオ実行後のクリーンアップ
// 占有中のワーカーを解放してからプールを停止する
func (e *Engine) teardown() {
	e.mu.RLock()
	cl, monkey, manager, p := e.client, e.monkey, e.recovery, e.pool
	e.mu.RUnlock()

	if cl != nil {
		cl.Stop()
	}
	if monkey != nil {
		monkey.Stop()
	}
	if manager != nil {
		manager.Stop()
	}
	if p != nil {
		p.Stop()
	}
}

// runScenario はシナリオのメイン処理
func (e *Engine) runScenario(ctx context.Context) {
	e.mu.RLock()
	cl, monkey, manager := e.client, e.monkey, e.recovery
	e.mu.RUnlock()

	// クライアント開始
	cl.Start(ctx)

	// カオス開始
	if monkey != nil {
		monkey.Start(ctx)
	}

	// 復旧開始
	if manager != nil {
		manager.Start(ctx)
	}

	// 終了まで待機
	<-ctx.Done()

	log.Info("Scenario duration completed, stopping components...")
}

// collectResults は結果を収集する
func (e *Engine) collectResults(result *Result) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	// クライアントメトリクス
	snapshot := e.client.Metrics().Snapshot()
	result.TotalTasks = snapshot.TotalTasks
	result.SuccessTasks = snapshot.SuccessTasks
	result.FailedTasks = snapshot.FailedTasks
	result.ErrorRate = snapshot.ErrorRate
	result.TPS = snapshot.OverallTPS
	result.AvgLatency = snapshot.AverageLatency
	result.P99Latency = snapshot.P99Latency

	// プール
	result.Workers = e.config.Workers
	result.Executed = e.pool.Executed()
	result.RemainingQueued = e.pool.QueueSize()
	poolSnapshot := e.metrics.Snapshot()
	result.PoolFailures = poolSnapshot.FailedTasks
	result.PoolP99Latency = poolSnapshot.P99Latency

	// カオス統計
	if e.monkey != nil {
		stats := e.monkey.Stats()
		result.TotalAttacks = stats.TotalAttacks
		result.AttacksByType = stats.ByType
		result.InjectedFailures = stats.InjectedFailures
		result.InjectedPanics = stats.InjectedPanics
	}

	// 復旧統計
	if e.recovery != nil {
		stats := e.recovery.Stats()
		result.TotalRecoveries = stats.TotalRecoveries
		result.SuccessRecoveries = stats.SuccessRecoveries
		result.FailedRecoveries = stats.FailedRecoveries
		result.HelpedTasks = stats.HelpedTasks
	}
}

// Report は結果をフォーマットして返す
func (r *Result) Report() string {
	report := fmt.Sprintf(`
================================================================================
                         SCENARIO REPORT: %s
================================================================================

EXECUTION SUMMARY
-----------------
  Start Time:     %s
  End Time:       %s
  Duration:       %v

TASK METRICS
------------
  Total Tasks:      %d
  Success:          %d
  Failed:           %d
  Error Rate:       %.2f%%
  Throughput:       %.2f tasks/s
  Avg Latency:      %v
  P99 Latency:      %v

POOL STATISTICS
---------------
  Workers:          %d
  Executed:         %d
  Task Failures:    %d
  P99 Run Time:     %v
  Left Queued:      %d

CHAOS STATISTICS
----------------
  Total Attacks:    %d
  Injected Errors:  %d
  Injected Panics:  %d
`,
		r.ScenarioName,
		r.StartTime.Format("2006-01-02 15:04:05"),
		r.EndTime.Format("2006-01-02 15:04:05"),
		r.Duration.Round(time.Millisecond),
		r.TotalTasks,
		r.SuccessTasks,
		r.FailedTasks,
		r.ErrorRate*100,
		r.TPS,
		r.AvgLatency.Round(time.Microsecond),
		r.P99Latency.Round(time.Microsecond),
		r.Workers,
		r.Executed,
		r.PoolFailures,
		r.PoolP99Latency.Round(time.Microsecond),
		r.RemainingQueued,
		r.TotalAttacks,
		r.InjectedFailures,
		r.InjectedPanics,
	)

	attackTypes := make([]string, 0, len(r.AttacksByType))
	for t := range r.AttacksByType {
		attackTypes = append(attackTypes, t)
	}
	sort.Strings(attackTypes)
	for _, t := range attackTypes {
		report += fmt.Sprintf("  %-18s%d\n", t+":", r.AttacksByType[t])
	}

	report += fmt.Sprintf(`
RECOVERY STATISTICS
-------------------
  Total Recoveries:   %d
  Successful:         %d
  Failed:             %d
  Helped Tasks:       %d
`,
		r.TotalRecoveries,
		r.SuccessRecoveries,
		r.FailedRecoveries,
		r.HelpedTasks,
	)

	report += "\n================================================================================"

	return report
}

// IsRunning は実行中かどうかを返す
func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// ChaosStats はカオス統計を返す
func (e *Engine) ChaosStats() *chaos.Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.monkey == nil {
		return nil
	}
	stats := e.monkey.Stats()
	return &stats
}

// RecoveryStats は復旧統計を返す
func (e *Engine) RecoveryStats() *recovery.Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.recovery == nil {
		return nil
	}
	stats := e.recovery.Stats()
	return &stats
}

// Metrics はクライアントメトリクスを返す
func (e *Engine) Metrics() *metrics.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.client == nil {
		return nil
	}
	snapshot := e.client.Metrics().Snapshot()
	return &snapshot
}

// Pool はプールを返す
func (e *Engine) Pool() *worker.Pool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.pool
}
