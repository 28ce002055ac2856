package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config はメトリクスの設定
type Config struct {
	MaxLatencySamples int           // P99 計算用に保持する直近サンプル数
	Window            time.Duration // TPS を計算するウィンドウ幅
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		MaxLatencySamples: 1000,
		Window:            10 * time.Second,
	}
}

// Metrics はタスク実行のメトリクスを収集する
type Metrics struct {
	totalTasks     atomic.Uint64
	successTasks   atomic.Uint64
	failedTasks    atomic.Uint64
	totalLatencyNs atomic.Uint64

	mu                sync.RWMutex
	startTime         time.Time
	window            time.Duration
	windowStart       time.Time
	windowTasks       uint64
	prevTasks         uint64
	prevElapsed       time.Duration
	latencies         []time.Duration // 直近サンプルのリングバッファ
	next              int
	maxLatencySamples int

	// histogram は Register されるまで nil
	histogram prometheus.Histogram
}

// New は新しいメトリクスを作成する
func New() *Metrics {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig は設定を指定してメトリクスを作成する
func NewWithConfig(config Config) *Metrics {
	samples := config.MaxLatencySamples
	if samples <= 0 {
		samples = DefaultConfig().MaxLatencySamples
	}
	window := config.Window
	if window <= 0 {
		window = DefaultConfig().Window
	}
	now := time.Now()
	return &Metrics{
		startTime:         now,
		window:            window,
		windowStart:       now,
		latencies:         make([]time.Duration, 0, samples),
		maxLatencySamples: samples,
	}
}

// RecordSuccess は成功したタスクを記録する
func (m *Metrics) RecordSuccess(latency time.Duration) {
	m.successTasks.Add(1)
	m.record(latency, true)
}

// RecordFailure は失敗したタスクを記録する
// 失敗のレイテンシは P99 のサンプルに含めない
func (m *Metrics) RecordFailure(latency time.Duration) {
	m.failedTasks.Add(1)
	m.record(latency, false)
}

func (m *Metrics) record(latency time.Duration, sample bool) {
	m.totalTasks.Add(1)
	m.totalLatencyNs.Add(uint64(latency.Nanoseconds()))

	m.mu.Lock()
	m.rollWindow(time.Now())
	m.windowTasks++
	if sample {
		m.addSample(latency)
	}
	h := m.histogram
	m.mu.Unlock()

	if h != nil {
		h.Observe(latency.Seconds())
	}
}

// addSample はサンプルを追加し、満杯なら最も古いものを上書きする
// m.mu を保持して呼ぶこと
func (m *Metrics) addSample(latency time.Duration) {
	if len(m.latencies) < m.maxLatencySamples {
		m.latencies = append(m.latencies, latency)
		return
	}
	m.latencies[m.next] = latency
	m.next = (m.next + 1) % m.maxLatencySamples
}

// rollWindow はウィンドウ幅を過ぎていれば現在のウィンドウを直前のウィンドウに送る
// m.mu を保持して呼ぶこと
func (m *Metrics) rollWindow(now time.Time) {
	elapsed := now.Sub(m.windowStart)
	if elapsed < m.window {
		return
	}
	if elapsed >= 2*m.window {
		// 丸々1ウィンドウ以上記録がなかった
		m.prevTasks = 0
		m.prevElapsed = m.window
	} else {
		m.prevTasks = m.windowTasks
		m.prevElapsed = elapsed
	}
	m.windowTasks = 0
	m.windowStart = now
}

// TotalTasks は総タスク数を返す
func (m *Metrics) TotalTasks() uint64 {
	return m.totalTasks.Load()
}

// SuccessTasks は成功タスク数を返す
func (m *Metrics) SuccessTasks() uint64 {
	return m.successTasks.Load()
}

// FailedTasks は失敗タスク数を返す
func (m *Metrics) FailedTasks() uint64 {
	return m.failedTasks.Load()
}

// TPS は直近 1〜2 ウィンドウの Tasks Per Second を返す
func (m *Metrics) TPS() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	m.rollWindow(now)

	elapsed := (m.prevElapsed + now.Sub(m.windowStart)).Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(m.prevTasks+m.windowTasks) / elapsed
}

// OverallTPS は開始からの平均TPSを返す
func (m *Metrics) OverallTPS() float64 {
	elapsed := time.Since(m.startTime).Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(m.totalTasks.Load()) / elapsed
}

// AverageLatency は平均レイテンシを返す
func (m *Metrics) AverageLatency() time.Duration {
	total := m.totalTasks.Load()
	if total == 0 {
		return 0
	}
	avgNs := m.totalLatencyNs.Load() / total
	return time.Duration(avgNs)
}

// P99Latency は直近サンプルのP99レイテンシを返す
func (m *Metrics) P99Latency() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.latencies) == 0 {
		return 0
	}

	// コピーしてソート（標準ライブラリ使用）
	sorted := make([]time.Duration, len(m.latencies))
	copy(sorted, m.latencies)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	idx := int(float64(len(sorted)) * 0.99)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// ErrorRate はエラー率を返す（0.0〜1.0）
func (m *Metrics) ErrorRate() float64 {
	total := m.totalTasks.Load()
	if total == 0 {
		return 0
	}
	return float64(m.failedTasks.Load()) / float64(total)
}

// Reset はウィンドウメトリクスをリセットする
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.windowTasks = 0
	m.prevTasks = 0
	m.prevElapsed = 0
	m.windowStart = time.Now()
	m.latencies = m.latencies[:0]
	m.next = 0
}

// Snapshot はメトリクスのスナップショット
type Snapshot struct {
	TotalTasks     uint64        `json:"total_tasks"`
	SuccessTasks   uint64        `json:"success_tasks"`
	FailedTasks    uint64        `json:"failed_tasks"`
	TPS            float64       `json:"tps"`
	OverallTPS     float64       `json:"overall_tps"`
	AverageLatency time.Duration `json:"average_latency_ns"`
	P99Latency     time.Duration `json:"p99_latency_ns"`
	ErrorRate      float64       `json:"error_rate"`
	Elapsed        time.Duration `json:"elapsed_ns"`
}

// Snapshot は現在のメトリクスのスナップショットを返す
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		TotalTasks:     m.TotalTasks(),
		SuccessTasks:   m.SuccessTasks(),
		FailedTasks:    m.FailedTasks(),
		TPS:            m.TPS(),
		OverallTPS:     m.OverallTPS(),
		AverageLatency: m.AverageLatency(),
		P99Latency:     m.P99Latency(),
		ErrorRate:      m.ErrorRate(),
		Elapsed:        time.Since(m.startTime),
	}
}
