package recovery

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"threadpool/internal/events"
	"threadpool/internal/logger"
	"threadpool/internal/worker"
)

var log = logger.For("recovery")

// ErrNoProgress はヘルパーが1つもタスクを実行できなかったことを表す
var ErrNoProgress = errors.New("recovery: helpers executed no task")

// Config はRecoveryManagerの設定
type Config struct {
	HealthCheckInterval time.Duration // ヘルスチェック間隔
	RecoveryDelay       time.Duration // 復旧までの待機時間
	MaxRetries          int           // 再起動の最大リトライ回数（0で無制限）
	AutoRestart         bool          // 停止中のプールに溜まったタスクがあれば再起動する
	AutoHelp            bool          // 停滞したプールのキューをヘルパーで消化する
	MaxHelpers          int           // 同時に動かすヘルパーの上限
	Workers             int           // 再起動時のワーカー数（0で最後に観測した数）
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		HealthCheckInterval: 1 * time.Second,
		RecoveryDelay:       2 * time.Second,
		MaxRetries:          3,
		AutoRestart:         true,
		AutoHelp:            true,
		MaxHelpers:          2,
	}
}

// PoolState はプールの状態追跡
type PoolState struct {
	LastExecuted uint64
	LastProgress time.Time
	LastWorkers  int
	FailedAt     time.Time
	RetryCount   int
}

// Stats は復旧統計
type Stats struct {
	TotalRecoveries   uint64 `json:"total_recoveries"`
	SuccessRecoveries uint64 `json:"success_recoveries"`
	FailedRecoveries  uint64 `json:"failed_recoveries"`
	HelpedTasks       uint64 `json:"helped_tasks"`
	ActiveHelpers     int    `json:"active_helpers"`
	PoolDown          bool   `json:"pool_down"`
}

// Manager はプールの停止と停滞からの復旧を管理する
type Manager struct {
	config   Config
	pool     *worker.Pool
	eventBus *events.Bus

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu    sync.RWMutex
	state PoolState
	stats Stats

	helpers atomic.Int32
	helped  atomic.Uint64
}

// New は新しいRecoveryManagerを作成する
func New(p *worker.Pool, config Config) *Manager {
	return &Manager{
		config: config,
		pool:   p,
	}
}

// SetEventBus はイベントバスを設定する
func (m *Manager) SetEventBus(bus *events.Bus) {
	m.eventBus = bus
}

// publishEvent はイベントを発行する
func (m *Manager) publishEvent(event events.Event) {
	if m.eventBus != nil {
		m.eventBus.Publish(event)
	}
}

// Start は復旧マネージャーを開始する
func (m *Manager) Start(ctx context.Context) {
	if m.running.Swap(true) {
		return
	}

	m.ctx, m.cancel = context.WithCancel(ctx)

	m.mu.Lock()
	m.state = PoolState{
		LastExecuted: m.pool.Executed(),
		LastProgress: time.Now(),
		LastWorkers:  m.pool.NumWorkers(),
	}
	m.mu.Unlock()

	config := m.currentConfig()

	m.wg.Add(1)
	go m.healthCheckLoop(config.HealthCheckInterval)

	log.Info("RecoveryManager started (interval: %v, delay: %v)",
		config.HealthCheckInterval, config.RecoveryDelay)
}

// Stop は復旧マネージャーを停止する
// 実行中のヘルパーは手元のタスクを終えてから終了する
func (m *Manager) Stop() {
	if !m.running.Swap(false) {
		return
	}

	m.cancel()
	m.wg.Wait()

	stats := m.Stats()
	log.Info("RecoveryManager stopped (recoveries: %d success, %d failed, helped: %d)",
		stats.SuccessRecoveries, stats.FailedRecoveries, stats.HelpedTasks)
}

// healthCheckLoop は定期的にヘルスチェックを実行する
func (m *Manager) healthCheckLoop(interval time.Duration) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.checkAndRecover(time.Now())
		}
	}
}

// currentConfig は設定のコピーを返す
func (m *Manager) currentConfig() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// checkAndRecover はプールをチェックし、必要に応じて復旧する
func (m *Manager) checkAndRecover(now time.Time) {
	config := m.currentConfig()
	queued := m.pool.QueueSize()
	executed := m.pool.Executed()

	m.mu.Lock()
	if executed != m.state.LastExecuted || queued == 0 {
		m.state.LastExecuted = executed
		m.state.LastProgress = now
	}
	m.mu.Unlock()

	switch m.pool.State() {
	case worker.StateRunning:
		m.handleRunningPool(config, queued, now)
	case worker.StateIdle:
		m.handleIdlePool(config, queued, now)
	}
}

// handleRunningPool は稼働中のプールを処理する
func (m *Manager) handleRunningPool(config Config, queued int, now time.Time) {
	m.mu.Lock()
	m.state.LastWorkers = m.pool.NumWorkers()
	m.state.FailedAt = time.Time{}
	m.state.RetryCount = 0
	m.stats.PoolDown = false

	stalled := queued > 0 && now.Sub(m.state.LastProgress) >= config.RecoveryDelay
	if stalled {
		// 次の判定までヘルパーの成果を待つ
		m.state.LastProgress = now
	}
	m.mu.Unlock()

	if !stalled || !config.AutoHelp {
		return
	}

	lend := config.MaxHelpers - int(m.helpers.Load())
	if lend <= 0 {
		return
	}

	log.Warn("RecoveryManager: pool %s stalled with %d queued task(s), lending %d helper(s)",
		m.pool.ID(), queued, lend)
	m.help(lend)
}

// help は n 個のヘルパーを起動してキューを消化する
func (m *Manager) help(n int) {
	m.mu.Lock()
	m.stats.TotalRecoveries++
	attempt := int(m.stats.TotalRecoveries)
	m.mu.Unlock()

	m.publishEvent(events.NewRecoveryStartEvent(m.pool.ID(), events.RecoveryActionHelp, attempt))

	var round atomic.Uint64
	var helpers sync.WaitGroup
	for range n {
		m.helpers.Add(1)
		helpers.Add(1)
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			defer helpers.Done()
			defer m.helpers.Add(-1)
			round.Add(m.drain())
		}()
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		helpers.Wait()

		helped := round.Load()
		m.mu.Lock()
		if helped > 0 {
			m.stats.SuccessRecoveries++
		} else {
			m.stats.FailedRecoveries++
		}
		m.mu.Unlock()

		if helped == 0 {
			log.Warn("RecoveryManager: helpers for pool %s found no task", m.pool.ID())
			m.publishEvent(events.NewRecoveryFailedEvent(m.pool.ID(), events.RecoveryActionHelp, ErrNoProgress))
			return
		}
		log.Info("RecoveryManager: helpers executed %d task(s) of pool %s", helped, m.pool.ID())
		m.publishEvent(events.NewRecoverySuccessEvent(m.pool.ID(), events.RecoveryActionHelp, helped))
	}()
}

// drain はキューが空になるか停止されるまで呼び出し元でタスクを実行する
func (m *Manager) drain() uint64 {
	var n uint64
	for m.ctx.Err() == nil {
		if !m.pool.TryProcessTask() {
			break
		}
		n++
		m.helped.Add(1)
	}
	return n
}

// handleIdlePool は停止中のプールを処理する
func (m *Manager) handleIdlePool(config Config, queued int, now time.Time) {
	m.mu.Lock()

	// 待ちタスクがなければ意図的な停止とみなす
	if queued == 0 {
		m.state.FailedAt = time.Time{}
		m.stats.PoolDown = false
		m.mu.Unlock()
		return
	}

	if !config.AutoRestart {
		m.mu.Unlock()
		return
	}

	// 初回検出
	if m.state.FailedAt.IsZero() {
		m.state.FailedAt = now
		m.stats.PoolDown = true
		m.mu.Unlock()
		log.Warn("RecoveryManager: detected idle pool %s with %d queued task(s)", m.pool.ID(), queued)
		return
	}

	// 復旧待機時間チェック
	if now.Sub(m.state.FailedAt) < config.RecoveryDelay {
		m.mu.Unlock()
		return
	}

	// リトライ上限チェック
	if config.MaxRetries > 0 && m.state.RetryCount >= config.MaxRetries {
		m.mu.Unlock()
		return
	}

	workers := config.Workers
	if workers <= 0 {
		workers = m.state.LastWorkers
	}
	if workers <= 0 {
		workers = 1
	}

	m.state.RetryCount++
	m.state.FailedAt = now
	m.stats.TotalRecoveries++
	retryCount := m.state.RetryCount
	m.mu.Unlock()

	m.publishEvent(events.NewRecoveryStartEvent(m.pool.ID(), events.RecoveryActionRestart, retryCount))

	// 再起動を試みる
	err := m.pool.Start(workers)
	if err != nil && !errors.Is(err, worker.ErrAlreadyStarted) {
		m.mu.Lock()
		m.stats.FailedRecoveries++
		m.mu.Unlock()
		log.Error("RecoveryManager: failed to restart pool %s: %v", m.pool.ID(), err)
		m.publishEvent(events.NewRecoveryFailedEvent(m.pool.ID(), events.RecoveryActionRestart, err))
		return
	}

	m.mu.Lock()
	m.stats.SuccessRecoveries++
	m.stats.PoolDown = false
	m.state.FailedAt = time.Time{}
	m.mu.Unlock()

	log.Info("RecoveryManager: restarted pool %s with %d workers (attempt %d)", m.pool.ID(), workers, retryCount)
	m.publishEvent(events.NewRecoverySuccessEvent(m.pool.ID(), events.RecoveryActionRestart, 0))
}

// IsRunning は実行中かどうかを返す
func (m *Manager) IsRunning() bool {
	return m.running.Load()
}

// Stats は復旧統計を返す
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	stats := m.stats
	m.mu.RUnlock()

	stats.HelpedTasks = m.helped.Load()
	stats.ActiveHelpers = int(m.helpers.Load())
	return stats
}

// SetConfig は設定を更新する
func (m *Manager) SetConfig(config Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config = config
}

// ResetStats は統計をリセットする
func (m *Manager) ResetStats() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats = Stats{}
	m.helped.Store(0)
}
