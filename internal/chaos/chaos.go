package chaos

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"threadpool/internal/events"
	"threadpool/internal/logger"
	"threadpool/internal/worker"
)

var log = logger.For("chaos")

// ErrInjected はカオスによって注入されたタスク失敗
var ErrInjected = errors.New("chaos: injected task failure")

// AttackType は障害の種類を表す
type AttackType int

const (
	AttackSaturate AttackType = iota
	AttackRestart
	AttackDelay
)

func (a AttackType) String() string {
	switch a {
	case AttackSaturate:
		return "saturate"
	case AttackRestart:
		return "restart"
	case AttackDelay:
		return "delay"
	default:
		return "unknown"
	}
}

// Config はChaosMonkeyの設定
type Config struct {
	Interval      time.Duration // 攻撃間隔
	TargetCount   int           // saturate 攻撃で占有するワーカー数
	AttackTypes   []AttackType  // 有効な攻撃タイプ
	DelayDuration time.Duration // Delay攻撃時にタスクへ加える遅延
	SuspendTime   time.Duration // saturate/delay 攻撃の継続時間
	FailureRate   float64       // Wrap したタスクを失敗させる確率（0.0〜1.0）
	PanicRatio    float64       // 失敗のうち panic にする割合（0.0〜1.0）
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Interval:      5 * time.Second,
		TargetCount:   1,
		AttackTypes:   []AttackType{AttackSaturate, AttackRestart, AttackDelay},
		DelayDuration: 10 * time.Millisecond,
		SuspendTime:   3 * time.Second,
		FailureRate:   0,
		PanicRatio:    0.5,
	}
}

// Stats はカオス攻撃の統計情報
type Stats struct {
	TotalAttacks     uint64            `json:"total_attacks"`
	ByType           map[string]uint64 `json:"attacks_by_type"`
	InjectedFailures uint64            `json:"injected_failures"`
	InjectedPanics   uint64            `json:"injected_panics"`
	DelayedTasks     uint64            `json:"delayed_tasks"`
}

// saturation は saturate 攻撃で投入したブロッカー
type saturation struct {
	release chan struct{}
	at      time.Time
	workers int
}

// Monkey はワーカープールに対してカオスエンジニアリングを実行する
type Monkey struct {
	config   Config
	pool     *worker.Pool
	eventBus *events.Bus

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu           sync.RWMutex
	attackCount  uint64
	attackByType map[AttackType]uint64
	lastAttack   time.Time
	saturations  []*saturation
	delay        time.Duration
	delayUntil   time.Time

	failures atomic.Uint64
	panics   atomic.Uint64
	delayed  atomic.Uint64
}

// New は新しいChaosMonkeyを作成する
func New(p *worker.Pool, config Config) *Monkey {
	return &Monkey{
		config:       config,
		pool:         p,
		attackByType: make(map[AttackType]uint64),
	}
}

// SetEventBus はイベントバスを設定する
func (m *Monkey) SetEventBus(bus *events.Bus) {
	m.eventBus = bus
}

// publishEvent はイベントを発行する
func (m *Monkey) publishEvent(event events.Event) {
	if m.eventBus != nil {
		m.eventBus.Publish(event)
	}
}

// Start はカオス注入を開始する
func (m *Monkey) Start(ctx context.Context) {
	if m.running.Swap(true) {
		return
	}

	m.ctx, m.cancel = context.WithCancel(ctx)
	config := m.currentConfig()

	m.wg.Add(1)
	go m.attackLoop(config.Interval)

	if config.SuspendTime > 0 {
		m.wg.Add(1)
		go m.resumeLoop(config.SuspendTime)
	}

	log.Info("ChaosMonkey started (interval: %v, targets: %d)",
		config.Interval, config.TargetCount)
}

// Stop はカオス注入を停止する
// 占有中のワーカーはすべて解放される
func (m *Monkey) Stop() {
	if !m.running.Swap(false) {
		return
	}

	m.cancel()
	// restart 攻撃がブロッカーの解放を待っている可能性があるので先に解放する
	m.resumeAll()
	m.wg.Wait()
	m.resumeAll()

	log.Info("ChaosMonkey stopped (total attacks: %d)", m.AttackCount())
}

// attackLoop は定期的に攻撃を実行する
func (m *Monkey) attackLoop(interval time.Duration) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.attack()
		}
	}
}

// resumeLoop は継続時間を過ぎた攻撃を解除する
func (m *Monkey) resumeLoop(suspend time.Duration) {
	defer m.wg.Done()

	interval := suspend / 4
	if interval <= 0 || interval > 500*time.Millisecond {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.checkAndResume()
		}
	}
}

// attack は攻撃を実行する
func (m *Monkey) attack() {
	if m.pool.State() != worker.StateRunning {
		return
	}

	config := m.currentConfig()
	attackType := selectAttackType(config.AttackTypes)
	if !m.executeAttack(attackType, config) {
		return
	}

	m.mu.Lock()
	m.attackCount++
	m.attackByType[attackType]++
	m.lastAttack = time.Now()
	m.mu.Unlock()
}

// currentConfig は設定のコピーを返す
func (m *Monkey) currentConfig() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// selectAttackType は攻撃タイプをランダムに選択する
func selectAttackType(types []AttackType) AttackType {
	if len(types) == 0 {
		return AttackSaturate
	}
	return types[rand.Intn(len(types))]
}

// executeAttack は指定された攻撃を実行する
func (m *Monkey) executeAttack(attackType AttackType, config Config) bool {
	switch attackType {
	case AttackSaturate:
		return m.attackSaturate(config.TargetCount)
	case AttackRestart:
		return m.attackRestart()
	case AttackDelay:
		return m.attackDelay(config.DelayDuration, config.SuspendTime)
	}
	return false
}

// attackSaturate はブロッカーを投入してワーカーを占有する
func (m *Monkey) attackSaturate(count int) bool {
	if workers := m.pool.NumWorkers(); count > workers {
		count = workers
	}
	if count <= 0 {
		return false
	}

	s := &saturation{
		release: make(chan struct{}),
		at:      time.Now(),
		workers: count,
	}
	for range count {
		m.pool.Submit(func() {
			<-s.release
		})
	}

	m.mu.Lock()
	m.saturations = append(m.saturations, s)
	m.mu.Unlock()

	log.Warn("ChaosMonkey: saturating %d worker(s) of pool %s", count, m.pool.ID())
	m.publishEvent(events.NewChaosAttackEvent(m.pool.ID(), events.AttackTypeSaturate))
	return true
}

// attackRestart はプールを停止して同じワーカー数で再起動する
func (m *Monkey) attackRestart() bool {
	workers := m.pool.NumWorkers()
	if workers == 0 {
		return false
	}

	m.pool.Stop()
	if err := m.pool.Start(workers); err != nil {
		log.Warn("ChaosMonkey: failed to restart pool %s: %v", m.pool.ID(), err)
		return false
	}

	log.Warn("ChaosMonkey: restarted pool %s with %d workers", m.pool.ID(), workers)
	m.publishEvent(events.NewChaosAttackEvent(m.pool.ID(), events.AttackTypeRestart))
	return true
}

// attackDelay は以降のタスクに遅延を注入する
func (m *Monkey) attackDelay(delay, duration time.Duration) bool {
	if delay <= 0 {
		return false
	}

	m.mu.Lock()
	m.delay = delay
	m.delayUntil = time.Now().Add(duration)
	m.mu.Unlock()

	log.Warn("ChaosMonkey: injected %v delay to tasks of pool %s", delay, m.pool.ID())
	m.publishEvent(events.NewChaosAttackEventWithDelay(m.pool.ID(), delay))
	return true
}

// checkAndResume は継続時間が経過した saturate/delay 攻撃を解除する
func (m *Monkey) checkAndResume() {
	m.mu.Lock()
	now := time.Now()

	var released []*saturation
	kept := m.saturations[:0]
	for _, s := range m.saturations {
		if now.Sub(s.at) >= m.config.SuspendTime {
			released = append(released, s)
			continue
		}
		kept = append(kept, s)
	}
	m.saturations = kept

	if m.delay > 0 && now.After(m.delayUntil) {
		m.delay = 0
		log.Info("ChaosMonkey: cleared task delay")
	}
	m.mu.Unlock()

	for _, s := range released {
		close(s.release)
		log.Info("ChaosMonkey: released %d saturated worker(s)", s.workers)
		m.publishEvent(events.NewChaosResumeEvent(m.pool.ID(), s.workers))
	}
}

// resumeAll は全ての占有を解除し遅延をクリアする
func (m *Monkey) resumeAll() {
	m.mu.Lock()
	released := m.saturations
	m.saturations = nil
	m.delay = 0
	m.mu.Unlock()

	for _, s := range released {
		close(s.release)
		log.Info("ChaosMonkey: released %d saturated worker(s) on shutdown", s.workers)
	}
}

// Wrap は fn に遅延と失敗を注入するラッパーを返す
// 失敗は ErrInjected を返すか、PanicRatio の割合で panic する
func (m *Monkey) Wrap(fn func() error) func() error {
	return func() error {
		m.mu.RLock()
		delay := m.delay
		rate := m.config.FailureRate
		panicRatio := m.config.PanicRatio
		m.mu.RUnlock()

		if delay > 0 {
			m.delayed.Add(1)
			time.Sleep(delay)
		}

		if rate > 0 && rand.Float64() < rate {
			if rand.Float64() < panicRatio {
				m.panics.Add(1)
				panic(ErrInjected)
			}
			m.failures.Add(1)
			return ErrInjected
		}

		return fn()
	}
}

// IsRunning は実行中かどうかを返す
func (m *Monkey) IsRunning() bool {
	return m.running.Load()
}

// AttackCount は攻撃回数を返す
func (m *Monkey) AttackCount() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.attackCount
}

// Saturated は現在占有しているワーカー数を返す
func (m *Monkey) Saturated() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := 0
	for _, s := range m.saturations {
		total += s.workers
	}
	return total
}

// SetConfig は設定を更新する
func (m *Monkey) SetConfig(config Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config = config
}

// Stats は攻撃統計を返す
func (m *Monkey) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byType := make(map[string]uint64)
	for t, count := range m.attackByType {
		byType[t.String()] = count
	}

	return Stats{
		TotalAttacks:     m.attackCount,
		ByType:           byType,
		InjectedFailures: m.failures.Load(),
		InjectedPanics:   m.panics.Load(),
		DelayedTasks:     m.delayed.Load(),
	}
}
