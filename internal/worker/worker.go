package worker

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"threadpool/internal/events"
	"threadpool/internal/logger"
	"threadpool/internal/metrics"

	"github.com/google/uuid"
)

// State はプールのライフサイクル状態を表す
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// PoolConfig はワーカープールの設定
type PoolConfig struct {
	Name string // ワーカー名の接頭辞（空で "threadpool"）
}

// DefaultPoolConfig はデフォルト設定を返す
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Name: "threadpool",
	}
}

// Pool は固定数のワーカーゴルーチンと共有キューを管理する
type Pool struct {
	id    string
	name  string
	log   logger.Tagged
	queue *taskQueue

	// mu は Start/Stop を直列化する
	mu      sync.Mutex
	wg      sync.WaitGroup
	workers atomic.Int32
	state   atomic.Int32

	executed atomic.Uint64

	eventBus *events.Bus
	metrics  *metrics.Metrics
}

// NewPool は未起動の空のプールを作成する
func NewPool() *Pool {
	return NewPoolWithConfig(DefaultPoolConfig())
}

// NewPoolWithConfig は設定を指定してプールを作成する
func NewPoolWithConfig(config PoolConfig) *Pool {
	name := config.Name
	if name == "" {
		name = DefaultPoolConfig().Name
	}
	return &Pool{
		id:    uuid.NewString(),
		name:  name,
		log:   logger.For(name),
		queue: newTaskQueue(),
	}
}

// SetEventBus はイベントバスを設定する
// Start より前に呼ぶこと
func (p *Pool) SetEventBus(bus *events.Bus) {
	p.eventBus = bus
}

// SetMetrics はタスク実行のメトリクス記録先を設定する
// Start より前に呼ぶこと
func (p *Pool) SetMetrics(m *metrics.Metrics) {
	p.metrics = m
}

// publishEvent はイベントを発行する
func (p *Pool) publishEvent(event events.Event) {
	if p.eventBus != nil {
		p.eventBus.Publish(event)
	}
}

// Start は numWorkers 個のワーカーを起動する
func (p *Pool) Start(numWorkers int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.workers.Load() > 0 {
		return ErrAlreadyStarted
	}
	if numWorkers < 1 || numWorkers > math.MaxInt32 {
		return fmt.Errorf("%w: got %d", ErrInvalidWorkerCount, numWorkers)
	}

	p.workers.Store(int32(numWorkers))
	p.state.Store(int32(StateRunning))

	for i := range numWorkers {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.log.Info("WorkerPool started with %d workers (queued: %d)", numWorkers, p.queue.len())
	p.publishEvent(events.NewPoolStartedEvent(p.id, numWorkers))

	return nil
}

// worker は個々のワーカーゴルーチン
// キューが空になり停止が通知されるまでタスクを処理し続ける
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	log := logger.For(fmt.Sprintf("%s_worker_%d", p.name, id))
	for {
		t, ok := p.queue.pop()
		if !ok {
			log.Debug("queue drained, worker exiting")
			return
		}
		p.run(t)
	}
}

// run はタスクを実行する
// キューのロックを保持せずに呼ぶこと
func (p *Pool) run(t task) {
	t()
	p.executed.Add(1)
}

// Stop は停止を通知し、全ワーカーの終了を待つ
// 起動していないプールに対しても安全に呼べる
// タスクの中から呼んではならない
func (p *Pool) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	wasRunning := p.workers.Load() > 0
	if wasRunning {
		p.state.Store(int32(StateStopping))
	}

	p.queue.shutdown()
	p.wg.Wait()
	p.workers.Store(0)
	p.queue.reset()
	p.state.Store(int32(StateIdle))

	if wasRunning {
		p.log.Info("WorkerPool stopped (remaining queued: %d)", p.queue.len())
		p.publishEvent(events.NewPoolStoppedEvent(p.id, p.executed.Load()))
	}
}

// Submit は戻り値のない関数をキューに投入し、完了を待つための Future を返す
// プールの状態に関係なく投入できる
func (p *Pool) Submit(fn func()) *Future[struct{}] {
	if fn == nil {
		return failedFuture[struct{}](ErrNilTask)
	}
	return Submit(p, func() (struct{}, error) {
		fn()
		return struct{}{}, nil
	})
}

// Go はエラーを返す関数を投入する
func (p *Pool) Go(fn func() error) *Future[struct{}] {
	if fn == nil {
		return failedFuture[struct{}](ErrNilTask)
	}
	return Submit(p, func() (struct{}, error) {
		return struct{}{}, fn()
	})
}

// Submit は値を返す関数を投入し、その結果を受け取る Future を返す
// メソッドは型パラメータを持てないため関数として提供する
func Submit[T any](p *Pool, fn func() (T, error)) *Future[T] {
	if fn == nil {
		return failedFuture[T](ErrNilTask)
	}

	f := newFuture[T]()
	p.queue.push(bind(observe(p, fn), f))
	return f
}

// observe は fn の実行時間と結果をメトリクス・イベントに反映するラッパーを返す
func observe[T any](p *Pool, fn func() (T, error)) func() (T, error) {
	if p.metrics == nil && p.eventBus == nil {
		return fn
	}
	return func() (value T, err error) {
		start := time.Now()
		defer func() {
			latency := time.Since(start)
			if r := recover(); r != nil {
				p.recordFailure(latency, fmt.Errorf("task panicked: %v", r), true)
				p.log.Warn("recovered panic in task: %v", r)
				panic(r)
			}
			if err != nil {
				p.recordFailure(latency, err, false)
				return
			}
			if p.metrics != nil {
				p.metrics.RecordSuccess(latency)
			}
		}()
		return fn()
	}
}

func (p *Pool) recordFailure(latency time.Duration, err error, panicked bool) {
	if p.metrics != nil {
		p.metrics.RecordFailure(latency)
	}
	p.publishEvent(events.NewTaskFailedEvent(p.id, err, panicked))
}

// ProcessTask は呼び出し元のゴルーチンでタスクを1つ実行する
// キューが空で停止も通知されていなければ、タスクが届くか停止されるまでブロックする
// 停止が通知されキューが空の場合は何も実行せず false を返す
func (p *Pool) ProcessTask() bool {
	t, ok := p.queue.pop()
	if !ok {
		return false
	}
	p.run(t)
	return true
}

// TryProcessTask はキューにタスクがあれば1つ実行する
// キューが空なら待たずに false を返す
func (p *Pool) TryProcessTask() bool {
	t, ok := p.queue.tryPop()
	if !ok {
		return false
	}
	p.run(t)
	return true
}

// QueueSize は実行待ちのタスク数を返す
func (p *Pool) QueueSize() int {
	return p.queue.len()
}

// NumWorkers は現在起動しているワーカー数を返す
func (p *Pool) NumWorkers() int {
	return int(p.workers.Load())
}

// State は現在の状態を返す
func (p *Pool) State() State {
	return State(p.state.Load())
}

// Executed はこれまでに実行したタスク数を返す
func (p *Pool) Executed() uint64 {
	return p.executed.Load()
}

// ID はプールの一意なIDを返す
func (p *Pool) ID() string {
	return p.id
}

// Name はプール名を返す
func (p *Pool) Name() string {
	return p.name
}
