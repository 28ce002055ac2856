package client

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"threadpool/internal/logger"
	"threadpool/internal/metrics"
	"threadpool/internal/worker"

	"golang.org/x/sync/errgroup"
)

var log = logger.For("client")

// Config はClientの設定
type Config struct {
	Producers     int           // タスクを投入するゴルーチン数（0でCPU数）
	BatchSize     int           // 1回にまとめて投入するタスク数
	TaskDuration  time.Duration // 1タスクあたりの擬似作業時間
	RequestsLimit uint64        // 投入タスク数の上限（0で無制限）
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Producers:     0, // CPU数
		BatchSize:     10,
		TaskDuration:  time.Millisecond,
		RequestsLimit: 0,
	}
}

// Wrapper はタスク関数を包む関数（カオス注入など）
type Wrapper func(fn func() error) func() error

// Client は負荷生成器
type Client struct {
	config  Config
	pool    *worker.Pool
	metrics *metrics.Metrics
	wrap    Wrapper

	running atomic.Bool
	issued  atomic.Uint64
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

// New は新しいClientを作成する
func New(p *worker.Pool, config Config) *Client {
	if config.Producers <= 0 {
		config.Producers = runtime.NumCPU()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 1
	}
	return &Client{
		config:  config,
		pool:    p,
		metrics: metrics.New(),
	}
}

// SetWrapper は各タスクに適用するラッパーを設定する
// Start より前に呼ぶこと
func (c *Client) SetWrapper(w Wrapper) {
	c.wrap = w
}

// Start は負荷生成を開始する
func (c *Client) Start(ctx context.Context) {
	if c.running.Swap(true) {
		return // Already running
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})

	g, gctx := errgroup.WithContext(c.ctx)
	for range c.config.Producers {
		g.Go(func() error {
			return c.produce(gctx)
		})
	}

	go func() {
		defer close(c.done)
		if err := g.Wait(); err != nil {
			log.Warn("producer stopped: %v", err)
		}
	}()

	log.Info("Client started (producers: %d, batch: %d, task: %v)",
		c.config.Producers, c.config.BatchSize, c.config.TaskDuration)
}

// produce はバッチ単位でタスクを投入し、完了を待ち続ける
func (c *Client) produce(ctx context.Context) error {
	for ctx.Err() == nil {
		n := c.reserve(c.config.BatchSize)
		if n == 0 {
			return nil
		}

		start := time.Now()
		futures := make([]*worker.Future[struct{}], n)
		for i := range futures {
			futures[i] = c.pool.Go(c.createTask())
		}

		for _, f := range futures {
			_, err := f.Wait(ctx)
			if ctx.Err() != nil {
				// 結果を待たずに停止された
				return nil
			}

			latency := time.Since(start)
			if err != nil {
				c.metrics.RecordFailure(latency)
			} else {
				c.metrics.RecordSuccess(latency)
			}
		}
	}
	return nil
}

// reserve は上限を超えない範囲で n 個までの投入枠を確保する
func (c *Client) reserve(n int) int {
	limit := c.config.RequestsLimit
	if limit == 0 {
		c.issued.Add(uint64(n))
		return n
	}

	for {
		cur := c.issued.Load()
		if cur >= limit {
			return 0
		}
		k := min(uint64(n), limit-cur)
		if c.issued.CompareAndSwap(cur, cur+k) {
			return int(k)
		}
	}
}

// createTask は擬似作業を行うタスクを作成する
func (c *Client) createTask() func() error {
	d := c.config.TaskDuration
	task := func() error {
		if d > 0 {
			time.Sleep(d)
		}
		return nil
	}
	if c.wrap != nil {
		return c.wrap(task)
	}
	return task
}

// Stop は負荷生成を停止する
// 投入済みのタスクはプールに残る
func (c *Client) Stop() {
	if !c.running.Swap(false) {
		return // Not running
	}

	c.cancel()
	<-c.done

	log.Info("Client stopped (issued: %d)", c.issued.Load())
}

// Metrics はメトリクスを返す
func (c *Client) Metrics() *metrics.Metrics {
	return c.metrics
}

// Issued は投入したタスク数を返す
func (c *Client) Issued() uint64 {
	return c.issued.Load()
}

// IsRunning は実行中かどうかを返す
func (c *Client) IsRunning() bool {
	return c.running.Load()
}

// RunFor は指定時間だけ負荷生成を実行する
func (c *Client) RunFor(ctx context.Context, duration time.Duration) *metrics.Snapshot {
	c.Start(ctx)

	select {
	case <-ctx.Done():
	case <-c.done:
	case <-time.After(duration):
	}

	c.Stop()

	snapshot := c.metrics.Snapshot()
	return &snapshot
}

// RunRequests は指定数のタスクを実行する
func (c *Client) RunRequests(ctx context.Context, count uint64) *metrics.Snapshot {
	c.config.RequestsLimit = count
	c.Start(ctx)

	select {
	case <-ctx.Done():
	case <-c.done:
	}

	c.Stop()

	snapshot := c.metrics.Snapshot()
	return &snapshot
}
