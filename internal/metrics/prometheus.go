package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultNamespace は Prometheus メトリクス名の接頭辞
const DefaultNamespace = "threadpool"

// PoolGauges はプールの瞬間値を公開するためのインターフェース
// worker.Pool がこれを満たす
type PoolGauges interface {
	QueueSize() int
	NumWorkers() int
}

// Register はカウンタ・レイテンシヒストグラム・プールのゲージを reg に登録する
// pool が nil の場合ゲージは登録しない
func (m *Metrics) Register(reg prometheus.Registerer, namespace string, pool PoolGauges) error {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "task_duration_seconds",
		Help:      "Histogram of task execution latency in seconds",
		Buckets:   prometheus.DefBuckets,
	})

	collectors := []prometheus.Collector{
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Total number of executed tasks",
		}, func() float64 { return float64(m.TotalTasks()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_succeeded_total",
			Help:      "Total number of tasks completed successfully",
		}, func() float64 { return float64(m.SuccessTasks()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_failed_total",
			Help:      "Total number of tasks that returned an error or panicked",
		}, func() float64 { return float64(m.FailedTasks()) }),
		histogram,
	}

	if pool != nil {
		collectors = append(collectors,
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "queue_size",
				Help:      "Number of tasks waiting in the queue",
			}, func() float64 { return float64(pool.QueueSize()) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "workers",
				Help:      "Number of running worker goroutines",
			}, func() float64 { return float64(pool.NumWorkers()) }),
		)
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("failed to register collector: %w", err)
		}
	}

	m.mu.Lock()
	m.histogram = histogram
	m.mu.Unlock()

	return nil
}
