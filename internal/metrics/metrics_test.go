package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	m := New()

	if m.TotalTasks() != 0 {
		t.Errorf("expected 0 total tasks, got %d", m.TotalTasks())
	}
	if m.SuccessTasks() != 0 {
		t.Errorf("expected 0 success tasks, got %d", m.SuccessTasks())
	}
	if m.maxLatencySamples != 1000 {
		t.Errorf("expected 1000 latency samples, got %d", m.maxLatencySamples)
	}

	if m.window != 10*time.Second {
		t.Errorf("expected 10s window, got %v", m.window)
	}

	m2 := NewWithConfig(Config{MaxLatencySamples: -1, Window: -1})
	if m2.maxLatencySamples != 1000 {
		t.Errorf("expected default samples for invalid config, got %d", m2.maxLatencySamples)
	}
	if m2.window != 10*time.Second {
		t.Errorf("expected default window for invalid config, got %v", m2.window)
	}
}

func TestMetricsRecordSuccess(t *testing.T) {
	m := New()

	m.RecordSuccess(10 * time.Millisecond)
	m.RecordSuccess(20 * time.Millisecond)
	m.RecordSuccess(30 * time.Millisecond)

	if m.TotalTasks() != 3 {
		t.Errorf("expected 3 total tasks, got %d", m.TotalTasks())
	}
	if m.SuccessTasks() != 3 {
		t.Errorf("expected 3 success tasks, got %d", m.SuccessTasks())
	}
	if m.FailedTasks() != 0 {
		t.Errorf("expected 0 failed tasks, got %d", m.FailedTasks())
	}
}

func TestMetricsRecordFailure(t *testing.T) {
	m := New()

	m.RecordFailure(10 * time.Millisecond)
	m.RecordSuccess(20 * time.Millisecond)

	if m.TotalTasks() != 2 {
		t.Errorf("expected 2 total tasks, got %d", m.TotalTasks())
	}
	if m.FailedTasks() != 1 {
		t.Errorf("expected 1 failed task, got %d", m.FailedTasks())
	}
	if rate := m.ErrorRate(); rate != 0.5 {
		t.Errorf("expected error rate 0.5, got %f", rate)
	}
	// 失敗はP99サンプルに含めない
	if p99 := m.P99Latency(); p99 != 20*time.Millisecond {
		t.Errorf("expected P99 20ms, got %v", p99)
	}
}

func TestMetricsAverageLatency(t *testing.T) {
	m := New()

	if m.AverageLatency() != 0 {
		t.Errorf("expected 0 average latency with no tasks, got %v", m.AverageLatency())
	}

	m.RecordSuccess(10 * time.Millisecond)
	m.RecordSuccess(20 * time.Millisecond)
	m.RecordSuccess(30 * time.Millisecond)

	if avg := m.AverageLatency(); avg != 20*time.Millisecond {
		t.Errorf("expected average latency 20ms, got %v", avg)
	}
}

func TestMetricsP99Latency(t *testing.T) {
	m := New()

	for i := 1; i <= 100; i++ {
		m.RecordSuccess(time.Duration(i) * time.Millisecond)
	}

	if p99 := m.P99Latency(); p99 != 100*time.Millisecond {
		t.Errorf("expected P99 100ms, got %v", p99)
	}
}

func TestMetricsReset(t *testing.T) {
	m := New()

	m.RecordSuccess(10 * time.Millisecond)
	m.Reset()

	if m.P99Latency() != 0 {
		t.Errorf("expected no latency samples after reset, got %v", m.P99Latency())
	}
	// 累計は保持される
	if m.TotalTasks() != 1 {
		t.Errorf("expected total tasks to survive reset, got %d", m.TotalTasks())
	}
}

func TestMetricsSnapshot(t *testing.T) {
	m := New()

	m.RecordSuccess(10 * time.Millisecond)
	m.RecordFailure(30 * time.Millisecond)

	snap := m.Snapshot()
	if snap.TotalTasks != 2 {
		t.Errorf("expected 2 total tasks, got %d", snap.TotalTasks)
	}
	if snap.SuccessTasks != 1 {
		t.Errorf("expected 1 success task, got %d", snap.SuccessTasks)
	}
	if snap.FailedTasks != 1 {
		t.Errorf("expected 1 failed task, got %d", snap.FailedTasks)
	}
	if snap.AverageLatency != 20*time.Millisecond {
		t.Errorf("expected average latency 20ms, got %v", snap.AverageLatency)
	}
	if snap.ErrorRate != 0.5 {
		t.Errorf("expected error rate 0.5, got %f", snap.ErrorRate)
	}
	if snap.Elapsed <= 0 {
		t.Errorf("expected positive elapsed time, got %v", snap.Elapsed)
	}
}

func TestMetricsP99TracksRecentSamples(t *testing.T) {
	m := New()

	for range 1000 {
		m.RecordSuccess(time.Millisecond)
	}
	if p99 := m.P99Latency(); p99 != time.Millisecond {
		t.Fatalf("expected P99 1ms, got %v", p99)
	}

	for range 100000 {
		m.RecordSuccess(time.Second)
	}

	// 古いサンプルは上書きされる
	if p99 := m.P99Latency(); p99 != time.Second {
		t.Errorf("expected P99 1s after slow tasks, got %v", p99)
	}
	if len(m.latencies) != m.maxLatencySamples {
		t.Errorf("expected %d samples kept, got %d", m.maxLatencySamples, len(m.latencies))
	}
}

func TestMetricsP99PartialOverwrite(t *testing.T) {
	m := NewWithConfig(Config{MaxLatencySamples: 10})

	for range 10 {
		m.RecordSuccess(time.Millisecond)
	}
	for range 5 {
		m.RecordSuccess(time.Second)
	}

	if p99 := m.P99Latency(); p99 != time.Second {
		t.Errorf("expected P99 1s, got %v", p99)
	}

	// Reset 後は書き込み位置も先頭に戻る
	m.Reset()
	for range 3 {
		m.RecordSuccess(2 * time.Millisecond)
	}
	if p99 := m.P99Latency(); p99 != 2*time.Millisecond {
		t.Errorf("expected P99 2ms after reset, got %v", p99)
	}
}

func TestMetricsTPSWindowRolls(t *testing.T) {
	m := NewWithConfig(Config{Window: 50 * time.Millisecond})

	for range 100 {
		m.RecordSuccess(time.Millisecond)
	}
	if tps := m.TPS(); tps <= 0 {
		t.Fatalf("expected positive TPS while recording, got %f", tps)
	}

	// 2ウィンドウ以上何も記録しなければ TPS は 0 に落ちる
	time.Sleep(150 * time.Millisecond)

	if tps := m.TPS(); tps != 0 {
		t.Errorf("expected TPS 0 after idle windows, got %f", tps)
	}
	if overall := m.OverallTPS(); overall <= 0 {
		t.Errorf("expected overall TPS to keep history, got %f", overall)
	}

	m.RecordSuccess(time.Millisecond)
	if tps := m.TPS(); tps <= 0 {
		t.Errorf("expected TPS to recover after new tasks, got %f", tps)
	}
}

func TestMetricsTPSKeepsPreviousWindow(t *testing.T) {
	m := NewWithConfig(Config{Window: 100 * time.Millisecond})

	for range 50 {
		m.RecordSuccess(time.Millisecond)
	}

	// 次のウィンドウに入っても直前のウィンドウ分は残る
	time.Sleep(120 * time.Millisecond)
	if tps := m.TPS(); tps <= 0 {
		t.Errorf("expected previous window to count, got %f", tps)
	}
}

func TestMetricsConcurrentRecord(t *testing.T) {
	m := New()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				m.RecordSuccess(time.Millisecond)
			}
		}()
	}
	wg.Wait()

	if m.TotalTasks() != 1000 {
		t.Errorf("expected 1000 total tasks, got %d", m.TotalTasks())
	}
}

type fakePool struct {
	queued  int
	workers int
}

func (f fakePool) QueueSize() int  { return f.queued }
func (f fakePool) NumWorkers() int { return f.workers }

func TestMetricsRegister(t *testing.T) {
	m := New()
	reg := prometheus.NewRegistry()

	if err := m.Register(reg, "", fakePool{queued: 7, workers: 3}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	m.RecordSuccess(5 * time.Millisecond)
	m.RecordSuccess(5 * time.Millisecond)
	m.RecordFailure(5 * time.Millisecond)

	count, err := testutil.GatherAndCount(reg,
		"threadpool_tasks_total",
		"threadpool_tasks_succeeded_total",
		"threadpool_tasks_failed_total",
		"threadpool_task_duration_seconds",
		"threadpool_queue_size",
		"threadpool_workers",
	)
	if err != nil {
		t.Fatalf("GatherAndCount failed: %v", err)
	}
	if count != 6 {
		t.Errorf("expected 6 metrics, got %d", count)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	values := make(map[string]float64)
	for _, mf := range families {
		metric := mf.GetMetric()[0]
		switch {
		case metric.GetCounter() != nil:
			values[mf.GetName()] = metric.GetCounter().GetValue()
		case metric.GetGauge() != nil:
			values[mf.GetName()] = metric.GetGauge().GetValue()
		case metric.GetHistogram() != nil:
			values[mf.GetName()] = float64(metric.GetHistogram().GetSampleCount())
		}
	}

	want := map[string]float64{
		"threadpool_tasks_total":           3,
		"threadpool_tasks_succeeded_total": 2,
		"threadpool_tasks_failed_total":    1,
		"threadpool_task_duration_seconds": 3,
		"threadpool_queue_size":            7,
		"threadpool_workers":               3,
	}
	for name, v := range want {
		if values[name] != v {
			t.Errorf("%s: expected %v, got %v", name, v, values[name])
		}
	}

	// 同じレジストリへの二重登録はエラー
	if err := m.Register(reg, "", nil); err == nil {
		t.Error("expected error on duplicate registration")
	}
}
