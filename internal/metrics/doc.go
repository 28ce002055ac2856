// Package metrics provides task metrics collection and reporting.
//
// Metrics collects statistics about task latency, success/failure rates,
// and throughput (TPS). It is thread-safe and optimized for high-concurrency
// scenarios.
//
// # Basic Usage
//
//	m := metrics.New()
//
//	// Record tasks
//	start := time.Now()
//	// ... do work ...
//	m.RecordSuccess(time.Since(start))
//
//	// Get statistics
//	fmt.Printf("Total: %d, TPS: %.2f, P99: %v\n",
//	    m.TotalTasks(), m.TPS(), m.P99Latency())
//
//	// Get a snapshot
//	snap := m.Snapshot()
//
// # Configuration
//
// Use NewWithConfig for custom settings:
//
//	config := metrics.Config{
//	    MaxLatencySamples: 5000,            // Recent samples kept for P99
//	    Window:            5 * time.Second, // TPS window
//	}
//
// P99Latency is computed over the most recent MaxLatencySamples successful
// tasks. TPS covers the current window plus the previous one, so it follows
// the load as it changes. OverallTPS averages over the whole lifetime.
//	m := metrics.NewWithConfig(config)
//
// # Prometheus
//
// Register exposes the counters, a latency histogram and the pool's queue
// size and worker count on a Prometheus registerer:
//
//	reg := prometheus.NewRegistry()
//	if err := m.Register(reg, "threadpool", pool); err != nil {
//	    log.Fatal(err)
//	}
//
// # Thread Safety
//
// All operations use atomic counters and are safe for concurrent access.
package metrics
