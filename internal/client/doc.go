// Package client provides a load generator for stress testing a worker pool.
//
// The Client runs a number of producer goroutines under an errgroup. Each
// producer submits a batch of tasks, waits for their futures and records the
// end-to-end latency and outcome of every task in its own metrics.
//
// # Basic Usage
//
//	pool := worker.NewPool()
//	pool.Start(4)
//	defer pool.Stop()
//
//	config := client.DefaultConfig()
//	config.TaskDuration = 5 * time.Millisecond
//	cl := client.New(pool, config)
//
//	// Run for a duration
//	snap := cl.RunFor(ctx, 10*time.Second)
//	fmt.Printf("Total: %d, TPS: %.2f\n", snap.TotalTasks, snap.TPS)
//
//	// Or run a fixed number of tasks
//	snap := cl.RunRequests(ctx, 10000)
//
// # Configuration
//
// The Config struct allows tuning:
//   - Producers: submitting goroutines (0 = CPU count)
//   - BatchSize: tasks submitted before waiting for results
//   - TaskDuration: simulated work per task
//   - RequestsLimit: max tasks (0 = unlimited)
//
// SetWrapper installs a function applied to every task, which is how the
// chaos injector adds delays and failures.
package client
