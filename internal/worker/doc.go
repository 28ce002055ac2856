// Package worker provides a restartable goroutine pool with result futures.
//
// The Pool owns an unbounded FIFO queue guarded by a mutex and condition
// variable, and a fixed set of worker goroutines that pop and execute tasks
// until the queue is empty and a stop has been signaled.
//
// # Basic Usage
//
//	pool := worker.NewPool()
//	if err := pool.Start(4); err != nil {
//	    log.Fatal(err)
//	}
//	defer pool.Stop()
//
//	// Fire a task and wait for it
//	done := pool.Submit(func() {
//	    // do work
//	})
//	_, _ = done.Get()
//
//	// Tasks with results
//	f := worker.Submit(pool, func() (string, error) {
//	    return "result", nil
//	})
//	value, err := f.Get()
//
// # Failures
//
// An error returned by a task, or a panic raised inside it, never reaches
// the worker goroutine. It is stored in the task's Future and returned from
// Get. Panics are wrapped in *PanicError.
//
// # Lifecycle
//
// A pool is idle after construction, running after Start and idle again after
// Stop, which drains the queue and joins every worker before returning.
// Tasks may be submitted in any state; tasks submitted while idle run after
// the next Start. Start on a running pool returns ErrAlreadyStarted.
//
// # Helping
//
// ProcessTask lets any goroutine execute one queued task with the same
// wait/wake protocol as a worker. This keeps work moving when every worker
// is occupied by long-running tasks.
package worker
