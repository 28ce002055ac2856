// Package logger provides a simple, thread-safe logging facility.
//
// The logger supports four levels: Debug, Info, Warn, and Error.
// Each log entry includes a timestamp, level, optional tag, and message.
// The pool uses worker names ("threadpool_worker_0") and component names
// as tags.
//
// # Basic Usage
//
// Using the default logger:
//
//	logger.Info("", "Application started")
//	logger.Info("threadpool_worker_0", "queue drained")
//	logger.Error("scenario", "Failed: %v", err)
//
// Creating a custom logger:
//
//	l := logger.New(os.Stderr, logger.LevelDebug)
//	l.Debug("threadpool_worker_1", "Debug message")
//
// A Tagged logger fixes the tag once. For binds it to whatever Default is
// at call time, which is how the pool and its components log:
//
//	var log = logger.For("recovery")
//	log.Warn("restarting pool (attempt %d)", attempt)
//
// # Log Levels
//
// Messages below the configured level are filtered:
//   - LevelDebug: all messages
//   - LevelInfo: Info, Warn, Error
//   - LevelWarn: Warn, Error
//   - LevelError: Error only
//
// ParseLevel converts configuration strings ("debug", "info", "warn",
// "error") to a Level.
//
// # Thread Safety
//
// All logging operations are protected by a mutex and safe for concurrent use.
package logger
