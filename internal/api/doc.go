// Package api exposes scenario control and pool observability over HTTP.
//
// Routes:
//
//	GET  /api/status          pool state, workers, queue size
//	GET  /api/metrics         JSON snapshot of client, pool, chaos and recovery stats
//	POST /api/scenario/start  start a preset scenario in the background
//	POST /api/scenario/stop   cancel the running scenario
//	GET  /api/presets         list of preset scenarios
//	GET  /metrics             Prometheus exposition of the shared pool metrics
//	     /ws                  websocket stream of status, events and results
package api
