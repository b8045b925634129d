// Package daemon coordinates the long-running ocrkit process.
//
// It owns the processing service lifecycle with flock-based locking to
// prevent multiple instances, runs preflight checks before serving, and
// exposes the HTTP API alongside the Prometheus metrics endpoint. Stopping
// tears the service down completely while the process stays alive, so an
// IPC-driven stop/start cycle works without relaunching the daemon.
//
// Keep orchestration logic here: job admission, scheduling, and execution
// live in their respective packages while the daemon focuses on startup,
// shutdown, and wiring the transports to the core service.
package daemon
