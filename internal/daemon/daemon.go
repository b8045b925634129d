package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"log/slog"

	"github.com/gofrs/flock"

	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/archive"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/broadcast"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/cache"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/config"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/core"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/deps"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/intake"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/job"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/logging"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/ocr"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/preflight"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/registry"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/sched"
)

// Daemon owns the processing service and enforces single-instance execution.
//
// The core service is one-shot: stopping it closes the scheduler, the event
// hub, and the history archive for good. The daemon therefore builds a fresh
// service on every Start and only the recognition engine survives restarts;
// engines hold no per-run state.
type Daemon struct {
	cfg    *config.Config
	engine ocr.Engine
	logger *slog.Logger

	lockPath string
	lock     *flock.Flock

	mu      sync.Mutex
	service *core.Service
	api     *apiServer

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	SocketPath   string
	LockPath     string
	ArchivePath  string
	Service      core.Status
	Dependencies []deps.Status
}

// New constructs a daemon with the given recognition engine.
func New(cfg *config.Config, engine ocr.Engine, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || engine == nil {
		return nil, errors.New("daemon requires config and recognition engine")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		engine:   engine,
		logger:   logger,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start runs preflight checks, acquires the daemon lock, and brings up a
// fresh processing service together with the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if failures := preflight.MandatoryFailures(preflight.RunAll(d.cfg)); len(failures) > 0 {
		details := make([]string, 0, len(failures))
		for _, failure := range failures {
			details = append(details, fmt.Sprintf("%s: %s", failure.Name, failure.Detail))
		}
		return fmt.Errorf("preflight checks failed: %s", strings.Join(details, "; "))
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another ocrkit daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	unwind := func() {
		cancel()
		_ = d.lock.Unlock()
	}

	svc, err := core.New(d.cfg, d.engine, d.logger)
	if err != nil {
		unwind()
		return err
	}
	if err := svc.Start(runCtx); err != nil {
		unwind()
		return fmt.Errorf("start service: %w", err)
	}

	api, err := newAPIServer(d.cfg, d, d.logger)
	if err != nil {
		svc.Stop()
		unwind()
		return err
	}
	if err := api.start(runCtx); err != nil {
		svc.Stop()
		unwind()
		return err
	}

	d.mu.Lock()
	d.service = svc
	d.api = api
	d.cancel = cancel
	d.mu.Unlock()
	d.running.Store(true)
	d.logger.Info("ocrkit daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops the processing service and releases the daemon lock. The process
// keeps serving IPC so a later Start can bring the service back.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.mu.Lock()
	svc := d.service
	api := d.api
	cancel := d.cancel
	d.service = nil
	d.api = nil
	d.cancel = nil
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	// Service first: closing the event hub unblocks streaming handlers so the
	// API server's drain finishes quickly.
	if svc != nil {
		svc.Stop()
	}
	api.stop()

	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("ocrkit daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

// Status returns the current daemon status. It is safe whether or not the
// service is running; a stopped daemon reports a zero service snapshot.
func (d *Daemon) Status() Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		SocketPath:   d.cfg.SocketPath(),
		LockPath:     d.lockPath,
		Dependencies: deps.Check(d.cfg),
	}
	if d.cfg.Archive.Enabled {
		status.ArchivePath = d.cfg.Archive.Path
	}
	if svc := d.svc(); svc != nil {
		status.Service = svc.Status()
	} else {
		// Keep the configured engine visible in status output while stopped.
		status.Service.Engine = d.engine.Name()
	}
	return status
}

func (d *Daemon) svc() *core.Service {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.service
}

// Submit admits one job through the running service.
func (d *Daemon) Submit(sub intake.Submission) (*job.Job, error) {
	svc := d.svc()
	if svc == nil {
		return nil, core.ErrStopped
	}
	return svc.Submit(sub)
}

// SubmitBatch admits a group of jobs atomically.
func (d *Daemon) SubmitBatch(req intake.BatchRequest) (*intake.BatchReceipt, error) {
	svc := d.svc()
	if svc == nil {
		return nil, core.ErrStopped
	}
	return svc.SubmitBatch(req)
}

// Cancel stops a job; see the core service for the exact semantics per state.
func (d *Daemon) Cancel(id string) (*job.Job, error) {
	svc := d.svc()
	if svc == nil {
		return nil, core.ErrStopped
	}
	return svc.Cancel(id)
}

// JobStatus returns a job snapshot.
func (d *Daemon) JobStatus(id string) (*job.Job, error) {
	svc := d.svc()
	if svc == nil {
		return nil, core.ErrStopped
	}
	return svc.JobStatus(id)
}

// BatchStatus returns a batch record together with its member jobs.
func (d *Daemon) BatchStatus(id string) (*core.BatchView, error) {
	svc := d.svc()
	if svc == nil {
		return nil, core.ErrStopped
	}
	return svc.BatchStatus(id)
}

// Jobs lists job snapshots matching the filter.
func (d *Daemon) Jobs(filter registry.ListFilter) ([]*job.Job, error) {
	svc := d.svc()
	if svc == nil {
		return nil, core.ErrStopped
	}
	return svc.Jobs(filter), nil
}

// Batches lists the most recent batch records.
func (d *Daemon) Batches(limit int) ([]*job.Batch, error) {
	svc := d.svc()
	if svc == nil {
		return nil, core.ErrStopped
	}
	return svc.Batches(limit), nil
}

// QueueList snapshots the pending queue entries in dispatch order.
func (d *Daemon) QueueList() ([]sched.EntryView, error) {
	svc := d.svc()
	if svc == nil {
		return nil, core.ErrStopped
	}
	return svc.QueueList(), nil
}

// CacheStats reports result cache occupancy and lifetime counters.
func (d *Daemon) CacheStats() (cache.Stats, error) {
	svc := d.svc()
	if svc == nil {
		return cache.Stats{}, core.ErrStopped
	}
	return svc.CacheStats(), nil
}

// Events long-polls the event ring starting after the given sequence.
func (d *Daemon) Events(ctx context.Context, since uint64, limit int, wait bool) ([]broadcast.Event, uint64, error) {
	svc := d.svc()
	if svc == nil {
		return nil, since, core.ErrStopped
	}
	return svc.Events(ctx, since, limit, wait)
}

// Subscribe attaches a live event consumer, optionally filtered to one job
// or batch id. The caller must Close the subscription.
func (d *Daemon) Subscribe(target string) (*broadcast.Subscription, error) {
	svc := d.svc()
	if svc == nil {
		return nil, core.ErrStopped
	}
	return svc.Subscribe(target), nil
}

// History queries the persisted terminal-job archive.
func (d *Daemon) History(ctx context.Context, filter archive.HistoryFilter) ([]*archive.Record, error) {
	svc := d.svc()
	if svc == nil {
		return nil, core.ErrStopped
	}
	return svc.History(ctx, filter)
}
