package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/cache"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/config"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/job"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/logging"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/metrics"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/ocr"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/registry"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/sched"
)

// errEnginePanic marks recovered panics so classification can rule out a
// retry: a panicking engine is assumed to fail the same content again.
var errEnginePanic = errors.New("engine panic")

// WorkerStatus is a point-in-time view of one worker.
type WorkerStatus struct {
	ID    int    `json:"id"`
	Busy  bool   `json:"busy"`
	JobID string `json:"job_id,omitempty"`
}

type workerState struct {
	busy  bool
	jobID string
}

// Pool drains the queue with a fixed number of workers.
type Pool struct {
	workers config.Workers
	engine  ocr.Engine

	queue    *sched.Queue
	cache    *cache.Cache
	registry *registry.Registry
	logger   *slog.Logger

	mu      sync.Mutex
	states  []workerState
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// New constructs a pool. Start must be called before it does any work.
func New(cfg *config.Config, engine ocr.Engine, q *sched.Queue, c *cache.Cache, reg *registry.Registry, logger *slog.Logger) *Pool {
	return &Pool{
		workers:  cfg.Workers,
		engine:   engine,
		queue:    q,
		cache:    c,
		registry: reg,
		logger:   logging.NewComponentLogger(logger, "pool"),
		states:   make([]workerState, cfg.Workers.Count),
	}
}

// Start launches the worker goroutines.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return errors.New("pool already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true
	for i := 0; i < p.workers.Count; i++ {
		p.wg.Add(1)
		go p.worker(runCtx, i)
	}
	p.logger.Info("worker pool started", logging.Int("workers", p.workers.Count))
	return nil
}

// Stop cancels the workers and waits for in-flight executions to wind down.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel := p.cancel
	p.mu.Unlock()

	cancel()
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

// Workers reports each worker's current assignment.
func (p *Pool) Workers() []WorkerStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]WorkerStatus, len(p.states))
	for i, s := range p.states {
		out[i] = WorkerStatus{ID: i, Busy: s.busy, JobID: s.jobID}
	}
	return out
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	logger := p.logger.With(logging.Int(logging.FieldWorkerID, id))
	for {
		entry, err := p.queue.Dequeue(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) && !errors.Is(err, sched.ErrClosed) {
				logger.Error("dequeue failed", logging.Error(err))
			}
			return
		}
		p.execute(ctx, id, logger, entry)
	}
}

// execute runs one job to a terminal decision. The engine call happens in a
// child goroutine so the worker can abandon it at the wall-clock budget; the
// worker itself holds no locks while the engine runs.
func (p *Pool) execute(ctx context.Context, id int, logger *slog.Logger, entry *sched.Entry) {
	p.setState(id, true, entry.JobID)
	defer p.setState(id, false, "")
	metrics.WorkersBusy.Inc()
	defer metrics.WorkersBusy.Dec()

	logger = logger.With(
		logging.String(logging.FieldJobID, entry.JobID),
		logging.String(logging.FieldMode, string(entry.Mode)))

	j, err := p.registry.MarkRunning(entry.JobID)
	if err != nil {
		// The job left the registry or was cancelled between dequeue and
		// claim. Resolve the flight so attached waiters are not stranded.
		logger.Warn("dequeued job not runnable", logging.Error(err))
		p.abortFlight(logger, entry, "primary no longer runnable")
		return
	}
	logger.Info("job started", logging.Int(logging.FieldAttempt, j.Attempts))

	sampler := logging.NewProgressSampler(0)
	progress := func(percent float64) {
		_ = p.registry.SetProgress(entry.JobID, percent)
		if sampler.ShouldLog(percent, string(job.StatusRunning)) {
			logger.Debug("progress", logging.Float64("percent", percent))
		}
	}

	execCtx, cancelExec := context.WithCancel(ctx)
	defer cancelExec()

	type outcome struct {
		result ocr.Result
		err    error
	}
	resCh := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				resCh <- outcome{err: fmt.Errorf("%w: %v", errEnginePanic, r)}
			}
		}()
		start := time.Now()
		result, rerr := p.engine.Recognize(execCtx, ocr.Request{
			Content:   entry.Content,
			Mode:      entry.Mode,
			Languages: entry.Languages,
			Progress:  progress,
		})
		metrics.RecognizeDuration.WithLabelValues(p.engine.Name()).Observe(time.Since(start).Seconds())
		resCh <- outcome{result: result, err: rerr}
	}()

	timer := time.NewTimer(p.workers.JobTimeout())
	defer timer.Stop()

	select {
	case out := <-resCh:
		if out.err != nil {
			p.handleFailure(logger, entry, j, out.err)
			return
		}
		p.complete(logger, entry, j, out.result)
	case <-timer.C:
		// Free the worker now; the engine goroutine keeps running until the
		// cancel lands and its eventual result has nowhere to go.
		cancelExec()
		logger.Warn("job timed out", logging.Duration("budget", p.workers.JobTimeout()))
		p.failTerminal(logger, entry, fmt.Sprintf("timeout after %s", p.workers.JobTimeout()))
	}
}

func (p *Pool) complete(logger *slog.Logger, entry *sched.Entry, j *job.Job, result ocr.Result) {
	members, live := p.cache.Commit(entry.Fingerprint, &result)
	done, err := p.registry.Complete(entry.JobID, &result, false)
	if err != nil {
		logger.Error("completion rejected", logging.Error(err))
		return
	}
	metrics.JobsFinished.WithLabelValues(string(job.StatusCompleted)).Inc()
	if done.StartedAt != nil {
		metrics.JobDuration.WithLabelValues(string(entry.Mode)).Observe(time.Since(*done.StartedAt).Seconds())
	}
	logger.Info("job completed",
		logging.Int("text_bytes", len(result.PlainText)),
		logging.Float64("confidence", result.Confidence))

	if live {
		for _, waiter := range members.Waiters {
			p.resolveWaiter(logger, waiter, &result)
		}
	}
}

// resolveWaiter completes a job that shared this execution. Waiters that
// were cancelled while waiting fail the transition and keep their state.
func (p *Pool) resolveWaiter(logger *slog.Logger, waiterID string, result *ocr.Result) {
	if _, err := p.registry.MarkRunning(waiterID); err != nil {
		logger.Debug("waiter not runnable", logging.String(logging.FieldJobID, waiterID), logging.Error(err))
		return
	}
	if _, err := p.registry.Complete(waiterID, result, true); err != nil {
		logger.Warn("waiter completion rejected", logging.String(logging.FieldJobID, waiterID), logging.Error(err))
		return
	}
	metrics.JobsFinished.WithLabelValues(string(job.StatusCompleted)).Inc()
}

func (p *Pool) handleFailure(logger *slog.Logger, entry *sched.Entry, j *job.Job, execErr error) {
	if errors.Is(execErr, errEnginePanic) {
		logger.Error("engine panicked", logging.Error(execErr))
		p.failTerminal(logger, entry, execErr.Error())
		return
	}
	if errors.Is(execErr, context.Canceled) {
		// Pool shutdown interrupted the execution; the queue is closing, so
		// a retry has nowhere to go.
		p.failTerminal(logger, entry, "interrupted by shutdown")
		return
	}

	if ocr.Retryable(execErr) && j.Attempts < p.workers.MaxAttempts {
		backoff := p.backoffFor(j.Attempts)
		logger.Warn("job failed, retry scheduled",
			logging.Int(logging.FieldAttempt, j.Attempts),
			logging.Duration("backoff", backoff),
			logging.Error(execErr))
		metrics.RetriesScheduled.Inc()
		retry := *entry
		retry.Attempt = j.Attempts
		time.AfterFunc(backoff, func() {
			if err := p.queue.Requeue(&retry); err != nil {
				p.failTerminal(logger, &retry, fmt.Sprintf("retry abandoned: %v", err))
			}
		})
		// The flight stays open: waiters ride along into the retry.
		return
	}

	logger.Error("job failed", logging.Int(logging.FieldAttempt, j.Attempts), logging.Error(execErr))
	p.failTerminal(logger, entry, execErr.Error())
}

// failTerminal records a terminal failure and fails everything attached to
// the same flight.
func (p *Pool) failTerminal(logger *slog.Logger, entry *sched.Entry, message string) {
	if _, err := p.registry.Fail(entry.JobID, message); err != nil {
		logger.Warn("failure not recorded", logging.Error(err))
	} else {
		metrics.JobsFinished.WithLabelValues(string(job.StatusFailed)).Inc()
	}
	p.abortFlight(logger, entry, message)
}

func (p *Pool) abortFlight(logger *slog.Logger, entry *sched.Entry, message string) {
	members, ok := p.cache.Abort(entry.Fingerprint)
	if !ok {
		return
	}
	for _, waiterID := range members.Waiters {
		if _, err := p.registry.MarkRunning(waiterID); err != nil {
			continue
		}
		if _, err := p.registry.Fail(waiterID, message); err == nil {
			metrics.JobsFinished.WithLabelValues(string(job.StatusFailed)).Inc()
		}
	}
}

func (p *Pool) backoffFor(attempt int) time.Duration {
	base := p.workers.RetryBackoff()
	ceiling := p.workers.RetryBackoffMax()
	if attempt < 1 {
		attempt = 1
	}
	backoff := base
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff >= ceiling {
			return ceiling
		}
	}
	if backoff > ceiling {
		return ceiling
	}
	return backoff
}

func (p *Pool) setState(id int, busy bool, jobID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if id >= 0 && id < len(p.states) {
		p.states[id] = workerState{busy: busy, jobID: jobID}
	}
}
