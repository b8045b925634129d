// Package batch aggregates per-job terminal outcomes into batch records.
//
// The coordinator is driven by registry change notifications. Each job's
// outcome is counted against its owning batch at most once, enforced by the
// registry's one-shot counted flag, so duplicate notifications can never
// double-count. A batch becomes done exactly once, when every member job
// has reached a terminal status.
package batch

import (
	"fmt"
	"log/slog"

	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/broadcast"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/job"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/logging"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/metrics"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/registry"
)

// Coordinator folds terminal job outcomes into batch counters and publishes
// aggregate progress.
type Coordinator struct {
	registry *registry.Registry
	hub      *broadcast.Hub
	logger   *slog.Logger
}

// New constructs a coordinator. The hub may be nil in tests that only care
// about counters.
func New(reg *registry.Registry, hub *broadcast.Hub, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		registry: reg,
		hub:      hub,
		logger:   logging.NewComponentLogger(logger, "batch"),
	}
}

// JobTerminal records one job's terminal outcome against its owning batch.
// It is safe to call with any job snapshot: non-batch jobs, non-terminal
// states, and already-counted jobs are ignored. Completed jobs increment the
// completed counter; failed and cancelled jobs increment the failed counter.
func (c *Coordinator) JobTerminal(j *job.Job) {
	if j == nil || j.BatchID == "" || !j.Status.IsTerminal() {
		return
	}

	counted, err := c.registry.MarkCounted(j.ID)
	if err != nil {
		c.logger.Warn("batch count skipped, job missing",
			logging.String(logging.FieldJobID, j.ID),
			logging.String(logging.FieldBatchID, j.BatchID),
			logging.Error(err))
		return
	}
	if !counted {
		return
	}

	var becameDone bool
	updated, err := c.registry.UpdateBatch(j.BatchID, func(b *job.Batch) {
		if j.Status == job.StatusCompleted {
			b.Completed++
		} else {
			b.Failed++
		}
		if !b.Done && b.Completed+b.Failed >= b.Total {
			b.Done = true
			becameDone = true
		}
	})
	if err != nil {
		c.logger.Warn("batch update failed",
			logging.String(logging.FieldJobID, j.ID),
			logging.String(logging.FieldBatchID, j.BatchID),
			logging.Error(err))
		return
	}

	c.publish(updated, becameDone)
	if becameDone {
		metrics.BatchesCompleted.Inc()
		c.logger.Info("batch complete",
			logging.String(logging.FieldBatchID, updated.ID),
			logging.Int("total", updated.Total),
			logging.Int("completed", updated.Completed),
			logging.Int("failed", updated.Failed))
	}
}

func (c *Coordinator) publish(b *job.Batch, done bool) {
	if c.hub == nil || b == nil {
		return
	}
	evt := broadcast.Event{
		Kind:    broadcast.KindBatch,
		Target:  b.ID,
		Status:  "processing",
		Percent: b.ProgressPercent(),
	}
	if done {
		evt.Status = "completed"
		evt.Message = fmt.Sprintf("%d completed, %d failed", b.Completed, b.Failed)
	}
	c.hub.Publish(evt)
}
