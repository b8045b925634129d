package core

import (
	"context"
	"fmt"

	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/archive"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/broadcast"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/cache"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/intake"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/job"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/logging"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/pool"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/registry"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/sched"
)

// BatchView pairs a batch record with its member job snapshots.
type BatchView struct {
	Batch *job.Batch
	Jobs  []*job.Job
}

// Submit admits one job. The returned snapshot may already be terminal when
// the content was a cache hit.
func (s *Service) Submit(sub intake.Submission) (*job.Job, error) {
	if !s.isRunning() {
		return nil, ErrStopped
	}
	return s.gateway.Submit(sub)
}

// SubmitBatch admits a group of jobs atomically.
func (s *Service) SubmitBatch(req intake.BatchRequest) (*intake.BatchReceipt, error) {
	if !s.isRunning() {
		return nil, ErrStopped
	}
	return s.gateway.SubmitBatch(req)
}

// Cancel stops a job. A queued job is cancelled outright; if it led a shared
// execution the first waiter inherits the flight and re-enters the queue. A
// running job keeps executing so its result can still feed the cache, but
// the requester's view of the result is suppressed. Terminal jobs are not
// cancellable.
func (s *Service) Cancel(id string) (*job.Job, error) {
	if !s.isRunning() {
		return nil, ErrStopped
	}
	j, err := s.registry.GetJob(id)
	if err != nil {
		return nil, err
	}
	if j.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: job %s already %s", registry.ErrNotCancellable, id, j.Status)
	}

	if s.queue.Cancel(id) {
		cancelled, err := s.registry.CancelQueued(id)
		if err != nil {
			return nil, err
		}
		if promo, ok := s.cache.PromoteOrDrop(j.Fingerprint, id); ok && promo != nil {
			if err := s.gateway.Repromote(promo); err != nil {
				s.logger.Warn("waiter repromotion failed",
					logging.String(logging.FieldJobID, promo.JobID),
					logging.Error(err))
			}
		}
		s.logger.Info("job cancelled", logging.String(logging.FieldJobID, id))
		return cancelled, nil
	}

	// The entry already left the queue. Usually the job is running and the
	// suppression applies; in the narrow window where a worker holds the
	// entry but has not marked it running yet, SuppressResult reports not
	// cancellable and the caller may retry.
	if err := s.registry.SuppressResult(id); err != nil {
		return nil, err
	}
	s.logger.Info("job result suppressed", logging.String(logging.FieldJobID, id))
	return s.registry.GetJob(id)
}

// JobStatus returns a job snapshot. Suppressed results are withheld.
func (s *Service) JobStatus(id string) (*job.Job, error) {
	j, err := s.registry.GetJob(id)
	if err != nil {
		return nil, err
	}
	redactSuppressed(j)
	return j, nil
}

// BatchStatus returns a batch record together with its member jobs.
func (s *Service) BatchStatus(id string) (*BatchView, error) {
	b, err := s.registry.GetBatch(id)
	if err != nil {
		return nil, err
	}
	jobs := s.registry.ListJobs(registry.ListFilter{BatchID: id})
	for _, j := range jobs {
		redactSuppressed(j)
	}
	return &BatchView{Batch: b, Jobs: jobs}, nil
}

// Jobs lists job snapshots matching the filter.
func (s *Service) Jobs(filter registry.ListFilter) []*job.Job {
	jobs := s.registry.ListJobs(filter)
	for _, j := range jobs {
		redactSuppressed(j)
	}
	return jobs
}

// Batches lists the most recent batch records.
func (s *Service) Batches(limit int) []*job.Batch {
	return s.registry.ListBatches(limit)
}

// QueueList snapshots the pending queue entries in dispatch order.
func (s *Service) QueueList() []sched.EntryView {
	return s.queue.Snapshot()
}

// CacheStats reports result cache occupancy and lifetime counters.
func (s *Service) CacheStats() cache.Stats {
	return s.cache.Stats()
}

// Events long-polls the event ring: it returns events after the given
// sequence, waiting for new ones when wait is set and none are buffered.
func (s *Service) Events(ctx context.Context, since uint64, limit int, wait bool) ([]broadcast.Event, uint64, error) {
	return s.hub.Fetch(ctx, since, limit, wait)
}

// Subscribe attaches a live event consumer, optionally filtered to one
// job or batch id. The caller must Close the subscription.
func (s *Service) Subscribe(target string) *broadcast.Subscription {
	return s.hub.Subscribe(target)
}

// History queries the persisted terminal-job archive.
func (s *Service) History(ctx context.Context, filter archive.HistoryFilter) ([]*archive.Record, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	return s.history.History(ctx, filter)
}

// Counts reports the number of registry jobs per status.
func (s *Service) Counts() map[job.Status]int {
	return s.registry.Counts()
}

// Depths reports pending queue entries per priority.
func (s *Service) Depths() map[job.Priority]int {
	return s.queue.Depths()
}

// WorkerStatuses reports each worker's current assignment.
func (s *Service) WorkerStatuses() []pool.WorkerStatus {
	return s.pool.Workers()
}

// redactSuppressed drops the payload from snapshots of jobs whose result was
// suppressed by a late cancel. Snapshots are private copies, so clearing the
// pointer never touches the stored record.
func redactSuppressed(j *job.Job) {
	if j != nil && j.ResultSuppressed {
		j.Result = nil
	}
}
