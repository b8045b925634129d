package registry

import (
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/job"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/ocr"
)

var (
	// ErrNotFound marks lookups for unknown job or batch ids.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate rejects creation with an id that already exists.
	ErrDuplicate = errors.New("duplicate id")
	// ErrIllegalTransition rejects status changes the lifecycle does not allow.
	ErrIllegalTransition = errors.New("illegal status transition")
	// ErrNotCancellable reports cancel requests for jobs no longer Queued.
	ErrNotCancellable = errors.New("job not cancellable")
)

const defaultShardCount = 16

type shard struct {
	mu   sync.RWMutex
	jobs map[string]*job.Job
}

// Registry stores job and batch records. All methods are safe for concurrent
// use.
type Registry struct {
	shards []*shard

	batchMu sync.RWMutex
	batches map[string]*job.Batch

	onChange func(*job.Job)
}

// New constructs a registry with the given shard count (0 means the default).
func New(shardCount int) *Registry {
	if shardCount <= 0 {
		shardCount = defaultShardCount
	}
	r := &Registry{
		shards:  make([]*shard, shardCount),
		batches: make(map[string]*job.Batch),
	}
	for i := range r.shards {
		r.shards[i] = &shard{jobs: make(map[string]*job.Job)}
	}
	return r
}

// SetOnChange installs the hook fired after every applied job mutation. Set it
// during wiring, before traffic starts; it is not safe to swap concurrently
// with mutations.
func (r *Registry) SetOnChange(fn func(*job.Job)) {
	r.onChange = fn
}

func (r *Registry) shardFor(id string) *shard {
	h := fnv.New32a()
	h.Write([]byte(id))
	return r.shards[int(h.Sum32())%len(r.shards)]
}

func (r *Registry) notify(snapshot *job.Job) {
	if r.onChange != nil && snapshot != nil {
		r.onChange(snapshot)
	}
}

// CreateJob stores a new record. The job must carry a unique id and start in
// StatusQueued.
func (r *Registry) CreateJob(j *job.Job) error {
	if j == nil || j.ID == "" {
		return errors.New("job id required")
	}
	if j.Status == "" {
		j.Status = job.StatusQueued
	}
	if j.Status != job.StatusQueued {
		return fmt.Errorf("%w: new jobs start queued, got %s", ErrIllegalTransition, j.Status)
	}
	now := time.Now()
	if j.CreatedAt.IsZero() {
		j.CreatedAt = now
	}
	j.UpdatedAt = now

	s := r.shardFor(j.ID)
	s.mu.Lock()
	if _, exists := s.jobs[j.ID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("%w: job %s", ErrDuplicate, j.ID)
	}
	stored := j.Clone()
	s.jobs[j.ID] = stored
	snapshot := stored.Clone()
	s.mu.Unlock()

	r.notify(snapshot)
	return nil
}

// GetJob returns a snapshot of the record.
func (r *Registry) GetJob(id string) (*job.Job, error) {
	s := r.shardFor(id)
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: job %s", ErrNotFound, id)
	}
	return j.Clone(), nil
}

func (r *Registry) mutate(id string, fn func(*job.Job) error) (*job.Job, error) {
	s := r.shardFor(id)
	s.mu.Lock()
	j, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: job %s", ErrNotFound, id)
	}
	if err := fn(j); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	j.UpdatedAt = time.Now()
	snapshot := j.Clone()
	s.mu.Unlock()

	r.notify(snapshot)
	return snapshot, nil
}

// MarkRunning moves a job to Running and bumps its attempt counter. Calling it
// on a job that is already Running records a retry attempt; the transition
// table treats that as a self-transition.
func (r *Registry) MarkRunning(id string) (*job.Job, error) {
	return r.mutate(id, func(j *job.Job) error {
		if !job.CanTransition(j.Status, job.StatusRunning) {
			return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, j.Status, job.StatusRunning)
		}
		if j.Status != job.StatusRunning {
			now := time.Now()
			j.StartedAt = &now
		}
		j.Status = job.StatusRunning
		j.Attempts++
		return nil
	})
}

// SetProgress raises a Running job's progress. Values at or below the current
// high-water mark, or updates for jobs not Running, are ignored without
// error; that keeps late callbacks from discarded attempts harmless. The
// change hook fires only when the value actually moved.
func (r *Registry) SetProgress(id string, percent float64) error {
	s := r.shardFor(id)
	s.mu.Lock()
	j, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: job %s", ErrNotFound, id)
	}
	if j.Status != job.StatusRunning {
		s.mu.Unlock()
		return nil
	}
	if percent > 100 {
		percent = 100
	}
	if percent <= j.Progress {
		s.mu.Unlock()
		return nil
	}
	j.Progress = percent
	j.UpdatedAt = time.Now()
	snapshot := j.Clone()
	s.mu.Unlock()

	r.notify(snapshot)
	return nil
}

// Complete moves a Running job to Completed with its result.
func (r *Registry) Complete(id string, result *ocr.Result, cacheHit bool) (*job.Job, error) {
	return r.mutate(id, func(j *job.Job) error {
		if !job.CanTransition(j.Status, job.StatusCompleted) {
			return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, j.Status, job.StatusCompleted)
		}
		now := time.Now()
		j.Status = job.StatusCompleted
		j.Result = result
		j.CacheHit = j.CacheHit || cacheHit
		j.ErrorMessage = ""
		j.Progress = 100
		j.FinishedAt = &now
		return nil
	})
}

// Fail moves a Running job to Failed with the given error description.
// Progress keeps its high-water mark.
func (r *Registry) Fail(id, message string) (*job.Job, error) {
	return r.mutate(id, func(j *job.Job) error {
		if !job.CanTransition(j.Status, job.StatusFailed) {
			return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, j.Status, job.StatusFailed)
		}
		now := time.Now()
		j.Status = job.StatusFailed
		j.ErrorMessage = message
		j.FinishedAt = &now
		return nil
	})
}

// CancelQueued moves a Queued job to Cancelled. Jobs in any other status
// return ErrNotCancellable; the caller decides whether suppression applies.
func (r *Registry) CancelQueued(id string) (*job.Job, error) {
	return r.mutate(id, func(j *job.Job) error {
		if j.Status != job.StatusQueued {
			return fmt.Errorf("%w: status %s", ErrNotCancellable, j.Status)
		}
		now := time.Now()
		j.Status = job.StatusCancelled
		j.FinishedAt = &now
		return nil
	})
}

// SuppressResult marks a Running job so status reads withhold its payload.
// The execution itself continues and its result still feeds the cache.
func (r *Registry) SuppressResult(id string) error {
	_, err := r.mutate(id, func(j *job.Job) error {
		if j.Status != job.StatusRunning {
			return fmt.Errorf("%w: status %s", ErrNotCancellable, j.Status)
		}
		j.ResultSuppressed = true
		return nil
	})
	return err
}

// MarkCounted flips the job's batch-accounting flag, reporting whether this
// call was the first to do so. The batch coordinator relies on it to count
// each terminal outcome exactly once.
func (r *Registry) MarkCounted(id string) (bool, error) {
	s := r.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return false, fmt.Errorf("%w: job %s", ErrNotFound, id)
	}
	if j.BatchCounted {
		return false, nil
	}
	j.BatchCounted = true
	return true, nil
}

// ListFilter narrows ListJobs output. Zero values mean "any".
type ListFilter struct {
	Statuses []job.Status
	BatchID  string
	Limit    int
}

// ListJobs returns snapshots matching the filter, newest first.
func (r *Registry) ListJobs(filter ListFilter) []*job.Job {
	var statusSet map[job.Status]struct{}
	if len(filter.Statuses) > 0 {
		statusSet = make(map[job.Status]struct{}, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statusSet[s] = struct{}{}
		}
	}

	var out []*job.Job
	for _, s := range r.shards {
		s.mu.RLock()
		for _, j := range s.jobs {
			if statusSet != nil {
				if _, ok := statusSet[j.Status]; !ok {
					continue
				}
			}
			if filter.BatchID != "" && j.BatchID != filter.BatchID {
				continue
			}
			out = append(out, j.Clone())
		}
		s.mu.RUnlock()
	}

	sort.Slice(out, func(a, b int) bool {
		return out[a].CreatedAt.After(out[b].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out
}

// Counts tallies jobs per status across all shards.
func (r *Registry) Counts() map[job.Status]int {
	counts := make(map[job.Status]int, len(job.AllStatuses()))
	for _, s := range r.shards {
		s.mu.RLock()
		for _, j := range s.jobs {
			counts[j.Status]++
		}
		s.mu.RUnlock()
	}
	return counts
}

// PurgeTerminal drops terminal jobs whose FinishedAt is older than the
// retention window. It returns how many records were removed.
func (r *Registry) PurgeTerminal(retention time.Duration) int {
	cutoff := time.Now().Add(-retention)
	purged := 0
	for _, s := range r.shards {
		s.mu.Lock()
		for id, j := range s.jobs {
			if !j.Status.IsTerminal() {
				continue
			}
			if j.FinishedAt != nil && j.FinishedAt.Before(cutoff) {
				delete(s.jobs, id)
				purged++
			}
		}
		s.mu.Unlock()
	}
	return purged
}
