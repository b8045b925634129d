package registry

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/job"
)

// CreateBatch stores a new batch record.
func (r *Registry) CreateBatch(b *job.Batch) error {
	if b == nil || b.ID == "" {
		return errors.New("batch id required")
	}
	now := time.Now()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now

	r.batchMu.Lock()
	defer r.batchMu.Unlock()
	if _, exists := r.batches[b.ID]; exists {
		return fmt.Errorf("%w: batch %s", ErrDuplicate, b.ID)
	}
	r.batches[b.ID] = b.Clone()
	return nil
}

// GetBatch returns a snapshot of the batch record.
func (r *Registry) GetBatch(id string) (*job.Batch, error) {
	r.batchMu.RLock()
	defer r.batchMu.RUnlock()
	b, ok := r.batches[id]
	if !ok {
		return nil, fmt.Errorf("%w: batch %s", ErrNotFound, id)
	}
	return b.Clone(), nil
}

// UpdateBatch applies fn to the stored record under the batch lock and
// returns the updated snapshot.
func (r *Registry) UpdateBatch(id string, fn func(*job.Batch)) (*job.Batch, error) {
	r.batchMu.Lock()
	defer r.batchMu.Unlock()
	b, ok := r.batches[id]
	if !ok {
		return nil, fmt.Errorf("%w: batch %s", ErrNotFound, id)
	}
	fn(b)
	b.UpdatedAt = time.Now()
	return b.Clone(), nil
}

// ListBatches returns snapshots of all batches, newest first.
func (r *Registry) ListBatches(limit int) []*job.Batch {
	r.batchMu.RLock()
	out := make([]*job.Batch, 0, len(r.batches))
	for _, b := range r.batches {
		out = append(out, b.Clone())
	}
	r.batchMu.RUnlock()

	sort.Slice(out, func(a, b int) bool {
		return out[a].CreatedAt.After(out[b].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// PurgeBatches drops batches that are done and older than the retention
// window.
func (r *Registry) PurgeBatches(retention time.Duration) int {
	cutoff := time.Now().Add(-retention)
	r.batchMu.Lock()
	defer r.batchMu.Unlock()
	purged := 0
	for id, b := range r.batches {
		if b.Done && b.UpdatedAt.Before(cutoff) {
			delete(r.batches, id)
			purged++
		}
	}
	return purged
}
