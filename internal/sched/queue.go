package sched

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/job"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/metrics"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/ocr"
)

var (
	// ErrQueueFull rejects admissions once the live depth hits the ceiling.
	ErrQueueFull = errors.New("queue full")
	// ErrClosed is returned once the queue has shut down.
	ErrClosed = errors.New("queue closed")
)

// Entry is the unit of scheduled work. It carries the content bytes so the
// registry never has to hold payloads for queued jobs.
type Entry struct {
	JobID       string
	Fingerprint string
	Mode        ocr.Mode
	Priority    job.Priority
	Content     []byte
	Languages   []string
	Attempt     int
	EnqueuedAt  time.Time
}

// EntryView is a read-only snapshot row for queue listings.
type EntryView struct {
	JobID      string
	Priority   job.Priority
	Attempt    int
	EnqueuedAt time.Time
}

type holder struct {
	entry     *Entry
	cancelled bool
}

type fifo struct {
	items []*holder
	head  int
}

func (f *fifo) push(h *holder) {
	f.items = append(f.items, h)
}

func (f *fifo) pop() *holder {
	if f.head >= len(f.items) {
		return nil
	}
	h := f.items[f.head]
	f.items[f.head] = nil
	f.head++
	if f.head > 64 && f.head*2 >= len(f.items) {
		f.items = append(f.items[:0], f.items[f.head:]...)
		f.head = 0
	}
	return h
}

func (f *fifo) peek() *holder {
	if f.head >= len(f.items) {
		return nil
	}
	return f.items[f.head]
}

// Queue is the three-level priority queue. All methods are safe for
// concurrent use.
type Queue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	maxDepth int
	levels   [3]fifo
	index    map[string]*holder
	live     [3]int
	closed   bool
}

// NewQueue constructs a queue that admits at most maxDepth live entries.
func NewQueue(maxDepth int) *Queue {
	if maxDepth <= 0 {
		maxDepth = 1024
	}
	q := &Queue{
		maxDepth: maxDepth,
		index:    make(map[string]*holder),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue admits a new entry, rejecting with ErrQueueFull at the depth
// ceiling.
func (q *Queue) Enqueue(e *Entry) error {
	return q.add(e, true)
}

// Requeue re-adds an entry for a retry attempt. The depth ceiling does not
// apply: the job was admitted once and must not be lost to backpressure.
func (q *Queue) Requeue(e *Entry) error {
	return q.add(e, false)
}

func (q *Queue) add(e *Entry, enforceDepth bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	if enforceDepth && q.depthLocked() >= q.maxDepth {
		return ErrQueueFull
	}
	if _, exists := q.index[e.JobID]; exists {
		return errors.New("job already queued")
	}
	if e.EnqueuedAt.IsZero() {
		e.EnqueuedAt = time.Now()
	}
	h := &holder{entry: e}
	rank := e.Priority.Rank()
	q.levels[rank].push(h)
	q.index[e.JobID] = h
	q.live[rank]++
	q.publishDepthLocked()
	q.cond.Broadcast()
	return nil
}

// Dequeue blocks until an entry is available, the context ends, or the queue
// closes. Entries drain most-urgent level first, FIFO within a level.
func (q *Queue) Dequeue(ctx context.Context) (*Entry, error) {
	cancelWait := make(chan struct{})
	if ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				q.cond.Broadcast()
			case <-cancelWait:
			}
		}()
	}
	defer close(cancelWait)

	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if ctx != nil {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if q.closed {
			return nil, ErrClosed
		}
		if h := q.popLocked(); h != nil {
			return h.entry, nil
		}
		q.cond.Wait()
	}
}

func (q *Queue) popLocked() *holder {
	for rank := 0; rank < len(q.levels); rank++ {
		for {
			h := q.levels[rank].pop()
			if h == nil {
				break
			}
			if h.cancelled {
				continue
			}
			delete(q.index, h.entry.JobID)
			q.live[rank]--
			q.publishDepthLocked()
			return h
		}
	}
	return nil
}

// Cancel tombstones a queued entry. It reports whether the entry was present
// and live; a false return means the job was never queued or already left the
// queue.
func (q *Queue) Cancel(jobID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	h, ok := q.index[jobID]
	if !ok || h.cancelled {
		return false
	}
	h.cancelled = true
	delete(q.index, jobID)
	q.live[h.entry.Priority.Rank()]--
	q.publishDepthLocked()
	return true
}

// SweepAging promotes entries that have waited longer than threshold one
// priority level, resetting their wait clock. It returns the promoted job ids
// so callers can log or notify.
func (q *Queue) SweepAging(threshold time.Duration) []string {
	now := time.Now()
	var promoted []string

	q.mu.Lock()
	defer q.mu.Unlock()
	// High (rank 0) cannot be promoted further; walk normal and low.
	for rank := 1; rank < len(q.levels); rank++ {
		for {
			h := q.levels[rank].peek()
			if h == nil {
				break
			}
			if h.cancelled {
				q.levels[rank].pop()
				continue
			}
			// FIFO order means the head is the oldest live entry; once it is
			// young enough the rest of the level is too.
			if now.Sub(h.entry.EnqueuedAt) < threshold {
				break
			}
			q.levels[rank].pop()
			h.entry.Priority = h.entry.Priority.Promote()
			h.entry.EnqueuedAt = now
			q.levels[rank-1].push(h)
			q.live[rank]--
			q.live[rank-1]++
			promoted = append(promoted, h.entry.JobID)
		}
	}
	if len(promoted) > 0 {
		q.publishDepthLocked()
		q.cond.Broadcast()
	}
	return promoted
}

// Depth reports the number of live entries across all levels.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.depthLocked()
}

// Depths reports live entries per priority level.
func (q *Queue) Depths() map[job.Priority]int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return map[job.Priority]int{
		job.PriorityHigh:   q.live[0],
		job.PriorityNormal: q.live[1],
		job.PriorityLow:    q.live[2],
	}
}

// Snapshot lists live entries in drain order.
func (q *Queue) Snapshot() []EntryView {
	q.mu.Lock()
	defer q.mu.Unlock()
	views := make([]EntryView, 0, q.depthLocked())
	for rank := 0; rank < len(q.levels); rank++ {
		level := &q.levels[rank]
		for i := level.head; i < len(level.items); i++ {
			h := level.items[i]
			if h == nil || h.cancelled {
				continue
			}
			views = append(views, EntryView{
				JobID:      h.entry.JobID,
				Priority:   h.entry.Priority,
				Attempt:    h.entry.Attempt,
				EnqueuedAt: h.entry.EnqueuedAt,
			})
		}
	}
	return views
}

// Close shuts the queue down. Blocked Dequeue calls return ErrClosed; entries
// still queued are abandoned to the caller's shutdown handling.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
}

func (q *Queue) depthLocked() int {
	return q.live[0] + q.live[1] + q.live[2]
}

func (q *Queue) publishDepthLocked() {
	metrics.QueueDepth.WithLabelValues(string(job.PriorityHigh)).Set(float64(q.live[0]))
	metrics.QueueDepth.WithLabelValues(string(job.PriorityNormal)).Set(float64(q.live[1]))
	metrics.QueueDepth.WithLabelValues(string(job.PriorityLow)).Set(float64(q.live[2]))
}
