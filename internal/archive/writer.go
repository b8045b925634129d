package archive

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/job"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/logging"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/metrics"
)

const defaultWriterBuffer = 256

// Writer appends terminal snapshots to the store off the notification path.
// Registry change callbacks must never block on disk, so Enqueue is
// non-blocking and sheds under sustained backpressure.
type Writer struct {
	store  *Store
	logger *slog.Logger

	mu     sync.Mutex
	ch     chan *job.Job
	wg     sync.WaitGroup
	closed bool
}

// NewWriter constructs a writer with the given buffer size (0 uses the default).
func NewWriter(store *Store, logger *slog.Logger, buffer int) *Writer {
	if buffer <= 0 {
		buffer = defaultWriterBuffer
	}
	return &Writer{
		store:  store,
		logger: logging.NewComponentLogger(logger, "archive"),
		ch:     make(chan *job.Job, buffer),
	}
}

// Start launches the drain goroutine.
func (w *Writer) Start() {
	w.wg.Add(1)
	go w.drain()
}

// Enqueue hands a terminal snapshot to the writer. Snapshots are dropped when
// the buffer is full or the writer has stopped.
func (w *Writer) Enqueue(j *job.Job) {
	if j == nil || !j.Status.IsTerminal() {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	select {
	case w.ch <- j:
	default:
		metrics.ArchiveDropped.Inc()
		w.logger.Warn("archive buffer full, snapshot dropped",
			logging.String(logging.FieldJobID, j.ID))
	}
}

// Stop flushes buffered snapshots and waits for the drain goroutine to exit.
func (w *Writer) Stop() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.ch)
	w.mu.Unlock()

	w.wg.Wait()
}

func (w *Writer) drain() {
	defer w.wg.Done()
	for j := range w.ch {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := w.store.Append(ctx, j)
		cancel()
		if err != nil {
			w.logger.Warn("archive append failed",
				logging.String(logging.FieldJobID, j.ID),
				logging.Error(err))
		}
	}
}
