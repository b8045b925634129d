package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/archive"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/batch"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/broadcast"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/cache"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/config"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/intake"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/job"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/logging"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/ocr"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/pool"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/registry"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/sched"
)

var (
	// ErrStopped rejects operations that need a running service.
	ErrStopped = errors.New("service not running")
	// ErrHistoryDisabled is returned by history queries when the archive is
	// turned off in configuration.
	ErrHistoryDisabled = errors.New("history persistence disabled")
)

// Service owns the full job-processing engine. All exported methods are safe
// for concurrent use.
type Service struct {
	cfg    *config.Config
	logger *slog.Logger
	engine ocr.Engine

	registry *registry.Registry
	queue    *sched.Queue
	cache    *cache.Cache
	hub      *broadcast.Hub
	gateway  *intake.Gateway
	pool     *pool.Pool
	batches  *batch.Coordinator

	// history and writer are nil when the archive is disabled.
	history *archive.Store
	writer  *archive.Writer

	mu        sync.Mutex
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startedAt time.Time
}

// New constructs and wires a service. The archive store is opened here when
// enabled so a bad history path fails construction rather than first use.
func New(cfg *config.Config, engine ocr.Engine, logger *slog.Logger) (*Service, error) {
	if engine == nil {
		return nil, errors.New("recognition engine required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	reg := registry.New(0)
	q := sched.NewQueue(cfg.Queue.MaxDepth)
	c := cache.New(cfg.Cache.MaxEntries, cfg.Cache.MaxBytes())
	hub := broadcast.New(cfg.Broadcast.RingCapacity, cfg.Broadcast.SubscriberBuffer)

	s := &Service{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "core"),
		engine:   engine,
		registry: reg,
		queue:    q,
		cache:    c,
		hub:      hub,
		gateway:  intake.New(cfg, reg, c, q, logger),
		pool:     pool.New(cfg, engine, q, c, reg, logger),
		batches:  batch.New(reg, hub, logger),
	}

	if cfg.Archive.Enabled {
		store, err := archive.Open(cfg)
		if err != nil {
			return nil, fmt.Errorf("open history archive: %w", err)
		}
		s.history = store
		s.writer = archive.NewWriter(store, logger, 0)
	}

	// The hook must be in place before any traffic reaches the registry.
	reg.SetOnChange(s.onJobChange)
	return s, nil
}

// onJobChange fans one registry mutation out: every change becomes a job
// event, and terminal changes additionally feed the batch counters and the
// history writer. The registry invokes it with a private snapshot outside
// its shard locks.
func (s *Service) onJobChange(j *job.Job) {
	if j == nil {
		return
	}
	s.hub.Publish(broadcast.Event{
		Kind:    broadcast.KindJob,
		Target:  j.ID,
		Status:  string(j.Status),
		Percent: j.Progress,
		Message: j.ErrorMessage,
	})
	if j.Status.IsTerminal() {
		s.batches.JobTerminal(j)
		if s.writer != nil {
			s.writer.Enqueue(j)
		}
	}
}

// Engine reports the configured recognition engine's name.
func (s *Service) Engine() string {
	return s.engine.Name()
}

func (s *Service) isRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
