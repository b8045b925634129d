package core

import (
	"time"

	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/cache"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/job"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/pool"
)

// Status is a point-in-time snapshot of the service for status surfaces.
type Status struct {
	Running     bool
	Engine      string
	StartedAt   time.Time
	JobCounts   map[job.Status]int
	QueueDepth  int
	QueueDepths map[job.Priority]int
	Cache       cache.Stats
	Workers     []pool.WorkerStatus
	Subscribers int
}

// Status gathers the current snapshot. It is safe to call whether or not
// the service is running.
func (s *Service) Status() Status {
	s.mu.Lock()
	running := s.running
	startedAt := s.startedAt
	s.mu.Unlock()

	return Status{
		Running:     running,
		Engine:      s.engine.Name(),
		StartedAt:   startedAt,
		JobCounts:   s.registry.Counts(),
		QueueDepth:  s.queue.Depth(),
		QueueDepths: s.queue.Depths(),
		Cache:       s.cache.Stats(),
		Workers:     s.pool.Workers(),
		Subscribers: s.hub.Subscribers(),
	}
}
