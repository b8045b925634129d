package core

import (
	"context"
	"errors"
	"time"

	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/logging"
)

// archivePruneInterval is the cadence of the history retention sweep. Prune
// work is cheap and retention is measured in days, so an hourly pass is
// plenty.
const archivePruneInterval = time.Hour

// Start launches the worker pool, the history writer, and the janitor
// loops. It returns an error if the service is already running.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("service already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	if s.writer != nil {
		s.writer.Start()
	}
	if err := s.pool.Start(runCtx); err != nil {
		cancel()
		s.mu.Lock()
		s.running = false
		s.cancel = nil
		s.mu.Unlock()
		return err
	}

	s.wg.Add(2)
	go s.purgeLoop(runCtx)
	go s.agingLoop(runCtx)
	if s.history != nil {
		s.wg.Add(1)
		go s.pruneLoop(runCtx)
	}

	s.logger.Info("service started",
		logging.String(logging.FieldEngine, s.engine.Name()),
		logging.Int("workers", s.cfg.Workers.Count),
		logging.Bool("history", s.history != nil))
	return nil
}

// Stop shuts the service down and waits for in-flight work to wind down.
// The queue closes first so blocked workers wake, the pool drains its
// executions, then the writer flushes whatever those final completions
// produced before the hub and the archive close behind it.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	s.queue.Close()
	s.pool.Stop()
	s.wg.Wait()
	if s.writer != nil {
		s.writer.Stop()
	}
	s.hub.Close()
	if s.history != nil {
		if err := s.history.Close(); err != nil {
			s.logger.Warn("history close failed", logging.Error(err))
		}
	}
	s.logger.Info("service stopped")
}

func (s *Service) purgeLoop(ctx context.Context) {
	defer s.wg.Done()
	interval := s.cfg.Registry.PurgeInterval()
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			retention := s.cfg.Registry.Retention()
			jobs := s.registry.PurgeTerminal(retention)
			batches := s.registry.PurgeBatches(retention)
			if jobs > 0 || batches > 0 {
				s.logger.Debug("registry purged",
					logging.Int("jobs", jobs),
					logging.Int("batches", batches))
			}
		}
	}
}

func (s *Service) agingLoop(ctx context.Context) {
	defer s.wg.Done()
	interval := s.cfg.Queue.AgingSweepInterval()
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			promoted := s.queue.SweepAging(s.cfg.Queue.AgingThreshold())
			if len(promoted) > 0 {
				s.logger.Debug("aged entries promoted",
					logging.Int("count", len(promoted)))
			}
		}
	}
}

func (s *Service) pruneLoop(ctx context.Context) {
	defer s.wg.Done()
	retention := s.cfg.Archive.Retention()
	if retention <= 0 {
		return
	}
	ticker := time.NewTicker(archivePruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pruned, err := s.history.Prune(ctx, time.Now().Add(-retention))
			if err != nil {
				s.logger.Warn("history prune failed", logging.Error(err))
				continue
			}
			if pruned > 0 {
				s.logger.Info("history pruned", logging.Int64("rows", pruned))
			}
		}
	}
}
