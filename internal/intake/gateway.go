package intake

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/cache"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/config"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/job"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/logging"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/metrics"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/ocr"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/registry"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/sched"
)

// Submission is one unit of work offered to the gateway.
type Submission struct {
	CallerID  string
	Source    string
	Content   []byte
	Mode      string
	Priority  string
	Languages []string
}

// BatchItem is one member of a batch submission.
type BatchItem struct {
	Source  string
	Content []byte
}

// BatchRequest admits several contents under one batch id. Mode, priority,
// and language hints apply to every item.
type BatchRequest struct {
	CallerID  string
	Mode      string
	Priority  string
	Languages []string
	Items     []BatchItem
}

// BatchReceipt reports an admitted batch.
type BatchReceipt struct {
	Batch  *job.Batch
	JobIDs []string
}

// Gateway validates, rate-limits, and admits submissions. Batch submissions
// face a stricter rate limit than singles and are admitted all-or-nothing:
// capacity for the whole batch is checked up front, so no member is turned
// away halfway through.
type Gateway struct {
	intake   config.Intake
	maxDepth int

	registry *registry.Registry
	cache    *cache.Cache
	queue    *sched.Queue
	logger   *slog.Logger

	singles *limiter
	batches *limiter

	// batchMu serializes batch admissions so the whole-batch capacity check
	// cannot be interleaved by another batch.
	batchMu sync.Mutex

	defaultLanguages []string
}

// New constructs the gateway from the daemon configuration.
func New(cfg *config.Config, reg *registry.Registry, c *cache.Cache, q *sched.Queue, logger *slog.Logger) *Gateway {
	window := cfg.Intake.RateWindow()
	return &Gateway{
		intake:           cfg.Intake,
		maxDepth:         cfg.Queue.MaxDepth,
		registry:         reg,
		cache:            c,
		queue:            q,
		logger:           logging.NewComponentLogger(logger, "intake"),
		singles:          newLimiter(window, cfg.Intake.RateMaxRequests),
		batches:          newLimiter(window, cfg.Intake.BatchRateMaxRequests),
		defaultLanguages: append([]string(nil), cfg.Engine.Languages...),
	}
}

// Submit admits a single piece of content. The returned snapshot is already
// terminal when the content was served from the cache.
func (g *Gateway) Submit(sub Submission) (*job.Job, error) {
	mode, priority, languages, err := g.prepare(sub.Mode, sub.Priority, sub.Languages)
	if err != nil {
		return nil, g.reject(err)
	}
	if err := g.checkContent(sub.Content); err != nil {
		return nil, g.reject(err)
	}
	if !g.singles.allow(callerOrLocal(sub.CallerID)) {
		return nil, g.reject(fmt.Errorf("%w: caller %s", ErrRateLimited, callerOrLocal(sub.CallerID)))
	}

	j, err := g.admit(uuid.NewString(), "", sub.CallerID, sub.Source, mode, priority, languages, sub.Content, false)
	if err != nil {
		return nil, g.reject(err)
	}
	metrics.JobsSubmitted.WithLabelValues(string(mode), string(priority)).Inc()
	return j, nil
}

// SubmitBatch admits every item or none. Validation failures name the first
// offending item.
func (g *Gateway) SubmitBatch(req BatchRequest) (*BatchReceipt, error) {
	mode, priority, languages, err := g.prepare(req.Mode, req.Priority, req.Languages)
	if err != nil {
		return nil, g.reject(err)
	}
	if len(req.Items) == 0 {
		return nil, g.reject(ErrEmptyBatch)
	}
	if len(req.Items) > g.intake.MaxBatchJobs {
		return nil, g.reject(fmt.Errorf("%w: %d > %d", ErrBatchTooLarge, len(req.Items), g.intake.MaxBatchJobs))
	}
	for i, item := range req.Items {
		if err := g.checkContent(item.Content); err != nil {
			return nil, g.reject(fmt.Errorf("item %d: %w", i, err))
		}
	}
	if !g.batches.allow(callerOrLocal(req.CallerID)) {
		return nil, g.reject(fmt.Errorf("%w: batch window for caller %s", ErrRateLimited, callerOrLocal(req.CallerID)))
	}

	g.batchMu.Lock()
	defer g.batchMu.Unlock()

	// Whole-batch capacity check. Cache hits will not consume slots, but
	// admission must never strand a member halfway, so the worst case is
	// reserved. Members then enqueue past the ceiling check; overshoot is
	// bounded by one batch.
	if g.queue.Depth()+len(req.Items) > g.maxDepth {
		return nil, g.reject(fmt.Errorf("%w: %d queued, batch of %d would exceed %d",
			ErrQueueSaturated, g.queue.Depth(), len(req.Items), g.maxDepth))
	}

	batchID := uuid.NewString()
	jobIDs := make([]string, len(req.Items))
	for i := range req.Items {
		jobIDs[i] = uuid.NewString()
	}
	if err := g.registry.CreateBatch(&job.Batch{
		ID:       batchID,
		CallerID: req.CallerID,
		Total:    len(req.Items),
		JobIDs:   jobIDs,
	}); err != nil {
		return nil, fmt.Errorf("register batch: %w", err)
	}

	for i, item := range req.Items {
		if _, err := g.admit(jobIDs[i], batchID, req.CallerID, item.Source, mode, priority, languages, item.Content, true); err != nil {
			// Only shutdown gets here; members already admitted keep their
			// ids and the caller learns the batch did not fully land.
			g.logger.Warn("batch admission interrupted",
				logging.String(logging.FieldBatchID, batchID),
				logging.Int("admitted", i),
				logging.Error(err))
			return nil, fmt.Errorf("batch member %d: %w", i, err)
		}
		metrics.JobsSubmitted.WithLabelValues(string(mode), string(priority)).Inc()
	}

	b, err := g.registry.GetBatch(batchID)
	if err != nil {
		return nil, err
	}
	g.logger.Info("batch admitted",
		logging.String(logging.FieldBatchID, batchID),
		logging.Int("jobs", len(jobIDs)),
		logging.String(logging.FieldMode, string(mode)))
	return &BatchReceipt{Batch: b, JobIDs: jobIDs}, nil
}

// Repromote re-enqueues a waiter that took over a flight after its previous
// primary left. The entry bypasses the depth ceiling: the job was admitted
// once and must not be lost to backpressure.
func (g *Gateway) Repromote(p *cache.Promotion) error {
	if p == nil {
		return nil
	}
	j, err := g.registry.GetJob(p.JobID)
	if err != nil {
		return err
	}
	return g.queue.Requeue(&sched.Entry{
		JobID:       j.ID,
		Fingerprint: j.Fingerprint,
		Mode:        j.Mode,
		Priority:    j.Priority,
		Content:     p.Content,
		Languages:   p.Languages,
		Attempt:     j.Attempts,
	})
}

// admit runs the shared cache-then-queue admission path. The job id is
// durable in the registry before any outcome is decided.
func (g *Gateway) admit(jobID, batchID, callerID, source string, mode ocr.Mode, priority job.Priority, languages []string, content []byte, bypassDepth bool) (*job.Job, error) {
	fp := ocr.Fingerprint(mode, content)
	j := &job.Job{
		ID:          jobID,
		BatchID:     batchID,
		CallerID:    callerID,
		Source:      source,
		Mode:        mode,
		Priority:    priority,
		Status:      job.StatusQueued,
		Fingerprint: fp,
		ContentSize: int64(len(content)),
		Languages:   languages,
	}
	if err := g.registry.CreateJob(j); err != nil {
		return nil, fmt.Errorf("register job: %w", err)
	}

	acq := g.cache.Acquire(fp, jobID, content, languages)
	switch acq.Outcome {
	case cache.OutcomeHit:
		if _, err := g.registry.MarkRunning(jobID); err != nil {
			return nil, err
		}
		done, err := g.registry.Complete(jobID, acq.Result, true)
		if err != nil {
			return nil, err
		}
		g.logger.Debug("served from cache",
			logging.String(logging.FieldJobID, jobID),
			logging.String(logging.FieldFingerprint, fp))
		return done, nil

	case cache.OutcomeAttached:
		g.logger.Debug("attached to in-flight execution",
			logging.String(logging.FieldJobID, jobID),
			logging.String(logging.FieldFingerprint, fp))
		return g.registry.GetJob(jobID)

	default:
		entry := &sched.Entry{
			JobID:       jobID,
			Fingerprint: fp,
			Mode:        mode,
			Priority:    priority,
			Content:     content,
			Languages:   languages,
		}
		var qerr error
		if bypassDepth {
			qerr = g.queue.Requeue(entry)
		} else {
			qerr = g.queue.Enqueue(entry)
		}
		if qerr != nil {
			g.unwindPrimary(fp, jobID)
			if errors.Is(qerr, sched.ErrQueueFull) {
				return nil, fmt.Errorf("%w: depth %d", ErrQueueSaturated, g.maxDepth)
			}
			return nil, fmt.Errorf("enqueue: %w", qerr)
		}
		return g.registry.GetJob(jobID)
	}
}

// unwindPrimary backs a rejected primary out of the cache. A waiter that
// attached in the meantime takes over the flight and is requeued in the
// rejected job's place.
func (g *Gateway) unwindPrimary(fp, jobID string) {
	promo, ok := g.cache.PromoteOrDrop(fp, jobID)
	if ok && promo != nil {
		if err := g.Repromote(promo); err != nil {
			g.logger.Error("repromote after rejected admission failed",
				logging.String(logging.FieldJobID, promo.JobID),
				logging.Error(err))
		}
	}
	if _, err := g.registry.CancelQueued(jobID); err != nil {
		g.logger.Warn("unwind cancel failed",
			logging.String(logging.FieldJobID, jobID),
			logging.Error(err))
	}
}

func (g *Gateway) prepare(rawMode, rawPriority string, languages []string) (ocr.Mode, job.Priority, []string, error) {
	mode, ok := ocr.ParseMode(rawMode)
	if !ok {
		return "", "", nil, fmt.Errorf("%w: %q", ErrUnsupportedMode, rawMode)
	}
	priority := job.PriorityNormal
	if rawPriority != "" {
		priority, ok = job.ParsePriority(rawPriority)
		if !ok {
			return "", "", nil, fmt.Errorf("%w: unknown priority %q", ErrValidation, rawPriority)
		}
	}
	if len(languages) == 0 {
		languages = g.defaultLanguages
	}
	return mode, priority, append([]string(nil), languages...), nil
}

func (g *Gateway) checkContent(content []byte) error {
	if len(content) == 0 {
		return ErrEmptyContent
	}
	if limit := g.intake.MaxContentBytes(); int64(len(content)) > limit {
		return fmt.Errorf("%w: %s exceeds %s", ErrContentTooLarge,
			humanize.IBytes(uint64(len(content))), humanize.IBytes(uint64(limit)))
	}
	return nil
}

func (g *Gateway) reject(err error) error {
	metrics.JobsRejected.WithLabelValues(RejectionReason(err)).Inc()
	return err
}

func callerOrLocal(callerID string) string {
	if callerID == "" {
		return "local"
	}
	return callerID
}
