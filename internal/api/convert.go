package api

import (
	"time"

	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/archive"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/broadcast"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/cache"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/core"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/deps"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/intake"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/job"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/pool"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/sched"
)

// FromJob converts a job record to its API representation.
func FromJob(j *job.Job) Job {
	if j == nil {
		return Job{}
	}
	dto := Job{
		ID:               j.ID,
		BatchID:          j.BatchID,
		CallerID:         j.CallerID,
		Source:           j.Source,
		Mode:             string(j.Mode),
		Priority:         string(j.Priority),
		Status:           string(j.Status),
		Fingerprint:      j.Fingerprint,
		ContentSize:      j.ContentSize,
		Languages:        append([]string(nil), j.Languages...),
		Attempts:         j.Attempts,
		Progress:         j.Progress,
		CacheHit:         j.CacheHit,
		ResultSuppressed: j.ResultSuppressed,
		ErrorMessage:     j.ErrorMessage,
		Result:           j.Result,
		CreatedAt:        formatTime(j.CreatedAt),
	}
	if j.StartedAt != nil {
		dto.StartedAt = formatTime(*j.StartedAt)
	}
	if j.FinishedAt != nil {
		dto.FinishedAt = formatTime(*j.FinishedAt)
	}
	return dto
}

// FromJobs converts a slice of job records into API DTOs.
func FromJobs(jobs []*job.Job) []Job {
	if len(jobs) == 0 {
		return nil
	}
	out := make([]Job, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, FromJob(j))
	}
	return out
}

// FromBatch converts a batch record to its API representation.
func FromBatch(b *job.Batch) Batch {
	if b == nil {
		return Batch{}
	}
	return Batch{
		ID:        b.ID,
		CallerID:  b.CallerID,
		Total:     b.Total,
		Completed: b.Completed,
		Failed:    b.Failed,
		Done:      b.Done,
		Progress:  b.ProgressPercent(),
		JobIDs:    append([]string(nil), b.JobIDs...),
		CreatedAt: formatTime(b.CreatedAt),
		UpdatedAt: formatTime(b.UpdatedAt),
	}
}

// FromBatches converts a slice of batch records into API DTOs.
func FromBatches(batches []*job.Batch) []Batch {
	if len(batches) == 0 {
		return nil
	}
	out := make([]Batch, 0, len(batches))
	for _, b := range batches {
		out = append(out, FromBatch(b))
	}
	return out
}

// FromQueueEntries converts a queue snapshot into API DTOs.
func FromQueueEntries(entries []sched.EntryView) []QueueEntry {
	if len(entries) == 0 {
		return nil
	}
	out := make([]QueueEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, QueueEntry{
			JobID:      e.JobID,
			Priority:   string(e.Priority),
			Attempt:    e.Attempt,
			EnqueuedAt: formatTime(e.EnqueuedAt),
		})
	}
	return out
}

// FromCacheStats converts cache counters into the API payload.
func FromCacheStats(stats cache.Stats) CacheStats {
	return CacheStats{
		Entries:    stats.Entries,
		Bytes:      stats.Bytes,
		MaxEntries: stats.MaxEntries,
		MaxBytes:   stats.MaxBytes,
		InFlight:   stats.InFlight,
		Hits:       stats.Hits,
		Misses:     stats.Misses,
		Evictions:  stats.Evictions,
		Attached:   stats.Attached,
	}
}

// FromWorkers converts worker assignments into API DTOs.
func FromWorkers(workers []pool.WorkerStatus) []Worker {
	if len(workers) == 0 {
		return nil
	}
	out := make([]Worker, 0, len(workers))
	for _, w := range workers {
		out = append(out, Worker{ID: w.ID, Busy: w.Busy, JobID: w.JobID})
	}
	return out
}

// FromServiceStatus converts a core status snapshot to the API payload.
func FromServiceStatus(st core.Status) ServiceStatus {
	counts := make(map[string]int, len(st.JobCounts))
	for status, count := range st.JobCounts {
		counts[string(status)] = count
	}
	depths := make(map[string]int, len(st.QueueDepths))
	for priority, count := range st.QueueDepths {
		depths[string(priority)] = count
	}
	out := ServiceStatus{
		Running:     st.Running,
		Engine:      st.Engine,
		JobCounts:   counts,
		QueueDepth:  st.QueueDepth,
		QueueDepths: depths,
		Cache:       FromCacheStats(st.Cache),
		Workers:     FromWorkers(st.Workers),
		Subscribers: st.Subscribers,
	}
	if !st.StartedAt.IsZero() {
		out.StartedAt = formatTime(st.StartedAt)
	}
	return out
}

// FromDependencies converts external tool statuses into API DTOs.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	if len(statuses) == 0 {
		return nil
	}
	out := make([]DependencyStatus, 0, len(statuses))
	for _, dep := range statuses {
		out = append(out, DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		})
	}
	return out
}

// FromEvent converts one broadcast event into its API representation.
func FromEvent(evt broadcast.Event) Event {
	out := Event{
		Sequence: evt.Sequence,
		Kind:     string(evt.Kind),
		Target:   evt.Target,
		Status:   evt.Status,
		Percent:  evt.Percent,
		Message:  evt.Message,
	}
	if !evt.Timestamp.IsZero() {
		out.Timestamp = formatTime(evt.Timestamp)
	}
	return out
}

// FromEvents converts a page of broadcast events into API DTOs.
func FromEvents(events []broadcast.Event) []Event {
	if len(events) == 0 {
		return nil
	}
	out := make([]Event, 0, len(events))
	for _, evt := range events {
		out = append(out, FromEvent(evt))
	}
	return out
}

// FromHistoryRecord converts an archived row into its API representation.
func FromHistoryRecord(rec *archive.Record) HistoryRecord {
	if rec == nil {
		return HistoryRecord{}
	}
	dto := HistoryRecord{
		ID:               rec.ID,
		BatchID:          rec.BatchID,
		CallerID:         rec.CallerID,
		Source:           rec.Source,
		Mode:             rec.Mode,
		Priority:         rec.Priority,
		Status:           string(rec.Status),
		Fingerprint:      rec.Fingerprint,
		ContentSize:      rec.ContentSize,
		Languages:        append([]string(nil), rec.Languages...),
		Attempts:         rec.Attempts,
		CacheHit:         rec.CacheHit,
		ResultSuppressed: rec.ResultSuppressed,
		ErrorMessage:     rec.ErrorMessage,
		PlainText:        rec.PlainText,
		Confidence:       rec.Confidence,
		CreatedAt:        formatTime(rec.CreatedAt),
		FinishedAt:       formatTime(rec.FinishedAt),
	}
	if rec.StartedAt != nil {
		dto.StartedAt = formatTime(*rec.StartedAt)
	}
	return dto
}

// FromHistoryRecords converts archived rows into API DTOs.
func FromHistoryRecords(records []*archive.Record) []HistoryRecord {
	if len(records) == 0 {
		return nil
	}
	out := make([]HistoryRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, FromHistoryRecord(rec))
	}
	return out
}

// FromBatchReceipt converts an admission receipt into its API representation.
func FromBatchReceipt(receipt *intake.BatchReceipt) BatchReceipt {
	if receipt == nil {
		return BatchReceipt{}
	}
	return BatchReceipt{
		Batch:  FromBatch(receipt.Batch),
		JobIDs: append([]string(nil), receipt.JobIDs...),
	}
}

// ToSubmission maps the request onto the intake submission type.
func (r SubmitRequest) ToSubmission() intake.Submission {
	return intake.Submission{
		CallerID:  r.CallerID,
		Source:    r.Source,
		Content:   r.Content,
		Mode:      r.Mode,
		Priority:  r.Priority,
		Languages: r.Languages,
	}
}

// ToBatchRequest maps the request onto the intake batch type.
func (r SubmitBatchRequest) ToBatchRequest() intake.BatchRequest {
	items := make([]intake.BatchItem, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, intake.BatchItem{Source: item.Source, Content: item.Content})
	}
	return intake.BatchRequest{
		CallerID:  r.CallerID,
		Mode:      r.Mode,
		Priority:  r.Priority,
		Languages: r.Languages,
		Items:     items,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
