package api

import "github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/ocr"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Job describes a job record in a transport-friendly format.
type Job struct {
	ID               string      `json:"id"`
	BatchID          string      `json:"batchId,omitempty"`
	CallerID         string      `json:"callerId,omitempty"`
	Source           string      `json:"source,omitempty"`
	Mode             string      `json:"mode"`
	Priority         string      `json:"priority"`
	Status           string      `json:"status"`
	Fingerprint      string      `json:"fingerprint,omitempty"`
	ContentSize      int64       `json:"contentSize"`
	Languages        []string    `json:"languages,omitempty"`
	Attempts         int         `json:"attempts"`
	Progress         float64     `json:"progress"`
	CacheHit         bool        `json:"cacheHit"`
	ResultSuppressed bool        `json:"resultSuppressed"`
	ErrorMessage     string      `json:"errorMessage,omitempty"`
	Result           *ocr.Result `json:"result,omitempty"`
	CreatedAt        string      `json:"createdAt,omitempty"`
	StartedAt        string      `json:"startedAt,omitempty"`
	FinishedAt       string      `json:"finishedAt,omitempty"`
}

// Batch describes aggregate batch state.
type Batch struct {
	ID        string   `json:"id"`
	CallerID  string   `json:"callerId,omitempty"`
	Total     int      `json:"total"`
	Completed int      `json:"completed"`
	Failed    int      `json:"failed"`
	Done      bool     `json:"done"`
	Progress  float64  `json:"progress"`
	JobIDs    []string `json:"jobIds,omitempty"`
	CreatedAt string   `json:"createdAt,omitempty"`
	UpdatedAt string   `json:"updatedAt,omitempty"`
}

// QueueEntry is one pending scheduler entry.
type QueueEntry struct {
	JobID      string `json:"jobId"`
	Priority   string `json:"priority"`
	Attempt    int    `json:"attempt"`
	EnqueuedAt string `json:"enqueuedAt,omitempty"`
}

// CacheStats reports result cache occupancy and lifetime counters.
type CacheStats struct {
	Entries    int    `json:"entries"`
	Bytes      int64  `json:"bytes"`
	MaxEntries int    `json:"maxEntries"`
	MaxBytes   int64  `json:"maxBytes"`
	InFlight   int    `json:"inFlight"`
	Hits       uint64 `json:"hits"`
	Misses     uint64 `json:"misses"`
	Evictions  uint64 `json:"evictions"`
	Attached   uint64 `json:"attached"`
}

// Worker reports one worker's current assignment.
type Worker struct {
	ID    int    `json:"id"`
	Busy  bool   `json:"busy"`
	JobID string `json:"jobId,omitempty"`
}

// ServiceStatus summarizes the processing core.
type ServiceStatus struct {
	Running     bool           `json:"running"`
	Engine      string         `json:"engine"`
	StartedAt   string         `json:"startedAt,omitempty"`
	JobCounts   map[string]int `json:"jobCounts"`
	QueueDepth  int            `json:"queueDepth"`
	QueueDepths map[string]int `json:"queueDepths"`
	Cache       CacheStats     `json:"cache"`
	Workers     []Worker       `json:"workers"`
	Subscribers int            `json:"subscribers"`
}

// DependencyStatus captures availability of an external tool.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	SocketPath   string             `json:"socketPath"`
	LockPath     string             `json:"lockPath"`
	ArchivePath  string             `json:"archivePath,omitempty"`
	Service      ServiceStatus      `json:"service"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// Event is one job or batch state-change notification.
type Event struct {
	Sequence  uint64  `json:"seq"`
	Kind      string  `json:"kind"`
	Target    string  `json:"target"`
	Status    string  `json:"status"`
	Percent   float64 `json:"percent"`
	Message   string  `json:"message,omitempty"`
	Timestamp string  `json:"ts,omitempty"`
}

// HistoryRecord is an archived terminal job.
type HistoryRecord struct {
	ID               string   `json:"id"`
	BatchID          string   `json:"batchId,omitempty"`
	CallerID         string   `json:"callerId,omitempty"`
	Source           string   `json:"source,omitempty"`
	Mode             string   `json:"mode"`
	Priority         string   `json:"priority"`
	Status           string   `json:"status"`
	Fingerprint      string   `json:"fingerprint,omitempty"`
	ContentSize      int64    `json:"contentSize"`
	Languages        []string `json:"languages,omitempty"`
	Attempts         int      `json:"attempts"`
	CacheHit         bool     `json:"cacheHit"`
	ResultSuppressed bool     `json:"resultSuppressed"`
	ErrorMessage     string   `json:"errorMessage,omitempty"`
	PlainText        string   `json:"plainText,omitempty"`
	Confidence       float64  `json:"confidence"`
	CreatedAt        string   `json:"createdAt,omitempty"`
	StartedAt        string   `json:"startedAt,omitempty"`
	FinishedAt       string   `json:"finishedAt,omitempty"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Job Job `json:"job"`
}

// JobListResponse wraps a collection of jobs.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// BatchDetail pairs a batch with its member jobs.
type BatchDetail struct {
	Batch Batch `json:"batch"`
	Jobs  []Job `json:"jobs,omitempty"`
}

// BatchListResponse wraps a collection of batches.
type BatchListResponse struct {
	Batches []Batch `json:"batches"`
}

// QueueListResponse wraps the pending queue snapshot.
type QueueListResponse struct {
	Entries []QueueEntry `json:"entries"`
}

// EventsResponse carries a page of events and the cursor for the next fetch.
type EventsResponse struct {
	Events []Event `json:"events"`
	Next   uint64  `json:"next"`
}

// HistoryResponse wraps archived records.
type HistoryResponse struct {
	Records []HistoryRecord `json:"records"`
}

// SubmitRequest admits one content payload. Content is base64 on the wire.
type SubmitRequest struct {
	CallerID  string   `json:"callerId,omitempty"`
	Source    string   `json:"source,omitempty"`
	Content   []byte   `json:"content"`
	Mode      string   `json:"mode,omitempty"`
	Priority  string   `json:"priority,omitempty"`
	Languages []string `json:"languages,omitempty"`
}

// SubmitBatchItem is one member of a batch submission.
type SubmitBatchItem struct {
	Source  string `json:"source,omitempty"`
	Content []byte `json:"content"`
}

// SubmitBatchRequest admits several contents under one batch id.
type SubmitBatchRequest struct {
	CallerID  string            `json:"callerId,omitempty"`
	Mode      string            `json:"mode,omitempty"`
	Priority  string            `json:"priority,omitempty"`
	Languages []string          `json:"languages,omitempty"`
	Items     []SubmitBatchItem `json:"items"`
}

// BatchReceipt reports an admitted batch and its member job ids.
type BatchReceipt struct {
	Batch  Batch    `json:"batch"`
	JobIDs []string `json:"jobIds"`
}
