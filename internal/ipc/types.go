package ipc

import "github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/api"

// Job mirrors the HTTP API job DTO for internal IPC callers.
type Job = api.Job

// Batch mirrors the HTTP API batch DTO.
type Batch = api.Batch

// QueueEntry mirrors the HTTP API queue entry DTO.
type QueueEntry = api.QueueEntry

// CacheStats mirrors the HTTP API cache statistics DTO.
type CacheStats = api.CacheStats

// Worker mirrors the HTTP API worker DTO.
type Worker = api.Worker

// ServiceStatus mirrors the HTTP API service status DTO.
type ServiceStatus = api.ServiceStatus

// DependencyStatus describes availability of an external dependency.
type DependencyStatus = api.DependencyStatus

// Event mirrors the HTTP API event DTO.
type Event = api.Event

// HistoryRecord mirrors the HTTP API history record DTO.
type HistoryRecord = api.HistoryRecord

// SubmitRequest mirrors the HTTP API submission payload.
type SubmitRequest = api.SubmitRequest

// SubmitBatchRequest mirrors the HTTP API batch submission payload.
type SubmitBatchRequest = api.SubmitBatchRequest

// SubmitBatchItem aliases the shared batch member payload.
type SubmitBatchItem = api.SubmitBatchItem

// StartRequest triggers daemon service startup.
type StartRequest struct{}

// StartResponse indicates whether the daemon was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest stops the daemon service.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents combined daemon/service status information.
type StatusResponse struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	SocketPath   string             `json:"socket_path"`
	LockPath     string             `json:"lock_path"`
	ArchivePath  string             `json:"archive_path,omitempty"`
	Service      ServiceStatus      `json:"service"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// SubmitResponse returns the admitted job snapshot, which may already be
// terminal on a cache hit.
type SubmitResponse struct {
	Job Job `json:"job"`
}

// SubmitBatchResponse returns the admitted batch and its member job ids.
type SubmitBatchResponse struct {
	Batch  Batch    `json:"batch"`
	JobIDs []string `json:"job_ids"`
}

// JobStatusRequest fetches a single job by id.
type JobStatusRequest struct {
	ID string `json:"id"`
}

// JobStatusResponse contains a single job snapshot.
type JobStatusResponse struct {
	Job Job `json:"job"`
}

// BatchStatusRequest fetches a batch and its members by id.
type BatchStatusRequest struct {
	ID string `json:"id"`
}

// BatchStatusResponse contains a batch record with member snapshots.
type BatchStatusResponse struct {
	Batch Batch `json:"batch"`
	Jobs  []Job `json:"jobs"`
}

// CancelRequest cancels a job by id.
type CancelRequest struct {
	ID string `json:"id"`
}

// CancelResponse contains the job snapshot after the cancel took effect.
type CancelResponse struct {
	Job Job `json:"job"`
}

// JobListRequest filters job listing by status and batch.
type JobListRequest struct {
	Statuses []string `json:"statuses"`
	BatchID  string   `json:"batch_id"`
	Limit    int      `json:"limit"`
}

// JobListResponse contains job snapshots, newest first.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// BatchListRequest fetches recent batches.
type BatchListRequest struct {
	Limit int `json:"limit"`
}

// BatchListResponse contains batch records, newest first.
type BatchListResponse struct {
	Batches []Batch `json:"batches"`
}

// QueueListRequest fetches the pending queue snapshot.
type QueueListRequest struct{}

// QueueListResponse contains pending entries in dispatch order.
type QueueListResponse struct {
	Entries []QueueEntry `json:"entries"`
}

// CacheStatsRequest fetches result cache statistics.
type CacheStatsRequest struct{}

// CacheStatsResponse contains cache occupancy and lifetime counters.
type CacheStatsResponse struct {
	Stats CacheStats `json:"stats"`
}

// HistoryRequest filters the archived terminal-job history.
type HistoryRequest struct {
	Status   string `json:"status"`
	BatchID  string `json:"batch_id"`
	CallerID string `json:"caller_id"`
	Limit    int    `json:"limit"`
}

// HistoryResponse contains archived records, newest first.
type HistoryResponse struct {
	Records []HistoryRecord `json:"records"`
}

// EventsRequest pages through the progress event ring. Follow blocks until
// new events arrive or WaitMillis elapses.
type EventsRequest struct {
	Since      uint64 `json:"since"`
	Limit      int    `json:"limit"`
	Follow     bool   `json:"follow"`
	WaitMillis int    `json:"wait_millis"`
}

// EventsResponse returns events and the cursor for the next request.
type EventsResponse struct {
	Events []Event `json:"events"`
	Next   uint64  `json:"next"`
}
