// Package api defines wire-format types and converters shared by the IPC and
// HTTP API layers. It translates internal job models into transport-friendly
// DTOs so external consumers never couple to internal types.
//
// # Key Types
//
// Job: transport representation of a job record with progress, result payload,
// and cache provenance flags.
//
// Batch: aggregate batch counters with derived progress.
//
// ServiceStatus / DaemonStatus: running state, registry counts, queue depths,
// cache occupancy, worker assignments, and external tool availability.
//
// Event: one job or batch state-change notification with its ring sequence.
//
// HistoryRecord: an archived terminal job as persisted by the history store.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Internal enums (job.Status, job.Priority,
// ocr.Mode) are exposed as lowercase strings. Timestamps use RFC3339 with
// milliseconds. Recognition results embed ocr.Result, which carries its own
// stable JSON shape, to avoid double-encoding layout geometry.
package api
