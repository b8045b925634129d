// Package job defines the records tracked by the processing core: jobs,
// batches, their lifecycle statuses, and priorities.
//
// The status machine is deliberately small. A job moves Queued -> Running ->
// Completed or Failed, and only a Queued job can become Cancelled. Retries do
// not appear as extra states: a job that is waiting out a backoff window is
// still Running as far as observers are concerned. CanTransition is the single
// source of truth; the registry rejects anything it does not allow.
//
// Records here are plain data. Mutation discipline (who may write, when) is
// enforced by the registry, not by this package.
package job
