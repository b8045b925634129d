// Package registry is the authoritative in-memory store for job and batch
// records.
//
// Records are sharded by an FNV hash of the job id so status reads during
// heavy processing do not serialize behind a single lock. Every mutation is
// validated against the job package's transition table; an illegal transition
// is an error at the call site, never a silent overwrite. Progress is clamped
// to be non-decreasing, which also makes late progress callbacks from timed
// out attempts harmless.
//
// Mutations follow a single-writer discipline: the worker executing a job is
// the only component that moves it out of Running, and the intake path is the
// only one that creates it or cancels it while Queued. The registry enforces
// the observable half of that contract (legal transitions); wiring in the
// core enforces the rest.
//
// The OnChange hook fires after each applied mutation, outside any shard
// lock, with a cloned snapshot. The core uses it to feed the broadcaster,
// batch coordinator, archive, and metrics without those components touching
// registry internals.
package registry
