// Package sched implements the in-memory priority queue feeding the worker
// pool.
//
// One FIFO per priority level preserves submission order among equals; workers
// always drain the most urgent non-empty level first. Cancellation is a
// tombstone: the entry is marked dead in O(1) and physically dropped when a
// dequeue or sweep reaches it, so cancel never stalls behind queue traffic.
// A periodic aging sweep promotes entries that have waited past a threshold
// one level at a time, which keeps LOW work from starving under a steady HIGH
// stream.
//
// Admission (Enqueue) enforces the configured depth ceiling under the queue
// lock, so concurrent submitters cannot race past it. Requeue bypasses the
// ceiling: retries of already-admitted work must never be dropped.
package sched
