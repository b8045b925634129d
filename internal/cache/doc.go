// Package cache stores recognition results keyed by content fingerprint and
// collapses concurrent submissions of identical content onto one execution.
//
// Committed results live in an LRU bounded by entry count and total bytes.
// Work that is still executing is tracked separately as a flight: the first
// submission becomes the flight's primary and runs; later submissions attach
// as waiters and are completed from the primary's result. Flights are not LRU
// entries, so eviction can never touch a computation that still has jobs
// attached; a result only becomes evictable once the flight has committed and
// its waiters have been handed their completion.
//
// The flight also retains the content bytes. If a queued primary is cancelled
// the first waiter is promoted and re-enqueued with those bytes, so attached
// jobs never lose their payload.
package cache
