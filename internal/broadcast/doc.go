// Package broadcast fans job and batch state changes out to subscribers.
//
// The hub is not a durable log. It keeps a bounded ring of recent events
// for long-poll consumers and pushes to channel subscribers with a
// latest-state-wins policy: when a subscriber's buffer is full the oldest
// pending event is dropped to make room for the newest. Clients that miss
// events reconcile by fetching the authoritative job or batch status.
package broadcast
