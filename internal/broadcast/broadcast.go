package broadcast

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/metrics"
)

// ErrClosed is returned by Fetch after the hub has shut down.
var ErrClosed = errors.New("broadcast: hub closed")

// Kind distinguishes job events from batch events.
type Kind string

const (
	KindJob   Kind = "job"
	KindBatch Kind = "batch"
)

// Event is one state-change notification. Percent carries job progress or
// batch aggregate progress depending on Kind.
type Event struct {
	Sequence  uint64    `json:"seq"`
	Kind      Kind      `json:"kind"`
	Target    string    `json:"target"`
	Status    string    `json:"status"`
	Percent   float64   `json:"percent"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"ts"`
}

// Subscription is one channel-backed consumer. Events arrive on Events()
// until Close is called or the hub shuts down.
type Subscription struct {
	id     uint64
	target string
	ch     chan Event
	hub    *Hub
	closed bool
}

// Events returns the delivery channel. It is closed when the subscription
// or the hub closes.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Close detaches the subscription and closes its channel.
func (s *Subscription) Close() {
	if s == nil || s.hub == nil {
		return
	}
	s.hub.unsubscribe(s)
}

// Hub stores recent events in a ring and wakes long-poll waiters and
// channel subscribers when new events arrive.
type Hub struct {
	mu       sync.Mutex
	cond     *sync.Cond
	capacity int
	subBuf   int
	buffer   []Event
	nextSeq  uint64
	nextSub  uint64
	subs     map[uint64]*Subscription
	closed   bool
}

// New constructs a hub with the given ring capacity and per-subscriber
// channel buffer.
func New(capacity, subscriberBuffer int) *Hub {
	if capacity <= 0 {
		capacity = 512
	}
	if subscriberBuffer <= 0 {
		subscriberBuffer = 16
	}
	h := &Hub{
		capacity: capacity,
		subBuf:   subscriberBuffer,
		subs:     make(map[uint64]*Subscription),
	}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// Publish appends an event to the ring and delivers it to matching
// subscribers. Publishing on a closed hub is a no-op.
func (h *Hub) Publish(evt Event) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.nextSeq++
	evt.Sequence = h.nextSeq
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	if len(h.buffer) == h.capacity {
		copy(h.buffer, h.buffer[1:])
		h.buffer = h.buffer[:h.capacity-1]
	}
	h.buffer = append(h.buffer, evt)

	for _, sub := range h.subs {
		if sub.target == "" || sub.target == evt.Target {
			h.deliverLocked(sub, evt)
		}
	}
	h.cond.Broadcast()
}

// deliverLocked pushes one event with latest-wins semantics: a full buffer
// sheds its oldest pending event. Deliveries are serialized under the hub
// lock, so the retry always lands.
func (h *Hub) deliverLocked(sub *Subscription, evt Event) {
	for {
		select {
		case sub.ch <- evt:
			return
		default:
		}
		select {
		case <-sub.ch:
			metrics.EventsDropped.Inc()
		default:
		}
	}
}

// Subscribe registers a consumer. An empty target receives every event;
// otherwise only events for that job or batch id are delivered. On a
// closed hub the returned subscription's channel is already closed.
func (h *Hub) Subscribe(target string) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextSub++
	sub := &Subscription{
		id:     h.nextSub,
		target: target,
		ch:     make(chan Event, h.subBuf),
		hub:    h,
	}
	if h.closed {
		sub.closed = true
		close(sub.ch)
		return sub
	}
	h.subs[sub.id] = sub
	return sub
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub.closed {
		return
	}
	sub.closed = true
	delete(h.subs, sub.id)
	close(sub.ch)
}

// Subscribers reports the number of attached channel subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Fetch returns buffered events with sequence greater than since. When wait
// is true and nothing newer is buffered, Fetch blocks until an event
// arrives, the context ends, or the hub closes.
func (h *Hub) Fetch(ctx context.Context, since uint64, limit int, wait bool) ([]Event, uint64, error) {
	if h == nil {
		return nil, since, nil
	}
	if limit <= 0 || limit > h.capacity {
		limit = h.capacity
	}

	cancelWait := make(chan struct{})
	if wait && ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				h.cond.Broadcast()
			case <-cancelWait:
			}
		}()
	}
	defer close(cancelWait)

	h.mu.Lock()
	defer h.mu.Unlock()

	for {
		events, next := h.snapshotLocked(since, limit)
		if len(events) > 0 || !wait {
			return events, next, contextError(ctx)
		}
		if h.closed {
			return nil, next, ErrClosed
		}
		if err := contextError(ctx); err != nil {
			return nil, next, err
		}
		h.cond.Wait()
		if err := contextError(ctx); err != nil {
			return nil, next, err
		}
	}
}

// Tail returns the most recent limit events without blocking.
func (h *Hub) Tail(limit int) ([]Event, uint64) {
	if h == nil {
		return nil, 0
	}
	if limit <= 0 || limit > h.capacity {
		limit = h.capacity
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.buffer) == 0 {
		return nil, h.nextSeq
	}
	start := len(h.buffer) - limit
	if start < 0 {
		start = 0
	}
	out := make([]Event, len(h.buffer)-start)
	copy(out, h.buffer[start:])
	return out, h.nextSeq
}

// FirstSequence reports the smallest sequence number still buffered.
func (h *Hub) FirstSequence() uint64 {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.buffer) == 0 {
		return h.nextSeq
	}
	return h.buffer[0].Sequence
}

// Close shuts the hub down: subscriber channels are closed and blocked
// Fetch calls return ErrClosed.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		sub.closed = true
		close(sub.ch)
		delete(h.subs, id)
	}
	h.cond.Broadcast()
}

func (h *Hub) snapshotLocked(since uint64, limit int) ([]Event, uint64) {
	if len(h.buffer) == 0 {
		return nil, h.nextSeq
	}
	startIdx := 0
	for i, evt := range h.buffer {
		if evt.Sequence > since {
			startIdx = i
			break
		}
		if i == len(h.buffer)-1 {
			return nil, h.nextSeq
		}
	}
	end := startIdx + limit
	if end > len(h.buffer) {
		end = len(h.buffer)
	}
	out := make([]Event, end-startIdx)
	copy(out, h.buffer[startIdx:end])
	return out, h.nextSeq
}

func contextError(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}
