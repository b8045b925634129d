package cache

import (
	"container/list"
	"sync"

	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/metrics"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/ocr"
)

// Outcome describes what Acquire decided for a submission.
type Outcome int

const (
	// OutcomeHit means a committed result was found; no execution needed.
	OutcomeHit Outcome = iota
	// OutcomeAttached means identical content is already executing; the job
	// was attached to that flight as a waiter.
	OutcomeAttached
	// OutcomePrimary means the job opened a new flight and must be enqueued.
	OutcomePrimary
)

// Acquisition is the result of consulting the cache during admission.
type Acquisition struct {
	Outcome Outcome
	Result  *ocr.Result
}

// Members lists the jobs bound to a flight when it resolves.
type Members struct {
	PrimaryID string
	Waiters   []string
}

// Promotion carries what the scheduler needs to re-enqueue a promoted waiter
// after a queued primary was cancelled.
type Promotion struct {
	JobID     string
	Content   []byte
	Languages []string
}

// Stats is a point-in-time cache summary.
type Stats struct {
	Entries    int
	Bytes      int64
	MaxEntries int
	MaxBytes   int64
	InFlight   int
	Hits       uint64
	Misses     uint64
	Evictions  uint64
	Attached   uint64
}

type entry struct {
	fp     string
	result *ocr.Result
	size   int64
}

type flight struct {
	primaryID string
	waiters   []string
	content   []byte
	languages []string
}

// Cache is safe for concurrent use.
type Cache struct {
	mu         sync.Mutex
	maxEntries int
	maxBytes   int64
	ll         *list.List
	items      map[string]*list.Element
	bytes      int64
	flights    map[string]*flight

	hits      uint64
	misses    uint64
	evictions uint64
	attached  uint64
}

// New constructs a cache bounded by entry count and total result bytes.
func New(maxEntries int, maxBytes int64) *Cache {
	if maxEntries <= 0 {
		maxEntries = 4096
	}
	if maxBytes <= 0 {
		maxBytes = 256 << 20
	}
	return &Cache{
		maxEntries: maxEntries,
		maxBytes:   maxBytes,
		ll:         list.New(),
		items:      make(map[string]*list.Element),
		flights:    make(map[string]*flight),
	}
}

// Acquire consults the cache for a submission. Exactly one of three things
// happens under a single lock acquisition: the job is served from a committed
// result, attached to an in-flight execution, or registered as the primary of
// a new flight (and must then be enqueued by the caller).
func (c *Cache) Acquire(fp, jobID string, content []byte, languages []string) Acquisition {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[fp]; ok {
		c.ll.MoveToFront(el)
		c.hits++
		metrics.CacheHits.Inc()
		return Acquisition{Outcome: OutcomeHit, Result: el.Value.(*entry).result}
	}

	if fl, ok := c.flights[fp]; ok {
		fl.waiters = append(fl.waiters, jobID)
		c.attached++
		metrics.FlightAttached.Inc()
		return Acquisition{Outcome: OutcomeAttached}
	}

	c.flights[fp] = &flight{
		primaryID: jobID,
		content:   content,
		languages: languages,
	}
	c.misses++
	metrics.CacheMisses.Inc()
	return Acquisition{Outcome: OutcomePrimary}
}

// Commit stores the result of a finished flight and returns its members so
// the caller can complete every attached job. Results larger than the whole
// byte budget resolve the flight without being cached.
func (c *Cache) Commit(fp string, result *ocr.Result) (Members, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fl, ok := c.flights[fp]
	if !ok {
		return Members{}, false
	}
	delete(c.flights, fp)

	size := result.Size()
	if size <= c.maxBytes {
		if el, exists := c.items[fp]; exists {
			c.bytes -= el.Value.(*entry).size
			c.ll.Remove(el)
			delete(c.items, fp)
		}
		el := c.ll.PushFront(&entry{fp: fp, result: result, size: size})
		c.items[fp] = el
		c.bytes += size
		c.evictLocked()
	}

	return Members{PrimaryID: fl.primaryID, Waiters: fl.waiters}, true
}

// Abort resolves a flight without storing a result, returning its members so
// the caller can fail every attached job.
func (c *Cache) Abort(fp string) (Members, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fl, ok := c.flights[fp]
	if !ok {
		return Members{}, false
	}
	delete(c.flights, fp)
	return Members{PrimaryID: fl.primaryID, Waiters: fl.waiters}, true
}

// DetachWaiter removes a cancelled waiter from its flight.
func (c *Cache) DetachWaiter(fp, jobID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	fl, ok := c.flights[fp]
	if !ok {
		return false
	}
	for i, id := range fl.waiters {
		if id == jobID {
			fl.waiters = append(fl.waiters[:i], fl.waiters[i+1:]...)
			return true
		}
	}
	return false
}

// PromoteOrDrop handles cancellation of a queued primary. When waiters exist
// the first one takes over the flight and the returned Promotion tells the
// caller what to re-enqueue; with no waiters the flight is dropped and nil is
// returned.
func (c *Cache) PromoteOrDrop(fp, cancelledPrimary string) (*Promotion, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fl, ok := c.flights[fp]
	if !ok || fl.primaryID != cancelledPrimary {
		return nil, false
	}
	if len(fl.waiters) == 0 {
		delete(c.flights, fp)
		return nil, true
	}
	fl.primaryID = fl.waiters[0]
	fl.waiters = fl.waiters[1:]
	return &Promotion{JobID: fl.primaryID, Content: fl.content, Languages: fl.languages}, true
}

// Lookup peeks at a committed result without recording a hit or touching
// recency. Diagnostic surfaces use it; admission goes through Acquire.
func (c *Cache) Lookup(fp string) (*ocr.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[fp]
	if !ok {
		return nil, false
	}
	return el.Value.(*entry).result, true
}

// Stats reports current occupancy and lifetime counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Entries:    c.ll.Len(),
		Bytes:      c.bytes,
		MaxEntries: c.maxEntries,
		MaxBytes:   c.maxBytes,
		InFlight:   len(c.flights),
		Hits:       c.hits,
		Misses:     c.misses,
		Evictions:  c.evictions,
		Attached:   c.attached,
	}
}

func (c *Cache) evictLocked() {
	for c.ll.Len() > c.maxEntries || c.bytes > c.maxBytes {
		back := c.ll.Back()
		if back == nil {
			return
		}
		ev := back.Value.(*entry)
		c.ll.Remove(back)
		delete(c.items, ev.fp)
		c.bytes -= ev.size
		c.evictions++
		metrics.CacheEvictions.Inc()
	}
}
