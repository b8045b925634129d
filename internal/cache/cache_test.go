package cache_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/cache"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/ocr"
)

func result(text string) *ocr.Result {
	return &ocr.Result{PlainText: text}
}

func TestAcquireMissThenHit(t *testing.T) {
	c := cache.New(8, 1<<20)

	acq := c.Acquire("fp-a", "job-1", []byte("img"), nil)
	if acq.Outcome != cache.OutcomePrimary {
		t.Fatalf("expected primary on first acquire, got %v", acq.Outcome)
	}

	members, ok := c.Commit("fp-a", result("hello"))
	if !ok {
		t.Fatal("expected commit to find flight")
	}
	if members.PrimaryID != "job-1" || len(members.Waiters) != 0 {
		t.Fatalf("unexpected members: %+v", members)
	}

	acq = c.Acquire("fp-a", "job-2", []byte("img"), nil)
	if acq.Outcome != cache.OutcomeHit {
		t.Fatalf("expected hit, got %v", acq.Outcome)
	}
	if acq.Result.PlainText != "hello" {
		t.Fatalf("unexpected result %q", acq.Result.PlainText)
	}
}

func TestAcquireAttachesToFlight(t *testing.T) {
	c := cache.New(8, 1<<20)

	if acq := c.Acquire("fp", "primary", []byte("img"), nil); acq.Outcome != cache.OutcomePrimary {
		t.Fatalf("expected primary, got %v", acq.Outcome)
	}
	for _, id := range []string{"w1", "w2"} {
		if acq := c.Acquire("fp", id, []byte("img"), nil); acq.Outcome != cache.OutcomeAttached {
			t.Fatalf("expected %s attached, got %v", id, acq.Outcome)
		}
	}

	members, ok := c.Commit("fp", result("shared"))
	if !ok {
		t.Fatal("expected flight")
	}
	if members.PrimaryID != "primary" {
		t.Fatalf("unexpected primary %s", members.PrimaryID)
	}
	if len(members.Waiters) != 2 || members.Waiters[0] != "w1" || members.Waiters[1] != "w2" {
		t.Fatalf("unexpected waiters %v", members.Waiters)
	}

	if _, ok := c.Commit("fp", result("again")); ok {
		t.Fatal("second commit should find no flight")
	}
}

func TestAbortReturnsMembersWithoutCaching(t *testing.T) {
	c := cache.New(8, 1<<20)
	c.Acquire("fp", "primary", []byte("img"), nil)
	c.Acquire("fp", "w1", []byte("img"), nil)

	members, ok := c.Abort("fp")
	if !ok {
		t.Fatal("expected flight")
	}
	if members.PrimaryID != "primary" || len(members.Waiters) != 1 {
		t.Fatalf("unexpected members %+v", members)
	}
	if _, ok := c.Lookup("fp"); ok {
		t.Fatal("aborted flight must not cache a result")
	}
	// Content can be resubmitted afresh.
	if acq := c.Acquire("fp", "job-2", []byte("img"), nil); acq.Outcome != cache.OutcomePrimary {
		t.Fatalf("expected new primary after abort, got %v", acq.Outcome)
	}
}

func TestDetachWaiter(t *testing.T) {
	c := cache.New(8, 1<<20)
	c.Acquire("fp", "primary", []byte("img"), nil)
	c.Acquire("fp", "w1", []byte("img"), nil)
	c.Acquire("fp", "w2", []byte("img"), nil)

	if !c.DetachWaiter("fp", "w1") {
		t.Fatal("expected detach to find waiter")
	}
	if c.DetachWaiter("fp", "w1") {
		t.Fatal("waiter already detached")
	}

	members, _ := c.Commit("fp", result("x"))
	if len(members.Waiters) != 1 || members.Waiters[0] != "w2" {
		t.Fatalf("unexpected waiters %v", members.Waiters)
	}
}

func TestPromoteOrDrop(t *testing.T) {
	c := cache.New(8, 1<<20)
	content := []byte("payload")
	c.Acquire("fp", "primary", content, []string{"eng"})
	c.Acquire("fp", "w1", content, nil)
	c.Acquire("fp", "w2", content, nil)

	promo, ok := c.PromoteOrDrop("fp", "primary")
	if !ok || promo == nil {
		t.Fatal("expected promotion")
	}
	if promo.JobID != "w1" {
		t.Fatalf("expected first waiter promoted, got %s", promo.JobID)
	}
	if string(promo.Content) != "payload" {
		t.Fatal("promotion lost the content bytes")
	}

	// The promoted waiter is now the primary; committing resolves for the rest.
	members, _ := c.Commit("fp", result("x"))
	if members.PrimaryID != "w1" || len(members.Waiters) != 1 || members.Waiters[0] != "w2" {
		t.Fatalf("unexpected members after promotion: %+v", members)
	}
}

func TestPromoteOrDropWithoutWaitersDropsFlight(t *testing.T) {
	c := cache.New(8, 1<<20)
	c.Acquire("fp", "primary", []byte("img"), nil)

	promo, ok := c.PromoteOrDrop("fp", "primary")
	if !ok {
		t.Fatal("expected drop to be acknowledged")
	}
	if promo != nil {
		t.Fatalf("expected no promotion, got %+v", promo)
	}
	if acq := c.Acquire("fp", "fresh", []byte("img"), nil); acq.Outcome != cache.OutcomePrimary {
		t.Fatalf("expected flight gone, got %v", acq.Outcome)
	}
}

func TestPromoteOrDropIgnoresStalePrimary(t *testing.T) {
	c := cache.New(8, 1<<20)
	c.Acquire("fp", "primary", []byte("img"), nil)
	if _, ok := c.PromoteOrDrop("fp", "not-the-primary"); ok {
		t.Fatal("mismatched primary must not disturb the flight")
	}
}

func TestEvictionByEntryCount(t *testing.T) {
	c := cache.New(2, 1<<20)
	for i := 0; i < 3; i++ {
		fp := fmt.Sprintf("fp-%d", i)
		c.Acquire(fp, fmt.Sprintf("job-%d", i), nil, nil)
		c.Commit(fp, result(fmt.Sprintf("r%d", i)))
	}
	if _, ok := c.Lookup("fp-0"); ok {
		t.Fatal("oldest entry should have been evicted")
	}
	for _, fp := range []string{"fp-1", "fp-2"} {
		if _, ok := c.Lookup(fp); !ok {
			t.Fatalf("expected %s to survive", fp)
		}
	}
	stats := c.Stats()
	if stats.Evictions != 1 || stats.Entries != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestEvictionByByteBudget(t *testing.T) {
	small := result("a")
	budget := small.Size()*2 + 16
	c := cache.New(100, budget)

	for i := 0; i < 4; i++ {
		fp := fmt.Sprintf("fp-%d", i)
		c.Acquire(fp, fmt.Sprintf("job-%d", i), nil, nil)
		c.Commit(fp, result("a"))
	}
	stats := c.Stats()
	if stats.Bytes > budget {
		t.Fatalf("byte budget exceeded: %d > %d", stats.Bytes, budget)
	}
	if stats.Evictions == 0 {
		t.Fatal("expected evictions under byte pressure")
	}
}

func TestRecencyProtectsHitEntries(t *testing.T) {
	c := cache.New(2, 1<<20)
	for _, fp := range []string{"fp-a", "fp-b"} {
		c.Acquire(fp, "job-"+fp, nil, nil)
		c.Commit(fp, result(fp))
	}
	// Touch fp-a so fp-b becomes the eviction candidate.
	if acq := c.Acquire("fp-a", "toucher", nil, nil); acq.Outcome != cache.OutcomeHit {
		t.Fatalf("expected hit, got %v", acq.Outcome)
	}
	c.Acquire("fp-c", "job-c", nil, nil)
	c.Commit("fp-c", result("c"))

	if _, ok := c.Lookup("fp-a"); !ok {
		t.Fatal("recently used entry was evicted")
	}
	if _, ok := c.Lookup("fp-b"); ok {
		t.Fatal("least recently used entry survived")
	}
}

func TestOversizedResultResolvesWithoutCaching(t *testing.T) {
	c := cache.New(8, 128)
	c.Acquire("fp", "job-1", nil, nil)
	big := result(strings.Repeat("x", 4096))
	members, ok := c.Commit("fp", big)
	if !ok || members.PrimaryID != "job-1" {
		t.Fatalf("flight must still resolve: ok=%v members=%+v", ok, members)
	}
	if _, ok := c.Lookup("fp"); ok {
		t.Fatal("oversized result must not be cached")
	}
	if got := c.Stats().Entries; got != 0 {
		t.Fatalf("expected empty cache, got %d entries", got)
	}
}

func TestFlightsDoNotCountAgainstLRUBudget(t *testing.T) {
	c := cache.New(1, 1<<20)
	// An in-flight computation with waiters attached...
	c.Acquire("fp-flight", "primary", nil, nil)
	c.Acquire("fp-flight", "waiter", nil, nil)

	// ...is untouched by evictions caused by committed traffic.
	for i := 0; i < 3; i++ {
		fp := fmt.Sprintf("fp-%d", i)
		c.Acquire(fp, fmt.Sprintf("job-%d", i), nil, nil)
		c.Commit(fp, result("r"))
	}

	members, ok := c.Commit("fp-flight", result("late"))
	if !ok {
		t.Fatal("flight evaporated under cache pressure")
	}
	if len(members.Waiters) != 1 || members.Waiters[0] != "waiter" {
		t.Fatalf("waiters lost: %+v", members)
	}
}
