package sched_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/job"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/sched"
)

func entry(id string, priority job.Priority) *sched.Entry {
	return &sched.Entry{JobID: id, Priority: priority, Fingerprint: "fp-" + id}
}

func mustDequeue(t *testing.T, q *sched.Queue) *sched.Entry {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	e, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	return e
}

func TestDequeueDrainsPriorityThenFIFO(t *testing.T) {
	q := sched.NewQueue(16)
	for i := 0; i < 2; i++ {
		if err := q.Enqueue(entry(fmt.Sprintf("low-%d", i), job.PriorityLow)); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	for i := 0; i < 2; i++ {
		if err := q.Enqueue(entry(fmt.Sprintf("norm-%d", i), job.PriorityNormal)); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	if err := q.Enqueue(entry("high-0", job.PriorityHigh)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	want := []string{"high-0", "norm-0", "norm-1", "low-0", "low-1"}
	for _, id := range want {
		if got := mustDequeue(t, q); got.JobID != id {
			t.Fatalf("expected %s next, got %s", id, got.JobID)
		}
	}
}

func TestEnqueueEnforcesDepthCeiling(t *testing.T) {
	q := sched.NewQueue(2)
	if err := q.Enqueue(entry("a", job.PriorityNormal)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := q.Enqueue(entry("b", job.PriorityNormal)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := q.Enqueue(entry("c", job.PriorityNormal)); !errors.Is(err, sched.ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	// Retries of admitted work bypass the ceiling.
	if err := q.Requeue(entry("retry", job.PriorityNormal)); err != nil {
		t.Fatalf("Requeue should bypass depth ceiling: %v", err)
	}
	if got := q.Depth(); got != 3 {
		t.Fatalf("expected depth 3, got %d", got)
	}
}

func TestCancelTombstonesEntry(t *testing.T) {
	q := sched.NewQueue(16)
	if err := q.Enqueue(entry("keep", job.PriorityNormal)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := q.Enqueue(entry("drop", job.PriorityNormal)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := q.Enqueue(entry("tail", job.PriorityNormal)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if !q.Cancel("drop") {
		t.Fatal("expected cancel to find queued entry")
	}
	if q.Cancel("drop") {
		t.Fatal("second cancel should report not found")
	}
	if got := q.Depth(); got != 2 {
		t.Fatalf("cancelled entry still counted: depth %d", got)
	}

	if got := mustDequeue(t, q); got.JobID != "keep" {
		t.Fatalf("expected keep, got %s", got.JobID)
	}
	if got := mustDequeue(t, q); got.JobID != "tail" {
		t.Fatalf("tombstone should be skipped, got %s", got.JobID)
	}

	if q.Cancel("keep") {
		t.Fatal("cancel after dequeue should report not found")
	}
}

func TestDequeueBlocksUntilEnqueue(t *testing.T) {
	q := sched.NewQueue(16)
	got := make(chan *sched.Entry, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		e, err := q.Dequeue(ctx)
		if err != nil {
			return
		}
		got <- e
	}()

	time.Sleep(20 * time.Millisecond)
	if err := q.Enqueue(entry("wake", job.PriorityLow)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	select {
	case e := <-got:
		if e.JobID != "wake" {
			t.Fatalf("unexpected entry %s", e.JobID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("blocked dequeue never woke")
	}
}

func TestDequeueHonoursContext(t *testing.T) {
	q := sched.NewQueue(16)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := q.Dequeue(ctx)
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("dequeue did not observe context cancellation")
	}
}

func TestCloseUnblocksDequeue(t *testing.T) {
	q := sched.NewQueue(16)
	done := make(chan error, 1)
	go func() {
		_, err := q.Dequeue(context.Background())
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	q.Close()
	select {
	case err := <-done:
		if !errors.Is(err, sched.ErrClosed) {
			t.Fatalf("expected ErrClosed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("dequeue did not observe close")
	}
	if err := q.Enqueue(entry("late", job.PriorityNormal)); !errors.Is(err, sched.ErrClosed) {
		t.Fatalf("expected ErrClosed on enqueue after close, got %v", err)
	}
}

func TestSweepAgingPromotesOneLevel(t *testing.T) {
	q := sched.NewQueue(16)
	if err := q.Enqueue(entry("slow", job.PriorityLow)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := q.Enqueue(entry("mid", job.PriorityNormal)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	promoted := q.SweepAging(0)
	if len(promoted) != 2 {
		t.Fatalf("expected both entries promoted, got %v", promoted)
	}
	depths := q.Depths()
	if depths[job.PriorityHigh] != 1 || depths[job.PriorityNormal] != 1 || depths[job.PriorityLow] != 0 {
		t.Fatalf("unexpected depths after sweep: %v", depths)
	}

	// A second sweep lifts the former low entry the rest of the way.
	q.SweepAging(0)
	depths = q.Depths()
	if depths[job.PriorityHigh] != 2 {
		t.Fatalf("expected both entries at high, got %v", depths)
	}

	// mid reached high first, so it drains first.
	if got := mustDequeue(t, q); got.JobID != "mid" {
		t.Fatalf("expected mid first, got %s", got.JobID)
	}
	if got := mustDequeue(t, q); got.JobID != "slow" {
		t.Fatalf("expected slow second, got %s", got.JobID)
	}
}

func TestSweepAgingLeavesYoungEntries(t *testing.T) {
	q := sched.NewQueue(16)
	if err := q.Enqueue(entry("young", job.PriorityLow)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if promoted := q.SweepAging(time.Hour); len(promoted) != 0 {
		t.Fatalf("expected no promotions, got %v", promoted)
	}
	if depths := q.Depths(); depths[job.PriorityLow] != 1 {
		t.Fatalf("entry should stay at low: %v", depths)
	}
}

func TestSnapshotListsDrainOrder(t *testing.T) {
	q := sched.NewQueue(16)
	if err := q.Enqueue(entry("l1", job.PriorityLow)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := q.Enqueue(entry("h1", job.PriorityHigh)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := q.Enqueue(entry("n1", job.PriorityNormal)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	q.Cancel("n1")

	views := q.Snapshot()
	if len(views) != 2 {
		t.Fatalf("expected 2 live entries, got %d", len(views))
	}
	if views[0].JobID != "h1" || views[1].JobID != "l1" {
		t.Fatalf("unexpected snapshot order: %+v", views)
	}
}
