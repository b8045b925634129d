package broadcast_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/broadcast"
)

func publishJob(h *broadcast.Hub, target, status string, percent float64) {
	h.Publish(broadcast.Event{Kind: broadcast.KindJob, Target: target, Status: status, Percent: percent})
}

func TestPublishAssignsSequenceAndTimestamp(t *testing.T) {
	h := broadcast.New(8, 4)
	publishJob(h, "job-1", "queued", 0)
	publishJob(h, "job-1", "running", 10)

	events, next := h.Tail(10)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Sequence != 1 || events[1].Sequence != 2 || next != 2 {
		t.Fatalf("unexpected sequences %d, %d (next=%d)", events[0].Sequence, events[1].Sequence, next)
	}
	if events[0].Timestamp.IsZero() {
		t.Fatal("timestamp not assigned")
	}
}

func TestRingDropsOldest(t *testing.T) {
	h := broadcast.New(4, 4)
	for i := 0; i < 10; i++ {
		publishJob(h, "job-1", "running", float64(i))
	}
	events, _ := h.Tail(10)
	if len(events) != 4 {
		t.Fatalf("expected ring capacity 4, got %d", len(events))
	}
	if events[0].Sequence != 7 {
		t.Fatalf("expected oldest retained seq 7, got %d", events[0].Sequence)
	}
	if h.FirstSequence() != 7 {
		t.Fatalf("FirstSequence = %d, want 7", h.FirstSequence())
	}
}

func TestSubscribeFiltersByTarget(t *testing.T) {
	h := broadcast.New(16, 4)
	all := h.Subscribe("")
	defer all.Close()
	one := h.Subscribe("job-2")
	defer one.Close()

	publishJob(h, "job-1", "running", 5)
	publishJob(h, "job-2", "running", 10)

	got := <-one.Events()
	if got.Target != "job-2" {
		t.Fatalf("filtered subscriber saw %q", got.Target)
	}
	first := <-all.Events()
	second := <-all.Events()
	if first.Target != "job-1" || second.Target != "job-2" {
		t.Fatalf("catch-all subscriber saw %q then %q", first.Target, second.Target)
	}
}

func TestSlowSubscriberKeepsNewest(t *testing.T) {
	h := broadcast.New(64, 2)
	sub := h.Subscribe("job-1")
	defer sub.Close()

	// Nothing drains the channel, so older events must be shed.
	for i := 1; i <= 10; i++ {
		publishJob(h, "job-1", "running", float64(i)*10)
	}

	var got []broadcast.Event
	for {
		select {
		case evt := <-sub.Events():
			got = append(got, evt)
			continue
		default:
		}
		break
	}
	if len(got) != 2 {
		t.Fatalf("expected buffer-sized backlog, got %d", len(got))
	}
	if got[len(got)-1].Percent != 100 {
		t.Fatalf("newest event lost, tail percent %v", got[len(got)-1].Percent)
	}
}

func TestSubscriptionCloseStopsDelivery(t *testing.T) {
	h := broadcast.New(16, 4)
	sub := h.Subscribe("")
	sub.Close()
	sub.Close() // double close is safe

	publishJob(h, "job-1", "running", 5)
	if _, ok := <-sub.Events(); ok {
		t.Fatal("closed subscription received an event")
	}
	if h.Subscribers() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", h.Subscribers())
	}
}

func TestFetchReturnsEventsAfterSince(t *testing.T) {
	h := broadcast.New(16, 4)
	for i := 0; i < 5; i++ {
		publishJob(h, fmt.Sprintf("job-%d", i), "queued", 0)
	}
	events, next, err := h.Fetch(context.Background(), 3, 0, false)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(events) != 2 || next != 5 {
		t.Fatalf("expected 2 events next=5, got %d next=%d", len(events), next)
	}
	if events[0].Sequence != 4 {
		t.Fatalf("expected first seq 4, got %d", events[0].Sequence)
	}

	// Caught-up non-waiting fetch returns immediately with nothing.
	events, _, err = h.Fetch(context.Background(), 5, 0, false)
	if err != nil || len(events) != 0 {
		t.Fatalf("caught-up fetch = %d events, %v", len(events), err)
	}
}

func TestFetchWaitWakesOnPublish(t *testing.T) {
	h := broadcast.New(16, 4)
	done := make(chan []broadcast.Event, 1)
	go func() {
		events, _, err := h.Fetch(context.Background(), 0, 0, true)
		if err != nil {
			t.Errorf("Fetch: %v", err)
		}
		done <- events
	}()

	time.Sleep(20 * time.Millisecond)
	publishJob(h, "job-1", "completed", 100)

	select {
	case events := <-done:
		if len(events) != 1 || events[0].Status != "completed" {
			t.Fatalf("unexpected events %+v", events)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Fetch did not wake on publish")
	}
}

func TestFetchWaitHonorsContext(t *testing.T) {
	h := broadcast.New(16, 4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, _, err := h.Fetch(ctx, 0, 0, true)
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
		t.Fatal("Fetch did not observe cancellation")
	}
}

func TestCloseWakesWaitersAndSubscribers(t *testing.T) {
	h := broadcast.New(16, 4)
	sub := h.Subscribe("")

	fetchErr := make(chan error, 1)
	go func() {
		_, _, err := h.Fetch(context.Background(), 0, 0, true)
		fetchErr <- err
	}()

	time.Sleep(20 * time.Millisecond)
	h.Close()

	select {
	case err := <-fetchErr:
		if !errors.Is(err, broadcast.ErrClosed) {
			t.Fatalf("expected ErrClosed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Fetch did not observe close")
	}

	if _, ok := <-sub.Events(); ok {
		t.Fatal("subscriber channel still open after close")
	}

	// Late subscribers get an already-closed channel.
	late := h.Subscribe("")
	if _, ok := <-late.Events(); ok {
		t.Fatal("late subscription channel should be closed")
	}
	h.Publish(broadcast.Event{Target: "job-1"})
}
