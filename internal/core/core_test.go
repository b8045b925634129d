package core_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/archive"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/broadcast"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/core"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/intake"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/job"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/ocr"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/registry"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/testsupport"
)

type stubEngine struct {
	fn func(ctx context.Context, req ocr.Request) (ocr.Result, error)
}

func (s *stubEngine) Name() string { return "stub" }

func (s *stubEngine) Recognize(ctx context.Context, req ocr.Request) (ocr.Result, error) {
	return s.fn(ctx, req)
}

func echoEngine() *stubEngine {
	return &stubEngine{fn: func(ctx context.Context, req ocr.Request) (ocr.Result, error) {
		return ocr.Result{PlainText: "text of " + string(req.Content), Confidence: 0.9}, nil
	}}
}

func startService(t *testing.T, engine ocr.Engine, opts ...testsupport.ConfigOption) *core.Service {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	svc, err := core.New(cfg, engine, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(svc.Stop)
	return svc
}

func submit(t *testing.T, svc *core.Service, source, content string) *job.Job {
	t.Helper()
	j, err := svc.Submit(intake.Submission{CallerID: "tester", Source: source, Content: []byte(content)})
	if err != nil {
		t.Fatalf("Submit(%s): %v", source, err)
	}
	return j
}

func waitForStatus(t *testing.T, svc *core.Service, id string, want job.Status) *job.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		j, err := svc.JobStatus(id)
		if err == nil && j.Status == want {
			return j
		}
		time.Sleep(5 * time.Millisecond)
	}
	j, err := svc.JobStatus(id)
	t.Fatalf("job %s never reached %s (last: %+v, err %v)", id, want, j, err)
	return nil
}

func TestSubmitRunsJobToCompletion(t *testing.T) {
	svc := startService(t, echoEngine())

	j := submit(t, svc, "page.png", "invoice page")
	done := waitForStatus(t, svc, j.ID, job.StatusCompleted)
	if done.Result == nil || done.Result.PlainText != "text of invoice page" {
		t.Fatalf("result not recorded: %+v", done.Result)
	}
	if done.CacheHit {
		t.Fatal("first submission cannot be a cache hit")
	}
}

func TestOperationsRequireRunningService(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	svc, err := core.New(cfg, echoEngine(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := svc.Submit(intake.Submission{Content: []byte("x")}); !errors.Is(err, core.ErrStopped) {
		t.Fatalf("Submit before Start: %v", err)
	}
	if _, err := svc.Cancel("whatever"); !errors.Is(err, core.ErrStopped) {
		t.Fatalf("Cancel before Start: %v", err)
	}

	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	svc.Stop()
	svc.Stop()

	if _, err := svc.Submit(intake.Submission{Content: []byte("x")}); !errors.Is(err, core.ErrStopped) {
		t.Fatalf("Submit after Stop: %v", err)
	}
}

func TestResubmitIsServedFromCache(t *testing.T) {
	svc := startService(t, echoEngine())

	first := submit(t, svc, "a.png", "same pixels")
	waitForStatus(t, svc, first.ID, job.StatusCompleted)

	second := submit(t, svc, "b.png", "same pixels")
	if second.Status != job.StatusCompleted || !second.CacheHit {
		t.Fatalf("expected synchronous cache hit, got %+v", second)
	}
	if second.Result == nil || second.Result.PlainText != "text of same pixels" {
		t.Fatalf("cached result missing: %+v", second.Result)
	}
	if stats := svc.CacheStats(); stats.Hits != 1 {
		t.Fatalf("expected one recorded hit, got %+v", stats)
	}
}

func TestCancelQueuedJob(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	engine := &stubEngine{fn: func(ctx context.Context, req ocr.Request) (ocr.Result, error) {
		if string(req.Content) == "blocker" {
			close(started)
			<-release
		}
		return ocr.Result{PlainText: "ok"}, nil
	}}
	svc := startService(t, engine, testsupport.WithWorkers(1))
	defer close(release)

	submit(t, svc, "blocker.png", "blocker")
	<-started
	queued := submit(t, svc, "victim.png", "victim content")

	cancelled, err := svc.Cancel(queued.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled.Status != job.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
	for _, view := range svc.QueueList() {
		if view.JobID == queued.ID {
			t.Fatal("cancelled entry still listed in queue")
		}
	}
}

func TestCancelQueuedPrimaryPromotesWaiter(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	engine := &stubEngine{fn: func(ctx context.Context, req ocr.Request) (ocr.Result, error) {
		if string(req.Content) == "blocker" {
			close(started)
			<-release
		}
		return ocr.Result{PlainText: "text of " + string(req.Content)}, nil
	}}
	svc := startService(t, engine, testsupport.WithWorkers(1))

	submit(t, svc, "blocker.png", "blocker")
	<-started
	primary := submit(t, svc, "first.png", "shared scan")
	waiter := submit(t, svc, "second.png", "shared scan")

	if _, err := svc.Cancel(primary.ID); err != nil {
		t.Fatalf("Cancel primary: %v", err)
	}
	close(release)

	done := waitForStatus(t, svc, waiter.ID, job.StatusCompleted)
	if done.Result == nil || done.Result.PlainText != "text of shared scan" {
		t.Fatalf("promoted waiter lost the work: %+v", done.Result)
	}
	gone := waitForStatus(t, svc, primary.ID, job.StatusCancelled)
	if gone.Result != nil {
		t.Fatal("cancelled primary must not carry a result")
	}
}

func TestCancelRunningSuppressesResult(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	engine := &stubEngine{fn: func(ctx context.Context, req ocr.Request) (ocr.Result, error) {
		close(started)
		<-release
		return ocr.Result{PlainText: "late result"}, nil
	}}
	svc := startService(t, engine, testsupport.WithWorkers(1))

	j := submit(t, svc, "slow.png", "slow content")
	<-started

	snap, err := svc.Cancel(j.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if snap.Status != job.StatusRunning || !snap.ResultSuppressed {
		t.Fatalf("expected running suppressed job, got %+v", snap)
	}
	close(release)

	done := waitForStatus(t, svc, j.ID, job.StatusCompleted)
	if done.Result != nil {
		t.Fatal("suppressed result must be withheld from status reads")
	}

	// The execution still fed the cache, so identical content is a hit.
	hit := submit(t, svc, "again.png", "slow content")
	if hit.Status != job.StatusCompleted || hit.Result == nil || hit.Result.PlainText != "late result" {
		t.Fatalf("suppressed execution should still serve later submissions: %+v", hit)
	}
}

func TestCancelTerminalJobRejected(t *testing.T) {
	svc := startService(t, echoEngine())

	j := submit(t, svc, "done.png", "quick")
	waitForStatus(t, svc, j.ID, job.StatusCompleted)

	if _, err := svc.Cancel(j.ID); !errors.Is(err, registry.ErrNotCancellable) {
		t.Fatalf("expected not cancellable, got %v", err)
	}
	if _, err := svc.Cancel("no-such-job"); !errors.Is(err, registry.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestBatchLifecycle(t *testing.T) {
	svc := startService(t, echoEngine())

	receipt, err := svc.SubmitBatch(intake.BatchRequest{
		CallerID: "tester",
		Items: []intake.BatchItem{
			{Source: "p1.png", Content: []byte("page one")},
			{Source: "p2.png", Content: []byte("page two")},
		},
	})
	if err != nil {
		t.Fatalf("SubmitBatch: %v", err)
	}
	if len(receipt.JobIDs) != 2 {
		t.Fatalf("expected 2 job ids, got %d", len(receipt.JobIDs))
	}
	for _, id := range receipt.JobIDs {
		waitForStatus(t, svc, id, job.StatusCompleted)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		view, err := svc.BatchStatus(receipt.Batch.ID)
		if err != nil {
			t.Fatalf("BatchStatus: %v", err)
		}
		if view.Batch.Done {
			if view.Batch.Completed != 2 || view.Batch.Failed != 0 {
				t.Fatalf("unexpected counters: %+v", view.Batch)
			}
			if len(view.Jobs) != 2 {
				t.Fatalf("expected 2 member jobs, got %d", len(view.Jobs))
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("batch never became done: %+v", view.Batch)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestEventsCoverJobLifecycle(t *testing.T) {
	svc := startService(t, echoEngine())

	j := submit(t, svc, "page.png", "watched content")
	waitForStatus(t, svc, j.ID, job.StatusCompleted)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	events, _, err := svc.Events(ctx, 0, 100, false)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	var sawQueued, sawCompleted bool
	for _, evt := range events {
		if evt.Kind != broadcast.KindJob || evt.Target != j.ID {
			continue
		}
		switch evt.Status {
		case string(job.StatusQueued):
			sawQueued = true
		case string(job.StatusCompleted):
			sawCompleted = true
		}
	}
	if !sawQueued || !sawCompleted {
		t.Fatalf("lifecycle events missing (queued=%v completed=%v)", sawQueued, sawCompleted)
	}
}

func TestSubscribeReceivesTargetedEvents(t *testing.T) {
	release := make(chan struct{})
	engine := &stubEngine{fn: func(ctx context.Context, req ocr.Request) (ocr.Result, error) {
		<-release
		return ocr.Result{PlainText: "done"}, nil
	}}
	svc := startService(t, engine, testsupport.WithWorkers(1))

	j := submit(t, svc, "page.png", "subscribed content")
	sub := svc.Subscribe(j.ID)
	defer sub.Close()
	close(release)

	deadline := time.After(5 * time.Second)
	for {
		select {
		case evt, ok := <-sub.Events():
			if !ok {
				t.Fatal("subscription closed before terminal event")
			}
			if evt.Target == j.ID && evt.Status == string(job.StatusCompleted) {
				return
			}
		case <-deadline:
			t.Fatal("no terminal event delivered")
		}
	}
}

func TestHistoryRecordsTerminalJobs(t *testing.T) {
	svc := startService(t, echoEngine())

	j := submit(t, svc, "keep.png", "archived content")
	waitForStatus(t, svc, j.ID, job.StatusCompleted)

	ctx := context.Background()
	deadline := time.Now().Add(5 * time.Second)
	for {
		records, err := svc.History(ctx, archive.HistoryFilter{})
		if err != nil {
			t.Fatalf("History: %v", err)
		}
		if len(records) == 1 {
			if records[0].ID != j.ID || records[0].Status != job.StatusCompleted {
				t.Fatalf("unexpected record: %+v", records[0])
			}
			if records[0].PlainText != "text of archived content" {
				t.Fatalf("archived text missing: %q", records[0].PlainText)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("terminal job never archived (records: %d)", len(records))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHistoryDisabled(t *testing.T) {
	svc := startService(t, echoEngine(), testsupport.WithArchiveDisabled())

	if _, err := svc.History(context.Background(), archive.HistoryFilter{}); !errors.Is(err, core.ErrHistoryDisabled) {
		t.Fatalf("expected history disabled, got %v", err)
	}
}

func TestStatusSnapshot(t *testing.T) {
	release := make(chan struct{})
	engine := &stubEngine{fn: func(ctx context.Context, req ocr.Request) (ocr.Result, error) {
		<-release
		return ocr.Result{}, nil
	}}
	svc := startService(t, engine, testsupport.WithWorkers(2))
	defer close(release)

	for i := 0; i < 3; i++ {
		submit(t, svc, fmt.Sprintf("p%d.png", i), fmt.Sprintf("content %d", i))
	}

	st := svc.Status()
	if !st.Running {
		t.Fatal("service should report running")
	}
	if st.Engine != "stub" {
		t.Fatalf("engine name %q", st.Engine)
	}
	if len(st.Workers) != 2 {
		t.Fatalf("expected 2 worker states, got %d", len(st.Workers))
	}
	total := 0
	for _, n := range st.JobCounts {
		total += n
	}
	if total != 3 {
		t.Fatalf("expected 3 registry jobs, got %d (%v)", total, st.JobCounts)
	}
	if st.StartedAt.IsZero() {
		t.Fatal("start time not recorded")
	}
}
