package registry_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/job"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/ocr"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/registry"
)

func newJob(id string) *job.Job {
	return &job.Job{
		ID:       id,
		Mode:     ocr.ModeBasic,
		Priority: job.PriorityNormal,
		Status:   job.StatusQueued,
	}
}

func TestCreateAndGetJob(t *testing.T) {
	r := registry.New(0)
	if err := r.CreateJob(newJob("job-1")); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := r.CreateJob(newJob("job-1")); !errors.Is(err, registry.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	got, err := r.GetJob("job-1")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != job.StatusQueued || got.CreatedAt.IsZero() {
		t.Fatalf("unexpected record %+v", got)
	}
	if _, err := r.GetJob("missing"); !errors.Is(err, registry.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetJobReturnsSnapshot(t *testing.T) {
	r := registry.New(0)
	if err := r.CreateJob(newJob("job-1")); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	snap, _ := r.GetJob("job-1")
	snap.Status = job.StatusFailed
	again, _ := r.GetJob("job-1")
	if again.Status != job.StatusQueued {
		t.Fatal("mutating a snapshot leaked into the store")
	}
}

func TestLifecycleTransitions(t *testing.T) {
	r := registry.New(0)
	if err := r.CreateJob(newJob("job-1")); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	running, err := r.MarkRunning("job-1")
	if err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}
	if running.Status != job.StatusRunning || running.Attempts != 1 || running.StartedAt == nil {
		t.Fatalf("unexpected running record %+v", running)
	}

	done, err := r.Complete("job-1", &ocr.Result{PlainText: "text"}, false)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if done.Status != job.StatusCompleted || done.Result == nil || done.FinishedAt == nil || done.Progress != 100 {
		t.Fatalf("unexpected completed record %+v", done)
	}

	if _, err := r.MarkRunning("job-1"); !errors.Is(err, registry.ErrIllegalTransition) {
		t.Fatalf("expected illegal transition out of completed, got %v", err)
	}
	if _, err := r.Fail("job-1", "boom"); !errors.Is(err, registry.ErrIllegalTransition) {
		t.Fatalf("expected illegal transition completed->failed, got %v", err)
	}
}

func TestMarkRunningCountsRetryAttempts(t *testing.T) {
	r := registry.New(0)
	if err := r.CreateJob(newJob("job-1")); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	first, _ := r.MarkRunning("job-1")
	second, err := r.MarkRunning("job-1")
	if err != nil {
		t.Fatalf("re-running for retry should be legal: %v", err)
	}
	if second.Attempts != 2 {
		t.Fatalf("expected attempt 2, got %d", second.Attempts)
	}
	if !second.StartedAt.Equal(*first.StartedAt) {
		t.Fatal("retry must not reset StartedAt")
	}
}

func TestCancelQueuedOnly(t *testing.T) {
	r := registry.New(0)
	if err := r.CreateJob(newJob("queued")); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	cancelled, err := r.CancelQueued("queued")
	if err != nil {
		t.Fatalf("CancelQueued: %v", err)
	}
	if cancelled.Status != job.StatusCancelled || cancelled.FinishedAt == nil {
		t.Fatalf("unexpected cancelled record %+v", cancelled)
	}

	if err := r.CreateJob(newJob("running")); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if _, err := r.MarkRunning("running"); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}
	if _, err := r.CancelQueued("running"); !errors.Is(err, registry.ErrNotCancellable) {
		t.Fatalf("expected ErrNotCancellable for running job, got %v", err)
	}
	if err := r.SuppressResult("running"); err != nil {
		t.Fatalf("SuppressResult: %v", err)
	}
	got, _ := r.GetJob("running")
	if !got.ResultSuppressed || got.Status != job.StatusRunning {
		t.Fatalf("suppression must not change status: %+v", got)
	}
}

func TestProgressMonotonicClamp(t *testing.T) {
	r := registry.New(0)
	if err := r.CreateJob(newJob("job-1")); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	// Progress updates before Running are ignored.
	if err := r.SetProgress("job-1", 50); err != nil {
		t.Fatalf("SetProgress: %v", err)
	}
	got, _ := r.GetJob("job-1")
	if got.Progress != 0 {
		t.Fatalf("queued job progress should stay 0, got %v", got.Progress)
	}

	r.MarkRunning("job-1")
	r.SetProgress("job-1", 40)
	r.SetProgress("job-1", 25) // below high-water mark, ignored
	got, _ = r.GetJob("job-1")
	if got.Progress != 40 {
		t.Fatalf("progress regressed: %v", got.Progress)
	}
	r.SetProgress("job-1", 150)
	got, _ = r.GetJob("job-1")
	if got.Progress != 100 {
		t.Fatalf("progress should clamp to 100, got %v", got.Progress)
	}
}

func TestFailKeepsProgressHighWater(t *testing.T) {
	r := registry.New(0)
	r.CreateJob(newJob("job-1"))
	r.MarkRunning("job-1")
	r.SetProgress("job-1", 70)
	failed, err := r.Fail("job-1", "engine exploded")
	if err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if failed.Progress != 70 || failed.ErrorMessage != "engine exploded" {
		t.Fatalf("unexpected failed record %+v", failed)
	}
}

func TestMarkCountedIsOneShot(t *testing.T) {
	r := registry.New(0)
	r.CreateJob(newJob("job-1"))
	first, err := r.MarkCounted("job-1")
	if err != nil || !first {
		t.Fatalf("first MarkCounted = (%v, %v)", first, err)
	}
	second, err := r.MarkCounted("job-1")
	if err != nil || second {
		t.Fatalf("second MarkCounted = (%v, %v), want false", second, err)
	}
}

func TestOnChangeFiresWithSnapshots(t *testing.T) {
	r := registry.New(0)
	var mu sync.Mutex
	var seen []job.Status
	r.SetOnChange(func(j *job.Job) {
		mu.Lock()
		seen = append(seen, j.Status)
		mu.Unlock()
	})

	r.CreateJob(newJob("job-1"))
	r.MarkRunning("job-1")
	r.SetProgress("job-1", 10)
	r.SetProgress("job-1", 5) // ignored, must not fire
	r.Complete("job-1", &ocr.Result{}, false)

	mu.Lock()
	defer mu.Unlock()
	want := []job.Status{job.StatusQueued, job.StatusRunning, job.StatusRunning, job.StatusCompleted}
	if len(seen) != len(want) {
		t.Fatalf("expected %d notifications, got %d (%v)", len(want), len(seen), seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("notification %d = %s, want %s", i, seen[i], want[i])
		}
	}
}

func TestPurgeTerminal(t *testing.T) {
	r := registry.New(0)
	r.CreateJob(newJob("old"))
	r.MarkRunning("old")
	r.Complete("old", &ocr.Result{}, false)

	r.CreateJob(newJob("live"))
	r.MarkRunning("live")

	// Everything terminal is older than a zero retention window.
	time.Sleep(5 * time.Millisecond)
	if purged := r.PurgeTerminal(0); purged != 1 {
		t.Fatalf("expected 1 purged, got %d", purged)
	}
	if _, err := r.GetJob("old"); !errors.Is(err, registry.ErrNotFound) {
		t.Fatalf("terminal job should be purged, got %v", err)
	}
	if _, err := r.GetJob("live"); err != nil {
		t.Fatalf("running job must survive purge: %v", err)
	}
}

func TestListJobsFilters(t *testing.T) {
	r := registry.New(0)
	for i := 0; i < 5; i++ {
		j := newJob(fmt.Sprintf("job-%d", i))
		if i < 2 {
			j.BatchID = "batch-1"
		}
		r.CreateJob(j)
	}
	r.MarkRunning("job-4")

	batchJobs := r.ListJobs(registry.ListFilter{BatchID: "batch-1"})
	if len(batchJobs) != 2 {
		t.Fatalf("expected 2 batch jobs, got %d", len(batchJobs))
	}
	queued := r.ListJobs(registry.ListFilter{Statuses: []job.Status{job.StatusQueued}})
	if len(queued) != 4 {
		t.Fatalf("expected 4 queued, got %d", len(queued))
	}
	limited := r.ListJobs(registry.ListFilter{Limit: 3})
	if len(limited) != 3 {
		t.Fatalf("expected limit 3, got %d", len(limited))
	}

	counts := r.Counts()
	if counts[job.StatusQueued] != 4 || counts[job.StatusRunning] != 1 {
		t.Fatalf("unexpected counts %v", counts)
	}
}

func TestBatchLifecycle(t *testing.T) {
	r := registry.New(0)
	b := &job.Batch{ID: "batch-1", Total: 3, JobIDs: []string{"a", "b", "c"}}
	if err := r.CreateBatch(b); err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}
	if err := r.CreateBatch(b); !errors.Is(err, registry.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	updated, err := r.UpdateBatch("batch-1", func(b *job.Batch) {
		b.Completed++
	})
	if err != nil {
		t.Fatalf("UpdateBatch: %v", err)
	}
	if updated.Completed != 1 {
		t.Fatalf("unexpected batch %+v", updated)
	}

	got, err := r.GetBatch("batch-1")
	if err != nil {
		t.Fatalf("GetBatch: %v", err)
	}
	if got.Completed != 1 || got.Total != 3 {
		t.Fatalf("unexpected batch %+v", got)
	}

	if _, err := r.GetBatch("nope"); !errors.Is(err, registry.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestConcurrentMutationsSettle(t *testing.T) {
	r := registry.New(0)
	const n = 64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("job-%d", i)
		r.CreateJob(newJob(id))
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			r.MarkRunning(id)
			r.SetProgress(id, 50)
			r.Complete(id, &ocr.Result{}, false)
		}(id)
	}
	wg.Wait()
	counts := r.Counts()
	if counts[job.StatusCompleted] != n {
		t.Fatalf("expected %d completed, got %v", n, counts)
	}
}
