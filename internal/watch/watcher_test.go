package watch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/ipc"
)

// fakeSession emulates the daemon transport: non-follow fetches attach at the
// stream head, follow fetches block until an event arrives, the session
// closes, or the wait hint expires.
type fakeSession struct {
	mu        sync.Mutex
	reqs      []ipc.EventsRequest
	status    *ipc.StatusResponse
	statusErr error
	head      uint64
	stream    chan *ipc.EventsResponse
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeSession(head uint64) *fakeSession {
	return &fakeSession{
		status: &ipc.StatusResponse{Running: true, PID: 42},
		head:   head,
		stream: make(chan *ipc.EventsResponse, 8),
		closed: make(chan struct{}),
	}
}

func (s *fakeSession) Status() (*ipc.StatusResponse, error) {
	if s.statusErr != nil {
		return nil, s.statusErr
	}
	return s.status, nil
}

func (s *fakeSession) Events(req ipc.EventsRequest) (*ipc.EventsResponse, error) {
	s.mu.Lock()
	s.reqs = append(s.reqs, req)
	s.mu.Unlock()

	if !req.Follow {
		return &ipc.EventsResponse{Next: s.head}, nil
	}
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if wait <= 0 {
		wait = 50 * time.Millisecond
	}
	select {
	case <-s.closed:
		return nil, errors.New("session closed")
	case resp := <-s.stream:
		return resp, nil
	case <-time.After(wait):
		return &ipc.EventsResponse{Next: req.Since}, nil
	}
}

func (s *fakeSession) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeSession) requests() []ipc.EventsRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ipc.EventsRequest, len(s.reqs))
	copy(out, s.reqs)
	return out
}

type recorder struct {
	states []State
	recons chan *ipc.StatusResponse
	events chan ipc.Event
}

func newRecorder() *recorder {
	return &recorder{
		recons: make(chan *ipc.StatusResponse, 8),
		events: make(chan ipc.Event, 32),
	}
}

func (r *recorder) options() Options {
	return Options{
		InitialBackoff: 5 * time.Millisecond,
		MaxBackoff:     20 * time.Millisecond,
		JitterFraction: -1,
		WaitMillis:     10,
		OnState:        func(s State) { r.states = append(r.states, s) },
		OnReconcile:    func(st *ipc.StatusResponse) { r.recons <- st },
		OnEvent:        func(evt ipc.Event) { r.events <- evt },
	}
}

func recvEvent(t *testing.T, ch chan ipc.Event) ipc.Event {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return ipc.Event{}
	}
}

func recvReconcile(t *testing.T, ch chan *ipc.StatusResponse) *ipc.StatusResponse {
	t.Helper()
	select {
	case st := <-ch:
		return st
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reconcile")
		return nil
	}
}

func TestWatcherReconcilesAndStreamsFromHead(t *testing.T) {
	sess := newFakeSession(7)
	sess.stream <- &ipc.EventsResponse{
		Events: []ipc.Event{{Sequence: 8, Kind: "job", Target: "job-1", Status: "running", Percent: 50}},
		Next:   8,
	}
	sess.stream <- &ipc.EventsResponse{
		Events: []ipc.Event{{Sequence: 9, Kind: "job", Target: "job-1", Status: "completed", Percent: 100}},
		Next:   9,
	}

	rec := newRecorder()
	w := New(func() (Session, error) { return sess, nil }, rec.options())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	st := recvReconcile(t, rec.recons)
	if !st.Running || st.PID != 42 {
		t.Fatalf("unexpected reconcile status: %+v", st)
	}
	first := recvEvent(t, rec.events)
	if first.Sequence != 8 || first.Status != "running" {
		t.Fatalf("unexpected first event: %+v", first)
	}
	second := recvEvent(t, rec.events)
	if second.Sequence != 9 || second.Status != "completed" {
		t.Fatalf("unexpected second event: %+v", second)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	reqs := sess.requests()
	if len(reqs) < 3 {
		t.Fatalf("expected at least 3 event requests, got %d", len(reqs))
	}
	if reqs[0].Follow {
		t.Fatal("head attach fetch should not follow")
	}
	if reqs[1].Since != 7 || !reqs[1].Follow {
		t.Fatalf("first follow should resume from head 7: %+v", reqs[1])
	}
	if reqs[2].Since != 8 {
		t.Fatalf("cursor should advance to 8, got %d", reqs[2].Since)
	}

	want := []State{StateConnecting, StateConnected, StateDisconnected}
	if len(rec.states) != len(want) {
		t.Fatalf("state sequence %v, want %v", rec.states, want)
	}
	for i, s := range want {
		if rec.states[i] != s {
			t.Fatalf("state sequence %v, want %v", rec.states, want)
		}
	}
}

func TestWatcherRetriesDialWithBackoff(t *testing.T) {
	sess := newFakeSession(0)
	var mu sync.Mutex
	attempts := 0
	dial := func() (Session, error) {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 3 {
			return nil, errors.New("socket missing")
		}
		return sess, nil
	}

	rec := newRecorder()
	w := New(dial, rec.options())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	recvReconcile(t, rec.recons)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	mu.Lock()
	got := attempts
	mu.Unlock()
	if got != 3 {
		t.Fatalf("expected 3 dial attempts, got %d", got)
	}
	want := []State{StateConnecting, StateReconnecting, StateConnected, StateDisconnected}
	if len(rec.states) != len(want) {
		t.Fatalf("state sequence %v, want %v", rec.states, want)
	}
	for i, s := range want {
		if rec.states[i] != s {
			t.Fatalf("state sequence %v, want %v", rec.states, want)
		}
	}
}

func TestWatcherManualReconnectSkipsBackoff(t *testing.T) {
	first := newFakeSession(0)
	second := newFakeSession(0)
	var mu sync.Mutex
	attempts := 0
	dial := func() (Session, error) {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts == 1 {
			return first, nil
		}
		return second, nil
	}

	rec := newRecorder()
	opts := rec.options()
	opts.InitialBackoff = 30 * time.Second
	opts.MaxBackoff = time.Minute
	w := New(dial, opts)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	recvReconcile(t, rec.recons)

	start := time.Now()
	w.Reconnect()
	recvReconcile(t, rec.recons)
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("manual reconnect waited out backoff: %v", elapsed)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	mu.Lock()
	got := attempts
	mu.Unlock()
	if got != 2 {
		t.Fatalf("expected 2 dial attempts, got %d", got)
	}
}

func TestWatcherRedialsAfterStatusFailure(t *testing.T) {
	broken := newFakeSession(0)
	broken.statusErr = errors.New("daemon warming up")
	healthy := newFakeSession(0)
	var mu sync.Mutex
	attempts := 0
	dial := func() (Session, error) {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts == 1 {
			return broken, nil
		}
		return healthy, nil
	}

	rec := newRecorder()
	w := New(dial, rec.options())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	st := recvReconcile(t, rec.recons)
	if !st.Running {
		t.Fatalf("reconcile should come from the healthy session: %+v", st)
	}
	cancel()
	<-done

	select {
	case <-broken.closed:
	default:
		t.Fatal("failed session was not closed")
	}
}

func TestWatcherFiltersByTarget(t *testing.T) {
	sess := newFakeSession(0)
	sess.stream <- &ipc.EventsResponse{
		Events: []ipc.Event{
			{Sequence: 1, Kind: "job", Target: "job-1", Status: "running"},
			{Sequence: 2, Kind: "batch", Target: "batch-9", Status: "running"},
			{Sequence: 3, Kind: "job", Target: "job-2", Status: "completed"},
		},
		Next: 3,
	}

	rec := newRecorder()
	opts := rec.options()
	opts.Target = "job-2"
	w := New(func() (Session, error) { return sess, nil }, opts)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	evt := recvEvent(t, rec.events)
	if evt.Target != "job-2" || evt.Sequence != 3 {
		t.Fatalf("expected only job-2 events, got %+v", evt)
	}
	select {
	case stray := <-rec.events:
		t.Fatalf("unexpected extra event: %+v", stray)
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	<-done
}

func TestBackoffDoublesToCeiling(t *testing.T) {
	w := New(nil, Options{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     time.Second,
		JitterFraction: -1,
	})
	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
		time.Second,
	}
	for i, expect := range want {
		if got := w.backoffFor(i + 1); got != expect {
			t.Fatalf("backoffFor(%d) = %v, want %v", i+1, got, expect)
		}
	}
}

func TestBackoffJitterStaysWithinBounds(t *testing.T) {
	w := New(nil, Options{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     time.Second,
		JitterFraction: 0.5,
	})
	for i := 0; i < 100; i++ {
		got := w.backoffFor(1)
		if got < 50*time.Millisecond || got > 150*time.Millisecond {
			t.Fatalf("jittered delay %v outside [50ms, 150ms]", got)
		}
		capped := w.backoffFor(30)
		if capped < 500*time.Millisecond || capped > 1500*time.Millisecond {
			t.Fatalf("capped jittered delay %v outside [500ms, 1.5s]", capped)
		}
	}
}

func TestWatcherRunRequiresDial(t *testing.T) {
	w := New(nil, Options{})
	if err := w.Run(context.Background()); err == nil {
		t.Fatal("expected error for missing dial function")
	}
}
