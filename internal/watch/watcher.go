// Package watch implements the consumer half of the progress broadcast
// contract: a reconnecting event watcher with jittered exponential backoff
// and a full status reconciliation after every successful (re)connect.
//
// The broadcast stream is best-effort and latest-wins, so the watcher never
// trusts it for catch-up. Each connection starts with a Status fetch for the
// authoritative state, then resumes event delivery from the stream head;
// events missed while disconnected are summarized by that fetch, not
// replayed.
package watch

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/ipc"
)

// State describes the watcher's connection lifecycle.
type State string

const (
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateDisconnected State = "disconnected"
)

const (
	defaultInitialBackoff = 500 * time.Millisecond
	defaultMaxBackoff     = 15 * time.Second
	defaultJitterFraction = 0.2
	defaultPollLimit      = 200
	defaultWaitMillis     = 1000
)

// Session is the transport surface the watcher drives. *ipc.Client
// satisfies it.
type Session interface {
	Status() (*ipc.StatusResponse, error)
	Events(req ipc.EventsRequest) (*ipc.EventsResponse, error)
	Close() error
}

// Dial opens a fresh session. It is invoked on every connection attempt.
type Dial func() (Session, error)

// Options tunes watcher behavior. Zero values take defaults.
type Options struct {
	// Target restricts delivery to events for one job or batch id.
	Target string

	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// JitterFraction spreads each delay by +/- this fraction so a fleet of
	// watchers does not redial in lockstep. Zero takes the default, negative
	// disables jitter.
	JitterFraction float64

	PollLimit  int
	WaitMillis int

	OnState     func(State)
	OnReconcile func(*ipc.StatusResponse)
	OnEvent     func(ipc.Event)
}

// Watcher maintains a live event stream against a daemon session.
type Watcher struct {
	dial Dial
	opts Options

	mu      sync.Mutex
	state   State
	session Session

	kick chan struct{}
}

// New constructs a watcher. Run must be called to start it.
func New(dial Dial, opts Options) *Watcher {
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = defaultInitialBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = defaultMaxBackoff
	}
	if opts.MaxBackoff < opts.InitialBackoff {
		opts.MaxBackoff = opts.InitialBackoff
	}
	if opts.JitterFraction == 0 || opts.JitterFraction >= 1 {
		opts.JitterFraction = defaultJitterFraction
	}
	if opts.JitterFraction < 0 {
		opts.JitterFraction = 0
	}
	if opts.PollLimit <= 0 {
		opts.PollLimit = defaultPollLimit
	}
	if opts.WaitMillis <= 0 {
		opts.WaitMillis = defaultWaitMillis
	}
	return &Watcher{
		dial:  dial,
		opts:  opts,
		state: StateDisconnected,
		kick:  make(chan struct{}, 1),
	}
}

// State reports the last observed connection state.
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Reconnect drops the current session, if any, and dials again without
// waiting out the remaining backoff. Safe to call from any goroutine,
// including while a fetch is blocked.
func (w *Watcher) Reconnect() {
	w.mu.Lock()
	sess := w.session
	w.session = nil
	w.mu.Unlock()
	if sess != nil {
		_ = sess.Close()
	}
	select {
	case w.kick <- struct{}{}:
	default:
	}
}

// Run drives the connect/consume/backoff loop until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if w.dial == nil {
		return errors.New("watch: dial function is required")
	}
	failures := 0
	for {
		if ctx.Err() != nil {
			w.setState(StateDisconnected)
			return nil
		}
		if failures == 0 {
			w.setState(StateConnecting)
		} else {
			w.setState(StateReconnecting)
		}

		sess, err := w.dial()
		if err == nil {
			w.trackSession(sess)
			w.consume(ctx, sess)
			w.dropSession(sess)
			if w.State() == StateConnected {
				failures = 0
			}
		}
		if ctx.Err() != nil {
			w.setState(StateDisconnected)
			return nil
		}
		failures++
		if !w.sleep(ctx, w.backoffFor(failures)) {
			w.setState(StateDisconnected)
			return nil
		}
	}
}

// consume reconciles via Status, then follows the event stream from its
// current head until the session fails or ctx ends.
func (w *Watcher) consume(ctx context.Context, sess Session) {
	status, err := sess.Status()
	if err != nil {
		return
	}
	w.setState(StateConnected)
	if w.opts.OnReconcile != nil {
		w.opts.OnReconcile(status)
	}

	head, err := sess.Events(ipc.EventsRequest{Limit: 1})
	if err != nil || head == nil {
		return
	}
	cursor := head.Next

	for {
		if ctx.Err() != nil {
			return
		}
		resp, err := sess.Events(ipc.EventsRequest{
			Since:      cursor,
			Limit:      w.opts.PollLimit,
			Follow:     true,
			WaitMillis: w.opts.WaitMillis,
		})
		if err != nil || resp == nil {
			return
		}
		for _, evt := range resp.Events {
			if w.opts.Target != "" && evt.Target != w.opts.Target {
				continue
			}
			if w.opts.OnEvent != nil {
				w.opts.OnEvent(evt)
			}
		}
		if resp.Next > cursor {
			cursor = resp.Next
		}
	}
}

func (w *Watcher) setState(next State) {
	w.mu.Lock()
	changed := w.state != next
	w.state = next
	w.mu.Unlock()
	if changed && w.opts.OnState != nil {
		w.opts.OnState(next)
	}
}

func (w *Watcher) trackSession(sess Session) {
	w.mu.Lock()
	w.session = sess
	w.mu.Unlock()
}

func (w *Watcher) dropSession(sess Session) {
	w.mu.Lock()
	owned := w.session == sess
	if owned {
		w.session = nil
	}
	w.mu.Unlock()
	if owned {
		_ = sess.Close()
	}
}

// backoffFor doubles from the initial delay to the ceiling, then spreads the
// result by the jitter fraction.
func (w *Watcher) backoffFor(failures int) time.Duration {
	delay := w.opts.InitialBackoff
	for i := 1; i < failures; i++ {
		delay *= 2
		if delay >= w.opts.MaxBackoff {
			delay = w.opts.MaxBackoff
			break
		}
	}
	if delay > w.opts.MaxBackoff {
		delay = w.opts.MaxBackoff
	}
	if f := w.opts.JitterFraction; f > 0 {
		span := float64(delay) * f
		delay = time.Duration(float64(delay) - span + rand.Float64()*2*span)
	}
	return delay
}

// sleep waits out a backoff delay. A manual Reconnect kick skips the rest of
// the delay. Returns false when ctx ended.
func (w *Watcher) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-w.kick:
		return ctx.Err() == nil
	case <-timer.C:
		return true
	}
}
