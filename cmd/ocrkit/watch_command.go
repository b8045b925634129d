package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/rpc"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/ipc"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/job"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/watch"
)

// targetProbeInterval paces the direct target re-checks that back up the
// best-effort event stream.
const targetProbeInterval = 5 * time.Second

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "watch [id]",
		Short: "Stream progress events, optionally for one job or batch",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := ""
			if len(args) == 1 {
				target = strings.TrimSpace(args[0])
			}

			sigCtx, stopSignals := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stopSignals()

			done, err := probeStart(cmd, ctx, target, asJSON)
			if err != nil || done {
				return err
			}

			runCtx, cancel := context.WithCancel(sigCtx)
			defer cancel()

			printer := newEventPrinter(cmd, target, asJSON)

			var finishOnce sync.Once
			finish := func(line string) {
				finishOnce.Do(func() {
					printer.finish(line)
					cancel()
				})
			}

			if target != "" {
				go probeLoop(runCtx, ctx, target, finish)
			}

			watcher := watch.New(func() (watch.Session, error) {
				client, err := ipc.Dial(ctx.socketPath())
				if err != nil {
					return nil, err
				}
				return client, nil
			}, watch.Options{
				Target:      target,
				OnState:     printer.state,
				OnReconcile: printer.reconcile,
				OnEvent: func(evt ipc.Event) {
					if line, terminal := printer.event(evt); terminal {
						finish(line)
					}
				},
			})

			err = watcher.Run(runCtx)
			printer.close()
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Stream events as JSON, one object per line")
	return cmd
}

// probeStart dials once so an unreachable daemon fails fast instead of
// spinning in the retry loop, and reports whether the target already
// finished before the stream begins.
func probeStart(cmd *cobra.Command, ctx *commandContext, target string, asJSON bool) (bool, error) {
	client, err := ctx.dialClient()
	if err != nil {
		return false, err
	}
	defer client.Close()
	if target == "" {
		return false, nil
	}
	line, done, err := lookupTerminal(client, target)
	if err != nil {
		return false, err
	}
	if done {
		out := cmd.OutOrStdout()
		if asJSON {
			out = cmd.ErrOrStderr()
		}
		fmt.Fprintln(out, line)
	}
	return done, nil
}

// probeLoop re-checks the watched target directly at a fixed cadence. The
// event stream is best effort: a terminal transition can slip past it during
// a reconnect gap or ring overflow, and the poll guarantees the command
// still exits.
func probeLoop(runCtx context.Context, ctx *commandContext, target string, finish func(string)) {
	ticker := time.NewTicker(targetProbeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-runCtx.Done():
			return
		case <-ticker.C:
		}
		client, err := ctx.dialClient()
		if err != nil {
			continue
		}
		line, done, err := lookupTerminal(client, target)
		_ = client.Close()
		if err == nil && done {
			finish(line)
			return
		}
	}
}

// lookupTerminal resolves an id as a job first, then as a batch, and
// reports whether it reached a terminal state.
func lookupTerminal(client *ipc.Client, target string) (string, bool, error) {
	jobResp, jobErr := client.JobStatus(target)
	if jobErr == nil {
		j := jobResp.Job
		st, ok := job.ParseStatus(j.Status)
		if !ok || !st.IsTerminal() {
			return "", false, nil
		}
		return finishedJobLine(j), true, nil
	}
	if !isServerReply(jobErr) {
		return "", false, jobErr
	}
	batchResp, batchErr := client.BatchStatus(target)
	if batchErr == nil {
		b := batchResp.Batch
		if !b.Done {
			return "", false, nil
		}
		return finishedBatchLine(b), true, nil
	}
	if !isServerReply(batchErr) {
		return "", false, batchErr
	}
	return "", false, fmt.Errorf("no job or batch with id %s", target)
}

// isServerReply reports whether the daemon itself answered with an error,
// as opposed to a transport failure.
func isServerReply(err error) bool {
	var serverErr rpc.ServerError
	return errors.As(err, &serverErr)
}

func finishedJobLine(j ipc.Job) string {
	switch j.Status {
	case string(job.StatusCompleted):
		if j.CacheHit {
			return fmt.Sprintf("Job %s completed (cache hit)", j.ID)
		}
		return fmt.Sprintf("Job %s completed", j.ID)
	case string(job.StatusFailed):
		if j.ErrorMessage != "" {
			return fmt.Sprintf("Job %s failed: %s", j.ID, j.ErrorMessage)
		}
		return fmt.Sprintf("Job %s failed", j.ID)
	default:
		return fmt.Sprintf("Job %s %s", j.ID, j.Status)
	}
}

func finishedBatchLine(b ipc.Batch) string {
	if b.Failed > 0 {
		return fmt.Sprintf("Batch %s complete: %d/%d done, %d failed", b.ID, b.Completed, b.Total, b.Failed)
	}
	return fmt.Sprintf("Batch %s complete: %d/%d done", b.ID, b.Completed, b.Total)
}

// eventPrinter renders the stream in one of three modes: NDJSON, a single
// progress bar when one target is watched on a terminal, or plain
// timestamped lines.
type eventPrinter struct {
	out    io.Writer
	errOut io.Writer
	target string
	json   bool
	enc    *json.Encoder
	bar    *progressbar.ProgressBar

	lost bool
	done atomic.Bool
}

func newEventPrinter(cmd *cobra.Command, target string, asJSON bool) *eventPrinter {
	p := &eventPrinter{
		out:    cmd.OutOrStdout(),
		errOut: cmd.ErrOrStderr(),
		target: target,
		json:   asJSON,
	}
	if asJSON {
		p.enc = json.NewEncoder(p.out)
		return p
	}
	if target != "" && writerIsTerminal(p.out) {
		p.bar = progressbar.NewOptions(100,
			progressbar.OptionSetWriter(p.out),
			progressbar.OptionSetDescription(shortID(target)),
			progressbar.OptionSetWidth(30),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionSetRenderBlankState(true),
			progressbar.OptionClearOnFinish(),
		)
	}
	return p
}

// state surfaces connection transitions on stderr. The watcher dedupes
// repeats, so an outage prints one line, not one per retry.
func (p *eventPrinter) state(s watch.State) {
	switch s {
	case watch.StateReconnecting:
		p.lost = true
		fmt.Fprintln(p.errOut, "Daemon unavailable, retrying...")
	case watch.StateConnected:
		if p.lost {
			p.lost = false
			fmt.Fprintln(p.errOut, "Reconnected to daemon")
		}
	}
}

func (p *eventPrinter) reconcile(status *ipc.StatusResponse) {
	if status == nil || status.Service.Running {
		return
	}
	fmt.Fprintln(p.errOut, "Note: job processing is stopped; events resume when it starts")
}

// event renders one event. For a watched target it reports whether the
// event is terminal, together with the closing line to print.
func (p *eventPrinter) event(evt ipc.Event) (string, bool) {
	if p.done.Load() {
		return "", false
	}
	switch {
	case p.enc != nil:
		_ = p.enc.Encode(evt)
	case p.bar != nil:
		p.bar.Describe(fmt.Sprintf("%-10s %s", evt.Status, shortID(evt.Target)))
		_ = p.bar.Set(int(evt.Percent))
	default:
		fmt.Fprintln(p.out, eventLine(evt))
	}
	if p.target == "" || !eventTerminal(evt) {
		return "", false
	}
	return eventFinishLine(evt), true
}

// finish clears a live bar and prints the closing line. In JSON mode the
// line goes to stderr so stdout stays machine-readable.
func (p *eventPrinter) finish(line string) {
	p.done.Store(true)
	if p.bar != nil {
		_ = p.bar.Clear()
	}
	out := p.out
	if p.json {
		out = p.errOut
	}
	fmt.Fprintln(out, line)
}

// close ends a live bar line when the stream stops without a closing line,
// such as on Ctrl-C.
func (p *eventPrinter) close() {
	if p.bar != nil && !p.done.Load() {
		fmt.Fprintln(p.out)
	}
}

func eventLine(evt ipc.Event) string {
	line := fmt.Sprintf("%s %-5s %-8s %-10s %4s",
		formatClock(evt.Timestamp), evt.Kind, shortID(evt.Target), evt.Status, formatPercent(evt.Percent))
	if evt.Message != "" {
		line += "  " + evt.Message
	}
	return line
}

func eventTerminal(evt ipc.Event) bool {
	if evt.Kind == "batch" {
		return evt.Status == "completed"
	}
	st, ok := job.ParseStatus(evt.Status)
	return ok && st.IsTerminal()
}

func eventFinishLine(evt ipc.Event) string {
	if evt.Kind == "batch" {
		if evt.Message != "" {
			return fmt.Sprintf("Batch %s complete: %s", evt.Target, evt.Message)
		}
		return fmt.Sprintf("Batch %s complete", evt.Target)
	}
	if evt.Status == string(job.StatusFailed) && evt.Message != "" {
		return fmt.Sprintf("Job %s failed: %s", evt.Target, evt.Message)
	}
	return fmt.Sprintf("Job %s %s", evt.Target, evt.Status)
}
