package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/daemonctl"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/ipc"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/job"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	var startDiagnostic bool
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the ocrkit daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable: %w", err)
			}
			result, err := daemonctl.EnsureStarted(ctx.socketPath(), exe, daemonLaunchOptions(ctx, startDiagnostic), 10*time.Second)
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			if result.Launched {
				fmt.Fprintln(stdout, "Launching daemon...")
			}
			reportStartState(stdout, result, "Daemon started", "Daemon already running")
			return nil
		},
	}
	startCmd.Flags().BoolVar(&startDiagnostic, "diagnostic", false, "Enable diagnostic mode with a separate DEBUG log")

	var stopForce bool
	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the ocrkit daemon (terminates the process)",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			grace := 5 * time.Second
			if stopForce {
				grace = 0
			}
			result, err := daemonctl.StopAndTerminate(ctx.socketPath(), ctx.configValue(), grace)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if !result.StopAcknowledged {
				fmt.Fprintln(stdout, "Stop request sent")
			} else {
				fmt.Fprintln(stdout, "Stopping job processing...")
			}
			if result.ForcedKill && result.PID > 0 {
				fmt.Fprintf(stdout, "Stopping daemon process (pid %d)...\n", result.PID)
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}
	stopCmd.Flags().BoolVar(&stopForce, "force", false, "Kill the daemon process without waiting for a graceful stop")

	var restartDiagnostic bool
	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the ocrkit daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable: %w", err)
			}
			result, err := daemonctl.Restart(ctx.socketPath(), ctx.configValue(), exe, daemonLaunchOptions(ctx, restartDiagnostic), 5*time.Second, 10*time.Second)
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			if result.WasRunning {
				if result.Stop.ForcedKill && result.Stop.PID > 0 {
					fmt.Fprintf(stdout, "Stopping daemon process (pid %d)...\n", result.Stop.PID)
				}
				fmt.Fprintln(stdout, "Daemon stopped")
			}
			reportStartState(stdout, result.Start, "Daemon restarted", "Daemon restarted")
			return nil
		},
	}
	restartCmd.Flags().BoolVar(&restartDiagnostic, "diagnostic", false, "Enable diagnostic mode with a separate DEBUG log")

	var statusJSON bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, dependency, and service status",
		RunE: func(cmd *cobra.Command, args []string) error {
			statusResp, err := daemonctl.FetchStatus(ctx.socketPath(), ctx.configValue())
			if err != nil {
				return err
			}
			if statusJSON {
				return writeJSON(cmd, statusResp)
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)
			printStatusReport(stdout, statusResp, colorize)
			return nil
		},
	}
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output status as JSON")

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func printStatusReport(stdout io.Writer, status *ipc.StatusResponse, colorize bool) {
	fmt.Fprintln(stdout, sectionHeader("Daemon", colorize))
	if status.Running {
		fmt.Fprintln(stdout, renderStatusLine("Running", statusOK, fmt.Sprintf("pid %d", status.PID), colorize))
	} else {
		fmt.Fprintln(stdout, renderStatusLine("Running", statusWarn, "not running", colorize))
	}
	fmt.Fprintln(stdout, renderKV("Socket", status.SocketPath))
	fmt.Fprintln(stdout, renderKV("Lock", status.LockPath))
	if status.ArchivePath != "" {
		fmt.Fprintln(stdout, renderKV("Archive", status.ArchivePath))
	}
	fmt.Fprintln(stdout)

	fmt.Fprintln(stdout, sectionHeader("Dependencies", colorize))
	for _, line := range dependencyLines(status.Dependencies, colorize) {
		fmt.Fprintln(stdout, line)
	}
	fmt.Fprintln(stdout)

	fmt.Fprintln(stdout, sectionHeader("Service", colorize))
	svc := status.Service
	if !svc.Running {
		fmt.Fprintln(stdout, renderStatusLine("Processing", statusWarn, "stopped", colorize))
		return
	}
	fmt.Fprintln(stdout, renderStatusLine("Processing", statusOK, "running", colorize))
	fmt.Fprintln(stdout, renderKV("Engine", svc.Engine))
	if svc.StartedAt != "" {
		fmt.Fprintln(stdout, renderKV("Started", formatAge(svc.StartedAt)))
	}
	fmt.Fprintln(stdout, renderKV("Workers", fmt.Sprintf("%d busy / %d total", busyWorkers(svc.Workers), len(svc.Workers))))
	fmt.Fprintln(stdout, renderKV("Subscribers", fmt.Sprintf("%d", svc.Subscribers)))
	fmt.Fprintln(stdout, renderKV("Queue depth", formatQueueDepths(svc.QueueDepth, svc.QueueDepths)))
	cache := svc.Cache
	fmt.Fprintln(stdout, renderKV("Cache", fmt.Sprintf("%d entries, %s (hits %d, misses %d)",
		cache.Entries, formatSize(cache.Bytes), cache.Hits, cache.Misses)))

	rows := buildJobCountRows(svc.JobCounts)
	if len(rows) > 0 {
		fmt.Fprintln(stdout)
		fmt.Fprintln(stdout, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
	}
}

func dependencyLines(deps []ipc.DependencyStatus, colorize bool) []string {
	lines := make([]string, 0, len(deps))
	for _, dep := range deps {
		if dep.Available {
			message := "Ready"
			if dep.Command != "" {
				message = fmt.Sprintf("Ready (command: %s)", dep.Command)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}

		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		kind := statusError
		if dep.Optional {
			kind = statusWarn
			detail += " (optional)"
		}
		lines = append(lines, renderStatusLine(dep.Name, kind, detail, colorize))
	}
	return lines
}

func busyWorkers(workers []ipc.Worker) int {
	busy := 0
	for _, w := range workers {
		if w.Busy {
			busy++
		}
	}
	return busy
}

func formatQueueDepths(total int, depths map[string]int) string {
	if len(depths) == 0 {
		return fmt.Sprintf("%d", total)
	}
	parts := make([]string, 0, len(depths))
	for _, priority := range job.AllPriorities() {
		if depth, ok := depths[string(priority)]; ok {
			parts = append(parts, fmt.Sprintf("%s %d", priority, depth))
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%d", total)
	}
	return fmt.Sprintf("%d (%s)", total, strings.Join(parts, ", "))
}

func buildJobCountRows(counts map[string]int) [][]string {
	rows := make([][]string, 0, len(counts))
	for _, status := range job.AllStatuses() {
		count, ok := counts[string(status)]
		if !ok || count == 0 {
			continue
		}
		rows = append(rows, []string{formatStatusLabel(string(status)), fmt.Sprintf("%d", count)})
	}
	return rows
}

// reportStartState prints the outcome of a start attempt. started and
// alreadyRunning supply the success wording so restart can reuse the logic.
func reportStartState(stdout io.Writer, result daemonctl.StartResult, started, alreadyRunning string) {
	switch result.State {
	case daemonctl.StartStateStarted:
		fmt.Fprintln(stdout, started)
	case daemonctl.StartStateAlreadyRunning:
		fmt.Fprintln(stdout, alreadyRunning)
	case daemonctl.StartStateRequested:
		if msg := strings.TrimSpace(result.Message); msg != "" {
			fmt.Fprintln(stdout, msg)
		} else {
			fmt.Fprintln(stdout, "Start request sent")
		}
	}
}

func daemonLaunchOptions(ctx *commandContext, diagnostic bool) daemonctl.LaunchOptions {
	return daemonctl.LaunchOptions{
		ConfigPath: flagValue(ctx.configFlag),
		LogLevel:   flagValue(ctx.logLevelFlag),
		Diagnostic: diagnostic,
	}
}

func flagValue(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}
