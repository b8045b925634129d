package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/ipc"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/job"
)

func newJobCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var textOnly bool

	cmd := &cobra.Command{
		Use:   "job <id>",
		Short: "Show a job's status and result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			if id == "" {
				return errors.New("job id is required")
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.JobStatus(id)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				stdout := cmd.OutOrStdout()
				if textOnly {
					if resp.Job.Result == nil {
						return fmt.Errorf("job %s has no result (status %s)", id, resp.Job.Status)
					}
					fmt.Fprintln(stdout, resp.Job.Result.PlainText)
					return nil
				}
				printJobDetail(stdout, resp.Job, shouldColorize(stdout))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output the full job record as JSON")
	cmd.Flags().BoolVar(&textOnly, "text", false, "Print only the recognized plain text")
	return cmd
}

func printJobDetail(stdout io.Writer, j ipc.Job, colorize bool) {
	fmt.Fprintln(stdout, renderStatusLine("Status", jobStatusKind(j.Status), formatStatusLabel(j.Status), colorize))
	fmt.Fprintln(stdout, renderKV("ID", j.ID))
	if j.BatchID != "" {
		fmt.Fprintln(stdout, renderKV("Batch", j.BatchID))
	}
	if j.CallerID != "" {
		fmt.Fprintln(stdout, renderKV("Caller", j.CallerID))
	}
	if j.Source != "" {
		fmt.Fprintln(stdout, renderKV("Source", j.Source))
	}
	fmt.Fprintln(stdout, renderKV("Mode", j.Mode))
	fmt.Fprintln(stdout, renderKV("Priority", j.Priority))
	fmt.Fprintln(stdout, renderKV("Size", formatSize(j.ContentSize)))
	if len(j.Languages) > 0 {
		fmt.Fprintln(stdout, renderKV("Languages", strings.Join(j.Languages, ", ")))
	}
	if j.Status == string(job.StatusRunning) {
		fmt.Fprintln(stdout, renderKV("Progress", formatPercent(j.Progress)))
	}
	fmt.Fprintln(stdout, renderKV("Attempts", fmt.Sprintf("%d", j.Attempts)))
	fmt.Fprintln(stdout, renderKV("Cache hit", yesNo(j.CacheHit)))
	fmt.Fprintln(stdout, renderKV("Created", formatAge(j.CreatedAt)))
	if j.StartedAt != "" {
		fmt.Fprintln(stdout, renderKV("Started", formatAge(j.StartedAt)))
	}
	if j.FinishedAt != "" {
		fmt.Fprintln(stdout, renderKV("Finished", formatAge(j.FinishedAt)))
	}
	if j.ErrorMessage != "" {
		fmt.Fprintln(stdout, renderKV("Error", j.ErrorMessage))
	}
	if j.ResultSuppressed {
		fmt.Fprintln(stdout, renderKV("Result", "suppressed (cancelled while running)"))
		return
	}
	if j.Result == nil {
		return
	}
	fmt.Fprintln(stdout, renderKV("Confidence", formatConfidence(j.Result.Confidence)))
	if j.Result.Language != "" {
		fmt.Fprintln(stdout, renderKV("Language", j.Result.Language))
	}
	if len(j.Result.Blocks) > 0 {
		fmt.Fprintln(stdout, renderKV("Blocks", fmt.Sprintf("%d", len(j.Result.Blocks))))
	}
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, j.Result.PlainText)
}

func jobStatusKind(status string) statusKind {
	switch status {
	case string(job.StatusCompleted):
		return statusOK
	case string(job.StatusFailed):
		return statusError
	case string(job.StatusCancelled):
		return statusWarn
	default:
		return statusInfo
	}
}
