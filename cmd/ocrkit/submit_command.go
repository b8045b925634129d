package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/ipc"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/job"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/ocr"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var (
		asBatch   bool
		callerID  string
		mode      string
		priority  string
		languages []string
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "submit <file> [file...]",
		Short: "Submit image files for recognition",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateSubmitFlags(mode, priority); err != nil {
				return err
			}

			contents := make([][]byte, 0, len(args))
			sources := make([]string, 0, len(args))
			for _, arg := range args {
				path := filepath.Clean(strings.TrimSpace(arg))
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}
				contents = append(contents, data)
				sources = append(sources, path)
			}

			stdout := cmd.OutOrStdout()
			return ctx.withClient(func(client *ipc.Client) error {
				if asBatch {
					items := make([]ipc.SubmitBatchItem, 0, len(contents))
					for i := range contents {
						items = append(items, ipc.SubmitBatchItem{Source: sources[i], Content: contents[i]})
					}
					resp, err := client.SubmitBatch(ipc.SubmitBatchRequest{
						CallerID:  callerID,
						Mode:      mode,
						Priority:  priority,
						Languages: languages,
						Items:     items,
					})
					if err != nil {
						return err
					}
					if asJSON {
						return writeJSON(cmd, resp)
					}
					fmt.Fprintf(stdout, "Submitted batch %s with %d jobs\n", resp.Batch.ID, len(resp.JobIDs))
					for _, id := range resp.JobIDs {
						fmt.Fprintf(stdout, "  %s\n", id)
					}
					return nil
				}

				jobs := make([]ipc.Job, 0, len(contents))
				for i := range contents {
					resp, err := client.Submit(ipc.SubmitRequest{
						CallerID:  callerID,
						Source:    sources[i],
						Content:   contents[i],
						Mode:      mode,
						Priority:  priority,
						Languages: languages,
					})
					if err != nil {
						return fmt.Errorf("submit %s: %w", sources[i], err)
					}
					jobs = append(jobs, resp.Job)
					if !asJSON {
						printSubmitReceipt(stdout, resp.Job)
					}
				}
				if asJSON {
					return writeJSON(cmd, map[string]any{"jobs": jobs})
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asBatch, "batch", false, "Submit all files as one batch")
	cmd.Flags().StringVar(&callerID, "caller", "", "Caller id for rate limiting and history")
	cmd.Flags().StringVar(&mode, "mode", "", "Recognition mode (basic, accurate, structure)")
	cmd.Flags().StringVar(&priority, "priority", "", "Job priority (high, normal, low)")
	cmd.Flags().StringSliceVar(&languages, "lang", nil, "Language hint (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output receipts as JSON")
	return cmd
}

func validateSubmitFlags(mode, priority string) error {
	if mode != "" {
		if _, ok := ocr.ParseMode(mode); !ok {
			return fmt.Errorf("unknown mode %q (valid: %s)", mode, joinModes())
		}
	}
	if priority != "" {
		if _, ok := job.ParsePriority(priority); !ok {
			return fmt.Errorf("unknown priority %q (valid: %s)", priority, joinPriorities())
		}
	}
	return nil
}

func printSubmitReceipt(stdout io.Writer, j ipc.Job) {
	if j.Status == string(job.StatusCompleted) && j.CacheHit {
		fmt.Fprintf(stdout, "Job %s completed immediately (cache hit)\n", j.ID)
		return
	}
	fmt.Fprintf(stdout, "Submitted job %s (%s priority)\n", j.ID, j.Priority)
}

func joinModes() string {
	modes := ocr.AllModes()
	parts := make([]string, 0, len(modes))
	for _, m := range modes {
		parts = append(parts, string(m))
	}
	return strings.Join(parts, ", ")
}

func joinPriorities() string {
	priorities := job.AllPriorities()
	parts := make([]string, 0, len(priorities))
	for _, p := range priorities {
		parts = append(parts, string(p))
	}
	return strings.Join(parts, ", ")
}
