package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/ipc"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/job"
)

func newBatchCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "batch <id>",
		Short: "Show a batch's aggregate state and member jobs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			if id == "" {
				return errors.New("batch id is required")
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.BatchStatus(id)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}

				stdout := cmd.OutOrStdout()
				colorize := shouldColorize(stdout)
				b := resp.Batch

				kind := statusInfo
				state := "in progress"
				if b.Done {
					state = "complete"
					kind = statusOK
					if b.Failed > 0 {
						kind = statusWarn
						state = fmt.Sprintf("complete (%d failed)", b.Failed)
					}
				}
				fmt.Fprintln(stdout, renderStatusLine("Batch", kind, state, colorize))
				fmt.Fprintln(stdout, renderKV("ID", b.ID))
				if b.CallerID != "" {
					fmt.Fprintln(stdout, renderKV("Caller", b.CallerID))
				}
				fmt.Fprintln(stdout, renderKV("Progress", fmt.Sprintf("%d/%d done (%s), %d failed",
					b.Completed+b.Failed, b.Total, formatPercent(b.Progress), b.Failed)))
				fmt.Fprintln(stdout, renderKV("Created", formatAge(b.CreatedAt)))
				if b.UpdatedAt != "" {
					fmt.Fprintln(stdout, renderKV("Updated", formatAge(b.UpdatedAt)))
				}

				if len(resp.Jobs) == 0 {
					return nil
				}
				fmt.Fprintln(stdout)
				fmt.Fprintln(stdout, renderTable(
					[]string{"Job", "Source", "Status", "Progress", "Attempts"},
					buildBatchJobRows(resp.Jobs),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight},
				))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output batch detail as JSON")
	return cmd
}

func buildBatchJobRows(jobs []ipc.Job) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, j := range jobs {
		progress := "-"
		switch j.Status {
		case string(job.StatusRunning):
			progress = formatPercent(j.Progress)
		case string(job.StatusCompleted):
			progress = "100%"
		}
		rows = append(rows, []string{
			j.ID,
			truncateText(j.Source, 40),
			formatStatusLabel(j.Status),
			progress,
			fmt.Sprintf("%d", j.Attempts),
		})
	}
	return rows
}
