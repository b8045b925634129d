package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/ipc"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the pending job queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pending jobs in dispatch order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueList()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				if len(resp.Entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"#", "Job", "Priority", "Attempt", "Waiting"},
					buildQueueListRows(resp.Entries),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output queue entries as JSON")
	return cmd
}

func buildQueueListRows(entries []ipc.QueueEntry) [][]string {
	rows := make([][]string, 0, len(entries))
	for i, entry := range entries {
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			entry.JobID,
			formatStatusLabel(entry.Priority),
			fmt.Sprintf("%d", entry.Attempt),
			formatAge(entry.EnqueuedAt),
		})
	}
	return rows
}
