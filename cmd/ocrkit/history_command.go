package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/ipc"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var (
		status   string
		batchID  string
		callerID string
		limit    int
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List archived terminal jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.History(ipc.HistoryRequest{
					Status:   status,
					BatchID:  batchID,
					CallerID: callerID,
					Limit:    limit,
				})
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				if len(resp.Records) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No archived jobs match")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Job", "Status", "Mode", "Source", "Size", "Confidence", "Finished"},
					buildHistoryRows(resp.Records),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by terminal status (completed, failed, cancelled)")
	cmd.Flags().StringVar(&batchID, "batch", "", "Filter by batch id")
	cmd.Flags().StringVar(&callerID, "caller", "", "Filter by caller id")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum records to return")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output records as JSON")
	return cmd
}

func buildHistoryRows(records []ipc.HistoryRecord) [][]string {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		confidence := "-"
		if rec.Status == "completed" && !rec.ResultSuppressed {
			confidence = formatConfidence(rec.Confidence)
		}
		rows = append(rows, []string{
			rec.ID,
			formatStatusLabel(rec.Status),
			rec.Mode,
			truncateText(rec.Source, 36),
			formatSize(rec.ContentSize),
			confidence,
			formatAge(rec.FinishedAt),
		})
	}
	return rows
}
