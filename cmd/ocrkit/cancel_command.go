package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/ipc"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/job"
)

func newCancelCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a queued or running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			if id == "" {
				return errors.New("job id is required")
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Cancel(id)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}

				stdout := cmd.OutOrStdout()
				switch resp.Job.Status {
				case string(job.StatusCancelled):
					fmt.Fprintf(stdout, "Job %s cancelled\n", resp.Job.ID)
				case string(job.StatusRunning):
					fmt.Fprintf(stdout, "Job %s cancellation requested; the running attempt finishes for the cache but its result will not be returned\n", resp.Job.ID)
				default:
					fmt.Fprintf(stdout, "Job %s is now %s\n", resp.Job.ID, resp.Job.Status)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output the post-cancel job record as JSON")
	return cmd
}
