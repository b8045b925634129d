package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/ipc"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the result cache",
	}

	cacheCmd.AddCommand(newCacheStatsCommand(ctx))

	return cacheCmd
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache occupancy and lifetime counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.CacheStats()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}

				stdout := cmd.OutOrStdout()
				stats := resp.Stats
				fmt.Fprintln(stdout, renderKV("Entries", fmt.Sprintf("%d / %d", stats.Entries, stats.MaxEntries)))
				fmt.Fprintln(stdout, renderKV("Bytes", fmt.Sprintf("%s / %s", formatSize(stats.Bytes), formatSize(stats.MaxBytes))))
				fmt.Fprintln(stdout, renderKV("In flight", fmt.Sprintf("%d", stats.InFlight)))
				fmt.Fprintln(stdout, renderKV("Hits", fmt.Sprintf("%d", stats.Hits)))
				fmt.Fprintln(stdout, renderKV("Misses", fmt.Sprintf("%d", stats.Misses)))
				fmt.Fprintln(stdout, renderKV("Hit rate", formatHitRate(stats.Hits, stats.Misses)))
				fmt.Fprintln(stdout, renderKV("Attached", fmt.Sprintf("%d", stats.Attached)))
				fmt.Fprintln(stdout, renderKV("Evictions", fmt.Sprintf("%d", stats.Evictions)))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output cache statistics as JSON")
	return cmd
}

func formatHitRate(hits, misses uint64) string {
	total := hits + misses
	if total == 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", float64(hits)/float64(total)*100)
}
