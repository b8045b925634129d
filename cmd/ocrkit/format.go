package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// writeJSON encodes v as indented JSON on the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseAPITime decodes an RFC3339 timestamp from an API payload.
func parseAPITime(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// formatAge renders an API timestamp as a relative age ("3 minutes ago").
func formatAge(value string) string {
	ts, ok := parseAPITime(value)
	if !ok {
		return "-"
	}
	return humanize.Time(ts)
}

// formatClock renders an API timestamp as a local wall-clock time.
func formatClock(value string) string {
	ts, ok := parseAPITime(value)
	if !ok {
		return "-"
	}
	return ts.Local().Format("15:04:05")
}

// formatSize renders a byte count with a binary unit suffix.
func formatSize(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}

// formatPercent renders a 0-100 progress value.
func formatPercent(p float64) string {
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	return fmt.Sprintf("%.0f%%", p)
}

// formatConfidence renders a 0-1 recognition confidence.
func formatConfidence(c float64) string {
	return fmt.Sprintf("%.2f", c)
}

// shortID abbreviates a UUID for dense progress lines.
func shortID(id string) string {
	id = strings.TrimSpace(id)
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
