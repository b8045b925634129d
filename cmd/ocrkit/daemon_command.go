package main

import (
	"github.com/spf13/cobra"

	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/daemonrun"
)

// newDaemonRunCommand registers the hidden "daemon" subcommand that runs the
// daemon in the foreground. Users normally never type it; "ocrkit start"
// re-execs the current binary with these arguments via daemonctl.Launch.
func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	var diagnostic bool
	cmd := &cobra.Command{
		Use:          "daemon",
		Short:        "Run the ocrkit daemon (internal)",
		Hidden:       true,
		Annotations:  map[string]string{"skipConfigLoad": "true"},
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			opts := daemonrun.Options{
				LogLevel:   ctx.resolvedLogLevel(cfg),
				Diagnostic: diagnostic,
			}
			return daemonrun.Run(cmd.Context(), cfg, opts)
		},
	}
	cmd.Flags().BoolVar(&diagnostic, "diagnostic", false, "Enable diagnostic mode with a separate DEBUG log")
	return cmd
}
