// Package cli is the cobra command surface of mailmerge.
package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCommand builds the full command tree. Config loading, logger
// setup and the receipts store happen once in PersistentPreRunE so every
// subcommand sees the same App state.
func NewRootCommand() *cobra.Command {
	a := &App{}
	root := &cobra.Command{
		Use:   "mailmerge",
		Short: "Send per-recipient templated emails via Gmail, now or on a schedule",
		Long: "mailmerge merges rows of a CSV file into templated emails and sends\n" +
			"them through Gmail SMTP, either immediately or on a recurring\n" +
			"schedule managed by cron, launchd or systemd.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.shutdown()
		},
	}
	root.PersistentFlags().StringVar(&a.ConfigPath, "config", "", "path to an optional JSON or YAML config file")
	root.PersistentFlags().StringVarP(&a.LogLevel, "log-level", "L", "", "log verbosity: debug, info, warn or error")

	root.AddCommand(
		NewSendCommand(a),
		NewScheduleCommand(a),
	)
	return root
}
