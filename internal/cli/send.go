package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/jradcliffe5/mailmerge/internal/config"
	"github.com/jradcliffe5/mailmerge/internal/merge"
	"github.com/jradcliffe5/mailmerge/internal/schedule"
	logx "github.com/jradcliffe5/mailmerge/pkg/logx"
)

func NewSendCommand(a *App) *cobra.Command {
	o := &sendOptions{}
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Render per-recipient emails from a CSV and send them via Gmail SMTP",
		Long: "Render per-recipient emails from a CSV and templates and send them.\n\n" +
			"The CSV header row defines template variables: reference any column\n" +
			"as $column_name in --subject, the body file, --cc/--bcc and\n" +
			"--attachment values. Use $$ for a literal dollar sign.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			o.configPath = a.ConfigPath
			if err := o.applyConfig(cmd.Flags(), a.Config); err != nil {
				return err
			}
			return runSend(cmd.Context(), a, o)
		},
	}
	o.addFlags(cmd.Flags())
	return cmd
}

func runSend(ctx context.Context, a *App, o *sendOptions) error {
	if err := o.resolvePaths(); err != nil {
		return err
	}

	// Scheduled invocations gate on the due-time state before anything
	// else happens, so an early wake-up exits without touching the CSV
	// or prompting for credentials.
	if o.scheduleSpec != "" && o.scheduleState != "" {
		spec, err := schedule.ParseSpec(o.scheduleSpec)
		if err != nil {
			return err
		}
		due, nextDue, err := schedule.CheckAndAdvance(o.scheduleState, spec, time.Now())
		if err != nil {
			return err
		}
		if !due {
			a.Log.Info("no messages due", logx.Time("next_due", nextDue))
			return nil
		}
		a.Log.Info("scheduled time reached, proceeding with mail merge",
			logx.Time("next_due", nextDue))
	}

	sender, password, err := config.Credentials(o.sender, o.password, o.dryRun)
	if err != nil {
		return err
	}

	opts := merge.Options{
		CSVPath:          o.csv,
		Subject:          o.subject,
		BodyPath:         o.body,
		BodyType:         o.bodyType,
		RecipientColumn:  o.recipientColumn,
		CC:               o.cc,
		BCC:              o.bcc,
		CCColumn:         o.ccColumn,
		BCCColumn:        o.bccColumn,
		ReplyTo:          o.replyTo,
		Attachments:      o.attachments,
		AttachmentColumn: o.attachmentColumn,
		Sender:           sender,
		Password:         password,
		Server:           o.server,
		Port:             o.port,
		Delay:            o.delay,
		DryRun:           o.dryRun,
		Limit:            o.limit,
		Label:            o.labelSeed(),
	}
	_, err = merge.Run(ctx, opts, a.Receipts, a.Log)
	return err
}
