package cli

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/jradcliffe5/mailmerge/internal/config"
	"github.com/jradcliffe5/mailmerge/internal/merge"
)

// Transport defaults. Overridable by flag or config file.
const (
	defaultSMTPServer      = "smtp.gmail.com"
	defaultSMTPPort        = 587
	defaultRecipientColumn = "email"
)

// sendOptions is the shared flag surface of `send` and
// `schedule install` (which persists a future `send` invocation).
type sendOptions struct {
	csv             string
	subject         string
	body            string
	bodyType        string
	recipientColumn string

	cc        []string
	bcc       []string
	ccColumn  string
	bccColumn string
	replyTo   string

	attachments      []string
	attachmentColumn string

	sender   string
	password string
	server   string
	port     int

	delay  time.Duration
	dryRun bool
	limit  int

	// Hidden flags injected into installed artifacts so a scheduled
	// invocation can gate itself on the due-time state.
	scheduleSpec  string
	scheduleState string

	// Propagated into re-rendered command vectors.
	configPath string
}

func (o *sendOptions) addFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.csv, "csv", "", "CSV file with one row per recipient; column names become template variables")
	fs.StringVarP(&o.subject, "subject", "s", "", "subject template, e.g. 'Hello $first_name'")
	fs.StringVarP(&o.body, "body", "b", "", "path to a text or HTML template file used as the message body")
	fs.StringVarP(&o.bodyType, "body-type", "t", merge.BodyAuto, "body content type: auto, plain or html (auto follows the body file extension)")
	fs.StringVarP(&o.recipientColumn, "recipient-column", "c", defaultRecipientColumn, "CSV column holding recipient addresses")

	fs.StringArrayVar(&o.cc, "cc", nil, "additional Cc address template (repeatable; supports lists and $placeholders)")
	fs.StringArrayVar(&o.bcc, "bcc", nil, "additional Bcc address template (repeatable)")
	fs.StringVar(&o.ccColumn, "cc-column", "", "CSV column listing Cc addresses per recipient")
	fs.StringVar(&o.bccColumn, "bcc-column", "", "CSV column listing Bcc addresses per recipient")
	fs.StringVarP(&o.replyTo, "reply-to", "r", "", "Reply-To address added to outgoing messages")

	fs.StringArrayVarP(&o.attachments, "attachment", "a", nil, "attachment path template (repeatable; supports $placeholders)")
	fs.StringVarP(&o.attachmentColumn, "attachment-column", "A", "", "CSV column listing attachment paths per recipient")

	fs.StringVarP(&o.sender, "sender", "f", "", "sender address (default: $"+config.EnvSender+")")
	fs.StringVarP(&o.password, "password", "p", "", "app password (default: $"+config.EnvPassword+", else prompted)")
	fs.StringVarP(&o.server, "smtp-server", "S", defaultSMTPServer, "SMTP server hostname")
	fs.IntVarP(&o.port, "smtp-port", "P", defaultSMTPPort, "SMTP port (STARTTLS)")

	fs.DurationVarP(&o.delay, "delay", "d", 0, "pause between messages, e.g. 2s")
	fs.BoolVarP(&o.dryRun, "dry-run", "n", false, "preview emails without sending anything")
	fs.IntVarP(&o.limit, "limit", "l", 0, "only send to the first N rows")

	fs.StringVar(&o.scheduleSpec, "schedule-spec", "", "")
	fs.StringVar(&o.scheduleState, "schedule-state", "", "")
	_ = fs.MarkHidden("schedule-spec")
	_ = fs.MarkHidden("schedule-state")
}

// applyConfig fills flag values the operator did not set from the config
// file.
func (o *sendOptions) applyConfig(fs *pflag.FlagSet, cfg *config.Config) error {
	if cfg == nil {
		return nil
	}
	if !fs.Changed("smtp-server") && cfg.SMTP.Server != "" {
		o.server = cfg.SMTP.Server
	}
	if !fs.Changed("smtp-port") && cfg.SMTP.Port != 0 {
		o.port = cfg.SMTP.Port
	}
	if !fs.Changed("recipient-column") && cfg.Send.RecipientColumn != "" {
		o.recipientColumn = cfg.Send.RecipientColumn
	}
	if !fs.Changed("delay") && cfg.Send.Delay != "" {
		d, err := config.ParseDurationField("send.delay", cfg.Send.Delay)
		if err != nil {
			return err
		}
		o.delay = d
	}
	return nil
}

// resolvePaths makes the CSV and body paths absolute so persisted
// command vectors survive a different working directory at run time.
func (o *sendOptions) resolvePaths() error {
	for name, p := range map[string]*string{"--csv": &o.csv, "--body": &o.body} {
		if *p == "" {
			return fmt.Errorf("%s is required", name)
		}
		abs, err := filepath.Abs(expandHome(*p))
		if err != nil {
			return fmt.Errorf("resolve %s path: %w", name, err)
		}
		*p = abs
	}
	if o.subject == "" {
		return fmt.Errorf("--subject is required")
	}
	return nil
}

// labelSeed is the default schedule label and receipts label: the CSV
// file's base name without extension.
func (o *sendOptions) labelSeed() string {
	base := filepath.Base(o.csv)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// args re-renders this configuration as the argument vector a scheduler
// backend persists and re-invokes. Default-valued flags are omitted so
// the vector (and the fingerprint derived from it) stays stable. spec
// and statePath, when set, append the hidden schedule flags.
func (o *sendOptions) args(exe, spec, statePath string) []string {
	cmd := []string{exe, "send", "--csv", o.csv, "--subject", o.subject, "--body", o.body}

	if o.bodyType != merge.BodyAuto {
		cmd = append(cmd, "--body-type", o.bodyType)
	}
	for _, a := range o.attachments {
		cmd = append(cmd, "--attachment", a)
	}
	if o.attachmentColumn != "" {
		cmd = append(cmd, "--attachment-column", o.attachmentColumn)
	}
	if o.sender != "" {
		cmd = append(cmd, "--sender", o.sender)
	}
	if o.password != "" {
		cmd = append(cmd, "--password", o.password)
	}
	if o.recipientColumn != defaultRecipientColumn {
		cmd = append(cmd, "--recipient-column", o.recipientColumn)
	}
	for _, v := range o.cc {
		cmd = append(cmd, "--cc", v)
	}
	for _, v := range o.bcc {
		cmd = append(cmd, "--bcc", v)
	}
	if o.ccColumn != "" {
		cmd = append(cmd, "--cc-column", o.ccColumn)
	}
	if o.bccColumn != "" {
		cmd = append(cmd, "--bcc-column", o.bccColumn)
	}
	if o.replyTo != "" {
		cmd = append(cmd, "--reply-to", o.replyTo)
	}
	if o.server != defaultSMTPServer {
		cmd = append(cmd, "--smtp-server", o.server)
	}
	if o.port != defaultSMTPPort {
		cmd = append(cmd, "--smtp-port", strconv.Itoa(o.port))
	}
	if o.delay > 0 {
		cmd = append(cmd, "--delay", o.delay.String())
	}
	if o.dryRun {
		cmd = append(cmd, "--dry-run")
	}
	if o.limit > 0 {
		cmd = append(cmd, "--limit", strconv.Itoa(o.limit))
	}
	if o.configPath != "" {
		cmd = append(cmd, "--config", o.configPath)
	}
	if spec != "" {
		cmd = append(cmd, "--schedule-spec", spec)
	}
	if statePath != "" {
		cmd = append(cmd, "--schedule-state", statePath)
	}
	return cmd
}
