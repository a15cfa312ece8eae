package merge

import (
	"context"
	"fmt"
	"net/smtp"
	"os"
	"path/filepath"
	"time"

	"github.com/domodwyer/mailyak/v3"
	"golang.org/x/time/rate"

	"github.com/jradcliffe5/mailmerge/internal/receipts"
	logx "github.com/jradcliffe5/mailmerge/pkg/logx"
)

// Run executes one send pass: render every row, transmit (or preview),
// and record outcomes. A failing row is logged and counted, never fatal;
// only setup problems (unreadable CSV or body template) abort the pass.
//
// store may be nil when receipts are disabled.
func Run(ctx context.Context, opts Options, store receipts.Store, log logx.Logger) (Summary, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	start := time.Now()

	rows, err := LoadRecipients(opts.CSVPath)
	if err != nil {
		return Summary{}, err
	}
	r, err := newRenderer(&opts)
	if err != nil {
		return Summary{}, err
	}

	total := len(rows)
	if opts.Limit > 0 && opts.Limit < total {
		total = opts.Limit
	}
	sum := Summary{Total: total}
	if total == 0 {
		log.Warn("no recipients found, nothing to do", logx.String("csv", opts.CSVPath))
		return sum, nil
	}

	log.Info("preparing send pass",
		logx.Int("messages", total),
		logx.Bool("dry_run", opts.DryRun),
	)

	var limiter *rate.Limiter
	if opts.Delay > 0 {
		limiter = rate.NewLimiter(rate.Every(opts.Delay), 1)
	}

	for _, row := range rows[:total] {
		msg, renderErr := r.render(row)
		if renderErr != nil {
			sum.Skipped++
			log.Error("skipping row", logx.Int("row", row.Number), logx.Err(renderErr))
			record(ctx, store, log, receipts.MessageRecord{
				At: time.Now(), Label: opts.Label, Row: row.Number,
				Status: receipts.StatusSkipped, Error: renderErr.Error(),
			})
			continue
		}
		if msg == nil {
			sum.Skipped++
			log.Warn("skipping row: no recipient",
				logx.Int("row", row.Number),
				logx.String("column", opts.RecipientColumn),
			)
			record(ctx, store, log, receipts.MessageRecord{
				At: time.Now(), Label: opts.Label, Row: row.Number,
				Status: receipts.StatusSkipped, Error: "no recipient address",
			})
			continue
		}

		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return sum, err
			}
		} else if err := ctx.Err(); err != nil {
			return sum, err
		}

		if opts.DryRun {
			preview, previewErr := opts.compose(msg)
			if previewErr != nil {
				sum.Failed++
				log.Error("preview failed", logx.Int("row", row.Number), logx.Err(previewErr))
				record(ctx, store, log, receipts.MessageRecord{
					At: time.Now(), Label: opts.Label, Row: row.Number, Recipients: msg.recipients,
					Subject: msg.subject, Status: receipts.StatusFailed, Error: previewErr.Error(),
				})
				continue
			}
			sum.Sent++
			fmt.Printf("--- dry run %d/%d for %v ---\n%s\n", row.Number, total, msg.recipients, preview)
			record(ctx, store, log, receipts.MessageRecord{
				At: time.Now(), Label: opts.Label, Row: row.Number, Recipients: msg.recipients,
				Subject: msg.subject, Status: receipts.StatusPreview,
			})
			continue
		}

		if sendErr := opts.send(msg); sendErr != nil {
			sum.Failed++
			log.Error("send failed",
				logx.Int("row", row.Number),
				logx.Any("recipients", msg.recipients),
				logx.Err(sendErr),
			)
			record(ctx, store, log, receipts.MessageRecord{
				At: time.Now(), Label: opts.Label, Row: row.Number, Recipients: msg.recipients,
				Subject: msg.subject, Status: receipts.StatusFailed, Error: sendErr.Error(),
			})
			continue
		}
		sum.Sent++
		log.Info("sent",
			logx.Int("row", row.Number),
			logx.Any("recipients", msg.recipients),
			logx.String("subject", msg.subject),
		)
		record(ctx, store, log, receipts.MessageRecord{
			At: time.Now(), Label: opts.Label, Row: row.Number, Recipients: msg.recipients,
			Subject: msg.subject, Status: receipts.StatusSent,
		})
	}

	if store != nil {
		runErr := store.AppendRun(ctx, receipts.RunRecord{
			At: start, Label: opts.Label, DryRun: opts.DryRun,
			Total: sum.Total, Sent: sum.Sent, Skipped: sum.Skipped, Failed: sum.Failed,
			TookMS: time.Since(start).Milliseconds(),
		})
		if runErr != nil {
			log.Warn("failed to record run receipt", logx.Err(runErr))
		}
	}

	verb := "sent"
	if opts.DryRun {
		verb = "previewed"
	}
	log.Info("send pass complete",
		logx.Int(verb, sum.Sent),
		logx.Int("skipped", sum.Skipped),
		logx.Int("failed", sum.Failed),
		logx.Duration("took", time.Since(start)),
	)
	return sum, nil
}

func record(ctx context.Context, store receipts.Store, log logx.Logger, m receipts.MessageRecord) {
	if store == nil {
		return
	}
	if err := store.AppendMessage(ctx, m); err != nil {
		log.Warn("failed to record message receipt", logx.Err(err))
	}
}

// build assembles the MIME message; the returned closer releases open
// attachment readers and must be called after the transmit/preview.
func (o *Options) build(msg *message) (*mailyak.MailYak, func(), error) {
	addr := fmt.Sprintf("%s:%d", o.Server, o.Port)
	m := mailyak.New(addr, smtp.PlainAuth("", o.Sender, o.Password, o.Server))

	m.From(o.Sender)
	m.To(msg.recipients...)
	m.Subject(msg.subject)
	if len(msg.cc) > 0 {
		m.Cc(msg.cc...)
	}
	if len(msg.bcc) > 0 {
		m.Bcc(msg.bcc...)
	}
	if o.ReplyTo != "" {
		m.ReplyTo(o.ReplyTo)
	}
	if msg.html {
		m.HTML().Set(msg.body)
	} else {
		m.Plain().Set(msg.body)
	}

	var open []*os.File
	closeAll := func() {
		for _, f := range open {
			_ = f.Close()
		}
	}
	for _, p := range msg.attachments {
		f, err := os.Open(p)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("open attachment %s: %w", p, err)
		}
		open = append(open, f)
		m.Attach(filepath.Base(p), f)
	}
	return m, closeAll, nil
}

func (o *Options) send(msg *message) error {
	m, done, err := o.build(msg)
	if err != nil {
		return err
	}
	defer done()
	return m.Send()
}

// compose renders the full MIME text without dialing, for dry runs.
func (o *Options) compose(msg *message) (string, error) {
	m, done, err := o.build(msg)
	if err != nil {
		return "", err
	}
	defer done()
	buf, err := m.MimeBuf()
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
