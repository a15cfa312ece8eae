package merge

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// message is one rendered email, ready to hand to the transport.
type message struct {
	recipients  []string
	cc          []string
	bcc         []string
	subject     string
	body        string
	html        bool
	attachments []string // resolved absolute paths, deduped
}

// renderer holds the parsed templates shared by every row of a pass.
type renderer struct {
	subject     Template
	body        Template
	html        bool
	cc          []Template
	bcc         []Template
	attachments []Template
	opts        *Options
	baseDir     string // attachment paths resolve against the CSV's directory
}

func newRenderer(opts *Options) (*renderer, error) {
	bodyRaw, err := os.ReadFile(opts.BodyPath)
	if err != nil {
		return nil, fmt.Errorf("read body template %q: %w", opts.BodyPath, err)
	}

	r := &renderer{
		subject: NewTemplate(opts.Subject),
		body:    NewTemplate(string(bodyRaw)),
		html:    isHTMLBody(opts.BodyType, opts.BodyPath),
		opts:    opts,
		baseDir: filepath.Dir(opts.CSVPath),
	}
	for _, t := range opts.CC {
		r.cc = append(r.cc, NewTemplate(t))
	}
	for _, t := range opts.BCC {
		r.bcc = append(r.bcc, NewTemplate(t))
	}
	for _, t := range opts.Attachments {
		r.attachments = append(r.attachments, NewTemplate(t))
	}
	return r, nil
}

func isHTMLBody(bodyType, bodyPath string) bool {
	switch bodyType {
	case BodyHTML:
		return true
	case BodyPlain:
		return false
	}
	ext := strings.ToLower(filepath.Ext(bodyPath))
	return ext == ".html" || ext == ".htm"
}

// render produces the message for one row. A nil message with a nil
// error means the row has no recipient and is skipped silently by the
// caller; a non-nil error skips the row with its reason logged.
func (r *renderer) render(row Row) (*message, error) {
	raw, _ := row.Lookup(r.opts.RecipientColumn)
	if raw == "" {
		return nil, nil
	}
	recipients := SplitList(raw)
	if len(recipients) == 0 {
		return nil, nil
	}

	ctx := row.Context()

	subject, err := r.subject.Render(ctx, "subject")
	if err != nil {
		return nil, err
	}
	body, err := r.body.Render(ctx, "body")
	if err != nil {
		return nil, err
	}

	cc, err := r.renderAddresses(r.cc, r.opts.CCColumn, "cc", row, ctx)
	if err != nil {
		return nil, err
	}
	bcc, err := r.renderAddresses(r.bcc, r.opts.BCCColumn, "bcc", row, ctx)
	if err != nil {
		return nil, err
	}

	attachments, err := r.renderAttachments(row, ctx)
	if err != nil {
		return nil, err
	}

	return &message{
		recipients:  recipients,
		cc:          cc,
		bcc:         bcc,
		subject:     subject,
		body:        body,
		html:        r.html,
		attachments: attachments,
	}, nil
}

func (r *renderer) renderAddresses(templates []Template, column, label string, row Row, ctx map[string]string) ([]string, error) {
	var addrs []string
	for _, t := range templates {
		rendered, err := t.Render(ctx, label)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, SplitList(rendered)...)
	}
	if column != "" {
		if cell, ok := row.Lookup(column); ok {
			addrs = append(addrs, SplitList(cell)...)
		}
	}
	return dedupe(addrs), nil
}

// renderAttachments resolves every attachment path for the row. Relative
// paths resolve against the CSV's directory; duplicates attach once. A
// missing or unreadable attachment fails the whole row rather than
// sending an incomplete message.
func (r *renderer) renderAttachments(row Row, ctx map[string]string) ([]string, error) {
	var values []string
	for _, t := range r.attachments {
		rendered, err := t.Render(ctx, "attachment")
		if err != nil {
			return nil, err
		}
		values = append(values, SplitList(rendered)...)
	}
	if r.opts.AttachmentColumn != "" {
		if cell, ok := row.Lookup(r.opts.AttachmentColumn); ok {
			values = append(values, SplitList(cell)...)
		}
	}

	var paths []string
	for _, raw := range values {
		p, err := r.resolvePath(raw)
		if err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	paths = dedupe(paths)

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("attachment not found: %s", p)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("attachment path is not a file: %s", p)
		}
	}
	return paths, nil
}

func (r *renderer) resolvePath(raw string) (string, error) {
	if strings.HasPrefix(raw, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve %q: %w", raw, err)
		}
		raw = filepath.Join(home, raw[2:])
	}
	if !filepath.IsAbs(raw) {
		raw = filepath.Join(r.baseDir, raw)
	}
	return filepath.Clean(raw), nil
}
