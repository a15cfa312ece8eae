package merge

import "time"

// Body content types accepted by Options.BodyType. Auto picks HTML when
// the body file ends in .html or .htm.
const (
	BodyAuto  = "auto"
	BodyPlain = "plain"
	BodyHTML  = "html"
)

// Options is one fully-resolved send pass. The CLI layer fills it from
// flags, config file and environment before calling Run.
type Options struct {
	CSVPath         string
	Subject         string
	BodyPath        string
	BodyType        string
	RecipientColumn string

	CC        []string // address templates, repeatable
	BCC       []string
	CCColumn  string
	BCCColumn string
	ReplyTo   string

	Attachments      []string // path templates, repeatable
	AttachmentColumn string

	Sender   string
	Password string
	Server   string
	Port     int

	Delay  time.Duration // pause between sends; 0 means unpaced
	DryRun bool
	Limit  int // 0 means no cap

	Label string // receipts label; the CLI defaults it to the CSV base name
}

// Summary is the outcome of one send pass. A failed row never aborts the
// pass, so all three counters can be non-zero at once.
type Summary struct {
	Total   int
	Sent    int
	Skipped int
	Failed  int
}
