package config

// Config is the optional mailmerge config file. Flags override file
// values; file values override defaults. Unknown keys are rejected so a
// typo never silently falls back to a default.
type Config struct {
	Logging  LoggingConfig  `json:"logging"`
	SMTP     SMTPConfig     `json:"smtp,omitempty"`
	Send     SendConfig     `json:"send,omitempty"`
	Receipts ReceiptsConfig `json:"receipts,omitempty"`
}

type LoggingConfig struct {
	Level string `json:"level"`
	// Console is a pointer so "omitted" (default true) is distinguishable
	// from an explicit false.
	Console *bool       `json:"console,omitempty"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// SMTPConfig overrides the Gmail defaults (smtp.gmail.com:587, STARTTLS).
type SMTPConfig struct {
	Server string `json:"server,omitempty"`
	Port   int    `json:"port,omitempty"`
}

// SendConfig holds send-pass defaults the operator would otherwise
// repeat on every invocation.
type SendConfig struct {
	// Delay is a Go duration string (e.g. "500ms", "2s") waited between
	// messages. "0s" or omitted means unpaced.
	Delay           string `json:"delay,omitempty"`
	RecipientColumn string `json:"recipient_column,omitempty"`
}

// ReceiptsConfig controls the optional send-audit store.
//
// Example:
//
//	"receipts": { "driver": "file", "path": "~/.local/share/mailmerge/receipts.jsonl" }
type ReceiptsConfig struct {
	Driver      string `json:"driver,omitempty"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// ConsoleEnabled resolves the tri-state console flag.
func (l LoggingConfig) ConsoleEnabled() bool {
	if l.Console == nil {
		return true
	}
	return *l.Console
}
