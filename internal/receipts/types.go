package receipts

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("receipts disabled")

// Config configures the receipts store.
//
// Driver values:
//   - "file": dependency-free JSON Lines backend
//   - "sqlite": SQLite database file (optional build tag)
//
// If Driver is empty or "none", receipts are disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Message outcome statuses.
const (
	StatusSent    = "sent"
	StatusPreview = "preview" // dry run
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

// RunRecord summarizes one send pass.
type RunRecord struct {
	At      time.Time `json:"at"`
	Label   string    `json:"label"`
	DryRun  bool      `json:"dry_run,omitempty"`
	Total   int       `json:"total"`
	Sent    int       `json:"sent"`
	Skipped int       `json:"skipped"`
	Failed  int       `json:"failed"`
	TookMS  int64     `json:"took_ms"`
}

// MessageRecord is one per-row outcome.
// Keep it compact and schema-stable.
type MessageRecord struct {
	At         time.Time `json:"at"`
	Label      string    `json:"label"`
	Row        int       `json:"row"`
	Recipients []string  `json:"recipients,omitempty"`
	Subject    string    `json:"subject,omitempty"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
}
