package receipts

import (
	"context"
	"errors"
	"strings"

	logx "github.com/jradcliffe5/mailmerge/pkg/logx"
)

// Store is the minimal audit API used by the send path.
type Store interface {
	AppendRun(ctx context.Context, r RunRecord) error
	AppendMessage(ctx context.Context, m MessageRecord) error
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if receipts are disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown receipts driver: " + driver)
	}
}
