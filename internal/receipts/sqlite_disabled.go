//go:build !sqlite
// +build !sqlite

package receipts

import (
	"errors"

	logx "github.com/jradcliffe5/mailmerge/pkg/logx"
)

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	_ = cfg
	_ = log
	return nil, errors.New("sqlite receipts not built: build with -tags sqlite")
}
