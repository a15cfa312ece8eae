package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jradcliffe5/mailmerge/internal/config"
	"github.com/jradcliffe5/mailmerge/internal/receipts"
	logx "github.com/jradcliffe5/mailmerge/pkg/logx"
)

// App carries the state shared by every command: the loaded config, the
// root logger, and the optional receipts store. Commands receive it by
// pointer; setup runs once in the root command's PersistentPreRunE.
type App struct {
	ConfigPath string
	LogLevel   string // flag override; wins over the config file

	Config   *config.Config
	Log      logx.Logger
	Receipts receipts.Store

	logSvc *logx.Service
}

func (a *App) setup() error {
	config.AutoloadEnv(a.ConfigPath)

	cfg, err := config.Load(a.ConfigPath)
	if err != nil {
		return err
	}
	a.Config = cfg

	level := cfg.Logging.Level
	if a.LogLevel != "" {
		level = a.LogLevel
	}
	svc, log := logx.New(logx.Config{
		Level:   level,
		Console: cfg.Logging.ConsoleEnabled(),
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    expandHome(cfg.Logging.File.Path),
		},
	})
	a.logSvc = svc
	a.Log = log

	busy, err := config.ParseDurationField("receipts.busy_timeout", cfg.Receipts.BusyTimeout)
	if err != nil {
		return err
	}
	store, err := receipts.Open(receipts.Config{
		Driver:      cfg.Receipts.Driver,
		Path:        expandHome(cfg.Receipts.Path),
		BusyTimeout: busy,
	}, log)
	if err != nil {
		return fmt.Errorf("open receipts store: %w", err)
	}
	a.Receipts = store
	return nil
}

func (a *App) shutdown() {
	if a.Receipts != nil {
		_ = a.Receipts.Close()
		a.Receipts = nil
	}
	if a.logSvc != nil {
		_ = a.logSvc.Close()
		a.logSvc = nil
	}
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
