package receipts

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	logx "github.com/jradcliffe5/mailmerge/pkg/logx"
)

// fileStore is a dependency-free audit backend: a single append-only
// JSON Lines file, one envelope per line with a "kind" discriminator so
// runs and messages interleave in arrival order.
type fileStore struct {
	log logx.Logger

	mu   sync.Mutex
	file *os.File
}

type envelope struct {
	Kind    string         `json:"kind"` // "run" or "message"
	Run     *RunRecord     `json:"run,omitempty"`
	Message *MessageRecord `json:"message,omitempty"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("receipts.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	return &fileStore{log: log, file: f}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

func (s *fileStore) AppendRun(ctx context.Context, r RunRecord) error {
	return s.append(ctx, envelope{Kind: "run", Run: &r})
}

func (s *fileStore) AppendMessage(ctx context.Context, m MessageRecord) error {
	return s.append(ctx, envelope{Kind: "message", Message: &m})
}

func (s *fileStore) append(ctx context.Context, e envelope) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return errors.New("receipts file closed")
	}
	return json.NewEncoder(s.file).Encode(e)
}
