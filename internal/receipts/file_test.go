package receipts

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	logx "github.com/jradcliffe5/mailmerge/pkg/logx"
)

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"", "none", " None "} {
		store, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil {
			t.Fatalf("Open(%q) error: %v", driver, err)
		}
		if store != nil {
			t.Fatalf("Open(%q) returned a store, want nil", driver)
		}
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "postgres"}, logx.Nop()); err == nil {
		t.Fatal("unknown driver accepted")
	}
}

func TestOpenFileRequiresPath(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "file"}, logx.Nop()); err == nil {
		t.Fatal("file driver without a path accepted")
	}
}

func TestFileStoreAppendsEnvelopes(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "audit", "receipts.jsonl")
	store, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}

	ctx := context.Background()
	at := time.Date(2024, 6, 5, 9, 30, 0, 0, time.UTC)
	msg := MessageRecord{
		At:         at,
		Label:      "team",
		Row:        2,
		Recipients: []string{"ada@example.com"},
		Subject:    "Hello Ada",
		Status:     StatusSent,
	}
	run := RunRecord{At: at, Label: "team", Total: 3, Sent: 1, Skipped: 1, Failed: 1, TookMS: 1200}

	if err := store.AppendMessage(ctx, msg); err != nil {
		t.Fatalf("AppendMessage error: %v", err)
	}
	if err := store.AppendRun(ctx, run); err != nil {
		t.Fatalf("AppendRun error: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open receipts file: %v", err)
	}
	defer f.Close()

	var envelopes []envelope
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e envelope
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("line %d is not valid JSON: %v", len(envelopes)+1, err)
		}
		envelopes = append(envelopes, e)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}

	if len(envelopes) != 2 {
		t.Fatalf("len(envelopes) = %d, want 2", len(envelopes))
	}
	if envelopes[0].Kind != "message" || envelopes[0].Message == nil {
		t.Fatalf("envelopes[0] = %+v, want message kind", envelopes[0])
	}
	if got := *envelopes[0].Message; got.Row != 2 || got.Status != StatusSent || got.Subject != "Hello Ada" {
		t.Fatalf("message record = %+v", got)
	}
	if envelopes[1].Kind != "run" || envelopes[1].Run == nil {
		t.Fatalf("envelopes[1] = %+v, want run kind", envelopes[1])
	}
	if got := *envelopes[1].Run; got.Total != 3 || got.Sent != 1 || got.TookMS != 1200 {
		t.Fatalf("run record = %+v", got)
	}
}

func TestFileStoreAppendAcrossOpens(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "receipts.jsonl")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		store, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
		if err != nil {
			t.Fatalf("Open #%d error: %v", i, err)
		}
		if err := store.AppendRun(ctx, RunRecord{Label: "team", Total: i}); err != nil {
			t.Fatalf("AppendRun #%d error: %v", i, err)
		}
		if err := store.Close(); err != nil {
			t.Fatalf("Close #%d error: %v", i, err)
		}
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read receipts file: %v", err)
	}
	lines := 0
	for _, c := range b {
		if c == '\n' {
			lines++
		}
	}
	if lines != 2 {
		t.Fatalf("line count = %d, want 2 (second open must append, not truncate)", lines)
	}
}

func TestFileStoreAppendAfterClose(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "receipts.jsonl")
	store, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if err := store.AppendRun(context.Background(), RunRecord{}); err == nil {
		t.Fatal("AppendRun after Close succeeded")
	}
}
