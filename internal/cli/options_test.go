package cli

import (
	"reflect"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/jradcliffe5/mailmerge/internal/config"
)

func parseSendFlags(t *testing.T, argv ...string) (*sendOptions, *pflag.FlagSet) {
	t.Helper()
	opts := &sendOptions{}
	fs := pflag.NewFlagSet("send", pflag.ContinueOnError)
	opts.addFlags(fs)
	if err := fs.Parse(argv); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return opts, fs
}

func TestArgsOmitsDefaults(t *testing.T) {
	t.Parallel()
	opts, _ := parseSendFlags(t,
		"--csv", "/data/team.csv",
		"--subject", "Hello $name",
		"--body", "/data/body.txt",
	)

	got := opts.args("/usr/local/bin/mailmerge", "", "")
	want := []string{
		"/usr/local/bin/mailmerge", "send",
		"--csv", "/data/team.csv",
		"--subject", "Hello $name",
		"--body", "/data/body.txt",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("args = %v, want %v", got, want)
	}
}

func TestArgsCarriesNonDefaults(t *testing.T) {
	t.Parallel()
	opts, _ := parseSendFlags(t,
		"--csv", "/data/team.csv",
		"--subject", "Hi",
		"--body", "/data/body.html",
		"--body-type", "html",
		"--cc", "boss@x.com",
		"--reply-to", "me@x.com",
		"--smtp-port", "2525",
		"--delay", "2s",
		"--dry-run",
		"--limit", "5",
	)
	opts.configPath = "/home/me/.mailmerge.yaml"

	got := opts.args("mailmerge", "30 9 * * *", "/state/team-abc.json")
	want := []string{
		"mailmerge", "send",
		"--csv", "/data/team.csv",
		"--subject", "Hi",
		"--body", "/data/body.html",
		"--body-type", "html",
		"--cc", "boss@x.com",
		"--reply-to", "me@x.com",
		"--smtp-port", "2525",
		"--delay", "2s",
		"--dry-run",
		"--limit", "5",
		"--config", "/home/me/.mailmerge.yaml",
		"--schedule-spec", "30 9 * * *",
		"--schedule-state", "/state/team-abc.json",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("args = %v, want %v", got, want)
	}
}

func TestArgsStableAcrossRenders(t *testing.T) {
	t.Parallel()
	opts, _ := parseSendFlags(t, "--csv", "/data/team.csv", "--subject", "Hi", "--body", "/b.txt")
	a := opts.args("mailmerge", "", "")
	b := opts.args("mailmerge", "", "")
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("re-render differs: %v vs %v", a, b)
	}
}

func TestApplyConfig(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		SMTP: config.SMTPConfig{Server: "smtp.example.com", Port: 2525},
		Send: config.SendConfig{Delay: "750ms", RecipientColumn: "address"},
	}

	// Flags not set on the command line take the file's values.
	opts, fs := parseSendFlags(t, "--csv", "/c.csv", "--subject", "s", "--body", "/b.txt")
	if err := opts.applyConfig(fs, cfg); err != nil {
		t.Fatalf("applyConfig error: %v", err)
	}
	if opts.server != "smtp.example.com" || opts.port != 2525 {
		t.Fatalf("server/port = %q/%d, want config values", opts.server, opts.port)
	}
	if opts.recipientColumn != "address" {
		t.Fatalf("recipientColumn = %q, want address", opts.recipientColumn)
	}
	if opts.delay != 750*time.Millisecond {
		t.Fatalf("delay = %v, want 750ms", opts.delay)
	}

	// Explicit flags win over the file.
	opts, fs = parseSendFlags(t,
		"--csv", "/c.csv", "--subject", "s", "--body", "/b.txt",
		"--smtp-server", "smtp.other.com", "--delay", "5s",
	)
	if err := opts.applyConfig(fs, cfg); err != nil {
		t.Fatalf("applyConfig error: %v", err)
	}
	if opts.server != "smtp.other.com" {
		t.Fatalf("server = %q, want flag value", opts.server)
	}
	if opts.delay != 5*time.Second {
		t.Fatalf("delay = %v, want 5s", opts.delay)
	}
}

func TestApplyConfigBadDelay(t *testing.T) {
	t.Parallel()
	opts, fs := parseSendFlags(t, "--csv", "/c.csv", "--subject", "s", "--body", "/b.txt")
	cfg := &config.Config{Send: config.SendConfig{Delay: "soon"}}
	if err := opts.applyConfig(fs, cfg); err == nil {
		t.Fatal("invalid send.delay accepted")
	}
}

func TestResolvePathsRequiredFlags(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		argv []string
	}{
		{name: "missing csv", argv: []string{"--subject", "s", "--body", "/b.txt"}},
		{name: "missing body", argv: []string{"--csv", "/c.csv", "--subject", "s"}},
		{name: "missing subject", argv: []string{"--csv", "/c.csv", "--body", "/b.txt"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			opts, _ := parseSendFlags(t, tt.argv...)
			if err := opts.resolvePaths(); err == nil {
				t.Fatal("resolvePaths succeeded, want error")
			}
		})
	}
}

func TestLabelSeed(t *testing.T) {
	t.Parallel()
	tests := []struct {
		csv  string
		want string
	}{
		{csv: "/data/team.csv", want: "team"},
		{csv: "/data/Q3 launch.csv", want: "Q3 launch"},
		{csv: "/data/plain", want: "plain"},
	}
	for _, tt := range tests {
		opts := &sendOptions{csv: tt.csv}
		if got := opts.labelSeed(); got != tt.want {
			t.Fatalf("labelSeed(%q) = %q, want %q", tt.csv, got, tt.want)
		}
	}
}
