package schedule

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	logx "github.com/jradcliffe5/mailmerge/pkg/logx"
)

// fakeRunner substitutes the external scheduler tools. It emulates the
// crontab read/write protocol and accepts every other tool silently.
type fakeRunner struct {
	crontab    string
	hasCrontab bool
	calls      [][]string
}

func (f *fakeRunner) run(_ context.Context, stdin, name string, args ...string) (runResult, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if name == "crontab" && len(args) == 1 {
		switch args[0] {
		case "-l":
			if !f.hasCrontab {
				return runResult{code: 1, stderr: "no crontab for user"}, nil
			}
			return runResult{stdout: f.crontab}, nil
		case "-":
			f.crontab = stdin
			f.hasCrontab = true
			return runResult{}, nil
		}
	}
	return runResult{}, nil
}

func (f *fakeRunner) called(name string, args ...string) bool {
	want := append([]string{name}, args...)
	for _, call := range f.calls {
		if len(call) < len(want) {
			continue
		}
		match := true
		for i := range want {
			if call[i] != want[i] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func newTestInstaller(t *testing.T, goos string, fr *fakeRunner) *Installer {
	t.Helper()
	return &Installer{
		home:     t.TempDir(),
		goos:     goos,
		run:      fr,
		lookPath: func(string) (string, error) { return "/usr/bin/tool", nil },
		uid:      func() int { return 501 },
		now:      func() time.Time { return time.Date(2024, 6, 5, 8, 0, 0, 0, time.UTC) },
		log:      logx.Nop(),
	}
}

func testRequest(t *testing.T, overwrite bool) Request {
	t.Helper()
	base := []string{"/usr/local/bin/mailmerge", "send", "--csv", "/data/team.csv"}
	return Request{
		Label:    "team",
		Spec:     mustParse(t, "30 9 * * *"),
		Display:  "09:30",
		BaseArgs: base,
		Render: func(spec, statePath string) []string {
			return append(append([]string{}, base...), "--schedule-spec", spec, "--schedule-state", statePath)
		},
		Overwrite: overwrite,
	}
}

func TestDetermineBackend(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		goos    string
		choice  string
		noTool  bool
		want    Backend
		wantErr bool
	}{
		{name: "auto darwin", goos: "darwin", choice: "auto", want: BackendLaunchd},
		{name: "auto linux with systemctl", goos: "linux", choice: "auto", want: BackendSystemd},
		{name: "auto linux without systemctl", goos: "linux", choice: "auto", noTool: true, want: BackendCron},
		{name: "empty means auto", goos: "darwin", choice: "", want: BackendLaunchd},
		{name: "explicit cron anywhere", goos: "linux", choice: "cron", want: BackendCron},
		{name: "launchd on linux", goos: "linux", choice: "launchd", wantErr: true},
		{name: "systemd on darwin", goos: "darwin", choice: "systemd", wantErr: true},
		{name: "unknown backend", goos: "linux", choice: "atd", wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			inst := newTestInstaller(t, tt.goos, &fakeRunner{})
			if tt.noTool {
				inst.lookPath = func(string) (string, error) { return "", errors.New("not found") }
			}
			got, err := inst.DetermineBackend(tt.choice)
			if tt.wantErr {
				var capErr *CapabilityError
				if !errors.As(err, &capErr) {
					t.Fatalf("error = %v, want *CapabilityError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DetermineBackend error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("backend = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestInstallCronAndRemove(t *testing.T) {
	t.Parallel()
	fr := &fakeRunner{}
	inst := newTestInstaller(t, "linux", fr)

	res, err := inst.Install(context.Background(), BackendCron, testRequest(t, false))
	if err != nil {
		t.Fatalf("Install error: %v", err)
	}
	if !strings.Contains(fr.crontab, cronCommentPrefix+" team (") {
		t.Fatalf("crontab missing marker comment:\n%s", fr.crontab)
	}
	if !strings.Contains(fr.crontab, "30 9 * * * /usr/local/bin/mailmerge") {
		t.Fatalf("crontab missing cron line:\n%s", fr.crontab)
	}
	if !strings.Contains(fr.crontab, "--schedule-state "+res.StatePath) {
		t.Fatalf("crontab command does not carry the state path:\n%s", fr.crontab)
	}
	if _, err := os.Stat(res.StatePath); err != nil {
		t.Fatalf("state file not initialized: %v", err)
	}
	if want := time.Date(2024, 6, 5, 9, 30, 0, 0, time.UTC); !res.NextDue.Equal(want) {
		t.Fatalf("NextDue = %v, want %v", res.NextDue, want)
	}

	removed, err := inst.RemoveAll(context.Background(), BackendCron)
	if err != nil {
		t.Fatalf("RemoveAll error: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if strings.Contains(fr.crontab, cronCommentPrefix) {
		t.Fatalf("crontab still contains a marker:\n%s", fr.crontab)
	}
	if _, err := os.Stat(res.StatePath); !os.IsNotExist(err) {
		t.Fatalf("state file survived removal: %v", err)
	}
}

func TestInstallCronPreservesForeignLines(t *testing.T) {
	t.Parallel()
	fr := &fakeRunner{crontab: "MAILTO=ops@example.com\n0 3 * * * /usr/local/bin/backup\n", hasCrontab: true}
	inst := newTestInstaller(t, "linux", fr)

	if _, err := inst.Install(context.Background(), BackendCron, testRequest(t, false)); err != nil {
		t.Fatalf("Install error: %v", err)
	}
	if !strings.Contains(fr.crontab, "/usr/local/bin/backup") {
		t.Fatalf("foreign crontab line lost:\n%s", fr.crontab)
	}

	removed, err := inst.RemoveAll(context.Background(), BackendCron)
	if err != nil || removed != 1 {
		t.Fatalf("RemoveAll = %d, %v; want 1, nil", removed, err)
	}
	if !strings.Contains(fr.crontab, "/usr/local/bin/backup") {
		t.Fatalf("foreign crontab line lost on removal:\n%s", fr.crontab)
	}
}

func TestInstallCronAlreadyInstalled(t *testing.T) {
	t.Parallel()
	fr := &fakeRunner{}
	inst := newTestInstaller(t, "linux", fr)
	ctx := context.Background()

	if _, err := inst.Install(ctx, BackendCron, testRequest(t, false)); err != nil {
		t.Fatalf("first Install error: %v", err)
	}

	_, err := inst.Install(ctx, BackendCron, testRequest(t, false))
	var already *AlreadyInstalledError
	if !errors.As(err, &already) {
		t.Fatalf("second Install error = %v, want *AlreadyInstalledError", err)
	}

	// With overwrite the old block is replaced, not duplicated.
	if _, err := inst.Install(ctx, BackendCron, testRequest(t, true)); err != nil {
		t.Fatalf("overwrite Install error: %v", err)
	}
	if got := strings.Count(fr.crontab, cronCommentPrefix); got != 1 {
		t.Fatalf("marker count = %d, want 1:\n%s", got, fr.crontab)
	}
}

func TestRemoveAllNothingInstalled(t *testing.T) {
	t.Parallel()
	fr := &fakeRunner{}
	inst := newTestInstaller(t, "linux", fr)

	removed, err := inst.RemoveAll(context.Background(), BackendCron)
	if err != nil {
		t.Fatalf("RemoveAll error: %v", err)
	}
	if removed != 0 {
		t.Fatalf("removed = %d, want 0", removed)
	}
	if fr.called("crontab", "-") {
		t.Fatal("RemoveAll rewrote the crontab although nothing was installed")
	}

	removed, err = inst.RemoveAll(context.Background(), BackendSystemd)
	if err != nil || removed != 0 {
		t.Fatalf("systemd RemoveAll = %d, %v; want 0, nil", removed, err)
	}
}

func TestInstallSystemdAndRemove(t *testing.T) {
	t.Parallel()
	fr := &fakeRunner{}
	inst := newTestInstaller(t, "linux", fr)
	ctx := context.Background()

	res, err := inst.Install(ctx, BackendSystemd, testRequest(t, false))
	if err != nil {
		t.Fatalf("Install error: %v", err)
	}

	dir := inst.systemdUserDir()
	serviceBytes, err := os.ReadFile(filepath.Join(dir, "mailmerge-team.service"))
	if err != nil {
		t.Fatalf("service unit not written: %v", err)
	}
	if !strings.Contains(string(serviceBytes), "ExecStart=") ||
		!strings.Contains(string(serviceBytes), "--schedule-state") {
		t.Fatalf("service unit incomplete:\n%s", serviceBytes)
	}
	timerBytes, err := os.ReadFile(res.Location)
	if err != nil {
		t.Fatalf("timer unit not written: %v", err)
	}
	if !strings.Contains(string(timerBytes), "OnCalendar=*-*-* 09:30:00") {
		t.Fatalf("timer unit missing calendar:\n%s", timerBytes)
	}
	if !fr.called("systemctl", "--user", "daemon-reload") {
		t.Fatal("daemon-reload not invoked")
	}
	if !fr.called("systemctl", "--user", "enable", "--now", "mailmerge-team.timer") {
		t.Fatal("timer not enabled")
	}

	removed, err := inst.RemoveAll(ctx, BackendSystemd)
	if err != nil || removed != 1 {
		t.Fatalf("RemoveAll = %d, %v; want 1, nil", removed, err)
	}
	if _, err := os.Stat(res.Location); !os.IsNotExist(err) {
		t.Fatal("timer unit survived removal")
	}
	if _, err := os.Stat(res.StatePath); !os.IsNotExist(err) {
		t.Fatal("state file survived removal")
	}
	if !fr.called("systemctl", "--user", "disable", "--now", "mailmerge-team.timer") {
		t.Fatal("timer not disabled on removal")
	}
}

func TestInstallLaunchdWritesPlist(t *testing.T) {
	t.Parallel()
	fr := &fakeRunner{}
	inst := newTestInstaller(t, "darwin", fr)

	res, err := inst.Install(context.Background(), BackendLaunchd, testRequest(t, false))
	if err != nil {
		t.Fatalf("Install error: %v", err)
	}
	payload, err := os.ReadFile(res.Location)
	if err != nil {
		t.Fatalf("plist not written: %v", err)
	}
	for _, want := range []string{
		"com.gmailmailmerge.team",
		"StartCalendarInterval",
		"--schedule-state",
	} {
		if !strings.Contains(string(payload), want) {
			t.Fatalf("plist missing %q:\n%s", want, payload)
		}
	}
	if !fr.called("launchctl", "bootstrap", "gui/501", res.Location) {
		t.Fatal("launchctl bootstrap not invoked")
	}
}

func TestFingerprintAndLabel(t *testing.T) {
	t.Parallel()
	spec := mustParse(t, "30 9 * * *")
	a := Fingerprint([]string{"mailmerge", "send"}, spec)
	b := Fingerprint([]string{"mailmerge", "send", "--dry-run"}, spec)
	if len(a) != 8 || len(b) != 8 {
		t.Fatalf("fingerprint lengths = %d, %d; want 8", len(a), len(b))
	}
	if a == b {
		t.Fatal("different commands produced the same fingerprint")
	}
	if again := Fingerprint([]string{"mailmerge", "send"}, spec); again != a {
		t.Fatal("fingerprint is not deterministic")
	}

	tests := []struct {
		in   string
		want string
	}{
		{"team", "team"},
		{"Team List (Q3)", "Team-List-Q3"},
		{"../../etc", "etc"},
		{"...", "mailmerge"},
		{"", "mailmerge"},
	}
	for _, tt := range tests {
		if got := SanitizeLabel(tt.in); got != tt.want {
			t.Fatalf("SanitizeLabel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
