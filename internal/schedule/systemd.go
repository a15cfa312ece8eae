package schedule

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/coreos/go-systemd/v22/unit"
	shellquote "github.com/kballard/go-shellquote"
)

// User-session unit pair per job: a oneshot service and the calendar
// timer that triggers it. Rendering is pure; activation shells out to
// systemctl --user.

// SystemdServiceUnit renders the .service half of a job.
func SystemdServiceUnit(unitName, label, workDir, execStart string) []byte {
	opts := []*unit.UnitOption{
		unit.NewUnitOption("Unit", "Description", "Mailmerge job "+label),
		unit.NewUnitOption("Service", "Type", "oneshot"),
	}
	if workDir != "" {
		opts = append(opts, unit.NewUnitOption("Service", "WorkingDirectory", workDir))
	}
	opts = append(opts,
		unit.NewUnitOption("Service", "ExecStart", execStart),
		unit.NewUnitOption("Install", "WantedBy", "default.target"),
	)
	b, _ := io.ReadAll(unit.Serialize(opts))
	return b
}

// SystemdTimerUnit renders the .timer half of a job. Persistent=true asks
// systemd to fire a missed window at the next opportunity; the due-time
// state keeps that idempotent.
func SystemdTimerUnit(unitName, label, calendar string) []byte {
	opts := []*unit.UnitOption{
		unit.NewUnitOption("Unit", "Description", "Mailmerge timer "+label),
		unit.NewUnitOption("Timer", "OnCalendar", calendar),
		unit.NewUnitOption("Timer", "Persistent", "true"),
		unit.NewUnitOption("Timer", "Unit", unitName+".service"),
		unit.NewUnitOption("Install", "WantedBy", "timers.target"),
	}
	b, _ := io.ReadAll(unit.Serialize(opts))
	return b
}

func (i *Installer) installSystemd(ctx context.Context, req Request) (Result, error) {
	if _, err := i.lookPath("systemctl"); err != nil {
		return Result{}, &ToolError{Tool: "systemctl", Stderr: "not found on PATH; the systemd backend requires systemctl to manage timers"}
	}

	calendar, err := SystemdCalendar(req.Spec)
	if err != nil {
		return Result{}, err
	}

	label := SanitizeLabel(req.Label)
	unitName := systemdUnitPrefix + label
	dir := i.systemdUserDir()
	servicePath := filepath.Join(dir, unitName+".service")
	timerPath := filepath.Join(dir, unitName+".timer")

	_, serviceErr := os.Stat(servicePath)
	_, timerErr := os.Stat(timerPath)
	exists := serviceErr == nil || timerErr == nil
	if exists && !req.Overwrite {
		return Result{}, &AlreadyInstalledError{Backend: BackendSystemd, Label: label}
	}
	if timerErr == nil {
		_, _ = i.run.run(ctx, "", "systemctl", "--user", "disable", "--now", unitName+".timer")
	}

	label, _, statePath, next, err := i.prepare(req)
	if err != nil {
		return Result{}, err
	}
	programArgs := req.Render(req.Spec.String(), statePath)
	execStart := shellquote.Join(programArgs...)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create systemd user dir: %w", err)
	}
	if err := os.WriteFile(servicePath, SystemdServiceUnit(unitName, label, req.WorkDir, execStart), 0o644); err != nil {
		return Result{}, fmt.Errorf("write %s: %w", servicePath, err)
	}
	if err := os.WriteFile(timerPath, SystemdTimerUnit(unitName, label, calendar), 0o644); err != nil {
		return Result{}, fmt.Errorf("write %s: %w", timerPath, err)
	}

	if err := i.systemctl(ctx, "daemon-reload"); err != nil {
		return Result{}, err
	}
	if err := i.systemctl(ctx, "enable", "--now", unitName+".timer"); err != nil {
		return Result{}, err
	}

	res := Result{
		Backend:   BackendSystemd,
		Label:     label,
		Location:  timerPath,
		StatePath: statePath,
		NextDue:   next,
	}
	i.logInstalled(BackendSystemd, req, res)
	return res, nil
}

func (i *Installer) removeSystemdJobs(ctx context.Context) (int, error) {
	dir := i.systemdUserDir()
	timers, err := filepath.Glob(filepath.Join(dir, systemdUnitPrefix+"*.timer"))
	if err != nil || len(timers) == 0 {
		return 0, nil
	}

	_, lookErr := i.lookPath("systemctl")
	hasSystemctl := lookErr == nil

	removed := 0
	for _, timerPath := range timers {
		unitName := strings.TrimSuffix(filepath.Base(timerPath), ".timer")
		label := strings.TrimPrefix(unitName, systemdUnitPrefix)

		if hasSystemctl {
			_, _ = i.run.run(ctx, "", "systemctl", "--user", "disable", "--now", unitName+".timer")
		}

		servicePath := filepath.Join(dir, unitName+".service")
		statePath := ""
		if content, readErr := os.ReadFile(servicePath); readErr == nil {
			for _, line := range strings.Split(string(content), "\n") {
				if strings.HasPrefix(line, "ExecStart=") {
					statePath = extractStatePathFromCommandLine(strings.TrimPrefix(line, "ExecStart="))
					break
				}
			}
		}

		if rmErr := os.Remove(timerPath); rmErr != nil {
			continue
		}
		removed++
		_ = os.Remove(servicePath)
		if statePath != "" {
			i.removeStateFile(statePath)
		} else {
			i.removeStateByLabel(label)
		}
	}

	if removed > 0 && hasSystemctl {
		_, _ = i.run.run(ctx, "", "systemctl", "--user", "daemon-reload")
	}
	return removed, nil
}

func (i *Installer) systemctl(ctx context.Context, args ...string) error {
	full := append([]string{"--user"}, args...)
	res, err := i.run.run(ctx, "", "systemctl", full...)
	if err != nil {
		return &ToolError{Tool: "systemctl", Args: full, Err: err}
	}
	if res.code != 0 {
		return &ToolError{Tool: "systemctl", Args: full, Stderr: firstNonEmpty(res.stderr, res.stdout)}
	}
	return nil
}
