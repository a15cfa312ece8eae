package schedule

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	plist "howett.net/plist"
)

// launchdJob is the LaunchAgent payload. RunAtLoad is safe because every
// scheduled invocation is gated by the due-time state file.
type launchdJob struct {
	Label                 string         `plist:"Label"`
	ProgramArguments      []string       `plist:"ProgramArguments"`
	RunAtLoad             bool           `plist:"RunAtLoad"`
	StartCalendarInterval map[string]int `plist:"StartCalendarInterval"`
	StandardOutPath       string         `plist:"StandardOutPath"`
	StandardErrorPath     string         `plist:"StandardErrorPath"`
	WorkingDirectory      string         `plist:"WorkingDirectory,omitempty"`
}

// LaunchdPlist renders a LaunchAgent property list for one job. Pure so
// the artifact can be previewed on any platform.
func LaunchdPlist(label string, programArgs []string, interval map[string]int, logPath, workDir string) ([]byte, error) {
	job := launchdJob{
		Label:                 label,
		ProgramArguments:      programArgs,
		RunAtLoad:             true,
		StartCalendarInterval: interval,
		StandardOutPath:       logPath,
		StandardErrorPath:     logPath,
		WorkingDirectory:      workDir,
	}
	b, err := plist.MarshalIndent(job, plist.XMLFormat, "\t")
	if err != nil {
		return nil, fmt.Errorf("render launchd plist: %w", err)
	}
	return b, nil
}

func (i *Installer) installLaunchd(ctx context.Context, req Request) (Result, error) {
	interval, err := LaunchdInterval(req.Spec)
	if err != nil {
		return Result{}, err
	}

	label := SanitizeLabel(req.Label)
	fullLabel := launchdLabelPrefix + label
	plistPath := filepath.Join(i.launchAgentsDir(), fullLabel+".plist")

	if _, statErr := os.Stat(plistPath); statErr == nil {
		if !req.Overwrite {
			return Result{}, &AlreadyInstalledError{Backend: BackendLaunchd, Label: label}
		}
		// Tear down the live registration; a stale or never-loaded agent
		// makes this fail and that is fine.
		_, _ = i.run.run(ctx, "", "launchctl", "bootout", i.guiTarget(), plistPath)
	}

	label, _, statePath, next, err := i.prepare(req)
	if err != nil {
		return Result{}, err
	}
	programArgs := req.Render(req.Spec.String(), statePath)

	logPath := i.launchdLogPath(label)
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return Result{}, fmt.Errorf("create log dir: %w", err)
	}
	if err := os.MkdirAll(i.launchAgentsDir(), 0o755); err != nil {
		return Result{}, fmt.Errorf("create LaunchAgents dir: %w", err)
	}

	payload, err := LaunchdPlist(fullLabel, programArgs, interval, logPath, req.WorkDir)
	if err != nil {
		return Result{}, err
	}
	if err := os.WriteFile(plistPath, payload, 0o644); err != nil {
		return Result{}, fmt.Errorf("write %s: %w", plistPath, err)
	}

	res, err := i.run.run(ctx, "", "launchctl", "bootstrap", i.guiTarget(), plistPath)
	if err != nil {
		return Result{}, &ToolError{Tool: "launchctl", Args: []string{"bootstrap"}, Err: err}
	}
	if res.code != 0 {
		return Result{}, &ToolError{
			Tool:   "launchctl",
			Args:   []string{"bootstrap", i.guiTarget(), plistPath},
			Stderr: firstNonEmpty(res.stderr, res.stdout),
		}
	}

	result := Result{
		Backend:   BackendLaunchd,
		Label:     label,
		Location:  plistPath,
		StatePath: statePath,
		NextDue:   next,
	}
	i.logInstalled(BackendLaunchd, req, result)
	return result, nil
}

func (i *Installer) removeLaunchdJobs(ctx context.Context) (int, error) {
	dir := i.launchAgentsDir()
	matches, err := filepath.Glob(filepath.Join(dir, launchdLabelPrefix+"*.plist"))
	if err != nil || len(matches) == 0 {
		return 0, nil
	}

	removed := 0
	for _, plistPath := range matches {
		base := strings.TrimSuffix(filepath.Base(plistPath), ".plist")
		label := strings.TrimPrefix(base, launchdLabelPrefix)

		statePath := ""
		if data, readErr := os.ReadFile(plistPath); readErr == nil {
			var payload struct {
				ProgramArguments []string `plist:"ProgramArguments"`
			}
			if _, umErr := plist.Unmarshal(data, &payload); umErr == nil {
				statePath = ExtractStatePath(payload.ProgramArguments)
			}
		}

		_, _ = i.run.run(ctx, "", "launchctl", "bootout", i.guiTarget(), plistPath)
		if rmErr := os.Remove(plistPath); rmErr != nil {
			continue
		}
		removed++
		if statePath != "" {
			i.removeStateFile(statePath)
		} else {
			i.removeStateByLabel(label)
		}
	}
	return removed, nil
}

func (i *Installer) guiTarget() string {
	return fmt.Sprintf("gui/%d", i.uid())
}
