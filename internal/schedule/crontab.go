package schedule

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// The user crontab is a single shared text blob accessed read-all /
// write-all through the crontab tool. Each installed job occupies two
// adjacent lines: a marker comment carrying label and fingerprint, then
// the cron line itself.

var cronMarkerPattern = regexp.MustCompile(
	`^` + regexp.QuoteMeta(cronCommentPrefix) + `\s+([^\s(]+)(?:\s+\(([0-9a-fA-F]+)\))?`,
)

func (i *Installer) readCrontab(ctx context.Context) ([]string, error) {
	res, err := i.run.run(ctx, "", "crontab", "-l")
	if err != nil {
		return nil, &ToolError{Tool: "crontab", Args: []string{"-l"}, Err: err}
	}
	if res.code == 0 {
		return splitCrontabLines(res.stdout), nil
	}
	// An empty crontab is not an error.
	if res.code == 1 && strings.Contains(strings.ToLower(res.stderr), "no crontab") {
		return nil, nil
	}
	return nil, &ToolError{
		Tool:   "crontab",
		Args:   []string{"-l"},
		Stderr: firstNonEmpty(res.stderr, res.stdout),
	}
}

func (i *Installer) writeCrontab(ctx context.Context, lines []string) error {
	content := strings.TrimRight(strings.Join(lines, "\n"), "\n") + "\n"
	res, err := i.run.run(ctx, content, "crontab", "-")
	if err != nil {
		return &ToolError{Tool: "crontab", Args: []string{"-"}, Err: err}
	}
	if res.code != 0 {
		return &ToolError{
			Tool:   "crontab",
			Args:   []string{"-"},
			Stderr: firstNonEmpty(res.stderr, res.stdout),
		}
	}
	return nil
}

func splitCrontabLines(text string) []string {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

func (i *Installer) installCron(ctx context.Context, req Request) (Result, error) {
	label := SanitizeLabel(req.Label)
	commentLabel := cronCommentPrefix + " " + label

	lines, err := i.readCrontab(ctx)
	if err != nil {
		return Result{}, err
	}
	existing := findCronMarker(lines, commentLabel)
	if existing >= 0 && !req.Overwrite {
		return Result{}, &AlreadyInstalledError{Backend: BackendCron, Label: label}
	}

	label, fingerprint, statePath, next, err := i.prepare(req)
	if err != nil {
		return Result{}, err
	}
	command := req.Render(req.Spec.String(), statePath)

	if existing >= 0 {
		lines = cutCronBlock(lines, existing)
	}
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) != "" {
		lines = append(lines, "")
	}
	commentLine := fmt.Sprintf("%s (%s)", commentLabel, fingerprint)
	lines = append(lines, commentLine, CronLine(req.Spec, command))

	if err := i.writeCrontab(ctx, lines); err != nil {
		return Result{}, err
	}

	res := Result{
		Backend:   BackendCron,
		Label:     label,
		Location:  commentLine,
		StatePath: statePath,
		NextDue:   next,
	}
	i.logInstalled(BackendCron, req, res)
	return res, nil
}

// findCronMarker matches the marker comment for exactly this label; a
// fingerprint suffix may follow after a space.
func findCronMarker(lines []string, commentLabel string) int {
	for idx, line := range lines {
		if line == commentLabel || strings.HasPrefix(line, commentLabel+" ") {
			return idx
		}
	}
	return -1
}

// cutCronBlock drops the marker line, the cron line below it, and any
// blank padding that followed.
func cutCronBlock(lines []string, idx int) []string {
	lines = append(lines[:idx], lines[idx+1:]...)
	if idx < len(lines) {
		lines = append(lines[:idx], lines[idx+1:]...)
	}
	for idx < len(lines) && strings.TrimSpace(lines[idx]) == "" {
		lines = append(lines[:idx], lines[idx+1:]...)
	}
	return lines
}

func (i *Installer) removeCronJobs(ctx context.Context) (int, error) {
	lines, err := i.readCrontab(ctx)
	if err != nil {
		return 0, err
	}
	if len(lines) == 0 {
		return 0, nil
	}

	var kept []string
	removed := 0
	idx := 0
	for idx < len(lines) {
		line := lines[idx]
		if strings.HasPrefix(line, cronCommentPrefix) {
			label, _ := parseCronMarker(line)
			commandLine := ""
			if idx+1 < len(lines) {
				commandLine = lines[idx+1]
			}
			if sp := extractStatePathFromCommandLine(commandLine); sp != "" {
				i.removeStateFile(sp)
			} else if label != "" {
				i.removeStateByLabel(label)
			}
			idx += 2
			removed++
			if len(kept) > 0 && strings.TrimSpace(kept[len(kept)-1]) == "" {
				kept = kept[:len(kept)-1]
			}
			continue
		}
		kept = append(kept, line)
		idx++
	}
	for len(kept) > 0 && strings.TrimSpace(kept[len(kept)-1]) == "" {
		kept = kept[:len(kept)-1]
	}

	if removed > 0 {
		if err := i.writeCrontab(ctx, kept); err != nil {
			return 0, err
		}
	}
	return removed, nil
}

func parseCronMarker(line string) (label, fingerprint string) {
	m := cronMarkerPattern.FindStringSubmatch(line)
	if m == nil {
		return "", ""
	}
	return m[1], m[2]
}
