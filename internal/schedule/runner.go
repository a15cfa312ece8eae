package schedule

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
)

// runResult carries one external tool transcript. code is meaningful only
// when the spawn itself succeeded.
type runResult struct {
	stdout string
	stderr string
	code   int
}

// runner abstracts the external scheduler tools (crontab, launchctl,
// systemctl) so tests can substitute a fake.
type runner interface {
	run(ctx context.Context, stdin, name string, args ...string) (runResult, error)
}

type execRunner struct{}

func (execRunner) run(ctx context.Context, stdin, name string, args ...string) (runResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = strings.NewReader(stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := runResult{stdout: stdout.String(), stderr: stderr.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.code = exitErr.ExitCode()
			return res, nil
		}
		return res, err
	}
	return res, nil
}

// firstNonEmpty picks the more useful half of a tool transcript for error
// messages.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
