package schedule

import (
	"fmt"
	"strings"
	"time"
)

// SyntaxError reports a schedule expression that matches none of the
// accepted grammars. It is fatal and user-visible; there is nothing to
// retry.
type SyntaxError struct {
	Expr   string
	Reason string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid schedule %q: %s", e.Expr, e.Reason)
}

// CapabilityError reports a valid canonical spec that the chosen backend's
// grammar cannot express, or a backend that the current platform cannot
// run. Switching backends is the usual fix.
type CapabilityError struct {
	Backend Backend
	Reason  string
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("%s backend: %s", e.Backend, e.Reason)
}

// UnsatisfiableError reports a spec with no matching minute inside the
// bounded scan window. Either the combination is impossible (a February
// 30th equivalent) or it is rarer than the window allows.
type UnsatisfiableError struct {
	Spec  string
	After time.Time
	Days  int
}

func (e *UnsatisfiableError) Error() string {
	return fmt.Sprintf(
		"cron spec %q matches no minute within %d days after %s (impossible or extremely rare day/month/weekday combination)",
		e.Spec, e.Days, e.After.Format("2006-01-02 15:04"),
	)
}

// AlreadyInstalledError reports an install collision on a label. Passing
// the overwrite flag replaces the existing job.
type AlreadyInstalledError struct {
	Backend Backend
	Label   string
}

func (e *AlreadyInstalledError) Error() string {
	return fmt.Sprintf(
		"a %s job for label %q already exists: re-run with --overwrite to replace it",
		e.Backend, e.Label,
	)
}

// ToolError reports a failed or unavailable external scheduler tool
// (crontab, launchctl, systemctl). Stderr carries the tool's own words
// when it produced any.
type ToolError struct {
	Tool   string
	Args   []string
	Stderr string
	Err    error
}

func (e *ToolError) Error() string {
	cmd := e.Tool
	if len(e.Args) > 0 {
		cmd += " " + strings.Join(e.Args, " ")
	}
	switch {
	case e.Stderr != "":
		return fmt.Sprintf("%s failed: %s", cmd, e.Stderr)
	case e.Err != nil:
		return fmt.Sprintf("%s failed: %v", cmd, e.Err)
	default:
		return cmd + " failed"
	}
}

func (e *ToolError) Unwrap() error { return e.Err }
