package schedule

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Due-time state, one JSON file per installed job. The OS scheduler is
// trusted to invoke the program at least once per matching minute; the
// state file is what makes repeated or early invocations idempotent.
//
// Timestamps are naive local wall-clock strings. Corrupt or missing state
// is never an error: it is healed by recomputing from the spec, since a
// missed or duplicated run beats a permanently broken schedule.

const stateTimeLayout = "2006-01-02T15:04:05"

type stateFile struct {
	NextDue string  `json:"next_due"`
	LastRun *string `json:"last_run"`
}

// InitState ensures a well-formed state file exists at path and returns
// its next-due time. An existing file's parseable next_due is trusted
// unless overwrite is set; anything else (missing file, corrupt JSON, bad
// timestamp) recomputes next_due = NextRun(spec, now-1m), so a spec
// matching the current minute is due immediately.
func InitState(path string, spec Spec, now time.Time, overwrite bool) (time.Time, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return time.Time{}, fmt.Errorf("create state dir: %w", err)
	}

	if !overwrite {
		if st, ok := readState(path); ok && st.NextDue != "" {
			if due, err := time.ParseInLocation(stateTimeLayout, st.NextDue, now.Location()); err == nil {
				return due, nil
			}
		}
	}

	nowMin := truncateMinute(now)
	next, err := NextRun(spec, nowMin.Add(-time.Minute))
	if err != nil {
		return time.Time{}, err
	}
	st := stateFile{NextDue: next.Format(stateTimeLayout)}
	if err := writeState(path, st); err != nil {
		return time.Time{}, err
	}
	return next, nil
}

// CheckAndAdvance answers "is the job due right now" and advances the
// persisted state when it is.
//
// now is truncated to the minute and compared against the recovered
// next_due. Due: persist last_run=now and next_due=NextRun(spec, old
// next_due) — advancing from the old due time, not from now, so a late
// invocation does not shift the schedule. Pending: the file is still
// rewritten so both keys are guaranteed present and well-formed.
//
// Called twice within the same matching minute, only the first call
// reports due.
func CheckAndAdvance(path string, spec Spec, now time.Time) (bool, time.Time, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, time.Time{}, fmt.Errorf("create state dir: %w", err)
	}

	nowMin := truncateMinute(now)
	st, _ := readState(path)

	nextDue := time.Time{}
	if st.NextDue != "" {
		if t, err := time.ParseInLocation(stateTimeLayout, st.NextDue, now.Location()); err == nil {
			nextDue = t
		}
	}
	if nextDue.IsZero() {
		t, err := NextRun(spec, nowMin.Add(-time.Minute))
		if err != nil {
			return false, time.Time{}, err
		}
		nextDue = t
	}

	if !nowMin.Before(nextDue) {
		after, err := NextRun(spec, nextDue)
		if err != nil {
			return false, time.Time{}, err
		}
		lastRun := nowMin.Format(stateTimeLayout)
		st.NextDue = after.Format(stateTimeLayout)
		st.LastRun = &lastRun
		if err := writeState(path, st); err != nil {
			return false, time.Time{}, err
		}
		return true, after, nil
	}

	st.NextDue = nextDue.Format(stateTimeLayout)
	if err := writeState(path, st); err != nil {
		return false, time.Time{}, err
	}
	return false, nextDue, nil
}

func truncateMinute(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, t.Location())
}

func readState(path string) (stateFile, bool) {
	b, err := os.ReadFile(path)
	if err != nil {
		return stateFile{}, false
	}
	var st stateFile
	if err := json.Unmarshal(b, &st); err != nil {
		return stateFile{}, false
	}
	return st, true
}

func writeState(path string, st stateFile) error {
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}
