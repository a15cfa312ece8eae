package schedule

import (
	"fmt"

	shellquote "github.com/kballard/go-shellquote"
)

// Backend artifact converters. Cron expresses the full canonical grammar;
// launchd and systemd express "at HH:MM" shapes only, so both require
// fixed minute and hour, and neither can express a fixed day-of-month
// AND a fixed weekday at once (their grammars would read it as a
// disjunction, silently changing the schedule).

// CronLine renders a crontab entry: the five spec fields followed by the
// shell-quoted command.
func CronLine(spec Spec, command []string) string {
	return spec.String() + " " + shellquote.Join(command...)
}

// LaunchdInterval converts a spec to a StartCalendarInterval dictionary.
// Minute and Hour are always present; Day, Month and Weekday appear only
// when fixed.
func LaunchdInterval(spec Spec) (map[string]int, error) {
	if err := requireFixedTime(BackendLaunchd, spec); err != nil {
		return nil, err
	}
	if !spec.Day.Wildcard && !spec.Weekday.Wildcard {
		return nil, &CapabilityError{
			Backend: BackendLaunchd,
			Reason:  "cannot combine a specific day-of-month and weekday in one calendar interval",
		}
	}

	interval := map[string]int{
		"Minute": spec.Minute.Value,
		"Hour":   spec.Hour.Value,
	}
	if !spec.Day.Wildcard {
		interval["Day"] = spec.Day.Value
	}
	if !spec.Month.Wildcard {
		interval["Month"] = spec.Month.Value
	}
	if !spec.Weekday.Wildcard {
		interval["Weekday"] = spec.Weekday.Value
	}
	return interval, nil
}

// systemdWeekdayNames maps cron weekday values to systemd's short names.
// Index 7 exists because cron accepts 7 for Sunday, although ParseSpec
// normalizes it away.
var systemdWeekdayNames = [8]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// SystemdCalendar converts a spec to an OnCalendar expression:
// "*-MM-DD HH:MM:00", or "Sun *-MM-* HH:MM:00" when a weekday is fixed.
func SystemdCalendar(spec Spec) (string, error) {
	if err := requireFixedTime(BackendSystemd, spec); err != nil {
		return "", err
	}
	if !spec.Day.Wildcard && !spec.Weekday.Wildcard {
		return "", &CapabilityError{
			Backend: BackendSystemd,
			Reason:  "cannot express both a specific day-of-month and weekday at the same time",
		}
	}

	timePart := fmt.Sprintf("%02d:%02d:00", spec.Hour.Value, spec.Minute.Value)
	if !spec.Weekday.Wildcard {
		name := systemdWeekdayNames[spec.Weekday.Value]
		return fmt.Sprintf("%s *-%s-* %s", name, padCalendarField(spec.Month), timePart), nil
	}
	return fmt.Sprintf("*-%s-%s %s", padCalendarField(spec.Month), padCalendarField(spec.Day), timePart), nil
}

func requireFixedTime(backend Backend, spec Spec) error {
	if spec.Minute.Wildcard {
		return &CapabilityError{Backend: backend, Reason: "minute must be a fixed value for this scheduler backend"}
	}
	if spec.Hour.Wildcard {
		return &CapabilityError{Backend: backend, Reason: "hour must be a fixed value for this scheduler backend"}
	}
	return nil
}

func padCalendarField(f Field) string {
	if f.Wildcard {
		return "*"
	}
	return fmt.Sprintf("%02d", f.Value)
}
