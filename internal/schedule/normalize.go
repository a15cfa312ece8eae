package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Normalized is the result of schedule-expression normalization.
//
// Spec is canonical cron text (five fields, or six when the user supplied
// a six-field vendor crontab line; the extra seconds-equivalent field is
// ignored downstream). Display is the original user input, preserved for
// operator-facing log messages.
type Normalized struct {
	Spec    string
	Display string
}

// cronMacros expands the "@" shorthand names. Matched case-insensitively.
var cronMacros = map[string]string{
	"@yearly":   "0 0 1 1 *",
	"@annually": "0 0 1 1 *",
	"@monthly":  "0 0 1 * *",
	"@weekly":   "0 0 * * 0",
	"@daily":    "0 0 * * *",
	"@midnight": "0 0 * * *",
	"@hourly":   "0 * * * *",
}

// Shape validation for cron passthrough. The canonical grammar (ParseSpec)
// is stricter; these only reject strings that are not cron at all, so
// typos like "61 * * * *" fail at normalize time instead of surfacing as
// an unsatisfiable schedule at install time.
var (
	cronShape5 = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	cronShape6 = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
)

const syntaxHint = "use a cron expression (five fields, e.g. '0 9 * * 1'), a macro like @daily, " +
	"or an ISO 8601 time/datetime such as '09:30' or '2024-06-05T09:30'"

// Normalize turns a user-supplied schedule expression into canonical cron
// text expressed in machine-local wall-clock time.
//
// Interpretation order:
//  1. "@" macros from cronMacros; unknown macros are an error.
//  2. Five or six whitespace-separated fields: cron, passed through after
//     a shape check.
//  3. ISO 8601: a datetime yields "M H D Mo *" (annual recurrence), a bare
//     time of day yields "M H * * *" (daily).
//
// Zone resolution for ISO values: the value's own offset wins, then hint,
// then now's location (the machine zone). The resulting instant is
// converted to now's location before the cron fields are read, so the
// persisted spec always speaks local wall-clock time. `now` supplies both
// "today" for bare times and the machine zone; production passes
// time.Now().
func Normalize(expr string, hint *time.Location, now time.Time) (Normalized, error) {
	cleaned := strings.TrimSpace(expr)
	if cleaned == "" || strings.ContainsAny(cleaned, "\r\n") {
		return Normalized{}, &SyntaxError{Expr: expr, Reason: "must be a single non-empty line"}
	}

	if strings.HasPrefix(cleaned, "@") {
		if spec, ok := cronMacros[strings.ToLower(cleaned)]; ok {
			return Normalized{Spec: spec, Display: cleaned}, nil
		}
		return Normalized{}, &SyntaxError{
			Expr:   expr,
			Reason: "unknown macro (known: @yearly @annually @monthly @weekly @daily @midnight @hourly)",
		}
	}

	if n := len(strings.Fields(cleaned)); n == 5 || n == 6 {
		shape := cronShape5
		if n == 6 {
			shape = cronShape6
		}
		if _, err := shape.Parse(cleaned); err != nil {
			return Normalized{}, &SyntaxError{
				Expr:   expr,
				Reason: fmt.Sprintf("not a valid cron expression: %v", err),
			}
		}
		return Normalized{Spec: cleaned, Display: cleaned}, nil
	}

	if spec, ok := isoToCron(cleaned, hint, now); ok {
		return Normalized{Spec: spec, Display: cleaned}, nil
	}

	return Normalized{}, &SyntaxError{Expr: expr, Reason: syntaxHint}
}

// ResolveZone loads an IANA timezone identifier for use as a Normalize
// hint. Empty input means "no hint" and resolves to nil.
func ResolveZone(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone identifier %q: %w", name, err)
	}
	return loc, nil
}

// rewriteZuluSuffix turns a single trailing "Z" into "+00:00".
func rewriteZuluSuffix(s string) string {
	if strings.HasSuffix(s, "Z") && strings.Count(s, "Z") == 1 {
		return strings.TrimSuffix(s, "Z") + "+00:00"
	}
	return s
}

// Layouts that carry their own offset parse with time.Parse; naive ones
// parse with ParseInLocation against the resolved source zone.
var (
	isoDateTimeOffsetLayouts = []string{
		"2006-01-02T15:04:05.999999999Z07:00",
		"2006-01-02T15:04Z07:00",
		"2006-01-02 15:04:05.999999999Z07:00",
		"2006-01-02 15:04Z07:00",
	}
	isoDateTimeNaiveLayouts = []string{
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02 15:04",
		"2006-01-02",
	}
	isoClockOffsetLayouts = []string{
		"15:04:05.999999999Z07:00",
		"15:04Z07:00",
	}
	isoClockNaiveLayouts = []string{
		"15:04:05.999999999",
		"15:04",
		"15",
	}
)

func isoToCron(value string, hint *time.Location, now time.Time) (string, bool) {
	local := now.Location()
	source := hint
	if source == nil {
		source = local
	}

	candidate := rewriteZuluSuffix(strings.TrimSpace(value))
	if dt, ok := parseISODateTime(candidate, source); ok {
		lt := dt.In(local)
		return fmt.Sprintf("%d %d %d %d *", lt.Minute(), lt.Hour(), lt.Day(), int(lt.Month())), true
	}

	clockCandidate := strings.TrimPrefix(strings.TrimSpace(value), "T")
	clockCandidate = rewriteZuluSuffix(clockCandidate)
	clock, ok := parseISOClock(clockCandidate, source)
	if !ok {
		return "", false
	}
	// Combine with today's date in the source zone, then read the local
	// wall clock of that instant.
	ref := now.In(clock.Location())
	combined := time.Date(ref.Year(), ref.Month(), ref.Day(),
		clock.Hour(), clock.Minute(), clock.Second(), 0, clock.Location())
	lt := combined.In(local)
	return fmt.Sprintf("%d %d * * *", lt.Minute(), lt.Hour()), true
}

func parseISODateTime(s string, source *time.Location) (time.Time, bool) {
	for _, layout := range isoDateTimeOffsetLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	for _, layout := range isoDateTimeNaiveLayouts {
		if t, err := time.ParseInLocation(layout, s, source); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseISOClock(s string, source *time.Location) (time.Time, bool) {
	for _, layout := range isoClockOffsetLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	for _, layout := range isoClockNaiveLayouts {
		if t, err := time.ParseInLocation(layout, s, source); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
