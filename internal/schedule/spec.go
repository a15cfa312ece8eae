package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// scanWindowDays bounds the minute-by-minute forward scan in NextRun.
// Anything that matches less than once a year is treated as a
// configuration mistake rather than scanned for indefinitely.
const scanWindowDays = 366

// Field is one position of a canonical cron spec: either a wildcard or a
// single fixed integer. Steps, ranges and lists are deliberately not part
// of this grammar.
type Field struct {
	Value    int
	Wildcard bool
}

func (f Field) String() string {
	if f.Wildcard {
		return "*"
	}
	return strconv.Itoa(f.Value)
}

func (f Field) matches(v int) bool {
	return f.Wildcard || f.Value == v
}

// Spec is the canonical five-field schedule every backend artifact and
// due-time computation derives from.
//
// Ranges: minute 0-59, hour 0-23, day 1-31, month 1-12, weekday 0-7 where
// both 0 and 7 mean Sunday (7 is normalized to 0 at parse time).
type Spec struct {
	Minute  Field
	Hour    Field
	Day     Field
	Month   Field
	Weekday Field
}

// ParseSpec parses a five-field cron string into a Spec. Each field must
// be "*" or a plain base-10 integer inside the field's range; anything
// else (steps, ranges, lists, names) is a *SyntaxError.
func ParseSpec(text string) (Spec, error) {
	fields := strings.Fields(text)
	if len(fields) != 5 {
		return Spec{}, &SyntaxError{
			Expr:   text,
			Reason: fmt.Sprintf("expected 5 cron fields, got %d", len(fields)),
		}
	}

	var (
		spec Spec
		err  error
	)
	if spec.Minute, err = parseSpecField(text, fields[0], "minute", 0, 59); err != nil {
		return Spec{}, err
	}
	if spec.Hour, err = parseSpecField(text, fields[1], "hour", 0, 23); err != nil {
		return Spec{}, err
	}
	if spec.Day, err = parseSpecField(text, fields[2], "day", 1, 31); err != nil {
		return Spec{}, err
	}
	if spec.Month, err = parseSpecField(text, fields[3], "month", 1, 12); err != nil {
		return Spec{}, err
	}
	if spec.Weekday, err = parseSpecField(text, fields[4], "weekday", 0, 7); err != nil {
		return Spec{}, err
	}
	// 0 and 7 both mean Sunday.
	if !spec.Weekday.Wildcard && spec.Weekday.Value == 7 {
		spec.Weekday.Value = 0
	}
	return spec, nil
}

func parseSpecField(expr, field, name string, lo, hi int) (Field, error) {
	if field == "*" {
		return Field{Wildcard: true}, nil
	}
	for _, r := range field {
		if r < '0' || r > '9' {
			return Field{}, &SyntaxError{
				Expr: expr,
				Reason: fmt.Sprintf(
					"%s field %q is not supported: only single integers and '*' are allowed (no steps, ranges or lists)",
					name, field,
				),
			}
		}
	}
	v, err := strconv.Atoi(field)
	if err != nil {
		return Field{}, &SyntaxError{
			Expr:   expr,
			Reason: fmt.Sprintf("%s field %q is not a valid integer", name, field),
		}
	}
	if v < lo || v > hi {
		return Field{}, &SyntaxError{
			Expr:   expr,
			Reason: fmt.Sprintf("%s field %d is outside [%d,%d]", name, v, lo, hi),
		}
	}
	return Field{Value: v}, nil
}

// String renders the spec as a five-field cron line.
func (s Spec) String() string {
	return s.Minute.String() + " " + s.Hour.String() + " " +
		s.Day.String() + " " + s.Month.String() + " " + s.Weekday.String()
}

// Matches reports whether t's wall-clock minute satisfies the spec.
// time.Weekday already counts Sunday as 0, matching the cron convention.
func (s Spec) Matches(t time.Time) bool {
	return s.Minute.matches(t.Minute()) &&
		s.Hour.matches(t.Hour()) &&
		s.Day.matches(t.Day()) &&
		s.Month.matches(int(t.Month())) &&
		s.Weekday.matches(int(t.Weekday()))
}

// NextRun returns the first minute strictly after `after` that satisfies
// the spec, scanning the wall clock of after's location minute by minute.
// The scan is bounded at scanWindowDays; exhausting it returns an
// *UnsatisfiableError.
func NextRun(spec Spec, after time.Time) (time.Time, error) {
	c := after.Add(time.Minute)
	candidate := time.Date(c.Year(), c.Month(), c.Day(), c.Hour(), c.Minute(), 0, 0, c.Location())
	limit := candidate.AddDate(0, 0, scanWindowDays)
	for !candidate.After(limit) {
		if spec.Matches(candidate) {
			return candidate, nil
		}
		candidate = candidate.Add(time.Minute)
	}
	return time.Time{}, &UnsatisfiableError{Spec: spec.String(), After: after, Days: scanWindowDays}
}
