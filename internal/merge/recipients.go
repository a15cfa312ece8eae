package merge

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
)

// Row is one data row of the recipient CSV. Number is the 1-based data
// row index (the header does not count), carried through logs so a
// failing row can be found in the source file.
type Row struct {
	Number int
	Fields map[string]string
}

// LoadRecipients reads the CSV into ordered rows. Header names become
// the template keys; every cell stays a string.
func LoadRecipients(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv %q: %w", path, err)
	}
	defer f.Close()

	maps, err := gocsv.CSVToMaps(f)
	if err != nil {
		return nil, fmt.Errorf("parse csv %q: %w", path, err)
	}

	rows := make([]Row, 0, len(maps))
	for i, m := range maps {
		rows = append(rows, Row{Number: i + 1, Fields: m})
	}
	return rows, nil
}

// Lookup finds a column value by name, case-insensitively, with
// surrounding whitespace trimmed from both the header and the value.
func (r Row) Lookup(column string) (string, bool) {
	if v, ok := r.Fields[column]; ok {
		return strings.TrimSpace(v), true
	}
	for k, v := range r.Fields {
		if strings.EqualFold(strings.TrimSpace(k), column) {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

// Context returns the row's fields as a template context. row_number is
// always available even without a matching column.
func (r Row) Context() map[string]string {
	ctx := make(map[string]string, len(r.Fields)+1)
	for k, v := range r.Fields {
		ctx[k] = v
	}
	if _, ok := ctx["row_number"]; !ok {
		ctx["row_number"] = strconv.Itoa(r.Number)
	}
	return ctx
}

// SplitList splits a comma- or semicolon-separated cell into trimmed,
// non-empty entries. Used for address lists and attachment path lists.
func SplitList(raw string) []string {
	raw = strings.ReplaceAll(raw, ";", ",")
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// dedupe removes exact-string duplicates, keeping first-seen order.
func dedupe(values []string) []string {
	if len(values) < 2 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	out := values[:0]
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
