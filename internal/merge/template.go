package merge

import (
	"fmt"
	"strings"
)

// Template is a $placeholder substitution template: $name, ${name}, and
// $$ for a literal dollar. This is the grammar CSV authors write in
// subject lines and body files, so it is implemented as written rather
// than mapped onto a different template language.
type Template struct {
	src string
}

func NewTemplate(src string) Template {
	return Template{src: src}
}

func (t Template) IsEmpty() bool { return t.src == "" }

// Render substitutes placeholders from ctx. A placeholder with no
// matching key is an error naming the key and the template's label, so
// the operator knows which CSV column is missing.
func (t Template) Render(ctx map[string]string, label string) (string, error) {
	var out strings.Builder
	out.Grow(len(t.src))

	s := t.src
	for i := 0; i < len(s); {
		c := s[i]
		if c != '$' {
			out.WriteByte(c)
			i++
			continue
		}
		if i+1 >= len(s) {
			return "", fmt.Errorf("dangling '$' at end of %s template", label)
		}
		switch next := s[i+1]; {
		case next == '$':
			out.WriteByte('$')
			i += 2
		case next == '{':
			end := strings.IndexByte(s[i+2:], '}')
			if end < 0 {
				return "", fmt.Errorf("unterminated '${' placeholder in %s template", label)
			}
			key := s[i+2 : i+2+end]
			if !validPlaceholderName(key) {
				return "", fmt.Errorf("invalid placeholder %q in %s template", "${"+key+"}", label)
			}
			v, ok := ctx[key]
			if !ok {
				return "", missingKeyError(key, label)
			}
			out.WriteString(v)
			i += 2 + end + 1
		default:
			key := leadingPlaceholderName(s[i+1:])
			if key == "" {
				return "", fmt.Errorf("invalid placeholder after '$' in %s template (use $$ for a literal dollar)", label)
			}
			v, ok := ctx[key]
			if !ok {
				return "", missingKeyError(key, label)
			}
			out.WriteString(v)
			i += 1 + len(key)
		}
	}
	return out.String(), nil
}

func missingKeyError(key, label string) error {
	return fmt.Errorf("missing %q for %s: ensure the CSV provides this column", key, label)
}

// Placeholder names follow the usual identifier rule: a letter or
// underscore, then letters, digits and underscores.
func validPlaceholderName(s string) bool {
	if s == "" {
		return false
	}
	return leadingPlaceholderName(s) == s
}

func leadingPlaceholderName(s string) string {
	n := 0
	for n < len(s) {
		c := s[n]
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
			if n == 0 {
				return ""
			}
		default:
			return s[:n]
		}
		n++
	}
	return s
}
