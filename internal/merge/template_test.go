package merge

import (
	"strings"
	"testing"
)

func TestTemplateRender(t *testing.T) {
	t.Parallel()
	ctx := map[string]string{
		"name":       "Ada",
		"city":       "London",
		"row_number": "3",
		"_note":      "private",
	}
	tests := []struct {
		name string
		src  string
		want string
	}{
		{name: "bare placeholder", src: "Hello $name!", want: "Hello Ada!"},
		{name: "braced placeholder", src: "Hello ${name}!", want: "Hello Ada!"},
		{name: "braced mid-word", src: "${name}son", want: "Adason"},
		{name: "bare stops at non-identifier", src: "$name, welcome to $city.", want: "Ada, welcome to London."},
		{name: "escaped dollar", src: "Pay $$5 to $name", want: "Pay $5 to Ada"},
		{name: "double escape", src: "$$$$", want: "$$"},
		{name: "underscore name", src: "$_note", want: "private"},
		{name: "row number", src: "row ${row_number}", want: "row 3"},
		{name: "no placeholders", src: "plain text", want: "plain text"},
		{name: "empty", src: "", want: ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := NewTemplate(tt.src).Render(ctx, "subject")
			if err != nil {
				t.Fatalf("Render(%q) error: %v", tt.src, err)
			}
			if got != tt.want {
				t.Fatalf("Render(%q) = %q, want %q", tt.src, got, tt.want)
			}
		})
	}
}

func TestTemplateRenderErrors(t *testing.T) {
	t.Parallel()
	ctx := map[string]string{"name": "Ada"}
	tests := []struct {
		name    string
		src     string
		wantSub string
	}{
		{name: "missing bare key", src: "Hi $namee", wantSub: `missing "namee" for subject`},
		{name: "missing braced key", src: "Hi ${first}", wantSub: `missing "first" for subject`},
		{name: "dangling dollar", src: "total: $", wantSub: "dangling '$'"},
		{name: "unterminated brace", src: "Hi ${name", wantSub: "unterminated '${'"},
		{name: "empty braces", src: "Hi ${}", wantSub: "invalid placeholder"},
		{name: "digit-led name", src: "Hi ${1name}", wantSub: "invalid placeholder"},
		{name: "dollar before punctuation", src: "cost $.50", wantSub: "invalid placeholder after '$'"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewTemplate(tt.src).Render(ctx, "subject")
			if err == nil {
				t.Fatalf("Render(%q) succeeded, want error containing %q", tt.src, tt.wantSub)
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Fatalf("Render(%q) error = %q, want substring %q", tt.src, err, tt.wantSub)
			}
		})
	}
}

func TestMissingKeyErrorNamesLabel(t *testing.T) {
	t.Parallel()
	_, err := NewTemplate("$missing").Render(map[string]string{}, "body")
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{`"missing"`, "body", "CSV provides this column"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q lacks %q", err, want)
		}
	}
}
