package contact

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"plain text untouched", "billing question", 100, "billing question"},
		{"trims whitespace", "  hello  ", 100, "hello"},
		{"strips tags", `<script>alert(1)</script>hello`, 100, "alert(1)hello"},
		{"bracketed run treated as a tag", "1 < 2 > 0", 100, "1  0"},
		{"lone angle bracket stripped", "a < b", 100, "a  b"},
		{"strips quotes", `it's a "test"`, 100, "its a test"},
		{"caps at max runes", strings.Repeat("a", 20), 10, strings.Repeat("a", 10)},
		{"rune cap not byte cap", strings.Repeat("é", 8), 5, strings.Repeat("é", 5)},
		{"empty", "", 100, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.in, tt.max); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormSanitized(t *testing.T) {
	in := Form{
		Email:    " ada@example.com ",
		Category: `<b>Billing</b>`,
		Message:  `my card says "declined"`,
	}

	want := Form{
		Email:    "ada@example.com",
		Category: "Billing",
		Message:  "my card says declined",
	}
	if diff := cmp.Diff(want, in.Sanitized()); diff != "" {
		t.Fatalf("sanitized form:\n%s", diff)
	}
}
