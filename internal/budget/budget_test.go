package budget

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestEstimate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  int
	}{
		{name: "empty", input: "", want: 0},
		{name: "short rounds up to one", input: "ab", want: 1},
		{name: "exact multiple", input: strings.Repeat("x", 400), want: 100},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Estimate(tc.input); got != tc.want {
				t.Errorf("Estimate(%d chars) = %d, want %d", len(tc.input), got, tc.want)
			}
		})
	}
}

func TestClamp(t *testing.T) {
	t.Parallel()

	if got := Clamp("short", 100); got != "short" {
		t.Errorf("Clamp under limit = %q, want unchanged", got)
	}
	if got := Clamp(strings.Repeat("a", 50), 10); len(got) != 10 {
		t.Errorf("Clamp over limit returned %d chars, want 10", len(got))
	}
	if got := Clamp("anything", 0); got != "anything" {
		t.Errorf("Clamp with zero limit = %q, want unchanged", got)
	}

	// A multi-byte rune straddling the cut must not produce invalid UTF-8.
	s := strings.Repeat("é", 20) // 2 bytes each
	got := Clamp(s, 7)
	if !utf8.ValidString(got) {
		t.Errorf("Clamp produced invalid UTF-8: %q", got)
	}
	if len(got) > 7 {
		t.Errorf("Clamp returned %d bytes, want <= 7", len(got))
	}
}
