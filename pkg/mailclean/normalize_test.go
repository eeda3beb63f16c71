package mailclean

import (
	"strings"
	"testing"
)

func TestNormalizeMinimal(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"crlf", "a\r\nb\r\n\r\n\r\n\r\nc", "a\nb\n\nc"},
		{"lone_cr", "a\rb", "a\nb"},
		{"nbsp_and_zero_width", "a\u00a0b\u200bc\ufeff", "a bc"},
		{"mailto_after_address", "Mail jane@example.com <mailto:jane@example.com>", "Mail jane@example.com "},
		{"mailto_alone", "Mail <mailto:jane@example.com> now", "Mail jane@example.com now"},
		{"tel", "Call <tel:+15550100>.", "Call +15550100."},
		{"keeps_line_spacing", "  indented  line  ", "  indented  line  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeMinimal(tt.in); got != tt.want {
				t.Errorf("NormalizeMinimal(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"collapse_spaces", "  a   b \t c  ", "a b c"},
		{"collapse_blank_lines", "a\n\n\n\nb", "a\n\nb"},
		{"whitespace_only_lines", "a\n  \n \t \n  \nb", "a\n\nb"},
		{"trims_document", "\n\n  text  \n\n", "text"},
		{"keeps_indentation", "- one\n  - nested   item  \n\t- tabbed", "- one\n  - nested item\n\t- tabbed"},
		{"decorations", "Mail jane@example.com <mailto:jane@example.com> today", "Mail jane@example.com today"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.in)
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if again := Normalize(got); again != got {
				t.Errorf("Normalize not idempotent: %q -> %q", got, again)
			}
		})
	}
}

func TestJoinParts(t *testing.T) {
	tests := []struct {
		name  string
		parts []string
		want  string
	}{
		{"single", []string{"Only part"}, "Only part"},
		{"skips_blank_parts", []string{"", "   ", "Body"}, "Body"},
		{
			"alternatives_collapse",
			[]string{"Hello Bob,\n\nSee you at 10.", "Hello  Bob,\n\nSee you at **10.**"},
			"Hello Bob,\n\nSee you at 10.",
		},
		{
			"later_part_adds_paragraph",
			[]string{"A paragraph", "A paragraph\n\nExtra detail"},
			"A paragraph\n\nExtra detail",
		},
		{
			"repeats_within_first_part_kept",
			[]string{"Yes\n\nYes"},
			"Yes\n\nYes",
		},
		{
			"wrapped_plain_matches_unwrapped_html",
			[]string{"The quick brown fox\njumps over the dog.", "The quick brown fox jumps over the dog."},
			"The quick brown fox\njumps over the dog.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := JoinParts(tt.parts); got != tt.want {
				t.Errorf("JoinParts() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestJoinParts_NoDuplicateParagraph(t *testing.T) {
	paragraph := "Please find the signed contract attached."
	got := JoinParts([]string{paragraph, "**" + paragraph + "**"})
	if n := strings.Count(got, paragraph); n != 1 {
		t.Errorf("paragraph appears %d times in %q", n, got)
	}
}
