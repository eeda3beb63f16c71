package cleaner

import (
	"errors"
	"strings"
	"testing"
)

// --- NoopCleaner Tests ---

func TestNoopCleaner_Clean(t *testing.T) {
	c := NewNoop()

	tests := []struct {
		name  string
		input string
	}{
		{"empty_string", ""},
		{"plain_text", "Hello, World!"},
		{"html_content", "<html><body><h1>Title</h1></body></html>"},
		{"whitespace", "  \n\t  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Clean(tt.input)
			if err != nil {
				t.Errorf("Clean() error = %v, want nil", err)
			}
			if got != tt.input {
				t.Errorf("Clean() = %q, want %q", got, tt.input)
			}
		})
	}
}

func TestNoopCleaner_Name(t *testing.T) {
	c := NewNoop()
	if got := c.Name(); got != "noop" {
		t.Errorf("Name() = %q, want %q", got, "noop")
	}
}

// --- test helpers ---

// errorCleaner always returns an error
type errorCleaner struct{}

func (c *errorCleaner) Clean(string) (string, error) {
	return "", errors.New("test error")
}

func (c *errorCleaner) Name() string {
	return "error"
}

// panicCleaner always panics
type panicCleaner struct{}

func (c *panicCleaner) Clean(string) (string, error) {
	panic("boom")
}

func (c *panicCleaner) Name() string {
	return "panic"
}

// upperCleaner upper-cases its input
type upperCleaner struct{}

func (c *upperCleaner) Clean(s string) (string, error) {
	return strings.ToUpper(s), nil
}

func (c *upperCleaner) Name() string {
	return "upper"
}

// --- ChainCleaner Tests ---

func TestChainCleaner_Empty(t *testing.T) {
	c := NewChain()

	input := "unchanged content"
	got, err := c.Clean(input)
	if err != nil {
		t.Fatalf("Clean() error = %v", err)
	}

	if got != input {
		t.Errorf("Clean() = %q, want %q", got, input)
	}
}

func TestChainCleaner_Order(t *testing.T) {
	c := NewChain(NewMarkdown(), &upperCleaner{})

	got, err := c.Clean(`<h1>Title</h1><p>Content</p>`)
	if err != nil {
		t.Fatalf("Clean() error = %v", err)
	}

	if !strings.Contains(got, "# TITLE") {
		t.Errorf("expected upper-cased markdown heading, got %q", got)
	}
}

func TestChainCleaner_ErrorPropagation(t *testing.T) {
	c := NewChain(NewNoop(), &errorCleaner{}, NewMarkdown())

	_, err := c.Clean("test")
	if err == nil {
		t.Fatal("expected error to propagate")
	}

	if !strings.Contains(err.Error(), "error: test error") {
		t.Errorf("expected error naming the failing cleaner, got %v", err)
	}
}

func TestChainCleaner_Name(t *testing.T) {
	tests := []struct {
		name     string
		cleaners []Cleaner
		want     string
	}{
		{"empty", []Cleaner{}, "chain()"},
		{"single", []Cleaner{NewNoop()}, "chain(noop)"},
		{"double", []Cleaner{NewNoop(), NewMarkdown()}, "chain(noop->markdown)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChain(tt.cleaners...)
			if got := c.Name(); got != tt.want {
				t.Errorf("Name() = %q, want %q", got, tt.want)
			}
		})
	}
}

// --- FallbackCleaner Tests ---

func TestFallbackCleaner_FirstSuccessWins(t *testing.T) {
	f := NewFallback(&upperCleaner{}, NewNoop())

	got, failures, err := f.CleanWithFailures("abc")
	if err != nil {
		t.Fatalf("CleanWithFailures() error = %v", err)
	}
	if got != "ABC" {
		t.Errorf("got %q, want %q", got, "ABC")
	}
	if len(failures) != 0 {
		t.Errorf("expected no failures, got %v", failures)
	}
}

func TestFallbackCleaner_FallsThrough(t *testing.T) {
	f := NewFallback(&errorCleaner{}, &panicCleaner{}, &upperCleaner{})

	got, failures, err := f.CleanWithFailures("abc")
	if err != nil {
		t.Fatalf("CleanWithFailures() error = %v", err)
	}
	if got != "ABC" {
		t.Errorf("got %q, want %q", got, "ABC")
	}
	if len(failures) != 2 {
		t.Fatalf("expected 2 failures, got %d", len(failures))
	}
	if failures[0].Cleaner != "error" || failures[1].Cleaner != "panic" {
		t.Errorf("unexpected failure order: %v", failures)
	}
	if !strings.Contains(failures[1].Err.Error(), "panic: boom") {
		t.Errorf("expected recovered panic, got %v", failures[1].Err)
	}
}

func TestFallbackCleaner_AllFail(t *testing.T) {
	f := NewFallback(&errorCleaner{}, &panicCleaner{})

	_, err := f.Clean("abc")
	if err == nil {
		t.Fatal("expected error when every cleaner fails")
	}
	if !strings.Contains(err.Error(), "tried: error, panic") {
		t.Errorf("expected tried list in error, got %v", err)
	}
}

func TestFallbackCleaner_Empty(t *testing.T) {
	_, err := NewFallback().Clean("abc")
	if !errors.Is(err, ErrNoCleaner) {
		t.Errorf("expected ErrNoCleaner, got %v", err)
	}
}

func TestFallbackCleaner_Name(t *testing.T) {
	f := NewFallback(&errorCleaner{}, NewNoop())
	if got := f.Name(); got != "fallback(error->noop)" {
		t.Errorf("Name() = %q", got)
	}
}

// --- MarkdownCleaner Tests ---

func TestMarkdownCleaner_Clean_BasicHTML(t *testing.T) {
	c := NewMarkdown()

	got, err := c.Clean(`<h1>Title</h1><p>A paragraph.</p>`)
	if err != nil {
		t.Fatalf("Clean() error = %v", err)
	}

	if !strings.Contains(got, "# Title") {
		t.Errorf("expected markdown heading, got %q", got)
	}
	if !strings.Contains(got, "A paragraph.") {
		t.Errorf("expected paragraph text, got %q", got)
	}
}

func TestMarkdownCleaner_Clean_Table(t *testing.T) {
	c := NewMarkdown()

	got, err := c.Clean(`<table><thead><tr><th>Name</th><th>Qty</th></tr></thead><tbody><tr><td>Bolts</td><td>12</td></tr></tbody></table>`)
	if err != nil {
		t.Fatalf("Clean() error = %v", err)
	}

	for _, want := range []string{"Name", "Qty", "Bolts", "12", "|"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in table output, got %q", want, got)
		}
	}
}

func TestMarkdownCleaner_StripLinksAndImages(t *testing.T) {
	c := NewMarkdown(WithStripLinks(true), WithStripImages(true))

	got, err := c.Clean(`<p>See <a href="https://example.com/x">the docs</a> <img src="logo.png" alt="logo"></p>`)
	if err != nil {
		t.Fatalf("Clean() error = %v", err)
	}

	if strings.Contains(got, "https://example.com/x") {
		t.Errorf("expected link target stripped, got %q", got)
	}
	if strings.Contains(got, "logo") {
		t.Errorf("expected image stripped, got %q", got)
	}
	if !strings.Contains(got, "the docs") {
		t.Errorf("expected link text kept, got %q", got)
	}
}

func TestCleanWhitespace(t *testing.T) {
	got := cleanWhitespace("a  \n\n\n\nb\t\n")
	if got != "a\n\nb" {
		t.Errorf("cleanWhitespace() = %q", got)
	}
}

// --- Option Tests ---

func TestWithStripLinks(t *testing.T) {
	cfg := &markdownConfig{}
	WithStripLinks(true)(cfg)

	if !cfg.StripLinks {
		t.Error("WithStripLinks(true) did not set StripLinks")
	}

	WithStripLinks(false)(cfg)
	if cfg.StripLinks {
		t.Error("WithStripLinks(false) did not unset StripLinks")
	}
}

func TestWithStripImages(t *testing.T) {
	cfg := &markdownConfig{}
	WithStripImages(true)(cfg)

	if !cfg.StripImages {
		t.Error("WithStripImages(true) did not set StripImages")
	}
}
