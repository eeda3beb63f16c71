// Package report renders cleaning results for people: run summaries,
// per-message impact and level comparisons.
package report

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/mailrefyne/pkg/mailclean"
)

// BytesPerToken is the rough token size used for estimates. Two bytes per
// token suits mixed English and CJK archives.
const BytesPerToken = 2

// EstimateTokens returns the estimated token count of n bytes of text.
func EstimateTokens(n int64) int64 {
	return n / BytesPerToken
}

// Impact describes what cleaning did to one text.
type Impact struct {
	OriginalChars    int     `json:"original_chars" yaml:"original_chars"`
	CleanChars       int     `json:"clean_chars" yaml:"clean_chars"`
	ReductionChars   int     `json:"reduction_chars" yaml:"reduction_chars"`
	ReductionPercent float64 `json:"reduction_percent" yaml:"reduction_percent"`
	OriginalLines    int     `json:"original_lines" yaml:"original_lines"`
	CleanLines       int     `json:"clean_lines" yaml:"clean_lines"`
	OriginalTokens   int     `json:"estimated_original_tokens" yaml:"estimated_original_tokens"`
	CleanTokens      int     `json:"estimated_clean_tokens" yaml:"estimated_clean_tokens"`
}

// NewImpact compares original with cleaned. Characters are runes; lines
// are newline counts; tokens are estimated from byte length.
func NewImpact(original, cleaned string) Impact {
	oc := utf8.RuneCountInString(original)
	cc := utf8.RuneCountInString(cleaned)

	var pct float64
	if oc > 0 {
		pct = math.Round(float64(oc-cc)/float64(oc)*100*100) / 100
	}

	return Impact{
		OriginalChars:    oc,
		CleanChars:       cc,
		ReductionChars:   oc - cc,
		ReductionPercent: pct,
		OriginalLines:    strings.Count(original, "\n"),
		CleanLines:       strings.Count(cleaned, "\n"),
		OriginalTokens:   int(EstimateTokens(int64(len(original)))),
		CleanTokens:      int(EstimateTokens(int64(len(cleaned)))),
	}
}

// WriteSummary prints a run summary.
func WriteSummary(w io.Writer, s *mailclean.Summary) {
	fmt.Fprintf(w, "\n=== Cleaning Summary ===\n")
	fmt.Fprintf(w, "Level:            %s\n", s.Level)
	fmt.Fprintf(w, "Messages:         %s\n", humanize.Comma(int64(s.Messages)))
	fmt.Fprintf(w, "Original size:    %s (%s bytes)\n", humanize.IBytes(uint64(s.OriginalBytes)), humanize.Comma(s.OriginalBytes))
	fmt.Fprintf(w, "Cleaned size:     %s (%s bytes)\n", humanize.IBytes(uint64(s.CleanBytes)), humanize.Comma(s.CleanBytes))
	fmt.Fprintf(w, "Reduction:        %.2f%%\n", s.ReductionPercent)

	orig, clean := EstimateTokens(s.OriginalBytes), EstimateTokens(s.CleanBytes)
	fmt.Fprintf(w, "Tokens saved:     ~%s (%s -> %s)\n", humanize.Comma(orig-clean), humanize.Comma(orig), humanize.Comma(clean))

	if s.Fingerprints > 0 {
		fmt.Fprintf(w, "Fingerprints:     %s distinct, %s frequent\n",
			humanize.Comma(int64(s.Fingerprints)), humanize.Comma(int64(s.FrequentFingerprints)))
	}
	if s.Warnings > 0 {
		fmt.Fprintf(w, "Warnings:         %s across %s messages\n",
			humanize.Comma(int64(s.Warnings)), humanize.Comma(int64(s.MessagesWithWarnings)))
	}
	fmt.Fprintf(w, "Duration:         %v\n", s.Duration.Round(time.Millisecond))
}

// WriteMessageStats prints the stats of one cleaned message.
func WriteMessageStats(w io.Writer, source string, m mailclean.CleanedMessage) {
	impact := NewImpact(m.BodyRaw, m.BodyClean)

	fmt.Fprintf(w, "\n=== Message Stats ===\n")
	fmt.Fprintf(w, "Source:    %s\n", source)
	fmt.Fprintf(w, "Size:      %s\n", m.Stats.String())
	fmt.Fprintf(w, "Lines:     %d -> %d\n", impact.OriginalLines, impact.CleanLines)
	fmt.Fprintf(w, "Tokens:    ~%d -> ~%d\n", EstimateTokens(int64(m.Stats.OriginalBytes)), EstimateTokens(int64(m.Stats.CleanBytes)))
	if m.HasWarnings() {
		fmt.Fprintf(w, "Warnings:  %d\n", len(m.Warnings))
	}
}

// LevelResult is one row of a level comparison.
type LevelResult struct {
	Level    mailclean.Level          `json:"level" yaml:"level"`
	Stats    mailclean.CleaningStats  `json:"stats" yaml:"stats"`
	Warnings int                      `json:"warnings" yaml:"warnings"`
	Duration time.Duration            `json:"duration" yaml:"duration"`
	Message  mailclean.CleanedMessage `json:"-" yaml:"-"`
}

// CompareLevels cleans payload at every level, starting from base with
// only the level changed. A nil base means DefaultConfig.
func CompareLevels(payload string, base *mailclean.Config) ([]LevelResult, error) {
	if base == nil {
		base = mailclean.DefaultConfig()
	}

	results := make([]LevelResult, 0, len(mailclean.Levels))
	for _, level := range mailclean.Levels {
		cfg := base.Clone()
		cfg.Level = level

		c, err := mailclean.New(cfg)
		if err != nil {
			return nil, err
		}

		start := time.Now()
		out := c.Clean(mailclean.RawMessage{Payload: payload}, nil)
		results = append(results, LevelResult{
			Level:    level,
			Stats:    out.Stats,
			Warnings: len(out.Warnings),
			Duration: time.Since(start),
			Message:  out,
		})
	}
	return results, nil
}

// WriteComparison prints a level comparison table.
func WriteComparison(w io.Writer, source string, inputBytes int, results []LevelResult) {
	fmt.Fprintf(w, "\n=== Level Comparison for %s ===\n", source)
	fmt.Fprintf(w, "Input size: %s\n\n", humanize.IBytes(uint64(inputBytes)))
	fmt.Fprintf(w, "%-12s %10s %10s %8s %9s %10s\n", "Level", "Output", "Tokens", "Reduce%", "Warnings", "Time")
	fmt.Fprintf(w, "%-12s %10s %10s %8s %9s %10s\n", "-----", "------", "------", "-------", "--------", "----")

	for _, r := range results {
		fmt.Fprintf(w, "%-12s %10d %10d %7.1f%% %9d %10v\n",
			r.Level,
			r.Stats.CleanBytes,
			EstimateTokens(int64(r.Stats.CleanBytes)),
			r.Stats.ReductionPercent,
			r.Warnings,
			r.Duration.Round(time.Microsecond))
	}
	fmt.Fprintln(w)
}
