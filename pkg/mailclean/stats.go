package mailclean

import (
	"fmt"
	"log/slog"
	"math"
	"time"
)

// CleaningStats captures the size effect of cleaning one message.
type CleaningStats struct {
	OriginalBytes    int     `json:"original_bytes" yaml:"original_bytes"`
	CleanBytes       int     `json:"clean_bytes" yaml:"clean_bytes"`
	ReductionPercent float64 `json:"reduction_percent" yaml:"reduction_percent"`
}

// NewCleaningStats computes stats for the given byte counts.
func NewCleaningStats(originalBytes, cleanBytes int) CleaningStats {
	return CleaningStats{
		OriginalBytes:    originalBytes,
		CleanBytes:       cleanBytes,
		ReductionPercent: ReductionPercent(originalBytes, cleanBytes),
	}
}

// ReductionPercent returns the percentage reduction in size, rounded to two
// decimals. It is 0 when original is 0 and negative when cleaning grew the
// text.
func ReductionPercent(original, clean int) float64 {
	if original == 0 {
		return 0
	}
	pct := (1 - float64(clean)/float64(original)) * 100
	return math.Round(pct*100) / 100
}

// String returns a human-readable summary of the stats.
func (s CleaningStats) String() string {
	return fmt.Sprintf("%d -> %d bytes (%.2f%% reduction)", s.OriginalBytes, s.CleanBytes, s.ReductionPercent)
}

// Stage names used in warnings.
const (
	StageDecode      = "decode"
	StageConvert     = "convert"
	StageBoilerplate = "boilerplate"
	StageQuote       = "quote"
	StagePipeline    = "pipeline"
)

// Warning represents a non-fatal issue encountered during cleaning.
type Warning struct {
	Stage   string `json:"stage" yaml:"stage"`
	Message string `json:"message" yaml:"message"`
	Context string `json:"context,omitempty" yaml:"context,omitempty"`
}

// String returns a formatted warning message.
func (w Warning) String() string {
	if w.Context != "" {
		return fmt.Sprintf("[%s] %s (context: %s)", w.Stage, w.Message, w.Context)
	}
	return fmt.Sprintf("[%s] %s", w.Stage, w.Message)
}

// warnings collects Warnings for one message.
type warnings []Warning

func (w *warnings) add(stage, message, context string) {
	*w = append(*w, Warning{
		Stage:   stage,
		Message: message,
		Context: context,
	})
}

// Summary aggregates a cleaning run. Computing it never fails.
type Summary struct {
	Level                Level         `json:"level"`
	Messages             int           `json:"messages"`
	OriginalBytes        int64         `json:"original_bytes"`
	CleanBytes           int64         `json:"clean_bytes"`
	ReductionPercent     float64       `json:"reduction_percent"`
	Warnings             int           `json:"warnings"`
	MessagesWithWarnings int           `json:"messages_with_warnings"`
	Fingerprints         int           `json:"fingerprints"`
	FrequentFingerprints int           `json:"frequent_fingerprints"`
	Duration             time.Duration `json:"duration"`
}

// Add folds one cleaned message into the summary.
func (s *Summary) Add(m CleanedMessage) {
	s.Messages++
	s.OriginalBytes += int64(m.Stats.OriginalBytes)
	s.CleanBytes += int64(m.Stats.CleanBytes)
	s.Warnings += len(m.Warnings)
	if len(m.Warnings) > 0 {
		s.MessagesWithWarnings++
	}
	s.ReductionPercent = reductionPercent64(s.OriginalBytes, s.CleanBytes)
}

// SavedBytes returns the number of bytes removed across the run.
func (s *Summary) SavedBytes() int64 {
	return s.OriginalBytes - s.CleanBytes
}

// LogAttrs returns the summary as slog attributes.
func (s *Summary) LogAttrs() []any {
	return []any{
		slog.String("level", s.Level.String()),
		slog.Int("messages", s.Messages),
		slog.Int64("original_bytes", s.OriginalBytes),
		slog.Int64("clean_bytes", s.CleanBytes),
		slog.Float64("reduction_percent", s.ReductionPercent),
		slog.Int("warnings", s.Warnings),
		slog.Int("fingerprints", s.Fingerprints),
		slog.Int("frequent_fingerprints", s.FrequentFingerprints),
		slog.Duration("duration", s.Duration),
	}
}

func reductionPercent64(original, clean int64) float64 {
	if original == 0 {
		return 0
	}
	pct := (1 - float64(clean)/float64(original)) * 100
	return math.Round(pct*100) / 100
}
