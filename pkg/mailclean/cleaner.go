package mailclean

import (
	"fmt"
	"strings"

	"github.com/jmylchreest/mailrefyne/pkg/cleaner"
)

// Cleaner cleans single messages. It holds no per-message state and is
// safe for concurrent use.
type Cleaner struct {
	config  *Config
	stages  Stages
	markup  *MarkupConverter
	remover *BoilerplateRemover
	quotes  *QuoteStripper
}

// Option configures a Cleaner.
type Option func(*Cleaner)

// WithThreshold overrides the fingerprint removal threshold, typically with
// FingerprintConfig.EffectiveThreshold for the corpus being cleaned.
func WithThreshold(threshold int) Option {
	return func(c *Cleaner) {
		c.config.Fingerprint.Threshold = threshold
	}
}

// New creates a Cleaner. A nil cfg means DefaultConfig. Configuration
// errors are returned here, before any message is cleaned.
func New(cfg *Config, opts ...Option) (*Cleaner, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Cleaner{config: cfg.Clone()}
	for _, opt := range opts {
		opt(c)
	}
	if c.config.Fingerprint.Threshold < 2 {
		return nil, fmt.Errorf("%w: fingerprint threshold %d is below 2", ErrInvalidConfig, c.config.Fingerprint.Threshold)
	}

	remover, err := NewBoilerplateRemover(c.config)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	c.stages = c.config.Stages()
	c.markup = NewMarkupConverter(c.config.Converter)
	c.remover = remover
	c.quotes = NewQuoteStripper()
	return c, nil
}

// Config returns a copy of the cleaner's configuration.
func (c *Cleaner) Config() *Config {
	return c.config.Clone()
}

// Level returns the configured level.
func (c *Cleaner) Level() Level {
	return c.config.Level
}

// Clean cleans msg. fps may be nil. Clean never panics: if a stage does,
// the message falls back to the normalized extracted text, or to the
// normalized payload when extraction itself failed, and carries a warning.
func (c *Cleaner) Clean(msg RawMessage, fps *FingerprintSet) (out CleanedMessage) {
	out = CleanedMessage{
		ID:      msg.ID,
		Headers: msg.Headers,
	}
	var w warnings

	defer func() {
		if r := recover(); r != nil {
			w.add(StagePipeline, fmt.Sprintf("recovered panic: %v", r), "")
			if out.BodyRaw == "" {
				out.BodyRaw = fallbackText(msg.Payload)
			}
			out.BodyClean = Normalize(out.BodyRaw)
			out.Stats = NewCleaningStats(len(msg.Payload), len(out.BodyClean))
			out.Warnings = w
		}
	}()

	out.BodyRaw = c.extract(msg.Payload, &w)
	text := NormalizeMinimal(out.BodyRaw)

	if c.stages.RemoveSignatures || c.stages.RemoveBoilerplate {
		text = c.remover.Remove(text, fps)
	}
	if c.stages.StripQuotes {
		var qw []Warning
		text, qw = c.quotes.StripWithWarnings(text)
		w = append(w, qw...)
	}

	out.BodyClean = Normalize(text)
	out.Stats = NewCleaningStats(len(msg.Payload), len(out.BodyClean))
	out.Warnings = w
	return out
}

// FingerprintText returns the text the fingerprint rule inspects for msg:
// the extracted, minimally normalized body with pattern rules applied.
// The fingerprint builder hashes this text so hashes line up with removal.
func (c *Cleaner) FingerprintText(msg RawMessage) (text string) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
		}
	}()
	var w warnings
	return c.remover.RemovePatterns(NormalizeMinimal(c.extract(msg.Payload, &w)))
}

// fallbackText is the decoded payload, or the payload with invalid UTF-8
// replaced if decoding panics too.
func fallbackText(payload string) (text string) {
	defer func() {
		if r := recover(); r != nil {
			text = strings.ToValidUTF8(payload, "\uFFFD")
		}
	}()
	text, _ = DecodePayload(payload)
	return text
}

// extract decodes the payload, renders every part and joins them.
func (c *Cleaner) extract(payload string, w *warnings) string {
	decoded, recovered := DecodePayload(payload)
	if recovered {
		w.add(StageDecode, "payload was not valid UTF-8", "")
	}

	parts := ExtractParts(decoded)
	texts := make([]string, 0, len(parts))
	for _, part := range parts {
		text, pw := c.markup.ConvertWithWarnings(part)
		*w = append(*w, pw...)
		texts = append(texts, text)
	}
	return JoinParts(texts)
}

// CleanText cleans a bare payload.
func (c *Cleaner) CleanText(content string) (string, error) {
	return c.Clean(RawMessage{Payload: content}, nil).BodyClean, nil
}

// Name returns the cleaner type for logging.
func (c *Cleaner) Name() string {
	return "mailclean(" + c.config.Level.String() + ")"
}

// TextCleaner adapts a Cleaner to cleaner.Cleaner so it composes with
// cleaner.ChainCleaner and cleaner.FallbackCleaner.
type TextCleaner struct {
	c *Cleaner
}

var _ cleaner.Cleaner = TextCleaner{}

// AsTextCleaner returns c as a cleaner.Cleaner.
func (c *Cleaner) AsTextCleaner() TextCleaner {
	return TextCleaner{c: c}
}

// Clean cleans a bare payload.
func (t TextCleaner) Clean(content string) (string, error) {
	return t.c.CleanText(content)
}

// Name returns the wrapped cleaner's name.
func (t TextCleaner) Name() string {
	return t.c.Name()
}
