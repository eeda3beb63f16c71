// Package mailclean turns archived email payloads into compact, LLM-ready
// text. It extracts the text parts of a message, converts markup, strips
// signatures, footers, legal boilerplate and quoted history, and reports
// how many bytes the cleaning saved.
package mailclean

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Engine selects the primary markup renderer.
type Engine string

const (
	// EngineBuiltin renders markup with the in-package DOM walker.
	EngineBuiltin Engine = "builtin"
	// EngineHTMLToMarkdown renders markup with html-to-markdown.
	EngineHTMLToMarkdown Engine = "html-to-markdown"
)

// Config defines all configuration options for cleaning.
type Config struct {
	// Level selects which stages run.
	Level Level `json:"level" yaml:"level" mapstructure:"level" validate:"oneof=minimal standard aggressive"`

	Converter   ConverterConfig   `json:"converter" yaml:"converter" mapstructure:"converter"`
	Boilerplate BoilerplateConfig `json:"boilerplate" yaml:"boilerplate" mapstructure:"boilerplate"`
	Fingerprint FingerprintConfig `json:"fingerprint" yaml:"fingerprint" mapstructure:"fingerprint"`
}

// ConverterConfig controls markup conversion.
type ConverterConfig struct {
	// Engine is the primary renderer. The tag-strip fallback is always
	// available behind it.
	Engine Engine `json:"engine" yaml:"engine" mapstructure:"engine" validate:"oneof=builtin html-to-markdown"`

	// DropImages removes image placeholders entirely.
	DropImages bool `json:"drop_images" yaml:"drop_images" mapstructure:"drop_images"`

	// StripLinks renders anchors as their label without the target.
	StripLinks bool `json:"strip_links" yaml:"strip_links" mapstructure:"strip_links"`
}

// BoilerplateConfig controls signature and boilerplate removal.
type BoilerplateConfig struct {
	// BlockMarkers are phrases that open a legal or policy block when they
	// start a line. Matching is case-insensitive.
	BlockMarkers []string `json:"block_markers" yaml:"block_markers" mapstructure:"block_markers" validate:"dive,required"`

	// Footers are extra line-anchored regular expressions. Each must start
	// with "^" and is compiled in multi-line mode.
	Footers []string `json:"footers" yaml:"footers" mapstructure:"footers" validate:"dive,required,startswith=^"`

	// MaxBlockBytes caps how far a boilerplate block extends before it is
	// cut at the end of the current paragraph. Zero disables the cap.
	MaxBlockBytes int `json:"max_block_bytes" yaml:"max_block_bytes" mapstructure:"max_block_bytes" validate:"gte=0"`
}

// FingerprintConfig controls corpus fingerprinting.
type FingerprintConfig struct {
	// WindowLines is how many trailing lines form the hashed window.
	WindowLines int `json:"window_lines" yaml:"window_lines" mapstructure:"window_lines" validate:"gte=1"`

	// MinWindowChars skips windows whose collapsed text is this short or
	// shorter.
	MinWindowChars int `json:"min_window_chars" yaml:"min_window_chars" mapstructure:"min_window_chars" validate:"gte=0"`

	// Threshold is the corpus count at which a window is removed. It must
	// be at least 2 so text seen once is never touched.
	Threshold int `json:"threshold" yaml:"threshold" mapstructure:"threshold" validate:"gte=2"`

	// ScaleWithCorpus raises the threshold to one percent of the corpus
	// when that is larger.
	ScaleWithCorpus bool `json:"scale_with_corpus" yaml:"scale_with_corpus" mapstructure:"scale_with_corpus"`

	// MaxEntries bounds the number of distinct hashes the builder keeps.
	// Zero means unbounded.
	MaxEntries int `json:"max_entries" yaml:"max_entries" mapstructure:"max_entries" validate:"gte=0"`
}

// DefaultBlockMarkers are the phrases that open a boilerplate block.
var DefaultBlockMarkers = []string{
	"CONFIDENTIALITY NOTICE",
	"This e-mail and any attachments",
	"This email and any attachments",
	"DISCLAIMER:",
	"Company CSR Policy:",
}

// DefaultConfig returns the standard-level configuration.
func DefaultConfig() *Config {
	return &Config{
		Level: LevelStandard,
		Converter: ConverterConfig{
			Engine: EngineBuiltin,
		},
		Boilerplate: BoilerplateConfig{
			BlockMarkers:  append([]string(nil), DefaultBlockMarkers...),
			MaxBlockBytes: 600,
		},
		Fingerprint: FingerprintConfig{
			WindowLines:    10,
			MinWindowChars: 50,
			Threshold:      100,
			MaxEntries:     2_000_000,
		},
	}
}

// PresetMinimal converts markup and normalizes whitespace only.
func PresetMinimal() *Config {
	return ConfigForLevel(LevelMinimal)
}

// PresetStandard is DefaultConfig.
func PresetStandard() *Config {
	return DefaultConfig()
}

// PresetAggressive also strips quoted replies.
func PresetAggressive() *Config {
	return ConfigForLevel(LevelAggressive)
}

// ConfigForLevel returns the default configuration at level l.
func ConfigForLevel(l Level) *Config {
	cfg := DefaultConfig()
	cfg.Level = l
	return cfg
}

// Stages returns the stages enabled by the configured level.
func (c *Config) Stages() Stages {
	return StagesFor(c.Level)
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	out := *c
	out.Boilerplate.BlockMarkers = append([]string(nil), c.Boilerplate.BlockMarkers...)
	out.Boilerplate.Footers = append([]string(nil), c.Boilerplate.Footers...)
	return &out
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks c for configuration errors. Every error wraps
// ErrInvalidConfig, and an unknown level also wraps ErrInvalidLevel.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}
	if !c.Level.Valid() {
		return fmt.Errorf("%w: %w: %q", ErrInvalidConfig, ErrInvalidLevel, string(c.Level))
	}
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := compileFooters(c.Boilerplate.Footers); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func compileFooters(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?m)" + p)
		if err != nil {
			return nil, fmt.Errorf("footer %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}
