package mailclean

import (
	"strings"
	"sync"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint is the hash of a whitespace-collapsed tail window.
type Fingerprint uint64

// tailWindow returns the byte offset where the last cfg.WindowLines lines
// of text start and the fingerprint of that window. ok is false when the
// text has no more lines than the window or the window is too short to
// be meaningful.
func tailWindow(text string, cfg FingerprintConfig) (start int, fp Fingerprint, ok bool) {
	if cfg.WindowLines <= 0 {
		return 0, 0, false
	}
	text = strings.TrimRightFunc(text, unicode.IsSpace)

	// Walk back WindowLines newlines; the window starts after the last one
	// found. Finding fewer means the text is not longer than the window.
	start = len(text)
	for i := 0; i < cfg.WindowLines; i++ {
		idx := strings.LastIndexByte(text[:start], '\n')
		if idx < 0 {
			return 0, 0, false
		}
		start = idx
	}
	start++

	window := strings.Join(strings.Fields(text[start:]), " ")
	if len(window) <= cfg.MinWindowChars {
		return 0, 0, false
	}
	return start, Fingerprint(xxhash.Sum64String(window)), true
}

// WindowFingerprint returns the fingerprint of the tail window of text, if
// it has one.
func WindowFingerprint(text string, cfg FingerprintConfig) (Fingerprint, bool) {
	_, fp, ok := tailWindow(text, cfg)
	return fp, ok
}

// FingerprintSet is a frozen fingerprint to corpus-count table. It is
// read-only and safe for concurrent use. A nil set is empty.
type FingerprintSet struct {
	counts   map[Fingerprint]int
	messages int
	config   FingerprintConfig
}

// Count returns how many distinct messages ended with the window fp.
func (s *FingerprintSet) Count(fp Fingerprint) int {
	if s == nil {
		return 0
	}
	return s.counts[fp]
}

// Len returns the number of distinct fingerprints.
func (s *FingerprintSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.counts)
}

// Messages returns the number of distinct messages that were added.
func (s *FingerprintSet) Messages() int {
	if s == nil {
		return 0
	}
	return s.messages
}

// Frequent returns the number of fingerprints seen at least threshold times.
func (s *FingerprintSet) Frequent(threshold int) int {
	if s == nil {
		return 0
	}
	n := 0
	for _, c := range s.counts {
		if c >= threshold {
			n++
		}
	}
	return n
}

// EffectiveThreshold returns the removal threshold for a corpus of total
// messages.
func (c FingerprintConfig) EffectiveThreshold(total int) int {
	if c.ScaleWithCorpus && total/100 > c.Threshold {
		return total / 100
	}
	return c.Threshold
}

// FingerprintBuilder aggregates tail-window fingerprints across a corpus.
// Add is safe for concurrent use. Once Freeze is called the builder rejects
// further input.
type FingerprintBuilder struct {
	cfg FingerprintConfig

	mu     sync.Mutex
	counts map[Fingerprint]int
	seen   map[string]struct{}
	added  int
	frozen bool
}

// NewFingerprintBuilder creates an empty builder.
func NewFingerprintBuilder(cfg FingerprintConfig) *FingerprintBuilder {
	return &FingerprintBuilder{
		cfg:    cfg,
		counts: make(map[Fingerprint]int),
		seen:   make(map[string]struct{}),
	}
}

// Add records the tail window of text for message id. A message id is
// counted once; an empty id is always counted.
func (b *FingerprintBuilder) Add(id, text string) error {
	fp, ok := WindowFingerprint(text, b.cfg)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frozen {
		return ErrBuilderFrozen
	}
	if id != "" {
		if _, dup := b.seen[id]; dup {
			return nil
		}
		b.seen[id] = struct{}{}
	}
	b.added++

	if !ok {
		return nil
	}
	if _, exists := b.counts[fp]; !exists && b.cfg.MaxEntries > 0 && len(b.counts) >= b.cfg.MaxEntries {
		return ErrCorpusOversize
	}
	b.counts[fp]++
	return nil
}

// Freeze ends the build phase and returns the snapshot.
func (b *FingerprintBuilder) Freeze() *FingerprintSet {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.frozen = true
	set := &FingerprintSet{
		counts:   b.counts,
		messages: b.added,
		config:   b.cfg,
	}
	b.counts = nil
	b.seen = nil
	return set
}
