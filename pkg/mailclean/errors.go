package mailclean

import "errors"

var (
	// ErrInvalidLevel is returned when a cleaning level name is not recognised.
	ErrInvalidLevel = errors.New("invalid cleaning level")

	// ErrInvalidConfig is returned when a Config fails validation.
	ErrInvalidConfig = errors.New("invalid cleaning config")

	// ErrFingerprintsRequired is returned when a pipeline demands a
	// fingerprint set but neither builds nor receives one.
	ErrFingerprintsRequired = errors.New("fingerprint set required")

	// ErrCorpusOversize is returned when the fingerprint table would grow
	// past its configured bound.
	ErrCorpusOversize = errors.New("corpus too large for fingerprint table")

	// ErrBuilderFrozen is returned by Add after Freeze.
	ErrBuilderFrozen = errors.New("fingerprint builder is frozen")

	// ErrEmptyRender is returned by a markup engine that produced no text
	// from markup that does contain visible text.
	ErrEmptyRender = errors.New("markup rendered to empty text")

	// ErrMalformedMarkup is returned when markup cannot be parsed.
	ErrMalformedMarkup = errors.New("malformed markup")

	// ErrUnparseableQuote is returned by the thread parser when it cannot
	// make sense of a reply chain.
	ErrUnparseableQuote = errors.New("unparseable quoted reply")
)
