// Package cleaner provides a small interface for text transformations and
// combinators for composing them.
//
// Implementations in this module turn message bodies (HTML or plain text)
// into compact text suitable for LLM context windows.
package cleaner

// Cleaner transforms content into a cleaner format.
type Cleaner interface {
	// Clean transforms the input. The output format depends on the
	// implementation (markdown, plain text, etc.).
	Clean(content string) (string, error)

	// Name returns the cleaner type for logging/debugging.
	Name() string
}
