package mailclean

import "strings"

// Header is a single message header. Names are lower-cased by the
// collaborator that builds RawMessages.
type Header struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// Headers is an ordered header list.
type Headers []Header

// Get returns the value of the first header named name, ignoring case.
func (h Headers) Get(name string) string {
	for _, hdr := range h {
		if strings.EqualFold(hdr.Name, name) {
			return hdr.Value
		}
	}
	return ""
}

// RawMessage is an archived message as imported. It is never modified.
type RawMessage struct {
	ID      string  `json:"message_id" yaml:"message_id"`
	Headers Headers `json:"headers" yaml:"headers"`
	// Payload holds every text part of the message joined by PartSeparator.
	Payload string `json:"payload" yaml:"payload"`
}

// CleanedMessage is the cleaned form of one RawMessage.
type CleanedMessage struct {
	ID      string  `json:"message_id" yaml:"message_id"`
	Headers Headers `json:"headers" yaml:"headers"`

	// BodyRaw is the extracted and converted text before any boilerplate
	// removal.
	BodyRaw string `json:"body_raw" yaml:"body_raw"`

	// BodyClean is the final cleaned text.
	BodyClean string `json:"body_clean" yaml:"body_clean"`

	Stats CleaningStats `json:"cleaning_stats" yaml:"cleaning_stats"`

	// Warnings are diagnostics for this message. They are not persisted.
	Warnings []Warning `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// HasWarnings returns true if any warnings were recorded.
func (m *CleanedMessage) HasWarnings() bool {
	return len(m.Warnings) > 0
}
