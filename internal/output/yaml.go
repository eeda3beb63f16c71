package output

import (
	"bufio"
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLWriter writes items as a YAML sequence, one element at a time.
type YAMLWriter struct {
	w            *bufio.Writer
	unwrapSingle bool

	pending any
	count   int
}

// NewYAMLWriter creates a YAML writer.
func NewYAMLWriter(w io.Writer) *YAMLWriter {
	return &YAMLWriter{
		w: bufio.NewWriter(w),
	}
}

func (w *YAMLWriter) encode(v any) error {
	encoder := yaml.NewEncoder(w.w)
	encoder.SetIndent(2)
	if err := encoder.Encode(v); err != nil {
		return err
	}
	return encoder.Close()
}

// Write encodes a single sequence element.
func (w *YAMLWriter) Write(data any) error {
	w.count++
	switch w.count {
	case 1:
		w.pending = data
		return nil
	case 2:
		if err := w.encode([]any{w.pending}); err != nil {
			return err
		}
		w.pending = nil
	}
	return w.encode([]any{data})
}

// Close writes any held-back item and flushes.
func (w *YAMLWriter) Close() error {
	var err error
	switch {
	case w.count == 0:
		err = w.encode([]any{})
	case w.count == 1 && w.unwrapSingle:
		err = w.encode(w.pending)
	case w.count == 1:
		err = w.encode([]any{w.pending})
	}
	if err != nil {
		return err
	}
	w.count = 0
	w.pending = nil
	return w.w.Flush()
}
