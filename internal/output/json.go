package output

import (
	"bufio"
	"encoding/json"
	"io"
)

// JSONWriter writes items as a JSON array, one element at a time.
type JSONWriter struct {
	w            *bufio.Writer
	pretty       bool
	indent       string
	unwrapSingle bool

	pending any // first item, held back until we know if it is alone
	count   int
}

// NewJSONWriter creates a JSON writer.
func NewJSONWriter(w io.Writer, pretty bool, indent string) *JSONWriter {
	return &JSONWriter{
		w:      bufio.NewWriter(w),
		pretty: pretty,
		indent: indent,
	}
}

func (w *JSONWriter) marshal(data any, prefix string) ([]byte, error) {
	if w.pretty {
		return json.MarshalIndent(data, prefix, w.indent)
	}
	return json.Marshal(data)
}

// Write encodes a single array element.
func (w *JSONWriter) Write(data any) error {
	w.count++
	switch w.count {
	case 1:
		w.pending = data
		return nil
	case 2:
		if err := w.openArray(); err != nil {
			return err
		}
	}
	return w.element(data, ",")
}

// openArray starts the array with the held-back first item.
func (w *JSONWriter) openArray() error {
	first := w.pending
	w.pending = nil
	return w.element(first, "[")
}

func (w *JSONWriter) element(data any, sep string) error {
	out, err := w.marshal(data, w.indent)
	if err != nil {
		return err
	}
	if w.pretty {
		sep += "\n" + w.indent
	}
	if _, err := w.w.WriteString(sep); err != nil {
		return err
	}
	_, err = w.w.Write(out)
	return err
}

// Close ends the array and flushes.
func (w *JSONWriter) Close() error {
	var err error
	switch {
	case w.count == 0:
		_, err = w.w.WriteString("[]")
	case w.count == 1 && w.unwrapSingle:
		var out []byte
		if out, err = w.marshal(w.pending, ""); err == nil {
			_, err = w.w.Write(out)
		}
	default:
		if w.count == 1 {
			if err = w.openArray(); err != nil {
				return err
			}
		}
		end := "]"
		if w.pretty {
			end = "\n]"
		}
		_, err = w.w.WriteString(end)
	}
	if err != nil {
		return err
	}

	w.count = 0
	w.pending = nil
	if _, err := w.w.WriteString("\n"); err != nil {
		return err
	}
	return w.w.Flush()
}

// JSONLWriter writes newline-delimited JSON (JSONL).
type JSONLWriter struct {
	w *bufio.Writer
}

// NewJSONLWriter creates a JSONL writer.
func NewJSONLWriter(w io.Writer) *JSONLWriter {
	return &JSONLWriter{
		w: bufio.NewWriter(w),
	}
}

// Write writes a single item as a JSON line.
func (w *JSONLWriter) Write(data any) error {
	output, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := w.w.Write(output); err != nil {
		return err
	}
	_, err = w.w.WriteString("\n")
	return err
}

// Flush flushes the buffer.
func (w *JSONLWriter) Flush() error {
	return w.w.Flush()
}

// Close flushes the writer.
func (w *JSONLWriter) Close() error {
	return w.Flush()
}
