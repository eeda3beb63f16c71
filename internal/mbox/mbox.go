// Package mbox reads mbox archives into mailclean.RawMessages.
package mbox

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	mboxlib "github.com/emersion/go-mbox"
	"github.com/gabriel-vasile/mimetype"
	"github.com/jhillyerd/enmime"

	"github.com/jmylchreest/mailrefyne/internal/logger"
	"github.com/jmylchreest/mailrefyne/pkg/mailclean"
)

// ErrNoHeaders is returned for a message without a header block.
var ErrNoHeaders = errors.New("message has no headers")

// Reader streams messages out of an mbox. Messages that cannot be parsed
// are logged and skipped.
type Reader struct {
	mr      *mboxlib.Reader
	closer  io.Closer
	index   int
	skipped int
}

// Open opens the mbox file at path.
func Open(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mbox: %w", err)
	}
	r := NewReader(file)
	r.closer = file
	return r, nil
}

// NewReader reads an mbox from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{mr: mboxlib.NewReader(r)}
}

// Close closes the underlying file, if Open created it.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// Skipped returns the number of messages skipped so far.
func (r *Reader) Skipped() int {
	return r.skipped
}

// Next returns the next message, or io.EOF after the last one.
func (r *Reader) Next() (mailclean.RawMessage, error) {
	for {
		msgReader, err := r.mr.NextMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return mailclean.RawMessage{}, io.EOF
			}
			return mailclean.RawMessage{}, fmt.Errorf("message %d: %w", r.index, err)
		}
		idx := r.index
		r.index++

		raw, err := io.ReadAll(msgReader)
		if err != nil {
			return mailclean.RawMessage{}, fmt.Errorf("message %d read: %w", idx, err)
		}

		msg, err := Parse(raw)
		if err != nil {
			r.skipped++
			logger.Warn("skipping unparseable message", "index", idx, "error", err)
			continue
		}
		return msg, nil
	}
}

// Each reads every remaining message and calls fn with batches of at most
// batchSize. It returns the number of messages read.
func (r *Reader) Each(ctx context.Context, batchSize int, fn func([]mailclean.RawMessage) error) (int, error) {
	if batchSize <= 0 {
		batchSize = mailclean.DefaultBatchSize
	}

	total := 0
	batch := make([]mailclean.RawMessage, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := fn(batch); err != nil {
			return err
		}
		total += len(batch)
		batch = make([]mailclean.RawMessage, 0, batchSize)
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		msg, err := r.Next()
		if errors.Is(err, io.EOF) {
			return total, flush()
		}
		if err != nil {
			return total, err
		}
		batch = append(batch, msg)
		if len(batch) == batchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
}

// Count returns the number of messages in the mbox at path without parsing
// them.
func Count(path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open mbox: %w", err)
	}
	defer file.Close()

	mr := mboxlib.NewReader(file)
	count := 0
	for {
		msgReader, err := mr.NextMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return count, nil
			}
			return count, err
		}
		if _, err := io.Copy(io.Discard, msgReader); err != nil {
			return count, err
		}
		count++
	}
}

// Parse converts one RFC 5322 message into a RawMessage. Header names are
// lower-cased and kept in first-seen order, values are RFC 2047 decoded and
// repeated headers are joined with "\n". The text/plain and text/html parts
// that are not attachments form the payload, joined by
// mailclean.PartSeparator. A missing Message-Id is replaced by a hash of
// the message.
func Parse(raw []byte) (mailclean.RawMessage, error) {
	names, err := headerNames(raw)
	if err != nil {
		return mailclean.RawMessage{}, err
	}

	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return mailclean.RawMessage{}, fmt.Errorf("parse: %w", err)
	}

	headers := make(mailclean.Headers, 0, len(names))
	for _, name := range names {
		values := env.GetHeaderValues(name)
		for i, v := range values {
			values[i] = strings.TrimSpace(v)
		}
		headers = append(headers, mailclean.Header{Name: name, Value: strings.Join(values, "\n")})
	}

	id := strings.TrimSpace(headers.Get("message-id"))
	if id == "" {
		sum := sha256.Sum256(raw)
		id = fmt.Sprintf("sha256:%x", sum[:16])
	}

	return mailclean.RawMessage{
		ID:      id,
		Headers: headers,
		Payload: strings.Join(textParts(env.Root), mailclean.PartSeparator),
	}, nil
}

// headerNames returns the lower-cased header names of raw in first-seen
// order.
func headerNames(raw []byte) ([]string, error) {
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var names []string
	seen := make(map[string]struct{})
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			break
		}
		if line[0] == ' ' || line[0] == '\t' {
			continue
		}
		name, _, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read headers: %w", err)
	}
	if len(names) == 0 {
		return nil, ErrNoHeaders
	}
	return names, nil
}

// textParts walks the MIME tree depth first and returns the decoded bodies
// of the text parts that are not attachments.
func textParts(root *enmime.Part) []string {
	var out []string
	var walk func(p *enmime.Part)
	walk = func(p *enmime.Part) {
		for ; p != nil; p = p.NextSibling {
			if isBodyPart(p) && len(p.Content) > 0 {
				out = append(out, string(p.Content))
			}
			walk(p.FirstChild)
		}
	}
	walk(root)
	return out
}

func isBodyPart(p *enmime.Part) bool {
	if strings.EqualFold(p.Disposition, "attachment") || p.FirstChild != nil {
		return false
	}
	switch strings.ToLower(p.ContentType) {
	case "text/plain", "text/html":
		return true
	case "", "application/octet-stream":
		return isText(p.Content)
	}
	return false
}

// isText sniffs content for mislabelled parts. HTML and every other text
// type descend from text/plain in the detection tree.
func isText(content []byte) bool {
	for m := mimetype.Detect(content); m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}
