package mailclean

import (
	"regexp"
	"strings"
)

// PartSeparator joins the text parts of a multipart message in a payload.
const PartSeparator = "\n\n---PART---\n\n"

// PartKind is the sniffed content type of a part.
type PartKind string

const (
	PartPlain PartKind = "plain"
	PartHTML  PartKind = "html"
)

// TextPart is one text part of a payload.
type TextPart struct {
	Kind        PartKind
	Body        string
	OriginIndex int
}

var markupTagRegex = regexp.MustCompile(`(?i)<(?:!doctype|html|head|body|div|p|table|thead|tbody|tr|td|th|br|hr|span|a|img|font|ul|ol|li|dl|dt|dd|h[1-6]|blockquote|center|pre|code|section|article|header|footer|strong|b|i|em|meta|style)[\s/>]`)

// SniffKind reports whether body looks like structured markup. Openings
// escaped with a backslash or inside a code span or fenced block do not
// count, so rendered text never sniffs as markup again.
func SniffKind(body string) PartKind {
	if len(markupOpenings(body)) > 0 {
		return PartHTML
	}
	return PartPlain
}

// EscapeMarkup backslash-escapes every opening SniffKind would count.
func EscapeMarkup(text string) string {
	openings := markupOpenings(text)
	if len(openings) == 0 {
		return text
	}

	var sb strings.Builder
	sb.Grow(len(text) + len(openings))
	last := 0
	for _, at := range openings {
		sb.WriteString(text[last:at])
		sb.WriteByte('\\')
		last = at
	}
	sb.WriteString(text[last:])
	return sb.String()
}

// markupOpenings returns the offsets of the unescaped tag openings outside
// code.
func markupOpenings(s string) []int {
	matches := markupTagRegex.FindAllStringIndex(s, -1)
	if len(matches) == 0 {
		return nil
	}

	code := codeRegions(s)
	var out []int
	for _, m := range matches {
		at := m[0]
		if at > 0 && s[at-1] == '\\' {
			continue
		}
		if inRegions(code, at) {
			continue
		}
		out = append(out, at)
	}
	return out
}

// codeRegions returns the [start, end) byte ranges of fenced blocks and
// single-line code spans in s.
func codeRegions(s string) [][2]int {
	var regions [][2]int
	fenceStart := -1

	for lineStart := 0; lineStart < len(s); {
		lineEnd := strings.IndexByte(s[lineStart:], '\n')
		if lineEnd < 0 {
			lineEnd = len(s)
		} else {
			lineEnd += lineStart
		}
		line := s[lineStart:lineEnd]

		if strings.HasPrefix(strings.TrimLeft(line, " \t"), "```") {
			if fenceStart < 0 {
				fenceStart = lineStart
			} else {
				regions = append(regions, [2]int{fenceStart, lineEnd})
				fenceStart = -1
			}
		} else if fenceStart < 0 {
			regions = append(regions, codeSpans(line, lineStart)...)
		}
		lineStart = lineEnd + 1
	}
	if fenceStart >= 0 {
		regions = append(regions, [2]int{fenceStart, len(s)})
	}
	return regions
}

// codeSpans finds backtick spans in line, closed by a run of the same
// length. offset is added to every range.
func codeSpans(line string, offset int) [][2]int {
	var spans [][2]int
	for i := 0; i < len(line); {
		if line[i] != '`' {
			i++
			continue
		}
		n := backtickRun(line, i)
		closed := false
		for j := i + n; j < len(line); {
			if line[j] != '`' {
				j++
				continue
			}
			m := backtickRun(line, j)
			if m == n {
				spans = append(spans, [2]int{offset + i, offset + j + m})
				i = j + m
				closed = true
				break
			}
			j += m
		}
		if !closed {
			i += n
		}
	}
	return spans
}

func backtickRun(s string, i int) int {
	n := 0
	for i+n < len(s) && s[i+n] == '`' {
		n++
	}
	return n
}

func inRegions(regions [][2]int, at int) bool {
	for _, r := range regions {
		if at >= r[0] && at < r[1] {
			return true
		}
	}
	return false
}

// ExtractParts splits payload into its text parts in order. Parts that are
// byte-identical once surrounding whitespace is ignored are kept only at
// their first occurrence. Whitespace-only parts are kept.
func ExtractParts(payload string) []TextPart {
	if payload == "" {
		return nil
	}

	bodies := strings.Split(payload, PartSeparator)
	parts := make([]TextPart, 0, len(bodies))
	seen := make(map[string]struct{}, len(bodies))

	for i, body := range bodies {
		if key := strings.TrimSpace(body); key != "" {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
		}
		parts = append(parts, TextPart{
			Kind:        SniffKind(body),
			Body:        body,
			OriginIndex: i,
		})
	}

	return parts
}
