package mailclean

import (
	"html"
	"io"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	xhtml "golang.org/x/net/html"
)

// tagStripper keeps text nodes only. It is the fallback behind the primary
// engine and does not fail on any input.
type tagStripper struct {
	dropImages bool
}

func (t *tagStripper) Name() string {
	return "tagstrip"
}

func (t *tagStripper) Clean(src string) (string, error) {
	return stripTags(src, t.dropImages)
}

var blockTags = map[string]bool{
	"p": true, "div": true, "tr": true, "li": true, "table": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "pre": true, "hr": true, "ul": true, "ol": true,
	"center": true, "section": true, "article": true, "header": true,
	"footer": true, "dt": true, "dd": true, "td": true, "th": true,
}

var skipTags = map[string]bool{
	"script": true, "style": true, "head": true, "title": true,
	"noscript": true, "svg": true, "iframe": true, "template": true,
	"textarea": true, "select": true, "object": true,
}

func stripTags(src string, dropImages bool) (string, error) {
	z := xhtml.NewTokenizer(strings.NewReader(src))
	var sb strings.Builder
	skip := 0

	for {
		tt := z.Next()
		switch tt {
		case xhtml.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return tidyMarkdown(regexStrip(src)), nil
			}
			return tidyMarkdown(sb.String()), nil

		case xhtml.TextToken:
			if skip == 0 {
				writeText(&sb, string(z.Text()))
			}

		case xhtml.StartTagToken, xhtml.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			tag := string(name)
			if skipTags[tag] {
				if tt == xhtml.StartTagToken {
					skip++
				}
				continue
			}
			if skip > 0 {
				continue
			}
			switch {
			case tag == "br":
				sb.WriteString("\n")
			case tag == "img":
				if dropImages {
					continue
				}
				attrs := tokenAttrs(z, hasAttr)
				if label := imagePlaceholder(attrs["src"], attrs["alt"], attrs["width"], attrs["height"]); label != "" {
					writeSpace(&sb)
					sb.WriteString(label)
					sb.WriteString(" ")
				}
			case blockTags[tag]:
				ensureNewline(&sb)
			}

		case xhtml.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if skipTags[tag] {
				if skip > 0 {
					skip--
				}
				continue
			}
			if skip == 0 && blockTags[tag] {
				ensureNewline(&sb)
			}
		}
	}
}

func tokenAttrs(z *xhtml.Tokenizer, more bool) map[string]string {
	attrs := make(map[string]string)
	for more {
		var key, val []byte
		key, val, more = z.TagAttr()
		attrs[string(key)] = strings.TrimSpace(string(val))
	}
	return attrs
}

var anyTagRegex = regexp.MustCompile(`<[^>]*>`)

func regexStrip(src string) string {
	return html.UnescapeString(anyTagRegex.ReplaceAllString(src, " "))
}

// writeText appends a text node with internal whitespace collapsed, keeping
// a single space where the node had leading or trailing whitespace so that
// inline elements stay separated.
func writeText(sb *strings.Builder, data string) {
	fields := strings.Fields(data)
	if len(fields) == 0 {
		if data != "" {
			writeSpace(sb)
		}
		return
	}
	if startsWithSpace(data) {
		writeSpace(sb)
	}
	sb.WriteString(strings.Join(fields, " "))
	if endsWithSpace(data) {
		sb.WriteString(" ")
	}
}

func writeSpace(sb *strings.Builder) {
	s := sb.String()
	if s == "" || strings.HasSuffix(s, " ") || strings.HasSuffix(s, "\n") {
		return
	}
	sb.WriteString(" ")
}

func startsWithSpace(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return r != utf8.RuneError && unicode.IsSpace(r)
}

func endsWithSpace(s string) bool {
	r, _ := utf8.DecodeLastRuneInString(s)
	return r != utf8.RuneError && unicode.IsSpace(r)
}

func ensureNewline(sb *strings.Builder) {
	s := sb.String()
	if s == "" || strings.HasSuffix(s, "\n") {
		return
	}
	sb.WriteString("\n")
}

func ensureBlankLine(sb *strings.Builder) {
	s := sb.String()
	switch {
	case s == "", strings.HasSuffix(s, "\n\n"):
	case strings.HasSuffix(s, "\n"):
		sb.WriteString("\n")
	default:
		sb.WriteString("\n\n")
	}
}

// tidyMarkdown trims line ends, allows at most one blank line in a row and
// trims the result.
func tidyMarkdown(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := 0
	for _, line := range lines {
		line = strings.TrimRightFunc(line, unicode.IsSpace)
		if strings.TrimSpace(line) == "" {
			blank++
			if blank > 1 {
				continue
			}
			line = ""
		} else {
			blank = 0
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
