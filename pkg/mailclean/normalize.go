package mailclean

import (
	"regexp"
	"strings"
)

var (
	invisibleReplacer = strings.NewReplacer(
		"\r\n", "\n",
		"\r", "\n",
		"\u00a0", " ",
		"\u202f", " ",
		"\u200b", "",
		"\u200c", "",
		"\u2060", "",
		"\ufeff", "",
		"\u00ad", "",
	)
	excessNewlinesRegex     = regexp.MustCompile(`\n{3,}`)
	protocolDecorationRegex = regexp.MustCompile(`<(?i:mailto|tel):([^>\s]*)>`)
	spaceRunRegex           = regexp.MustCompile(`[ \t]+`)
)

// NormalizeMinimal fixes line endings and invisible characters, drops
// <mailto:x> and <tel:x> decorations, and collapses runs of blank lines.
func NormalizeMinimal(s string) string {
	s = invisibleReplacer.Replace(s)
	s = stripProtocolDecorations(s)
	return excessNewlinesRegex.ReplaceAllString(s, "\n\n")
}

// Normalize is the final pass. It applies NormalizeMinimal, collapses runs
// of spaces and tabs after each line's indentation, trims line ends and
// trims the document. Indentation is kept so nested lists and code survive.
// It is idempotent.
func Normalize(s string) string {
	s = invisibleReplacer.Replace(s)
	s = stripProtocolDecorations(s)

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		body := strings.TrimLeft(line, " \t")
		if body == "" {
			lines[i] = ""
			continue
		}
		indent := line[:len(line)-len(body)]
		lines[i] = indent + strings.TrimRight(spaceRunRegex.ReplaceAllString(body, " "), " ")
	}
	s = strings.Join(lines, "\n")

	return strings.TrimSpace(excessNewlinesRegex.ReplaceAllString(s, "\n\n"))
}

// stripProtocolDecorations replaces <mailto:addr> with addr, or removes it
// when the text before it already ends with addr.
func stripProtocolDecorations(s string) string {
	matches := protocolDecorationRegex.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s
	}

	var sb strings.Builder
	sb.Grow(len(s))
	last := 0
	for _, m := range matches {
		sb.WriteString(s[last:m[0]])
		addr := s[m[2]:m[3]]
		if addr != "" && !strings.HasSuffix(strings.TrimRight(sb.String(), " \t"), addr) {
			sb.WriteString(addr)
		}
		last = m[1]
	}
	sb.WriteString(s[last:])
	return sb.String()
}

var emphasisReplacer = strings.NewReplacer("**", "", "__", "", "*", "", "`", "")

// paragraphKey identifies a paragraph regardless of whitespace, case and
// emphasis markers.
func paragraphKey(p string) string {
	return strings.ToLower(strings.Join(strings.Fields(emphasisReplacer.Replace(p)), " "))
}

// JoinParts joins rendered parts with a blank line. Blank parts are
// skipped, and a paragraph of a later part is dropped when an earlier part
// already had it, so plain and HTML alternatives of the same body collapse.
func JoinParts(texts []string) string {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(texts))

	for i, text := range texts {
		text = strings.TrimSpace(NormalizeMinimal(text))
		if text == "" {
			continue
		}

		paragraphs := strings.Split(text, "\n\n")
		kept := make([]string, 0, len(paragraphs))
		for _, p := range paragraphs {
			key := paragraphKey(p)
			if key == "" {
				continue
			}
			if _, dup := seen[key]; dup && i > 0 {
				continue
			}
			kept = append(kept, p)
		}
		for _, p := range kept {
			seen[paragraphKey(p)] = struct{}{}
		}

		if len(kept) > 0 {
			out = append(out, strings.Join(kept, "\n\n"))
		}
	}

	return strings.Join(out, "\n\n")
}
