package mailclean

import (
	"bufio"
	"fmt"
	"regexp"
	"strings"

	"github.com/jmylchreest/mailrefyne/pkg/cleaner"
)

var (
	replyHeaderRegex = regexp.MustCompile(`(?i)^(?:On\s.+\swrote:|Le\s.+\sa\s+écrit\s?:|Am\s.+\sschrieb\s.*:|El\s.+\sescribió:|Op\s.+\sschreef\s.*:)$`)
	replyHeaderStart = regexp.MustCompile(`(?i)^(?:On|Le|Am|El|Op)\s`)

	threadMarkerRegex = regexp.MustCompile(`(?i)^(?:-{2,}\s*(?:Original Message|Forwarded message|Forwarded Message|Weitergeleitete Nachricht|Message transféré)\s*-*|Begin forwarded message:?)$`)

	outlookFromRegex  = regexp.MustCompile(`(?i)^\*{0,2}(?:From|Von|De):\*{0,2}\s`)
	outlookDateRegex  = regexp.MustCompile(`(?i)^\*{0,2}(?:Sent|Date|Gesendet|Envoyé):\*{0,2}\s`)
	outlookToRegex    = regexp.MustCompile(`(?i)^\*{0,2}(?:To|Subject|An|Betreff|À|Objet):\*{0,2}\s`)
	underscoreRuleRgx = regexp.MustCompile(`^_{10,}$`)

	quotedBlockRegex = regexp.MustCompile(`(?is)\n*-+[ \t]*(?:original|forwarded)[ \t]+message[ \t]*-+.*?(\n\n|\z)`)
)

// QuoteStripper removes quoted replies and forwarded history. It tries the
// thread parser first and falls back to dropping quote-prefixed lines.
type QuoteStripper struct {
	chain *cleaner.FallbackCleaner
}

// NewQuoteStripper creates a quote stripper.
func NewQuoteStripper() *QuoteStripper {
	return &QuoteStripper{
		chain: cleaner.NewFallback(threadParser{}, prefixStripper{}),
	}
}

// Strip removes quoted material from text. It never fails.
func (q *QuoteStripper) Strip(text string) string {
	out, _ := q.StripWithWarnings(text)
	return out
}

// StripWithWarnings is Strip plus a warning for every strategy that failed.
func (q *QuoteStripper) StripWithWarnings(text string) (string, []Warning) {
	out, failures, err := q.chain.CleanWithFailures(text)
	var w warnings
	for _, f := range failures {
		w.add(StageQuote, fmt.Sprintf("%s: %v", f.Cleaner, f.Err), "")
	}
	if err != nil {
		return text, w
	}
	return out, w
}

// threadParser cuts the text at the first reply or forward header and
// drops any remaining quote-prefixed lines.
type threadParser struct{}

func (threadParser) Name() string {
	return "thread"
}

func (threadParser) Clean(text string) (string, error) {
	lines, err := scanLines(text)
	if err != nil {
		return "", err
	}
	lines = joinSplitReplyHeaders(lines)

	cut := len(lines)
	for i := range lines {
		if isThreadBoundary(lines, i) {
			cut = i
			break
		}
	}

	kept := make([]string, 0, cut)
	for _, line := range lines[:cut] {
		if isQuoteLine(line) {
			continue
		}
		kept = append(kept, line)
	}

	out := strings.TrimSpace(strings.Join(kept, "\n"))
	if out == "" && strings.TrimSpace(text) != "" {
		return "", ErrUnparseableQuote
	}
	return out, nil
}

// scanLines splits text into lines. Lines longer than bufio.MaxScanTokenSize
// make it fail with bufio.ErrTooLong.
func scanLines(text string) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// joinSplitReplyHeaders rejoins "On <date>, <name>\nwrote:" headers that a
// client broke over up to three lines.
func joinSplitReplyHeaders(lines []string) []string {
	out := make([]string, 0, len(lines))
	for i := 0; i < len(lines); i++ {
		if joined, consumed := splitReplyHeader(lines, i); consumed > 0 {
			out = append(out, joined)
			i += consumed
			continue
		}
		out = append(out, lines[i])
	}
	return out
}

// splitReplyHeader returns the reply header starting at line i and the
// number of following lines it spans, or 0 if there is none.
func splitReplyHeader(lines []string, i int) (string, int) {
	joined := strings.TrimSpace(lines[i])
	if !replyHeaderStart.MatchString(joined) || replyHeaderRegex.MatchString(joined) {
		return "", 0
	}
	for j := 1; j <= 2 && i+j < len(lines); j++ {
		next := strings.TrimSpace(lines[i+j])
		if next == "" {
			return "", 0
		}
		joined += " " + next
		if replyHeaderRegex.MatchString(joined) {
			return joined, j
		}
	}
	return "", 0
}

func isQuoteLine(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), ">")
}

func isThreadBoundary(lines []string, i int) bool {
	line := strings.TrimSpace(lines[i])
	switch {
	case line == "":
		return false
	case replyHeaderRegex.MatchString(line), threadMarkerRegex.MatchString(line):
		return true
	case underscoreRuleRgx.MatchString(line):
		if next, ok := nextNonBlank(lines, i+1); ok {
			return outlookFromRegex.MatchString(next)
		}
		return false
	case outlookFromRegex.MatchString(line):
		return isOutlookHeader(lines, i)
	}
	return false
}

// isOutlookHeader reports whether the From: line at i is followed within
// four lines by a date line and a recipient or subject line.
func isOutlookHeader(lines []string, i int) bool {
	var date, to bool
	for j := i + 1; j < len(lines) && j <= i+4; j++ {
		line := strings.TrimSpace(lines[j])
		date = date || outlookDateRegex.MatchString(line)
		to = to || outlookToRegex.MatchString(line)
	}
	return date && to
}

func nextNonBlank(lines []string, from int) (string, bool) {
	for j := from; j < len(lines); j++ {
		if line := strings.TrimSpace(lines[j]); line != "" {
			return line, true
		}
	}
	return "", false
}

// prefixStripper drops quote-prefixed lines and original or forwarded
// message header blocks. It does not fail.
type prefixStripper struct{}

func (prefixStripper) Name() string {
	return "prefix"
}

func (prefixStripper) Clean(text string) (string, error) {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if isQuoteLine(line) {
			continue
		}
		kept = append(kept, line)
	}
	text = strings.Join(kept, "\n")
	return quotedBlockRegex.ReplaceAllString(text, "$1"), nil
}
