package mailclean

import (
	"regexp"
	"strings"
)

// maxPasses bounds the fixpoint loops in the remover.
const maxPasses = 8

var (
	signatureDelimiterRegex = regexp.MustCompile(`(?m)^[ \t]*--[ \t]*$`)

	deviceFooterRegex = regexp.MustCompile(`(?im)^[ \t]*(?:` +
		`sent[ \t]+from[ \t]+my[ \t]+(?:iphone|ipad|ipod|android|blackberry|samsung|galaxy|mobile|huawei|pixel|smartphone|tablet)[^\n]*` +
		`|get[ \t]+outlook[ \t]+for[ \t]+(?:ios|android)` +
		`|sent[ \t]+from[ \t]+mail[ \t]+for[ \t]+windows(?:[ \t]+1[01])?` +
		`|sent[ \t]+from[ \t]+yahoo[ \t]+mail[^\n]*` +
		`|sent[ \t]+from[ \t]+outlook(?:[ \t]+for[ \t]+(?:ios|android))?` +
		`|sent[ \t]+(?:via|from)[ \t]+(?:the[ \t]+)?gmail[ \t]+app` +
		`)[ \t.!]*$\n?`)

	sectionBreakRegex = regexp.MustCompile(`(?im)\n[ \t]*\n[ \t]*(?:\*{0,2}from:|on[ \t].*wrote:|-{2,}[ \t]*(?:original|forwarded)[ \t]+message)`)

	trailingSeparatorRegex = regexp.MustCompile(`(?:^|\n)[ \t]*(?:-{2,}|_{3,}|={3,}|\*{3,})[ \t]*$`)
)

type boilerplateRule struct {
	name  string
	apply func(string) string
}

// BoilerplateRemover strips signatures, device footers, legal blocks and
// corpus-wide repeated tails. Every rule is anchored to a line or to the
// end of the document.
type BoilerplateRemover struct {
	rules       []boilerplateRule
	fingerprint FingerprintConfig
	useCorpus   bool
}

// NewBoilerplateRemover creates a remover for cfg. Rules are enabled by the
// stages of cfg.Level.
func NewBoilerplateRemover(cfg *Config) (*BoilerplateRemover, error) {
	footers, err := compileFooters(cfg.Boilerplate.Footers)
	if err != nil {
		return nil, err
	}
	stages := cfg.Stages()

	r := &BoilerplateRemover{
		fingerprint: cfg.Fingerprint,
		useCorpus:   stages.RemoveFingerprints,
	}

	if stages.RemoveSignatures {
		r.rules = append(r.rules,
			boilerplateRule{name: "signature-delimiter", apply: cutAtSignatureDelimiter},
			boilerplateRule{name: "device-footer", apply: func(s string) string {
				return deviceFooterRegex.ReplaceAllString(s, "")
			}},
		)
		for _, re := range footers {
			re := re
			r.rules = append(r.rules, boilerplateRule{name: "custom-footer", apply: func(s string) string {
				return re.ReplaceAllString(s, "")
			}})
		}
	}

	if stages.RemoveBoilerplate && len(cfg.Boilerplate.BlockMarkers) > 0 {
		markers := make([]string, 0, len(cfg.Boilerplate.BlockMarkers))
		for _, m := range cfg.Boilerplate.BlockMarkers {
			markers = append(markers, regexp.QuoteMeta(strings.TrimSpace(m)))
		}
		blockStart := regexp.MustCompile(`(?im)^[ \t>*_]*(?:` + strings.Join(markers, "|") + `)`)
		maxBytes := cfg.Boilerplate.MaxBlockBytes
		r.rules = append(r.rules, boilerplateRule{name: "boilerplate-block", apply: func(s string) string {
			return removeBlocks(s, blockStart, maxBytes)
		}})
	}

	return r, nil
}

// RuleNames lists the enabled pattern rules in the order they run.
func (r *BoilerplateRemover) RuleNames() []string {
	names := make([]string, 0, len(r.rules)+1)
	for _, rule := range r.rules {
		names = append(names, rule.name)
	}
	if r.useCorpus {
		names = append(names, "fingerprint")
	}
	return names
}

// Remove applies every enabled rule until the text stops changing. The
// fingerprint rule only runs when fps is non-empty and uses the effective
// threshold the remover was configured with. Remove is idempotent.
func (r *BoilerplateRemover) Remove(text string, fps *FingerprintSet) string {
	text = r.RemovePatterns(text)
	if !r.useCorpus || fps.Len() == 0 {
		return text
	}

	for i := 0; i < maxPasses; i++ {
		next := r.removeFingerprinted(text, fps)
		if next == text {
			break
		}
		text = r.RemovePatterns(next)
	}
	return text
}

// RemovePatterns applies the pattern rules only, to a fixpoint. This is the
// text the fingerprint builder hashes.
func (r *BoilerplateRemover) RemovePatterns(text string) string {
	for i := 0; i < maxPasses; i++ {
		next := text
		for _, rule := range r.rules {
			next = rule.apply(next)
		}
		next = trimTrailingSeparators(next)
		if next == text {
			break
		}
		text = next
	}
	return text
}

func (r *BoilerplateRemover) removeFingerprinted(text string, fps *FingerprintSet) string {
	start, fp, ok := tailWindow(text, r.fingerprint)
	if !ok || fps.Count(fp) < r.fingerprint.Threshold {
		return text
	}
	return text[:start]
}

func cutAtSignatureDelimiter(s string) string {
	loc := signatureDelimiterRegex.FindStringIndex(s)
	if loc == nil {
		return s
	}
	return s[:loc[0]]
}

// removeBlocks cuts every block opened by start. A block runs to the next
// section break or the end of text, but no further than the end of the
// paragraph containing byte maxBytes of the block.
func removeBlocks(s string, start *regexp.Regexp, maxBytes int) string {
	for i := 0; i < maxPasses; i++ {
		loc := start.FindStringIndex(s)
		if loc == nil {
			return s
		}
		begin := loc[0]
		end := len(s)
		if brk := sectionBreakRegex.FindStringIndex(s[loc[1]:]); brk != nil {
			end = loc[1] + brk[0]
		}
		if maxBytes > 0 && end-begin > maxBytes {
			end = paragraphEnd(s, begin+maxBytes, end)
		}
		s = s[:begin] + s[end:]
	}
	return s
}

func paragraphEnd(s string, from, limit int) int {
	if idx := strings.Index(s[from:limit], "\n\n"); idx >= 0 {
		return from + idx
	}
	return limit
}

// trimTrailingSeparators removes trailing whitespace and rule lines left
// behind once a signature or footer is gone.
func trimTrailingSeparators(s string) string {
	for {
		trimmed := strings.TrimRight(s, " \t\n")
		loc := trailingSeparatorRegex.FindStringIndex(trimmed)
		if loc == nil {
			return trimmed
		}
		s = trimmed[:loc[0]]
	}
}
