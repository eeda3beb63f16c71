package mailclean

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jmylchreest/mailrefyne/pkg/cleaner"
)

// MarkupConverter renders message parts as plain, Markdown-flavoured text.
// HTML parts go through an ordered strategy chain: the configured engine,
// then the tag stripper. If both fail the part renders as "".
type MarkupConverter struct {
	plain cleaner.Cleaner
	html  *cleaner.FallbackCleaner
}

// NewMarkupConverter creates a converter for the given converter config.
func NewMarkupConverter(cfg ConverterConfig) *MarkupConverter {
	var primary cleaner.Cleaner = &domRenderer{dropImages: cfg.DropImages, stripLinks: cfg.StripLinks}
	if cfg.Engine == EngineHTMLToMarkdown {
		primary = &guardedCleaner{
			inner: cleaner.NewChain(
				&prepassCleaner{dropImages: cfg.DropImages},
				cleaner.NewMarkdown(
					cleaner.WithStripImages(cfg.DropImages),
					cleaner.WithStripLinks(cfg.StripLinks),
				),
			),
		}
	}

	return &MarkupConverter{
		plain: cleaner.NewNoop(),
		html:  cleaner.NewFallback(primary, &tagStripper{dropImages: cfg.DropImages}),
	}
}

// Convert renders part. It never fails.
func (m *MarkupConverter) Convert(part TextPart) string {
	out, _ := m.ConvertWithWarnings(part)
	return out
}

// ConvertWithWarnings renders part and reports every strategy that failed
// along the way. Tag-like text in rendered HTML is escaped so the output
// is never sniffed as markup again.
func (m *MarkupConverter) ConvertWithWarnings(part TextPart) (string, []Warning) {
	if part.Kind != PartHTML {
		out, _ := m.plain.Clean(part.Body)
		return out, nil
	}

	var w warnings
	out, failures, err := m.html.CleanWithFailures(part.Body)
	context := fmt.Sprintf("part %d", part.OriginIndex)
	for _, f := range failures {
		w.add(StageConvert, fmt.Sprintf("%v: %s: %v", ErrMalformedMarkup, f.Cleaner, f.Err), context)
	}
	if err != nil {
		return "", w
	}
	return EscapeMarkup(out), w
}

// Name returns the strategy chain name.
func (m *MarkupConverter) Name() string {
	return m.html.Name()
}

// guardedCleaner fails when inner renders nothing from markup that has
// visible text.
type guardedCleaner struct {
	inner cleaner.Cleaner
}

func (g *guardedCleaner) Clean(src string) (string, error) {
	out, err := g.inner.Clean(src)
	if err != nil {
		return "", err
	}
	return checkRendered(src, out)
}

func (g *guardedCleaner) Name() string {
	return g.inner.Name()
}

func checkRendered(src, out string) (string, error) {
	if strings.TrimSpace(out) != "" {
		return out, nil
	}
	if visible, _ := stripTags(src, true); strings.TrimSpace(visible) != "" {
		return "", ErrEmptyRender
	}
	return out, nil
}

// prepassCleaner applies the shared DOM cleanup and image placeholders and
// serialises the document back to HTML.
type prepassCleaner struct {
	dropImages bool
}

func (p *prepassCleaner) Clean(src string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedMarkup, err)
	}
	prepareDocument(doc, p.dropImages)
	return doc.Html()
}

func (p *prepassCleaner) Name() string {
	return "prepass"
}
