package mailclean

import (
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// droppedElements never carry message text.
const droppedElements = "script, style, head, title, meta, link, noscript, svg, iframe, object, embed, template, input, button, select, textarea, [hidden]"

// prepareDocument removes non-content elements and replaces images with
// text placeholders. Both markup engines share it.
func prepareDocument(doc *goquery.Document, dropImages bool) {
	doc.Find(droppedElements).Remove()

	doc.Find("[style]").Each(func(_ int, s *goquery.Selection) {
		style, _ := s.Attr("style")
		if isHiddenStyle(style) {
			s.Remove()
		}
	})

	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		label := ""
		if !dropImages {
			label = imagePlaceholder(attr(s, "src"), attr(s, "alt"), attr(s, "width"), attr(s, "height"))
		}
		if label == "" {
			s.Remove()
			return
		}
		s.ReplaceWithNodes(&html.Node{Type: html.TextNode, Data: " " + label + " "})
	})
}

func attr(s *goquery.Selection, name string) string {
	v, _ := s.Attr(name)
	return strings.TrimSpace(v)
}

func isHiddenStyle(style string) bool {
	compact := strings.ToLower(strings.Join(strings.Fields(style), ""))
	return strings.Contains(compact, "display:none") || strings.Contains(compact, "visibility:hidden")
}

var trackingMarkers = []string{
	"pixel.png", "pixel.gif", "blank.png", "blank.gif",
	"spacer.gif", "spacer.png", "1x1.", "/track/open", "/o.gif",
}

func isTrackingPixel(src, width, height string) bool {
	if isTinyDimension(width) || isTinyDimension(height) {
		return true
	}
	lower := strings.ToLower(src)
	for _, m := range trackingMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

func isTinyDimension(v string) bool {
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(v), "px"))
	return err == nil && n <= 1
}

// imagePlaceholder returns the text an image renders as, or "" when the
// image should vanish.
func imagePlaceholder(src, alt, width, height string) string {
	if isTrackingPixel(src, width, height) {
		return ""
	}
	if len(src) > 4 && strings.EqualFold(src[:4], "cid:") {
		return "[Inline image: " + src[4:] + "]"
	}
	if alt = strings.Join(strings.Fields(alt), " "); alt != "" {
		return "[Image: " + alt + "]"
	}
	if name := imageName(src); name != "" {
		return "[Image: " + name + "]"
	}
	return ""
}

func imageName(src string) string {
	if src == "" || strings.HasPrefix(strings.ToLower(src), "data:") {
		return ""
	}
	p := src
	if u, err := url.Parse(src); err == nil {
		p = u.Path
	}
	name := path.Base(p)
	if name == "." || name == "/" {
		return ""
	}
	return name
}

// domRenderer is the builtin engine. It walks the parsed document and
// writes Markdown-flavoured text without ever wrapping lines.
type domRenderer struct {
	dropImages bool
	stripLinks bool
}

func (r *domRenderer) Name() string {
	return string(EngineBuiltin)
}

func (r *domRenderer) Clean(src string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedMarkup, err)
	}
	prepareDocument(doc, r.dropImages)

	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}

	var sb strings.Builder
	r.renderChildren(&sb, body, 0)

	return checkRendered(src, tidyMarkdown(sb.String()))
}

func (r *domRenderer) renderChildren(sb *strings.Builder, sel *goquery.Selection, depth int) {
	sel.Contents().Each(func(_ int, s *goquery.Selection) {
		node := s.Nodes[0]
		switch node.Type {
		case html.TextNode:
			writeText(sb, node.Data)
		case html.ElementNode:
			r.renderElement(sb, s, goquery.NodeName(s), depth)
		}
	})
}

func (r *domRenderer) renderElement(sb *strings.Builder, s *goquery.Selection, tag string, depth int) {
	switch tag {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		var hb strings.Builder
		r.renderChildren(&hb, s, depth)
		text := strings.Join(strings.Fields(hb.String()), " ")
		if text == "" {
			return
		}
		ensureBlankLine(sb)
		sb.WriteString(strings.Repeat("#", int(tag[1]-'0')))
		sb.WriteString(" ")
		sb.WriteString(text)
		ensureBlankLine(sb)

	case "p":
		ensureBlankLine(sb)
		r.renderChildren(sb, s, depth)
		ensureBlankLine(sb)

	case "div", "section", "article", "main", "header", "footer", "figure", "figcaption", "center", "address", "nav", "aside", "tbody", "thead", "tfoot":
		ensureNewline(sb)
		r.renderChildren(sb, s, depth)
		ensureNewline(sb)

	case "br":
		sb.WriteString("\n")

	case "hr":
		ensureBlankLine(sb)
		sb.WriteString("---")
		ensureBlankLine(sb)

	case "strong", "b":
		r.renderInline(sb, s, depth, "**")

	case "em", "i":
		r.renderInline(sb, s, depth, "*")

	case "code":
		if parent := s.Parent(); parent.Length() > 0 && goquery.NodeName(parent) == "pre" {
			r.renderChildren(sb, s, depth)
			return
		}
		r.renderInline(sb, s, depth, "`")

	case "pre":
		text := strings.Trim(s.Text(), "\n")
		if strings.TrimSpace(text) == "" {
			return
		}
		ensureBlankLine(sb)
		sb.WriteString("```\n")
		sb.WriteString(text)
		sb.WriteString("\n```")
		ensureBlankLine(sb)

	case "blockquote":
		var qb strings.Builder
		r.renderChildren(&qb, s, depth)
		quoted := tidyMarkdown(qb.String())
		if quoted == "" {
			return
		}
		ensureBlankLine(sb)
		for _, line := range strings.Split(quoted, "\n") {
			if line = strings.TrimSpace(line); line == "" {
				sb.WriteString(">\n")
				continue
			}
			sb.WriteString("> ")
			sb.WriteString(line)
			sb.WriteString("\n")
		}
		ensureBlankLine(sb)

	case "ul", "ol":
		r.renderList(sb, s, tag == "ol", depth)

	case "dl":
		ensureBlankLine(sb)
		s.Children().Each(func(_ int, child *goquery.Selection) {
			var db strings.Builder
			r.renderChildren(&db, child, depth)
			text := strings.Join(strings.Fields(db.String()), " ")
			if text == "" {
				return
			}
			switch goquery.NodeName(child) {
			case "dt":
				sb.WriteString("**" + text + "**\n")
			case "dd":
				sb.WriteString(": " + text + "\n")
			}
		})
		ensureBlankLine(sb)

	case "a":
		var lb strings.Builder
		r.renderChildren(&lb, s, depth)
		label := strings.Join(strings.Fields(lb.String()), " ")
		href, _ := s.Attr("href")
		if r.stripLinks && label != "" {
			href = ""
		}
		if startsWithSpace(lb.String()) {
			writeSpace(sb)
		}
		writeLink(sb, label, href)
		if endsWithSpace(lb.String()) {
			writeSpace(sb)
		}

	case "table":
		r.renderTable(sb, s, depth)

	default:
		r.renderChildren(sb, s, depth)
	}
}

// renderInline wraps single-line inline content in marker. Content that
// spans lines is written unmarked.
func (r *domRenderer) renderInline(sb *strings.Builder, s *goquery.Selection, depth int, marker string) {
	var ib strings.Builder
	r.renderChildren(&ib, s, depth)
	inner := ib.String()
	trimmed := strings.TrimSpace(inner)
	if trimmed == "" || strings.Contains(trimmed, "\n") {
		sb.WriteString(inner)
		return
	}
	if startsWithSpace(inner) {
		writeSpace(sb)
	}
	sb.WriteString(marker)
	sb.WriteString(trimmed)
	sb.WriteString(marker)
	if endsWithSpace(inner) {
		sb.WriteString(" ")
	}
}

func (r *domRenderer) renderList(sb *strings.Builder, s *goquery.Selection, ordered bool, depth int) {
	if depth == 0 {
		ensureBlankLine(sb)
	} else {
		ensureNewline(sb)
	}

	indent := strings.Repeat("  ", depth)
	counter := 1
	s.ChildrenFiltered("li").Each(func(_ int, li *goquery.Selection) {
		var lb strings.Builder
		r.renderChildren(&lb, li, depth+1)
		item := tidyMarkdown(lb.String())
		if item == "" {
			return
		}
		sb.WriteString(indent)
		if ordered {
			fmt.Fprintf(sb, "%d. ", counter)
			counter++
		} else {
			sb.WriteString("- ")
		}
		sb.WriteString(item)
		sb.WriteString("\n")
	})

	if depth == 0 {
		ensureBlankLine(sb)
	}
}

// renderTable writes data tables as pipe rows and layout tables as blocks.
func (r *domRenderer) renderTable(sb *strings.Builder, table *goquery.Selection, depth int) {
	rows := table.Find("tr").FilterFunction(func(_ int, tr *goquery.Selection) bool {
		return tr.Closest("table").Get(0) == table.Get(0)
	})

	if isLayoutTable(table, rows) {
		rows.Each(func(_ int, tr *goquery.Selection) {
			tr.ChildrenFiltered("td, th").Each(func(_ int, cell *goquery.Selection) {
				ensureNewline(sb)
				r.renderChildren(sb, cell, depth)
				ensureNewline(sb)
			})
		})
		return
	}

	ensureBlankLine(sb)
	emitted := 0
	rows.Each(func(_ int, tr *goquery.Selection) {
		cells := tr.ChildrenFiltered("td, th")
		if cells.Length() == 0 {
			return
		}
		texts := make([]string, 0, cells.Length())
		cells.Each(func(_ int, cell *goquery.Selection) {
			var cb strings.Builder
			r.renderChildren(&cb, cell, depth)
			texts = append(texts, tableCellText(cb.String()))
		})
		sb.WriteString("| " + strings.Join(texts, " | ") + " |\n")
		if emitted == 0 && isHeaderRow(tr, cells) {
			sb.WriteString("|" + strings.Repeat(" --- |", len(texts)) + "\n")
		}
		emitted++
	})
	ensureBlankLine(sb)
}

// isLayoutTable reports whether a table positions content rather than
// holding data: it nests tables, has at most one column, or says so.
func isLayoutTable(table, rows *goquery.Selection) bool {
	if role, _ := table.Attr("role"); strings.EqualFold(role, "presentation") {
		return true
	}
	if table.Find("table").Length() > 0 || rows.Length() == 0 {
		return true
	}
	maxCells := 0
	rows.Each(func(_ int, tr *goquery.Selection) {
		if n := tr.ChildrenFiltered("td, th").Length(); n > maxCells {
			maxCells = n
		}
	})
	return maxCells <= 1
}

func isHeaderRow(tr, cells *goquery.Selection) bool {
	if parent := tr.Parent(); parent.Length() > 0 && goquery.NodeName(parent) == "thead" {
		return true
	}
	return cells.Length() == cells.Filter("th").Length()
}

func tableCellText(s string) string {
	return strings.ReplaceAll(strings.Join(strings.Fields(s), " "), "|", `\|`)
}

// writeLink writes an anchor as [label](target), or just the label or
// target when the other adds nothing.
func writeLink(sb *strings.Builder, label, href string) {
	href = strings.TrimSpace(href)
	lower := strings.ToLower(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(lower, "javascript:") {
		sb.WriteString(label)
		return
	}

	bare := href
	for _, scheme := range []string{"mailto:", "tel:"} {
		if strings.HasPrefix(lower, scheme) {
			bare = href[len(scheme):]
			break
		}
	}

	switch {
	case label == "":
		sb.WriteString(bare)
	case label == href || label == bare || strings.TrimSuffix(label, "/") == strings.TrimSuffix(bare, "/"):
		sb.WriteString(label)
	default:
		sb.WriteString("[" + label + "](" + href + ")")
	}
}
