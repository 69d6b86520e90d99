package text

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
)

var markdown = goldmark.New()

// Title returns the text of the first level-one heading in source, or the
// first heading of any level when there is no level-one heading. It returns
// an empty string when the document has no headings.
func Title(source []byte) string {
	doc := markdown.Parser().Parse(gmtext.NewReader(source))

	var first, top string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		t := extractText(h, source)
		if first == "" {
			first = t
		}
		if h.Level == 1 && t != "" {
			top = t
			return ast.WalkStop, nil
		}
		return ast.WalkSkipChildren, nil
	})

	if top != "" {
		return top
	}
	return first
}

// StripTitle removes a leading level-one heading from source, so the title
// is not narrated twice when it is also passed separately.
func StripTitle(source []byte) []byte {
	doc := markdown.Parser().Parse(gmtext.NewReader(source))
	h, ok := doc.FirstChild().(*ast.Heading)
	if !ok || h.Level != 1 || h.Lines().Len() == 0 {
		return source
	}

	rest := source[h.Lines().At(h.Lines().Len()-1).Stop:]
	nl := bytes.IndexByte(rest, '\n')
	if nl < 0 {
		return nil
	}
	rest = rest[nl+1:]

	// setext headings carry an underline on the next line
	if next, after, found := bytes.Cut(rest, []byte("\n")); isUnderline(next) {
		if !found {
			return nil
		}
		return after
	}
	return rest
}

func isUnderline(line []byte) bool {
	line = bytes.TrimSpace(line)
	return len(line) > 0 && len(bytes.Trim(line, "=")) == 0
}

func extractText(node ast.Node, source []byte) string {
	var b strings.Builder
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		switch c := child.(type) {
		case *ast.Text:
			b.Write(c.Segment.Value(source))
			if c.SoftLineBreak() || c.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(c.Value)
		default:
			b.WriteString(extractText(c, source))
		}
	}
	return strings.TrimSpace(b.String())
}
