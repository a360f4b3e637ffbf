// Package classify decides whether a page can be analyzed from its text or has
// to be rendered and screenshotted first.
package classify

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Thresholds of the simple-page rule. A page is simple only when both counts
// stay strictly below their limit.
const (
	MaxTextChars = 10000
	MaxScripts   = 10
)

// Path is the analysis route chosen for a page.
type Path string

// Available paths.
const (
	PathText       Path = "text"
	PathScreenshot Path = "screenshot"
)

// Classification is the outcome of inspecting one page's markup.
type Classification struct {
	Text        string
	TextChars   int
	ScriptCount int
	Path        Path
}

// NeedsScreenshot reports whether the page should be rendered.
func (c Classification) NeedsScreenshot() bool {
	return c.Path == PathScreenshot
}

// Decide applies the simple-page rule to pre-computed counts.
func Decide(textChars, scriptCount int) Path {
	if textChars < MaxTextChars && scriptCount < MaxScripts {
		return PathText
	}
	return PathScreenshot
}

// elements whose content never reaches the reader.
var hiddenElements = map[string]struct{}{
	"script":   {},
	"style":    {},
	"noscript": {},
	"template": {},
}

// Heuristic classifies markup using the text-length and script-count rule.
type Heuristic struct{}

// New returns a Heuristic classifier.
func New() *Heuristic {
	return &Heuristic{}
}

// Classify extracts the visible text of markup, counts its script elements and
// picks a Path. Markup that cannot be parsed yields an empty text-path result.
func (h *Heuristic) Classify(markup []byte) Classification {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return Classification{Path: Decide(0, 0)}
	}
	scripts := doc.Find("script").Length()

	var lines []string
	for _, node := range doc.Nodes {
		collectText(node, &lines)
	}
	text := strings.Join(lines, "\n")
	chars := utf8.RuneCountInString(text)

	return Classification{
		Text:        text,
		TextChars:   chars,
		ScriptCount: scripts,
		Path:        Decide(chars, scripts),
	}
}

// collectText appends one whitespace-normalized line per non-empty text node,
// in document order.
func collectText(n *html.Node, lines *[]string) {
	switch n.Type {
	case html.TextNode:
		if line := strings.Join(strings.Fields(n.Data), " "); line != "" {
			*lines = append(*lines, line)
		}
		return
	case html.ElementNode:
		if _, hidden := hiddenElements[strings.ToLower(n.Data)]; hidden {
			return
		}
	case html.CommentNode, html.DoctypeNode:
		return
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		collectText(child, lines)
	}
}
