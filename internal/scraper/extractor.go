package scraper

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/schoolatlas/schoolatlas/internal/domain"
	"github.com/schoolatlas/schoolatlas/internal/errors"
	"github.com/schoolatlas/schoolatlas/internal/logger"
)

// Extractor reads one organization's member directory page and produces
// candidate school records. Each organization publishes its list in a
// different shape, so each gets specialized parsing code.
type Extractor interface {
	Abbreviation() string
	Extract(body []byte, org *domain.Organization, log *logger.Logger) ([]*domain.SchoolRecord, error)
}

// extractors maps seed tags to implementations.
var extractors = map[string]Extractor{
	"accs": accsExtractor{},
	"icle": icleExtractor{},
	"ghi":  ghiExtractor{},
	"asa":  asaExtractor{},
}

// ExtractorFor resolves a seed extractor tag.
func ExtractorFor(tag string) (Extractor, error) {
	e, ok := extractors[tag]
	if !ok {
		return nil, errors.NotFoundf("no extractor registered for tag %q", tag)
	}
	return e, nil
}

// findAll walks the tree collecting element nodes the predicate accepts.
func findAll(n *html.Node, pred func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && pred(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

// findFirst returns the first element the predicate accepts, or nil.
func findFirst(n *html.Node, pred func(*html.Node) bool) *html.Node {
	if nodes := findAll(n, pred); len(nodes) > 0 {
		return nodes[0]
	}
	return nil
}

func isTag(name string) func(*html.Node) bool {
	return func(n *html.Node) bool { return n.Data == name }
}

func tagWithClass(name, class string) func(*html.Node) bool {
	return func(n *html.Node) bool { return n.Data == name && hasClass(n, class) }
}

func hasClass(n *html.Node, class string) bool {
	for _, f := range strings.Fields(attrVal(n, "class")) {
		if f == class {
			return true
		}
	}
	return false
}

func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// textContent flattens a node's text, collapsing runs of whitespace.
func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
