package ingest

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/solacehq/solace/internal/storage"
)

// FromHTML strips markup from an HTML document and splits the remaining text
// into numbered passages.
func FromHTML(r io.Reader, source, prefix string) ([]storage.Verse, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}

	var sb strings.Builder
	collectText(root, &sb)

	verses := SplitVerses(sb.String(), source, prefix)
	if len(verses) == 0 {
		return nil, fmt.Errorf("no numbered passages found in html source")
	}
	return verses, nil
}

// collectText walks the DOM gathering text nodes, skipping script and style
// subtrees. Block elements contribute a newline so passages on separate
// lines don't run together.
func collectText(n *html.Node, sb *strings.Builder) {
	if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
		return
	}
	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb)
	}
	if n.Type == html.ElementNode {
		switch n.Data {
		case "p", "div", "br", "li", "h1", "h2", "h3", "h4", "tr":
			sb.WriteString("\n")
		}
	}
}
