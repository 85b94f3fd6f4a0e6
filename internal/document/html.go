package document

import (
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// extractHTML returns the visible text of an HTML document as a single element. Block
// elements end a line.
func extractHTML(r io.Reader, cfg ProcessingConfig) ([]element, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	walkHTML(doc, &b, cfg)
	text := normalizeLines(b.String())
	return []element{{Text: text, Page: 1}}, nil
}

func walkHTML(n *html.Node, b *strings.Builder, cfg ProcessingConfig) {
	switch n.Type {
	case html.TextNode:
		if t := strings.TrimSpace(n.Data); t != "" {
			b.WriteString(t)
			b.WriteByte(' ')
		}
		return
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Script, atom.Style, atom.Noscript, atom.Template, atom.Head:
			return
		case atom.Nav, atom.Header, atom.Footer, atom.Aside:
			if cfg.RemoveHeaders {
				return
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkHTML(c, b, cfg)
		if cfg.InferTables && c.Type == html.ElementNode && (c.DataAtom == atom.Td || c.DataAtom == atom.Th) {
			b.WriteString("| ")
		}
	}
	if n.Type == html.ElementNode && isBlock(n.DataAtom) {
		b.WriteByte('\n')
	}
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Br, atom.Li, atom.Tr, atom.Table, atom.Section, atom.Article,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6, atom.Pre, atom.Blockquote:
		return true
	}
	return false
}

// normalizeLines trims each line, collapses inner whitespace and drops blank lines.
func normalizeLines(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	out := lines[:0]
	for _, ln := range lines {
		ln = strings.Join(strings.Fields(ln), " ")
		if ln != "" {
			out = append(out, ln)
		}
	}
	return strings.Join(out, "\n")
}
