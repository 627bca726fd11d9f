// Package page models one fetched web page — raw markup, declared style
// text, inline behavior text, and the parsed DOM — and provides the HTTP
// fetcher that builds it.
//
// A Document is immutable once fetched; its lifecycle is one analysis run.
package page

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document is one fetched page.
type Document struct {
	// URL is the stable identifier of the page.
	URL string

	// Markup is the raw HTML as served.
	Markup string

	// Styles is the concatenation of all <style> blocks plus inline
	// style attribute values, in document order.
	Styles string

	// Scripts is the concatenation of all inline <script> bodies, in
	// document order. External script bodies are not fetched.
	Scripts string

	root *html.Node
}

// Parse builds a Document from raw markup. html.Parse is forgiving: it
// never fails on malformed real-world pages, it produces a best-effort
// tree instead.
func Parse(url, markup string) (*Document, error) {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("page: parse %s: %w", url, err)
	}
	d := &Document{URL: url, Markup: markup, root: root}
	d.Styles, d.Scripts = collectStyleScript(root)
	return d, nil
}

// Root returns the parsed DOM root.
func (d *Document) Root() *html.Node { return d.root }

// Text returns the page's visible text content, whitespace-normalised.
func (d *Document) Text() string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript:
				return
			}
		}
		if n.Type == html.TextNode {
			t := strings.TrimSpace(n.Data)
			if t != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(d.root)
	return sb.String()
}

// collectStyleScript gathers declared style text and inline script text
// from the parsed tree.
func collectStyleScript(root *html.Node) (styles, scripts string) {
	var styleSB, scriptSB strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Style:
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					if c.Type == html.TextNode {
						styleSB.WriteString(c.Data)
						styleSB.WriteByte('\n')
					}
				}
			case atom.Script:
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					if c.Type == html.TextNode {
						scriptSB.WriteString(c.Data)
						scriptSB.WriteByte('\n')
					}
				}
			}
			for _, a := range n.Attr {
				if a.Key == "style" && strings.TrimSpace(a.Val) != "" {
					styleSB.WriteString(a.Val)
					styleSB.WriteByte('\n')
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return styleSB.String(), scriptSB.String()
}
