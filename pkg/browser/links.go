package browser

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// ExtractLinks walks rendered HTML and collects anchors and audio sources in
// DOM order, resolved against baseURL and deduplicated by URL. Unparsable
// HTML yields empty results rather than an error.
func ExtractLinks(rawHTML, baseURL string) ([]Link, []string) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, nil
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		base = nil
	}

	var links []Link
	var audio []string
	seenLink := make(map[string]bool)
	seenAudio := make(map[string]bool)

	var traverse func(n *html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch strings.ToLower(n.Data) {
			case "a":
				if href := resolveAttr(n, "href", base); href != "" && !seenLink[href] {
					seenLink[href] = true
					links = append(links, Link{Text: nodeText(n), Href: href})
				}
			case "audio", "source":
				if src := resolveAttr(n, "src", base); src != "" && !seenAudio[src] {
					seenAudio[src] = true
					audio = append(audio, src)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(doc)

	return links, audio
}

// resolveAttr returns the named attribute resolved against base, or "" when
// absent, fragment-only, or unresolvable.
func resolveAttr(n *html.Node, name string, base *url.URL) string {
	var raw string
	for _, attr := range n.Attr {
		if strings.EqualFold(attr.Key, name) {
			raw = strings.TrimSpace(attr.Val)
			break
		}
	}
	if raw == "" || strings.HasPrefix(raw, "#") || strings.HasPrefix(raw, "javascript:") {
		return ""
	}

	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if base != nil {
		return base.ResolveReference(ref).String()
	}
	return ref.String()
}

// nodeText collects the trimmed text content beneath n.
func nodeText(n *html.Node) string {
	var sb strings.Builder
	var traverse func(*html.Node)
	traverse = func(c *html.Node) {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
		for gc := c.FirstChild; gc != nil; gc = gc.NextSibling {
			traverse(gc)
		}
	}
	traverse(n)
	return strings.TrimSpace(sb.String())
}
