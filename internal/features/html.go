package features

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// renderedBody is the lowercased HTML serialization of a body plus the
// structural signals found while walking its tree
type renderedBody struct {
	text         string
	mailtoAction bool
}

func renderBody(body string) renderedBody {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return renderedBody{text: strings.ToLower(body)}
	}

	var buf bytes.Buffer
	text := strings.ToLower(body)
	if err := html.Render(&buf, doc); err == nil {
		text = strings.ToLower(buf.String())
	}

	return renderedBody{
		text:         text,
		mailtoAction: hasMailtoForm(doc),
	}
}

// hasMailtoForm reports whether any <form> posts to a mailto: URI
func hasMailtoForm(n *html.Node) bool {
	if n.Type == html.ElementNode && n.DataAtom == atom.Form {
		for _, attr := range n.Attr {
			if attr.Key != "action" {
				continue
			}
			if strings.HasPrefix(strings.ToLower(strings.TrimSpace(attr.Val)), "mailto:") {
				return true
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if hasMailtoForm(c) {
			return true
		}
	}
	return false
}
