package dom

import (
	"bytes"
	"io"
	"strings"

	"golang.org/x/net/html"
)

var skippedTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true,
	"head": true, "meta": true, "link": true,
}

// ExtractText returns the human-visible text of an HTML document with
// whitespace collapsed to single spaces. Script and style contents are dropped.
func ExtractText(htmlContent string) (string, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	collectText(&buf, doc)
	return strings.Join(strings.Fields(buf.String()), " "), nil
}

func collectText(w io.StringWriter, n *html.Node) {
	switch n.Type {
	case html.CommentNode, html.ErrorNode, html.DoctypeNode:
		return
	case html.TextNode:
		_, _ = w.WriteString(n.Data)
		_, _ = w.WriteString(" ")
		return
	case html.ElementNode:
		if skippedTags[n.Data] {
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(w, c)
	}
}

var keptAttrs = map[string]bool{
	"id": true, "class": true, "name": true, "type": true, "href": true,
	"value": true, "placeholder": true, "role": true, "aria-label": true,
	"checked": true, "disabled": true,
}

// Simplify strips scripts, styles, comments and noisy attributes so a page can
// be dumped into a failure log. The result is truncated to limit bytes when
// limit > 0.
func Simplify(htmlContent string, limit int) (string, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	simplifyNode(&buf, doc)
	out := buf.String()
	if limit > 0 && len(out) > limit {
		out = out[:limit] + "...(truncated)"
	}
	return out, nil
}

func simplifyNode(buf *bytes.Buffer, n *html.Node) {
	switch n.Type {
	case html.CommentNode, html.ErrorNode, html.DoctypeNode:
		return
	case html.TextNode:
		if trimmed := strings.TrimSpace(n.Data); trimmed != "" {
			buf.WriteString(html.EscapeString(trimmed))
		}
		return
	case html.ElementNode:
		if skippedTags[n.Data] {
			return
		}
		buf.WriteString("<" + n.Data)
		for _, a := range n.Attr {
			if keptAttrs[a.Key] {
				buf.WriteString(" " + a.Key + `="` + html.EscapeString(a.Val) + `"`)
			}
		}
		buf.WriteString(">")
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		simplifyNode(buf, c)
	}

	if n.Type == html.ElementNode && !voidElements[n.Data] {
		buf.WriteString("</" + n.Data + ">")
	}
}

var voidElements = map[string]bool{
	"br": true, "hr": true, "img": true, "input": true,
}
