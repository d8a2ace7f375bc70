package seed

import (
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
)

// cleanContent drops scripts, styles, document chrome, comments and inline event
// handlers from seeded HTML and returns the remaining body markup.
func cleanContent(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", nil
	}

	doc, err := html.Parse(strings.NewReader(trimmed))
	if err != nil {
		return "", eris.Wrap(err, "parsing html content")
	}

	root := &html.Node{Type: html.ElementNode, Data: "div"}
	appendSanitizedChildren(root, doc)

	var builder strings.Builder
	for child := root.FirstChild; child != nil; child = child.NextSibling {
		if err := html.Render(&builder, child); err != nil {
			return "", eris.Wrap(err, "rendering cleaned html")
		}
	}

	return strings.TrimSpace(builder.String()), nil
}

func appendSanitizedChildren(dst, src *html.Node) {
	if src == nil {
		return
	}

	skipWhitespace := src.Type == html.DocumentNode || (src.Type == html.ElementNode && (strings.EqualFold(src.Data, "html") || strings.EqualFold(src.Data, "body")))

	for child := src.FirstChild; child != nil; child = child.NextSibling {
		switch child.Type {
		case html.TextNode:
			if skipWhitespace && strings.TrimSpace(child.Data) == "" {
				continue
			}
			dst.AppendChild(&html.Node{Type: html.TextNode, Data: child.Data})
		case html.ElementNode:
			switch strings.ToLower(child.Data) {
			case "head", "script", "style", "noscript":
				continue
			case "html", "body":
				appendSanitizedChildren(dst, child)
				continue
			}

			replacement := &html.Node{Type: html.ElementNode, Data: child.Data, Attr: safeAttributes(child.Attr)}
			appendSanitizedChildren(replacement, child)
			dst.AppendChild(replacement)
		case html.CommentNode, html.DoctypeNode:
			continue
		default:
			appendSanitizedChildren(dst, child)
		}
	}
}

func safeAttributes(attrs []html.Attribute) []html.Attribute {
	if len(attrs) == 0 {
		return nil
	}

	kept := make([]html.Attribute, 0, len(attrs))
	for _, attr := range attrs {
		key := strings.ToLower(attr.Key)
		if strings.HasPrefix(key, "on") {
			continue
		}
		if (key == "href" || key == "src") && strings.HasPrefix(strings.ToLower(strings.TrimSpace(attr.Val)), "javascript:") {
			continue
		}
		kept = append(kept, attr)
	}

	return kept
}
