package htmlutil

import (
	"bytes"
	"regexp"
	"strings"
	"unicode"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var innerWhitespace = regexp.MustCompile(`\s\s+`)

// Normalize strips non-printable characters and collapses whitespace.
func Normalize(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) {
			return r
		}
		if unicode.IsSpace(r) {
			return ' '
		}
		return -1
	}, s)
	s = strings.Trim(s, " \t\n")
	return innerWhitespace.ReplaceAllString(s, " ")
}

// PageText returns the text a browser shows for a raw payload, this is how
// JSON responses are read back out of a rendered page: chrome wraps them in
// a <pre>, other engines put them straight into <body>.
func PageText(markup string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", err
	}
	pre := doc.Find("pre").First()
	if len(pre.Nodes) > 0 {
		return strings.TrimSpace(GetText(pre.Nodes[0])), nil
	}
	body := doc.Find("body").First()
	if len(body.Nodes) > 0 {
		return strings.TrimSpace(GetText(body.Nodes[0])), nil
	}
	return strings.TrimSpace(markup), nil
}

// ErrorText returns the normalized text of the first error banner
// (.alert-danger or .error) on a page, or "" if there is none.
func ErrorText(markup string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return ""
	}
	for _, node := range doc.Find(".alert-danger, .error").Nodes {
		text := Normalize(GetText(node))
		if text != "" {
			return text
		}
	}
	return ""
}

var converter = md.NewConverter("", true, nil)

// Markdown renders markup as markdown, truncated to `limit` runes when limit > 0.
// On a conversion failure the raw markup is truncated instead.
func Markdown(markup string, limit int) string {
	rendered, err := converter.ConvertString(markup)
	if err != nil {
		rendered = markup
	}
	rendered = strings.TrimSpace(rendered)
	runes := []rune(rendered)
	if limit > 0 && len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	return rendered
}
