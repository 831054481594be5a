package bridge

import (
	"bytes"
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

const (
	diagnosticBodyReadLimit int64 = 1024
	diagnosticSnippetMaxLen       = 256
)

// diagnosticSnippet turns a failed response body into one short log-friendly line.
func diagnosticSnippet(contentType string, body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ""
	}

	var snippet string
	if isHTML(contentType, body) {
		snippet = htmlSnippet(body)
	}
	if snippet == "" {
		snippet = string(bytes.ToValidUTF8(body, []byte("�")))
	}

	return truncate(strings.Join(strings.Fields(snippet), " "), diagnosticSnippetMaxLen)
}

func isHTML(contentType string, body []byte) bool {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		return mediaType == "text/html" || mediaType == "application/xhtml+xml"
	}

	head := strings.ToLower(string(body[:min(len(body), 64)]))
	return strings.HasPrefix(head, "<!doctype html") || strings.HasPrefix(head, "<html")
}

func htmlSnippet(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())

	doc.Find("script, style, head").Remove()
	doc.Find("p, div, br, li, tr, td, th, pre, h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})
	text := strings.TrimSpace(doc.Find("body").Text())

	switch {
	case title == "":
		return text
	case text == "" || strings.HasPrefix(text, title):
		return title
	default:
		return title + ": " + text
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}

	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}

	return s[:cut] + "…"
}
