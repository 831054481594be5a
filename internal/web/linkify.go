package web

import (
	"fmt"
	"html/template"
	"regexp"
	"strings"

	"mvdan.cc/xurls/v2"
)

type linkifier struct {
	re *regexp.Regexp
}

func newLinkifier() (*linkifier, error) {
	re, err := xurls.StrictMatchingScheme(`https?://`)
	if err != nil {
		return nil, fmt.Errorf("create regexp: %w", err)
	}

	return &linkifier{re: re}, nil
}

// HTML escapes text and turns every http(s) URL in it into a link.
func (l *linkifier) HTML(text string) template.HTML {
	matches := l.re.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return template.HTML(template.HTMLEscapeString(text)) //nolint:gosec // Escaped above.
	}

	var b strings.Builder
	b.Grow(len(text) + len(matches)*64)

	last := 0
	for _, m := range matches {
		b.WriteString(template.HTMLEscapeString(text[last:m[0]]))

		u := template.HTMLEscapeString(text[m[0]:m[1]])
		fmt.Fprintf(&b, `<a href="%s" rel="noopener noreferrer" target="_blank">%s</a>`, u, u)

		last = m[1]
	}
	b.WriteString(template.HTMLEscapeString(text[last:]))

	return template.HTML(b.String()) //nolint:gosec // Every fragment is escaped.
}
