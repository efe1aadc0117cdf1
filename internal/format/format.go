// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package format renders OCR text that uses a small markdown subset into
// HTML for display. It is a chain of ordered regular-expression
// substitutions, not a markdown parser: later rules assume earlier ones
// already ran. Input is escaped first and the output is passed through an
// allow-list sanitizer, so the result is safe to embed as trusted HTML.
package format

import (
	"html"
	"html/template"
	"net/url"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// codeNewline stands in for newlines inside fenced code blocks so the
// line-break rules leave them alone. It is restored at the end.
const codeNewline = "\x00"

var (
	mdImage   = regexp.MustCompile(`!\[([^\]\n]*)\]\((data:image/[a-zA-Z0-9.+-]+;base64,[A-Za-z0-9+/]+={0,2})\)`)
	bareImage = regexp.MustCompile(`(^|[^"(])(data:image/[a-zA-Z0-9.+-]+;base64,[A-Za-z0-9+/]+={0,2})`)

	// Level 3 before 2 before 1, so "### x" is never read as "# ##x".
	h3 = regexp.MustCompile(`(?m)^### (.+)$`)
	h2 = regexp.MustCompile(`(?m)^## (.+)$`)
	h1 = regexp.MustCompile(`(?m)^# (.+)$`)

	bold = regexp.MustCompile(`\*\*(.+?)\*\*`)
	// An opening "*" followed by whitespace is a bullet marker, not emphasis.
	italic = regexp.MustCompile(`\*([^*\s][^*\n]*?)\*`)

	link = regexp.MustCompile(`\[([^\]\n]+)\]\(([^)\s]+)\)`)

	fenced     = regexp.MustCompile("(?s)```[a-zA-Z0-9_+-]*\n?(.*?)```")
	inlineCode = regexp.MustCompile("`([^`\n]+)`")

	bullet    = regexp.MustCompile(`(?m)^[*-] (.+)$`)
	listItems = regexp.MustCompile(`(?:<li>.*</li>\n?)+`)

	paragraphBreak = regexp.MustCompile(`\n{2,}`)

	blockElement = regexp.MustCompile(`(<h[1-3]>.*?</h[1-3]>|<ul>.*?</ul>|<pre>.*?</pre>|<img [^>]*>)`)
	leadingBreaks  = regexp.MustCompile(`<p>(?:<br>)+`)
	trailingBreaks = regexp.MustCompile(`(?:<br>)+</p>`)
	emptyParagraph = regexp.MustCompile(`<p>\s*</p>`)
)

var policy = newPolicy()

func newPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("p", "br", "h1", "h2", "h3", "strong", "em", "ul", "li", "pre", "code")
	p.AllowAttrs("href").OnElements("a")
	p.AllowAttrs("target").Matching(regexp.MustCompile(`^_blank$`)).OnElements("a")
	p.AllowAttrs("rel").Matching(regexp.MustCompile(`^[a-z ]+$`)).OnElements("a")
	p.RequireParseableURLs(true)
	p.AllowRelativeURLs(true)
	p.AllowURLSchemes("http", "https", "mailto")
	p.AllowImages()
	p.AllowDataURIImages()
	return p
}

// ToHTML converts text to sanitized HTML.
func ToHTML(text string) string {
	s := strings.ReplaceAll(text, "\r\n", "\n")
	s = strings.ReplaceAll(s, `\n`, "\n")
	s = html.EscapeString(s)

	s = mdImage.ReplaceAllString(s, `<img src="${2}" alt="${1}">`)
	s = bareImage.ReplaceAllString(s, `${1}<img src="${2}" alt="embedded image">`)

	s = h3.ReplaceAllString(s, "<h3>${1}</h3>")
	s = h2.ReplaceAllString(s, "<h2>${1}</h2>")
	s = h1.ReplaceAllString(s, "<h1>${1}</h1>")

	s = bold.ReplaceAllString(s, "<strong>${1}</strong>")
	s = italic.ReplaceAllString(s, "<em>${1}</em>")

	s = link.ReplaceAllStringFunc(s, renderLink)

	s = fenced.ReplaceAllStringFunc(s, func(m string) string {
		body := fenced.FindStringSubmatch(m)[1]
		body = strings.TrimSuffix(body, "\n")
		return "<pre><code>" + strings.ReplaceAll(body, "\n", codeNewline) + "</code></pre>"
	})
	s = inlineCode.ReplaceAllString(s, "<code>${1}</code>")

	s = bullet.ReplaceAllString(s, "<li>${1}</li>")
	s = listItems.ReplaceAllStringFunc(s, func(m string) string {
		items := strings.TrimRight(m, "\n")
		out := "<ul>" + strings.ReplaceAll(items, "\n", "") + "</ul>"
		if len(items) < len(m) {
			out += "\n"
		}
		return out
	})

	s = paragraphBreak.ReplaceAllString(s, "</p><p>")
	s = strings.ReplaceAll(s, "\n", "<br>")

	s = "<p>" + s + "</p>"
	s = blockElement.ReplaceAllString(s, "</p>${1}<p>")
	s = leadingBreaks.ReplaceAllString(s, "<p>")
	s = trailingBreaks.ReplaceAllString(s, "</p>")
	s = emptyParagraph.ReplaceAllString(s, "")

	s = strings.ReplaceAll(s, codeNewline, "\n")
	return policy.Sanitize(s)
}

// HTML is ToHTML typed for html/template.
func HTML(text string) template.HTML {
	return template.HTML(ToHTML(text))
}

// renderLink turns a [text](url) match into an anchor opening in a new tab.
// URLs with a scheme other than http, https or mailto render as plain text.
func renderLink(m string) string {
	sm := link.FindStringSubmatch(m)
	text, href := sm[1], sm[2]
	if !safeURL(html.UnescapeString(href)) {
		return text
	}
	return `<a href="` + href + `" target="_blank" rel="noopener noreferrer">` + text + `</a>`
}

func safeURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "", "http", "https", "mailto":
		return true
	default:
		return false
	}
}
