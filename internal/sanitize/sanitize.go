// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package sanitize cleans editor HTML before storage and derives plain-text
// excerpts from it.
package sanitize

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// ExcerptMaxLen is the maximum excerpt length in runes, ellipsis included.
const ExcerptMaxLen = 200

const ellipsis = "..."

// policy allows the markup the rich-text editor produces and nothing else.
var policy = newPolicy()

func newPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(
		"p", "br", "strong", "em", "u", "s", "sub", "sup",
		"h1", "h2", "h3", "h4", "h5", "h6",
		"ul", "ol", "li",
		"blockquote", "pre", "code",
		"span", "div",
		"table", "thead", "tbody", "tr", "th", "td",
	)
	p.AllowAttrs("class").Globally()
	p.AllowStyles(
		"color", "background-color", "font-size", "font-weight",
		"font-style", "text-decoration", "text-align",
	).Globally()

	p.AllowStandardURLs()
	p.AllowAttrs("href", "title", "target", "rel").OnElements("a")
	p.AllowAttrs("src", "alt", "title", "width", "height").OnElements("img")
	p.AllowDataURIImages()
	return p
}

// HTML strips every element, attribute and URL scheme the editor does not
// produce, removing script injection vectors. Bare URLs in the remaining
// text become nofollow links.
func HTML(s string) string {
	if s == "" {
		return ""
	}
	return Linkify(policy.Sanitize(s))
}

// bareURL matches web addresses written as plain text.
var bareURL = regexp.MustCompile(`(?i)\b(?:https?://|www\.)[^\s<>"'\x60]+`)

// noLinkElements keep their text verbatim: existing links and code.
var noLinkElements = map[string]bool{"a": true, "pre": true, "code": true}

// Linkify wraps bare URLs in anchors, leaving text inside a, pre and code
// untouched. The input must already be sanitized markup.
func Linkify(s string) string {
	var sb strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	depth := 0

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return sb.String()
		}
		raw := string(z.Raw())

		switch tt {
		case html.StartTagToken, html.EndTagToken:
			name, _ := z.TagName()
			if noLinkElements[string(name)] {
				if tt == html.StartTagToken {
					depth++
				} else if depth > 0 {
					depth--
				}
			}
			sb.WriteString(raw)
		case html.TextToken:
			if depth > 0 {
				sb.WriteString(raw)
				continue
			}
			linkifyText(&sb, raw)
		default:
			sb.WriteString(raw)
		}
	}
}

// linkifyText writes escaped text with every URL match wrapped in an anchor.
// Trailing punctuation stays outside the link.
func linkifyText(sb *strings.Builder, text string) {
	last := 0
	for _, loc := range bareURL.FindAllStringIndex(text, -1) {
		start, end := loc[0], loc[1]
		end = start + len(trimURL(text[start:end]))
		if end == start {
			continue
		}
		u := text[start:end]
		href := u
		if strings.HasPrefix(strings.ToLower(u), "www.") {
			href = "http://" + u
		}
		sb.WriteString(text[last:start])
		sb.WriteString(`<a href="` + href + `" rel="nofollow">` + u + `</a>`)
		last = end
	}
	sb.WriteString(text[last:])
}

func trimURL(u string) string {
	for u != "" {
		switch c := u[len(u)-1]; {
		case strings.IndexByte(".,;:!?", c) >= 0:
			u = u[:len(u)-1]
		case c == ')' && strings.Count(u, ")") > strings.Count(u, "("):
			u = u[:len(u)-1]
		default:
			return u
		}
	}
	return u
}

// blockElements end a run of text; a space is emitted at their boundary so
// adjacent paragraphs don't fuse into one word.
var blockElements = map[string]bool{
	"p": true, "br": true, "div": true, "li": true, "blockquote": true, "pre": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"tr": true, "td": true, "th": true, "img": true,
}

// skipElements carry no readable text.
var skipElements = map[string]bool{"script": true, "style": true}

// Text returns the readable text of an HTML fragment with whitespace
// collapsed. Entities are decoded; angle brackets never survive.
func Text(s string) string {
	var sb strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	skip := 0

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			// io.EOF or malformed input; either way keep what was collected.
			return collapse(sb.String())
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if skipElements[tag] && tt == html.StartTagToken {
				skip++
			}
			if blockElements[tag] {
				sb.WriteByte(' ')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if skipElements[tag] && skip > 0 {
				skip--
			}
			if blockElements[tag] {
				sb.WriteByte(' ')
			}
		case html.TextToken:
			if skip == 0 {
				sb.Write(z.Text())
			}
		}
	}
}

func collapse(s string) string {
	s = strings.Map(func(r rune) rune {
		if r == '<' || r == '>' {
			return -1
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// Excerpt derives a plain-text summary of at most maxLen runes from an HTML
// fragment. Long text is cut at a word boundary and marked with "...".
func Excerpt(htmlContent string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = ExcerptMaxLen
	}
	text := Text(htmlContent)
	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}
	if maxLen <= len(ellipsis) {
		return string([]rune(text)[:maxLen])
	}

	cut := string([]rune(text)[:maxLen-len(ellipsis)])
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " .,;:") + ellipsis
}
