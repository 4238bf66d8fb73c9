package blog

import (
	"strings"
	"unicode/utf8"

	"inkpress/internal/markdown"
	"inkpress/internal/sanitize"
)

// Field limits in runes.
const (
	MaxTitleLen    = 300
	MaxCategoryLen = 100
)

func normalizeTitle(s string) (string, error) {
	title := strings.TrimSpace(s)
	if title == "" {
		return "", &ValidationError{Field: "title", Message: "title is required"}
	}
	if utf8.RuneCountInString(title) > MaxTitleLen {
		return "", &ValidationError{Field: "title", Message: "title is too long"}
	}
	return title, nil
}

// normalizeCategory trims the name; an empty result means no category.
func normalizeCategory(s string) (*string, error) {
	name := strings.TrimSpace(s)
	if name == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(name) > MaxCategoryLen {
		return nil, &ValidationError{Field: "category", Message: "category is too long"}
	}
	return &name, nil
}

// renderHTML returns the sanitized body. Markdown is rendered only when no
// HTML was supplied.
func renderHTML(htmlBody, md string) (string, error) {
	if htmlBody == "" && md != "" {
		out, err := markdown.ToHTML(md)
		if err != nil {
			return "", &ValidationError{Field: "content_markdown", Message: "content_markdown could not be rendered"}
		}
		htmlBody = out
	}
	return sanitize.HTML(htmlBody), nil
}

// excerptFor prefers an explicit excerpt, which is still stripped of markup
// and capped, and otherwise derives one from the sanitized body.
func excerptFor(explicit, htmlBody string) string {
	if strings.TrimSpace(explicit) != "" {
		return sanitize.Excerpt(explicit, sanitize.ExcerptMaxLen)
	}
	return sanitize.Excerpt(htmlBody, sanitize.ExcerptMaxLen)
}
