// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package blog

import (
	"encoding/json"
	"strings"
	"time"
)

// Status is the publication state of a post.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusPublished Status = "PUBLISHED"
)

// ParseStatus accepts a status in any letter case. Empty input is rejected;
// callers decide their own default.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToUpper(strings.TrimSpace(s))) {
	case StatusDraft:
		return StatusDraft, nil
	case StatusPublished:
		return StatusPublished, nil
	}
	return "", &ValidationError{Field: "status", Message: "status must be DRAFT or PUBLISHED"}
}

// Visibility gates what a caller may read. Public callers only ever see
// published posts.
type Visibility int

const (
	Public Visibility = iota
	Admin
)

// Post is a blog post as stored and returned by the admin and public APIs.
type Post struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	Slug         string          `json:"slug"`
	Excerpt      string          `json:"excerpt"`
	Status       Status          `json:"status"`
	Category     *string         `json:"category"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	PublishedAt  *time.Time      `json:"published_at"`
	ContentDelta json.RawMessage `json:"content_delta"`
	ContentHTML  string          `json:"content_html"`

	// Version is the optimistic concurrency counter of the stored item.
	Version int64 `json:"-"`
}

// IsPublished reports whether the post is currently visible to the public.
func (p *Post) IsPublished() bool {
	return p.Status == StatusPublished
}

// PostSummary is the listing view of a post, without its content.
type PostSummary struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Slug        string     `json:"slug"`
	Excerpt     string     `json:"excerpt"`
	Status      Status     `json:"status"`
	Category    *string    `json:"category"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	PublishedAt *time.Time `json:"published_at"`
}

// Summary returns the listing view of p.
func (p *Post) Summary() PostSummary {
	return PostSummary{
		ID:          p.ID,
		Title:       p.Title,
		Slug:        p.Slug,
		Excerpt:     p.Excerpt,
		Status:      p.Status,
		Category:    p.Category,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
		PublishedAt: p.PublishedAt,
	}
}

// Summaries maps posts to their listing view.
func Summaries(posts []Post) []PostSummary {
	out := make([]PostSummary, len(posts))
	for i := range posts {
		out[i] = posts[i].Summary()
	}
	return out
}

// Category groups posts by a free-text name. PostCount is derived at read
// time and never stored.
type Category struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	PostCount   int     `json:"post_count"`
}

// PostInput carries the fields of a new post. Status defaults to DRAFT.
// ContentMarkdown is rendered when ContentHTML is empty.
type PostInput struct {
	Title           string
	ContentDelta    json.RawMessage
	ContentHTML     string
	ContentMarkdown string
	Excerpt         string
	Category        string
	Status          string
}

// PostPatch carries a partial update. Nil fields are left untouched. An
// empty Category clears the post's category.
type PostPatch struct {
	Title           *string
	ContentDelta    json.RawMessage
	ContentHTML     *string
	ContentMarkdown *string
	Excerpt         *string
	Category        *string
	Status          *string
}

// ListFilter selects posts for a listing. Public listings always filter on
// PUBLISHED regardless of Status.
type ListFilter struct {
	Status     string
	Category   string
	Limit      int
	Visibility Visibility
}

// Listing limits per visibility.
const (
	PublicDefaultLimit = 10
	PublicMaxLimit     = 50
	AdminDefaultLimit  = 20
	AdminMaxLimit      = 100
)

// EffectiveLimit clamps the requested limit to the visibility's bounds.
// Zero or negative selects the default.
func (f ListFilter) EffectiveLimit() int {
	def, ceiling := PublicDefaultLimit, PublicMaxLimit
	if f.Visibility == Admin {
		def, ceiling = AdminDefaultLimit, AdminMaxLimit
	}
	switch {
	case f.Limit <= 0:
		return def
	case f.Limit > ceiling:
		return ceiling
	}
	return f.Limit
}
