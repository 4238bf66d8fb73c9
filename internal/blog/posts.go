// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package blog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"inkpress/internal/slug"
	"inkpress/internal/table"
)

// maxSlugProbe bounds the suffix search for a free slug.
const maxSlugProbe = 1000

const fallbackSlug = "post"

// CreatePost validates in, reserves a unique slug and stores the post.
// published_at is set only when the post is created as PUBLISHED.
func (r *Repository) CreatePost(ctx context.Context, in PostInput) (*Post, error) {
	title, err := normalizeTitle(in.Title)
	if err != nil {
		return nil, err
	}
	status := StatusDraft
	if in.Status != "" {
		if status, err = ParseStatus(in.Status); err != nil {
			return nil, err
		}
	}
	category, err := normalizeCategory(in.Category)
	if err != nil {
		return nil, err
	}
	body, err := renderHTML(in.ContentHTML, in.ContentMarkdown)
	if err != nil {
		return nil, err
	}

	id, err := r.newID()
	if err != nil {
		return nil, fmt.Errorf("generate post id: %w", err)
	}
	now := r.now()
	p := &Post{
		ID:           id,
		Title:        title,
		Excerpt:      excerptFor(in.Excerpt, body),
		Status:       status,
		Category:     category,
		CreatedAt:    now,
		UpdatedAt:    now,
		ContentDelta: in.ContentDelta,
		ContentHTML:  body,
		Version:      1,
	}
	if status == StatusPublished {
		p.PublishedAt = &now
	}

	if p.Slug, err = r.reserveSlug(ctx, title, id); err != nil {
		return nil, err
	}

	it, err := postItem(p)
	if err != nil {
		r.releaseSlug(ctx, p.Slug, id)
		return nil, err
	}
	if err := r.tbl.Put(ctx, it, table.IfAbsent); err != nil {
		r.releaseSlug(ctx, p.Slug, id)
		return nil, fmt.Errorf("create post: %w", err)
	}

	r.ensureCategory(ctx, p.Category)
	return p, nil
}

// reserveSlug claims the first free candidate derived from title. A lost
// race re-probes; after maxAttempts it gives up with a ConflictError.
func (r *Repository) reserveSlug(ctx context.Context, title, postID string) (string, error) {
	base := slug.Generate(title)
	if base == "" {
		base = fallbackSlug
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		candidate, err := r.freeSlug(ctx, base)
		if err != nil {
			return "", err
		}
		it, err := slugItem(candidate, postID)
		if err != nil {
			return "", err
		}
		err = r.tbl.Put(ctx, it, table.IfAbsent)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, table.ErrConditionFailed) {
			return "", fmt.Errorf("reserve slug %q: %w", candidate, err)
		}
		slog.Debug("slug taken concurrently, retrying", "slug", candidate, "attempt", attempt+1)
	}
	return "", &ConflictError{Message: fmt.Sprintf("could not reserve a unique slug for %q", base)}
}

// freeSlug probes base, base-2, base-3, ... and returns the first candidate
// with no reservation.
func (r *Repository) freeSlug(ctx context.Context, base string) (string, error) {
	for n := 1; n <= maxSlugProbe; n++ {
		candidate := slug.WithSuffix(base, n)
		_, err := r.tbl.Get(ctx, slugKey(candidate), slugSK)
		if errors.Is(err, table.ErrNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("probe slug %q: %w", candidate, err)
		}
	}
	return "", &ConflictError{Message: fmt.Sprintf("too many posts share the slug %q", base)}
}

// releaseSlug drops a reservation if it still belongs to postID. Failures
// leave an orphaned reservation behind, which only costs a suffix later.
func (r *Repository) releaseSlug(ctx context.Context, s, postID string) {
	it, err := r.tbl.Get(ctx, slugKey(s), slugSK)
	if err != nil {
		if !errors.Is(err, table.ErrNotFound) {
			slog.Warn("slug release lookup failed", "slug", s, "error", err)
		}
		return
	}
	var rec slugRecord
	if err := json.Unmarshal(it.Data, &rec); err != nil || rec.PostID != postID {
		return
	}
	if err := r.tbl.Delete(ctx, it.PK, it.SK, table.IfVersion(it.Version)); err != nil {
		slog.Warn("slug release failed", "slug", s, "error", err)
	}
}

// UpdatePost merges patch into the stored post. The slug never changes.
// published_at is set on the first transition to PUBLISHED and is kept on
// later unpublish and republish cycles. Concurrent writers are detected
// through the item version and retried.
func (r *Repository) UpdatePost(ctx context.Context, id string, patch PostPatch) (*Post, error) {
	prepared, err := prepare(patch)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		current, err := r.loadPost(ctx, id)
		if err != nil {
			return nil, err
		}
		expected := current.Version

		p := prepared.applyTo(current, r.now())
		p.Version = expected + 1

		it, err := postItem(p)
		if err != nil {
			return nil, err
		}
		err = r.tbl.Put(ctx, it, table.IfVersion(expected))
		if err == nil {
			r.ensureCategory(ctx, p.Category)
			return p, nil
		}
		if !errors.Is(err, table.ErrConditionFailed) {
			return nil, fmt.Errorf("update post %s: %w", id, err)
		}
		slog.Debug("post changed concurrently, retrying", "id", id, "attempt", attempt+1)
	}
	return nil, &ConflictError{Message: "blog post was modified concurrently, try again"}
}

// preparedPatch is a PostPatch after validation and content rendering.
type preparedPatch struct {
	title       *string
	delta       json.RawMessage
	html        *string
	excerpt     *string
	category    *string
	setCategory bool
	status      *Status
}

func prepare(patch PostPatch) (*preparedPatch, error) {
	var pp preparedPatch
	if patch.Title != nil {
		title, err := normalizeTitle(*patch.Title)
		if err != nil {
			return nil, err
		}
		pp.title = &title
	}
	if patch.ContentHTML != nil || patch.ContentMarkdown != nil {
		var htmlBody, md string
		if patch.ContentHTML != nil {
			htmlBody = *patch.ContentHTML
		}
		if patch.ContentMarkdown != nil {
			md = *patch.ContentMarkdown
		}
		body, err := renderHTML(htmlBody, md)
		if err != nil {
			return nil, err
		}
		pp.html = &body
	}
	pp.delta = patch.ContentDelta
	pp.excerpt = patch.Excerpt
	if patch.Category != nil {
		category, err := normalizeCategory(*patch.Category)
		if err != nil {
			return nil, err
		}
		pp.category = category
		pp.setCategory = true
	}
	if patch.Status != nil {
		status, err := ParseStatus(*patch.Status)
		if err != nil {
			return nil, err
		}
		pp.status = &status
	}
	return &pp, nil
}

func (pp *preparedPatch) applyTo(p *Post, now time.Time) *Post {
	if pp.title != nil {
		p.Title = *pp.title
	}
	if pp.html != nil {
		p.ContentHTML = *pp.html
		if pp.excerpt == nil {
			p.Excerpt = excerptFor("", p.ContentHTML)
		}
	}
	if pp.delta != nil {
		p.ContentDelta = pp.delta
	}
	if pp.excerpt != nil {
		p.Excerpt = excerptFor(*pp.excerpt, p.ContentHTML)
	}
	if pp.setCategory {
		p.Category = pp.category
	}
	if pp.status != nil {
		p.Status = *pp.status
		if p.Status == StatusPublished && p.PublishedAt == nil {
			published := now
			p.PublishedAt = &published
		}
	}
	p.UpdatedAt = now
	return p
}

// DeletePost removes the post permanently and frees its slug. Deleting an
// unknown or already deleted id is a NotFoundError.
func (r *Repository) DeletePost(ctx context.Context, id string) error {
	p, err := r.loadPost(ctx, id)
	if err != nil {
		return err
	}
	err = r.tbl.Delete(ctx, postKey(id), metadataSK, table.IfExists)
	if errors.Is(err, table.ErrConditionFailed) {
		return &NotFoundError{Resource: "blog post"}
	}
	if err != nil {
		return fmt.Errorf("delete post %s: %w", id, err)
	}
	r.releaseSlug(ctx, p.Slug, id)
	return nil
}

// GetPost returns the post with the given id. Public callers get a
// NotFoundError for drafts.
func (r *Repository) GetPost(ctx context.Context, id string, vis Visibility) (*Post, error) {
	p, err := r.loadPost(ctx, id)
	if err != nil {
		return nil, err
	}
	if vis == Public && !p.IsPublished() {
		return nil, &NotFoundError{Resource: "blog post"}
	}
	return p, nil
}

// GetPostBySlug resolves the slug reservation and returns its post under
// the same visibility rules as GetPost.
func (r *Repository) GetPostBySlug(ctx context.Context, s string, vis Visibility) (*Post, error) {
	it, err := r.tbl.Get(ctx, slugKey(s), slugSK)
	if errors.Is(err, table.ErrNotFound) {
		return nil, &NotFoundError{Resource: "blog post"}
	}
	if err != nil {
		return nil, fmt.Errorf("get slug %q: %w", s, err)
	}
	var rec slugRecord
	if err := json.Unmarshal(it.Data, &rec); err != nil {
		return nil, fmt.Errorf("decode slug %q: %w", s, err)
	}
	return r.GetPost(ctx, rec.PostID, vis)
}

func (r *Repository) loadPost(ctx context.Context, id string) (*Post, error) {
	if id == "" {
		return nil, &NotFoundError{Resource: "blog post"}
	}
	it, err := r.tbl.Get(ctx, postKey(id), metadataSK)
	if errors.Is(err, table.ErrNotFound) {
		return nil, &NotFoundError{Resource: "blog post"}
	}
	if err != nil {
		return nil, fmt.Errorf("get post %s: %w", id, err)
	}
	return decodePost(it)
}

// ListPosts returns posts newest first. Public listings only ever contain
// PUBLISHED posts. Without a category or status an admin listing merges
// both status partitions.
func (r *Repository) ListPosts(ctx context.Context, f ListFilter) ([]Post, error) {
	limit := f.EffectiveLimit()

	var status Status
	if f.Visibility == Public {
		status = StatusPublished
	} else if f.Status != "" {
		var err error
		if status, err = ParseStatus(f.Status); err != nil {
			return nil, err
		}
	}

	var queries []table.Query
	switch {
	case f.Category != "":
		queries = []table.Query{{Index: table.IndexCategory, Key: f.Category, Status: string(status), Limit: limit}}
	case status != "":
		queries = []table.Query{{Index: table.IndexStatus, Key: string(status), Limit: limit}}
	default:
		queries = []table.Query{
			{Index: table.IndexStatus, Key: string(StatusPublished), Limit: limit},
			{Index: table.IndexStatus, Key: string(StatusDraft), Limit: limit},
		}
	}

	var items []table.Item
	for _, q := range queries {
		got, err := r.tbl.Query(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("list posts: %w", err)
		}
		items = append(items, got...)
	}
	if len(queries) > 1 {
		order := queries[0]
		sort.SliceStable(items, func(i, j int) bool { return order.Less(items[i], items[j]) })
		if len(items) > limit {
			items = items[:limit]
		}
	}
	return decodePosts(items)
}

// LatestPublished returns the most recently published post.
func (r *Repository) LatestPublished(ctx context.Context) (*Post, error) {
	posts, err := r.ListPosts(ctx, ListFilter{Visibility: Public, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, &NotFoundError{Resource: "published blog post"}
	}
	return &posts[0], nil
}
