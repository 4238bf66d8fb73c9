// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"inkpress/internal/blog"
)

// Public serves the read-only API. Every lookup runs with public
// visibility, so drafts are indistinguishable from missing posts.
type Public struct {
	content Content
}

// NewPublic creates the public handler group.
func NewPublic(content Content) *Public {
	return &Public{content: content}
}

// Health reports liveness.
func (h *Public) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "healthy"})
}

// ListPosts handles GET /blogs?limit&category.
func (h *Public) ListPosts(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	posts, err := h.content.ListPosts(r.Context(), blog.ListFilter{
		Category:   r.URL.Query().Get("category"),
		Limit:      limit,
		Visibility: blog.Public,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, listResponse(posts))
}

// Latest handles GET /blogs/latest.
func (h *Public) Latest(w http.ResponseWriter, r *http.Request) {
	post, err := h.content.LatestPublished(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, postResponse{Post: post})
}

// PostBySlug handles GET /blogs/slug/{slug}.
func (h *Public) PostBySlug(w http.ResponseWriter, r *http.Request) {
	post, err := h.content.GetPostBySlug(r.Context(), chi.URLParam(r, "slug"), blog.Public)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, postResponse{Post: post})
}

// PostByID handles GET /blogs/{id}.
func (h *Public) PostByID(w http.ResponseWriter, r *http.Request) {
	post, err := h.content.GetPost(r.Context(), chi.URLParam(r, "id"), blog.Public)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, postResponse{Post: post})
}

// Categories handles GET /categories.
func (h *Public) Categories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.content.ListCategories(r.Context(), blog.Public)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, categoryListResponse{Categories: cats, Count: len(cats)})
}
