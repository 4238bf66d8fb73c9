// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"inkpress/internal/blog"
)

// Admin serves the authenticated API. The router mounts it behind the
// admin token middleware; handlers assume the caller is authorised.
type Admin struct {
	content Content
	media   MediaSaver
}

// NewAdmin creates the admin handler group. media may be nil when object
// storage is not configured.
func NewAdmin(content Content, media MediaSaver) *Admin {
	return &Admin{content: content, media: media}
}

// Health handles GET /health. Reaching it at all proves the token is
// valid, which is what the editor uses it for.
func (h *Admin) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{"status": "healthy", "admin": true})
}

// ListPosts handles GET /blogs?status&limit, drafts included.
func (h *Admin) ListPosts(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	posts, err := h.content.ListPosts(r.Context(), blog.ListFilter{
		Status:     q.Get("status"),
		Category:   q.Get("category"),
		Limit:      limit,
		Visibility: blog.Admin,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, listResponse(posts))
}

// GetPost handles GET /blogs/{id}.
func (h *Admin) GetPost(w http.ResponseWriter, r *http.Request) {
	post, err := h.content.GetPost(r.Context(), chi.URLParam(r, "id"), blog.Admin)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, postResponse{Post: post})
}

// CreatePost handles POST /blogs.
func (h *Admin) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req createPostRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := checkDelta(req.ContentDelta); err != nil {
		writeError(w, r, err)
		return
	}

	post, err := h.content.CreatePost(r.Context(), req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("post created", "id", post.ID, "slug", post.Slug, "status", post.Status)
	writeJSON(w, r, http.StatusCreated, postResponse{Message: "Blog post created successfully", Post: post})
}

// UpdatePost handles PUT /blogs/{id}.
func (h *Admin) UpdatePost(w http.ResponseWriter, r *http.Request) {
	var req updatePostRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.empty() {
		badRequest(w, r, "Request body has no fields to update")
		return
	}
	if err := checkDelta(req.ContentDelta); err != nil {
		writeError(w, r, err)
		return
	}

	id := chi.URLParam(r, "id")
	post, err := h.content.UpdatePost(r.Context(), id, req.patch())
	if err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("post updated", "id", post.ID, "status", post.Status)
	writeJSON(w, r, http.StatusOK, postResponse{Message: "Blog post updated successfully", Post: post})
}

// DeletePost handles DELETE /blogs/{id}.
func (h *Admin) DeletePost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.content.DeletePost(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("post deleted", "id", id)
	writeJSON(w, r, http.StatusOK, messageResponse{Message: "Blog post deleted successfully"})
}

// Categories handles GET /categories, blank-named records included so they
// can be cleaned up.
func (h *Admin) Categories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.content.ListCategories(r.Context(), blog.Admin)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, categoryListResponse{Categories: cats, Count: len(cats)})
}

// UpsertCategory handles POST /categories. An existing name is updated
// rather than rejected.
func (h *Admin) UpsertCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	cat, created, err := h.content.UpsertCategory(r.Context(), req.Name, req.Description)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if created {
		writeJSON(w, r, http.StatusCreated, categoryResponse{Message: "Category created successfully", Category: cat})
		return
	}
	writeJSON(w, r, http.StatusOK, categoryResponse{Message: "Category updated successfully", Category: cat})
}

// DeleteCategory handles DELETE /categories/{name}.
func (h *Admin) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	name, err := pathParam(r, "name")
	if err != nil {
		badRequest(w, r, "Invalid category name")
		return
	}
	if err := h.content.DeleteCategory(r.Context(), name); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, messageResponse{Message: "Category deleted successfully"})
}

// pathParam returns the decoded URL parameter key. chi matches against
// r.URL.RawPath when it is set, so only then is the parameter still escaped.
func pathParam(r *http.Request, key string) (string, error) {
	v := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return v, nil
	}
	return url.PathUnescape(v)
}

// CleanupCategories handles POST /categories/cleanup.
func (h *Admin) CleanupCategories(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.content.CleanupCategories(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"message":      fmt.Sprintf("Cleaned up %d invalid categories", len(deleted)),
		"deleted_keys": deleted,
	})
}
