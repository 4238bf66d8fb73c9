// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package handlers contains the JSON HTTP handlers of the blog API. The
// public group serves published content only; the admin group exposes full
// CRUD behind the admin token middleware. Both receive their dependencies
// through the handler struct.
package handlers

import (
	"context"

	"inkpress/internal/blog"
)

// Content is the repository surface the handlers depend on.
// *blog.Repository implements it.
type Content interface {
	CreatePost(ctx context.Context, in blog.PostInput) (*blog.Post, error)
	UpdatePost(ctx context.Context, id string, patch blog.PostPatch) (*blog.Post, error)
	DeletePost(ctx context.Context, id string) error
	GetPost(ctx context.Context, id string, vis blog.Visibility) (*blog.Post, error)
	GetPostBySlug(ctx context.Context, slug string, vis blog.Visibility) (*blog.Post, error)
	ListPosts(ctx context.Context, f blog.ListFilter) ([]blog.Post, error)
	LatestPublished(ctx context.Context) (*blog.Post, error)
	ListCategories(ctx context.Context, vis blog.Visibility) ([]blog.Category, error)
	UpsertCategory(ctx context.Context, name string, description *string) (*blog.Category, bool, error)
	DeleteCategory(ctx context.Context, name string) error
	CleanupCategories(ctx context.Context) ([]string, error)
}

var _ Content = (*blog.Repository)(nil)

type postResponse struct {
	Message string     `json:"message,omitempty"`
	Post    *blog.Post `json:"post"`
}

type postListResponse struct {
	Posts []blog.PostSummary `json:"posts"`
	Count int                `json:"count"`
}

type categoryResponse struct {
	Message  string         `json:"message"`
	Category *blog.Category `json:"category"`
}

type categoryListResponse struct {
	Categories []blog.Category `json:"categories"`
	Count      int             `json:"count"`
}

func listResponse(posts []blog.Post) postListResponse {
	return postListResponse{Posts: blog.Summaries(posts), Count: len(posts)}
}
