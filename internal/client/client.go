// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package client is a typed Go client for the admin API: posts, categories
// and the credential probe. The credential is held by the Client value and
// sent with each request; nothing is stored globally.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"inkpress/internal/blog"
)

// ErrUnauthorized is returned when the server rejects the token.
var ErrUnauthorized = errors.New("admin token rejected")

// APIError is a non-2xx response other than 401.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("admin API error (status %d): %s", e.Status, e.Message)
}

// Client calls the admin API with one token.
type Client struct {
	baseURL string
	token   string
	http    *http.Client

	mu       sync.Mutex
	verified bool
}

// New creates a client for the API rooted at baseURL, for example
// "https://blog.example.com".
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

// Verify checks the token against the admin health probe. Success is
// remembered, so later calls return immediately; a failure is never
// cached and a later 401 on any call clears the verified state.
func (c *Client) Verify(ctx context.Context) error {
	if c.Verified() {
		return nil
	}
	if c.token == "" {
		return ErrUnauthorized
	}
	var health struct {
		Status string `json:"status"`
		Admin  bool   `json:"admin"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/admin/health", nil, &health); err != nil {
		return err
	}
	if !health.Admin {
		return fmt.Errorf("verify: unexpected health response %q", health.Status)
	}

	c.mu.Lock()
	c.verified = true
	c.mu.Unlock()
	return nil
}

// Verified reports whether a previous Verify succeeded and no request has
// since been rejected.
func (c *Client) Verified() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.verified
}

// PostFields is the writable part of a post. Nil fields are omitted, which
// on update leaves the stored value unchanged.
type PostFields struct {
	Title           *string         `json:"title,omitempty"`
	ContentDelta    json.RawMessage `json:"content_delta,omitempty"`
	ContentHTML     *string         `json:"content_html,omitempty"`
	ContentMarkdown *string         `json:"content_markdown,omitempty"`
	Excerpt         *string         `json:"excerpt,omitempty"`
	Category        *string         `json:"category,omitempty"`
	Status          *string         `json:"status,omitempty"`
}

type postEnvelope struct {
	Post *blog.Post `json:"post"`
}

type listEnvelope struct {
	Posts []blog.PostSummary `json:"posts"`
	Count int                `json:"count"`
}

// ListPosts lists posts of any status. Empty status and zero limit use the
// server defaults.
func (c *Client) ListPosts(ctx context.Context, status string, limit int) ([]blog.PostSummary, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/admin/blogs"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out listEnvelope
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Posts, nil
}

// GetPost fetches a post by id, drafts included.
func (c *Client) GetPost(ctx context.Context, id string) (*blog.Post, error) {
	var out postEnvelope
	if err := c.do(ctx, http.MethodGet, "/api/admin/blogs/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return out.Post, nil
}

// CreatePost creates a post.
func (c *Client) CreatePost(ctx context.Context, fields PostFields) (*blog.Post, error) {
	var out postEnvelope
	if err := c.do(ctx, http.MethodPost, "/api/admin/blogs", fields, &out); err != nil {
		return nil, err
	}
	return out.Post, nil
}

// UpdatePost applies the non-nil fields to a post.
func (c *Client) UpdatePost(ctx context.Context, id string, fields PostFields) (*blog.Post, error) {
	var out postEnvelope
	if err := c.do(ctx, http.MethodPut, "/api/admin/blogs/"+url.PathEscape(id), fields, &out); err != nil {
		return nil, err
	}
	return out.Post, nil
}

// DeletePost deletes a post.
func (c *Client) DeletePost(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/admin/blogs/"+url.PathEscape(id), nil, nil)
}

type categoryEnvelope struct {
	Category *blog.Category `json:"category"`
}

type categoryListEnvelope struct {
	Categories []blog.Category `json:"categories"`
}

// ListCategories lists every category with its published post count.
func (c *Client) ListCategories(ctx context.Context) ([]blog.Category, error) {
	var out categoryListEnvelope
	if err := c.do(ctx, http.MethodGet, "/api/admin/categories", nil, &out); err != nil {
		return nil, err
	}
	return out.Categories, nil
}

// UpsertCategory creates the named category or updates its description.
// created reports which of the two happened.
func (c *Client) UpsertCategory(ctx context.Context, name string, description *string) (cat *blog.Category, created bool, err error) {
	in := struct {
		Name        string  `json:"name"`
		Description *string `json:"description,omitempty"`
	}{name, description}

	var out categoryEnvelope
	status, err := c.send(ctx, http.MethodPost, "/api/admin/categories", in, &out)
	if err != nil {
		return nil, false, err
	}
	return out.Category, status == http.StatusCreated, nil
}

// DeleteCategory deletes a category. Posts keep their category name.
func (c *Client) DeleteCategory(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, "/api/admin/categories/"+url.PathEscape(name), nil, nil)
}

// CleanupCategories removes category records with blank names and returns
// their keys.
func (c *Client) CleanupCategories(ctx context.Context) ([]string, error) {
	var out struct {
		DeletedKeys []string `json:"deleted_keys"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/admin/categories/cleanup", nil, &out); err != nil {
		return nil, err
	}
	return out.DeletedKeys, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	_, err := c.send(ctx, method, path, in, out)
	return err
}

// send issues one authenticated request, decodes a 2xx JSON body into out
// and returns the status code.
func (c *Client) send(ctx context.Context, method, path string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.mu.Lock()
		c.verified = false
		c.mu.Unlock()
		return resp.StatusCode, ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(respBody, &e) != nil || e.Message == "" {
			e.Message = http.StatusText(resp.StatusCode)
		}
		return resp.StatusCode, &APIError{Status: resp.StatusCode, Message: e.Message}
	}

	if out == nil {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return resp.StatusCode, fmt.Errorf("unmarshal response: %w", err)
	}
	return resp.StatusCode, nil
}
