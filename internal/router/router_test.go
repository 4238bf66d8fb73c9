// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package router tests verify the HTTP routing configuration, middleware
// chains, and the end-to-end behaviour of both API groups.
package router

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkpress/internal/blog"
	"inkpress/internal/cache"
	"inkpress/internal/handlers"
	"inkpress/internal/middleware"
	"inkpress/internal/table/memory"
)

const testToken = "test-admin-token"

type testEnv struct {
	router chi.Router
	cache  *cache.Memory
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo := blog.NewRepository(memory.New())
	v, err := middleware.NewTokenVerifier(testToken, "")
	require.NoError(t, err)

	store := cache.NewMemory(time.Minute)
	r := New(handlers.NewPublic(repo), handlers.NewAdmin(repo, nil), Options{
		Verifier: v,
		Cache:    store,
		CacheTTL: 30 * time.Second,
	})
	return &testEnv{router: r, cache: store}
}

func (e *testEnv) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &m), "body: %s", rr.Body.String())
	return m
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/health", "/api/public/health"} {
		rr := env.do(t, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusOK, rr.Code, path)
		assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
		assert.Equal(t, "healthy", decode(t, rr)["status"])
	}
}

func TestAdminRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)

	// Create a real post so known and unknown ids can be compared.
	rr := env.do(t, http.MethodPost, "/api/admin/blogs", testToken, `{"title":"Exists"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	id := decode(t, rr)["post"].(map[string]any)["id"].(string)

	routes := []struct{ method, path, body string }{
		{http.MethodGet, "/api/admin/health", ""},
		{http.MethodGet, "/api/admin/blogs", ""},
		{http.MethodGet, "/api/admin/blogs?status=DRAFT", ""},
		{http.MethodPost, "/api/admin/blogs", `{"title":"x"}`},
		{http.MethodGet, "/api/admin/blogs/" + id, ""},
		{http.MethodGet, "/api/admin/blogs/does-not-exist", ""},
		{http.MethodPut, "/api/admin/blogs/" + id, `{"title":"y"}`},
		{http.MethodPut, "/api/admin/blogs/does-not-exist", `{"title":"y"}`},
		{http.MethodDelete, "/api/admin/blogs/" + id, ""},
		{http.MethodDelete, "/api/admin/blogs/does-not-exist", ""},
		{http.MethodGet, "/api/admin/categories", ""},
		{http.MethodPost, "/api/admin/categories", `{"name":"go"}`},
		{http.MethodDelete, "/api/admin/categories/go", ""},
		{http.MethodPost, "/api/admin/categories/cleanup", ""},
		{http.MethodPost, "/api/admin/media", ""},
		{http.MethodGet, "/api/admin/no-such-route", ""},
	}

	var first string
	for _, tok := range []string{"", "wrong-token"} {
		for _, rt := range routes {
			rr := env.do(t, rt.method, rt.path, tok, rt.body)
			assert.Equal(t, http.StatusUnauthorized, rr.Code, "%s %s token=%q", rt.method, rt.path, tok)
			if first == "" {
				first = rr.Body.String()
			}
			assert.Equal(t, first, rr.Body.String(), "%s %s leaks a different body", rt.method, rt.path)
		}
	}
	assert.Contains(t, first, middleware.UnauthorizedMessage)

	// Nothing was changed by the rejected writes.
	rr = env.do(t, http.MethodGet, "/api/admin/blogs/"+id, testToken, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Exists", decode(t, rr)["post"].(map[string]any)["title"])
}

func TestAdminHealthProbe(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/api/admin/health", testToken, "")
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, true, body["admin"])
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
}

func TestPublishFlow(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/api/admin/blogs", testToken, `{"title":"Hello World","status":"DRAFT","content_html":"<p>Hi there</p>"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	post := decode(t, rr)["post"].(map[string]any)
	id := post["id"].(string)
	assert.Equal(t, "hello-world", post["slug"])
	assert.Nil(t, post["published_at"])

	rr = env.do(t, http.MethodGet, "/api/public/blogs/slug/hello-world", "", "")
	assert.Equal(t, http.StatusNotFound, rr.Code, "draft visible publicly")
	rr = env.do(t, http.MethodGet, "/api/public/blogs/"+id, "", "")
	assert.Equal(t, http.StatusNotFound, rr.Code, "draft visible publicly by id")

	rr = env.do(t, http.MethodPut, "/api/admin/blogs/"+id, testToken, `{"status":"published"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotNil(t, decode(t, rr)["post"].(map[string]any)["published_at"])

	rr = env.do(t, http.MethodGet, "/api/public/blogs/slug/hello-world", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Hello World", decode(t, rr)["post"].(map[string]any)["title"])

	rr = env.do(t, http.MethodGet, "/api/public/blogs/latest", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, id, decode(t, rr)["post"].(map[string]any)["id"])

	rr = env.do(t, http.MethodDelete, "/api/admin/blogs/"+id, testToken, "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/admin/blogs/"+id, testToken, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = env.do(t, http.MethodDelete, "/api/admin/blogs/"+id, testToken, "")
	assert.Equal(t, http.StatusNotFound, rr.Code, "repeated delete is an error")
}

func TestPublicCacheInvalidatedByAdminWrites(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/api/public/blogs", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "MISS", rr.Header().Get("X-Cache"))
	assert.Equal(t, "public, max-age=30", rr.Header().Get("Cache-Control"))
	assert.EqualValues(t, 0, decode(t, rr)["count"])

	rr = env.do(t, http.MethodGet, "/api/public/blogs", "", "")
	assert.Equal(t, "HIT", rr.Header().Get("X-Cache"))

	rr = env.do(t, http.MethodPost, "/api/admin/blogs", testToken, `{"title":"Fresh","status":"PUBLISHED"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, 0, env.cache.Len(), "admin write must clear the public cache")

	rr = env.do(t, http.MethodGet, "/api/public/blogs", "", "")
	assert.Equal(t, "MISS", rr.Header().Get("X-Cache"))
	assert.EqualValues(t, 1, decode(t, rr)["count"])
}

func TestPublicListing(t *testing.T) {
	env := newTestEnv(t)
	for _, body := range []string{
		`{"title":"A","status":"PUBLISHED","category":"go"}`,
		`{"title":"B","status":"PUBLISHED","category":"rust"}`,
		`{"title":"C","status":"DRAFT","category":"go"}`,
	} {
		require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/admin/blogs", testToken, body).Code)
	}

	rr := env.do(t, http.MethodGet, "/api/public/blogs?category=go", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	assert.EqualValues(t, 1, body["count"])
	first := body["posts"].([]any)[0].(map[string]any)
	assert.Equal(t, "A", first["title"])
	assert.NotContains(t, first, "content_html", "listings omit content")

	rr = env.do(t, http.MethodGet, "/api/public/blogs?limit=abc", "", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/public/categories", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	cats := decode(t, rr)["categories"].([]any)
	require.Len(t, cats, 2)
	assert.Equal(t, "go", cats[0].(map[string]any)["name"])
	assert.EqualValues(t, 1, cats[0].(map[string]any)["post_count"])

	rr = env.do(t, http.MethodGet, "/api/admin/blogs?status=draft", testToken, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.EqualValues(t, 1, decode(t, rr)["count"])
}

func TestPublicRoutesReadOnly(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodPost, "/api/public/blogs", "", `{"title":"x"}`)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	rr = env.do(t, http.MethodDelete, "/api/public/blogs/abc", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestNotFoundIsJSON(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Not Found", decode(t, rr)["error"])
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/admin/blogs", nil)
	req.Header.Set("Origin", "https://admin.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	assert.NotEqual(t, http.StatusUnauthorized, rr.Code, "preflight must not require a token")
	assert.NotEmpty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestAdminRateLimit(t *testing.T) {
	repo := blog.NewRepository(memory.New())
	v, err := middleware.NewTokenVerifier(testToken, "")
	require.NoError(t, err)
	rl := middleware.NewRateLimiter(2, time.Minute)
	defer rl.Stop()

	r := New(handlers.NewPublic(repo), handlers.NewAdmin(repo, nil), Options{Verifier: v, AdminLimiter: rl})
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/health", nil)
		req.Header.Set("Authorization", "Bearer wrong")
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{401, 401, 429}, codes)
}
