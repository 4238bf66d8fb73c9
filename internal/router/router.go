// Package router sets up the HTTP routes and middleware chains of the blog
// API. Routes are organised into a public group, cached and open to all,
// and an admin group behind the bearer token check.
package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"

	"inkpress/internal/cache"
	"inkpress/internal/handlers"
	"inkpress/internal/middleware"
)

// Options carries the cross-cutting dependencies of the route tree.
type Options struct {
	// Verifier checks admin bearer tokens. Required.
	Verifier *middleware.TokenVerifier
	// Cache stores public responses. Nil disables caching.
	Cache cache.Store
	// CacheTTL is the public response lifetime, also sent as max-age.
	CacheTTL time.Duration
	// AllowedOrigins lists CORS origins for browser clients.
	AllowedOrigins []string
	// AdminLimiter rate-limits admin requests per client. Nil disables it.
	AdminLimiter *middleware.RateLimiter
}

// New creates and returns the configured Chi router with all middleware
// and route groups wired up.
func New(public *handlers.Public, admin *handlers.Admin, opts Options) chi.Router {
	publicCache := middleware.NewPublicCache(opts.Cache, opts.CacheTTL)
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	// Global middleware, applied to every request.
	r.Use(chimw.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.SecureHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, r, http.StatusNotFound, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, r, http.StatusMethodNotAllowed, "Method not allowed")
	})

	// Liveness for load balancers, outside both API groups.
	r.Get("/health", public.Health)

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/health", public.Health)

		r.Group(func(r chi.Router) {
			r.Use(publicCache.Serve)

			r.Get("/blogs", public.ListPosts)
			r.Get("/blogs/latest", public.Latest)
			r.Get("/blogs/slug/{slug}", public.PostBySlug)
			r.Get("/blogs/{id}", public.PostByID)
			r.Get("/categories", public.Categories)
		})
	})

	// Admin routes: every request, known route or not, passes the token
	// check first so a 401 never reveals what exists.
	r.Route("/api/admin", func(r chi.Router) {
		if opts.AdminLimiter != nil {
			r.Use(opts.AdminLimiter.Middleware)
		}
		r.Use(middleware.RequireAdminToken(opts.Verifier))
		r.Use(middleware.NoStore)
		r.Use(publicCache.InvalidateOnWrite)

		r.Get("/health", admin.Health)

		r.Route("/blogs", func(r chi.Router) {
			r.Get("/", admin.ListPosts)
			r.Post("/", admin.CreatePost)
			r.Get("/{id}", admin.GetPost)
			r.Put("/{id}", admin.UpdatePost)
			r.Delete("/{id}", admin.DeletePost)
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", admin.Categories)
			r.Post("/", admin.UpsertCategory)
			r.Post("/cleanup", admin.CleanupCategories)
			r.Delete("/{name}", admin.DeleteCategory)
		})

		r.Post("/media", admin.MediaUpload)

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			middleware.WriteError(w, r, http.StatusNotFound, "Route not found")
		})
	})

	return r
}
