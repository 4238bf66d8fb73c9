package middleware

import (
	"bytes"
	"fmt"
	"net/http"
	"sync"
	"time"

	"inkpress/internal/cache"
)

// captureWriter tees the response body so it can be cached once the
// handler has finished.
type captureWriter struct {
	responseWriter
	body bytes.Buffer
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	cw.body.Write(b)
	return cw.responseWriter.Write(b)
}

// PublicCache serves public GET responses from a store and clears it after
// admin writes. A response whose request overlapped an invalidation in this
// process is not stored. Other processes sharing the store may still cache
// a body read before a write; it lives at most one TTL.
type PublicCache struct {
	store        cache.Store
	cacheControl string

	mu  sync.RWMutex
	gen uint64
}

// NewPublicCache creates a PublicCache storing responses for ttl. Every
// cached route sends a matching max-age so CDNs and browsers agree.
func NewPublicCache(store cache.Store, ttl time.Duration) *PublicCache {
	if store == nil {
		store = cache.Nop{}
	}
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	return &PublicCache{
		store:        store,
		cacheControl: fmt.Sprintf("public, max-age=%d", int(ttl.Seconds())),
	}
}

func (pc *PublicCache) generation() uint64 {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return pc.gen
}

// Serve answers GET requests from the store and caches 200 responses.
func (pc *PublicCache) Serve(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}

		key := r.URL.RequestURI()
		w.Header().Set("Cache-Control", pc.cacheControl)

		if body, ok := pc.store.Get(r.Context(), key); ok {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.Header().Set("X-Cache", "HIT")
			w.WriteHeader(http.StatusOK)
			w.Write(body)
			return
		}

		start := pc.generation()
		w.Header().Set("X-Cache", "MISS")
		cw := &captureWriter{responseWriter: responseWriter{ResponseWriter: w, statusCode: http.StatusOK}}
		next.ServeHTTP(cw, r)

		if cw.statusCode != http.StatusOK || cw.body.Len() == 0 {
			return
		}
		// Holding the read lock orders this Set before the InvalidateAll of
		// any write that bumps the generation after the check.
		pc.mu.RLock()
		defer pc.mu.RUnlock()
		if pc.gen == start {
			pc.store.Set(r.Context(), key, cw.body.Bytes())
		}
	})
}

// Invalidate clears the store and discards responses still being built.
func (pc *PublicCache) Invalidate(r *http.Request) {
	pc.mu.Lock()
	pc.gen++
	pc.mu.Unlock()
	pc.store.InvalidateAll(r.Context())
}

// InvalidateOnWrite clears the cache after every successful mutating request.
func (pc *PublicCache) InvalidateOnWrite(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode < http.StatusBadRequest {
			pc.Invalidate(r)
		}
	})
}
