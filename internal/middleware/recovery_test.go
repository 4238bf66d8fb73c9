// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecoverer_WritesJSONError(t *testing.T) {
	tests := []struct {
		name  string
		value any
	}{
		{"string", "something went wrong"},
		{"error", errors.New("table closed")},
		{"integer", 42},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			captureLogs(t)
			handler := Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				panic(tt.value)
			}))

			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/public/blogs", nil))

			require.Equal(t, http.StatusInternalServerError, rr.Code)
			assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())
			assert.Equal(t, ErrorResponse{
				Error:   "Internal Server Error",
				Message: "An unexpected error occurred",
			}, body)
			assert.NotContains(t, rr.Body.String(), "stack")
		})
	}
}

func TestRecoverer_LogsRequestAndStack(t *testing.T) {
	logs := captureLogs(t)
	handler := chimw.RequestID(Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))

	req := httptest.NewRequest(http.MethodPut, "/api/admin/blogs/123", nil)
	req.Header.Set(chimw.RequestIDHeader, "req-42")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	recs := logRecords(t, logs, "panic recovered")
	require.Len(t, recs, 1)
	rec := recs[0]
	assert.Equal(t, "ERROR", rec["level"])
	assert.Equal(t, "boom", rec["error"])
	assert.Equal(t, http.MethodPut, rec["method"])
	assert.Equal(t, "/api/admin/blogs/123", rec["path"])
	assert.Equal(t, "req-42", rec["request_id"])
	assert.Contains(t, rec["stack"], "runtime/debug.Stack")
}

func TestRecoverer_RepanicsOnAbort(t *testing.T) {
	logs := captureLogs(t)
	handler := Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	rr := httptest.NewRecorder()
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/public/blogs", nil))
	})
	assert.Empty(t, rr.Body.String())
	assert.Empty(t, logRecords(t, logs, "panic recovered"))
}

func TestRecoverer_PassesThrough(t *testing.T) {
	handler := Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Cache", "MISS")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"ok":true}`))
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/admin/blogs", nil))

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "MISS", rr.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"ok":true}`, rr.Body.String())
}
