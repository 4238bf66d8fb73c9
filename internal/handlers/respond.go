// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"unicode"
	"unicode/utf8"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"inkpress/internal/blog"
	"inkpress/internal/middleware"
)

// messageResponse is the body of write endpoints that return no entity.
type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

// writeError maps repository errors onto HTTP statuses. Anything
// unrecognised is logged and reported as a generic 500 so internals never
// reach the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve *blog.ValidationError
		nf *blog.NotFoundError
		ce *blog.ConflictError
	)
	switch {
	case errors.As(err, &ve):
		middleware.WriteError(w, r, http.StatusBadRequest, upperFirst(ve.Error()))
	case errors.As(err, &nf):
		middleware.WriteError(w, r, http.StatusNotFound, upperFirst(nf.Error()))
	case errors.As(err, &ce):
		middleware.WriteError(w, r, http.StatusConflict, upperFirst(ce.Error()))
	default:
		slog.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", chimw.GetReqID(r.Context()),
			"error", err,
		)
		middleware.WriteError(w, r, http.StatusInternalServerError, "An unexpected error occurred")
	}
}

func badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	middleware.WriteError(w, r, http.StatusBadRequest, msg)
}

func upperFirst(s string) string {
	rn, size := utf8.DecodeRuneInString(s)
	if rn == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(rn)) + s[size:]
}
