// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"inkpress/internal/middleware"
	"inkpress/internal/storage"
)

// MediaSaver stores an uploaded editor image. *storage.Media implements it.
type MediaSaver interface {
	SaveImage(ctx context.Context, r io.Reader) (*storage.Uploaded, error)
}

type mediaResponse struct {
	Message string            `json:"message"`
	Media   *storage.Uploaded `json:"media"`
}

// MediaUpload handles POST /media: a multipart form with a single "file"
// image, stored in object storage. The response carries the public URL the
// editor embeds.
func (h *Admin) MediaUpload(w http.ResponseWriter, r *http.Request) {
	if h.media == nil {
		middleware.WriteError(w, r, http.StatusServiceUnavailable, "Object storage is not configured")
		return
	}

	// Limit request body to the image cap plus some overhead for form fields.
	const limit = storage.MaxImageSize + 64<<10
	if r.ContentLength > limit {
		middleware.WriteError(w, r, http.StatusRequestEntityTooLarge, "File too large, maximum size is 10 MB")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(storage.MaxImageSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteError(w, r, http.StatusRequestEntityTooLarge, "File too large, maximum size is 10 MB")
			return
		}
		badRequest(w, r, "Request must be multipart/form-data")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, _, err := r.FormFile("file")
	if err != nil {
		badRequest(w, r, "No file provided")
		return
	}
	defer file.Close()

	up, err := h.media.SaveImage(r.Context(), file)
	switch {
	case errors.Is(err, storage.ErrTooLarge):
		middleware.WriteError(w, r, http.StatusRequestEntityTooLarge, "File too large, maximum size is 10 MB")
		return
	case errors.Is(err, storage.ErrUnsupportedType):
		middleware.WriteError(w, r, http.StatusUnsupportedMediaType, "Only JPEG, PNG, GIF and WebP images are allowed")
		return
	case err != nil:
		writeError(w, r, err)
		return
	}

	slog.Info("media uploaded", "key", up.Key, "type", up.ContentType, "size", up.Size)
	writeJSON(w, r, http.StatusCreated, mediaResponse{Message: "File uploaded successfully", Media: up})
}
