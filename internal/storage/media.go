package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"time"

	"github.com/google/uuid"
)

// MaxImageSize caps a single uploaded image.
const MaxImageSize = 10 << 20

// ErrUnsupportedType is returned for uploads that are not a known image type.
var ErrUnsupportedType = errors.New("unsupported media type")

// ErrTooLarge is returned for uploads over MaxImageSize.
var ErrTooLarge = errors.New("media file too large")

// imageExtensions maps sniffed content types to stored file extensions.
var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Uploader is the object store the media service writes to.
type Uploader interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
}

// Media validates editor image uploads and stores them under date-based
// keys.
type Media struct {
	up  Uploader
	now func() time.Time
}

// NewMedia creates a media service writing through up.
func NewMedia(up Uploader) *Media {
	return &Media{up: up, now: time.Now}
}

// Uploaded describes a stored media object.
type Uploaded struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// SaveImage reads an image from r, checks its type from the content itself
// and stores it. The client-declared type is ignored.
func (m *Media) SaveImage(ctx context.Context, r io.Reader) (*Uploaded, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) > MaxImageSize {
		return nil, ErrTooLarge
	}

	contentType := http.DetectContentType(data)
	ext, ok := imageExtensions[contentType]
	if !ok {
		return nil, ErrUnsupportedType
	}

	key := m.objectKey(ext)
	url, err := m.up.Upload(ctx, key, contentType, bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	return &Uploaded{Key: key, URL: url, ContentType: contentType, Size: int64(len(data))}, nil
}

// objectKey returns media/<yyyy>/<mm>/<uuid><ext>.
func (m *Media) objectKey(ext string) string {
	now := m.now().UTC()
	return path.Join("media", now.Format("2006"), now.Format("01"), uuid.NewString()+ext)
}
