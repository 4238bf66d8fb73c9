package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"inkpress/internal/blog"
)

// Request size limits enforced before input reaches the repository.
const (
	maxBodyBytes  = 2 << 20
	maxDeltaBytes = 1 << 20
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names rather than Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// nullableString records whether a JSON field was present, and whether it
// was null, so that a patch can tell "clear" from "leave alone".
type nullableString struct {
	Set   bool
	Value *string
}

func (n *nullableString) UnmarshalJSON(b []byte) error {
	n.Set = true
	if string(b) == "null" {
		n.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	n.Value = &s
	return nil
}

type createPostRequest struct {
	Title           string          `json:"title" validate:"required,max=300"`
	ContentDelta    json.RawMessage `json:"content_delta"`
	ContentHTML     string          `json:"content_html" validate:"max=500000"`
	ContentMarkdown string          `json:"content_markdown" validate:"max=500000"`
	Excerpt         string          `json:"excerpt" validate:"max=1000"`
	Category        *string         `json:"category" validate:"omitempty,max=100"`
	Status          string          `json:"status"`
}

func (req *createPostRequest) input() blog.PostInput {
	in := blog.PostInput{
		Title:           req.Title,
		ContentDelta:    req.ContentDelta,
		ContentHTML:     req.ContentHTML,
		ContentMarkdown: req.ContentMarkdown,
		Excerpt:         req.Excerpt,
		Status:          req.Status,
	}
	if req.Category != nil {
		in.Category = *req.Category
	}
	return in
}

type updatePostRequest struct {
	Title           *string         `json:"title" validate:"omitempty,max=300"`
	ContentDelta    json.RawMessage `json:"content_delta"`
	ContentHTML     *string         `json:"content_html" validate:"omitempty,max=500000"`
	ContentMarkdown *string         `json:"content_markdown" validate:"omitempty,max=500000"`
	Excerpt         *string         `json:"excerpt" validate:"omitempty,max=1000"`
	Category        nullableString  `json:"category"`
	Status          *string         `json:"status"`
}

func (req *updatePostRequest) empty() bool {
	return req.Title == nil && req.ContentDelta == nil && req.ContentHTML == nil &&
		req.ContentMarkdown == nil && req.Excerpt == nil && !req.Category.Set && req.Status == nil
}

func (req *updatePostRequest) patch() blog.PostPatch {
	p := blog.PostPatch{
		Title:           req.Title,
		ContentDelta:    req.ContentDelta,
		ContentHTML:     req.ContentHTML,
		ContentMarkdown: req.ContentMarkdown,
		Excerpt:         req.Excerpt,
		Status:          req.Status,
	}
	if req.Category.Set {
		cleared := ""
		p.Category = &cleared
		if req.Category.Value != nil {
			p.Category = req.Category.Value
		}
	}
	return p
}

type categoryRequest struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
}

// decodeJSON reads a size-limited JSON body into dst and validates it.
// Errors are ValidationErrors ready for writeError.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return &blog.ValidationError{Message: "request body is required"}
		case errors.As(err, &tooLarge):
			return &blog.ValidationError{Message: "request body is too large"}
		default:
			return &blog.ValidationError{Message: "request body must be valid JSON"}
		}
	}
	if err := validate.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

// validationError turns the first validator failure into a readable
// ValidationError.
func validationError(err error) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return &blog.ValidationError{Message: err.Error()}
	}
	fe := errs[0]
	switch fe.Tag() {
	case "required":
		return &blog.ValidationError{Field: fe.Field(), Message: fe.Field() + " is required"}
	case "max":
		return &blog.ValidationError{
			Field:   fe.Field(),
			Message: fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()),
		}
	}
	return &blog.ValidationError{Field: fe.Field(), Message: fe.Field() + " is invalid"}
}

// parseLimit reads the optional limit query parameter. Zero means default.
func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, &blog.ValidationError{Field: "limit", Message: "limit must be a positive integer"}
	}
	return n, nil
}

// checkDelta bounds the opaque editor document.
func checkDelta(delta json.RawMessage) error {
	if len(delta) > maxDeltaBytes {
		return &blog.ValidationError{Field: "content_delta", Message: "content_delta is too large"}
	}
	return nil
}
