// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package blog is the content repository: the only code that reads or
// writes post and category records. It derives slugs and excerpts, keeps
// published_at write-once, and maps domain operations onto the single
// table and its two ordered indexes.
package blog

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"inkpress/internal/table"
)

// Key prefixes of the single-table layout.
const (
	postPrefix     = "BLOG#"
	categoryPrefix = "CATEGORY#"
	slugPrefix     = "SLUG#"

	metadataSK = "METADATA"
	slugSK     = "SLUG"
)

// orderKeyLayout is fixed width so that lexical order equals time order.
const orderKeyLayout = "2006-01-02T15:04:05.000000000Z"

// maxAttempts bounds slug reservation and versioned update retries.
const maxAttempts = 3

// Repository implements the content operations over a table.Table.
type Repository struct {
	tbl   table.Table
	now   func() time.Time
	newID func() (string, error)
}

// NewRepository creates a Repository backed by tbl.
func NewRepository(tbl table.Table) *Repository {
	return &Repository{
		tbl: tbl,
		now: func() time.Time { return time.Now().UTC() },
		newID: func() (string, error) {
			id, err := uuid.NewV7()
			if err != nil {
				return "", err
			}
			return id.String(), nil
		},
	}
}

func postKey(id string) string       { return postPrefix + id }
func categoryKey(name string) string { return categoryPrefix + name }
func slugKey(s string) string        { return slugPrefix + s }

// orderKey is the range key of both indexes: the first publish time, or the
// creation time for posts that were never published.
func orderKey(p *Post) string {
	t := p.CreatedAt
	if p.PublishedAt != nil {
		t = *p.PublishedAt
	}
	return t.UTC().Format(orderKeyLayout)
}

func postItem(p *Post) (table.Item, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return table.Item{}, fmt.Errorf("encode post %s: %w", p.ID, err)
	}
	it := table.Item{
		PK:       postKey(p.ID),
		SK:       metadataSK,
		Status:   string(p.Status),
		OrderKey: orderKey(p),
		Version:  p.Version,
		Data:     data,
	}
	if p.Category != nil {
		it.Category = *p.Category
	}
	return it, nil
}

func decodePost(it *table.Item) (*Post, error) {
	var p Post
	if err := json.Unmarshal(it.Data, &p); err != nil {
		return nil, fmt.Errorf("decode post %s: %w", it.PK, err)
	}
	p.Version = it.Version
	return &p, nil
}

func decodePosts(items []table.Item) ([]Post, error) {
	posts := make([]Post, 0, len(items))
	for i := range items {
		p, err := decodePost(&items[i])
		if err != nil {
			return nil, err
		}
		posts = append(posts, *p)
	}
	return posts, nil
}

type categoryRecord struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

func categoryItem(rec categoryRecord, version int64) (table.Item, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return table.Item{}, fmt.Errorf("encode category %q: %w", rec.Name, err)
	}
	return table.Item{
		PK:      categoryKey(rec.Name),
		SK:      metadataSK,
		Version: version,
		Data:    data,
	}, nil
}

func decodeCategory(it *table.Item) (categoryRecord, error) {
	var rec categoryRecord
	if err := json.Unmarshal(it.Data, &rec); err != nil {
		return rec, fmt.Errorf("decode category %s: %w", it.PK, err)
	}
	return rec, nil
}

type slugRecord struct {
	PostID string `json:"post_id"`
}

func slugItem(s, postID string) (table.Item, error) {
	data, err := json.Marshal(slugRecord{PostID: postID})
	if err != nil {
		return table.Item{}, err
	}
	return table.Item{PK: slugKey(s), SK: slugSK, Version: 1, Data: data}, nil
}
