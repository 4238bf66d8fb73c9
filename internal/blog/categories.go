// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package blog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"inkpress/internal/table"
)

// ListCategories returns every category sorted by name, each with the
// number of published posts filed under it. Public callers never see
// records with a blank name.
func (r *Repository) ListCategories(ctx context.Context, vis Visibility) ([]Category, error) {
	items, err := r.tbl.Scan(ctx, categoryPrefix)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}

	cats := make([]Category, 0, len(items))
	for i := range items {
		if items[i].SK != metadataSK {
			continue
		}
		rec, err := decodeCategory(&items[i])
		if err != nil {
			return nil, err
		}
		if vis == Public && strings.TrimSpace(rec.Name) == "" {
			continue
		}
		count, err := r.publishedCount(ctx, rec.Name)
		if err != nil {
			return nil, err
		}
		cats = append(cats, Category{Name: rec.Name, Description: rec.Description, PostCount: count})
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i].Name < cats[j].Name })
	return cats, nil
}

func (r *Repository) publishedCount(ctx context.Context, name string) (int, error) {
	if strings.TrimSpace(name) == "" {
		return 0, nil
	}
	items, err := r.tbl.Query(ctx, table.Query{
		Index:  table.IndexCategory,
		Key:    name,
		Status: string(StatusPublished),
	})
	if err != nil {
		return 0, fmt.Errorf("count posts in category %q: %w", name, err)
	}
	return len(items), nil
}

// UpsertCategory creates the category or updates its description. A nil
// description keeps the stored one. created reports whether the record is
// new.
func (r *Repository) UpsertCategory(ctx context.Context, name string, description *string) (cat *Category, created bool, err error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false, &ValidationError{Field: "name", Message: "category name is required"}
	}
	if len([]rune(name)) > MaxCategoryLen {
		return nil, false, &ValidationError{Field: "name", Message: "category name is too long"}
	}
	if description != nil {
		d := strings.TrimSpace(*description)
		description = &d
		if d == "" {
			description = nil
		}
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		rec := categoryRecord{Name: name, Description: description}
		cond := table.IfAbsent
		version := int64(1)

		existing, err := r.tbl.Get(ctx, categoryKey(name), metadataSK)
		switch {
		case err == nil:
			stored, err := decodeCategory(existing)
			if err != nil {
				return nil, false, err
			}
			if rec.Description == nil {
				rec.Description = stored.Description
			}
			cond = table.IfVersion(existing.Version)
			version = existing.Version + 1
		case !errors.Is(err, table.ErrNotFound):
			return nil, false, fmt.Errorf("get category %q: %w", name, err)
		}

		it, err := categoryItem(rec, version)
		if err != nil {
			return nil, false, err
		}
		err = r.tbl.Put(ctx, it, cond)
		if errors.Is(err, table.ErrConditionFailed) {
			continue
		}
		if err != nil {
			return nil, false, fmt.Errorf("upsert category %q: %w", name, err)
		}

		count, err := r.publishedCount(ctx, name)
		if err != nil {
			return nil, false, err
		}
		return &Category{Name: name, Description: rec.Description, PostCount: count}, version == 1, nil
	}
	return nil, false, &ConflictError{Message: "category was modified concurrently, try again"}
}

// DeleteCategory removes the category record. Posts keep their category
// value.
func (r *Repository) DeleteCategory(ctx context.Context, name string) error {
	err := r.tbl.Delete(ctx, categoryKey(name), metadataSK, table.IfExists)
	if errors.Is(err, table.ErrConditionFailed) {
		return &NotFoundError{Resource: "category"}
	}
	if err != nil {
		return fmt.Errorf("delete category %q: %w", name, err)
	}
	return nil
}

// CleanupCategories deletes category records whose name is blank and
// returns their keys.
func (r *Repository) CleanupCategories(ctx context.Context) ([]string, error) {
	items, err := r.tbl.Scan(ctx, categoryPrefix)
	if err != nil {
		return nil, fmt.Errorf("cleanup categories: %w", err)
	}

	deleted := []string{}
	for i := range items {
		rec, err := decodeCategory(&items[i])
		if err != nil {
			slog.Warn("undecodable category record", "pk", items[i].PK, "error", err)
		} else if strings.TrimSpace(rec.Name) != "" {
			continue
		}
		err = r.tbl.Delete(ctx, items[i].PK, items[i].SK, table.Always)
		if err != nil {
			return deleted, fmt.Errorf("delete category %s: %w", items[i].PK, err)
		}
		deleted = append(deleted, items[i].PK)
	}
	return deleted, nil
}

// ensureCategory creates a record for a category first referenced by a
// post. An existing record is left alone.
func (r *Repository) ensureCategory(ctx context.Context, name *string) {
	if name == nil || *name == "" {
		return
	}
	it, err := categoryItem(categoryRecord{Name: *name}, 1)
	if err != nil {
		return
	}
	err = r.tbl.Put(ctx, it, table.IfAbsent)
	if err != nil && !errors.Is(err, table.ErrConditionFailed) {
		slog.Warn("implicit category create failed", "category", *name, "error", err)
	}
}
