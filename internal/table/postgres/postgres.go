// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package postgres implements table.Table on the single PostgreSQL items
// table created by the database migrations.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"inkpress/internal/table"
)

const itemColumns = `pk, sk, status, category, order_key, version, data`

// Table is a PostgreSQL-backed table.Table.
type Table struct {
	db *sql.DB
}

// New returns a Table using db. The items table must already exist.
func New(db *sql.DB) *Table {
	return &Table{db: db}
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// scanItem scans a row into a table.Item.
func scanItem(scanner interface{ Scan(...any) error }) (table.Item, error) {
	var (
		it       table.Item
		status   sql.NullString
		category sql.NullString
	)
	err := scanner.Scan(&it.PK, &it.SK, &status, &category, &it.OrderKey, &it.Version, &it.Data)
	if err != nil {
		return table.Item{}, fmt.Errorf("scan item: %w", err)
	}
	it.Status = status.String
	it.Category = category.String
	return it, nil
}

func (t *Table) Get(ctx context.Context, pk, sk string) (*table.Item, error) {
	row := t.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE pk = $1 AND sk = $2`, pk, sk)
	return getResult(row, pk, sk)
}

func getResult(row interface{ Scan(...any) error }, pk, sk string) (*table.Item, error) {
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, table.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get item %s/%s: %w", pk, sk, err)
	}
	return &it, nil
}

func (t *Table) Put(ctx context.Context, item table.Item, cond table.Condition) error {
	args := []any{
		item.PK, item.SK, nullable(item.Status), nullable(item.Category),
		item.OrderKey, item.Version, item.Data,
	}

	var query string
	switch cond.Kind() {
	case table.CondAbsent:
		query = `INSERT INTO items (` + itemColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (pk, sk) DO NOTHING`
	case table.CondExists:
		query = `UPDATE items SET status = $3, category = $4, order_key = $5, version = $6, data = $7
			WHERE pk = $1 AND sk = $2`
	case table.CondVersion:
		query = `UPDATE items SET status = $3, category = $4, order_key = $5, version = $6, data = $7
			WHERE pk = $1 AND sk = $2 AND version = $8`
		args = append(args, cond.Version())
	default:
		query = `INSERT INTO items (` + itemColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (pk, sk) DO UPDATE SET
				status = EXCLUDED.status, category = EXCLUDED.category,
				order_key = EXCLUDED.order_key, version = EXCLUDED.version, data = EXCLUDED.data`
	}

	res, err := t.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("put item %s/%s: %w", item.PK, item.SK, err)
	}
	if cond.Kind() == table.CondNone {
		return nil
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("put item %s/%s: %w", item.PK, item.SK, err)
	}
	if n == 0 {
		return table.ErrConditionFailed
	}
	return nil
}

func (t *Table) Delete(ctx context.Context, pk, sk string, cond table.Condition) error {
	query := `DELETE FROM items WHERE pk = $1 AND sk = $2`
	args := []any{pk, sk}

	switch cond.Kind() {
	case table.CondVersion:
		query += ` AND version = $3`
		args = append(args, cond.Version())
	case table.CondAbsent:
		// Succeeds only when there is nothing to delete.
		if _, err := t.Get(ctx, pk, sk); err == nil {
			return table.ErrConditionFailed
		} else if !errors.Is(err, table.ErrNotFound) {
			return err
		}
		return nil
	}

	res, err := t.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete item %s/%s: %w", pk, sk, err)
	}
	if cond.Kind() == table.CondNone {
		return nil
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete item %s/%s: %w", pk, sk, err)
	}
	if n == 0 {
		return table.ErrConditionFailed
	}
	return nil
}

func (t *Table) Query(ctx context.Context, q table.Query) ([]table.Item, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	// Column names come from this fixed switch, never from input.
	hashCol := "status"
	if q.Index == table.IndexCategory {
		hashCol = "category"
	}
	dir := "DESC"
	if q.Ascending {
		dir = "ASC"
	}

	var sb strings.Builder
	sb.WriteString(`SELECT ` + itemColumns + ` FROM items WHERE ` + hashCol + ` = $1`)
	args := []any{q.Key}
	if q.Status != "" {
		args = append(args, q.Status)
		fmt.Fprintf(&sb, ` AND status = $%d`, len(args))
	}
	fmt.Fprintf(&sb, ` ORDER BY order_key %s, pk %s`, dir, dir)
	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&sb, ` LIMIT $%d`, len(args))
	}

	return t.queryItems(ctx, sb.String(), args...)
}

func (t *Table) Scan(ctx context.Context, pkPrefix string) ([]table.Item, error) {
	return t.queryItems(ctx,
		`SELECT `+itemColumns+` FROM items WHERE starts_with(pk, $1) ORDER BY pk, sk`, pkPrefix)
}

func (t *Table) queryItems(ctx context.Context, query string, args ...any) ([]table.Item, error) {
	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var items []table.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// Close closes the connection pool.
func (t *Table) Close() error {
	return t.db.Close()
}
