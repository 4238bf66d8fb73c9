// Package tabletest holds the behavioural suite every table.Table backend
// must pass. Backend packages call Run from their own tests.
package tabletest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkpress/internal/table"
)

// Factory returns a fresh, empty table for one subtest.
type Factory func(t *testing.T) table.Table

// Run executes the full suite against tables produced by newTable.
func Run(t *testing.T, newTable Factory) {
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, newTable(t)) })
	t.Run("PutGet", func(t *testing.T) { testPutGet(t, newTable(t)) })
	t.Run("Conditions", func(t *testing.T) { testConditions(t, newTable(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, newTable(t)) })
	t.Run("QueryOrdering", func(t *testing.T) { testQueryOrdering(t, newTable(t)) })
	t.Run("QueryStatusFilter", func(t *testing.T) { testQueryStatusFilter(t, newTable(t)) })
	t.Run("IndexMaintenance", func(t *testing.T) { testIndexMaintenance(t, newTable(t)) })
	t.Run("Scan", func(t *testing.T) { testScan(t, newTable(t)) })
	t.Run("ConcurrentVersionedWrites", func(t *testing.T) { testConcurrentVersionedWrites(t, newTable(t)) })
}

func post(id, status, category, order string) table.Item {
	return table.Item{
		PK:       "BLOG#" + id,
		SK:       "METADATA",
		Status:   status,
		Category: category,
		OrderKey: order,
		Version:  1,
		Data:     []byte(fmt.Sprintf(`{"id":%q}`, id)),
	}
}

func pks(items []table.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.PK
	}
	return out
}

func testGetMissing(t *testing.T, tbl table.Table) {
	_, err := tbl.Get(context.Background(), "BLOG#nope", "METADATA")
	assert.ErrorIs(t, err, table.ErrNotFound)
}

func testPutGet(t *testing.T, tbl table.Table) {
	ctx := context.Background()
	in := post("a", "DRAFT", "go", "2026-01-01T00:00:00.000000000Z")
	require.NoError(t, tbl.Put(ctx, in, table.Always))

	got, err := tbl.Get(ctx, in.PK, in.SK)
	require.NoError(t, err)
	assert.Equal(t, in.PK, got.PK)
	assert.Equal(t, in.SK, got.SK)
	assert.Equal(t, in.Status, got.Status)
	assert.Equal(t, in.Category, got.Category)
	assert.Equal(t, in.OrderKey, got.OrderKey)
	assert.Equal(t, in.Version, got.Version)
	assert.JSONEq(t, string(in.Data), string(got.Data))

	// Mutating the returned copy must not leak into the store.
	got.Data[0] = 'X'
	again, err := tbl.Get(ctx, in.PK, in.SK)
	require.NoError(t, err)
	assert.JSONEq(t, string(in.Data), string(again.Data))
}

func testConditions(t *testing.T, tbl table.Table) {
	ctx := context.Background()
	it := post("c", "DRAFT", "", "2026-01-01T00:00:00.000000000Z")

	assert.ErrorIs(t, tbl.Put(ctx, it, table.IfExists), table.ErrConditionFailed)
	assert.ErrorIs(t, tbl.Put(ctx, it, table.IfVersion(0)), table.ErrConditionFailed)
	require.NoError(t, tbl.Put(ctx, it, table.IfAbsent))
	assert.ErrorIs(t, tbl.Put(ctx, it, table.IfAbsent), table.ErrConditionFailed)

	next := it
	next.Version = 2
	assert.ErrorIs(t, tbl.Put(ctx, next, table.IfVersion(7)), table.ErrConditionFailed)
	require.NoError(t, tbl.Put(ctx, next, table.IfVersion(1)))
	assert.ErrorIs(t, tbl.Put(ctx, next, table.IfVersion(1)), table.ErrConditionFailed)
	require.NoError(t, tbl.Put(ctx, next, table.IfExists))

	got, err := tbl.Get(ctx, it.PK, it.SK)
	require.NoError(t, err)
	assert.EqualValues(t, 2, got.Version)
}

func testDelete(t *testing.T, tbl table.Table) {
	ctx := context.Background()
	it := post("d", "PUBLISHED", "go", "2026-01-01T00:00:00.000000000Z")
	require.NoError(t, tbl.Put(ctx, it, table.Always))

	require.NoError(t, tbl.Delete(ctx, it.PK, it.SK, table.IfExists))
	_, err := tbl.Get(ctx, it.PK, it.SK)
	assert.ErrorIs(t, err, table.ErrNotFound)

	assert.ErrorIs(t, tbl.Delete(ctx, it.PK, it.SK, table.IfExists), table.ErrConditionFailed)
	assert.NoError(t, tbl.Delete(ctx, it.PK, it.SK, table.Always))

	items, err := tbl.Query(ctx, table.Query{Index: table.IndexStatus, Key: "PUBLISHED"})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func testQueryOrdering(t *testing.T, tbl table.Table) {
	ctx := context.Background()
	seed := []table.Item{
		post("1", "PUBLISHED", "go", "2026-01-01T00:00:00.000000000Z"),
		post("2", "PUBLISHED", "rust", "2026-03-01T00:00:00.000000000Z"),
		post("3", "PUBLISHED", "go", "2026-02-01T00:00:00.000000000Z"),
		post("4", "DRAFT", "go", "2026-04-01T00:00:00.000000000Z"),
		{PK: "CATEGORY#go", SK: "METADATA", Data: []byte(`{}`)},
	}
	for _, it := range seed {
		require.NoError(t, tbl.Put(ctx, it, table.Always))
	}

	got, err := tbl.Query(ctx, table.Query{Index: table.IndexStatus, Key: "PUBLISHED"})
	require.NoError(t, err)
	assert.Equal(t, []string{"BLOG#2", "BLOG#3", "BLOG#1"}, pks(got))

	got, err = tbl.Query(ctx, table.Query{Index: table.IndexStatus, Key: "PUBLISHED", Ascending: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"BLOG#1", "BLOG#3", "BLOG#2"}, pks(got))

	got, err = tbl.Query(ctx, table.Query{Index: table.IndexStatus, Key: "PUBLISHED", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"BLOG#2", "BLOG#3"}, pks(got))

	got, err = tbl.Query(ctx, table.Query{Index: table.IndexCategory, Key: "go"})
	require.NoError(t, err)
	assert.Equal(t, []string{"BLOG#4", "BLOG#3", "BLOG#1"}, pks(got))

	_, err = tbl.Query(ctx, table.Query{Index: "bogus", Key: "x"})
	assert.Error(t, err)
}

func testQueryStatusFilter(t *testing.T, tbl table.Table) {
	ctx := context.Background()
	seed := []table.Item{
		post("1", "PUBLISHED", "go", "2026-01-01T00:00:00.000000000Z"),
		post("2", "DRAFT", "go", "2026-05-01T00:00:00.000000000Z"),
		post("3", "DRAFT", "go", "2026-06-01T00:00:00.000000000Z"),
		post("4", "PUBLISHED", "go", "2026-02-01T00:00:00.000000000Z"),
	}
	for _, it := range seed {
		require.NoError(t, tbl.Put(ctx, it, table.Always))
	}

	// The filter must be applied before the limit.
	got, err := tbl.Query(ctx, table.Query{Index: table.IndexCategory, Key: "go", Status: "PUBLISHED", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"BLOG#4", "BLOG#1"}, pks(got))
}

func testIndexMaintenance(t *testing.T, tbl table.Table) {
	ctx := context.Background()
	it := post("m", "DRAFT", "go", "2026-01-01T00:00:00.000000000Z")
	require.NoError(t, tbl.Put(ctx, it, table.Always))

	moved := it
	moved.Status = "PUBLISHED"
	moved.Category = ""
	moved.OrderKey = "2026-02-01T00:00:00.000000000Z"
	require.NoError(t, tbl.Put(ctx, moved, table.Always))

	drafts, err := tbl.Query(ctx, table.Query{Index: table.IndexStatus, Key: "DRAFT"})
	require.NoError(t, err)
	assert.Empty(t, drafts)

	inGo, err := tbl.Query(ctx, table.Query{Index: table.IndexCategory, Key: "go"})
	require.NoError(t, err)
	assert.Empty(t, inGo)

	published, err := tbl.Query(ctx, table.Query{Index: table.IndexStatus, Key: "PUBLISHED"})
	require.NoError(t, err)
	require.Len(t, published, 1)
	assert.Equal(t, moved.OrderKey, published[0].OrderKey)
}

func testScan(t *testing.T, tbl table.Table) {
	ctx := context.Background()
	for _, pk := range []string{"CATEGORY#b", "BLOG#x", "CATEGORY#a", "SLUG#x"} {
		require.NoError(t, tbl.Put(ctx, table.Item{PK: pk, SK: "METADATA", Data: []byte(`{}`)}, table.Always))
	}

	got, err := tbl.Scan(ctx, "CATEGORY#")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"CATEGORY#a", "CATEGORY#b"}, pks(got))
}

func testConcurrentVersionedWrites(t *testing.T, tbl table.Table) {
	ctx := context.Background()
	base := post("v", "DRAFT", "", "2026-01-01T00:00:00.000000000Z")
	require.NoError(t, tbl.Put(ctx, base, table.IfAbsent))

	// Every writer races on version 1; exactly one may win.
	const writers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			next := base
			next.Version = 2
			err := tbl.Put(ctx, next, table.IfVersion(1))
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			if !errors.Is(err, table.ErrConditionFailed) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}
