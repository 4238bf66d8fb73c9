package blog

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"inkpress/internal/table"
	"inkpress/internal/table/memory"
)

// fakeClock advances one second on every reading so that order keys are
// distinct and deterministic.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestRepo(t *testing.T, tbl table.Table) *Repository {
	t.Helper()
	if tbl == nil {
		tbl = memory.New()
	}
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	r := NewRepository(tbl)
	r.now = clock.Now
	return r
}

func strPtr(s string) *string { return &s }

func mustCreate(t *testing.T, r *Repository, in PostInput) *Post {
	t.Helper()
	p, err := r.CreatePost(context.Background(), in)
	require.NoError(t, err)
	return p
}

// flakyTable fails selected puts with ErrConditionFailed, simulating a
// writer that keeps winning the race.
type flakyTable struct {
	table.Table

	mu   sync.Mutex
	fail func(it table.Item, cond table.Condition) bool
}

func (f *flakyTable) Put(ctx context.Context, it table.Item, cond table.Condition) error {
	f.mu.Lock()
	fail := f.fail != nil && f.fail(it, cond)
	f.mu.Unlock()
	if fail {
		return table.ErrConditionFailed
	}
	return f.Table.Put(ctx, it, cond)
}

func TestOrderKey(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	published := created.Add(90 * time.Minute)

	draft := &Post{CreatedAt: created}
	require.Equal(t, "2026-01-02T03:04:05.000000000Z", orderKey(draft))

	pub := &Post{CreatedAt: created, PublishedAt: &published}
	require.Equal(t, "2026-01-02T04:34:05.000000000Z", orderKey(pub))

	// Fixed width keeps whole seconds ordered before fractional ones.
	frac := &Post{CreatedAt: created.Add(500 * time.Millisecond)}
	require.Less(t, orderKey(draft), orderKey(frac))
}

func TestPostItem_IndexAttributes(t *testing.T) {
	p := &Post{ID: "abc", Status: StatusDraft, Category: strPtr("go"), CreatedAt: time.Now(), Version: 4}
	it, err := postItem(p)
	require.NoError(t, err)
	require.Equal(t, "BLOG#abc", it.PK)
	require.Equal(t, "METADATA", it.SK)
	require.Equal(t, "DRAFT", it.Status)
	require.Equal(t, "go", it.Category)
	require.EqualValues(t, 4, it.Version)

	back, err := decodePost(&it)
	require.NoError(t, err)
	require.Equal(t, p.ID, back.ID)
	require.EqualValues(t, 4, back.Version)
}

func TestEffectiveLimit(t *testing.T) {
	tests := []struct {
		vis   Visibility
		limit int
		want  int
	}{
		{Public, 0, 10},
		{Public, -3, 10},
		{Public, 5, 5},
		{Public, 50, 50},
		{Public, 51, 50},
		{Admin, 0, 20},
		{Admin, 100, 100},
		{Admin, 1000, 100},
	}
	for _, tt := range tests {
		got := ListFilter{Visibility: tt.vis, Limit: tt.limit}.EffectiveLimit()
		require.Equal(t, tt.want, got, "vis=%d limit=%d", tt.vis, tt.limit)
	}
}

func TestParseStatus(t *testing.T) {
	for _, in := range []string{"draft", "DRAFT", " Draft "} {
		s, err := ParseStatus(in)
		require.NoError(t, err)
		require.Equal(t, StatusDraft, s)
	}
	s, err := ParseStatus("published")
	require.NoError(t, err)
	require.Equal(t, StatusPublished, s)

	for _, in := range []string{"", "archived"} {
		_, err := ParseStatus(in)
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
	}
}
