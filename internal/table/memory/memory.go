// Package memory implements table.Table in process memory. It backs the
// test suites and single-instance development runs.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"inkpress/internal/table"
)

type key struct {
	pk string
	sk string
}

// Table is an in-memory table.Table. It is safe for concurrent use.
type Table struct {
	mu    sync.RWMutex
	items map[key]table.Item
}

// New creates an empty in-memory table.
func New() *Table {
	return &Table{items: make(map[key]table.Item)}
}

func (t *Table) Get(_ context.Context, pk, sk string) (*table.Item, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	it, ok := t.items[key{pk, sk}]
	if !ok {
		return nil, table.ErrNotFound
	}
	c := it.Clone()
	return &c, nil
}

func (t *Table) Put(_ context.Context, item table.Item, cond table.Condition) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	k := key{item.PK, item.SK}
	if !cond.Holds(t.lookup(k)) {
		return table.ErrConditionFailed
	}
	t.items[k] = item.Clone()
	return nil
}

func (t *Table) Delete(_ context.Context, pk, sk string, cond table.Condition) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	k := key{pk, sk}
	if !cond.Holds(t.lookup(k)) {
		return table.ErrConditionFailed
	}
	delete(t.items, k)
	return nil
}

func (t *Table) Query(_ context.Context, q table.Query) ([]table.Item, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	t.mu.RLock()
	all := make([]table.Item, 0, len(t.items))
	for _, it := range t.items {
		all = append(all, it.Clone())
	}
	t.mu.RUnlock()

	return q.Apply(all), nil
}

func (t *Table) Scan(_ context.Context, pkPrefix string) ([]table.Item, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []table.Item
	for k, it := range t.items {
		if strings.HasPrefix(k.pk, pkPrefix) {
			out = append(out, it.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PK != out[j].PK {
			return out[i].PK < out[j].PK
		}
		return out[i].SK < out[j].SK
	})
	return out, nil
}

// Close is a no-op.
func (t *Table) Close() error { return nil }

// Len returns the number of stored items.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.items)
}

// lookup must be called with t.mu held.
func (t *Table) lookup(k key) *table.Item {
	it, ok := t.items[k]
	if !ok {
		return nil
	}
	return &it
}
