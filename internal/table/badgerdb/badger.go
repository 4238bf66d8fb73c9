// Package badgerdb implements table.Table on an embedded Badger database.
// Secondary indexes are kept as separate keys written in the same
// transaction as the item, so an index never points at a stale version.
package badgerdb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"inkpress/internal/table"
)

const (
	sep = "\x00"

	itemPrefix  = "i" + sep
	indexPrefix = "x" + sep

	// maxTxnRetries bounds retries after Badger reports a write conflict
	// between two concurrent transactions.
	maxTxnRetries = 5
)

// record is the on-disk encoding of an item.
type record struct {
	PK       string `json:"pk"`
	SK       string `json:"sk"`
	Status   string `json:"status,omitempty"`
	Category string `json:"category,omitempty"`
	OrderKey string `json:"order_key,omitempty"`
	Version  int64  `json:"version"`
	Data     []byte `json:"data"`
}

// Table is a Badger-backed table.Table.
type Table struct {
	db *badger.DB
}

// Open opens (or creates) a Badger database in dir. An empty dir opens a
// purely in-memory database.
func Open(dir string) (*Table, error) {
	opts := badger.DefaultOptions(dir).
		WithLogger(nil).
		WithNumVersionsToKeep(1)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger open: %w", err)
	}
	slog.Info("badger table opened", "dir", dir, "in_memory", dir == "")
	return &Table{db: db}, nil
}

// New wraps an already-open Badger database.
func New(db *badger.DB) *Table {
	return &Table{db: db}
}

func itemKey(pk, sk string) []byte {
	return []byte(itemPrefix + pk + sep + sk)
}

func indexKey(index, hash, order, pk, sk string) []byte {
	return []byte(indexPrefix + index + sep + hash + sep + order + sep + pk + sep + sk)
}

func indexScanPrefix(index, hash string) []byte {
	return []byte(indexPrefix + index + sep + hash + sep)
}

// indexKeys returns the index entries an item occupies.
func indexKeys(it table.Item) [][]byte {
	var keys [][]byte
	if it.Status != "" {
		keys = append(keys, indexKey(table.IndexStatus, it.Status, it.OrderKey, it.PK, it.SK))
	}
	if it.Category != "" {
		keys = append(keys, indexKey(table.IndexCategory, it.Category, it.OrderKey, it.PK, it.SK))
	}
	return keys
}

func encode(it table.Item) ([]byte, error) {
	return json.Marshal(record{
		PK: it.PK, SK: it.SK,
		Status: it.Status, Category: it.Category, OrderKey: it.OrderKey,
		Version: it.Version, Data: it.Data,
	})
}

func decode(val []byte) (table.Item, error) {
	var r record
	if err := json.Unmarshal(val, &r); err != nil {
		return table.Item{}, fmt.Errorf("decode item: %w", err)
	}
	return table.Item{
		PK: r.PK, SK: r.SK,
		Status: r.Status, Category: r.Category, OrderKey: r.OrderKey,
		Version: r.Version, Data: r.Data,
	}, nil
}

// load reads the item stored under key, returning nil when absent.
func load(txn *badger.Txn, key []byte) (*table.Item, error) {
	entry, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var it table.Item
	err = entry.Value(func(val []byte) error {
		var derr error
		it, derr = decode(val)
		return derr
	})
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// update runs fn in a read-write transaction, retrying when Badger detects
// a conflicting concurrent commit. Conditions are re-evaluated each time.
func (t *Table) update(fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxTxnRetries; attempt++ {
		err = t.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

func (t *Table) Get(_ context.Context, pk, sk string) (*table.Item, error) {
	var out *table.Item
	err := t.db.View(func(txn *badger.Txn) error {
		it, err := load(txn, itemKey(pk, sk))
		out = it
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("badger get %s/%s: %w", pk, sk, err)
	}
	if out == nil {
		return nil, table.ErrNotFound
	}
	return out, nil
}

func (t *Table) Put(_ context.Context, item table.Item, cond table.Condition) error {
	data, err := encode(item)
	if err != nil {
		return fmt.Errorf("encode item: %w", err)
	}

	return t.update(func(txn *badger.Txn) error {
		stored, err := load(txn, itemKey(item.PK, item.SK))
		if err != nil {
			return err
		}
		if !cond.Holds(stored) {
			return table.ErrConditionFailed
		}
		if stored != nil {
			for _, k := range indexKeys(*stored) {
				if err := txn.Delete(k); err != nil {
					return err
				}
			}
		}
		for _, k := range indexKeys(item) {
			if err := txn.Set(k, nil); err != nil {
				return err
			}
		}
		return txn.Set(itemKey(item.PK, item.SK), data)
	})
}

func (t *Table) Delete(_ context.Context, pk, sk string, cond table.Condition) error {
	return t.update(func(txn *badger.Txn) error {
		stored, err := load(txn, itemKey(pk, sk))
		if err != nil {
			return err
		}
		if !cond.Holds(stored) {
			return table.ErrConditionFailed
		}
		if stored == nil {
			return nil
		}
		for _, k := range indexKeys(*stored) {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return txn.Delete(itemKey(pk, sk))
	})
}

func (t *Table) Query(_ context.Context, q table.Query) ([]table.Item, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	prefix := indexScanPrefix(q.Index, q.Key)
	var out []table.Item
	err := t.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Reverse = !q.Ascending
		it := txn.NewIterator(opts)
		defer it.Close()

		start := prefix
		if opts.Reverse {
			start = append(bytes.Clone(prefix), 0xFF)
		}
		for it.Seek(start); it.ValidForPrefix(prefix); it.Next() {
			parts := bytes.Split(it.Item().KeyCopy(nil)[len(prefix):], []byte(sep))
			if len(parts) != 3 {
				continue
			}
			item, err := load(txn, itemKey(string(parts[1]), string(parts[2])))
			if err != nil {
				return err
			}
			if item == nil || !q.Match(*item) {
				continue
			}
			out = append(out, *item)
			if q.Limit > 0 && len(out) >= q.Limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger query %s: %w", q.Index, err)
	}
	return out, nil
}

func (t *Table) Scan(_ context.Context, pkPrefix string) ([]table.Item, error) {
	prefix := []byte(itemPrefix + pkPrefix)
	var out []table.Item
	err := t.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				item, err := decode(val)
				if err != nil {
					return err
				}
				out = append(out, item)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger scan %s: %w", pkPrefix, err)
	}
	return out, nil
}

// Close flushes and closes the underlying database.
func (t *Table) Close() error {
	return t.db.Close()
}
