// Package table defines the single-table key-value store that holds every
// blog record. Items are addressed by a composite (PK, SK) key and can be
// read back in order through two secondary indexes: one keyed by post
// status and one keyed by category, both ranged by an order key.
//
// Backends live in subpackages (memory, badgerdb, dynamo, postgres) and all
// satisfy the Table interface with the same ordering and condition rules.
package table

import (
	"context"
	"errors"
	"sort"
	"strings"
)

// Index names. They match the DynamoDB global secondary index names so the
// same identifiers are used in every backend.
const (
	IndexStatus   = "status-publishedAt-index"
	IndexCategory = "category-publishedAt-index"
)

var (
	// ErrNotFound is returned by Get when no item exists for the key.
	ErrNotFound = errors.New("item not found")

	// ErrConditionFailed is returned by Put and Delete when the write
	// condition does not hold for the stored item.
	ErrConditionFailed = errors.New("condition check failed")

	// ErrUnknownIndex is returned by Query for an index name that is not
	// IndexStatus or IndexCategory.
	ErrUnknownIndex = errors.New("unknown index")
)

// Item is one record in the table. Status and Category are the hash keys of
// the two secondary indexes; an empty value keeps the item out of that
// index. OrderKey is the range key shared by both indexes and must sort
// lexically in time order.
type Item struct {
	PK       string
	SK       string
	Status   string
	Category string
	OrderKey string
	Version  int64
	Data     []byte
}

// Clone returns a deep copy of the item.
func (it Item) Clone() Item {
	if it.Data != nil {
		it.Data = append([]byte(nil), it.Data...)
	}
	return it
}

// ConditionKind enumerates the write preconditions a backend must enforce.
type ConditionKind int

const (
	CondNone ConditionKind = iota
	CondAbsent
	CondExists
	CondVersion
)

// Condition is a precondition evaluated atomically with a write.
type Condition struct {
	kind    ConditionKind
	version int64
}

var (
	// Always applies the write unconditionally.
	Always = Condition{kind: CondNone}
	// IfAbsent applies the write only when no item exists for the key.
	IfAbsent = Condition{kind: CondAbsent}
	// IfExists applies the write only when an item exists for the key.
	IfExists = Condition{kind: CondExists}
)

// IfVersion applies the write only when the stored item exists and carries
// exactly version v.
func IfVersion(v int64) Condition {
	return Condition{kind: CondVersion, version: v}
}

// Kind reports the kind of precondition.
func (c Condition) Kind() ConditionKind { return c.kind }

// Version reports the expected version for CondVersion conditions.
func (c Condition) Version() int64 { return c.version }

// Holds evaluates the condition against the currently stored item, which is
// nil when the key is absent. Backends that cannot push conditions down to
// the store evaluate them with Holds inside their own transaction.
func (c Condition) Holds(stored *Item) bool {
	switch c.kind {
	case CondAbsent:
		return stored == nil
	case CondExists:
		return stored != nil
	case CondVersion:
		return stored != nil && stored.Version == c.version
	default:
		return true
	}
}

// Query selects items from a secondary index.
type Query struct {
	Index string
	Key   string
	// Status, when set, keeps only items whose status equals it. The filter
	// is applied before Limit.
	Status string
	// Limit caps the result size; zero or negative means no cap.
	Limit int
	// Ascending returns oldest first. The default is newest first.
	Ascending bool
}

// HashKey returns the index hash value of it for the query's index.
func (q Query) HashKey(it Item) (string, error) {
	switch q.Index {
	case IndexStatus:
		return it.Status, nil
	case IndexCategory:
		return it.Category, nil
	default:
		return "", ErrUnknownIndex
	}
}

// Match reports whether it belongs in the query result, ignoring Limit.
func (q Query) Match(it Item) bool {
	h, err := q.HashKey(it)
	if err != nil || h == "" || h != q.Key {
		return false
	}
	if q.Status != "" && it.Status != q.Status {
		return false
	}
	return true
}

// Less orders two items within an index: by OrderKey, then by PK. The
// comparison is reversed unless the query is ascending.
func (q Query) Less(a, b Item) bool {
	if a.OrderKey != b.OrderKey {
		if q.Ascending {
			return a.OrderKey < b.OrderKey
		}
		return a.OrderKey > b.OrderKey
	}
	if q.Ascending {
		return a.PK < b.PK
	}
	return a.PK > b.PK
}

// Apply filters, orders and limits items according to the query. Backends
// without native index support build their results with it.
func (q Query) Apply(items []Item) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if q.Match(it) {
			out = append(out, it)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return q.Less(out[i], out[j]) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

// Validate rejects queries on unknown indexes or without a key.
func (q Query) Validate() error {
	if q.Index != IndexStatus && q.Index != IndexCategory {
		return ErrUnknownIndex
	}
	if strings.TrimSpace(q.Key) == "" {
		return errors.New("query key is required")
	}
	return nil
}

// Table is the single-table store used by the content repository.
type Table interface {
	Get(ctx context.Context, pk, sk string) (*Item, error)
	Put(ctx context.Context, item Item, cond Condition) error
	Delete(ctx context.Context, pk, sk string, cond Condition) error
	Query(ctx context.Context, q Query) ([]Item, error)
	Scan(ctx context.Context, pkPrefix string) ([]Item, error)
	Close() error
}
