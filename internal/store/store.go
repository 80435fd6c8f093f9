// internal/store/store.go
//
// Document store contract.
//
// Context
// -------
// Handlers persist schemaless JSON-style documents grouped into named
// collections.  Three backends satisfy the same contract:
//
//   • memory       in-process maps, used by tests and the default config
//   • sqlstore     one `documents` table on MySQL or SQLite via sqlx
//   • mongostore   native collections on MongoDB
//
// Every backend assigns the "id" key on Create and maintains "createdAt"
// and "updatedAt" timestamps.  A lookup, update, or delete of an id that
// does not exist (including a malformed id) returns ErrNotFound, every
// time, so a deleted record keeps answering the same way.
//
// Notes
// -----
// • Filters are equality matches on top-level keys.  Numeric values compare
//   by value regardless of Go type.
// • Oxford commas, two spaces after periods.

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no document matches.
var ErrNotFound = errors.New("store: document not found")

// Reserved document keys.
const (
	KeyID        = "id"
	KeyCreatedAt = "createdAt"
	KeyUpdatedAt = "updatedAt"
)

// Document is one stored record.
type Document map[string]any

// ID returns the document id or "".
func (d Document) ID() string {
	s, _ := d[KeyID].(string)
	return s
}

// Filter matches documents whose keys equal the given values.
type Filter map[string]any

// Collection is a named group of documents.
type Collection interface {
	Create(ctx context.Context, doc Document) (Document, error)
	InsertMany(ctx context.Context, docs []Document) (int, error)
	Find(ctx context.Context, f Filter) ([]Document, error)
	FindByID(ctx context.Context, id string) (Document, error)
	Update(ctx context.Context, id string, patch Document) (Document, error)
	Delete(ctx context.Context, id string) (Document, error)
	DeleteMany(ctx context.Context, f Filter) (int, error)
}

// Store opens collections.
type Store interface {
	Collection(name string) Collection
	Ping(ctx context.Context) error
	Close() error
}

// GroupSpec describes a match-then-group aggregation:
//
//	match   docs where MatchField > MatchAbove
//	group   by GroupField, counting and averaging AvgField
//	sort    by count descending, then key ascending
type GroupSpec struct {
	MatchField string
	MatchAbove float64
	GroupField string
	AvgField   string
}

// Group is one aggregation bucket.
type Group struct {
	Key   string  `json:"_id" bson:"_id"`
	Count int     `json:"totalUsers" bson:"count"`
	Avg   float64 `json:"avgAge" bson:"avg"`
}

// Aggregator is implemented by stores that can group server-side.
type Aggregator interface {
	GroupBy(ctx context.Context, collection string, spec GroupSpec) ([]Group, error)
}

// Indexer is implemented by stores that can build secondary indexes.
type Indexer interface {
	EnsureIndex(ctx context.Context, collection, field string) (string, error)
}

// GroupBy runs spec on s, pushing it down when s is an Aggregator and
// grouping fetched documents otherwise.
func GroupBy(ctx context.Context, s Store, collection string, spec GroupSpec) ([]Group, error) {
	if a, ok := s.(Aggregator); ok {
		return a.GroupBy(ctx, collection, spec)
	}
	docs, err := s.Collection(collection).Find(ctx, nil)
	if err != nil {
		return nil, err
	}
	return GroupDocuments(docs, spec), nil
}

// Stamp sets the id and both timestamps on a new document.
func Stamp(doc Document, id string, now time.Time) Document {
	out := make(Document, len(doc)+3)
	for k, v := range doc {
		out[k] = v
	}
	out[KeyID] = id
	ts := now.UTC().Format(time.RFC3339Nano)
	out[KeyCreatedAt] = ts
	out[KeyUpdatedAt] = ts
	return out
}

// Merge applies patch to doc, leaving reserved keys alone except
// updatedAt.
func Merge(doc, patch Document, now time.Time) Document {
	out := make(Document, len(doc)+len(patch))
	for k, v := range doc {
		out[k] = v
	}
	for k, v := range patch {
		if k == KeyID || k == KeyCreatedAt || k == KeyUpdatedAt {
			continue
		}
		out[k] = v
	}
	out[KeyUpdatedAt] = now.UTC().Format(time.RFC3339Nano)
	return out
}
