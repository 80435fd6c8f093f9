// Package memory is an in-process document store.  Documents are copied on
// the way in and out, so callers can never mutate stored state.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yanizio/relay/internal/store"
)

// Store holds every collection in maps guarded by one RWMutex.
type Store struct {
	mu    sync.RWMutex
	colls map[string]map[string]store.Document
	now   func() time.Time
}

var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{colls: map[string]map[string]store.Document{}, now: time.Now}
}

// Collection returns a handle; collections spring into existence on write.
func (s *Store) Collection(name string) store.Collection {
	return &collection{s: s, name: name}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() error { return nil }

type collection struct {
	s    *Store
	name string
}

func clone(d store.Document) store.Document {
	out := make(store.Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// docs returns the collection map, creating it when write is true.  Caller
// holds the lock.
func (c *collection) docs(write bool) map[string]store.Document {
	m := c.s.colls[c.name]
	if m == nil && write {
		m = map[string]store.Document{}
		c.s.colls[c.name] = m
	}
	return m
}

func (c *collection) Create(_ context.Context, doc store.Document) (store.Document, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	d := store.Stamp(doc, uuid.NewString(), c.s.now())
	c.docs(true)[d.ID()] = d
	return clone(d), nil
}

func (c *collection) InsertMany(ctx context.Context, docs []store.Document) (int, error) {
	for i, d := range docs {
		if _, err := c.Create(ctx, d); err != nil {
			return i, err
		}
	}
	return len(docs), nil
}

func (c *collection) Find(_ context.Context, f store.Filter) ([]store.Document, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	var out []store.Document
	for _, d := range c.docs(false) {
		if store.Matches(d, f) {
			out = append(out, clone(d))
		}
	}
	// Insertion order is not tracked; creation time then id is stable.
	sort.Slice(out, func(i, j int) bool {
		ci, _ := out[i][store.KeyCreatedAt].(string)
		cj, _ := out[j][store.KeyCreatedAt].(string)
		if ci != cj {
			return ci < cj
		}
		return out[i].ID() < out[j].ID()
	})
	return out, nil
}

func (c *collection) FindByID(_ context.Context, id string) (store.Document, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	d, ok := c.docs(false)[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return clone(d), nil
}

func (c *collection) Update(_ context.Context, id string, patch store.Document) (store.Document, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	m := c.docs(false)
	d, ok := m[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	nd := store.Merge(d, patch, c.s.now())
	m[id] = nd
	return clone(nd), nil
}

func (c *collection) Delete(_ context.Context, id string) (store.Document, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	m := c.docs(false)
	d, ok := m[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	delete(m, id)
	return d, nil
}

func (c *collection) DeleteMany(_ context.Context, f store.Filter) (int, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	n := 0
	m := c.docs(false)
	for id, d := range m {
		if store.Matches(d, f) {
			delete(m, id)
			n++
		}
	}
	return n, nil
}
