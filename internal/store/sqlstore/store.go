// internal/store/sqlstore/store.go
//
// SQL document store (MySQL or SQLite through sqlx).
//
// Context
// -------
// Every collection shares one `documents` table keyed by (collection, id).
// The document itself is stored as JSON text; timestamps are duplicated
// into columns so listings can order without decoding.  Filters are
// applied in Go after a per-collection scan, which is fine for the data
// sizes this service handles and keeps the SQL identical on both drivers.
//
// Workflow
// --------
//   1. database.Open(driver, dsn) provides the pool.
//   2. sqlstore.New(db, driver) wraps it; Migrate creates the table.
//   3. Update and Delete run read-then-write inside one transaction.
//
// Notes
// -----
// • Placeholders are `?`, which both drivers accept.
// • Oxford commas, two spaces after periods.

package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/yanizio/relay/internal/database"
	"github.com/yanizio/relay/internal/store"
)

const (
	qInsert   = `INSERT INTO documents (collection, id, body, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`
	qByID     = `SELECT body FROM documents WHERE collection = ? AND id = ?`
	qList     = `SELECT id, body FROM documents WHERE collection = ? ORDER BY created_at, id`
	qUpdate   = `UPDATE documents SET body = ?, updated_at = ? WHERE collection = ? AND id = ?`
	qDelete   = `DELETE FROM documents WHERE collection = ? AND id = ?`
	qDelColl  = `DELETE FROM documents WHERE collection = ?`
	schemaSQL = `CREATE TABLE IF NOT EXISTS documents (
	collection VARCHAR(64) NOT NULL,
	id         VARCHAR(36) NOT NULL,
	body       %s NOT NULL,
	created_at VARCHAR(40) NOT NULL,
	updated_at VARCHAR(40) NOT NULL,
	PRIMARY KEY (collection, id)
)`
)

// Store implements store.Store on a single SQL table.
type Store struct {
	db     *sqlx.DB
	driver string
	now    func() time.Time
	newID  func() string
}

var _ store.Store = (*Store)(nil)

// New wraps db.  driver selects the schema dialect.
func New(db *sqlx.DB, driver string) *Store {
	return &Store{db: db, driver: driver, now: time.Now, newID: uuid.NewString}
}

// Migrate creates the documents table when missing.
func (s *Store) Migrate(ctx context.Context) error {
	bodyType := "TEXT"
	if s.driver == database.MySQL {
		bodyType = "LONGTEXT"
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(schemaSQL, bodyType)); err != nil {
		return fmt.Errorf("sqlstore: migrate: %w", err)
	}
	return nil
}

// Collection returns a handle for name.
func (s *Store) Collection(name string) store.Collection {
	return &collection{s: s, name: name}
}

// Ping checks the pool.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Close closes the pool.
func (s *Store) Close() error { return s.db.Close() }

type collection struct {
	s    *Store
	name string
}

func decode(raw string) (store.Document, error) {
	var d store.Document
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, fmt.Errorf("sqlstore: decode document: %w", err)
	}
	return d, nil
}

func (c *collection) Create(ctx context.Context, doc store.Document) (store.Document, error) {
	d := store.Stamp(doc, c.s.newID(), c.s.now())
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: encode document: %w", err)
	}
	if _, err := c.s.db.ExecContext(ctx, qInsert,
		c.name, d.ID(), string(raw), d[store.KeyCreatedAt], d[store.KeyUpdatedAt]); err != nil {
		return nil, fmt.Errorf("sqlstore: insert: %w", err)
	}
	return d, nil
}

func (c *collection) InsertMany(ctx context.Context, docs []store.Document) (int, error) {
	tx, err := c.s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, qInsert)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: prepare insert: %w", err)
	}
	defer stmt.Close()

	// All or nothing: any failure rolls back the earlier rows too.
	now := c.s.now()
	for _, doc := range docs {
		d := store.Stamp(doc, c.s.newID(), now)
		raw, err := json.Marshal(d)
		if err != nil {
			return 0, fmt.Errorf("sqlstore: encode document: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, c.name, d.ID(), string(raw),
			d[store.KeyCreatedAt], d[store.KeyUpdatedAt]); err != nil {
			return 0, fmt.Errorf("sqlstore: insert: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(docs), nil
}

type row struct {
	ID   string `db:"id"`
	Body string `db:"body"`
}

func (c *collection) Find(ctx context.Context, f store.Filter) ([]store.Document, error) {
	var rows []row
	if err := c.s.db.SelectContext(ctx, &rows, qList, c.name); err != nil {
		return nil, fmt.Errorf("sqlstore: list: %w", err)
	}
	out := make([]store.Document, 0, len(rows))
	for _, r := range rows {
		d, err := decode(r.Body)
		if err != nil {
			return nil, err
		}
		if store.Matches(d, f) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (c *collection) FindByID(ctx context.Context, id string) (store.Document, error) {
	return c.byID(ctx, c.s.db, id)
}

func (c *collection) byID(ctx context.Context, q sqlx.QueryerContext, id string) (store.Document, error) {
	var body string
	err := sqlx.GetContext(ctx, q, &body, qByID, c.name, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: get: %w", err)
	}
	return decode(body)
}

func (c *collection) Update(ctx context.Context, id string, patch store.Document) (store.Document, error) {
	tx, err := c.s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	cur, err := c.byID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	nd := store.Merge(cur, patch, c.s.now())
	raw, err := json.Marshal(nd)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: encode document: %w", err)
	}
	if _, err := tx.ExecContext(ctx, qUpdate, string(raw), nd[store.KeyUpdatedAt], c.name, id); err != nil {
		return nil, fmt.Errorf("sqlstore: update: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return nd, nil
}

func (c *collection) Delete(ctx context.Context, id string) (store.Document, error) {
	tx, err := c.s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	cur, err := c.byID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, qDelete, c.name, id); err != nil {
		return nil, fmt.Errorf("sqlstore: delete: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return cur, nil
}

func (c *collection) DeleteMany(ctx context.Context, f store.Filter) (int, error) {
	if len(f) == 0 {
		res, err := c.s.db.ExecContext(ctx, qDelColl, c.name)
		if err != nil {
			return 0, fmt.Errorf("sqlstore: delete all: %w", err)
		}
		n, _ := res.RowsAffected()
		return int(n), nil
	}

	docs, err := c.Find(ctx, f)
	if err != nil {
		return 0, err
	}
	tx, err := c.s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	for _, d := range docs {
		if _, err := tx.ExecContext(ctx, qDelete, c.name, d.ID()); err != nil {
			return 0, fmt.Errorf("sqlstore: delete: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(docs), nil
}
