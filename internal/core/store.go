// internal/core/store.go
//
// Store selection.
//
// OpenStore turns the `store` config section into a live store.Store:
//
//   memory   in-process maps, nothing to dial
//   sqlite   sqlx + modernc.org/sqlite; the documents table is migrated
//   mysql    sqlx + go-sql-driver/mysql; the documents table is migrated
//   mongo    mongo-driver v2 against store.database
//
// Callers own the returned store and must Close it.

package core

import (
	"context"
	"fmt"

	"github.com/yanizio/relay/internal/config"
	"github.com/yanizio/relay/internal/database"
	"github.com/yanizio/relay/internal/store"
	"github.com/yanizio/relay/internal/store/memory"
	"github.com/yanizio/relay/internal/store/mongostore"
	"github.com/yanizio/relay/internal/store/sqlstore"
)

// OpenStore dials the configured backend.
func OpenStore(ctx context.Context, c config.Store) (store.Store, error) {
	switch c.Driver {
	case "", "memory":
		return memory.New(), nil
	case database.SQLite, database.MySQL:
		db, err := database.Open(c.Driver, c.DSN)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", c.Driver, err)
		}
		s := sqlstore.New(db, c.Driver)
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	case "mongo":
		s, err := mongostore.Connect(ctx, c.DSN, c.Database)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", c.Driver)
	}
}
