// Package database centralises sqlx connection helpers for the SQL document
// store.  Two drivers are linked in: go-sql-driver/mysql for MySQL and
// MariaDB, and modernc.org/sqlite for single-file or in-memory databases.
//
// Public entry points:
//
//	Open(driver, dsn)                              quick helper with conservative pool sizes.
//	OpenWithOptions(driver, dsn, maxOpen, maxIdle) fine-grained control.
//
// Both helpers Ping the database before returning so callers can fail fast
// during bootstrap.  Callers should Close() the returned *sqlx.DB when no
// longer needed.
package database

import (
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Driver names accepted by Open.
const (
	MySQL  = "mysql"
	SQLite = "sqlite"
)

// Open returns a *sqlx.DB with sane defaults: 15 max open, 5 idle, and a
// 30-minute connection lifetime.
func Open(driver, dsn string) (*sqlx.DB, error) {
	return OpenWithOptions(driver, dsn, 15, 5)
}

// OpenWithOptions lets callers tune maxOpen and maxIdle.  SQLite is pinned
// to one long-lived connection so ":memory:" databases survive and writers
// never contend for the file lock.
func OpenWithOptions(driver, dsn string, maxOpen, maxIdle int) (*sqlx.DB, error) {
	lifetime := 30 * time.Minute
	switch driver {
	case MySQL:
	case SQLite:
		maxOpen, maxIdle, lifetime = 1, 1, 0
	default:
		return nil, fmt.Errorf("database: unsupported driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(lifetime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
