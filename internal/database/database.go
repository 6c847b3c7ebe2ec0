// Package database centralises sqlx connection helpers.  The default driver
// is go-sql-driver/mysql, which also works with MariaDB.  SQLite (the engine
// the bot shipped with originally) and PostgreSQL are available through the
// same entry point; the store package picks its SQL dialect from the driver
// name.
//
// Public entry points:
//
//	Open(ctx, driver, dsn)                   – pool sizes chosen per driver.
//	OpenWithOptions(ctx, driver, dsn, opts)  – fine-grained control.
//
// Both helpers Ping the database before returning so callers can fail fast
// during bootstrap.  Callers should Close() the returned *sqlx.DB when no
// longer needed.
package database

import (
	"context"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Options tunes the connection pool.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	PingTimeout     time.Duration
}

// DefaultOptions returns 15 max open, 5 idle, and a 30-minute lifetime.
// SQLite gets a single connection so concurrent writers queue in the pool
// instead of failing with SQLITE_BUSY.
func DefaultOptions(driver string) Options {
	o := Options{
		MaxOpenConns:    15,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		PingTimeout:     5 * time.Second,
	}
	if driver == "sqlite3" {
		o.MaxOpenConns, o.MaxIdleConns = 1, 1
	}
	return o
}

// Open returns a pinged *sqlx.DB with DefaultOptions(driver).
func Open(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	return OpenWithOptions(ctx, driver, dsn, DefaultOptions(driver))
}

// OpenWithOptions lets callers tune the pool.
func OpenWithOptions(ctx context.Context, driver, dsn string, o Options) (*sqlx.DB, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	db.SetMaxOpenConns(o.MaxOpenConns)
	db.SetMaxIdleConns(o.MaxIdleConns)
	db.SetConnMaxLifetime(o.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, o.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return db, nil
}
