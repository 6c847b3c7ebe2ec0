// internal/store/store.go
//
// Repository for users and region destinations.
//
// Context
// -------
// The bot persists two tables:
//
//	users        (user_id PK, username, region, joined_at, completed_steps,
//	              link_clicks, is_active)
//	destinations (region PK, url)
//
// Every operation is one parameterised statement (or one short transaction)
// so updates are atomic per record under concurrent access from different
// users.  Queries are written with `?` placeholders and passed through
// sqlx.Rebind, so the same text runs on MySQL, SQLite, and PostgreSQL.
// Only the DDL, upsert, and seed statements differ per dialect.
//
// Notes
// -----
// • `Destination` never reports a missing key; it falls back to DEFAULT.
// • `SetDestination` never creates a key; it returns ErrRegionNotFound.
// • Users are never deleted, only deactivated.
package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

// DefaultRegion is the fallback destination key.
const DefaultRegion = "DEFAULT"

var (
	// ErrRegionNotFound is returned by SetDestination for unknown keys.
	ErrRegionNotFound = errors.New("region not found")
	// ErrNoDefault means the DEFAULT destination is missing; Migrate was
	// never run against this database.
	ErrNoDefault = errors.New("default destination missing")
)

// User mirrors one row of the users table.
type User struct {
	ID             int64          `db:"user_id"`
	Username       sql.NullString `db:"username"`
	Region         sql.NullString `db:"region"`
	JoinedAt       time.Time      `db:"joined_at"`
	CompletedSteps int            `db:"completed_steps"`
	LinkClicks     int            `db:"link_clicks"`
	Active         bool           `db:"is_active"`
}

// RegionCount is one row of a GROUP BY region aggregate.
type RegionCount struct {
	Region string `db:"region"`
	Count  int64  `db:"n"`
}

// Stats is the admin dashboard aggregate.
type Stats struct {
	TotalActive    int64
	ByRegion       []RegionCount
	ClicksByRegion []RegionCount
	TotalClicks    int64
}

// Store wraps a *sqlx.DB.  Safe for concurrent use.
type Store struct {
	db      *sqlx.DB
	dialect dialect
	now     func() time.Time
}

// New picks the SQL dialect from db.DriverName().
func New(db *sqlx.DB) *Store {
	return &Store{
		db:      db,
		dialect: dialectFor(db.DriverName()),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// q rebinds placeholders for the underlying driver.
func (s *Store) q(query string) string { return s.db.Rebind(query) }
