// internal/store/schema.go
//
// Dialect-specific DDL, upsert, and seed statements plus Migrate.

package store

import (
	"context"
	"fmt"
	"sort"
)

type dialect int

const (
	dialectMySQL dialect = iota
	// dialectANSI covers SQLite and PostgreSQL, which share ON CONFLICT.
	dialectANSI
)

func dialectFor(driver string) dialect {
	if driver == "mysql" {
		return dialectMySQL
	}
	return dialectANSI
}

var ddl = map[dialect][]string{
	dialectMySQL: {
		`CREATE TABLE IF NOT EXISTS users (
		    user_id         BIGINT       NOT NULL PRIMARY KEY,
		    username        VARCHAR(64)  NULL,
		    region          VARCHAR(16)  NULL,
		    joined_at       DATETIME     NOT NULL,
		    completed_steps INT          NOT NULL DEFAULT 0,
		    link_clicks     INT          NOT NULL DEFAULT 0,
		    is_active       BOOLEAN      NOT NULL DEFAULT TRUE
		)`,
		`CREATE TABLE IF NOT EXISTS destinations (
		    region VARCHAR(16) NOT NULL PRIMARY KEY,
		    url    TEXT        NOT NULL
		)`,
	},
	dialectANSI: {
		`CREATE TABLE IF NOT EXISTS users (
		    user_id         BIGINT      NOT NULL PRIMARY KEY,
		    username        VARCHAR(64) NULL,
		    region          VARCHAR(16) NULL,
		    joined_at       TIMESTAMP   NOT NULL,
		    completed_steps INTEGER     NOT NULL DEFAULT 0,
		    link_clicks     INTEGER     NOT NULL DEFAULT 0,
		    is_active       BOOLEAN     NOT NULL DEFAULT TRUE
		)`,
		`CREATE TABLE IF NOT EXISTS destinations (
		    region VARCHAR(16) NOT NULL PRIMARY KEY,
		    url    TEXT        NOT NULL
		)`,
	},
}

var upsertUser = map[dialect]string{
	dialectMySQL: `INSERT INTO users (user_id, username, region, joined_at)
	               VALUES (?, ?, ?, ?)
	               ON DUPLICATE KEY UPDATE region = VALUES(region), is_active = TRUE`,
	dialectANSI: `INSERT INTO users (user_id, username, region, joined_at)
	              VALUES (?, ?, ?, ?)
	              ON CONFLICT (user_id) DO UPDATE SET region = excluded.region, is_active = TRUE`,
}

var seedDestination = map[dialect]string{
	dialectMySQL: `INSERT IGNORE INTO destinations (region, url) VALUES (?, ?)`,
	dialectANSI:  `INSERT INTO destinations (region, url) VALUES (?, ?) ON CONFLICT (region) DO NOTHING`,
}

// Migrate creates both tables and inserts any seed destination that is not
// already present.  Existing URLs are never overwritten, so operator edits
// survive restarts.  seeds must contain DEFAULT.
func (s *Store) Migrate(ctx context.Context, seeds map[string]string) error {
	if _, ok := seeds[DefaultRegion]; !ok {
		return fmt.Errorf("migrate: %w", ErrNoDefault)
	}

	for _, stmt := range ddl[s.dialect] {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate ddl: %w", err)
		}
	}

	// Sorted for deterministic statement order.
	keys := make([]string, 0, len(seeds))
	for k := range seeds {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	seed := s.q(seedDestination[s.dialect])
	for _, k := range keys {
		if _, err := s.db.ExecContext(ctx, seed, k, seeds[k]); err != nil {
			return fmt.Errorf("seed %s: %w", k, err)
		}
	}
	return nil
}
