package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Destination returns the URL for region, falling back to DEFAULT when the
// region has no row.  An error means storage failed or DEFAULT is missing.
func (s *Store) Destination(ctx context.Context, region string) (string, error) {
	const q = `SELECT url FROM destinations WHERE region = ?`

	var url string
	err := s.db.GetContext(ctx, &url, s.q(q), region)
	if err == nil {
		return url, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("destination %s: %w", region, err)
	}
	if region == DefaultRegion {
		return "", ErrNoDefault
	}

	err = s.db.GetContext(ctx, &url, s.q(q), DefaultRegion)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoDefault
	}
	if err != nil {
		return "", fmt.Errorf("destination %s: %w", DefaultRegion, err)
	}
	return url, nil
}

// SetDestination replaces the URL of an existing region.  Unknown regions
// yield ErrRegionNotFound and the table is left unchanged.
func (s *Store) SetDestination(ctx context.Context, region, url string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("set destination %s: %w", region, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	var n int
	if err := tx.GetContext(ctx, &n,
		s.q(`SELECT COUNT(*) FROM destinations WHERE region = ?`), region); err != nil {
		return fmt.Errorf("set destination %s: %w", region, err)
	}
	if n == 0 {
		return ErrRegionNotFound
	}

	if _, err := tx.ExecContext(ctx,
		s.q(`UPDATE destinations SET url = ? WHERE region = ?`), url, region); err != nil {
		return fmt.Errorf("set destination %s: %w", region, err)
	}
	return tx.Commit()
}

// Destinations lists every mapping, ordered by region.
func (s *Store) Destinations(ctx context.Context) (map[string]string, error) {
	const q = `SELECT region, url FROM destinations ORDER BY region`
	rows, err := s.db.QueryxContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("destinations: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string, 4)
	for rows.Next() {
		var region, url string
		if err := rows.Scan(&region, &url); err != nil {
			return nil, err
		}
		out[region] = url
	}
	return out, rows.Err()
}
