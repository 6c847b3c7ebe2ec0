package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// UpsertUser creates the user on first verification.  On conflict it
// overwrites region and re-activates the user; join time and counters are
// kept.
func (s *Store) UpsertUser(ctx context.Context, id int64, handle, region string) error {
	username := sql.NullString{String: handle, Valid: handle != ""}
	_, err := s.db.ExecContext(ctx, s.q(upsertUser[s.dialect]), id, username, region, s.now())
	if err != nil {
		return fmt.Errorf("upsert user %d: %w", id, err)
	}
	return nil
}

// UserRegion returns the stored region, or ok == false when the user is
// unknown or has no region.
func (s *Store) UserRegion(ctx context.Context, id int64) (region string, ok bool, err error) {
	const q = `SELECT region FROM users WHERE user_id = ?`

	var got sql.NullString
	err = s.db.GetContext(ctx, &got, s.q(q), id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("user region %d: %w", id, err)
	}
	if !got.Valid || got.String == "" {
		return "", false, nil
	}
	return got.String, true, nil
}

// User fetches a full row.  Returns sql.ErrNoRows (wrapped) when absent.
func (s *Store) User(ctx context.Context, id int64) (*User, error) {
	const q = `SELECT user_id, username, region, joined_at, completed_steps,
	                  link_clicks, is_active
	             FROM users
	            WHERE user_id = ?`
	var u User
	if err := s.db.GetContext(ctx, &u, s.q(q), id); err != nil {
		return nil, fmt.Errorf("user %d: %w", id, err)
	}
	return &u, nil
}

// RecordProgress raises completed_steps to steps.  It never lowers the
// counter, so a replayed or out-of-order call is harmless.
func (s *Store) RecordProgress(ctx context.Context, id int64, steps int) error {
	const q = `UPDATE users SET completed_steps = ?
	            WHERE user_id = ? AND completed_steps < ?`
	if _, err := s.db.ExecContext(ctx, s.q(q), steps, id, steps); err != nil {
		return fmt.Errorf("record progress %d: %w", id, err)
	}
	return nil
}

// IncrementClicks bumps the final-link counter for one user.
func (s *Store) IncrementClicks(ctx context.Context, id int64) error {
	const q = `UPDATE users SET link_clicks = link_clicks + 1 WHERE user_id = ?`
	if _, err := s.db.ExecContext(ctx, s.q(q), id); err != nil {
		return fmt.Errorf("increment clicks %d: %w", id, err)
	}
	return nil
}

// ActiveIDs lists every active user id, ordered for stable broadcasts.
func (s *Store) ActiveIDs(ctx context.Context) ([]int64, error) {
	const q = `SELECT user_id FROM users WHERE is_active = TRUE ORDER BY user_id`
	ids := make([]int64, 0, 64)
	if err := s.db.SelectContext(ctx, &ids, q); err != nil {
		return nil, fmt.Errorf("active ids: %w", err)
	}
	return ids, nil
}

// Deactivate marks a user inactive.  The row and its history are kept.
func (s *Store) Deactivate(ctx context.Context, id int64) error {
	const q = `UPDATE users SET is_active = FALSE WHERE user_id = ?`
	if _, err := s.db.ExecContext(ctx, s.q(q), id); err != nil {
		return fmt.Errorf("deactivate %d: %w", id, err)
	}
	return nil
}
