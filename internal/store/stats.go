package store

import (
	"context"
	"fmt"
)

// Stats collects the admin dashboard aggregate.  User counts cover active
// users only; click totals cover every user, because a click handed out
// before a user blocked the bot still happened.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats

	if err := s.db.GetContext(ctx, &st.TotalActive,
		`SELECT COUNT(*) FROM users WHERE is_active = TRUE`); err != nil {
		return st, fmt.Errorf("stats total: %w", err)
	}

	if err := s.db.SelectContext(ctx, &st.ByRegion,
		`SELECT region, COUNT(*) AS n
		   FROM users
		  WHERE is_active = TRUE AND region IS NOT NULL
		  GROUP BY region
		  ORDER BY region`); err != nil {
		return st, fmt.Errorf("stats by region: %w", err)
	}

	if err := s.db.SelectContext(ctx, &st.ClicksByRegion,
		`SELECT region, SUM(link_clicks) AS n
		   FROM users
		  WHERE link_clicks > 0 AND region IS NOT NULL
		  GROUP BY region
		  ORDER BY region`); err != nil {
		return st, fmt.Errorf("stats clicks by region: %w", err)
	}

	if err := s.db.GetContext(ctx, &st.TotalClicks,
		`SELECT COALESCE(SUM(link_clicks), 0) FROM users`); err != nil {
		return st, fmt.Errorf("stats total clicks: %w", err)
	}
	return st, nil
}
