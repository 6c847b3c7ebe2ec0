// internal/acl/allowlist.go
//
// Identity allow-list for the admin surface.
//
// Context
// -------
// Operators are a fixed set of platform user ids from configuration.  The
// list is built once and never mutated, so lookups need no locking.
//
// The router stamps the caller's id into the context with auth.WithCaller;
// Require reads it back the same way the HTTP middleware of a web app would
// read a session user.  A caller that is not on the list is dropped
// silently: the admin surface must not reveal that it exists.
package acl

import (
	"context"

	"go.uber.org/zap"

	"github.com/yanizio/geofunnel/internal/auth"
)

// Allowlist is an immutable set of user ids.
type Allowlist struct {
	ids map[int64]struct{}
}

// New builds an Allowlist.
func New(ids []int64) *Allowlist {
	m := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return &Allowlist{ids: m}
}

// Allowed reports whether id is an operator.
func (a *Allowlist) Allowed(id int64) bool {
	if a == nil {
		return false
	}
	_, ok := a.ids[id]
	return ok
}

// AllowedCtx reports whether the user stamped into ctx is an operator.
func (a *Allowlist) AllowedCtx(ctx context.Context) bool {
	id, ok := auth.UserID(ctx)
	return ok && a.Allowed(id)
}

// Len reports how many operators are configured.
func (a *Allowlist) Len() int {
	if a == nil {
		return 0
	}
	return len(a.ids)
}

// HandlerFunc is an admin action bound to a caller context.
type HandlerFunc func(ctx context.Context) error

// Require wraps next so it only runs for operators.  Everyone else gets a
// nil error and no side effects.
func (a *Allowlist) Require(next HandlerFunc) HandlerFunc {
	return func(ctx context.Context) error {
		if !a.AllowedCtx(ctx) {
			id, _ := auth.UserID(ctx)
			zap.L().Debug("acl: admin action denied", zap.Int64("user_id", id))
			return nil
		}
		return next(ctx)
	}
}
