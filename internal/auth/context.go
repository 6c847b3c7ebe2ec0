// internal/auth/context.go
//
// Caller identity carried through context.
//
// Usage
// -----
//     // Router: attach the sender of the current update.
//     ctx = auth.WithCaller(ctx, auth.Caller{ID: ev.UserID, ChatID: ev.ChatID})
//
//     // Downstream code retrieves it.
//     id, ok := auth.UserID(ctx)   // 123, true
//
// Notes
// -----
// • Identity comes from the chat platform, which authenticates users
//   itself.  There is no login or password handling in this service.

package auth

import "context"

// Caller is the platform identity behind one inbound update.
type Caller struct {
	ID       int64
	ChatID   int64
	Username string
}

type callerKey struct{}

// WithCaller returns a context carrying c.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// WithUser is WithCaller for a bare id.
func WithUser(ctx context.Context, userID int64) context.Context {
	return WithCaller(ctx, Caller{ID: userID, ChatID: userID})
}

// CallerFrom returns the Caller stored in ctx.
func CallerFrom(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	return c, ok
}

// UserID extracts the caller id.  It returns (0, false) when no caller is set.
func UserID(ctx context.Context) (int64, bool) {
	c, ok := CallerFrom(ctx)
	return c.ID, ok
}
