// internal/router/router.go
//
// Event routing.
//
// Context
// -------
// Every translated update lands here on its own goroutine.  The router
// stamps the caller into the context, acknowledges button presses, and
// hands the event to exactly one of the two state machines:
//
//   /start, mini-app data, next_step, open_platform  → funnel
//   /admin, /cancel, admin_* buttons                  → admin
//   free text                                         → admin when a prompt
//                                                       is open, else ignored
//
// Commands always win over a pending admin prompt, so an operator can
// /cancel or reopen the panel at any point.  Handler errors are logged here
// and never propagate further.
package router

import (
	"context"

	"go.uber.org/zap"

	"github.com/yanizio/geofunnel/internal/auth"
	"github.com/yanizio/geofunnel/internal/event"
)

// Funnel is the visitor state machine.
type Funnel interface {
	Start(ctx context.Context, ev event.Event) error
	Verify(ctx context.Context, ev event.Event) error
	Proceed(ctx context.Context, ev event.Event) error
	Complete(ctx context.Context, ev event.Event) error
}

// Admin is the operator surface.
type Admin interface {
	Panel(ctx context.Context, ev event.Event) error
	ShowStats(ctx context.Context, ev event.Event) error
	BeginSetLink(ctx context.Context, ev event.Event) error
	BeginBroadcast(ctx context.Context, ev event.Event) error
	Cancel(ctx context.Context, ev event.Event) error
	HandleText(ctx context.Context, ev event.Event) error
	Pending(id int64) bool
}

// Acker acknowledges callback queries.
type Acker interface {
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

type handler func(context.Context, event.Event) error

// Router dispatches events.  It implements telegram.Dispatcher.
type Router struct {
	funnel Funnel
	admin  Admin
	ack    Acker
	log    *zap.Logger

	callbacks map[string]handler
	commands  map[string]handler
}

// New builds a Router.
func New(f Funnel, a Admin, ack Acker, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{
		funnel: f,
		admin:  a,
		ack:    ack,
		log:    log.Named("router"),
		callbacks: map[string]handler{
			event.NextStep:       f.Proceed,
			event.OpenPlatform:   f.Complete,
			event.AdminStats:     a.ShowStats,
			event.AdminSetLink:   a.BeginSetLink,
			event.AdminBroadcast: a.BeginBroadcast,
		},
		commands: map[string]handler{
			"admin":  a.Panel,
			"cancel": a.Cancel,
		},
	}
}

// Dispatch routes ev.  It never returns an error; failures are logged.
func (r *Router) Dispatch(ctx context.Context, ev event.Event) {
	ctx = auth.WithCaller(ctx, auth.Caller{ID: ev.UserID, ChatID: ev.ChatID, Username: ev.Username})
	log := r.log.With(
		zap.Int64("update_id", ev.UpdateID),
		zap.Int64("user_id", ev.UserID),
		zap.Stringer("kind", ev.Kind))

	h := r.route(ctx, ev)
	if h == nil {
		log.Debug("event ignored", zap.String("data", ev.Data), zap.String("command", ev.Command))
		return
	}
	if err := h(ctx, ev); err != nil {
		log.Error("handler failed", zap.Error(err))
	}
}

func (r *Router) route(ctx context.Context, ev event.Event) handler {
	switch ev.Kind {
	case event.KindStart:
		return r.funnel.Start
	case event.KindWebApp:
		return r.funnel.Verify
	case event.KindCommand:
		if h, ok := r.commands[ev.Command]; ok {
			return h
		}
		return nil
	case event.KindCallback:
		if r.ack != nil {
			if err := r.ack.AnswerCallback(ctx, ev.CallbackID, ""); err != nil {
				r.log.Debug("answer callback", zap.Error(err))
			}
		}
		return r.callbacks[ev.Data]
	case event.KindText:
		if r.admin.Pending(ev.UserID) {
			return r.admin.HandleText
		}
		return nil
	default:
		return nil
	}
}
