// internal/admin/admin.go
//
// Admin command surface.
//
// Context
// -------
// Operators reach this surface through /admin, /cancel, the three panel
// buttons, and free text while a prompt is pending.  Every entry point is
// wrapped by the acl allow-list; callers who are not operators get no
// reply at all.
//
// Flows
// -----
//   stats      – one-shot, renders Repository.Stats.
//   set link   – region prompt → URL prompt → links.Update.
//   broadcast  – payload prompt → Dispatcher over ActiveIDs.
//
// The broadcast itself runs on a background goroutine bound to the
// service lifetime, not to the webhook request, so the platform gets its
// 200 immediately.  Wait blocks until running broadcasts finish.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/yanizio/geofunnel/internal/acl"
	"github.com/yanizio/geofunnel/internal/auth"
	"github.com/yanizio/geofunnel/internal/broadcast"
	"github.com/yanizio/geofunnel/internal/config"
	"github.com/yanizio/geofunnel/internal/event"
	"github.com/yanizio/geofunnel/internal/links"
	"github.com/yanizio/geofunnel/internal/message"
	"github.com/yanizio/geofunnel/internal/session"
	"github.com/yanizio/geofunnel/internal/store"
)

// Repository is the read side the surface needs.
type Repository interface {
	Stats(ctx context.Context) (store.Stats, error)
	ActiveIDs(ctx context.Context) ([]int64, error)
}

// LinkUpdater applies destination changes.
type LinkUpdater interface {
	Update(ctx context.Context, region, url string) error
}

// Broadcaster runs one fan-out.
type Broadcaster interface {
	Broadcast(ctx context.Context, src broadcast.Source, recipients []int64) broadcast.Report
}

// Deps wires a Surface.
type Deps struct {
	ACL         *acl.Allowlist
	Repo        Repository
	Links       LinkUpdater
	Broadcaster Broadcaster
	Flows       *session.Table[Pending]
	Out         message.Sender
	Lifetime    context.Context // parent of background broadcasts; nil means Background
	Log         *zap.Logger
}

// Surface implements the admin commands.
type Surface struct {
	acl   *acl.Allowlist
	repo  Repository
	links LinkUpdater
	bc    Broadcaster
	flows *session.Table[Pending]
	out   message.Sender
	life  context.Context
	log   *zap.Logger

	wg sync.WaitGroup
}

// New builds a Surface.
func New(d Deps) *Surface {
	life := d.Lifetime
	if life == nil {
		life = context.Background()
	}
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Surface{
		acl:   d.ACL,
		repo:  d.Repo,
		links: d.Links,
		bc:    d.Broadcaster,
		flows: d.Flows,
		out:   d.Out,
		life:  life,
		log:   log.Named("admin"),
	}
}

// Pending reports whether id has an open prompt.
func (s *Surface) Pending(id int64) bool {
	p, ok := s.flows.Get(id)
	return ok && p.Flow != FlowNone
}

// Wait blocks until background broadcasts complete.
func (s *Surface) Wait() { s.wg.Wait() }

/*──────────────────────────── entry points ──────────────────────────────────*/

// Panel shows the three admin buttons.
func (s *Surface) Panel(ctx context.Context, ev event.Event) error {
	return s.guard(ctx, ev, func(ctx context.Context) error {
		return s.send(ctx, message.Reply{
			ChatID: ev.ChatID,
			Text:   "Admin panel:",
			Buttons: []message.Button{
				{Label: "📊 Statistics", Callback: event.AdminStats},
				{Label: "✏️ Change link", Callback: event.AdminSetLink},
				{Label: "📢 Broadcast", Callback: event.AdminBroadcast},
			},
		})
	})
}

// ShowStats renders aggregate stats.
func (s *Surface) ShowStats(ctx context.Context, ev event.Event) error {
	return s.guard(ctx, ev, func(ctx context.Context) error {
		st, err := s.repo.Stats(ctx)
		if err != nil {
			s.sendQuiet(ctx, message.Text(ev.ChatID, "❌ Could not load statistics. Check the logs."))
			return fmt.Errorf("admin stats: %w", err)
		}
		return s.send(ctx, message.Text(ev.ChatID, FormatStats(st)))
	})
}

// BeginSetLink opens the region prompt.
func (s *Surface) BeginSetLink(ctx context.Context, ev event.Event) error {
	return s.guard(ctx, ev, func(ctx context.Context) error {
		s.flows.Put(ev.UserID, Pending{Flow: FlowAwaitRegion})
		return s.send(ctx, message.Text(ev.ChatID, "Enter the region code (for example CA, ES, DEFAULT):"))
	})
}

// BeginBroadcast opens the payload prompt.
func (s *Surface) BeginBroadcast(ctx context.Context, ev event.Event) error {
	return s.guard(ctx, ev, func(ctx context.Context) error {
		s.flows.Put(ev.UserID, Pending{Flow: FlowAwaitBroadcast})
		return s.send(ctx, message.Text(ev.ChatID, "Send the message to broadcast to all users:"))
	})
}

// Cancel drops any open prompt.
func (s *Surface) Cancel(ctx context.Context, ev event.Event) error {
	return s.guard(ctx, ev, func(ctx context.Context) error {
		text := "Nothing to cancel."
		if s.Pending(ev.UserID) {
			text = "Cancelled."
		}
		s.flows.Delete(ev.UserID)
		return s.send(ctx, message.Text(ev.ChatID, text))
	})
}

// HandleText answers the open prompt with ev's message.
func (s *Surface) HandleText(ctx context.Context, ev event.Event) error {
	return s.guard(ctx, ev, func(ctx context.Context) error {
		p, ok := s.flows.Get(ev.UserID)
		if !ok {
			return nil
		}
		switch p.Flow {
		case FlowAwaitRegion:
			return s.answerRegion(ctx, ev)
		case FlowAwaitURL:
			return s.answerURL(ctx, ev, p.Region)
		case FlowAwaitBroadcast:
			return s.startBroadcast(ctx, ev)
		default:
			s.flows.Delete(ev.UserID)
			return nil
		}
	})
}

/*──────────────────────────── flow steps ────────────────────────────────────*/

func (s *Surface) answerRegion(ctx context.Context, ev event.Event) error {
	region := strings.ToUpper(strings.TrimSpace(ev.Text))
	if !config.IsRegion(region) {
		return s.send(ctx, message.Text(ev.ChatID,
			"That is not a region code.  Send two letters (for example ES) or DEFAULT:"))
	}
	s.flows.Put(ev.UserID, Pending{Flow: FlowAwaitURL, Region: region})
	return s.send(ctx, message.Text(ev.ChatID, fmt.Sprintf("Great.  Now send the new link for %s:", region)))
}

func (s *Surface) answerURL(ctx context.Context, ev event.Event, region string) error {
	err := s.links.Update(ctx, region, ev.Text)
	switch {
	case err == nil:
		s.flows.Delete(ev.UserID)
		s.log.Info("destination updated",
			zap.Int64("operator", ev.UserID),
			zap.String("region", region))
		return s.send(ctx, message.Text(ev.ChatID, fmt.Sprintf("✅ Link for %s updated.", region)))

	case errors.Is(err, links.ErrInvalidURL):
		// Keep the prompt open for another try.
		return s.send(ctx, message.Text(ev.ChatID,
			"❌ That is not a valid link.  Send a full URL such as https://example.com/ref, or /cancel."))

	case errors.Is(err, links.ErrNotFound):
		s.flows.Delete(ev.UserID)
		return s.send(ctx, message.Text(ev.ChatID,
			fmt.Sprintf("❌ Error: region %s is not in the database.  Only existing regions can be changed.", region)))

	default:
		s.flows.Delete(ev.UserID)
		s.sendQuiet(ctx, message.Text(ev.ChatID, "❌ Could not update the link.  Check the logs."))
		return fmt.Errorf("admin set link %s: %w", region, err)
	}
}

func (s *Surface) startBroadcast(ctx context.Context, ev event.Event) error {
	s.flows.Delete(ev.UserID)

	ids, err := s.repo.ActiveIDs(ctx)
	if err != nil {
		s.sendQuiet(ctx, message.Text(ev.ChatID, "❌ Could not load recipients.  Check the logs."))
		return fmt.Errorf("admin broadcast recipients: %w", err)
	}
	if err := s.send(ctx, message.Text(ev.ChatID, fmt.Sprintf("Starting broadcast for %d users...", len(ids)))); err != nil {
		s.log.Warn("broadcast notice", zap.Error(err))
	}

	src := broadcast.Source{ChatID: ev.ChatID, MessageID: ev.MessageID}
	chatID := ev.ChatID

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		rep := s.bc.Broadcast(s.life, src, ids)
		s.sendQuiet(context.WithoutCancel(s.life), message.Text(chatID, FormatReport(rep)))
	}()
	return nil
}

/*──────────────────────────── helpers ───────────────────────────────────────*/

// guard stamps the caller and runs fn only for operators.
func (s *Surface) guard(ctx context.Context, ev event.Event, fn acl.HandlerFunc) error {
	ctx = auth.WithCaller(ctx, auth.Caller{ID: ev.UserID, ChatID: ev.ChatID, Username: ev.Username})
	return s.acl.Require(fn)(ctx)
}

func (s *Surface) send(ctx context.Context, r message.Reply) error {
	if err := s.out.Send(ctx, r); err != nil {
		return fmt.Errorf("admin send to %d: %w", r.ChatID, err)
	}
	return nil
}

func (s *Surface) sendQuiet(ctx context.Context, r message.Reply) {
	if err := s.out.Send(ctx, r); err != nil {
		s.log.Warn("send failed", zap.Int64("chat_id", r.ChatID), zap.Error(err))
	}
}
