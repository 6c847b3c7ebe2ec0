// internal/funnel/engine.go
//
// Funnel state machine.
//
// Context
// -------
// One Engine serves every visitor.  Per-identity state lives in a
// session.Table[Session]; all step changes go through Table.Update or
// Table.Take so a duplicated button press (client retry, webhook
// redelivery) observes the already-advanced state and becomes a no-op.
//
// Workflow
// --------
//   Start    – reset, send the welcome prompt with the mini-app button.
//   Verify   – parse payload, locate region, deny-list, upsert, Step1.
//   Proceed  – StepN → StepN+1 for N in 1..3, edit the message in place.
//   Complete – Step4 only: stored region → destination URL, count the
//              click, send the link, drop the session.
//
// Error policy
// ------------
// Input, lookup, and policy failures are answered with a user-visible
// message and return nil.  Storage failures are answered with a generic
// message and returned so the caller logs them.
package funnel

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/yanizio/geofunnel/internal/event"
	"github.com/yanizio/geofunnel/internal/geo"
	"github.com/yanizio/geofunnel/internal/message"
	"github.com/yanizio/geofunnel/internal/metrics"
	"github.com/yanizio/geofunnel/internal/scenario"
	"github.com/yanizio/geofunnel/internal/session"
)

// Users is the slice of the repository the engine needs.
type Users interface {
	UpsertUser(ctx context.Context, id int64, handle, region string) error
	UserRegion(ctx context.Context, id int64) (string, bool, error)
	IncrementClicks(ctx context.Context, id int64) error
	RecordProgress(ctx context.Context, id int64, steps int) error
}

// Links resolves a region to its destination URL.
type Links interface {
	Resolve(ctx context.Context, region string) (string, error)
}

// Deps wires an Engine.  Every field except Log and Texts is required.
type Deps struct {
	Users     Users
	Links     Links
	Locator   geo.Locator
	Catalog   *scenario.Catalog
	Sessions  *session.Table[Session]
	Out       message.Sender
	Banned    []string
	WebAppURL string // mini-app page; empty omits the verify button
	Texts     Texts
	Log       *zap.Logger
}

// Engine drives every visitor's funnel.
type Engine struct {
	users     Users
	links     Links
	locator   geo.Locator
	catalog   *scenario.Catalog
	sessions  *session.Table[Session]
	out       message.Sender
	banned    map[string]struct{}
	webAppURL string
	texts     Texts
	log       *zap.Logger
}

// New builds an Engine from d.
func New(d Deps) *Engine {
	banned := make(map[string]struct{}, len(d.Banned))
	for _, r := range d.Banned {
		banned[strings.ToUpper(strings.TrimSpace(r))] = struct{}{}
	}
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		users:     d.Users,
		links:     d.Links,
		locator:   d.Locator,
		catalog:   d.Catalog,
		sessions:  d.Sessions,
		out:       d.Out,
		banned:    banned,
		webAppURL: d.WebAppURL,
		texts:     d.Texts.withDefaults(),
		log:       log.Named("funnel"),
	}
}

// Session reports the live session for id.
func (e *Engine) Session(id int64) (Session, bool) {
	return e.sessions.Get(id)
}

// Banned reports whether region is on the deny-list.
func (e *Engine) Banned(region string) bool {
	_, ok := e.banned[strings.ToUpper(region)]
	return ok
}

/*──────────────────────────── Start ─────────────────────────────────────────*/

// Start resets any traversal and asks the visitor to verify.  The reset
// leaves an AwaitingVerification entry so a concurrent Complete that failed
// on storage sees the newer state and does not resurrect Step4.
func (e *Engine) Start(ctx context.Context, ev event.Event) error {
	e.sessions.Put(ev.UserID, Session{Step: AwaitingVerification})

	r := message.Text(ev.ChatID, e.texts.Welcome)
	if e.webAppURL != "" {
		r = r.WithButton(message.Button{Label: e.texts.VerifyButton, WebApp: e.webAppURL})
		r.Keyboard = true
	}
	return e.send(ctx, r)
}

/*──────────────────────────── Verify ────────────────────────────────────────*/

// Verify handles a mini-app geolocation payload.
func (e *Engine) Verify(ctx context.Context, ev event.Event) error {
	log := e.log.With(zap.Int64("user_id", ev.UserID))

	loc, err := geo.ParsePayload(ev.Data)
	if err != nil {
		text := e.texts.Malformed
		outcome := "malformed"
		if errors.Is(err, geo.ErrClientDenied) {
			text, outcome = e.texts.ClientDenied, "client_denied"
		}
		metrics.Verifications.WithLabelValues(outcome).Inc()
		log.Info("verification payload rejected", zap.String("payload", ev.Data), zap.Error(err))
		return e.send(ctx, message.Text(ev.ChatID, text))
	}

	region, err := e.locator.Locate(ctx, loc)
	if err != nil {
		metrics.Verifications.WithLabelValues("lookup_failed").Inc()
		log.Warn("region lookup failed", zap.Error(err))
		return e.send(ctx, message.Text(ev.ChatID, e.texts.LookupFailed))
	}

	if e.Banned(region) {
		metrics.Verifications.WithLabelValues("banned").Inc()
		e.sessions.Delete(ev.UserID)
		log.Info("banned region", zap.String("region", region))
		return e.send(ctx, message.Text(ev.ChatID, e.texts.Banned))
	}

	if err := e.users.UpsertUser(ctx, ev.UserID, ev.Username, region); err != nil {
		metrics.Verifications.WithLabelValues("storage_error").Inc()
		e.sendQuiet(ctx, message.Text(ev.ChatID, e.texts.TemporaryFail))
		return fmt.Errorf("verify user %d: %w", ev.UserID, err)
	}

	bundle := e.catalog.Resolve(region)
	e.sessions.Put(ev.UserID, Session{Step: Step1, Region: region, Bundle: bundle})

	metrics.Verifications.WithLabelValues("verified").Inc()
	metrics.Transitions.WithLabelValues(Step1.String()).Inc()
	log.Info("verified",
		zap.String("region", region),
		zap.String("scenario", bundle.Region))

	return e.send(ctx, e.render(ev.ChatID, 0, Step1, bundle))
}

/*──────────────────────────── Proceed ───────────────────────────────────────*/

// Proceed advances StepN to StepN+1.  Presses in any other state are
// ignored.
func (e *Engine) Proceed(ctx context.Context, ev event.Event) error {
	var (
		from     Step
		next     Session
		advanced bool
	)
	e.sessions.Update(ev.UserID, func(cur Session, ok bool) (Session, bool) {
		if !ok || cur.Step < Step1 || cur.Step > Step3 {
			return cur, ok
		}
		from = cur.Step
		cur.Step++
		next, advanced = cur, true
		return cur, true
	})
	if !advanced {
		e.log.Debug("proceed ignored", zap.Int64("user_id", ev.UserID))
		return nil
	}

	metrics.Transitions.WithLabelValues(next.Step.String()).Inc()
	if err := e.users.RecordProgress(ctx, ev.UserID, from.Number()); err != nil {
		e.log.Warn("record progress", zap.Int64("user_id", ev.UserID), zap.Error(err))
	}

	return e.send(ctx, e.render(ev.ChatID, ev.MessageID, next.Step, next.Bundle))
}

/*──────────────────────────── Complete ──────────────────────────────────────*/

// Complete hands out the destination link from Step4.
func (e *Engine) Complete(ctx context.Context, ev event.Event) error {
	log := e.log.With(zap.Int64("user_id", ev.UserID))

	sess, ok := e.sessions.Take(ev.UserID, func(s Session) bool { return s.Step == Step4 })
	if !ok {
		if cur, live := e.sessions.Get(ev.UserID); live && cur.Step != AwaitingVerification {
			log.Debug("open_platform ignored outside step4")
			return nil
		}
		log.Info("open_platform without session")
		return e.send(ctx, message.Text(ev.ChatID, e.texts.StaleSession))
	}

	region, found, err := e.users.UserRegion(ctx, ev.UserID)
	if err != nil {
		e.restore(ev.UserID, sess)
		e.sendQuiet(ctx, message.Text(ev.ChatID, e.texts.TemporaryFail))
		return fmt.Errorf("complete user %d: %w", ev.UserID, err)
	}
	if !found {
		log.Info("open_platform for unknown user")
		return e.send(ctx, message.Text(ev.ChatID, e.texts.StaleSession))
	}

	url, err := e.links.Resolve(ctx, region)
	if err != nil {
		e.restore(ev.UserID, sess)
		e.sendQuiet(ctx, message.Text(ev.ChatID, e.texts.TemporaryFail))
		return fmt.Errorf("complete user %d: %w", ev.UserID, err)
	}

	if err := e.users.IncrementClicks(ctx, ev.UserID); err != nil {
		log.Error("increment clicks", zap.Error(err))
	}
	if err := e.users.RecordProgress(ctx, ev.UserID, scenario.Steps); err != nil {
		log.Warn("record progress", zap.Error(err))
	}

	metrics.LinkClicks.WithLabelValues(region).Inc()
	metrics.Transitions.WithLabelValues(Completed.String()).Inc()
	log.Info("link issued", zap.String("region", region))

	return e.send(ctx, message.Reply{
		ChatID:        ev.ChatID,
		EditMessageID: ev.MessageID,
		Text:          e.texts.LinkIntro,
		Buttons:       []message.Button{{Label: sess.Bundle.FinalButton, URL: url}},
	})
}

/*──────────────────────────── helpers ───────────────────────────────────────*/

// restore puts a taken session back unless something newer took its place.
func (e *Engine) restore(id int64, sess Session) {
	e.sessions.Update(id, func(cur Session, ok bool) (Session, bool) {
		if ok {
			return cur, true
		}
		return sess, true
	})
}

// render builds the message for an informational step.
func (e *Engine) render(chatID int64, editID int, s Step, b scenario.Bundle) message.Reply {
	r := message.Reply{ChatID: chatID, EditMessageID: editID, Text: b.Step(s.Number())}
	if s == Step4 {
		return r.WithButton(message.Button{Label: b.FinalButton, Callback: event.OpenPlatform})
	}
	return r.WithButton(message.Button{Label: e.texts.NextButton, Callback: event.NextStep})
}

func (e *Engine) send(ctx context.Context, r message.Reply) error {
	if err := e.out.Send(ctx, r); err != nil {
		return fmt.Errorf("send to %d: %w", r.ChatID, err)
	}
	return nil
}

// sendQuiet is used on paths that already return an error.
func (e *Engine) sendQuiet(ctx context.Context, r message.Reply) {
	if err := e.out.Send(ctx, r); err != nil {
		e.log.Warn("send failed", zap.Int64("chat_id", r.ChatID), zap.Error(err))
	}
}
