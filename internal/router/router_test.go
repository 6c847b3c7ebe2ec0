package router

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/yanizio/geofunnel/internal/auth"
	"github.com/yanizio/geofunnel/internal/event"
)

// calls records which handler ran.
type calls []string

type fakeFunnel struct{ c *calls }

func (f fakeFunnel) Start(context.Context, event.Event) error { *f.c = append(*f.c, "start"); return nil }
func (f fakeFunnel) Verify(context.Context, event.Event) error { *f.c = append(*f.c, "verify"); return nil }
func (f fakeFunnel) Proceed(context.Context, event.Event) error { *f.c = append(*f.c, "proceed"); return nil }
func (f fakeFunnel) Complete(context.Context, event.Event) error {
	*f.c = append(*f.c, "complete")
	return errors.New("db down")
}

type fakeAdmin struct {
	c       *calls
	pending bool
	caller  int64
}

func (a *fakeAdmin) rec(ctx context.Context, name string) error {
	*a.c = append(*a.c, name)
	a.caller, _ = auth.UserID(ctx)
	return nil
}
func (a *fakeAdmin) Panel(ctx context.Context, _ event.Event) error { return a.rec(ctx, "panel") }
func (a *fakeAdmin) ShowStats(ctx context.Context, _ event.Event) error { return a.rec(ctx, "stats") }
func (a *fakeAdmin) BeginSetLink(ctx context.Context, _ event.Event) error {
	return a.rec(ctx, "set_link")
}
func (a *fakeAdmin) BeginBroadcast(ctx context.Context, _ event.Event) error {
	return a.rec(ctx, "broadcast")
}
func (a *fakeAdmin) Cancel(ctx context.Context, _ event.Event) error { return a.rec(ctx, "cancel") }
func (a *fakeAdmin) HandleText(ctx context.Context, _ event.Event) error { return a.rec(ctx, "text") }
func (a *fakeAdmin) Pending(int64) bool { return a.pending }

type fakeAcker struct{ ids []string }

func (f *fakeAcker) AnswerCallback(_ context.Context, id, _ string) error {
	f.ids = append(f.ids, id)
	return nil
}

func TestDispatch(t *testing.T) {
	var c calls
	adm := &fakeAdmin{c: &c}
	ack := &fakeAcker{}
	r := New(fakeFunnel{&c}, adm, ack, zaptest.NewLogger(t))
	ctx := context.Background()

	events := []event.Event{
		{Kind: event.KindStart, Command: "start"},
		{Kind: event.KindWebApp, Data: "lat:1,lon:2"},
		{Kind: event.KindCallback, Data: event.NextStep, CallbackID: "a"},
		{Kind: event.KindCallback, Data: event.OpenPlatform, CallbackID: "b"},
		{Kind: event.KindCommand, Command: "admin", UserID: 1001},
		{Kind: event.KindCallback, Data: event.AdminStats, CallbackID: "c"},
		{Kind: event.KindCallback, Data: event.AdminSetLink, CallbackID: "d"},
		{Kind: event.KindCallback, Data: event.AdminBroadcast, CallbackID: "e"},
		{Kind: event.KindCommand, Command: "cancel"},
		{Kind: event.KindText, Text: "hello"},         // no prompt: ignored
		{Kind: event.KindCommand, Command: "help"},    // unknown: ignored
		{Kind: event.KindCallback, Data: "bogus_tok"}, // unknown: acked, ignored
	}
	for _, ev := range events {
		r.Dispatch(ctx, ev)
	}

	want := []string{"start", "verify", "proceed", "complete", "panel", "stats", "set_link", "broadcast", "cancel"}
	if len(c) != len(want) {
		t.Fatalf("calls = %v, want %v", c, want)
	}
	for i := range want {
		if c[i] != want[i] {
			t.Fatalf("calls = %v, want %v", c, want)
		}
	}
	if len(ack.ids) != 6 {
		t.Fatalf("acked %d callbacks, want 6", len(ack.ids))
	}
}

func TestDispatch_PendingText(t *testing.T) {
	var c calls
	adm := &fakeAdmin{c: &c, pending: true}
	r := New(fakeFunnel{&c}, adm, nil, nil)

	r.Dispatch(context.Background(), event.Event{Kind: event.KindText, UserID: 1001, Text: "ES"})
	if len(c) != 1 || c[0] != "text" {
		t.Fatalf("calls = %v", c)
	}
	if adm.caller != 1001 {
		t.Fatalf("caller not stamped: %d", adm.caller)
	}
}
