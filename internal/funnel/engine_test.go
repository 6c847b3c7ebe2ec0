package funnel

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/yanizio/geofunnel/internal/config"
	"github.com/yanizio/geofunnel/internal/event"
	"github.com/yanizio/geofunnel/internal/geo"
	"github.com/yanizio/geofunnel/internal/message"
	"github.com/yanizio/geofunnel/internal/scenario"
	"github.com/yanizio/geofunnel/internal/session"
)

/*──────────────────────────── fakes ─────────────────────────────────────────*/

type user struct {
	handle, region string
	clicks, steps  int
}

type fakeUsers struct {
	mu        sync.Mutex
	m         map[int64]*user
	regionErr error
	onRegion  func() // runs before UserRegion answers, outside the lock
}

func newFakeUsers() *fakeUsers { return &fakeUsers{m: map[int64]*user{}} }

func (f *fakeUsers) UpsertUser(_ context.Context, id int64, handle, region string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.m[id]; ok {
		u.region = region
		return nil
	}
	f.m[id] = &user{handle: handle, region: region}
	return nil
}

func (f *fakeUsers) UserRegion(_ context.Context, id int64) (string, bool, error) {
	if f.onRegion != nil {
		f.onRegion()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.regionErr != nil {
		return "", false, f.regionErr
	}
	u, ok := f.m[id]
	if !ok {
		return "", false, nil
	}
	return u.region, true, nil
}

func (f *fakeUsers) IncrementClicks(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.m[id]; ok {
		u.clicks++
	}
	return nil
}

func (f *fakeUsers) RecordProgress(_ context.Context, id int64, steps int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.m[id]; ok && steps > u.steps {
		u.steps = steps
	}
	return nil
}

func (f *fakeUsers) get(id int64) (user, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.m[id]
	if !ok {
		return user{}, false
	}
	return *u, true
}

type fakeLinks map[string]string

func (l fakeLinks) Resolve(_ context.Context, region string) (string, error) {
	if u, ok := l[region]; ok {
		return u, nil
	}
	return l["DEFAULT"], nil
}

type fixedLocator struct {
	code string
	err  error
}

func (f *fixedLocator) Locate(context.Context, geo.Location) (string, error) {
	return f.code, f.err
}

/*──────────────────────────── harness ───────────────────────────────────────*/

type harness struct {
	eng     *Engine
	users   *fakeUsers
	out     *message.Recorder
	locator *fixedLocator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cat, err := scenario.NewCatalog(map[string]config.Scenario{
		"DEFAULT": {Language: "en", Currency: "$", Steps: []string{"d1", "d2", "d3", "d4"}, FinalButton: "Open Platform"},
		"ES":      {Language: "es", Currency: "€", Steps: []string{"es1", "es2", "es3", "es4"}, FinalButton: "Abrir Plataforma"},
	})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	h := &harness{
		users:   newFakeUsers(),
		out:     &message.Recorder{},
		locator: &fixedLocator{code: "ES"},
	}
	h.eng = New(Deps{
		Users:     h.users,
		Links:     fakeLinks{"ES": "https://example.com/es/ref456", "DEFAULT": "https://example.com/default/ref789"},
		Locator:   h.locator,
		Catalog:   cat,
		Sessions:  session.New[Session]("funnel", time.Hour),
		Out:       h.out,
		Banned:    []string{"RU", "by"},
		WebAppURL: "https://bot.example.com/web_app/",
		Log:       zaptest.NewLogger(t),
	})
	return h
}

const uid = int64(42)

func verifyEvent(payload string) event.Event {
	return event.Event{Kind: event.KindWebApp, UserID: uid, ChatID: uid, Username: "alice", Data: payload}
}

func press(token string) event.Event {
	return event.Event{Kind: event.KindCallback, UserID: uid, ChatID: uid, Data: token, MessageID: 100}
}

/*──────────────────────────── tests ─────────────────────────────────────────*/

func TestFunnel_SpainHappyPath(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.eng.Verify(ctx, verifyEvent("lat:40.41,lon:-3.70")); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	u, ok := h.users.get(uid)
	if !ok || u.region != "ES" || u.handle != "alice" {
		t.Fatalf("stored user = %+v, %v", u, ok)
	}
	last := h.out.Last()
	if last.Text != "es1" || len(last.Buttons) != 1 || last.Buttons[0].Callback != event.NextStep {
		t.Fatalf("step1 reply = %+v", last)
	}

	for i, want := range []string{"es2", "es3", "es4"} {
		if err := h.eng.Proceed(ctx, press(event.NextStep)); err != nil {
			t.Fatalf("Proceed %d: %v", i, err)
		}
		if got := h.out.Last(); got.Text != want || got.EditMessageID != 100 {
			t.Fatalf("after proceed %d reply = %+v", i, got)
		}
	}

	last = h.out.Last()
	if last.Buttons[0].Label != "Abrir Plataforma" || last.Buttons[0].Callback != event.OpenPlatform {
		t.Fatalf("step4 button = %+v", last.Buttons[0])
	}
	if s, _ := h.eng.Session(uid); s.Step != Step4 {
		t.Fatalf("step = %v, want step4", s.Step)
	}

	if err := h.eng.Complete(ctx, press(event.OpenPlatform)); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	last = h.out.Last()
	if len(last.Buttons) != 1 || last.Buttons[0].URL != "https://example.com/es/ref456" || last.Buttons[0].Label != "Abrir Plataforma" {
		t.Fatalf("link reply = %+v", last)
	}
	u, _ = h.users.get(uid)
	if u.clicks != 1 || u.steps != scenario.Steps {
		t.Fatalf("clicks = %d steps = %d", u.clicks, u.steps)
	}
	if _, ok := h.eng.Session(uid); ok {
		t.Fatalf("session survived completion")
	}
}

func TestFunnel_UnconfiguredRegionUsesDefaults(t *testing.T) {
	h := newHarness(t)
	h.locator.code = "CA"
	ctx := context.Background()

	h.eng.Verify(ctx, verifyEvent("lat:45.5,lon:-73.6"))
	if got := h.out.Last().Text; got != "d1" {
		t.Fatalf("step1 text = %q, want DEFAULT bundle", got)
	}
	for i := 0; i < 3; i++ {
		h.eng.Proceed(ctx, press(event.NextStep))
	}
	h.eng.Complete(ctx, press(event.OpenPlatform))
	if got := h.out.Last().Buttons[0].URL; got != "https://example.com/default/ref789" {
		t.Fatalf("url = %q, want DEFAULT", got)
	}
	if u, _ := h.users.get(uid); u.region != "CA" {
		t.Fatalf("stored region = %q, want CA", u.region)
	}
}

func TestFunnel_BannedRegion(t *testing.T) {
	h := newHarness(t)
	h.locator.code = "RU"

	if err := h.eng.Verify(context.Background(), verifyEvent("lat:55.75,lon:37.61")); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if _, ok := h.users.get(uid); ok {
		t.Fatalf("banned visitor was persisted")
	}
	if _, ok := h.eng.Session(uid); ok {
		t.Fatalf("banned visitor has a session")
	}
	if got := h.out.Last().Text; got != DefaultTexts().Banned {
		t.Fatalf("reply = %q", got)
	}
	if !h.eng.Banned("by") {
		t.Fatalf("deny-list should be case-insensitive")
	}
}

func TestFunnel_ProceedIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// No session: ignored.
	h.eng.Proceed(ctx, press(event.NextStep))
	if n := len(h.out.Replies()); n != 0 {
		t.Fatalf("proceed without session sent %d replies", n)
	}

	h.eng.Verify(ctx, verifyEvent("lat:1,lon:1"))
	for i := 0; i < 6; i++ {
		h.eng.Proceed(ctx, press(event.NextStep))
	}
	if s, _ := h.eng.Session(uid); s.Step != Step4 {
		t.Fatalf("step = %v after extra presses, want step4", s.Step)
	}
	// 1 verify reply + 3 transitions.
	if n := len(h.out.Replies()); n != 4 {
		t.Fatalf("replies = %d, want 4", n)
	}
}

func TestFunnel_ConcurrentDuplicatePresses(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.eng.Verify(ctx, verifyEvent("lat:1,lon:1"))
	h.out.Reset()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.eng.Proceed(ctx, press(event.NextStep))
		}()
	}
	wg.Wait()

	// 20 presses from Step1: at most three transitions are possible.
	if n := len(h.out.Replies()); n != 3 {
		t.Fatalf("replies = %d, want 3", n)
	}
}

func TestFunnel_CompleteOutsideStep4(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.eng.Verify(ctx, verifyEvent("lat:1,lon:1"))
	h.out.Reset()

	h.eng.Complete(ctx, press(event.OpenPlatform))
	if n := len(h.out.Replies()); n != 0 {
		t.Fatalf("early open_platform sent %d replies", n)
	}
	if s, ok := h.eng.Session(uid); !ok || s.Step != Step1 {
		t.Fatalf("session disturbed: %+v, %v", s, ok)
	}
}

func TestFunnel_MalformedAndDenied(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.eng.Verify(ctx, verifyEvent("lat:north,lon:west"))
	if got := h.out.Last().Text; got != DefaultTexts().Malformed {
		t.Fatalf("malformed reply = %q", got)
	}
	h.eng.Verify(ctx, verifyEvent("error:PERMISSION_DENIED"))
	if got := h.out.Last().Text; got != DefaultTexts().ClientDenied {
		t.Fatalf("denied reply = %q", got)
	}
	if _, ok := h.eng.Session(uid); ok {
		t.Fatalf("session created from bad payload")
	}
	if _, ok := h.users.get(uid); ok {
		t.Fatalf("user created from bad payload")
	}
}

func TestFunnel_LookupFailure(t *testing.T) {
	h := newHarness(t)
	h.locator.err = errors.New("timeout")

	if err := h.eng.Verify(context.Background(), verifyEvent("lat:1,lon:1")); err != nil {
		t.Fatalf("lookup failure should be handled: %v", err)
	}
	if got := h.out.Last().Text; got != DefaultTexts().LookupFailed {
		t.Fatalf("reply = %q", got)
	}
	if _, ok := h.eng.Session(uid); ok {
		t.Fatalf("session created after failed lookup")
	}
}

func TestFunnel_StaleSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// Process restart: no session at all.
	if err := h.eng.Complete(ctx, press(event.OpenPlatform)); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got := h.out.Last().Text; got != DefaultTexts().StaleSession {
		t.Fatalf("reply = %q", got)
	}

	// Session present but repository lost the record.
	h.eng.sessions.Put(uid, Session{Step: Step4, Region: "ES"})
	if err := h.eng.Complete(ctx, press(event.OpenPlatform)); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got := h.out.Last().Text; got != DefaultTexts().StaleSession {
		t.Fatalf("reply = %q", got)
	}
	if _, ok := h.eng.Session(uid); ok {
		t.Fatalf("stale session kept")
	}
}

func TestFunnel_StorageFailureKeepsStep4(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.eng.Verify(ctx, verifyEvent("lat:1,lon:1"))
	for i := 0; i < 3; i++ {
		h.eng.Proceed(ctx, press(event.NextStep))
	}

	h.users.regionErr = errors.New("db down")
	if err := h.eng.Complete(ctx, press(event.OpenPlatform)); err == nil {
		t.Fatalf("expected storage error")
	}
	if got := h.out.Last().Text; got != DefaultTexts().TemporaryFail {
		t.Fatalf("reply = %q", got)
	}
	if s, ok := h.eng.Session(uid); !ok || s.Step != Step4 {
		t.Fatalf("session not restored: %+v, %v", s, ok)
	}

	h.users.regionErr = nil
	if err := h.eng.Complete(ctx, press(event.OpenPlatform)); err != nil {
		t.Fatalf("retry Complete: %v", err)
	}
	if u, _ := h.users.get(uid); u.clicks != 1 {
		t.Fatalf("clicks = %d, want 1", u.clicks)
	}
}

func TestFunnel_StartDuringFailedCompleteWins(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.eng.Verify(ctx, verifyEvent("lat:1,lon:1"))
	for i := 0; i < 3; i++ {
		h.eng.Proceed(ctx, press(event.NextStep))
	}

	h.users.regionErr = errors.New("db down")
	h.users.onRegion = func() {
		h.users.onRegion = nil
		if err := h.eng.Start(ctx, event.Event{Kind: event.KindStart, UserID: uid, ChatID: uid}); err != nil {
			t.Errorf("Start: %v", err)
		}
	}
	if err := h.eng.Complete(ctx, press(event.OpenPlatform)); err == nil {
		t.Fatalf("expected storage error")
	}
	if s, ok := h.eng.Session(uid); !ok || s.Step != AwaitingVerification {
		t.Fatalf("session after /start = %+v, %v; want the reset to win", s, ok)
	}
}

func TestFunnel_StartResets(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.eng.Verify(ctx, verifyEvent("lat:1,lon:1"))
	h.eng.Proceed(ctx, press(event.NextStep))

	if err := h.eng.Start(ctx, event.Event{Kind: event.KindStart, UserID: uid, ChatID: uid}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if sess, ok := h.eng.Session(uid); !ok || sess.Step != AwaitingVerification {
		t.Fatalf("/start did not reset the session: %+v, %v", sess, ok)
	}
	if err := h.eng.Proceed(ctx, press(event.NextStep)); err != nil {
		t.Fatalf("Proceed: %v", err)
	}
	if sess, _ := h.eng.Session(uid); sess.Step != AwaitingVerification {
		t.Fatalf("proceed advanced an unverified session to %v", sess.Step)
	}
	last := h.out.Last()
	if last.Text != DefaultTexts().Welcome || len(last.Buttons) != 1 || last.Buttons[0].WebApp != "https://bot.example.com/web_app/" {
		t.Fatalf("welcome reply = %+v", last)
	}
	if !last.Keyboard {
		t.Fatalf("verify button must be on a reply keyboard so the mini-app can send data")
	}
}

func TestFunnel_ReverificationOverwritesRegion(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.eng.Verify(ctx, verifyEvent("lat:1,lon:1"))

	h.locator.code = "CA"
	h.eng.Verify(ctx, verifyEvent("lat:1,lon:1"))
	if u, _ := h.users.get(uid); u.region != "CA" {
		t.Fatalf("region = %q, want CA", u.region)
	}
	if s, _ := h.eng.Session(uid); s.Step != Step1 || s.Bundle.Region != "DEFAULT" {
		t.Fatalf("session = %+v", s)
	}
}
