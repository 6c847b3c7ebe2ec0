package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/yanizio/geofunnel/internal/broadcast"
	"github.com/yanizio/geofunnel/internal/event"
	"github.com/yanizio/geofunnel/internal/message"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want broadcast.Status
	}{
		{nil, broadcast.Delivered},
		{fmt.Errorf("%w, Forbidden: bot was blocked by the user", bot.ErrorForbidden), broadcast.Blocked},
		{errors.New("Forbidden: user is deactivated"), broadcast.Blocked},
		{fmt.Errorf("%w, Bad Request: chat not found", bot.ErrorBadRequest), broadcast.Failed},
		{context.DeadlineExceeded, broadcast.Failed},
	}
	for _, tc := range cases {
		if got := Classify(tc.err).Status; got != tc.want {
			t.Errorf("Classify(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestTranslate(t *testing.T) {
	from := &models.User{ID: 42, Username: "alice"}

	cases := []struct {
		name string
		u    models.Update
		kind event.Kind
		cmd  string
		data string
	}{
		{"start", models.Update{ID: 1, Message: &models.Message{ID: 5, From: from, Chat: models.Chat{ID: 42}, Text: "/start"}}, event.KindStart, "start", ""},
		{"admin with bot name", models.Update{ID: 2, Message: &models.Message{ID: 6, From: from, Chat: models.Chat{ID: 42}, Text: "/Admin@FunnelBot now"}}, event.KindCommand, "admin", ""},
		{"text", models.Update{ID: 3, Message: &models.Message{ID: 7, From: from, Chat: models.Chat{ID: 42}, Text: "ES"}}, event.KindText, "", ""},
		{"web app", models.Update{ID: 4, Message: &models.Message{ID: 8, From: from, Chat: models.Chat{ID: 42}, WebAppData: &models.WebAppData{Data: "lat:1,lon:2"}}}, event.KindWebApp, "", "lat:1,lon:2"},
		{"callback", models.Update{ID: 5, CallbackQuery: &models.CallbackQuery{ID: "cb1", From: *from, Data: event.NextStep,
			Message: models.MaybeInaccessibleMessage{Message: &models.Message{ID: 99, Chat: models.Chat{ID: 42}}}}}, event.KindCallback, "", event.NextStep},
	}
	for _, tc := range cases {
		ev, ok := Translate(&tc.u)
		if !ok {
			t.Fatalf("%s: not translated", tc.name)
		}
		if ev.Kind != tc.kind || ev.Command != tc.cmd || ev.Data != tc.data {
			t.Errorf("%s: got kind=%v cmd=%q data=%q", tc.name, ev.Kind, ev.Command, ev.Data)
		}
		if ev.UserID != 42 || ev.ChatID != 42 || ev.UpdateID != tc.u.ID {
			t.Errorf("%s: ids = %+v", tc.name, ev)
		}
	}

	ev, _ := Translate(&models.Update{CallbackQuery: &models.CallbackQuery{ID: "cb", From: *from, Data: event.OpenPlatform,
		Message: models.MaybeInaccessibleMessage{Message: &models.Message{ID: 99, Chat: models.Chat{ID: 42}}}}})
	if ev.MessageID != 99 || ev.CallbackID != "cb" {
		t.Fatalf("callback message id = %d, callback id = %q", ev.MessageID, ev.CallbackID)
	}

	if _, ok := Translate(&models.Update{ID: 9}); ok {
		t.Fatalf("empty update translated")
	}
}

func TestKeyboard(t *testing.T) {
	if keyboard(nil, false) != nil || keyboard(nil, true) != nil {
		t.Fatalf("empty keyboard should be nil")
	}
	kb, ok := keyboard([]message.Button{
		{Label: "Next", Callback: event.NextStep},
		{Label: "Open", URL: "https://example.com"},
	}, false).(*models.InlineKeyboardMarkup)
	if !ok {
		t.Fatalf("inline buttons did not render as an inline keyboard")
	}
	if len(kb.InlineKeyboard) != 2 {
		t.Fatalf("rows = %d", len(kb.InlineKeyboard))
	}
	if kb.InlineKeyboard[0][0].CallbackData != event.NextStep {
		t.Fatalf("callback button = %+v", kb.InlineKeyboard[0][0])
	}
	if kb.InlineKeyboard[1][0].URL != "https://example.com" {
		t.Fatalf("url button = %+v", kb.InlineKeyboard[1][0])
	}
}

func TestKeyboard_VerifyIsReplyKeyboard(t *testing.T) {
	rk, ok := keyboard([]message.Button{
		{Label: "Verify", WebApp: "https://bot.example.com/web_app/"},
	}, true).(*models.ReplyKeyboardMarkup)
	if !ok {
		t.Fatalf("verify button did not render as a reply keyboard")
	}
	if !rk.ResizeKeyboard || !rk.OneTimeKeyboard {
		t.Fatalf("reply keyboard flags = %+v", rk)
	}
	if len(rk.Keyboard) != 1 || len(rk.Keyboard[0]) != 1 {
		t.Fatalf("rows = %+v", rk.Keyboard)
	}
	b := rk.Keyboard[0][0]
	if b.Text != "Verify" || b.WebApp == nil || b.WebApp.URL != "https://bot.example.com/web_app/" {
		t.Fatalf("web app key = %+v", b)
	}
}

// fakeAPI answers copyMessage with 403 for chat 13 and success otherwise.
func fakeAPI(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			r.ParseForm()
		}
		if strings.HasSuffix(r.URL.Path, "/copyMessage") && r.FormValue("chat_id") == "13" {
			w.Write([]byte(`{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`))
			return
		}
		if strings.HasSuffix(r.URL.Path, "/copyMessage") && r.FormValue("chat_id") == "14" {
			w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
			return
		}
		w.Write([]byte(`{"ok":true,"result":{"message_id":1}}`))
	}))
}

func TestClient_Copy(t *testing.T) {
	srv := fakeAPI(t)
	defer srv.Close()

	c, err := New("123:TEST", time.Second, nil, bot.WithServerURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	src := broadcast.Source{ChatID: 1001, MessageID: 7}

	if r := c.Copy(context.Background(), 12, src); r.Status != broadcast.Delivered {
		t.Fatalf("chat 12: %v %v", r.Status, r.Err)
	}
	if r := c.Copy(context.Background(), 13, src); r.Status != broadcast.Blocked {
		t.Fatalf("chat 13: %v %v", r.Status, r.Err)
	}
	if r := c.Copy(context.Background(), 14, src); r.Status != broadcast.Failed {
		t.Fatalf("chat 14: %v %v", r.Status, r.Err)
	}
}

type recordingDispatcher struct {
	mu  sync.Mutex
	evs []event.Event
}

func (d *recordingDispatcher) Dispatch(_ context.Context, ev event.Event) {
	d.mu.Lock()
	d.evs = append(d.evs, ev)
	d.mu.Unlock()
}

func TestWebhook(t *testing.T) {
	d := &recordingDispatcher{}
	h := NewWebhook(context.Background(), "s3cret", d, nil)

	body := `{"update_id":100,"message":{"message_id":5,"from":{"id":42,"is_bot":false,"first_name":"A"},"chat":{"id":42,"type":"private"},"date":0,"text":"/start"}}`

	post := func(secret string) int {
		r := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
		if secret != "" {
			r.Header.Set(SecretHeader, secret)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w.Code
	}

	if code := post("wrong"); code != http.StatusUnauthorized {
		t.Fatalf("wrong secret: status = %d", code)
	}
	if code := post("s3cret"); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if code := post("s3cret"); code != http.StatusOK {
		t.Fatalf("redelivery status = %d", code)
	}
	h.Wait()

	if len(d.evs) != 1 {
		t.Fatalf("dispatched %d events, want 1 (duplicate dropped)", len(d.evs))
	}
	if d.evs[0].Kind != event.KindStart || d.evs[0].UserID != 42 {
		t.Fatalf("event = %+v", d.evs[0])
	}

	r := httptest.NewRequest(http.MethodGet, "/webhook", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET status = %d", w.Code)
	}

	r = httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{"))
	r.Header.Set(SecretHeader, "s3cret")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad body status = %d", w.Code)
	}
}

// apiRecorder logs every Bot API method called and lets a test script the
// reply per method.
type apiRecorder struct {
	mu      sync.Mutex
	calls   []string
	forms   map[string]map[string]string
	replies map[string]string
}

func newAPIRecorder(replies map[string]string) (*apiRecorder, *httptest.Server) {
	rec := &apiRecorder{forms: map[string]map[string]string{}, replies: replies}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			r.ParseForm()
		}
		method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		form := map[string]string{}
		for k, v := range r.Form {
			form[k] = v[0]
		}
		rec.mu.Lock()
		rec.calls = append(rec.calls, method)
		rec.forms[method] = form
		rec.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if body, ok := rec.replies[method]; ok {
			w.Write([]byte(body))
			return
		}
		w.Write([]byte(`{"ok":true,"result":{"message_id":1}}`))
	}))
	return rec, srv
}

func (a *apiRecorder) methods() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.calls...)
}

func TestClient_SendEditFallback(t *testing.T) {
	rec, srv := newAPIRecorder(map[string]string{
		"editMessageText": `{"ok":false,"error_code":400,"description":"Bad Request: message to edit not found"}`,
	})
	defer srv.Close()

	c, err := New("123:TEST", time.Second, nil, bot.WithServerURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	err = c.Send(context.Background(), message.Reply{ChatID: 42, EditMessageID: 9, Text: "Step 2/4"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	got := rec.methods()
	if len(got) != 2 || got[0] != "editMessageText" || got[1] != "sendMessage" {
		t.Fatalf("calls = %v, want edit then send", got)
	}
	if rec.forms["sendMessage"]["text"] != "Step 2/4" {
		t.Fatalf("sendMessage form = %v", rec.forms["sendMessage"])
	}
}

func TestClient_SendNotModified(t *testing.T) {
	rec, srv := newAPIRecorder(map[string]string{
		"editMessageText": `{"ok":false,"error_code":400,"description":"Bad Request: message is not modified"}`,
	})
	defer srv.Close()

	c, _ := New("123:TEST", time.Second, nil, bot.WithServerURL(srv.URL))
	if err := c.Send(context.Background(), message.Reply{ChatID: 42, EditMessageID: 9, Text: "same"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got := rec.methods(); len(got) != 1 {
		t.Fatalf("calls = %v, want a single edit", got)
	}
}

func TestClient_Webhook(t *testing.T) {
	rec, srv := newAPIRecorder(map[string]string{
		"setWebhook":    `{"ok":true,"result":true}`,
		"deleteWebhook": `{"ok":true,"result":true}`,
	})
	defer srv.Close()

	c, _ := New("123:TEST", time.Second, nil, bot.WithServerURL(srv.URL))
	ctx := context.Background()
	if err := c.SetWebhook(ctx, "https://bot.example.com/webhook", "s3cret"); err != nil {
		t.Fatalf("SetWebhook: %v", err)
	}
	if err := c.DeleteWebhook(ctx); err != nil {
		t.Fatalf("DeleteWebhook: %v", err)
	}

	form := rec.forms["setWebhook"]
	if form["url"] != "https://bot.example.com/webhook" || form["secret_token"] != "s3cret" {
		t.Fatalf("setWebhook form = %v", form)
	}
	if got := rec.methods(); len(got) != 2 || got[1] != "deleteWebhook" {
		t.Fatalf("calls = %v", got)
	}
}

func TestClient_SendReplyKeyboardNeverEdits(t *testing.T) {
	rec, srv := newAPIRecorder(nil)
	defer srv.Close()

	c, _ := New("123:TEST", time.Second, nil, bot.WithServerURL(srv.URL))
	r := message.Reply{ChatID: 42, EditMessageID: 9, Text: "Welcome", Keyboard: true,
		Buttons: []message.Button{{Label: "Verify", WebApp: "https://bot.example.com/web_app/"}}}
	if err := c.Send(context.Background(), r); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got := rec.methods(); len(got) != 1 || got[0] != "sendMessage" {
		t.Fatalf("calls = %v, want a single sendMessage", got)
	}
	if markup := rec.forms["sendMessage"]["reply_markup"]; !strings.Contains(markup, `"one_time_keyboard":true`) || !strings.Contains(markup, `"web_app"`) {
		t.Fatalf("reply_markup = %s", markup)
	}
}
