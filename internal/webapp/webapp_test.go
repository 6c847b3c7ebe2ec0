package webapp

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandler_Page(t *testing.T) {
	h := Handler("/web_app/")

	r := httptest.NewRequest(http.MethodGet, "/web_app/", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.7")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `data-ip="203.0.113.7"`) {
		t.Fatalf("client ip not embedded:\n%s", body)
	}
	if !strings.Contains(body, `src="/web_app/app.js"`) {
		t.Fatalf("script path missing:\n%s", body)
	}
	if got := w.Header().Get("Cache-Control"); got != "no-store" {
		t.Fatalf("Cache-Control = %q", got)
	}
}

func TestHandler_Script(t *testing.T) {
	h := Handler("/web_app")

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/web_app/app.js", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "sendData") {
		t.Fatalf("unexpected script body")
	}
}

func TestHandler_Method(t *testing.T) {
	w := httptest.NewRecorder()
	Handler("/web_app/").ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/web_app/", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", w.Code)
	}
}
