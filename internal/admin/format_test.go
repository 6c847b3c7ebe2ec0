package admin

import (
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/yanizio/geofunnel/internal/store"
)

func TestFormatDestinations(t *testing.T) {
	got := FormatDestinations(map[string]string{
		"DEFAULT": "https://example.com/default/ref789",
		"ES":      "https://example.com/es/ref456",
		"CA":      "https://example.com/ca/ref123",
	})
	ca := strings.Index(got, "CA: https://example.com/ca/ref123")
	es := strings.Index(got, "ES: https://example.com/es/ref456")
	def := strings.Index(got, "DEFAULT: https://example.com/default/ref789")
	if ca < 0 || es < 0 || def < 0 || !(ca < es && es < def) {
		t.Fatalf("want CA, ES, then DEFAULT:\n%s", got)
	}

	if got := FormatDestinations(nil); !strings.Contains(got, "No data") {
		t.Fatalf("empty table = %q", got)
	}
}

func TestFormatUser(t *testing.T) {
	u := &store.User{
		ID:             42,
		Username:       sql.NullString{String: "alice", Valid: true},
		Region:         sql.NullString{String: "ES", Valid: true},
		JoinedAt:       time.Date(2026, 1, 2, 3, 4, 0, 0, time.UTC),
		CompletedSteps: 4,
		LinkClicks:     2,
		Active:         true,
	}
	got := FormatUser(u)
	for _, want := range []string{"42 @alice", "Region: ES", "Joined: 2026-01-02 03:04", "Steps completed: 4", "Link clicks: 2", "Active: true"} {
		if !strings.Contains(got, want) {
			t.Fatalf("FormatUser missing %q:\n%s", want, got)
		}
	}

	if got := FormatUser(&store.User{ID: 7}); !strings.Contains(got, "Region: unverified") || !strings.Contains(got, "7 -") {
		t.Fatalf("FormatUser(blank) = %q", got)
	}
}
