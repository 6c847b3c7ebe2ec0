package auth

import (
	"context"
	"testing"
)

func TestCaller(t *testing.T) {
	if _, ok := UserID(context.Background()); ok {
		t.Fatalf("empty context reported a user")
	}

	ctx := WithCaller(context.Background(), Caller{ID: 123, ChatID: 456, Username: "op"})
	if id, ok := UserID(ctx); !ok || id != 123 {
		t.Fatalf("UserID = %d, %v", id, ok)
	}
	c, _ := CallerFrom(ctx)
	if c.ChatID != 456 || c.Username != "op" {
		t.Fatalf("CallerFrom = %+v", c)
	}

	if c, _ := CallerFrom(WithUser(context.Background(), 7)); c.ChatID != 7 {
		t.Fatalf("WithUser chat = %d, want 7", c.ChatID)
	}
}
