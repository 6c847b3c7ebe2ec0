// internal/message/message.go
//
// Outbound render requests.
//
// Context
//   The funnel engine and the admin surface never talk to the chat platform
//   directly.  They build a Reply (plain text plus optional buttons) and hand
//   it to a Sender.  internal/telegram implements Sender against the Bot API;
//   tests use an in-memory recorder.
//
//   A Reply with EditMessageID set replaces the text and keyboard of an
//   earlier bot message in place, which keeps the funnel to one evolving
//   message per step the way users expect from inline keyboards.
//
// Notes
//   Exactly one of Callback, URL, or WebApp is set on a Button.  Buttons are
//   rendered one per row.
//
//   Keyboard switches a Reply from inline buttons to a one-time reply
//   keyboard.  Mini-apps can only send data back to the bot when opened
//   from a reply keyboard, so the verify button uses it.  Reply keyboards
//   carry WebApp buttons only and cannot be edited in place.
//
//------------------------------------------------------------------------------

package message

import (
	"context"
	"sync"
)

// Button is one keyboard key.
type Button struct {
	Label    string
	Callback string // opaque token returned in the callback event
	URL      string // external link
	WebApp   string // mini-app URL opened inside the client
}

// Reply is a single render request.
type Reply struct {
	ChatID        int64
	EditMessageID int // non-zero: edit this message instead of sending
	Text          string
	Buttons       []Button
	Keyboard      bool // render Buttons as a reply keyboard
}

// Sender delivers replies.  Implementations must be safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, r Reply) error
}

// Text is shorthand for a Reply without buttons.
func Text(chatID int64, text string) Reply {
	return Reply{ChatID: chatID, Text: text}
}

// WithButton returns r with b appended.
func (r Reply) WithButton(b Button) Reply {
	r.Buttons = append(append([]Button(nil), r.Buttons...), b)
	return r
}

// Recorder is a Sender that keeps every Reply in memory.
type Recorder struct {
	mu      sync.Mutex
	replies []Reply
	Err     error // returned from Send when non-nil
}

// Send records r.
func (rec *Recorder) Send(_ context.Context, r Reply) error {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.Err != nil {
		return rec.Err
	}
	rec.replies = append(rec.replies, r)
	return nil
}

// Replies returns a copy of everything sent so far.
func (rec *Recorder) Replies() []Reply {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return append([]Reply(nil), rec.replies...)
}

// Last returns the most recent Reply, or the zero value.
func (rec *Recorder) Last() Reply {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.replies) == 0 {
		return Reply{}
	}
	return rec.replies[len(rec.replies)-1]
}

// Reset drops recorded replies.
func (rec *Recorder) Reset() {
	rec.mu.Lock()
	rec.replies = nil
	rec.mu.Unlock()
}
