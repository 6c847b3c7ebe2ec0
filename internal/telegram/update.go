package telegram

import (
	"strings"

	"github.com/go-telegram/bot/models"

	"github.com/yanizio/geofunnel/internal/event"
)

// Translate converts a Bot API update into an Event.  ok is false for
// update types the bot does not handle (edited messages, channel posts,
// messages without a sender).
func Translate(u *models.Update) (ev event.Event, ok bool) {
	ev.UpdateID = u.ID

	switch {
	case u.CallbackQuery != nil:
		cq := u.CallbackQuery
		ev.Kind = event.KindCallback
		ev.UserID = cq.From.ID
		ev.ChatID = cq.From.ID
		ev.Username = cq.From.Username
		ev.Data = cq.Data
		ev.CallbackID = cq.ID
		if m := cq.Message.Message; m != nil {
			ev.ChatID = m.Chat.ID
			ev.MessageID = m.ID
		}
		return ev, true

	case u.Message != nil && u.Message.From != nil:
		m := u.Message
		ev.UserID = m.From.ID
		ev.ChatID = m.Chat.ID
		ev.Username = m.From.Username
		ev.MessageID = m.ID
		ev.Text = m.Text

		switch {
		case m.WebAppData != nil:
			ev.Kind = event.KindWebApp
			ev.Data = m.WebAppData.Data
		case strings.HasPrefix(m.Text, "/"):
			ev.Command = commandName(m.Text)
			ev.Kind = event.KindCommand
			if ev.Command == "start" {
				ev.Kind = event.KindStart
			}
		default:
			ev.Kind = event.KindText
		}
		return ev, true
	}
	return ev, false
}

// commandName extracts "admin" from "/admin@MyBot arg".
func commandName(text string) string {
	name, _, _ := strings.Cut(strings.TrimPrefix(text, "/"), " ")
	name, _, _ = strings.Cut(name, "@")
	return strings.ToLower(name)
}
