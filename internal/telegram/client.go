// internal/telegram/client.go
//
// Bot API adapter.
//
// Context
// -------
// Client is the only type that talks to api.telegram.org.  It implements
// message.Sender for the funnel and admin surfaces and broadcast.Transport
// for the dispatcher, and it owns webhook registration.  Platform errors
// are mapped to broadcast.Result tags here, so the dispatcher never sees a
// Bot API error type.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/yanizio/geofunnel/internal/broadcast"
	"github.com/yanizio/geofunnel/internal/message"
)

// Client wraps *bot.Bot.  Safe for concurrent use.
type Client struct {
	b   *bot.Bot
	log *zap.Logger
}

// New builds a Client.  No network call is made; the token is checked on
// first use.  Extra options are appended, which lets tests point the
// client at a fake server with bot.WithServerURL.
func New(token string, timeout time.Duration, log *zap.Logger, opts ...bot.Option) (*Client, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	base := []bot.Option{
		bot.WithSkipGetMe(),
		bot.WithHTTPClient(timeout, &http.Client{Timeout: timeout}),
	}
	b, err := bot.New(token, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("telegram client: %w", err)
	}
	return &Client{b: b, log: log.Named("telegram")}, nil
}

// Send implements message.Sender.
func (c *Client) Send(ctx context.Context, r message.Reply) error {
	markup := keyboard(r.Buttons, r.Keyboard)

	if r.EditMessageID != 0 && !r.Keyboard {
		p := &bot.EditMessageTextParams{
			ChatID:    r.ChatID,
			MessageID: r.EditMessageID,
			Text:      r.Text,
		}
		if markup != nil {
			p.ReplyMarkup = markup
		}
		_, err := c.b.EditMessageText(ctx, p)
		if err == nil || isNotModified(err) {
			return nil
		}
		// The original may be too old or deleted; fall back to a new message.
		c.log.Debug("edit failed, sending new message",
			zap.Int64("chat_id", r.ChatID), zap.Error(err))
	}

	p := &bot.SendMessageParams{ChatID: r.ChatID, Text: r.Text}
	if markup != nil {
		p.ReplyMarkup = markup
	}
	if _, err := c.b.SendMessage(ctx, p); err != nil {
		return fmt.Errorf("sendMessage: %w", err)
	}
	return nil
}

// Copy implements broadcast.Transport.
func (c *Client) Copy(ctx context.Context, to int64, src broadcast.Source) broadcast.Result {
	_, err := c.b.CopyMessage(ctx, &bot.CopyMessageParams{
		ChatID:     to,
		FromChatID: src.ChatID,
		MessageID:  src.MessageID,
	})
	return Classify(err)
}

// AnswerCallback acknowledges a button press so the client stops its
// spinner.
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string) error {
	if callbackID == "" {
		return nil
	}
	_, err := c.b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
	})
	if err != nil {
		return fmt.Errorf("answerCallbackQuery: %w", err)
	}
	return nil
}

// SetWebhook registers url and drops any backlog.
func (c *Client) SetWebhook(ctx context.Context, url, secret string) error {
	_, err := c.b.SetWebhook(ctx, &bot.SetWebhookParams{
		URL:                url,
		SecretToken:        secret,
		DropPendingUpdates: true,
		AllowedUpdates:     []string{"message", "callback_query"},
	})
	if err != nil {
		return fmt.Errorf("setWebhook: %w", err)
	}
	c.log.Info("webhook registered", zap.String("url", url))
	return nil
}

// DeleteWebhook unregisters the webhook.
func (c *Client) DeleteWebhook(ctx context.Context) error {
	if _, err := c.b.DeleteWebhook(ctx, &bot.DeleteWebhookParams{}); err != nil {
		return fmt.Errorf("deleteWebhook: %w", err)
	}
	c.log.Info("webhook deleted")
	return nil
}

/*──────────────────────────── helpers ───────────────────────────────────────*/

// Classify maps a Bot API error to a delivery tag.  403 responses and the
// "blocked by the user" / "user is deactivated" descriptions mean the
// recipient can no longer be reached.
func Classify(err error) broadcast.Result {
	if err == nil {
		return broadcast.Result{Status: broadcast.Delivered}
	}
	if errors.Is(err, bot.ErrorForbidden) || errors.Is(err, broadcast.ErrBlocked) {
		return broadcast.Result{Status: broadcast.Blocked, Err: err}
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "blocked by the user") || strings.Contains(msg, "user is deactivated") {
		return broadcast.Result{Status: broadcast.Blocked, Err: err}
	}
	return broadcast.Result{Status: broadcast.Failed, Err: err}
}

func isNotModified(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "message is not modified")
}

// keyboard renders buttons one per row; nil when there are none.  With
// reply set the buttons become a one-time reply keyboard, the only kind from
// which a mini-app may call sendData.
func keyboard(buttons []message.Button, reply bool) models.ReplyMarkup {
	if len(buttons) == 0 {
		return nil
	}
	if reply {
		rows := make([][]models.KeyboardButton, 0, len(buttons))
		for _, b := range buttons {
			k := models.KeyboardButton{Text: b.Label}
			if b.WebApp != "" {
				k.WebApp = &models.WebAppInfo{URL: b.WebApp}
			}
			rows = append(rows, []models.KeyboardButton{k})
		}
		return &models.ReplyKeyboardMarkup{
			Keyboard:        rows,
			ResizeKeyboard:  true,
			OneTimeKeyboard: true,
		}
	}

	rows := make([][]models.InlineKeyboardButton, 0, len(buttons))
	for _, b := range buttons {
		k := models.InlineKeyboardButton{Text: b.Label}
		switch {
		case b.WebApp != "":
			k.WebApp = &models.WebAppInfo{URL: b.WebApp}
		case b.URL != "":
			k.URL = b.URL
		default:
			k.CallbackData = b.Callback
		}
		rows = append(rows, []models.InlineKeyboardButton{k})
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}
