// internal/telegram/webhook.go
//
// Inbound webhook endpoint.
//
// Context
// -------
// Telegram POSTs one JSON Update per request.  The handler:
//
//   1. Checks X-Telegram-Bot-Api-Secret-Token against the configured secret.
//   2. Decodes the update and drops ids seen recently (redeliveries).
//   3. Translates it into an event.Event and hands it to the dispatcher on
//      its own goroutine, then answers 200 at once.
//
// Answering before processing keeps Telegram from retrying slow updates.
// Processing is bounded by HandleTimeout and by the service lifetime.
package telegram

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/yanizio/geofunnel/internal/cache"
	"github.com/yanizio/geofunnel/internal/event"
	"github.com/yanizio/geofunnel/internal/metrics"
)

// SecretHeader carries the webhook secret token.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// HandleTimeout bounds one update's processing.
const HandleTimeout = 30 * time.Second

const (
	maxBody      = 1 << 20
	seenCapacity = 4096
)

// Dispatcher consumes translated events.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev event.Event)
}

// Webhook is the http.Handler for update delivery.
type Webhook struct {
	secret string
	next   Dispatcher
	life   context.Context
	seen   *cache.LRU[int64, struct{}]
	log    *zap.Logger

	wg sync.WaitGroup
}

// NewWebhook returns a handler.  An empty secret disables the header check.
func NewWebhook(life context.Context, secret string, next Dispatcher, log *zap.Logger) *Webhook {
	if life == nil {
		life = context.Background()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Webhook{
		secret: secret,
		next:   next,
		life:   life,
		seen:   cache.New[int64, struct{}](seenCapacity),
		log:    log.Named("webhook"),
	}
}

// ServeHTTP implements http.Handler.
func (h *Webhook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	if h.secret != "" {
		got := r.Header.Get(SecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			h.log.Warn("webhook secret mismatch", zap.String("remote", r.RemoteAddr))
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
	}

	var u models.Update
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(&u); err != nil {
		h.log.Warn("webhook decode", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if h.seen.Seen(u.ID) {
		metrics.DuplicateUpdates.Inc()
		h.log.Debug("duplicate update dropped", zap.Int64("update_id", u.ID))
		w.WriteHeader(http.StatusOK)
		return
	}

	ev, ok := Translate(&u)
	if !ok {
		metrics.Updates.WithLabelValues(event.KindUnknown.String()).Inc()
		w.WriteHeader(http.StatusOK)
		return
	}
	metrics.Updates.WithLabelValues(ev.Kind.String()).Inc()

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		ctx, cancel := context.WithTimeout(h.life, HandleTimeout)
		defer cancel()
		h.next.Dispatch(ctx, ev)
	}()

	w.WriteHeader(http.StatusOK)
}

// Wait blocks until in-flight updates finish.
func (h *Webhook) Wait() { h.wg.Wait() }
