// internal/broadcast/broadcast.go
//
// One-pass, throttled fan-out of a single source message.
//
// Context
// -------
// The admin surface hands the dispatcher a Source (the operator's own message)
// and the list of active user ids.  Each recipient gets one Copy call; calls
// are serialized and spaced by a rate.Limiter so the bot stays under the
// platform's outbound ceiling.
//
// Outcome handling
// ----------------
// The Transport returns a tagged Result.  The dispatcher never inspects
// transport errors itself:
//
//   • Delivered  – counted as delivered.
//   • Blocked    – recipient is deactivated, counted as failed.
//   • Failed     – counted as failed, no state change.
//
// A failure never aborts the run and nothing is retried.  Cancelling ctx
// stops the run early; the remaining recipients are counted as failed so
// Delivered + Failed always equals the recipient count.
package broadcast

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/yanizio/geofunnel/internal/metrics"
)

// DefaultDelay is the minimum gap between two deliveries.
const DefaultDelay = 100 * time.Millisecond

// Status tags a delivery outcome.
type Status int

const (
	Delivered Status = iota
	Blocked
	Failed
)

func (s Status) String() string {
	switch s {
	case Delivered:
		return "delivered"
	case Blocked:
		return "blocked"
	default:
		return "failed"
	}
}

// Result is the outcome of one delivery.
type Result struct {
	Status Status
	Err    error // nil when Delivered
}

// Source identifies the message to copy.
type Source struct {
	ChatID    int64
	MessageID int
}

// Transport copies src to one recipient.
type Transport interface {
	Copy(ctx context.Context, to int64, src Source) Result
}

// Deactivator retires a recipient who blocked the bot.
type Deactivator interface {
	Deactivate(ctx context.Context, id int64) error
}

// Report summarizes a run.
type Report struct {
	RunID       string
	Total       int
	Delivered   int
	Failed      int
	Deactivated int
	Elapsed     time.Duration
}

// Dispatcher runs broadcasts.  Safe for concurrent use; each Broadcast call
// gets its own limiter, so concurrent runs are not coordinated.
type Dispatcher struct {
	transport Transport
	users     Deactivator
	delay     time.Duration
	log       *zap.Logger
}

// New returns a Dispatcher.  delay <= 0 selects DefaultDelay.
func New(t Transport, users Deactivator, delay time.Duration, log *zap.Logger) *Dispatcher {
	if delay <= 0 {
		delay = DefaultDelay
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{transport: t, users: users, delay: delay, log: log.Named("broadcast")}
}

// Broadcast copies src to every recipient in order.
func (d *Dispatcher) Broadcast(ctx context.Context, src Source, recipients []int64) Report {
	rep := Report{RunID: uuid.NewString(), Total: len(recipients)}
	log := d.log.With(zap.String("run_id", rep.RunID))
	start := time.Now()

	metrics.BroadcastRuns.Inc()
	log.Info("broadcast started", zap.Int("recipients", rep.Total))

	lim := rate.NewLimiter(rate.Every(d.delay), 1)

	for i, id := range recipients {
		if err := lim.Wait(ctx); err != nil {
			skipped := len(recipients) - i
			rep.Failed += skipped
			metrics.BroadcastDeliveries.WithLabelValues(Failed.String()).Add(float64(skipped))
			log.Warn("broadcast interrupted", zap.Int("skipped", skipped), zap.Error(err))
			break
		}

		res := d.transport.Copy(ctx, id, src)
		metrics.BroadcastDeliveries.WithLabelValues(res.Status.String()).Inc()

		switch res.Status {
		case Delivered:
			rep.Delivered++
		case Blocked:
			rep.Failed++
			if err := d.users.Deactivate(context.WithoutCancel(ctx), id); err != nil {
				log.Error("deactivate recipient", zap.Int64("user_id", id), zap.Error(err))
				continue
			}
			rep.Deactivated++
			log.Info("recipient blocked the bot, deactivated", zap.Int64("user_id", id))
		default:
			rep.Failed++
			log.Warn("delivery failed", zap.Int64("user_id", id), zap.Error(res.Err))
		}
	}

	rep.Elapsed = time.Since(start)
	log.Info("broadcast finished",
		zap.Int("delivered", rep.Delivered),
		zap.Int("failed", rep.Failed),
		zap.Int("deactivated", rep.Deactivated),
		zap.Duration("elapsed", rep.Elapsed))
	return rep
}

// ErrBlocked can be returned by transports that only signal errors; Classify
// maps it to Blocked.
var ErrBlocked = errors.New("recipient blocked the bot")

// Classify turns a plain error into a Result using ErrBlocked.
func Classify(err error) Result {
	switch {
	case err == nil:
		return Result{Status: Delivered}
	case errors.Is(err, ErrBlocked):
		return Result{Status: Blocked, Err: err}
	default:
		return Result{Status: Failed, Err: err}
	}
}
