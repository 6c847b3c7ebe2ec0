// evictor.go houses the idle-eviction loop for Table.  Every interval it
// scans the map and removes entries whose last access is older than the
// table's idle TTL.  Each eviction updates the Prometheus counters.
package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/yanizio/geofunnel/internal/metrics"
)

// Evict drops idle entries and returns how many were removed.
func (t *Table[V]) Evict() int {
	if t.idleTTL <= 0 {
		return 0
	}
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	var n int
	for id, e := range t.m {
		if now.Sub(e.lastSeen) > t.idleTTL {
			t.deleteLocked(id)
			n++
		}
	}
	if n > 0 {
		metrics.SessionEvictTotal.WithLabelValues(t.name).Add(float64(n))
	}
	return n
}

// Run evicts every interval until ctx is cancelled.
func (t *Table[V]) Run(ctx context.Context, interval time.Duration, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	tick := time.NewTicker(interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			if n := t.Evict(); n > 0 {
				log.Info("sessions evicted",
					zap.String("table", t.name),
					zap.Int("count", n),
					zap.Duration("idle_ttl", t.idleTTL))
			}
		}
	}
}
