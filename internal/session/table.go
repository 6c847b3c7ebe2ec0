// internal/session/table.go
//
// In-memory, per-identity session table.
//
// Context
// -------
// The funnel engine and the admin surface each own one Table keyed by the
// platform user id.  The two tables are disjoint, so an identity that is both
// a visitor and an operator never has its funnel step mixed with a pending
// admin prompt.
//
// Every mutation runs under one mutex, which gives the engine atomic
// check-and-advance semantics: a duplicate button press racing the original
// sees the already-advanced value.  Values are stored by value; callers get
// copies and cannot mutate shared state behind the lock.
//
// Entries idle longer than the configured TTL are dropped by the evictor
// (see evictor.go).  Nothing is persisted; a process restart empties every
// table, which the funnel treats as "back to AwaitingVerification".
package session

import (
	"sync"
	"time"

	"github.com/yanizio/geofunnel/internal/metrics"
)

type entry[V any] struct {
	val      V
	lastSeen time.Time
}

// Table is a concurrency-safe map from user id to V.  Zero value is
// unusable; construct with New.
type Table[V any] struct {
	name    string
	idleTTL time.Duration
	now     func() time.Time

	mu sync.Mutex
	m  map[int64]*entry[V]
}

// New returns an empty table.  name labels the Prometheus series.
func New[V any](name string, idleTTL time.Duration) *Table[V] {
	return &Table[V]{
		name:    name,
		idleTTL: idleTTL,
		now:     time.Now,
		m:       make(map[int64]*entry[V]),
	}
}

// Get returns a copy of the value and refreshes its idle clock.
func (t *Table[V]) Get(id int64) (V, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.m[id]
	if !ok {
		var zero V
		return zero, false
	}
	e.lastSeen = t.now()
	return e.val, true
}

// Put stores v, replacing any previous value.
func (t *Table[V]) Put(id int64, v V) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.putLocked(id, v)
}

// Delete removes the entry, if any.
func (t *Table[V]) Delete(id int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.deleteLocked(id)
}

// Update runs fn atomically against the current value.  fn returns the new
// value and whether to keep it; keep == false removes the entry.
func (t *Table[V]) Update(id int64, fn func(cur V, ok bool) (next V, keep bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var cur V
	e, ok := t.m[id]
	if ok {
		cur = e.val
	}
	next, keep := fn(cur, ok)
	if keep {
		t.putLocked(id, next)
		return
	}
	if ok {
		t.deleteLocked(id)
	}
}

// Take removes and returns the value when match accepts it.  Entries that
// do not match are left in place.
func (t *Table[V]) Take(id int64, match func(V) bool) (V, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.m[id]
	if !ok || !match(e.val) {
		var zero V
		return zero, false
	}
	t.deleteLocked(id)
	return e.val, true
}

// Len reports current size.
func (t *Table[V]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.m)
}

func (t *Table[V]) putLocked(id int64, v V) {
	if e, ok := t.m[id]; ok {
		e.val = v
		e.lastSeen = t.now()
		return
	}
	t.m[id] = &entry[V]{val: v, lastSeen: t.now()}
	metrics.ActiveSessions.WithLabelValues(t.name).Inc()
}

func (t *Table[V]) deleteLocked(id int64) {
	if _, ok := t.m[id]; !ok {
		return
	}
	delete(t.m, id)
	metrics.ActiveSessions.WithLabelValues(t.name).Dec()
}
