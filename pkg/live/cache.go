// ABOUTME: Live collection cache bridging push-based sources to snapshots
// ABOUTME: One subscription per query key, serialized delivery, idempotent unsubscribe

package live

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/savan1304/FindMyLeaseApp/internal/logger"
	"github.com/savan1304/FindMyLeaseApp/internal/metrics"
	"github.com/savan1304/FindMyLeaseApp/pkg/record"
)

// Options configures a Cache. Zero values fall back to the global logger
// and no metrics.
type Options struct {
	Logger  *logger.Logger
	Metrics *metrics.Metrics
}

// Cache keeps the latest snapshot of every live query it subscribed to.
type Cache struct {
	source  Source
	log     *logger.Logger
	metrics *metrics.Metrics

	mu   sync.Mutex
	subs map[string]*Handle
}

// NewCache creates a cache over source.
func NewCache(source Source, opts Options) *Cache {
	log := opts.Logger
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Cache{
		source:  source,
		log:     log,
		metrics: opts.Metrics,
		subs:    make(map[string]*Handle),
	}
}

// Handle is the cancellation handle of one subscription.
type Handle struct {
	id    string
	key   string
	cache *Cache
	log   *logger.Logger

	onSnapshot func(record.Snapshot)
	onError    func(error)

	// deliverMu serializes deliveries. failed is only set while it is held.
	// inCallback is true while onSnapshot or onError runs.
	deliverMu  sync.Mutex
	failed     atomic.Bool
	closed     atomic.Bool
	inCallback atomic.Bool
	active     atomic.Bool
	last       atomic.Pointer[record.Snapshot]

	stopMu   sync.Mutex
	stop     func()
	detached bool
}

// ID returns the unique id of the subscription.
func (h *Handle) ID() string { return h.id }

// Key returns the query key the subscription observes.
func (h *Handle) Key() string { return h.key }

// Latest returns the last snapshot delivered on this subscription.
func (h *Handle) Latest() (record.Snapshot, bool) {
	p := h.last.Load()
	if p == nil {
		return record.Snapshot{}, false
	}
	return *p, true
}

// Failed reports whether the subscription ended with an error.
func (h *Handle) Failed() bool { return h.failed.Load() }

// Subscribe attaches a listener for key. onSnapshot receives a fresh
// snapshot for the initial load and for every later change; onError
// receives a *SubscriptionError once, after which the subscription stays
// silent. An existing subscription for the same key is torn down first.
// Subscribe never fails synchronously.
func (c *Cache) Subscribe(ctx context.Context, key string, onSnapshot func(record.Snapshot), onError func(error)) *Handle {
	if onSnapshot == nil {
		onSnapshot = func(record.Snapshot) {}
	}
	if onError == nil {
		onError = func(error) {}
	}

	h := &Handle{
		id:         uuid.NewString(),
		key:        key,
		cache:      c,
		log:        c.log.SubscriptionLogger(key),
		onSnapshot: onSnapshot,
		onError:    onError,
	}

	var early error
	switch {
	case key == "":
		early = NewSubscriptionError(key, KindQuery, ErrEmptyKey)
	case c.source == nil:
		early = NewSubscriptionError(key, KindTransport, ErrNoSource)
	}
	if early != nil {
		go sink{h}.Error(early)
		return h
	}

	c.mu.Lock()
	old := c.subs[key]
	c.subs[key] = h
	c.mu.Unlock()

	if old != nil {
		h.log.Debug("replacing live subscription").Str("previous", old.id).Send()
		old.shutdown()
	}

	h.active.Store(true)
	if c.metrics != nil {
		c.metrics.SubscriptionOpened()
	}
	h.log.Debug("subscribing").Str("subscription", h.id).Send()

	h.setStop(c.source.Listen(ctx, key, sink{h}))
	return h
}

// Unsubscribe detaches h. It is idempotent, safe after a failure and safe to
// call from inside h's own callbacks. Once it returns no further callback
// for h starts: a delivery already in progress is waited for, unless the
// caller is that delivery's callback.
func (c *Cache) Unsubscribe(h *Handle) {
	if h == nil {
		return
	}
	c.forget(h)
	h.shutdown()
}

func (c *Cache) forget(h *Handle) {
	c.mu.Lock()
	if c.subs[h.key] == h {
		delete(c.subs, h.key)
	}
	c.mu.Unlock()
}

// Current returns the last snapshot of the live subscription for key.
func (c *Cache) Current(key string) (record.Snapshot, bool) {
	c.mu.Lock()
	h := c.subs[key]
	c.mu.Unlock()
	if h == nil {
		return record.Snapshot{}, false
	}
	return h.Latest()
}

// Keys returns the keys with a live subscription. Failed subscriptions are
// not listed.
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.subs))
	for k := range c.subs {
		keys = append(keys, k)
	}
	return keys
}

// Close unsubscribes everything.
func (c *Cache) Close() {
	c.mu.Lock()
	subs := c.subs
	c.subs = make(map[string]*Handle)
	c.mu.Unlock()

	for _, h := range subs {
		h.shutdown()
	}
}

func (h *Handle) shutdown() {
	h.closed.Store(true)
	if h.release() {
		h.log.Debug("unsubscribed").Str("subscription", h.id).Send()
	}
	h.detach()

	// wait out a delivery that already passed its closed check
	if !h.inCallback.Load() {
		h.deliverMu.Lock()
		h.deliverMu.Unlock()
	}
}

// release takes h off the active gauge, once.
func (h *Handle) release() bool {
	if !h.active.Swap(false) {
		return false
	}
	if h.cache.metrics != nil {
		h.cache.metrics.SubscriptionClosed()
	}
	return true
}

// invoke runs a user callback unless h was closed in the meantime.
func (h *Handle) invoke(fn func()) {
	h.inCallback.Store(true)
	defer h.inCallback.Store(false)
	if h.closed.Load() {
		return
	}
	fn()
}

func (h *Handle) setStop(stop func()) {
	if stop == nil {
		return
	}
	h.stopMu.Lock()
	if h.detached {
		h.stopMu.Unlock()
		stop()
		return
	}
	h.stop = stop
	h.stopMu.Unlock()
}

func (h *Handle) detach() {
	h.stopMu.Lock()
	if h.detached {
		h.stopMu.Unlock()
		return
	}
	h.detached = true
	stop := h.stop
	h.stop = nil
	h.stopMu.Unlock()

	if stop != nil {
		stop()
	}
}

// sink is the Handle side that sources push into.
type sink struct {
	h *Handle
}

func (s sink) Snapshot(records []record.Record) {
	h := s.h
	h.deliverMu.Lock()
	defer h.deliverMu.Unlock()
	if h.closed.Load() || h.failed.Load() {
		return
	}

	snap := record.NewSnapshot(records)
	h.last.Store(&snap)
	if h.cache.metrics != nil {
		h.cache.metrics.RecordSnapshot(snap.Len())
	}
	h.log.LogSnapshot(h.key, snap.Len())
	h.invoke(func() { h.onSnapshot(snap) })
}

func (s sink) Error(err error) {
	h := s.h
	h.deliverMu.Lock()
	defer h.deliverMu.Unlock()
	if h.closed.Load() || h.failed.Load() {
		return
	}
	h.failed.Store(true)

	se := AsSubscriptionError(h.key, err)
	if se.Key == "" {
		se.Key = h.key
	}
	if h.cache.metrics != nil {
		h.cache.metrics.RecordSubscriptionError(string(se.Kind))
	}
	h.log.LogSubscriptionError(h.key, string(se.Kind), se.Err)
	h.cache.forget(h)
	h.release()
	h.detach()
	h.invoke(func() { h.onError(se) })
}
