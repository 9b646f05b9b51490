package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/savan1304/FindMyLeaseApp/pkg/live"
)

// watcher is one attached listener. notify has capacity 1 so bursts of
// writes coalesce into a single re-read of the latest state.
type watcher struct {
	id         string
	collection string
	sink       live.Sink
	notify     chan struct{}
}

// Listen implements live.Source. The initial state is pushed right away and
// the full collection again after every committed change. Closing the store
// fails every attached listener with ErrClosed.
func (s *Store) Listen(ctx context.Context, key string, sink live.Sink) func() {
	if err := ValidatePath(key); err != nil {
		go sink.Error(live.NewSubscriptionError(key, live.KindQuery, err))
		return func() {}
	}

	s.closeMu.RLock()
	if s.closed {
		s.closeMu.RUnlock()
		go sink.Error(live.NewSubscriptionError(key, live.KindTransport, ErrClosed))
		return func() {}
	}

	ctx, cancel := context.WithCancel(ctx)
	w := &watcher{
		id:         uuid.NewString(),
		collection: key,
		sink:       sink,
		notify:     make(chan struct{}, 1),
	}
	w.notify <- struct{}{}
	s.watchers.Store(w.id, w)
	s.wg.Add(1)
	s.closeMu.RUnlock()

	if s.metrics != nil {
		s.metrics.StoreWatchersActive.Inc()
	}
	go s.run(ctx, w)
	return cancel
}

func (s *Store) run(ctx context.Context, w *watcher) {
	defer s.wg.Done()
	defer func() {
		s.watchers.Delete(w.id)
		if s.metrics != nil {
			s.metrics.StoreWatchersActive.Dec()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			if ctx.Err() == nil {
				w.sink.Error(live.NewSubscriptionError(w.collection, live.KindTransport, ErrClosed))
			}
			return
		case <-w.notify:
		}
		if ctx.Err() != nil {
			return
		}

		records, err := s.List(w.collection)
		if err != nil {
			w.sink.Error(live.NewSubscriptionError(w.collection, live.KindTransport, err))
			return
		}
		w.sink.Snapshot(records)
	}
}

func (s *Store) notify(collection string) {
	s.watchers.Range(func(_ string, w *watcher) bool {
		if w.collection == collection {
			select {
			case w.notify <- struct{}{}:
			default:
			}
		}
		return true
	})
}

// Watchers returns the number of attached listeners
func (s *Store) Watchers() int {
	return s.watchers.Size()
}
