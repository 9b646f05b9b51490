// ABOUTME: Tests for the Redis collection store against an in-memory server

package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savan1304/FindMyLeaseApp/internal/logger"
	"github.com/savan1304/FindMyLeaseApp/pkg/live"
	"github.com/savan1304/FindMyLeaseApp/pkg/record"
	"github.com/savan1304/FindMyLeaseApp/pkg/store"
)

func setupTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := Dial(context.Background(), mr.Addr(), Options{Prefix: "test:", Logger: logger.Nop()})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, mr
}

type chanSink struct {
	snapshots chan []record.Record
	errs      chan error
}

func newChanSink() *chanSink {
	return &chanSink{
		snapshots: make(chan []record.Record, 16),
		errs:      make(chan error, 1),
	}
}

func (c *chanSink) Snapshot(records []record.Record) { c.snapshots <- records }
func (c *chanSink) Error(err error)                  { c.errs <- err }

func ids(records []record.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func (c *chanSink) waitFor(t *testing.T, want []string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-c.snapshots:
			if assert.ObjectsAreEqual(want, ids(got)) {
				return
			}
		case err := <-c.errs:
			t.Fatalf("unexpected error: %v", err)
		case <-deadline:
			t.Fatalf("timed out waiting for %v", want)
		}
	}
}

func TestDialFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, err := Dial(ctx, "127.0.0.1:1", Options{Logger: logger.Nop()})
	assert.Error(t, err)
}

func TestPutListDelete(t *testing.T) {
	s, mr := setupTestStore(t)
	ctx := context.Background()

	_, err := s.Put(ctx, "Listing", record.New("b", map[string]any{"bedrooms": 4}))
	require.NoError(t, err)
	id, err := s.Put(ctx, "Listing", record.New("", map[string]any{"area": "95m²"}))
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	assert.True(t, mr.Exists("test:col:Listing"))

	list, err := s.List(ctx, "Listing")
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.ElementsMatch(t, []string{"b", id}, ids(list))

	removed, err := s.Delete(ctx, "Listing", "b")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.Delete(ctx, "Listing", "b")
	require.NoError(t, err)
	assert.False(t, removed)

	list, err = s.List(ctx, "Listing")
	require.NoError(t, err)
	assert.Equal(t, []string{id}, ids(list))

	area, _ := list[0].Get("area")
	assert.Equal(t, "95m²", area)
}

func TestInvalidPath(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	_, err := s.Put(ctx, "User/u1", record.New("a", nil))
	assert.ErrorIs(t, err, store.ErrInvalidPath)
	_, err = s.List(ctx, "")
	assert.ErrorIs(t, err, store.ErrInvalidPath)

	sink := newChanSink()
	s.Listen(ctx, "User/u1", sink)
	select {
	case err := <-sink.errs:
		var se *live.SubscriptionError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, live.KindQuery, se.Kind)
	case <-time.After(time.Second):
		t.Fatal("expected error")
	}
}

func TestListenPushesChanges(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	_, err := s.Put(ctx, "User/u1/saved", record.New("1", nil))
	require.NoError(t, err)

	sink := newChanSink()
	stop := s.Listen(ctx, "User/u1/saved", sink)
	defer stop()
	sink.waitFor(t, []string{"1"})

	_, err = s.Put(ctx, "User/u1/saved", record.New("2", nil))
	require.NoError(t, err)
	sink.waitFor(t, []string{"1", "2"})

	_, err = s.Delete(ctx, "User/u1/saved", "1")
	require.NoError(t, err)
	sink.waitFor(t, []string{"2"})
}

func TestListenStopIsSilent(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	sink := newChanSink()
	stop := s.Listen(ctx, "Listing", sink)
	sink.waitFor(t, []string{})
	stop()
	stop()

	_, err := s.Put(ctx, "Listing", record.New("1", nil))
	require.NoError(t, err)

	select {
	case got := <-sink.snapshots:
		t.Fatalf("snapshot after stop: %v", ids(got))
	case err := <-sink.errs:
		t.Fatalf("error after stop: %v", err)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestListenReportsTransportFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	s := New(client, Options{Logger: logger.Nop()})
	defer s.Close()

	sink := newChanSink()
	stop := s.Listen(context.Background(), "Listing", sink)
	defer stop()
	sink.waitFor(t, []string{})

	mr.Close()

	select {
	case err := <-sink.errs:
		var se *live.SubscriptionError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, live.KindTransport, se.Kind)
	case <-time.After(5 * time.Second):
		t.Fatal("expected transport error")
	}
}

func TestCacheOverRedis(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	c := live.NewCache(s, live.Options{Logger: logger.Nop()})
	defer c.Close()

	got := make(chan record.Snapshot, 16)
	c.Subscribe(ctx, live.ListingsKey, func(snap record.Snapshot) { got <- snap }, nil)

	select {
	case snap := <-got:
		assert.Equal(t, 0, snap.Len())
	case <-time.After(2 * time.Second):
		t.Fatal("no initial snapshot")
	}

	_, err := s.Put(ctx, live.ListingsKey, record.New("h1", map[string]any{"bedrooms": 3}))
	require.NoError(t, err)

	select {
	case snap := <-got:
		assert.Equal(t, []string{"h1"}, snap.IDs())
	case <-time.After(2 * time.Second):
		t.Fatal("no update snapshot")
	}
}
