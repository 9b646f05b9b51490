// Package redisstore keeps listing collections in Redis hashes and
// announces changes on a pub/sub channel per collection
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/savan1304/FindMyLeaseApp/internal/logger"
	"github.com/savan1304/FindMyLeaseApp/internal/metrics"
	"github.com/savan1304/FindMyLeaseApp/pkg/live"
	"github.com/savan1304/FindMyLeaseApp/pkg/record"
	"github.com/savan1304/FindMyLeaseApp/pkg/store"
)

// Options configures a Store
type Options struct {
	Prefix  string
	Logger  *logger.Logger
	Metrics *metrics.Metrics
}

// Store implements collections over a Redis client
type Store struct {
	client  redis.UniversalClient
	prefix  string
	log     *logger.Logger
	metrics *metrics.Metrics
}

// New wraps an existing client
func New(client redis.UniversalClient, opts Options) *Store {
	log := opts.Logger
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Store{
		client:  client,
		prefix:  opts.Prefix,
		log:     log.StoreLogger("redis"),
		metrics: opts.Metrics,
	}
}

// Dial connects to address and checks the connection
func Dial(ctx context.Context, address string, opts Options) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        address,
		DialTimeout: 2 * time.Second,
		ReadTimeout: 2 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return New(client, opts), nil
}

// Close closes the Redis client
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) hashKey(collection string) string {
	return s.prefix + "col:" + collection
}

func (s *Store) channel(collection string) string {
	return s.hashKey(collection) + ":changes"
}

// Put stores r, generating an id when it has none
func (s *Store) Put(ctx context.Context, collection string, r record.Record) (id string, err error) {
	start := time.Now()
	defer func() { s.observe("put", collection, start, 1, err) }()

	if err := store.ValidatePath(collection); err != nil {
		return "", err
	}
	id = r.ID
	if id == "" {
		id = uuid.NewString()
	}
	val, err := json.Marshal(r.Fields())
	if err != nil {
		return "", fmt.Errorf("encode record %s: %w", id, err)
	}

	if err := s.client.HSet(ctx, s.hashKey(collection), id, val).Err(); err != nil {
		return "", err
	}
	if err := s.client.Publish(ctx, s.channel(collection), id).Err(); err != nil {
		return "", err
	}
	return id, nil
}

// Delete removes a record, reporting whether it existed
func (s *Store) Delete(ctx context.Context, collection, id string) (removed bool, err error) {
	start := time.Now()
	defer func() { s.observe("delete", collection, start, 1, err) }()

	if err := store.ValidatePath(collection); err != nil {
		return false, err
	}
	n, err := s.client.HDel(ctx, s.hashKey(collection), id).Result()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	if err := s.client.Publish(ctx, s.channel(collection), id).Err(); err != nil {
		return true, err
	}
	return true, nil
}

// List returns every record of collection ordered by id
func (s *Store) List(ctx context.Context, collection string) (out []record.Record, err error) {
	start := time.Now()
	defer func() { s.observe("list", collection, start, len(out), err) }()

	if err := store.ValidatePath(collection); err != nil {
		return nil, err
	}
	raw, err := s.client.HGetAll(ctx, s.hashKey(collection)).Result()
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(raw))
	for id := range raw {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out = make([]record.Record, 0, len(ids))
	for _, id := range ids {
		fields := map[string]any{}
		if err := json.Unmarshal([]byte(raw[id]), &fields); err != nil {
			return nil, fmt.Errorf("decode record %s: %w", id, err)
		}
		out = append(out, record.New(id, fields))
	}
	return out, nil
}

// Listen implements live.Source. It subscribes to the change channel before
// the first read so no change between the two is lost. A dropped connection
// ends the subscription with a transport error.
func (s *Store) Listen(ctx context.Context, key string, sink live.Sink) func() {
	if err := store.ValidatePath(key); err != nil {
		go sink.Error(live.NewSubscriptionError(key, live.KindQuery, err))
		return func() {}
	}

	ctx, cancel := context.WithCancel(ctx)
	ps := s.client.Subscribe(ctx, s.channel(key))

	go func() {
		defer ps.Close()

		fail := func(err error) {
			if ctx.Err() == nil {
				sink.Error(live.NewSubscriptionError(key, live.KindTransport, err))
			}
		}

		if _, err := ps.Receive(ctx); err != nil {
			fail(err)
			return
		}

		for {
			records, err := s.List(ctx, key)
			if err != nil {
				fail(err)
				return
			}
			if ctx.Err() != nil {
				return
			}
			sink.Snapshot(records)

			if _, err := ps.ReceiveMessage(ctx); err != nil {
				fail(err)
				return
			}
		}
	}()

	return func() {
		cancel()
		// unblocks a pending read
		_ = ps.Close()
	}
}

func (s *Store) observe(op, collection string, start time.Time, n int, err error) {
	d := time.Since(start)
	if s.metrics != nil {
		s.metrics.RecordStoreOperation("redis_"+op, err, d)
	}
	s.log.LogStoreOperation(op, collection, d, n, err)
}

var _ live.Source = (*Store)(nil)
