// ABOUTME: bbolt-backed collection store with live watchers
// ABOUTME: One nested bucket per collection path, records stored as JSON

package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	bolt "go.etcd.io/bbolt"

	"github.com/savan1304/FindMyLeaseApp/internal/logger"
	"github.com/savan1304/FindMyLeaseApp/internal/metrics"
	"github.com/savan1304/FindMyLeaseApp/pkg/live"
	"github.com/savan1304/FindMyLeaseApp/pkg/record"
)

const (
	bCollections = "collections"

	defaultTO = 2 * time.Second
)

// Options configures a Store
type Options struct {
	Logger  *logger.Logger
	Metrics *metrics.Metrics
}

// Store manages collections in a bbolt file
type Store struct {
	db      *bolt.DB
	log     *logger.Logger
	metrics *metrics.Metrics

	watchers *xsync.MapOf[string, *watcher]

	closeMu sync.RWMutex
	closed  bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// Open opens (or creates) a store at path
func Open(path string, opts Options) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("store: empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: defaultTO})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bCollections))
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}

	log := opts.Logger
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	return &Store{
		db:       db,
		log:      log.StoreLogger("bolt"),
		metrics:  opts.Metrics,
		watchers: xsync.NewMapOf[string, *watcher](),
		done:     make(chan struct{}),
	}, nil
}

// Close stops all watchers and closes the database
func (s *Store) Close() error {
	s.closeMu.Lock()
	if s.closed {
		s.closeMu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	s.closeMu.Unlock()

	s.wg.Wait()
	return s.db.Close()
}

// Put stores r in collection, replacing any record with the same id. An
// empty id is replaced with a generated one, which is returned.
func (s *Store) Put(collection string, r record.Record) (id string, err error) {
	start := time.Now()
	defer func() { s.observe("put", collection, start, 1, err) }()

	if err := ValidatePath(collection); err != nil {
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

	err = s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.Bucket([]byte(bCollections)).CreateBucketIfNotExists([]byte(collection))
		if err != nil {
			return err
		}
		return b.Put([]byte(id), val)
	})
	if err != nil {
		return "", err
	}

	s.notify(collection)
	return id, nil
}

// Delete removes a record. Deleting a missing record is not an error; the
// result reports whether anything was removed.
func (s *Store) Delete(collection, id string) (removed bool, err error) {
	start := time.Now()
	defer func() { s.observe("delete", collection, start, 1, err) }()

	if err := ValidatePath(collection); err != nil {
		return false, err
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bCollections)).Bucket([]byte(collection))
		if b == nil || b.Get([]byte(id)) == nil {
			return nil
		}
		removed = true
		return b.Delete([]byte(id))
	})
	if err != nil {
		return false, err
	}

	if removed {
		s.notify(collection)
	}
	return removed, nil
}

// List returns every record of collection ordered by id
func (s *Store) List(collection string) (out []record.Record, err error) {
	start := time.Now()
	defer func() { s.observe("list", collection, start, len(out), err) }()

	if err := ValidatePath(collection); err != nil {
		return nil, err
	}

	err = s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bCollections)).Bucket([]byte(collection))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			fields := map[string]any{}
			if err := json.Unmarshal(v, &fields); err != nil {
				return fmt.Errorf("decode record %s: %w", k, err)
			}
			out = append(out, record.New(string(k), fields))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns a single record
func (s *Store) Get(collection, id string) (record.Record, bool, error) {
	if err := ValidatePath(collection); err != nil {
		return record.Record{}, false, err
	}

	var (
		r     record.Record
		found bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bCollections)).Bucket([]byte(collection))
		if b == nil {
			return nil
		}
		v := b.Get([]byte(id))
		if v == nil {
			return nil
		}
		fields := map[string]any{}
		if err := json.Unmarshal(v, &fields); err != nil {
			return fmt.Errorf("decode record %s: %w", id, err)
		}
		r, found = record.New(id, fields), true
		return nil
	})
	return r, found, err
}

func (s *Store) observe(op, collection string, start time.Time, n int, err error) {
	d := time.Since(start)
	if s.metrics != nil {
		s.metrics.RecordStoreOperation(op, err, d)
	}
	s.log.LogStoreOperation(op, collection, d, n, err)
}

var _ live.Source = (*Store)(nil)
