// Package server implements the gRPC Collections service
package server

import (
	"context"
	"errors"
	"sync"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/savan1304/FindMyLeaseApp/internal/logger"
	"github.com/savan1304/FindMyLeaseApp/internal/metrics"
	"github.com/savan1304/FindMyLeaseApp/pkg/live"
	"github.com/savan1304/FindMyLeaseApp/pkg/record"
	"github.com/savan1304/FindMyLeaseApp/pkg/remote"
	"github.com/savan1304/FindMyLeaseApp/pkg/store"
)

// Backend is the collection storage the service exposes
type Backend interface {
	live.Source
	Put(ctx context.Context, collection string, r record.Record) (string, error)
	Delete(ctx context.Context, collection, id string) (bool, error)
	List(ctx context.Context, collection string) ([]record.Record, error)
}

// boltBackend adapts the embedded store to Backend
type boltBackend struct {
	*store.Store
}

// BoltBackend exposes s through the Backend interface
func BoltBackend(s *store.Store) Backend {
	return boltBackend{s}
}

func (b boltBackend) Put(_ context.Context, collection string, r record.Record) (string, error) {
	return b.Store.Put(collection, r)
}

func (b boltBackend) Delete(_ context.Context, collection, id string) (bool, error) {
	return b.Store.Delete(collection, id)
}

func (b boltBackend) List(_ context.Context, collection string) ([]record.Record, error) {
	return b.Store.List(collection)
}

// Server implements remote.CollectionsServer
type Server struct {
	backend Backend
	log     *logger.Logger
	metrics *metrics.Metrics
}

// NewServer creates a new service over backend. m may be nil.
func NewServer(backend Backend, log *logger.Logger, m *metrics.Metrics) *Server {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Server{
		backend: backend,
		log:     log,
		metrics: m,
	}
}

func (s *Server) Put(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	collection, r, err := remote.ParsePutRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	id, err := s.backend.Put(ctx, collection, r)
	if err != nil {
		return nil, toStatus(err, "failed to put record")
	}
	return remote.NewIDResponse(id), nil
}

func (s *Server) Delete(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := remote.ID(req)
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}

	removed, err := s.backend.Delete(ctx, remote.Collection(req), id)
	if err != nil {
		return nil, toStatus(err, "failed to delete record")
	}
	return remote.NewRemovedResponse(removed), nil
}

func (s *Server) List(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	records, err := s.backend.List(ctx, remote.Collection(req))
	if err != nil {
		return nil, toStatus(err, "failed to list records")
	}

	resp, err := remote.NewRecordsMessage(records)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode records: %v", err)
	}
	return resp, nil
}

// Watch streams the full collection on attach and after every change until
// the client goes away or the backend fails.
func (s *Server) Watch(req *structpb.Struct, stream remote.WatchServer) error {
	collection := remote.Collection(req)
	if err := store.ValidatePath(collection); err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}

	ctx := stream.Context()
	log := s.log.SubscriptionLogger(collection)

	if s.metrics != nil {
		s.metrics.WatchStreamsActive.Inc()
		defer s.metrics.WatchStreamsActive.Dec()
	}

	sink := newLatestSink()
	stop := s.backend.Listen(ctx, collection, sink)
	defer stop()

	log.Debug("Watch stream attached").Send()
	defer func() { log.Debug("Watch stream detached").Send() }()

	for {
		select {
		case <-ctx.Done():
			return status.FromContextError(ctx.Err()).Err()

		case err := <-sink.errs:
			log.LogSubscriptionError(collection, string(live.AsSubscriptionError(collection, err).Kind), err)
			return toStatus(err, "watch failed")

		case <-sink.ready:
			records, ok := sink.take()
			if !ok {
				continue
			}
			event, err := remote.NewRecordsMessage(records)
			if err != nil {
				return status.Errorf(codes.Internal, "failed to encode records: %v", err)
			}
			if err := stream.Send(event); err != nil {
				return err
			}
		}
	}
}

// latestSink keeps only the newest undelivered snapshot, so a slow stream
// never blocks the backend's watcher.
type latestSink struct {
	mu      sync.Mutex
	pending []record.Record
	has     bool
	ready   chan struct{}
	errs    chan error
}

func newLatestSink() *latestSink {
	return &latestSink{
		ready: make(chan struct{}, 1),
		errs:  make(chan error, 1),
	}
}

func (l *latestSink) Snapshot(records []record.Record) {
	l.mu.Lock()
	l.pending, l.has = records, true
	l.mu.Unlock()

	select {
	case l.ready <- struct{}{}:
	default:
	}
}

func (l *latestSink) Error(err error) {
	select {
	case l.errs <- err:
	default:
	}
}

func (l *latestSink) take() ([]record.Record, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out, ok := l.pending, l.has
	l.pending, l.has = nil, false
	return out, ok
}

// toStatus translates backend errors into gRPC status errors
func toStatus(err error, msg string) error {
	if _, ok := status.FromError(err); ok {
		return err
	}

	var se *live.SubscriptionError
	if errors.As(err, &se) {
		switch se.Kind {
		case live.KindPermission:
			return status.Errorf(codes.PermissionDenied, "%s: %v", msg, err)
		case live.KindQuery:
			return status.Errorf(codes.InvalidArgument, "%s: %v", msg, err)
		}
	}

	switch {
	case errors.Is(err, store.ErrInvalidPath):
		return status.Errorf(codes.InvalidArgument, "%s: %v", msg, err)
	case errors.Is(err, store.ErrClosed):
		return status.Errorf(codes.Unavailable, "%s: %v", msg, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		return status.Errorf(codes.Internal, "%s: %v", msg, err)
	}
}

var _ remote.CollectionsServer = (*Server)(nil)
