package remote

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/savan1304/FindMyLeaseApp/internal/logger"
	"github.com/savan1304/FindMyLeaseApp/pkg/live"
	"github.com/savan1304/FindMyLeaseApp/pkg/record"
)

// fakeServer answers every call from canned values
type fakeServer struct {
	putSeen   chan *structpb.Struct
	watchErr  error
	watchSend [][]record.Record
}

func (f *fakeServer) Put(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f.putSeen <- in
	return NewIDResponse("generated"), nil
}

func (f *fakeServer) Delete(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return NewRemovedResponse(ID(in) == "present"), nil
}

func (f *fakeServer) List(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if Collection(in) == "Forbidden" {
		return nil, status.Error(codes.PermissionDenied, "no")
	}
	return NewRecordsMessage([]record.Record{record.New("1", map[string]any{"bedrooms": 3})})
}

func (f *fakeServer) Watch(_ *structpb.Struct, stream WatchServer) error {
	for _, batch := range f.watchSend {
		msg, err := NewRecordsMessage(batch)
		if err != nil {
			return err
		}
		if err := stream.Send(msg); err != nil {
			return err
		}
	}
	if f.watchErr != nil {
		return f.watchErr
	}
	<-stream.Context().Done()
	return nil
}

func setupClient(t *testing.T, srv CollectionsServer) *Client {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	s := grpc.NewServer()
	RegisterCollectionsServer(s, srv)
	go func() { _ = s.Serve(lis) }()

	c, err := Dial("passthrough:///bufnet", logger.Nop(),
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return lis.Dial() }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		c.Close()
		s.Stop()
		lis.Close()
	})
	return c
}

type chanSink struct {
	snapshots chan []record.Record
	errs      chan error
}

func newChanSink() *chanSink {
	return &chanSink{snapshots: make(chan []record.Record, 8), errs: make(chan error, 1)}
}

func (c *chanSink) Snapshot(records []record.Record) { c.snapshots <- records }
func (c *chanSink) Error(err error)                  { c.errs <- err }

func TestUnaryCalls(t *testing.T) {
	f := &fakeServer{putSeen: make(chan *structpb.Struct, 1)}
	c := setupClient(t, f)
	ctx := context.Background()

	id, err := c.Put(ctx, "Listing", record.New("", map[string]any{"location": "Uptown"}))
	require.NoError(t, err)
	assert.Equal(t, "generated", id)

	seen := <-f.putSeen
	collection, r, err := ParsePutRequest(seen)
	require.NoError(t, err)
	assert.Equal(t, "Listing", collection)
	assert.Equal(t, "", r.ID)
	loc, _ := r.Get("location")
	assert.Equal(t, "Uptown", loc)

	removed, err := c.Delete(ctx, "Listing", "present")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = c.Delete(ctx, "Listing", "absent")
	require.NoError(t, err)
	assert.False(t, removed)

	list, err := c.List(ctx, "Listing")
	require.NoError(t, err)
	require.Len(t, list, 1)
	beds, _ := list[0].Get("bedrooms")
	assert.Equal(t, float64(3), beds)

	_, err = c.List(ctx, "Forbidden")
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
}

func TestListenDeliversInOrder(t *testing.T) {
	c := setupClient(t, &fakeServer{watchSend: [][]record.Record{
		{record.New("a", nil)},
		{record.New("a", nil), record.New("b", nil)},
	}})

	sink := newChanSink()
	stop := c.Listen(context.Background(), "Listing", sink)
	defer stop()

	for _, want := range [][]string{{"a"}, {"a", "b"}} {
		select {
		case got := <-sink.snapshots:
			gotIDs := make([]string, len(got))
			for i, r := range got {
				gotIDs[i] = r.ID
			}
			assert.Equal(t, want, gotIDs)
		case <-time.After(3 * time.Second):
			t.Fatalf("missing snapshot %v", want)
		}
	}
}

func TestListenClassifiesFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind live.ErrorKind
	}{
		{"permission", status.Error(codes.PermissionDenied, "denied"), live.KindPermission},
		{"unauthenticated", status.Error(codes.Unauthenticated, "who"), live.KindPermission},
		{"query", status.Error(codes.InvalidArgument, "bad path"), live.KindQuery},
		{"transport", status.Error(codes.Unavailable, "down"), live.KindTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := setupClient(t, &fakeServer{watchErr: tt.err})
			sink := newChanSink()
			stop := c.Listen(context.Background(), "Listing", sink)
			defer stop()

			select {
			case err := <-sink.errs:
				var se *live.SubscriptionError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, tt.kind, se.Kind)
				assert.Equal(t, "Listing", se.Key)
			case <-time.After(3 * time.Second):
				t.Fatal("expected error")
			}
		})
	}
}

func TestListenStopIsSilent(t *testing.T) {
	c := setupClient(t, &fakeServer{watchSend: [][]record.Record{{}}})
	sink := newChanSink()
	stop := c.Listen(context.Background(), "Listing", sink)

	select {
	case <-sink.snapshots:
	case <-time.After(3 * time.Second):
		t.Fatal("no snapshot")
	}
	stop()
	stop()

	select {
	case err := <-sink.errs:
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, live.KindTransport, Classify("k", errors.New("plain")).Kind)
	assert.Equal(t, live.KindTransport, Classify("k", ErrStreamEnded).Kind)
	assert.Equal(t, live.KindQuery, Classify("k", status.Error(codes.NotFound, "x")).Kind)
}

func TestParsePutRequestRequiresRecord(t *testing.T) {
	_, _, err := ParsePutRequest(NewCollectionRequest("Listing"))
	assert.ErrorIs(t, err, ErrBadMessage)
}
