package remote

import (
	"context"
	"errors"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/savan1304/FindMyLeaseApp/internal/logger"
	"github.com/savan1304/FindMyLeaseApp/pkg/live"
	"github.com/savan1304/FindMyLeaseApp/pkg/record"
)

// ErrStreamEnded indicates the server closed a Watch stream without an error
var ErrStreamEnded = errors.New("remote: watch stream ended")

// Client calls the Collections service
type Client struct {
	cc   grpc.ClientConnInterface
	conn *grpc.ClientConn
	log  *logger.Logger
}

// NewClient wraps an existing connection. The caller keeps ownership of cc.
func NewClient(cc grpc.ClientConnInterface, log *logger.Logger) *Client {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Client{cc: cc, log: log}
}

// Dial creates a client for target. Without options the connection is
// plaintext.
func Dial(target string, log *logger.Logger, opts ...grpc.DialOption) (*Client, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client for %s: %w", target, err)
	}
	c := NewClient(conn, log)
	c.conn = conn
	return c, nil
}

// Close closes a connection created by Dial
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Put stores r and returns its id
func (c *Client) Put(ctx context.Context, collection string, r record.Record) (string, error) {
	req, err := NewPutRequest(collection, r)
	if err != nil {
		return "", err
	}
	resp := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodPut, req, resp); err != nil {
		return "", err
	}
	return ID(resp), nil
}

// Delete removes a record, reporting whether it existed
func (c *Client) Delete(ctx context.Context, collection, id string) (bool, error) {
	resp := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodDelete, NewDeleteRequest(collection, id), resp); err != nil {
		return false, err
	}
	return resp.GetFields()[FieldRemoved].GetBoolValue(), nil
}

// List returns the current records of collection
func (c *Client) List(ctx context.Context, collection string) ([]record.Record, error) {
	resp := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodList, NewCollectionRequest(collection), resp); err != nil {
		return nil, err
	}
	return Records(resp)
}

// Listen implements live.Source over the Watch stream. Cancelling ctx or
// calling stop ends the stream without reporting an error.
func (c *Client) Listen(ctx context.Context, key string, sink live.Sink) func() {
	ctx, cancel := context.WithCancel(ctx)
	log := c.log.SubscriptionLogger(key)

	go func() {
		defer cancel()

		fail := func(err error) {
			if ctx.Err() != nil {
				return
			}
			sink.Error(Classify(key, err))
		}

		stream, err := c.cc.NewStream(ctx, watchStreamDesc, methodWatch)
		if err != nil {
			fail(err)
			return
		}
		if err := stream.SendMsg(NewCollectionRequest(key)); err != nil {
			fail(err)
			return
		}
		if err := stream.CloseSend(); err != nil {
			fail(err)
			return
		}
		log.Debug("Watch stream opened").Send()

		for {
			event := new(structpb.Struct)
			if err := stream.RecvMsg(event); err != nil {
				if errors.Is(err, io.EOF) {
					err = ErrStreamEnded
				}
				fail(err)
				return
			}
			records, err := Records(event)
			if err != nil {
				fail(status.Error(codes.DataLoss, err.Error()))
				return
			}
			if ctx.Err() != nil {
				return
			}
			sink.Snapshot(records)
		}
	}()

	return cancel
}

// Classify maps a gRPC failure onto the subscription error kinds
func Classify(key string, err error) *live.SubscriptionError {
	switch status.Code(err) {
	case codes.PermissionDenied, codes.Unauthenticated:
		return live.NewSubscriptionError(key, live.KindPermission, err)
	case codes.InvalidArgument, codes.NotFound, codes.FailedPrecondition:
		return live.NewSubscriptionError(key, live.KindQuery, err)
	default:
		return live.NewSubscriptionError(key, live.KindTransport, err)
	}
}

var _ live.Source = (*Client)(nil)
