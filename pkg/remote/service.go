// Package remote describes the findmylease.v1.Collections gRPC service and
// provides a client that doubles as a live.Source
package remote

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "findmylease.v1.Collections"

const (
	methodPut    = "/" + ServiceName + "/Put"
	methodDelete = "/" + ServiceName + "/Delete"
	methodList   = "/" + ServiceName + "/List"
	methodWatch  = "/" + ServiceName + "/Watch"
)

// Message field names. Every request and response is a google.protobuf.Struct.
const (
	FieldCollection = "collection"
	FieldRecord     = "record"
	FieldRecords    = "records"
	FieldID         = "id"
	FieldRemoved    = "removed"
)

// CollectionsServer is the server API for the Collections service
type CollectionsServer interface {
	// Put takes {collection, record:{id, fields}} and returns {id}
	Put(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// Delete takes {collection, id} and returns {removed}
	Delete(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// List takes {collection} and returns {records}
	List(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// Watch takes {collection} and streams {records} on every change
	Watch(*structpb.Struct, WatchServer) error
}

// WatchServer is the server side of a Watch stream
type WatchServer interface {
	Send(*structpb.Struct) error
	grpc.ServerStream
}

type watchServer struct {
	grpc.ServerStream
}

func (x *watchServer) Send(m *structpb.Struct) error {
	return x.ServerStream.SendMsg(m)
}

// RegisterCollectionsServer registers srv on s
func RegisterCollectionsServer(s grpc.ServiceRegistrar, srv CollectionsServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func unaryHandler(method string, call func(CollectionsServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CollectionsServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: method,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(CollectionsServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func watchHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(CollectionsServer).Watch(in, &watchServer{stream})
}

// ServiceDesc is the grpc.ServiceDesc for the Collections service
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CollectionsServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Put",
			Handler:    unaryHandler(methodPut, CollectionsServer.Put),
		},
		{
			MethodName: "Delete",
			Handler:    unaryHandler(methodDelete, CollectionsServer.Delete),
		},
		{
			MethodName: "List",
			Handler:    unaryHandler(methodList, CollectionsServer.List),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Watch",
			Handler:       watchHandler,
			ServerStreams: true,
		},
	},
	Metadata: "findmylease/v1/collections.proto",
}

var watchStreamDesc = &ServiceDesc.Streams[0]
