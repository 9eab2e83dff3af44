package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "glosa.v1.ReviewService"

const (
	methodReview  = "/" + ServiceName + "/Review"
	methodEnqueue = "/" + ServiceName + "/Enqueue"
)

// ReviewServer is the server API. Payloads are schemaless structs.
type ReviewServer interface {
	Review(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Enqueue(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

func RegisterReviewServer(s grpc.ServiceRegistrar, srv ReviewServer) {
	s.RegisterService(&ReviewServiceDesc, srv)
}

func unary(method string, call func(ReviewServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ReviewServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ReviewServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var ReviewServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ReviewServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Review", Handler: unary(methodReview, ReviewServer.Review)},
		{MethodName: "Enqueue", Handler: unary(methodEnqueue, ReviewServer.Enqueue)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "glosa/v1/review.proto",
}

// ReviewClient calls ReviewService.
type ReviewClient struct {
	cc grpc.ClientConnInterface
}

func NewReviewClient(cc grpc.ClientConnInterface) *ReviewClient {
	return &ReviewClient{cc: cc}
}

func (c *ReviewClient) Review(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodReview, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ReviewClient) Enqueue(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodEnqueue, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
