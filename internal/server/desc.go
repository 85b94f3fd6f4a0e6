package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName    = "docminer.v1.ExtractionService"
	extractMethod  = "/" + ServiceName + "/Extract"
	describeMethod = "/" + ServiceName + "/Describe"
)

// ExtractionServer is the server API of docminer.v1.ExtractionService. Messages are
// google.protobuf.Struct documents.
type ExtractionServer interface {
	Extract(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Describe(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ExtractionServiceDesc registers an ExtractionServer with a grpc.Server.
var ExtractionServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ExtractionServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Extract", Handler: extractHandler},
		{MethodName: "Describe", Handler: describeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "docminer/v1/extraction.proto",
}

func RegisterExtractionServer(s grpc.ServiceRegistrar, srv ExtractionServer) {
	s.RegisterService(&ExtractionServiceDesc, srv)
}

func extractHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ExtractionServer).Extract(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: extractMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ExtractionServer).Extract(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func describeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ExtractionServer).Describe(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: describeMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ExtractionServer).Describe(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// ExtractionClient calls docminer.v1.ExtractionService.
type ExtractionClient struct {
	cc grpc.ClientConnInterface
}

func NewExtractionClient(cc grpc.ClientConnInterface) *ExtractionClient {
	return &ExtractionClient{cc: cc}
}

func (c *ExtractionClient) Extract(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, extractMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ExtractionClient) Describe(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, describeMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
