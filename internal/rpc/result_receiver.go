package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ResultReceiver_SendResult_FullMethodName = "/deepstream.ResultReceiver/SendResult"

// ResultReceiverClient is the client API for the ResultReceiver service.
type ResultReceiverClient interface {
	SendResult(ctx context.Context, in *ResultData, opts ...grpc.CallOption) (*Ack, error)
}

type resultReceiverClient struct {
	cc grpc.ClientConnInterface
}

func NewResultReceiverClient(cc grpc.ClientConnInterface) ResultReceiverClient {
	return &resultReceiverClient{cc}
}

func (c *resultReceiverClient) SendResult(ctx context.Context, in *ResultData, opts ...grpc.CallOption) (*Ack, error) {
	cOpts := append([]grpc.CallOption{grpc.StaticMethod()}, opts...)
	out := new(Ack)
	if err := c.cc.Invoke(ctx, ResultReceiver_SendResult_FullMethodName, in, out, cOpts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ResultReceiverServer is the server API for the ResultReceiver service.
// The bridge only calls it; the server side exists for tests and local sinks.
type ResultReceiverServer interface {
	SendResult(context.Context, *ResultData) (*Ack, error)
}

type UnimplementedResultReceiverServer struct{}

func (UnimplementedResultReceiverServer) SendResult(context.Context, *ResultData) (*Ack, error) {
	return nil, status.Error(codes.Unimplemented, "method SendResult not implemented")
}

func RegisterResultReceiverServer(s grpc.ServiceRegistrar, srv ResultReceiverServer) {
	s.RegisterService(&ResultReceiver_ServiceDesc, srv)
}

func _ResultReceiver_SendResult_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ResultData)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ResultReceiverServer).SendResult(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: ResultReceiver_SendResult_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ResultReceiverServer).SendResult(ctx, req.(*ResultData))
	}
	return interceptor(ctx, in, info, handler)
}

// ResultReceiver_ServiceDesc is the grpc.ServiceDesc for the ResultReceiver service.
var ResultReceiver_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "deepstream.ResultReceiver",
	HandlerType: (*ResultReceiverServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "SendResult",
			Handler:    _ResultReceiver_SendResult_Handler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "bridge.proto",
}
