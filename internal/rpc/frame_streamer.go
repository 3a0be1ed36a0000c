package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const FrameStreamer_StreamFrames_FullMethodName = "/deepstream.FrameStreamer/StreamFrames"

// FrameStreamerClient is the client API for the FrameStreamer service.
type FrameStreamerClient interface {
	StreamFrames(ctx context.Context, opts ...grpc.CallOption) (grpc.ClientStreamingClient[VideoFrame, StreamAck], error)
}

type frameStreamerClient struct {
	cc grpc.ClientConnInterface
}

func NewFrameStreamerClient(cc grpc.ClientConnInterface) FrameStreamerClient {
	return &frameStreamerClient{cc}
}

func (c *frameStreamerClient) StreamFrames(ctx context.Context, opts ...grpc.CallOption) (grpc.ClientStreamingClient[VideoFrame, StreamAck], error) {
	cOpts := append([]grpc.CallOption{grpc.StaticMethod()}, opts...)
	stream, err := c.cc.NewStream(ctx, &FrameStreamer_ServiceDesc.Streams[0], FrameStreamer_StreamFrames_FullMethodName, cOpts...)
	if err != nil {
		return nil, err
	}
	return &grpc.GenericClientStream[VideoFrame, StreamAck]{ClientStream: stream}, nil
}

// FrameStreamerServer is the server API for the FrameStreamer service.
type FrameStreamerServer interface {
	StreamFrames(grpc.ClientStreamingServer[VideoFrame, StreamAck]) error
}

// UnimplementedFrameStreamerServer can be embedded to satisfy FrameStreamerServer.
type UnimplementedFrameStreamerServer struct{}

func (UnimplementedFrameStreamerServer) StreamFrames(grpc.ClientStreamingServer[VideoFrame, StreamAck]) error {
	return status.Error(codes.Unimplemented, "method StreamFrames not implemented")
}

func RegisterFrameStreamerServer(s grpc.ServiceRegistrar, srv FrameStreamerServer) {
	s.RegisterService(&FrameStreamer_ServiceDesc, srv)
}

func _FrameStreamer_StreamFrames_Handler(srv any, stream grpc.ServerStream) error {
	return srv.(FrameStreamerServer).StreamFrames(&grpc.GenericServerStream[VideoFrame, StreamAck]{ServerStream: stream})
}

// FrameStreamer_ServiceDesc is the grpc.ServiceDesc for the FrameStreamer service.
var FrameStreamer_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "deepstream.FrameStreamer",
	HandlerType: (*FrameStreamerServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamFrames",
			Handler:       _FrameStreamer_StreamFrames_Handler,
			ClientStreams: true,
		},
	},
	Metadata: "bridge.proto",
}
