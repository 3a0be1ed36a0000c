package rpc

import (
	"context"
	"fmt"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestVideoFrameWireLayout(t *testing.T) {
	t.Parallel()

	frame := &VideoFrame{FrameData: []byte{1, 2, 3}, Width: 1, Height: 1, TimestampUS: 150}
	b := frame.AppendWire(nil)

	// field 1 bytes, field 2/3 varints, field 4 varint
	want := []byte{0x0a, 0x03, 1, 2, 3, 0x10, 0x01, 0x18, 0x01, 0x20, 0x96, 0x01}
	assert.Equal(t, want, b)

	var decoded VideoFrame
	require.NoError(t, decoded.UnmarshalWire(b))
	assert.Equal(t, *frame, decoded)
}

func TestZeroValuesOmitted(t *testing.T) {
	t.Parallel()

	assert.Empty(t, (&Ack{}).AppendWire(nil))
	assert.Empty(t, (&ResultData{}).AppendWire(nil))
	assert.Equal(t, []byte{0x08, 0x01}, (&Ack{Success: true}).AppendWire(nil))
}

func TestUnknownFieldsSkipped(t *testing.T) {
	t.Parallel()

	b := (&StreamAck{Success: true, Message: "ok"}).AppendWire(nil)
	b = protowire.AppendTag(b, 9, protowire.BytesType)
	b = protowire.AppendString(b, "future")
	b = protowire.AppendTag(b, 10, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, 7)

	var ack StreamAck
	require.NoError(t, ack.UnmarshalWire(b))
	assert.True(t, ack.Success)
	assert.Equal(t, "ok", ack.Message)
}

func TestTruncatedMessageRejected(t *testing.T) {
	t.Parallel()

	b := (&ResultData{JSONPayload: "{}", SourceID: "cam"}).AppendWire(nil)

	var rd ResultData
	assert.Error(t, rd.UnmarshalWire(b[:len(b)-1]))
}

func TestUnmarshalResetsMessage(t *testing.T) {
	t.Parallel()

	rd := ResultData{JSONPayload: "stale", TimestampUS: 9}
	require.NoError(t, rd.UnmarshalWire((&ResultData{SourceID: "cam"}).AppendWire(nil)))
	assert.Equal(t, ResultData{SourceID: "cam"}, rd)
}

func TestNegativeDimensionsRoundTrip(t *testing.T) {
	t.Parallel()

	var frame VideoFrame
	require.NoError(t, frame.UnmarshalWire((&VideoFrame{Width: -1, TimestampUS: -5}).AppendWire(nil)))
	assert.Equal(t, int32(-1), frame.Width)
	assert.Equal(t, int64(-5), frame.TimestampUS)
}

type sink struct {
	UnimplementedResultReceiverServer
	got chan *ResultData
}

func (s *sink) SendResult(_ context.Context, in *ResultData) (*Ack, error) {
	s.got <- in
	return &Ack{Success: in.SourceID != ""}, nil
}

type counter struct {
	UnimplementedFrameStreamerServer
}

func (counter) StreamFrames(stream grpc.ClientStreamingServer[VideoFrame, StreamAck]) error {
	var frames, bytes int
	for {
		frame, err := stream.Recv()
		if err == io.EOF {
			return stream.SendAndClose(&StreamAck{Success: true, Message: fmt.Sprintf("frames=%d bytes=%d", frames, bytes)})
		}
		if err != nil {
			return err
		}
		frames++
		bytes += len(frame.FrameData)
	}
}

func dialBufconn(t *testing.T, register func(*grpc.Server)) *grpc.ClientConn {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	register(srv)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestSendResultOverGRPC(t *testing.T) {
	t.Parallel()

	s := &sink{got: make(chan *ResultData, 1)}
	conn := dialBufconn(t, func(srv *grpc.Server) { RegisterResultReceiverServer(srv, s) })

	ack, err := NewResultReceiverClient(conn).SendResult(t.Context(), &ResultData{
		JSONPayload: `{"frame_id":1}`,
		TimestampUS: 1_700_000_000_000_000,
		SourceID:    "cam-1",
	})
	require.NoError(t, err)
	assert.True(t, ack.Success)

	got := <-s.got
	assert.Equal(t, `{"frame_id":1}`, got.JSONPayload)
	assert.Equal(t, int64(1_700_000_000_000_000), got.TimestampUS)
}

func TestStreamFramesOverGRPC(t *testing.T) {
	t.Parallel()

	conn := dialBufconn(t, func(srv *grpc.Server) { RegisterFrameStreamerServer(srv, counter{}) })

	stream, err := NewFrameStreamerClient(conn).StreamFrames(t.Context())
	require.NoError(t, err)
	for i := range 3 {
		require.NoError(t, stream.Send(&VideoFrame{FrameData: make([]byte, 12), Width: 2, Height: 2, TimestampUS: int64(i)}))
	}
	ack, err := stream.CloseAndRecv()
	require.NoError(t, err)
	assert.True(t, ack.Success)
	assert.Equal(t, "frames=3 bytes=36", ack.Message)
}
