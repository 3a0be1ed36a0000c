package ingest

import (
	"context"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"

	"github.com/optix-bridge/optix-bridge/internal/errors"
	"github.com/optix-bridge/optix-bridge/internal/logger"
	"github.com/optix-bridge/optix-bridge/internal/rpc"
)

const (
	DefaultMaxMessageMB = 32

	stopGracePeriod = 5 * time.Second
)

// NewServer returns a grpc.Server serving svc. Messages up to maxMessageMB are
// accepted so that uncompressed 1080p frames (about 6 MiB) fit.
func NewServer(svc *Service, maxMessageMB int) *grpc.Server {
	if maxMessageMB <= 0 {
		maxMessageMB = DefaultMaxMessageMB
	}
	maxSize := maxMessageMB * 1024 * 1024

	kaep := keepalive.EnforcementPolicy{
		MinTime:             5 * time.Second,
		PermitWithoutStream: true,
	}
	kasp := keepalive.ServerParameters{
		Time:    10 * time.Second,
		Timeout: 3 * time.Second,
	}

	srv := grpc.NewServer(
		grpc.MaxRecvMsgSize(maxSize),
		grpc.MaxSendMsgSize(maxSize),
		grpc.KeepaliveEnforcementPolicy(kaep),
		grpc.KeepaliveParams(kasp),
	)
	rpc.RegisterFrameStreamerServer(srv, svc)
	return srv
}

// Serve runs srv on lis until ctx is done, then stops it gracefully.
func Serve(ctx context.Context, srv *grpc.Server, lis net.Listener) error {
	log := GetLogger()
	log.Info("frame ingest listening", logger.String("address", lis.Addr().String()))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(lis) }()

	select {
	case err := <-errCh:
		if err != nil {
			return errors.New(err).
				Component("ingest").
				Category(errors.CategoryNetwork).
				Context("address", lis.Addr().String()).
				Build()
		}
		return nil
	case <-ctx.Done():
		log.Info("stopping frame ingest server")
		stopped := make(chan struct{})
		go func() {
			srv.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(stopGracePeriod):
			log.Warn("open streams did not finish, closing them")
			srv.Stop()
			<-stopped
		}
		<-errCh
		return nil
	}
}
