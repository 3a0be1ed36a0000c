// Package serve implements the command that runs the bridge daemon.
package serve

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/optix-bridge/optix-bridge/internal/annotate"
	"github.com/optix-bridge/optix-bridge/internal/api"
	"github.com/optix-bridge/optix-bridge/internal/buildinfo"
	"github.com/optix-bridge/optix-bridge/internal/conf"
	"github.com/optix-bridge/optix-bridge/internal/emitter"
	"github.com/optix-bridge/optix-bridge/internal/errors"
	"github.com/optix-bridge/optix-bridge/internal/identity"
	"github.com/optix-bridge/optix-bridge/internal/ingest"
	"github.com/optix-bridge/optix-bridge/internal/logger"
	"github.com/optix-bridge/optix-bridge/internal/mqtt"
	"github.com/optix-bridge/optix-bridge/internal/observability"
	"github.com/optix-bridge/optix-bridge/internal/pipeline"
	"github.com/optix-bridge/optix-bridge/internal/processor"
	"github.com/optix-bridge/optix-bridge/internal/tracking"
)

// Command creates a new cobra.Command for running the bridge.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the frame ingest server, identity annotator and result emitter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return Run(ctx, settings)
		},
	}

	if err := setupFlags(cmd); err != nil {
		fmt.Fprintf(os.Stderr, "error setting up flags: %v\n", err)
	}

	return cmd
}

// setupFlags configures flags specific to the serve command. Flags are bound to
// viper, so a flag that is set takes precedence when the root command loads settings.
func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().String("listen", "", "Frame ingest gRPC listen address (default \":50051\")")
	cmd.Flags().String("target", "", "Address of the result receiver (default \"localhost:50052\")")
	cmd.Flags().String("api-listen", "", "Admin API listen address (default \":8090\")")
	cmd.Flags().String("injector", "", "Frame injector: appsrc or discard (default \"appsrc\")")

	bindings := map[string]string{
		"ingest.listen":   "listen",
		"emitter.target":  "target",
		"api.listen":      "api-listen",
		"ingest.injector": "injector",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}
	return nil
}

// Run wires every component from settings and blocks until ctx is cancelled or a
// component fails.
func Run(ctx context.Context, settings *conf.Settings) error {
	log := logger.Global().Module("serve")
	log.Info("starting optix-bridge", logger.String("build", buildinfo.Current().String()))

	m, err := observability.NewMetrics()
	if err != nil {
		return err
	}

	repo, closeRepo, err := identity.OpenRepository(settings.Identity.Backend, settings.Identity.DBPath, settings.Identity.SQLitePath)
	if err != nil {
		return errors.New(err).
			Component("serve").
			Category(errors.CategoryConfiguration).
			Build()
	}
	defer func() {
		if err := closeRepo(); err != nil {
			log.Warn("failed to close identity repository", logger.Error(err))
		}
	}()

	store := identity.NewStore(
		identity.WithThreshold(settings.Identity.Threshold),
		identity.WithMetrics(m.Identity),
	)
	// A missing or unreadable database leaves the store empty; every face is "unknown"
	// until identities are added.
	if err := store.LoadFrom(ctx, repo); err != nil {
		log.Warn("starting with empty identity store", logger.Error(err))
	}

	cache := tracking.NewCache(
		tracking.WithTTL(settings.Tracking.TTL, settings.Tracking.CleanupInterval),
		tracking.WithMetrics(m.Tracking),
	)
	annotator := annotate.NewAnnotator(cache, store,
		annotate.WithClass(settings.Annotate.ClassID, settings.Annotate.ClassLabel))

	primary, err := emitter.NewGRPCEmitter(settings.Emitter.Target,
		emitter.WithTimeout(settings.Emitter.Timeout),
		emitter.WithMetrics(m.Emitter),
	)
	if err != nil {
		return err
	}

	var (
		emit       emitter.Emitter = primary
		mqttClient mqtt.Client
	)
	if settings.MQTT.Enabled {
		mqttClient, err = newMQTTClient(settings, m)
		if err != nil {
			_ = primary.Close()
			return err
		}
		mirror := emitter.NewMQTTMirror(mqttClient, settings.MQTT.Topic, mqtt.DefaultConfig().PublishTimeout)
		emit = emitter.NewFanout(primary, mirror)
	}
	defer func() {
		if err := emit.Close(); err != nil {
			log.Warn("failed to close emitter", logger.Error(err))
		}
	}()

	proc := processor.New(annotator, emit,
		processor.WithQueueSize(settings.Processor.QueueSize),
		processor.WithMetrics(m.Processor),
	)

	// Everything that can fail is set up before the first goroutine starts, so an
	// early return never leaves group members running.
	var (
		svc       *ingest.Service
		ingestSrv *grpc.Server
		ingestLis net.Listener
	)
	if settings.Ingest.Enabled {
		injector, err := newInjector(settings)
		if err != nil {
			return err
		}
		defer func() {
			if err := injector.Close(); err != nil {
				log.Warn("failed to close injector", logger.Error(err))
			}
		}()

		svc = ingest.NewService(injector,
			ingest.WithQueueSize(settings.Ingest.QueueSize),
			ingest.WithPutTimeout(settings.Ingest.PutTimeout),
			ingest.WithMetrics(m.Ingest),
		)
		// Stop runs after the server has drained so in-flight streams see a running worker.
		defer svc.Stop()

		ingestLis, err = net.Listen("tcp", settings.Ingest.Listen)
		if err != nil {
			return errors.New(fmt.Errorf("failed to listen on %s: %w", settings.Ingest.Listen, err)).
				Component("serve").
				Category(errors.CategoryNetwork).
				Build()
		}
		ingestSrv = ingest.NewServer(svc, settings.Ingest.MaxMessageMB)
	} else {
		log.Info("frame ingest disabled")
	}

	var apiServer *api.Server
	if settings.API.Enabled {
		apiCfg := api.DefaultConfig()
		apiCfg.Listen = settings.API.Listen
		opts := []api.ServerOption{
			api.WithIdentities(store, repo),
			api.WithTracks(cache),
			api.WithProcessor(proc),
			api.WithMetrics(m),
			api.WithSettings(settings),
		}
		if svc != nil {
			opts = append(opts, api.WithIngest(svc))
		}
		apiServer = api.New(apiCfg, opts...)
	}

	g, gctx := errgroup.WithContext(ctx)

	if mqttClient != nil {
		g.Go(func() error {
			if err := mqtt.ConnectWithBackoff(gctx, mqttClient); err != nil && gctx.Err() == nil {
				log.Error("mqtt connection abandoned", logger.Error(err))
			}
			return nil
		})
	}
	if ingestSrv != nil {
		g.Go(func() error { return ingest.Serve(gctx, ingestSrv, ingestLis) })
	}
	if apiServer != nil {
		g.Go(func() error { return apiServer.Run(gctx) })
	}
	g.Go(func() error {
		cache.Run(gctx)
		return nil
	})
	g.Go(func() error { return proc.Run(gctx) })

	err = g.Wait()
	log.Info("optix-bridge stopped")
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newMQTTClient(settings *conf.Settings, m *observability.Metrics) (mqtt.Client, error) {
	cfg := mqtt.DefaultConfig()
	cfg.Broker = settings.MQTT.Broker
	cfg.ClientID = settings.MQTT.ClientID
	cfg.Username = settings.MQTT.Username
	cfg.Password = settings.MQTT.Password
	cfg.QoS = settings.MQTT.QoS
	cfg.Retain = settings.MQTT.Retain
	return mqtt.NewClient(cfg, m.MQTT)
}

func newInjector(settings *conf.Settings) (pipeline.Injector, error) {
	switch settings.Ingest.Injector {
	case conf.InjectorDiscard:
		return pipeline.NewDiscardInjector(), nil
	case conf.InjectorAppSrc, "":
		return pipeline.NewAppSrcInjector(pipeline.AppSrcConfig{
			Pipeline:  settings.Ingest.AppSrc.Pipeline,
			Width:     settings.Ingest.AppSrc.Width,
			Height:    settings.Ingest.AppSrc.Height,
			Framerate: settings.Ingest.AppSrc.Framerate,
		})
	default:
		return nil, errors.Newf("unknown injector %q", settings.Ingest.Injector).
			Component("serve").
			Category(errors.CategoryConfiguration).
			Build()
	}
}
