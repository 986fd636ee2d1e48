package fedavgd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/absmach/fedavg"
	"github.com/absmach/fedavg/coordinator"
	"github.com/absmach/fedavg/coordinator/api"
	"github.com/absmach/fedavg/coordinator/middleware"
	"github.com/absmach/fedavg/pkg/codec"
	"github.com/absmach/fedavg/pkg/mqtt"
	"github.com/absmach/fedavg/pkg/storage"
	"github.com/absmach/fedavg/pkg/transport"
	"github.com/absmach/supermq/pkg/jaeger"
	"github.com/absmach/supermq/pkg/prometheus"
	"github.com/absmach/supermq/pkg/server"
	httpserver "github.com/absmach/supermq/pkg/server/http"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"
)

const (
	coordinatorSvc = "coordinator"
	DefHTTPPort    = "9090"
	EnvPrefixHTTP  = "COORDINATOR_HTTP_"
)

type CoordinatorConfig struct {
	LogLevel         string        `env:"COORDINATOR_LOG_LEVEL"         envDefault:"info"`
	InstanceID       string        `env:"COORDINATOR_INSTANCE_ID"`
	RunID            string        `env:"COORDINATOR_RUN_ID"`
	Address          string        `env:"COORDINATOR_ADDRESS"           envDefault:":7070"`
	Codec            string        `env:"COORDINATOR_CODEC"             envDefault:"json"`
	HandshakeTimeout time.Duration `env:"COORDINATOR_HANDSHAKE_TIMEOUT" envDefault:"10s"`
	SendTimeout      time.Duration `env:"COORDINATOR_SEND_TIMEOUT"      envDefault:"10s"`
	ConfigFile       string        `env:"COORDINATOR_CONFIG_FILE"`
	OTELURL          url.URL       `env:"COORDINATOR_OTEL_URL"`
	TraceRatio       float64       `env:"COORDINATOR_TRACE_RATIO"       envDefault:"0"`

	Run     coordinator.RunConfig `envPrefix:"COORDINATOR_"`
	Storage storage.Config
	MQTT    mqtt.Config `envPrefix:"COORDINATOR_MQTT_"`
}

// StartCoordinator serves participants and the monitoring API, runs a single
// FedAvg run and returns once it terminates or ctx is cancelled.
func StartCoordinator(ctx context.Context, cancel context.CancelFunc, cfg CoordinatorConfig, httpCfg server.Config) error {
	g, ctx := errgroup.WithContext(ctx)

	logger, err := NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}

	if cfg.ConfigFile != "" {
		file, err := fedavg.LoadConfig(cfg.ConfigFile)
		if err != nil {
			return err
		}
		file.ApplyRun(&cfg.Run)
	}
	if err := cfg.Run.Validate(); err != nil {
		return err
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	if httpCfg.Port == "" {
		httpCfg.Port = DefHTTPPort
	}
	logger = logger.With(slog.String("run_id", cfg.RunID))

	wire, err := codec.New(cfg.Codec)
	if err != nil {
		return err
	}

	var tp trace.TracerProvider
	switch {
	case cfg.OTELURL == (url.URL{}):
		tp = noop.NewTracerProvider()
	default:
		sdktp, err := jaeger.NewProvider(ctx, coordinatorSvc, cfg.OTELURL, cfg.InstanceID, cfg.TraceRatio)
		if err != nil {
			return fmt.Errorf("failed to initialize opentelemetry: %w", err)
		}
		defer func() {
			if err := sdktp.Shutdown(context.Background()); err != nil {
				logger.Error("error shutting down tracer provider", slog.Any("error", err))
			}
		}()
		tp = sdktp
	}
	tracer := tp.Tracer(coordinatorSvc)

	repos, err := storage.NewRepositories(cfg.Storage, cfg.RunID)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	if repos.Closer != nil {
		defer repos.Closer.Close()
	}

	notifier := coordinator.NewNoopNotifier()
	if cfg.MQTT.Enabled() {
		if cfg.MQTT.ClientID == "" {
			cfg.MQTT.ClientID = coordinatorSvc + "-" + cfg.InstanceID
		}
		pubsub, err := mqtt.NewPubSub(cfg.MQTT, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize mqtt pubsub: %w", err)
		}
		defer func() {
			if err := pubsub.Disconnect(context.Background()); err != nil {
				logger.Warn("failed to disconnect from broker", slog.Any("error", err))
			}
		}()
		notifier = coordinator.NewMQTTNotifier(pubsub, cfg.MQTT.BaseTopic)
	}

	agg := coordinator.NewAggregator(coordinator.AggregatorConfig{
		Quota:       cfg.Run.ExpectedParticipants,
		Dimension:   cfg.Run.Dimension,
		SendTimeout: cfg.SendTimeout,
	}, logger)
	defer agg.Close()

	orch := coordinator.NewOrchestrator(cfg.RunID, cfg.Run, agg, repos.History, notifier, logger)

	svc := coordinator.NewService(orch, agg, repos.History)
	svc = middleware.Logging(logger, svc)
	svc = middleware.Tracing(tracer, svc)
	counter, latency := prometheus.MakeMetrics(coordinatorSvc, "api")
	svc = middleware.Metrics(counter, latency, svc)

	ln, err := transport.Listen(cfg.Address, wire)
	if err != nil {
		return err
	}
	srv := coordinator.NewServer(agg, cfg.HandshakeTimeout, logger)

	hs := httpserver.NewServer(ctx, cancel, coordinatorSvc, httpCfg, api.MakeHandler(svc, logger, cfg.InstanceID), logger)

	g.Go(func() error {
		return hs.Start()
	})

	g.Go(func() error {
		return server.StopSignalHandler(ctx, cancel, logger, coordinatorSvc, hs)
	})

	g.Go(func() error {
		return srv.Serve(ctx, ln)
	})

	g.Go(func() error {
		defer cancel()

		res, err := svc.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		if err != nil {
			return err
		}

		logger.Info("run finished",
			slog.Int("rounds", len(res.History)),
			slog.String("reason", res.Reason),
			slog.Bool("stopped_early", res.StoppedEarly),
			slog.Any("parameters", res.Model.Parameters),
		)

		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("%s service exited with error: %w", coordinatorSvc, err)
	}

	return nil
}
