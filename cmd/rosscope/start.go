package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	kitprometheus "github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	rosscope "github.com/00PrabalK00/RosScope"
	"github.com/00PrabalK00/RosScope/actions"
	"github.com/00PrabalK00/RosScope/api"
	"github.com/00PrabalK00/RosScope/diagnostics"
	"github.com/00PrabalK00/RosScope/fleet"
	"github.com/00PrabalK00/RosScope/inspector"
	"github.com/00PrabalK00/RosScope/orchestrator"
	"github.com/00PrabalK00/RosScope/orchestrator/middleware"
	pkgcron "github.com/00PrabalK00/RosScope/pkg/cron"
	"github.com/00PrabalK00/RosScope/pkg/executor"
	"github.com/00PrabalK00/RosScope/pkg/mqtt"
	"github.com/00PrabalK00/RosScope/pkg/telemetry"
	"github.com/00PrabalK00/RosScope/sampler"
	"github.com/00PrabalK00/RosScope/snapshot"
	"github.com/00PrabalK00/RosScope/sysmon"
)

const svcName = "rosscope"

type envConfig struct {
	LogLevel          string `env:"ROSSCOPE_LOG_LEVEL"            envDefault:"info"`
	HTTPHost          string `env:"ROSSCOPE_HTTP_HOST"            envDefault:""`
	HTTPPort          string `env:"ROSSCOPE_HTTP_PORT"            envDefault:"8871"`
	BaseDir           string `env:"ROSSCOPE_BASE_DIR"             envDefault:"."`
	MinPollIntervalMs int    `env:"ROSSCOPE_MIN_POLL_INTERVAL_MS" envDefault:"500"`
	PollIntervalMs    int    `env:"ROSSCOPE_POLL_INTERVAL_MS"     envDefault:"2000"`
	SnapshotCron      string `env:"ROSSCOPE_SNAPSHOT_CRON"        envDefault:""`
	OTELURL           string  `env:"ROSSCOPE_OTEL_URL"            envDefault:""`
	TraceRatio        float64 `env:"ROSSCOPE_TRACE_RATIO"         envDefault:"1.0"`
	MQTTURL           string `env:"ROSSCOPE_MQTT_URL"             envDefault:""`
	MQTTClientID      string `env:"ROSSCOPE_MQTT_CLIENT_ID"       envDefault:"rosscope"`
	MQTTTopicPrefix   string `env:"ROSSCOPE_MQTT_TOPIC_PREFIX"    envDefault:"rosscope"`
	MQTTQoS           uint8  `env:"ROSSCOPE_MQTT_QOS"             envDefault:"1"`
	MQTTTimeout       time.Duration `env:"ROSSCOPE_MQTT_TIMEOUT"  envDefault:"30s"`
}

func startEngine(ctx context.Context, cancel context.CancelFunc, configPath string) error {
	cfg := envConfig{}
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if configPath != "" {
		fileCfg, err := rosscope.LoadConfig(configPath)
		if err != nil {
			return err
		}
		applyFileConfig(&cfg, fileCfg)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return fmt.Errorf("failed to parse log level: %s", err.Error())
	}
	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	var tp trace.TracerProvider
	switch cfg.OTELURL {
	case "":
		tp = noop.NewTracerProvider()
	default:
		sdktp, err := traceProvider(ctx, svcName, cfg.OTELURL, cfg.TraceRatio)
		if err != nil {
			return fmt.Errorf("failed to initialize opentelemetry: %s", err.Error())
		}
		defer func() {
			if err := sdktp.Shutdown(context.Background()); err != nil {
				logger.Error("error shutting down tracer provider", slog.Any("error", err))
			}
		}()
		tp = sdktp
	}
	tracer := tp.Tracer(svcName)

	tele := telemetry.Default()
	runner := executor.New(tele)

	procSampler := sampler.New(tele)
	sysMonitor := sysmon.New(runner)
	rosInspector := inspector.New(runner, tele)
	diagEngine := diagnostics.New(runner, tele)
	fleetMonitor := fleet.New(runner, tele, logger, fleet.WithStatePath(cfg.BaseDir+"/state/offline_remote_queue.json"))
	controller := actions.NewController(procSampler, runner)
	snapManager := snapshot.NewManager(snapshot.WithBaseDir(cfg.BaseDir))
	recorder := snapshot.NewRecorder(snapshot.WithRecorderBaseDir(cfg.BaseDir))

	opts := []orchestrator.Option{
		orchestrator.WithBaseDir(cfg.BaseDir),
		orchestrator.WithMinPollInterval(time.Duration(cfg.MinPollIntervalMs) * time.Millisecond),
		orchestrator.WithPollInterval(time.Duration(cfg.PollIntervalMs) * time.Millisecond),
	}
	if cfg.SnapshotCron != "" {
		schedule, err := pkgcron.Parse(cfg.SnapshotCron)
		if err != nil {
			return fmt.Errorf("invalid snapshot cron expression %q: %w", cfg.SnapshotCron, err)
		}
		opts = append(opts, orchestrator.WithSnapshotSchedule(schedule))
	}
	if cfg.MQTTURL != "" {
		publisher, err := mqtt.NewPublisher(cfg.MQTTURL, cfg.MQTTQoS, cfg.MQTTClientID, cfg.MQTTTimeout, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize mqtt publisher: %w", err)
		}
		defer func() {
			if err := publisher.Disconnect(context.Background()); err != nil {
				logger.Error("error disconnecting mqtt publisher", slog.Any("error", err))
			}
		}()
		opts = append(opts, orchestrator.WithPublisher(publisher, cfg.MQTTTopicPrefix))
	}

	engine := orchestrator.New(
		procSampler, sysMonitor, rosInspector, diagEngine, fleetMonitor,
		controller, snapManager, recorder, runner, tele, logger, opts...)

	var svc orchestrator.Service = engine
	svc = middleware.Logging(logger, svc)
	svc = middleware.Tracing(tracer, svc)
	counter, latency := makeMetrics(svcName, "api")
	svc = middleware.Metrics(counter, latency, svc)

	server := &http.Server{
		Addr:              cfg.HTTPHost + ":" + cfg.HTTPPort,
		Handler:           api.MakeHandler(svc, tele, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return engine.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("Engine HTTP server listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown failed", slog.Any("error", err))
		}
		cancel()

		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error(fmt.Sprintf("%s service exited with error: %s", svcName, err))

		return err
	}

	return nil
}

func applyFileConfig(cfg *envConfig, file *rosscope.Config) {
	if file.Engine.BaseDir != "" {
		cfg.BaseDir = file.Engine.BaseDir
	}
	if file.Engine.MinPollIntervalMs > 0 {
		cfg.MinPollIntervalMs = file.Engine.MinPollIntervalMs
	}
	if file.Engine.PollIntervalMs > 0 {
		cfg.PollIntervalMs = file.Engine.PollIntervalMs
	}
	if file.Engine.SnapshotCron != "" {
		cfg.SnapshotCron = file.Engine.SnapshotCron
	}
	if file.MQTT.URL != "" {
		cfg.MQTTURL = file.MQTT.URL
	}
	if file.MQTT.ClientID != "" {
		cfg.MQTTClientID = file.MQTT.ClientID
	}
	if file.MQTT.TopicPrefix != "" {
		cfg.MQTTTopicPrefix = file.MQTT.TopicPrefix
	}
	if file.MQTT.QoS > 0 {
		cfg.MQTTQoS = uint8(file.MQTT.QoS)
	}
	if file.MQTT.TimeoutMs > 0 {
		cfg.MQTTTimeout = time.Duration(file.MQTT.TimeoutMs) * time.Millisecond
	}
}

// traceProvider builds an OTLP-gRPC trace provider with a ratio-based
// sampler.
func traceProvider(ctx context.Context, name, url string, ratio float64) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(url),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res, err := sdkresource.Merge(
		sdkresource.Default(),
		sdkresource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(name)),
	)
	if err != nil {
		return nil, err
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	), nil
}

func makeMetrics(namespace, subsystem string) (*kitprometheus.Counter, *kitprometheus.Summary) {
	counter := kitprometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request_count",
		Help:      "Number of requests received.",
	}, []string{"method"})
	latency := kitprometheus.NewSummaryFrom(stdprometheus.SummaryOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request_latency_seconds",
		Help:      "Total duration of requests in seconds.",
	}, []string{"method"})

	return counter, latency
}
