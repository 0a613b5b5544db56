package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	engineconfig "dscengine/config"
	"dscengine/observability/logging"
	telemetry "dscengine/observability/otel"
	"dscengine/services/dscd/app"
	"dscengine/services/dscd/config"
	"dscengine/services/dscd/eventstore"
	dscmw "dscengine/services/dscd/middleware"
	"dscengine/services/dscd/server"
	"dscengine/storage"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "services/dscd/config.yaml", "path to dscd config")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("DSC_ENV"))
	logging.Setup("dscd", env)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.SetupWithOptions("dscd", env, logging.Options{
		Level:      logging.ParseLevel(cfg.Logging.Level),
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})

	telemetryCfg := telemetry.Config{
		ServiceName:    "dscd",
		Environment:    env,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		Headers:        cfg.Telemetry.Headers,
		Traces:         cfg.Telemetry.Traces,
		Metrics:        cfg.Telemetry.Metrics,
		SampleRatio:    cfg.Telemetry.SampleRatio,
		MetricInterval: cfg.Telemetry.MetricInterval,
	}.WithEnv(os.LookupEnv)
	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetryCfg)
	if err != nil {
		log.Fatalf("init telemetry: %v", err)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	engineCfg, err := engineconfig.Load(cfg.EngineConfig)
	if err != nil {
		log.Fatalf("load engine config: %v", err)
	}
	db, err := storage.NewLevelDB(engineCfg.DataDir)
	if err != nil {
		log.Fatalf("open ledger database: %v", err)
	}
	defer db.Close()

	eventDB, err := eventstore.Open(cfg.EventStore.DSN)
	if err != nil {
		log.Fatalf("open event store: %v", err)
	}
	if err := eventstore.AutoMigrate(eventDB); err != nil {
		log.Fatalf("migrate event store: %v", err)
	}
	events := eventstore.New(eventDB, logger)

	components, err := app.Build(engineCfg, db, app.Options{
		Emitter:    events,
		Logger:     logger,
		HTTPClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	})
	if err != nil {
		log.Fatalf("assemble engine: %v", err)
	}

	srv := server.New(server.Config{
		Engine: components.Engine,
		Bank:   components.Bank,
		Token:  components.Token,
		Feeds:  components.Feeds,
		Events: events,
		Auth: dscmw.NewAuthenticator(dscmw.AuthConfig{
			Enabled:    cfg.Auth.Enabled,
			HMACSecret: cfg.Auth.HMACSecret,
			Issuer:     cfg.Auth.Issuer,
			Audience:   cfg.Auth.Audience,
			ScopeClaim: cfg.Auth.ScopeClaim,
			ClockSkew:  cfg.Auth.ClockSkew,
		}, logger),
		Limiter: dscmw.NewRateLimiter(map[string]dscmw.RateLimit{
			"write": {RequestsPerMinute: cfg.RateLimits.Write.RequestsPerMinute, Burst: cfg.RateLimits.Write.Burst},
			"read":  {RequestsPerMinute: cfg.RateLimits.Read.RequestsPerMinute, Burst: cfg.RateLimits.Read.Burst},
		}, logger),
		Observability: dscmw.NewObservability(dscmw.ObservabilityConfig{ServiceName: "dscd", LogRequests: true}, logger),
		Logger:        logger,
	})

	listener, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		log.Fatalf("listen on %s: %v", cfg.ListenAddress, err)
	}
	if !cfg.TLS.Enabled() {
		tcpAddr, _ := listener.Addr().(*net.TCPAddr)
		loopback := tcpAddr != nil && tcpAddr.IP != nil && tcpAddr.IP.IsLoopback()
		if !strings.EqualFold(env, "dev") && !loopback {
			log.Fatalf("plaintext dscd mode is restricted to loopback listeners or dev environment")
		}
	}

	httpServer := &http.Server{
		Handler:           otelhttp.NewHandler(srv.Handler(), "dscd"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("dscd listening", slog.String("address", cfg.ListenAddress), slog.Bool("tls", cfg.TLS.Enabled()))
		if cfg.TLS.Enabled() {
			serverErr <- httpServer.ServeTLS(listener, cfg.TLS.CertPath, cfg.TLS.KeyPath)
			return
		}
		serverErr <- httpServer.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("forcing server stop", slog.Any("error", err))
			_ = httpServer.Close()
		}
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve http: %v", err)
		}
	}
}
