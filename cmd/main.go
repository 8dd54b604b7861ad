package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	// Drivers
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"

	// Instrumentation
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"

	// Interne
	"github.com/jupiterclapton/captionfeed/config"
	"github.com/jupiterclapton/captionfeed/internal/adapters/primary/web"
	"github.com/jupiterclapton/captionfeed/internal/adapters/secondary/eventbroker"
	"github.com/jupiterclapton/captionfeed/internal/adapters/secondary/postsapi"
	"github.com/jupiterclapton/captionfeed/internal/adapters/secondary/preview"
	"github.com/jupiterclapton/captionfeed/internal/core/page"
	"github.com/jupiterclapton/captionfeed/internal/core/ports"
	"github.com/jupiterclapton/captionfeed/internal/core/services"
)

func main() {
	// 1. Configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	// 2. Logger
	initLogger(cfg)
	slog.Info("🚀 Starting Caption Feed web", "config", cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Télémétrie (Tracing)
	tp, err := initTracer(ctx, cfg)
	if err != nil {
		slog.Error("Failed to init tracer", "error", err)
	} else {
		defer func() { _ = tp.Shutdown(context.Background()) }()
	}

	loc, err := time.LoadLocation(cfg.DisplayTZ)
	if err != nil {
		slog.Error("Unknown display time zone", "tz", cfg.DisplayTZ, "error", err)
		os.Exit(1)
	}

	// 4. Posts Service (Driven Adapter, HTTP)
	postsClient := postsapi.NewClient(cfg.PostsURL, cfg.PostsTimeout)
	slog.Info("✅ Posts Service configured", "url", cfg.PostsURL)

	// 5. Preview Store (Driven Adapter)
	var previews ports.PreviewStore
	switch cfg.PreviewStore {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})
		// Instrumentation Redis
		if err := redisotel.InstrumentTracing(rdb); err != nil {
			panic(err)
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Error("Unable to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
		slog.Info("✅ Connected to Redis")
		previews = preview.NewRedisStore(rdb, cfg.PreviewTTL, cfg.PreviewMaxBytes)
	default:
		previews = preview.NewMemoryStore(cfg.PreviewTTL, cfg.PreviewMaxBytes)
	}

	// 6. Event Broker NATS (optionnel)
	var publisher ports.EventPublisher = eventbroker.NoopPublisher{}
	if cfg.NatsUrl != "" {
		nc, err := nats.Connect(cfg.NatsUrl)
		if err != nil {
			slog.Error("Unable to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer nc.Close()
		slog.Info("✅ Connected to NATS")
		publisher = eventbroker.NewNatsPublisher(nc)
	}

	// 7. Instances de page (une par navigateur)
	sessions := web.NewSessions(cfg.SessionTTL, func() *services.FeedController {
		return services.NewFeedController(page.NewFeed(), postsClient, previews, publisher, loc)
	})
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		sessions.Run(ctx, sweepInterval(cfg.SessionTTL))
	}()

	srv, err := web.NewServer(web.Options{
		Sessions: sessions,
		Posts:    postsClient,
		Previews: previews,
		Location: loc,
		MaxBytes: cfg.PreviewMaxBytes,
		PostsURL: cfg.PostsURL,
	})
	if err != nil {
		slog.Error("Failed to build web server", "error", err)
		os.Exit(1)
	}

	// 8. Chaîne de Middlewares HTTP
	h := srv.Handler()

	// A. CORS
	c := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "baggage", "traceparent"},
	})
	h = c.Handler(h)

	// B. OTEL HTTP (Racine)
	h = otelhttp.NewHandler(h, "captionfeed-web", otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
		return fmt.Sprintf("HTTP %s %s", r.Method, r.URL.Path)
	}))

	// 9. Démarrage Graceful
	srvHTTP := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: h,
	}

	go func() {
		slog.Info("📡 Caption Feed listening", "port", cfg.Port)
		if err := srvHTTP.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("🛑 Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srvHTTP.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	// Arrêt du balayeur : relâche les aperçus restants
	cancel()
	<-sweepDone

	slog.Info("👋 Server exited")
}

// --- HELPERS ---

func sweepInterval(ttl time.Duration) time.Duration {
	if every := ttl / 2; every < time.Minute {
		if every <= 0 {
			return time.Second
		}
		return every
	}
	return time.Minute
}

func initLogger(cfg *config.Config) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.Env == "local" {
		opts.Level = slog.LevelDebug
	}
	var handler slog.Handler
	if cfg.Env == "local" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func initTracer(ctx context.Context, cfg *config.Config) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OtelEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res, _ := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.DeploymentEnvironmentKey.String(cfg.Env),
		),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return tp, nil
}
