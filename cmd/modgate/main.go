package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"

	"github.com/neomorfeo/modgate/internal/adapter/fsm"
	"github.com/neomorfeo/modgate/internal/adapter/otel"
	"github.com/neomorfeo/modgate/internal/adapter/proxy"
	"github.com/neomorfeo/modgate/internal/adapter/river"
	"github.com/neomorfeo/modgate/internal/adapter/sqlite"
	"github.com/neomorfeo/modgate/internal/app"
	"github.com/neomorfeo/modgate/internal/catalog"
	"github.com/neomorfeo/modgate/internal/config"
	"github.com/neomorfeo/modgate/internal/registry"

	handler "github.com/neomorfeo/modgate/internal/adapter/http"
)

const version = "0.1.0"

func main() {
	ctx := context.Background()

	cfg, err := config.Load(os.Getenv("MODGATE_CONFIG"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	// --- Telemetry ---
	otelShutdown, err := otel.Setup(ctx, otel.Config{
		ServiceName:    "modgate",
		ServiceVersion: version,
		Environment:    cfg.OtelEnvironment,
		Exporter:       cfg.OtelExporter,
		Insecure:       cfg.OtelEnvironment == "development",
	})
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			logger.Error("otel shutdown", "error", err)
		}
	}()

	// --- Adapters (out) ---
	db, err := otel.OpenDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	store, err := sqlite.NewFromDB(db)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer store.Close()

	riverClient, err := river.Setup(ctx, db)
	if err != nil {
		log.Fatalf("river: %v", err)
	}
	if err := riverClient.Start(ctx); err != nil {
		log.Fatalf("river start: %v", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := riverClient.Stop(stopCtx); err != nil {
			logger.Error("river stop", "error", err)
		}
	}()

	modules := catalog.NewMemory()
	if cfg.ModulesDir != "" {
		modules, err = catalog.LoadDir(cfg.ModulesDir)
		if err != nil {
			log.Fatalf("catalog: %v", err)
		}
	}

	var regOpts []registry.Option
	if cfg.ForceLocal {
		regOpts = append(regOpts, registry.WithLocalOnly())
	}
	reg := registry.New(otel.NewTracingStore(store), logger, regOpts...)

	modProxy := otel.NewTracingProxy(proxy.New(cfg.GatewayURL, cfg.DeploymentURL, logger))
	publisher := river.NewPublisher(riverClient)

	// --- Application ---
	svc := app.NewTenantService(reg, modules, modProxy, fsm.New(), publisher, logger)

	if err := svc.Load(ctx); err != nil {
		log.Fatalf("loading tenants: %v", err)
	}

	// --- Adapters (in) ---
	router := chi.NewMux()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)
	router.Use(otelchi.Middleware("modgate", otelchi.WithChiRoutes(router)))

	api := humachi.New(router, huma.DefaultConfig("modgate", version))
	handler.Register(api, svc)

	// --- Server ---
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown.
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("modgate listening", "port", cfg.Port, "local_only", reg.LocalOnly())
		logger.Info("API docs", "url", "http://localhost:"+cfg.Port+"/docs")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	<-done
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}

	logger.Info("stopped")
}

func newLogger(level string) *slog.Logger {
	var lv slog.Level
	switch level {
	case "debug":
		lv = slog.LevelDebug
	case "warn":
		lv = slog.LevelWarn
	case "error":
		lv = slog.LevelError
	default:
		lv = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lv}))
}
