// mcp-gateway is the platform's protocol endpoint for AI agents. It serves
// the WebSocket surface on /mcp, the custom tool administration API, health
// endpoints, and an internal metrics listener.
package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/freeradical/mcp-gateway/pkg/admin"
	"github.com/freeradical/mcp-gateway/pkg/audit"
	"github.com/freeradical/mcp-gateway/pkg/auth"
	"github.com/freeradical/mcp-gateway/pkg/config"
	"github.com/freeradical/mcp-gateway/pkg/executor"
	"github.com/freeradical/mcp-gateway/pkg/mcp"
	frOtel "github.com/freeradical/mcp-gateway/pkg/otel"
	"github.com/freeradical/mcp-gateway/pkg/store"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// ── OpenTelemetry ────────────────────────────────────────────────────
	otelShutdown, err := frOtel.Setup(ctx, frOtel.Config{
		ServiceName:  config.EnvOr("OTEL_SERVICE_NAME", "mcp-gateway"),
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	})
	if err != nil {
		log.Error("otel setup failed", "error", err)
	} else {
		defer otelShutdown(context.Background()) //nolint:errcheck // best-effort shutdown
	}

	// ── Postgres ─────────────────────────────────────────────────────────
	pool, err := pgxpool.New(ctx, buildPostgresDSN())
	if err != nil {
		log.Error("postgres connect failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	db := store.New(pool)
	if err := db.EnsureSchema(ctx); err != nil {
		log.Error("schema setup failed", "error", err)
		os.Exit(1)
	}

	// ── Dependencies ─────────────────────────────────────────────────────
	jwtSecret := os.Getenv("MCP_JWT_SECRET")
	if jwtSecret == "" {
		log.Error("MCP_JWT_SECRET is required")
		os.Exit(1)
	}
	verifier := auth.NewVerifier(jwtSecret)

	recorder := audit.NewRecorder(db, log,
		audit.WithQueueSize(config.EnvOrInt("AUDIT_QUEUE_SIZE", 1024)),
		audit.WithWorkers(config.EnvOrInt("AUDIT_WORKERS", 4)),
	)
	engine := executor.NewEngine(db, recorder, log)
	server := mcp.NewServer(verifier, db, engine, log)
	adminAPI := admin.NewHandlers(db, log)

	// ── Router ───────────────────────────────────────────────────────────
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("NOT READY"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Long-lived WebSocket connections must not sit behind the request
	// timeout middleware, so /mcp is registered on the bare router and the
	// admin API gets its own timeout-wrapped subtree.
	r.Get("/mcp", server.HandleWS)
	r.Route("/v1/api/mcp/tools", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Use(verifier.RequireAdmin)
		r.Mount("/", adminAPI.Routes())
	})

	// ── Metrics (internal) ───────────────────────────────────────────────
	metricsAddr := config.EnvOr("METRICS_ADDR", "127.0.0.1:9090")
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{
		Addr:              metricsAddr,
		Handler:           metricsMux,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       30 * time.Second,
	}
	go func() {
		log.Info("metrics server starting", "addr", metricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server error", "error", err)
		}
	}()

	// ── Server ───────────────────────────────────────────────────────────
	addr := config.EnvOr("GATEWAY_ADDR", ":8080")
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Info("mcp gateway starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down gateway")
	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		log.Error("server shutdown error", "error", err)
	}
	if err := metricsSrv.Shutdown(shutCtx); err != nil {
		log.Error("metrics server shutdown error", "error", err)
	}
	// Drain pending audit records before the pool closes.
	if err := recorder.Close(shutCtx); err != nil {
		log.Error("audit drain incomplete", "error", err)
	}
}

func buildPostgresDSN() string {
	sslmode := config.EnvOr("POSTGRES_SSLMODE", "disable")
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(config.EnvOr("POSTGRES_USER", "freeradical"), config.EnvOr("POSTGRES_PASSWORD", "changeme")),
		Host:     net.JoinHostPort(config.EnvOr("POSTGRES_HOST", "localhost"), config.EnvOr("POSTGRES_PORT", "5432")),
		Path:     config.EnvOr("POSTGRES_DB", "freeradical"),
		RawQuery: "sslmode=" + url.QueryEscape(sslmode),
	}
	return u.String()
}
