// Package main runs the access router: the websocket endpoint for dashboards
// and card readers, the operational API and the metrics listener.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gymgate/access-router/internal/admin"
	"github.com/gymgate/access-router/internal/auth"
	"github.com/gymgate/access-router/internal/config"
	"github.com/gymgate/access-router/internal/gateway"
	"github.com/gymgate/access-router/internal/hub"
	"github.com/gymgate/access-router/internal/identity"
	"github.com/gymgate/access-router/internal/ledger"
	"github.com/gymgate/access-router/internal/metrics"
	"github.com/gymgate/access-router/internal/router"
	"github.com/gymgate/access-router/internal/scanmode"
	"github.com/gymgate/access-router/internal/storage"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if len(os.Args) > 1 && os.Args[1] == "hash-secret" {
		os.Exit(hashSecret(os.Args[2:], os.Stdout, os.Stderr))
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("access router stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	level := new(slog.LevelVar)
	level.Set(parseLevel(cfg.LogLevel))
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := metrics.Init(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	a := newApp(cfg, store, level, logger)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	metricsSrv := &http.Server{
		Addr:              cfg.MetricsListenAddr,
		Handler:           metricsMux(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	serve := func(name string, s *http.Server) {
		logger.Info("listening", "server", name, "addr", s.Addr)
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("%s server: %w", name, err)
		}
	}
	go serve("api", srv)
	go serve("metrics", metricsSrv)

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// http.Server.Shutdown does not track hijacked websocket connections.
	if err := a.gateway.Shutdown(shutdownCtx); err != nil {
		logger.Warn("websocket sessions did not drain", "error", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("api server shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics server shutdown", "error", err)
	}
	logger.Info("shutdown complete")
	return nil
}

type app struct {
	handler http.Handler
	gateway *gateway.Server
	hub     *hub.Hub
	modes   *scanmode.Registry
}

// newApp wires the domain components over store.
func newApp(cfg *config.Config, store *storage.SQLiteStorage, level *slog.LevelVar, logger *slog.Logger) *app {
	verifier := auth.NewVerifier(cfg.JWTSecret, cfg.DeviceSecret, cfg.DeviceSecretHash)

	h := hub.New(logger.With("component", "hub"))
	modes := scanmode.New(h, logger.With("component", "scanmode"))
	admissions := ledger.New(store,
		ledger.WithGracePeriod(cfg.GracePeriod),
		ledger.WithLogger(logger.With("component", "ledger")),
	)
	events := router.New(h, modes, identity.NewResolver(store), admissions, logger.With("component", "router"))

	gw := gateway.New(verifier, h, modes, events, gateway.Options{
		HandshakeTimeout: cfg.HandshakeTimeout,
		AllowedOrigins:   cfg.AllowedOrigins,
	}, logger.With("component", "gateway"))

	mux := chi.NewRouter()
	mux.Handle("/ws", gw)
	mux.Mount("/", admin.NewHandler(store, h, modes, level, logger.With("component", "admin")).NewRouter(verifier))

	return &app{handler: mux, gateway: gw, hub: h, modes: modes}
}

func metricsMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// hashSecret prints the bcrypt hash for DEVICE_SECRET_HASH.
func hashSecret(args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 || args[0] == "" {
		fmt.Fprintln(stderr, "usage: access-router hash-secret <device-secret>")
		return 2
	}
	hash, err := auth.HashSecret(args[0])
	if err != nil {
		fmt.Fprintf(stderr, "failed to hash secret: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, hash)
	return 0
}
