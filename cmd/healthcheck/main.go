// Package main runs the Port integration healthcheck worker: a small
// embedding host that drives the plugin's startup probe and resync
// cycles, and exposes a private operational HTTP listener.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/port-experimental/integration-healthcheck/internal/config"
	"github.com/port-experimental/integration-healthcheck/internal/integration"
	"github.com/port-experimental/integration-healthcheck/internal/integration/port"
	"github.com/port-experimental/integration-healthcheck/internal/plugin"
	"github.com/port-experimental/integration-healthcheck/internal/resilience"
	"github.com/port-experimental/integration-healthcheck/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// tokenExpiryWarning is how far ahead of token expiry cycles start warning.
const tokenExpiryWarning = 24 * time.Hour

func main() {
	const serviceName = "integration-healthcheck"

	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		log = log.Level(level)
	}

	log.Info().Str("build_time", BuildTime).Msg("starting integration healthcheck worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	transport := resilience.NewClient(resilience.DefaultClientConfig("port"))

	client := port.NewClient(port.ClientConfig{
		Token:      port.StaticToken(cfg.Port.Token),
		BaseURL:    cfg.Port.BaseURL,
		HTTPClient: transport,
		Logger:     log,
	})

	service := integration.NewService(integration.ServiceConfig{
		Client: client,
		Logger: log,
	})

	p := plugin.New(plugin.Config{
		Service: service,
		Logger:  log,
	})

	startCtx, startCancel := context.WithTimeout(ctx, 30*time.Second)
	err = p.OnStart(startCtx)
	startCancel()
	if err != nil {
		log.Fatal().Err(err).Msg("startup health probe failed")
	}

	state := &opsState{}
	server := newOpsServer(cfg.Ops.Port, transport, state)

	go func() {
		log.Info().Int("port", cfg.Ops.Port).Msg("ops server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("ops server error")
		}
	}()

	go func() {
		runResyncLoop(ctx, cfg, p, log, tp, state)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("ops server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}

// runResyncLoop resyncs every configured resource on a fixed interval.
// The first cycle runs immediately.
func runResyncLoop(ctx context.Context, cfg *config.Config, p *plugin.Plugin, log zerolog.Logger, tp *telemetry.Provider, state *opsState) {
	ticker := time.NewTicker(cfg.Resync.Interval)
	defer ticker.Stop()

	warnOnTokenExpiry(cfg.Port.Token, log)
	resyncAll(ctx, cfg, p, log, tp, state)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			warnOnTokenExpiry(cfg.Port.Token, log)
			resyncAll(ctx, cfg, p, log, tp, state)
		}
	}
}

func resyncAll(ctx context.Context, cfg *config.Config, p *plugin.Plugin, log zerolog.Logger, tp *telemetry.Provider, state *opsState) {
	for _, resource := range cfg.Resync.Resources {
		if resource.Kind != plugin.KindIntegration {
			log.Warn().Str("kind", resource.Kind).Msg("skipping unsupported resource kind")
			continue
		}

		cycleCtx, span := tp.Tracer.Start(ctx, "resync")
		span.SetAttributes(attribute.String("resource.kind", resource.Kind))

		records, err := p.OnResync(cycleCtx, resource)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "resync failed")
			span.End()
			log.Error().Err(err).Msg("resync cycle failed")
			state.recordFailure(err)
			continue
		}

		span.SetAttributes(attribute.Int("integrations.count", len(records)))
		span.End()
		state.recordSuccess(len(records))
	}
}

// warnOnTokenExpiry logs a warning when the configured token is close
// to (or past) its JWT expiry. Non-JWT tokens are left alone.
func warnOnTokenExpiry(token string, log zerolog.Logger) {
	expiresAt, err := port.TokenExpiry(token)
	if err != nil {
		return
	}
	remaining := time.Until(expiresAt)
	switch {
	case remaining <= 0:
		log.Error().Time("expired_at", expiresAt).Msg("port api token has expired")
	case remaining < tokenExpiryWarning:
		log.Warn().Time("expires_at", expiresAt).Msg("port api token expires soon")
	}
}

// opsState tracks the outcome of the most recent resync cycle for the
// ops status endpoint.
type opsState struct {
	mu           sync.RWMutex
	lastResyncAt time.Time
	lastCount    int
	lastError    string
}

func (s *opsState) recordSuccess(count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastResyncAt = time.Now()
	s.lastCount = count
	s.lastError = ""
}

func (s *opsState) recordFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastResyncAt = time.Now()
	s.lastError = err.Error()
}

func (s *opsState) snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := map[string]any{
		"last_resync_at": s.lastResyncAt,
		"last_count":     s.lastCount,
	}
	if s.lastError != "" {
		snap["last_error"] = s.lastError
	}
	return snap
}

func newOpsServer(opsPort int, transport *resilience.Client, state *opsState) *http.Server {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{
			"status":  "healthy",
			"version": Version,
		})
	})

	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{
			"circuit": transport.CircuitState().String(),
			"resync":  state.snapshot(),
		})
	})

	return &http.Server{
		Addr:         ":" + strconv.Itoa(opsPort),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
}

func writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(body)
}
