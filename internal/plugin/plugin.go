// Package plugin implements the host-facing lifecycle of the
// integration healthcheck: a startup probe and a resync callback the
// embedding runtime invokes on its own schedule.
package plugin

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/port-experimental/integration-healthcheck/internal/integration"
)

// KindIntegration is the resource kind this plugin resyncs.
const KindIntegration = "integration"

// Log limit bounds for the integration selector.
const (
	// DefaultLogLimit is the number of activity logs fetched per
	// integration when the selector does not set one.
	DefaultLogLimit = 300

	// MaxLogLimit is the largest allowed logLimit.
	MaxLogLimit = 300
)

// Predefined plugin errors.
var (
	// ErrLogLimitExceeded is returned when a selector asks for more
	// logs than the API allows per fetch.
	ErrLogLimitExceeded = fmt.Errorf("logLimit cannot be greater than %d", MaxLogLimit)

	// ErrUnhealthy is returned by OnStart when the Port organization
	// reports an unhealthy status. The host treats this as fatal.
	ErrUnhealthy = errors.New("port organization is not healthy")
)

// Selector scopes resync behavior for the integration kind.
type Selector struct {
	// LogLimit is the maximum number of logs fetched per integration
	// to determine its health. Defaults to DefaultLogLimit; cannot be
	// greater than MaxLogLimit.
	LogLimit int `yaml:"logLimit" json:"logLimit"`
}

// Validate checks selector bounds. It runs before any network call.
func (s Selector) Validate() error {
	if s.LogLimit > MaxLogLimit {
		return ErrLogLimitExceeded
	}
	return nil
}

// EffectiveLogLimit returns the configured log limit, or the default
// when unset.
func (s Selector) EffectiveLogLimit() int {
	if s.LogLimit <= 0 {
		return DefaultLogLimit
	}
	return s.LogLimit
}

// ResourceConfig is one resource mapping from the host's app config.
type ResourceConfig struct {
	Kind     string   `yaml:"kind" json:"kind"`
	Selector Selector `yaml:"selector" json:"selector"`
}

// Service is the enrichment surface the plugin drives.
type Service interface {
	Integrations(ctx context.Context, logLimit int) ([]*integration.Integration, error)
	Healthcheck(ctx context.Context) (bool, error)
}

// Config holds configuration for the plugin.
type Config struct {
	// Service performs enrichment (required).
	Service Service

	// Logger for lifecycle events.
	Logger zerolog.Logger
}

// Plugin is the healthcheck integration as seen by the host runtime.
type Plugin struct {
	service Service
	logger  zerolog.Logger
}

// New creates a new plugin.
func New(cfg Config) *Plugin {
	return &Plugin{
		service: cfg.Service,
		logger:  cfg.Logger,
	}
}

// OnStart verifies connectivity to the Port API. An unhealthy result
// is returned as ErrUnhealthy, which the host treats as a fatal
// initialization failure.
func (p *Plugin) OnStart(ctx context.Context) error {
	p.logger.Info().Msg("starting port integration")

	ok, err := p.service.Healthcheck(ctx)
	if err != nil {
		return fmt.Errorf("healthcheck: %w", err)
	}
	if !ok {
		p.logger.Error().Msg("port integration is not healthy")
		return ErrUnhealthy
	}

	p.logger.Info().Msg("port integration is healthy")
	return nil
}

// OnResync returns the full integration list enriched with health
// status. The selector is validated before anything is fetched.
func (p *Plugin) OnResync(ctx context.Context, cfg ResourceConfig) ([]*integration.Integration, error) {
	if err := cfg.Selector.Validate(); err != nil {
		return nil, err
	}
	logLimit := cfg.Selector.EffectiveLogLimit()

	logger := p.logger.With().Str("cycle_id", uuid.NewString()).Logger()
	logger.Info().Int("log_limit", logLimit).Msg("resyncing integrations")

	records, err := p.service.Integrations(ctx, logLimit)
	if err != nil {
		return nil, err
	}

	logger.Info().Int("count", len(records)).Msg("received batch of integrations")
	return records, nil
}
