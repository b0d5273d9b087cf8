package integration

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Client is the Port API surface the service depends on.
type Client interface {
	// ListIntegrations fetches every integration registered in the organization.
	ListIntegrations(ctx context.Context) ([]*Integration, error)

	// IntegrationLogs fetches up to limit activity log entries for an
	// installation, chronologically ascending.
	IntegrationLogs(ctx context.Context, installationID string, limit int) ([]LogEntry, error)

	// AuditLogs fetches audit entries for an installation from the given time.
	AuditLogs(ctx context.Context, installationID string, from time.Time) ([]AuditEntry, error)

	// OrganizationHealth reports whether the Port organization is reachable and healthy.
	OrganizationHealth(ctx context.Context) (bool, error)
}

// ServiceConfig holds configuration for the health service.
type ServiceConfig struct {
	// Client is the Port API client (required).
	Client Client

	// Logger for service operations.
	Logger zerolog.Logger
}

// Service derives health for integration records.
type Service struct {
	client Client
	logger zerolog.Logger
}

// NewService creates a new health service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		client: cfg.Client,
		logger: cfg.Logger,
	}
}

// Integrations fetches all integrations and enriches each with health
// status, fanning enrichment out concurrently across records. Output
// order matches the order the API returned the records in. A failure
// enriching any single record fails the whole batch.
func (s *Service) Integrations(ctx context.Context, logLimit int) ([]*Integration, error) {
	records, err := s.client.ListIntegrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing integrations: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, record := range records {
		g.Go(func() error {
			return s.enrich(ctx, record, logLimit)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return records, nil
}

// Healthcheck reports whether the Port API considers the organization healthy.
func (s *Service) Healthcheck(ctx context.Context) (bool, error) {
	ok, err := s.client.OrganizationHealth(ctx)
	if err != nil {
		return false, fmt.Errorf("checking organization health: %w", err)
	}
	return ok, nil
}

// enrich mutates record with its derived health. Audit logs are
// checked first: a sync failure there is a stronger signal than
// anything inferred from activity logs, and skips the log fetch.
func (s *Service) enrich(ctx context.Context, record *Integration, logLimit int) error {
	logger := s.logger.With().Str("integration_id", record.ID).Logger()
	logger.Info().Msg("enriching integration health")

	if record.ResyncState == nil {
		// Never resynced, nothing to correlate.
		record.setHealth(HealthInactive, "")
		return nil
	}

	since := record.ReferenceTime()

	audits, err := s.client.AuditLogs(ctx, record.InstallationID, since)
	if err != nil {
		return fmt.Errorf("fetching audit logs for %s: %w", record.InstallationID, err)
	}
	health, message := healthFromAuditLogs(audits)
	if health != HealthHealthy {
		logger.Info().Str("health", string(health)).Msg("health determined from audit logs")
		record.setHealth(health, message)
		return nil
	}

	logs, err := s.client.IntegrationLogs(ctx, record.InstallationID, logLimit)
	if err != nil {
		return fmt.Errorf("fetching logs for %s: %w", record.InstallationID, err)
	}
	health, message = healthFromLogs(logs, since)
	logger.Info().Str("health", string(health)).Msg("health determined from logs")
	record.setHealth(health, message)
	return nil
}
