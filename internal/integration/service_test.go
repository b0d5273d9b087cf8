package integration

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// mockClient is a mock Port API client for testing.
type mockClient struct {
	integrations []*Integration
	listErr      error

	logs    map[string][]LogEntry
	logsErr error

	audits    map[string][]AuditEntry
	auditsErr error

	orgHealthy bool
	orgErr     error

	listCalls  atomic.Int32
	logCalls   atomic.Int32
	auditCalls atomic.Int32
}

func (m *mockClient) ListIntegrations(_ context.Context) ([]*Integration, error) {
	m.listCalls.Add(1)
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.integrations, nil
}

func (m *mockClient) IntegrationLogs(_ context.Context, installationID string, _ int) ([]LogEntry, error) {
	m.logCalls.Add(1)
	if m.logsErr != nil {
		return nil, m.logsErr
	}
	return m.logs[installationID], nil
}

func (m *mockClient) AuditLogs(_ context.Context, installationID string, _ time.Time) ([]AuditEntry, error) {
	m.auditCalls.Add(1)
	if m.auditsErr != nil {
		return nil, m.auditsErr
	}
	return m.audits[installationID], nil
}

func (m *mockClient) OrganizationHealth(_ context.Context) (bool, error) {
	if m.orgErr != nil {
		return false, m.orgErr
	}
	return m.orgHealthy, nil
}

func resyncedIntegration(id string, lastResync time.Time) *Integration {
	return &Integration{
		ID:             id,
		InstallationID: id,
		CreatedAt:      lastResync.Add(-time.Hour),
		ResyncState:    &ResyncState{LastResyncStart: &lastResync},
	}
}

func TestService_Integrations_NeverResyncedIsInactive(t *testing.T) {
	client := &mockClient{
		integrations: []*Integration{
			{ID: "a", InstallationID: "a", CreatedAt: ts(0)},
		},
		// Log content must be irrelevant for a record with no resync state.
		audits: map[string][]AuditEntry{"a": {{Status: "FAILURE", Message: "boom"}}},
		logs:   map[string][]LogEntry{"a": {{Level: "ERROR", Message: "boom", Timestamp: ts(1)}}},
	}
	service := NewService(ServiceConfig{Client: client})

	records, err := service.Integrations(context.Background(), 300)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if records[0].Health != HealthInactive {
		t.Errorf("health = %s, want INACTIVE", records[0].Health)
	}
	if records[0].ErrorMessage != "" {
		t.Errorf("errorMessage = %q, want empty", records[0].ErrorMessage)
	}
	if calls := client.auditCalls.Load() + client.logCalls.Load(); calls != 0 {
		t.Errorf("expected zero log fetches for inactive record, got %d", calls)
	}
}

func TestService_Integrations_AuditFailureSkipsLogFetch(t *testing.T) {
	client := &mockClient{
		integrations: []*Integration{resyncedIntegration("a", ts(100))},
		audits:       map[string][]AuditEntry{"a": {{Status: "FAILURE", Message: "sync failed"}}},
		logs:         map[string][]LogEntry{"a": {{Level: "INFO", Timestamp: ts(101)}}},
	}
	service := NewService(ServiceConfig{Client: client})

	records, err := service.Integrations(context.Background(), 300)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if records[0].Health != HealthError {
		t.Errorf("health = %s, want ERROR", records[0].Health)
	}
	if records[0].ErrorMessage != "sync failed" {
		t.Errorf("errorMessage = %q, want %q", records[0].ErrorMessage, "sync failed")
	}
	if client.logCalls.Load() != 0 {
		t.Errorf("expected no log fetch after audit failure, got %d", client.logCalls.Load())
	}
}

func TestService_Integrations_HealthyAuditsFallThroughToLogs(t *testing.T) {
	client := &mockClient{
		integrations: []*Integration{resyncedIntegration("a", ts(100))},
		audits:       map[string][]AuditEntry{"a": {{Status: "SUCCESS"}}},
		logs: map[string][]LogEntry{"a": {
			{Level: "INFO", Timestamp: ts(101)},
			{Level: "WARNING", Message: "slow upstream", Timestamp: ts(102)},
		}},
	}
	service := NewService(ServiceConfig{Client: client})

	records, err := service.Integrations(context.Background(), 300)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if records[0].Health != HealthWarning {
		t.Errorf("health = %s, want WARNING", records[0].Health)
	}
	if records[0].ErrorMessage != "slow upstream" {
		t.Errorf("errorMessage = %q", records[0].ErrorMessage)
	}
	if client.auditCalls.Load() != 1 || client.logCalls.Load() != 1 {
		t.Errorf("expected one audit and one log fetch, got %d and %d",
			client.auditCalls.Load(), client.logCalls.Load())
	}
}

func TestService_Integrations_PreservesInputOrder(t *testing.T) {
	var records []*Integration
	for _, id := range []string{"c", "a", "b", "e", "d"} {
		records = append(records, resyncedIntegration(id, ts(100)))
	}
	client := &mockClient{integrations: records}
	service := NewService(ServiceConfig{Client: client})

	enriched, err := service.Integrations(context.Background(), 300)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(enriched) != 5 {
		t.Fatalf("expected 5 records, got %d", len(enriched))
	}
	for i, want := range []string{"c", "a", "b", "e", "d"} {
		if enriched[i].ID != want {
			t.Errorf("record %d = %s, want %s", i, enriched[i].ID, want)
		}
		if enriched[i].Health == "" {
			t.Errorf("record %s has no health set", enriched[i].ID)
		}
	}
}

func TestService_Integrations_SingleFailureAbortsBatch(t *testing.T) {
	fetchErr := errors.New("audit endpoint down")
	client := &mockClient{
		integrations: []*Integration{
			resyncedIntegration("a", ts(100)),
			resyncedIntegration("b", ts(100)),
		},
		auditsErr: fetchErr,
	}
	service := NewService(ServiceConfig{Client: client})

	_, err := service.Integrations(context.Background(), 300)
	if !errors.Is(err, fetchErr) {
		t.Fatalf("expected batch to fail with fetch error, got %v", err)
	}
}

func TestService_Healthcheck(t *testing.T) {
	service := NewService(ServiceConfig{Client: &mockClient{orgHealthy: true}})
	ok, err := service.Healthcheck(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected healthy organization")
	}

	service = NewService(ServiceConfig{Client: &mockClient{orgHealthy: false}})
	ok, err = service.Healthcheck(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected unhealthy organization")
	}

	orgErr := errors.New("organization endpoint returned 503")
	service = NewService(ServiceConfig{Client: &mockClient{orgErr: orgErr}})
	if _, err = service.Healthcheck(context.Background()); !errors.Is(err, orgErr) {
		t.Fatalf("expected wrapped endpoint error, got %v", err)
	}
}
