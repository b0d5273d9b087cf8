package integration

import (
	"testing"
	"time"
)

func ts(sec int) time.Time {
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(sec) * time.Second)
}

func TestHealthFromAuditLogs(t *testing.T) {
	tests := []struct {
		name        string
		entries     []AuditEntry
		wantHealth  Health
		wantMessage string
	}{
		{
			name:       "no entries means inactive",
			entries:    nil,
			wantHealth: HealthInactive,
		},
		{
			name: "all successful",
			entries: []AuditEntry{
				{Status: "SUCCESS"},
				{Status: "SUCCESS"},
			},
			wantHealth: HealthHealthy,
		},
		{
			name: "first failure wins",
			entries: []AuditEntry{
				{Status: "SUCCESS"},
				{Status: "FAILURE", Message: "sync crashed"},
				{Status: "FAILURE", Message: "later failure"},
			},
			wantHealth:  HealthError,
			wantMessage: "sync crashed",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			health, message := healthFromAuditLogs(tc.entries)
			if health != tc.wantHealth {
				t.Errorf("health = %s, want %s", health, tc.wantHealth)
			}
			if message != tc.wantMessage {
				t.Errorf("message = %q, want %q", message, tc.wantMessage)
			}
		})
	}
}

func TestHealthFromLogs(t *testing.T) {
	tests := []struct {
		name        string
		entries     []LogEntry
		since       time.Time
		wantHealth  Health
		wantMessage string
	}{
		{
			name:       "no entries means inactive",
			entries:    nil,
			since:      ts(0),
			wantHealth: HealthInactive,
		},
		{
			name: "most recent error wins over older warning",
			entries: []LogEntry{
				{Level: "INFO", Timestamp: ts(1)},
				{Level: "WARNING", Message: "w", Timestamp: ts(5)},
				{Level: "ERROR", Message: "e", Timestamp: ts(10)},
			},
			since:       ts(0),
			wantHealth:  HealthError,
			wantMessage: "e",
		},
		{
			name: "warning when no error follows it",
			entries: []LogEntry{
				{Level: "WARNING", Message: "w", Timestamp: ts(5)},
				{Level: "INFO", Timestamp: ts(10)},
			},
			since:       ts(0),
			wantHealth:  HealthWarning,
			wantMessage: "w",
		},
		{
			name: "entries before reference are not evidence",
			entries: []LogEntry{
				{Level: "INFO", Timestamp: ts(1)},
			},
			since:      ts(5),
			wantHealth: HealthHealthy,
		},
		{
			name: "stale error shielded by newer info entry before reference",
			entries: []LogEntry{
				{Level: "ERROR", Message: "stale", Timestamp: ts(1)},
				{Level: "INFO", Timestamp: ts(2)},
				{Level: "INFO", Timestamp: ts(5)},
			},
			since:      ts(4),
			wantHealth: HealthHealthy,
		},
		{
			name: "scan exhausts without a match",
			entries: []LogEntry{
				{Level: "INFO", Timestamp: ts(1)},
				{Level: "INFO", Timestamp: ts(2)},
			},
			since:      ts(0),
			wantHealth: HealthHealthy,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			health, message := healthFromLogs(tc.entries, tc.since)
			if health != tc.wantHealth {
				t.Errorf("health = %s, want %s", health, tc.wantHealth)
			}
			if message != tc.wantMessage {
				t.Errorf("message = %q, want %q", message, tc.wantMessage)
			}
		})
	}
}
