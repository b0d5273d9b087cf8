package integration

import "time"

// healthFromAuditLogs classifies an integration from its audit history.
// Audit entries reflect confirmed sync outcomes, so any failure is an
// error regardless of what the activity logs say.
func healthFromAuditLogs(entries []AuditEntry) (Health, string) {
	if len(entries) == 0 {
		return HealthInactive, ""
	}
	for _, entry := range entries {
		if entry.Status == AuditStatusFailure {
			return HealthError, entry.Message
		}
	}
	return HealthHealthy, ""
}

// healthFromLogs classifies an integration from its activity logs,
// scanning newest first. Entries older than since predate the last
// resync and are not informative of current health, so reaching one
// before any error or warning short-circuits to healthy.
func healthFromLogs(entries []LogEntry, since time.Time) (Health, string) {
	if len(entries) == 0 {
		return HealthInactive, ""
	}
	for idx := len(entries) - 1; idx >= 0; idx-- {
		entry := entries[idx]
		if entry.Level == LogLevelError {
			return HealthError, entry.Message
		}
		if entry.Level == LogLevelWarning {
			return HealthWarning, entry.Message
		}
		if entry.Timestamp.Before(since) {
			return HealthHealthy, ""
		}
	}
	return HealthHealthy, ""
}
