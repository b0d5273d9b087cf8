// Package integration enriches Port integration records with a derived
// health status based on their audit-log and activity-log history.
package integration

import (
	"encoding/json"
	"fmt"
	"time"
)

// Health represents the derived health of an integration.
type Health string

// Possible health states.
const (
	// HealthHealthy means no failures were found since the last resync.
	HealthHealthy Health = "HEALTHY"

	// HealthWarning means the most recent relevant log entry is a warning.
	HealthWarning Health = "WARNING"

	// HealthError means a sync failure or error log entry was found.
	HealthError Health = "ERROR"

	// HealthInactive means the integration never resynced or produced no logs.
	HealthInactive Health = "INACTIVE"
)

// Log entry levels and audit statuses relevant to classification.
const (
	LogLevelError   = "ERROR"
	LogLevelWarning = "WARNING"

	AuditStatusFailure = "FAILURE"
)

// LogEntry is one activity log line of an integration, ordered
// chronologically ascending as returned by the Port API.
type LogEntry struct {
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// AuditEntry is one audit log record of an integration.
type AuditEntry struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ResyncState holds the resync bookkeeping Port tracks per integration.
// Its presence alone means the integration has resynced at least once.
type ResyncState struct {
	LastResyncStart *time.Time `json:"lastResyncStart,omitempty"`

	// Extra preserves resync-state fields this plugin does not interpret.
	Extra map[string]json.RawMessage `json:"-"`
}

// Integration is one integration record as returned by the Port API,
// plus the two enrichment fields written by the health service. Fields
// the plugin does not interpret are preserved in Extra so the record
// round-trips back to the host unchanged.
type Integration struct {
	ID             string
	InstallationID string
	CreatedAt      time.Time
	ResyncState    *ResyncState

	// Health and ErrorMessage are set exactly once per resync cycle by
	// the enrichment service. ErrorMessage is non-empty only when
	// Health is WARNING or ERROR.
	Health       Health
	ErrorMessage string

	Extra map[string]json.RawMessage
}

// ReferenceTime returns the timestamp log history should be judged
// against: the start of the last resync, falling back to the creation
// time for integrations that never completed one.
func (i *Integration) ReferenceTime() time.Time {
	if i.ResyncState != nil && i.ResyncState.LastResyncStart != nil {
		return *i.ResyncState.LastResyncStart
	}
	return i.CreatedAt
}

func (i *Integration) setHealth(health Health, message string) {
	i.Health = health
	i.ErrorMessage = message
}

// Wire field names of the parts of an integration record this plugin
// reads or writes. Everything else passes through via Extra.
const (
	fieldID             = "_id"
	fieldInstallationID = "installationId"
	fieldCreatedAt      = "createdAt"
	fieldResyncState    = "resyncState"
	fieldHealth         = "__health"
	fieldErrorMessage   = "__errorMessage"
)

// UnmarshalJSON decodes a record, lifting the fields the plugin
// interprets into typed form and keeping the rest raw.
func (i *Integration) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	if raw, ok := fields[fieldID]; ok {
		if err := json.Unmarshal(raw, &i.ID); err != nil {
			return fmt.Errorf("decoding %s: %w", fieldID, err)
		}
		delete(fields, fieldID)
	}
	if raw, ok := fields[fieldInstallationID]; ok {
		if err := json.Unmarshal(raw, &i.InstallationID); err != nil {
			return fmt.Errorf("decoding %s: %w", fieldInstallationID, err)
		}
		delete(fields, fieldInstallationID)
	}
	if raw, ok := fields[fieldCreatedAt]; ok {
		if err := json.Unmarshal(raw, &i.CreatedAt); err != nil {
			return fmt.Errorf("decoding %s: %w", fieldCreatedAt, err)
		}
		delete(fields, fieldCreatedAt)
	}
	if raw, ok := fields[fieldResyncState]; ok {
		if string(raw) != "null" {
			i.ResyncState = &ResyncState{}
			if err := json.Unmarshal(raw, i.ResyncState); err != nil {
				return fmt.Errorf("decoding %s: %w", fieldResyncState, err)
			}
		}
		delete(fields, fieldResyncState)
	}

	// Enrichment fields are plugin-owned; never trust upstream values.
	delete(fields, fieldHealth)
	delete(fields, fieldErrorMessage)

	if len(fields) > 0 {
		i.Extra = fields
	}
	return nil
}

// MarshalJSON re-assembles the record: preserved upstream fields,
// interpreted fields, and the enrichment outputs when set.
func (i *Integration) MarshalJSON() ([]byte, error) {
	fields := make(map[string]json.RawMessage, len(i.Extra)+6)
	for k, v := range i.Extra {
		fields[k] = v
	}

	if i.ID != "" {
		if err := setField(fields, fieldID, i.ID); err != nil {
			return nil, err
		}
	}
	if i.InstallationID != "" {
		if err := setField(fields, fieldInstallationID, i.InstallationID); err != nil {
			return nil, err
		}
	}
	if !i.CreatedAt.IsZero() {
		if err := setField(fields, fieldCreatedAt, i.CreatedAt); err != nil {
			return nil, err
		}
	}
	if i.ResyncState != nil {
		if err := setField(fields, fieldResyncState, i.ResyncState); err != nil {
			return nil, err
		}
	}
	if i.Health != "" {
		if err := setField(fields, fieldHealth, i.Health); err != nil {
			return nil, err
		}
		if err := setField(fields, fieldErrorMessage, i.ErrorMessage); err != nil {
			return nil, err
		}
	}

	return json.Marshal(fields)
}

// UnmarshalJSON keeps uninterpreted resync-state fields raw.
func (s *ResyncState) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	if raw, ok := fields["lastResyncStart"]; ok {
		if err := json.Unmarshal(raw, &s.LastResyncStart); err != nil {
			return fmt.Errorf("decoding lastResyncStart: %w", err)
		}
		delete(fields, "lastResyncStart")
	}

	if len(fields) > 0 {
		s.Extra = fields
	}
	return nil
}

// MarshalJSON re-assembles the resync state.
func (s *ResyncState) MarshalJSON() ([]byte, error) {
	fields := make(map[string]json.RawMessage, len(s.Extra)+1)
	for k, v := range s.Extra {
		fields[k] = v
	}
	if s.LastResyncStart != nil {
		if err := setField(fields, "lastResyncStart", s.LastResyncStart); err != nil {
			return nil, err
		}
	}
	return json.Marshal(fields)
}

func setField(fields map[string]json.RawMessage, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	fields[key] = raw
	return nil
}
