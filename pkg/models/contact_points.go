package models

import (
	"time"
)

// ContactPoint is the normalized view of one notification receiver, the same
// regardless of which aldis API generation it was fetched from.
type ContactPoint struct {
	Name string `json:"name"`

	// Provenance is empty for fleet-managed points; a non-empty value marks
	// an externally provisioned point the console renders read-only.
	Provenance string `json:"provenance,omitempty"`

	// ID is the stable resource identifier when sourced from the structured
	// receiver API. Legacy-sourced points have no identifier.
	ID string `json:"id,omitempty"`

	Integrations []IntegrationConfig `json:"integrations"`
}

// IntegrationConfig is one notifier channel inside a contact point.
type IntegrationConfig struct {
	UID                   string                 `json:"uid,omitempty"`
	Type                  string                 `json:"type"`
	Settings              map[string]interface{} `json:"settings,omitempty"`
	SecureFields          map[string]bool        `json:"secure_fields,omitempty"`
	DisableResolveMessage bool                   `json:"disable_resolve_message,omitempty"`
}

// ReceiverStatus is the polled delivery state for one receiver.
type ReceiverStatus struct {
	Name         string              `json:"name"`
	Active       bool                `json:"active"`
	Integrations []IntegrationStatus `json:"integrations,omitempty"`
}

// IntegrationStatus is the per-integration delivery state inside a ReceiverStatus.
type IntegrationStatus struct {
	Name                      string     `json:"name"`
	SendResolved              *bool      `json:"send_resolved,omitempty"`
	LastNotifyAttempt         *time.Time `json:"last_notify_attempt,omitempty"`
	LastNotifyAttemptDuration string     `json:"last_notify_attempt_duration,omitempty"`
	LastNotifyAttemptError    string     `json:"last_notify_attempt_error,omitempty"`
}

// NotifierMetadata describes one notifier type from the aldis catalog. The
// console uses it to render integration forms and labels.
type NotifierMetadata struct {
	Type         string   `json:"type"`
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Heading      string   `json:"heading,omitempty"`
	SecureFields []string `json:"secure_fields,omitempty"`
}

// MaydayIntegration is an incident-service integration record. Its URL is
// embedded into integration settings when klaxon provisions one.
type MaydayIntegration struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Type           string `json:"type"`
	IntegrationURL string `json:"integration_url"`
}

// EnrichedContactPoint decorates a normalized contact point with delivery
// status and per-integration display metadata.
type EnrichedContactPoint struct {
	Name         string                `json:"name"`
	Provenance   string                `json:"provenance,omitempty"`
	ID           string                `json:"id,omitempty"`
	Status       *ReceiverStatus       `json:"status,omitempty"`
	Integrations []EnrichedIntegration `json:"integrations"`
}

// EnrichedIntegration pairs an integration config with the catalog metadata
// for its type and, where the settings URL corresponds, the matched Mayday
// integration.
type EnrichedIntegration struct {
	IntegrationConfig
	Metadata *NotifierMetadata  `json:"metadata,omitempty"`
	Mayday   *MaydayIntegration `json:"mayday_integration,omitempty"`
}

// AlertingBackend describes one configured alerting backend and what the
// console may do with it.
type AlertingBackend struct {
	ID                    string `json:"id"`
	Name                  string `json:"name"`
	UsesReceiverResources bool   `json:"uses_receiver_resources"`
	ReadOnly              bool   `json:"read_only,omitempty"`
}
