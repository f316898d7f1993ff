package aldis

import (
	"encoding/json"

	"frameworks/klaxon/pkg/api/common"
	"frameworks/klaxon/pkg/models"
)

// Annotation keys on structured receiver resources. Provenance and access
// grants ride in metadata annotations rather than the spec.
const (
	AnnotationProvenance = "aldis.io/provenance"
	AnnotationCanWrite   = "aldis.io/access/write"
	AnnotationCanDelete  = "aldis.io/access/delete"
)

// ConfigDocument is the legacy v1 whole-document configuration for one
// backend. Sections klaxon never edits are kept raw so a fetch-modify-write
// round-trips them byte-compatible.
type ConfigDocument struct {
	TemplateFiles  map[string]string `json:"template_files,omitempty"`
	AlertingConfig AlertingConfig    `json:"alerting_config"`
}

// AlertingConfig is the receivers-bearing section of a ConfigDocument.
type AlertingConfig struct {
	Receivers         []Receiver      `json:"receivers"`
	Route             json.RawMessage `json:"route,omitempty"`
	Templates         json.RawMessage `json:"templates,omitempty"`
	TimeIntervals     json.RawMessage `json:"time_intervals,omitempty"`
	MuteTimeIntervals json.RawMessage `json:"mute_time_intervals,omitempty"`
	Global            json.RawMessage `json:"global,omitempty"`
	InhibitRules      json.RawMessage `json:"inhibit_rules,omitempty"`
}

// Receiver is one named receiver inside a legacy config document.
type Receiver struct {
	Name         string                     `json:"name"`
	Provenance   string                     `json:"provenance,omitempty"`
	Integrations []models.IntegrationConfig `json:"integrations,omitempty"`
}

// ReceiverResource is the structured v2 receiver representation,
// namespace-scoped with metadata/spec separation.
type ReceiverResource struct {
	Metadata ResourceMetadata `json:"metadata"`
	Spec     ReceiverSpec     `json:"spec"`
}

// ResourceMetadata identifies a receiver resource. Name is the stable
// identifier; the display name lives in Spec.Title.
type ResourceMetadata struct {
	Name            string            `json:"name"`
	Namespace       string            `json:"namespace,omitempty"`
	ResourceVersion string            `json:"resourceVersion,omitempty"`
	Annotations     map[string]string `json:"annotations,omitempty"`
}

// ReceiverSpec carries the editable receiver content.
type ReceiverSpec struct {
	Title        string                     `json:"title"`
	Integrations []models.IntegrationConfig `json:"integrations,omitempty"`
}

// Provenance reads the provenance annotation, empty when unset.
func (r *ReceiverResource) Provenance() string {
	return r.Metadata.Annotations[AnnotationProvenance]
}

// GetConfigResponse wraps the legacy document fetch.
type GetConfigResponse struct {
	Config ConfigDocument `json:"config"`
}

// PutConfigRequest carries the legacy document write.
type PutConfigRequest struct {
	Config ConfigDocument `json:"config"`
}

// ListReceiversResponse is the structured list envelope.
type ListReceiversResponse struct {
	Items []ReceiverResource `json:"items"`
}

// ReceiverStatusesResponse is the polled delivery state for all receivers of
// one backend, Alertmanager receiver-status shaped.
type ReceiverStatusesResponse struct {
	Receivers []models.ReceiverStatus `json:"receivers"`
}

// NotifiersResponse is the static notifier metadata catalog.
type NotifiersResponse struct {
	Notifiers []models.NotifierMetadata `json:"notifiers"`
}

// ErrorResponse is a type alias to the common error response
type ErrorResponse = common.ErrorResponse
