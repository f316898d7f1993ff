// Package backends holds the configured alerting-backend inventory and the
// predicate deciding which aldis API generation serves each backend.
package backends

import (
	"strings"

	"frameworks/klaxon/pkg/models"
)

// BuiltInBackendID identifies the fleet's embedded aldis engine. Only this
// backend can ever be served by the structured receiver API.
const BuiltInBackendID = "aldis"

// Config describes the backend inventory. The built-in engine is always
// present; external Alertmanager-compatible backends are added by ID.
type Config struct {
	// ReceiversAPIEnabled switches the built-in backend to the structured
	// receiver-resource API. External backends ignore it.
	ReceiversAPIEnabled bool

	ExternalBackends []string

	// ReadOnlyBackends lists backend IDs the console may inspect but not
	// mutate, e.g. externally provisioned Alertmanagers.
	ReadOnlyBackends []string
}

// Registry answers which backends exist and what the console may do with
// each. It is immutable after construction, so lookups need no locking.
type Registry struct {
	backends            map[string]models.AlertingBackend
	order               []string
	receiversAPIEnabled bool
}

// NewRegistry builds the inventory: the built-in engine first, then the
// configured external backends in order. Duplicates and attempts to redefine
// the built-in ID are ignored.
func NewRegistry(cfg Config) *Registry {
	readOnly := make(map[string]bool, len(cfg.ReadOnlyBackends))
	for _, id := range cfg.ReadOnlyBackends {
		readOnly[id] = true
	}

	r := &Registry{
		backends:            make(map[string]models.AlertingBackend),
		receiversAPIEnabled: cfg.ReceiversAPIEnabled,
	}

	r.add(models.AlertingBackend{
		ID:                    BuiltInBackendID,
		Name:                  "Aldis",
		UsesReceiverResources: cfg.ReceiversAPIEnabled,
		ReadOnly:              readOnly[BuiltInBackendID],
	})

	for _, id := range cfg.ExternalBackends {
		if id == "" {
			continue
		}
		r.add(models.AlertingBackend{
			ID:       id,
			Name:     id,
			ReadOnly: readOnly[id],
		})
	}

	return r
}

func (r *Registry) add(b models.AlertingBackend) {
	if _, exists := r.backends[b.ID]; exists {
		return
	}
	r.backends[b.ID] = b
	r.order = append(r.order, b.ID)
}

// UsesReceiverResources reports whether backendID is served by the
// structured receiver API. True only for the built-in engine and only when
// the structured API is enabled; everything else takes the legacy document
// surface.
func (r *Registry) UsesReceiverResources(backendID string) bool {
	return backendID == BuiltInBackendID && r.receiversAPIEnabled
}

// Known reports whether backendID is configured.
func (r *Registry) Known(backendID string) bool {
	_, ok := r.backends[backendID]
	return ok
}

// IsReadOnly reports whether the console may mutate backendID. Unknown
// backends read as writable; Known gates first.
func (r *Registry) IsReadOnly(backendID string) bool {
	return r.backends[backendID].ReadOnly
}

// List returns the configured backends in stable order, built-in first.
func (r *Registry) List() []models.AlertingBackend {
	out := make([]models.AlertingBackend, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.backends[id])
	}
	return out
}

// ParseList splits a comma-separated backend list from the environment,
// trimming whitespace and dropping empty entries.
func ParseList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
