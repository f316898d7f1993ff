package klaxon

import (
	"frameworks/klaxon/pkg/api/common"
	"frameworks/klaxon/pkg/models"
)

// ListBackendsResponse lists the configured alerting backends.
type ListBackendsResponse struct {
	Backends []models.AlertingBackend `json:"backends"`
}

// ListContactPointsResponse is the enriched contact-point list. Warnings name
// auxiliary fetches (status, notifier catalog, mayday) that failed; the list
// itself is still complete when present.
type ListContactPointsResponse struct {
	ContactPoints []models.EnrichedContactPoint `json:"contact_points"`
	Warnings      []string                      `json:"warnings,omitempty"`
}

// ContactPointResponse wraps a single contact point lookup.
type ContactPointResponse struct {
	ContactPoint models.ContactPoint `json:"contact_point"`
}

// SaveContactPointResponse confirms a create or update.
type SaveContactPointResponse struct {
	ContactPoint models.ContactPoint `json:"contact_point"`
}

// ValidateNameRequest asks whether a contact-point name can be used.
type ValidateNameRequest struct {
	Name         string `json:"name" binding:"required"`
	OriginalName string `json:"original_name,omitempty"`
}

// ValidateNameResponse reports the result. Message is a human-readable
// explanation present only when the name is taken.
type ValidateNameResponse struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

// NotifiersResponse is the notifier metadata catalog passthrough.
type NotifiersResponse struct {
	Notifiers []models.NotifierMetadata `json:"notifiers"`
}

// ErrorResponse is a type alias to the common error response
type ErrorResponse = common.ErrorResponse

// ValidationErrorResponse is a type alias to the common validation error response
type ValidationErrorResponse = common.ValidationErrorResponse
