package mayday

import (
	"frameworks/klaxon/pkg/api/common"
	"frameworks/klaxon/pkg/models"
)

// IntegrationType is the only mayday integration kind klaxon provisions.
const IntegrationType = "webhook"

// ListIntegrationsResponse wraps the integration inventory.
type ListIntegrationsResponse struct {
	Integrations []models.MaydayIntegration `json:"integrations"`
}

// CreateIntegrationRequest provisions a new incident-service integration.
type CreateIntegrationRequest struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// CreateIntegrationResponse returns the provisioned record including its
// delivery URL.
type CreateIntegrationResponse struct {
	Integration models.MaydayIntegration `json:"integration"`
}

// ErrorResponse is a type alias to the common error response
type ErrorResponse = common.ErrorResponse
