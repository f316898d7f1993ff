package contactpoints

import (
	aldisapi "frameworks/klaxon/pkg/api/aldis"
	"frameworks/klaxon/pkg/models"
	"frameworks/klaxon/pkg/validation"
)

// fromDocument normalizes the receivers of a legacy config document. Legacy
// receivers have no stable identifier, so ID stays empty.
func fromDocument(doc *aldisapi.ConfigDocument) []models.ContactPoint {
	points := make([]models.ContactPoint, 0, len(doc.AlertingConfig.Receivers))
	for _, rcv := range doc.AlertingConfig.Receivers {
		points = append(points, models.ContactPoint{
			Name:         rcv.Name,
			Provenance:   rcv.Provenance,
			Integrations: rcv.Integrations,
		})
	}
	return points
}

// fromResources normalizes structured receiver resources: the metadata name
// becomes the identifier, the spec title the display name, provenance comes
// off the annotations.
func fromResources(items []aldisapi.ReceiverResource) []models.ContactPoint {
	points := make([]models.ContactPoint, 0, len(items))
	for i := range items {
		points = append(points, fromResource(&items[i]))
	}
	return points
}

func fromResource(res *aldisapi.ReceiverResource) models.ContactPoint {
	return models.ContactPoint{
		Name:         res.Spec.Title,
		Provenance:   res.Provenance(),
		ID:           res.Metadata.Name,
		Integrations: res.Spec.Integrations,
	}
}

// integrationsFromDraft converts draft integrations to the wire config shape.
// The two are field-compatible; the draft exists so validation tags do not
// leak into the domain model.
func integrationsFromDraft(drafts []validation.IntegrationDraft) []models.IntegrationConfig {
	configs := make([]models.IntegrationConfig, 0, len(drafts))
	for _, d := range drafts {
		configs = append(configs, models.IntegrationConfig{
			UID:                   d.UID,
			Type:                  d.Type,
			Settings:              d.Settings,
			SecureFields:          d.SecureFields,
			DisableResolveMessage: d.DisableResolveMessage,
		})
	}
	return configs
}

// receiverFromDraft builds the legacy receiver entry a draft writes into a
// config document.
func receiverFromDraft(draft *validation.ContactPointDraft) aldisapi.Receiver {
	return aldisapi.Receiver{
		Name:         draft.Name,
		Provenance:   draft.Provenance,
		Integrations: integrationsFromDraft(draft.Integrations),
	}
}

// resourceFromDraft builds the structured receiver resource for a draft. The
// metadata name and resource version are filled only on update; creates leave
// them for the engine to assign.
func resourceFromDraft(draft *validation.ContactPointDraft) *aldisapi.ReceiverResource {
	return &aldisapi.ReceiverResource{
		Metadata: aldisapi.ResourceMetadata{
			Name:            draft.ID,
			ResourceVersion: draft.ResourceVersion,
		},
		Spec: aldisapi.ReceiverSpec{
			Title:        draft.Name,
			Integrations: integrationsFromDraft(draft.Integrations),
		},
	}
}
