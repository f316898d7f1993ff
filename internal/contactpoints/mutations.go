package contactpoints

import (
	"context"
	"fmt"
	"strings"

	"frameworks/klaxon/internal/backends"
	aldisapi "frameworks/klaxon/pkg/api/aldis"
	"frameworks/klaxon/pkg/cache"
	"frameworks/klaxon/pkg/kafka"
	"frameworks/klaxon/pkg/logging"
	"frameworks/klaxon/pkg/models"
	"frameworks/klaxon/pkg/validation"
)

// maydayIntegrationType marks draft integrations backed by the incident
// service. One lacking its delivery URL gets provisioned before the write.
const maydayIntegrationType = "mayday"

// EventPublisher announces applied mutations to the rest of the fleet.
// Publishing is best-effort; implementations log failures and never return
// them to the mutating caller.
type EventPublisher interface {
	PublishChange(ctx context.Context, action, backendID, namespace, receiver string, tags []string)
}

// Mutator applies contact-point writes against whichever aldis surface the
// registry selects, then invalidates dependent cached reads and announces
// the change.
type Mutator struct {
	engine   EngineAPI
	incident IncidentAPI
	registry *backends.Registry
	cache    *cache.Cache
	events   EventPublisher
	logger   logging.Logger
}

// NewMutator wires a mutator around the same cache instance the fetcher
// reads through. events may be nil when no bus is configured.
func NewMutator(engine EngineAPI, incident IncidentAPI, registry *backends.Registry, c *cache.Cache, events EventPublisher, logger logging.Logger) *Mutator {
	return &Mutator{
		engine:   engine,
		incident: incident,
		registry: registry,
		cache:    c,
		events:   events,
		logger:   logger,
	}
}

// Delete removes one contact point. Structured backends delete the receiver
// resource by identifier; legacy backends rewrite the config document with
// exactly the matching receiver removed. Deleting an absent legacy name is
// a no-op write, so legacy deletes are idempotent.
func (m *Mutator) Delete(ctx context.Context, backendID, name string) error {
	decoded := decodeName(name)

	if m.registry.UsesReceiverResources(backendID) {
		namespace := namespaceFrom(ctx)
		if err := m.engine.DeleteReceiver(ctx, namespace, decoded); err != nil {
			return err
		}
		m.afterMutation(ctx, kafka.ActionDeleted, backendID, namespace, decoded, m.mutationTags(backendID, false))
		return nil
	}

	doc, err := m.engine.GetConfig(ctx, backendID)
	if err != nil {
		return err
	}

	if removeReceiver(doc, name) == 0 && decoded != name {
		removeReceiver(doc, decoded)
	}

	if err := m.engine.PutConfig(ctx, backendID, doc); err != nil {
		return err
	}
	m.afterMutation(ctx, kafka.ActionDeleted, backendID, "", decoded, m.mutationTags(backendID, false))
	return nil
}

// CreateOrUpdate writes a draft through. originalName is empty on create;
// on update it names the receiver being replaced. The returned contact
// point reflects what was stored, including any server-assigned identifier.
func (m *Mutator) CreateOrUpdate(ctx context.Context, backendID string, draft *validation.ContactPointDraft, originalName string) (*models.ContactPoint, error) {
	if m.registry.UsesReceiverResources(backendID) {
		return m.structuredCreateOrUpdate(ctx, backendID, draft, originalName)
	}
	return m.legacyCreateOrUpdate(ctx, backendID, draft, originalName)
}

func (m *Mutator) structuredCreateOrUpdate(ctx context.Context, backendID string, draft *validation.ContactPointDraft, originalName string) (*models.ContactPoint, error) {
	namespace := namespaceFrom(ctx)
	resource := resourceFromDraft(draft)

	action := kafka.ActionCreated
	var stored *models.ContactPoint

	if draft.ID != "" && originalName != "" {
		updated, err := m.engine.UpdateReceiver(ctx, namespace, resource)
		if err != nil {
			return nil, err
		}
		point := fromResource(updated)
		stored = &point
		action = kafka.ActionUpdated
	} else {
		// No identifier, or an identifier without an original name: create.
		// The engine assigns identity.
		resource.Metadata.Name = ""
		resource.Metadata.ResourceVersion = ""
		created, err := m.engine.CreateReceiver(ctx, namespace, resource)
		if err != nil {
			return nil, err
		}
		point := fromResource(created)
		stored = &point
	}

	m.afterMutation(ctx, action, backendID, namespace, stored.Name, m.mutationTags(backendID, false))
	return stored, nil
}

func (m *Mutator) legacyCreateOrUpdate(ctx context.Context, backendID string, draft *validation.ContactPointDraft, originalName string) (*models.ContactPoint, error) {
	provisioned, provisionErr := m.provisionMaydayIntegrations(ctx, draft)
	if provisioned {
		// The incident service now has integrations our cached inventory
		// lacks, whether or not the rest of the mutation lands.
		m.cache.InvalidateTag(TagMaydayIntegrations)
	}
	if provisionErr != nil {
		return nil, provisionErr
	}

	doc, err := m.engine.GetConfig(ctx, backendID)
	if err != nil {
		return nil, err
	}

	receiver := receiverFromDraft(draft)
	action := kafka.ActionCreated
	if originalName == "" {
		doc.AlertingConfig.Receivers = append(doc.AlertingConfig.Receivers, receiver)
	} else {
		if !replaceReceiver(doc, originalName, receiver) &&
			!replaceReceiver(doc, decodeName(originalName), receiver) {
			return nil, ErrNotFound
		}
		action = kafka.ActionUpdated
	}

	if err := m.engine.PutConfig(ctx, backendID, doc); err != nil {
		return nil, err
	}

	m.afterMutation(ctx, action, backendID, "", draft.Name, m.mutationTags(backendID, provisioned))
	return &models.ContactPoint{
		Name:         draft.Name,
		Provenance:   draft.Provenance,
		Integrations: receiver.Integrations,
	}, nil
}

// ValidateName checks a proposed contact-point name. Structured backends
// always validate client-side; the engine enforces uniqueness at write time
// and its conflict passes through then. Legacy backends check the current
// config fresh. A duplicate produces a message, not an error; errors are
// reserved for fetch failures.
func (m *Mutator) ValidateName(ctx context.Context, backendID, name, originalName string) (bool, string, error) {
	if m.registry.UsesReceiverResources(backendID) {
		return true, "", nil
	}

	doc, err := m.engine.GetConfig(ctx, backendID)
	if err != nil {
		return false, "", err
	}

	for _, rcv := range doc.AlertingConfig.Receivers {
		if rcv.Name == name && rcv.Name != originalName {
			return false, fmt.Sprintf("A contact point named %q already exists", name), nil
		}
	}
	return true, "", nil
}

// provisionMaydayIntegrations creates an incident-service integration for
// every mayday-typed draft integration still missing its delivery URL and
// writes the URL into the draft settings. Reports whether anything was
// provisioned; an error aborts the mutation before the config write.
func (m *Mutator) provisionMaydayIntegrations(ctx context.Context, draft *validation.ContactPointDraft) (bool, error) {
	provisioned := false
	for i := range draft.Integrations {
		integration := &draft.Integrations[i]
		if !strings.EqualFold(integration.Type, maydayIntegrationType) {
			continue
		}
		if draftHasURL(integration.Settings) {
			continue
		}

		created, err := m.incident.CreateIntegration(ctx, draft.Name)
		if err != nil {
			return provisioned, err
		}
		if integration.Settings == nil {
			integration.Settings = make(map[string]interface{})
		}
		integration.Settings["url"] = created.IntegrationURL
		provisioned = true

		if m.logger != nil {
			m.logger.WithFields(logging.Fields{
				"integration_id": created.ID,
				"contact_point":  draft.Name,
			}).Info("Provisioned mayday integration")
		}
	}
	return provisioned, nil
}

func draftHasURL(settings map[string]interface{}) bool {
	if v, ok := settings["url"]; ok {
		if s, isString := v.(string); isString {
			return strings.TrimSpace(s) != ""
		}
		return v != nil
	}
	return false
}

// removeReceiver drops every receiver whose name matches exactly and
// reports how many were dropped. Names are unique within a document, so at
// most one goes.
func removeReceiver(doc *aldisapi.ConfigDocument, name string) int {
	kept := doc.AlertingConfig.Receivers[:0]
	removed := 0
	for _, rcv := range doc.AlertingConfig.Receivers {
		if rcv.Name == name {
			removed++
			continue
		}
		kept = append(kept, rcv)
	}
	doc.AlertingConfig.Receivers = kept
	return removed
}

// replaceReceiver swaps the receiver named originalName for replacement,
// reporting whether a match was found.
func replaceReceiver(doc *aldisapi.ConfigDocument, originalName string, replacement aldisapi.Receiver) bool {
	for i := range doc.AlertingConfig.Receivers {
		if doc.AlertingConfig.Receivers[i].Name == originalName {
			doc.AlertingConfig.Receivers[i] = replacement
			return true
		}
	}
	return false
}

func (m *Mutator) mutationTags(backendID string, provisioned bool) []string {
	tags := []string{TagContactPoints(backendID), TagConfig(backendID)}
	if provisioned {
		tags = append(tags, TagMaydayIntegrations)
	}
	return tags
}

// afterMutation invalidates the affected cached reads locally, then
// announces the change so other replicas do the same.
func (m *Mutator) afterMutation(ctx context.Context, action, backendID, namespace, receiver string, tags []string) {
	for _, tag := range tags {
		m.cache.InvalidateTag(tag)
	}
	if m.events != nil {
		m.events.PublishChange(ctx, action, backendID, namespace, receiver, tags)
	}
}
