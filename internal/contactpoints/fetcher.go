// Package contactpoints fetches, enriches, and mutates notification
// contact points across both aldis API generations, presenting one
// normalized shape to the console regardless of which surface served it.
package contactpoints

import (
	"context"
	"errors"
	"net/url"

	"frameworks/klaxon/internal/backends"
	aldisapi "frameworks/klaxon/pkg/api/aldis"
	"frameworks/klaxon/pkg/cache"
	aldisclient "frameworks/klaxon/pkg/clients/aldis"
	"frameworks/klaxon/pkg/ctxkeys"
	"frameworks/klaxon/pkg/logging"
	"frameworks/klaxon/pkg/models"
)

// ErrNotFound is the only domain error value: a name or identifier lookup
// that matched nothing. Everything else passes through from the clients.
var ErrNotFound = errors.New("contact point not found")

// EngineAPI is the aldis surface klaxon consumes, satisfied by
// pkg/clients/aldis.Client.
type EngineAPI interface {
	GetConfig(ctx context.Context, backendID string) (*aldisapi.ConfigDocument, error)
	PutConfig(ctx context.Context, backendID string, doc *aldisapi.ConfigDocument) error
	GetReceiverStatuses(ctx context.Context, backendID string) ([]models.ReceiverStatus, error)
	ListNotifiers(ctx context.Context) ([]models.NotifierMetadata, error)
	ListReceivers(ctx context.Context, namespace string) ([]aldisapi.ReceiverResource, error)
	GetReceiver(ctx context.Context, namespace, name string) (*aldisapi.ReceiverResource, error)
	CreateReceiver(ctx context.Context, namespace string, resource *aldisapi.ReceiverResource) (*aldisapi.ReceiverResource, error)
	UpdateReceiver(ctx context.Context, namespace string, resource *aldisapi.ReceiverResource) (*aldisapi.ReceiverResource, error)
	DeleteReceiver(ctx context.Context, namespace, name string) error
}

// IncidentAPI is the mayday surface klaxon consumes, satisfied by
// pkg/clients/mayday.Client.
type IncidentAPI interface {
	ListIntegrations(ctx context.Context) ([]models.MaydayIntegration, error)
	CreateIntegration(ctx context.Context, name string) (*models.MaydayIntegration, error)
}

// Cache tags. Mutations invalidate by tag, locally and (via the change
// event) on every other replica.
func TagContactPoints(backendID string) string { return "contact-points|" + backendID }
func TagConfig(backendID string) string        { return "config|" + backendID }

const (
	TagNotifiers          = "notifiers"
	TagMaydayIntegrations = "mayday-integrations"
)

// Fetcher serves cached reads from aldis and mayday. All caching happens
// here; the clients underneath stay uncached so mutation paths can demand
// fresh documents.
type Fetcher struct {
	engine   EngineAPI
	incident IncidentAPI
	registry *backends.Registry
	cache    *cache.Cache
	logger   logging.Logger
}

// NewFetcher wires a fetcher. The cache is shared process-wide; pass the
// same instance the mutator invalidates through.
func NewFetcher(engine EngineAPI, incident IncidentAPI, registry *backends.Registry, c *cache.Cache, logger logging.Logger) *Fetcher {
	return &Fetcher{
		engine:   engine,
		incident: incident,
		registry: registry,
		cache:    c,
		logger:   logger,
	}
}

// namespaceFrom resolves the structured-API namespace for this request: an
// explicit override, else the caller's tenant, else the fleet default.
func namespaceFrom(ctx context.Context) string {
	if ns := ctxkeys.GetNamespace(ctx); ns != "" {
		return ns
	}
	if tenant := ctxkeys.GetTenantID(ctx); tenant != "" {
		return tenant
	}
	return "default"
}

// decodeName percent-decodes a requested name, falling back to the raw
// spelling when it is not valid percent-encoding.
func decodeName(name string) string {
	if decoded, err := url.PathUnescape(name); err == nil {
		return decoded
	}
	return name
}

// ListContactPoints returns the normalized contact points of one backend,
// fetched from whichever aldis surface the registry selects.
func (f *Fetcher) ListContactPoints(ctx context.Context, backendID string) ([]models.ContactPoint, error) {
	if f.registry.UsesReceiverResources(backendID) {
		return f.listStructured(ctx, backendID)
	}
	return f.listLegacy(ctx, backendID)
}

func (f *Fetcher) listLegacy(ctx context.Context, backendID string) ([]models.ContactPoint, error) {
	key := "aldis|contact-points|" + backendID
	tags := []string{TagContactPoints(backendID), TagConfig(backendID)}
	val, _, err := f.cache.GetWithTags(ctx, key, tags, func(ctx context.Context, _ string) (interface{}, bool, error) {
		doc, err := f.engine.GetConfig(ctx, backendID)
		if err != nil {
			return nil, false, err
		}
		return fromDocument(doc), true, nil
	})
	if err != nil {
		return nil, err
	}
	return val.([]models.ContactPoint), nil
}

func (f *Fetcher) listStructured(ctx context.Context, backendID string) ([]models.ContactPoint, error) {
	namespace := namespaceFrom(ctx)
	key := "aldis|contact-points|" + backendID + "|" + namespace
	tags := []string{TagContactPoints(backendID)}
	val, _, err := f.cache.GetWithTags(ctx, key, tags, func(ctx context.Context, _ string) (interface{}, bool, error) {
		items, err := f.engine.ListReceivers(ctx, namespace)
		if err != nil {
			return nil, false, err
		}
		return fromResources(items), true, nil
	})
	if err != nil {
		return nil, err
	}
	return val.([]models.ContactPoint), nil
}

// GetContactPoint resolves one contact point by name. Structured backends
// first try the name as a resource identifier; legacy backends, and
// structured misses, filter the normalized list. The requested spelling and
// its percent-decoded form both match.
func (f *Fetcher) GetContactPoint(ctx context.Context, backendID, name string) (*models.ContactPoint, error) {
	decoded := decodeName(name)

	if f.registry.UsesReceiverResources(backendID) {
		point, err := f.getStructuredByID(ctx, backendID, decoded)
		if err == nil {
			return point, nil
		}
		if !aldisclient.IsNotFound(err) {
			return nil, err
		}
	}

	points, err := f.ListContactPoints(ctx, backendID)
	if err != nil {
		return nil, err
	}
	for i := range points {
		if points[i].Name == name || points[i].Name == decoded || (points[i].ID != "" && points[i].ID == decoded) {
			return &points[i], nil
		}
	}
	return nil, ErrNotFound
}

func (f *Fetcher) getStructuredByID(ctx context.Context, backendID, id string) (*models.ContactPoint, error) {
	namespace := namespaceFrom(ctx)
	key := "aldis|receiver|" + backendID + "|" + namespace + "|" + id
	tags := []string{TagContactPoints(backendID)}
	val, _, err := f.cache.GetWithTags(ctx, key, tags, func(ctx context.Context, _ string) (interface{}, bool, error) {
		res, err := f.engine.GetReceiver(ctx, namespace, id)
		if err != nil {
			return nil, false, err
		}
		point := fromResource(res)
		return &point, true, nil
	})
	if err != nil {
		return nil, err
	}
	return val.(*models.ContactPoint), nil
}

// GetReceiverStatuses returns the polled delivery state for one backend's
// receivers. Cached under the contact-points tag so mutations refresh it.
func (f *Fetcher) GetReceiverStatuses(ctx context.Context, backendID string) ([]models.ReceiverStatus, error) {
	key := "aldis|receiver-status|" + backendID
	tags := []string{TagContactPoints(backendID)}
	val, _, err := f.cache.GetWithTags(ctx, key, tags, func(ctx context.Context, _ string) (interface{}, bool, error) {
		statuses, err := f.engine.GetReceiverStatuses(ctx, backendID)
		if err != nil {
			return nil, false, err
		}
		return statuses, true, nil
	})
	if err != nil {
		return nil, err
	}
	return val.([]models.ReceiverStatus), nil
}

// ListNotifiers returns the notifier metadata catalog. The catalog is
// static per engine version, so it caches under its own tag.
func (f *Fetcher) ListNotifiers(ctx context.Context) ([]models.NotifierMetadata, error) {
	val, _, err := f.cache.GetWithTags(ctx, "aldis|notifiers", []string{TagNotifiers}, func(ctx context.Context, _ string) (interface{}, bool, error) {
		notifiers, err := f.engine.ListNotifiers(ctx)
		if err != nil {
			return nil, false, err
		}
		return notifiers, true, nil
	})
	if err != nil {
		return nil, err
	}
	return val.([]models.NotifierMetadata), nil
}

// ListMaydayIntegrations returns the incident-service integration inventory.
func (f *Fetcher) ListMaydayIntegrations(ctx context.Context) ([]models.MaydayIntegration, error) {
	val, _, err := f.cache.GetWithTags(ctx, "mayday|integrations", []string{TagMaydayIntegrations}, func(ctx context.Context, _ string) (interface{}, bool, error) {
		integrations, err := f.incident.ListIntegrations(ctx)
		if err != nil {
			return nil, false, err
		}
		return integrations, true, nil
	})
	if err != nil {
		return nil, err
	}
	return val.([]models.MaydayIntegration), nil
}
