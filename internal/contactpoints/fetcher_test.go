package contactpoints

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"frameworks/klaxon/internal/backends"
	aldisapi "frameworks/klaxon/pkg/api/aldis"
	"frameworks/klaxon/pkg/cache"
	aldisclient "frameworks/klaxon/pkg/clients/aldis"
	"frameworks/klaxon/pkg/ctxkeys"
	"frameworks/klaxon/pkg/models"
)

// stubEngine fakes the aldis surface. Loads return copies so mutation tests
// can assert against the seeded state.
type stubEngine struct {
	mu    sync.Mutex
	calls []string

	config    *aldisapi.ConfigDocument
	configErr error

	putDocs []aldisapi.ConfigDocument
	putErr  error

	statuses    []models.ReceiverStatus
	statusesErr error

	notifiers    []models.NotifierMetadata
	notifiersErr error

	resources []aldisapi.ReceiverResource
	listErr   error

	getResource *aldisapi.ReceiverResource
	getErr      error

	createErr error
	updateErr error

	deleteErr    error
	deletedNames []string
}

func (s *stubEngine) record(call string) {
	s.mu.Lock()
	s.calls = append(s.calls, call)
	s.mu.Unlock()
}

func (s *stubEngine) callCount(call string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (s *stubEngine) GetConfig(_ context.Context, backendID string) (*aldisapi.ConfigDocument, error) {
	s.record("GetConfig:" + backendID)
	if s.configErr != nil {
		return nil, s.configErr
	}
	doc := *s.config
	doc.AlertingConfig.Receivers = append([]aldisapi.Receiver(nil), s.config.AlertingConfig.Receivers...)
	return &doc, nil
}

func (s *stubEngine) PutConfig(_ context.Context, backendID string, doc *aldisapi.ConfigDocument) error {
	s.record("PutConfig:" + backendID)
	if s.putErr != nil {
		return s.putErr
	}
	s.mu.Lock()
	s.putDocs = append(s.putDocs, *doc)
	s.mu.Unlock()
	return nil
}

func (s *stubEngine) GetReceiverStatuses(_ context.Context, backendID string) ([]models.ReceiverStatus, error) {
	s.record("GetReceiverStatuses:" + backendID)
	return s.statuses, s.statusesErr
}

func (s *stubEngine) ListNotifiers(_ context.Context) ([]models.NotifierMetadata, error) {
	s.record("ListNotifiers")
	return s.notifiers, s.notifiersErr
}

func (s *stubEngine) ListReceivers(_ context.Context, namespace string) ([]aldisapi.ReceiverResource, error) {
	s.record("ListReceivers:" + namespace)
	return s.resources, s.listErr
}

func (s *stubEngine) GetReceiver(_ context.Context, namespace, name string) (*aldisapi.ReceiverResource, error) {
	s.record("GetReceiver:" + namespace + "/" + name)
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.getResource, nil
}

func (s *stubEngine) CreateReceiver(_ context.Context, namespace string, resource *aldisapi.ReceiverResource) (*aldisapi.ReceiverResource, error) {
	s.record("CreateReceiver:" + namespace)
	if s.createErr != nil {
		return nil, s.createErr
	}
	out := *resource
	out.Metadata.Name = "rcv-assigned"
	out.Metadata.Namespace = namespace
	return &out, nil
}

func (s *stubEngine) UpdateReceiver(_ context.Context, namespace string, resource *aldisapi.ReceiverResource) (*aldisapi.ReceiverResource, error) {
	s.record("UpdateReceiver:" + namespace + "/" + resource.Metadata.Name)
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	out := *resource
	out.Metadata.Namespace = namespace
	out.Metadata.ResourceVersion = "updated"
	return &out, nil
}

func (s *stubEngine) DeleteReceiver(_ context.Context, namespace, name string) error {
	s.record("DeleteReceiver:" + namespace + "/" + name)
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.mu.Lock()
	s.deletedNames = append(s.deletedNames, name)
	s.mu.Unlock()
	return nil
}

// stubIncident fakes the mayday surface.
type stubIncident struct {
	mu           sync.Mutex
	integrations []models.MaydayIntegration
	listErr      error
	createErr    error
	created      []string
}

func (s *stubIncident) ListIntegrations(_ context.Context) ([]models.MaydayIntegration, error) {
	return s.integrations, s.listErr
}

func (s *stubIncident) CreateIntegration(_ context.Context, name string) (*models.MaydayIntegration, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.mu.Lock()
	s.created = append(s.created, name)
	s.mu.Unlock()
	return &models.MaydayIntegration{
		ID:             "int-" + name,
		Name:           name,
		Type:           "webhook",
		IntegrationURL: "https://mayday.example/hooks/" + name,
	}, nil
}

const legacyBackend = "harbor-main"

func legacyRegistry() *backends.Registry {
	return backends.NewRegistry(backends.Config{ExternalBackends: []string{legacyBackend}})
}

func structuredRegistry() *backends.Registry {
	return backends.NewRegistry(backends.Config{ReceiversAPIEnabled: true})
}

func newTestCache() *cache.Cache {
	return cache.New(cache.Options{TTL: time.Minute}, cache.MetricsHooks{})
}

func seededDocument() *aldisapi.ConfigDocument {
	return &aldisapi.ConfigDocument{
		TemplateFiles: map[string]string{"wave.tmpl": `{{ define "wave" }}ahoy{{ end }}`},
		AlertingConfig: aldisapi.AlertingConfig{
			Receivers: []aldisapi.Receiver{
				{Name: "deck crew", Integrations: []models.IntegrationConfig{{Type: "email", Settings: map[string]interface{}{"addresses": "crew@pier.example"}}}},
				{Name: "night-watch", Provenance: "file", Integrations: []models.IntegrationConfig{{Type: "slack", Settings: map[string]interface{}{"url": "https://hooks.slack.example/T1"}}}},
			},
			Route:  json.RawMessage(`{"receiver":"deck crew","group_by":["alertname"]}`),
			Global: json.RawMessage(`{"resolve_timeout":"5m"}`),
		},
	}
}

func TestListContactPointsLegacyNormalizes(t *testing.T) {
	engine := &stubEngine{config: seededDocument()}
	f := NewFetcher(engine, &stubIncident{}, legacyRegistry(), newTestCache(), nil)

	points, err := f.ListContactPoints(context.Background(), legacyBackend)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}
	if points[0].Name != "deck crew" || points[0].ID != "" {
		t.Fatalf("unexpected first point: %+v", points[0])
	}
	if points[1].Provenance != "file" {
		t.Fatalf("expected provenance to survive normalization, got %+v", points[1])
	}
	if len(points[0].Integrations) != 1 || points[0].Integrations[0].Type != "email" {
		t.Fatalf("unexpected integrations: %+v", points[0].Integrations)
	}
}

func TestListContactPointsLegacyCaches(t *testing.T) {
	engine := &stubEngine{config: seededDocument()}
	f := NewFetcher(engine, &stubIncident{}, legacyRegistry(), newTestCache(), nil)

	for i := 0; i < 3; i++ {
		if _, err := f.ListContactPoints(context.Background(), legacyBackend); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if got := engine.callCount("GetConfig:" + legacyBackend); got != 1 {
		t.Fatalf("expected 1 upstream fetch, got %d", got)
	}
}

func TestListContactPointsStructuredNormalizes(t *testing.T) {
	engine := &stubEngine{
		resources: []aldisapi.ReceiverResource{
			{
				Metadata: aldisapi.ResourceMetadata{
					Name:        "rcv-1",
					Namespace:   "default",
					Annotations: map[string]string{aldisapi.AnnotationProvenance: "terraform"},
				},
				Spec: aldisapi.ReceiverSpec{
					Title:        "deck crew",
					Integrations: []models.IntegrationConfig{{UID: "u1", Type: "email"}},
				},
			},
		},
	}
	f := NewFetcher(engine, &stubIncident{}, structuredRegistry(), newTestCache(), nil)

	points, err := f.ListContactPoints(context.Background(), backends.BuiltInBackendID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("expected 1 point, got %d", len(points))
	}
	if points[0].Name != "deck crew" {
		t.Fatalf("expected spec title as display name, got %q", points[0].Name)
	}
	if points[0].ID != "rcv-1" {
		t.Fatalf("expected metadata name as identifier, got %q", points[0].ID)
	}
	if points[0].Provenance != "terraform" {
		t.Fatalf("expected annotation provenance, got %q", points[0].Provenance)
	}
	if got := engine.callCount("ListReceivers:default"); got != 1 {
		t.Fatalf("expected namespace-scoped list, calls: %v", engine.calls)
	}
}

func TestListErrorPassthrough(t *testing.T) {
	upstream := &aldisclient.APIError{StatusCode: http.StatusServiceUnavailable, Message: "engine restarting"}
	engine := &stubEngine{configErr: upstream}
	f := NewFetcher(engine, &stubIncident{}, legacyRegistry(), newTestCache(), nil)

	_, err := f.ListContactPoints(context.Background(), legacyBackend)
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *aldisclient.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected upstream error unchanged, got %v", err)
	}
}

func TestGetContactPointMatchesAcrossPercentEncoding(t *testing.T) {
	engine := &stubEngine{config: seededDocument()}
	f := NewFetcher(engine, &stubIncident{}, legacyRegistry(), newTestCache(), nil)

	for _, requested := range []string{"deck crew", "deck%20crew"} {
		point, err := f.GetContactPoint(context.Background(), legacyBackend, requested)
		if err != nil {
			t.Fatalf("lookup %q: unexpected error: %v", requested, err)
		}
		if point.Name != "deck crew" {
			t.Fatalf("lookup %q: got %q", requested, point.Name)
		}
	}
}

func TestGetContactPointMiss(t *testing.T) {
	engine := &stubEngine{config: seededDocument()}
	f := NewFetcher(engine, &stubIncident{}, legacyRegistry(), newTestCache(), nil)

	_, err := f.GetContactPoint(context.Background(), legacyBackend, "ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetContactPointStructuredDirectGet(t *testing.T) {
	engine := &stubEngine{
		getResource: &aldisapi.ReceiverResource{
			Metadata: aldisapi.ResourceMetadata{Name: "rcv-1", Namespace: "default"},
			Spec:     aldisapi.ReceiverSpec{Title: "deck crew"},
		},
	}
	f := NewFetcher(engine, &stubIncident{}, structuredRegistry(), newTestCache(), nil)

	point, err := f.GetContactPoint(context.Background(), backends.BuiltInBackendID, "rcv-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if point.ID != "rcv-1" || point.Name != "deck crew" {
		t.Fatalf("unexpected point: %+v", point)
	}
	if engine.callCount("GetReceiver:default/rcv-1") != 1 {
		t.Fatalf("expected direct resource get, calls: %v", engine.calls)
	}
	if engine.callCount("ListReceivers:default") != 0 {
		t.Fatalf("expected no list fallback, calls: %v", engine.calls)
	}
}

func TestGetContactPointStructuredFallsBackToTitleScan(t *testing.T) {
	engine := &stubEngine{
		getErr: &aldisclient.APIError{StatusCode: http.StatusNotFound},
		resources: []aldisapi.ReceiverResource{
			{
				Metadata: aldisapi.ResourceMetadata{Name: "rcv-1"},
				Spec:     aldisapi.ReceiverSpec{Title: "deck crew"},
			},
		},
	}
	f := NewFetcher(engine, &stubIncident{}, structuredRegistry(), newTestCache(), nil)

	point, err := f.GetContactPoint(context.Background(), backends.BuiltInBackendID, "deck%20crew")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if point.ID != "rcv-1" {
		t.Fatalf("expected title scan to resolve the resource, got %+v", point)
	}
}

func TestGetContactPointStructuredErrorPassthrough(t *testing.T) {
	engine := &stubEngine{
		getErr: &aldisclient.APIError{StatusCode: http.StatusBadGateway},
	}
	f := NewFetcher(engine, &stubIncident{}, structuredRegistry(), newTestCache(), nil)

	_, err := f.GetContactPoint(context.Background(), backends.BuiltInBackendID, "rcv-1")
	var apiErr *aldisclient.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502 passthrough without list fallback, got %v", err)
	}
	if engine.callCount("ListReceivers:default") != 0 {
		t.Fatalf("unexpected list fallback, calls: %v", engine.calls)
	}
}

func TestNamespaceFromContext(t *testing.T) {
	engine := &stubEngine{resources: nil}
	f := NewFetcher(engine, &stubIncident{}, structuredRegistry(), newTestCache(), nil)

	ctx := context.WithValue(context.Background(), ctxkeys.KeyTenantID, "tenant-7")
	if _, err := f.ListContactPoints(ctx, backends.BuiltInBackendID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if engine.callCount("ListReceivers:tenant-7") != 1 {
		t.Fatalf("expected tenant namespace, calls: %v", engine.calls)
	}
}
