package contactpoints

import (
	"context"
	"strings"
	"sync"

	"frameworks/klaxon/pkg/models"
)

// SourceState tracks one enrichment constituent. Loading means the fetch has
// not resolved yet; Err records its failure without failing the whole merge.
type SourceState struct {
	Loading bool
	Err     error
}

// Sources carries the four independently fetched constituents of the
// enriched contact-point view.
type Sources struct {
	ContactPoints      []models.ContactPoint
	ContactPointsState SourceState

	Statuses      []models.ReceiverStatus
	StatusesState SourceState

	Notifiers      []models.NotifierMetadata
	NotifiersState SourceState

	Integrations      []models.MaydayIntegration
	IntegrationsState SourceState
}

// EnrichedResult is the merged view. Loading is true while ANY constituent
// is still loading, even when the contact-point list itself has resolved.
type EnrichedResult struct {
	Loading       bool
	ContactPoints []models.EnrichedContactPoint
	Warnings      []string
	Err           error
}

// MergeEnriched joins the constituents. The contact-point list is
// load-bearing: its error fails the result. Auxiliary failures degrade to
// warnings and the affected enrichment is simply absent.
func MergeEnriched(s Sources) EnrichedResult {
	result := EnrichedResult{
		Loading: s.ContactPointsState.Loading ||
			s.StatusesState.Loading ||
			s.NotifiersState.Loading ||
			s.IntegrationsState.Loading,
	}

	if err := s.ContactPointsState.Err; err != nil {
		result.Err = err
		return result
	}

	if err := s.StatusesState.Err; err != nil {
		result.Warnings = append(result.Warnings, "receiver statuses unavailable: "+err.Error())
	}
	if err := s.NotifiersState.Err; err != nil {
		result.Warnings = append(result.Warnings, "notifier catalog unavailable: "+err.Error())
	}
	if err := s.IntegrationsState.Err; err != nil {
		result.Warnings = append(result.Warnings, "incident integrations unavailable: "+err.Error())
	}

	statusByName := make(map[string]*models.ReceiverStatus, len(s.Statuses))
	for i := range s.Statuses {
		statusByName[s.Statuses[i].Name] = &s.Statuses[i]
	}
	notifierByType := make(map[string]*models.NotifierMetadata, len(s.Notifiers))
	for i := range s.Notifiers {
		notifierByType[strings.ToLower(s.Notifiers[i].Type)] = &s.Notifiers[i]
	}
	maydayByURL := make(map[string]*models.MaydayIntegration, len(s.Integrations))
	for i := range s.Integrations {
		maydayByURL[s.Integrations[i].IntegrationURL] = &s.Integrations[i]
	}

	result.ContactPoints = make([]models.EnrichedContactPoint, 0, len(s.ContactPoints))
	for _, point := range s.ContactPoints {
		enriched := models.EnrichedContactPoint{
			Name:         point.Name,
			Provenance:   point.Provenance,
			ID:           point.ID,
			Status:       statusByName[point.Name],
			Integrations: make([]models.EnrichedIntegration, 0, len(point.Integrations)),
		}
		for _, cfg := range point.Integrations {
			enriched.Integrations = append(enriched.Integrations, models.EnrichedIntegration{
				IntegrationConfig: cfg,
				Metadata:          notifierByType[strings.ToLower(cfg.Type)],
				Mayday:            maydayByURL[settingsURL(cfg)],
			})
		}
		result.ContactPoints = append(result.ContactPoints, enriched)
	}

	return result
}

// settingsURL extracts the delivery URL from integration settings, empty
// when unset or not a string.
func settingsURL(cfg models.IntegrationConfig) string {
	if v, ok := cfg.Settings["url"]; ok {
		if s, isString := v.(string); isString {
			return s
		}
	}
	return ""
}

// FetchEnriched runs the four constituent fetches concurrently, joins them
// once all complete, and merges. Auxiliary failures surface as warnings on
// the result, never as an error.
func (f *Fetcher) FetchEnriched(ctx context.Context, backendID string) EnrichedResult {
	var s Sources
	var wg sync.WaitGroup
	wg.Add(4)

	go func() {
		defer wg.Done()
		s.ContactPoints, s.ContactPointsState.Err = f.ListContactPoints(ctx, backendID)
	}()
	go func() {
		defer wg.Done()
		s.Statuses, s.StatusesState.Err = f.GetReceiverStatuses(ctx, backendID)
	}()
	go func() {
		defer wg.Done()
		s.Notifiers, s.NotifiersState.Err = f.ListNotifiers(ctx)
	}()
	go func() {
		defer wg.Done()
		s.Integrations, s.IntegrationsState.Err = f.ListMaydayIntegrations(ctx)
	}()

	wg.Wait()
	return MergeEnriched(s)
}
