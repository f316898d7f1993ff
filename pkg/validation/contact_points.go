package validation

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ContactPointDraft is the console's mutation payload for a contact point,
// validated before it is written through to either aldis API generation.
type ContactPointDraft struct {
	Name string `json:"name" validate:"required,max=255"`

	// ID is the structured resource identifier. It is set only when the
	// console edits an existing structured receiver; its presence selects
	// update over create.
	ID string `json:"id,omitempty"`

	// ResourceVersion is echoed back on structured updates so the engine
	// can reject writes against a stale read.
	ResourceVersion string `json:"resource_version,omitempty"`

	Provenance   string             `json:"provenance,omitempty"`
	Integrations []IntegrationDraft `json:"integrations" validate:"required,min=1,dive"`
}

// IntegrationDraft is a single notifier integration inside a draft. Settings
// carries the notifier-specific fields; SecureFields marks secrets that are
// already stored server-side and therefore absent from Settings on update.
type IntegrationDraft struct {
	UID                   string                 `json:"uid,omitempty"`
	Type                  string                 `json:"type" validate:"required"`
	Settings              map[string]interface{} `json:"settings"`
	SecureFields          map[string]bool        `json:"secure_fields,omitempty"`
	DisableResolveMessage bool                   `json:"disable_resolve_message,omitempty"`
}

// DraftValidator performs structural and notifier-type-specific validation for
// contact point drafts before klaxon forwards them upstream.
type DraftValidator struct {
	validator *validator.Validate
}

// NewDraftValidator constructs a DraftValidator with standard struct validation.
func NewDraftValidator() *DraftValidator {
	return &DraftValidator{
		validator: validator.New(),
	}
}

// ValidateDraft checks the draft envelope and applies per-type validation to
// each integration, failing fast on the first invalid entry.
func (v *DraftValidator) ValidateDraft(draft *ContactPointDraft) error {
	if err := v.validator.Struct(draft); err != nil {
		return fmt.Errorf("draft validation failed: %w", err)
	}

	if strings.TrimSpace(draft.Name) == "" {
		return fmt.Errorf("name must not be blank")
	}

	for i, integration := range draft.Integrations {
		if err := v.validateIntegration(integration); err != nil {
			return fmt.Errorf("integration %d validation failed: %w", i, err)
		}
	}

	return nil
}

// validateIntegration dispatches to the specific checks per notifier type.
// Types without server-side rules pass through; the notifier catalog drives
// their form validation in the console.
func (v *DraftValidator) validateIntegration(integration IntegrationDraft) error {
	switch strings.ToLower(integration.Type) {
	case "email":
		return v.validateEmailIntegration(integration)
	case "slack":
		return v.validateSlackIntegration(integration)
	case "webhook":
		return v.validateWebhookIntegration(integration)
	case "pagerduty":
		return v.validatePagerdutyIntegration(integration)
	case "opsgenie":
		return v.validateOpsgenieIntegration(integration)
	case "telegram":
		return v.validateTelegramIntegration(integration)
	default:
		return nil
	}
}

// validateEmailIntegration requires at least one recipient address.
func (v *DraftValidator) validateEmailIntegration(integration IntegrationDraft) error {
	if !settingPresent(integration, "addresses") {
		return fmt.Errorf("addresses is required for email integrations")
	}
	return nil
}

// validateSlackIntegration requires a destination. Either a webhook URL or an
// API token plus recipient works; both may live in secure storage.
func (v *DraftValidator) validateSlackIntegration(integration IntegrationDraft) error {
	hasURL := settingPresent(integration, "url")
	hasToken := settingPresent(integration, "token")
	if !hasURL && !hasToken {
		return fmt.Errorf("url or token is required for slack integrations")
	}
	if hasToken && !settingPresent(integration, "recipient") {
		return fmt.Errorf("recipient is required for token-based slack integrations")
	}
	return nil
}

// validateWebhookIntegration requires the target URL.
func (v *DraftValidator) validateWebhookIntegration(integration IntegrationDraft) error {
	if !settingPresent(integration, "url") {
		return fmt.Errorf("url is required for webhook integrations")
	}
	return nil
}

// validatePagerdutyIntegration requires the routing key, possibly secure-stored.
func (v *DraftValidator) validatePagerdutyIntegration(integration IntegrationDraft) error {
	if !settingPresent(integration, "integrationKey") {
		return fmt.Errorf("integrationKey is required for pagerduty integrations")
	}
	return nil
}

// validateOpsgenieIntegration requires the API key, possibly secure-stored.
func (v *DraftValidator) validateOpsgenieIntegration(integration IntegrationDraft) error {
	if !settingPresent(integration, "apiKey") {
		return fmt.Errorf("apiKey is required for opsgenie integrations")
	}
	return nil
}

// validateTelegramIntegration requires the bot token and chat id.
func (v *DraftValidator) validateTelegramIntegration(integration IntegrationDraft) error {
	if !settingPresent(integration, "bottoken") {
		return fmt.Errorf("bottoken is required for telegram integrations")
	}
	if !settingPresent(integration, "chatid") {
		return fmt.Errorf("chatid is required for telegram integrations")
	}
	return nil
}

// settingPresent reports whether a field is usable: a non-empty value in
// Settings, or a secret flagged as already stored via SecureFields.
func settingPresent(integration IntegrationDraft, key string) bool {
	if v, ok := integration.Settings[key]; ok {
		if s, isString := v.(string); isString {
			if strings.TrimSpace(s) != "" {
				return true
			}
		} else if v != nil {
			return true
		}
	}
	return integration.SecureFields[key]
}
