package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"
)

// TopicConfigEvents carries contact-point configuration change notifications.
// Every klaxon replica consumes it under its own group so caches converge.
const TopicConfigEvents = "alerting_config_events"

// TopicConfigEventsDLQ receives change events whose handler kept failing.
// Parking them keeps the invalidation partition moving; a stale cache entry
// ages out on TTL, a wedged consumer never recovers.
const TopicConfigEventsDLQ = "alerting_config_events_dlq"

// Config change actions.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// ConfigChangeEvent announces a contact-point mutation applied through some
// klaxon replica. Consumers use it to drop cached reads for the affected scope.
type ConfigChangeEvent struct {
	EventID       string    `json:"event_id"`
	Action        string    `json:"action"`
	Backend       string    `json:"backend"`
	Namespace     string    `json:"namespace,omitempty"`
	Receiver      string    `json:"receiver"`
	TenantID      string    `json:"tenant_id,omitempty"`
	Tags          []string  `json:"tags,omitempty"`
	Origin        string    `json:"origin"`
	Timestamp     time.Time `json:"timestamp"`
	SchemaVersion string    `json:"schema_version"`
}

// EventType returns the header value for this event, e.g. "contact_point.updated".
func (e *ConfigChangeEvent) EventType() string {
	return "contact_point." + e.Action
}

// NewConfigEventHandler returns a consumer Handler that decodes change events
// and forwards them to apply. Events published by origin itself are skipped;
// the publishing replica already invalidated locally before the event hit the
// wire. Undecodable events are dropped rather than blocking the partition.
func NewConfigEventHandler(origin string, apply func(ConfigChangeEvent) error, logger *logrus.Logger) Handler {
	return func(_ context.Context, msg Message) error {
		var event ConfigChangeEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.WithError(err).WithFields(logrus.Fields{
				"topic":  msg.Topic,
				"offset": msg.Offset,
			}).Warn("Dropping undecodable config event")
			return nil
		}
		if event.Origin == origin {
			return nil
		}
		return apply(event)
	}
}

// ConsumerInterface is the consumer surface the invalidator needs.
type ConsumerInterface interface {
	AddHandler(topic string, handler Handler)
	Start(ctx context.Context) error
	Close() error
}

// ProducerInterface is the producer surface the publisher and DLQ need.
type ProducerInterface interface {
	ProduceMessage(topic string, key []byte, value []byte, headers map[string]string) error
	PublishChangeEvent(event *ConfigChangeEvent) error
	Close() error
}
