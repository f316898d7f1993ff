// Package events connects contact-point mutations to the fleet bus: it
// publishes change events after successful writes and applies incoming
// events to the local response cache so every replica converges.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"frameworks/klaxon/internal/contactpoints"
	"frameworks/klaxon/pkg/cache"
	"frameworks/klaxon/pkg/ctxkeys"
	"frameworks/klaxon/pkg/kafka"
	"frameworks/klaxon/pkg/logging"
)

// schemaVersion of published change events.
const schemaVersion = "1.0"

// Publisher announces applied mutations on the config-events topic.
// Publishing is best-effort: the mutation already landed upstream, so a bus
// failure is logged and swallowed rather than failing the caller. The local
// cache was invalidated before publish; only other replicas lag until the
// bus recovers or their TTLs expire.
type Publisher struct {
	producer kafka.ProducerInterface
	origin   string
	logger   logging.Logger
}

// NewPublisher wires a publisher. origin identifies this replica and lets
// consumers skip events they produced themselves.
func NewPublisher(producer kafka.ProducerInterface, origin string, logger logging.Logger) *Publisher {
	return &Publisher{
		producer: producer,
		origin:   origin,
		logger:   logger,
	}
}

// PublishChange emits one change event carrying the invalidation tags the
// mutation already applied locally.
func (p *Publisher) PublishChange(ctx context.Context, action, backendID, namespace, receiver string, tags []string) {
	event := &kafka.ConfigChangeEvent{
		EventID:       uuid.New().String(),
		Action:        action,
		Backend:       backendID,
		Namespace:     namespace,
		Receiver:      receiver,
		TenantID:      ctxkeys.GetTenantID(ctx),
		Tags:          tags,
		Origin:        p.origin,
		Timestamp:     time.Now().UTC(),
		SchemaVersion: schemaVersion,
	}

	if err := p.producer.PublishChangeEvent(event); err != nil {
		p.logger.WithError(err).WithFields(logging.Fields{
			"event_id": event.EventID,
			"action":   action,
			"backend":  backendID,
			"receiver": receiver,
		}).Warn("Failed to publish config change event")
		return
	}

	p.logger.WithFields(logging.Fields{
		"event_id": event.EventID,
		"action":   action,
		"backend":  backendID,
		"receiver": receiver,
	}).Debug("Published config change event")
}

// Invalidator applies change events from other replicas to the local cache.
type Invalidator struct {
	cache         *cache.Cache
	invalidations *prometheus.CounterVec
	logger        logging.Logger
}

// NewInvalidator wires an invalidator around the process-wide cache.
// invalidations counts dropped entries per tag and origin; nil disables it.
func NewInvalidator(c *cache.Cache, invalidations *prometheus.CounterVec, logger logging.Logger) *Invalidator {
	return &Invalidator{cache: c, invalidations: invalidations, logger: logger}
}

// Apply drops every cache entry the event's tags cover. Events from older
// publishers may lack tags; those fall back to the standard per-backend
// tags. Invalidation is idempotent, so redelivered events are harmless.
func (i *Invalidator) Apply(event kafka.ConfigChangeEvent) error {
	tags := event.Tags
	if len(tags) == 0 {
		tags = []string{
			contactpoints.TagContactPoints(event.Backend),
			contactpoints.TagConfig(event.Backend),
		}
	}

	dropped := 0
	for _, tag := range tags {
		n := i.cache.InvalidateTag(tag)
		dropped += n
		if i.invalidations != nil {
			i.invalidations.WithLabelValues(tag, event.Origin).Add(float64(n))
		}
	}

	i.logger.WithFields(logging.Fields{
		"event_id": event.EventID,
		"action":   event.Action,
		"backend":  event.Backend,
		"receiver": event.Receiver,
		"dropped":  dropped,
	}).Debug("Applied config change invalidation")
	return nil
}

// Register subscribes the invalidator on the config-events topic. origin
// must match the publisher's so this replica skips its own events.
func (i *Invalidator) Register(consumer kafka.ConsumerInterface, origin string) {
	consumer.AddHandler(kafka.TopicConfigEvents, kafka.NewConfigEventHandler(origin, i.Apply, i.logger))
}
