package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/twmb/franz-go/pkg/kgo"
)

const produceTimeout = 5 * time.Second

// KafkaProducer publishes config change events for the other replicas and
// parks poison messages on the DLQ topic.
type KafkaProducer struct {
	client *kgo.Client
}

// NewKafkaProducer connects a producer client. clientID is the replica
// instance name so broker logs attribute traffic to the right replica.
func NewKafkaProducer(brokers []string, clientID string, logger *logrus.Logger) (*KafkaProducer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(clientID),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.ProducerLinger(10*time.Millisecond),
		kgo.ProducerBatchMaxBytes(1000000),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"brokers":   brokers,
		"client_id": clientID,
	}).Info("Kafka producer ready")

	return &KafkaProducer{client: client}, nil
}

func (p *KafkaProducer) Close() error {
	p.client.Close()
	return nil
}

// GetClient exposes the kgo client for the broker health check.
func (p *KafkaProducer) GetClient() *kgo.Client {
	return p.client
}

// ProduceMessage publishes one raw record synchronously.
func (p *KafkaProducer) ProduceMessage(topic string, key []byte, value []byte, headers map[string]string) error {
	record := &kgo.Record{
		Topic: topic,
		Key:   key,
		Value: value,
	}
	for k, v := range headers {
		record.Headers = append(record.Headers, kgo.RecordHeader{
			Key:   k,
			Value: []byte(v),
		})
	}

	return p.produce(record)
}

// PublishChangeEvent publishes a single config change event.
func (p *KafkaProducer) PublishChangeEvent(event *ConfigChangeEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}

	record, err := changeEventRecord(event)
	if err != nil {
		return err
	}
	return p.produce(record)
}

func (p *KafkaProducer) produce(record *kgo.Record) error {
	ctx, cancel := context.WithTimeout(context.Background(), produceTimeout)
	defer cancel()

	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("failed to produce message: %w", err)
	}
	return nil
}

// changeEventRecord serializes one event. The record key is the
// backend/namespace scope so events for one scope stay ordered within a
// partition.
func changeEventRecord(event *ConfigChangeEvent) (*kgo.Record, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event %s: %w", event.EventID, err)
	}

	record := &kgo.Record{
		Topic: TopicConfigEvents,
		Key:   []byte(changeEventKey(event)),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "source", Value: []byte(event.Origin)},
			{Key: "event_type", Value: []byte(event.EventType())},
		},
	}
	if event.TenantID != "" {
		record.Headers = append(record.Headers, kgo.RecordHeader{
			Key:   "tenant_id",
			Value: []byte(event.TenantID),
		})
	}
	return record, nil
}

func changeEventKey(event *ConfigChangeEvent) string {
	if event.Namespace != "" {
		return event.Backend + "/" + event.Namespace
	}
	return event.Backend
}
