package kafka

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is one consumed record, decoupled from the kgo types so handlers
// can be tested without a broker.
type Message struct {
	Key   []byte
	Value []byte
	// Headers flatten duplicate keys; the last value wins.
	Headers   map[string]string
	Topic     string
	Partition int32
	Offset    int64
	Timestamp time.Time
}

// Handler processes one message. A non-nil error keeps the offset
// uncommitted unless the message can be parked on the DLQ.
type Handler func(ctx context.Context, msg Message) error

// Consumer polls subscribed topics and dispatches records to per-topic
// handlers. Auto-commit is off; offsets advance only past handled records.
type Consumer struct {
	client      *kgo.Client
	logger      *logrus.Logger
	groupID     string
	handlers    map[string]Handler
	dlqProducer ProducerInterface
	dlqTopic    string
	mu          sync.RWMutex
}

// NewConsumer joins the consumer group. Each klaxon replica runs its own
// group so every replica sees every change event.
func NewConsumer(brokers []string, groupID string, clientID string, logger *logrus.Logger) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(groupID),
		kgo.ClientID(clientID),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.DisableAutoCommit(),
		kgo.BlockRebalanceOnPoll(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}

	return &Consumer{
		client:   client,
		logger:   logger,
		groupID:  groupID,
		handlers: make(map[string]Handler),
	}, nil
}

// AddHandler registers a handler for topic and subscribes to it.
func (c *Consumer) AddHandler(topic string, handler Handler) {
	c.mu.Lock()
	c.handlers[topic] = handler
	c.mu.Unlock()

	c.client.AddConsumeTopics(topic)
}

// SetDLQ routes messages whose handler fails to the dead-letter topic and
// commits past them. Without a DLQ the consumer blocks the partition and
// retries the message on restart, which wedges the partition if the failure
// is permanent.
func (c *Consumer) SetDLQ(producer ProducerInterface, topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dlqProducer = producer
	c.dlqTopic = topic
}

// routeToDLQ parks a failed message on the dead-letter topic. Returns false
// when no DLQ is configured or the park itself failed, in which case the
// caller must keep blocking the partition.
func (c *Consumer) routeToDLQ(msg Message, handlerErr error) bool {
	c.mu.RLock()
	producer, topic := c.dlqProducer, c.dlqTopic
	c.mu.RUnlock()

	if producer == nil {
		return false
	}

	payload, err := EncodeDLQMessage(msg, handlerErr, c.groupID)
	if err != nil {
		c.logger.WithError(err).Error("Failed to encode DLQ payload")
		return false
	}
	if err := producer.ProduceMessage(topic, msg.Key, payload, map[string]string{
		"origin_topic": msg.Topic,
	}); err != nil {
		c.logger.WithError(err).Error("Failed to publish to DLQ")
		return false
	}

	c.logger.WithFields(logrus.Fields{
		"topic":     msg.Topic,
		"partition": msg.Partition,
		"offset":    msg.Offset,
		"dlq_topic": topic,
	}).Warn("Parked failed message on DLQ")
	return true
}

// Close closes the underlying client.
func (c *Consumer) Close() error {
	c.client.Close()
	return nil
}

// GetClient exposes the kgo client for the broker health check.
func (c *Consumer) GetClient() *kgo.Client {
	return c.client
}

// Start polls until ctx is cancelled. Call it on its own goroutine.
func (c *Consumer) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		fetches := c.client.PollFetches(ctx)
		if errs := fetches.Errors(); len(errs) > 0 {
			// Cancellation surfaces as a fetch error; not worth a log line.
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Errorf("errors while polling: %v", errs)
			continue
		}

		var records []*kgo.Record
		fetches.EachRecord(func(record *kgo.Record) {
			records = append(records, record)
		})

		if commits := c.processRecords(ctx, records); len(commits) > 0 {
			if err := c.client.CommitRecords(ctx, commits...); err != nil {
				c.logger.WithError(err).Error("failed to commit records")
			}
		}
	}
}

func recordMessage(record *kgo.Record) Message {
	hdrs := make(map[string]string, len(record.Headers))
	for _, h := range record.Headers {
		hdrs[h.Key] = string(h.Value)
	}
	return Message{
		Key:       record.Key,
		Value:     record.Value,
		Headers:   hdrs,
		Topic:     record.Topic,
		Partition: record.Partition,
		Offset:    record.Offset,
		Timestamp: record.Timestamp,
	}
}

// processRecords runs handlers over one fetch and returns, per partition,
// the newest record that is safe to commit.
func (c *Consumer) processRecords(ctx context.Context, records []*kgo.Record) []*kgo.Record {
	type topicPartition struct {
		topic     string
		partition int32
	}
	halted := make(map[topicPartition]bool)
	newest := make(map[topicPartition]*kgo.Record)

	for _, record := range records {
		tp := topicPartition{topic: record.Topic, partition: record.Partition}
		if halted[tp] {
			// An earlier offset on this partition failed without a DLQ park.
			// Committing anything later would skip it on restart.
			continue
		}

		c.mu.RLock()
		handler, ok := c.handlers[record.Topic]
		c.mu.RUnlock()

		if !ok {
			// Subscribed but no handler; commit so it is not redelivered.
			c.logger.WithField("topic", record.Topic).Warn("No handler registered for topic")
			newest[tp] = record
			continue
		}

		msg := recordMessage(record)
		if err := handler(ctx, msg); err != nil {
			if c.routeToDLQ(msg, err) {
				// Parked on the DLQ, safe to commit past it.
				newest[tp] = record
				continue
			}
			c.logger.WithError(err).WithFields(logrus.Fields{
				"topic":     record.Topic,
				"partition": record.Partition,
				"offset":    record.Offset,
			}).Error("Failed to handle message - will retry on restart")
			halted[tp] = true
			continue
		}

		newest[tp] = record
	}

	if len(newest) == 0 {
		return nil
	}

	commitRecords := make([]*kgo.Record, 0, len(newest))
	for _, record := range newest {
		commitRecords = append(commitRecords, record)
	}
	return commitRecords
}
