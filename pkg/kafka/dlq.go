package kafka

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// DLQPayload is the parked form of a message whose handler kept failing.
// It carries enough provenance to inspect the failure and replay the record
// against its origin topic.
type DLQPayload struct {
	Topic       string            `json:"topic"`
	Partition   int32             `json:"partition"`
	Offset      int64             `json:"offset"`
	Timestamp   time.Time         `json:"timestamp"`
	TenantID    string            `json:"tenant_id,omitempty"`
	KeyBase64   string            `json:"key_base64,omitempty"`
	ValueBase64 string            `json:"value_base64"`
	Headers     map[string]string `json:"headers,omitempty"`
	Error       string            `json:"error"`
	Consumer    string            `json:"consumer"`
}

// EncodeDLQMessage serializes a failed message for the dead-letter topic.
// The tenant id is lifted out of the message value (or headers) so DLQ
// tooling can filter without decoding the base64 body.
func EncodeDLQMessage(msg Message, err error, consumer string) ([]byte, error) {
	payload := DLQPayload{
		Topic:       msg.Topic,
		Partition:   msg.Partition,
		Offset:      msg.Offset,
		Timestamp:   msg.Timestamp,
		TenantID:    extractTenantID(msg),
		ValueBase64: base64.StdEncoding.EncodeToString(msg.Value),
		Consumer:    consumer,
	}

	// Copy the headers rather than aliasing the consumer's map; the tenant
	// promotion below must not leak back into the live message.
	if len(msg.Headers) > 0 || payload.TenantID != "" {
		payload.Headers = make(map[string]string, len(msg.Headers)+1)
		for k, v := range msg.Headers {
			payload.Headers[k] = v
		}
		if payload.TenantID != "" {
			if _, ok := payload.Headers["tenant_id"]; !ok {
				payload.Headers["tenant_id"] = payload.TenantID
			}
		}
	}

	if len(msg.Key) > 0 {
		payload.KeyBase64 = base64.StdEncoding.EncodeToString(msg.Key)
	}
	if err != nil {
		payload.Error = err.Error()
	}

	raw, marshalErr := json.Marshal(payload)
	if marshalErr != nil {
		return nil, fmt.Errorf("marshal dlq payload: %w", marshalErr)
	}
	return raw, nil
}

func extractTenantID(msg Message) string {
	var envelope struct {
		TenantID string `json:"tenant_id"`
	}
	if json.Unmarshal(msg.Value, &envelope) == nil && envelope.TenantID != "" {
		return envelope.TenantID
	}
	return msg.Headers["tenant_id"]
}
