package outbox

import (
	"context"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Record headers set on every published change.
const (
	HeaderMessageID     = "message_id"
	HeaderEventType     = "event_type"
	HeaderAggregateType = "aggregate_type"
)

// KafkaPublisher produces outbox messages to the client's default topic,
// keyed by aggregate id so changes of one entity stay ordered.
type KafkaPublisher struct {
	client *kgo.Client
}

func NewKafkaPublisher(client *kgo.Client) *KafkaPublisher {
	return &KafkaPublisher{client: client}
}

// Publish blocks until every record is acknowledged or one fails.
func (p *KafkaPublisher) Publish(ctx context.Context, msgs []Message) error {
	if len(msgs) == 0 {
		return nil
	}
	records := make([]*kgo.Record, 0, len(msgs))
	for _, m := range msgs {
		records = append(records, toRecord(m))
	}
	if err := p.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce %d outbox messages: %w", len(records), err)
	}
	return nil
}

func toRecord(m Message) *kgo.Record {
	return &kgo.Record{
		Key:       []byte(m.AggregateID),
		Value:     m.Payload,
		Timestamp: m.CreatedAt,
		Headers: []kgo.RecordHeader{
			{Key: HeaderMessageID, Value: []byte(m.ID.String())},
			{Key: HeaderEventType, Value: []byte(m.EventType)},
			{Key: HeaderAggregateType, Value: []byte(m.AggregateType)},
		},
	}
}
