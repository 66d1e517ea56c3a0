//go:build integration

package outbox_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"masterdata/internal/masterdata/outbox"
	"masterdata/internal/platform/config"
	"masterdata/internal/platform/kafka"
	"masterdata/pkg/testutil/containers"
)

func TestKafkaPublisherDeliversOrderedByEntity(t *testing.T) {
	rp := containers.GetManager().GetRedpanda(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	topic := "masterdata.field-changes." + uuid.NewString()[:8]
	cfg := config.KafkaConfig{Brokers: rp.Brokers, Topic: topic}
	client, err := kafka.NewClient(cfg)
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, kafka.EnsureTopic(ctx, client, topic, 3, 1))
	require.NoError(t, kafka.EnsureTopic(ctx, client, topic, 3, 1), "second call is a no-op")

	entity := uuid.NewString()
	msgs := []outbox.Message{
		{ID: uuid.New(), AggregateType: outbox.AggregateEntity, AggregateID: entity, EventType: outbox.EventFieldChange, Payload: []byte(`{"seq":1}`), CreatedAt: time.Now()},
		{ID: uuid.New(), AggregateType: outbox.AggregateEntity, AggregateID: entity, EventType: outbox.EventFieldChange, Payload: []byte(`{"seq":2}`), CreatedAt: time.Now()},
	}
	require.NoError(t, outbox.NewKafkaPublisher(client).Publish(ctx, msgs))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(rp.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	var got []*kgo.Record
	for len(got) < len(msgs) {
		fetches := consumer.PollFetches(ctx)
		require.NoError(t, ctx.Err())
		fetches.EachRecord(func(r *kgo.Record) { got = append(got, r) })
	}
	require.Len(t, got, 2)
	assert.Equal(t, got[0].Partition, got[1].Partition)
	assert.JSONEq(t, `{"seq":1}`, string(got[0].Value))
	assert.JSONEq(t, `{"seq":2}`, string(got[1].Value))
	assert.Equal(t, entity, string(got[0].Key))
	for _, h := range got[0].Headers {
		if h.Key == outbox.HeaderMessageID {
			assert.Equal(t, msgs[0].ID.String(), string(h.Value))
		}
	}
}
