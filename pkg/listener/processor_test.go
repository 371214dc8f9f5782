package listener

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/callbackd/callbackd/pkg/config"
	"github.com/callbackd/callbackd/pkg/consumer"
	"github.com/callbackd/callbackd/pkg/kv"
	"github.com/callbackd/callbackd/pkg/logging"
	"github.com/callbackd/callbackd/pkg/router"
	"github.com/callbackd/callbackd/pkg/serde"
)

func testListenerCfg(topic config.Topic) config.Listener {
	return config.Listener{
		Operation:  "chargingSessionChanged",
		EntityName: "ChargingSession",
		IDKey:      "id",
		TTLMS:      60_000,
		Topics:     []config.Topic{topic},
	}
}

func newTestProcessor(t *testing.T, topic config.Topic, client router.Client, factory kv.Factory) *MessageProcessor {
	t.Helper()
	processor, err := NewMessageProcessor(context.Background(), client, factory,
		testListenerCfg(topic), topic, logging.Nop())
	require.NoError(t, err)
	processor.ctx = context.Background()
	return processor
}

func insertTestRecord(t *testing.T, factory kv.Factory, id, idValue string) {
	t.Helper()
	store, err := NewSubscriptionStore(context.Background(), factory, logging.Nop())
	require.NoError(t, err)
	require.NoError(t, store.Insert(context.Background(), testRecord(id, idValue), time.Minute))
}

// entityPayload digs the entity object out of a next envelope.
func entityPayload(t *testing.T, req *router.Request) serde.ValueMap {
	t.Helper()
	data, ok := req.Payload()["data"].(map[string]any)
	require.True(t, ok, "next payload has no data")
	entity, ok := data["chargingSessionChanged"].(serde.ValueMap)
	require.True(t, ok, "next payload has no entity object")
	return entity
}

func jsonValueTopic() config.Topic {
	return config.Topic{
		Name:       "t1",
		DataSerde:  config.SerdeJSON,
		DataSource: config.SourceValue,
	}
}

func TestProcessorDispatchesNext(t *testing.T) {
	client := router.NewMemoryClient()
	factory := kv.NewMemoryFactory()
	processor := newTestProcessor(t, jsonValueTopic(), client, factory)
	insertTestRecord(t, factory, "sub1", "X")

	err := processor.handleRecord(context.Background(), consumer.Record{
		Topic: "t1",
		Value: []byte(`{"id":"X","status":"A"}`),
	})
	require.NoError(t, err)

	sent := client.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, router.ActionNext, sent[0].Action())
	assert.Equal(t, "sub1", sent[0].ID())

	entity := entityPayload(t, sent[0])
	assert.Equal(t, "X", entity["id"])
	assert.Equal(t, "A", entity["status"])
	assert.Equal(t, "ChargingSession", entity[router.TypenameKey])
}

func TestProcessorStrictMapping(t *testing.T) {
	topic := jsonValueTopic()
	topic.JSONMapping = map[string]string{"id": "id"}
	topic.StrictMapping = true

	client := router.NewMemoryClient()
	factory := kv.NewMemoryFactory()
	processor := newTestProcessor(t, topic, client, factory)
	insertTestRecord(t, factory, "sub1", "X")

	err := processor.handleRecord(context.Background(), consumer.Record{
		Topic: "t1",
		Value: []byte(`{"id":"X","status":"A"}`),
	})
	require.NoError(t, err)

	sent := client.Sent()
	require.Len(t, sent, 1)
	entity := entityPayload(t, sent[0])
	assert.Equal(t, "X", entity["id"])
	assert.NotContains(t, entity, "status")
}

func TestProcessorProtobufWireEnvelope(t *testing.T) {
	topic := config.Topic{
		Name:            "t1",
		DataSerde:       config.SerdeProtobufWire,
		DataSource:      config.SourceValue,
		ProtobufMapping: map[string]int32{"id": 1},
	}

	client := router.NewMemoryClient()
	factory := kv.NewMemoryFactory()
	processor := newTestProcessor(t, topic, client, factory)
	insertTestRecord(t, factory, "sub1", "X")

	payload := []byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x00}
	payload = protowire.AppendTag(payload, 1, protowire.BytesType)
	payload = protowire.AppendString(payload, "X")

	err := processor.handleRecord(context.Background(), consumer.Record{Topic: "t1", Value: payload})
	require.NoError(t, err)

	sent := client.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "X", entityPayload(t, sent[0])["id"])
}

func TestProcessorFanOut(t *testing.T) {
	client := router.NewMemoryClient()
	factory := kv.NewMemoryFactory()
	processor := newTestProcessor(t, jsonValueTopic(), client, factory)

	insertTestRecord(t, factory, "sub1", "X")
	insertTestRecord(t, factory, "sub2", "X")
	insertTestRecord(t, factory, "sub3", "X")
	insertTestRecord(t, factory, "other", "Y")

	err := processor.handleRecord(context.Background(), consumer.Record{
		Topic: "t1",
		Value: []byte(`{"id":"X"}`),
	})
	require.NoError(t, err)

	sent := client.Sent()
	require.Len(t, sent, 3, "one next per live subscription under the id")

	ids := make(map[string]bool, 3)
	for _, req := range sent {
		assert.Equal(t, router.ActionNext, req.Action())
		ids[req.ID()] = true
	}
	assert.Equal(t, map[string]bool{"sub1": true, "sub2": true, "sub3": true}, ids)
}

func TestProcessorDeletesOnDispatchFailure(t *testing.T) {
	client := router.NewMemoryClient()
	client.FailAction(router.ActionNext)
	factory := kv.NewMemoryFactory()
	processor := newTestProcessor(t, jsonValueTopic(), client, factory)
	insertTestRecord(t, factory, "sub1", "X")

	message := consumer.Record{Topic: "t1", Value: []byte(`{"id":"X"}`)}
	require.NoError(t, processor.handleRecord(context.Background(), message))

	records, err := processor.store.List(context.Background(), "chargingSessionChanged", "X")
	require.NoError(t, err)
	assert.Empty(t, records, "failed dispatch must remove the record")

	// A second matching message triggers zero further callbacks.
	require.NoError(t, processor.handleRecord(context.Background(), message))
	assert.Len(t, client.Sent(), 1)
}

func TestProcessorIndependentDispatches(t *testing.T) {
	client := router.NewMemoryClient()
	factory := kv.NewMemoryFactory()
	processor := newTestProcessor(t, jsonValueTopic(), client, factory)

	insertTestRecord(t, factory, "sub1", "X")

	// This subscription's callback URL fails; the other must still get its
	// next.
	failing := testRecord("sub2", "X")
	failing.CallbackURL = "http://router/error"
	store, err := NewSubscriptionStore(context.Background(), factory, logging.Nop())
	require.NoError(t, err)
	require.NoError(t, store.Insert(context.Background(), failing, time.Minute))

	err = processor.handleRecord(context.Background(), consumer.Record{
		Topic: "t1",
		Value: []byte(`{"id":"X"}`),
	})
	require.NoError(t, err)

	assert.Len(t, client.Sent(), 2)

	records, err := store.List(context.Background(), "chargingSessionChanged", "X")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "sub1", records[0].ID)
}

func TestProcessorTerminalTopic(t *testing.T) {
	topic := jsonValueTopic()
	topic.TerminatesSubscriptions = true

	client := router.NewMemoryClient()
	factory := kv.NewMemoryFactory()
	processor := newTestProcessor(t, topic, client, factory)
	insertTestRecord(t, factory, "sub1", "X")

	message := consumer.Record{Topic: "t1", Value: []byte(`{"id":"X"}`)}
	require.NoError(t, processor.handleRecord(context.Background(), message))

	assert.Equal(t, []string{router.ActionNext, router.ActionComplete}, client.SentActions())

	records, err := processor.store.List(context.Background(), "chargingSessionChanged", "X")
	require.NoError(t, err)
	assert.Empty(t, records)

	// Subsequent matching messages produce no callbacks.
	require.NoError(t, processor.handleRecord(context.Background(), message))
	assert.Len(t, client.Sent(), 2)
}

func TestProcessorDropsBadMessages(t *testing.T) {
	client := router.NewMemoryClient()
	factory := kv.NewMemoryFactory()
	processor := newTestProcessor(t, jsonValueTopic(), client, factory)
	insertTestRecord(t, factory, "sub1", "X")

	ctx := context.Background()
	// Undecodable payload.
	require.NoError(t, processor.handleRecord(ctx, consumer.Record{Topic: "t1", Value: []byte("{broken")}))
	// Identifier missing.
	require.NoError(t, processor.handleRecord(ctx, consumer.Record{Topic: "t1", Value: []byte(`{"status":"A"}`)}))
	// Identifier is not a string.
	require.NoError(t, processor.handleRecord(ctx, consumer.Record{Topic: "t1", Value: []byte(`{"id":42}`)}))

	assert.Empty(t, client.Sent())
}

func TestProcessorKeySource(t *testing.T) {
	topic := jsonValueTopic()
	topic.DataSource = config.SourceKey

	client := router.NewMemoryClient()
	factory := kv.NewMemoryFactory()
	processor := newTestProcessor(t, topic, client, factory)
	insertTestRecord(t, factory, "sub1", "X")

	ctx := context.Background()
	// A record without a key decodes to an empty map and is dropped.
	require.NoError(t, processor.handleRecord(ctx, consumer.Record{Topic: "t1", Value: []byte(`{"id":"X"}`)}))
	assert.Empty(t, client.Sent())

	require.NoError(t, processor.handleRecord(ctx, consumer.Record{
		Topic: "t1",
		Key:   []byte(`{"id":"X"}`),
		Value: []byte("ignored"),
	}))
	assert.Len(t, client.Sent(), 1)
}

func TestProcessorDelayedDispatch(t *testing.T) {
	topic := jsonValueTopic()
	topic.DelayMS = 100

	client := router.NewMemoryClient()
	factory := kv.NewMemoryFactory()
	processor := newTestProcessor(t, topic, client, factory)
	insertTestRecord(t, factory, "sub1", "X")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	processor.ctx = ctx

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = processor.run(ctx)
	}()

	start := time.Now()
	require.NoError(t, processor.Enqueue(ctx, consumer.Record{Topic: "t1", Value: []byte(`{"id":"X"}`)}))

	// The mailbox keeps accepting messages while the dispatch is pending.
	require.NoError(t, processor.Enqueue(ctx, consumer.Record{Topic: "t1", Value: []byte(`{"status":"A"}`)}))
	assert.Empty(t, client.Sent(), "dispatch must not happen before the delay")

	require.Eventually(t, func() bool { return len(client.Sent()) == 1 },
		time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)

	cancel()
	wg.Wait()
}
