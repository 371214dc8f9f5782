package config

import (
	"time"

	"github.com/callbackd/callbackd/pkg/consumer"
	"github.com/callbackd/callbackd/pkg/graphos"
	"github.com/callbackd/callbackd/pkg/kv"
	"github.com/callbackd/callbackd/pkg/router"
)

// Adapter names for the KV store port.
const (
	KVAdapterMemory = "memory"
	KVAdapterRedis  = "redis"
)

// Adapter names for the message consumer port.
const (
	ConsumerAdapterKafka = "kafka"
)

// Adapter names for the router client port.
const (
	RouterAdapterHTTP   = "http"
	RouterAdapterMemory = "memory"
)

// Topic payload encodings.
const (
	SerdeJSON         = "json"
	SerdeProtobuf     = "protobuf"
	SerdeProtobufWire = "protobuf_wire"
)

// Topic data sources: which half of a bus record is decoded.
const (
	SourceKey   = "key"
	SourceValue = "value"
)

// Config is the root configuration document.
type Config struct {
	// ServiceName identifies this service towards the bus and the graph
	// registry.
	ServiceName string `json:"serviceName" yaml:"service_name"`

	Logging         LoggingConfig         `json:"logging,omitempty" yaml:"logging,omitempty"`
	KVStore         KVStoreConfig         `json:"kvStore" yaml:"kv_store"`
	MessageConsumer MessageConsumerConfig `json:"messageConsumer" yaml:"message_consumer"`
	RouterClient    RouterClientConfig    `json:"routerClient" yaml:"router_client"`
	RouterEndpoint  RouterEndpointConfig  `json:"routerEndpoint" yaml:"router_endpoint"`
	HealthEndpoint  HealthEndpointConfig  `json:"healthEndpoint,omitempty" yaml:"health_endpoint,omitempty"`
	Schema          SchemaConfig          `json:"schema,omitempty" yaml:"schema,omitempty"`
	GraphOS         GraphOSConfig         `json:"graphos,omitempty" yaml:"graphos,omitempty"`

	// Listeners configures one subscription operation each.
	Listeners []Listener `json:"listeners" yaml:"listeners"`
}

// LoggingConfig selects log level and output format.
type LoggingConfig struct {
	Level  string `json:"level,omitempty" yaml:"level,omitempty"`
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// KVStoreConfig selects and configures the KV store backend.
type KVStoreConfig struct {
	Adapter string         `json:"adapter" yaml:"adapter"`
	Redis   kv.RedisConfig `json:"redis,omitempty" yaml:"redis,omitempty"`
}

// MessageConsumerConfig selects and configures the bus consumer backend.
type MessageConsumerConfig struct {
	Adapter string               `json:"adapter" yaml:"adapter"`
	Kafka   consumer.KafkaConfig `json:"kafka,omitempty" yaml:"kafka,omitempty"`
}

// RouterClientConfig selects and configures the router client backend.
type RouterClientConfig struct {
	Adapter string            `json:"adapter" yaml:"adapter"`
	HTTP    router.HTTPConfig `json:"http,omitempty" yaml:"http,omitempty"`
}

// RouterEndpointConfig configures the GraphQL ingress the router posts
// subscription requests to.
type RouterEndpointConfig struct {
	Hostname     string                 `json:"hostname" yaml:"hostname"`
	Port         int                    `json:"port" yaml:"port"`
	Path         string                 `json:"path,omitempty" yaml:"path,omitempty"`
	Subscription SubscriptionURLRewrite `json:"subscription,omitempty" yaml:"subscription,omitempty"`
}

// SubscriptionURLRewrite rewrites advertised callback URLs. When
// InjectPeer is present as a substring of a callback URL, it is replaced
// with the requesting peer's IP. This supports deployments where the
// router advertises a service-mesh hostname this service cannot resolve.
type SubscriptionURLRewrite struct {
	InjectPeer string `json:"injectPeer,omitempty" yaml:"inject_peer,omitempty"`
}

// HealthEndpointConfig configures the health check HTTP surface.
type HealthEndpointConfig struct {
	Hostname string `json:"hostname,omitempty" yaml:"hostname,omitempty"`
	Port     int    `json:"port,omitempty" yaml:"port,omitempty"`
	Path     string `json:"path,omitempty" yaml:"path,omitempty"`
}

// SchemaConfig pins the spec versions referenced by the exported subgraph
// SDL.
type SchemaConfig struct {
	LinkVersion       string `json:"linkVersion,omitempty" yaml:"link_version,omitempty"`
	FederationVersion string `json:"federationVersion,omitempty" yaml:"federation_version,omitempty"`
}

// GraphOSConfig configures the schema publisher.
type GraphOSConfig struct {
	Apollo graphos.Config `json:"apollo,omitempty" yaml:"apollo,omitempty"`
}

// Listener configures one GraphQL subscription operation.
type Listener struct {
	// Operation is the GraphQL subscription field name.
	Operation string `json:"operation" yaml:"operation"`
	// EntityName is the __typename returned in next payloads.
	EntityName string `json:"entityName" yaml:"entity_name"`
	// Description overrides the auto-generated operation description in the
	// exported schema.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// IDKey is the argument name whose value identifies the entity.
	IDKey string `json:"idKey" yaml:"id_key"`
	// TTLMS bounds the lifetime of a persisted subscription.
	TTLMS int64 `json:"ttlMs" yaml:"ttl_ms"`
	// PublishInitialUpdate emits a first next right after a successful
	// handshake.
	PublishInitialUpdate bool `json:"publishInitialUpdate,omitempty" yaml:"publish_initial_update,omitempty"`
	// Topics are consumed for this operation, in order.
	Topics []Topic `json:"topics" yaml:"topics"`
}

// TTL returns the subscription TTL as a duration.
func (l *Listener) TTL() time.Duration {
	return time.Duration(l.TTLMS) * time.Millisecond
}

// Topic configures one consumed topic of a listener.
type Topic struct {
	// Name of the topic on the bus.
	Name string `json:"name" yaml:"name"`
	// DataSerde selects the payload encoding: json, protobuf or
	// protobuf_wire.
	DataSerde string `json:"dataSerde,omitempty" yaml:"data_serde,omitempty"`
	// DataSource selects which half of the bus record is decoded: key or
	// value.
	DataSource string `json:"dataSource,omitempty" yaml:"data_source,omitempty"`
	// JSONMapping maps output field to source field. JSON only.
	JSONMapping map[string]string `json:"jsonMapping,omitempty" yaml:"json_mapping,omitempty"`
	// StrictMapping restricts the decoded result to mapped fields. JSON
	// only.
	StrictMapping bool `json:"strictMapping,omitempty" yaml:"strict_mapping,omitempty"`
	// ProtobufMapping maps output field to numeric field tag. Required for
	// the protobuf variants.
	ProtobufMapping map[string]int32 `json:"protobufMapping,omitempty" yaml:"protobuf_mapping,omitempty"`
	// DelayMS delays dispatches for messages on this topic.
	DelayMS int64 `json:"delayMs,omitempty" yaml:"delay_ms,omitempty"`
	// TerminatesSubscriptions completes and removes every matching
	// subscription after one final next.
	TerminatesSubscriptions bool `json:"terminatesSubscriptions,omitempty" yaml:"terminates_subscriptions,omitempty"`
}

// Delay returns the dispatch delay as a duration.
func (t *Topic) Delay() time.Duration {
	return time.Duration(t.DelayMS) * time.Millisecond
}
