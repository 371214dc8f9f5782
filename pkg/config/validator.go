package config

import (
	"errors"
	"fmt"
)

// ValidationError describes a single invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Validate checks the whole document. All failures are reported, joined
// into one error.
func (c *Config) Validate() error {
	var errs []error

	if c.ServiceName == "" {
		errs = append(errs, invalid("service_name", "is required"))
	}

	switch c.KVStore.Adapter {
	case KVAdapterMemory:
	case KVAdapterRedis:
		if c.KVStore.Redis.Host == "" {
			errs = append(errs, invalid("kv_store.redis.host", "is required"))
		}
		if c.KVStore.Redis.Port == 0 {
			errs = append(errs, invalid("kv_store.redis.port", "is required"))
		}
	default:
		errs = append(errs, invalid("kv_store.adapter", "unknown adapter %q", c.KVStore.Adapter))
	}

	switch c.MessageConsumer.Adapter {
	case ConsumerAdapterKafka:
		if len(c.MessageConsumer.Kafka.Brokers) == 0 {
			errs = append(errs, invalid("message_consumer.kafka.brokers", "at least one broker is required"))
		}
	default:
		errs = append(errs, invalid("message_consumer.adapter", "unknown adapter %q", c.MessageConsumer.Adapter))
	}

	switch c.RouterClient.Adapter {
	case RouterAdapterHTTP, RouterAdapterMemory:
	default:
		errs = append(errs, invalid("router_client.adapter", "unknown adapter %q", c.RouterClient.Adapter))
	}

	if c.RouterEndpoint.Port == 0 {
		errs = append(errs, invalid("router_endpoint.port", "is required"))
	}

	if len(c.Listeners) == 0 {
		errs = append(errs, invalid("listeners", "at least one listener is required"))
	}

	operations := make(map[string]bool, len(c.Listeners))
	for i := range c.Listeners {
		listener := &c.Listeners[i]
		field := fmt.Sprintf("listeners[%d]", i)

		if listener.Operation == "" {
			errs = append(errs, invalid(field+".operation", "is required"))
		} else if operations[listener.Operation] {
			errs = append(errs, invalid(field+".operation", "duplicate operation %q", listener.Operation))
		}
		operations[listener.Operation] = true

		if listener.EntityName == "" {
			errs = append(errs, invalid(field+".entity_name", "is required"))
		}
		if listener.IDKey == "" {
			errs = append(errs, invalid(field+".id_key", "is required"))
		}
		if listener.TTLMS <= 0 {
			errs = append(errs, invalid(field+".ttl_ms", "must be positive"))
		}
		if len(listener.Topics) == 0 {
			errs = append(errs, invalid(field+".topics", "at least one topic is required"))
		}

		for j := range listener.Topics {
			errs = append(errs, validateTopic(&listener.Topics[j], fmt.Sprintf("%s.topics[%d]", field, j))...)
		}
	}

	return errors.Join(errs...)
}

func validateTopic(topic *Topic, field string) []error {
	var errs []error

	if topic.Name == "" {
		errs = append(errs, invalid(field+".name", "is required"))
	}
	if topic.DelayMS < 0 {
		errs = append(errs, invalid(field+".delay_ms", "must not be negative"))
	}

	switch topic.DataSource {
	case SourceKey, SourceValue:
	default:
		errs = append(errs, invalid(field+".data_source", "unknown source %q", topic.DataSource))
	}

	switch topic.DataSerde {
	case SerdeJSON:
		if topic.StrictMapping && len(topic.JSONMapping) == 0 {
			errs = append(errs, invalid(field+".json_mapping", "cannot be empty when strict_mapping is enabled"))
		}
	case SerdeProtobuf, SerdeProtobufWire:
		if len(topic.ProtobufMapping) == 0 {
			errs = append(errs, invalid(field+".protobuf_mapping", "is required for protobuf topics"))
		}
		for output, tag := range topic.ProtobufMapping {
			if tag <= 0 {
				errs = append(errs, invalid(field+".protobuf_mapping", "tag for %q must be positive", output))
			}
		}
	default:
		errs = append(errs, invalid(field+".data_serde", "unknown serde %q", topic.DataSerde))
	}

	return errs
}
