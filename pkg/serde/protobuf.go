package serde

import (
	"errors"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// wirePayloadOffset is the length of the Confluent schema registry wire
// envelope: MAGIC(1) | REGISTRY_ID(4) | MESSAGE_INDEX(1). Only single-byte
// message indexes are supported; multi-message schemas are not used here.
// Reference: https://docs.confluent.io/platform/current/schema-registry/fundamentals/serdes-develop/index.html#wire-format
const wirePayloadOffset = 6

// ErrProtobufMappingEmpty is returned when a protobuf decoder is built
// without a mapping. The decoder has no descriptor, so without tags it
// could never extract anything.
var ErrProtobufMappingEmpty = errors.New("protobuf mapping cannot be empty")

// ProtobufDecoder extracts mapped fields from raw protobuf wire data
// without a message descriptor.
type ProtobufDecoder struct {
	tags         map[protowire.Number]string // field tag -> output field
	wireEnvelope bool
}

// NewProtobuf creates a protobuf decoder for the given output-to-tag
// mapping. When wireEnvelope is set, payloads are expected to carry the
// 6-byte schema registry prefix.
func NewProtobuf(mapping map[string]int32, wireEnvelope bool) (*ProtobufDecoder, error) {
	if len(mapping) == 0 {
		return nil, ErrProtobufMappingEmpty
	}
	tags := make(map[protowire.Number]string, len(mapping))
	for output, tag := range mapping {
		tags[protowire.Number(tag)] = output
	}
	return &ProtobufDecoder{tags: tags, wireEnvelope: wireEnvelope}, nil
}

// Decode scans the wire stream one field at a time. Fields whose tag is in
// the mapping are decoded by wire type; everything else is skipped with the
// standard skipping rules. Repeated fields resolve to the last value.
func (d *ProtobufDecoder) Decode(data []byte) (ValueMap, error) {
	if d.wireEnvelope {
		if len(data) < wirePayloadOffset {
			return ValueMap{}, nil
		}
		data = data[wirePayloadOffset:]
	}

	result := ValueMap{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		data = data[n:]

		output, mapped := d.tags[num]
		if !mapped {
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			data = data[n:]
			continue
		}

		switch typ {
		case protowire.VarintType:
			// int32, int64, uint32, uint64, bool, enum
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			data = data[n:]
			result[output] = int64(v)
		case protowire.Fixed64Type:
			// fixed64, sfixed64, double
			v, n := protowire.ConsumeFixed64(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			data = data[n:]
			result[output] = math.Float64frombits(v)
		case protowire.Fixed32Type:
			// fixed32, sfixed32, float
			v, n := protowire.ConsumeFixed32(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			data = data[n:]
			result[output] = float64(math.Float32frombits(v))
		case protowire.BytesType:
			// string, bytes, embedded messages, packed repeated fields
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			data = data[n:]
			result[output] = string(v)
		default:
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			data = data[n:]
		}
	}

	return result, nil
}
