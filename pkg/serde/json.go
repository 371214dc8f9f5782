package serde

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrStrictMappingEmpty is returned when a strict JSON decoder is built
// without a mapping. A strict decoder with no mapping would discard every
// field, which can only be a configuration mistake.
var ErrStrictMappingEmpty = errors.New("json mapping cannot be empty when strict mode is enabled")

// JSONDecoder extracts values from JSON object payloads.
type JSONDecoder struct {
	mapping map[string]string // output field -> source field
	strict  bool
}

// NewJSON creates a JSON decoder with the given output-to-source mapping.
func NewJSON(mapping map[string]string, strict bool) (*JSONDecoder, error) {
	if strict && len(mapping) == 0 {
		return nil, ErrStrictMappingEmpty
	}
	return &JSONDecoder{mapping: mapping, strict: strict}, nil
}

// Decode parses data as a JSON object and applies the mapping. An empty
// payload decodes to an empty map. A non-object top level is an error.
func (d *JSONDecoder) Decode(data []byte) (ValueMap, error) {
	if len(data) == 0 {
		return ValueMap{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var values ValueMap
	if err := dec.Decode(&values); err != nil {
		return nil, fmt.Errorf("decode json payload: %w", err)
	}
	if values == nil {
		return nil, errors.New("decode json payload: expected an object")
	}

	if d.strict {
		result := make(ValueMap, len(d.mapping))
		for output, source := range d.mapping {
			if value, ok := values[source]; ok {
				result[output] = value
			}
		}
		return result, nil
	}

	for output, source := range d.mapping {
		if value, ok := values[source]; ok {
			values[output] = value
		}
	}
	return values, nil
}
