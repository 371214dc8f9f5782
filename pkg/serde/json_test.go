package serde

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONDecodeWithoutMapping(t *testing.T) {
	dec, err := NewJSON(nil, false)
	require.NoError(t, err)

	result, err := dec.Decode([]byte(`{"id":"abc","createdAt":123}`))
	require.NoError(t, err)

	assert.Equal(t, "abc", result["id"])
	assert.Equal(t, json.Number("123"), result["createdAt"])
}

func TestJSONStrictRequiresMapping(t *testing.T) {
	_, err := NewJSON(nil, true)
	assert.ErrorIs(t, err, ErrStrictMappingEmpty)

	_, err = NewJSON(map[string]string{}, true)
	assert.ErrorIs(t, err, ErrStrictMappingEmpty)
}

func TestJSONDecodeWithFullMapping(t *testing.T) {
	dec, err := NewJSON(map[string]string{
		"id":        "account_id",
		"createdAt": "created_at",
	}, false)
	require.NoError(t, err)

	result, err := dec.Decode([]byte(`{"account_id":"abc","created_at":123}`))
	require.NoError(t, err)

	assert.Equal(t, "abc", result["id"])
	assert.Equal(t, json.Number("123"), result["createdAt"])
	// Non-strict keeps the source fields in place.
	assert.Equal(t, "abc", result["account_id"])
}

func TestJSONDecodeWithPartialMapping(t *testing.T) {
	dec, err := NewJSON(map[string]string{"createdAt": "created_at"}, false)
	require.NoError(t, err)

	result, err := dec.Decode([]byte(`{"account_id":"abc","created_at":123}`))
	require.NoError(t, err)

	assert.Equal(t, "abc", result["account_id"])
	assert.Equal(t, json.Number("123"), result["createdAt"])
}

func TestJSONDecodeStrict(t *testing.T) {
	dec, err := NewJSON(map[string]string{"createdAt": "created_at"}, true)
	require.NoError(t, err)

	result, err := dec.Decode([]byte(`{"account_id":"abc","created_at":123}`))
	require.NoError(t, err)

	assert.Len(t, result, 1)
	assert.NotContains(t, result, "account_id")
	assert.Equal(t, json.Number("123"), result["createdAt"])
}

func TestJSONDecodeStrictMissingSource(t *testing.T) {
	dec, err := NewJSON(map[string]string{"id": "account_id"}, true)
	require.NoError(t, err)

	result, err := dec.Decode([]byte(`{"other":"x"}`))
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestJSONDecodeEmptyPayload(t *testing.T) {
	dec, err := NewJSON(nil, false)
	require.NoError(t, err)

	result, err := dec.Decode(nil)
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestJSONDecodeNonObject(t *testing.T) {
	dec, err := NewJSON(nil, false)
	require.NoError(t, err)

	_, err = dec.Decode([]byte(`[1,2,3]`))
	assert.Error(t, err)

	_, err = dec.Decode([]byte(`null`))
	assert.Error(t, err)
}

func TestValueMapString(t *testing.T) {
	m := ValueMap{"id": "abc", "count": json.Number("1"), "flag": true}

	v, ok := m.String("id")
	assert.True(t, ok)
	assert.Equal(t, "abc", v)

	_, ok = m.String("count")
	assert.False(t, ok)
	_, ok = m.String("flag")
	assert.False(t, ok)
	_, ok = m.String("missing")
	assert.False(t, ok)
}
