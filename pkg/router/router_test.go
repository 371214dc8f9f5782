package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callbackd/callbackd/pkg/serde"
)

func TestEnvelopeCheck(t *testing.T) {
	req := NewSubscription("http://router/cb", "sub1", "v1").Check()

	body, err := json.Marshal(req)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "subscription", decoded["kind"])
	assert.Equal(t, "check", decoded["action"])
	assert.Equal(t, "sub1", decoded["id"])
	assert.Equal(t, "v1", decoded["verifier"])
	assert.NotContains(t, decoded, "payload")
}

func TestEnvelopeNext(t *testing.T) {
	data := serde.ValueMap{"id": "X", "status": "A"}
	req := NewSubscription("http://router/cb", "sub1", "v1").
		Next("chargingSessionChanged", "ChargingSession", data)

	body, err := json.Marshal(req)
	require.NoError(t, err)

	var decoded struct {
		Action  string `json:"action"`
		Payload struct {
			Data map[string]map[string]any `json:"data"`
		} `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(body, &decoded))

	assert.Equal(t, "next", decoded.Action)
	entity := decoded.Payload.Data["chargingSessionChanged"]
	assert.Equal(t, "X", entity["id"])
	assert.Equal(t, "A", entity["status"])
	assert.Equal(t, "ChargingSession", entity[TypenameKey])

	// The envelope clones the data; the caller's map stays untouched.
	assert.NotContains(t, data, TypenameKey)
}

func TestEnvelopeComplete(t *testing.T) {
	req := NewSubscription("http://router/cb", "sub1", "v1").
		Complete([]ErrorDetail{{Message: "gone"}})

	body, err := json.Marshal(req)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "complete", decoded["action"])
	assert.Len(t, decoded["errors"], 1)

	// No errors key when none are given.
	empty := NewSubscription("http://router/cb", "sub1", "v1").Complete(nil)
	body, err = json.Marshal(empty)
	require.NoError(t, err)
	decoded = nil
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.NotContains(t, decoded, "errors")
}

func TestHTTPClientSend(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Header().Set("subscription-protocol", "callback/1.0")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewHTTPClient(HTTPConfig{TimeoutMS: 1000})
	resp, err := client.Send(context.Background(),
		NewSubscription(server.URL, "sub1", "v1").Check())
	require.NoError(t, err)

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, ProtocolCallback1, resp.SubscriptionProtocol)
	assert.Equal(t, "check", received["action"])
}

func TestHTTPClientNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"errors":[{"message":"no such subscription"}]}`))
	}))
	defer server.Close()

	client := NewHTTPClient(HTTPConfig{})
	_, err := client.Send(context.Background(),
		NewSubscription(server.URL, "sub1", "v1").Check())
	require.Error(t, err)

	var cbErr *CallbackError
	require.ErrorAs(t, err, &cbErr)
	assert.Equal(t, http.StatusInternalServerError, cbErr.StatusCode)
	require.Len(t, cbErr.Errors, 1)
	assert.Equal(t, "no such subscription", cbErr.Errors[0].Message)
}

func TestHTTPClientUnknownProtocolHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("subscription-protocol", "websocket/1.0")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClient(HTTPConfig{})
	resp, err := client.Send(context.Background(),
		NewSubscription(server.URL, "sub1", "v1").Check())
	require.NoError(t, err)
	assert.Equal(t, ProtocolUnknown, resp.SubscriptionProtocol)
}

func TestMemoryClientRecordsAndFails(t *testing.T) {
	client := NewMemoryClient()

	_, err := client.Send(context.Background(),
		NewSubscription("http://router/cb", "sub1", "v1").Check())
	require.NoError(t, err)

	_, err = client.Send(context.Background(),
		NewSubscription("http://router/error", "sub2", "v2").Check())
	require.Error(t, err)

	client.FailAction(ActionNext)
	_, err = client.Send(context.Background(),
		NewSubscription("http://router/cb", "sub1", "v1").Next("op", "Entity", serde.ValueMap{}))
	require.Error(t, err)

	assert.Equal(t, []string{"check", "check", "next"}, client.SentActions())
}
