package router

import (
	"encoding/json"

	"github.com/callbackd/callbackd/pkg/serde"
)

// TypenameKey is the GraphQL introspection field embedded in every next
// payload.
const TypenameKey = "__typename"

// Envelope actions.
const (
	ActionCheck    = "check"
	ActionNext     = "next"
	ActionComplete = "complete"
)

// ErrorDetail is a single error entry in a callback body or response.
type ErrorDetail struct {
	Message string `json:"message,omitempty"`
}

// Request is a callback envelope addressed to a subscription's callback
// URL. Build one with NewSubscription and one of Check, Next or Complete.
type Request struct {
	CallbackURL string

	values map[string]any
}

// NewSubscription starts an envelope for the given subscription.
func NewSubscription(callbackURL, id, verifier string) *Request {
	return &Request{
		CallbackURL: callbackURL,
		values: map[string]any{
			"kind":     "subscription",
			"id":       id,
			"verifier": verifier,
		},
	}
}

// Check marks the envelope as a check handshake.
func (r *Request) Check() *Request {
	r.values["action"] = ActionCheck
	return r
}

// Next marks the envelope as a next delivery. The payload embeds the
// decoded data under the operation field, with the entity typename added.
func (r *Request) Next(operation, entityName string, data serde.ValueMap) *Request {
	r.values["action"] = ActionNext
	data = data.Clone()
	data[TypenameKey] = entityName
	r.values["payload"] = map[string]any{
		"data": map[string]any{
			operation: data,
		},
	}
	return r
}

// Complete marks the envelope as a completion, optionally carrying errors.
func (r *Request) Complete(errs []ErrorDetail) *Request {
	r.values["action"] = ActionComplete
	if len(errs) > 0 {
		r.values["errors"] = errs
	}
	return r
}

// Action returns the envelope action, or "" if none was set.
func (r *Request) Action() string {
	action, _ := r.values["action"].(string)
	return action
}

// ID returns the subscription id the envelope addresses.
func (r *Request) ID() string {
	id, _ := r.values["id"].(string)
	return id
}

// Payload returns the next payload, or nil for other actions.
func (r *Request) Payload() map[string]any {
	payload, _ := r.values["payload"].(map[string]any)
	return payload
}

// MarshalJSON serialises the envelope body.
func (r *Request) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.values)
}
