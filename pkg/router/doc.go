// Package router implements the client side of the GraphQL callback
// subscription protocol.
//
// Every message to the router is a POST of a callback envelope to the
// subscription's callback URL: a JSON body with kind=subscription, an
// action (check, next or complete), the subscription id and verifier, and
// an action-specific payload. The router answers with a
// subscription-protocol header; "callback/1.0" is the recognised value.
package router
