// Package ingress exposes the HTTP surfaces of callbackd: the GraphQL
// endpoint the router posts subscription requests to, and the health
// check endpoint.
//
// The GraphQL endpoint only registers subscriptions. Query execution is
// the router's job; plain GraphQL POSTs without the subscription
// extension are rejected.
package ingress
