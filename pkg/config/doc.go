// Package config provides configuration types and loading for callbackd.
//
// Configuration is a single YAML file describing the service identity, the
// adapter selection for each port (KV store, message consumer, router
// client), the two HTTP surfaces, the schema publishing settings, and the
// subscription listeners with their topics.
//
// Load reads, defaults, environment-overrides and validates a file in one
// pass. Every validation failure is a startup error; the process never
// runs on a partially valid configuration.
package config
