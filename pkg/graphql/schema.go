package graphql

import (
	"fmt"
	"strings"

	"github.com/callbackd/callbackd/pkg/config"
)

// BuildSchema renders the federation subgraph SDL for the configured
// listeners: one keyed entity type per listener and one Subscription field
// per operation.
func BuildSchema(cfg *config.Config) string {
	entities := make([]string, 0, len(cfg.Listeners))
	for i := range cfg.Listeners {
		entities = append(entities, entity(&cfg.Listeners[i]))
	}

	parts := []string{
		headerLink(cfg.Schema.LinkVersion),
		headerFederation(cfg.Schema.FederationVersion),
		strings.Join(entities, "\n\n"),
		subscriptions(cfg.Listeners),
	}
	return strings.Join(parts, "\n\n\n")
}

func entity(listener *config.Listener) string {
	return fmt.Sprintf("type %s @key(fields: %q) {\n  %s: ID!\n}",
		listener.EntityName, listener.IDKey, listener.IDKey)
}

func description(listener *config.Listener) string {
	if listener.Description != "" {
		return listener.Description
	}
	return fmt.Sprintf("Subscription for changes on the %s entity.", listener.EntityName)
}

func subscriptions(listeners []config.Listener) string {
	operations := make([]string, 0, len(listeners))
	for i := range listeners {
		listener := &listeners[i]
		operations = append(operations, fmt.Sprintf("\"\"\"\n  %s\n\"\"\"\n  %s(%s: ID!): %s\n",
			description(listener), listener.Operation, listener.IDKey, listener.EntityName))
	}
	return fmt.Sprintf("type Subscription {\n%s}", strings.Join(operations, "\n"))
}

func headerLink(linkVersion string) string {
	return fmt.Sprintf("schema\n  @link(url: \"https://specs.apollo.dev/link/v%s\")\n{\n  subscription: Subscription\n}",
		linkVersion)
}

func headerFederation(federationVersion string) string {
	return fmt.Sprintf("extend schema\n  @link(url: \"https://specs.apollo.dev/federation/v%s\", import: [\"@key\"])",
		federationVersion)
}
