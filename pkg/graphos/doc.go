// Package graphos publishes the exported subgraph schema to Apollo
// GraphOS.
//
// Publishing runs the publishSubgraph mutation against the platform API,
// authenticated with a graph API key. It is a one-shot deploy-time
// operation driven by the publish-schema command, not part of the serving
// path.
package graphos
