// Package graphql handles the GraphQL surface of callbackd: extracting
// the subscription operation from an incoming query, and rendering the
// federation subgraph SDL from the listener configuration.
//
// Query execution is out of scope. The router executes queries itself;
// this service only needs the operation name and its string arguments.
package graphql
