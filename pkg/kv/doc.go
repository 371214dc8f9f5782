// Package kv defines the key-value store port used for subscription
// persistence, along with its backends.
//
// The store models per-key maps with a TTL on the whole key. Two backends
// exist: an in-process map scoped to the process lifetime (TTL ignored) and
// a Redis hash store with PEXPIRE-based TTL refresh.
//
// Factories are cheap to share: every logical user calls Open to obtain its
// own store handle over the shared backend connection.
package kv
