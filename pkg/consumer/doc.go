// Package consumer defines the message bus consumer port and its Kafka
// backend.
//
// A consumer subscribes to a set of topics and delivers raw
// (key?, value, topic) records one at a time. Consumers are not shared
// across operations: every operation opens its own consumer with a
// distinct group id, preserving independent offsets and retries.
package consumer
