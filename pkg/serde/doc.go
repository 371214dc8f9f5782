// Package serde converts raw bus payloads into field-name to JSON-value
// maps under a configurable mapping.
//
// Three decoder variants exist:
//
//   - JSON: parses the payload as a JSON object and applies an
//     output-to-source field mapping, either strict (result contains only
//     mapped fields) or non-strict (mapped fields are added alongside the
//     originals).
//   - Protobuf: scans the raw protobuf wire format and extracts the fields
//     whose tags appear in the mapping. No message descriptor is needed.
//   - Protobuf with wire envelope: same, but the 6-byte Confluent schema
//     registry prefix is discarded first.
package serde
