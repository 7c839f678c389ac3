// Package services defines shared utilities consumed by the capture
// pipeline and the connector API.
//
// Key responsibilities:
//   - Context helpers that stamp request, session, and item identifiers
//     for logging and tracing.
//   - Structured error markers plus the Wrap helper that translate
//     failures into consistent HTTP statuses at the API boundary.
//
// Use these helpers when wiring new capture logic so operational
// behaviour (error handling, observability) stays uniform across the
// daemon.
package services
