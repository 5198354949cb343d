// Package repositories implements SQLite persistence and document sinks.
//
// Key Implementations:
//   - [RunRepository] : Run history with per-target queries, written after every run
//   - [DocumentRepository] : Local document sink with CouchDB-style revisions
//   - [S3Sink] : Object storage document sink (any S3-compatible endpoint)
//
// Sequence numbers provide stable, human-readable ordering (e.g., run #42) independent of UUIDs and timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
