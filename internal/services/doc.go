// Package services implements the remote collaborators of the enrichment pipeline.
//
// # Interfaces
//
//   - [ProfileSource] : customer id lists and customer profiles
//   - [CatalogSource] : bunched track and artist lookups (at most [MaxCatalogIDs] ids)
//   - [DocumentSink] : revision lookup and document writes
//
// # Implementations
//
// [ProfileService] talks to the customer id endpoint and the profile API through
// [APIService], a raw JSON-over-HTTP client with fixed headers.
//
// [SpotifyService] uses the OAuth2 client credentials flow. The token source from
// [clientcredentials.Config] fetches and refreshes tokens; requests pass a
// [rate.Limiter] before going out.
//
// [CouchService] publishes documents with CouchDB semantics (_all_docs revision
// lookup, POST to the database). SQLite and S3 sinks live in the repositories package.
//
// # Error Handling
//
// Errors are classified for the batch driver:
//   - [shared.ErrNotFound] : well-formed answer without data, never retried
//   - [batch.Permanent] : malformed payloads and rejected requests, never retried
//   - [shared.ErrAPIRequest], [shared.ErrServiceUnavailable] : transport errors, 5xx, 408 and 429, retried
package services
