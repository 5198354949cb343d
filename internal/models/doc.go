// Package models defines the domain entities of the fanx audience enrichment pipeline.
//
// The package contains three categories of types:
//
// 1. Aggregation records: built in memory during a run
//   - [Like] : A deduplicated social like with its occurrence count
//   - [Track] : A Spotify track with its distinct listeners
//   - [Artist] : A catalog artist with the tracks it appears on
//   - [FilteredArtist] : An artist with at least one fan, as published
//
// 2. Cache artifacts: persisted by the sharded cache
//   - [CachedTrack] : Track id with its artists
//   - [CachedArtist] : Artist with its images
//
// 3. Outputs
//   - [Document] : The published audience document (full or compacted)
//   - [Run] : A run summary kept in the local database
//
// Nested id sets on [Track] and [Artist] use [index.Collection] so membership checks stay O(1).
package models
