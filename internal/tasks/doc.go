// Package tasks runs the audience enrichment pipeline with real-time progress reporting.
//
// # Stages
//
// [EnrichEngine.Run] executes a fixed, ordered list of stages against one [RunContext]:
//
//  1. Load customer ids (id source, ids file or explicit list)
//  2. Open the track and artist caches
//  3. Fetch customer profiles
//     - Tallies gender and the music application histogram
//     - Deduplicates likes and Spotify tracks
//  4. Resolve track artists (cache first, then bunched catalog lookups)
//  5. Count artist fans ([AggregateFans])
//  6. Attach artist images (cache first, then bunched catalog lookups)
//  7. Compact likes and artists ([Compact])
//  8. Write newly fetched tracks and artists to the caches
//  9. Publish the compacted and full documents
//
// Remote fetches go through the batch driver, so every id ends up succeeded,
// not found or failed. Only an empty audience and a failed publish abort a run.
//
// # Progress Reporting
//
// # All stages use non-blocking channels for progress updates
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
//
// # Run History
//
// The optional [RunRecorder] interface persists a summary of every run (repositories.RunRepository).
// Recording errors are logged and never fail the run.
package tasks
