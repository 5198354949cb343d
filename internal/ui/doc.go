// Package ui implements a terminal progress view for enrichment runs using bubbletea's Elm architecture.
//
// The TUI has two views:
//  1. [RunView] : Spinner, per-phase progress bar and the latest progress messages
//  2. [ResultView] : Run totals and a browsable list of stage timings
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the EnrichEngine, providing non-blocking status reporting during runs.
//
// Keyboard navigation uses vim-style bindings (j/k, ?, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
