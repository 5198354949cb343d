package tasks

import (
	"fmt"

	"github.com/desertthunder/fanx/internal/batch"
)

// ProgressUpdate represents a progress event during a run.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Pipeline stage
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Pipeline stage enumeration
type Phase int

const (
	LoadCustomers Phase = iota
	LoadCache
	FetchCustomers
	FetchTrackArtists
	AggregateFansPhase
	FetchArtistImages
	CompactPhase
	PersistCache
	Publish
	Done
)

// Phases lists the pipeline stages in execution order.
var Phases = []Phase{
	LoadCustomers, LoadCache, FetchCustomers, FetchTrackArtists, AggregateFansPhase,
	FetchArtistImages, CompactPhase, PersistCache, Publish,
}

func (p Phase) String() string {
	switch p {
	case LoadCustomers:
		return "load_customers"
	case LoadCache:
		return "load_cache"
	case FetchCustomers:
		return "fetch_customers"
	case FetchTrackArtists:
		return "fetch_track_artists"
	case AggregateFansPhase:
		return "aggregate_fans"
	case FetchArtistImages:
		return "fetch_artist_images"
	case CompactPhase:
		return "compact"
	case PersistCache:
		return "persist_cache"
	case Publish:
		return "publish"
	case Done:
		return "done"
	default:
		return ""
	}
}

// Title returns a display label for the phase.
func (p Phase) Title() string {
	switch p {
	case LoadCustomers:
		return "Loading customer ids"
	case LoadCache:
		return "Loading cache"
	case FetchCustomers:
		return "Fetching customers"
	case FetchTrackArtists:
		return "Fetching track artists"
	case AggregateFansPhase:
		return "Counting artist fans"
	case FetchArtistImages:
		return "Fetching artist images"
	case CompactPhase:
		return "Compacting"
	case PersistCache:
		return "Writing cache"
	case Publish:
		return "Publishing"
	case Done:
		return "Done"
	default:
		return ""
	}
}

func stageStartedUpdate(p Phase) ProgressUpdate {
	step := 0
	for i, phase := range Phases {
		if phase == p {
			step = i + 1
		}
	}
	return ProgressUpdate{
		Phase:   p,
		Step:    step,
		Total:   len(Phases),
		Message: p.Title() + "...",
	}
}

func batchUpdate(p Phase, prog batch.Progress) ProgressUpdate {
	return ProgressUpdate{
		Phase:   p,
		Step:    prog.Cursor,
		Total:   prog.Total,
		Message: fmt.Sprintf("[%d/%d] %s", prog.Cursor, prog.Total, p.Title()),
		Data:    prog,
	}
}

func loadedCustomersUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   LoadCustomers,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Loaded customers: %d", count),
	}
}

func cachedUpdate(p Phase, cached, needFetch int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   p,
		Step:    cached,
		Total:   cached + needFetch,
		Message: fmt.Sprintf("Loaded from cache: %d, need fetch: %d", cached, needFetch),
	}
}

func publishedUpdate(step, total int, id, sink string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Publish,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s → %s", step, total, id, sink),
	}
}

func doneUpdate(result *RunResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Done,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Finished: %d customers, %d artists, %d with fans", result.Customers, result.Artists, len(result.FilteredArtists)),
		Data:    result,
	}
}
