package tasks

import "fmt"

// ProgressUpdate represents a progress event during a sync run.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
}

// Sync run phase enumeration
type Phase int

const (
	Idle Phase = iota
	Fetching
	Reconciling
	FavoritesReconciling
	Done
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Fetching:
		return "fetching"
	case Reconciling:
		return "reconciling"
	case FavoritesReconciling:
		return "favorites"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return ""
	}
}

func fetchingUpdate(platform string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Fetching,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetching library snapshot from %s...", platform),
	}
}

func reconcilingUpdate(step, total int, title string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Reconciling,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Syncing: %s...", step, total, title),
	}
}

func playlistFailedUpdate(step, total int, title string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Reconciling,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, title, err),
	}
}

func favoritesUpdate(title string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FavoritesReconciling,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Syncing favorites (%s)...", title),
	}
}

func doneUpdate(playlists, tracks int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Done,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Sync complete: %d playlists, %d tracks", playlists, tracks),
	}
}

func failedUpdate(err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Failed,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Sync failed: %v", err),
	}
}
