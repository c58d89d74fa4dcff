package tasks

import (
	"fmt"

	"github.com/desertthunder/plexist/internal/models"
)

// ProgressUpdate represents a progress event during a sync pass.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	Idle Phase = iota
	FetchingProviderPlaylists
	FetchingTracks
	Reconciling
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case FetchingProviderPlaylists:
		return "fetching_provider_playlists"
	case FetchingTracks:
		return "fetching_tracks"
	case Reconciling:
		return "reconciling"
	default:
		return ""
	}
}

func fetchingPlaylistsUpdate(step, total int, provider string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchingProviderPlaylists,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Fetching playlists from %s...", provider),
	}
}

func fetchingTracksUpdate(step, total int, pl models.Playlist) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchingTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Fetching tracks: %s...", step, total, pl.Name),
	}
}

func reconcilingUpdate(step, total int, pl models.Playlist, tracks int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Reconciling,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Reconciling %s (%d tracks)...", step, total, pl.Name, tracks),
	}
}

func reconciledUpdate(step, total int, report *models.ReconcileReport) ProgressUpdate {
	var msg string
	switch {
	case report.Err != nil:
		msg = fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, report.Playlist.Name, report.Err)
	case report.Skipped:
		msg = fmt.Sprintf("[%d/%d] - %s: nothing matched", step, total, report.Playlist.Name)
	default:
		msg = fmt.Sprintf("[%d/%d] ✓ %s (%d matched, %d missing)", step, total, report.Playlist.Name, len(report.Matched), len(report.Unmatched))
	}
	return ProgressUpdate{
		Phase:   Reconciling,
		Step:    step,
		Total:   total,
		Message: msg,
		Data:    report,
	}
}

func idleUpdate(report *models.PassReport) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Idle,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Pass complete: %d playlists, %d matched, %d missing", report.PlaylistCount(), report.MatchedCount(), report.UnmatchedCount()),
		Data:    report,
	}
}
