package models

import "time"

// SyncRun is the stored summary of a finished pass.
type SyncRun struct {
	ID         string
	Mode       string
	StartedAt  time.Time
	FinishedAt time.Time
	Playlists  int
	Matched    int
	Unmatched  int
	Created    int
	Updated    int
	Failed     int
}

// Duration returns how long the pass took.
func (r SyncRun) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// SyncPlaylist is the stored outcome of one playlist within a pass.
type SyncPlaylist struct {
	RunID      string
	Provider   string
	PlaylistID string
	Name       string
	TargetID   string
	Matched    int
	Unmatched  int
	Added      int
	Removed    int
	Status     string
	Error      string
}

// MissingTrack is a stored unmatched track.
type MissingTrack struct {
	RunID      string
	Provider   string
	PlaylistID string
	Track      Track
}
