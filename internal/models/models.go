// package models defines the data model for the playlist mirroring service
package models

import (
	"time"
)

// Track is a single entry of a provider playlist.
//
// Year and Genre are optional and may be empty.
type Track struct {
	Title  string
	Artist string
	Album  string
	URL    string
	Year   string
	Genre  string
}

// Playlist is a provider playlist. ID is stable across sync runs and scoped to the provider.
type Playlist struct {
	ID          string
	Provider    string
	Name        string
	Description string
	PosterURL   string
}

// CatalogTrack is a candidate track from the media server catalog.
//
// Key is a lookup key owned by the media server and is only valid for the pass that produced it.
type CatalogTrack struct {
	Key    string
	Title  string
	Artist string
	Album  string
}

// SearchQuery holds the normalized metadata sent to a catalog search.
type SearchQuery struct {
	Title  string
	Artist string
}

// MatchResult is the outcome of resolving a provider track to the catalog.
type MatchResult struct {
	Track      Track
	Local      *CatalogTrack // nil when no candidate qualified
	Confidence float64
}

// Matched reports whether a local track was found.
func (m MatchResult) Matched() bool {
	return m.Local != nil
}

// TargetPlaylist is a playlist on the media server.
type TargetPlaylist struct {
	ID      string
	Title   string
	Summary string
	Items   []string // catalog keys in playlist order
}

// SyncOptions is the per-pass snapshot of behavior toggles.
type SyncOptions struct {
	AppendInsteadOfSync    bool
	AddPlaylistPoster      bool
	AddPlaylistDescription bool
	WriteMissingAsCSV      bool
}

// Mode returns "append" or "sync".
func (o SyncOptions) Mode() string {
	if o.AppendInsteadOfSync {
		return "append"
	}
	return "sync"
}

// ReconcileReport summarizes the reconciliation of one playlist.
type ReconcileReport struct {
	Playlist  Playlist
	TargetID  string
	Created   bool
	Updated   bool
	Skipped   bool // nothing matched and no target existed
	Matched   []MatchResult
	Unmatched []Track
	Added     int
	Removed   int
	Err       error
}

// ProviderReport groups the playlist reports of one provider.
type ProviderReport struct {
	Name      string
	Playlists []ReconcileReport
	Err       error
}

// PassReport aggregates one full sync pass.
type PassReport struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Mode       string
	Providers  []ProviderReport
}

// MatchedCount returns the number of matched track occurrences across the pass.
func (p *PassReport) MatchedCount() int {
	n := 0
	p.each(func(r ReconcileReport) { n += len(r.Matched) })
	return n
}

// UnmatchedCount returns the number of unmatched track occurrences across the pass.
func (p *PassReport) UnmatchedCount() int {
	n := 0
	p.each(func(r ReconcileReport) { n += len(r.Unmatched) })
	return n
}

// CreatedCount returns the number of target playlists created.
func (p *PassReport) CreatedCount() int {
	n := 0
	p.each(func(r ReconcileReport) {
		if r.Created {
			n++
		}
	})
	return n
}

// UpdatedCount returns the number of existing target playlists that were changed.
func (p *PassReport) UpdatedCount() int {
	n := 0
	p.each(func(r ReconcileReport) {
		if r.Updated {
			n++
		}
	})
	return n
}

// FailedCount returns failed playlists plus skipped providers.
func (p *PassReport) FailedCount() int {
	n := 0
	for _, pr := range p.Providers {
		if pr.Err != nil {
			n++
		}
	}
	p.each(func(r ReconcileReport) {
		if r.Err != nil {
			n++
		}
	})
	return n
}

// PlaylistCount returns the number of playlists processed.
func (p *PassReport) PlaylistCount() int {
	n := 0
	p.each(func(ReconcileReport) { n++ })
	return n
}

func (p *PassReport) each(fn func(ReconcileReport)) {
	for _, pr := range p.Providers {
		for _, r := range pr.Playlists {
			fn(r)
		}
	}
}

// Status returns a one-word outcome: failed, skipped, created, updated or unchanged.
func (r ReconcileReport) Status() string {
	switch {
	case r.Err != nil:
		return "failed"
	case r.Skipped:
		return "skipped"
	case r.Created:
		return "created"
	case r.Updated:
		return "updated"
	default:
		return "unchanged"
	}
}
