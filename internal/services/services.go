// package services defines the capability interfaces consumed by the sync engine and implements them over HTTP APIs
//
// Spotify, Deezer (providers), Plex (catalog and playlist store)
package services

import (
	"context"

	"github.com/desertthunder/plexist/internal/models"
)

// Provider is a streaming service exposing playlists (Spotify, Deezer).
//
// Implementations paginate internally and return typed errors from the shared package:
// [shared.AuthorizationError] for rejected credentials and [shared.FetchError] for everything else.
type Provider interface {
	// Name returns the name of the service (e.g., "Spotify", "Deezer").
	Name() string

	// Playlists returns every source playlist configured for this provider.
	Playlists(ctx context.Context) ([]models.Playlist, error)

	// Tracks returns the ordered track list of a playlist.
	Tracks(ctx context.Context, playlist models.Playlist) ([]models.Track, error)
}

// Catalog searches the media server's indexed music library.
type Catalog interface {
	Search(ctx context.Context, query models.SearchQuery) ([]models.CatalogTrack, error)
}

// PlaylistStore reads and writes playlists on the media server.
type PlaylistStore interface {
	// FindPlaylist returns the target playlist mirroring playlist, or nil when none exists.
	FindPlaylist(ctx context.Context, playlist models.Playlist) (*models.TargetPlaylist, error)

	// CreatePlaylist creates a target playlist holding items in order.
	CreatePlaylist(ctx context.Context, playlist models.Playlist, summary string, items []string) (*models.TargetPlaylist, error)

	// ReplaceItems makes the playlist hold exactly items, in order.
	ReplaceItems(ctx context.Context, targetID string, items []string) error

	// AppendItems adds items to the end of the playlist, in order.
	AppendItems(ctx context.Context, targetID string, items []string) error

	// UpdateSummary rewrites the playlist description.
	UpdateSummary(ctx context.Context, targetID, summary string) error

	// UploadPoster sets the playlist artwork from a remote image URL.
	UploadPoster(ctx context.Context, targetID, posterURL string) error
}

// MediaServer is the full media server capability set.
type MediaServer interface {
	Catalog
	PlaylistStore

	// Ping verifies connectivity and credentials.
	Ping(ctx context.Context) error

	// Name returns the name of the server (e.g., "Plex").
	Name() string
}
