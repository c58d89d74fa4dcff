// Spotify Web API implementation of [Provider]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/plexist/internal/models"
	"github.com/desertthunder/plexist/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	spotifyPlaylistPageSize = 50
	spotifyTrackPageSize    = 100
)

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type externalURLs struct {
	Spotify string `json:"spotify"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Artists      []SpotifyArtist `json:"artists"`
	Album        SpotifyAlbum    `json:"album"`
	ExternalURLs externalURLs    `json:"external_urls"`
	URI          string          `json:"uri"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ReleaseDate string `json:"release_date"`
	URI         string `json:"uri"`
}

// SpotifyPlaylistTrack represents a track within a playlist context.
//
// Track is nil for local files and tracks removed from the catalog.
type SpotifyPlaylistTrack struct {
	AddedAt string        `json:"added_at"`
	Track   *SpotifyTrack `json:"track"`
}

// SpotifyPaginatedPlaylistTracks represents a page of playlist items.
type SpotifyPaginatedPlaylistTracks struct {
	Items  []SpotifyPlaylistTrack `json:"items"`
	Total  int                    `json:"total"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
	Next   *string                `json:"next"`
}

// SpotifySimplePlaylist represents a simplified playlist object (used in lists).
type SpotifySimplePlaylist struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Images      []SpotifyImage `json:"images"`
	URI         string         `json:"uri"`
}

// SpotifyPaginatedPlaylists represents a paginated response of playlists.
type SpotifyPaginatedPlaylists struct {
	Items  []SpotifySimplePlaylist `json:"items"`
	Total  int                     `json:"total"`
	Limit  int                     `json:"limit"`
	Offset int                     `json:"offset"`
	Next   *string                 `json:"next"`
}

// SpotifyService implements [Provider] for a Spotify user's public playlists.
//
// Authentication uses the client credentials grant; the [oauth2] transport fetches and refreshes the app token.
type SpotifyService struct {
	config     *clientcredentials.Config
	httpClient *http.Client
	baseURL    string
	userID     string
	suffix     string
}

// NewSpotifyService creates a Spotify provider from its config section.
func NewSpotifyService(cfg shared.SpotifyConfig) (*SpotifyService, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: spotify client_id and client_secret", shared.ErrMissingCredentials)
	}
	if cfg.UserID == "" {
		return nil, fmt.Errorf("%w: spotify user_id", shared.ErrMissingConfig)
	}

	return &SpotifyService{
		config: &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     spotifyTokenURL,
		},
		baseURL: spotifyBaseURL,
		userID:  cfg.UserID,
		suffix:  cfg.PlaylistSuffix,
	}, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

func (s *SpotifyService) client(ctx context.Context) *http.Client {
	if s.httpClient == nil {
		s.httpClient = s.config.Client(context.WithoutCancel(ctx))
	}
	return s.httpClient
}

// doRequest performs an authenticated GET against the Spotify API. endpoint is either a path or an absolute "next" URL.
func (s *SpotifyService) doRequest(ctx context.Context, endpoint, resource string, result any) error {
	apiURL := endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		apiURL = s.baseURL + endpoint
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return shared.NewFetchError(s.Name(), resource, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client(ctx).Do(req)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return shared.NewAuthorizationError(s.Name(), retrieveErr)
		}
		return shared.NewFetchError(s.Name(), resource, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return shared.NewAuthorizationError(s.Name(), fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return shared.NewFetchError(s.Name(), resource, fmt.Errorf("status %d", resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return shared.NewFetchError(s.Name(), resource, fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}

// Playlists retrieves every public playlist of the configured user.
func (s *SpotifyService) Playlists(ctx context.Context) ([]models.Playlist, error) {
	var playlists []models.Playlist
	next := fmt.Sprintf("/users/%s/playlists?limit=%d", url.PathEscape(s.userID), spotifyPlaylistPageSize)

	for next != "" {
		var page SpotifyPaginatedPlaylists
		if err := s.doRequest(ctx, next, "playlists of "+s.userID, &page); err != nil {
			return nil, err
		}

		for _, sp := range page.Items {
			playlists = append(playlists, s.toPlaylist(sp))
		}

		next = ""
		if page.Next != nil {
			next = *page.Next
		}
	}

	return playlists, nil
}

// Tracks retrieves the ordered tracks of playlist. Items without a track are skipped.
func (s *SpotifyService) Tracks(ctx context.Context, playlist models.Playlist) ([]models.Track, error) {
	var tracks []models.Track
	next := fmt.Sprintf("/playlists/%s/tracks?limit=%d", url.PathEscape(spotifyID(playlist.ID)), spotifyTrackPageSize)

	for next != "" {
		var page SpotifyPaginatedPlaylistTracks
		if err := s.doRequest(ctx, next, "tracks of "+playlist.ID, &page); err != nil {
			return nil, err
		}

		for _, item := range page.Items {
			if item.Track == nil || item.Track.Name == "" {
				continue
			}
			tracks = append(tracks, toSpotifyTrack(*item.Track))
		}

		next = ""
		if page.Next != nil {
			next = *page.Next
		}
	}

	return tracks, nil
}

func (s *SpotifyService) toPlaylist(sp SpotifySimplePlaylist) models.Playlist {
	id := sp.URI
	if id == "" {
		id = "spotify:playlist:" + sp.ID
	}

	playlist := models.Playlist{
		ID:          id,
		Provider:    s.Name(),
		Name:        withSuffix(sp.Name, s.suffix),
		Description: sp.Description,
	}
	if len(sp.Images) > 0 {
		playlist.PosterURL = sp.Images[0].URL
	}
	return playlist
}

func toSpotifyTrack(st SpotifyTrack) models.Track {
	track := models.Track{
		Title: st.Name,
		Album: st.Album.Name,
		URL:   st.ExternalURLs.Spotify,
	}
	if len(st.Artists) > 0 {
		track.Artist = st.Artists[0].Name
	}
	if len(st.Album.ReleaseDate) >= 4 {
		track.Year = st.Album.ReleaseDate[:4]
	}
	return track
}

// spotifyID extracts the bare ID from a "spotify:playlist:{id}" URI.
func spotifyID(uri string) string {
	if i := strings.LastIndex(uri, ":"); i >= 0 {
		return uri[i+1:]
	}
	return uri
}

// withSuffix appends " - suffix" to name when suffix is set.
func withSuffix(name, suffix string) string {
	if suffix == "" {
		return name
	}
	return name + " - " + suffix
}
