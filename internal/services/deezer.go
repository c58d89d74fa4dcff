// Deezer public API implementation of [Provider]
//
// Response types based on https://developers.deezer.com/api
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plexist/internal/models"
	"github.com/desertthunder/plexist/internal/shared"
	"github.com/go-resty/resty/v2"
)

const deezerBaseURL = "https://api.deezer.com"

// DeezerError is the error object Deezer embeds in otherwise successful responses.
type DeezerError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func (e *DeezerError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Type, e.Code, e.Message)
}

// DeezerArtist represents a Deezer artist.
type DeezerArtist struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// DeezerAlbum represents a Deezer album.
type DeezerAlbum struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// DeezerTrack represents a track within a playlist.
type DeezerTrack struct {
	ID     int64        `json:"id"`
	Title  string       `json:"title"`
	Link   string       `json:"link"`
	Artist DeezerArtist `json:"artist"`
	Album  DeezerAlbum  `json:"album"`
}

// DeezerPlaylist represents a Deezer playlist.
type DeezerPlaylist struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	PictureXL   string `json:"picture_xl"`
	Picture     string `json:"picture"`
}

type deezerEnvelope struct {
	Error *DeezerError `json:"error"`
}

type deezerPlaylistPage struct {
	deezerEnvelope
	Data []DeezerPlaylist `json:"data"`
	Next string           `json:"next"`
}

type deezerTrackPage struct {
	deezerEnvelope
	Data []DeezerTrack `json:"data"`
	Next string        `json:"next"`
}

type deezerPlaylistResponse struct {
	deezerEnvelope
	DeezerPlaylist
}

// DeezerService implements [Provider] over the public Deezer API.
//
// Playlists come from the configured user and from explicit playlist IDs; no credentials are required.
type DeezerService struct {
	client      *resty.Client
	userID      string
	playlistIDs []string
	suffix      string
	logger      *log.Logger
}

// NewDeezerService creates a Deezer provider from its config section.
func NewDeezerService(cfg shared.DeezerConfig, timeout time.Duration) (*DeezerService, error) {
	if cfg.UserID == "" && len(cfg.PlaylistIDs) == 0 {
		return nil, fmt.Errorf("%w: deezer user_id or playlist_ids", shared.ErrMissingConfig)
	}

	client := resty.New().
		SetBaseURL(deezerBaseURL).
		SetHeader("Accept", "application/json")
	if timeout > 0 {
		client.SetTimeout(timeout)
	}

	return &DeezerService{
		client:      client,
		userID:      cfg.UserID,
		playlistIDs: cfg.PlaylistIDs,
		suffix:      cfg.PlaylistSuffix,
		logger:      shared.WithLogger(shared.NewLogger(nil), "provider", "Deezer"),
	}, nil
}

func (s *DeezerService) Name() string {
	return "Deezer"
}

// get fetches endpoint (a path or an absolute "next" URL) into result and maps Deezer errors.
func (s *DeezerService) get(ctx context.Context, endpoint, resource string, result interface{ apiError() *DeezerError }) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetResult(result).
		Get(endpoint)
	if err != nil {
		return shared.NewFetchError(s.Name(), resource, err)
	}

	switch {
	case resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden:
		return shared.NewAuthorizationError(s.Name(), fmt.Errorf("status %d", resp.StatusCode()))
	case resp.IsError():
		return shared.NewFetchError(s.Name(), resource, fmt.Errorf("status %d", resp.StatusCode()))
	}

	if apiErr := result.apiError(); apiErr != nil {
		if apiErr.Type == "OAuthException" {
			return shared.NewAuthorizationError(s.Name(), apiErr)
		}
		return shared.NewFetchError(s.Name(), resource, apiErr)
	}
	return nil
}

func (e *deezerEnvelope) apiError() *DeezerError { return e.Error }

// SetLogger replaces the logger used to report skipped playlists.
func (s *DeezerService) SetLogger(l *log.Logger) {
	if l != nil {
		s.logger = shared.WithLogger(l, "provider", s.Name())
	}
}

// Playlists returns the configured user's playlists followed by explicitly configured ones, without duplicates.
//
// An explicit playlist that cannot be loaded is logged and skipped. It is an error only when nothing loaded at all.
func (s *DeezerService) Playlists(ctx context.Context) ([]models.Playlist, error) {
	var playlists []models.Playlist
	var failed []error
	seen := make(map[string]bool)

	if s.userID != "" {
		next := fmt.Sprintf("/user/%s/playlists", s.userID)
		for next != "" {
			var page deezerPlaylistPage
			if err := s.get(ctx, next, "playlists of "+s.userID, &page); err != nil {
				return nil, err
			}
			for _, dp := range page.Data {
				playlist := s.toPlaylist(dp)
				if !seen[playlist.ID] {
					seen[playlist.ID] = true
					playlists = append(playlists, playlist)
				}
			}
			next = page.Next
		}
	}

	for _, id := range s.playlistIDs {
		if seen[id] {
			continue
		}
		var resp deezerPlaylistResponse
		if err := s.get(ctx, "/playlist/"+id, "playlist "+id, &resp); err != nil {
			if shared.IsAuthorization(err) || ctx.Err() != nil {
				return nil, err
			}
			s.logger.Warn("skipping unavailable playlist", "playlist", id, "err", err)
			failed = append(failed, err)
			continue
		}
		playlist := s.toPlaylist(resp.DeezerPlaylist)
		seen[playlist.ID] = true
		playlists = append(playlists, playlist)
	}

	if len(playlists) == 0 && len(failed) > 0 {
		return nil, errors.Join(failed...)
	}
	return playlists, nil
}

// Tracks retrieves the ordered tracks of playlist.
func (s *DeezerService) Tracks(ctx context.Context, playlist models.Playlist) ([]models.Track, error) {
	var tracks []models.Track
	next := fmt.Sprintf("/playlist/%s/tracks", playlist.ID)

	for next != "" {
		var page deezerTrackPage
		if err := s.get(ctx, next, "tracks of "+playlist.ID, &page); err != nil {
			return nil, err
		}
		for _, dt := range page.Data {
			if dt.Title == "" {
				continue
			}
			tracks = append(tracks, models.Track{
				Title:  dt.Title,
				Artist: dt.Artist.Name,
				Album:  dt.Album.Title,
				URL:    dt.Link,
			})
		}
		next = page.Next
	}

	return tracks, nil
}

func (s *DeezerService) toPlaylist(dp DeezerPlaylist) models.Playlist {
	poster := dp.PictureXL
	if poster == "" {
		poster = dp.Picture
	}
	return models.Playlist{
		ID:          strconv.FormatInt(dp.ID, 10),
		Provider:    s.Name(),
		Name:        withSuffix(dp.Title, s.suffix),
		Description: dp.Description,
		PosterURL:   poster,
	}
}
