// Plex Media Server implementation of [MediaServer]
//
// Plex answers with XML MediaContainer documents. Playlist items are addressed by library
// metadata URIs built from the server's machine identifier.
package services

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/desertthunder/plexist/internal/models"
	"github.com/desertthunder/plexist/internal/shared"
)

const (
	plexTrackType      = "10"
	plexItemsPerWrite  = 100
	plexAttributionTag = "Synced from "
)

// PlexTrack is a music track in a Plex MediaContainer.
type PlexTrack struct {
	RatingKey        string `xml:"ratingKey,attr"`
	Title            string `xml:"title,attr"`
	GrandparentTitle string `xml:"grandparentTitle,attr"`
	OriginalTitle    string `xml:"originalTitle,attr"`
	ParentTitle      string `xml:"parentTitle,attr"`
}

// Artist returns the track artist, preferring the per-track artist over the album artist.
func (t PlexTrack) Artist() string {
	if t.OriginalTitle != "" {
		return t.OriginalTitle
	}
	return t.GrandparentTitle
}

// PlexPlaylist is a playlist in a Plex MediaContainer.
type PlexPlaylist struct {
	RatingKey    string `xml:"ratingKey,attr"`
	Title        string `xml:"title,attr"`
	Summary      string `xml:"summary,attr"`
	PlaylistType string `xml:"playlistType,attr"`
	Smart        bool   `xml:"smart,attr"`
	LeafCount    int    `xml:"leafCount,attr"`
}

// PlexContainer is the MediaContainer root of every Plex response.
type PlexContainer struct {
	XMLName           xml.Name       `xml:"MediaContainer"`
	MachineIdentifier string         `xml:"machineIdentifier,attr"`
	FriendlyName      string         `xml:"friendlyName,attr"`
	Version           string         `xml:"version,attr"`
	Tracks            []PlexTrack    `xml:"Track"`
	Playlists         []PlexPlaylist `xml:"Playlist"`
}

// PlexService implements [MediaServer] against a Plex Media Server.
//
// Playlists it creates carry a "Synced from <id>" line in their summary so later passes find them
// even after a rename. That line is stripped from [models.TargetPlaylist.Summary] and re-added on write.
type PlexService struct {
	httpClient *http.Client
	baseURL    string
	token      string
	sectionID  int

	mu       sync.Mutex
	serverID string
	sources  map[string]string // target ID -> source playlist ID
}

// NewPlexService creates a Plex client from its config section. timeout bounds each request.
func NewPlexService(cfg shared.PlexConfig, timeout time.Duration) (*PlexService, error) {
	if cfg.URL == "" || cfg.Token == "" {
		return nil, fmt.Errorf("%w: plex url and token", shared.ErrMissingCredentials)
	}
	return &PlexService{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		token:      cfg.Token,
		sectionID:  cfg.SectionID,
		sources:    make(map[string]string),
	}, nil
}

func (p *PlexService) Name() string {
	return "Plex"
}

// do sends a request and decodes an XML MediaContainer into result when it is non-nil.
func (p *PlexService) do(ctx context.Context, method, path string, params url.Values, result *PlexContainer) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("X-Plex-Token", p.token)

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/xml")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", shared.ErrServiceUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return shared.NewAuthorizationError(p.Name(), fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s %s returned status %d: %s", shared.ErrAPIRequest, method, path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if result == nil {
		return nil
	}
	if err := xml.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// Ping fetches the server identity and caches its machine identifier.
func (p *PlexService) Ping(ctx context.Context) error {
	_, err := p.machineID(ctx)
	return err
}

func (p *PlexService) machineID(ctx context.Context) (string, error) {
	p.mu.Lock()
	id := p.serverID
	p.mu.Unlock()
	if id != "" {
		return id, nil
	}

	var info PlexContainer
	if err := p.do(ctx, http.MethodGet, "/", nil, &info); err != nil {
		return "", shared.NewFetchError(p.Name(), "server identity", err)
	}
	if info.MachineIdentifier == "" {
		return "", shared.NewFetchError(p.Name(), "server identity", fmt.Errorf("response has no machine identifier"))
	}

	p.mu.Lock()
	p.serverID = info.MachineIdentifier
	p.mu.Unlock()
	return info.MachineIdentifier, nil
}

// Search queries the music library for tracks by title.
//
// Artist filtering is left to the matcher; Plex search treats the query as free text.
func (p *PlexService) Search(ctx context.Context, query models.SearchQuery) ([]models.CatalogTrack, error) {
	path := "/search"
	if p.sectionID > 0 {
		path = fmt.Sprintf("/library/sections/%d/search", p.sectionID)
	}

	params := url.Values{}
	params.Set("type", plexTrackType)
	params.Set("query", query.Title)

	var container PlexContainer
	if err := p.do(ctx, http.MethodGet, path, params, &container); err != nil {
		return nil, shared.NewFetchError(p.Name(), "search", err)
	}

	tracks := make([]models.CatalogTrack, 0, len(container.Tracks))
	for _, t := range container.Tracks {
		tracks = append(tracks, models.CatalogTrack{
			Key:    t.RatingKey,
			Title:  t.Title,
			Artist: t.Artist(),
			Album:  t.ParentTitle,
		})
	}
	return tracks, nil
}

// FindPlaylist looks up the audio playlist mirroring playlist: first by attribution line, then by exact title.
func (p *PlexService) FindPlaylist(ctx context.Context, playlist models.Playlist) (*models.TargetPlaylist, error) {
	params := url.Values{}
	params.Set("playlistType", "audio")

	var container PlexContainer
	if err := p.do(ctx, http.MethodGet, "/playlists", params, &container); err != nil {
		return nil, shared.NewFetchError(p.Name(), "playlists", err)
	}

	found := findPlexPlaylist(container.Playlists, playlist)
	if found == nil {
		return nil, nil
	}

	items, err := p.playlistItems(ctx, found.RatingKey)
	if err != nil {
		return nil, err
	}

	p.remember(found.RatingKey, playlist.ID)
	return &models.TargetPlaylist{
		ID:      found.RatingKey,
		Title:   found.Title,
		Summary: StripAttribution(found.Summary),
		Items:   items,
	}, nil
}

func findPlexPlaylist(playlists []PlexPlaylist, playlist models.Playlist) *PlexPlaylist {
	for i := range playlists {
		if playlists[i].Smart {
			continue
		}
		if source, ok := AttributedSource(playlists[i].Summary); ok && source == playlist.ID {
			return &playlists[i]
		}
	}
	// Playlists attributed to another source are owned by it and never adopted by title.
	for i := range playlists {
		if playlists[i].Smart || playlists[i].Title != playlist.Name {
			continue
		}
		if _, ok := AttributedSource(playlists[i].Summary); ok {
			continue
		}
		return &playlists[i]
	}
	return nil
}

func (p *PlexService) playlistItems(ctx context.Context, targetID string) ([]string, error) {
	var container PlexContainer
	if err := p.do(ctx, http.MethodGet, "/playlists/"+targetID+"/items", nil, &container); err != nil {
		return nil, shared.NewFetchError(p.Name(), "playlist items", err)
	}

	items := make([]string, 0, len(container.Tracks))
	for _, t := range container.Tracks {
		items = append(items, t.RatingKey)
	}
	return items, nil
}

// CreatePlaylist creates an audio playlist holding items. Items beyond the first batch are appended.
func (p *PlexService) CreatePlaylist(ctx context.Context, playlist models.Playlist, summary string, items []string) (*models.TargetPlaylist, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: plex playlists need at least one item", shared.ErrInvalidInput)
	}

	first, rest := splitBatch(items)
	uri, err := p.itemsURI(ctx, first)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("type", "audio")
	params.Set("title", playlist.Name)
	params.Set("smart", "0")
	params.Set("uri", uri)

	var container PlexContainer
	if err := p.do(ctx, http.MethodPost, "/playlists", params, &container); err != nil {
		return nil, err
	}
	if len(container.Playlists) == 0 {
		return nil, fmt.Errorf("%w: no playlist returned from creation request", shared.ErrAPIRequest)
	}
	created := container.Playlists[0]
	p.remember(created.RatingKey, playlist.ID)

	if err := p.UpdateSummary(ctx, created.RatingKey, summary); err != nil {
		return nil, err
	}
	if err := p.AppendItems(ctx, created.RatingKey, rest); err != nil {
		return nil, err
	}

	return &models.TargetPlaylist{
		ID:      created.RatingKey,
		Title:   created.Title,
		Summary: summary,
		Items:   append([]string(nil), items...),
	}, nil
}

// ReplaceItems clears the playlist and adds items in order.
func (p *PlexService) ReplaceItems(ctx context.Context, targetID string, items []string) error {
	if err := p.do(ctx, http.MethodDelete, "/playlists/"+targetID+"/items", nil, nil); err != nil {
		return err
	}
	return p.AppendItems(ctx, targetID, items)
}

// AppendItems adds items to the end of the playlist in batches.
func (p *PlexService) AppendItems(ctx context.Context, targetID string, items []string) error {
	for len(items) > 0 {
		var batch []string
		batch, items = splitBatch(items)

		uri, err := p.itemsURI(ctx, batch)
		if err != nil {
			return err
		}

		params := url.Values{}
		params.Set("uri", uri)
		if err := p.do(ctx, http.MethodPut, "/playlists/"+targetID+"/items", params, nil); err != nil {
			return err
		}
	}
	return nil
}

// UpdateSummary rewrites the playlist summary, keeping the attribution line.
func (p *PlexService) UpdateSummary(ctx context.Context, targetID, summary string) error {
	p.mu.Lock()
	sourceID := p.sources[targetID]
	p.mu.Unlock()

	params := url.Values{}
	params.Set("summary", WithAttribution(summary, sourceID))
	return p.do(ctx, http.MethodPut, "/playlists/"+targetID, params, nil)
}

// UploadPoster points the playlist artwork at posterURL.
func (p *PlexService) UploadPoster(ctx context.Context, targetID, posterURL string) error {
	params := url.Values{}
	params.Set("url", posterURL)
	return p.do(ctx, http.MethodPost, "/library/metadata/"+targetID+"/posters", params, nil)
}

func (p *PlexService) itemsURI(ctx context.Context, keys []string) (string, error) {
	machine, err := p.machineID(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("server://%s/com.plexapp.plugins.library/library/metadata/%s", machine, strings.Join(keys, ",")), nil
}

func (p *PlexService) remember(targetID, sourceID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sources[targetID] = sourceID
}

func splitBatch(items []string) (batch, rest []string) {
	if len(items) <= plexItemsPerWrite {
		return items, nil
	}
	return items[:plexItemsPerWrite], items[plexItemsPerWrite:]
}

func attributionLine(sourceID string) string {
	return plexAttributionTag + sourceID
}

// WithAttribution appends the "Synced from <id>" line to summary.
func WithAttribution(summary, sourceID string) string {
	if sourceID == "" {
		return summary
	}
	if summary == "" {
		return attributionLine(sourceID)
	}
	return summary + "\n\n" + attributionLine(sourceID)
}

// AttributedSource returns the source playlist ID named by the attribution line of summary.
func AttributedSource(summary string) (string, bool) {
	for line := range strings.SplitSeq(summary, "\n") {
		line = strings.TrimSpace(line)
		if id, ok := strings.CutPrefix(line, plexAttributionTag); ok && strings.TrimSpace(id) != "" {
			return strings.TrimSpace(id), true
		}
	}
	return "", false
}

// StripAttribution removes attribution lines and surrounding blank space from summary.
func StripAttribution(summary string) string {
	var kept []string
	for line := range strings.SplitSeq(summary, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), plexAttributionTag) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
