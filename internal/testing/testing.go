// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/plexist/internal/models"
	"github.com/desertthunder/plexist/internal/shared"
)

// FakeCatalog is an in-memory [services.Catalog].
//
// Search returns every track whose normalized title contains the query title, in insertion order.
type FakeCatalog struct {
	mu     sync.Mutex
	Tracks []models.CatalogTrack
	Err    error
	calls  int
}

// NewFakeCatalog creates a catalog holding tracks.
func NewFakeCatalog(tracks ...models.CatalogTrack) *FakeCatalog {
	return &FakeCatalog{Tracks: tracks}
}

func (c *FakeCatalog) Search(ctx context.Context, query models.SearchQuery) ([]models.CatalogTrack, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.Err != nil {
		return nil, c.Err
	}

	var out []models.CatalogTrack
	for _, t := range c.Tracks {
		if strings.Contains(shared.Normalize(t.Title), query.Title) {
			out = append(out, t)
		}
	}
	return out, nil
}

// Calls returns how many searches were issued.
func (c *FakeCatalog) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// FakeMediaServer is an in-memory [services.MediaServer] keyed by source playlist ID.
type FakeMediaServer struct {
	*FakeCatalog

	mu        sync.Mutex
	playlists map[string]*models.TargetPlaylist // by target ID
	bySource  map[string]string                 // source playlist ID -> target ID
	posters   map[string]string
	nextID    int
	writes    int

	PingErr    error
	FindErr    error
	CreateErr  error
	ReplaceErr error
	AppendErr  error
	SummaryErr error
	PosterErr  error

	// FailFor makes every write for the given source playlist ID fail.
	FailFor map[string]error
}

// NewFakeMediaServer creates a media server whose catalog holds tracks.
func NewFakeMediaServer(tracks ...models.CatalogTrack) *FakeMediaServer {
	return &FakeMediaServer{
		FakeCatalog: NewFakeCatalog(tracks...),
		playlists:   map[string]*models.TargetPlaylist{},
		bySource:    map[string]string{},
		posters:     map[string]string{},
		FailFor:     map[string]error{},
	}
}

func (s *FakeMediaServer) Name() string { return "fake" }

func (s *FakeMediaServer) Ping(ctx context.Context) error { return s.PingErr }

// Seed installs an existing target playlist for a source playlist ID and returns its target ID.
func (s *FakeMediaServer) Seed(sourceID, title, summary string, items ...string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := fmt.Sprintf("target-%d", s.nextID)
	s.playlists[id] = &models.TargetPlaylist{ID: id, Title: title, Summary: summary, Items: slices.Clone(items)}
	s.bySource[sourceID] = id
	return id
}

func (s *FakeMediaServer) FindPlaylist(ctx context.Context, playlist models.Playlist) (*models.TargetPlaylist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FindErr != nil {
		return nil, s.FindErr
	}
	id, ok := s.bySource[playlist.ID]
	if !ok {
		return nil, nil
	}
	return clonePlaylist(s.playlists[id]), nil
}

func (s *FakeMediaServer) CreatePlaylist(ctx context.Context, playlist models.Playlist, summary string, items []string) (*models.TargetPlaylist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure(playlist.ID, s.CreateErr); err != nil {
		return nil, err
	}
	s.nextID++
	s.writes++
	id := fmt.Sprintf("target-%d", s.nextID)
	created := &models.TargetPlaylist{ID: id, Title: playlist.Name, Summary: summary, Items: slices.Clone(items)}
	s.playlists[id] = created
	s.bySource[playlist.ID] = id
	return clonePlaylist(created), nil
}

func (s *FakeMediaServer) ReplaceItems(ctx context.Context, targetID string, items []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pl, err := s.target(targetID, s.ReplaceErr)
	if err != nil {
		return err
	}
	s.writes++
	pl.Items = slices.Clone(items)
	return nil
}

func (s *FakeMediaServer) AppendItems(ctx context.Context, targetID string, items []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pl, err := s.target(targetID, s.AppendErr)
	if err != nil {
		return err
	}
	s.writes++
	pl.Items = append(pl.Items, items...)
	return nil
}

func (s *FakeMediaServer) UpdateSummary(ctx context.Context, targetID, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pl, err := s.target(targetID, s.SummaryErr)
	if err != nil {
		return err
	}
	s.writes++
	pl.Summary = summary
	return nil
}

func (s *FakeMediaServer) UploadPoster(ctx context.Context, targetID, posterURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.target(targetID, s.PosterErr); err != nil {
		return err
	}
	s.writes++
	s.posters[targetID] = posterURL
	return nil
}

// Items returns the current items of the target mirroring sourceID.
func (s *FakeMediaServer) Items(sourceID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.bySource[sourceID]
	if !ok {
		return nil
	}
	return slices.Clone(s.playlists[id].Items)
}

// Playlist returns a copy of the target mirroring sourceID, or nil.
func (s *FakeMediaServer) Playlist(sourceID string) *models.TargetPlaylist {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.bySource[sourceID]
	if !ok {
		return nil
	}
	return clonePlaylist(s.playlists[id])
}

// Poster returns the poster URL uploaded for a target ID.
func (s *FakeMediaServer) Poster(targetID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.posters[targetID]
}

// Writes returns the number of successful write operations.
func (s *FakeMediaServer) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// PlaylistCount returns the number of target playlists.
func (s *FakeMediaServer) PlaylistCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.playlists)
}

func (s *FakeMediaServer) failure(sourceID string, opErr error) error {
	if err, ok := s.FailFor[sourceID]; ok {
		return err
	}
	return opErr
}

func (s *FakeMediaServer) target(targetID string, opErr error) (*models.TargetPlaylist, error) {
	pl, ok := s.playlists[targetID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, targetID)
	}
	for sourceID, id := range s.bySource {
		if id == targetID {
			if err := s.failure(sourceID, nil); err != nil {
				return nil, err
			}
		}
	}
	if opErr != nil {
		return nil, opErr
	}
	return pl, nil
}

func clonePlaylist(pl *models.TargetPlaylist) *models.TargetPlaylist {
	if pl == nil {
		return nil
	}
	cp := *pl
	cp.Items = slices.Clone(pl.Items)
	return &cp
}

// FakeProvider is an in-memory [services.Provider].
type FakeProvider struct {
	ProviderName string
	Lists        []models.Playlist
	TrackLists   map[string][]models.Track
	PlaylistsErr error
	TracksErr    map[string]error
}

func (p *FakeProvider) Name() string { return p.ProviderName }

func (p *FakeProvider) Playlists(ctx context.Context) ([]models.Playlist, error) {
	if p.PlaylistsErr != nil {
		return nil, p.PlaylistsErr
	}
	return p.Lists, nil
}

func (p *FakeProvider) Tracks(ctx context.Context, playlist models.Playlist) ([]models.Track, error) {
	if err, ok := p.TracksErr[playlist.ID]; ok {
		return nil, err
	}
	return p.TrackLists[playlist.ID], nil
}

// MissingCall records one call to [FakeSink.WriteMissing].
type MissingCall struct {
	Playlist models.Playlist
	Tracks   []models.Track
}

// FakeSink records unmatched track reports.
type FakeSink struct {
	mu    sync.Mutex
	Calls []MissingCall
	Err   error
}

func (s *FakeSink) WriteMissing(ctx context.Context, playlist models.Playlist, tracks []models.Track) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.Calls = append(s.Calls, MissingCall{Playlist: playlist, Tracks: slices.Clone(tracks)})
	return nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
