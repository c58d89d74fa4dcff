package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/plexist/internal/models"
	"github.com/desertthunder/plexist/internal/shared"
)

type plexRequest struct {
	Method string
	Path   string
	Query  map[string]string
}

// plexRecorder serves canned XML per "METHOD /path" and records every request.
type plexRecorder struct {
	mu        sync.Mutex
	requests  []plexRequest
	responses map[string]string
	status    int
}

func (r *plexRecorder) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Query().Get("X-Plex-Token") != "test_token" {
			t.Errorf("missing token on %s %s", req.Method, req.URL.Path)
		}

		query := map[string]string{}
		for k, v := range req.URL.Query() {
			query[k] = v[0]
		}

		r.mu.Lock()
		r.requests = append(r.requests, plexRequest{Method: req.Method, Path: req.URL.Path, Query: query})
		body, ok := r.responses[req.Method+" "+req.URL.Path]
		status := r.status
		r.mu.Unlock()

		if status != 0 {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/xml")
		if !ok {
			body = `<MediaContainer size="0"></MediaContainer>`
		}
		fmt.Fprint(w, body)
	}
}

func (r *plexRecorder) calls(method, path string) []plexRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []plexRequest
	for _, req := range r.requests {
		if req.Method == method && req.Path == path {
			out = append(out, req)
		}
	}
	return out
}

func newTestPlex(t *testing.T, sectionID int, responses map[string]string) (*PlexService, *plexRecorder) {
	t.Helper()

	if responses == nil {
		responses = map[string]string{}
	}
	if _, ok := responses["GET /"]; !ok {
		responses["GET /"] = `<MediaContainer friendlyName="home" machineIdentifier="abc123" version="1.40"></MediaContainer>`
	}

	rec := &plexRecorder{responses: responses}
	server := httptest.NewServer(rec.handler(t))
	t.Cleanup(server.Close)

	srv, err := NewPlexService(shared.PlexConfig{URL: server.URL + "/", Token: "test_token", SectionID: sectionID}, time.Second)
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return srv, rec
}

func TestPlexService(t *testing.T) {
	ctx := context.Background()

	t.Run("NewPlexService", func(t *testing.T) {
		_, err := NewPlexService(shared.PlexConfig{URL: "http://plex:32400"}, time.Second)
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}

		srv, err := NewPlexService(shared.PlexConfig{URL: "http://plex:32400/", Token: "t"}, time.Second)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if srv.baseURL != "http://plex:32400" {
			t.Errorf("expected trailing slash trimmed, got %s", srv.baseURL)
		}

		var _ MediaServer = srv
	})

	t.Run("Ping", func(t *testing.T) {
		srv, rec := newTestPlex(t, 0, nil)
		if err := srv.Ping(ctx); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if err := srv.Ping(ctx); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if n := len(rec.calls(http.MethodGet, "/")); n != 1 {
			t.Errorf("expected machine identifier to be cached, got %d requests", n)
		}
	})

	t.Run("Ping Unauthorized", func(t *testing.T) {
		srv, rec := newTestPlex(t, 0, nil)
		rec.status = http.StatusUnauthorized

		err := srv.Ping(ctx)
		if !shared.IsAuthorization(err) {
			t.Errorf("expected authorization error, got %v", err)
		}
	})

	t.Run("Search", func(t *testing.T) {
		t.Run("Library Section", func(t *testing.T) {
			srv, rec := newTestPlex(t, 3, map[string]string{
				"GET /library/sections/3/search": `<MediaContainer size="2">
					<Track ratingKey="101" title="Song A" grandparentTitle="Various Artists" originalTitle="Artist X" parentTitle="Compilation"/>
					<Track ratingKey="102" title="Song A" grandparentTitle="Artist X" parentTitle="First"/>
				</MediaContainer>`,
			})

			tracks, err := srv.Search(ctx, models.SearchQuery{Title: "song a", Artist: "artist x"})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(tracks) != 2 {
				t.Fatalf("expected 2 tracks, got %d", len(tracks))
			}

			want := models.CatalogTrack{Key: "101", Title: "Song A", Artist: "Artist X", Album: "Compilation"}
			if tracks[0] != want {
				t.Errorf("expected %+v, got %+v", want, tracks[0])
			}
			if tracks[1].Artist != "Artist X" {
				t.Errorf("expected album artist fallback, got %q", tracks[1].Artist)
			}

			calls := rec.calls(http.MethodGet, "/library/sections/3/search")
			if len(calls) != 1 || calls[0].Query["type"] != "10" || calls[0].Query["query"] != "song a" {
				t.Errorf("unexpected search request %+v", calls)
			}
		})

		t.Run("Whole Server", func(t *testing.T) {
			srv, rec := newTestPlex(t, 0, nil)
			if _, err := srv.Search(ctx, models.SearchQuery{Title: "song a"}); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(rec.calls(http.MethodGet, "/search")) != 1 {
				t.Error("expected server-wide search without a section")
			}
		})

		t.Run("Failure", func(t *testing.T) {
			srv, rec := newTestPlex(t, 0, nil)
			rec.status = http.StatusInternalServerError

			_, err := srv.Search(ctx, models.SearchQuery{Title: "song a"})
			if !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected fetch error, got %v", err)
			}
		})
	})

	t.Run("FindPlaylist", func(t *testing.T) {
		responses := map[string]string{
			"GET /playlists": `<MediaContainer size="3">
				<Playlist ratingKey="7" title="Road Trip - Spotify" summary="" playlistType="audio" smart="0"/>
				<Playlist ratingKey="8" title="Renamed by user" summary="Long drives&#10;&#10;Synced from spotify:playlist:p1" playlistType="audio" smart="0"/>
				<Playlist ratingKey="9" title="Focus" summary="" playlistType="audio" smart="1"/>
			</MediaContainer>`,
			"GET /playlists/8/items": `<MediaContainer size="2">
				<Track ratingKey="101" title="Song A"/>
				<Track ratingKey="102" title="Song C"/>
			</MediaContainer>`,
		}

		t.Run("By Attribution", func(t *testing.T) {
			srv, rec := newTestPlex(t, 0, responses)

			target, err := srv.FindPlaylist(ctx, models.Playlist{ID: "spotify:playlist:p1", Name: "Road Trip - Spotify"})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if target == nil || target.ID != "8" {
				t.Fatalf("expected attributed playlist 8, got %+v", target)
			}
			if target.Summary != "Long drives" {
				t.Errorf("expected attribution stripped, got %q", target.Summary)
			}
			if strings.Join(target.Items, ",") != "101,102" {
				t.Errorf("unexpected items %v", target.Items)
			}
			if calls := rec.calls(http.MethodGet, "/playlists"); calls[0].Query["playlistType"] != "audio" {
				t.Errorf("expected audio playlist filter, got %+v", calls[0].Query)
			}
		})

		t.Run("By Title", func(t *testing.T) {
			srv, _ := newTestPlex(t, 0, responses)

			target, err := srv.FindPlaylist(ctx, models.Playlist{ID: "spotify:playlist:p2", Name: "Road Trip - Spotify"})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if target == nil || target.ID != "7" {
				t.Fatalf("expected title match 7, got %+v", target)
			}
		})

		t.Run("By Title Ignores Foreign Attribution", func(t *testing.T) {
			srv, _ := newTestPlex(t, 0, map[string]string{
				"GET /playlists": `<MediaContainer size="1">
					<Playlist ratingKey="10" title="Chill" summary="Synced from spotify:playlist:AAA" playlistType="audio" smart="0"/>
				</MediaContainer>`,
			})

			target, err := srv.FindPlaylist(ctx, models.Playlist{ID: "123", Provider: "Deezer", Name: "Chill"})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if target != nil {
				t.Errorf("expected playlist owned by another source to be left alone, got %+v", target)
			}
		})

		t.Run("Smart Playlists Ignored", func(t *testing.T) {
			srv, _ := newTestPlex(t, 0, responses)

			target, err := srv.FindPlaylist(ctx, models.Playlist{ID: "x", Name: "Focus"})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if target != nil {
				t.Errorf("expected no target, got %+v", target)
			}
		})
	})

	t.Run("CreatePlaylist", func(t *testing.T) {
		srv, rec := newTestPlex(t, 0, map[string]string{
			"POST /playlists": `<MediaContainer size="1"><Playlist ratingKey="55" title="Road Trip - Spotify" playlistType="audio"/></MediaContainer>`,
		})

		items := make([]string, 0, 150)
		for i := range 150 {
			items = append(items, fmt.Sprint(i+1))
		}

		target, err := srv.CreatePlaylist(ctx, models.Playlist{ID: "spotify:playlist:p1", Name: "Road Trip - Spotify"}, "Long drives", items)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if target.ID != "55" || len(target.Items) != 150 {
			t.Errorf("unexpected target %+v", target)
		}

		create := rec.calls(http.MethodPost, "/playlists")
		if len(create) != 1 {
			t.Fatalf("expected one create request, got %d", len(create))
		}
		q := create[0].Query
		if q["type"] != "audio" || q["smart"] != "0" || q["title"] != "Road Trip - Spotify" {
			t.Errorf("unexpected create params %+v", q)
		}
		if !strings.HasPrefix(q["uri"], "server://abc123/com.plexapp.plugins.library/library/metadata/1,2,") {
			t.Errorf("unexpected item uri %s", q["uri"])
		}
		if strings.Count(q["uri"], ",") != plexItemsPerWrite-1 {
			t.Errorf("expected first batch of %d keys", plexItemsPerWrite)
		}

		appends := rec.calls(http.MethodPut, "/playlists/55/items")
		if len(appends) != 1 || !strings.HasSuffix(appends[0].Query["uri"], "/metadata/101,102,103,104,105,106,107,108,109,110,111,112,113,114,115,116,117,118,119,120,121,122,123,124,125,126,127,128,129,130,131,132,133,134,135,136,137,138,139,140,141,142,143,144,145,146,147,148,149,150") {
			t.Errorf("expected remaining items appended, got %+v", appends)
		}

		summary := rec.calls(http.MethodPut, "/playlists/55")
		if len(summary) != 1 || summary[0].Query["summary"] != "Long drives\n\nSynced from spotify:playlist:p1" {
			t.Errorf("expected attributed summary, got %+v", summary)
		}
	})

	t.Run("CreatePlaylist Empty", func(t *testing.T) {
		srv, _ := newTestPlex(t, 0, nil)
		_, err := srv.CreatePlaylist(ctx, models.Playlist{ID: "p"}, "", nil)
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("ReplaceItems", func(t *testing.T) {
		srv, rec := newTestPlex(t, 0, nil)
		if err := srv.ReplaceItems(ctx, "8", []string{"3", "1"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(rec.calls(http.MethodDelete, "/playlists/8/items")) != 1 {
			t.Error("expected playlist to be cleared")
		}
		puts := rec.calls(http.MethodPut, "/playlists/8/items")
		if len(puts) != 1 || !strings.HasSuffix(puts[0].Query["uri"], "/library/metadata/3,1") {
			t.Errorf("expected ordered items, got %+v", puts)
		}
	})

	t.Run("ReplaceItems Empty", func(t *testing.T) {
		srv, rec := newTestPlex(t, 0, nil)
		if err := srv.ReplaceItems(ctx, "8", nil); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(rec.calls(http.MethodPut, "/playlists/8/items")) != 0 {
			t.Error("expected no items added")
		}
	})

	t.Run("UploadPoster", func(t *testing.T) {
		srv, rec := newTestPlex(t, 0, nil)
		if err := srv.UploadPoster(ctx, "8", "https://img/1.jpg"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		calls := rec.calls(http.MethodPost, "/library/metadata/8/posters")
		if len(calls) != 1 || calls[0].Query["url"] != "https://img/1.jpg" {
			t.Errorf("unexpected poster request %+v", calls)
		}
	})

	t.Run("Write Failure", func(t *testing.T) {
		srv, rec := newTestPlex(t, 0, nil)
		rec.status = http.StatusBadRequest
		if err := srv.UpdateSummary(ctx, "8", "x"); !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})
}

func TestAttribution(t *testing.T) {
	tests := []struct {
		name     string
		summary  string
		sourceID string
		want     string
	}{
		{"Empty Summary", "", "spotify:playlist:p1", "Synced from spotify:playlist:p1"},
		{"With Summary", "Long drives", "123", "Long drives\n\nSynced from 123"},
		{"No Source", "Long drives", "", "Long drives"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WithAttribution(tt.summary, tt.sourceID)
			if got != tt.want {
				t.Errorf("WithAttribution() = %q, want %q", got, tt.want)
			}
			if back := StripAttribution(got); back != tt.summary {
				t.Errorf("StripAttribution() = %q, want %q", back, tt.summary)
			}
		})
	}
}

func TestAttributedSource(t *testing.T) {
	tests := []struct {
		name    string
		summary string
		want    string
		ok      bool
	}{
		{"Attributed", "Long drives\n\nSynced from spotify:playlist:p1", "spotify:playlist:p1", true},
		{"Indented", "  Synced from 123  ", "123", true},
		{"Plain Summary", "Long drives", "", false},
		{"Empty Tag", "Synced from ", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := AttributedSource(tt.summary)
			if got != tt.want || ok != tt.ok {
				t.Errorf("AttributedSource() = %q, %v, want %q, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}
