package formatter

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/plexist/internal/models"
	th "github.com/desertthunder/plexist/internal/testing"
)

var missing = []models.Track{
	{Title: "Song B", Artist: "Artist Y", Album: "Second", URL: "https://open.spotify.com/track/b", Year: "2001"},
	{Title: "Comma, Song", Artist: `Quote "Q"`, Genre: "Jazz"},
}

func TestMissingToCSV(t *testing.T) {
	data, err := MissingToCSV(missing)
	if err != nil {
		t.Fatalf("MissingToCSV failed: %v", err)
	}

	records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}

	if len(records) != 3 {
		t.Fatalf("expected header and 2 rows, got %d", len(records))
	}
	if strings.Join(records[0], ",") != "title,artist,album,url,year,genre" {
		t.Errorf("unexpected headers %v", records[0])
	}
	if records[1][0] != "Song B" || records[1][3] != "https://open.spotify.com/track/b" || records[1][4] != "2001" {
		t.Errorf("unexpected first row %v", records[1])
	}
	if records[2][0] != "Comma, Song" || records[2][1] != `Quote "Q"` || records[2][5] != "Jazz" {
		t.Errorf("expected quoting to round trip, got %v", records[2])
	}

	t.Run("Empty", func(t *testing.T) {
		data, err := MissingToCSV(nil)
		if err != nil {
			t.Fatalf("MissingToCSV failed: %v", err)
		}
		if strings.TrimSpace(string(data)) != "title,artist,album,url,year,genre" {
			t.Errorf("expected header only, got %q", data)
		}
	})
}

func TestCSVSink(t *testing.T) {
	t.Run("WriteMissing", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "missing")
		sink := NewCSVSink(dir)
		playlist := models.Playlist{ID: "p1", Name: "Road Trip - Spotify"}

		if err := sink.WriteMissing(context.Background(), playlist, missing); err != nil {
			t.Fatalf("WriteMissing failed: %v", err)
		}

		path := filepath.Join(dir, "Road Trip - Spotify.csv")
		th.AssertFileExists(t, path)
		if !strings.Contains(th.MustReadFile(t, path), "Song B,Artist Y") {
			t.Error("report missing unmatched track")
		}
	})

	t.Run("Overwrites Previous Pass", func(t *testing.T) {
		sink := NewCSVSink(t.TempDir())
		playlist := models.Playlist{ID: "p1", Name: "Focus"}

		if err := sink.WriteMissing(context.Background(), playlist, missing); err != nil {
			t.Fatalf("WriteMissing failed: %v", err)
		}
		if err := sink.WriteMissing(context.Background(), playlist, missing[:1]); err != nil {
			t.Fatalf("WriteMissing failed: %v", err)
		}

		content := th.MustReadFile(t, sink.Path(playlist))
		if strings.Contains(content, "Comma, Song") {
			t.Error("expected file to be overwritten")
		}
	})

	t.Run("Fully Matched Removes Stale Report", func(t *testing.T) {
		sink := NewCSVSink(t.TempDir())
		playlist := models.Playlist{ID: "p1", Name: "Focus"}

		if err := sink.WriteMissing(context.Background(), playlist, missing); err != nil {
			t.Fatalf("WriteMissing failed: %v", err)
		}
		if err := sink.WriteMissing(context.Background(), playlist, nil); err != nil {
			t.Fatalf("WriteMissing failed: %v", err)
		}

		if _, err := os.Stat(sink.Path(playlist)); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("expected stale report to be removed, got %v", err)
		}
	})

	t.Run("Fully Matched Without Report", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "never-created")
		if err := NewCSVSink(dir).WriteMissing(context.Background(), models.Playlist{Name: "x"}, nil); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("Unwritable Directory", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file")
		if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}

		err := NewCSVSink(filepath.Join(file, "sub")).WriteMissing(context.Background(), models.Playlist{Name: "x"}, missing)
		if err == nil {
			t.Error("expected error when directory cannot be created")
		}
	})

	t.Run("Cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := NewCSVSink(t.TempDir()).WriteMissing(ctx, models.Playlist{Name: "x"}, missing)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context error, got %v", err)
		}
	})
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"Plain", "Road Trip", "Road Trip"},
		{"Slashes", "AC/DC Best\\Of", "AC_DC Best_Of"},
		{"Reserved", `What? "Now": <1|2>*`, "What_ _Now__ _1_2__"},
		{"Control", "Tab\there", "Tab_here"},
		{"Trailing Dots", "  ..Mix..  ", "Mix"},
		{"Empty", "", "playlist"},
		{"Unicode", "Café Tacvba", "Café Tacvba"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFilename(tt.in); got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestPassSummaryText(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	report := &models.PassReport{
		ID:         "pass-1",
		Mode:       "sync",
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
		Providers: []models.ProviderReport{
			{
				Name: "Spotify",
				Playlists: []models.ReconcileReport{
					{
						Playlist:  models.Playlist{Name: "Road Trip"},
						Created:   true,
						Matched:   []models.MatchResult{{Local: &models.CatalogTrack{Key: "a"}}},
						Unmatched: []models.Track{{Title: "Song B", Artist: "Artist Y"}},
					},
					{Playlist: models.Playlist{Name: "Focus"}, Err: errors.New("apply failed")},
				},
			},
			{Name: "Deezer", Err: errors.New("unauthorized")},
		},
	}

	output := string(PassSummaryText(report))

	for _, want := range []string{
		"Pass pass-1 (sync mode)",
		"Duration: 1.5s",
		"created Road Trip (1 matched, 1 missing)",
		"- Artist Y - Song B",
		"failed Focus",
		"error: apply failed",
		"skipped: unauthorized",
		"Playlists: 2  Created: 1  Updated: 0  Failed: 2",
		"Tracks matched: 1  missing: 1",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("summary missing %q:\n%s", want, output)
		}
	}
}

func TestPlaylistStatus(t *testing.T) {
	tests := []struct {
		report models.ReconcileReport
		want   string
	}{
		{models.ReconcileReport{Err: errors.New("x"), Created: true}, "failed"},
		{models.ReconcileReport{Skipped: true}, "skipped"},
		{models.ReconcileReport{Created: true}, "created"},
		{models.ReconcileReport{Updated: true}, "updated"},
		{models.ReconcileReport{}, "unchanged"},
	}

	for _, tt := range tests {
		if got := PlaylistStatus(tt.report); got != tt.want {
			t.Errorf("PlaylistStatus() = %q, want %q", got, tt.want)
		}
	}
}
