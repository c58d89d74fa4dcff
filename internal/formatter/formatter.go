// package formatter renders sync results: CSV reports of unmatched tracks and plain text pass summaries
package formatter

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/desertthunder/plexist/internal/models"
)

// MissingHeaders are the columns of an unmatched track report.
var MissingHeaders = []string{"title", "artist", "album", "url", "year", "genre"}

// MissingToCSV converts unmatched tracks to CSV with columns: title, artist, album, url, year, genre
func MissingToCSV(tracks []models.Track) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(MissingHeaders); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range tracks {
		record := []string{
			track.Title,
			track.Artist,
			track.Album,
			track.URL,
			track.Year,
			track.Genre,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// CSVSink writes one CSV file of unmatched tracks per playlist into Dir.
//
// Files are named after the playlist and overwritten on every pass. A playlist with no
// unmatched tracks has no file.
type CSVSink struct {
	Dir string
}

// NewCSVSink creates a sink writing into dir.
func NewCSVSink(dir string) *CSVSink {
	return &CSVSink{Dir: dir}
}

// Path returns the report file path for playlist.
func (s *CSVSink) Path(playlist models.Playlist) string {
	return filepath.Join(s.Dir, SanitizeFilename(playlist.Name)+".csv")
}

// WriteMissing writes tracks to the playlist's report file. An empty tracks removes the file.
func (s *CSVSink) WriteMissing(ctx context.Context, playlist models.Playlist, tracks []models.Track) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(tracks) == 0 {
		if err := os.Remove(s.Path(playlist)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove stale CSV file: %w", err)
		}
		return nil
	}

	data, err := MissingToCSV(tracks)
	if err != nil {
		return fmt.Errorf("failed to generate CSV: %w", err)
	}

	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(s.Path(playlist), data, 0644); err != nil {
		return fmt.Errorf("failed to write CSV file: %w", err)
	}
	return nil
}

// SanitizeFilename replaces characters that are invalid in file names on common filesystems.
func SanitizeFilename(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r < 0x20 || r == 0x7f:
			return '_'
		case strings.ContainsRune(`/\:*?"<>|`, r):
			return '_'
		default:
			return r
		}
	}, name)

	cleaned = strings.Trim(cleaned, " .")
	if cleaned == "" {
		return "playlist"
	}
	return cleaned
}

// PassSummaryText renders a pass report as plain text, listing every playlist and its unmatched tracks.
func PassSummaryText(report *models.PassReport) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Pass %s (%s mode)\n", report.ID, report.Mode))
	buf.WriteString(fmt.Sprintf("Duration: %s\n\n", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond)))

	for _, provider := range report.Providers {
		buf.WriteString(fmt.Sprintf("%s\n", provider.Name))
		if provider.Err != nil {
			buf.WriteString(fmt.Sprintf("  skipped: %v\n\n", provider.Err))
			continue
		}

		for _, pl := range provider.Playlists {
			buf.WriteString(fmt.Sprintf("  %s %s (%d matched, %d missing)\n", PlaylistStatus(pl), pl.Playlist.Name, len(pl.Matched), len(pl.Unmatched)))
			if pl.Err != nil {
				buf.WriteString(fmt.Sprintf("      error: %v\n", pl.Err))
			}
			for _, track := range pl.Unmatched {
				buf.WriteString(fmt.Sprintf("      - %s - %s\n", track.Artist, track.Title))
			}
		}
		buf.WriteString("\n")
	}

	buf.WriteString(fmt.Sprintf("Playlists: %d  Created: %d  Updated: %d  Failed: %d\n",
		report.PlaylistCount(), report.CreatedCount(), report.UpdatedCount(), report.FailedCount()))
	buf.WriteString(fmt.Sprintf("Tracks matched: %d  missing: %d\n", report.MatchedCount(), report.UnmatchedCount()))

	return buf.Bytes()
}

// PlaylistStatus returns a one-word status for a playlist report.
func PlaylistStatus(r models.ReconcileReport) string {
	return r.Status()
}
