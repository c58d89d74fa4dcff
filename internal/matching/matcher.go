// package matching resolves provider tracks to entries of the media server catalog.
package matching

import (
	"context"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plexist/internal/models"
	"github.com/desertthunder/plexist/internal/services"
	"github.com/desertthunder/plexist/internal/shared"
	"github.com/hbollon/go-edlib"
)

// Confidence weights. A qualifying candidate always carries the title and artist weights.
const (
	titleWeight  = 0.4
	artistWeight = 0.4
	albumWeight  = 0.2
)

// Matcher finds the best catalog entry for a provider track.
//
// It holds no state between calls: the same track against an unchanged catalog always yields the same result.
type Matcher struct {
	catalog services.Catalog
	timeout time.Duration
	logger  *log.Logger
}

// NewMatcher creates a Matcher over catalog. A zero timeout leaves search calls bounded only by the caller's context.
func NewMatcher(catalog services.Catalog, timeout time.Duration, logger *log.Logger) *Matcher {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Matcher{catalog: catalog, timeout: timeout, logger: logger}
}

// FindMatch searches the catalog for track and returns the best qualifying candidate.
//
// Search failures are logged and reported as a no-match.
func (m *Matcher) FindMatch(ctx context.Context, track models.Track) models.MatchResult {
	result := models.MatchResult{Track: track}

	query := models.SearchQuery{
		Title:  shared.Normalize(track.Title),
		Artist: shared.Normalize(track.Artist),
	}
	if query.Title == "" {
		m.logger.Debug("skipping track without searchable title", "title", track.Title, "artist", track.Artist)
		return result
	}

	searchCtx := ctx
	if m.timeout > 0 {
		var cancel context.CancelFunc
		searchCtx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	candidates, err := m.catalog.Search(searchCtx, query)
	if err != nil {
		m.logger.Warn("catalog search failed", "title", track.Title, "artist", track.Artist, "err", err)
		return result
	}

	best, confidence := BestCandidate(track, candidates)
	if best == nil {
		m.logger.Debug("no qualifying candidate", "title", track.Title, "artist", track.Artist, "candidates", len(candidates))
		return result
	}

	m.logger.Debug("matched track", "title", track.Title, "artist", track.Artist, "key", best.Key, "confidence", confidence)
	result.Local = best
	result.Confidence = confidence
	return result
}

type rankedCandidate struct {
	track      models.CatalogTrack
	album      float64
	titleDelta int
}

// BestCandidate ranks candidates against track and returns the winner with its confidence, or nil.
//
// Only candidates whose normalized title and normalized artist both equal the track's qualify.
// Qualifiers are ordered by album similarity, then by the smallest title length difference, then by key.
func BestCandidate(track models.Track, candidates []models.CatalogTrack) (*models.CatalogTrack, float64) {
	key := shared.NormalizeTrackKey(track.Title, track.Artist)
	album := shared.Normalize(track.Album)
	titleLen := utf8.RuneCountInString(track.Title)

	var ranked []rankedCandidate
	for _, c := range candidates {
		if shared.NormalizeTrackKey(c.Title, c.Artist) != key {
			continue
		}
		ranked = append(ranked, rankedCandidate{
			track:      c,
			album:      AlbumSimilarity(album, shared.Normalize(c.Album)),
			titleDelta: abs(utf8.RuneCountInString(c.Title) - titleLen),
		})
	}

	if len(ranked) == 0 {
		return nil, 0
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.album != b.album {
			return a.album > b.album
		}
		if a.titleDelta != b.titleDelta {
			return a.titleDelta < b.titleDelta
		}
		return a.track.Key < b.track.Key
	})

	best := ranked[0].track
	return &best, titleWeight + artistWeight + albumWeight*ranked[0].album
}

// AlbumSimilarity compares two normalized album names on a 0..1 scale using Jaro-Winkler.
//
// Unknown albums on either side score 0.
func AlbumSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	sim, err := edlib.StringsSimilarity(a, b, edlib.JaroWinkler)
	if err != nil {
		return 0
	}
	return float64(sim)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
