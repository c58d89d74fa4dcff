package tasks

import (
	"context"
	"slices"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plexist/internal/models"
	"github.com/desertthunder/plexist/internal/services"
	"github.com/desertthunder/plexist/internal/shared"
)

// TrackMatcher resolves a provider track against the media server catalog.
type TrackMatcher interface {
	FindMatch(ctx context.Context, track models.Track) models.MatchResult
}

// Reconciler converges one target playlist towards a provider playlist.
//
// Calls for the same source playlist ID are serialized; different playlists proceed in parallel.
type Reconciler struct {
	matcher TrackMatcher
	store   services.PlaylistStore
	locks   *keyedMutex
	logger  *log.Logger
}

// NewReconciler creates a Reconciler writing through store.
func NewReconciler(matcher TrackMatcher, store services.PlaylistStore, logger *log.Logger) *Reconciler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Reconciler{
		matcher: matcher,
		store:   store,
		locks:   newKeyedMutex(),
		logger:  logger,
	}
}

// Reconcile matches tracks in order and applies the resulting membership to the target playlist.
//
// Failures never escape: they are recorded in the returned report's Err.
func (r *Reconciler) Reconcile(ctx context.Context, playlist models.Playlist, tracks []models.Track, opts models.SyncOptions) models.ReconcileReport {
	report := models.ReconcileReport{Playlist: playlist}
	logger := shared.WithLogger(r.logger, "playlist", playlist.Name)

	unlock := r.locks.Lock(playlist.ID)
	defer unlock()

	target, err := r.store.FindPlaylist(ctx, playlist)
	if err != nil {
		report.Err = shared.NewFetchError("media server", "playlist "+playlist.Name, err)
		return report
	}

	keys := make([]string, 0, len(tracks))
	for _, track := range tracks {
		if err := ctx.Err(); err != nil {
			report.Err = err
			return report
		}

		result := r.matcher.FindMatch(ctx, track)
		if result.Matched() {
			report.Matched = append(report.Matched, result)
			keys = append(keys, result.Local.Key)
		} else {
			report.Unmatched = append(report.Unmatched, track)
		}
	}

	if target == nil {
		r.create(ctx, logger, &report, keys, opts)
		return report
	}

	report.TargetID = target.ID
	r.update(ctx, logger, &report, target, keys, opts)
	return report
}

func (r *Reconciler) create(ctx context.Context, logger *log.Logger, report *models.ReconcileReport, keys []string, opts models.SyncOptions) {
	playlist := report.Playlist
	if len(keys) == 0 {
		logger.Info("no tracks matched, not creating playlist", "tracks", len(report.Unmatched))
		report.Skipped = true
		return
	}

	summary := ""
	if opts.AddPlaylistDescription {
		summary = playlist.Description
	}

	created, err := r.store.CreatePlaylist(ctx, playlist, summary, keys)
	if err != nil {
		report.Err = shared.NewApplyError(playlist.ID, "create", err)
		return
	}

	report.TargetID = created.ID
	report.Created = true
	report.Added = len(keys)
	logger.Info("created playlist", "target", created.ID, "items", len(keys))

	if opts.AddPlaylistPoster && playlist.PosterURL != "" {
		if err := r.store.UploadPoster(ctx, created.ID, playlist.PosterURL); err != nil {
			report.Err = shared.NewApplyError(playlist.ID, "poster", err)
		}
	}
}

func (r *Reconciler) update(ctx context.Context, logger *log.Logger, report *models.ReconcileReport, target *models.TargetPlaylist, keys []string, opts models.SyncOptions) {
	playlist := report.Playlist

	if opts.AppendInsteadOfSync {
		additions := AppendPlan(target.Items, keys)
		if len(additions) > 0 {
			if err := r.store.AppendItems(ctx, target.ID, additions); err != nil {
				report.Err = shared.NewApplyError(playlist.ID, "append", err)
				return
			}
			report.Added = len(additions)
			report.Updated = true
		}
	} else if !slices.Equal(target.Items, keys) {
		if err := r.store.ReplaceItems(ctx, target.ID, keys); err != nil {
			report.Err = shared.NewApplyError(playlist.ID, "replace", err)
			return
		}
		report.Added, report.Removed = DiffCounts(target.Items, keys)
		report.Updated = true
	}

	if opts.AddPlaylistDescription && target.Summary != playlist.Description {
		if err := r.store.UpdateSummary(ctx, target.ID, playlist.Description); err != nil {
			report.Err = shared.NewApplyError(playlist.ID, "summary", err)
			return
		}
		report.Updated = true
	}

	if opts.AddPlaylistPoster && playlist.PosterURL != "" && report.Updated {
		if err := r.store.UploadPoster(ctx, target.ID, playlist.PosterURL); err != nil {
			report.Err = shared.NewApplyError(playlist.ID, "poster", err)
			return
		}
	}

	if report.Updated {
		logger.Info("updated playlist", "target", target.ID, "mode", opts.Mode(), "added", report.Added, "removed", report.Removed)
	} else {
		logger.Debug("playlist already up to date", "target", target.ID)
	}
}

// AppendPlan returns the matched keys to append to existing, in matched order.
//
// Keys are treated as a multiset: a key is appended only when the matched list holds more
// copies of it (up to that position) than existing does.
func AppendPlan(existing, matched []string) []string {
	have := make(map[string]int, len(existing))
	for _, k := range existing {
		have[k]++
	}

	var additions []string
	seen := make(map[string]int, len(matched))
	for _, k := range matched {
		seen[k]++
		if seen[k] > have[k] {
			additions = append(additions, k)
			have[k]++
		}
	}
	return additions
}

// DiffCounts returns how many entries desired adds to and removes from existing, counting duplicates.
func DiffCounts(existing, desired []string) (added, removed int) {
	counts := make(map[string]int, len(existing))
	for _, k := range existing {
		counts[k]++
	}
	for _, k := range desired {
		if counts[k] > 0 {
			counts[k]--
		} else {
			added++
		}
	}
	for _, n := range counts {
		removed += n
	}
	return added, removed
}

// keyedMutex hands out one mutex per key and drops it once nobody holds or waits for it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedEntry)}
}

// Lock blocks until key is free and returns its unlock function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &keyedEntry{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
