// package tasks implements the playlist sync pass: fetching provider playlists, reconciling each one
// against the media server, and reporting tracks that could not be matched.
//
// The core abstraction is SyncEngine. Operations emit progress updates via channels for non-blocking
// status reporting to the CLI layer.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plexist/internal/matching"
	"github.com/desertthunder/plexist/internal/models"
	"github.com/desertthunder/plexist/internal/services"
	"github.com/desertthunder/plexist/internal/shared"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// MissingSink receives the unmatched tracks of a playlist.
type MissingSink interface {
	WriteMissing(ctx context.Context, playlist models.Playlist, tracks []models.Track) error
}

// PassRecorder persists the summary of a finished pass.
type PassRecorder interface {
	RecordPass(ctx context.Context, report *models.PassReport) error
}

// ProviderFactory builds the providers for one pass.
type ProviderFactory func(ctx context.Context) ([]services.Provider, error)

// EngineOpts contains the pacing and collaborators of a [SyncEngine].
type EngineOpts struct {
	Workers        int           // Playlists reconciled concurrently per provider (default: 1)
	RateLimit      float64       // Provider requests per second (default: 5)
	RequestTimeout time.Duration // Bound on each provider and catalog call; zero disables
	Sink           MissingSink   // Destination for unmatched tracks when CSV output is enabled
	Recorder       PassRecorder  // Optional pass history
	Logger         *log.Logger
}

// SyncEngine drives sync passes over a set of providers.
type SyncEngine struct {
	reconciler *Reconciler
	sink       MissingSink
	recorder   PassRecorder
	limiter    *rate.Limiter
	workers    int
	timeout    time.Duration
	logger     *log.Logger
}

// NewSyncEngine creates a SyncEngine matching against catalog and writing through store.
func NewSyncEngine(catalog services.Catalog, store services.PlaylistStore, opts EngineOpts) *SyncEngine {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	matcher := matching.NewMatcher(catalog, opts.RequestTimeout, opts.Logger)
	return &SyncEngine{
		reconciler: NewReconciler(matcher, store, opts.Logger),
		sink:       opts.Sink,
		recorder:   opts.Recorder,
		limiter:    rate.NewLimiter(rate.Limit(opts.RateLimit), 1),
		workers:    opts.Workers,
		timeout:    opts.RequestTimeout,
		logger:     opts.Logger,
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *SyncEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// RunPass performs one full sync pass over providers, one provider at a time.
//
// Provider and playlist failures are recorded in the report and never abort the pass.
func (e *SyncEngine) RunPass(ctx context.Context, providers []services.Provider, opts models.SyncOptions, progress chan<- ProgressUpdate) *models.PassReport {
	report := &models.PassReport{
		ID:        shared.GenerateID(),
		StartedAt: time.Now(),
		Mode:      opts.Mode(),
	}
	e.logger.Info("starting sync pass", "pass", report.ID, "mode", report.Mode, "providers", len(providers))

	for i, provider := range providers {
		if ctx.Err() != nil {
			break
		}
		e.sendProgress(progress, fetchingPlaylistsUpdate(i+1, len(providers), provider.Name()))
		report.Providers = append(report.Providers, e.syncProvider(ctx, provider, opts, progress))
	}

	report.FinishedAt = time.Now()
	e.sendProgress(progress, idleUpdate(report))

	if e.recorder != nil {
		if err := e.recorder.RecordPass(context.WithoutCancel(ctx), report); err != nil {
			e.logger.Warn("failed to record sync pass", "pass", report.ID, "err", err)
		}
	}

	e.logger.Info("sync pass complete",
		"pass", report.ID,
		"playlists", report.PlaylistCount(),
		"matched", report.MatchedCount(),
		"unmatched", report.UnmatchedCount(),
		"created", report.CreatedCount(),
		"updated", report.UpdatedCount(),
		"failed", report.FailedCount(),
		"duration", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond),
	)
	return report
}

func (e *SyncEngine) syncProvider(ctx context.Context, provider services.Provider, opts models.SyncOptions, progress chan<- ProgressUpdate) models.ProviderReport {
	logger := shared.WithLogger(e.logger, "provider", provider.Name())
	result := models.ProviderReport{Name: provider.Name()}

	var playlists []models.Playlist
	err := e.call(ctx, func(ctx context.Context) error {
		var err error
		playlists, err = provider.Playlists(ctx)
		return err
	})
	if err != nil {
		if shared.IsAuthorization(err) {
			logger.Error("provider rejected credentials, skipping for this pass", "err", err)
		} else {
			logger.Error("failed to fetch playlists, skipping provider for this pass", "err", err)
		}
		result.Err = err
		return result
	}

	if len(playlists) == 0 {
		logger.Warn("no playlists found")
		return result
	}
	logger.Info("fetched playlists", "count", len(playlists))

	reports := make([]models.ReconcileReport, len(playlists))
	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, playlist := range playlists {
		g.Go(func() error {
			reports[i] = e.syncPlaylist(ctx, logger, provider, playlist, opts, progress, i+1, len(playlists))
			return nil
		})
	}
	_ = g.Wait()

	result.Playlists = reports
	return result
}

func (e *SyncEngine) syncPlaylist(
	ctx context.Context,
	logger *log.Logger,
	provider services.Provider,
	playlist models.Playlist,
	opts models.SyncOptions,
	progress chan<- ProgressUpdate,
	step, total int,
) models.ReconcileReport {
	logger = shared.WithLogger(logger, "playlist", playlist.Name)
	e.sendProgress(progress, fetchingTracksUpdate(step, total, playlist))

	var tracks []models.Track
	err := e.call(ctx, func(ctx context.Context) error {
		var err error
		tracks, err = provider.Tracks(ctx, playlist)
		return err
	})
	if err != nil {
		logger.Error("failed to fetch tracks, skipping playlist for this pass", "err", err)
		report := models.ReconcileReport{Playlist: playlist, Err: err}
		e.sendProgress(progress, reconciledUpdate(step, total, &report))
		return report
	}

	e.sendProgress(progress, reconcilingUpdate(step, total, playlist, len(tracks)))
	report := e.reconciler.Reconcile(ctx, playlist, tracks, opts)
	if report.Err != nil {
		logger.Error("failed to reconcile playlist", "err", report.Err)
	}

	e.reportMissing(ctx, logger, &report, opts)
	logger.Info("playlist synced", "matched", len(report.Matched), "unmatched", len(report.Unmatched), "created", report.Created, "updated", report.Updated)
	e.sendProgress(progress, reconciledUpdate(step, total, &report))
	return report
}

// reportMissing logs unmatched tracks and hands them to the sink, including an empty list so a
// fully matched playlist clears its previous report. A failed playlist with nothing unmatched keeps it.
func (e *SyncEngine) reportMissing(ctx context.Context, logger *log.Logger, report *models.ReconcileReport, opts models.SyncOptions) {
	for _, t := range report.Unmatched {
		logger.Info("track not found in catalog", "title", t.Title, "artist", t.Artist, "album", t.Album)
	}

	if !opts.WriteMissingAsCSV || e.sink == nil {
		return
	}
	if len(report.Unmatched) == 0 && report.Err != nil {
		return
	}
	if err := e.sink.WriteMissing(ctx, report.Playlist, report.Unmatched); err != nil {
		logger.Warn("failed to write missing tracks", "err", err)
	}
}

// call waits for the rate limiter and runs fn under the per-call timeout.
func (e *SyncEngine) call(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := e.limiter.Wait(ctx); err != nil {
		return err
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	if err := fn(ctx); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %w", shared.ErrTimeout, err)
		}
		return err
	}
	return nil
}

// Loop runs a pass, sleeps for interval, and repeats until ctx is cancelled.
//
// Providers are rebuilt each pass so credentials are retried after a failure.
func (e *SyncEngine) Loop(ctx context.Context, factory ProviderFactory, opts models.SyncOptions, interval time.Duration, progress chan<- ProgressUpdate) error {
	for {
		providers, err := factory(ctx)
		if err != nil {
			e.logger.Error("failed to set up providers", "err", err)
		} else {
			e.RunPass(ctx, providers, opts, progress)
		}

		e.logger.Info("waiting for next pass", "interval", interval)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}
