package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/desertthunder/plexist/internal/models"
	"github.com/desertthunder/plexist/internal/shared"
)

// RunRepository stores pass summaries, per-playlist outcomes and unmatched tracks.
//
// It implements tasks.PassRecorder.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// RecordPass writes report and all of its playlists and unmatched tracks in one transaction.
//
// A report without an ID is assigned one.
func (r *RunRepository) RecordPass(ctx context.Context, report *models.PassReport) error {
	if report == nil {
		return fmt.Errorf("%w: nil pass report", shared.ErrInvalidInput)
	}
	if report.ID == "" {
		report.ID = shared.GenerateID()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sync_runs (id, mode, started_at, finished_at, playlists, matched, unmatched, created, updated, failed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.ID,
		report.Mode,
		report.StartedAt,
		report.FinishedAt,
		report.PlaylistCount(),
		report.MatchedCount(),
		report.UnmatchedCount(),
		report.CreatedCount(),
		report.UpdatedCount(),
		report.FailedCount(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert sync run: %w", err)
	}

	playlistStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sync_playlists (run_id, provider, playlist_id, name, target_id, matched, unmatched, added, removed, status, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare playlist insert: %w", err)
	}
	defer playlistStmt.Close()

	missingStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO missing_tracks (run_id, provider, playlist_id, title, artist, album, url)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare missing track insert: %w", err)
	}
	defer missingStmt.Close()

	for _, provider := range report.Providers {
		for _, pl := range provider.Playlists {
			var errMsg sql.NullString
			if pl.Err != nil {
				errMsg = sql.NullString{String: pl.Err.Error(), Valid: true}
			}

			_, err := playlistStmt.ExecContext(ctx,
				report.ID,
				provider.Name,
				pl.Playlist.ID,
				pl.Playlist.Name,
				nullable(pl.TargetID),
				len(pl.Matched),
				len(pl.Unmatched),
				pl.Added,
				pl.Removed,
				pl.Status(),
				errMsg,
			)
			if err != nil {
				return fmt.Errorf("failed to insert playlist %s: %w", pl.Playlist.ID, err)
			}

			for _, track := range pl.Unmatched {
				_, err := missingStmt.ExecContext(ctx,
					report.ID,
					provider.Name,
					pl.Playlist.ID,
					track.Title,
					track.Artist,
					nullable(track.Album),
					nullable(track.URL),
				)
				if err != nil {
					return fmt.Errorf("failed to insert missing track: %w", err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sync run: %w", err)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (r *RunRepository) Recent(ctx context.Context, limit int) ([]*models.SyncRun, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, mode, started_at, finished_at, playlists, matched, unmatched, created, updated, failed
		FROM sync_runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.SyncRun
	for rows.Next() {
		var run models.SyncRun
		if err := rows.Scan(
			&run.ID,
			&run.Mode,
			&run.StartedAt,
			&run.FinishedAt,
			&run.Playlists,
			&run.Matched,
			&run.Unmatched,
			&run.Created,
			&run.Updated,
			&run.Failed,
		); err != nil {
			return nil, fmt.Errorf("failed to scan sync run: %w", err)
		}
		runs = append(runs, &run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync runs: %w", err)
	}
	return runs, nil
}

// Get retrieves a run by ID.
func (r *RunRepository) Get(ctx context.Context, id string) (*models.SyncRun, error) {
	var run models.SyncRun
	err := r.db.QueryRowContext(ctx, `
		SELECT id, mode, started_at, finished_at, playlists, matched, unmatched, created, updated, failed
		FROM sync_runs
		WHERE id = ?
	`, id).Scan(
		&run.ID,
		&run.Mode,
		&run.StartedAt,
		&run.FinishedAt,
		&run.Playlists,
		&run.Matched,
		&run.Unmatched,
		&run.Created,
		&run.Updated,
		&run.Failed,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("sync run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan sync run: %w", err)
	}
	return &run, nil
}

// Playlists returns the playlist outcomes of a run in insertion order.
func (r *RunRepository) Playlists(ctx context.Context, runID string) ([]*models.SyncPlaylist, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT run_id, provider, playlist_id, name, target_id, matched, unmatched, added, removed, status, error_message
		FROM sync_playlists
		WHERE run_id = ?
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync playlists: %w", err)
	}
	defer rows.Close()

	var playlists []*models.SyncPlaylist
	for rows.Next() {
		var pl models.SyncPlaylist
		var targetID, errMsg sql.NullString
		if err := rows.Scan(
			&pl.RunID,
			&pl.Provider,
			&pl.PlaylistID,
			&pl.Name,
			&targetID,
			&pl.Matched,
			&pl.Unmatched,
			&pl.Added,
			&pl.Removed,
			&pl.Status,
			&errMsg,
		); err != nil {
			return nil, fmt.Errorf("failed to scan sync playlist: %w", err)
		}
		pl.TargetID = targetID.String
		pl.Error = errMsg.String
		playlists = append(playlists, &pl)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync playlists: %w", err)
	}
	return playlists, nil
}

// Missing returns the unmatched tracks recorded for a run in insertion order.
func (r *RunRepository) Missing(ctx context.Context, runID string) ([]*models.MissingTrack, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT run_id, provider, playlist_id, title, artist, album, url
		FROM missing_tracks
		WHERE run_id = ?
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query missing tracks: %w", err)
	}
	defer rows.Close()

	var missing []*models.MissingTrack
	for rows.Next() {
		var m models.MissingTrack
		var album, url sql.NullString
		if err := rows.Scan(&m.RunID, &m.Provider, &m.PlaylistID, &m.Track.Title, &m.Track.Artist, &album, &url); err != nil {
			return nil, fmt.Errorf("failed to scan missing track: %w", err)
		}
		m.Track.Album = album.String
		m.Track.URL = url.String
		missing = append(missing, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating missing tracks: %w", err)
	}
	return missing, nil
}

// Prune deletes all but the newest keep runs. Child rows go with them.
func (r *RunRepository) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}

	result, err := r.db.ExecContext(ctx, `
		DELETE FROM sync_runs
		WHERE id NOT IN (SELECT id FROM sync_runs ORDER BY started_at DESC LIMIT ?)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune sync runs: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
