// Package repositories implements SQLite persistence for sync history.
//
// [RunRepository] records every finished pass: a summary row in sync_runs, one row per provider playlist
// in sync_playlists and one row per unmatched track in missing_tracks. Child rows are removed with their run.
//
// History is write-mostly. Matching never reads it back, so every pass re-resolves tracks against the live catalog.
package repositories
