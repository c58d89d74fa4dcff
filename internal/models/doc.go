// Package models defines domain values for the plexist playlist mirroring service.
//
// The package contains four categories of types:
//
// 1. Provider values: immutable data fetched from streaming services
//   - [Track] : title/artist/album metadata without file identity
//   - [Playlist] : provider playlist keyed by a stable provider-scoped ID
//
// 2. Catalog values: data owned by the media server
//   - [CatalogTrack] : a search candidate with a non-owning lookup key
//   - [TargetPlaylist] : the media server playlist kept in sync
//
// 3. Results: per-pass outcomes
//   - [MatchResult] : a track resolved (or not) to a catalog entry
//   - [ReconcileReport] : one playlist's reconciliation outcome
//   - [PassReport] : all providers for one pass, with aggregate counters
//
// 4. History: rows stored by the repositories package
//   - [SyncRun] : pass summary
//   - [SyncPlaylist] : one playlist's stored outcome
//   - [MissingTrack] : a stored unmatched track
//
// [SyncOptions] is the immutable snapshot of behavior toggles read once per pass.
package models
