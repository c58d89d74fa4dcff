// Package tasks runs sync passes that mirror provider playlists into the media server.
//
// # Core Operations
//
//  1. [Reconciler.Reconcile] : converge one target playlist
//     - Resolves the target playlist mirroring the source playlist
//     - Matches every track in order, once per occurrence
//     - Sync mode replaces the target's items with the matched keys
//     - Append mode adds only matched keys the target lacks ([AppendPlan])
//     - Writes description and poster when the pass options ask for them
//
//  2. [SyncEngine.RunPass] : one pass over all providers
//     - Providers run one at a time; playlists of a provider run on up to Workers goroutines
//     - Reports are committed in provider playlist order
//     - Unmatched tracks are logged and handed to the [MissingSink]
//     - The finished [models.PassReport] goes to the optional [PassRecorder]
//
//  3. [SyncEngine.Loop] : pass, sleep, repeat until the context is cancelled
//
// # Failure Containment
//
// A provider whose playlist listing fails is skipped for the pass. A playlist whose tracks cannot be
// fetched, or whose target cannot be written, is skipped for the pass. Nothing is retried within a pass.
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data.
// Updates use select with default to prevent blocking.
package tasks
