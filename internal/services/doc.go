// Package services defines the capability interfaces consumed by the sync engine and implements them
// for Spotify, Deezer, and Plex.
//
// # Capabilities
//
//   - [Provider] : a streaming service exposing ordered playlists
//   - [Catalog] : read-only search over the media server's music library
//   - [PlaylistStore] : reads and writes target playlists
//   - [MediaServer] : Catalog + PlaylistStore + connectivity check
//
// # Spotify Implementation
//
// [SpotifyService] authenticates with the client credentials grant; the [oauth2] transport fetches
// and refreshes the application token. Playlists are keyed by URI and paginated through "next" links.
//
// # Deezer Implementation
//
// [DeezerService] reads the public Deezer API with resty. Deezer reports most failures as an "error"
// object inside a 200 response; OAuthException maps to an authorization error.
//
// # Plex Implementation
//
// [PlexService] speaks the Plex XML API. Created playlists carry an attribution line in their summary
// used to find them again on later passes.
//
// # Error Handling
//
// Adapters return typed errors from the shared package:
//   - [shared.AuthorizationError] : credentials missing or rejected (401/403, OAuthException)
//   - [shared.FetchError] : any other read failure
//   - [shared.ErrAPIRequest] : wrapped by failed Plex writes; the reconciler turns these into apply errors
//
// Configured playlist suffixes are constructor arguments. No adapter reads the environment.
package services
