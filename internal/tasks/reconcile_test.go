package tasks

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/desertthunder/plexist/internal/matching"
	"github.com/desertthunder/plexist/internal/models"
	"github.com/desertthunder/plexist/internal/shared"
	tu "github.com/desertthunder/plexist/internal/testing"
)

var (
	songA = models.Track{Title: "Song A", Artist: "Artist X", Album: "First"}
	songB = models.Track{Title: "Song B", Artist: "Artist Y"}
	songC = models.Track{Title: "Song C", Artist: "Artist Z"}
	songD = models.Track{Title: "Song D", Artist: "Artist W"}
)

func newTestServer() *tu.FakeMediaServer {
	return tu.NewFakeMediaServer(
		models.CatalogTrack{Key: "a", Title: "Song A", Artist: "Artist X", Album: "First"},
		models.CatalogTrack{Key: "c", Title: "Song C", Artist: "Artist Z"},
		models.CatalogTrack{Key: "d", Title: "Song D", Artist: "Artist W"},
	)
}

func newTestReconciler(server *tu.FakeMediaServer) *Reconciler {
	return NewReconciler(matching.NewMatcher(server, time.Second, nil), server, nil)
}

var syncMode = models.SyncOptions{}
var appendMode = models.SyncOptions{AppendInsteadOfSync: true}

func TestReconcile(t *testing.T) {
	ctx := context.Background()
	playlist := models.Playlist{ID: "spotify:playlist:p1", Name: "Road Trip", Description: "Long drives", PosterURL: "https://img/1.jpg"}

	t.Run("Creates Target With Matched Tracks", func(t *testing.T) {
		server := newTestServer()
		report := newTestReconciler(server).Reconcile(ctx, playlist, []models.Track{songA, songB}, syncMode)

		if report.Err != nil {
			t.Fatalf("expected no error, got %v", report.Err)
		}
		if !report.Created || report.TargetID == "" {
			t.Errorf("expected target to be created, got %+v", report)
		}
		if got := server.Items(playlist.ID); !slices.Equal(got, []string{"a"}) {
			t.Errorf("expected exactly [a], got %v", got)
		}
		if len(report.Unmatched) != 1 || report.Unmatched[0] != songB {
			t.Errorf("expected Song B unmatched, got %v", report.Unmatched)
		}
		if len(report.Matched) != 1 || report.Matched[0].Local.Key != "a" {
			t.Errorf("expected Song A matched, got %v", report.Matched)
		}
	})

	t.Run("Append Adds Only Missing Tracks", func(t *testing.T) {
		server := newTestServer()
		server.Seed(playlist.ID, playlist.Name, "", "a")

		report := newTestReconciler(server).Reconcile(ctx, playlist, []models.Track{songA, songC}, appendMode)
		if report.Err != nil {
			t.Fatalf("expected no error, got %v", report.Err)
		}
		if got := server.Items(playlist.ID); !slices.Equal(got, []string{"a", "c"}) {
			t.Errorf("expected [a c], got %v", got)
		}
		if report.Added != 1 || !report.Updated {
			t.Errorf("expected one addition, got %+v", report)
		}
	})

	t.Run("Append Never Removes", func(t *testing.T) {
		server := newTestServer()
		server.Seed(playlist.ID, playlist.Name, "", "x", "a")

		newTestReconciler(server).Reconcile(ctx, playlist, []models.Track{songC}, appendMode)
		if got := server.Items(playlist.ID); !slices.Equal(got, []string{"x", "a", "c"}) {
			t.Errorf("expected prior items kept, got %v", got)
		}
	})

	t.Run("Sync Replaces Membership Exactly", func(t *testing.T) {
		server := newTestServer()
		server.Seed(playlist.ID, playlist.Name, "", "x", "a", "y")

		report := newTestReconciler(server).Reconcile(ctx, playlist, []models.Track{songC, songA, songB}, syncMode)
		if report.Err != nil {
			t.Fatalf("expected no error, got %v", report.Err)
		}
		if got := server.Items(playlist.ID); !slices.Equal(got, []string{"c", "a"}) {
			t.Errorf("expected [c a] in remote order, got %v", got)
		}
		if report.Added != 1 || report.Removed != 2 {
			t.Errorf("expected 1 added and 2 removed, got %d/%d", report.Added, report.Removed)
		}
	})

	t.Run("Sync Is Idempotent", func(t *testing.T) {
		server := newTestServer()
		reconciler := newTestReconciler(server)
		tracks := []models.Track{songD, songA, songC}

		first := reconciler.Reconcile(ctx, playlist, tracks, syncMode)
		if !first.Created {
			t.Fatalf("expected first pass to create, got %+v", first)
		}
		writes := server.Writes()

		second := reconciler.Reconcile(ctx, playlist, tracks, syncMode)
		if second.Created || second.Updated || second.Err != nil {
			t.Errorf("expected no changes on second pass, got %+v", second)
		}
		if server.Writes() != writes {
			t.Errorf("expected no writes on second pass, got %d more", server.Writes()-writes)
		}
		if got := server.Items(playlist.ID); !slices.Equal(got, []string{"d", "a", "c"}) {
			t.Errorf("expected [d a c], got %v", got)
		}
	})

	t.Run("Empty Remote Playlist", func(t *testing.T) {
		t.Run("Sync Empties Target", func(t *testing.T) {
			server := newTestServer()
			server.Seed(playlist.ID, playlist.Name, "", "a", "c")

			report := newTestReconciler(server).Reconcile(ctx, playlist, nil, syncMode)
			if report.Err != nil {
				t.Fatalf("expected no error, got %v", report.Err)
			}
			if got := server.Items(playlist.ID); len(got) != 0 {
				t.Errorf("expected empty target, got %v", got)
			}
			if report.Removed != 2 {
				t.Errorf("expected 2 removed, got %d", report.Removed)
			}
		})

		t.Run("Append Leaves Target Unchanged", func(t *testing.T) {
			server := newTestServer()
			server.Seed(playlist.ID, playlist.Name, "", "a", "c")

			report := newTestReconciler(server).Reconcile(ctx, playlist, nil, appendMode)
			if report.Updated {
				t.Error("expected no update")
			}
			if got := server.Items(playlist.ID); !slices.Equal(got, []string{"a", "c"}) {
				t.Errorf("expected [a c], got %v", got)
			}
		})
	})

	t.Run("Nothing Matched Without Target", func(t *testing.T) {
		server := newTestServer()
		report := newTestReconciler(server).Reconcile(ctx, playlist, []models.Track{songB}, syncMode)

		if !report.Skipped || report.Created {
			t.Errorf("expected skipped report, got %+v", report)
		}
		if server.PlaylistCount() != 0 {
			t.Error("expected no playlist to be created")
		}
		if len(report.Unmatched) != 1 {
			t.Errorf("expected unmatched track reported, got %v", report.Unmatched)
		}
	})

	t.Run("Duplicates Preserved", func(t *testing.T) {
		server := newTestServer()
		before := server.Calls()

		newTestReconciler(server).Reconcile(ctx, playlist, []models.Track{songA, songC, songA}, syncMode)
		if got := server.Items(playlist.ID); !slices.Equal(got, []string{"a", "c", "a"}) {
			t.Errorf("expected duplicates kept in order, got %v", got)
		}
		if n := server.Calls() - before; n != 3 {
			t.Errorf("expected one search per occurrence, got %d", n)
		}
	})

	t.Run("Append Respects Duplicate Counts", func(t *testing.T) {
		server := newTestServer()
		server.Seed(playlist.ID, playlist.Name, "", "a")

		newTestReconciler(server).Reconcile(ctx, playlist, []models.Track{songA, songA}, appendMode)
		if got := server.Items(playlist.ID); !slices.Equal(got, []string{"a", "a"}) {
			t.Errorf("expected second copy appended, got %v", got)
		}
	})
}

func TestReconcileMetadata(t *testing.T) {
	ctx := context.Background()
	playlist := models.Playlist{ID: "p1", Name: "Road Trip", Description: "Long drives", PosterURL: "https://img/1.jpg"}
	all := models.SyncOptions{AddPlaylistDescription: true, AddPlaylistPoster: true}

	t.Run("Create With Metadata", func(t *testing.T) {
		server := newTestServer()
		report := newTestReconciler(server).Reconcile(ctx, playlist, []models.Track{songA}, all)

		target := server.Playlist(playlist.ID)
		if target.Summary != "Long drives" {
			t.Errorf("expected description written, got %q", target.Summary)
		}
		if server.Poster(report.TargetID) != playlist.PosterURL {
			t.Errorf("expected poster uploaded, got %q", server.Poster(report.TargetID))
		}
	})

	t.Run("Create Without Metadata", func(t *testing.T) {
		server := newTestServer()
		report := newTestReconciler(server).Reconcile(ctx, playlist, []models.Track{songA}, syncMode)

		if server.Playlist(playlist.ID).Summary != "" {
			t.Error("expected no description")
		}
		if server.Poster(report.TargetID) != "" {
			t.Error("expected no poster")
		}
	})

	t.Run("Update Rewrites Changed Description", func(t *testing.T) {
		server := newTestServer()
		id := server.Seed(playlist.ID, playlist.Name, "Old text", "a")

		report := newTestReconciler(server).Reconcile(ctx, playlist, []models.Track{songA}, all)
		if !report.Updated {
			t.Error("expected summary change to count as update")
		}
		if got := server.Playlist(playlist.ID).Summary; got != "Long drives" {
			t.Errorf("expected description rewritten, got %q", got)
		}
		if server.Poster(id) != playlist.PosterURL {
			t.Error("expected poster refreshed on update")
		}
	})

	t.Run("Update Leaves User Description When Disabled", func(t *testing.T) {
		server := newTestServer()
		id := server.Seed(playlist.ID, playlist.Name, "My notes", "a")

		newTestReconciler(server).Reconcile(ctx, playlist, []models.Track{songA, songC}, syncMode)
		if got := server.Playlist(playlist.ID).Summary; got != "My notes" {
			t.Errorf("expected user description kept, got %q", got)
		}
		if server.Poster(id) != "" {
			t.Error("expected poster untouched")
		}
	})

	t.Run("Unchanged Target Skips Poster", func(t *testing.T) {
		server := newTestServer()
		id := server.Seed(playlist.ID, playlist.Name, "Long drives", "a")

		newTestReconciler(server).Reconcile(ctx, playlist, []models.Track{songA}, all)
		if server.Poster(id) != "" || server.Writes() != 0 {
			t.Errorf("expected no writes, got %d", server.Writes())
		}
	})
}

func TestReconcileFailures(t *testing.T) {
	ctx := context.Background()
	playlist := models.Playlist{ID: "p1", Name: "Road Trip"}
	boom := errors.New("boom")

	t.Run("Find Failure", func(t *testing.T) {
		server := newTestServer()
		server.FindErr = boom

		report := newTestReconciler(server).Reconcile(ctx, playlist, []models.Track{songA}, syncMode)
		if !errors.Is(report.Err, shared.ErrAPIRequest) || !errors.Is(report.Err, boom) {
			t.Errorf("expected fetch error wrapping cause, got %v", report.Err)
		}
	})

	tests := []struct {
		name   string
		seed   bool
		opts   models.SyncOptions
		inject func(*tu.FakeMediaServer)
	}{
		{"Create", false, syncMode, func(s *tu.FakeMediaServer) { s.CreateErr = boom }},
		{"Replace", true, syncMode, func(s *tu.FakeMediaServer) { s.ReplaceErr = boom }},
		{"Append", true, appendMode, func(s *tu.FakeMediaServer) { s.AppendErr = boom }},
		{"Summary", true, models.SyncOptions{AddPlaylistDescription: true}, func(s *tu.FakeMediaServer) { s.SummaryErr = boom }},
	}

	for _, tt := range tests {
		t.Run(tt.name+" Failure", func(t *testing.T) {
			server := newTestServer()
			if tt.seed {
				server.Seed(playlist.ID, playlist.Name, "stale", "x")
			}
			tt.inject(server)

			report := newTestReconciler(server).Reconcile(ctx, models.Playlist{ID: "p1", Name: "Road Trip", Description: "new"}, []models.Track{songA}, tt.opts)
			if !errors.Is(report.Err, shared.ErrApplyFailed) {
				t.Errorf("expected apply error, got %v", report.Err)
			}
			var applyErr *shared.ApplyError
			if errors.As(report.Err, &applyErr) && applyErr.PlaylistID != "p1" {
				t.Errorf("expected playlist ID on apply error, got %s", applyErr.PlaylistID)
			}
		})
	}

	t.Run("Cancelled Context", func(t *testing.T) {
		server := newTestServer()
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		report := newTestReconciler(server).Reconcile(cancelled, playlist, []models.Track{songA}, syncMode)
		if !errors.Is(report.Err, context.Canceled) {
			t.Errorf("expected context error, got %v", report.Err)
		}
		if server.PlaylistCount() != 0 {
			t.Error("expected no writes after cancellation")
		}
	})
}

func TestAppendPlan(t *testing.T) {
	tests := []struct {
		name     string
		existing []string
		matched  []string
		want     []string
	}{
		{"Empty Target", nil, []string{"a", "b"}, []string{"a", "b"}},
		{"Already Present", []string{"a"}, []string{"a", "c"}, []string{"c"}},
		{"Nothing New", []string{"a", "b"}, []string{"b", "a"}, nil},
		{"Extra Copy", []string{"a"}, []string{"a", "a"}, []string{"a"}},
		{"Existing Copies Cover Matched", []string{"a", "a"}, []string{"a"}, nil},
		{"Keeps Matched Order", []string{"x"}, []string{"c", "b", "c"}, []string{"c", "b", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AppendPlan(tt.existing, tt.matched); !slices.Equal(got, tt.want) {
				t.Errorf("AppendPlan(%v, %v) = %v, want %v", tt.existing, tt.matched, got, tt.want)
			}
		})
	}
}

func TestDiffCounts(t *testing.T) {
	tests := []struct {
		name           string
		existing       []string
		desired        []string
		added, removed int
	}{
		{"Same", []string{"a", "b"}, []string{"b", "a"}, 0, 0},
		{"Add", []string{"a"}, []string{"a", "b"}, 1, 0},
		{"Remove", []string{"a", "b"}, []string{"a"}, 0, 1},
		{"Duplicates", []string{"a", "a"}, []string{"a", "c"}, 1, 1},
		{"Clear", []string{"a", "b"}, nil, 0, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			added, removed := DiffCounts(tt.existing, tt.desired)
			if added != tt.added || removed != tt.removed {
				t.Errorf("DiffCounts() = %d/%d, want %d/%d", added, removed, tt.added, tt.removed)
			}
		})
	}
}

func TestKeyedMutex(t *testing.T) {
	t.Run("Serializes Same Key", func(t *testing.T) {
		locks := newKeyedMutex()
		unlock := locks.Lock("p1")

		acquired := make(chan struct{})
		go func() {
			release := locks.Lock("p1")
			close(acquired)
			release()
		}()

		select {
		case <-acquired:
			t.Fatal("second lock on the same key should wait")
		case <-time.After(20 * time.Millisecond):
		}

		unlock()
		select {
		case <-acquired:
		case <-time.After(time.Second):
			t.Fatal("second lock was never granted")
		}
	})

	t.Run("Independent Keys", func(t *testing.T) {
		locks := newKeyedMutex()
		unlock := locks.Lock("p1")
		defer unlock()

		done := make(chan struct{})
		go func() {
			locks.Lock("p2")()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("different keys should not block each other")
		}
	})

	t.Run("Releases Entries", func(t *testing.T) {
		locks := newKeyedMutex()
		locks.Lock("p1")()
		if len(locks.locks) != 0 {
			t.Errorf("expected no retained entries, got %d", len(locks.locks))
		}
	})
}
