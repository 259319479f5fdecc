package tasks

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/Impirs/Orbitune/internal/catalog"
	"github.com/Impirs/Orbitune/internal/models"
	"github.com/Impirs/Orbitune/internal/shared"
	apptesting "github.com/Impirs/Orbitune/internal/testing"
)

func remoteTrack(id, title, artist string) models.RemoteTrack {
	return models.RemoteTrack{ExternalID: id, Title: title, Artist: artist}
}

// newLibraryFake builds a fake platform with two playlists and a liked list.
// The track "Shared Song" appears in both a playlist and the favorites.
func newLibraryFake() *apptesting.FakeClient {
	return &apptesting.FakeClient{
		Name: "fake",
		Playlists: []models.RemotePlaylist{
			{ExternalID: "pl-1", Title: "Morning Mix", TrackCount: 2},
			{ExternalID: "pl-2", Title: "Workout", TrackCount: 1},
		},
		Tracks: map[string][]models.RemoteTrack{
			"pl-1": {
				remoteTrack("t-1", "First Song", "Artist A"),
				remoteTrack("t-2", "Shared Song", "Artist B"),
			},
			"pl-2": {
				remoteTrack("t-3", "Gym Anthem", "Artist C"),
			},
		},
		Favorites: []models.RemoteTrack{
			remoteTrack("t-2", "Shared Song", "Artist B"),
			remoteTrack("t-4", "Quiet Song", "Artist D"),
		},
		FavoritesInfo: models.RemotePlaylist{ExternalID: "fake:liked:1", Title: "Liked"},
	}
}

func newSynchronizer(t *testing.T, client *apptesting.FakeClient) (*Synchronizer, *catalog.Catalog) {
	t.Helper()
	db := apptesting.OpenTestDB(t)
	return NewSynchronizer(db, client, shared.NewLogger(io.Discard), "user-1"), catalog.New(db)
}

func TestSynchronizerRun(t *testing.T) {
	fake := newLibraryFake()
	sync, cat := newSynchronizer(t, fake)

	result, err := sync.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("sync run failed: %v", err)
	}
	if result.Playlists != 2 {
		t.Errorf("expected 2 playlists reconciled, got %d", result.Playlists)
	}
	if !result.FavoritesSynced {
		t.Error("expected favorites to be reconciled")
	}

	// Two regular playlists plus the favorites pseudo-playlist.
	playlists, err := cat.ListPlaylists("user-1", "fake")
	if err != nil {
		t.Fatalf("failed to list playlists: %v", err)
	}
	if len(playlists) != 3 {
		t.Fatalf("expected 3 stored playlists, got %d", len(playlists))
	}

	t.Run("membership order matches remote order", func(t *testing.T) {
		for _, p := range playlists {
			if p.ExternalID != "pl-1" {
				continue
			}
			tracks, err := cat.ListPlaylistTracks(p.ID)
			if err != nil {
				t.Fatalf("failed to list tracks: %v", err)
			}
			if len(tracks) != 2 {
				t.Fatalf("expected 2 tracks, got %d", len(tracks))
			}
			if tracks[0].Title != "First Song" || tracks[0].OrderIndex != 0 {
				t.Errorf("expected First Song at index 0, got %s at %d", tracks[0].Title, tracks[0].OrderIndex)
			}
			if tracks[1].Title != "Shared Song" || tracks[1].OrderIndex != 1 {
				t.Errorf("expected Shared Song at index 1, got %s at %d", tracks[1].Title, tracks[1].OrderIndex)
			}
		}
	})

	t.Run("one availability row per track and platform", func(t *testing.T) {
		// Four distinct tracks; Shared Song appears twice but dedupes.
		count, err := cat.CountAvailability("fake")
		if err != nil {
			t.Fatalf("failed to count availability: %v", err)
		}
		if count != 4 {
			t.Errorf("expected 4 availability rows, got %d", count)
		}
	})

	t.Run("favorites pointer recorded", func(t *testing.T) {
		fp, err := cat.GetFavorites("user-1", "fake")
		if err != nil {
			t.Fatalf("failed to get favorites pointer: %v", err)
		}
		if fp.PlaylistExternalID != "fake:liked:1" {
			t.Errorf("unexpected favorites external id %q", fp.PlaylistExternalID)
		}
		if fp.TrackCount != 2 {
			t.Errorf("expected favorites track count 2, got %d", fp.TrackCount)
		}
	})
}

func TestSynchronizerIdempotence(t *testing.T) {
	fake := newLibraryFake()
	sync, cat := newSynchronizer(t, fake)

	for range 2 {
		if _, err := sync.Run(context.Background(), nil); err != nil {
			t.Fatalf("sync run failed: %v", err)
		}
	}

	playlists, err := cat.ListPlaylists("user-1", "fake")
	if err != nil {
		t.Fatalf("failed to list playlists: %v", err)
	}
	if len(playlists) != 3 {
		t.Errorf("re-running sync should not duplicate playlists, got %d", len(playlists))
	}

	count, err := cat.CountAvailability("fake")
	if err != nil {
		t.Fatalf("failed to count availability: %v", err)
	}
	if count != 4 {
		t.Errorf("re-running sync should not duplicate availability, got %d rows", count)
	}

	for _, p := range playlists {
		tracks, err := cat.ListPlaylistTracks(p.ID)
		if err != nil {
			t.Fatalf("failed to list tracks: %v", err)
		}
		for i, track := range tracks {
			if track.OrderIndex != i {
				t.Errorf("playlist %s has sparse order index %d at position %d", p.Title, track.OrderIndex, i)
			}
		}
	}
}

func TestSynchronizerCollapsesDuplicates(t *testing.T) {
	fake := newLibraryFake()
	fake.Tracks["pl-1"] = []models.RemoteTrack{
		remoteTrack("t-1", "First Song", "Artist A"),
		remoteTrack("t-1", "First Song", "Artist A"),
		remoteTrack("t-2", "Shared Song", "Artist B"),
	}
	fake.Playlists = fake.Playlists[:1]
	sync, cat := newSynchronizer(t, fake)

	if _, err := sync.Run(context.Background(), nil); err != nil {
		t.Fatalf("sync run failed: %v", err)
	}

	playlists, _ := cat.ListPlaylists("user-1", "fake")
	for _, p := range playlists {
		if p.ExternalID != "pl-1" {
			continue
		}
		tracks, err := cat.ListPlaylistTracks(p.ID)
		if err != nil {
			t.Fatalf("failed to list tracks: %v", err)
		}
		if len(tracks) != 2 {
			t.Fatalf("duplicate track should collapse to one row, got %d rows", len(tracks))
		}
		if tracks[0].Title != "First Song" || tracks[1].OrderIndex != 1 {
			t.Error("collapsed membership should keep first occurrence and stay dense")
		}
		if p.TrackCount != 2 {
			t.Errorf("stored track count should reflect written rows, got %d", p.TrackCount)
		}
	}
}

func TestSynchronizerPrunesVanishedPlaylists(t *testing.T) {
	fake := newLibraryFake()
	sync, cat := newSynchronizer(t, fake)

	if _, err := sync.Run(context.Background(), nil); err != nil {
		t.Fatalf("first sync run failed: %v", err)
	}

	// Workout disappears remotely.
	fake.Playlists = fake.Playlists[:1]
	result, err := sync.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("second sync run failed: %v", err)
	}
	if result.Pruned != 1 {
		t.Errorf("expected 1 pruned playlist, got %d", result.Pruned)
	}

	playlists, err := cat.ListPlaylists("user-1", "fake")
	if err != nil {
		t.Fatalf("failed to list playlists: %v", err)
	}
	if len(playlists) != 2 {
		t.Fatalf("expected 2 playlists after prune, got %d", len(playlists))
	}
	for _, p := range playlists {
		if p.ExternalID == "pl-2" {
			t.Error("vanished playlist should have been deleted")
		}
	}

	// The pruned playlist's membership rows cascade with it, leaving only
	// Morning Mix (2) and the favorites list (2).
	memberships, err := cat.CountMemberships("fake")
	if err != nil {
		t.Fatalf("failed to count memberships: %v", err)
	}
	if memberships != 4 {
		t.Errorf("expected 4 membership rows after prune, got %d", memberships)
	}

	// Canonical tracks and availability survive the prune.
	count, err := cat.CountAvailability("fake")
	if err != nil {
		t.Fatalf("failed to count availability: %v", err)
	}
	if count != 4 {
		t.Errorf("prune should not touch availability, got %d rows", count)
	}
}

func TestSynchronizerPartialFailure(t *testing.T) {
	fake := newLibraryFake()
	fake.TracksErr = map[string]error{"pl-2": shared.ErrRemoteUnavailable}
	sync, cat := newSynchronizer(t, fake)

	result, err := sync.Run(context.Background(), nil)
	if !errors.Is(err, shared.ErrSyncFailed) {
		t.Fatalf("expected ErrSyncFailed, got %v", err)
	}
	if len(result.FailedPlaylists) != 1 || result.FailedPlaylists[0] != "Workout" {
		t.Errorf("expected Workout to be the failed playlist, got %v", result.FailedPlaylists)
	}
	if result.Playlists != 1 {
		t.Errorf("expected the healthy playlist to commit, got %d", result.Playlists)
	}
	if !result.FavoritesSynced {
		t.Error("favorites should still sync after a playlist failure")
	}

	// The healthy playlist's data is durable despite the run failing.
	playlists, err := cat.ListPlaylists("user-1", "fake")
	if err != nil {
		t.Fatalf("failed to list playlists: %v", err)
	}
	found := false
	for _, p := range playlists {
		if p.ExternalID == "pl-1" && p.TrackCount == 2 {
			found = true
		}
	}
	if !found {
		t.Error("committed playlist missing after partial failure")
	}
}

func TestSynchronizerAuthGate(t *testing.T) {
	fake := newLibraryFake()
	sync, cat := newSynchronizer(t, fake)

	if _, err := sync.Run(context.Background(), nil); err != nil {
		t.Fatalf("seed sync run failed: %v", err)
	}

	// Token expires: the favorites gate fails before anything is pruned,
	// even though ListPlaylists would degrade to an empty snapshot.
	fake.InfoErr = shared.ErrAuthExpired
	fake.PlaylistsErr = nil
	fake.Playlists = nil

	_, err := sync.Run(context.Background(), nil)
	if !errors.Is(err, shared.ErrAuthExpired) {
		t.Fatalf("expected ErrAuthExpired, got %v", err)
	}

	playlists, err := cat.ListPlaylists("user-1", "fake")
	if err != nil {
		t.Fatalf("failed to list playlists: %v", err)
	}
	if len(playlists) != 3 {
		t.Errorf("expired auth must not prune the mirror, got %d playlists", len(playlists))
	}
}

func TestSynchronizerProgressUpdates(t *testing.T) {
	fake := newLibraryFake()
	sync, _ := newSynchronizer(t, fake)

	progress := make(chan ProgressUpdate, 64)
	if _, err := sync.Run(context.Background(), progress); err != nil {
		t.Fatalf("sync run failed: %v", err)
	}
	close(progress)

	var phases []Phase
	for update := range progress {
		phases = append(phases, update.Phase)
	}
	if len(phases) == 0 {
		t.Fatal("expected progress updates")
	}
	if phases[0] != Fetching {
		t.Errorf("expected first phase to be fetching, got %s", phases[0])
	}
	if phases[len(phases)-1] != Done {
		t.Errorf("expected last phase to be done, got %s", phases[len(phases)-1])
	}
}
