package tasks

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/Impirs/Orbitune/internal/catalog"
	"github.com/Impirs/Orbitune/internal/models"
	"github.com/Impirs/Orbitune/internal/platforms"
	"github.com/Impirs/Orbitune/internal/shared"
	apptesting "github.com/Impirs/Orbitune/internal/testing"
)

// gatedClient blocks FavoritesPlaylistInfo until released, to hold a sync
// run in flight from the test.
type gatedClient struct {
	*apptesting.FakeClient
	gate chan struct{}
}

func (g *gatedClient) FavoritesPlaylistInfo(ctx context.Context) (*models.RemotePlaylist, error) {
	<-g.gate
	return g.FakeClient.FavoritesPlaylistInfo(ctx)
}

func newTestCoordinator(t *testing.T, client platforms.Client) *Coordinator {
	t.Helper()
	db := apptesting.OpenTestDB(t)

	registry := platforms.NewRegistry(platforms.Deps{
		Accounts: catalog.NewAccountStore(db),
		Config:   shared.DefaultConfig(),
		Logger:   shared.NewLogger(io.Discard),
	})
	if client != nil {
		registry.Register(client.Platform(), func(deps platforms.Deps, userID string) (platforms.Client, error) {
			return client, nil
		})
	}
	return NewCoordinator(db, registry, shared.NewLogger(io.Discard))
}

func TestCoordinatorRejectsUnknownPlatform(t *testing.T) {
	coordinator := newTestCoordinator(t, nil)

	_, err := coordinator.Sync(context.Background(), "user-1", "deezer", nil)
	if !errors.Is(err, shared.ErrUnknownPlatform) {
		t.Errorf("expected ErrUnknownPlatform, got %v", err)
	}
}

func TestCoordinatorRequiresConnectedAccount(t *testing.T) {
	coordinator := newTestCoordinator(t, nil)

	_, err := coordinator.Sync(context.Background(), "user-1", models.PlatformSpotify, nil)
	if !errors.Is(err, shared.ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}

func TestCoordinatorSerializesRuns(t *testing.T) {
	gated := &gatedClient{
		FakeClient: &apptesting.FakeClient{Name: "fake"},
		gate:       make(chan struct{}),
	}
	coordinator := newTestCoordinator(t, gated)

	var wg sync.WaitGroup
	wg.Add(1)
	firstErr := make(chan error, 1)
	go func() {
		defer wg.Done()
		_, err := coordinator.Sync(context.Background(), "user-1", "fake", nil)
		firstErr <- err
	}()

	// Wait until the first run is registered as in flight.
	deadline := time.Now().Add(2 * time.Second)
	for !coordinator.Running("user-1", "fake") {
		if time.Now().After(deadline) {
			t.Fatal("first sync never started")
		}
		time.Sleep(time.Millisecond)
	}

	_, err := coordinator.Sync(context.Background(), "user-1", "fake", nil)
	if !errors.Is(err, shared.ErrAlreadySyncing) {
		t.Errorf("expected ErrAlreadySyncing while a run is in flight, got %v", err)
	}

	// A different platform or user is unaffected.
	if coordinator.Running("user-2", "fake") {
		t.Error("other users should not appear as running")
	}

	close(gated.gate)
	wg.Wait()
	if err := <-firstErr; err != nil {
		t.Fatalf("first sync failed: %v", err)
	}

	// The slot frees once the run completes.
	if coordinator.Running("user-1", "fake") {
		t.Error("sync slot should release after completion")
	}

	if _, err := coordinator.Sync(context.Background(), "user-1", "fake", nil); err != nil {
		t.Errorf("sync after release should succeed, got %v", err)
	}
}

func TestCoordinatorSyncAsync(t *testing.T) {
	fake := &apptesting.FakeClient{
		Name: "fake",
		Playlists: []models.RemotePlaylist{
			{ExternalID: "pl-1", Title: "Morning Mix"},
		},
		Tracks: map[string][]models.RemoteTrack{
			"pl-1": {remoteTrack("t-1", "First Song", "Artist A")},
		},
		FavoritesInfo: models.RemotePlaylist{ExternalID: "fake:liked:1", Title: "Liked"},
	}
	coordinator := newTestCoordinator(t, fake)

	progress := make(chan ProgressUpdate, 64)
	if err := coordinator.SyncAsync(context.Background(), "user-1", "fake", progress); err != nil {
		t.Fatalf("failed to start background sync: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for coordinator.Running("user-1", "fake") {
		if time.Now().After(deadline) {
			t.Fatal("background sync never finished")
		}
		time.Sleep(time.Millisecond)
	}

	done := false
	close(progress)
	for update := range progress {
		if update.Phase == Done {
			done = true
		}
	}
	if !done {
		t.Error("expected a done progress update from the background run")
	}
}
