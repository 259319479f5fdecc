package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Impirs/Orbitune/internal/catalog"
	"github.com/Impirs/Orbitune/internal/models"
	"github.com/Impirs/Orbitune/internal/platforms"
	"github.com/Impirs/Orbitune/internal/shared"
	"github.com/Impirs/Orbitune/internal/tasks"
	apptesting "github.com/Impirs/Orbitune/internal/testing"
)

func newTestServer(t *testing.T, fake *apptesting.FakeClient) (*httptest.Server, *catalog.Catalog) {
	t.Helper()

	db := apptesting.OpenTestDB(t)
	logger := shared.NewLogger(io.Discard)

	registry := platforms.NewRegistry(platforms.Deps{
		Accounts: catalog.NewAccountStore(db),
		Config:   shared.DefaultConfig(),
		Logger:   logger,
	})
	if fake != nil {
		registry.Register(fake.Platform(), func(deps platforms.Deps, userID string) (platforms.Client, error) {
			return fake, nil
		})
	}

	coordinator := tasks.NewCoordinator(db, registry, logger)

	router := NewBasicRouter()
	router.Use(Logging(logger))
	router.Handler(NewAPIHandler(db, registry, coordinator, logger))

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server, catalog.New(db)
}

func libraryFake() *apptesting.FakeClient {
	return &apptesting.FakeClient{
		Name: "fake",
		Playlists: []models.RemotePlaylist{
			{ExternalID: "pl-1", Title: "Morning Mix", TrackCount: 1},
		},
		Tracks: map[string][]models.RemoteTrack{
			"pl-1": {{ExternalID: "t-1", Title: "First Song", Artist: "Artist A"}},
		},
		Favorites: []models.RemoteTrack{
			{ExternalID: "t-2", Title: "Quiet Song", Artist: "Artist D"},
		},
		FavoritesInfo: models.RemotePlaylist{ExternalID: "fake:liked:1", Title: "Liked"},
	}
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
	}
	return resp.StatusCode
}

func TestSyncEndpoint(t *testing.T) {
	server, cat := newTestServer(t, libraryFake())

	t.Run("blocking sync returns run result", func(t *testing.T) {
		resp, err := http.Post(server.URL+"/api/sync/fake?wait=true", "application/json", nil)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}

		var body syncResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if body.Status != "completed" || body.Playlists != 1 {
			t.Errorf("unexpected sync response %+v", body)
		}

		playlists, err := cat.ListPlaylists("default", "fake")
		if err != nil {
			t.Fatalf("failed to list playlists: %v", err)
		}
		if len(playlists) != 2 {
			t.Errorf("expected playlist and favorites rows, got %d", len(playlists))
		}
	})

	t.Run("unknown platform is 404", func(t *testing.T) {
		resp, err := http.Post(server.URL+"/api/sync/deezer", "application/json", nil)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("expected 404, got %d", resp.StatusCode)
		}
	})

	t.Run("not connected platform is 400", func(t *testing.T) {
		resp, err := http.Post(server.URL+"/api/sync/spotify", "application/json", nil)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp.StatusCode)
		}
	})

	t.Run("async sync returns accepted", func(t *testing.T) {
		resp, err := http.Post(server.URL+"/api/sync/fake", "application/json", nil)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusAccepted {
			t.Errorf("expected 202, got %d", resp.StatusCode)
		}
		// Let the background run settle before the server shuts down.
		time.Sleep(50 * time.Millisecond)
	})
}

func TestPlaylistEndpoints(t *testing.T) {
	server, _ := newTestServer(t, libraryFake())

	if status := getJSON(t, server.URL+"/api/sync/fake?wait=true", nil); status != http.StatusMethodNotAllowed {
		t.Fatalf("GET on sync route should be rejected, got %d", status)
	}
	resp, err := http.Post(server.URL+"/api/sync/fake?wait=true", "application/json", nil)
	if err != nil {
		t.Fatalf("seed sync failed: %v", err)
	}
	resp.Body.Close()

	var playlists []playlistResponse
	if status := getJSON(t, server.URL+"/api/playlists?platform=fake", &playlists); status != http.StatusOK {
		t.Fatalf("expected 200 listing playlists, got %d", status)
	}
	if len(playlists) != 2 {
		t.Fatalf("expected 2 playlists, got %d", len(playlists))
	}

	var morning playlistResponse
	for _, p := range playlists {
		if p.ExternalID == "pl-1" {
			morning = p
		}
	}
	if morning.ID == "" {
		t.Fatal("synced playlist missing from listing")
	}

	t.Run("tracks in order", func(t *testing.T) {
		var tracks []trackResponse
		if status := getJSON(t, server.URL+"/api/playlists/"+morning.ID+"/tracks", &tracks); status != http.StatusOK {
			t.Fatalf("expected 200 listing tracks, got %d", status)
		}
		if len(tracks) != 1 || tracks[0].Title != "First Song" || tracks[0].Position != 0 {
			t.Errorf("unexpected track listing %+v", tracks)
		}
	})

	t.Run("unknown playlist is 404", func(t *testing.T) {
		if status := getJSON(t, server.URL+"/api/playlists/nope/tracks", nil); status != http.StatusNotFound {
			t.Errorf("expected 404, got %d", status)
		}
	})

	t.Run("favorites summary", func(t *testing.T) {
		var body map[string]any
		if status := getJSON(t, server.URL+"/api/favorites/fake", &body); status != http.StatusOK {
			t.Fatalf("expected 200, got %d", status)
		}
		if body["external_id"] != "fake:liked:1" {
			t.Errorf("unexpected favorites body %+v", body)
		}
		if body["track_count"] != float64(1) {
			t.Errorf("expected favorites track count 1, got %v", body["track_count"])
		}
	})

	t.Run("favorites for unsynced platform is 404", func(t *testing.T) {
		if status := getJSON(t, server.URL+"/api/favorites/spotify", nil); status != http.StatusNotFound {
			t.Errorf("expected 404, got %d", status)
		}
	})
}
