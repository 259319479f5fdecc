package platforms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/Impirs/Orbitune/internal/catalog"
	"github.com/Impirs/Orbitune/internal/models"
	"github.com/Impirs/Orbitune/internal/shared"
)

func newYandexTestClient(t *testing.T, store *catalog.AccountStore, apiURL string) *YandexClient {
	t.Helper()

	account, err := store.Get("user-1", models.PlatformYandex)
	if err != nil {
		t.Fatalf("failed to load test account: %v", err)
	}

	y := &YandexClient{
		userID:  "user-1",
		account: account,
		baseURL: apiURL,
	}
	y.api = newTestAPI(func() string { return "OAuth " + y.account.AccessToken }, nil)
	return y
}

func TestYandexListPlaylists(t *testing.T) {
	store, db := setupAccountStore(t, models.PlatformYandex, "")
	defer db.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/users/external-1/playlists/list", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "OAuth stale-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var resp yandexPlaylistsResponse
		resp.Result = []yandexPlaylist{
			{Kind: 3, Title: "Плейлист дня", TrackCount: 30},
			{Kind: 1017, Title: "Rock", TrackCount: 45},
		}
		json.NewEncoder(w).Encode(resp)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newYandexTestClient(t, store, server.URL)

	playlists, err := client.ListPlaylists(context.Background())
	if err != nil {
		t.Fatalf("failed to list playlists: %v", err)
	}
	if len(playlists) != 2 {
		t.Fatalf("expected 2 playlists, got %d", len(playlists))
	}
	if playlists[1].ExternalID != "1017" {
		t.Errorf("expected playlist kind as external id, got %q", playlists[1].ExternalID)
	}
}

func TestYandexListFavoriteTracks(t *testing.T) {
	store, db := setupAccountStore(t, models.PlatformYandex, "")
	defer db.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/users/external-1/likes/tracks", func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		var resp yandexLikesResponse
		count := 100
		if offset >= 100 {
			count = 5
		}
		for i := range count {
			resp.Result.Tracks = append(resp.Result.Tracks, yandexTrack{
				ID:         fmt.Sprintf("%d", offset+i),
				Title:      fmt.Sprintf("Track %d", offset+i),
				Artists:    []yandexArtist{{Name: "First"}, {Name: "Second"}},
				DurationMS: 200000,
			})
		}
		resp.Result.Pager.Total = 105
		json.NewEncoder(w).Encode(resp)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newYandexTestClient(t, store, server.URL)

	tracks, err := client.ListFavoriteTracks(context.Background())
	if err != nil {
		t.Fatalf("failed to list favorites: %v", err)
	}
	if len(tracks) != 105 {
		t.Fatalf("expected 105 tracks across pages, got %d", len(tracks))
	}
	if tracks[0].Artist != "First" {
		t.Errorf("expected first artist only, got %q", tracks[0].Artist)
	}
	if tracks[104].ExternalID != "104" {
		t.Errorf("pagination broke ordering, last id %s", tracks[104].ExternalID)
	}
}

func TestYandexFavoritesPlaylistInfo(t *testing.T) {
	store, db := setupAccountStore(t, models.PlatformYandex, "")
	defer db.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/account/status", func(w http.ResponseWriter, r *http.Request) {
		var resp yandexStatusResponse
		resp.Result.Account.UID = 42
		resp.Result.Account.Login = "listener"
		json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/users/external-1/likes/tracks", func(w http.ResponseWriter, r *http.Request) {
		var resp yandexLikesResponse
		resp.Result.Pager.Total = 7
		json.NewEncoder(w).Encode(resp)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newYandexTestClient(t, store, server.URL)

	info, err := client.FavoritesPlaylistInfo(context.Background())
	if err != nil {
		t.Fatalf("failed to get favorites info: %v", err)
	}
	if info.ExternalID != "yandex:liked:42" {
		t.Errorf("expected uid-scoped external id, got %q", info.ExternalID)
	}
	if info.TrackCount != 7 {
		t.Errorf("expected liked count 7, got %d", info.TrackCount)
	}
	if !client.IsNativeFavorites(*info) {
		t.Error("favorites pseudo-playlist should identify as native favorites")
	}
}

func TestYandexExpiredAuth(t *testing.T) {
	store, db := setupAccountStore(t, models.PlatformYandex, "")
	defer db.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newYandexTestClient(t, store, server.URL)

	// No refresh flow exists, so the gate fails immediately.
	_, err := client.FavoritesPlaylistInfo(context.Background())
	if !errors.Is(err, shared.ErrAuthExpired) {
		t.Fatalf("expected ErrAuthExpired, got %v", err)
	}

	tracks, err := client.ListFavoriteTracks(context.Background())
	if err != nil {
		t.Fatalf("expected degraded empty result, got error: %v", err)
	}
	if len(tracks) != 0 {
		t.Errorf("expected no tracks, got %d", len(tracks))
	}
}
