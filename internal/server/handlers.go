package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/Impirs/Orbitune/internal/catalog"
	"github.com/Impirs/Orbitune/internal/platforms"
	"github.com/Impirs/Orbitune/internal/shared"
	"github.com/Impirs/Orbitune/internal/tasks"
)

// APIHandler serves the JSON API over the canonical catalog and the sync
// coordinator. Implements the [Handler] interface for registration with a
// [Router].
type APIHandler struct {
	db          *sql.DB
	registry    *platforms.Registry
	coordinator *tasks.Coordinator
	accounts    *catalog.AccountStore
	logger      *log.Logger
	mux         *http.ServeMux
}

// NewAPIHandler creates the API handler and registers its routes.
func NewAPIHandler(db *sql.DB, registry *platforms.Registry, coordinator *tasks.Coordinator, logger *log.Logger) *APIHandler {
	h := &APIHandler{
		db:          db,
		registry:    registry,
		coordinator: coordinator,
		accounts:    catalog.NewAccountStore(db),
		logger:      logger,
		mux:         http.NewServeMux(),
	}

	h.mux.HandleFunc("POST /api/sync/{platform}", h.startSync)
	h.mux.HandleFunc("GET /api/playlists", h.listPlaylists)
	h.mux.HandleFunc("GET /api/playlists/{id}", h.getPlaylist)
	h.mux.HandleFunc("GET /api/playlists/{id}/tracks", h.listPlaylistTracks)
	h.mux.HandleFunc("GET /api/favorites/{platform}", h.getFavorites)
	h.mux.HandleFunc("GET /api/accounts", h.listAccounts)
	h.mux.HandleFunc("GET /api/stats/{platform}", h.getStats)
	return h
}

// Routes returns the HTTP routes this handler serves.
func (h *APIHandler) Routes() []string {
	return []string{"/api/"}
}

// ServeHTTP dispatches to the handler's route table.
func (h *APIHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// userID resolves the user the request acts for. The engine has no session
// layer; callers identify themselves with a query parameter.
func userID(r *http.Request) string {
	if user := r.URL.Query().Get("user"); user != "" {
		return user
	}
	return "default"
}

type syncResponse struct {
	Status          string   `json:"status"`
	Platform        string   `json:"platform"`
	Playlists       int      `json:"playlists,omitempty"`
	Tracks          int      `json:"tracks,omitempty"`
	Pruned          int      `json:"pruned,omitempty"`
	FavoritesSynced bool     `json:"favorites_synced,omitempty"`
	FailedPlaylists []string `json:"failed_playlists,omitempty"`
}

// startSync kicks off a sync run for (user, platform). By default the run
// continues in the background and the request returns 202; with ?wait=true
// the request blocks and returns the run result.
func (h *APIHandler) startSync(w http.ResponseWriter, r *http.Request) {
	platform := r.PathValue("platform")
	user := userID(r)

	if r.URL.Query().Get("wait") == "true" {
		result, err := h.coordinator.Sync(r.Context(), user, platform, nil)
		if err != nil && result == nil {
			h.writeError(w, err)
			return
		}

		resp := syncResponse{
			Status:          "completed",
			Platform:        platform,
			Playlists:       result.Playlists,
			Tracks:          result.Tracks,
			Pruned:          result.Pruned,
			FavoritesSynced: result.FavoritesSynced,
			FailedPlaylists: result.FailedPlaylists,
		}
		if err != nil {
			resp.Status = "failed"
		}
		h.writeJSON(w, http.StatusOK, resp)
		return
	}

	// The request context dies when the response is written; the background
	// run gets its own.
	if err := h.coordinator.SyncAsync(context.Background(), user, platform, nil); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, syncResponse{Status: "started", Platform: platform})
}

type playlistResponse struct {
	ID         string `json:"id"`
	ExternalID string `json:"external_id"`
	Platform   string `json:"platform"`
	Title      string `json:"title"`
	TrackCount int    `json:"track_count"`
}

func (h *APIHandler) listPlaylists(w http.ResponseWriter, r *http.Request) {
	playlists, err := catalog.New(h.db).ListPlaylists(userID(r), r.URL.Query().Get("platform"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := make([]playlistResponse, 0, len(playlists))
	for _, p := range playlists {
		resp = append(resp, playlistResponse{
			ID:         p.ID,
			ExternalID: p.ExternalID,
			Platform:   p.SourcePlatform,
			Title:      p.Title,
			TrackCount: p.TrackCount,
		})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *APIHandler) getPlaylist(w http.ResponseWriter, r *http.Request) {
	playlist, err := catalog.New(h.db).GetPlaylist(r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, playlistResponse{
		ID:         playlist.ID,
		ExternalID: playlist.ExternalID,
		Platform:   playlist.SourcePlatform,
		Title:      playlist.Title,
		TrackCount: playlist.TrackCount,
	})
}

type trackResponse struct {
	Position        int    `json:"position"`
	Title           string `json:"title"`
	Artist          string `json:"artist"`
	Album           string `json:"album,omitempty"`
	DurationSeconds *int   `json:"duration_seconds,omitempty"`
}

func (h *APIHandler) listPlaylistTracks(w http.ResponseWriter, r *http.Request) {
	cat := catalog.New(h.db)

	// 404 for an unknown playlist rather than an empty list.
	if _, err := cat.GetPlaylist(r.PathValue("id")); err != nil {
		h.writeError(w, err)
		return
	}

	tracks, err := cat.ListPlaylistTracks(r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := make([]trackResponse, 0, len(tracks))
	for _, t := range tracks {
		resp = append(resp, trackResponse{
			Position:        t.OrderIndex,
			Title:           t.Title,
			Artist:          t.Artist,
			Album:           t.Album,
			DurationSeconds: t.DurationSeconds,
		})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *APIHandler) getFavorites(w http.ResponseWriter, r *http.Request) {
	fp, err := catalog.New(h.db).GetFavorites(userID(r), r.PathValue("platform"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"platform":    fp.Platform,
		"external_id": fp.PlaylistExternalID,
		"title":       fp.Title,
		"track_count": fp.TrackCount,
		"updated_at":  fp.UpdatedAt,
	})
}

func (h *APIHandler) listAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accounts.List(userID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}

	// Tokens never leave the process.
	resp := make([]map[string]any, 0, len(accounts))
	for _, a := range accounts {
		resp = append(resp, map[string]any{
			"platform":         a.Platform,
			"external_user_id": a.ExternalUserID,
			"connected_at":     a.CreatedAt,
		})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *APIHandler) getStats(w http.ResponseWriter, r *http.Request) {
	client, err := h.registry.Client(userID(r), r.PathValue("platform"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	stats, err := client.Stats(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"external_user_id": stats.ExternalUserID,
		"display_name":     stats.DisplayName,
		"songs":            stats.Songs,
		"playlists":        stats.Playlists,
		"subscription":     stats.Subscription,
	})
}

func (h *APIHandler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode response", "err", err)
	}
}

// writeError maps sentinel errors onto HTTP statuses.
func (h *APIHandler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, shared.ErrUnknownPlatform), errors.Is(err, shared.ErrPlaylistNotFound):
		status = http.StatusNotFound
	case errors.Is(err, shared.ErrNotConnected):
		status = http.StatusBadRequest
	case errors.Is(err, shared.ErrAlreadySyncing):
		status = http.StatusConflict
	case errors.Is(err, shared.ErrAuthExpired):
		status = http.StatusUnauthorized
	case errors.Is(err, shared.ErrRemoteUnavailable):
		status = http.StatusBadGateway
	}

	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}
