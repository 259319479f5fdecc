// package tasks implements library synchronization runs against connected
// platforms.
//
// The core abstraction is Synchronizer, which pulls one platform's full
// library snapshot through its adapter and reconciles it into the canonical
// catalog. Coordinator serializes runs so the same (user, platform) pair is
// never synced concurrently. Operations emit progress updates via channels
// for non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/Impirs/Orbitune/internal/catalog"
	"github.com/Impirs/Orbitune/internal/models"
	"github.com/Impirs/Orbitune/internal/platforms"
	"github.com/Impirs/Orbitune/internal/shared"
)

// RunResult summarizes a completed sync run.
type RunResult struct {
	Platform        string   // Platform that was synced
	Playlists       int      // Playlists reconciled successfully
	Tracks          int      // Membership rows written across all playlists
	Pruned          int      // Local playlists deleted because they vanished remotely
	FavoritesSynced bool     // Whether the favorites pseudo-playlist reconciled
	FailedPlaylists []string // Titles of playlists whose reconciliation failed
}

// Synchronizer reconciles one user's library on one platform into the
// canonical catalog. Each playlist is reconciled in its own transaction, so a
// failure mid-run leaves every already-committed playlist intact.
type Synchronizer struct {
	db     *sql.DB
	client platforms.Client
	logger *log.Logger
	userID string
}

// NewSynchronizer creates a Synchronizer for one user and one platform
// adapter.
func NewSynchronizer(db *sql.DB, client platforms.Client, logger *log.Logger, userID string) *Synchronizer {
	return &Synchronizer{
		db:     db,
		client: client,
		logger: logger.With("platform", client.Platform(), "user", userID),
		userID: userID,
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (s *Synchronizer) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Run performs a full snapshot sync of the platform's library.
//
// The favorites metadata fetch doubles as the credential check: nothing is
// pruned or written until the platform has proven the token works, so an
// expired token can never empty the local mirror. After the gate, vanished
// playlists are pruned, each surviving playlist is reconciled in its own
// transaction, and the liked-tracks collection is reconciled last. A playlist
// that fails is skipped, not fatal; if any failed the run reports
// shared.ErrSyncFailed after finishing the rest.
func (s *Synchronizer) Run(ctx context.Context, progress chan<- ProgressUpdate) (*RunResult, error) {
	platform := s.client.Platform()
	result := &RunResult{Platform: platform}

	s.sendProgress(progress, fetchingUpdate(platform))

	favorites, err := s.client.FavoritesPlaylistInfo(ctx)
	if err != nil {
		s.sendProgress(progress, failedUpdate(err))
		return nil, err
	}

	remote, err := s.client.ListPlaylists(ctx)
	if err != nil {
		s.sendProgress(progress, failedUpdate(err))
		return nil, err
	}

	playlists := make([]models.RemotePlaylist, 0, len(remote))
	surviving := []string{favorites.ExternalID}
	for _, p := range remote {
		if s.client.IsNativeFavorites(p) {
			continue
		}
		playlists = append(playlists, p)
		surviving = append(surviving, p.ExternalID)
	}

	pruned, err := catalog.New(s.db).PruneVanishedPlaylists(s.userID, platform, surviving)
	if err != nil {
		s.sendProgress(progress, failedUpdate(err))
		return nil, err
	}
	result.Pruned = pruned
	if pruned > 0 {
		s.logger.Info("pruned vanished playlists", "count", pruned)
	}

	// One availability upsert per (track, platform) for the whole run.
	seen := make(map[string]struct{})
	total := len(playlists) + 1

	for i, p := range playlists {
		s.sendProgress(progress, reconcilingUpdate(i+1, total, p.Title))

		written, err := s.syncPlaylist(ctx, p, seen)
		if err != nil {
			s.logger.Error("playlist sync failed", "playlist", p.Title, "err", err)
			s.sendProgress(progress, playlistFailedUpdate(i+1, total, p.Title, err))
			result.FailedPlaylists = append(result.FailedPlaylists, p.Title)
			continue
		}
		result.Playlists++
		result.Tracks += written
	}

	s.sendProgress(progress, favoritesUpdate(favorites.Title))
	written, err := s.syncFavorites(ctx, *favorites, seen)
	if err != nil {
		s.logger.Error("favorites sync failed", "err", err)
		result.FailedPlaylists = append(result.FailedPlaylists, favorites.Title)
	} else {
		result.FavoritesSynced = true
		result.Tracks += written
	}

	if len(result.FailedPlaylists) > 0 {
		err := fmt.Errorf("%w: %d of %d collections failed", shared.ErrSyncFailed, len(result.FailedPlaylists), total)
		s.sendProgress(progress, failedUpdate(err))
		return result, err
	}

	s.sendProgress(progress, doneUpdate(result.Playlists, result.Tracks))
	return result, nil
}

// syncPlaylist reconciles one remote playlist inside a single transaction.
func (s *Synchronizer) syncPlaylist(ctx context.Context, remote models.RemotePlaylist, seen map[string]struct{}) (int, error) {
	tracks, err := s.client.ListPlaylistTracks(ctx, remote.ExternalID)
	if err != nil {
		return 0, err
	}

	return s.reconcile(remote, tracks, seen, nil)
}

// syncFavorites reconciles the liked-tracks pseudo-playlist and writes the
// favorites pointer in the same transaction.
func (s *Synchronizer) syncFavorites(ctx context.Context, info models.RemotePlaylist, seen map[string]struct{}) (int, error) {
	tracks, err := s.client.ListFavoriteTracks(ctx)
	if err != nil {
		return 0, err
	}

	pointer := &models.FavoritesPointer{
		UserID:             s.userID,
		Platform:           s.client.Platform(),
		PlaylistExternalID: info.ExternalID,
		Title:              info.Title,
		Description:        info.Description,
	}
	return s.reconcile(info, tracks, seen, pointer)
}

// reconcile writes one collection's snapshot: playlist row, canonical tracks,
// availability, and the full membership replacement, all in one transaction.
// The run-scoped seen set is only updated after commit, so a rolled-back
// playlist does not suppress availability writes for a later one.
func (s *Synchronizer) reconcile(remote models.RemotePlaylist, tracks []models.RemoteTrack, seen map[string]struct{}, pointer *models.FavoritesPointer) (int, error) {
	platform := s.client.Platform()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	cat := catalog.New(tx)

	playlist, err := cat.UpsertPlaylist(s.userID, platform, remote, false)
	if err != nil {
		return 0, err
	}

	pending := make(map[string]struct{})
	ordered := make([]string, 0, len(tracks))
	for _, rt := range tracks {
		track, err := cat.FindOrCreateTrack(rt.Title, rt.Artist, rt.Album, rt.DurationSeconds, rt.ArtworkURL)
		if err != nil {
			return 0, err
		}

		key := track.ID + "/" + platform
		_, done := seen[key]
		_, queued := pending[key]
		if !done && !queued {
			if err := cat.UpsertAvailability(track.ID, platform, rt.ExternalID, rt.URL); err != nil {
				return 0, err
			}
			pending[key] = struct{}{}
		}
		ordered = append(ordered, track.ID)
	}

	written, err := cat.ReplaceMembership(playlist.ID, platform, ordered)
	if err != nil {
		return 0, err
	}
	if err := cat.SetPlaylistTrackCount(playlist.ID, written); err != nil {
		return 0, err
	}

	if pointer != nil {
		pointer.TrackCount = written
		if err := cat.UpsertFavoritesPointer(*pointer); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit playlist sync: %w", err)
	}
	for key := range pending {
		seen[key] = struct{}{}
	}
	return written, nil
}
