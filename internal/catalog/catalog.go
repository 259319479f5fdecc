// package catalog implements the canonical-catalog persistence layer: the
// upsert and diff primitives the synchronizer uses to reconcile remote
// library snapshots into local storage.
//
// Every operation runs against the DBTX supplied at construction, so the
// caller decides transaction boundaries: the synchronizer wraps one
// playlist's whole reconciliation in a single *sql.Tx, while read-only
// callers pass *sql.DB directly.
package catalog

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Impirs/Orbitune/internal/models"
	"github.com/Impirs/Orbitune/internal/shared"
)

// DBTX is the subset of database/sql operations the catalog needs,
// satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// Catalog provides upsert/diff primitives over the canonical entity graph.
type Catalog struct {
	db DBTX
}

// New creates a Catalog scoped to the given session or transaction.
func New(db DBTX) *Catalog {
	return &Catalog{db: db}
}

// FindOrCreateTrack looks up a canonical track by exact (title, artist) match
// and creates it if absent. Matching is case- and whitespace-sensitive, so
// cross-platform spelling variants produce distinct rows.
func (c *Catalog) FindOrCreateTrack(title, artist, album string, durationSeconds *int, artworkURL string) (*models.Track, error) {
	track, err := c.findTrack(title, artist)
	if err == nil {
		return track, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to look up track: %w", err)
	}

	// ON CONFLICT DO NOTHING keeps a concurrent sync of another platform
	// from failing when it observes the same new track first.
	query := `
		INSERT INTO tracks (id, title, artist, album, duration_seconds, artwork_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (title, artist) DO NOTHING
	`

	_, err = c.db.Exec(query,
		shared.GenerateID(),
		title,
		artist,
		nullableString(album),
		durationSeconds,
		nullableString(artworkURL),
		time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert track: %w", err)
	}

	track, err = c.findTrack(title, artist)
	if err != nil {
		return nil, fmt.Errorf("failed to re-read track after insert: %w", err)
	}
	return track, nil
}

func (c *Catalog) findTrack(title, artist string) (*models.Track, error) {
	query := `
		SELECT id, title, artist, album, duration_seconds, artwork_url, created_at
		FROM tracks
		WHERE title = ? AND artist = ?
	`

	var (
		track    models.Track
		album    sql.NullString
		duration sql.NullInt64
		artwork  sql.NullString
	)

	err := c.db.QueryRow(query, title, artist).Scan(
		&track.ID, &track.Title, &track.Artist, &album, &duration, &artwork, &track.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	track.Album = album.String
	track.ArtworkURL = artwork.String
	if duration.Valid {
		d := int(duration.Int64)
		track.DurationSeconds = &d
	}
	return &track, nil
}

// UpsertAvailability creates or refreshes the (track, platform) availability
// row, setting available=true and bumping last_checked_at. The unique
// constraint guarantees at most one row per pair even under concurrent syncs.
func (c *Catalog) UpsertAvailability(trackID, platform, externalID, url string) error {
	query := `
		INSERT INTO track_availability (id, track_id, platform, external_id, url, available, last_checked_at)
		VALUES (?, ?, ?, ?, ?, 1, ?)
		ON CONFLICT (track_id, platform) DO UPDATE SET
			external_id = excluded.external_id,
			url = COALESCE(excluded.url, track_availability.url),
			available = 1,
			last_checked_at = excluded.last_checked_at
	`

	_, err := c.db.Exec(query, shared.GenerateID(), trackID, platform, externalID, nullableString(url), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert availability: %w", err)
	}
	return nil
}

// MarkAvailabilityStale flags the (track, platform) row as unavailable
// without deleting it. Stale availability is marked, never removed.
func (c *Catalog) MarkAvailabilityStale(trackID, platform string) error {
	query := `
		UPDATE track_availability
		SET available = 0, last_checked_at = ?
		WHERE track_id = ? AND platform = ?
	`

	_, err := c.db.Exec(query, time.Now().UTC(), trackID, platform)
	if err != nil {
		return fmt.Errorf("failed to mark availability stale: %w", err)
	}
	return nil
}

// UpsertPlaylist creates or updates a canonical playlist keyed by
// (user, external id, platform) and returns the stored row.
func (c *Catalog) UpsertPlaylist(userID, platform string, remote models.RemotePlaylist, public bool) (*models.Playlist, error) {
	now := time.Now().UTC()
	query := `
		INSERT INTO playlists (id, user_id, external_id, source_platform, title, description, artwork_url, public, track_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, external_id, source_platform) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			artwork_url = excluded.artwork_url,
			public = excluded.public,
			track_count = excluded.track_count,
			updated_at = excluded.updated_at
	`

	_, err := c.db.Exec(query,
		shared.GenerateID(),
		userID,
		remote.ExternalID,
		platform,
		remote.Title,
		nullableString(remote.Description),
		nullableString(remote.ArtworkURL),
		public,
		remote.TrackCount,
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert playlist: %w", err)
	}

	return c.getPlaylistByKey(userID, remote.ExternalID, platform)
}

func (c *Catalog) getPlaylistByKey(userID, externalID, platform string) (*models.Playlist, error) {
	query := `
		SELECT id, user_id, external_id, source_platform, title, description, artwork_url, public, track_count, created_at, updated_at
		FROM playlists
		WHERE user_id = ? AND external_id = ? AND source_platform = ?
	`
	return scanPlaylist(c.db.QueryRow(query, userID, externalID, platform))
}

// SetPlaylistTrackCount stores the membership count actually written, which
// can differ from the remote's advertised total when duplicates collapse.
func (c *Catalog) SetPlaylistTrackCount(playlistID string, count int) error {
	_, err := c.db.Exec("UPDATE playlists SET track_count = ?, updated_at = ? WHERE id = ?", count, time.Now().UTC(), playlistID)
	if err != nil {
		return fmt.Errorf("failed to update playlist track count: %w", err)
	}
	return nil
}

// ReplaceMembership deletes every membership row for the playlist and inserts
// one row per unique track in the supplied order. A track appearing more than
// once keeps its first occurrence's position; order_index is always a dense
// zero-based sequence. Re-running with unchanged input reproduces the same
// rows, which is what makes sync idempotent.
func (c *Catalog) ReplaceMembership(playlistID, platform string, orderedTrackIDs []string) (int, error) {
	if _, err := c.db.Exec("DELETE FROM playlist_tracks WHERE playlist_id = ?", playlistID); err != nil {
		return 0, fmt.Errorf("failed to clear playlist membership: %w", err)
	}

	query := `
		INSERT INTO playlist_tracks (id, playlist_id, track_id, platform, order_index, added_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	seen := make(map[string]bool, len(orderedTrackIDs))
	inserted := 0
	for _, trackID := range orderedTrackIDs {
		if seen[trackID] {
			continue
		}
		seen[trackID] = true

		if _, err := c.db.Exec(query, shared.GenerateID(), playlistID, trackID, platform, inserted, now); err != nil {
			return inserted, fmt.Errorf("failed to insert membership at index %d: %w", inserted, err)
		}
		inserted++
	}

	return inserted, nil
}

// PruneVanishedPlaylists deletes every playlist for (user, platform) whose
// external id is not in the surviving set. Membership rows cascade with the
// playlist; canonical tracks and availability are left untouched.
func (c *Catalog) PruneVanishedPlaylists(userID, platform string, survivingExternalIDs []string) (int, error) {
	query := "DELETE FROM playlists WHERE user_id = ? AND source_platform = ?"
	args := []any{userID, platform}

	if len(survivingExternalIDs) > 0 {
		placeholders := strings.Repeat("?, ", len(survivingExternalIDs)-1) + "?"
		query += " AND external_id NOT IN (" + placeholders + ")"
		for _, id := range survivingExternalIDs {
			args = append(args, id)
		}
	}

	result, err := c.db.Exec(query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to prune vanished playlists: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return int(rows), nil
}

// UpsertFavoritesPointer creates or replaces the per-(user, platform)
// favorites summary record.
func (c *Catalog) UpsertFavoritesPointer(fp models.FavoritesPointer) error {
	query := `
		INSERT INTO favorites (id, user_id, platform, playlist_external_id, title, description, track_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, platform) DO UPDATE SET
			playlist_external_id = excluded.playlist_external_id,
			title = excluded.title,
			description = excluded.description,
			track_count = excluded.track_count,
			updated_at = excluded.updated_at
	`

	_, err := c.db.Exec(query,
		shared.GenerateID(),
		fp.UserID,
		fp.Platform,
		fp.PlaylistExternalID,
		nullableString(fp.Title),
		nullableString(fp.Description),
		fp.TrackCount,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert favorites pointer: %w", err)
	}
	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
