package catalog

import (
	"database/sql"
	"fmt"

	"github.com/Impirs/Orbitune/internal/models"
	"github.com/Impirs/Orbitune/internal/shared"
)

// ListPlaylists returns a user's canonical playlists, optionally filtered to
// one source platform. Results are ordered by title for stable output.
func (c *Catalog) ListPlaylists(userID, platform string) ([]*models.Playlist, error) {
	query := `
		SELECT id, user_id, external_id, source_platform, title, description, artwork_url, public, track_count, created_at, updated_at
		FROM playlists
		WHERE user_id = ?
	`
	args := []any{userID}

	if platform != "" {
		query += " AND source_platform = ?"
		args = append(args, platform)
	}
	query += " ORDER BY title ASC"

	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}
	defer rows.Close()

	var playlists []*models.Playlist
	for rows.Next() {
		playlist, err := scanPlaylistRow(rows)
		if err != nil {
			return nil, err
		}
		playlists = append(playlists, playlist)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return playlists, nil
}

// GetPlaylist retrieves a canonical playlist by its row id.
func (c *Catalog) GetPlaylist(id string) (*models.Playlist, error) {
	query := `
		SELECT id, user_id, external_id, source_platform, title, description, artwork_url, public, track_count, created_at, updated_at
		FROM playlists
		WHERE id = ?
	`
	return scanPlaylist(c.db.QueryRow(query, id))
}

// ListPlaylistTracks returns the playlist's tracks joined with their
// canonical records, ordered by position.
func (c *Catalog) ListPlaylistTracks(playlistID string) ([]models.PlaylistTrackView, error) {
	query := `
		SELECT pt.order_index, t.title, t.artist, t.album, t.duration_seconds, t.artwork_url
		FROM playlist_tracks pt
		JOIN tracks t ON t.id = pt.track_id
		WHERE pt.playlist_id = ?
		ORDER BY pt.order_index ASC
	`

	rows, err := c.db.Query(query, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlist tracks: %w", err)
	}
	defer rows.Close()

	var tracks []models.PlaylistTrackView
	for rows.Next() {
		var (
			view     models.PlaylistTrackView
			album    sql.NullString
			duration sql.NullInt64
			artwork  sql.NullString
		)
		if err := rows.Scan(&view.OrderIndex, &view.Title, &view.Artist, &album, &duration, &artwork); err != nil {
			return nil, fmt.Errorf("failed to scan playlist track: %w", err)
		}
		view.Album = album.String
		view.ArtworkURL = artwork.String
		if duration.Valid {
			d := int(duration.Int64)
			view.DurationSeconds = &d
		}
		tracks = append(tracks, view)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return tracks, nil
}

// GetFavorites returns the favorites pointer for (user, platform) without
// loading any membership rows.
func (c *Catalog) GetFavorites(userID, platform string) (*models.FavoritesPointer, error) {
	query := `
		SELECT id, user_id, platform, playlist_external_id, title, description, track_count, updated_at
		FROM favorites
		WHERE user_id = ? AND platform = ?
	`

	var (
		fp          models.FavoritesPointer
		title       sql.NullString
		description sql.NullString
	)

	err := c.db.QueryRow(query, userID, platform).Scan(
		&fp.ID, &fp.UserID, &fp.Platform, &fp.PlaylistExternalID, &title, &description, &fp.TrackCount, &fp.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: no favorites for %s on %s", shared.ErrPlaylistNotFound, userID, platform)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan favorites pointer: %w", err)
	}

	fp.Title = title.String
	fp.Description = description.String
	return &fp, nil
}

// CountAvailability returns how many availability rows exist for a platform.
func (c *Catalog) CountAvailability(platform string) (int, error) {
	var count int
	err := c.db.QueryRow("SELECT COUNT(*) FROM track_availability WHERE platform = ?", platform).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count availability rows: %w", err)
	}
	return count, nil
}

// CountMemberships returns how many membership rows exist for a platform.
func (c *Catalog) CountMemberships(platform string) (int, error) {
	var count int
	err := c.db.QueryRow("SELECT COUNT(*) FROM playlist_tracks WHERE platform = ?", platform).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count membership rows: %w", err)
	}
	return count, nil
}

func scanPlaylist(row *sql.Row) (*models.Playlist, error) {
	var (
		playlist    models.Playlist
		description sql.NullString
		artwork     sql.NullString
	)

	err := row.Scan(
		&playlist.ID, &playlist.UserID, &playlist.ExternalID, &playlist.SourcePlatform,
		&playlist.Title, &description, &artwork, &playlist.Public, &playlist.TrackCount,
		&playlist.CreatedAt, &playlist.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w", shared.ErrPlaylistNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan playlist: %w", err)
	}

	playlist.Description = description.String
	playlist.ArtworkURL = artwork.String
	return &playlist, nil
}

func scanPlaylistRow(rows *sql.Rows) (*models.Playlist, error) {
	var (
		playlist    models.Playlist
		description sql.NullString
		artwork     sql.NullString
	)

	err := rows.Scan(
		&playlist.ID, &playlist.UserID, &playlist.ExternalID, &playlist.SourcePlatform,
		&playlist.Title, &description, &artwork, &playlist.Public, &playlist.TrackCount,
		&playlist.CreatedAt, &playlist.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan playlist: %w", err)
	}

	playlist.Description = description.String
	playlist.ArtworkURL = artwork.String
	return &playlist, nil
}
