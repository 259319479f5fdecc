package models

import (
	"fmt"
	"time"
)

// Platform names recognized by the adapter registry.
const (
	PlatformSpotify = "spotify"
	PlatformYandex  = "yandex"
	PlatformYouTube = "youtube"
)

// ConnectedAccount stores one user's credentials for one platform.
//
// Written by the OAuth collaborator when a platform is linked and by the
// platform adapters when an access token is refreshed. One row per
// (user, platform).
type ConnectedAccount struct {
	ID             string
	UserID         string
	Platform       string
	ExternalUserID string
	AccessToken    string
	RefreshToken   string
	ExpiresAt      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Validate checks the account has the fields a sync run depends on.
func (a *ConnectedAccount) Validate() error {
	if a.UserID == "" || a.Platform == "" {
		return fmt.Errorf("connected account requires user id and platform")
	}
	if a.AccessToken == "" {
		return fmt.Errorf("connected account requires an access token")
	}
	return nil
}

// Track is the deduplicated, platform-agnostic representation of a song.
//
// Identity is the exact (title, artist) pair; the same song observed on two
// platforms resolves to one row. Tracks are created lazily and never deleted
// by sync.
type Track struct {
	ID              string
	Title           string
	Artist          string
	Album           string
	DurationSeconds *int
	ArtworkURL      string
	CreatedAt       time.Time
}

// TrackAvailability records that a canonical track is playable on a platform,
// under that platform's native id. At most one row per (track, platform);
// re-observing the same track refreshes the row instead of duplicating it.
type TrackAvailability struct {
	ID            string
	TrackID       string
	Platform      string
	ExternalID    string
	URL           string
	Available     bool
	LastCheckedAt time.Time
}

// Playlist is a canonical playlist mirrored from one platform, unique per
// (user, external id, source platform). The platform's liked-tracks
// collection is stored as an ordinary Playlist plus a FavoritesPointer.
type Playlist struct {
	ID             string
	UserID         string
	ExternalID     string
	SourcePlatform string
	Title          string
	Description    string
	ArtworkURL     string
	Public         bool
	TrackCount     int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PlaylistMembership ties a canonical track into a playlist at a position.
//
// Unique per (playlist, track); order_index is a dense zero-based sequence
// matching the remote ordering at the last successful sync. Memberships are
// replaced wholesale each sync, never patched.
type PlaylistMembership struct {
	ID         string
	PlaylistID string
	TrackID    string
	Platform   string
	OrderIndex int
	AddedAt    time.Time
}

// FavoritesPointer is a denormalized summary of a user's liked-tracks
// pseudo-playlist on one platform, for lookup without loading memberships.
type FavoritesPointer struct {
	ID                 string
	UserID             string
	Platform           string
	PlaylistExternalID string
	Title              string
	Description        string
	TrackCount         int
	UpdatedAt          time.Time
}

// RemotePlaylist is the normalized playlist record every adapter returns.
type RemotePlaylist struct {
	ExternalID  string
	Title       string
	Description string
	TrackCount  int
	ArtworkURL  string
}

// RemoteTrack is the normalized track record every adapter returns.
// DurationSeconds is nil when the platform does not report a duration.
type RemoteTrack struct {
	ExternalID      string
	Title           string
	Artist          string
	Album           string
	DurationSeconds *int
	ArtworkURL      string
	URL             string
}

// PlaylistTrackView is a membership row joined with its canonical track,
// ordered by position. Returned by catalog listing queries.
type PlaylistTrackView struct {
	OrderIndex      int
	Title           string
	Artist          string
	Album           string
	DurationSeconds *int
	ArtworkURL      string
}

// PlatformStats summarizes a connected platform account, as reported by the
// platform's profile endpoints.
type PlatformStats struct {
	ExternalUserID string
	DisplayName    string
	Songs          int
	Playlists      int
	Subscription   string
}
