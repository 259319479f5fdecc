// Spotify implementation of [Client]
//
// Response types based on https://developer.spotify.com/documentation/web-api/reference/
package platforms

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/Impirs/Orbitune/internal/catalog"
	"github.com/Impirs/Orbitune/internal/models"
	"github.com/Impirs/Orbitune/internal/shared"
)

const (
	spotifyAuthURL        = "https://accounts.spotify.com/authorize"
	spotifyTokenURL       = "https://accounts.spotify.com/api/token"
	defaultSpotifyBaseURL = "https://api.spotify.com/v1"
)

type spotifyImage struct {
	URL string `json:"url"`
}

type spotifyArtist struct {
	Name string `json:"name"`
}

type spotifyAlbum struct {
	Name   string         `json:"name"`
	Images []spotifyImage `json:"images"`
}

type spotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []spotifyArtist `json:"artists"`
	Album      spotifyAlbum    `json:"album"`
	DurationMS int             `json:"duration_ms"`
}

type spotifyPlaylistItem struct {
	Track *spotifyTrack `json:"track"`
}

type spotifyPagedTracks struct {
	Items []spotifyPlaylistItem `json:"items"`
	Total int                   `json:"total"`
	Next  *string               `json:"next"`
}

type spotifySimplePlaylist struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Public      bool           `json:"public"`
	Images      []spotifyImage `json:"images"`
	Tracks      struct {
		Total int `json:"total"`
	} `json:"tracks"`
}

type spotifyPagedPlaylists struct {
	Items []spotifySimplePlaylist `json:"items"`
	Next  *string                 `json:"next"`
}

type spotifyProfile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Product     string `json:"product"`
}

// SpotifyClient implements [Client] for the Spotify Web API.
type SpotifyClient struct {
	userID   string
	account  *models.ConnectedAccount
	accounts *catalog.AccountStore
	oauth    *oauth2.Config
	api      *apiClient
	baseURL  string
}

// NewSpotifyClient is the [Factory] for Spotify.
func NewSpotifyClient(deps Deps, userID string) (Client, error) {
	account, err := deps.Accounts.Get(userID, models.PlatformSpotify)
	if err != nil {
		return nil, err
	}

	creds := deps.Config.Credentials.Spotify
	s := &SpotifyClient{
		userID:   userID,
		account:  account,
		accounts: deps.Accounts,
		baseURL:  defaultSpotifyBaseURL,
		oauth: &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			RedirectURL:  creds.RedirectURI,
			Endpoint: oauth2.Endpoint{
				AuthURL:  spotifyAuthURL,
				TokenURL: spotifyTokenURL,
			},
		},
	}
	s.api = &apiClient{
		httpClient: defaultHTTPClient,
		limiter:    newLimiter(deps.Config),
		timeout:    requestTimeout(deps.Config),
		logger:     deps.Logger.With("platform", models.PlatformSpotify),
		authHeader: func() string { return "Bearer " + s.account.AccessToken },
		refresh:    s.RefreshCredentials,
	}
	return s, nil
}

func (s *SpotifyClient) Platform() string { return models.PlatformSpotify }

// RefreshCredentials exchanges the stored refresh token for a new access
// token via the oauth2 refresh-token grant and persists it immediately.
// An invalid_grant response means the refresh token itself is dead, so the
// connected account is deleted and a future sync fails with NotConnected.
func (s *SpotifyClient) RefreshCredentials(ctx context.Context) error {
	if s.account.RefreshToken == "" {
		return fmt.Errorf("%w: %w", shared.ErrRefreshFailed, shared.ErrNoRefreshToken)
	}

	source := s.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: s.account.RefreshToken})
	token, err := source.Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.ErrorCode == "invalid_grant" {
			s.api.logger.Warn("refresh token invalid, disconnecting account", "user", s.userID)
			if delErr := s.accounts.Delete(s.userID, models.PlatformSpotify); delErr != nil {
				s.api.logger.Error("failed to delete disconnected account", "err", delErr)
			}
			return fmt.Errorf("%w: refresh token invalid", shared.ErrRefreshFailed)
		}
		return fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}

	s.account.AccessToken = token.AccessToken
	var expiry *time.Time
	if !token.Expiry.IsZero() {
		e := token.Expiry.UTC()
		expiry = &e
	}
	return s.accounts.UpdateAccessToken(s.userID, models.PlatformSpotify, token.AccessToken, expiry)
}

// ListPlaylists returns all playlists, paginating /me/playlists to the end.
func (s *SpotifyClient) ListPlaylists(ctx context.Context) ([]models.RemotePlaylist, error) {
	call := s.api.call()
	var playlists []models.RemotePlaylist
	limit, offset := 50, 0

	for {
		var page spotifyPagedPlaylists
		url := fmt.Sprintf("%s/me/playlists?limit=%d&offset=%d", s.baseURL, limit, offset)
		if err := call.getJSON(ctx, url, &page); err != nil {
			return listDegrade[models.RemotePlaylist](s.api.logger, "ListPlaylists", err)
		}

		for _, item := range page.Items {
			playlists = append(playlists, models.RemotePlaylist{
				ExternalID:  item.ID,
				Title:       item.Name,
				Description: item.Description,
				TrackCount:  item.Tracks.Total,
				ArtworkURL:  firstSpotifyImage(item.Images),
			})
		}

		if page.Next == nil || len(page.Items) < limit {
			break
		}
		offset += limit
	}

	return playlists, nil
}

// ListPlaylistTracks returns a playlist's tracks in remote order.
func (s *SpotifyClient) ListPlaylistTracks(ctx context.Context, playlistID string) ([]models.RemoteTrack, error) {
	return s.pagedTracks(ctx, fmt.Sprintf("%s/playlists/%s/tracks", s.baseURL, playlistID), 100, "ListPlaylistTracks")
}

// ListFavoriteTracks returns the user's Liked Songs in remote order.
func (s *SpotifyClient) ListFavoriteTracks(ctx context.Context) ([]models.RemoteTrack, error) {
	return s.pagedTracks(ctx, s.baseURL+"/me/tracks", 50, "ListFavoriteTracks")
}

func (s *SpotifyClient) pagedTracks(ctx context.Context, endpoint string, limit int, op string) ([]models.RemoteTrack, error) {
	call := s.api.call()
	var tracks []models.RemoteTrack
	offset := 0

	for {
		var page spotifyPagedTracks
		url := fmt.Sprintf("%s?limit=%d&offset=%d", endpoint, limit, offset)
		if err := call.getJSON(ctx, url, &page); err != nil {
			return listDegrade[models.RemoteTrack](s.api.logger, op, err)
		}

		for _, item := range page.Items {
			if item.Track == nil {
				continue
			}
			tracks = append(tracks, normalizeSpotifyTrack(*item.Track))
		}

		if page.Next == nil || len(page.Items) < limit {
			break
		}
		offset += limit
	}

	return tracks, nil
}

// FavoritesPlaylistInfo synthesizes the Liked Songs pseudo-playlist. The
// external id embeds the profile id, so this call requires a valid token and
// fails with AuthExpired instead of degrading.
func (s *SpotifyClient) FavoritesPlaylistInfo(ctx context.Context) (*models.RemotePlaylist, error) {
	profile, err := s.profile(ctx)
	if err != nil {
		return nil, err
	}

	return &models.RemotePlaylist{
		ExternalID:  "spotify:liked:" + profile.ID,
		Title:       "Liked Songs",
		Description: "Spotify Liked Songs playlist",
		TrackCount:  s.likedSongsCount(ctx),
	}, nil
}

// IsNativeFavorites reports whether a playlist is Spotify's own Liked Songs
// list. Identification by title is fragile across locales but matches what
// the API exposes.
func (s *SpotifyClient) IsNativeFavorites(p models.RemotePlaylist) bool {
	return strings.ToLower(p.Title) == "liked songs" || strings.HasPrefix(p.ExternalID, "spotify:liked:")
}

// Stats summarizes the connected Spotify account.
func (s *SpotifyClient) Stats(ctx context.Context) (*models.PlatformStats, error) {
	profile, err := s.profile(ctx)
	if err != nil {
		return nil, err
	}

	playlists, err := s.ListPlaylists(ctx)
	if err != nil {
		return nil, err
	}
	count := 0
	for _, p := range playlists {
		if !s.IsNativeFavorites(p) {
			count++
		}
	}

	return &models.PlatformStats{
		ExternalUserID: profile.ID,
		DisplayName:    profile.DisplayName,
		Songs:          s.likedSongsCount(ctx),
		Playlists:      count,
		Subscription:   profile.Product,
	}, nil
}

func (s *SpotifyClient) profile(ctx context.Context) (*spotifyProfile, error) {
	var profile spotifyProfile
	if err := s.api.call().getJSON(ctx, s.baseURL+"/me", &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// likedSongsCount reads the Liked Songs total from a single-item page.
// Failures degrade to zero; the count is informational.
func (s *SpotifyClient) likedSongsCount(ctx context.Context) int {
	var page spotifyPagedTracks
	if err := s.api.call().getJSON(ctx, s.baseURL+"/me/tracks?limit=1", &page); err != nil {
		s.api.logger.Warn("failed to read liked songs count", "err", err)
		return 0
	}
	return page.Total
}

func normalizeSpotifyTrack(t spotifyTrack) models.RemoteTrack {
	names := make([]string, 0, len(t.Artists))
	for _, artist := range t.Artists {
		names = append(names, artist.Name)
	}

	duration := t.DurationMS / 1000
	return models.RemoteTrack{
		ExternalID:      t.ID,
		Title:           t.Name,
		Artist:          strings.Join(names, ", "),
		Album:           t.Album.Name,
		DurationSeconds: &duration,
		ArtworkURL:      firstSpotifyImage(t.Album.Images),
		URL:             "https://open.spotify.com/track/" + t.ID,
	}
}

func firstSpotifyImage(images []spotifyImage) string {
	if len(images) == 0 {
		return ""
	}
	return images[0].URL
}
