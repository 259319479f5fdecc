// Yandex Music implementation of [Client]
//
// The API is undocumented; endpoint shapes follow the web player traffic.
// Tokens are long-lived and there is no refresh flow, so an expired token
// requires reconnecting the account.
package platforms

import (
	"context"
	"fmt"
	"strings"

	"github.com/Impirs/Orbitune/internal/models"
	"github.com/Impirs/Orbitune/internal/shared"
)

const defaultYandexBaseURL = "https://api.music.yandex.net"

type yandexArtist struct {
	Name string `json:"name"`
}

type yandexAlbum struct {
	Title string `json:"title"`
}

type yandexTrack struct {
	ID         any            `json:"id"`
	Title      string         `json:"title"`
	Artists    []yandexArtist `json:"artists"`
	Albums     []yandexAlbum  `json:"albums"`
	DurationMS int            `json:"durationMs"`
	CoverURI   string         `json:"coverUri"`
}

type yandexTrackItem struct {
	Track *yandexTrack `json:"track"`
}

type yandexPlaylist struct {
	Kind       int    `json:"kind"`
	Title      string `json:"title"`
	Desc       string `json:"description"`
	TrackCount int    `json:"trackCount"`
	Cover      struct {
		URI string `json:"uri"`
	} `json:"cover"`
	Tracks []yandexTrackItem `json:"tracks"`
}

type yandexPlaylistsResponse struct {
	Result []yandexPlaylist `json:"result"`
}

type yandexPlaylistResponse struct {
	Result yandexPlaylist `json:"result"`
}

type yandexLikesResponse struct {
	Result struct {
		Tracks []yandexTrack `json:"tracks"`
		Pager  struct {
			Total int `json:"total"`
		} `json:"pager"`
	} `json:"result"`
}

type yandexStatusResponse struct {
	Result struct {
		Account struct {
			UID   int    `json:"uid"`
			Login string `json:"login"`
		} `json:"account"`
		Plus struct {
			HasPlus bool `json:"hasPlus"`
		} `json:"plus"`
	} `json:"result"`
}

// YandexClient implements [Client] for the Yandex Music API.
type YandexClient struct {
	userID  string
	account *models.ConnectedAccount
	api     *apiClient
	baseURL string
}

// NewYandexClient is the [Factory] for Yandex Music.
func NewYandexClient(deps Deps, userID string) (Client, error) {
	account, err := deps.Accounts.Get(userID, models.PlatformYandex)
	if err != nil {
		return nil, err
	}

	baseURL := deps.Config.Credentials.Yandex.BaseURL
	if baseURL == "" {
		baseURL = defaultYandexBaseURL
	}

	y := &YandexClient{
		userID:  userID,
		account: account,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
	y.api = &apiClient{
		httpClient: defaultHTTPClient,
		limiter:    newLimiter(deps.Config),
		timeout:    requestTimeout(deps.Config),
		logger:     deps.Logger.With("platform", models.PlatformYandex),
		authHeader: func() string { return "OAuth " + y.account.AccessToken },
	}
	return y, nil
}

func (y *YandexClient) Platform() string { return models.PlatformYandex }

// RefreshCredentials always fails: Yandex OAuth tokens cannot be refreshed.
func (y *YandexClient) RefreshCredentials(ctx context.Context) error {
	return fmt.Errorf("%w: %w", shared.ErrRefreshFailed, shared.ErrNoRefreshToken)
}

// ListPlaylists returns the user's own playlists. The endpoint is not
// paginated; Yandex serves the full list in one response.
func (y *YandexClient) ListPlaylists(ctx context.Context) ([]models.RemotePlaylist, error) {
	var resp yandexPlaylistsResponse
	url := fmt.Sprintf("%s/users/%s/playlists/list", y.baseURL, y.account.ExternalUserID)
	if err := y.api.call().getJSON(ctx, url, &resp); err != nil {
		return listDegrade[models.RemotePlaylist](y.api.logger, "ListPlaylists", err)
	}

	playlists := make([]models.RemotePlaylist, 0, len(resp.Result))
	for _, p := range resp.Result {
		playlists = append(playlists, models.RemotePlaylist{
			ExternalID:  fmt.Sprintf("%d", p.Kind),
			Title:       p.Title,
			Description: p.Desc,
			TrackCount:  p.TrackCount,
			ArtworkURL:  yandexCoverURL(p.Cover.URI),
		})
	}
	return playlists, nil
}

// ListPlaylistTracks returns a playlist's tracks. Fetching a playlist by
// kind returns its full track list inline.
func (y *YandexClient) ListPlaylistTracks(ctx context.Context, playlistID string) ([]models.RemoteTrack, error) {
	var resp yandexPlaylistResponse
	url := fmt.Sprintf("%s/users/%s/playlists/%s", y.baseURL, y.account.ExternalUserID, playlistID)
	if err := y.api.call().getJSON(ctx, url, &resp); err != nil {
		return listDegrade[models.RemoteTrack](y.api.logger, "ListPlaylistTracks", err)
	}

	tracks := make([]models.RemoteTrack, 0, len(resp.Result.Tracks))
	for _, item := range resp.Result.Tracks {
		if item.Track == nil {
			continue
		}
		tracks = append(tracks, normalizeYandexTrack(*item.Track))
	}
	return tracks, nil
}

// ListFavoriteTracks returns the user's liked tracks, paginating with
// limit/offset until a short page.
func (y *YandexClient) ListFavoriteTracks(ctx context.Context) ([]models.RemoteTrack, error) {
	call := y.api.call()
	var tracks []models.RemoteTrack
	limit, offset := 100, 0

	for {
		var resp yandexLikesResponse
		url := fmt.Sprintf("%s/users/%s/likes/tracks?limit=%d&offset=%d",
			y.baseURL, y.account.ExternalUserID, limit, offset)
		if err := call.getJSON(ctx, url, &resp); err != nil {
			return listDegrade[models.RemoteTrack](y.api.logger, "ListFavoriteTracks", err)
		}

		for _, t := range resp.Result.Tracks {
			tracks = append(tracks, normalizeYandexTrack(t))
		}

		if len(resp.Result.Tracks) < limit {
			break
		}
		offset += limit
	}

	return tracks, nil
}

// FavoritesPlaylistInfo synthesizes the liked-tracks pseudo-playlist. The
// account status call doubles as the auth check, so an expired token fails
// here with AuthExpired instead of degrading.
func (y *YandexClient) FavoritesPlaylistInfo(ctx context.Context) (*models.RemotePlaylist, error) {
	status, err := y.status(ctx)
	if err != nil {
		return nil, err
	}

	return &models.RemotePlaylist{
		ExternalID:  fmt.Sprintf("yandex:liked:%d", status.Result.Account.UID),
		Title:       "Моя музыка",
		Description: "Yandex Music liked tracks",
		TrackCount:  y.likedCount(ctx),
	}, nil
}

// IsNativeFavorites reports whether a playlist is Yandex's own liked list.
func (y *YandexClient) IsNativeFavorites(p models.RemotePlaylist) bool {
	return strings.ToLower(p.Title) == "моя музыка" || strings.HasPrefix(p.ExternalID, "yandex:liked:")
}

// Stats summarizes the connected Yandex account.
func (y *YandexClient) Stats(ctx context.Context) (*models.PlatformStats, error) {
	status, err := y.status(ctx)
	if err != nil {
		return nil, err
	}

	playlists, err := y.ListPlaylists(ctx)
	if err != nil {
		return nil, err
	}

	subscription := "free"
	if status.Result.Plus.HasPlus {
		subscription = "plus"
	}

	return &models.PlatformStats{
		ExternalUserID: fmt.Sprintf("%d", status.Result.Account.UID),
		DisplayName:    status.Result.Account.Login,
		Songs:          y.likedCount(ctx),
		Playlists:      len(playlists),
		Subscription:   subscription,
	}, nil
}

func (y *YandexClient) status(ctx context.Context) (*yandexStatusResponse, error) {
	var status yandexStatusResponse
	if err := y.api.call().getJSON(ctx, y.baseURL+"/account/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// likedCount reads the liked-tracks total from a single-item page. Failures
// degrade to zero; the count is informational.
func (y *YandexClient) likedCount(ctx context.Context) int {
	var resp yandexLikesResponse
	url := fmt.Sprintf("%s/users/%s/likes/tracks?limit=1&offset=0", y.baseURL, y.account.ExternalUserID)
	if err := y.api.call().getJSON(ctx, url, &resp); err != nil {
		y.api.logger.Warn("failed to read liked tracks count", "err", err)
		return 0
	}
	return resp.Result.Pager.Total
}

func normalizeYandexTrack(t yandexTrack) models.RemoteTrack {
	artist := ""
	if len(t.Artists) > 0 {
		artist = t.Artists[0].Name
	}
	album := ""
	if len(t.Albums) > 0 {
		album = t.Albums[0].Title
	}

	id := fmt.Sprintf("%v", t.ID)
	duration := t.DurationMS / 1000
	return models.RemoteTrack{
		ExternalID:      id,
		Title:           t.Title,
		Artist:          artist,
		Album:           album,
		DurationSeconds: &duration,
		ArtworkURL:      yandexCoverURL(t.CoverURI),
		URL:             "https://music.yandex.ru/track/" + id,
	}
}

// yandexCoverURL expands the API's cover template ("avatars.yandex.net/...%%")
// into a concrete image URL.
func yandexCoverURL(uri string) string {
	if uri == "" {
		return ""
	}
	return "https://" + strings.Replace(uri, "%%", "400x400", 1)
}
