// YouTube Music implementation of [Client]
//
// Built on the YouTube Data API v3; music playlists are ordinary video
// playlists and liked tracks live in the special "LL" playlist.
package platforms

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/Impirs/Orbitune/internal/catalog"
	"github.com/Impirs/Orbitune/internal/models"
	"github.com/Impirs/Orbitune/internal/shared"
)

const (
	googleAuthURL         = "https://accounts.google.com/o/oauth2/auth"
	googleTokenURL        = "https://oauth2.googleapis.com/token"
	defaultYouTubeBaseURL = "https://www.googleapis.com/youtube/v3"

	likedVideosPlaylistID = "LL"
)

// youtubeLikedTitle reports whether a playlist title is one of the localized
// names the liked-videos playlist shows up under when the API does return it
// as a regular playlist.
func youtubeLikedTitle(title string) bool {
	switch strings.ToLower(title) {
	case "liked songs", "liked videos", "понравившиеся":
		return true
	}
	return false
}

type youtubeThumbnails struct {
	Medium struct {
		URL string `json:"url"`
	} `json:"medium"`
}

type youtubePlaylistResource struct {
	ID      string `json:"id"`
	Snippet struct {
		Title       string            `json:"title"`
		Description string            `json:"description"`
		Thumbnails  youtubeThumbnails `json:"thumbnails"`
	} `json:"snippet"`
	ContentDetails struct {
		ItemCount int `json:"itemCount"`
	} `json:"contentDetails"`
}

type youtubePlaylistItemResource struct {
	Snippet struct {
		Title                  string            `json:"title"`
		VideoOwnerChannelTitle string            `json:"videoOwnerChannelTitle"`
		Thumbnails             youtubeThumbnails `json:"thumbnails"`
	} `json:"snippet"`
	ContentDetails struct {
		VideoID string `json:"videoId"`
	} `json:"contentDetails"`
}

type youtubeVideoResource struct {
	ID             string `json:"id"`
	ContentDetails struct {
		Duration string `json:"duration"`
	} `json:"contentDetails"`
}

type youtubePage[T any] struct {
	Items         []T     `json:"items"`
	NextPageToken *string `json:"nextPageToken"`
	PageInfo      struct {
		TotalResults int `json:"totalResults"`
	} `json:"pageInfo"`
}

type youtubeChannelResource struct {
	ID      string `json:"id"`
	Snippet struct {
		Title string `json:"title"`
	} `json:"snippet"`
}

// YouTubeClient implements [Client] for the YouTube Data API.
type YouTubeClient struct {
	userID   string
	account  *models.ConnectedAccount
	accounts *catalog.AccountStore
	oauth    *oauth2.Config
	api      *apiClient
	baseURL  string
}

// NewYouTubeClient is the [Factory] for YouTube Music.
func NewYouTubeClient(deps Deps, userID string) (Client, error) {
	account, err := deps.Accounts.Get(userID, models.PlatformYouTube)
	if err != nil {
		return nil, err
	}

	creds := deps.Config.Credentials.YouTube
	y := &YouTubeClient{
		userID:   userID,
		account:  account,
		accounts: deps.Accounts,
		baseURL:  defaultYouTubeBaseURL,
		oauth: &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			RedirectURL:  creds.RedirectURI,
			Endpoint: oauth2.Endpoint{
				AuthURL:  googleAuthURL,
				TokenURL: googleTokenURL,
			},
		},
	}
	y.api = &apiClient{
		httpClient: defaultHTTPClient,
		limiter:    newLimiter(deps.Config),
		timeout:    requestTimeout(deps.Config),
		logger:     deps.Logger.With("platform", models.PlatformYouTube),
		authHeader: func() string { return "Bearer " + y.account.AccessToken },
		refresh:    y.RefreshCredentials,
	}
	return y, nil
}

func (y *YouTubeClient) Platform() string { return models.PlatformYouTube }

// RefreshCredentials exchanges the stored refresh token via Google's token
// endpoint and persists the new access token. invalid_grant means the user
// revoked access, so the connected account is deleted.
func (y *YouTubeClient) RefreshCredentials(ctx context.Context) error {
	if y.account.RefreshToken == "" {
		return fmt.Errorf("%w: %w", shared.ErrRefreshFailed, shared.ErrNoRefreshToken)
	}

	source := y.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: y.account.RefreshToken})
	token, err := source.Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.ErrorCode == "invalid_grant" {
			y.api.logger.Warn("refresh token revoked, disconnecting account", "user", y.userID)
			if delErr := y.accounts.Delete(y.userID, models.PlatformYouTube); delErr != nil {
				y.api.logger.Error("failed to delete disconnected account", "err", delErr)
			}
			return fmt.Errorf("%w: refresh token revoked", shared.ErrRefreshFailed)
		}
		return fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}

	y.account.AccessToken = token.AccessToken
	var expiry *time.Time
	if !token.Expiry.IsZero() {
		e := token.Expiry.UTC()
		expiry = &e
	}
	return y.accounts.UpdateAccessToken(y.userID, models.PlatformYouTube, token.AccessToken, expiry)
}

// ListPlaylists returns the user's playlists, following nextPageToken to
// the end.
func (y *YouTubeClient) ListPlaylists(ctx context.Context) ([]models.RemotePlaylist, error) {
	call := y.api.call()
	var playlists []models.RemotePlaylist
	pageToken := ""

	for {
		var page youtubePage[youtubePlaylistResource]
		u := fmt.Sprintf("%s/playlists?part=snippet,contentDetails&mine=true&maxResults=50", y.baseURL)
		if pageToken != "" {
			u += "&pageToken=" + url.QueryEscape(pageToken)
		}
		if err := call.getJSON(ctx, u, &page); err != nil {
			return listDegrade[models.RemotePlaylist](y.api.logger, "ListPlaylists", err)
		}

		for _, item := range page.Items {
			playlists = append(playlists, models.RemotePlaylist{
				ExternalID:  item.ID,
				Title:       item.Snippet.Title,
				Description: item.Snippet.Description,
				TrackCount:  item.ContentDetails.ItemCount,
				ArtworkURL:  item.Snippet.Thumbnails.Medium.URL,
			})
		}

		if page.NextPageToken == nil || *page.NextPageToken == "" {
			break
		}
		pageToken = *page.NextPageToken
	}

	return playlists, nil
}

// ListPlaylistTracks returns a playlist's tracks in remote order. Item
// snippets carry no durations, so those are filled in with a second batched
// videos lookup.
func (y *YouTubeClient) ListPlaylistTracks(ctx context.Context, playlistID string) ([]models.RemoteTrack, error) {
	call := y.api.call()
	var tracks []models.RemoteTrack
	pageToken := ""

	for {
		var page youtubePage[youtubePlaylistItemResource]
		u := fmt.Sprintf("%s/playlistItems?part=snippet,contentDetails&playlistId=%s&maxResults=50",
			y.baseURL, url.QueryEscape(playlistID))
		if pageToken != "" {
			u += "&pageToken=" + url.QueryEscape(pageToken)
		}
		if err := call.getJSON(ctx, u, &page); err != nil {
			return listDegrade[models.RemoteTrack](y.api.logger, "ListPlaylistTracks", err)
		}

		for _, item := range page.Items {
			videoID := item.ContentDetails.VideoID
			if videoID == "" {
				continue
			}
			tracks = append(tracks, models.RemoteTrack{
				ExternalID: videoID,
				Title:      item.Snippet.Title,
				Artist:     item.Snippet.VideoOwnerChannelTitle,
				ArtworkURL: item.Snippet.Thumbnails.Medium.URL,
				URL:        "https://music.youtube.com/watch?v=" + videoID,
			})
		}

		if page.NextPageToken == nil || *page.NextPageToken == "" {
			break
		}
		pageToken = *page.NextPageToken
	}

	y.fillDurations(ctx, call, tracks)
	return tracks, nil
}

// ListFavoriteTracks returns the liked-videos playlist contents.
func (y *YouTubeClient) ListFavoriteTracks(ctx context.Context) ([]models.RemoteTrack, error) {
	return y.ListPlaylistTracks(ctx, likedVideosPlaylistID)
}

// fillDurations resolves track durations through /videos in batches of 50
// ids. A failed batch leaves its durations unknown rather than failing the
// whole listing.
func (y *YouTubeClient) fillDurations(ctx context.Context, call *apiCall, tracks []models.RemoteTrack) {
	byID := make(map[string][]*models.RemoteTrack, len(tracks))
	ids := make([]string, 0, len(tracks))
	for i := range tracks {
		id := tracks[i].ExternalID
		if len(byID[id]) == 0 {
			ids = append(ids, id)
		}
		byID[id] = append(byID[id], &tracks[i])
	}

	for start := 0; start < len(ids); start += 50 {
		end := min(start+50, len(ids))
		u := fmt.Sprintf("%s/videos?part=contentDetails&id=%s",
			y.baseURL, url.QueryEscape(strings.Join(ids[start:end], ",")))

		var page youtubePage[youtubeVideoResource]
		if err := call.getJSON(ctx, u, &page); err != nil {
			y.api.logger.Warn("failed to resolve video durations", "err", err)
			continue
		}
		for _, video := range page.Items {
			duration := parseISODuration(video.ContentDetails.Duration)
			for _, track := range byID[video.ID] {
				track.DurationSeconds = duration
			}
		}
	}
}

// FavoritesPlaylistInfo describes the liked-videos pseudo-playlist. The
// channel lookup doubles as the auth check, so an expired token fails here
// with AuthExpired instead of degrading.
func (y *YouTubeClient) FavoritesPlaylistInfo(ctx context.Context) (*models.RemotePlaylist, error) {
	if _, err := y.channel(ctx); err != nil {
		return nil, err
	}

	// When the API exposes the liked list as a regular playlist, prefer its
	// real metadata over the synthesized entry.
	playlists, err := y.ListPlaylists(ctx)
	if err == nil {
		for _, p := range playlists {
			if y.IsNativeFavorites(p) {
				return &p, nil
			}
		}
	}

	return &models.RemotePlaylist{
		ExternalID:  likedVideosPlaylistID,
		Title:       "Liked videos",
		Description: "YouTube liked videos playlist",
		TrackCount:  y.likedCount(ctx),
	}, nil
}

// IsNativeFavorites reports whether a playlist is YouTube's liked-videos
// list, by its reserved id prefix or a known localized title. Regular
// playlist ids start with "PL", so the "LL" prefix is unambiguous.
func (y *YouTubeClient) IsNativeFavorites(p models.RemotePlaylist) bool {
	return strings.HasPrefix(p.ExternalID, likedVideosPlaylistID) || youtubeLikedTitle(p.Title)
}

// Stats summarizes the connected YouTube account.
func (y *YouTubeClient) Stats(ctx context.Context) (*models.PlatformStats, error) {
	channel, err := y.channel(ctx)
	if err != nil {
		return nil, err
	}

	playlists, err := y.ListPlaylists(ctx)
	if err != nil {
		return nil, err
	}
	count := 0
	for _, p := range playlists {
		if !y.IsNativeFavorites(p) {
			count++
		}
	}

	return &models.PlatformStats{
		ExternalUserID: channel.ID,
		DisplayName:    channel.Snippet.Title,
		Songs:          y.likedCount(ctx),
		Playlists:      count,
	}, nil
}

func (y *YouTubeClient) channel(ctx context.Context) (*youtubeChannelResource, error) {
	var page youtubePage[youtubeChannelResource]
	u := y.baseURL + "/channels?part=snippet&mine=true"
	if err := y.api.call().getJSON(ctx, u, &page); err != nil {
		return nil, err
	}
	if len(page.Items) == 0 {
		return nil, fmt.Errorf("%w: no channel for account", shared.ErrRemoteUnavailable)
	}
	return &page.Items[0], nil
}

// likedCount reads the liked-videos total from a single-item page. Failures
// degrade to zero; the count is informational.
func (y *YouTubeClient) likedCount(ctx context.Context) int {
	var page youtubePage[youtubePlaylistItemResource]
	u := fmt.Sprintf("%s/playlistItems?part=id&playlistId=%s&maxResults=1", y.baseURL, likedVideosPlaylistID)
	if err := y.api.call().getJSON(ctx, u, &page); err != nil {
		y.api.logger.Warn("failed to read liked videos count", "err", err)
		return 0
	}
	return page.PageInfo.TotalResults
}
