// package platforms contains the per-platform adapters the synchronizer
// pulls remote library state through.
//
// Each adapter normalizes its platform's REST API into the shared
// models.RemotePlaylist / models.RemoteTrack shapes, materializes paginated
// listings into complete slices, and handles expired access tokens with a
// single refresh-and-retry per logical call. Adapters are selected through a
// Registry keyed by platform name; supporting a new platform means
// registering one new Client implementation.
package platforms

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/Impirs/Orbitune/internal/catalog"
	"github.com/Impirs/Orbitune/internal/models"
	"github.com/Impirs/Orbitune/internal/shared"
)

// Client is the uniform capability set every platform adapter implements.
//
// List operations paginate internally and return complete slices; they are
// restartable and never expose pages to the caller. On an authorization
// failure they degrade to an empty result after one failed refresh attempt,
// while FavoritesPlaylistInfo and Stats (which need the profile) fail with
// shared.ErrAuthExpired instead.
type Client interface {
	// Platform returns the platform name this adapter serves.
	Platform() string

	// ListPlaylists returns all of the user's playlists, including the
	// platform's native liked-tracks list (see IsNativeFavorites).
	ListPlaylists(ctx context.Context) ([]models.RemotePlaylist, error)

	// ListPlaylistTracks returns a playlist's tracks in remote order.
	ListPlaylistTracks(ctx context.Context, playlistID string) ([]models.RemoteTrack, error)

	// ListFavoriteTracks returns the user's liked tracks in remote order.
	ListFavoriteTracks(ctx context.Context) ([]models.RemoteTrack, error)

	// FavoritesPlaylistInfo describes the liked-tracks pseudo-playlist.
	FavoritesPlaylistInfo(ctx context.Context) (*models.RemotePlaylist, error)

	// IsNativeFavorites reports whether a remote playlist is the platform's
	// own liked-tracks list, which sync handles separately.
	IsNativeFavorites(p models.RemotePlaylist) bool

	// RefreshCredentials obtains a new access token and persists it
	// immediately. When the platform reports the refresh token itself is
	// invalid the connected account is deleted outright.
	RefreshCredentials(ctx context.Context) error

	// Stats summarizes the connected account from the platform's profile.
	Stats(ctx context.Context) (*models.PlatformStats, error)
}

// Deps carries what adapter factories need to build a Client.
type Deps struct {
	Accounts *catalog.AccountStore
	Config   *shared.Config
	Logger   *log.Logger
}

// Factory builds a Client for one user on one platform. It loads the
// user's ConnectedAccount and fails with shared.ErrNotConnected when the
// platform was never linked.
type Factory func(deps Deps, userID string) (Client, error)

// Registry maps platform names to adapter factories.
type Registry struct {
	deps      Deps
	factories map[string]Factory
}

// NewRegistry creates a Registry with the built-in platforms registered.
func NewRegistry(deps Deps) *Registry {
	r := &Registry{deps: deps, factories: map[string]Factory{}}
	r.Register(models.PlatformSpotify, NewSpotifyClient)
	r.Register(models.PlatformYandex, NewYandexClient)
	r.Register(models.PlatformYouTube, NewYouTubeClient)
	return r
}

// Register adds or replaces the factory for a platform name.
func (r *Registry) Register(platform string, factory Factory) {
	r.factories[platform] = factory
}

// Platforms returns the registered platform names.
func (r *Registry) Platforms() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}

// Client builds the adapter for (user, platform), or fails with
// shared.ErrUnknownPlatform / shared.ErrNotConnected.
func (r *Registry) Client(userID, platform string) (Client, error) {
	factory, ok := r.factories[platform]
	if !ok {
		return nil, shared.ErrUnknownPlatform
	}
	return factory(r.deps, userID)
}

// newLimiter builds the per-adapter request limiter from config, with a
// default that stays well under every platform's published quota.
func newLimiter(cfg *shared.Config) *rate.Limiter {
	rps := cfg.Sync.RequestsPerSecond
	if rps <= 0 {
		rps = 8
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

// requestTimeout returns the per-call timeout from config.
func requestTimeout(cfg *shared.Config) time.Duration {
	secs := cfg.Sync.RequestTimeoutSeconds
	if secs <= 0 {
		secs = 5
	}
	return time.Duration(secs) * time.Second
}

// defaultHTTPClient is shared by adapters unless a test injects its own.
var defaultHTTPClient = &http.Client{}
