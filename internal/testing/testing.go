// package testing contains shared testing utilities
package testing

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/Impirs/Orbitune/internal/models"
	"github.com/Impirs/Orbitune/internal/shared"
)

// FakeClient is a test double for [platforms.Client]. Configure its fields
// with canned data or error overrides per method; zero values behave like an
// empty but healthy library.
type FakeClient struct {
	Name          string
	Playlists     []models.RemotePlaylist
	Tracks        map[string][]models.RemoteTrack // keyed by playlist external id
	Favorites     []models.RemoteTrack
	FavoritesInfo models.RemotePlaylist

	PlaylistsErr  error
	TracksErr     map[string]error // per-playlist error override
	FavoritesErr  error
	InfoErr       error
	RefreshErr    error
	StatsErr      error
	RefreshCalls  int
	NativeMatcher func(p models.RemotePlaylist) bool
}

func (f *FakeClient) Platform() string {
	if f.Name == "" {
		return "fake"
	}
	return f.Name
}

func (f *FakeClient) ListPlaylists(ctx context.Context) ([]models.RemotePlaylist, error) {
	if f.PlaylistsErr != nil {
		return nil, f.PlaylistsErr
	}
	return f.Playlists, nil
}

func (f *FakeClient) ListPlaylistTracks(ctx context.Context, playlistID string) ([]models.RemoteTrack, error) {
	if err := f.TracksErr[playlistID]; err != nil {
		return nil, err
	}
	return f.Tracks[playlistID], nil
}

func (f *FakeClient) ListFavoriteTracks(ctx context.Context) ([]models.RemoteTrack, error) {
	if f.FavoritesErr != nil {
		return nil, f.FavoritesErr
	}
	return f.Favorites, nil
}

func (f *FakeClient) FavoritesPlaylistInfo(ctx context.Context) (*models.RemotePlaylist, error) {
	if f.InfoErr != nil {
		return nil, f.InfoErr
	}
	info := f.FavoritesInfo
	if info.ExternalID == "" {
		info = models.RemotePlaylist{ExternalID: "fake:liked", Title: "Liked"}
	}
	return &info, nil
}

func (f *FakeClient) IsNativeFavorites(p models.RemotePlaylist) bool {
	if f.NativeMatcher != nil {
		return f.NativeMatcher(p)
	}
	return p.ExternalID == f.FavoritesInfo.ExternalID
}

func (f *FakeClient) RefreshCredentials(ctx context.Context) error {
	f.RefreshCalls++
	return f.RefreshErr
}

func (f *FakeClient) Stats(ctx context.Context) (*models.PlatformStats, error) {
	if f.StatsErr != nil {
		return nil, f.StatsErr
	}
	return &models.PlatformStats{
		Songs:     len(f.Favorites),
		Playlists: len(f.Playlists),
	}, nil
}

// OpenTestDB returns an in-memory database with all migrations applied.
// Capped at one connection: each additional pooled connection to ":memory:"
// would be a distinct empty database.
func OpenTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return db
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}
