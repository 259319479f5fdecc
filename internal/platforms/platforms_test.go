package platforms

import (
	"context"
	"database/sql"
	"io"
	"net/http"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/Impirs/Orbitune/internal/catalog"
	"github.com/Impirs/Orbitune/internal/models"
	"github.com/Impirs/Orbitune/internal/shared"
)

// setupAccountStore creates an in-memory database with migrations applied
// and one connected account for user-1 on the given platform.
func setupAccountStore(t *testing.T, platform, refreshToken string) (*catalog.AccountStore, *sql.DB) {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	store := catalog.NewAccountStore(db)
	err = store.Upsert(&models.ConnectedAccount{
		UserID:         "user-1",
		Platform:       platform,
		ExternalUserID: "external-1",
		AccessToken:    "stale-token",
		RefreshToken:   refreshToken,
	})
	if err != nil {
		t.Fatalf("failed to upsert test account: %v", err)
	}
	return store, db
}

// newTestAPI builds an apiClient without rate limiting for test servers.
func newTestAPI(authHeader func() string, refresh func(ctx context.Context) error) *apiClient {
	return &apiClient{
		httpClient: http.DefaultClient,
		limiter:    rate.NewLimiter(rate.Inf, 1),
		timeout:    5 * time.Second,
		logger:     shared.NewLogger(io.Discard),
		authHeader: authHeader,
		refresh:    refresh,
	}
}
