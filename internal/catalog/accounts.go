package catalog

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/Impirs/Orbitune/internal/models"
	"github.com/Impirs/Orbitune/internal/shared"
)

// AccountStore persists connected-platform credentials.
//
// It holds its own *sql.DB rather than a DBTX: token refreshes must be
// durable the moment they succeed, independent of whatever playlist
// transaction a sync run has open.
type AccountStore struct {
	db *sql.DB
}

// NewAccountStore creates an AccountStore over the given database.
func NewAccountStore(db *sql.DB) *AccountStore {
	return &AccountStore{db: db}
}

// Get returns the connected account for (user, platform), or
// shared.ErrNotConnected when the platform was never linked or has been
// disconnected.
func (s *AccountStore) Get(userID, platform string) (*models.ConnectedAccount, error) {
	query := `
		SELECT id, user_id, platform, external_user_id, access_token, refresh_token, expires_at, created_at, updated_at
		FROM connected_accounts
		WHERE user_id = ? AND platform = ?
	`

	var (
		account      models.ConnectedAccount
		refreshToken sql.NullString
		expiresAt    sql.NullTime
	)

	err := s.db.QueryRow(query, userID, platform).Scan(
		&account.ID, &account.UserID, &account.Platform, &account.ExternalUserID,
		&account.AccessToken, &refreshToken, &expiresAt, &account.CreatedAt, &account.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s for user %s", shared.ErrNotConnected, platform, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan connected account: %w", err)
	}

	account.RefreshToken = refreshToken.String
	if expiresAt.Valid {
		account.ExpiresAt = &expiresAt.Time
	}
	return &account, nil
}

// Upsert stores a connected account, replacing any existing row for the same
// (user, platform). Called by the OAuth collaborator after token exchange.
func (s *AccountStore) Upsert(account *models.ConnectedAccount) error {
	if err := account.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO connected_accounts (id, user_id, platform, external_user_id, access_token, refresh_token, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, platform) DO UPDATE SET
			external_user_id = excluded.external_user_id,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`

	var refreshToken any = account.RefreshToken
	if account.RefreshToken == "" {
		refreshToken = nil
	}

	_, err := s.db.Exec(query,
		shared.GenerateID(),
		account.UserID,
		account.Platform,
		account.ExternalUserID,
		account.AccessToken,
		refreshToken,
		account.ExpiresAt,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert connected account: %w", err)
	}
	return nil
}

// UpdateAccessToken persists a refreshed access token immediately so later
// calls in the same sync pass reuse it.
func (s *AccountStore) UpdateAccessToken(userID, platform, accessToken string, expiresAt *time.Time) error {
	query := `
		UPDATE connected_accounts
		SET access_token = ?, expires_at = ?, updated_at = ?
		WHERE user_id = ? AND platform = ?
	`

	result, err := s.db.Exec(query, accessToken, expiresAt, time.Now().UTC(), userID, platform)
	if err != nil {
		return fmt.Errorf("failed to update access token: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s for user %s", shared.ErrNotConnected, platform, userID)
	}
	return nil
}

// Delete disconnects a platform outright. Used when a platform reports the
// refresh token itself is invalid; the next sync fails with NotConnected.
func (s *AccountStore) Delete(userID, platform string) error {
	result, err := s.db.Exec("DELETE FROM connected_accounts WHERE user_id = ? AND platform = ?", userID, platform)
	if err != nil {
		return fmt.Errorf("failed to delete connected account: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s for user %s", shared.ErrNotConnected, platform, userID)
	}
	return nil
}

// List returns all of a user's connected accounts.
func (s *AccountStore) List(userID string) ([]*models.ConnectedAccount, error) {
	query := `
		SELECT id, user_id, platform, external_user_id, access_token, refresh_token, expires_at, created_at, updated_at
		FROM connected_accounts
		WHERE user_id = ?
		ORDER BY platform ASC
	`

	rows, err := s.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query connected accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.ConnectedAccount
	for rows.Next() {
		var (
			account      models.ConnectedAccount
			refreshToken sql.NullString
			expiresAt    sql.NullTime
		)
		err := rows.Scan(
			&account.ID, &account.UserID, &account.Platform, &account.ExternalUserID,
			&account.AccessToken, &refreshToken, &expiresAt, &account.CreatedAt, &account.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan connected account: %w", err)
		}
		account.RefreshToken = refreshToken.String
		if expiresAt.Valid {
			account.ExpiresAt = &expiresAt.Time
		}
		accounts = append(accounts, &account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return accounts, nil
}
