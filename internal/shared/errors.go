package shared

import "fmt"

var (
	// Sync error taxonomy. Callers classify a failed run by matching with
	// [errors.Is] instead of inspecting strings.
	ErrAuthExpired       = fmt.Errorf("authorization expired")
	ErrNotConnected      = fmt.Errorf("platform not connected")
	ErrRemoteUnavailable = fmt.Errorf("remote platform unavailable")
	ErrAlreadySyncing    = fmt.Errorf("sync already in progress")
	ErrSyncFailed        = fmt.Errorf("sync failed")

	// Authentication errors
	ErrRefreshFailed  = fmt.Errorf("token refresh failed")
	ErrNoRefreshToken = fmt.Errorf("no refresh token available")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Lookup errors
	ErrPlaylistNotFound = fmt.Errorf("playlist not found")
	ErrTrackNotFound    = fmt.Errorf("track not found")
	ErrUnknownPlatform  = fmt.Errorf("unknown platform")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
)
