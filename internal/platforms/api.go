package platforms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/Impirs/Orbitune/internal/shared"
)

// errUnauthorized marks a 401 internally so apiCall can decide whether a
// refresh attempt is still available for this logical call.
var errUnauthorized = errors.New("unauthorized")

// apiClient performs authenticated JSON GETs against one platform's API for
// one user: every request waits on the rate limiter, carries a bounded
// timeout, and reads the current access token at send time so a mid-call
// refresh takes effect on the retry.
type apiClient struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	timeout    time.Duration
	logger     *log.Logger

	// authHeader returns the Authorization header value for the current
	// token; nil means unauthenticated requests.
	authHeader func() string

	// refresh obtains and persists a new access token; nil when the
	// platform has no refresh flow.
	refresh func(ctx context.Context) error
}

// call starts a logical API call. Pagination loops share one apiCall so the
// whole operation refreshes at most once, no matter how many pages it spans.
func (c *apiClient) call() *apiCall {
	return &apiCall{client: c}
}

type apiCall struct {
	client    *apiClient
	refreshed bool
}

// getJSON fetches url and decodes the response body into out. On a 401 it
// triggers exactly one RefreshCredentials attempt and retries exactly once;
// a failed refresh or a second 401 surfaces as shared.ErrAuthExpired.
func (a *apiCall) getJSON(ctx context.Context, url string, out any) error {
	err := a.client.do(ctx, url, out)
	if !errors.Is(err, errUnauthorized) {
		return err
	}

	if a.refreshed || a.client.refresh == nil {
		return fmt.Errorf("%w: token rejected", shared.ErrAuthExpired)
	}
	a.refreshed = true

	if rerr := a.client.refresh(ctx); rerr != nil {
		return fmt.Errorf("%w: %v", shared.ErrAuthExpired, rerr)
	}

	err = a.client.do(ctx, url, out)
	if errors.Is(err, errUnauthorized) {
		return fmt.Errorf("%w: token rejected after refresh", shared.ErrAuthExpired)
	}
	return err
}

// do performs a single rate-limited, deadline-bounded GET. Timeouts and
// transport failures classify as shared.ErrRemoteUnavailable, matching the
// handling of a non-2xx status.
func (c *apiClient) do(ctx context.Context, url string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrRemoteUnavailable, err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if c.authHeader != nil {
		req.Header.Set("Authorization", c.authHeader())
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return errUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d for %s", shared.ErrRemoteUnavailable, resp.StatusCode, url)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// listDegrade converts an expired-auth failure into an empty result for list
// operations, which degrade rather than abort. Other errors pass through.
func listDegrade[T any](logger *log.Logger, op string, err error) ([]T, error) {
	if errors.Is(err, shared.ErrAuthExpired) {
		logger.Warn("authorization expired, returning empty result", "op", op)
		return nil, nil
	}
	return nil, err
}
