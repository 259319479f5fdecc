package tasks

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/Impirs/Orbitune/internal/platforms"
	"github.com/Impirs/Orbitune/internal/shared"
)

// Coordinator serializes sync runs per (user, platform). A second sync
// requested while one is in flight fails immediately with
// shared.ErrAlreadySyncing instead of queueing.
type Coordinator struct {
	db       *sql.DB
	registry *platforms.Registry
	logger   *log.Logger

	mu      sync.Mutex
	running map[string]struct{}
}

// NewCoordinator creates a Coordinator over the adapter registry.
func NewCoordinator(db *sql.DB, registry *platforms.Registry, logger *log.Logger) *Coordinator {
	return &Coordinator{
		db:       db,
		registry: registry,
		logger:   logger,
		running:  make(map[string]struct{}),
	}
}

// Sync runs a full library sync for (user, platform) and blocks until it
// finishes. Fails with shared.ErrUnknownPlatform, shared.ErrNotConnected, or
// shared.ErrAlreadySyncing before any work starts.
func (c *Coordinator) Sync(ctx context.Context, userID, platform string, progress chan<- ProgressUpdate) (*RunResult, error) {
	client, err := c.registry.Client(userID, platform)
	if err != nil {
		return nil, err
	}

	key := userID + "/" + platform
	if !c.acquire(key) {
		return nil, fmt.Errorf("%w: %s", shared.ErrAlreadySyncing, key)
	}
	defer c.release(key)

	return NewSynchronizer(c.db, client, c.logger, userID).Run(ctx, progress)
}

// SyncAsync starts a sync in the background. Failures are logged, not
// returned; callers that need the result use Sync.
func (c *Coordinator) SyncAsync(ctx context.Context, userID, platform string, progress chan<- ProgressUpdate) error {
	client, err := c.registry.Client(userID, platform)
	if err != nil {
		return err
	}

	key := userID + "/" + platform
	if !c.acquire(key) {
		return fmt.Errorf("%w: %s", shared.ErrAlreadySyncing, key)
	}

	go func() {
		defer c.release(key)
		if _, err := NewSynchronizer(c.db, client, c.logger, userID).Run(ctx, progress); err != nil {
			c.logger.Error("background sync failed", "user", userID, "platform", platform, "err", err)
		}
	}()
	return nil
}

// Running reports whether a sync is in flight for (user, platform).
func (c *Coordinator) Running(userID, platform string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.running[userID+"/"+platform]
	return ok
}

func (c *Coordinator) acquire(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.running[key]; ok {
		return false
	}
	c.running[key] = struct{}{}
	return true
}

func (c *Coordinator) release(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.running, key)
}
