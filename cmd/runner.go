package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/Impirs/Orbitune/internal/catalog"
	"github.com/Impirs/Orbitune/internal/formatter"
	"github.com/Impirs/Orbitune/internal/models"
	"github.com/Impirs/Orbitune/internal/platforms"
	"github.com/Impirs/Orbitune/internal/server"
	"github.com/Impirs/Orbitune/internal/shared"
	"github.com/Impirs/Orbitune/internal/tasks"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config *shared.Config
	logger *log.Logger
	output io.Writer

	db          *sql.DB
	registry    *platforms.Registry
	coordinator *tasks.Coordinator
	accounts    *catalog.AccountStore
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config *shared.Config
	Logger *log.Logger
	Output io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config: opts.Config,
		logger: opts.Logger,
		output: opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, syncCommand, accountsCommand, playlistsCommand, tracksCommand, favoritesCommand, serveCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// init opens the database and wires the adapter registry and coordinator.
// Safe to call from every action; the first call wins.
func (r *Runner) init() error {
	if r.db != nil {
		return nil
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return err
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	r.db = db
	r.accounts = catalog.NewAccountStore(db)
	r.registry = platforms.NewRegistry(platforms.Deps{
		Accounts: r.accounts,
		Config:   r.config,
		Logger:   r.logger,
	})
	r.coordinator = tasks.NewCoordinator(db, r.registry, r.logger)
	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	if _, err := fmt.Fprintf(r.output, format, args...); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// Setup initializes the configuration file and database.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	if err := shared.CreateConfigFile(path); err != nil {
		if errors.Is(err, shared.ErrInvalidInput) {
			r.logger.Info("config file already exists", "path", path)
		} else {
			return err
		}
	} else {
		r.writePlain("Created %s - fill in your platform credentials.\n", path)
	}

	if err := r.init(); err != nil {
		return err
	}
	r.writePlain("Database ready at %s.\n", r.config.Database.Path)
	return nil
}

// Sync runs a blocking library sync for one platform, streaming progress to
// the terminal.
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command) error {
	if err := r.init(); err != nil {
		return err
	}

	platform := cmd.StringArg("platform")
	if platform == "" {
		return fmt.Errorf("%w: platform argument required", shared.ErrMissingArgument)
	}
	user := cmd.String("user")

	progress := make(chan tasks.ProgressUpdate, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			r.writePlain("%s\n", update.Message)
		}
	}()

	result, err := r.coordinator.Sync(ctx, user, platform, progress)
	close(progress)
	<-done

	if result != nil {
		r.writePlain("\n%d playlists, %d tracks", result.Playlists, result.Tracks)
		if result.Pruned > 0 {
			r.writePlain(", %d pruned", result.Pruned)
		}
		r.writePlain("\n")
	}
	return err
}

// AccountsConnect stores a connected account from supplied tokens.
func (r *Runner) AccountsConnect(ctx context.Context, cmd *cli.Command) error {
	if err := r.init(); err != nil {
		return err
	}

	platform := cmd.StringArg("platform")
	if platform == "" {
		return fmt.Errorf("%w: platform argument required", shared.ErrMissingArgument)
	}

	account := &models.ConnectedAccount{
		UserID:         cmd.String("user"),
		Platform:       platform,
		ExternalUserID: cmd.String("external-id"),
		AccessToken:    cmd.String("access-token"),
		RefreshToken:   cmd.String("refresh-token"),
	}
	if err := r.accounts.Upsert(account); err != nil {
		return err
	}

	r.writePlain("Connected %s for user %s.\n", platform, account.UserID)
	return nil
}

// AccountsStatus lists connected accounts and queries each platform's stats.
func (r *Runner) AccountsStatus(ctx context.Context, cmd *cli.Command) error {
	if err := r.init(); err != nil {
		return err
	}

	user := cmd.String("user")
	accounts, err := r.accounts.List(user)
	if err != nil {
		return err
	}
	r.writePlain("%s", formatter.AccountTable(accounts))

	for _, account := range accounts {
		client, err := r.registry.Client(user, account.Platform)
		if err != nil {
			r.logger.Warn("failed to build platform client", "platform", account.Platform, "err", err)
			continue
		}

		stats, err := client.Stats(ctx)
		if err != nil {
			r.logger.Warn("failed to fetch platform stats", "platform", account.Platform, "err", err)
			continue
		}
		r.writePlain("\n%s", formatter.StatsText(account.Platform, stats))
	}
	return nil
}

// AccountsDisconnect removes a connected account and its tokens.
func (r *Runner) AccountsDisconnect(ctx context.Context, cmd *cli.Command) error {
	if err := r.init(); err != nil {
		return err
	}

	platform := cmd.StringArg("platform")
	if platform == "" {
		return fmt.Errorf("%w: platform argument required", shared.ErrMissingArgument)
	}

	if err := r.accounts.Delete(cmd.String("user"), platform); err != nil {
		return err
	}
	r.writePlain("Disconnected %s.\n", platform)
	return nil
}

// Playlists lists canonical playlists, optionally filtered by platform.
func (r *Runner) Playlists(ctx context.Context, cmd *cli.Command) error {
	if err := r.init(); err != nil {
		return err
	}

	playlists, err := catalog.New(r.db).ListPlaylists(cmd.String("user"), cmd.String("platform"))
	if err != nil {
		return err
	}
	return r.writePlain("%s", formatter.PlaylistTable(playlists))
}

// Tracks lists a canonical playlist's tracks in stored order, as a table or CSV.
func (r *Runner) Tracks(ctx context.Context, cmd *cli.Command) error {
	if err := r.init(); err != nil {
		return err
	}

	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: playlist id argument required", shared.ErrMissingArgument)
	}

	cat := catalog.New(r.db)
	playlist, err := cat.GetPlaylist(id)
	if err != nil {
		return err
	}
	tracks, err := cat.ListPlaylistTracks(id)
	if err != nil {
		return err
	}

	if cmd.String("format") == "csv" {
		data, err := formatter.TracksToCSV(tracks)
		if err != nil {
			return err
		}
		if _, err := r.output.Write(data); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}
	return r.writePlain("%s", formatter.TrackTable(playlist.Title, tracks))
}

// Favorites prints the favorites summary for one platform.
func (r *Runner) Favorites(ctx context.Context, cmd *cli.Command) error {
	if err := r.init(); err != nil {
		return err
	}

	platform := cmd.StringArg("platform")
	if platform == "" {
		return fmt.Errorf("%w: platform argument required", shared.ErrMissingArgument)
	}

	fp, err := catalog.New(r.db).GetFavorites(cmd.String("user"), platform)
	if err != nil {
		return err
	}
	return r.writePlain("%s", formatter.FavoritesText(fp))
}

// Serve starts the HTTP API server.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if err := r.init(); err != nil {
		return err
	}

	router := server.NewBasicRouter()
	router.Use(server.Logging(r.logger))
	router.Handler(server.NewAPIHandler(r.db, r.registry, r.coordinator, r.logger))

	addr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	r.logger.Info("serving API", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
