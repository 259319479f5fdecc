// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

func userFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "user",
		Aliases: []string{"u"},
		Usage:   "User the command acts for",
		Value:   "default",
	}
}

// setupCommand initializes configuration and the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create config.toml and initialize the database",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Setup,
	}
}

// syncCommand runs a library sync for one platform.
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Sync a platform's playlists and favorites into the local catalog",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "platform"},
		},
		Flags:  []cli.Flag{userFlag()},
		Action: r.Sync,
	}
}

// accountsCommand manages connected platform accounts.
func accountsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "accounts",
		Aliases: []string{"account"},
		Usage:   "Manage connected platform accounts",
		Commands: []*cli.Command{
			{
				Name:  "connect",
				Usage: "Store tokens for a platform (spotify, yandex, youtube)",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "platform"},
				},
				Flags: []cli.Flag{
					userFlag(),
					&cli.StringFlag{
						Name:     "external-id",
						Usage:    "Platform-side user id",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "access-token",
						Usage:    "Access token obtained out of band",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "refresh-token",
						Usage: "Refresh token, if the platform issues one",
					},
				},
				Action: r.AccountsConnect,
			},
			{
				Name:   "status",
				Usage:  "List connected accounts and their platform stats",
				Flags:  []cli.Flag{userFlag()},
				Action: r.AccountsStatus,
			},
			{
				Name:  "disconnect",
				Usage: "Remove a platform's stored tokens",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "platform"},
				},
				Flags:  []cli.Flag{userFlag()},
				Action: r.AccountsDisconnect,
			},
		},
	}
}

// playlistsCommand lists canonical playlists.
func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlists",
		Aliases: []string{"pl"},
		Usage:   "List synced playlists",
		Flags: []cli.Flag{
			userFlag(),
			&cli.StringFlag{
				Name:    "platform",
				Aliases: []string{"p"},
				Usage:   "Filter by source platform",
			},
		},
		Action: r.Playlists,
	}
}

// tracksCommand lists one playlist's tracks.
func tracksCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tracks",
		Usage: "List a playlist's tracks in synced order",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "id"},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: table or csv",
				Value:   "table",
			},
		},
		Action: r.Tracks,
	}
}

// favoritesCommand prints a platform's favorites summary.
func favoritesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "favorites",
		Aliases: []string{"fav"},
		Usage:   "Show the liked-tracks summary for a platform",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "platform"},
		},
		Flags:  []cli.Flag{userFlag()},
		Action: r.Favorites,
	}
}

// serveCommand starts the HTTP API.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Serve the JSON API over the canonical catalog",
		Action: r.Serve,
	}
}
