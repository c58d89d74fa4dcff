// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// globalFlags are shared by every command.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			Value:   "config.toml",
		},
		&cli.StringFlag{
			Name:  "env-file",
			Usage: "Path to a .env file with variable overrides",
			Value: ".env",
		},
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "Enable debug logging",
		},
	}
}

// syncCommand runs passes forever, sleeping between them
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Mirror provider playlists into Plex on a schedule",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "lock",
				Usage: "Lock file guarding against a second daemon (default: next to the database)",
			},
		},
		Action: r.Sync,
	}
}

// onceCommand runs a single pass and prints its summary
func onceCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "once",
		Usage: "Run a single sync pass and print a summary",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "Only print the final summary",
			},
		},
		Action: r.Once,
	}
}

// historyCommand lists recorded passes
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show recent sync passes",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of passes to show",
				Value:   10,
			},
			&cli.StringFlag{
				Name:  "run",
				Usage: "Show playlists and missing tracks of one pass",
			},
			&cli.IntFlag{
				Name:  "prune",
				Usage: "Delete all but the newest N passes",
				Value: -1,
			},
		},
		Action: r.History,
	}
}

// checkCommand verifies media server connectivity
func checkCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "check",
		Usage:  "Verify the Plex connection and list configured providers",
		Action: r.Check,
	}
}

// configCommand manages the configuration file
func configCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "init",
				Usage:  "Write an example config.toml",
				Action: r.ConfigInit,
			},
		},
	}
}
