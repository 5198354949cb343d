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

func kindFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "kind",
		Aliases: []string{"k"},
		Usage:   "Cache kind (tracks or artists)",
	}
}

// runCommand enriches one event or brand audience.
func runCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Fetch customer profiles, aggregate likes, gender and music fans, then publish",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:     "id",
				Usage:    "Event or brand id",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "type",
				Aliases: []string{"t"},
				Usage:   "Target type (event or brand)",
				Value:   "event",
			},
			&cli.StringFlag{
				Name:    "section",
				Aliases: []string{"s"},
				Usage:   "Section to build (all, likes, gender or music)",
				Value:   "all",
			},
			&cli.BoolFlag{
				Name:  "include-ids",
				Usage: "Publish the customer ids with the documents",
			},
			&cli.StringFlag{
				Name:  "ids",
				Usage: "Comma separated customer ids instead of the id source",
			},
			&cli.StringFlag{
				Name:  "ids-file",
				Usage: "File with one customer id per line instead of the id source",
			},
			&cli.StringFlag{
				Name:    "output-dir",
				Aliases: []string{"o"},
				Usage:   "Also write the documents and CSV reports into this directory",
			},
			&cli.BoolFlag{
				Name:  "tui",
				Usage: "Show interactive progress (terminal only)",
			},
			&cli.BoolFlag{
				Name:  "log-file",
				Usage: "Write a per-run log file (defaults to log.file)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the run result as JSON",
			},
		},
		Action: r.Run,
	}
}

// cacheCommand inspects the sharded track and artist caches.
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect the track and artist caches",
		Commands: []*cli.Command{
			{
				Name:   "stats",
				Usage:  "Show entry counts and shard folders",
				Flags:  []cli.Flag{configFlag(), kindFlag()},
				Action: r.CacheStats,
			},
			{
				Name:  "get",
				Usage: "Print one cached artifact",
				Flags: []cli.Flag{
					configFlag(),
					kindFlag(),
					&cli.StringFlag{
						Name:     "key",
						Usage:    "Track or artist id",
						Required: true,
					},
				},
				Action: r.CacheGet,
			},
		},
	}
}

// runsCommand lists recorded runs.
func runsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "Show run history",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recorded runs, newest first",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:  "type",
						Usage: "Filter by target type",
					},
					&cli.StringFlag{
						Name:  "id",
						Usage: "Filter by target id",
					},
					&cli.StringFlag{
						Name:  "status",
						Usage: "Filter by status (running, succeeded or failed)",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of runs to return",
						Value: 20,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.RunsList,
			},
			{
				Name:  "show",
				Usage: "Show one run",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "run-id"},
				},
				Flags:  []cli.Flag{configFlag()},
				Action: r.RunsShow,
			},
		},
	}
}

// documentsCommand reads documents published to the sqlite sink.
func documentsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "documents",
		Aliases: []string{"docs"},
		Usage:   "Read documents published to the sqlite sink",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List document ids",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:  "prefix",
						Usage: "Only ids starting with prefix, e.g. event-623",
					},
				},
				Action: r.DocumentsList,
			},
			{
				Name:  "get",
				Usage: "Print one document",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "document-id"},
				},
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.DocumentsGet,
			},
		},
	}
}

// setupCommand handles setup operations for configuration and the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write a config file from the built-in template",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupDatabase,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the latest database migration",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupRollback,
			},
		},
	}
}
