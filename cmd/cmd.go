// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func identityFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "user",
			Aliases: []string{"u"},
			Usage:   "User ID (defaults to user.id from config)",
		},
		&cli.StringFlag{
			Name:  "email",
			Usage: "User email (defaults to user.email from config)",
		},
	}
}

func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Output format (text, json, csv, markdown)",
			Value:   "text",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Write the result to a file instead of stdout",
		},
	}
}

// setupCommand handles setup operations for the local database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Create the config file if missing, initialize the database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent database migration",
				Action: r.SetupRollback,
			},
		},
	}
}

// linkCommand handles provider linking.
func linkCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "link",
		Usage: "Link music providers",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Link providers in order, then initialize your model",
				Flags: append(append([]cli.Flag{
					&cli.StringSliceFlag{
						Name:    "provider",
						Aliases: []string{"p"},
						Usage:   "Provider ID to link, repeatable (defaults to every configured provider)",
					},
					&cli.BoolFlag{
						Name:  "tui",
						Usage: "Run the interactive terminal UI",
					},
				}, identityFlags()...), outputFlags()...),
				Action: r.LinkRun,
			},
			{
				Name:  "device",
				Usage: "Run one device authorization flow and wait for the user",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "provider",
					},
				},
				Flags: append([]cli.Flag{
					&cli.BoolFlag{
						Name:  "open",
						Usage: "Open the verification link in the browser",
					},
					&cli.BoolFlag{
						Name:  "no-sync",
						Usage: "Skip importing the library after linking",
					},
				}, identityFlags()...),
				Action: r.LinkDevice,
			},
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List stored link records",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "session",
						Usage: "Only records from this session",
					},
					&cli.StringFlag{
						Name:    "provider",
						Aliases: []string{"p"},
						Usage:   "Only records for this provider",
					},
					&cli.BoolFlag{
						Name:  "latest",
						Usage: "Only the most recent record per provider",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format (text, json, csv)",
						Value:   "text",
					},
				},
				Action: r.LinkList,
			},
		},
	}
}

// initCommand handles model initialization on its own.
func initCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Model initialization",
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Run initialization for already linked providers",
				Flags:  append(identityFlags(), &cli.BoolFlag{Name: "json", Usage: "Output raw JSON"}),
				Action: r.InitRun,
			},
			{
				Name:   "status",
				Usage:  "Show the most recent initialization",
				Flags:  append(identityFlags(), &cli.BoolFlag{Name: "json", Usage: "Output raw JSON"}),
				Action: r.InitStatus,
			},
		},
	}
}
