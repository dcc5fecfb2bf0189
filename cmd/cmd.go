// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// setupCommand initializes the database and config file
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Initialize database and run migrations",
		Flags:  []cli.Flag{configFlag()},
		Action: r.SetupDatabase,
	}
}

// headersCommand captures provider request headers from a browser cURL command
func headersCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "headers",
		Usage: "Save provider request headers from a captured cURL command",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:  "curl",
				Usage: "cURL command copied from browser dev tools",
			},
			&cli.StringFlag{
				Name:  "curl-file",
				Usage: "File containing the cURL command",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Where to save the capture (defaults to provider.headers_path)",
			},
		},
		Action: r.SetupHeaders,
	}
}

// serveCommand runs the worker and the HTTP task API
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the download worker and task API server",
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{
				Name:  "no-api",
				Usage: "Run the worker only, without the HTTP API",
			},
		},
		Action: r.Serve,
	}
}

// addCommand enqueues a download task
func addCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "add",
		Usage: "Enqueue a download task",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:     "title",
				Usage:    "Track title",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "artist",
				Usage: "Track artist",
			},
			&cli.StringFlag{
				Name:  "album",
				Usage: "Track album",
			},
			&cli.StringFlag{
				Name:  "copyright-id",
				Usage: "Provider copyright ID",
			},
			&cli.StringFlag{
				Name:  "content-id",
				Usage: "Provider content ID (defaults to the copyright ID)",
			},
			&cli.StringFlag{
				Name:  "url",
				Usage: "Known stream URL, skips resolution",
			},
			&cli.StringFlag{
				Name:  "formats",
				Usage: "Raw available-formats payload from search results",
			},
			&cli.StringFlag{
				Name:    "quality",
				Aliases: []string{"q"},
				Usage:   "Preferred quality (low, mid, high, lossless)",
			},
			&cli.BoolFlag{
				Name:  "no-degrade",
				Usage: "Fail instead of falling back to lower qualities",
			},
		},
		Action: r.AddTask,
	}
}

// listCommand lists tasks
func listCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List download tasks",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:  "status",
				Usage: "Filter by status (queued, downloading, organizing, done, failed)",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text, csv, markdown, json",
				Value:   "text",
			},
		},
		Action: r.ListTasks,
	}
}

// showCommand shows one task in detail
func showCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "show",
		Usage: "Show one task with full detail",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "id",
			},
		},
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
				Value: true,
			},
		},
		Action: r.ShowTask,
	}
}

// retryCommand re-enqueues a failed task as a fresh one
func retryCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "retry",
		Usage: "Clone a failed task back onto the queue",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "id",
			},
		},
		Flags:  []cli.Flag{configFlag()},
		Action: r.RetryTask,
	}
}
