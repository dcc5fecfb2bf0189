package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/desertthunder/trackdock/internal/download"
	"github.com/desertthunder/trackdock/internal/library"
	"github.com/desertthunder/trackdock/internal/repositories"
	"github.com/desertthunder/trackdock/internal/server"
	"github.com/desertthunder/trackdock/internal/services"
	"github.com/desertthunder/trackdock/internal/tasks"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

// Serve runs the download worker, and unless --no-api is set, the HTTP task
// API beside it. Both stop on SIGINT/SIGTERM.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd.String("config"))

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	repo := repositories.NewTaskRepository(db)
	header := r.providerHeader()

	client := services.NewClient(services.ClientOpts{
		BaseURL:      r.config.Provider.BaseURL,
		DownloadHost: r.config.Provider.DownloadHost,
		Header:       header,
		ProbeTimeout: r.config.Provider.ProbeTimeout(),
		RateLimit:    r.config.Provider.RateLimit,
	})

	engine := tasks.NewDownloadEngine(
		repo,
		services.NewResolver(client, r.logger),
		download.NewStreamer(download.StreamerOpts{
			StagingDir:    r.config.Paths.StagingDir,
			Header:        header,
			StreamTimeout: r.config.Provider.StreamTimeout(),
		}, r.logger),
		library.NewCommitter(r.config.Paths.LibraryDir, r.logger),
		r.logger,
	)
	progress := make(chan tasks.ProgressUpdate, 16)
	worker := tasks.NewWorker(repo, engine, r.config.Worker.PollInterval(), progress, r.logger)

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(runCtx)

	go func() {
		for {
			select {
			case <-groupCtx.Done():
				return
			case update := <-progress:
				r.writePlain("[%s] %s\n", update.Phase, update.Message)
			}
		}
	}()

	group.Go(func() error {
		if err := worker.Run(groupCtx); err != nil && groupCtx.Err() == nil {
			return err
		}
		return nil
	})

	if !cmd.Bool("no-api") {
		router := server.NewBasicRouter()
		router.Use(server.RecoveryMiddleware(r.logger), server.LoggingMiddleware(r.logger))
		router.Handler(server.NewTaskHandler(repo, r.config.Quality, r.logger))
		router.Handler(&server.HealthHandler{})

		app := server.NewApp(r.config.Server, router, r.logger)
		group.Go(func() error {
			return app.Run(groupCtx)
		})
	}

	return group.Wait()
}
