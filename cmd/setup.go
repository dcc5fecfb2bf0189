package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/desertthunder/trackdock/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		} else {
			r.logger.Info("config file created", "path", configPath)
		}
	}
	r.reloadConfig(configPath)

	r.logger.Info("initializing database", "path", r.config.Database.Path)

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	return nil
}

// SetupHeaders validates a captured browser cURL command and saves it where
// the provider client will find it.
func (r *Runner) SetupHeaders(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd.String("config"))

	curlCmd := cmd.String("curl")
	curlFile := cmd.String("curl-file")
	outputPath := cmd.String("output")

	if curlCmd == "" && curlFile == "" {
		return fmt.Errorf("%w: either --curl or --curl-file must be provided", shared.ErrMissingArgument)
	}
	if curlCmd != "" && curlFile != "" {
		return fmt.Errorf("%w: cannot specify both --curl and --curl-file", shared.ErrInvalidArgument)
	}

	if curlFile != "" {
		raw, err := os.ReadFile(curlFile)
		if err != nil {
			return fmt.Errorf("failed to read cURL file: %w", err)
		}
		curlCmd = string(raw)
	}

	curlHeaders, err := shared.ParseCurlCommand(curlCmd)
	if err != nil {
		return fmt.Errorf("failed to parse cURL command: %w", err)
	}

	header := curlHeaders.Header()
	r.logger.Info("parsed cURL command", "headers", len(header))

	if outputPath == "" {
		outputPath = r.config.Provider.HeadersPath
	}
	if outputPath == "" {
		return fmt.Errorf("%w: no --output given and provider.headers_path is not configured", shared.ErrMissingArgument)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(outputPath, []byte(curlCmd), 0600); err != nil {
		return fmt.Errorf("failed to write capture: %w", err)
	}

	r.logger.Info("headers capture saved", "path", outputPath)

	r.writePlain("Provider headers configured (%d headers)\n", len(header))
	r.writePlain("Capture saved to: %s\n", outputPath)
	if outputPath != r.config.Provider.HeadersPath {
		r.writePlain("Update config.toml with: provider.headers_path = %q\n", outputPath)
	}

	return nil
}
