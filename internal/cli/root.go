// Package cli implements the mediaingest command line: batch uploads of
// local files and ZIP archives, the HTTP server, migrations and category
// management.
package cli

import (
	"context"
	"io"
	"os"

	"github.com/dmitrijs2005/mediaingest/internal/api"
	"github.com/dmitrijs2005/mediaingest/internal/config"
	"github.com/dmitrijs2005/mediaingest/internal/ingest/progress"
	"github.com/dmitrijs2005/mediaingest/internal/logging"
	"github.com/dmitrijs2005/mediaingest/internal/models"
	"github.com/dmitrijs2005/mediaingest/internal/server"
	"github.com/spf13/cobra"
)

// Uploader runs one batch to completion.
type Uploader interface {
	HandleFileChange(ctx context.Context, selection []models.RawFile, target models.UploadTarget) (*models.BatchResult, error)
	CancelUpload(name string) int
	Tracker() *progress.Tracker
}

// Runtime is everything a command needs from a connected application.
type Runtime struct {
	Uploader   Uploader
	Categories api.Categories
	Migrate    func(ctx context.Context) error
	Run        func(ctx context.Context) error
	Close      func() error
}

var connect = func(ctx context.Context, c *config.Config, logger logging.Logger) (*Runtime, error) {
	app, err := server.NewApp(ctx, c, logger)
	if err != nil {
		return nil, err
	}
	return &Runtime{
		Uploader:   app.Ingest(),
		Categories: app.Catalog(),
		Migrate:    app.Migrate,
		Run:        app.Run,
		Close:      app.Close,
	}, nil
}

// Execute loads the configuration file named on the command line, then
// parses flags on top of it and runs the selected command.
func Execute() error {
	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		return err
	}
	return NewRootCmd(cfg).Execute()
}

func NewRootCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "mediaingest",
		Short:         "Bulk media ingestion into S3-compatible storage",
		Long:          "Uploads media files and ZIP archives into a container's asset space, tracking per-file progress and notifying a webhook on completion.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cfg.Validate()
		},
	}

	config.BindFlags(cmd.PersistentFlags(), cfg)

	cmd.AddCommand(newUploadCmd(cfg))
	cmd.AddCommand(newServeCmd(cfg))
	cmd.AddCommand(newMigrateCmd(cfg))
	cmd.AddCommand(newCategoriesCmd(cfg))
	return cmd
}

func newLogger(w io.Writer, cfg *config.Config) logging.Logger {
	return logging.NewLogger(w, cfg.LogFormat, cfg.LogLevel)
}

// open connects and, when enabled, applies migrations first.
func open(cmd *cobra.Command, cfg *config.Config) (*Runtime, error) {
	ctx := cmd.Context()
	rt, err := connect(ctx, cfg, newLogger(cmd.ErrOrStderr(), cfg))
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := rt.Migrate(ctx); err != nil {
			_ = rt.Close()
			return nil, err
		}
	}
	return rt, nil
}
