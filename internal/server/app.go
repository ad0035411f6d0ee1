// Package server assembles the ingestion pipeline from configuration:
// database, object storage, catalog, transfer and archive stages, the
// completion webhook and the HTTP API.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/mediaingest/internal/api"
	"github.com/dmitrijs2005/mediaingest/internal/catalog"
	"github.com/dmitrijs2005/mediaingest/internal/config"
	"github.com/dmitrijs2005/mediaingest/internal/ingest"
	"github.com/dmitrijs2005/mediaingest/internal/ingest/archive"
	"github.com/dmitrijs2005/mediaingest/internal/ingest/cancel"
	"github.com/dmitrijs2005/mediaingest/internal/ingest/destination"
	"github.com/dmitrijs2005/mediaingest/internal/ingest/progress"
	"github.com/dmitrijs2005/mediaingest/internal/ingest/transfer"
	"github.com/dmitrijs2005/mediaingest/internal/logging"
	"github.com/dmitrijs2005/mediaingest/internal/notify"
	"github.com/dmitrijs2005/mediaingest/internal/repositories/repomanager"
	"github.com/dmitrijs2005/mediaingest/internal/storage/s3store"
)

var (
	openDB = repomanager.OpenDB

	newStore = func(ctx context.Context, c *config.Config) (ObjectStore, error) {
		return s3store.New(ctx, c)
	}
)

// ObjectStore is the S3 store plus its health probe.
type ObjectStore interface {
	transfer.ObjectStore
	Ping(ctx context.Context) error
}

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	repos   repomanager.RepositoryManager
	store   ObjectStore
	catalog *catalog.Service
	ingest  *ingest.Service
}

// NewApp connects to the database and object storage and wires the pipeline.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	db, err := openDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	store, err := newStore(ctx, c)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("object store init error: %w", err)
	}

	return build(c, db, repomanager.NewPostgresRepositoryManager(), store, logger), nil
}

func build(c *config.Config, db *sql.DB, repos repomanager.RepositoryManager, store ObjectStore, logger logging.Logger) *App {
	maxSize := c.MaxFileSizeBytes()

	cat := catalog.NewService(db, repos)
	registry := cancel.NewRegistry()
	tracker := progress.NewTracker()

	transferer := transfer.NewTransferer(store, cat, registry, logger, maxSize, c.ChunkSizeBytes)
	expander := archive.NewExpander(transferer, cat, registry, logger)
	resolver := destination.NewResolver(cat, logger)
	webhook := notify.NewWebhook(c.WebhookURL, c.WebhookSecret, c.WebhookTimeout, logger)

	svc := ingest.NewService(tracker, registry, transferer, expander, resolver, webhook, logger, maxSize)

	return &App{
		config:  c,
		logger:  logger,
		db:      db,
		repos:   repos,
		store:   store,
		catalog: cat,
		ingest:  svc,
	}
}

func (app *App) Ingest() *ingest.Service   { return app.ingest }
func (app *App) Catalog() *catalog.Service { return app.catalog }

// Migrate applies the embedded schema migrations.
func (app *App) Migrate(ctx context.Context) error {
	app.logger.Info(ctx, "applying migrations")
	return app.repos.RunMigrations(ctx, app.db)
}

// Handler builds the HTTP handler set. Batches started over HTTP run under
// ctx rather than the request context.
func (app *App) Handler(ctx context.Context) *api.Handler {
	checks := map[string]api.Pinger{
		"db": pingFunc(app.db.PingContext),
		"s3": app.store,
	}
	return api.NewHandler(ctx, app.ingest, app.catalog, checks, app.logger)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves the HTTP API until ctx is done or a termination signal arrives.
// A running batch is cancelled on shutdown.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	if app.config.AutoMigrate {
		if err := app.Migrate(ctx); err != nil {
			return err
		}
	}

	e := api.NewRouter(app.Handler(ctx), app.logger, app.config.BodyLimit)
	err := api.Serve(ctx, e, app.config.HTTPAddr, app.logger)

	if app.ingest.Active() {
		app.ingest.CancelUpload("")
	}
	return err
}

func (app *App) Close() error {
	if app.db == nil {
		return nil
	}
	return app.db.Close()
}

type pingFunc func(ctx context.Context) error

func (p pingFunc) Ping(ctx context.Context) error {
	if p == nil {
		return errors.New("not configured")
	}
	return p(ctx)
}
