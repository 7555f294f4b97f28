package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/scry-import/internal/config"
	"github.com/phrazzld/scry-import/internal/events"
	"github.com/phrazzld/scry-import/internal/export"
	"github.com/phrazzld/scry-import/internal/generation"
	"github.com/phrazzld/scry-import/internal/media"
	"github.com/phrazzld/scry-import/internal/platform/gemini"
	"github.com/phrazzld/scry-import/internal/platform/metrics"
	"github.com/phrazzld/scry-import/internal/platform/postgres"
	"github.com/phrazzld/scry-import/internal/queue"
	"github.com/phrazzld/scry-import/internal/service"
)

// Exporter names used in export results.
const (
	ExporterFile     = "file"
	ExporterPostgres = "postgres"
)

// Option customises how an Application is built.
type Option func(*options)

type options struct {
	analyzer generation.Analyzer
	handlers []events.EventHandler
	migrate  bool
}

// WithAnalyzer replaces the Gemini-backed analysis pipeline.
func WithAnalyzer(a generation.Analyzer) Option {
	return func(o *options) { o.analyzer = a }
}

// WithEventHandler registers an extra handler for queue events.
func WithEventHandler(h events.EventHandler) Option {
	return func(o *options) { o.handlers = append(o.handlers, h) }
}

// WithMigrations applies pending migrations after connecting to the database.
func WithMigrations() Option {
	return func(o *options) { o.migrate = true }
}

// Application holds all the shared dependencies to simplify management and
// ensure proper cleanup on shutdown.
type Application struct {
	Config *config.Config
	Logger *slog.Logger

	// DB is nil when no database URL is configured.
	DB *sql.DB

	Emitter  *events.Dispatcher
	Metrics  *metrics.Collector
	Queue    *queue.Queue
	Service  *service.ImportService
	Exporter *export.FileExporter
}

// New creates an Application with every dependency initialised.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Application, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &Application{Config: cfg, Logger: logger}

	analyzer := o.analyzer
	if analyzer == nil {
		var err error
		analyzer, err = newAnalyzer(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
	}

	a.Emitter = events.NewDispatcher(logger)
	a.Metrics = metrics.NewCollector()
	a.Emitter.Subscribe(a.Metrics)
	for _, h := range o.handlers {
		a.Emitter.Subscribe(h)
	}

	var err error
	a.Queue, err = queue.New(analyzer, cfg.Queue.Policy(), logger, queue.WithEmitter(a.Emitter))
	if err != nil {
		return nil, fmt.Errorf("failed to create queue: %w", err)
	}

	a.Exporter, err = export.NewFileExporter(cfg.Export.Dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create file exporter: %w", err)
	}
	svcOpts := []service.Option{service.WithExporter(ExporterFile, a.Exporter)}

	if cfg.Database.URL != "" {
		a.DB, err = postgres.Open(ctx, cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		if o.migrate {
			if err := postgres.Migrate(ctx, a.DB, "up", logger); err != nil {
				_ = a.DB.Close()
				return nil, err
			}
		}
		artifacts := postgres.NewArtifactStore(a.DB, logger)
		svcOpts = append(svcOpts,
			service.WithLibrary(artifacts),
			service.WithExporter(ExporterPostgres, artifacts))
	} else {
		logger.Info("no database configured, library checks and database export disabled")
	}

	a.Service, err = service.NewImportService(a.Queue, logger, svcOpts...)
	if err != nil {
		a.closeDB()
		return nil, fmt.Errorf("failed to create import service: %w", err)
	}

	logger.Info("application initialized",
		"model", cfg.LLM.ModelName,
		"database", a.DB != nil,
		"export_dir", cfg.Export.Dir,
		"media_dir", cfg.Media.Dir)
	return a, nil
}

func newAnalyzer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (generation.Analyzer, error) {
	extractor, err := gemini.NewExtractor(ctx, logger, cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize exercise extractor: %w", err)
	}
	renderer, err := media.NewLocalRenderer(cfg.Media.Dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize media renderer: %w", err)
	}
	return generation.NewPipeline(extractor, renderer)
}

// Close stops the active run, waiting until ctx ends, and releases resources.
func (a *Application) Close(ctx context.Context) error {
	var errs []error
	if err := a.Service.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("run shutdown: %w", err))
	}
	if err := a.closeDB(); err != nil {
		errs = append(errs, err)
	}
	a.Logger.Info("application shutdown completed")
	return errors.Join(errs...)
}

func (a *Application) closeDB() error {
	if a.DB == nil {
		return nil
	}
	if err := a.DB.Close(); err != nil {
		a.Logger.Error("error closing database connection", "error", err)
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
