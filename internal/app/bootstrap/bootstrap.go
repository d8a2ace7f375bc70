package bootstrap

import (
	"context"

	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"pagecms/app/internal/config"
	"pagecms/app/internal/db"
	apphttp "pagecms/app/internal/http"
	"pagecms/app/internal/messaging"
	"pagecms/app/internal/pages"
	"pagecms/app/internal/seed"
)

// UpdatingTopic labels the bus carrying page update notifications.
const UpdatingTopic = "pages.updating"

type Dependencies struct {
	Config    config.Config
	Logger    *logrus.Logger
	SentryHub *sentry.Hub
}

type Result struct {
	Repository *pages.Repository
	Bus        *messaging.Bus[*pages.Updating]
	HTTPServer *apphttp.Server
	// Importer is nil when no seed file is configured.
	Importer *seed.Importer
	Database *gorm.DB
	Cleanup  func() error
}

// Build composes the page service and returns the constructed components.
func Build(ctx context.Context, deps Dependencies) (Result, error) {
	gormDB, err := db.Open(db.Options{Path: deps.Config.DBPath, Logger: deps.Logger})
	if err != nil {
		return Result{}, eris.Wrap(err, "opening database")
	}

	closeOnError := func(wrapper error) (Result, error) {
		if closeErr := db.Close(gormDB); closeErr != nil && deps.Logger != nil {
			deps.Logger.WithError(closeErr).Error("closing database after bootstrap failure")
		}
		return Result{}, wrapper
	}

	if err := pages.Migrate(ctx, gormDB, deps.Logger); err != nil {
		return closeOnError(eris.Wrap(err, "running page migrations"))
	}

	store, err := pages.NewStore(gormDB, deps.Logger)
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating page store"))
	}

	cache, err := pages.NewCache(pages.CacheOptions{
		Source: store,
		Locale: deps.Config.CacheLocale,
		Logger: deps.Logger,
	})
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating page cache"))
	}

	bus := messaging.NewBus[*pages.Updating](UpdatingTopic, deps.Logger)

	repository, err := pages.NewRepository(pages.RepositoryOptions{
		Store:     store,
		Cache:     cache,
		Bus:       bus,
		Logger:    deps.Logger,
		SentryHub: deps.SentryHub,
	})
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating page repository"))
	}

	var importer *seed.Importer
	if deps.Config.SeedFile != "" {
		importer, err = seed.NewImporter(seed.ImporterOptions{
			Editor: repository,
			Logger: deps.Logger,
		})
		if err != nil {
			return closeOnError(eris.Wrap(err, "creating seed importer"))
		}
	}

	httpServer, err := apphttp.NewServer(apphttp.Options{
		Repository: repository,
		Database:   gormDB,
		Logger:     deps.Logger,
		SentryHub:  deps.SentryHub,
		RateLimiter: apphttp.RateLimiterSettings{
			Burst:             deps.Config.RateLimit.Burst,
			RequestsPerSecond: deps.Config.RateLimit.RequestsPerSecond,
			ClientTTL:         deps.Config.RateLimit.ClientTTL,
		},
	})
	if err != nil {
		return closeOnError(eris.Wrap(err, "initialising http server"))
	}

	cleanup := func() error {
		httpServer.Close()
		return db.Close(gormDB)
	}

	return Result{
		Repository: repository,
		Bus:        bus,
		HTTPServer: httpServer,
		Importer:   importer,
		Database:   gormDB,
		Cleanup:    cleanup,
	}, nil
}
