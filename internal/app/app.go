package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tenderintel/internal/common"
	"github.com/ternarybob/tenderintel/internal/interfaces"
	"github.com/ternarybob/tenderintel/internal/services/browser"
	"github.com/ternarybob/tenderintel/internal/services/crawler"
	"github.com/ternarybob/tenderintel/internal/services/intel"
	"github.com/ternarybob/tenderintel/internal/services/persister"
	"github.com/ternarybob/tenderintel/internal/services/session"
	"github.com/ternarybob/tenderintel/internal/storage"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	// Reconciling persister over the relational store
	Persister *persister.Service

	// News/intelligence
	SearchClient *intel.SearchClient
	FeedClient   *intel.FeedClient
	Aggregator   *intel.Aggregator
	IntelService *intel.Service

	// Portal crawl, started on demand by StartCrawler
	SessionStorage interfaces.SessionStorage
	Browser        interfaces.Browser
	Keeper         *session.Keeper
	Controller     *crawler.Controller
}

// New initializes storage and the services that need no browser
func New(ctx context.Context, cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initDatabase(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	app.initServices()

	logger.Info().
		Str("storage", cfg.Storage.Type).
		Bool("search_configured", app.SearchClient.Configured()).
		Bool("portal_credentials", cfg.Portal.HasCredentials()).
		Msg("Application initialization complete")

	return app, nil
}

// initDatabase opens the relational store selected by config
func (a *App) initDatabase(ctx context.Context) error {
	storageManager, err := storage.NewStorageManager(ctx, a.Logger, a.Config)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}

	a.StorageManager = storageManager
	a.Logger.Debug().
		Str("storage", a.Config.Storage.Type).
		Str("sqlite_path", a.Config.Storage.SQLite.Path).
		Msg("Storage layer initialized")

	return nil
}

func (a *App) initServices() {
	a.Persister = persister.NewService(a.StorageManager, a.Logger)

	a.SearchClient = intel.NewSearchClient(&a.Config.Search, a.Logger)
	a.FeedClient = intel.NewFeedClient(&a.Config.Feed, a.Logger)
	a.Aggregator = intel.NewAggregator(a.SearchClient, a.FeedClient, &a.Config.Search, &a.Config.Feed, a.Logger)
	a.IntelService = intel.NewService(a.Aggregator, a.Persister, a.Logger)

	a.Logger.Debug().Msg("Services initialized")
}

// StartCrawler opens the session store, launches Chrome and builds the
// crawl controller. It is idempotent.
func (a *App) StartCrawler() (*crawler.Controller, error) {
	if a.Controller != nil {
		return a.Controller, nil
	}

	if !a.Config.Portal.HasCredentials() {
		return nil, fmt.Errorf("%w: portal username and password are required", interfaces.ErrNotConfigured)
	}

	sessions, err := storage.NewSessionStorage(a.Logger, a.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to open session storage: %w", err)
	}
	a.SessionStorage = sessions

	chrome, err := browser.NewChromeBrowser(&a.Config.Browser, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	a.Browser = chrome

	a.Keeper = session.NewKeeper(&a.Config.Portal, sessions, a.Logger)

	controller, err := crawler.NewController(chrome, a.Keeper, a.Persister, &a.Config.Portal, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create crawl controller: %w", err)
	}
	a.Controller = controller

	a.Logger.Debug().
		Str("base_url", a.Config.Portal.BaseURL).
		Bool("headless", a.Config.Browser.Headless).
		Msg("Crawler started")

	return controller, nil
}

// Close closes all application resources
func (a *App) Close() error {
	if a.Browser != nil {
		if err := a.Browser.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close browser")
		}
	}

	if a.SessionStorage != nil {
		if err := a.SessionStorage.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close session storage")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Debug().Msg("Storage closed")
	}

	return nil
}
