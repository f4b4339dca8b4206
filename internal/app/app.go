// Package app wires configuration, storage, clients, and services into the
// shared application core.
package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bobmcallan/finch/internal/clients/plaid"
	"github.com/bobmcallan/finch/internal/common"
	"github.com/bobmcallan/finch/internal/interfaces"
	"github.com/bobmcallan/finch/internal/services/fetcher"
	"github.com/bobmcallan/finch/internal/services/history"
	"github.com/bobmcallan/finch/internal/storage"
)

// App holds all initialized services and clients.
type App struct {
	Config      *common.Config
	Logger      *common.Logger
	Storage     interfaces.StorageManager
	Aggregator  interfaces.AggregatorClient
	Fetcher     interfaces.TransactionFetcher
	History     interfaces.HistoryService
	StartupTime time.Time
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp initializes all services, clients, and storage.
// configPath may be empty, in which case the default resolution logic is used.
func NewApp(configPath string) (*App, error) {
	binDir := getBinaryDir()

	// Load configuration - provided path, FINCH_CONFIG, then binary dir, then fallback
	if configPath == "" {
		configPath = os.Getenv("FINCH_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "finch.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/finch.toml" // fallback for development
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Resolve relative storage path to binary directory
	if config.Storage.Session.Path != "" && !filepath.IsAbs(config.Storage.Session.Path) {
		config.Storage.Session.Path = filepath.Join(binDir, config.Storage.Session.Path)
	}

	logger := common.NewLoggerFromConfig(config.Logging)

	storageManager, err := storage.NewStorageManager(logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if config.Plaid.ClientID == "" || config.Plaid.Secret == "" {
		logger.Warn().Msg("Plaid credentials not configured - linking and fetching will be unavailable")
	}

	aggregator := plaid.NewClient(config.Plaid.ClientID, config.Plaid.Secret,
		plaid.WithBaseURL(config.Plaid.BaseURL),
		plaid.WithLogger(logger),
		plaid.WithRateLimit(config.Plaid.RateLimit),
		plaid.WithTimeout(config.Plaid.GetTimeout()),
	)

	fetchService := fetcher.NewService(aggregator, logger, config.Fetch.PageSize, config.Fetch.MaxItems)
	historyService := history.NewService(storageManager.SessionStore(), logger)

	return &App{
		Config:      config,
		Logger:      logger,
		Storage:     storageManager,
		Aggregator:  aggregator,
		Fetcher:     fetchService,
		History:     historyService,
		StartupTime: time.Now(),
	}, nil
}

// Close releases application resources.
func (a *App) Close() {
	if a.Storage != nil {
		if err := a.Storage.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage")
		}
	}
}
