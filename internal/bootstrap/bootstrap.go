// Package bootstrap wires configuration, storage, caches, metrics, the
// directory client and the services into an Application.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/go-authgate/exchauth/internal/config"
	"github.com/go-authgate/exchauth/internal/core"
	"github.com/go-authgate/exchauth/internal/ews"
	"github.com/go-authgate/exchauth/internal/metrics"
	"github.com/go-authgate/exchauth/internal/models"
	"github.com/go-authgate/exchauth/internal/services"
	"github.com/go-authgate/exchauth/internal/store"
)

// Application holds all initialized components
type Application struct {
	Config *config.Config
	Logger *logrus.Logger

	// Core infrastructure
	DB         *store.Store
	Metrics    core.Recorder
	UserCache  core.Cache[models.User]
	CountCache core.Cache[int64]
	Policies   config.PolicySource
	Directory  *ews.Client

	// Services
	AuditService        *services.AuditService
	OrganizationService *services.OrganizationService
	UserService         *services.UserService
	UserCounts          *metrics.CacheWrapper

	closers   []func() error
	stopWatch context.CancelFunc
}

// New initializes every component. The returned Application must be
// closed; on error everything opened so far is already released.
func New(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*Application, error) {
	app := &Application{
		Config: cfg,
		Logger: logger,
	}

	// Phase 1: Validate configuration
	if err := validateConfiguration(cfg); err != nil {
		return nil, err
	}

	// Phase 2: Initialize infrastructure
	if err := app.initializeInfrastructure(ctx); err != nil {
		_ = app.Close(ctx)
		return nil, err
	}

	// Phase 3: Directory policy and client
	if err := app.initializeDirectory(); err != nil {
		_ = app.Close(ctx)
		return nil, err
	}

	// Phase 4: Initialize business layer
	app.initializeBusinessLayer()

	return app, nil
}

// initializeInfrastructure sets up database, metrics and caches
func (app *Application) initializeInfrastructure(ctx context.Context) error {
	var err error

	app.DB, err = initializeDatabase(ctx, app.Config, app.Logger)
	if err != nil {
		return err
	}

	app.Metrics = initializeMetrics(app.Config, app.Logger)

	var closeUsers, closeCounts func() error
	app.UserCache, closeUsers, err = initializeUserCache(ctx, app.Config, app.Logger)
	if err != nil {
		return err
	}
	app.closers = append(app.closers, closeUsers)

	app.CountCache, closeCounts, err = initializeCountCache(ctx, app.Config, app.Logger)
	if err != nil {
		return err
	}
	app.closers = append(app.closers, closeCounts)
	return nil
}

// initializeDirectory loads the policy (watching it when enabled) and
// creates the Exchange client.
func (app *Application) initializeDirectory() error {
	source, watcher, err := loadPolicy(app.Config, app.Logger)
	if err != nil {
		return err
	}
	app.Policies = source

	if watcher != nil {
		// The watcher lives as long as the application, not the init ctx.
		watchCtx, cancel := context.WithCancel(context.Background())
		app.stopWatch = cancel
		go watcher.Run(watchCtx)
	}

	app.Directory, err = initializeDirectoryClient(app.Config, app.Logger)
	return err
}

// initializeBusinessLayer sets up services
func (app *Application) initializeBusinessLayer() {
	app.AuditService = services.NewAuditService(
		app.DB,
		app.Config.EnableAuditLogging,
		app.Config.AuditLogBufferSize,
		app.Logger,
	)
	app.OrganizationService,
		app.UserService,
		app.UserCounts = initializeServices(
		app.Config,
		app.DB,
		app.Policies,
		app.Directory,
		app.AuditService,
		app.Metrics,
		app.UserCache,
		app.CountCache,
		app.Logger,
	)
}

// Close flushes the audit trail and releases every resource.
func (app *Application) Close(ctx context.Context) error {
	var errs []error

	if app.stopWatch != nil {
		app.stopWatch()
	}

	if app.AuditService != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, app.Config.AuditShutdownTimeout)
		if err := app.AuditService.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		cancel()
	}

	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			errs = append(errs, fmt.Errorf("failed to close cache: %w", err))
		}
	}
	app.closers = nil

	if app.DB != nil {
		if err := app.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}
	return errors.Join(errs...)
}
