// Package internal wires the application together.
package internal

import (
	"fmt"
	"time"

	"github.com/karloscodes/cartridge"

	"funneltrack/internal/analytics"
	"funneltrack/internal/config"
	"funneltrack/internal/database"
	"funneltrack/internal/jobs"
	"funneltrack/internal/pkg/geoip"
)

// Application wraps cartridge.Application with funneltrack-specific components
type Application struct {
	*cartridge.Application
	DBManager *database.DBManager
}

// NewApp creates a new application instance with default settings
func NewApp() (*Application, error) {
	cfg := config.GetConfig()
	return NewAppWithConfig(cfg)
}

// NewAppWithRoutes creates a new application with custom route mounting function
func NewAppWithRoutes(cfg *config.Config, routeMount func(*cartridge.Server)) (*Application, error) {
	logger := cartridge.NewLogger(cfg, nil)

	dbManager := database.NewDBManager(cfg, logger)
	if err := dbManager.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	geoip.InitLogger(logger)
	analytics.InitFunnelCache(dbManager.GetConnection(), logger,
		time.Duration(cfg.FunnelCacheTTL())*time.Second)

	jobsManager, err := jobs.NewJobs(dbManager, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize jobs: %w", err)
	}

	app, err := cartridge.NewApplication(cartridge.ApplicationOptions{
		Config:            cfg,
		Logger:            logger,
		DBManager:         dbManager,
		RouteMountFunc:    routeMount,
		BackgroundWorkers: []cartridge.BackgroundWorker{jobsManager},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	return &Application{
		Application: app,
		DBManager:   dbManager,
	}, nil
}

// NewAppWithConfig creates a new application with the provided config
func NewAppWithConfig(cfg *config.Config) (*Application, error) {
	return NewAppWithRoutes(cfg, MountAppRoutes)
}
