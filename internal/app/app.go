package app

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/khawaidev/fapi/internal/common"
	"github.com/khawaidev/fapi/internal/handlers"
	"github.com/khawaidev/fapi/internal/interfaces"
	"github.com/khawaidev/fapi/internal/metrics"
	"github.com/khawaidev/fapi/internal/services/browser"
	"github.com/khawaidev/fapi/internal/services/synthesis"
)

// App holds all application components and dependencies
type App struct {
	Config    *common.Config
	Logger    arbor.ILogger
	ctx       context.Context
	cancelCtx context.CancelFunc

	Metrics *metrics.Metrics

	// Browser services
	Launcher         interfaces.BrowserLauncher
	WarmPool         *browser.WarmPool // Nil when warm-up is disabled
	WarmupSupervisor *browser.WarmupSupervisor
	SessionProvider  *browser.SessionProvider

	SynthesisService *synthesis.Service

	// HTTP handlers
	APIHandler    *handlers.APIHandler
	AskHandler    *handlers.AskHandler
	AskWSHandler  *handlers.AskWebSocketHandler
	StatusHandler *handlers.StatusHandler
}

// New initializes the application with a Chrome launcher and starts the warm-up
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	policy := browser.NewInterceptPolicy(cfg.Browser.BlockedExtensions, cfg.Browser.BlockedDomains, cfg.Browser.BlockMedia)
	return NewWithLauncher(cfg, logger, browser.NewChromeLauncher(cfg.Browser, policy, logger))
}

// NewWithLauncher initializes the application around the given launcher
func NewWithLauncher(cfg *common.Config, logger arbor.ILogger, launcher interfaces.BrowserLauncher) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	app := &App{
		Config:    cfg,
		Logger:    logger,
		ctx:       ctx,
		cancelCtx: cancel,
		Metrics:   metrics.New(),
		Launcher:  launcher,
	}

	app.initServices()
	app.initHandlers()

	app.WarmupSupervisor.Start(app.ctx)

	logger.Info().
		Bool("warmup_enabled", cfg.Warmup.Enabled).
		Bool("headless", cfg.Browser.Headless).
		Str("target", synthesis.TargetURL).
		Msg("Application initialized")

	return app, nil
}

func (a *App) initServices() {
	if a.Config.Warmup.Enabled {
		navigationTimeout := common.ParseDuration(a.Config.Driver.NavigationTimeout, 60*time.Second)
		a.WarmPool = browser.NewWarmPool(a.Launcher, synthesis.TargetURL, navigationTimeout, a.Logger, a.Metrics)
	}
	a.WarmupSupervisor = browser.NewWarmupSupervisor(a.WarmPool, a.Config.Warmup, a.Logger)
	a.SessionProvider = browser.NewSessionProvider(a.WarmPool, a.Launcher, a.Logger, a.Metrics)
	a.SynthesisService = synthesis.NewDefault(a.Config, a.SessionProvider, a.Logger, a.Metrics)
}

func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler(a.Logger)
	a.AskHandler = handlers.NewAskHandler(a.SynthesisService, a.Logger, a.Metrics)
	a.AskWSHandler = handlers.NewAskWebSocketHandler(a.SynthesisService, a.Logger, a.Metrics)
	a.StatusHandler = handlers.NewStatusHandler(a.WarmPool, a.SessionProvider, a.Config, synthesis.TargetURL, a.Logger)
}

// Close stops the warm-up and shuts down the warm browser
func (a *App) Close() error {
	if a.cancelCtx != nil {
		a.Logger.Info().Msg("Cancelling background goroutines")
		a.cancelCtx()
	}

	if a.WarmupSupervisor != nil {
		select {
		case <-a.WarmupSupervisor.Done():
		case <-time.After(5 * time.Second):
			a.Logger.Warn().Msg("Browser warm-up still running at shutdown")
		}
	}

	if a.WarmPool != nil {
		if err := a.WarmPool.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close warm browser")
			return err
		}
	}

	a.Logger.Info().Msg("Application closed")
	return nil
}
