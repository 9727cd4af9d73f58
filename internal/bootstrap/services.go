package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sproutlog/sproutlog/config"
	"github.com/sproutlog/sproutlog/internal/adapters/exporter"
	"github.com/sproutlog/sproutlog/internal/adapters/reminder"
	"github.com/sproutlog/sproutlog/internal/core"
	"github.com/sproutlog/sproutlog/internal/data"
	"github.com/sproutlog/sproutlog/internal/observability/statsd"
	"github.com/sproutlog/sproutlog/internal/service"
)

const shutdownWaitTimeout = 15 * time.Second

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Exports       *service.ExportService
	Notifications *service.NotificationService
	Events        *service.EventService
	Dispatcher    *service.DispatcherService
	Reminders     *service.ReminderService
	Reaper        *service.ReaperService
	Cache         *core.AnalyticsCacheService
	Jobs          core.JobRepository
	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	MetricsSink   *statsd.Client
	MetricsConfig config.ObservabilityMetricsConfig
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// serviceRepositories groups data adapters backing service ports.
type serviceRepositories struct {
	DB        *sql.DB
	Redis     redis.UniversalClient
	JobRepo   *data.JobRepo
	NotifRepo *data.NotificationRepo
	PrefRepo  *data.PreferenceRepo
	MarkRepo  *data.ReminderMarkRepo
	EventRepo *data.EventRepo
	ShareRepo *data.ShareRepo
	CacheRepo *data.RedisCacheRepo
	Results   *data.ResultStore
}

// buildObservability configures the metrics sink.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	var metricsSink *statsd.Client
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  "sproutlog",
			Logger:  obsLogger,
		})
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
		} else {
			metricsSink = client
		}
	}

	return ObservabilityContainer{
		MetricsSink:   metricsSink,
		MetricsConfig: cfg.Metrics,
	}
}

// buildRepositories builds repositories backing service ports; no business rules here.
func buildRepositories(db *sql.DB, redisClient redis.UniversalClient, logger *slog.Logger) *serviceRepositories {
	repoCfg := data.RepoConfig{Logger: logger}
	return &serviceRepositories{
		DB:        db,
		Redis:     redisClient,
		JobRepo:   data.NewJobRepo(db, repoCfg),
		NotifRepo: data.NewNotificationRepo(db, repoCfg),
		PrefRepo:  data.NewPreferenceRepo(db, repoCfg),
		MarkRepo:  data.NewReminderMarkRepo(db),
		EventRepo: data.NewEventRepo(db, repoCfg),
		ShareRepo: data.NewShareRepo(db),
		CacheRepo: data.NewRedisCacheRepo(redisClient),
		Results:   data.NewResultStore(db, repoCfg),
	}
}

func newAnalyticsCache(repos *serviceRepositories, cfg config.CacheConfig, logger *slog.Logger) *core.AnalyticsCacheService {
	cacheCfg := core.DefaultAnalyticsCacheConfig()
	if cfg.AnalyticsTTL > 0 {
		cacheCfg.TTL = cfg.AnalyticsTTL
	}
	return core.NewAnalyticsCacheService(core.AnalyticsCacheServiceOptions{
		Cache:  repos.CacheRepo,
		Config: cacheCfg,
		Logger: logger,
	})
}

// DomainServicesOptions groups inputs for buildDomainServices.
type DomainServicesOptions struct {
	Repos         *serviceRepositories
	Observability ObservabilityContainer
	Config        *config.AppConfig
	Logger        *slog.Logger
}

// buildDomainServices wires business services using repositories and observability adapters.
func buildDomainServices(opts *DomainServicesOptions) (ServiceContainer, error) {
	if opts == nil {
		return ServiceContainer{}, errors.New("domain service options are required")
	}
	svcLogger := opts.Logger
	if svcLogger == nil {
		svcLogger = slog.Default()
	}

	appCfg := opts.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	cache := newAnalyticsCache(opts.Repos, appCfg.Cache, svcLogger)
	push := newLogPushDeliverer(svcLogger)

	renderer, err := exporter.NewEventRenderer(exporter.EventRendererOptions{
		Events: opts.Repos.EventRepo,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build renderer: %w", err)
	}

	exports, err := service.NewExportService(service.ExportServiceOptions{
		Jobs:     opts.Repos.JobRepo,
		Gate:     opts.Repos.ShareRepo,
		Renderer: renderer,
		Results:  opts.Repos.Results,
		Logger:   svcLogger,
		Metrics:  opts.Observability.MetricsSink,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build export service: %w", err)
	}

	dispatcher, err := service.NewDispatcherService(service.DispatcherServiceOptions{
		Gate:          opts.Repos.ShareRepo,
		Prefs:         opts.Repos.PrefRepo,
		Notifications: opts.Repos.NotifRepo,
		Cache:         cache,
		Push:          push,
		Logger:        svcLogger,
		Metrics:       opts.Observability.MetricsSink,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build dispatcher service: %w", err)
	}

	events, err := service.NewEventService(service.EventServiceOptions{
		Events:     opts.Repos.EventRepo,
		Gate:       opts.Repos.ShareRepo,
		Dispatcher: dispatcher,
		Logger:     svcLogger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build event service: %w", err)
	}

	notifications, err := service.NewNotificationService(service.NotificationServiceOptions{
		Notifications: opts.Repos.NotifRepo,
		Prefs:         opts.Repos.PrefRepo,
		Gate:          opts.Repos.ShareRepo,
		Logger:        svcLogger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build notification service: %w", err)
	}

	reminders, err := service.NewReminderService(service.ReminderServiceOptions{
		Prefs:         opts.Repos.PrefRepo,
		Marks:         opts.Repos.MarkRepo,
		Events:        opts.Repos.EventRepo,
		Gate:          opts.Repos.ShareRepo,
		Notifications: opts.Repos.NotifRepo,
		Push:          push,
		Logger:        svcLogger,
		Metrics:       opts.Observability.MetricsSink,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build reminder service: %w", err)
	}

	reaper, err := service.NewReaperService(service.ReaperServiceOptions{
		Jobs:          opts.Repos.JobRepo,
		Notifications: opts.Repos.NotifRepo,
		Marks:         opts.Repos.MarkRepo,
		Results:       opts.Repos.Results,
		Config:        appCfg.Reaper,
		Logger:        svcLogger,
		Metrics:       opts.Observability.MetricsSink,
	}, appCfg.Exporter.ExecutionBudget)
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build reaper service: %w", err)
	}

	return ServiceContainer{
		Exports:       exports,
		Notifications: notifications,
		Events:        events,
		Dispatcher:    dispatcher,
		Reminders:     reminders,
		Reaper:        reaper,
		Cache:         cache,
		Jobs:          opts.Repos.JobRepo,
		Observability: opts.Observability,
	}, nil
}

// NewServices builds the full service container for the process.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil {
		return ServiceContainer{}, errors.New("service dependencies are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var obsCfg config.ObservabilityConfig
	if deps.Config != nil {
		obsCfg = deps.Config.Observability
	}
	observability := buildObservability(logger, obsCfg)
	repos := buildRepositories(deps.DB, deps.RedisClient, logger)
	return buildDomainServices(&DomainServicesOptions{
		Repos:         repos,
		Observability: observability,
		Config:        deps.Config,
		Logger:        logger,
	})
}

// ServiceOrchestrationConfig groups everything RunServicesWithShutdown needs.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

// backgroundService describes one long-running service loop.
type backgroundService struct {
	mode  config.ServiceMode
	name  string
	start func(ctx context.Context) error
}

type backgroundServiceHandle struct {
	mode config.ServiceMode
	name string
	done <-chan struct{}
}

type serviceStartupDeps struct {
	ctx             context.Context
	cfg             *ServiceOrchestrationConfig
	logger          *slog.Logger
	enabledServices map[config.ServiceMode]bool
	errCh           chan error
}

func startHTTPServerIfEnabled(deps *serviceStartupDeps) *http.Server {
	if deps == nil || deps.cfg == nil || !deps.enabledServices[config.ServiceModeHTTP] {
		return nil
	}
	return StartHTTPServer(&HTTPServerConfig{
		Config:   deps.cfg.Config,
		Services: deps.cfg.Services,
		Logger:   deps.logger,
	})
}

func launchBackground(ctx context.Context, deps *serviceStartupDeps, descriptor backgroundService) <-chan struct{} {
	if deps == nil || !deps.enabledServices[descriptor.mode] {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := descriptor.start(ctx); err != nil {
			errMsg := fmt.Errorf("%s failed: %w", descriptor.name, err)
			select {
			case deps.errCh <- errMsg:
			case <-ctx.Done():
			default:
				deps.logger.WarnContext(ctx, "dropping background service error",
					"service", descriptor.name,
					"error", errMsg)
			}
		}
	}()

	deps.logger.InfoContext(ctx, "background service started", "service", descriptor.name, "mode", descriptor.mode)
	return done
}

func startBackgroundServices(deps *serviceStartupDeps, services []backgroundService) []backgroundServiceHandle {
	if deps == nil {
		return nil
	}
	handles := make([]backgroundServiceHandle, 0, len(services))

	for _, svc := range services {
		done := launchBackground(deps.ctx, deps, svc)
		if done == nil {
			continue
		}

		handles = append(handles, backgroundServiceHandle{
			mode: svc.mode,
			name: svc.name,
			done: done,
		})
	}

	return handles
}

func newExporterBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeExporter,
		name: "export workers",
		start: func(ctx context.Context) error {
			runner, err := exporter.NewRunner(exporter.RunnerOptions{
				Jobs:    deps.cfg.Services.Jobs,
				Exports: deps.cfg.Services.Exports,
				Config:  deps.cfg.Config.Exporter,
				Logger:  deps.logger,
			})
			if err != nil {
				return err
			}
			return runner.Run(ctx)
		},
	}
}

func newReminderBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeReminder,
		name: "reminder scheduler",
		start: func(ctx context.Context) error {
			runner, err := reminder.NewRunner(reminder.RunnerOptions{
				Service: deps.cfg.Services.Reminders,
				Config:  deps.cfg.Config.Reminder,
				Logger:  deps.logger,
			})
			if err != nil {
				return err
			}
			return runner.Run(ctx)
		},
	}
}

func newReaperBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeReaper,
		name: "reaper",
		start: func(ctx context.Context) error {
			return deps.cfg.Services.Reaper.Run(ctx)
		},
	}
}

func buildBackgroundServices(deps *serviceStartupDeps) []backgroundService {
	if deps == nil {
		return nil
	}
	return []backgroundService{
		newExporterBackgroundService(deps),
		newReminderBackgroundService(deps),
		newReaperBackgroundService(deps),
	}
}

// ServiceStartupResult holds the results of starting all services.
type ServiceStartupResult struct {
	HTTPServer *http.Server
	Background []backgroundServiceHandle
}

// startServices starts all enabled services and returns their completion channels.
func startServices(deps *serviceStartupDeps) ServiceStartupResult {
	return ServiceStartupResult{
		HTTPServer: startHTTPServerIfEnabled(deps),
		Background: startBackgroundServices(deps, buildBackgroundServices(deps)),
	}
}

// RunServicesWithShutdown starts all enabled services and manages their lifecycle.
// This function blocks until a shutdown signal is received or a service fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}

	serviceCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	enabledServices, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}
	errCh := make(chan error, errorChannelBufferSize(enabledServices))

	result := startServices(&serviceStartupDeps{
		ctx:             serviceCtx,
		cfg:             cfg,
		logger:          logger,
		enabledServices: enabledServices,
		errCh:           errCh,
	})

	return waitForShutdown(shutdownDeps{
		ctx:         serviceCtx,
		cancel:      cancel,
		errCh:       errCh,
		httpServer:  result.HTTPServer,
		logger:      logger,
		backgrounds: result.Background,
	})
}

func errorChannelBufferSize(enabled map[config.ServiceMode]bool) int {
	count := 0
	for _, mode := range config.ValidServiceModes() {
		if enabled[mode] {
			count++
		}
	}
	if count < 1 {
		return 1
	}
	return count + 1
}

// shutdownDeps contains dependencies for graceful shutdown.
type shutdownDeps struct {
	ctx         context.Context
	cancel      context.CancelFunc
	errCh       <-chan error
	httpServer  *http.Server
	logger      *slog.Logger
	backgrounds []backgroundServiceHandle
}

// waitForShutdown waits for shutdown signal or service error.
func waitForShutdown(deps shutdownDeps) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		deps.logger.Info("shutting down services...")
		deps.cancel()
		return gracefulStop(deps)
	case err := <-deps.errCh:
		deps.logger.Error("service error", "error", err)
		deps.cancel()
		if stopErr := gracefulStop(deps); stopErr != nil {
			deps.logger.Error("graceful stop failed", "error", stopErr)
		}
		return err
	}
}

// gracefulStop attempts to gracefully stop all services.
func gracefulStop(deps shutdownDeps) error {
	if deps.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownWaitTimeout)
		defer cancel()

		if err := ShutdownHTTPServer(ShutdownConfig{
			Context: shutdownCtx,
			Server:  deps.httpServer,
			Logger:  deps.logger,
		}); err != nil {
			return err
		}
	}

	for _, svc := range deps.backgrounds {
		waitForService(svc.done, svc.name, deps.logger)
	}

	return nil
}

// waitForService waits for a service to finish with timeout.
func waitForService(done <-chan struct{}, name string, logger *slog.Logger) {
	if done == nil {
		return
	}
	select {
	case <-done:
		logger.Info(name + " stopped")
	case <-time.After(shutdownWaitTimeout):
		logger.Warn("timeout waiting for " + name + " to stop")
	}
}
