package backend

import (
	"context"
	"fmt"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/cache"
	"fintrack/internal/config"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

const cacheSweepInterval = time.Minute

// Factory assembles an App from configuration.
type Factory struct {
	logger *applog.Logger
}

func NewFactory(logger *applog.Logger) *Factory {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &Factory{logger: logger.WithComponent(applog.ComponentApp)}
}

// Build wires every service on top of repo. The App takes ownership of repo
// and closes it in Close, also when Build fails.
func (f *Factory) Build(ctx context.Context, cfg *config.Config, repo *storage.Repository) (*App, error) {
	app := &App{Repo: repo, Caches: cache.NewManager()}
	app.addCleanup(repo.Close)

	app.Caches.StartCleanup(cacheSweepInterval)
	app.addCleanup(func() error {
		app.Caches.Stop()
		return nil
	})

	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without events", applog.FieldError, err)
		} else {
			f.logger.Info("Initialized AMQP client",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
			app.AMQP = client
			publisher = client
			app.addCleanup(client.Close)
		}
	}

	suggester, responder, err := f.collaborators(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Suggester = suggester

	app.Exporter, err = f.exporter(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}

	var dashboards cache.Cache[core.Dashboard]
	if cfg.ReportCacheTTL > 0 && cfg.ReportCacheSize > 0 {
		lru := cache.NewLRUCache[core.Dashboard](cfg.ReportCacheSize, cfg.ReportCacheTTL)
		app.Caches.Register(lru)
		dashboards = lru
	}

	app.Ledger = services.NewLedgerService(repo, publisher)
	app.Reports = services.NewReportService(repo, dashboards)
	app.Wallets = services.NewWalletService(repo)
	app.Categories = services.NewCategoryService(repo)
	app.Budgets = services.NewBudgetService(repo)
	app.Users = services.NewUserService(repo, services.LogNotifier{})
	app.Admin = services.NewAdminService(repo)

	// Anything that renames, relabels or removes report rows drops the
	// user's cached dashboards.
	app.Ledger.OnMutation(app.Reports.InvalidateUser)
	app.Wallets.OnMutation(app.Reports.InvalidateUser)
	app.Categories.OnMutation(app.Reports.InvalidateUser)
	app.Admin.OnMutation(app.Reports.InvalidateUser)
	app.Assistant = services.NewAssistantService(repo, suggester, responder, cfg.AITimeout)
	app.Maintenance = services.NewMaintenanceService(repo, app.Assistant, app.Ledger)

	f.logger.Info("Application assembled",
		"backend", cfg.DataBackend,
		"amqp_enabled", app.AMQP != nil,
		"suggester", cfg.Suggester,
		"chat_enabled", responder != nil,
		"report_cache", dashboards != nil)

	return app, nil
}

// Open opens the configured store and builds the App on it.
func (f *Factory) Open(ctx context.Context, cfg *config.Config) (*App, error) {
	var (
		repo *storage.Repository
		err  error
	)
	switch cfg.DataBackend {
	case config.BackendSQLite:
		repo, err = storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	case config.BackendPostgres:
		repo, err = storage.NewPostgresRepository(cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unsupported data backend %q", cfg.DataBackend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.DataBackend, err)
	}
	return f.Build(ctx, cfg, repo)
}
