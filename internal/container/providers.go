package container

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/msp-billing/internal/application/port"
	"github.com/garyjia/msp-billing/internal/application/service"
	"github.com/garyjia/msp-billing/internal/infrastructure/auth"
	"github.com/garyjia/msp-billing/internal/infrastructure/export"
	infraLark "github.com/garyjia/msp-billing/internal/infrastructure/external/lark"
	"github.com/garyjia/msp-billing/internal/infrastructure/external/xero"
	"github.com/garyjia/msp-billing/internal/infrastructure/persistence/repository"
	"github.com/garyjia/msp-billing/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/msp-billing/internal/infrastructure/worker"
	"github.com/garyjia/msp-billing/migrations"
	"github.com/garyjia/msp-billing/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.DB
}

// ExternalBundle holds clients of external systems.
type ExternalBundle struct {
	Xero     *xero.ClientFactory
	Notifier port.ReconciliationNotifier
	Exporter port.PreviewExporter
}

// ProvideDatabase opens the database and applies pending migrations.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		BusyTimeout:     cfg.BusyTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(db, logger).RunMigrations(migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(db *database.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	return &RepositoryBundle{
		TimeEntry:  repository.NewTimeEntryRepository(db.DB, logger),
		Ticket:     repository.NewTicketRepository(db.DB, logger),
		MonthLock:  repository.NewMonthLockRepository(db.DB, logger),
		Connection: repository.NewConnectionRepository(db.DB, logger),
	}, nil
}

// ProvideExternal creates the Xero client factory, the reconciliation
// notifier and the preview exporter. Alerts go to Lark only when it is
// fully configured.
func ProvideExternal(cfg *Config, repos *RepositoryBundle, logger *zap.Logger) (*ExternalBundle, error) {
	factory := xero.NewClientFactory(xero.Config{
		ClientID:          cfg.Xero.ClientID,
		ClientSecret:      cfg.Xero.ClientSecret,
		APIBaseURL:        cfg.Xero.APIBaseURL,
		TokenURL:          cfg.Xero.TokenURL,
		Timeout:           cfg.Xero.Timeout,
		RequestsPerMinute: cfg.Xero.RequestsPerMinute,
		Burst:             cfg.Xero.Burst,
		RefreshWindow:     cfg.Xero.RefreshWindow,
	}, repos.Connection, logger.Named("xero"))

	larkCfg := infraLark.Config{
		AppID:       cfg.Lark.AppID,
		AppSecret:   cfg.Lark.AppSecret,
		AlertChatID: cfg.Lark.AlertChatID,
	}

	var notifier port.ReconciliationNotifier
	if larkCfg.Enabled() {
		messenger := infraLark.NewMessenger(infraLark.NewSDKClient(larkCfg, logger), logger.Named("lark"))
		notifier = infraLark.NewReconciliationNotifier(messenger, larkCfg.AlertChatID, logger.Named("lark"))
		logger.Info("Reconciliation alerts go to Lark", zap.String("chat_id", larkCfg.AlertChatID))
	} else {
		notifier = infraLark.NewLogNotifier(logger)
		logger.Warn("Lark is not configured; reconciliation alerts are logged only")
	}

	return &ExternalBundle{
		Xero:     factory,
		Notifier: notifier,
		Exporter: export.NewExcelExporter(logger),
	}, nil
}

// ServiceDeps holds dependencies for creating services.
type ServiceDeps struct {
	Repos     *RepositoryBundle
	TxManager port.TransactionManager
	External  *ExternalBundle
	Billing   BillingConfig
	Xero      XeroConfig
	Logger    *zap.Logger
}

// ProvideServices creates all application services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil || deps.Repos == nil || deps.External == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}

	svcLogger := &zapLoggerAdapter{logger: deps.Logger}

	return &ServiceBundle{
		Preview: service.NewPreviewService(
			deps.Repos.TimeEntry,
			deps.Repos.MonthLock,
			deps.External.Exporter,
			svcLogger,
		),
		Generation: service.NewGenerationService(
			deps.Repos.TimeEntry,
			deps.Repos.Ticket,
			deps.Repos.MonthLock,
			deps.Repos.Connection,
			deps.External.Xero,
			deps.TxManager,
			deps.External.Notifier,
			service.GenerationConfig{
				CatalogItemCode: deps.Billing.CatalogItemCode,
				InvoiceStatus:   deps.Billing.InvoiceStatus,
				RemoteTimeout:   deps.Xero.Timeout,
			},
			svcLogger,
		),
		Locks: service.NewLockService(deps.Repos.MonthLock, deps.TxManager, svcLogger),
	}, nil
}

// ProvideTokenValidator returns nil when no JWT secret is configured.
func ProvideTokenValidator(cfg *AuthConfig) *auth.JWTService {
	if cfg.JWTSecret == "" {
		return nil
	}
	return auth.NewJWTService(auth.Config{
		Secret:     cfg.JWTSecret,
		Issuer:     cfg.Issuer,
		Expiration: cfg.TokenDuration,
	})
}

// WorkerDeps holds dependencies for creating workers.
type WorkerDeps struct {
	Repos     *RepositoryBundle
	External  *ExternalBundle
	WorkerCfg *WorkerConfig
	Logger    *zap.Logger
}

// ProvideWorkers creates the worker manager and registers workers.
func ProvideWorkers(deps *WorkerDeps) (*worker.Manager, error) {
	if deps == nil || deps.WorkerCfg == nil {
		return nil, fmt.Errorf("worker dependencies are required")
	}

	manager := worker.NewManager(deps.Logger)

	if deps.WorkerCfg.TokenRefreshEnabled {
		manager.Register(worker.NewTokenRefreshWorker(
			worker.TokenRefreshConfig{
				Interval: deps.WorkerCfg.TokenRefreshInterval,
				// Twice the factory window so tokens renew between runs
				RefreshWindow: 2 * deps.External.Xero.RefreshWindow(),
			},
			deps.Repos.Connection,
			deps.External.Xero,
			deps.Logger.Named("token_refresh"),
		))
	}

	return manager, nil
}
