package container

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/reimbursement-tracker/internal/application/dispatcher"
	"github.com/garyjia/reimbursement-tracker/internal/application/lifecycle"
	"github.com/garyjia/reimbursement-tracker/internal/application/port"
	"github.com/garyjia/reimbursement-tracker/internal/application/service"
	"github.com/garyjia/reimbursement-tracker/internal/domain/event"
	"github.com/garyjia/reimbursement-tracker/internal/infrastructure/auth"
	"github.com/garyjia/reimbursement-tracker/internal/infrastructure/export"
	infraLark "github.com/garyjia/reimbursement-tracker/internal/infrastructure/external/lark"
	"github.com/garyjia/reimbursement-tracker/internal/infrastructure/metrics"
	"github.com/garyjia/reimbursement-tracker/internal/infrastructure/pdf"
	"github.com/garyjia/reimbursement-tracker/internal/infrastructure/persistence/repository"
	"github.com/garyjia/reimbursement-tracker/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/reimbursement-tracker/internal/infrastructure/storage"
	"github.com/garyjia/reimbursement-tracker/internal/infrastructure/worker"
	"github.com/garyjia/reimbursement-tracker/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.TxManager
}

// StorageBundle holds blob storage and the codecs that read or write blobs.
type StorageBundle struct {
	Blobs     port.BlobStore
	Namer     port.InvoiceNamer
	Inspector port.InvoiceInspector
	Archiver  port.ArchiveWriter
	Reports   port.ReportWriter
}

// ProvideDatabase opens the database and applies pending migrations.
func ProvideDatabase(ctx context.Context, cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(db, logger).RunMigrations(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewTxManager(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(sqlDB *sql.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	return &RepositoryBundle{
		Request: repository.NewRequestRepository(sqlDB, logger),
		History: repository.NewHistoryRepository(sqlDB, logger),
		Notice:  repository.NewNoticeRepository(sqlDB, logger),
		Ledger:  repository.NewLedgerRepository(sqlDB, logger),
		User:    repository.NewUserRepository(sqlDB, logger),
	}, nil
}

// ProvideStorage creates the local blob store and file codecs.
func ProvideStorage(cfg *StorageConfig, logger *zap.Logger) (*StorageBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage config is required")
	}

	return &StorageBundle{
		Blobs:     storage.NewLocalBlobStore(cfg.BaseDir, cfg.MediaURL, logger),
		Namer:     storage.NewInvoiceNamer(),
		Inspector: pdf.NewInspector(cfg.MaxUploadBytes, logger),
		Archiver:  export.NewZipWriter(),
		Reports:   export.NewExcelWriter(cfg.ReportFont, logger),
	}, nil
}

// ProvideReviewNotifier returns a Lark notifier, or a logging no-op when
// Lark is not configured.
func ProvideReviewNotifier(cfg *LarkConfig, logger *zap.Logger) port.ReviewNotifier {
	larkCfg := infraLark.Config{
		AppID:        cfg.AppID,
		AppSecret:    cfg.AppSecret,
		ReviewChatID: cfg.ReviewChatID,
		AdminURL:     cfg.AdminURL,
	}
	if !larkCfg.Enabled() {
		logger.Info("Lark review notifications disabled")
		return infraLark.NewDisabledNotifier(logger)
	}

	api := infraLark.NewMessageAPI(larkCfg, logger)
	return infraLark.NewReviewNotifier(api, larkCfg, logger)
}

// ServiceDeps holds what the application services are built from.
type ServiceDeps struct {
	Config     *Config
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Storage    *StorageBundle
	Dispatcher dispatcher.Dispatcher
	Logger     *zap.Logger
}

// ProvideServices creates the lifecycle engine and all application services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	cfg := deps.Config
	policy, err := lifecycle.ParseEditPolicy(cfg.Lifecycle.EditPolicy)
	if err != nil {
		return nil, err
	}
	loc, err := lifecycle.ParseLocation(cfg.Lifecycle.TimeZone)
	if err != nil {
		return nil, err
	}

	log := &zapLoggerAdapter{logger: deps.Logger}
	tokens := auth.NewJWTIssuer(cfg.Auth.JWTSecret, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL)

	return &ServiceBundle{
		Lifecycle: lifecycle.NewEngine(
			deps.Repos.Request,
			deps.Repos.History,
			deps.TxManager,
			deps.Storage.Blobs,
			deps.Storage.Namer,
			deps.Storage.Inspector,
			log,
			lifecycle.WithDispatcher(deps.Dispatcher),
			lifecycle.WithOptions(lifecycle.Options{
				EditPolicy:             policy,
				RequireInvoiceOnCreate: cfg.Lifecycle.RequireInvoiceOnCreate,
				RequirePositiveAmount:  cfg.Lifecycle.RequirePositiveAmount,
				Location:               loc,
			}),
		),
		Auth:    service.NewAuthService(deps.Repos.User, auth.NewBcryptHasher(cfg.Auth.BcryptCost), tokens, log),
		Notices: service.NewNoticeService(deps.Repos.Notice, log),
		Ledger:  service.NewLedgerService(deps.Repos.Ledger, log),
		Exports: service.NewExportService(
			deps.Repos.Request,
			deps.Repos.Ledger,
			deps.Storage.Blobs,
			deps.Storage.Archiver,
			deps.Storage.Reports,
			log,
		),
	}, nil
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) dispatcher.Dispatcher {
	return dispatcher.NewDispatcher(dispatcher.WithLogger(&zapLoggerAdapter{logger: logger}))
}

// SubscriptionDeps holds the event consumers.
type SubscriptionDeps struct {
	Dispatcher   dispatcher.Dispatcher
	Background   dispatcher.Dispatcher
	Ledger       service.LedgerService
	Notification service.NotificationService
	Metrics      *metrics.Metrics
	AutoRecord   bool
}

// RegisterEventHandlers subscribes the event consumers to the dispatcher.
func RegisterEventHandlers(deps *SubscriptionDeps) {
	d := deps.Dispatcher

	if deps.AutoRecord {
		d.SubscribeNamed(event.TypeRequestApproved, "ledger.record_approved", deps.Ledger.RecordApproved)
	}

	// reviewer notifications call out to Lark, so they run on the
	// background dispatcher and never hold up the request
	for _, t := range []event.Type{event.TypeRequestSubmitted, event.TypeRequestResubmitted} {
		deps.Background.SubscribeNamed(t, "notify.pending_review", deps.Notification.HandleSubmitted)
		d.SubscribeNamed(t, "notify.forward", func(ctx context.Context, evt *event.Event) error {
			deps.Background.DispatchAsync(ctx, evt)
			return nil
		})
	}

	if deps.Metrics != nil {
		for _, t := range event.AllTypes() {
			d.SubscribeNamed(t, "metrics.events", deps.Metrics.RecordEvent)
		}
	}
}

// ProvideWorkers creates the background workers. The sweeper is nil when
// disabled.
func ProvideWorkers(cfg *StorageConfig, blobs port.BlobStore, requests port.RequestRepository, logger *zap.Logger) (*worker.WorkerManager, *worker.OrphanSweeper) {
	manager := worker.NewWorkerManager(logger)
	if cfg.SweepInterval <= 0 {
		logger.Info("Orphan sweeper disabled")
		return manager, nil
	}

	sweeper := worker.NewOrphanSweeper(worker.SweeperConfig{
		Interval:        cfg.SweepInterval,
		Grace:           cfg.SweepGrace,
		ExportRetention: cfg.ExportRetention,
		InvoicePrefix:   storage.InvoicePrefix,
		ExportPrefix:    service.ExportPrefix,
	}, blobs, requests, logger)
	manager.Register(sweeper)
	return manager, sweeper
}
