package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/garyjia/reimbursement-tracker/internal/application/dispatcher"
	"github.com/garyjia/reimbursement-tracker/internal/application/lifecycle"
	"github.com/garyjia/reimbursement-tracker/internal/application/port"
	"github.com/garyjia/reimbursement-tracker/internal/application/service"
	"github.com/garyjia/reimbursement-tracker/internal/domain/event"
	"github.com/garyjia/reimbursement-tracker/internal/infrastructure/metrics"
	"github.com/garyjia/reimbursement-tracker/internal/infrastructure/worker"
	"github.com/garyjia/reimbursement-tracker/pkg/database"
)

// Container manages all application dependencies and lifecycle.
// Components are initialized in order and torn down in reverse.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure - Data
	db           *database.DB
	txManager    port.TransactionManager
	repositories *RepositoryBundle

	// Infrastructure - Storage and external
	storage  *StorageBundle
	notifier port.ReviewNotifier
	metrics  *metrics.Metrics

	// Application
	dispatcher dispatcher.Dispatcher
	background dispatcher.Dispatcher
	services   *ServiceBundle

	// Workers
	workers *worker.WorkerManager
	sweeper *worker.OrphanSweeper

	// Lifecycle
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Request port.RequestRepository
	History port.HistoryRepository
	Notice  port.NoticeRepository
	Ledger  port.LedgerRepository
	User    port.UserRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Lifecycle    lifecycle.Engine
	Auth         service.AuthService
	Notices      service.NoticeService
	Ledger       service.LedgerService
	Exports      service.ExportService
	Notification service.NotificationService
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components and begins processing.
// Components are initialized in dependency order:
// 1. Database and repositories
// 2. Storage, review notifier and metrics
// 3. Event dispatcher
// 4. Application services and event subscriptions
// 5. Workers
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	// Step 1: Initialize database and repositories
	if err := c.initDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized")

	// Step 2: Initialize storage and external clients
	if err := c.initStorage(); err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.logger.Info("Storage initialized")

	// Step 3: Initialize dispatcher
	c.dispatcher = ProvideDispatcher(c.logger)
	c.background = ProvideDispatcher(c.logger)

	// Step 4: Initialize application services
	if err := c.initServices(); err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.logger.Info("Application services initialized")

	// Step 5: Initialize and start workers
	c.workers, c.sweeper = ProvideWorkers(&c.config.Storage, c.storage.Blobs, c.repositories.Request, c.logger)
	if err := c.workers.StartAll(c.ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}
	c.logger.Info("Workers initialized and started")

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	var errs []error

	if c.cancel != nil {
		c.cancel()
	}

	// Step 1: Stop workers (reverse of step 5)
	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			c.logger.Error("Failed to stop workers", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		} else {
			c.logger.Info("Workers stopped")
		}
	}

	// Step 2: Close dispatchers (reverse of step 3), draining async handlers
	if c.background != nil {
		if err := c.background.Close(); err != nil {
			c.logger.Error("Failed to close background dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close background dispatcher: %w", err))
		}
	}
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		} else {
			c.logger.Info("Dispatcher closed")
		}
	}

	// Step 3: Close database (reverse of step 1)
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	// Check database
	if c.db != nil {
		if err := c.db.PingContext(ctx); err != nil {
			status.Components["database"] = ComponentHealth{
				Healthy: false,
				Message: fmt.Sprintf("ping failed: %v", err),
			}
			status.Overall = false
		} else {
			status.Components["database"] = ComponentHealth{Healthy: true}
		}
	} else {
		status.Components["database"] = ComponentHealth{Healthy: false, Message: "not initialized"}
		status.Overall = false
	}

	// Workers are optional; an empty manager is healthy
	if c.workers != nil {
		count := c.workers.GetWorkerCount()
		healthy := count == 0 || c.workers.IsRunning()
		status.Components["workers"] = ComponentHealth{
			Healthy: healthy,
			Message: fmt.Sprintf("worker count: %d", count),
		}
		if !healthy {
			status.Overall = false
		}
	} else {
		status.Components["workers"] = ComponentHealth{Healthy: false, Message: "not initialized"}
		status.Overall = false
	}

	if c.sweeper != nil {
		stats := c.sweeper.LastStats()
		status.Components["orphan_sweeper"] = ComponentHealth{
			Healthy: stats.Failed == 0,
			Message: fmt.Sprintf("last run: scanned %d, removed %d orphans and %d exports, %d failed",
				stats.Scanned, stats.Removed, stats.ExportsRemoved, stats.Failed),
		}
	}

	if c.dispatcher != nil {
		handlers := 0
		for _, t := range event.AllTypes() {
			handlers += len(c.dispatcher.ListHandlers(t)) + len(c.background.ListHandlers(t))
		}
		status.Components["dispatcher"] = ComponentHealth{
			Healthy: true,
			Message: fmt.Sprintf("handlers: %d", handlers),
		}
	} else {
		status.Components["dispatcher"] = ComponentHealth{Healthy: false, Message: "not initialized"}
		status.Overall = false
	}

	return status
}

// initDatabase initializes the database and all repositories using providers.
func (c *Container) initDatabase() error {
	dbBundle, err := ProvideDatabase(c.ctx, &c.config.Database, c.logger)
	if err != nil {
		return err
	}

	c.db = dbBundle.DB
	c.txManager = dbBundle.TransactionMgr

	repos, err := ProvideRepositories(c.db.DB, c.logger)
	if err != nil {
		c.db.Close()
		return err
	}

	c.repositories = repos
	return nil
}

// initStorage initializes blob storage, the review notifier and metrics.
func (c *Container) initStorage() error {
	storageBundle, err := ProvideStorage(&c.config.Storage, c.logger)
	if err != nil {
		return err
	}
	c.storage = storageBundle
	c.notifier = ProvideReviewNotifier(&c.config.Lark, c.logger)
	c.metrics = metrics.New()
	return nil
}

// initServices builds the services and subscribes the event consumers.
func (c *Container) initServices() error {
	services, err := ProvideServices(&ServiceDeps{
		Config:     c.config,
		Repos:      c.repositories,
		TxManager:  c.txManager,
		Storage:    c.storage,
		Dispatcher: c.dispatcher,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}

	services.Notification = service.NewNotificationService(
		c.repositories.Request,
		c.notifier,
		&zapLoggerAdapter{logger: c.logger},
	)

	RegisterEventHandlers(&SubscriptionDeps{
		Dispatcher:   c.dispatcher,
		Background:   c.background,
		Ledger:       services.Ledger,
		Notification: services.Notification,
		Metrics:      c.metrics,
		AutoRecord:   c.config.Ledger.AutoRecordApproved,
	})

	c.services = services
	return nil
}

// Getters for accessing container components

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Blobs returns the blob store.
func (c *Container) Blobs() port.BlobStore {
	return c.storage.Blobs
}

// Metrics returns the Prometheus metrics.
func (c *Container) Metrics() *metrics.Metrics {
	return c.metrics
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.WorkerManager {
	return c.workers
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}

// ServiceLogger returns the key/value logger used by application services.
func (c *Container) ServiceLogger() service.Logger {
	return &zapLoggerAdapter{logger: c.logger}
}

// zapLoggerAdapter adapts zap.Logger to the key/value Logger interfaces of
// the application and interface layers.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Warn(msg string, keysAndValues ...interface{}) {
	a.logger.Warn(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if err, isErr := keysAndValues[i+1].(error); isErr {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
