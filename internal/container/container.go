package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/approval-workflow/internal/application/dispatcher"
	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/application/service"
	appwf "github.com/garyjia/approval-workflow/internal/application/workflow"
	domainwf "github.com/garyjia/approval-workflow/internal/domain/workflow"
	"github.com/garyjia/approval-workflow/internal/infrastructure/permission"
	"github.com/garyjia/approval-workflow/internal/infrastructure/persistence/sqldb"
	"github.com/garyjia/approval-workflow/internal/infrastructure/worker"
	httpserver "github.com/garyjia/approval-workflow/internal/interfaces/http"
	"github.com/garyjia/approval-workflow/pkg/database"
)

// Container manages all application dependencies and lifecycle.
// Components are initialized in dependency order and torn down in reverse.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure - Data
	database     *database.DB
	db           *sqldb.DB
	repositories *RepositoryBundle

	// Domain configuration
	routing   *domainwf.RoutingTable
	authority *permission.Table

	// Infrastructure - Notification
	notifiers          *NotifierBundle
	notificationWorker *worker.NotificationWorker
	workers            *worker.Manager

	// Application
	dispatcher dispatcher.Dispatcher
	engine     appwf.Engine
	services   *ServiceBundle

	// Interfaces
	server *httpserver.Server

	// Lifecycle
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Request port.RequestRepository
	Ledger  port.LedgerRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Request      service.RequestService
	Notification service.NotificationService
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

// Start initializes all components in dependency order:
// 1. Database and repositories
// 2. Routing table and permission authority
// 3. Notification channels and the delivery worker
// 4. Event dispatcher and workflow engine
// 5. Application services
// 6. HTTP server
//
// On failure the components already started are released.
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

	steps := []struct {
		name string
		init func() error
	}{
		{"database", c.initDatabase},
		{"routing", c.initRouting},
		{"notification", c.initNotification},
		{"workflow", c.initDispatcherAndEngine},
		{"services", c.initServices},
		{"http server", c.initServer},
	}

	for _, step := range steps {
		if err := step.init(); err != nil {
			c.teardown()
			return fmt.Errorf("failed to initialize %s: %w", step.name, err)
		}
		c.logger.Info("Component initialized", zap.String("component", step.name))
	}

	c.ready.Store(true)
	c.logger.Info("Container started successfully",
		zap.Strings("domains", domainNames(c.routing)),
		zap.Strings("notification_channels", c.notifiers.Channels))

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
	errs := c.teardown()

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// teardown releases whatever has been initialized. The dispatcher closes before the
// workers so in-flight handlers can still enqueue, and the workers drain before the
// channels and database close.
func (c *Container) teardown() []error {
	var errs []error

	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		} else {
			c.logger.Info("Dispatcher closed")
		}
		c.dispatcher = nil
	}

	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			c.logger.Error("Failed to stop workers", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		} else {
			c.logger.Info("Workers stopped")
		}
		c.workers = nil
	}

	if c.notifiers != nil && c.notifiers.Publisher != nil {
		if err := c.notifiers.Publisher.Close(); err != nil {
			c.logger.Error("Failed to close redis publisher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
		c.notifiers.Publisher = nil
	}

	if c.cancel != nil {
		c.cancel()
	}

	if c.database != nil {
		if err := c.database.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
		c.database = nil
	}

	return errs
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health reports per-component status. The error is non-nil when a required component is down.
func (c *Container) Health(ctx context.Context) (map[string]interface{}, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	components := make(map[string]interface{})
	var unhealthy []string

	if c.database != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := c.database.PingContext(pingCtx)
		cancel()
		if err != nil {
			components["database"] = map[string]interface{}{"healthy": false, "message": err.Error()}
			unhealthy = append(unhealthy, "database")
		} else {
			components["database"] = map[string]interface{}{"healthy": true, "driver": c.database.Driver}
		}
	} else {
		components["database"] = map[string]interface{}{"healthy": false, "message": "not initialized"}
		unhealthy = append(unhealthy, "database")
	}

	if c.workers != nil {
		components["workers"] = c.workers.Status()
		if !c.workers.IsRunning() {
			unhealthy = append(unhealthy, "workers")
		}
	} else {
		components["workers"] = map[string]interface{}{"running": false, "message": "not initialized"}
		unhealthy = append(unhealthy, "workers")
	}

	if c.dispatcher != nil {
		components["dispatcher"] = map[string]interface{}{"healthy": true, "in_flight": c.dispatcher.InFlight()}
	} else {
		components["dispatcher"] = map[string]interface{}{"healthy": false, "message": "not initialized"}
		unhealthy = append(unhealthy, "dispatcher")
	}

	// Notification channels are best effort and never fail the health check
	if c.notifiers != nil {
		notifications := map[string]interface{}{"channels": c.notifiers.Channels}
		if c.notifiers.Publisher != nil {
			if err := c.notifiers.Publisher.Ping(ctx); err != nil {
				notifications["redis"] = err.Error()
			} else {
				notifications["redis"] = "ok"
			}
		}
		components["notifications"] = notifications
	}

	if len(unhealthy) > 0 {
		return components, fmt.Errorf("unhealthy components: %v", unhealthy)
	}
	return components, nil
}

func (c *Container) initDatabase() error {
	dbBundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return err
	}
	c.database = dbBundle.DB
	c.db = dbBundle.TransactionMgr

	repos, err := ProvideRepositories(c.db, c.logger)
	if err != nil {
		return err
	}
	c.repositories = repos

	return nil
}

func (c *Container) initRouting() error {
	table, err := ProvideRoutingTable(&c.config.Workflow)
	if err != nil {
		return err
	}
	c.routing = table

	authority, err := ProvidePermissionAuthority(c.config.Permissions)
	if err != nil {
		return err
	}
	c.authority = authority

	return nil
}

func (c *Container) initNotification() error {
	bundle, err := ProvideNotifier(c.ctx, &c.config.Notification, c.logger)
	if err != nil {
		return err
	}
	c.notifiers = bundle

	manager, notificationWorker := ProvideWorkers(&c.config.Notification, bundle.Notifier, c.logger)
	if err := manager.StartAll(c.ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}
	c.workers = manager
	c.notificationWorker = notificationWorker

	return nil
}

func (c *Container) initDispatcherAndEngine() error {
	disp, err := ProvideDispatcher(c.logger)
	if err != nil {
		return err
	}
	c.dispatcher = disp

	engine, err := ProvideEngine(&EngineDeps{
		Repos:      c.repositories,
		TxManager:  c.db,
		Authority:  c.authority,
		Table:      c.routing,
		Dispatcher: c.dispatcher,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}
	c.engine = engine

	return nil
}

func (c *Container) initServices() error {
	services, err := ProvideServices(&ServiceDeps{
		Repos:      c.repositories,
		TxManager:  c.db,
		Table:      c.routing,
		Dispatcher: c.dispatcher,
		Queue:      c.notificationWorker,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}
	c.services = services
	return nil
}

func (c *Container) initServer() error {
	c.server = ProvideHTTPServer(&c.config.Server, c.engine, c.services, c, c.logger)
	return nil
}

// Getters for accessing container components

// DB returns the transaction manager.
func (c *Container) DB() port.TransactionManager {
	return c.db
}

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Routing returns the routing table.
func (c *Container) Routing() *domainwf.RoutingTable {
	return c.routing
}

// Authority returns the permission table.
func (c *Container) Authority() *permission.Table {
	return c.authority
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Engine returns the workflow engine.
func (c *Container) Engine() appwf.Engine {
	return c.engine
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.Manager {
	return c.workers
}

// Server returns the HTTP server. The caller owns Start and Stop.
func (c *Container) Server() *httpserver.Server {
	return c.server
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}

func domainNames(table *domainwf.RoutingTable) []string {
	if table == nil {
		return nil
	}
	domains := table.Domains()
	names := make([]string, len(domains))
	for i, d := range domains {
		names[i] = string(d)
	}
	return names
}

// zapLoggerAdapter adapts zap.Logger to the minimal Logger interfaces of the
// application and interface layers.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
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
		if err, ok := keysAndValues[i+1].(error); ok {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}

var _ httpserver.HealthReporter = (*Container)(nil)
