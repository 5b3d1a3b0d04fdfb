package container

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/approval-workflow/internal/application/dispatcher"
	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/application/service"
	appwf "github.com/garyjia/approval-workflow/internal/application/workflow"
	domainwf "github.com/garyjia/approval-workflow/internal/domain/workflow"
	infraLark "github.com/garyjia/approval-workflow/internal/infrastructure/external/lark"
	"github.com/garyjia/approval-workflow/internal/infrastructure/external/redisstream"
	"github.com/garyjia/approval-workflow/internal/infrastructure/notifier"
	"github.com/garyjia/approval-workflow/internal/infrastructure/permission"
	"github.com/garyjia/approval-workflow/internal/infrastructure/persistence/repository"
	"github.com/garyjia/approval-workflow/internal/infrastructure/persistence/sqldb"
	"github.com/garyjia/approval-workflow/internal/infrastructure/worker"
	httpserver "github.com/garyjia/approval-workflow/internal/interfaces/http"
	"github.com/garyjia/approval-workflow/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqldb.DB
}

// NotifierBundle holds the composed notifier and the channel clients that need closing.
type NotifierBundle struct {
	Notifier  port.Notifier
	Channels  []string
	Publisher *redisstream.Publisher // nil unless redis is enabled
}

// ProvideDatabase opens the database and runs pending migrations.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Driver:          cfg.Driver,
		Path:            cfg.Path,
		DSN:             cfg.DSN,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if !cfg.SkipMigrations {
		if err := database.NewMigrator(db, logger).RunMigrations(); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqldb.FromDatabase(db, logger),
	}, nil
}

// ProvideRepositories creates the request and ledger repositories.
func ProvideRepositories(db *sqldb.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}

	return &RepositoryBundle{
		Request: repository.NewRequestRepository(db, logger),
		Ledger:  repository.NewLedgerRepository(db, logger),
	}, nil
}

// ProvideRoutingTable builds the routing table from the built-in definitions.
// A configured definition replaces the built-in one for its domain.
func ProvideRoutingTable(cfg *WorkflowConfig) (*domainwf.RoutingTable, error) {
	defs := domainwf.DefaultDefinitions(domainwf.DefaultOptions{
		TravelHODCostThreshold: cfg.TravelHODCostThreshold,
	})

	for _, override := range cfg.Definitions {
		if override == nil {
			continue
		}
		replaced := false
		for i, def := range defs {
			if def.Domain == override.Domain {
				defs[i] = override
				replaced = true
				break
			}
		}
		if !replaced {
			defs = append(defs, override)
		}
	}

	table, err := domainwf.NewRoutingTable(defs...)
	if err != nil {
		return nil, fmt.Errorf("invalid routing table: %w", err)
	}
	return table, nil
}

// ProvidePermissionAuthority creates the role/permission table.
func ProvidePermissionAuthority(grants map[string][]string) (*permission.Table, error) {
	if len(grants) == 0 {
		grants = permission.DefaultGrants()
	}
	table, err := permission.NewTable(grants)
	if err != nil {
		return nil, fmt.Errorf("invalid permission grants: %w", err)
	}
	return table, nil
}

// ProvideNotifier composes the enabled notification channels. The log channel is always on.
func ProvideNotifier(ctx context.Context, cfg *NotificationConfig, logger *zap.Logger) (*NotifierBundle, error) {
	bundle := &NotifierBundle{Channels: []string{"log"}}
	notifiers := []port.Notifier{notifier.NewLogNotifier(logger)}

	if cfg.Lark.Enabled {
		client := infraLark.NewSDKClient(infraLark.Config{
			AppID:         cfg.Lark.AppID,
			AppSecret:     cfg.Lark.AppSecret,
			ReceiveIDType: cfg.Lark.ReceiveIDType,
			ChatID:        cfg.Lark.ChatID,
		}, logger)
		messenger := infraLark.NewMessenger(client, logger)
		notifiers = append(notifiers, infraLark.NewNotifier(messenger, cfg.Lark.ChatID, logger))
		bundle.Channels = append(bundle.Channels, "lark")
	}

	if cfg.Redis.Enabled {
		publisher, err := redisstream.NewPublisher(ctx, redisstream.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Stream:   cfg.Redis.Stream,
			MaxLen:   cfg.Redis.MaxLen,
		}, logger)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, redisstream.NewNotifier(publisher, cfg.Redis.Stream))
		bundle.Publisher = publisher
		bundle.Channels = append(bundle.Channels, "redis")
	}

	bundle.Notifier = notifier.NewMulti(notifiers...)
	return bundle, nil
}

// ProvideWorkers creates the notification worker and a manager that owns it.
func ProvideWorkers(cfg *NotificationConfig, n port.Notifier, logger *zap.Logger) (*worker.Manager, *worker.NotificationWorker) {
	workerCfg := worker.DefaultNotificationWorkerConfig()
	if cfg.QueueSize > 0 {
		workerCfg.QueueSize = cfg.QueueSize
	}
	if cfg.Workers > 0 {
		workerCfg.Concurrency = cfg.Workers
	}
	if cfg.DeliveryTimeout > 0 {
		workerCfg.DeliveryTimeout = cfg.DeliveryTimeout
	}

	notificationWorker := worker.NewNotificationWorker(workerCfg, n, logger)

	manager := worker.NewManager(logger)
	manager.Register(notificationWorker)
	return manager, notificationWorker
}

// ProvideDispatcher creates a new event dispatcher.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return dispatcher.NewDispatcher(dispatcher.WithLogger(&zapLoggerAdapter{logger: logger})), nil
}

// EngineDeps holds dependencies for the workflow engine.
type EngineDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Authority  port.PermissionAuthority
	Table      *domainwf.RoutingTable
	Dispatcher dispatcher.Dispatcher
	Logger     *zap.Logger
}

// ProvideEngine creates the workflow engine.
func ProvideEngine(deps *EngineDeps) (appwf.Engine, error) {
	if deps == nil || deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Authority == nil {
		return nil, fmt.Errorf("permission authority is required")
	}
	if deps.Table == nil {
		return nil, fmt.Errorf("routing table is required")
	}

	return appwf.NewEngine(
		deps.Repos.Request,
		deps.Repos.Ledger,
		deps.TxManager,
		deps.Authority,
		deps.Table,
		appwf.WithDispatcher(deps.Dispatcher),
		appwf.WithLogger(&zapLoggerAdapter{logger: deps.Logger}),
	), nil
}

// ServiceDeps holds dependencies for application services.
type ServiceDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Table      *domainwf.RoutingTable
	Dispatcher dispatcher.Dispatcher
	Queue      port.NotificationQueue
	Logger     *zap.Logger
}

// ProvideServices creates the application services and subscribes the
// notification service to workflow events.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil || deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}

	serviceLogger := &zapLoggerAdapter{logger: deps.Logger}

	requests := service.NewRequestService(
		deps.Repos.Request,
		deps.Repos.Ledger,
		deps.TxManager,
		deps.Table,
		deps.Dispatcher,
		serviceLogger,
	)

	var notifications service.NotificationService
	if deps.Queue != nil {
		notifications = service.NewNotificationService(deps.Queue, serviceLogger)
		notifications.Register(deps.Dispatcher)
	}

	return &ServiceBundle{
		Request:      requests,
		Notification: notifications,
	}, nil
}

// ProvideHTTPServer creates the HTTP adapter.
func ProvideHTTPServer(cfg *ServerConfig, engine appwf.Engine, services *ServiceBundle, health httpserver.HealthReporter, logger *zap.Logger) *httpserver.Server {
	return httpserver.NewServer(httpserver.ServerConfig{
		Host:            cfg.Host,
		Port:            cfg.Port,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
		Mode:            cfg.Mode,
	}, engine, services.Request, health, &zapLoggerAdapter{logger: logger})
}
