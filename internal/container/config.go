// Package container provides dependency injection and lifecycle management
// for the approval workflow service.
package container

import (
	"fmt"
	"time"

	domainwf "github.com/garyjia/approval-workflow/internal/domain/workflow"
	"github.com/garyjia/approval-workflow/pkg/database"
)

// Config holds all configuration for the Container.
type Config struct {
	Database     DatabaseConfig
	Workflow     WorkflowConfig
	Permissions  map[string][]string // role -> permission patterns; empty means the built-in grants
	Notification NotificationConfig
	Server       ServerConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Driver is sqlite3 or postgres
	Driver string

	// Path to the SQLite database file
	Path string

	// DSN is the postgres connection string
	DSN string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// SkipMigrations leaves the schema untouched on start
	SkipMigrations bool
}

// WorkflowConfig tunes the routing table.
type WorkflowConfig struct {
	TravelHODCostThreshold float64

	// Definitions replace the built-in definition of the same domain
	Definitions []*domainwf.Definition
}

// NotificationConfig holds the notification worker and channel settings.
type NotificationConfig struct {
	QueueSize       int
	Workers         int
	DeliveryTimeout time.Duration

	Lark  LarkConfig
	Redis RedisConfig
}

// LarkConfig holds Lark messaging settings.
type LarkConfig struct {
	Enabled       bool
	AppID         string
	AppSecret     string
	ReceiveIDType string
	ChatID        string
}

// RedisConfig holds the Redis stream publisher settings.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	Stream   string
	MaxLen   int64
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	Mode            string
}

// DefaultConfig returns a configuration backed by a local SQLite file.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:          database.DriverSQLite,
			Path:            "data/approvals.db",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Workflow: WorkflowConfig{
			TravelHODCostThreshold: domainwf.DefaultTravelHODCostThreshold,
		},
		Notification: NotificationConfig{
			QueueSize:       256,
			Workers:         2,
			DeliveryTimeout: 10 * time.Second,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			Mode:            "release",
		},
	}
}

// Validate checks the configuration for missing or conflicting values.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "", database.DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database path is required for sqlite3")
		}
	case database.DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if c.Workflow.TravelHODCostThreshold < 0 {
		return fmt.Errorf("travel HOD cost threshold must not be negative")
	}

	if c.Notification.QueueSize < 0 {
		return fmt.Errorf("notification queue size must not be negative")
	}
	if c.Notification.Workers < 0 {
		return fmt.Errorf("notification workers must not be negative")
	}
	if c.Notification.Lark.Enabled {
		if c.Notification.Lark.AppID == "" || c.Notification.Lark.AppSecret == "" {
			return fmt.Errorf("lark app id and secret are required when lark notifications are enabled")
		}
	}
	if c.Notification.Redis.Enabled && c.Notification.Redis.Addr == "" {
		return fmt.Errorf("redis addr is required when redis notifications are enabled")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}

	return nil
}
