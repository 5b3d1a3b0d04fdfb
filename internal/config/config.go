package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	domainwf "github.com/garyjia/approval-workflow/internal/domain/workflow"
)

// EnvPrefix prefixes every environment override, e.g. APPROVAL_SERVER_PORT
const EnvPrefix = "APPROVAL"

// Config holds all application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Logger       LoggerConfig       `mapstructure:"logger"`
	Workflow     WorkflowConfig     `mapstructure:"workflow"`
	Permissions  []RoleGrant        `mapstructure:"permissions"`
	Notification NotificationConfig `mapstructure:"notification"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Mode            string        `mapstructure:"mode"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite3 or postgres
	Path            string        `mapstructure:"path"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// WorkflowConfig tunes routing. Definitions replace the built-in chain of their domain.
type WorkflowConfig struct {
	TravelHODCostThreshold float64                `mapstructure:"travel_hod_cost_threshold"`
	Definitions            []*domainwf.Definition `mapstructure:"definitions"`
}

// RoleGrant lists the permission patterns held by one role.
// Roles are a list rather than a map because viper lowercases map keys.
type RoleGrant struct {
	Role     string   `mapstructure:"role"`
	Patterns []string `mapstructure:"patterns"`
}

// NotificationConfig holds notification delivery configuration
type NotificationConfig struct {
	QueueSize       int           `mapstructure:"queue_size"`
	Workers         int           `mapstructure:"workers"`
	DeliveryTimeout time.Duration `mapstructure:"delivery_timeout"`
	Lark            LarkConfig    `mapstructure:"lark"`
	Redis           RedisConfig   `mapstructure:"redis"`
}

// LarkConfig holds Lark messaging configuration
type LarkConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	AppID         string `mapstructure:"app_id"`
	AppSecret     string `mapstructure:"app_secret"`
	ReceiveIDType string `mapstructure:"receive_id_type"`
	ChatID        string `mapstructure:"chat_id"`
}

// RedisConfig holds Redis stream configuration
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Stream   string `mapstructure:"stream"`
	MaxLen   int64  `mapstructure:"max_len"`
}

// Load loads configuration from an optional YAML file, a .env file in the
// working directory and the environment, in increasing order of precedence.
func Load(configPath string) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.mode", "release")

	// Database defaults
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.path", "data/approvals.db")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.auto_migrate", true)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	// Workflow defaults
	v.SetDefault("workflow.travel_hod_cost_threshold", domainwf.DefaultTravelHODCostThreshold)

	// Notification defaults
	v.SetDefault("notification.queue_size", 256)
	v.SetDefault("notification.workers", 2)
	v.SetDefault("notification.delivery_timeout", 10*time.Second)
	v.SetDefault("notification.lark.enabled", false)
	v.SetDefault("notification.lark.receive_id_type", "open_id")
	v.SetDefault("notification.lark.chat_id", "")
	v.SetDefault("notification.redis.enabled", false)
	v.SetDefault("notification.redis.addr", "localhost:6379")
	v.SetDefault("notification.redis.db", 0)
	v.SetDefault("notification.redis.stream", "approval:events")
	v.SetDefault("notification.redis.max_len", 10000)
}

// bindEnvVars binds the unprefixed variables that carry credentials
func bindEnvVars(v *viper.Viper) error {
	bindings := map[string]string{
		"database.dsn":                 "DATABASE_URL",
		"notification.lark.app_id":     "LARK_APP_ID",
		"notification.lark.app_secret": "LARK_APP_SECRET",
		"notification.redis.password":  "REDIS_PASSWORD",
	}
	for key, env := range bindings {
		// The prefixed form stays first so it wins over the bare one
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite3":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite3")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn (or DATABASE_URL) is required for postgres")
		}
	default:
		return fmt.Errorf("database.driver must be sqlite3 or postgres, got %q", c.Database.Driver)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}

	if c.Notification.Lark.Enabled {
		if c.Notification.Lark.AppID == "" {
			return fmt.Errorf("notification.lark.app_id (or LARK_APP_ID) is required when lark is enabled")
		}
		if c.Notification.Lark.AppSecret == "" {
			return fmt.Errorf("notification.lark.app_secret (or LARK_APP_SECRET) is required when lark is enabled")
		}
	}

	if c.Notification.Redis.Enabled && c.Notification.Redis.Addr == "" {
		return fmt.Errorf("notification.redis.addr is required when redis is enabled")
	}

	seen := make(map[string]bool, len(c.Permissions))
	for _, g := range c.Permissions {
		if strings.TrimSpace(g.Role) == "" {
			return fmt.Errorf("permissions: role name is required")
		}
		if seen[g.Role] {
			return fmt.Errorf("permissions: role %s listed twice", g.Role)
		}
		seen[g.Role] = true
	}

	return nil
}

// Grants returns the configured permissions keyed by role. It is nil when none are configured.
func (c *Config) Grants() map[string][]string {
	if len(c.Permissions) == 0 {
		return nil
	}
	grants := make(map[string][]string, len(c.Permissions))
	for _, g := range c.Permissions {
		grants[g.Role] = append(grants[g.Role], g.Patterns...)
	}
	return grants
}
