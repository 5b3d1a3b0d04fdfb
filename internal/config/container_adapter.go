package config

import (
	"github.com/garyjia/approval-workflow/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Driver:          c.Database.Driver,
			Path:            c.Database.Path,
			DSN:             c.Database.DSN,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
			SkipMigrations:  !c.Database.AutoMigrate,
		},
		Workflow: container.WorkflowConfig{
			TravelHODCostThreshold: c.Workflow.TravelHODCostThreshold,
			Definitions:            c.Workflow.Definitions,
		},
		Permissions: c.Grants(),
		Notification: container.NotificationConfig{
			QueueSize:       c.Notification.QueueSize,
			Workers:         c.Notification.Workers,
			DeliveryTimeout: c.Notification.DeliveryTimeout,
			Lark: container.LarkConfig{
				Enabled:       c.Notification.Lark.Enabled,
				AppID:         c.Notification.Lark.AppID,
				AppSecret:     c.Notification.Lark.AppSecret,
				ReceiveIDType: c.Notification.Lark.ReceiveIDType,
				ChatID:        c.Notification.Lark.ChatID,
			},
			Redis: container.RedisConfig{
				Enabled:  c.Notification.Redis.Enabled,
				Addr:     c.Notification.Redis.Addr,
				Password: c.Notification.Redis.Password,
				DB:       c.Notification.Redis.DB,
				Stream:   c.Notification.Redis.Stream,
				MaxLen:   c.Notification.Redis.MaxLen,
			},
		},
		Server: container.ServerConfig{
			Host:            c.Server.Host,
			Port:            c.Server.Port,
			ReadTimeout:     c.Server.ReadTimeout,
			WriteTimeout:    c.Server.WriteTimeout,
			ShutdownTimeout: c.Server.ShutdownTimeout,
			Mode:            c.Server.Mode,
		},
	}
}
