package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/garyjia/approval-workflow/internal/config"
	"github.com/garyjia/approval-workflow/internal/container"
	"github.com/garyjia/approval-workflow/pkg/database"
	"github.com/garyjia/approval-workflow/pkg/utils"
)

const version = "1.0.0"

func main() {
	cmd := &cli.Command{
		Name:    "approval-server",
		Usage:   "Request approval workflow service",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML configuration file (optional)",
				Value:   "",
				Sources: cli.EnvVars("APPROVAL_CONFIG"),
			},
		},
		Commands: []*cli.Command{
			newServeCommand(),
			newMigrateCommand(),
		},
		Action: serve,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func newServeCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run migrations and start the HTTP API (default)",
		Action: serve,
	}
}

func newMigrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply pending database migrations and exit",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "List pending migrations without applying them",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			cfg, logger, err := bootstrap(command)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			db, err := database.New(database.Config{
				Driver: cfg.Database.Driver,
				Path:   cfg.Database.Path,
				DSN:    cfg.Database.DSN,
			}, logger)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()

			migrator := database.NewMigrator(db, logger)
			if !command.Bool("dry-run") {
				return migrator.RunMigrations()
			}

			pending, err := migrator.Pending()
			if err != nil {
				return err
			}
			for _, m := range pending {
				fmt.Printf("%03d_%s\n", m.Version, m.Name)
			}
			if len(pending) == 0 {
				fmt.Println("schema is up to date")
			}
			return nil
		},
	}
}

func serve(ctx context.Context, command *cli.Command) error {
	cfg, logger, err := bootstrap(command)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting approval workflow service",
		zap.String("version", version),
		zap.String("database_driver", cfg.Database.Driver),
		zap.Int("port", cfg.Server.Port))

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := container.NewContainer(cfg.ToContainerConfig(), logger)
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error("Shutdown finished with errors", zap.Error(err))
		}
	}()

	// Blocks until a signal arrives or the listener fails
	if err := c.Server().Start(ctx); err != nil {
		return fmt.Errorf("http server: %w", err)
	}

	logger.Info("Server exited")
	return nil
}

func bootstrap(command *cli.Command) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(command.String("config"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return cfg, logger, nil
}
