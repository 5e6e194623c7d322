package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"coachboard/internal/app"
	"coachboard/internal/config"
	"coachboard/internal/database"
	"coachboard/internal/logging"
)

var Version = "dev"

type cli struct {
	configPath string
	cfg        *config.Config
	logger     *zap.Logger
}

func main() {
	c := &cli{}
	rootCmd := &cobra.Command{
		Use:           "coachboard",
		Short:         "Goal coaching backend with reminders, billing and an AI coach",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Development)
			if err != nil {
				return err
			}
			c.cfg = cfg
			c.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}
	rootCmd.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "path to a YAML config file")

	rootCmd.AddCommand(c.serveCmd())
	rootCmd.AddCommand(c.migrateCmd())
	rootCmd.AddCommand(c.digestCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (c *cli) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, scheduler and Telegram bot until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			application, err := app.New(ctx, c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer application.Close()

			c.logger.Info("coachboard starting", zap.String("version", Version))
			return application.Run(ctx)
		},
	}
}

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.New(c.cfg.Database.Path, c.logger.Named("database"))
			if err != nil {
				return err
			}
			c.logger.Info("schema up to date", zap.String("path", c.cfg.Database.Path))
			return db.Close()
		},
	}
}

func (c *cli) digestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "digest",
		Short: "Send today's daily summaries once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			application, err := app.New(ctx, c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer application.Close()

			application.Digest(ctx)
			return nil
		},
	}
}
