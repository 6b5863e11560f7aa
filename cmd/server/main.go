// Package main - точка входа API сервиса изучения Библии.
//
// Команды:
//   - serve: HTTP API (по умолчанию)
//   - migrate: применить схему PostgreSQL/SQLite
//   - seed-lessons: заполнить каталог уроков
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Ruben-Makrati/gamified-bible-study-app/config"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/application/command"
	"github.com/Ruben-Makrati/gamified-bible-study-app/pkg/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "server",
		Short:         "Gamified Bible study API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newSeedLessonsCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema for the configured backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			a := &app{cfg: cfg, log: log}
			return a.migrate(cmd.Context())
		},
	}
}

func newSeedLessonsCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "seed-lessons",
		Short: "Populate the lesson catalog with the default lessons",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx := cmd.Context()
			a, err := build(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer func() { _ = a.close() }()

			res, err := a.seedLessons.Handle(ctx, command.SeedLessonsCommand{Force: force})
			if err != nil {
				return err
			}
			if res.Skipped {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "catalog already seeded, use --force to overwrite")
				return nil
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "seeded %d lessons\n", res.Seeded)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite the default lessons even if the catalog is not empty")
	return cmd
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVE
// ══════════════════════════════════════════════════════════════════════════════

func runServe(parent context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ И ЛОГИРОВАНИЕ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting bible study api",
		logger.String("env", string(cfg.App.Environment)),
		logger.Bool("debug", cfg.App.Debug),
		logger.String("timezone", cfg.App.Timezone),
	)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ─────────────────────────────────────────────────────────────────────────
	// 2. СБОРКА ЗАВИСИМОСТЕЙ
	// ─────────────────────────────────────────────────────────────────────────
	a, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.close(); err != nil {
			log.Error("failed to release resources", logger.Err(err))
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ЗАПУСК HTTP СЕРВЕРА
	// ─────────────────────────────────────────────────────────────────────────
	errCh := a.server.StartAsync()
	log.Info("bible study api is running", logger.String("address", a.server.Address()))

	// ─────────────────────────────────────────────────────────────────────────
	// 4. КОРРЕКТНОЕ ЗАВЕРШЕНИЕ
	// ─────────────────────────────────────────────────────────────────────────
	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		log.Info("received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("http shutdown failed", logger.Err(err))
		return err
	}
	a.bus.Drain()

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func setup() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, newLogger(cfg), nil
}
