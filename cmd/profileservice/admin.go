package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	cfnats "github.com/Strob0t/userprofile/internal/adapter/nats"
	"github.com/Strob0t/userprofile/internal/adapter/postgres"
	"github.com/Strob0t/userprofile/internal/config"
	"github.com/Strob0t/userprofile/internal/logger"
	"github.com/Strob0t/userprofile/internal/service"
)

func adminCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Operational commands: migrations and cache eviction",
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config (default profileservice.yaml or $PROFILE_CONFIG)")

	load := func() (*config.Config, error) {
		var (
			cfg *config.Config
			err error
		)
		if configPath != "" {
			cfg, err = config.LoadFrom(configPath)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		slog.SetDefault(logger.New(cfg.Logging))
		return cfg, nil
	}

	cmd.AddCommand(migrateCmd(load), rollbackCmd(load), evictCmd(load))
	return cmd
}

func migrateCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply all pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
				return err
			}
			version, err := postgres.MigrationVersion(ctx, cfg.Postgres.DSN)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
			return nil
		},
	}
}

func rollbackCmd(load func() (*config.Config, error)) *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Roll back the most recent schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if steps < 1 {
				return errors.New("--steps must be >= 1")
			}
			cfg, err := load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := postgres.RollbackMigrations(ctx, cfg.Postgres.DSN, steps); err != nil {
				return err
			}
			version, err := postgres.MigrationVersion(ctx, cfg.Postgres.DSN)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
			return nil
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	return cmd
}

func evictCmd(load func() (*config.Config, error)) *cobra.Command {
	var bankID, userID int64
	cmd := &cobra.Command{
		Use:   "evict",
		Short: "Drop one cached profile from the shared cache and every replica",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if bankID <= 0 || userID <= 0 {
				return errors.New("--bank and --user are required")
			}
			cfg, err := load()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			queue, err := cfnats.Connect(ctx, cfg.NATS.URL)
			if err != nil {
				return fmt.Errorf("nats: %w", err)
			}
			defer func() { _ = queue.Drain() }()

			caches, err := buildProfileCache(ctx, cfg, queue, nil)
			if err != nil {
				return fmt.Errorf("profile cache: %w", err)
			}
			defer caches.close()

			svc := service.NewProfileService(nil, caches.shared, nil, nil, cfg.Cache.TTL, cfg.Enrichment.Deadline)
			svc.SetQueue(queue)
			if err := svc.Evict(ctx, bankID, userID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "evicted %s\n", service.ProfileCacheKey(bankID, userID))
			return nil
		},
	}
	cmd.Flags().Int64Var(&bankID, "bank", 0, "bank ID")
	cmd.Flags().Int64Var(&userID, "user", 0, "user ID")
	return cmd
}
