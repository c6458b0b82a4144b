package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/shipbroker/internal/store"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the listing, subscriber and account tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			st, err := store.Open(ctx, storeOptions(cfg))
			if err != nil {
				return fmt.Errorf("open %s store: %w", cfg.Database.Backend, err)
			}
			defer st.Close()

			m, ok := st.(store.Migrator)
			if !ok {
				slog.Info("backend manages its own schema; nothing to do", "backend", cfg.Database.Backend)
				return nil
			}
			if err := m.Migrate(ctx); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			slog.Info("schema up to date", "backend", cfg.Database.Backend)
			return nil
		},
	}
}
