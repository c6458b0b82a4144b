// Command server runs the brokerage site.
//
//	server            serve HTTP (same as "server serve")
//	server migrate    create the schema on the configured SQL backend
//	server forms      list the registered form definitions
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/shipbroker/internal/config"
	_ "github.com/JonMunkholm/shipbroker/internal/core/forms" // register form definitions
	"github.com/JonMunkholm/shipbroker/internal/logging"
	"github.com/JonMunkholm/shipbroker/internal/store"
)

func main() {
	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:          "server",
		Short:        "Arab ShipBroker lead-capture site",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Overload so a local .env wins over stale shell exports.
			if err := godotenv.Overload(envFile); err != nil {
				slog.Debug("no env file loaded", "file", envFile)
			}
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")

	serve := serveCmd()
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())
	root.AddCommand(serve, migrateCmd(), formsCmd())
	return root
}

// loadConfig reads and validates configuration, then configures logging.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	return cfg, nil
}

func storeOptions(cfg *config.Config) store.Options {
	return store.Options{
		Backend:         cfg.Database.Backend,
		DatabaseURL:     cfg.Database.URL,
		MaxConns:        int32(cfg.Database.MaxConns),
		MinConns:        int32(cfg.Database.MinConns),
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		SQLitePath:      cfg.Database.SQLitePath,
		SupabaseURL:     cfg.Supabase.URL,
		SupabaseAnonKey: cfg.Supabase.AnonKey,
		HTTPTimeout:     cfg.Supabase.HTTPTimeout,
	}
}
