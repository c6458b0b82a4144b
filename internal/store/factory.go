package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Options selects and configures a backend.
type Options struct {
	Backend string // postgres, sqlite, supabase

	// postgres
	DatabaseURL     string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration

	// sqlite
	SQLitePath string

	// supabase
	SupabaseURL     string
	SupabaseAnonKey string
	HTTPTimeout     time.Duration
}

// Open creates the configured backend and verifies it is reachable.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch strings.ToLower(opts.Backend) {
	case "postgres", "postgresql":
		if opts.DatabaseURL == "" {
			return nil, fmt.Errorf("postgres connection string is required")
		}
		return NewPostgres(ctx, opts)
	case "sqlite", "sqlite3", "":
		path := opts.SQLitePath
		if path == "" {
			path = "shipbroker.db"
		}
		return NewSQLite(path)
	case "supabase":
		if opts.SupabaseURL == "" || opts.SupabaseAnonKey == "" {
			return nil, fmt.Errorf("supabase url and anon key are required")
		}
		return NewSupabase(opts.SupabaseURL, opts.SupabaseAnonKey, opts.HTTPTimeout), nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", opts.Backend)
	}
}
