package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/shipbroker/internal/auth"
	"github.com/JonMunkholm/shipbroker/internal/config"
	"github.com/JonMunkholm/shipbroker/internal/core"
	"github.com/JonMunkholm/shipbroker/internal/metrics"
	"github.com/JonMunkholm/shipbroker/internal/store"
	"github.com/JonMunkholm/shipbroker/internal/verify"
	"github.com/JonMunkholm/shipbroker/internal/web"
)

func serveCmd() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the site over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "create missing tables on SQL backends before serving")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, migrate bool) error {
	slog.Info("configuration loaded",
		"addr", cfg.Server.Addr(),
		"backend", cfg.Database.Backend,
		"recaptcha", cfg.Recaptcha.Enabled(),
		"rate_limit_enabled", cfg.Rate.Enabled,
		"max_concurrent_submissions", cfg.Forms.MaxConcurrent,
	)

	openCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	st, err := store.Open(openCtx, storeOptions(cfg))
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Database.Backend, err)
	}
	defer st.Close()

	if err := st.Ping(openCtx); err != nil {
		return fmt.Errorf("ping %s store: %w", cfg.Database.Backend, err)
	}
	if m, ok := st.(store.Migrator); ok && migrate {
		if err := m.Migrate(openCtx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	slog.Info("store ready", "backend", cfg.Database.Backend)

	var forms *core.Service
	var m *metrics.Metrics
	var observer core.Observer
	if cfg.Metrics.Enabled {
		m = metrics.New(metrics.Gauges{
			ActiveSessions:      func() int { return forms.ActiveCount() },
			SubmissionsInFlight: func() int { return forms.Limiter().ActiveCount() },
		})
		observer = m
	}
	forms = core.NewService(st, core.Config{
		SessionTTL:    cfg.Forms.SessionTTL,
		VerifyTimeout: cfg.Forms.VerifyTimeout,
		SubmitTimeout: cfg.Forms.SubmitTimeout,
		MaxConcurrent: cfg.Forms.MaxConcurrent,
		MaxWait:       cfg.Forms.MaxWait,
		Observer:      observer,
	})
	slog.Info("forms registered", "count", core.FormCount())

	authenticator, err := newAuthenticator(cfg, st)
	if err != nil {
		return err
	}
	sessions := auth.NewManager(auth.ManagerConfig{
		TTL:          cfg.Auth.SessionTTL,
		CookieName:   cfg.Auth.CookieName,
		CookieSecure: cfg.Auth.CookieSecure,
	})

	verifier := verify.NewClient(cfg.Recaptcha, cfg.Forms.VerifyTimeout)
	if !verifier.Enabled() {
		slog.Warn("reCAPTCHA secret not set; tokens are required but not checked")
	}

	server := web.NewServer(web.Deps{
		Config:   cfg,
		Forms:    forms,
		Store:    st,
		Sessions: sessions,
		Auth:     authenticator,
		Verifier: verifier,
		Metrics:  m,
	})

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()
	go forms.StartSweeper(jobCtx, cfg.Forms.SweepInterval)
	go sweepSessions(jobCtx, sessions, cfg.Forms.SweepInterval)

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-sigCtx.Done():
	}

	slog.Info("shutting down...")
	cancelJobs()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := drain(shutdownCtx, server, forms); err != nil {
		return err
	}
	return <-errCh
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// drain closes the listener first so no new submission can start, then
// waits for the ones still holding a pipeline slot.
func drain(ctx context.Context, srv shutdowner, forms *core.Service) error {
	shutdownErr := srv.Shutdown(ctx)

	if status := forms.Limiter().Status(); status.Active > 0 {
		slog.Info("waiting for submissions to complete", "active", status.Active)
		if err := forms.WaitForSubmissions(ctx); err != nil {
			slog.Warn("submissions did not complete in time", "error", err)
		} else {
			slog.Info("all submissions completed")
		}
	}

	if shutdownErr != nil {
		return fmt.Errorf("shutdown: %w", shutdownErr)
	}
	return nil
}

// newAuthenticator signs users in against Supabase when that is the
// backend, and against the local accounts table otherwise.
func newAuthenticator(cfg *config.Config, st store.Store) (auth.Authenticator, error) {
	if cfg.Database.Backend == config.BackendSupabase {
		return auth.NewSupabase(cfg.Supabase.URL, cfg.Supabase.AnonKey, cfg.Supabase.HTTPTimeout), nil
	}
	accounts, ok := st.(store.AccountStore)
	if !ok {
		return nil, errors.New("store backend does not manage accounts")
	}
	return auth.NewLocal(accounts, cfg.Auth.MinPasswordLength), nil
}

func sweepSessions(ctx context.Context, m *auth.Manager, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				slog.Info("swept expired sign-in sessions", "removed", n, "active", m.Count())
			}
		}
	}
}
