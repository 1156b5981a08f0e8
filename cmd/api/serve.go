package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/withaibuild/site/internal/config"
	"github.com/withaibuild/site/internal/database"
	"github.com/withaibuild/site/internal/handlers"
	"github.com/withaibuild/site/internal/kvstore"
	"github.com/withaibuild/site/internal/notify"
	"github.com/withaibuild/site/internal/ratelimit"
	"github.com/withaibuild/site/internal/repository"
	"github.com/withaibuild/site/internal/scheduler"
	"github.com/withaibuild/site/internal/server"
	"github.com/withaibuild/site/internal/services"
	"github.com/withaibuild/site/internal/simulator"
	"github.com/withaibuild/site/pkg/logger"
)

func serveCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			return serve(cmd.Context(), cfg, log, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "apply pending migrations before serving")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, log *logger.Logger, migrate bool) error {
	srv := server.New(cfg, log)
	health := srv.HealthHandler()

	// Submissions
	var repo repository.SubmissionRepository
	if cfg.DatabaseEnabled() {
		pool, err := database.NewPool(ctx, &cfg.Database)
		if err != nil {
			return err
		}
		defer pool.Close()

		if migrate {
			m, err := database.NewSchemaMigrator(pool, log)
			if err != nil {
				return err
			}
			if _, err := m.Up(ctx); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
		}
		repo = repository.NewPostgresSubmissionRepository(pool)
		health.AddCheck("database", pool.HealthCheck)
		log.Info("database connected", "host", cfg.Database.Host, "db", cfg.Database.DBName)
	} else {
		log.Warn("database not configured, form submissions will be rejected")
	}

	// Attempt records
	store, closeStore := attemptStore(ctx, cfg, log, health)
	defer closeStore()

	limiters, err := formLimiters(cfg.Forms, store, log)
	if err != nil {
		return err
	}

	// Notifications
	relay := notify.NewRelay(cfg.Notify.Timeout, log, notifiers(cfg, log)...)
	if !relay.Enabled() {
		log.Warn("no notification channel configured")
	}

	forms, err := services.NewFormService(repo, limiters, relay, log)
	if err != nil {
		return err
	}

	// Build simulator
	simCfg := simulator.DefaultConfig()
	if cfg.Simulator.BaseDomain != "" {
		simCfg.BaseDomain = cfg.Simulator.BaseDomain
	}
	if cfg.Simulator.TotalDuration > 0 {
		simCfg.TotalDuration = cfg.Simulator.TotalDuration
	}
	if cfg.Simulator.TickInterval > 0 {
		simCfg.TickInterval = cfg.Simulator.TickInterval
	}
	builds, err := simulator.NewManager(simCfg, simulator.ManagerConfig{
		Retention: cfg.Simulator.Retention,
		MaxRuns:   cfg.Simulator.MaxRuns,
	}, scheduler.Real{}, log)
	if err != nil {
		return err
	}

	srv.SetFormHandler(handlers.NewFormHandler(forms))
	srv.SetBuildHandler(handlers.NewBuildHandler(builds, log))
	srv.SetNotifyHandler(handlers.NewNotifyHandler(relay))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		builds.Close()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	err = srv.Shutdown(shutdownCtx)
	builds.Close()
	if closeErr := relay.Close(shutdownCtx); closeErr != nil {
		log.Warn("notifications still in flight at shutdown", "error", closeErr.Error())
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// attemptStore returns the Redis store when configured and reachable,
// otherwise an in-process store.
func attemptStore(ctx context.Context, cfg *config.Config, log *logger.Logger, health *handlers.HealthHandler) (kvstore.Store, func()) {
	if cfg.RedisEnabled() {
		client, err := kvstore.NewRedisClient(ctx, &cfg.Redis)
		if err == nil {
			store := kvstore.NewRedisStore(client, kvstore.WithTTL(cfg.Forms.RecordTTL))
			health.AddOptionalCheck("redis", store.Ping)
			log.Info("attempt records in redis", "host", cfg.Redis.Host)
			return store, func() { _ = store.Close() }
		}
		log.Warn("redis unavailable, keeping attempt records in memory", "error", err.Error())
	}
	return kvstore.NewMemoryStore(cfg.Forms.RecordTTL), func() {}
}

func formLimiters(cfg config.FormsConfig, store kvstore.Store, log *logger.Logger) (services.FormLimiters, error) {
	var (
		out services.FormLimiters
		err error
	)
	build := func(fl config.FormLimit) *ratelimit.Limiter {
		if err != nil {
			return nil
		}
		var l *ratelimit.Limiter
		l, err = ratelimit.New(ratelimit.Config{
			Key:         fl.Key,
			MaxAttempts: fl.MaxAttempts,
			Window:      fl.Window,
		}, store, ratelimit.WithLogger(log))
		return l
	}
	out.Contact = build(cfg.Contact)
	out.Application = build(cfg.JobApplication)
	out.Newsletter = build(cfg.Newsletter)
	out.FeatureRequest = build(cfg.FeatureRequest)
	if err != nil {
		return services.FormLimiters{}, fmt.Errorf("form limits: %w", err)
	}
	return out, nil
}

func notifiers(cfg *config.Config, log *logger.Logger) []notify.Notifier {
	client := &http.Client{Timeout: cfg.Notify.Timeout}
	if cfg.Notify.Timeout <= 0 {
		client.Timeout = 10 * time.Second
	}

	var out []notify.Notifier
	if cfg.TelegramEnabled() {
		tg, err := notify.NewTelegramNotifier(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID, notify.WithTelegramClient(client))
		if err == nil {
			out = append(out, notify.WithBreaker(tg, notify.DefaultBreakerSettings(), log))
		}
	}
	if cfg.Notify.WebhookURL != "" {
		wh, err := notify.NewWebhookNotifier(cfg.Notify.WebhookURL, client)
		if err == nil {
			out = append(out, notify.WithBreaker(wh, notify.DefaultBreakerSettings(), log))
		}
	}
	return out
}
