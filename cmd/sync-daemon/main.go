package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/rentsync/api/routes"
	"github.com/angelmondragon/rentsync/internal/chatsync"
	"github.com/angelmondragon/rentsync/internal/identity"
	"github.com/angelmondragon/rentsync/pkg/auth"
	"github.com/angelmondragon/rentsync/pkg/config"
	"github.com/angelmondragon/rentsync/pkg/logger"
	"github.com/angelmondragon/rentsync/pkg/metrics"
	pkgredis "github.com/angelmondragon/rentsync/pkg/redis"
	"github.com/angelmondragon/rentsync/pkg/rentalapi"
)

const tokenExpiryWarning = 5 * time.Minute

func main() {
	logg := logger.New(logger.Options{ServiceName: "sync-daemon"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "sync-daemon",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":   cfg.App.Env,
		"shape": cfg.Sync.Shape,
	})

	shape := strings.ToLower(strings.TrimSpace(cfg.Sync.Shape))
	audience := rentalapi.AudienceCustomer
	if shape == config.ShapeAdmin {
		audience = rentalapi.AudienceAdmin
	}

	if info, err := auth.Inspect(cfg.ChatAPI.BearerToken); err == nil {
		if info.ExpiresWithin(time.Now(), tokenExpiryWarning) {
			logg.Warn(ctx, "bearer token expires soon, expect a session-expired notice")
		}
	}

	store, redisClient, err := buildIdentityStore(ctx, cfg, shape)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap identity store", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(ctx, "error closing redis", err)
			}
		}()
	}

	apiClient, err := rentalapi.NewClient(cfg.ChatAPI, audience, logg,
		rentalapi.WithSessionExpiredHandler(func() {
			logg.Warn(ctx, "session expired, re-authentication required")
		}),
	)
	if err != nil {
		logg.Error(ctx, "failed to build chat api client", err)
		os.Exit(1)
	}

	resolver, err := identity.NewResolver(identity.ResolverParams{
		API:    apiClient,
		Store:  store,
		Logger: logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to build identity resolver", err)
		os.Exit(1)
	}

	// Polling must not start before the self identity is known; a failure
	// here is terminal, not silently retried.
	self, err := resolver.Resolve(ctx)
	if err != nil {
		logg.Error(ctx, "identity resolution failed, polling disabled", err)
		os.Exit(1)
	}
	if self.Role != shape {
		logg.Error(ctx, "resolved role does not match configured shape",
			errors.New("role "+self.Role+" vs shape "+shape))
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	syncMetrics := metrics.NewSyncMetrics(registry)

	inbox := chatsync.NewInbox(self.UserID, cfg.Sync.PreviewLength)
	notifier := chatsync.NotifierFunc(func(ctx context.Context) {
		syncMetrics.AddNotifications(shape, 1)
		logg.Info(ctx, "chat.alert")
	})

	var synchronizer chatsync.Synchronizer
	if shape == config.ShapeAdmin {
		synchronizer, err = chatsync.NewAdminSync(chatsync.AdminSyncParams{
			API:        apiClient,
			Inbox:      inbox,
			Notifier:   notifier,
			Logger:     logg,
			SelfID:     self.UserID,
			RoleFilter: cfg.Sync.CustomerFilter,
			LastOnly:   cfg.Sync.LastOnly,
		})
	} else {
		synchronizer, err = chatsync.NewCustomerSync(chatsync.CustomerSyncParams{
			API:      apiClient,
			Inbox:    inbox,
			Notifier: notifier,
			Logger:   logg,
			SelfID:   self.UserID,
			AdminID:  cfg.ChatAPI.AdminUserID,
			LastOnly: cfg.Sync.LastOnly,
		})
	}
	if err != nil {
		logg.Error(ctx, "failed to build synchronizer", err)
		os.Exit(1)
	}

	service, err := chatsync.NewService(chatsync.ServiceParams{
		Logger:   logg,
		Metrics:  syncMetrics,
		Sync:     synchronizer,
		Interval: cfg.Sync.PollInterval,
	})
	if err != nil {
		logg.Error(ctx, "failed to build sync service", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: routes.NewRouter(cfg, logg, synchronizer, registry),
	}
	go func() {
		logg.Info(logg.WithField(ctx, "addr", cfg.Server.Addr), "starting ops server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "ops server stopped unexpectedly", err)
			stop()
		}
	}()

	logg.Info(ctx, "starting chat synchronizer")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "chat synchronizer stopped unexpectedly", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(ctx, "ops server shutdown failed", err)
	}
	logg.Info(ctx, "sync daemon shut down gracefully")
}

func buildIdentityStore(ctx context.Context, cfg *config.Config, shape string) (identity.Store, *pkgredis.Client, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Identity.Store)) {
	case config.IdentityStoreRedis:
		client, err := pkgredis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		store, err := identity.NewRedisStore(client, shape)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return store, client, nil
	case config.IdentityStoreSQLite:
		store, err := identity.NewSQLiteStore(cfg.Identity.SQLitePath, shape)
		return store, nil, err
	default:
		return identity.NewMemoryStore(), nil, nil
	}
}
