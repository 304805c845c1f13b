package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	discordadapter "github.com/ericfisherdev/opscenter/internal/adapter/driven/discord"
	"github.com/ericfisherdev/opscenter/internal/adapter/driven/identity"
	"github.com/ericfisherdev/opscenter/internal/adapter/driven/mcquery"
	"github.com/ericfisherdev/opscenter/internal/adapter/driven/pterodactyl"
	"github.com/ericfisherdev/opscenter/internal/adapter/driven/redisstore"
	sqliteadapter "github.com/ericfisherdev/opscenter/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/opscenter/internal/adapter/driving/http"
	"github.com/ericfisherdev/opscenter/internal/application"
	"github.com/ericfisherdev/opscenter/internal/config"
	"github.com/ericfisherdev/opscenter/internal/domain/port/driven"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	logger.Info("config loaded", "config", cfg.String())

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()
	logger.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	logger.Info("migrations complete")

	// 5. Wire storage adapters.
	credentialStore := sqliteadapter.NewCredentialRepo(db)

	maintenanceStore, closeState, err := openMaintenanceStore(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer closeState()

	// 6. Wire remote adapters.
	verifier, err := identity.NewVerifier(identity.Config{
		Issuer:       cfg.Identity.Issuer,
		Audience:     cfg.Identity.Audience,
		HMACSecret:   []byte(cfg.Identity.HMACSecret),
		PublicKeyPEM: []byte(cfg.Identity.PublicKeyPEM),
		Leeway:       cfg.Identity.Leeway,
	})
	if err != nil {
		return fmt.Errorf("identity verifier: %w", err)
	}

	probe := mcquery.NewProber(cfg.Query.Host, cfg.Query.Port, cfg.Query.Timeout)

	var notifier driven.Notifier
	if cfg.HasDiscord() {
		notifier = discordadapter.NewNotifier(cfg.Discord.BotToken, cfg.Discord.ChannelID)
	} else {
		logger.Info("no discord channel configured, announcement endpoints disabled")
	}

	// 7. Create application services.
	vault, err := application.NewCredentialVault(credentialStore, cfg.MasterKey, application.WithCacheTTL(cfg.KeyCacheTTL))
	if err != nil {
		return err
	}
	clients := application.NewControlClientProvider(vault, pterodactyl.NewFactory(cfg.PteroURL))
	maintenanceSvc := application.NewMaintenanceService(maintenanceStore, cfg.PteroServerID, logger)
	statusSvc := application.NewStatusService(probe, cfg.PteroServerID, logger)

	// 8. Create HTTP handler.
	apiHandler := httphandler.NewHandler(httphandler.Deps{
		Identity:    verifier,
		Vault:       vault,
		Clients:     clients,
		Maintenance: maintenanceSvc,
		Status:      statusSvc,
		Notifier:    notifier,
		ServerID:    cfg.PteroServerID,
		CORSOrigins: cfg.CORSOrigins,
	}, logger)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.NewServeMux(apiHandler, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	logger.Info("opscenter started",
		"listen_addr", cfg.ListenAddr,
		"state_backend", cfg.StateBackend,
		"server_id", cfg.PteroServerID,
	)

	// 9. Wait for shutdown signal or server failure.
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	// 10. Graceful shutdown; in-flight sagas get the drain window to finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// openMaintenanceStore selects the maintenance state backend. The returned
// close function is always safe to call.
func openMaintenanceStore(ctx context.Context, cfg *config.Config, db *sqliteadapter.DB) (driven.MaintenanceStore, func(), error) {
	if cfg.StateBackend != config.BackendRedis {
		return sqliteadapter.NewMaintenanceRepo(db), func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
	}
	slog.Info("redis state backend connected", "addr", cfg.Redis.Addr, "key", cfg.Redis.Key)

	closeFn := func() {
		if err := rdb.Close(); err != nil {
			slog.Error("error closing redis", "error", err)
		}
	}
	return redisstore.NewMaintenanceRepo(rdb, cfg.Redis.Key), closeFn, nil
}
