package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"passiflora/internal/server/api"
	"passiflora/internal/server/auth"
	"passiflora/internal/server/config"
	"passiflora/internal/server/database"
	"passiflora/internal/server/service"
	"passiflora/internal/server/storage"
)

type fileRepository interface {
	service.FileStore
	storage.PlaceholderLister
}

// metadata bundles the repositories of whichever store was selected.
type metadata struct {
	users  service.UserStore
	files  fileRepository
	health api.HealthChecker
	close  func()
}

func openMetadata(ctx context.Context, cfg *config.Config) (*metadata, error) {
	if database.IsMemoryDSN(cfg.DatabaseURL) {
		slog.Warn("using in-memory metadata store; data is lost on exit")
		mem := database.NewMemoryStore()
		return &metadata{
			users:  mem.Users(),
			files:  mem.Files(),
			health: mem,
			close:  func() {},
		}, nil
	}

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(ctx); err != nil {
		db.Close()
		return nil, err
	}
	slog.Info("database migrations complete")

	return &metadata{
		users:  database.NewUserRepository(db.SQL),
		files:  database.NewFileRepository(db.SQL),
		health: db,
		close:  db.Close,
	}, nil
}

func main() {
	// Structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load config
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	slog.Info("configuration loaded",
		"env", cfg.Env,
		"addr", cfg.Addr(),
		"data_dir", cfg.DataDir,
		"allow_registration", cfg.AllowRegistration,
		"max_upload_size", cfg.MaxUploadSize,
	)
	if cfg.JWTSecret == "" {
		slog.Warn("no signing secret configured, using the insecure development default",
			"env_var", config.JWTSecretEnv,
		)
	}

	// Connect to the metadata store
	ctx := context.Background()
	meta, err := openMetadata(ctx, cfg)
	if err != nil {
		slog.Error("failed to open metadata store", "error", err)
		os.Exit(1)
	}
	defer meta.close()

	// Initialize storage
	store := storage.NewFileSystemStore(cfg.DataDir)
	if err := store.EnsureDir(); err != nil {
		slog.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	slog.Info("file storage initialized", "path", cfg.DataDir)

	// Initialize services
	tokens := auth.NewTokenService(auth.EnvSecret(config.JWTSecretEnv))
	accounts := service.NewAccountService(meta.users, auth.NewHasher(auth.DefaultParams), tokens)
	files := service.NewFileService(auth.NewGuard(tokens), meta.files, store)

	// Background workers
	bgCtx, bgCancel := context.WithCancel(context.Background())
	reconciler := storage.NewReconciler(meta.files, store, cfg.ReconcileInterval, cfg.StaleUploadAge)
	reconciler.Start(bgCtx)

	limiter := api.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	limiterDone := make(chan struct{})
	go func() {
		defer close(limiterDone)
		limiter.Run(bgCtx)
	}()

	// Setup HTTP router
	handler := api.NewHandler(accounts, files, meta.health, cfg.MaxUploadSize)
	e := api.SetupRouter(handler, limiter, cfg)

	// Start server in a goroutine
	go func() {
		slog.Info("starting server", "addr", cfg.Addr())
		if err := e.Start(cfg.Addr()); err != nil {
			slog.Info("server stopped", "reason", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutting down", "signal", sig)

	// Stop accepting new requests, finish in-flight with 30s timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	// Stop background workers
	bgCancel()
	reconciler.Wait()
	<-limiterDone

	slog.Info("server exited cleanly")
}
