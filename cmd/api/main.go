package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/smsbridge/server/internal/auth"
	"github.com/smsbridge/server/internal/config"
	"github.com/smsbridge/server/internal/db"
	"github.com/smsbridge/server/internal/faststore"
	httphandler "github.com/smsbridge/server/internal/http"
	"github.com/smsbridge/server/internal/http/handlers"
	"github.com/smsbridge/server/internal/ingest"
	"github.com/smsbridge/server/internal/onboarding"
	"github.com/smsbridge/server/internal/pipeline"
	"github.com/smsbridge/server/internal/remote"
	"github.com/smsbridge/server/internal/repo"
	"github.com/smsbridge/server/internal/settings"
	"github.com/smsbridge/server/internal/workers"
)

func main() {
	// Load .env from CWD so it works in local development (env vars override)
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	// Open durable store and run migrations
	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	migrationDir, err := resolveMigrationDir()
	if err != nil {
		log.Fatalf("Failed to locate migrations: %v", err)
	}
	if err := db.Migrate(database, migrationDir); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Open fast store. Startup requires it; a mid-flight outage is handled by
	// the power-down fallback, not here.
	store, err := faststore.Open(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to open fast store: %v", err)
	}
	defer store.Close()

	// Initialize repositories
	settingsRepo := repo.NewSettingsRepo(database)
	auditRepo := repo.NewAuditRepo(database)
	onboardingRepo := repo.NewOnboardingRepo(database)
	blacklistRepo := repo.NewBlacklistRepo(database)
	powerDownRepo := repo.NewPowerDownRepo(database)

	// Initialize services
	settingsCache := settings.NewCache(store, settingsRepo, loadCacheTTL(ctx, settingsRepo))
	onboardingService := onboarding.NewService(store, settingsCache, onboardingRepo, cfg.HMACSecret)
	validationPipeline := pipeline.New(store, settingsCache)
	ingestService := ingest.NewService(store, validationPipeline, settingsCache, powerDownRepo)
	remoteClient := remote.NewClient(10 * time.Second)
	jwtService := auth.NewJWTService(cfg.AdminJWTSecret)

	// Background workers
	workerSet := workers.New(store, settingsCache, auditRepo, blacklistRepo, powerDownRepo, ingestService, remoteClient)
	workerCtx, stopWorkers := context.WithCancel(ctx)
	workersDone := make(chan struct{})
	go func() {
		defer close(workersDone)
		if err := workerSet.Run(workerCtx); err != nil && workerCtx.Err() == nil {
			log.Printf("Workers stopped: %v", err)
		}
	}()

	// Warm the blacklist cache and restore counters from a possible previous
	// shutdown before taking traffic.
	if err := workerSet.Recover(ctx); err != nil {
		log.Printf("Startup recovery incomplete: %v", err)
	}

	// Initialize handlers
	onboardHandler := handlers.NewOnboardHandler(onboardingService)
	smsHandler := handlers.NewSMSHandler(ingestService)
	adminHandler := handlers.NewAdminHandler(settingsRepo, blacklistRepo, settingsCache, workerSet)
	healthHandler := handlers.NewHealthHandler(database, store)

	router := httphandler.NewRouter(onboardHandler, smsHandler, adminHandler, healthHandler, jwtService)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	stopWorkers()
	select {
	case <-workersDone:
	case <-shutdownCtx.Done():
		log.Println("Workers did not stop in time")
	}

	log.Println("Server exited")
}

// loadCacheTTL reads the settings_cache_ttl row once at startup. The TTL
// bounds how stale every other setting may be, so it cannot itself come from
// the cache.
func loadCacheTTL(ctx context.Context, settingsRepo repo.SettingsRepo) time.Duration {
	s, err := settingsRepo.Get(ctx, "settings_cache_ttl")
	if err != nil {
		return settings.DefaultTTL
	}
	secs, err := strconv.Atoi(s.Value)
	if err != nil || secs <= 0 {
		return settings.DefaultTTL
	}
	return time.Duration(secs) * time.Second
}

// resolveMigrationDir locates the migrations so the binary works from the
// module root or the repo root.
func resolveMigrationDir() (string, error) {
	for _, dir := range []string{"internal/db/migrations", "server/internal/db/migrations"} {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			abs, _ := filepath.Abs(dir)
			return abs, nil
		}
	}
	return "", fmt.Errorf("migrations directory not found (run from the module root)")
}
