package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"evidencer/internal/audit"
	"evidencer/internal/brave"
	"evidencer/internal/cache"
	"evidencer/internal/config"
	"evidencer/internal/db"
	"evidencer/internal/gcse"
	"evidencer/internal/httpapi"
	"evidencer/internal/pipeline"
	"evidencer/internal/policy"
	"evidencer/internal/registry"
	"evidencer/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	pol, err := policy.Load(cfg.PolicyPath)
	if err != nil {
		log.Fatalf("load policy: %v", err)
	}

	reg, err := registry.Load(cfg.RegistryPath)
	if err != nil {
		log.Fatalf("load registry: %v", err)
	}

	cacheStore, err := cache.Open(cfg.CachePath, cfg.CacheTTL)
	if err != nil {
		log.Printf("warn: query cache unavailable, starting cold: %v", err)
	}

	auditLog := audit.NewLogger(cfg.AuditLogPath, cfg.AuditMaxBytes, cfg.AuditMaxAge)

	ctx := context.Background()

	var fetcher pipeline.Fetcher
	switch cfg.SearchProvider {
	case "google":
		client, err := gcse.NewClient(ctx, cfg)
		if err != nil {
			log.Fatalf("init google cse fetcher: %v", err)
		}
		fetcher = client
	default:
		fetcher = brave.NewClient(cfg, nil)
	}

	var reader pipeline.Reader
	if cfg.EnrichContent {
		reader = pipeline.NewHTTPReader(pipeline.ReaderConfig{
			RequestTimeout: cfg.RequestTimeout,
			UserAgent:      cfg.UserAgent,
		}, nil)
	}

	collector := pipeline.NewCollector(fetcher, cacheStore, reg, pipeline.NewFetchLimiter(cfg.RequestDelay), reader, pipeline.CollectorConfig{
		RequestDelay:   cfg.RequestDelay,
		RequestTimeout: cfg.RequestTimeout,
		MaxRetries:     cfg.MaxRetries,
		UserAgent:      cfg.UserAgent,
		EnrichContent:  cfg.EnrichContent,
	})

	runner := pipeline.New(reg, pol, collector, auditLog)

	var sessions store.Store
	if cfg.DatabaseURL != "" {
		database, err := db.Open(cfg)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		defer database.Close()

		sessions = store.NewStore(database)
		if err := sessions.EnsureSchema(ctx); err != nil {
			log.Fatalf("ensure schema: %v", err)
		}
	}

	handler := httpapi.NewRouter(cfg, runner, sessions)

	srv := &http.Server{
		Addr:         cfg.ListenAddress(),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RunTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("researchd listening on %s", cfg.ListenAddress())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	signalCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-signalCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
