package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"stealthcompany.com/holdmed/internal/api"
	"stealthcompany.com/holdmed/internal/config"
	"stealthcompany.com/holdmed/internal/couchbase"
	"stealthcompany.com/holdmed/internal/dashboard"
	"stealthcompany.com/holdmed/internal/insight"
	"stealthcompany.com/holdmed/internal/metrics"
	"stealthcompany.com/holdmed/internal/orchestrator"
	"stealthcompany.com/holdmed/internal/store"
	"stealthcompany.com/holdmed/pkg/zerolog_config"
)

func main() {
	config.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Set app prefix
	zerolog_config.SetAppPrefix(cfg.AppName + "-api")

	// Initialize zerolog with Elasticsearch
	if err := zerolog_config.StartupWithEnv(cfg.ElasticsearchURL, cfg.LogIndex, cfg.LogLevel); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize logging")
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().Str("store", cfg.StoreBackend).Msg("Starting holdmed-api service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := orchestrator.NewSignalHandler()
	defer signals.Stop()
	signals.HandleSignals(ctx, cancel)

	metrics.Configure(metrics.Options{
		Business: cfg.EnableBusinessMetrics,
		System:   cfg.EnableSystemMetrics,
	})
	metrics.StartSystemMetrics(ctx, cfg.SystemMetricsInterval)

	var records store.Store
	var dbClient *couchbase.Client
	switch cfg.StoreBackend {
	case config.StoreCouchbase:
		dbClient, err = couchbase.NewClient(couchbase.Config{
			URL:      cfg.CouchbaseURL,
			Username: cfg.CouchbaseUsername,
			Password: cfg.CouchbasePassword,
			Bucket:   cfg.CouchbaseBucket,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Couchbase")
		}
		records = dbClient.Patients()
	default:
		records = store.NewDemoStore()
	}

	engine := insight.NewEngine(nil)
	sessions := dashboard.NewManager(records, dashboard.NewEngineAssessor(engine, cfg.InsightDelay), dashboard.ManagerOptions{
		InsightTimeout: cfg.InsightTimeout,
		IdleTimeout:    cfg.SessionIdleTimeout,
	})
	go sessions.Run(ctx)

	server := api.NewServer(
		records,
		engine,
		sessions,
		api.NewStaticAuthenticator(cfg.DemoUserEmail, cfg.DemoUserPassword, cfg.DemoUserName),
		api.NewTokenIssuer(cfg.AuthSecret, cfg.AuthTokenTTL),
	)

	// Create HTTP server
	httpServer := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           api.SetupRoutes(server),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("port", cfg.APIPort).
			Msg("Server starting")

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().
				Err(err).
				Msg("Failed to start server")
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	log.Info().Msg("Received shutdown signal, shutting down gracefully...")

	// Shutdown server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}

	log.Info().Msg("Closing dashboard sessions...")
	sessions.Shutdown()

	if dbClient != nil {
		log.Info().Msg("Closing database connection...")
		if err := dbClient.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close database connection")
		}
	}

	log.Info().Msg("API service shutdown complete")
}
