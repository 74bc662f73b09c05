package main

import (
	"context"
	"os"

	"github.com/rs/zerolog/log"
	"stealthcompany.com/holdmed/internal/config"
	"stealthcompany.com/holdmed/internal/couchbase"
	"stealthcompany.com/holdmed/internal/fhir"
	"stealthcompany.com/holdmed/internal/metrics"
	"stealthcompany.com/holdmed/internal/orchestrator"
	"stealthcompany.com/holdmed/pkg/zerolog_config"
)

func main() {
	config.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	zerolog_config.SetAppPrefix(cfg.AppName + "-ingest")
	if err := zerolog_config.StartupWithEnv(cfg.ElasticsearchURL, cfg.LogIndex, cfg.LogLevel); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize logging")
	}

	if cfg.StoreBackend != config.StoreCouchbase {
		log.Info().Str("store", cfg.StoreBackend).Msg("Record store is not Couchbase, nothing to ingest")
		return
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().Str("fhir", cfg.FHIRBaseURL).Msg("Starting holdmed-ingest service")

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

	// Initialize Couchbase connection
	dbClient, err := couchbase.NewClient(couchbase.Config{
		URL:      cfg.CouchbaseURL,
		Username: cfg.CouchbaseUsername,
		Password: cfg.CouchbasePassword,
		Bucket:   cfg.CouchbaseBucket,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Couchbase")
	}
	defer dbClient.Close()

	if err := dbClient.EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to prepare Couchbase indexes")
	}

	ingester := fhir.NewIngester(
		fhir.NewClient(cfg.FHIRBaseURL, cfg.FHIRTimeout),
		dbClient.Patients(),
		dbClient.GetLocker(),
		cfg.FHIRPatientCount,
	)

	res, err := ingester.Run(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to ingest FHIR data")
		dbClient.Close()
		os.Exit(1)
	}

	log.Info().
		Int("fetched", res.Fetched).
		Int("stored", res.Stored).
		Int("failed", res.Failed).
		Msg("FHIR data ingestion completed successfully")
}
