package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/reliefmap/backend/internal/adapters/cache"
	"github.com/reliefmap/backend/internal/adapters/database"
	"github.com/reliefmap/backend/internal/application/services"
	"github.com/reliefmap/backend/internal/domain/repositories"
	"github.com/reliefmap/backend/internal/infrastructure/clients/postgres"
	redisclient "github.com/reliefmap/backend/internal/infrastructure/clients/redis"
	"github.com/reliefmap/backend/internal/infrastructure/observability"
	"github.com/reliefmap/backend/pkg/config"
	"github.com/reliefmap/backend/pkg/ratelimit"
)

func main() {
	var filePath string
	var dryRun bool
	var limit int
	var batchSize int
	var delayMs int

	flag.StringVar(&filePath, "file", "", "Path to the scraped JSON input file")
	flag.BoolVar(&dryRun, "dry-run", false, "Classify and report without writing")
	flag.IntVar(&limit, "limit", 0, "Process only the first N records")
	flag.IntVar(&batchSize, "batch-size", 0, "Records per write chunk (default from IMPORT_CHUNK_SIZE)")
	flag.IntVar(&delayMs, "delay", -1, "Milliseconds between write chunks (default from IMPORT_CHUNK_DELAY)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	observability.InitLogger(cfg.OTEL.ServiceName, os.Getenv("APP_ENV"))

	if filePath == "" {
		log.Fatal().Msg("--file is required")
	}
	if _, err := os.Stat(filePath); err != nil {
		log.Error().Err(err).Str("file", filePath).Msg("Input file is not readable")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metrics *observability.Metrics
	if cfg.OTEL.Enabled {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to set up OpenTelemetry")
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("OpenTelemetry shutdown failed")
			}
		}()

		metrics, err = observability.InitMetrics()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize metrics")
		}
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pgClient.Close()

	var clinicRepo repositories.ClinicRepository = database.NewClinicAdapter(pgClient)
	if cfg.Import.CacheEnabled {
		redisClient, err := redisclient.NewClient(&cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer redisClient.Close()
		clinicRepo = database.NewCachedClinicAdapter(clinicRepo, cache.NewRedisAdapter(redisClient))
	}
	batchRepo := database.NewImportBatchAdapter(pgClient)

	delay := cfg.Import.ChunkDelay
	if delayMs >= 0 {
		delay = time.Duration(delayMs) * time.Millisecond
	}
	chunkSize := cfg.Import.ChunkSize
	if batchSize > 0 {
		chunkSize = batchSize
	}

	normalizer := services.NewRecordNormalizer(cfg.Import.FeaturedReviews)
	classifier := services.NewClassifier(normalizer)
	limiter := ratelimit.NewLimiter(delay)
	importService := services.NewImportService(clinicRepo, batchRepo, classifier, limiter, cfg.Import.LookupBatchSize, metrics)

	start := time.Now()
	summary, err := importService.Run(ctx, services.ImportOptions{
		FilePath:  filePath,
		DryRun:    dryRun,
		Limit:     limit,
		ChunkSize: chunkSize,
	})
	if err != nil {
		log.Error().Err(err).Msg("Import failed")
		os.Exit(1)
	}

	log.Info().
		Str("batch_id", summary.BatchID).
		Int("total", summary.TotalRecords).
		Int("created", summary.Created).
		Int("updated", summary.Updated).
		Int("unchanged", summary.Unchanged).
		Int("duplicates", summary.Duplicates).
		Int("unusable", summary.Unusable).
		Int("errors", len(summary.Errors)).
		Dur("elapsed", time.Since(start)).
		Msg("Import finished")

	if len(summary.Errors) > 0 {
		os.Exit(1)
	}
}
