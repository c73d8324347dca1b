package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/reliefmap/backend/internal/adapters/database"
	"github.com/reliefmap/backend/internal/adapters/search"
	"github.com/reliefmap/backend/internal/domain/repositories"
	"github.com/reliefmap/backend/internal/infrastructure/clients/postgres"
	"github.com/reliefmap/backend/internal/infrastructure/clients/typesense"
	"github.com/reliefmap/backend/internal/infrastructure/observability"
	"github.com/reliefmap/backend/pkg/config"
)

const indexPageSize = 500

func main() {
	var reset bool
	var intervalFlag string
	var query string
	var queryState string
	var queryCity string
	flag.BoolVar(&reset, "reset", false, "delete the existing Typesense collection before reindexing")
	flag.StringVar(&intervalFlag, "interval", "", "repeat interval for reindexing (e.g. 6h, 30m)")
	flag.StringVar(&query, "query", "", "search the index and print hits instead of reindexing")
	flag.StringVar(&queryState, "state", "", "state facet for -query")
	flag.StringVar(&queryCity, "city", "", "city facet for -query")
	flag.Parse()

	observability.InitLogger("clinic-directory-indexer", os.Getenv("APP_ENV"))

	if query != "" {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		if err := searchOnce(ctx, query, queryState, queryCity); err != nil {
			log.Error().Err(err).Msg("Search failed")
			os.Exit(1)
		}
		return
	}

	intervalValue := strings.TrimSpace(intervalFlag)
	if intervalValue == "" {
		intervalValue = strings.TrimSpace(os.Getenv("REINDEX_INTERVAL"))
	}

	var interval time.Duration
	var err error
	if intervalValue != "" {
		interval, err = time.ParseDuration(intervalValue)
		if err != nil {
			log.Fatal().Err(err).Str("interval", intervalValue).Msg("Invalid interval")
		}
		if interval <= 0 {
			log.Fatal().Msg("Interval must be greater than zero")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for {
		if err := indexOnce(ctx, reset); err != nil {
			log.Error().Err(err).Msg("Reindex failed")
			if interval <= 0 {
				os.Exit(1)
			}
		}

		if interval <= 0 {
			break
		}

		reset = false
		log.Info().Dur("interval", interval).Msg("Reindex complete, waiting for next run")

		select {
		case <-ctx.Done():
			log.Info().Msg("Reindexer shutting down")
			return
		case <-time.After(interval):
		}
	}
}

func indexOnce(ctx context.Context, reset bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		return err
	}
	defer pgClient.Close()

	clinicRepo := database.NewClinicAdapter(pgClient)

	tsClient, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		return err
	}
	index := search.NewTypesenseAdapter(tsClient)

	if reset || os.Getenv("RESET_TYPESENSE") == "true" {
		log.Info().Msg("Deleting clinics collection before reindex")
		if _, err := tsClient.Client().Collection(typesense.ClinicsCollection).Delete(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to delete collection")
		}
	}

	if err := index.InitSchema(ctx); err != nil {
		return err
	}

	indexed := 0
	for offset := 0; ; offset += indexPageSize {
		clinics, err := clinicRepo.List(ctx, repositories.ClinicFilter{
			Limit:  indexPageSize,
			Offset: offset,
		})
		if err != nil {
			return err
		}
		if len(clinics) == 0 {
			break
		}

		if err := index.BulkIndex(ctx, clinics); err != nil {
			return err
		}
		indexed += len(clinics)
		log.Info().Int("indexed", indexed).Msg("Indexed clinic page")

		if len(clinics) < indexPageSize {
			break
		}
	}

	log.Info().Int("total", indexed).Msg("Indexing complete")
	return nil
}

// searchOnce runs one query against the index and prints the hits. Meant as
// an operator spot-check after a reindex.
func searchOnce(ctx context.Context, query, state, city string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	tsClient, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		return err
	}
	index := search.NewTypesenseAdapter(tsClient)

	clinics, err := index.Search(ctx, repositories.ClinicSearchParams{
		Query: query,
		State: state,
		City:  city,
		Limit: 20,
	})
	if err != nil {
		return err
	}

	for _, clinic := range clinics {
		fmt.Printf("%s  %-40s  %s, %s\n", clinic.ID, clinic.Name, clinic.Address.City, clinic.Address.StateAbbr)
	}
	log.Info().Int("hits", len(clinics)).Str("query", query).Msg("Search complete")
	return nil
}
