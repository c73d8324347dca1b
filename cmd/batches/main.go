package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/reliefmap/backend/internal/adapters/database"
	"github.com/reliefmap/backend/internal/adapters/search"
	"github.com/reliefmap/backend/internal/domain/entities"
	"github.com/reliefmap/backend/internal/domain/repositories"
	"github.com/reliefmap/backend/internal/infrastructure/clients/postgres"
	"github.com/reliefmap/backend/internal/infrastructure/clients/typesense"
	"github.com/reliefmap/backend/internal/infrastructure/observability"
	"github.com/reliefmap/backend/pkg/config"
)

const usage = `Usage: batches <command> [flags]

Commands:
  list        List import batches, newest first
  show        Show one batch with its captured errors
  rollback    Delete every clinic created by a batch
  export      Export stored clinics as JSON for registry matching
`

func main() {
	observability.InitLogger("clinic-directory-batches", os.Getenv("APP_ENV"))

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pgClient.Close()

	batchRepo := database.NewImportBatchAdapter(pgClient)
	clinicRepo := database.NewClinicAdapter(pgClient)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch os.Args[1] {
	case "list":
		err = runList(ctx, batchRepo, os.Args[2:])
	case "show":
		err = runShow(ctx, batchRepo, os.Args[2:])
	case "rollback":
		err = runRollback(ctx, cfg, batchRepo, clinicRepo, os.Args[2:])
	case "export":
		err = runExport(ctx, clinicRepo, os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	if err != nil {
		log.Error().Err(err).Str("command", os.Args[1]).Msg("Command failed")
		os.Exit(1)
	}
}

func runList(ctx context.Context, batches repositories.ImportBatchRepository, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	limit := fs.Int("limit", 20, "Maximum batches to show")
	offset := fs.Int("offset", 0, "Batches to skip")
	if err := fs.Parse(args); err != nil {
		return err
	}

	list, err := batches.List(ctx, *limit, *offset)
	if err != nil {
		return err
	}

	for _, batch := range list {
		completed := "-"
		if batch.CompletedAt != nil {
			completed = batch.CompletedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Printf("%s  %-12s  %-30s  total=%d ok=%d skip=%d err=%d  completed=%s\n",
			batch.ID, batch.Status, batch.FileName,
			batch.TotalRecords, batch.SuccessCount, batch.SkipCount, batch.ErrorCount,
			completed)
	}
	return nil
}

func runShow(ctx context.Context, batches repositories.ImportBatchRepository, args []string) error {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	id := fs.String("id", "", "Batch id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return fmt.Errorf("--id is required")
	}

	batch, err := batches.GetByID(ctx, *id)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(batch, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

const rollbackPageSize = 500

func runRollback(ctx context.Context, cfg *config.Config, batches repositories.ImportBatchRepository, clinics repositories.ClinicRepository, args []string) error {
	fs := flag.NewFlagSet("rollback", flag.ExitOnError)
	id := fs.String("id", "", "Batch id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return fmt.Errorf("--id is required")
	}

	// Resolve the batch first so a typo cannot silently delete nothing.
	batch, err := batches.GetByID(ctx, *id)
	if err != nil {
		return err
	}

	// Collect the batch's clinic ids before the rows go away; the search
	// index is keyed by clinic id and has to be cleaned up too.
	var clinicIDs []string
	for offset := 0; ; offset += rollbackPageSize {
		page, err := clinics.List(ctx, repositories.ClinicFilter{
			BatchID: batch.ID,
			Limit:   rollbackPageSize,
			Offset:  offset,
		})
		if err != nil {
			return err
		}
		for _, clinic := range page {
			clinicIDs = append(clinicIDs, clinic.ID)
		}
		if len(page) < rollbackPageSize {
			break
		}
	}

	deleted, err := clinics.DeleteByBatchID(ctx, batch.ID)
	if err != nil {
		return err
	}

	removeFromIndex(ctx, cfg, clinicIDs)

	log.Info().Str("batch_id", batch.ID).Int64("deleted", deleted).Msg("Batch rolled back")
	return nil
}

// removeFromIndex drops rolled-back clinics from the search index. The
// indexer only upserts, so rows deleted here would otherwise stay searchable
// until someone runs `indexer -reset`.
func removeFromIndex(ctx context.Context, cfg *config.Config, clinicIDs []string) {
	if len(clinicIDs) == 0 {
		return
	}

	tsClient, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		log.Warn().Err(err).Int("clinics", len(clinicIDs)).
			Msg("Typesense unreachable, rolled-back clinics stay indexed until the next indexer -reset run")
		return
	}
	index := search.NewTypesenseAdapter(tsClient)

	removed := 0
	for _, clinicID := range clinicIDs {
		if err := index.Delete(ctx, clinicID); err != nil {
			log.Warn().Err(err).Str("clinic_id", clinicID).Msg("Failed to remove clinic from search index")
			continue
		}
		removed++
	}
	log.Info().Int("removed", removed).Msg("Rolled-back clinics removed from search index")
}

func runExport(ctx context.Context, clinics repositories.ClinicRepository, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	output := fs.String("output", "clinics.json", "Path for the exported clinics JSON")
	state := fs.String("state", "", "Restrict export to one state abbreviation")
	pageSize := fs.Int("page-size", 500, "Rows fetched per query")
	if err := fs.Parse(args); err != nil {
		return err
	}

	file, err := os.Create(*output)
	if err != nil {
		return err
	}
	defer file.Close()

	all := []*entities.Clinic{}
	for offset := 0; ; offset += *pageSize {
		page, err := clinics.List(ctx, repositories.ClinicFilter{
			State:  *state,
			Limit:  *pageSize,
			Offset: offset,
		})
		if err != nil {
			return err
		}
		if len(page) == 0 {
			break
		}
		all = append(all, page...)
		if len(page) < *pageSize {
			break
		}
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(all); err != nil {
		return err
	}

	log.Info().Int("exported", len(all)).Str("output", *output).Msg("Export complete")
	return nil
}
