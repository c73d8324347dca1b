package main

import (
	"context"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/reliefmap/backend/internal/infrastructure/clients/postgres"
	"github.com/reliefmap/backend/internal/infrastructure/observability"
	"github.com/reliefmap/backend/pkg/config"
)

// Schema bootstrap for a fresh database. Statements are idempotent so the
// script is safe to re-run.
var statements = []string{
	`CREATE TABLE IF NOT EXISTS clinics (
		id UUID PRIMARY KEY,
		place_id TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		slug TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		category TEXT,
		tags TEXT[] NOT NULL DEFAULT '{}',
		street TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL DEFAULT '',
		state_abbr TEXT NOT NULL DEFAULT '',
		postal_code TEXT NOT NULL DEFAULT '',
		country TEXT NOT NULL DEFAULT '',
		latitude DOUBLE PRECISION NOT NULL DEFAULT 0,
		longitude DOUBLE PRECISION NOT NULL DEFAULT 0,
		timezone TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		phones TEXT[] NOT NULL DEFAULT '{}',
		website TEXT NOT NULL DEFAULT '',
		emails TEXT[] NOT NULL DEFAULT '{}',
		facebook TEXT NOT NULL DEFAULT '',
		instagram TEXT NOT NULL DEFAULT '',
		twitter TEXT NOT NULL DEFAULT '',
		linkedin TEXT NOT NULL DEFAULT '',
		youtube TEXT NOT NULL DEFAULT '',
		rating DOUBLE PRECISION NOT NULL DEFAULT 0,
		review_count INTEGER NOT NULL DEFAULT 0,
		featured_reviews JSONB NOT NULL DEFAULT '[]',
		hours JSONB NOT NULL DEFAULT '[]',
		amenities TEXT[] NOT NULL DEFAULT '{}',
		images TEXT[] NOT NULL DEFAULT '{}',
		import_batch_id UUID,
		imported_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		import_updated_at TIMESTAMPTZ,
		is_active BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_clinics_slug ON clinics (slug)`,
	`CREATE INDEX IF NOT EXISTS idx_clinics_state_city ON clinics (state_abbr, city)`,
	`CREATE INDEX IF NOT EXISTS idx_clinics_import_batch ON clinics (import_batch_id)`,
	`CREATE TABLE IF NOT EXISTS import_batches (
		id UUID PRIMARY KEY,
		file_name TEXT NOT NULL,
		total_records INTEGER NOT NULL DEFAULT 0,
		success_count INTEGER NOT NULL DEFAULT 0,
		error_count INTEGER NOT NULL DEFAULT 0,
		skip_count INTEGER NOT NULL DEFAULT 0,
		errors JSONB NOT NULL DEFAULT '[]',
		status TEXT NOT NULL,
		started_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		completed_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_import_batches_started ON import_batches (started_at DESC)`,
}

func main() {
	observability.InitLogger("clinic-directory-migrate", os.Getenv("APP_ENV"))

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pgClient.Close()

	ctx := context.Background()
	for _, stmt := range statements {
		if _, err := pgClient.DB().ExecContext(ctx, stmt); err != nil {
			log.Fatal().Err(err).Msg("Migration statement failed")
		}
	}

	log.Info().Msg("Schema is up to date")
}
