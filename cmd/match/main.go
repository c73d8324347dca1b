package main

import (
	"encoding/json"
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/reliefmap/backend/internal/application/services"
	"github.com/reliefmap/backend/internal/domain/entities"
	"github.com/reliefmap/backend/internal/infrastructure/observability"
)

// matchOutput is the report written for operator review.
type matchOutput struct {
	GeneratedAt time.Time              `json:"generated_at"`
	Stats       services.MatchStats    `json:"stats"`
	Matches     []entities.ClinicMatch `json:"matches"`
}

func main() {
	var clinicsPath string
	var registryPath string
	var outputPath string
	var nameThreshold int
	var addressThreshold int

	flag.StringVar(&clinicsPath, "clinics", "", "Path to the exported clinics JSON file")
	flag.StringVar(&registryPath, "registry", "", "Path to the filtered NPI registry CSV")
	flag.StringVar(&outputPath, "output", "matches.json", "Path for the match report")
	flag.IntVar(&nameThreshold, "name-threshold", services.DefaultNameMatchThreshold, "Minimum fuzzy name score (0-100)")
	flag.IntVar(&addressThreshold, "address-threshold", services.DefaultAddressMatchThreshold, "Minimum fuzzy address score (0-100)")
	flag.Parse()

	observability.InitLogger("clinic-directory-match", os.Getenv("APP_ENV"))

	if clinicsPath == "" || registryPath == "" {
		log.Fatal().Msg("--clinics and --registry are required")
	}

	clinics, err := loadClinics(clinicsPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load clinics")
	}

	registry, err := services.LoadRegistryCSV(registryPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load registry")
	}
	log.Info().Int("clinics", len(clinics)).Int("registry_records", len(registry)).Msg("Loaded inputs")

	matcher := services.NewRegistryMatchingService(nameThreshold, addressThreshold)
	matches, stats := matcher.Match(clinics, registry)

	report := matchOutput{
		GeneratedAt: time.Now(),
		Stats:       stats,
		Matches:     matches,
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to encode match report")
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		log.Fatal().Err(err).Str("output", outputPath).Msg("Failed to write match report")
	}

	log.Info().
		Int("matched_phone", stats.Phone).
		Int("matched_name", stats.Name).
		Int("matched_address", stats.Address).
		Int("unmatched", stats.Unmatched).
		Str("output", outputPath).
		Msg("Matching complete")
}

func loadClinics(path string) ([]*entities.Clinic, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var clinics []*entities.Clinic
	if err := json.Unmarshal(data, &clinics); err != nil {
		return nil, err
	}
	return clinics, nil
}
