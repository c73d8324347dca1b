package repositories

import (
	"context"

	"github.com/reliefmap/backend/internal/domain/entities"
)

// ClinicSearchParams defines the parameters for searching clinics
type ClinicSearchParams struct {
	Query  string
	State  string
	City   string
	Limit  int
	Offset int
}

// ClinicSearchRepository defines the interface for the clinic search index.
// Indexing is bulk-only; the indexer pages through stored clinics and never
// writes single documents.
type ClinicSearchRepository interface {
	InitSchema(ctx context.Context) error
	BulkIndex(ctx context.Context, clinics []*entities.Clinic) error
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, params ClinicSearchParams) ([]*entities.Clinic, error)
}
