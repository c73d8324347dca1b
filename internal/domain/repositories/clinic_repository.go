package repositories

import (
	"context"

	"github.com/reliefmap/backend/internal/domain/entities"
)

// ClinicFilter filters clinic listings. BatchID restricts the listing to the
// clinics created by one import batch.
type ClinicFilter struct {
	State    string
	City     string
	BatchID  string
	IsActive *bool
	Limit    int
	Offset   int
}

// ClinicRepository defines the interface for clinic persistence.
type ClinicRepository interface {
	Create(ctx context.Context, clinic *entities.Clinic) error
	GetByID(ctx context.Context, id string) (*entities.Clinic, error)
	GetByPlaceID(ctx context.Context, placeID string) (*entities.Clinic, error)

	// GetByPlaceIDs returns the stored clinics for the given place ids.
	// Missing ids are simply absent from the result, not errors.
	GetByPlaceIDs(ctx context.Context, placeIDs []string) ([]*entities.Clinic, error)

	// BulkInsert inserts clinics in one statement. A clinic whose place id
	// already exists is silently skipped. Returns the number of rows written.
	BulkInsert(ctx context.Context, clinics []*entities.Clinic) (int, error)

	// ApplyPatch writes the given field→value map to one clinic row.
	// Keys are column names; the adapter owns value encoding.
	ApplyPatch(ctx context.Context, id string, patch map[string]interface{}) error

	List(ctx context.Context, filter ClinicFilter) ([]*entities.Clinic, error)

	// DeleteByBatchID removes every clinic created by the given import batch
	// and returns the number of rows deleted. Used for batch rollback.
	DeleteByBatchID(ctx context.Context, batchID string) (int64, error)
}
