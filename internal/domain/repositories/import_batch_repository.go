package repositories

import (
	"context"

	"github.com/reliefmap/backend/internal/domain/entities"
)

// ImportBatchRepository defines the interface for the import-run ledger.
type ImportBatchRepository interface {
	// Create writes the batch row at run start with status "processing".
	Create(ctx context.Context, batch *entities.ImportBatch) error

	// Finalize writes the end-of-run counters, error list, status and
	// completion timestamp. Called exactly once per run.
	Finalize(ctx context.Context, batch *entities.ImportBatch) error

	GetByID(ctx context.Context, id string) (*entities.ImportBatch, error)
	List(ctx context.Context, limit, offset int) ([]*entities.ImportBatch, error)
}
