package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"github.com/reliefmap/backend/internal/domain/entities"
	"github.com/reliefmap/backend/internal/domain/repositories"
	"github.com/reliefmap/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/reliefmap/backend/pkg/errors"
)

var batchColumns = []interface{}{
	"id", "file_name", "total_records", "success_count", "error_count",
	"skip_count", "errors", "status", "started_at", "completed_at",
}

// ImportBatchAdapter implements the ImportBatchRepository interface
type ImportBatchAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewImportBatchAdapter creates a new import batch adapter
func NewImportBatchAdapter(client *postgres.Client) repositories.ImportBatchRepository {
	return &ImportBatchAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create opens a batch ledger row before any record writes happen.
func (a *ImportBatchAdapter) Create(ctx context.Context, batch *entities.ImportBatch) error {
	query, args, err := a.db.Insert("import_batches").Rows(goqu.Record{
		"id":            batch.ID,
		"file_name":     batch.FileName,
		"total_records": batch.TotalRecords,
		"status":        batch.Status,
		"started_at":    batch.StartedAt,
	}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create import batch", err)
	}
	return nil
}

// Finalize writes the batch counters, captured errors and completion time.
func (a *ImportBatchAdapter) Finalize(ctx context.Context, batch *entities.ImportBatch) error {
	errorsJSON, err := json.Marshal(batch.Errors)
	if err != nil {
		return apperrors.NewInternalError("failed to encode batch errors", err)
	}

	query, args, err := a.db.Update("import_batches").Set(goqu.Record{
		"success_count": batch.SuccessCount,
		"error_count":   batch.ErrorCount,
		"skip_count":    batch.SkipCount,
		"errors":        errorsJSON,
		"status":        batch.Status,
		"completed_at":  nullTime(batch.CompletedAt),
	}).Where(goqu.Ex{"id": batch.ID}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to finalize import batch", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("import batch %s not found", batch.ID))
	}
	return nil
}

// GetByID retrieves one batch with its error details.
func (a *ImportBatchAdapter) GetByID(ctx context.Context, id string) (*entities.ImportBatch, error) {
	query, args, err := a.db.Select(batchColumns...).From("import_batches").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	batch, err := scanBatch(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("import batch %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get import batch", err)
	}
	return batch, nil
}

// List retrieves batches newest first.
func (a *ImportBatchAdapter) List(ctx context.Context, limit, offset int) ([]*entities.ImportBatch, error) {
	ds := a.db.Select(batchColumns...).From("import_batches").
		Order(goqu.I("started_at").Desc())
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}
	if offset > 0 {
		ds = ds.Offset(uint(offset))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query import batches", err)
	}
	defer rows.Close()

	batches := []*entities.ImportBatch{}
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan import batch", err)
		}
		batches = append(batches, batch)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("error iterating import batches", err)
	}
	return batches, nil
}

func scanBatch(row rowScanner) (*entities.ImportBatch, error) {
	batch := &entities.ImportBatch{}
	var errorsJSON []byte
	var completedAt sql.NullTime

	err := row.Scan(
		&batch.ID,
		&batch.FileName,
		&batch.TotalRecords,
		&batch.SuccessCount,
		&batch.ErrorCount,
		&batch.SkipCount,
		&errorsJSON,
		&batch.Status,
		&batch.StartedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		t := completedAt.Time
		batch.CompletedAt = &t
	}
	if len(errorsJSON) > 0 {
		if err := json.Unmarshal(errorsJSON, &batch.Errors); err != nil {
			return nil, err
		}
	}
	return batch, nil
}
