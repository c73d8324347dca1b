package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/reliefmap/backend/internal/domain/entities"
	"github.com/reliefmap/backend/internal/domain/repositories"
	"github.com/reliefmap/backend/internal/infrastructure/observability"
	"github.com/reliefmap/backend/pkg/ratelimit"
	"github.com/reliefmap/backend/pkg/retry"
)

const defaultChunkSize = 50

// ImportOptions controls one import run.
type ImportOptions struct {
	FilePath  string
	DryRun    bool
	Limit     int
	ChunkSize int
}

// ImportSummary reports the outcome of one run.
type ImportSummary struct {
	BatchID      string                 `json:"batch_id,omitempty"`
	TotalRecords int                    `json:"total_records"`
	Created      int                    `json:"created"`
	Updated      int                    `json:"updated"`
	Unchanged    int                    `json:"unchanged"`
	Duplicates   int                    `json:"duplicates"`
	Unusable     int                    `json:"unusable"`
	Errors       []entities.ImportError `json:"errors,omitempty"`
}

// SkipCount returns the number of records that produced no write.
func (s *ImportSummary) SkipCount() int {
	return s.Unchanged + s.Duplicates + s.Unusable
}

// ImportService runs the bulk import pipeline: load, classify, write in
// paced chunks, finalize the batch ledger. Record-level problems never abort
// the run; only a missing or unparsable input file does.
type ImportService struct {
	clinics         repositories.ClinicRepository
	batches         repositories.ImportBatchRepository
	classifier      *Classifier
	limiter         *ratelimit.Limiter
	lookupBatchSize int
	metrics         *observability.Metrics
}

// NewImportService creates an import service. The limiter paces chunk writes
// against downstream capacity; it is shared state owned by the caller.
// metrics may be nil when no meter provider is configured.
func NewImportService(
	clinics repositories.ClinicRepository,
	batches repositories.ImportBatchRepository,
	classifier *Classifier,
	limiter *ratelimit.Limiter,
	lookupBatchSize int,
	metrics *observability.Metrics,
) *ImportService {
	if lookupBatchSize <= 0 {
		lookupBatchSize = 500
	}
	return &ImportService{
		clinics:         clinics,
		batches:         batches,
		classifier:      classifier,
		limiter:         limiter,
		lookupBatchSize: lookupBatchSize,
		metrics:         metrics,
	}
}

// Run executes one import. The returned error is non-nil only for fatal
// conditions: unreadable input, invalid JSON, or a ledger write failure.
func (s *ImportService) Run(ctx context.Context, opts ImportOptions) (*ImportSummary, error) {
	ctx, span := observability.StartSpan(ctx, "import.run")
	defer span.End()
	logger := observability.LoggerFromContext(ctx)

	records, err := loadSourceRecords(opts.FilePath)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	if opts.Limit > 0 && opts.Limit < len(records) {
		records = records[:opts.Limit]
	}

	observability.SetSpanAttributes(span,
		attribute.String("import.file", opts.FilePath),
		attribute.Int("import.records", len(records)),
		attribute.Bool("import.dry_run", opts.DryRun),
	)

	existing, err := s.lookupExisting(ctx, records)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	result := s.classifier.Classify(records, existing)
	summary := &ImportSummary{
		TotalRecords: result.Total(),
		Unchanged:    len(result.Unchanged),
		Duplicates:   len(result.Duplicates),
		Unusable:     len(result.Unusable),
	}

	logger.Info().
		Int("total", summary.TotalRecords).
		Int("new", len(result.New)).
		Int("updates", len(result.Updates)).
		Int("duplicates", summary.Duplicates).
		Int("unusable", summary.Unusable).
		Int("unchanged", summary.Unchanged).
		Msg("batch classified")
	s.countProcessed(ctx, summary.TotalRecords)

	if opts.DryRun {
		s.logDryRun(ctx, result)
		summary.Created = len(result.New)
		summary.Updated = len(result.Updates)
		return summary, nil
	}

	batch := &entities.ImportBatch{
		ID:           uuid.NewString(),
		FileName:     filepath.Base(opts.FilePath),
		TotalRecords: summary.TotalRecords,
		Status:       entities.BatchStatusProcessing,
		StartedAt:    time.Now(),
	}
	if err := s.batches.Create(ctx, batch); err != nil {
		observability.RecordError(span, err)
		return nil, fmt.Errorf("failed to create import batch: %w", err)
	}
	summary.BatchID = batch.ID

	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}

	s.insertNewClinics(ctx, batch, result.New, chunkSize, summary)
	s.applyUpdates(ctx, result.Updates, chunkSize, summary)

	completedAt := time.Now()
	batch.SuccessCount = summary.Created + summary.Updated
	batch.ErrorCount = len(summary.Errors)
	batch.SkipCount = summary.SkipCount()
	batch.Errors = summary.Errors
	batch.Status = entities.BatchStatusCompleted
	batch.CompletedAt = &completedAt
	if err := s.batches.Finalize(ctx, batch); err != nil {
		observability.RecordError(span, err)
		return summary, fmt.Errorf("failed to finalize import batch: %w", err)
	}

	logger.Info().
		Str("batch_id", batch.ID).
		Int("created", summary.Created).
		Int("updated", summary.Updated).
		Int("skipped", batch.SkipCount).
		Int("errors", batch.ErrorCount).
		Msg("import completed")

	return summary, nil
}

// insertNewClinics writes the NEW partition in paced chunks. A failed bulk
// insert degrades to per-record inserts so errors attribute to records.
func (s *ImportService) insertNewClinics(ctx context.Context, batch *entities.ImportBatch, clinics []*entities.Clinic, chunkSize int, summary *ImportSummary) {
	logger := observability.LoggerFromContext(ctx)
	now := time.Now()

	for _, clinic := range clinics {
		clinic.ID = uuid.NewString()
		clinic.ImportBatchID = batch.ID
		clinic.ImportedAt = now
		clinic.CreatedAt = now
		clinic.UpdatedAt = now
	}

	for start := 0; start < len(clinics); start += chunkSize {
		end := start + chunkSize
		if end > len(clinics) {
			end = len(clinics)
		}
		chunk := clinics[start:end]

		if err := s.limiter.Wait(ctx); err != nil {
			s.recordChunkFailure(ctx, chunk, err, summary)
			continue
		}

		chunkStart := time.Now()
		chunkCtx, chunkSpan := observability.StartSpan(ctx, "import.chunk.insert")
		inserted, err := s.clinics.BulkInsert(chunkCtx, chunk)
		if err == nil {
			summary.Created += inserted
			s.observeChunk(chunkCtx, chunkStart)
			chunkSpan.End()
			continue
		}

		logger.Warn().Err(err).Int("chunk_size", len(chunk)).
			Msg("bulk insert failed, retrying records individually")

		for _, clinic := range chunk {
			writeErr := retry.Do(chunkCtx, retry.WriteConfig(), func() error {
				return s.clinics.Create(chunkCtx, clinic)
			})
			if writeErr != nil {
				summary.Errors = append(summary.Errors, entities.ImportError{
					PlaceID: clinic.PlaceID,
					Name:    clinic.Name,
					Message: writeErr.Error(),
				})
				s.countWriteErrors(chunkCtx, 1)
				continue
			}
			summary.Created++
		}
		s.observeChunk(chunkCtx, chunkStart)
		observability.RecordError(chunkSpan, err)
		chunkSpan.End()
	}
}

// applyUpdates writes gap-fill patches one record at a time within paced
// chunks, stamping the import-update audit timestamp on every patch. The
// first-import timestamp is set once at insertion and never overwritten.
func (s *ImportService) applyUpdates(ctx context.Context, updates []ClinicUpdate, chunkSize int, summary *ImportSummary) {
	for start := 0; start < len(updates); start += chunkSize {
		end := start + chunkSize
		if end > len(updates) {
			end = len(updates)
		}
		chunk := updates[start:end]

		if err := s.limiter.Wait(ctx); err != nil {
			for _, update := range chunk {
				summary.Errors = append(summary.Errors, entities.ImportError{
					PlaceID: update.PlaceID,
					Name:    update.Name,
					Message: err.Error(),
				})
			}
			s.countWriteErrors(ctx, len(chunk))
			continue
		}

		chunkStart := time.Now()
		chunkCtx, chunkSpan := observability.StartSpan(ctx, "import.chunk.update")
		for _, update := range chunk {
			patch := make(map[string]interface{}, len(update.Patch)+1)
			for column, value := range update.Patch {
				patch[column] = value
			}
			patch["import_updated_at"] = time.Now()

			writeErr := retry.Do(chunkCtx, retry.WriteConfig(), func() error {
				return s.clinics.ApplyPatch(chunkCtx, update.ClinicID, patch)
			})
			if writeErr != nil {
				summary.Errors = append(summary.Errors, entities.ImportError{
					PlaceID: update.PlaceID,
					Name:    update.Name,
					Message: writeErr.Error(),
				})
				s.countWriteErrors(chunkCtx, 1)
				continue
			}
			summary.Updated++
		}
		s.observeChunk(chunkCtx, chunkStart)
		chunkSpan.End()
	}
}

func (s *ImportService) recordChunkFailure(ctx context.Context, chunk []*entities.Clinic, err error, summary *ImportSummary) {
	for _, clinic := range chunk {
		summary.Errors = append(summary.Errors, entities.ImportError{
			PlaceID: clinic.PlaceID,
			Name:    clinic.Name,
			Message: err.Error(),
		})
	}
	s.countWriteErrors(ctx, len(chunk))
}

func (s *ImportService) countProcessed(ctx context.Context, n int) {
	if s.metrics != nil && n > 0 {
		s.metrics.RecordsProcessed.Add(ctx, int64(n))
	}
}

func (s *ImportService) countWriteErrors(ctx context.Context, n int) {
	if s.metrics != nil && n > 0 {
		s.metrics.WriteErrors.Add(ctx, int64(n))
	}
}

func (s *ImportService) observeChunk(ctx context.Context, started time.Time) {
	if s.metrics != nil {
		s.metrics.ChunkDuration.Record(ctx, time.Since(started).Seconds()*1000)
	}
}

// lookupExisting fetches the stored clinics for every distinct place id in
// the batch, in bounded lookup batches, keyed by place id.
func (s *ImportService) lookupExisting(ctx context.Context, records []entities.SourceRecord) (map[string]*entities.Clinic, error) {
	seen := make(map[string]struct{}, len(records))
	placeIDs := make([]string, 0, len(records))
	for i := range records {
		placeID := strings.TrimSpace(records[i].PlaceID)
		if placeID == "" {
			continue
		}
		if _, dup := seen[placeID]; dup {
			continue
		}
		seen[placeID] = struct{}{}
		placeIDs = append(placeIDs, placeID)
	}

	existing := make(map[string]*entities.Clinic, len(placeIDs))
	for start := 0; start < len(placeIDs); start += s.lookupBatchSize {
		end := start + s.lookupBatchSize
		if end > len(placeIDs) {
			end = len(placeIDs)
		}

		queryStart := time.Now()
		clinics, err := s.clinics.GetByPlaceIDs(ctx, placeIDs[start:end])
		if s.metrics != nil {
			s.metrics.DBQueryDuration.Record(ctx, time.Since(queryStart).Seconds()*1000)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to look up existing clinics: %w", err)
		}
		for _, clinic := range clinics {
			existing[clinic.PlaceID] = clinic
		}
	}
	return existing, nil
}

func (s *ImportService) logDryRun(ctx context.Context, result *ClassificationResult) {
	logger := observability.LoggerFromContext(ctx)
	for _, clinic := range result.New {
		logger.Info().Str("place_id", clinic.PlaceID).Str("name", clinic.Name).
			Msg("dry run: would create")
	}
	for _, update := range result.Updates {
		columns := make([]string, 0, len(update.Patch))
		for column := range update.Patch {
			columns = append(columns, column)
		}
		sort.Strings(columns)
		logger.Info().Str("place_id", update.PlaceID).Str("name", update.Name).
			Strs("fields", columns).
			Msg("dry run: would update")
	}
}

// loadSourceRecords reads the whole input file into memory. Both failure
// modes here are fatal for the run.
func loadSourceRecords(path string) ([]entities.SourceRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file %s: %w", path, err)
	}

	var records []entities.SourceRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse input file %s: %w", path, err)
	}
	return records, nil
}
