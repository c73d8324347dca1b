package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/reliefmap/backend/internal/domain/entities"
	"github.com/reliefmap/backend/internal/domain/repositories"
	"github.com/reliefmap/backend/internal/infrastructure/observability"
	"github.com/reliefmap/backend/pkg/ratelimit"
)

// fakeClinicRepo is an in-memory ClinicRepository with injectable failures.
type fakeClinicRepo struct {
	byPlaceID map[string]*entities.Clinic
	byID      map[string]*entities.Clinic

	failBulkInsert bool
	failCreateFor  map[string]bool
	failPatchFor   map[string]bool

	createCalls int
	patchCalls  int
	patches     map[string]map[string]interface{}
}

func newFakeClinicRepo() *fakeClinicRepo {
	return &fakeClinicRepo{
		byPlaceID:     map[string]*entities.Clinic{},
		byID:          map[string]*entities.Clinic{},
		failCreateFor: map[string]bool{},
		failPatchFor:  map[string]bool{},
		patches:       map[string]map[string]interface{}{},
	}
}

func (f *fakeClinicRepo) seed(clinic *entities.Clinic) {
	f.byPlaceID[clinic.PlaceID] = clinic
	f.byID[clinic.ID] = clinic
}

func (f *fakeClinicRepo) Create(ctx context.Context, clinic *entities.Clinic) error {
	f.createCalls++
	if f.failCreateFor[clinic.PlaceID] {
		return fmt.Errorf("injected create failure for %s", clinic.PlaceID)
	}
	if _, exists := f.byPlaceID[clinic.PlaceID]; exists {
		return fmt.Errorf("duplicate place id %s", clinic.PlaceID)
	}
	f.seed(clinic)
	return nil
}

func (f *fakeClinicRepo) GetByID(ctx context.Context, id string) (*entities.Clinic, error) {
	clinic, ok := f.byID[id]
	if !ok {
		return nil, fmt.Errorf("clinic %s not found", id)
	}
	return clinic, nil
}

func (f *fakeClinicRepo) GetByPlaceID(ctx context.Context, placeID string) (*entities.Clinic, error) {
	clinic, ok := f.byPlaceID[placeID]
	if !ok {
		return nil, fmt.Errorf("clinic %s not found", placeID)
	}
	return clinic, nil
}

func (f *fakeClinicRepo) GetByPlaceIDs(ctx context.Context, placeIDs []string) ([]*entities.Clinic, error) {
	var found []*entities.Clinic
	for _, placeID := range placeIDs {
		if clinic, ok := f.byPlaceID[placeID]; ok {
			found = append(found, clinic)
		}
	}
	return found, nil
}

func (f *fakeClinicRepo) BulkInsert(ctx context.Context, clinics []*entities.Clinic) (int, error) {
	if f.failBulkInsert {
		return 0, fmt.Errorf("injected bulk insert failure")
	}
	inserted := 0
	for _, clinic := range clinics {
		if _, exists := f.byPlaceID[clinic.PlaceID]; exists {
			continue
		}
		f.seed(clinic)
		inserted++
	}
	return inserted, nil
}

func (f *fakeClinicRepo) ApplyPatch(ctx context.Context, id string, patch map[string]interface{}) error {
	f.patchCalls++
	clinic, ok := f.byID[id]
	if !ok {
		return fmt.Errorf("clinic %s not found", id)
	}
	if f.failPatchFor[clinic.PlaceID] {
		return fmt.Errorf("injected patch failure for %s", clinic.PlaceID)
	}
	f.patches[id] = patch
	return nil
}

func (f *fakeClinicRepo) List(ctx context.Context, filter repositories.ClinicFilter) ([]*entities.Clinic, error) {
	var all []*entities.Clinic
	for _, clinic := range f.byPlaceID {
		all = append(all, clinic)
	}
	return all, nil
}

func (f *fakeClinicRepo) DeleteByBatchID(ctx context.Context, batchID string) (int64, error) {
	var deleted int64
	for placeID, clinic := range f.byPlaceID {
		if clinic.ImportBatchID == batchID {
			delete(f.byPlaceID, placeID)
			delete(f.byID, clinic.ID)
			deleted++
		}
	}
	return deleted, nil
}

// fakeBatchRepo records the ledger lifecycle.
type fakeBatchRepo struct {
	created   *entities.ImportBatch
	finalized *entities.ImportBatch
}

func (f *fakeBatchRepo) Create(ctx context.Context, batch *entities.ImportBatch) error {
	copied := *batch
	f.created = &copied
	return nil
}

func (f *fakeBatchRepo) Finalize(ctx context.Context, batch *entities.ImportBatch) error {
	copied := *batch
	f.finalized = &copied
	return nil
}

func (f *fakeBatchRepo) GetByID(ctx context.Context, id string) (*entities.ImportBatch, error) {
	if f.finalized != nil && f.finalized.ID == id {
		return f.finalized, nil
	}
	return nil, fmt.Errorf("batch %s not found", id)
}

func (f *fakeBatchRepo) List(ctx context.Context, limit, offset int) ([]*entities.ImportBatch, error) {
	if f.finalized == nil {
		return nil, nil
	}
	return []*entities.ImportBatch{f.finalized}, nil
}

func writeInputFile(t *testing.T, records []entities.SourceRecord) string {
	t.Helper()
	data, err := json.Marshal(records)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "input.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func newTestImportService(clinics *fakeClinicRepo, batches *fakeBatchRepo) *ImportService {
	return NewImportService(clinics, batches, newTestClassifier(), ratelimit.NewLimiter(0), 2, nil)
}

func TestImportRunCreatesUpdatesAndSkips(t *testing.T) {
	clinics := newFakeClinicRepo()
	stored := &entities.Clinic{ID: "stored-1", PlaceID: "p2", Name: "Known Clinic"}
	clinics.seed(stored)

	rich := usableRecord("p2", "Known Clinic")
	rich.Phone = "555-0100"

	path := writeInputFile(t, []entities.SourceRecord{
		usableRecord("p1", "New Clinic"),
		rich,
		usableRecord("p1", "Duplicate"),
		{PlaceID: "p3", Title: "No Location"},
	})

	batches := &fakeBatchRepo{}
	service := newTestImportService(clinics, batches)

	summary, err := service.Run(context.Background(), ImportOptions{FilePath: path})
	require.NoError(t, err)

	assert.Equal(t, 4, summary.TotalRecords)
	assert.Equal(t, 1, summary.Created)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 1, summary.Duplicates)
	assert.Equal(t, 1, summary.Unusable)
	assert.Empty(t, summary.Errors)

	// The new clinic landed with identity fields stamped.
	created, err := clinics.GetByPlaceID(context.Background(), "p1")
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, summary.BatchID, created.ImportBatchID)
	assert.False(t, created.ImportedAt.IsZero())

	// The patch carried the gap fill plus the audit stamp.
	patch := clinics.patches["stored-1"]
	require.NotNil(t, patch)
	assert.Equal(t, "555-0100", patch["phone"])
	assert.Contains(t, patch, "import_updated_at")

	// Ledger lifecycle: created as processing, finalized with counters.
	require.NotNil(t, batches.created)
	assert.Equal(t, entities.BatchStatusProcessing, batches.created.Status)
	assert.Equal(t, 4, batches.created.TotalRecords)

	require.NotNil(t, batches.finalized)
	assert.Equal(t, entities.BatchStatusCompleted, batches.finalized.Status)
	assert.Equal(t, 2, batches.finalized.SuccessCount)
	assert.Equal(t, 2, batches.finalized.SkipCount)
	assert.Equal(t, 0, batches.finalized.ErrorCount)
	require.NotNil(t, batches.finalized.CompletedAt)
}

func TestImportRunDryRunWritesNothing(t *testing.T) {
	clinics := newFakeClinicRepo()
	clinics.seed(&entities.Clinic{ID: "stored-1", PlaceID: "p2", Name: "Known Clinic"})

	rich := usableRecord("p2", "Known Clinic")
	rich.Website = "https://clinic.example"

	path := writeInputFile(t, []entities.SourceRecord{
		usableRecord("p1", "New Clinic"),
		rich,
	})

	batches := &fakeBatchRepo{}
	service := newTestImportService(clinics, batches)

	summary, err := service.Run(context.Background(), ImportOptions{FilePath: path, DryRun: true})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Created)
	assert.Equal(t, 1, summary.Updated)
	assert.Empty(t, summary.BatchID)

	assert.Nil(t, batches.created, "dry run must not open a ledger row")
	assert.Zero(t, clinics.createCalls)
	assert.Zero(t, clinics.patchCalls)
	_, err = clinics.GetByPlaceID(context.Background(), "p1")
	assert.Error(t, err, "dry run must not insert")
}

func TestImportRunLimitTruncatesInput(t *testing.T) {
	path := writeInputFile(t, []entities.SourceRecord{
		usableRecord("p1", "Clinic 1"),
		usableRecord("p2", "Clinic 2"),
		usableRecord("p3", "Clinic 3"),
	})

	clinics := newFakeClinicRepo()
	batches := &fakeBatchRepo{}
	service := newTestImportService(clinics, batches)

	summary, err := service.Run(context.Background(), ImportOptions{FilePath: path, Limit: 2})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.TotalRecords)
	assert.Equal(t, 2, summary.Created)
	_, err = clinics.GetByPlaceID(context.Background(), "p3")
	assert.Error(t, err)
}

func TestImportRunBulkInsertFailureDegradesToPerRecord(t *testing.T) {
	clinics := newFakeClinicRepo()
	clinics.failBulkInsert = true
	clinics.failCreateFor["p2"] = true

	path := writeInputFile(t, []entities.SourceRecord{
		usableRecord("p1", "Clinic 1"),
		usableRecord("p2", "Clinic 2"),
		usableRecord("p3", "Clinic 3"),
	})

	batches := &fakeBatchRepo{}
	service := newTestImportService(clinics, batches)

	summary, err := service.Run(context.Background(), ImportOptions{FilePath: path})
	require.NoError(t, err, "write failures must not abort the run")

	assert.Equal(t, 2, summary.Created)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, "p2", summary.Errors[0].PlaceID)
	assert.Equal(t, "Clinic 2", summary.Errors[0].Name)
	assert.Contains(t, summary.Errors[0].Message, "injected create failure")

	require.NotNil(t, batches.finalized)
	assert.Equal(t, 1, batches.finalized.ErrorCount)
	require.Len(t, batches.finalized.Errors, 1)
}

func TestImportRunPatchFailureIsRecordedPerRecord(t *testing.T) {
	clinics := newFakeClinicRepo()
	clinics.seed(&entities.Clinic{ID: "stored-1", PlaceID: "p1", Name: "Clinic 1"})
	clinics.seed(&entities.Clinic{ID: "stored-2", PlaceID: "p2", Name: "Clinic 2"})
	clinics.failPatchFor["p1"] = true

	first := usableRecord("p1", "Clinic 1")
	first.Phone = "555-0100"
	second := usableRecord("p2", "Clinic 2")
	second.Phone = "555-0200"

	path := writeInputFile(t, []entities.SourceRecord{first, second})

	batches := &fakeBatchRepo{}
	service := newTestImportService(clinics, batches)

	summary, err := service.Run(context.Background(), ImportOptions{FilePath: path})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Updated)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, "p1", summary.Errors[0].PlaceID)
}

func TestImportRunFatalOnBadInput(t *testing.T) {
	service := newTestImportService(newFakeClinicRepo(), &fakeBatchRepo{})

	t.Run("missing file", func(t *testing.T) {
		_, err := service.Run(context.Background(), ImportOptions{FilePath: filepath.Join(t.TempDir(), "absent.json")})
		require.Error(t, err)
	})

	t.Run("invalid json", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "broken.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
		_, err := service.Run(context.Background(), ImportOptions{FilePath: path})
		require.Error(t, err)
	})
}

func TestImportRunSecondRunIsIdempotent(t *testing.T) {
	path := writeInputFile(t, []entities.SourceRecord{
		usableRecord("p1", "Clinic 1"),
		usableRecord("p2", "Clinic 2"),
	})

	clinics := newFakeClinicRepo()
	service := newTestImportService(clinics, &fakeBatchRepo{})

	first, err := service.Run(context.Background(), ImportOptions{FilePath: path})
	require.NoError(t, err)
	assert.Equal(t, 2, first.Created)

	second, err := service.Run(context.Background(), ImportOptions{FilePath: path})
	require.NoError(t, err)
	assert.Zero(t, second.Created)
	assert.Zero(t, second.Updated)
	assert.Equal(t, 2, second.Unchanged)
	assert.Zero(t, clinics.patchCalls)
}

func TestImportRunRecordsMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	previous := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() { otel.SetMeterProvider(previous) })

	metrics, err := observability.InitMetrics()
	require.NoError(t, err)

	clinics := newFakeClinicRepo()
	clinics.failBulkInsert = true
	clinics.failCreateFor["p2"] = true

	path := writeInputFile(t, []entities.SourceRecord{
		usableRecord("p1", "Counted Clinic"),
		usableRecord("p2", "Failing Clinic"),
	})
	service := NewImportService(clinics, &fakeBatchRepo{}, newTestClassifier(), ratelimit.NewLimiter(0), 2, metrics)

	summary, err := service.Run(context.Background(), ImportOptions{FilePath: path})
	require.NoError(t, err)
	require.Len(t, summary.Errors, 1)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	assert.Equal(t, int64(2), counterValue(t, &rm, "import.records.processed"))
	assert.Equal(t, int64(1), counterValue(t, &rm, "import.write.errors"))
	assert.GreaterOrEqual(t, histogramCount(t, &rm, "import.chunk.duration"), uint64(1))
	assert.GreaterOrEqual(t, histogramCount(t, &rm, "db.query.duration"), uint64(1))
}

func counterValue(t *testing.T, rm *metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	t.Fatalf("metric %s was not recorded", name)
	return 0
}

func histogramCount(t *testing.T, rm *metricdata.ResourceMetrics, name string) uint64 {
	t.Helper()
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != name {
				continue
			}
			hist, ok := m.Data.(metricdata.Histogram[float64])
			require.True(t, ok, "metric %s is not a float64 histogram", name)
			var count uint64
			for _, dp := range hist.DataPoints {
				count += dp.Count
			}
			return count
		}
	}
	t.Fatalf("metric %s was not recorded", name)
	return 0
}
