//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reliefmap/backend/internal/adapters/cache"
	"github.com/reliefmap/backend/internal/adapters/database"
	"github.com/reliefmap/backend/internal/application/services"
	"github.com/reliefmap/backend/internal/domain/entities"
	"github.com/reliefmap/backend/pkg/ratelimit"
)

func writeImportFile(t *testing.T, records []entities.SourceRecord) string {
	t.Helper()
	data, err := json.Marshal(records)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "input.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// End-to-end import against a real database: first run creates, second run
// with enriched data gap-fills, third identical run is a no-op.
func TestImportPipelineEndToEnd(t *testing.T) {
	client := newTestPostgresClient(t)
	defer client.Close()

	clinicRepo := database.NewClinicAdapter(client)
	batchRepo := database.NewImportBatchAdapter(client)
	service := services.NewImportService(
		clinicRepo,
		batchRepo,
		services.NewClassifier(services.NewRecordNormalizer(5)),
		ratelimit.NewLimiter(0),
		100,
		nil,
	)
	ctx := context.Background()

	placeID := "it-import-" + uuid.NewString()
	sparse := entities.SourceRecord{
		PlaceID:    placeID,
		Title:      "Integration Pain Clinic",
		City:       "Springfield",
		State:      "IL",
		PostalCode: "62704",
	}

	firstPath := writeImportFile(t, []entities.SourceRecord{sparse})
	first, err := service.Run(ctx, services.ImportOptions{FilePath: firstPath})
	require.NoError(t, err)
	require.Empty(t, first.Errors)
	assert.Equal(t, 1, first.Created)
	defer cleanupBatch(t, client, first.BatchID)

	created, err := clinicRepo.GetByPlaceID(ctx, placeID)
	require.NoError(t, err)
	defer cleanupClinic(t, client, created.ID)
	assert.Equal(t, first.BatchID, created.ImportBatchID)
	assert.Empty(t, created.Phone)

	// Second run carries a phone: the gap fills, identity stays put.
	enriched := sparse
	enriched.Phone = "555-0100"
	secondPath := writeImportFile(t, []entities.SourceRecord{enriched})
	second, err := service.Run(ctx, services.ImportOptions{FilePath: secondPath})
	require.NoError(t, err)
	require.Empty(t, second.Errors)
	assert.Equal(t, 1, second.Updated)
	defer cleanupBatch(t, client, second.BatchID)

	updated, err := clinicRepo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "555-0100", updated.Phone)
	assert.Equal(t, created.Slug, updated.Slug)
	assert.NotNil(t, updated.ImportUpdatedAt)

	// Third run with the same file finds nothing left to fill.
	third, err := service.Run(ctx, services.ImportOptions{FilePath: secondPath})
	require.NoError(t, err)
	assert.Zero(t, third.Created)
	assert.Zero(t, third.Updated)
	assert.Equal(t, 1, third.Unchanged)
	defer cleanupBatch(t, client, third.BatchID)

	// Ledger rows recorded the runs.
	batch, err := batchRepo.GetByID(ctx, second.BatchID)
	require.NoError(t, err)
	assert.Equal(t, entities.BatchStatusCompleted, batch.Status)
	assert.Equal(t, 1, batch.SuccessCount)
	require.NotNil(t, batch.CompletedAt)
}

func TestCachedClinicAdapterIntegration(t *testing.T) {
	redisClient := maybeTestRedisClient(t)
	if redisClient == nil {
		t.Skip("redis not available")
	}
	defer redisClient.Close()

	client := newTestPostgresClient(t)
	defer client.Close()

	repo := database.NewCachedClinicAdapter(database.NewClinicAdapter(client), cache.NewRedisAdapter(redisClient))
	ctx := context.Background()

	clinic := newTestClinic(t, "Cached Clinic")
	require.NoError(t, repo.Create(ctx, clinic))
	defer cleanupClinic(t, client, clinic.ID)

	// First read populates the cache, second read is served from it.
	first, err := repo.GetByPlaceID(ctx, clinic.PlaceID)
	require.NoError(t, err)
	second, err := repo.GetByPlaceID(ctx, clinic.PlaceID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}
