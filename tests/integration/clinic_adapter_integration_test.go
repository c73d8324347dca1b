//go:build integration

package integration

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reliefmap/backend/internal/adapters/database"
	"github.com/reliefmap/backend/internal/domain/entities"
	"github.com/reliefmap/backend/internal/domain/repositories"
	apperrors "github.com/reliefmap/backend/pkg/errors"
)

func TestClinicAdapterRoundTrip(t *testing.T) {
	client := newTestPostgresClient(t)
	defer client.Close()
	repo := database.NewClinicAdapter(client)
	ctx := context.Background()

	clinic := newTestClinic(t, "Round Trip Clinic")
	clinic.Phone = "555-0100"
	clinic.Tags = []string{"pain clinic", "physical therapy"}
	clinic.Hours = []entities.HoursEntry{{Day: "Monday", Hours: "9 AM to 5 PM"}}
	rating := 5.0
	clinic.FeaturedReviews = []entities.Review{{Author: "Alice", Rating: &rating, Text: "great"}}

	require.NoError(t, repo.Create(ctx, clinic))
	defer cleanupClinic(t, client, clinic.ID)

	got, err := repo.GetByPlaceID(ctx, clinic.PlaceID)
	require.NoError(t, err)
	assert.Equal(t, clinic.ID, got.ID)
	assert.Equal(t, clinic.Name, got.Name)
	assert.Equal(t, clinic.Tags, got.Tags)
	assert.Equal(t, clinic.Hours, got.Hours)
	require.Len(t, got.FeaturedReviews, 1)
	require.NotNil(t, got.FeaturedReviews[0].Rating)
	assert.Equal(t, 5.0, *got.FeaturedReviews[0].Rating)
}

func TestClinicAdapterBulkInsertSkipsConflicts(t *testing.T) {
	client := newTestPostgresClient(t)
	defer client.Close()
	repo := database.NewClinicAdapter(client)
	ctx := context.Background()

	first := newTestClinic(t, "Bulk One")
	second := newTestClinic(t, "Bulk Two")

	inserted, err := repo.BulkInsert(ctx, []*entities.Clinic{first, second})
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)
	defer cleanupClinic(t, client, first.ID)
	defer cleanupClinic(t, client, second.ID)

	// Re-inserting the same place ids is a silent no-op.
	dupe := newTestClinic(t, "Bulk One Again")
	dupe.PlaceID = first.PlaceID
	third := newTestClinic(t, "Bulk Three")

	inserted, err = repo.BulkInsert(ctx, []*entities.Clinic{dupe, third})
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)
	defer cleanupClinic(t, client, third.ID)

	stored, err := repo.GetByPlaceID(ctx, first.PlaceID)
	require.NoError(t, err)
	assert.Equal(t, "Bulk One", stored.Name, "conflicting insert must not overwrite")
}

func TestClinicAdapterApplyPatch(t *testing.T) {
	client := newTestPostgresClient(t)
	defer client.Close()
	repo := database.NewClinicAdapter(client)
	ctx := context.Background()

	clinic := newTestClinic(t, "Patch Clinic")
	require.NoError(t, repo.Create(ctx, clinic))
	defer cleanupClinic(t, client, clinic.ID)

	err := repo.ApplyPatch(ctx, clinic.ID, map[string]interface{}{
		"phone":        "555-0200",
		"tags":         []string{"updated"},
		"review_count": 42,
		"hours":        []entities.HoursEntry{{Day: "Friday", Hours: "8-4"}},
	})
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, clinic.ID)
	require.NoError(t, err)
	assert.Equal(t, "555-0200", got.Phone)
	assert.Equal(t, []string{"updated"}, got.Tags)
	assert.Equal(t, 42, got.ReviewCount)
	require.Len(t, got.Hours, 1)
	assert.Equal(t, "Friday", got.Hours[0].Day)

	err = repo.ApplyPatch(ctx, "00000000-0000-0000-0000-000000000000", map[string]interface{}{"phone": "x"})
	assert.True(t, apperrors.IsNotFound(err), "patching a missing clinic should be not-found, got %v", err)
}

func TestClinicAdapterDeleteByBatchID(t *testing.T) {
	client := newTestPostgresClient(t)
	defer client.Close()
	repo := database.NewClinicAdapter(client)
	ctx := context.Background()

	batchID := uuid.NewString()

	inBatch := newTestClinic(t, "In Batch")
	inBatch.ImportBatchID = batchID
	outside := newTestClinic(t, "Outside Batch")

	require.NoError(t, repo.Create(ctx, inBatch))
	require.NoError(t, repo.Create(ctx, outside))
	defer cleanupClinic(t, client, inBatch.ID)
	defer cleanupClinic(t, client, outside.ID)

	// The batch-scoped listing rollback uses to find index documents.
	listed, err := repo.List(ctx, repositories.ClinicFilter{BatchID: batchID, Limit: 10})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, inBatch.ID, listed[0].ID)

	deleted, err := repo.DeleteByBatchID(ctx, batchID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = repo.GetByID(ctx, inBatch.ID)
	assert.True(t, apperrors.IsNotFound(err))
	_, err = repo.GetByID(ctx, outside.ID)
	assert.NoError(t, err, "rollback must only touch the batch's rows")
}
