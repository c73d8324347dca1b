package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/reliefmap/backend/internal/domain/entities"
	"github.com/reliefmap/backend/internal/domain/providers"
	"github.com/reliefmap/backend/internal/domain/repositories"
)

// CachedClinicAdapter wraps a ClinicRepository with caching
type CachedClinicAdapter struct {
	adapter repositories.ClinicRepository
	cache   providers.CacheProvider
}

// NewCachedClinicAdapter creates a new cached clinic adapter
func NewCachedClinicAdapter(adapter repositories.ClinicRepository, cache providers.CacheProvider) repositories.ClinicRepository {
	return &CachedClinicAdapter{
		adapter: adapter,
		cache:   cache,
	}
}

// Cache TTLs (in seconds)
const (
	clinicByIDTTL  = 300 // 5 minutes for single clinic
	clinicsListTTL = 180 // 3 minutes for lists
)

// Cache key generators
func clinicCacheKey(id string) string {
	return fmt.Sprintf("clinic:id:%s", id)
}

func clinicPlaceCacheKey(placeID string) string {
	return fmt.Sprintf("clinic:place:%s", placeID)
}

func clinicsListCacheKey(filter repositories.ClinicFilter) string {
	active := "any"
	if filter.IsActive != nil {
		active = fmt.Sprintf("%t", *filter.IsActive)
	}
	return fmt.Sprintf("clinics:list:%s:%s:%s:%s:%d:%d", filter.State, filter.City, filter.BatchID, active, filter.Limit, filter.Offset)
}

// GetByID retrieves a clinic by ID with caching
func (a *CachedClinicAdapter) GetByID(ctx context.Context, id string) (*entities.Clinic, error) {
	cacheKey := clinicCacheKey(id)

	// Try to get from cache first
	if cached, err := a.cache.Get(ctx, cacheKey); err == nil {
		var clinic entities.Clinic
		if err := json.Unmarshal(cached, &clinic); err == nil {
			return &clinic, nil
		}
		log.Warn().Err(err).Str("clinic_id", id).Msg("failed to unmarshal cached clinic")
	}

	// Cache miss - fetch from database
	clinic, err := a.adapter.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	a.cacheClinic(clinic)
	return clinic, nil
}

// GetByPlaceID retrieves a clinic by place id with caching
func (a *CachedClinicAdapter) GetByPlaceID(ctx context.Context, placeID string) (*entities.Clinic, error) {
	cacheKey := clinicPlaceCacheKey(placeID)

	if cached, err := a.cache.Get(ctx, cacheKey); err == nil {
		var clinic entities.Clinic
		if err := json.Unmarshal(cached, &clinic); err == nil {
			return &clinic, nil
		}
		log.Warn().Err(err).Str("place_id", placeID).Msg("failed to unmarshal cached clinic")
	}

	clinic, err := a.adapter.GetByPlaceID(ctx, placeID)
	if err != nil {
		return nil, err
	}

	a.cacheClinic(clinic)
	return clinic, nil
}

// GetByPlaceIDs retrieves multiple clinics by place id with batch caching
func (a *CachedClinicAdapter) GetByPlaceIDs(ctx context.Context, placeIDs []string) ([]*entities.Clinic, error) {
	if len(placeIDs) == 0 {
		return []*entities.Clinic{}, nil
	}

	cacheKeys := make([]string, len(placeIDs))
	for i, placeID := range placeIDs {
		cacheKeys[i] = clinicPlaceCacheKey(placeID)
	}

	cached, _ := a.cache.GetMulti(ctx, cacheKeys)

	var cachedClinics []*entities.Clinic
	missingIDs := make([]string, 0)
	for i, placeID := range placeIDs {
		if data, ok := cached[cacheKeys[i]]; ok {
			var clinic entities.Clinic
			if err := json.Unmarshal(data, &clinic); err == nil {
				cachedClinics = append(cachedClinics, &clinic)
				continue
			}
		}
		missingIDs = append(missingIDs, placeID)
	}

	// If all were cached, return them
	if len(missingIDs) == 0 {
		return cachedClinics, nil
	}

	dbClinics, err := a.adapter.GetByPlaceIDs(ctx, missingIDs)
	if err != nil {
		return nil, err
	}

	// Cache the misses asynchronously using the batch operation
	go func() {
		bgCtx := context.Background()
		items := make(map[string][]byte)
		for _, clinic := range dbClinics {
			if data, err := json.Marshal(clinic); err == nil {
				items[clinicPlaceCacheKey(clinic.PlaceID)] = data
				items[clinicCacheKey(clinic.ID)] = data
			}
		}
		if len(items) > 0 {
			if err := a.cache.SetMulti(bgCtx, items, clinicByIDTTL); err != nil {
				log.Warn().Err(err).Msg("failed to batch cache clinics")
			}
		}
	}()

	return append(cachedClinics, dbClinics...), nil
}

// List retrieves clinics with caching
func (a *CachedClinicAdapter) List(ctx context.Context, filter repositories.ClinicFilter) ([]*entities.Clinic, error) {
	cacheKey := clinicsListCacheKey(filter)

	if cached, err := a.cache.Get(ctx, cacheKey); err == nil {
		var clinics []*entities.Clinic
		if err := json.Unmarshal(cached, &clinics); err == nil {
			return clinics, nil
		}
		log.Warn().Err(err).Msg("failed to unmarshal cached clinics list")
	}

	clinics, err := a.adapter.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	// Update cache asynchronously to avoid blocking the response
	go func() {
		bgCtx := context.Background()
		if data, err := json.Marshal(clinics); err == nil {
			if err := a.cache.Set(bgCtx, cacheKey, data, clinicsListTTL); err != nil {
				log.Warn().Err(err).Msg("failed to cache clinics list")
			}
		}
	}()

	return clinics, nil
}

// Create creates a clinic and invalidates list caches
func (a *CachedClinicAdapter) Create(ctx context.Context, clinic *entities.Clinic) error {
	if err := a.adapter.Create(ctx, clinic); err != nil {
		return err
	}
	a.invalidateLists(ctx)
	return nil
}

// BulkInsert inserts clinics and invalidates list caches
func (a *CachedClinicAdapter) BulkInsert(ctx context.Context, clinics []*entities.Clinic) (int, error) {
	inserted, err := a.adapter.BulkInsert(ctx, clinics)
	if err != nil {
		return 0, err
	}
	a.invalidateLists(ctx)
	return inserted, nil
}

// ApplyPatch patches a clinic and invalidates its caches. Invalidation is
// synchronous: a read issued after a mutation returns must not see the
// pre-patch row, and the short-lived import process may exit right after
// the last write.
func (a *CachedClinicAdapter) ApplyPatch(ctx context.Context, id string, patch map[string]interface{}) error {
	if err := a.adapter.ApplyPatch(ctx, id, patch); err != nil {
		return err
	}

	cacheKey := clinicCacheKey(id)

	// The cached row, when present, carries the place id needed to drop
	// the place-keyed entry as well.
	if cached, err := a.cache.Get(ctx, cacheKey); err == nil {
		var clinic entities.Clinic
		if err := json.Unmarshal(cached, &clinic); err == nil && clinic.PlaceID != "" {
			if err := a.cache.Delete(ctx, clinicPlaceCacheKey(clinic.PlaceID)); err != nil {
				log.Warn().Err(err).Str("clinic_id", id).Msg("failed to invalidate clinic place cache")
			}
		}
	}
	if err := a.cache.Delete(ctx, cacheKey); err != nil {
		log.Warn().Err(err).Str("clinic_id", id).Msg("failed to invalidate clinic cache")
	}
	if err := a.cache.DeletePattern(ctx, "clinics:list:*"); err != nil {
		log.Warn().Err(err).Msg("failed to invalidate clinics list cache")
	}

	return nil
}

// DeleteByBatchID deletes a batch's clinics and flushes clinic caches
func (a *CachedClinicAdapter) DeleteByBatchID(ctx context.Context, batchID string) (int64, error) {
	deleted, err := a.adapter.DeleteByBatchID(ctx, batchID)
	if err != nil {
		return 0, err
	}

	// Deleted rows are unknown here, so drop every clinic entry before
	// returning; rollback is a one-shot command.
	if err := a.cache.DeletePattern(ctx, "clinic:*"); err != nil {
		log.Warn().Err(err).Msg("failed to invalidate clinic caches")
	}
	if err := a.cache.DeletePattern(ctx, "clinics:list:*"); err != nil {
		log.Warn().Err(err).Msg("failed to invalidate clinics list cache")
	}

	return deleted, nil
}

// cacheClinic writes one clinic under both its id and place id keys,
// asynchronously to avoid blocking the response.
func (a *CachedClinicAdapter) cacheClinic(clinic *entities.Clinic) {
	go func() {
		bgCtx := context.Background()
		data, err := json.Marshal(clinic)
		if err != nil {
			return
		}
		items := map[string][]byte{
			clinicCacheKey(clinic.ID): data,
		}
		if clinic.PlaceID != "" {
			items[clinicPlaceCacheKey(clinic.PlaceID)] = data
		}
		if err := a.cache.SetMulti(bgCtx, items, clinicByIDTTL); err != nil {
			log.Warn().Err(err).Str("clinic_id", clinic.ID).Msg("failed to cache clinic")
		}
	}()
}

func (a *CachedClinicAdapter) invalidateLists(ctx context.Context) {
	if err := a.cache.DeletePattern(ctx, "clinics:list:*"); err != nil {
		log.Warn().Err(err).Msg("failed to invalidate clinics list cache")
	}
}
