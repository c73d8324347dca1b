package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/lib/pq"

	"github.com/reliefmap/backend/internal/domain/entities"
	"github.com/reliefmap/backend/internal/domain/repositories"
	"github.com/reliefmap/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/reliefmap/backend/pkg/errors"
)

// clinicColumns is the select list shared by every read path. Order must
// match scanClinic.
var clinicColumns = []interface{}{
	"id", "place_id", "name", "slug", "description", "category", "tags",
	"street", "city", "state", "state_abbr", "postal_code", "country",
	"latitude", "longitude", "timezone",
	"phone", "phones", "website", "emails",
	"facebook", "instagram", "twitter", "linkedin", "youtube",
	"rating", "review_count", "featured_reviews", "hours", "amenities", "images",
	"import_batch_id", "imported_at", "import_updated_at",
	"is_active", "created_at", "updated_at",
}

// ClinicAdapter implements the ClinicRepository interface
type ClinicAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewClinicAdapter creates a new clinic adapter
func NewClinicAdapter(client *postgres.Client) repositories.ClinicRepository {
	return &ClinicAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create inserts a single clinic
func (a *ClinicAdapter) Create(ctx context.Context, clinic *entities.Clinic) error {
	record, err := clinicRecord(clinic)
	if err != nil {
		return apperrors.NewInternalError("failed to encode clinic", err)
	}

	query, args, err := a.db.Insert("clinics").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create clinic", err)
	}
	return nil
}

// GetByID retrieves a clinic by internal id
func (a *ClinicAdapter) GetByID(ctx context.Context, id string) (*entities.Clinic, error) {
	return a.getByField(ctx, "id", id)
}

// GetByPlaceID retrieves a clinic by its upstream place id
func (a *ClinicAdapter) GetByPlaceID(ctx context.Context, placeID string) (*entities.Clinic, error) {
	return a.getByField(ctx, "place_id", placeID)
}

// GetByPlaceIDs retrieves the stored clinics for the given place ids.
// Missing ids are absent from the result, not errors.
func (a *ClinicAdapter) GetByPlaceIDs(ctx context.Context, placeIDs []string) ([]*entities.Clinic, error) {
	if len(placeIDs) == 0 {
		return []*entities.Clinic{}, nil
	}

	query, args, err := a.db.Select(clinicColumns...).From("clinics").
		Where(goqu.Ex{"place_id": placeIDs}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	return a.queryClinics(ctx, query, args)
}

// BulkInsert inserts clinics in one statement; rows whose place id already
// exists are silently skipped. Returns the number of rows written.
func (a *ClinicAdapter) BulkInsert(ctx context.Context, clinics []*entities.Clinic) (int, error) {
	if len(clinics) == 0 {
		return 0, nil
	}

	records := make([]interface{}, 0, len(clinics))
	for _, clinic := range clinics {
		record, err := clinicRecord(clinic)
		if err != nil {
			return 0, apperrors.NewInternalError("failed to encode clinic", err)
		}
		records = append(records, record)
	}

	query, args, err := a.db.Insert("clinics").Rows(records...).
		OnConflict(goqu.DoNothing()).
		ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build bulk insert query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return 0, apperrors.NewInternalError("failed to bulk insert clinics", err)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to get rows affected", err)
	}
	return int(inserted), nil
}

// ApplyPatch writes a field→value map to one clinic row. Slice and struct
// values are encoded here so callers stay storage-agnostic.
func (a *ClinicAdapter) ApplyPatch(ctx context.Context, id string, patch map[string]interface{}) error {
	if len(patch) == 0 {
		return nil
	}

	record := goqu.Record{"updated_at": time.Now()}
	for column, value := range patch {
		encoded, err := encodePatchValue(value)
		if err != nil {
			return apperrors.NewInternalError(fmt.Sprintf("failed to encode patch field %s", column), err)
		}
		record[column] = encoded
	}

	query, args, err := a.db.Update("clinics").Set(record).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to patch clinic", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("clinic with id %s not found", id))
	}
	return nil
}

// List retrieves clinics with filters
func (a *ClinicAdapter) List(ctx context.Context, filter repositories.ClinicFilter) ([]*entities.Clinic, error) {
	ds := a.db.Select(clinicColumns...).From("clinics")

	if filter.State != "" {
		ds = ds.Where(goqu.Ex{"state_abbr": filter.State})
	}
	if filter.City != "" {
		ds = ds.Where(goqu.Ex{"city": filter.City})
	}
	if filter.BatchID != "" {
		ds = ds.Where(goqu.Ex{"import_batch_id": filter.BatchID})
	}
	if filter.IsActive != nil {
		ds = ds.Where(goqu.Ex{"is_active": *filter.IsActive})
	}

	ds = ds.Order(goqu.I("created_at").Desc())
	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}
	if filter.Offset > 0 {
		ds = ds.Offset(uint(filter.Offset))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	return a.queryClinics(ctx, query, args)
}

// DeleteByBatchID removes every clinic created by the given import batch.
func (a *ClinicAdapter) DeleteByBatchID(ctx context.Context, batchID string) (int64, error) {
	query, args, err := a.db.Delete("clinics").
		Where(goqu.Ex{"import_batch_id": batchID}).
		ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build delete query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return 0, apperrors.NewInternalError("failed to delete clinics by batch", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to get rows affected", err)
	}
	return deleted, nil
}

func (a *ClinicAdapter) getByField(ctx context.Context, field, value string) (*entities.Clinic, error) {
	query, args, err := a.db.Select(clinicColumns...).From("clinics").
		Where(goqu.Ex{field: value}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	clinic, err := scanClinic(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("clinic with %s %s not found", field, value))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get clinic", err)
	}
	return clinic, nil
}

func (a *ClinicAdapter) queryClinics(ctx context.Context, query string, args []interface{}) ([]*entities.Clinic, error) {
	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query clinics", err)
	}
	defer rows.Close()

	clinics := []*entities.Clinic{}
	for rows.Next() {
		clinic, err := scanClinic(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan clinic", err)
		}
		clinics = append(clinics, clinic)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("error iterating clinics", err)
	}
	return clinics, nil
}

// clinicRecord encodes a clinic for insertion.
func clinicRecord(c *entities.Clinic) (goqu.Record, error) {
	reviewsJSON, err := json.Marshal(c.FeaturedReviews)
	if err != nil {
		return nil, err
	}
	hoursJSON, err := json.Marshal(c.Hours)
	if err != nil {
		return nil, err
	}

	return goqu.Record{
		"id":                c.ID,
		"place_id":          c.PlaceID,
		"name":              c.Name,
		"slug":              c.Slug,
		"description":       c.Description,
		"category":          sql.NullString{String: c.Category, Valid: c.Category != ""},
		"tags":              pq.Array(c.Tags),
		"street":            c.Address.Street,
		"city":              c.Address.City,
		"state":             c.Address.State,
		"state_abbr":        c.Address.StateAbbr,
		"postal_code":       c.Address.PostalCode,
		"country":           c.Address.Country,
		"latitude":          c.Location.Latitude,
		"longitude":         c.Location.Longitude,
		"timezone":          c.Timezone,
		"phone":             c.Phone,
		"phones":            pq.Array(c.Phones),
		"website":           c.Website,
		"emails":            pq.Array(c.Emails),
		"facebook":          c.Social.Facebook,
		"instagram":         c.Social.Instagram,
		"twitter":           c.Social.Twitter,
		"linkedin":          c.Social.LinkedIn,
		"youtube":           c.Social.YouTube,
		"rating":            c.Rating,
		"review_count":      c.ReviewCount,
		"featured_reviews":  reviewsJSON,
		"hours":             hoursJSON,
		"amenities":         pq.Array(c.Amenities),
		"images":            pq.Array(c.Images),
		"import_batch_id":   sql.NullString{String: c.ImportBatchID, Valid: c.ImportBatchID != ""},
		"imported_at":       c.ImportedAt,
		"import_updated_at": nullTime(c.ImportUpdatedAt),
		"is_active":         c.IsActive,
		"created_at":        c.CreatedAt,
		"updated_at":        c.UpdatedAt,
	}, nil
}

// encodePatchValue converts service-level patch values into their storage
// representation.
func encodePatchValue(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case []string:
		return pq.Array(v), nil
	case []entities.Review:
		return json.Marshal(v)
	case []entities.HoursEntry:
		return json.Marshal(v)
	default:
		return v, nil
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanClinic(row rowScanner) (*entities.Clinic, error) {
	clinic := &entities.Clinic{}
	var category, batchID sql.NullString
	var importUpdatedAt sql.NullTime
	var reviewsJSON, hoursJSON []byte

	err := row.Scan(
		&clinic.ID,
		&clinic.PlaceID,
		&clinic.Name,
		&clinic.Slug,
		&clinic.Description,
		&category,
		pq.Array(&clinic.Tags),
		&clinic.Address.Street,
		&clinic.Address.City,
		&clinic.Address.State,
		&clinic.Address.StateAbbr,
		&clinic.Address.PostalCode,
		&clinic.Address.Country,
		&clinic.Location.Latitude,
		&clinic.Location.Longitude,
		&clinic.Timezone,
		&clinic.Phone,
		pq.Array(&clinic.Phones),
		&clinic.Website,
		pq.Array(&clinic.Emails),
		&clinic.Social.Facebook,
		&clinic.Social.Instagram,
		&clinic.Social.Twitter,
		&clinic.Social.LinkedIn,
		&clinic.Social.YouTube,
		&clinic.Rating,
		&clinic.ReviewCount,
		&reviewsJSON,
		&hoursJSON,
		pq.Array(&clinic.Amenities),
		pq.Array(&clinic.Images),
		&batchID,
		&clinic.ImportedAt,
		&importUpdatedAt,
		&clinic.IsActive,
		&clinic.CreatedAt,
		&clinic.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	clinic.Category = category.String
	clinic.ImportBatchID = batchID.String
	if importUpdatedAt.Valid {
		t := importUpdatedAt.Time
		clinic.ImportUpdatedAt = &t
	}
	if len(reviewsJSON) > 0 {
		if err := json.Unmarshal(reviewsJSON, &clinic.FeaturedReviews); err != nil {
			return nil, err
		}
	}
	if len(hoursJSON) > 0 {
		if err := json.Unmarshal(hoursJSON, &clinic.Hours); err != nil {
			return nil, err
		}
	}

	return clinic, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
