package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/reliefmap/backend/internal/domain/entities"
	"github.com/reliefmap/backend/internal/domain/repositories"
	tsclient "github.com/reliefmap/backend/internal/infrastructure/clients/typesense"
)

// TypesenseAdapter implements clinic search using Typesense
type TypesenseAdapter struct {
	client *tsclient.Client
}

// Ensure TypesenseAdapter implements ClinicSearchRepository
var _ repositories.ClinicSearchRepository = (*TypesenseAdapter)(nil)

// NewTypesenseAdapter creates a new Typesense adapter
func NewTypesenseAdapter(client *tsclient.Client) *TypesenseAdapter {
	return &TypesenseAdapter{client: client}
}

// InitSchema ensures the clinics collection exists
func (a *TypesenseAdapter) InitSchema(ctx context.Context) error {
	// Check if collection exists
	_, err := a.client.Client().Collection(tsclient.ClinicsCollection).Retrieve(ctx)
	if err == nil {
		return nil // Collection exists
	}

	schema := &api.CollectionSchema{
		Name: tsclient.ClinicsCollection,
		Fields: []api.Field{
			{Name: "id", Type: "string"},
			{Name: "place_id", Type: "string"},
			{Name: "name", Type: "string"},
			{Name: "slug", Type: "string"},
			{Name: "description", Type: "string"},
			{Name: "category", Type: "string", Facet: pointer.True()},
			{Name: "city", Type: "string", Facet: pointer.True()},
			{Name: "state", Type: "string", Facet: pointer.True()},
			{Name: "is_active", Type: "bool"},
			{Name: "location", Type: "geopoint"},
			{Name: "rating", Type: "float"},
			{Name: "review_count", Type: "int32"},
			{Name: "created_at", Type: "int64"},
		},
		DefaultSortingField: pointer.String("created_at"),
	}

	_, err = a.client.Client().Collections().Create(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to create typesense collection: %w", err)
	}

	return nil
}

// BulkIndex upserts a batch of clinic documents in one request
func (a *TypesenseAdapter) BulkIndex(ctx context.Context, clinics []*entities.Clinic) error {
	if len(clinics) == 0 {
		return nil
	}

	documents := make([]interface{}, 0, len(clinics))
	for _, clinic := range clinics {
		documents = append(documents, clinicDocument(clinic))
	}

	params := &api.ImportDocumentsParams{
		Action: pointer.String(string(api.Upsert)),
	}
	_, err := a.client.Client().Collection(tsclient.ClinicsCollection).Documents().Import(ctx, documents, params)
	if err != nil {
		return fmt.Errorf("failed to bulk index clinics: %w", err)
	}
	return nil
}

// Delete removes a clinic from the index
func (a *TypesenseAdapter) Delete(ctx context.Context, id string) error {
	_, err := a.client.Client().Collection(tsclient.ClinicsCollection).Document(id).Delete(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete clinic from index: %w", err)
	}
	return nil
}

// Search searches clinics by name and description with optional facets
func (a *TypesenseAdapter) Search(ctx context.Context, params repositories.ClinicSearchParams) ([]*entities.Clinic, error) {
	query := params.Query
	if query == "" {
		query = "*"
	}
	limit := params.Limit
	if limit <= 0 {
		limit = 20
	}

	filters := []string{"is_active:=true"}
	if params.State != "" {
		filters = append(filters, fmt.Sprintf("state:=%s", params.State))
	}
	if params.City != "" {
		filters = append(filters, fmt.Sprintf("city:=%s", params.City))
	}

	searchParams := &api.SearchCollectionParams{
		Q:        pointer.String(query),
		QueryBy:  pointer.String("name,description"),
		FilterBy: pointer.String(strings.Join(filters, " && ")),
		Page:     pointer.Int(params.Offset/limit + 1),
		PerPage:  pointer.Int(limit),
	}

	result, err := a.client.Client().Collection(tsclient.ClinicsCollection).Documents().Search(ctx, searchParams)
	if err != nil {
		return nil, fmt.Errorf("failed to search clinics: %w", err)
	}

	clinics := []*entities.Clinic{}
	if result.Hits == nil {
		return clinics, nil
	}
	for _, hit := range *result.Hits {
		clinics = append(clinics, clinicFromDocument(*hit.Document))
	}

	return clinics, nil
}

// clinicFromDocument rebuilds a clinic from a Typesense hit. Typesense
// returns map[string]interface{}, so fields are cast one by one and missing
// or mistyped values are simply left zero.
func clinicFromDocument(doc map[string]interface{}) *entities.Clinic {
	clinic := &entities.Clinic{}
	if val, ok := doc["id"].(string); ok {
		clinic.ID = val
	}
	if val, ok := doc["place_id"].(string); ok {
		clinic.PlaceID = val
	}
	if val, ok := doc["name"].(string); ok {
		clinic.Name = val
	}
	if val, ok := doc["slug"].(string); ok {
		clinic.Slug = val
	}
	if val, ok := doc["description"].(string); ok {
		clinic.Description = val
	}
	if val, ok := doc["category"].(string); ok {
		clinic.Category = val
	}
	if val, ok := doc["city"].(string); ok {
		clinic.Address.City = val
	}
	if val, ok := doc["state"].(string); ok {
		clinic.Address.StateAbbr = val
	}
	if val, ok := doc["is_active"].(bool); ok {
		clinic.IsActive = val
	}
	if loc, ok := doc["location"].([]interface{}); ok && len(loc) == 2 {
		if lat, ok := loc[0].(float64); ok {
			clinic.Location.Latitude = lat
		}
		if lng, ok := loc[1].(float64); ok {
			clinic.Location.Longitude = lng
		}
	}
	if val, ok := doc["rating"].(float64); ok {
		clinic.Rating = val
	}
	if val, ok := doc["review_count"].(float64); ok {
		clinic.ReviewCount = int(val)
	}
	return clinic
}

func clinicDocument(clinic *entities.Clinic) map[string]interface{} {
	return map[string]interface{}{
		"id":           clinic.ID,
		"place_id":     clinic.PlaceID,
		"name":         clinic.Name,
		"slug":         clinic.Slug,
		"description":  clinic.Description,
		"category":     clinic.Category,
		"city":         clinic.Address.City,
		"state":        clinic.Address.StateAbbr,
		"is_active":    clinic.IsActive,
		"location":     []float64{clinic.Location.Latitude, clinic.Location.Longitude},
		"rating":       clinic.Rating,
		"review_count": clinic.ReviewCount,
		"created_at":   clinic.CreatedAt.Unix(),
	}
}
