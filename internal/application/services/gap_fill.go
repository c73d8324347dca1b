package services

import (
	"github.com/reliefmap/backend/internal/domain/entities"
)

// fillableFields enumerates the columns the gap-fill default rule applies
// to: write only when the stored value is empty and the incoming one is not.
// Identity fields (name, slug, city, state, postal code) are never patched.
var fillableFields = []struct {
	column string
	value  func(*entities.Clinic) interface{}
}{
	{"description", func(c *entities.Clinic) interface{} { return c.Description }},
	{"category", func(c *entities.Clinic) interface{} { return c.Category }},
	{"tags", func(c *entities.Clinic) interface{} { return c.Tags }},
	{"street", func(c *entities.Clinic) interface{} { return c.Address.Street }},
	{"timezone", func(c *entities.Clinic) interface{} { return c.Timezone }},
	{"phone", func(c *entities.Clinic) interface{} { return c.Phone }},
	{"phones", func(c *entities.Clinic) interface{} { return c.Phones }},
	{"website", func(c *entities.Clinic) interface{} { return c.Website }},
	{"emails", func(c *entities.Clinic) interface{} { return c.Emails }},
	{"facebook", func(c *entities.Clinic) interface{} { return c.Social.Facebook }},
	{"instagram", func(c *entities.Clinic) interface{} { return c.Social.Instagram }},
	{"twitter", func(c *entities.Clinic) interface{} { return c.Social.Twitter }},
	{"linkedin", func(c *entities.Clinic) interface{} { return c.Social.LinkedIn }},
	{"youtube", func(c *entities.Clinic) interface{} { return c.Social.YouTube }},
	{"amenities", func(c *entities.Clinic) interface{} { return c.Amenities }},
	{"images", func(c *entities.Clinic) interface{} { return c.Images }},
	{"featured_reviews", func(c *entities.Clinic) interface{} { return c.FeaturedReviews }},
}

// ComputePatch computes the minimal column→value patch that brings the
// stored clinic up to the information level of the incoming one. A field is
// written only when the stored value is empty, plus four field-specific
// "more complete data" overrides:
//
//   - coordinates: stored (0,0) is the empty sentinel and may be replaced by
//     a non-zero pair; a stored non-zero coordinate is never touched
//   - rating: stored zero may be replaced by a non-zero rating
//   - review count: overwritten when the incoming count is strictly greater,
//     since counts only grow at the source
//   - hours: a stored schedule consisting only of placeholders is replaced
//     by an incoming schedule carrying at least one real entry
//   - featured reviews: stored reviews all lacking ratings are replaced by
//     incoming reviews carrying at least one rating
//
// The patch never makes a populated field regress to empty. An empty map
// means the incoming record adds nothing.
func ComputePatch(existing, incoming *entities.Clinic) map[string]interface{} {
	patch := make(map[string]interface{})

	for _, field := range fillableFields {
		stored := field.value(existing)
		candidate := field.value(incoming)
		if isEmptyValue(stored) && !isEmptyValue(candidate) {
			patch[field.column] = candidate
		}
	}

	if existing.Location.IsZero() && !incoming.Location.IsZero() {
		patch["latitude"] = incoming.Location.Latitude
		patch["longitude"] = incoming.Location.Longitude
	}

	if existing.Rating == 0 && incoming.Rating > 0 {
		patch["rating"] = incoming.Rating
	}

	if incoming.ReviewCount > existing.ReviewCount {
		patch["review_count"] = incoming.ReviewCount
	}

	if hoursNeedCorrection(existing.Hours) && hasRealHours(incoming.Hours) {
		patch["hours"] = incoming.Hours
	}

	if reviewsNeedCorrection(existing.FeaturedReviews) && hasRatedReview(incoming.FeaturedReviews) {
		patch["featured_reviews"] = incoming.FeaturedReviews
	}

	return patch
}

func isEmptyValue(value interface{}) bool {
	switch v := value.(type) {
	case string:
		return v == ""
	case []string:
		return len(v) == 0
	case []entities.Review:
		return len(v) == 0
	case []entities.HoursEntry:
		return len(v) == 0
	case nil:
		return true
	default:
		return false
	}
}

// hoursNeedCorrection reports whether the stored schedule carries no real
// information: missing entirely, or every slot still holds the placeholder
// written by older imports.
func hoursNeedCorrection(hours []entities.HoursEntry) bool {
	for _, entry := range hours {
		if entry.Hours != entities.HoursPlaceholder {
			return false
		}
	}
	return true
}

func hasRealHours(hours []entities.HoursEntry) bool {
	for _, entry := range hours {
		if entry.Hours != entities.HoursPlaceholder && entry.Hours != "" {
			return true
		}
	}
	return false
}

// reviewsNeedCorrection reports whether every stored featured review lacks
// rating data, the signature of a known bad historical import.
func reviewsNeedCorrection(reviews []entities.Review) bool {
	return !hasRatedReview(reviews)
}

func hasRatedReview(reviews []entities.Review) bool {
	for _, review := range reviews {
		if review.Rating != nil {
			return true
		}
	}
	return false
}
