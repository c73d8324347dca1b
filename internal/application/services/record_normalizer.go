package services

import (
	"regexp"
	"sort"
	"strings"

	"github.com/reliefmap/backend/internal/domain/entities"
	apperrors "github.com/reliefmap/backend/pkg/errors"
	"github.com/reliefmap/backend/pkg/utils"
)

const defaultFeaturedReviewLimit = 5

// dayNames is the Sunday-first table used as positional fallback when a
// scraped hours entry has no day label.
var dayNames = [7]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// stateZipPattern matches the "<ST> <ZIP>" segment of a free-text address
// line, e.g. "IL 62704" or "IL 62704-1234".
var stateZipPattern = regexp.MustCompile(`^([A-Za-z]{2})\s+(\d{5}(?:-\d{4})?)$`)

// RecordNormalizer converts scraped source records into the canonical clinic
// shape. It is a pure transform: no I/O, no side effects.
type RecordNormalizer struct {
	featuredReviewLimit int
}

// NewRecordNormalizer creates a normalizer. featuredReviewLimit caps the
// stored featured-review subset; non-positive values use the default.
func NewRecordNormalizer(featuredReviewLimit int) *RecordNormalizer {
	if featuredReviewLimit <= 0 {
		featuredReviewLimit = defaultFeaturedReviewLimit
	}
	return &RecordNormalizer{featuredReviewLimit: featuredReviewLimit}
}

// Normalize transforms one source record into a clinic. It returns a
// VALIDATION error when the record is unusable: missing place id, missing
// name, or a location that resolves to neither a city nor a postal code.
// Malformed-but-present data never fails normalization.
func (n *RecordNormalizer) Normalize(rec *entities.SourceRecord) (*entities.Clinic, error) {
	placeID := strings.TrimSpace(rec.PlaceID)
	if placeID == "" {
		return nil, apperrors.NewValidationError("record has no place id")
	}

	name := strings.TrimSpace(rec.Title)
	if name == "" {
		return nil, apperrors.NewValidationError("record has no name")
	}

	address := resolveAddress(rec)
	if address.City == "" && address.PostalCode == "" {
		return nil, apperrors.NewValidationError("record location unresolvable: no city or postal code")
	}

	clinic := &entities.Clinic{
		PlaceID:  placeID,
		Name:     name,
		Slug:     utils.PermalinkSlug(name, address.StateAbbr, address.PostalCode),
		Category: resolveCategory(rec),
		Tags:     normalizeTags(rec.Categories),
		Address:  address,
		Timezone: strings.TrimSpace(rec.Timezone),
		Phone:    strings.TrimSpace(rec.Phone),
		Phones:   trimAll(rec.Phones),
		Website:  strings.TrimSpace(rec.Website),
		Emails:   trimAll(rec.Emails),
		Social: entities.SocialLinks{
			Facebook:  sanitizeSocialURL(rec.Facebook),
			Instagram: sanitizeSocialURL(rec.Instagram),
			Twitter:   sanitizeSocialURL(rec.Twitter),
			LinkedIn:  sanitizeSocialURL(rec.LinkedIn),
			YouTube:   sanitizeSocialURL(rec.YouTube),
		},
		Rating:      rec.TotalScore,
		ReviewCount: rec.ReviewsCount,
		Hours:       normalizeHours(rec),
		Amenities:   trimAll(rec.Amenities),
		Images:      trimAll(rec.ImageURLs),
		IsActive:    true,
	}

	// Missing or (0,0) coordinates are retained as the zero sentinel, not
	// treated as fatal; the gap-fill rules key off the sentinel later.
	if rec.Location != nil {
		clinic.Location = entities.Location{
			Latitude:  rec.Location.Latitude,
			Longitude: rec.Location.Longitude,
		}
	}

	reviews := normalizeReviews(rec.Reviews)
	clinic.FeaturedReviews = selectFeaturedReviews(reviews, n.featuredReviewLimit)
	clinic.Description = synthesizeDescription(clinic, reviews, rec.Description)

	return clinic, nil
}

// resolveAddress prefers the structured address fields and falls back to
// parsing the free-text address line for whatever is still missing.
func resolveAddress(rec *entities.SourceRecord) entities.Address {
	address := entities.Address{
		Street:     strings.TrimSpace(rec.Street),
		City:       strings.TrimSpace(rec.City),
		PostalCode: strings.TrimSpace(rec.PostalCode),
		Country:    strings.TrimSpace(rec.CountryCode),
	}
	stateValue := strings.TrimSpace(rec.State)

	if address.City == "" || stateValue == "" || address.PostalCode == "" {
		if parsed, ok := parseAddressLine(rec.Address); ok {
			if address.Street == "" {
				address.Street = parsed.Street
			}
			if address.City == "" {
				address.City = parsed.City
			}
			if stateValue == "" {
				stateValue = parsed.State
			}
			if address.PostalCode == "" {
				address.PostalCode = parsed.PostalCode
			}
			if address.Country == "" {
				address.Country = parsed.Country
			}
		}
	}

	if name, abbr, ok := utils.ResolveState(stateValue); ok {
		address.State = name
		address.StateAbbr = abbr
	} else {
		address.State = stateValue
	}

	return address
}

// parseAddressLine parses the fixed-shape free-text address form
// "<street>, <city>, <ST> <ZIP>[, <country>]".
func parseAddressLine(line string) (entities.Address, bool) {
	segments := strings.Split(strings.TrimSpace(line), ",")
	if len(segments) < 3 {
		return entities.Address{}, false
	}
	for i := range segments {
		segments[i] = strings.TrimSpace(segments[i])
	}

	match := stateZipPattern.FindStringSubmatch(segments[2])
	if match == nil {
		return entities.Address{}, false
	}

	address := entities.Address{
		Street:     segments[0],
		City:       segments[1],
		State:      strings.ToUpper(match[1]),
		PostalCode: match[2],
	}
	if len(segments) > 3 {
		address.Country = segments[3]
	}
	return address, true
}

func resolveCategory(rec *entities.SourceRecord) string {
	if category := strings.TrimSpace(rec.CategoryName); category != "" {
		return category
	}
	for _, category := range rec.Categories {
		if trimmed := strings.TrimSpace(category); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// normalizeHours collapses the scraped schedule to a uniform per-day list.
// The per-day list wins over the older free-text form when both are present;
// day labels missing from entries fall back to the Sunday-first table by
// position. Free text splits into positional segments on "|" or ";"; a
// single unsplittable schedule applies to every day.
func normalizeHours(rec *entities.SourceRecord) []entities.HoursEntry {
	if len(rec.OpeningHours) > 0 {
		entries := make([]entities.HoursEntry, 0, len(rec.OpeningHours))
		for i, raw := range rec.OpeningHours {
			day := strings.TrimSpace(raw.Day)
			if day == "" {
				day = dayNames[i%7]
			}
			hours := raw.TimeValue()
			if hours == "" {
				hours = entities.HoursPlaceholder
			}
			entries = append(entries, entities.HoursEntry{Day: day, Hours: hours})
		}
		return entries
	}

	freeText := strings.TrimSpace(rec.Hours)
	if freeText == "" {
		return nil
	}

	segments := splitSchedule(freeText)
	entries := make([]entities.HoursEntry, 0, len(dayNames))
	for i, day := range dayNames {
		hours := entities.HoursPlaceholder
		if len(segments) == 1 {
			hours = segments[0]
		} else if i < len(segments) {
			hours = segments[i]
		}
		entries = append(entries, entities.HoursEntry{Day: day, Hours: hours})
	}
	return entries
}

func splitSchedule(value string) []string {
	parts := strings.FieldsFunc(value, func(r rune) bool {
		return r == '|' || r == ';'
	})
	segments := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			segments = append(segments, trimmed)
		}
	}
	return segments
}

// normalizeReviews unifies the legacy review shapes into one.
func normalizeReviews(raw []entities.SourceReview) []entities.Review {
	reviews := make([]entities.Review, 0, len(raw))
	for i := range raw {
		src := &raw[i]
		review := entities.Review{
			Author:    src.Author(),
			AuthorURL: src.ProfileURL(),
			Rating:    src.Score(),
			Date:      src.PublishedAt(),
			Text:      strings.TrimSpace(src.Text),
		}
		if review.Author == "" && review.Text == "" && review.Rating == nil {
			continue
		}
		reviews = append(reviews, review)
	}
	return reviews
}

// selectFeaturedReviews keeps the highest-signal subset: rated reviews
// before unrated, higher ratings first, newer dates breaking ties. The sort
// is stable so equal reviews keep input order and the selection stays
// deterministic.
func selectFeaturedReviews(reviews []entities.Review, limit int) []entities.Review {
	if len(reviews) == 0 {
		return nil
	}

	ranked := make([]entities.Review, len(reviews))
	copy(ranked, reviews)
	sort.SliceStable(ranked, func(i, j int) bool {
		ri, rj := ranked[i].Rating, ranked[j].Rating
		switch {
		case ri != nil && rj == nil:
			return true
		case ri == nil && rj != nil:
			return false
		case ri != nil && rj != nil && *ri != *rj:
			return *ri > *rj
		}
		return ranked[i].Date > ranked[j].Date
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// sanitizeSocialURL drops scraper error placeholders that were stored in
// place of real profile URLs by older import runs.
func sanitizeSocialURL(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	lowered := strings.ToLower(trimmed)
	if strings.HasPrefix(lowered, "could not get") || lowered == "not found" || lowered == "n/a" {
		return ""
	}
	return trimmed
}

func normalizeTags(values []string) []string {
	tags := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		tag := strings.ToLower(strings.TrimSpace(value))
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
