package entities

import "strings"

// SourceRecord is one scraped representation of a clinic as it arrives from
// the upstream place scraper. The schema drifted across scraper versions, so
// several concepts appear under more than one field name; accessor methods
// implement the prioritized lookup so the rest of the pipeline never touches
// the legacy names.
type SourceRecord struct {
	PlaceID     string `json:"placeId"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	CategoryName string   `json:"categoryName,omitempty"`
	Categories   []string `json:"categories,omitempty"`

	// Address arrives structured, as a single free-text line, or both.
	Address     string `json:"address,omitempty"`
	Street      string `json:"street,omitempty"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	PostalCode  string `json:"postalCode,omitempty"`
	CountryCode string `json:"countryCode,omitempty"`

	Location *SourceLocation `json:"location,omitempty"`
	Timezone string          `json:"timezone,omitempty"`

	Phone   string   `json:"phone,omitempty"`
	Phones  []string `json:"phones,omitempty"`
	Website string   `json:"website,omitempty"`
	Emails  []string `json:"emails,omitempty"`

	Facebook  string `json:"facebook,omitempty"`
	Instagram string `json:"instagram,omitempty"`
	Twitter   string `json:"twitter,omitempty"`
	LinkedIn  string `json:"linkedin,omitempty"`
	YouTube   string `json:"youtube,omitempty"`

	TotalScore   float64 `json:"totalScore,omitempty"`
	ReviewsCount int     `json:"reviewsCount,omitempty"`

	Reviews []SourceReview `json:"reviews,omitempty"`

	// OpeningHours is the per-day list; Hours is the older single free-text
	// schedule. Either, both, or neither may be present.
	OpeningHours []SourceOpeningHours `json:"openingHours,omitempty"`
	Hours        string               `json:"hours,omitempty"`

	Amenities []string `json:"amenities,omitempty"`
	ImageURLs []string `json:"imageUrls,omitempty"`
}

// SourceLocation is the scraper's coordinate pair.
type SourceLocation struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// SourceReview carries the three historical namings for the same review
// fields. Newer exports use name/reviewerUrl/stars/publishedAtDate, older
// ones reviewerName/reviewerLink/rating/date, the oldest author/authorUrl.
type SourceReview struct {
	Name         string `json:"name,omitempty"`
	ReviewerName string `json:"reviewerName,omitempty"`
	AuthorName   string `json:"author,omitempty"`

	ReviewerURL  string `json:"reviewerUrl,omitempty"`
	ReviewerLink string `json:"reviewerLink,omitempty"`
	AuthorURL    string `json:"authorUrl,omitempty"`

	Stars  *float64 `json:"stars,omitempty"`
	Rating *float64 `json:"rating,omitempty"`

	PublishedAtDate string `json:"publishedAtDate,omitempty"`
	Date            string `json:"date,omitempty"`

	Text string `json:"text,omitempty"`
}

// Author returns the reviewer name under whichever legacy field carries it.
func (r *SourceReview) Author() string {
	for _, candidate := range []string{r.Name, r.ReviewerName, r.AuthorName} {
		if trimmed := strings.TrimSpace(candidate); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// ProfileURL returns the reviewer profile URL across legacy namings.
func (r *SourceReview) ProfileURL() string {
	for _, candidate := range []string{r.ReviewerURL, r.ReviewerLink, r.AuthorURL} {
		if trimmed := strings.TrimSpace(candidate); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// Score returns the review rating, preferring the newer stars field.
func (r *SourceReview) Score() *float64 {
	if r.Stars != nil {
		return r.Stars
	}
	return r.Rating
}

// PublishedAt returns the review date across legacy namings.
func (r *SourceReview) PublishedAt() string {
	if trimmed := strings.TrimSpace(r.PublishedAtDate); trimmed != "" {
		return trimmed
	}
	return strings.TrimSpace(r.Date)
}

// SourceOpeningHours is one day of scraped schedule. The time value moved
// between three field names over scraper versions.
type SourceOpeningHours struct {
	Day string `json:"day,omitempty"`

	Hours     string `json:"hours,omitempty"`
	Time      string `json:"time,omitempty"`
	OpenHours string `json:"open_hours,omitempty"`
}

// TimeValue returns the schedule text under whichever legacy field carries it.
func (h *SourceOpeningHours) TimeValue() string {
	for _, candidate := range []string{h.Hours, h.Time, h.OpenHours} {
		if trimmed := strings.TrimSpace(candidate); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
