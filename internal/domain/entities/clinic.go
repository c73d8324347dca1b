package entities

import (
	"time"
)

// Clinic is the persisted representation of a physical clinic. Exactly one
// clinic row exists per upstream place id; the place id is the only join key
// between scraped records and stored clinics across import runs.
type Clinic struct {
	ID          string   `json:"id" db:"id"`
	PlaceID     string   `json:"place_id" db:"place_id"`
	Name        string   `json:"name" db:"name"`
	Slug        string   `json:"slug" db:"slug"`
	Description string   `json:"description" db:"description"`
	Category    string   `json:"category" db:"category"`
	Tags        []string `json:"tags,omitempty" db:"-"`

	Address  Address  `json:"address" db:"-"`
	Location Location `json:"location" db:"-"`
	Timezone string   `json:"timezone" db:"timezone"`

	Phone   string   `json:"phone" db:"phone"`
	Phones  []string `json:"phones,omitempty" db:"-"`
	Website string   `json:"website" db:"website"`
	Emails  []string `json:"emails,omitempty" db:"-"`

	Social SocialLinks `json:"social" db:"-"`

	Rating          float64      `json:"rating" db:"rating"`
	ReviewCount     int          `json:"review_count" db:"review_count"`
	FeaturedReviews []Review     `json:"featured_reviews,omitempty" db:"-"`
	Hours           []HoursEntry `json:"hours,omitempty" db:"-"`
	Amenities       []string     `json:"amenities,omitempty" db:"-"`
	Images          []string     `json:"images,omitempty" db:"-"`

	ImportBatchID   string     `json:"import_batch_id,omitempty" db:"import_batch_id"`
	ImportedAt      time.Time  `json:"imported_at" db:"imported_at"`
	ImportUpdatedAt *time.Time `json:"import_updated_at,omitempty" db:"import_updated_at"`

	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Address represents a physical address. State carries the full state name,
// StateAbbr the two-letter code.
type Address struct {
	Street     string `json:"street" db:"street"`
	City       string `json:"city" db:"city"`
	State      string `json:"state" db:"state"`
	StateAbbr  string `json:"state_abbr" db:"state_abbr"`
	PostalCode string `json:"postal_code" db:"postal_code"`
	Country    string `json:"country" db:"country"`
}

// Location represents geographical coordinates. A (0,0) location is the
// "unknown" sentinel, never a real clinic position.
type Location struct {
	Latitude  float64 `json:"latitude" db:"latitude"`
	Longitude float64 `json:"longitude" db:"longitude"`
}

// IsZero reports whether the location still holds the unknown sentinel.
func (l Location) IsZero() bool {
	return l.Latitude == 0 && l.Longitude == 0
}

// SocialLinks holds per-network profile URLs.
type SocialLinks struct {
	Facebook  string `json:"facebook,omitempty" db:"facebook"`
	Instagram string `json:"instagram,omitempty" db:"instagram"`
	Twitter   string `json:"twitter,omitempty" db:"twitter"`
	LinkedIn  string `json:"linkedin,omitempty" db:"linkedin"`
	YouTube   string `json:"youtube,omitempty" db:"youtube"`
}

// Review is the unified shape of a patient review after normalization.
// Rating is a pointer because some historical imports carried reviews
// without rating data.
type Review struct {
	Author    string   `json:"author"`
	AuthorURL string   `json:"author_url,omitempty"`
	Rating    *float64 `json:"rating,omitempty"`
	Date      string   `json:"date,omitempty"`
	Text      string   `json:"text,omitempty"`
}

// HoursEntry is one day of the weekly schedule.
type HoursEntry struct {
	Day   string `json:"day"`
	Hours string `json:"hours"`
}

// HoursPlaceholder marks a schedule slot that no source has filled yet.
// Incoming hours containing at least one real entry replace stored
// placeholder-only schedules.
const HoursPlaceholder = "Hours not specified"
