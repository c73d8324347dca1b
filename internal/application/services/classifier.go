package services

import (
	"strings"

	"github.com/reliefmap/backend/internal/domain/entities"
)

// Classification outcomes for one source record.
const (
	OutcomeNew       = "new"
	OutcomeUpdate    = "update"
	OutcomeDuplicate = "duplicate"
	OutcomeUnusable  = "unusable"
	OutcomeUnchanged = "unchanged"
)

// ClinicUpdate pairs a stored clinic with the non-empty patch computed from
// an incoming record.
type ClinicUpdate struct {
	ClinicID string
	PlaceID  string
	Name     string
	Patch    map[string]interface{}
}

// SkippedRecord identifies a record that produced no write, with the reason.
type SkippedRecord struct {
	PlaceID string
	Name    string
	Reason  string
}

// ClassificationResult partitions a batch. Every input record lands in
// exactly one list, so the list lengths always sum to the input length.
type ClassificationResult struct {
	New        []*entities.Clinic
	Updates    []ClinicUpdate
	Duplicates []SkippedRecord
	Unusable   []SkippedRecord
	Unchanged  []SkippedRecord
}

// Total returns the number of classified records.
func (r *ClassificationResult) Total() int {
	return len(r.New) + len(r.Updates) + len(r.Duplicates) + len(r.Unusable) + len(r.Unchanged)
}

// Classifier runs the deduplication and classification pass over a batch.
type Classifier struct {
	normalizer *RecordNormalizer
}

// NewClassifier creates a classifier around the given normalizer.
func NewClassifier(normalizer *RecordNormalizer) *Classifier {
	return &Classifier{normalizer: normalizer}
}

// Classify scans the batch once, in input order. The first record carrying a
// given place id wins; later occurrences are duplicates regardless of how
// complete their data is. Records already persisted produce a gap-fill patch
// against the stored clinic; an empty patch lands in Unchanged, never in
// Updates. The pass is idempotent: once a run's patches are applied,
// reclassifying the same batch yields no further updates.
func (c *Classifier) Classify(records []entities.SourceRecord, existing map[string]*entities.Clinic) *ClassificationResult {
	result := &ClassificationResult{}
	seen := make(map[string]struct{}, len(records))

	for i := range records {
		rec := &records[i]
		placeID := strings.TrimSpace(rec.PlaceID)
		name := strings.TrimSpace(rec.Title)

		if placeID == "" {
			result.Unusable = append(result.Unusable, SkippedRecord{
				Name:   name,
				Reason: "record has no place id",
			})
			continue
		}

		if _, dup := seen[placeID]; dup {
			result.Duplicates = append(result.Duplicates, SkippedRecord{
				PlaceID: placeID,
				Name:    name,
				Reason:  "place id already seen in this batch",
			})
			continue
		}
		seen[placeID] = struct{}{}

		clinic, err := c.normalizer.Normalize(rec)
		if err != nil {
			result.Unusable = append(result.Unusable, SkippedRecord{
				PlaceID: placeID,
				Name:    name,
				Reason:  err.Error(),
			})
			continue
		}

		stored, found := existing[placeID]
		if !found {
			result.New = append(result.New, clinic)
			continue
		}

		patch := ComputePatch(stored, clinic)
		if len(patch) == 0 {
			result.Unchanged = append(result.Unchanged, SkippedRecord{
				PlaceID: placeID,
				Name:    name,
				Reason:  "no gaps to fill",
			})
			continue
		}

		result.Updates = append(result.Updates, ClinicUpdate{
			ClinicID: stored.ID,
			PlaceID:  placeID,
			Name:     name,
			Patch:    patch,
		})
	}

	return result
}
