package entities

import "time"

// ImportBatch statuses.
const (
	BatchStatusProcessing = "processing"
	BatchStatusCompleted  = "completed"
)

// ImportBatch is the run-scoped ledger for one bulk import. It is created
// when the run starts, finalized exactly once when the run ends, and never
// touched by any other process. Clinics created or updated by the run carry
// the batch id so a completed batch can be rolled back.
type ImportBatch struct {
	ID           string        `json:"id" db:"id"`
	FileName     string        `json:"file_name" db:"file_name"`
	TotalRecords int           `json:"total_records" db:"total_records"`
	SuccessCount int           `json:"success_count" db:"success_count"`
	ErrorCount   int           `json:"error_count" db:"error_count"`
	SkipCount    int           `json:"skip_count" db:"skip_count"`
	Errors       []ImportError `json:"errors,omitempty" db:"-"`
	Status       string        `json:"status" db:"status"`
	StartedAt    time.Time     `json:"started_at" db:"started_at"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty" db:"completed_at"`
}

// ImportError records one per-record write failure. Unusable and duplicate
// records are skips, not errors, and never appear here.
type ImportError struct {
	PlaceID string `json:"place_id"`
	Name    string `json:"name"`
	Message string `json:"message"`
}
