package models

import "time"

// ConversionStatus tracks a conversion job through its lifecycle.
type ConversionStatus string

const (
	ConversionStatusQueued     ConversionStatus = "QUEUED"
	ConversionStatusProcessing ConversionStatus = "PROCESSING"
	ConversionStatusCompleted  ConversionStatus = "COMPLETED"
	ConversionStatusFailed     ConversionStatus = "FAILED"
)

// Conversion represents an asynchronous design-to-HTML conversion job.
type Conversion struct {
	ID           string           `db:"id" json:"id"`
	DesignID     string           `db:"design_id" json:"design_id"`
	DocumentID   *string          `db:"document_id" json:"document_id,omitempty"`
	Status       ConversionStatus `db:"status" json:"status"`
	Progress     int              `db:"progress" json:"progress"`
	PagesTotal   int              `db:"pages_total" json:"pages_total"`
	PagesDone    int              `db:"pages_done" json:"pages_done"`
	ErrorMessage *string          `db:"error_message" json:"error_message,omitempty"`
	CreatedBy    string           `db:"created_by" json:"created_by"`
	StartedAt    *time.Time       `db:"started_at" json:"started_at,omitempty"`
	FinishedAt   *time.Time       `db:"finished_at" json:"finished_at,omitempty"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updated_at"`
}
