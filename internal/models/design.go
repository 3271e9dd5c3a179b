package models

import "time"

// DesignKind distinguishes single-image designs from multi-page documents.
type DesignKind string

const (
	DesignKindImage DesignKind = "IMAGE"
	DesignKindPDF   DesignKind = "PDF"
)

// Design represents an uploaded design file awaiting or following conversion.
type Design struct {
	ID          string     `db:"id" json:"id"`
	OwnerID     string     `db:"owner_id" json:"owner_id"`
	Title       string     `db:"title" json:"title"`
	Kind        DesignKind `db:"kind" json:"kind"`
	Filename    string     `db:"filename" json:"filename"`
	StoragePath string     `db:"storage_path" json:"-"`
	MimeType    string     `db:"mime_type" json:"mime_type"`
	SizeBytes   int64      `db:"size_bytes" json:"size_bytes"`
	PageCount   int        `db:"page_count" json:"page_count"`
	DeletedAt   *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}
