package models

import "time"

// Document is an HTML email under edit. Content is the latest saved markup.
type Document struct {
	ID             string     `db:"id" json:"id"`
	OwnerID        string     `db:"owner_id" json:"owner_id"`
	Title          string     `db:"title" json:"title"`
	Subject        string     `db:"subject" json:"subject"`
	Content        string     `db:"content" json:"content"`
	CurrentVersion int        `db:"current_version" json:"current_version"`
	SourceDesignID *string    `db:"source_design_id" json:"source_design_id,omitempty"`
	DeletedAt      *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// DocumentVersion is an immutable snapshot of a document's content.
type DocumentVersion struct {
	ID         string    `db:"id" json:"id"`
	DocumentID string    `db:"document_id" json:"document_id"`
	Version    int       `db:"version" json:"version"`
	Content    string    `db:"content" json:"content"`
	Comment    string    `db:"comment" json:"comment"`
	CreatedBy  string    `db:"created_by" json:"created_by"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
