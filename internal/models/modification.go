package models

import "time"

// ModificationStatus tracks the lifecycle of a proposed edit.
// proposed -> applied <-> reverted; proposed -> rejected is terminal.
type ModificationStatus string

const (
	ModificationStatusProposed ModificationStatus = "PROPOSED"
	ModificationStatusApplied  ModificationStatus = "APPLIED"
	ModificationStatusReverted ModificationStatus = "REVERTED"
	ModificationStatusRejected ModificationStatus = "REJECTED"
)

// Modification is an AI-proposed, line-ranged textual edit against a document.
type Modification struct {
	ID           string             `db:"id" json:"id"`
	DocumentID   string             `db:"document_id" json:"document_id"`
	Description  string             `db:"description" json:"description"`
	OriginalCode string             `db:"original_code" json:"original_code"`
	NewCode      string             `db:"new_code" json:"new_code"`
	StartLine    int                `db:"start_line" json:"start_line"`
	EndLine      int                `db:"end_line" json:"end_line"`
	StartCol     *int               `db:"start_col" json:"start_col,omitempty"`
	EndCol       *int               `db:"end_col" json:"end_col,omitempty"`
	Status       ModificationStatus `db:"status" json:"status"`
	CreatedBy    string             `db:"created_by" json:"created_by"`
	AppliedAt    *time.Time         `db:"applied_at" json:"applied_at,omitempty"`
	CreatedAt    time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `db:"updated_at" json:"updated_at"`
}

// Applied reports whether the modification is currently in effect.
func (m *Modification) Applied() bool {
	return m.Status == ModificationStatusApplied
}
