package models

import "time"

// QASeverity ranks rule findings. Blocking findings gate deployment.
type QASeverity string

const (
	QASeverityInfo     QASeverity = "INFO"
	QASeverityWarning  QASeverity = "WARNING"
	QASeverityBlocking QASeverity = "BLOCKING"
)

// QAFinding is a single rule hit against a document.
type QAFinding struct {
	Rule     string     `json:"rule"`
	Severity QASeverity `json:"severity"`
	Message  string     `json:"message"`
	Line     int        `json:"line,omitempty"`
}

// QARun records one execution of the QA rule set against a document version.
type QARun struct {
	ID         string    `db:"id" json:"id"`
	DocumentID string    `db:"document_id" json:"document_id"`
	Version    int       `db:"version" json:"version"`
	Passed     bool      `db:"passed" json:"passed"`
	Findings   []byte    `db:"findings" json:"-"`
	RunBy      string    `db:"run_by" json:"run_by"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
