package dto

import "github.com/emailgen-labs/emailgen-api/internal/models"

// QARunResponse reports the outcome of a QA run.
type QARunResponse struct {
	ID         string              `json:"id"`
	DocumentID string              `json:"document_id"`
	Version    int                 `json:"version"`
	Passed     bool                `json:"passed"`
	Findings   []models.QAFinding `json:"findings"`
	CreatedAt  string              `json:"created_at"`
}

// QAReportFormat selects the export encoding for a QA report.
type QAReportFormat string

const (
	QAReportFormatCSV QAReportFormat = "csv"
	QAReportFormatPDF QAReportFormat = "pdf"
)
